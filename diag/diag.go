// Package diag is the non-hot-path diagnostic logger: construction
// failures, CLI wiring, and anything else that must never run inside a
// Launch callback use it instead of hand-rolled fmt.Printf calls.
package diag

import "log"

// DropError prints "<prefix>: <err>" when err is non-nil, or just
// "<prefix>" otherwise, as a cheap trace tag. Never call this from code a
// Stream.Launch callback runs — it is for setup and error paths only.
func DropError(prefix string, err error) {
	if err != nil {
		log.Printf("%s: %v", prefix, err)
	} else {
		log.Print(prefix)
	}
}
