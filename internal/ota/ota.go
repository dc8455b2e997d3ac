// Package ota applies firmware updates by staging the uploaded binary next
// to the running one and renaming it into place, so a failed upload never
// leaves the device unbootable.
package ota

// Updater receives one firmware image as a byte stream.
type Updater interface {
	// Begin opens a staging area for an image of the given size. A negative
	// size means the length is not known up front. Begin fails if an update
	// is already in flight.
	Begin(size int64) error

	// Write appends image bytes to the staging area.
	Write(p []byte) (int, error)

	// Commit finalizes the staged image and swaps it into place. The new
	// image takes effect on the next restart.
	Commit() error

	// Abort discards the staged image. Safe to call at any point.
	Abort()
}
