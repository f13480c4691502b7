// Package storage keeps the files attached to board items.
package storage

import "github.com/starford/flexiboard/internal/models"

// Provider is the interface for attachment file operations. Paths are
// relative to the attachment root.
type Provider interface {
	// List returns metadata for every file under dir.
	List(dir string) ([]models.Attachment, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Purge removes dir and everything below it. A missing dir is not an error.
	Purge(dir string) error
}
