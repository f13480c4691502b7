package models

import "time"

// Attachment is a file stored for a file column cell.
type Attachment struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"` // relative to the attachment root
	Size      int64     `json:"size"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}
