package models

import "time"

// Photo is one stored upload. Content is kept in object storage under
// ObjectKey; the row is the source of truth for everything else.
type Photo struct {
	ID               int64     `json:"id" db:"id"`
	Uploader         *string   `json:"uploader,omitempty" db:"uploader"`
	OriginalFilename string    `json:"original_filename" db:"original_filename"`
	ObjectKey        string    `json:"object_key" db:"object_key"`
	ContentType      string    `json:"content_type" db:"content_type"`
	SizeBytes        int64     `json:"size_bytes" db:"size_bytes"`
	Width            int       `json:"width" db:"width"`
	Height           int       `json:"height" db:"height"`
	SHA256           string    `json:"sha256" db:"sha256"`
	UploadedAt       time.Time `json:"uploaded_at" db:"uploaded_at"`
}
