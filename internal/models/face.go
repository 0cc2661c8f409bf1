package models

import "time"

// BBox is a face bounding box in pixel units of the owning photo.
type BBox struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Face is one detected face instance within one photo. A face belongs to
// exactly one photo (cascade-deleted with it) and at most one person.
type Face struct {
	ID         int64     `json:"id" db:"id"`
	PhotoID    int64     `json:"photo_id" db:"photo_id"`
	PersonID   *int64    `json:"person_id,omitempty" db:"person_id"`
	Embedding  []float32 `json:"-" db:"embedding"`
	BBox       BBox      `json:"bbox" db:"bbox"`
	Confidence float32   `json:"confidence" db:"confidence"`
	DetectedAt time.Time `json:"detected_at" db:"detected_at"`
}

// Detection is one face the embedding source extracted from an image,
// before any person assignment.
type Detection struct {
	Embedding  []float32 `json:"embedding"`
	BBox       BBox      `json:"bbox"`
	Confidence float32   `json:"confidence"`
}
