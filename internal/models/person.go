package models

import "time"

// Person is a discovered identity cluster. Rows are created lazily by the
// resolution engine, never by callers, and never deleted in the normal flow.
type Person struct {
	ID        int64     `json:"id" db:"id"`
	Name      *string   `json:"name,omitempty" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
