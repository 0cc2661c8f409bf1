package models

import "time"

// ResolveTask is the message published to NATS for worker processing.
// One task covers all faces of one photo.
type ResolveTask struct {
	PhotoID    int64     `json:"photo_id"`
	ObjectKey  string    `json:"object_key"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// ResolveResult is the per-photo outcome published after a resolution job
// commits. The API consumes these to broadcast over WebSocket.
type ResolveResult struct {
	PhotoID    int64     `json:"photo_id"`
	Faces      int       `json:"faces"`
	NewPersons int       `json:"new_persons"`
	Skipped    bool      `json:"skipped,omitempty"`
	ResolvedAt time.Time `json:"resolved_at"`
}
