package dto

// WSEvent is a WebSocket message pushed to connected clients.
type WSEvent struct {
	Type       string `json:"type"` // photo_resolved
	PhotoID    int64  `json:"photo_id"`
	Faces      int    `json:"faces"`
	NewPersons int    `json:"new_persons"`
	ResolvedAt string `json:"resolved_at"`
}

type ReconcileResponse struct {
	Scheduled int `json:"scheduled"`
}

// ClusterRequest tunes the offline clustering preview.
type ClusterRequest struct {
	Eps        float64 `json:"eps"`
	MinSamples int     `json:"min_samples"`
}

// Cluster groups face IDs that the density scan placed together.
type Cluster struct {
	Label   int     `json:"label"`
	FaceIDs []int64 `json:"face_ids"`
}

type ClusterResponse struct {
	Clusters []Cluster `json:"clusters"`
	Noise    []int64   `json:"noise"`
	Total    int       `json:"total"`
}
