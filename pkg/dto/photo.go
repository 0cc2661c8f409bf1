package dto

type PhotoResponse struct {
	ID               int64   `json:"id"`
	Uploader         *string `json:"uploader,omitempty"`
	OriginalFilename string  `json:"original_filename"`
	URL              string  `json:"url"`
	ContentType      string  `json:"content_type"`
	SizeBytes        int64   `json:"size_bytes"`
	Width            int     `json:"width"`
	Height           int     `json:"height"`
	SHA256           string  `json:"sha256"`
	UploadedAt       string  `json:"uploaded_at"`
}

// UploadResult reports the outcome for one file of a multi-file upload.
type UploadResult struct {
	Filename string         `json:"filename"`
	Status   string         `json:"status"` // created, duplicate, error
	Photo    *PhotoResponse `json:"photo,omitempty"`
	Error    string         `json:"error,omitempty"`
}

type PhotoListResponse struct {
	Photos []PhotoResponse `json:"photos"`
	Total  int             `json:"total"`
}

type FaceResponse struct {
	ID         int64   `json:"id"`
	PhotoID    int64   `json:"photo_id"`
	PersonID   *int64  `json:"person_id,omitempty"`
	BBox       BBox    `json:"bbox"`
	Confidence float32 `json:"confidence"`
	DetectedAt string  `json:"detected_at"`
}

type BBox struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// SimilarFace is one result of a face similarity lookup.
type SimilarFace struct {
	FaceID   int64   `json:"face_id"`
	PhotoID  int64   `json:"photo_id"`
	PersonID *int64  `json:"person_id,omitempty"`
	Score    float64 `json:"score"`
}
