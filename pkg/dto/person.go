package dto

type PersonResponse struct {
	ID        int64   `json:"id"`
	Name      *string `json:"name,omitempty"`
	FaceCount int     `json:"face_count"`
	// RepresentativeFace is the person's first recorded face, the one
	// all matching is anchored to.
	RepresentativeFace *FaceResponse `json:"representative_face,omitempty"`
	CreatedAt          string        `json:"created_at"`
}

type PersonListResponse struct {
	Persons []PersonResponse `json:"persons"`
	Total   int              `json:"total"`
}

type UpdatePersonRequest struct {
	Name string `json:"name" binding:"required"`
}
