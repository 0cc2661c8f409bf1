package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/your-org/photoid/internal/storage"
	"github.com/your-org/photoid/pkg/dto"
)

type PersonHandler struct {
	db        *storage.PostgresStore
	publicURL string
}

func NewPersonHandler(db *storage.PostgresStore, publicURL string) *PersonHandler {
	return &PersonHandler{db: db, publicURL: publicURL}
}

// List returns every discovered person with face count and the
// representative face matching is anchored to.
func (h *PersonHandler) List(c *gin.Context) {
	persons, err := h.db.ListPersons(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.PersonResponse, 0, len(persons))
	for _, p := range persons {
		entry := dto.PersonResponse{
			ID:        p.ID,
			Name:      p.Name,
			FaceCount: p.FaceCount,
			CreatedAt: p.CreatedAt.Format(timeFormat),
		}
		if rep, err := h.db.RepresentativeFace(c.Request.Context(), p.ID); err == nil && rep != nil {
			face := toFaceResponse(*rep)
			entry.RepresentativeFace = &face
		}
		resp = append(resp, entry)
	}

	c.JSON(http.StatusOK, dto.PersonListResponse{Persons: resp, Total: len(resp)})
}

func (h *PersonHandler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid person id"})
		return
	}

	person, err := h.db.GetPerson(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if person == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "person not found"})
		return
	}

	entry := dto.PersonResponse{
		ID:        person.ID,
		Name:      person.Name,
		CreatedAt: person.CreatedAt.Format(timeFormat),
	}
	if rep, err := h.db.RepresentativeFace(c.Request.Context(), id); err == nil && rep != nil {
		face := toFaceResponse(*rep)
		entry.RepresentativeFace = &face
	}

	c.JSON(http.StatusOK, entry)
}

// Rename sets a person's display name. Persons are machine-created, a
// name is the only client-editable attribute.
func (h *PersonHandler) Rename(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid person id"})
		return
	}

	var req dto.UpdatePersonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.db.UpdatePersonName(c.Request.Context(), id, req.Name); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "person not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

// ListPhotos returns every photo a person appears in.
func (h *PersonHandler) ListPhotos(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid person id"})
		return
	}

	person, err := h.db.GetPerson(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if person == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "person not found"})
		return
	}

	photos, err := h.db.PersonPhotos(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.PhotoResponse, 0, len(photos))
	for _, p := range photos {
		resp = append(resp, toPhotoResponse(p, h.publicURL))
	}

	c.JSON(http.StatusOK, dto.PhotoListResponse{Photos: resp, Total: len(resp)})
}
