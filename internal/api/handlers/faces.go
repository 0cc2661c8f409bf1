package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/your-org/photoid/internal/storage"
	"github.com/your-org/photoid/pkg/dto"
)

type FaceHandler struct {
	db *storage.PostgresStore
}

func NewFaceHandler(db *storage.PostgresStore) *FaceHandler {
	return &FaceHandler{db: db}
}

// Similar returns stored faces ranked by cosine similarity to the given
// face, nearest first.
func (h *FaceHandler) Similar(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid face id"})
		return
	}

	limit := 5
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 100"})
			return
		}
		limit = n
	}

	matches, err := h.db.SimilarFaces(c.Request.Context(), id, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	results := make([]dto.SimilarFace, 0, len(matches))
	for _, m := range matches {
		results = append(results, dto.SimilarFace{
			FaceID:   m.FaceID,
			PhotoID:  m.PhotoID,
			PersonID: m.PersonID,
			Score:    m.Score,
		})
	}

	c.JSON(http.StatusOK, gin.H{"results": results, "total": len(results)})
}
