package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/your-org/photoid/internal/cache"
	"github.com/your-org/photoid/internal/ingest"
	"github.com/your-org/photoid/internal/models"
	"github.com/your-org/photoid/internal/storage"
	"github.com/your-org/photoid/pkg/dto"
)

const timeFormat = "2006-01-02T15:04:05Z"

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

type PhotoHandler struct {
	db          *storage.PostgresStore
	minio       *storage.MinIOStore
	coordinator *ingest.Coordinator
	// listings absorbs repeated gallery polls; entries may lag uploads
	// by up to the configured TTL.
	listings       *cache.TTL[[]models.Photo]
	publicURL      string
	maxUploadBytes int64
}

func NewPhotoHandler(
	db *storage.PostgresStore,
	minio *storage.MinIOStore,
	coordinator *ingest.Coordinator,
	listings *cache.TTL[[]models.Photo],
	publicURL string,
	maxUploadBytes int64,
) *PhotoHandler {
	return &PhotoHandler{
		db:             db,
		minio:          minio,
		coordinator:    coordinator,
		listings:       listings,
		publicURL:      strings.TrimRight(publicURL, "/"),
		maxUploadBytes: maxUploadBytes,
	}
}

// Upload accepts one or more photos as multipart files and ingests each
// independently: one bad file does not fail the batch.
func (h *PhotoHandler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart form required"})
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one file required"})
		return
	}

	var uploader *string
	if v := c.PostForm("uploader"); v != "" {
		uploader = &v
	}

	results := make([]dto.UploadResult, 0, len(files))

	for _, header := range files {
		result := dto.UploadResult{Filename: header.Filename}

		ext := strings.ToLower(filepath.Ext(header.Filename))
		if !allowedExtensions[ext] {
			result.Status = "error"
			result.Error = "unsupported file type, expected jpg or png"
			results = append(results, result)
			continue
		}
		if header.Size > h.maxUploadBytes {
			result.Status = "error"
			result.Error = "file exceeds upload size limit"
			results = append(results, result)
			continue
		}

		file, err := header.Open()
		if err != nil {
			result.Status = "error"
			result.Error = "open file failed"
			results = append(results, result)
			continue
		}
		raw, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			result.Status = "error"
			result.Error = "read file failed"
			results = append(results, result)
			continue
		}

		ingested, err := h.coordinator.Ingest(c.Request.Context(), raw, ingest.Meta{
			OriginalFilename: header.Filename,
			Uploader:         uploader,
		})
		if err != nil {
			result.Status = "error"
			if errors.Is(err, ingest.ErrInvalidImage) {
				result.Error = "not a valid image"
			} else {
				slog.Error("ingest failed", "filename", header.Filename, "error", err)
				result.Error = "internal error"
			}
			results = append(results, result)
			continue
		}

		resp := h.toResponse(*ingested.Photo)
		result.Photo = &resp
		if ingested.Duplicate {
			result.Status = "duplicate"
		} else {
			result.Status = "created"
		}
		results = append(results, result)
	}

	// Listings are not invalidated on upload: the cache expires purely by
	// time, so new photos may take up to the TTL to appear.
	c.JSON(http.StatusOK, gin.H{"results": results, "total": len(results)})
}

// List returns stored photos, optionally filtered by uploader. Results
// are served from the TTL cache when fresh enough.
func (h *PhotoHandler) List(c *gin.Context) {
	key := "all"
	var uploader *string
	if v := c.Query("uploader"); v != "" {
		uploader = &v
		key = "uploader:" + v
	}

	photos, ok := h.listings.Get(key)
	if !ok {
		var err error
		photos, err = h.db.ListPhotos(c.Request.Context(), uploader)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		h.listings.Set(key, photos)
	}

	resp := make([]dto.PhotoResponse, 0, len(photos))
	for _, p := range photos {
		resp = append(resp, h.toResponse(p))
	}

	c.JSON(http.StatusOK, dto.PhotoListResponse{Photos: resp, Total: len(resp)})
}

func (h *PhotoHandler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid photo id"})
		return
	}

	photo, err := h.db.GetPhoto(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if photo == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "photo not found"})
		return
	}

	c.JSON(http.StatusOK, h.toResponse(*photo))
}

// ListFaces returns the faces resolved for one photo.
func (h *PhotoHandler) ListFaces(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid photo id"})
		return
	}

	photo, err := h.db.GetPhoto(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if photo == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "photo not found"})
		return
	}

	faces, err := h.db.FacesByPhoto(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.FaceResponse, 0, len(faces))
	for _, f := range faces {
		resp = append(resp, toFaceResponse(f))
	}

	c.JSON(http.StatusOK, gin.H{"faces": resp, "total": len(resp)})
}

// Delete removes a photo, its faces and its stored bytes. Persons are
// kept even if this was their last face.
func (h *PhotoHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid photo id"})
		return
	}

	objectKey, err := h.db.DeletePhoto(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "photo not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := h.minio.DeleteObject(c.Request.Context(), objectKey); err != nil {
		slog.Warn("object removal failed after photo delete", "key", objectKey, "error", err)
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *PhotoHandler) toResponse(p models.Photo) dto.PhotoResponse {
	return toPhotoResponse(p, h.publicURL)
}

func toPhotoResponse(p models.Photo, publicURL string) dto.PhotoResponse {
	return dto.PhotoResponse{
		ID:               p.ID,
		Uploader:         p.Uploader,
		OriginalFilename: p.OriginalFilename,
		URL:              publicURL + "/" + p.ObjectKey,
		ContentType:      p.ContentType,
		SizeBytes:        p.SizeBytes,
		Width:            p.Width,
		Height:           p.Height,
		SHA256:           p.SHA256,
		UploadedAt:       p.UploadedAt.Format(timeFormat),
	}
}

func toFaceResponse(f models.Face) dto.FaceResponse {
	return dto.FaceResponse{
		ID:         f.ID,
		PhotoID:    f.PhotoID,
		PersonID:   f.PersonID,
		BBox:       dto.BBox{X: f.BBox.X, Y: f.BBox.Y, W: f.BBox.W, H: f.BBox.H},
		Confidence: f.Confidence,
		DetectedAt: f.DetectedAt.Format(timeFormat),
	}
}
