package handlers

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/your-org/photoid/internal/ingest"
	"github.com/your-org/photoid/internal/resolve"
	"github.com/your-org/photoid/internal/storage"
	"github.com/your-org/photoid/pkg/dto"
)

type MaintenanceHandler struct {
	db          *storage.PostgresStore
	coordinator *ingest.Coordinator
}

func NewMaintenanceHandler(db *storage.PostgresStore, coordinator *ingest.Coordinator) *MaintenanceHandler {
	return &MaintenanceHandler{db: db, coordinator: coordinator}
}

// Reconcile schedules resolution for every photo no faces were recorded
// for yet, covering uploads whose enqueue was lost.
func (h *MaintenanceHandler) Reconcile(c *gin.Context) {
	scheduled, err := h.coordinator.Reconcile(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, dto.ReconcileResponse{Scheduled: scheduled})
}

// Clusters runs an offline density scan over all stored embeddings and
// reports how faces would group. Read-only: person assignments are
// never changed by this endpoint.
func (h *MaintenanceHandler) Clusters(c *gin.Context) {
	req := dto.ClusterRequest{Eps: 0.5, MinSamples: 1}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if req.Eps <= 0 || req.Eps > 1 || req.MinSamples < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "eps must be in (0,1], min_samples at least 1"})
		return
	}

	vectors, err := h.db.AllFaceVectors(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	embeddings := make([][]float32, len(vectors))
	for i, v := range vectors {
		embeddings[i] = v.Embedding
	}

	labels := resolve.ClusterEmbeddings(embeddings, req.Eps, req.MinSamples)

	grouped := make(map[int][]int64)
	var noise []int64
	for i, label := range labels {
		if label < 0 {
			noise = append(noise, vectors[i].FaceID)
			continue
		}
		grouped[label] = append(grouped[label], vectors[i].FaceID)
	}

	labelsSorted := make([]int, 0, len(grouped))
	for label := range grouped {
		labelsSorted = append(labelsSorted, label)
	}
	sort.Ints(labelsSorted)

	clusters := make([]dto.Cluster, 0, len(grouped))
	for _, label := range labelsSorted {
		clusters = append(clusters, dto.Cluster{Label: label, FaceIDs: grouped[label]})
	}

	c.JSON(http.StatusOK, dto.ClusterResponse{
		Clusters: clusters,
		Noise:    noise,
		Total:    len(vectors),
	})
}
