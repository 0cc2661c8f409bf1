package vision

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/your-org/photoid/internal/config"
	"github.com/your-org/photoid/internal/models"
	"github.com/your-org/photoid/internal/observability"
)

// Extractor turns raw photo bytes into face detections with embeddings.
// Detections below the configured confidence floor never leave the
// detector, so every detection handed out is resolvable.
type Extractor struct {
	detector *Detector
	embedder *Embedder
}

// NewExtractor loads both ONNX models from cfg.ModelsDir.
func NewExtractor(cfg config.VisionConfig) (*Extractor, error) {
	detPath := filepath.Join(cfg.ModelsDir, "det_10g.onnx")
	embPath := filepath.Join(cfg.ModelsDir, "w600k_r50.onnx")

	slog.Info("loading detection model", "path", detPath)
	det, err := NewDetector(detPath, float32(cfg.DetectionConfidence))
	if err != nil {
		return nil, fmt.Errorf("load detector: %w", err)
	}

	slog.Info("loading embedding model", "path", embPath)
	emb, err := NewEmbedder(embPath)
	if err != nil {
		det.Close()
		return nil, fmt.Errorf("load embedder: %w", err)
	}

	if emb.Dim() != cfg.EmbeddingDim {
		det.Close()
		emb.Close()
		return nil, fmt.Errorf("embedder emits %d-dimensional vectors, config expects %d", emb.Dim(), cfg.EmbeddingDim)
	}

	slog.Info("vision models ready")
	return &Extractor{detector: det, embedder: emb}, nil
}

// Extract decodes the photo, detects faces and embeds each crop.
// A photo with no resolvable faces yields an empty slice, not an error.
func (e *Extractor) Extract(ctx context.Context, data []byte) ([]models.Detection, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	origW, origH := bounds.Dx(), bounds.Dy()

	inW, inH := e.detector.InputSize()
	detInput := preprocessForDetection(img, inW, inH)

	start := time.Now()
	candidates, err := e.detector.Detect(detInput, origW, origH)
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}
	observability.ResolveDuration.WithLabelValues("detect").Observe(time.Since(start).Seconds())
	observability.FacesDetected.Add(float64(len(candidates)))

	embW, embH := e.embedder.InputSize()

	var detections []models.Detection
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		crop := cropFace(img, c.BBox)
		if crop == nil {
			slog.Warn("degenerate face box, skipping", "bbox", c.BBox)
			continue
		}

		start = time.Now()
		embedding, err := e.embedder.Embed(preprocessForEmbedding(crop, embW, embH))
		if err != nil {
			return nil, fmt.Errorf("embed face: %w", err)
		}
		observability.ResolveDuration.WithLabelValues("embed").Observe(time.Since(start).Seconds())

		detections = append(detections, models.Detection{
			Embedding:  embedding,
			BBox:       toBBox(c.BBox),
			Confidence: c.Score,
		})
	}

	return detections, nil
}

// Close releases both ONNX sessions.
func (e *Extractor) Close() {
	if e.detector != nil {
		e.detector.Close()
	}
	if e.embedder != nil {
		e.embedder.Close()
	}
}
