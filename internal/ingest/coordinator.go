// Package ingest accepts uploaded photos, deduplicates them by content
// digest, stores the bytes, records metadata and schedules face
// resolution.
package ingest

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"mime"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/photoid/internal/models"
	"github.com/your-org/photoid/internal/observability"
	"github.com/your-org/photoid/internal/storage"
)

// ErrInvalidImage means the payload could not be decoded as a supported
// image format.
var ErrInvalidImage = errors.New("invalid image payload")

// Store is the metadata persistence the coordinator needs.
type Store interface {
	PhotoBySHA256(ctx context.Context, digest string) (*models.Photo, error)
	CreatePhoto(ctx context.Context, p *models.Photo) error
	PhotosWithoutFaces(ctx context.Context) ([]models.Photo, error)
}

// ObjectStore persists and removes photo bytes.
type ObjectStore interface {
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
	DeleteObject(ctx context.Context, key string) error
}

// Scheduler enqueues asynchronous resolve jobs.
type Scheduler interface {
	EnqueueResolve(ctx context.Context, task models.ResolveTask) error
}

// Meta carries the upload metadata supplied by the client.
type Meta struct {
	OriginalFilename string
	Uploader         *string
}

// Result reports the outcome of a single upload.
type Result struct {
	Photo     *models.Photo
	Duplicate bool
	Scheduled bool
}

type Coordinator struct {
	store   Store
	objects ObjectStore
	queue   Scheduler
}

func NewCoordinator(store Store, objects ObjectStore, queue Scheduler) *Coordinator {
	return &Coordinator{store: store, objects: objects, queue: queue}
}

// Ingest stores one photo. Content-identical uploads resolve to the
// already-stored photo regardless of filename. Resolution is scheduled
// fire-and-forget: a queue failure is logged but does not fail the
// upload, reconciliation picks the photo up later.
func (c *Coordinator) Ingest(ctx context.Context, raw []byte, meta Meta) (*Result, error) {
	sum := sha256.Sum256(raw)
	digest := hex.EncodeToString(sum[:])

	if existing, err := c.store.PhotoBySHA256(ctx, digest); err != nil {
		return nil, fmt.Errorf("lookup by digest: %w", err)
	} else if existing != nil {
		observability.PhotosIngested.WithLabelValues("duplicate").Inc()
		return &Result{Photo: existing, Duplicate: true}, nil
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		observability.PhotosIngested.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	contentType := mime.TypeByExtension("." + format)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := objectKey(meta.OriginalFilename, format)
	if err := c.objects.PutObject(ctx, key, raw, contentType); err != nil {
		return nil, fmt.Errorf("store object: %w", err)
	}

	photo := &models.Photo{
		Uploader:         meta.Uploader,
		OriginalFilename: meta.OriginalFilename,
		ObjectKey:        key,
		ContentType:      contentType,
		SizeBytes:        int64(len(raw)),
		Width:            cfg.Width,
		Height:           cfg.Height,
		SHA256:           digest,
		UploadedAt:       time.Now().UTC(),
	}

	if err := c.store.CreatePhoto(ctx, photo); err != nil {
		// Lost a dedup race: another upload of the same content
		// committed between our lookup and insert. The stored object
		// is orphaned, clean it up and report the winner.
		if errors.Is(err, storage.ErrDuplicatePhoto) {
			if delErr := c.objects.DeleteObject(ctx, key); delErr != nil {
				slog.Warn("orphaned object cleanup failed", "key", key, "error", delErr)
			}
			winner, lookupErr := c.store.PhotoBySHA256(ctx, digest)
			if lookupErr != nil || winner == nil {
				return nil, fmt.Errorf("duplicate photo, winner lookup: %w", lookupErr)
			}
			observability.PhotosIngested.WithLabelValues("duplicate").Inc()
			return &Result{Photo: winner, Duplicate: true}, nil
		}
		// The photo row was never recorded, so the object just written
		// must not survive either.
		if delErr := c.objects.DeleteObject(ctx, key); delErr != nil {
			slog.Warn("orphaned object cleanup failed", "key", key, "error", delErr)
		}
		return nil, fmt.Errorf("create photo: %w", err)
	}

	observability.PhotosIngested.WithLabelValues("ok").Inc()

	result := &Result{Photo: photo}
	if err := c.schedule(ctx, photo); err != nil {
		slog.Warn("resolve scheduling failed, photo awaits reconciliation",
			"photo_id", photo.ID, "error", err)
	} else {
		result.Scheduled = true
	}

	return result, nil
}

// Reconcile schedules resolution for every photo with no recorded faces.
// Safe to run at any time: completed photos are filtered out here and
// redelivered jobs are no-ops downstream.
func (c *Coordinator) Reconcile(ctx context.Context) (int, error) {
	photos, err := c.store.PhotosWithoutFaces(ctx)
	if err != nil {
		return 0, fmt.Errorf("list unresolved photos: %w", err)
	}

	scheduled := 0
	for _, p := range photos {
		if err := c.schedule(ctx, &p); err != nil {
			slog.Warn("reconcile scheduling failed", "photo_id", p.ID, "error", err)
			continue
		}
		scheduled++
	}

	slog.Info("reconciliation pass complete", "unresolved", len(photos), "scheduled", scheduled)
	return scheduled, nil
}

func (c *Coordinator) schedule(ctx context.Context, photo *models.Photo) error {
	return c.queue.EnqueueResolve(ctx, models.ResolveTask{
		PhotoID:    photo.ID,
		ObjectKey:  photo.ObjectKey,
		EnqueuedAt: time.Now().UTC(),
	})
}

// objectKey builds a collision-free storage key, keeping the original
// extension for content-type inference on serving.
func objectKey(filename, format string) string {
	ext := filepath.Ext(filename)
	if ext == "" {
		ext = "." + format
	}
	return fmt.Sprintf("photos/%s%s", uuid.NewString(), ext)
}
