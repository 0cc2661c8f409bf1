// Package resolve implements the face identity resolution pipeline: given a
// newly stored photo, it extracts face embeddings and assigns each face to an
// existing or newly created person by greedy nearest-representative matching.
package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/your-org/photoid/internal/models"
	"github.com/your-org/photoid/internal/observability"
)

// Representative is the comparison anchor for one person: the embedding of
// the earliest face recorded for it.
type Representative struct {
	PersonID  int64
	Embedding []float32
}

// Tx is the transactional view of the store the resolver decides against.
// Everything done through a Tx commits atomically or not at all.
type Tx interface {
	PhotoHasFaces(ctx context.Context, photoID int64) (bool, error)
	Representatives(ctx context.Context) ([]Representative, error)
	CreatePerson(ctx context.Context) (int64, error)
	InsertFace(ctx context.Context, face *models.Face) error
}

// Store is the durable store surface the resolver needs. WithResolveLock
// must serialize match-or-create decisions across concurrent callers.
type Store interface {
	PhotoHasFaces(ctx context.Context, photoID int64) (bool, error)
	WithResolveLock(ctx context.Context, fn func(Tx) error) error
}

// ObjectStore fetches the raw photo bytes.
type ObjectStore interface {
	GetObject(ctx context.Context, key string) ([]byte, error)
}

// Extractor produces face detections from an image. Implementations must
// discard detections below the confidence floor before returning; the
// resolver is never handed sub-threshold faces.
type Extractor interface {
	Extract(ctx context.Context, imageData []byte) ([]models.Detection, error)
}

// Resolver runs one photo's resolution job end to end. It holds no embedding
// state across invocations: every job reads the persisted representative set
// fresh inside the lock.
type Resolver struct {
	store     Store
	objects   ObjectStore
	extractor Extractor
	// threshold is exclusive: a similarity of exactly this value does not match.
	threshold float64
}

func NewResolver(store Store, objects ObjectStore, extractor Extractor, matchThreshold float64) *Resolver {
	return &Resolver{
		store:     store,
		objects:   objects,
		extractor: extractor,
		threshold: matchThreshold,
	}
}

// ProcessPhoto resolves all faces of one photo. The job either commits the
// complete detected-face set or persists nothing: extraction failure aborts
// before any write, and all writes share one transaction.
func (r *Resolver) ProcessPhoto(ctx context.Context, task models.ResolveTask) (*models.ResolveResult, error) {
	// Completed-job guard: task delivery is at-least-once, and re-running a
	// committed job would duplicate faces.
	done, err := r.store.PhotoHasFaces(ctx, task.PhotoID)
	if err != nil {
		return nil, fmt.Errorf("check existing faces: %w", err)
	}
	if done {
		slog.Info("photo already resolved, skipping", "photo_id", task.PhotoID)
		observability.ResolveJobs.WithLabelValues("skipped").Inc()
		return &models.ResolveResult{PhotoID: task.PhotoID, Skipped: true, ResolvedAt: time.Now()}, nil
	}

	start := time.Now()
	imageData, err := r.objects.GetObject(ctx, task.ObjectKey)
	if err != nil {
		observability.ResolveJobs.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("fetch photo %d: %w", task.PhotoID, err)
	}
	observability.ResolveDuration.WithLabelValues("fetch").Observe(time.Since(start).Seconds())

	start = time.Now()
	detections, err := r.extractor.Extract(ctx, imageData)
	if err != nil {
		observability.ResolveJobs.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("extract faces from photo %d: %w", task.PhotoID, err)
	}
	observability.ResolveDuration.WithLabelValues("extract").Observe(time.Since(start).Seconds())

	result := &models.ResolveResult{PhotoID: task.PhotoID, ResolvedAt: time.Now()}

	if len(detections) == 0 {
		observability.ResolveJobs.WithLabelValues("ok").Inc()
		return result, nil
	}

	start = time.Now()
	err = r.store.WithResolveLock(ctx, func(tx Tx) error {
		// Re-check under the lock: a duplicate schedule racing an
		// in-flight job can pass the unlocked guard before that job
		// commits.
		done, err := tx.PhotoHasFaces(ctx, task.PhotoID)
		if err != nil {
			return fmt.Errorf("recheck existing faces: %w", err)
		}
		if done {
			result.Skipped = true
			return nil
		}

		reps, err := tx.Representatives(ctx)
		if err != nil {
			return fmt.Errorf("load representatives: %w", err)
		}

		// Faces are processed in detection order. A person created for one
		// face is appended to the working set so later faces in the same
		// photo can match it.
		for _, det := range detections {
			personID, created, err := r.assign(ctx, tx, reps, det.Embedding)
			if err != nil {
				return err
			}
			if created {
				reps = append(reps, Representative{PersonID: personID, Embedding: det.Embedding})
				result.NewPersons++
				observability.PersonsCreated.Inc()
				observability.FacesResolved.WithLabelValues("new_person").Inc()
			} else {
				observability.FacesResolved.WithLabelValues("matched").Inc()
			}

			face := &models.Face{
				PhotoID:    task.PhotoID,
				PersonID:   &personID,
				Embedding:  det.Embedding,
				BBox:       det.BBox,
				Confidence: det.Confidence,
			}
			if err := tx.InsertFace(ctx, face); err != nil {
				return err
			}
			result.Faces++
		}
		return nil
	})
	observability.ResolveDuration.WithLabelValues("assign").Observe(time.Since(start).Seconds())
	if err != nil {
		observability.ResolveJobs.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("resolve photo %d: %w", task.PhotoID, err)
	}

	if result.Skipped {
		slog.Info("photo resolved concurrently, skipping", "photo_id", task.PhotoID)
		observability.ResolveJobs.WithLabelValues("skipped").Inc()
		return result, nil
	}

	observability.ResolveJobs.WithLabelValues("ok").Inc()
	slog.Info("photo resolved",
		"photo_id", task.PhotoID,
		"faces", result.Faces,
		"new_persons", result.NewPersons,
	)
	return result, nil
}

// assign decides the person for one embedding: the best-scoring
// representative wins if strictly above the threshold, otherwise a new
// person is created. A tie at exactly the threshold does not match.
func (r *Resolver) assign(ctx context.Context, tx Tx, reps []Representative, embedding []float32) (personID int64, created bool, err error) {
	var (
		bestID    int64
		bestScore float64
		matched   bool
	)
	for _, rep := range reps {
		if len(rep.Embedding) != len(embedding) {
			// Mixed embedding dimensionalities mean the deployment is
			// misconfigured; fail the job rather than guessing.
			return 0, false, fmt.Errorf("embedding dimensionality mismatch: person %d has %d, new face has %d",
				rep.PersonID, len(rep.Embedding), len(embedding))
		}
		if score := Similarity(embedding, rep.Embedding); score > bestScore {
			bestID = rep.PersonID
			bestScore = score
			matched = true
		}
	}

	if matched && bestScore > r.threshold {
		return bestID, false, nil
	}

	id, err := tx.CreatePerson(ctx)
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}
