package resolve

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/your-org/photoid/internal/models"
)

// fakeStore is an in-memory Store with the same semantics the resolver
// relies on: a global lock around match-or-create, atomic commit of a job's
// writes, representatives in face insertion order.
type fakeStore struct {
	mu           sync.Mutex
	nextPersonID int64
	nextFaceID   int64
	persons      []int64
	faces        []models.Face

	// guardStale makes the store-level guard lie, simulating a stale read
	// racing a job that commits between the guard and the lock.
	guardStale bool
}

func (s *fakeStore) PhotoHasFaces(_ context.Context, photoID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.guardStale {
		return false, nil
	}
	for _, f := range s.faces {
		if f.PhotoID == photoID {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) WithResolveLock(_ context.Context, fn func(Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &fakeTx{store: s}
	if err := fn(tx); err != nil {
		return err // staged writes discarded
	}

	// Commit.
	s.persons = append(s.persons, tx.newPersons...)
	s.faces = append(s.faces, tx.newFaces...)
	return nil
}

func (s *fakeStore) faceCount(photoID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, f := range s.faces {
		if f.PhotoID == photoID {
			n++
		}
	}
	return n
}

type fakeTx struct {
	store      *fakeStore
	newPersons []int64
	newFaces   []models.Face
}

func (t *fakeTx) PhotoHasFaces(_ context.Context, photoID int64) (bool, error) {
	for _, f := range t.store.faces {
		if f.PhotoID == photoID {
			return true, nil
		}
	}
	for _, f := range t.newFaces {
		if f.PhotoID == photoID {
			return true, nil
		}
	}
	return false, nil
}

func (t *fakeTx) Representatives(_ context.Context) ([]Representative, error) {
	seen := make(map[int64]bool)
	var reps []Representative
	for _, f := range t.store.faces {
		if f.PersonID == nil || seen[*f.PersonID] {
			continue
		}
		seen[*f.PersonID] = true
		// Undecodable embeddings are skipped, matching the store.
		if len(f.Embedding) == 0 {
			continue
		}
		reps = append(reps, Representative{PersonID: *f.PersonID, Embedding: f.Embedding})
	}
	return reps, nil
}

func (t *fakeTx) CreatePerson(_ context.Context) (int64, error) {
	t.store.nextPersonID++
	id := t.store.nextPersonID
	t.newPersons = append(t.newPersons, id)
	return id, nil
}

func (t *fakeTx) InsertFace(_ context.Context, face *models.Face) error {
	t.store.nextFaceID++
	face.ID = t.store.nextFaceID
	t.newFaces = append(t.newFaces, *face)
	return nil
}

type fakeObjects struct{}

func (fakeObjects) GetObject(_ context.Context, _ string) ([]byte, error) {
	return []byte("image-bytes"), nil
}

type fakeExtractor struct {
	detections []models.Detection
	err        error
	calls      int
}

func (e *fakeExtractor) Extract(_ context.Context, _ []byte) ([]models.Detection, error) {
	e.calls++
	return e.detections, e.err
}

func det(embedding ...float32) models.Detection {
	return models.Detection{Embedding: embedding, Confidence: 0.9}
}

func TestProcessPhotoSequentialSamePerson(t *testing.T) {
	store := &fakeStore{}
	objects := fakeObjects{}
	embedding := []float32{0.1, 0.9, 0.4}

	// Two photos, each containing one face of the same never-before-seen
	// individual, resolved strictly sequentially.
	for photoID := int64(1); photoID <= 2; photoID++ {
		resolver := NewResolver(store, objects, &fakeExtractor{detections: []models.Detection{det(embedding...)}}, 0.6)
		result, err := resolver.ProcessPhoto(context.Background(), models.ResolveTask{PhotoID: photoID, ObjectKey: "k"})
		if err != nil {
			t.Fatalf("ProcessPhoto(%d) failed: %v", photoID, err)
		}
		if result.Faces != 1 {
			t.Errorf("photo %d: Faces = %d, want 1", photoID, result.Faces)
		}
	}

	if len(store.persons) != 1 {
		t.Errorf("created %d persons, want exactly 1", len(store.persons))
	}
	if len(store.faces) != 2 {
		t.Errorf("stored %d faces, want 2", len(store.faces))
	}
	for _, f := range store.faces {
		if f.PersonID == nil || *f.PersonID != store.persons[0] {
			t.Errorf("face %d assigned to %v, want person %d", f.ID, f.PersonID, store.persons[0])
		}
	}
}

func TestProcessPhotoThresholdExclusive(t *testing.T) {
	store := &fakeStore{}
	seed := NewResolver(store, fakeObjects{}, &fakeExtractor{detections: []models.Detection{det(1, 0)}}, 0.6)
	if _, err := seed.ProcessPhoto(context.Background(), models.ResolveTask{PhotoID: 1, ObjectKey: "k"}); err != nil {
		t.Fatalf("seed ProcessPhoto failed: %v", err)
	}

	// Similarity((3,4), (1,0)) is exactly 0.6 — a tie at the threshold must
	// seed a new person, not match.
	resolver := NewResolver(store, fakeObjects{}, &fakeExtractor{detections: []models.Detection{det(3, 4)}}, 0.6)
	if _, err := resolver.ProcessPhoto(context.Background(), models.ResolveTask{PhotoID: 2, ObjectKey: "k"}); err != nil {
		t.Fatalf("ProcessPhoto failed: %v", err)
	}

	if len(store.persons) != 2 {
		t.Errorf("created %d persons, want 2 (tie at threshold must not match)", len(store.persons))
	}
}

func TestProcessPhotoAboveThresholdMatches(t *testing.T) {
	store := &fakeStore{}
	seed := NewResolver(store, fakeObjects{}, &fakeExtractor{detections: []models.Detection{det(0.2, 0.8, 0.5)}}, 0.6)
	if _, err := seed.ProcessPhoto(context.Background(), models.ResolveTask{PhotoID: 1, ObjectKey: "k"}); err != nil {
		t.Fatalf("seed ProcessPhoto failed: %v", err)
	}

	// A nearby embedding (similarity well above 0.6) must join the person.
	resolver := NewResolver(store, fakeObjects{}, &fakeExtractor{detections: []models.Detection{det(0.21, 0.79, 0.52)}}, 0.6)
	result, err := resolver.ProcessPhoto(context.Background(), models.ResolveTask{PhotoID: 2, ObjectKey: "k"})
	if err != nil {
		t.Fatalf("ProcessPhoto failed: %v", err)
	}

	if result.NewPersons != 0 {
		t.Errorf("NewPersons = %d, want 0", result.NewPersons)
	}
	if len(store.persons) != 1 {
		t.Errorf("created %d persons, want 1", len(store.persons))
	}
}

func TestProcessPhotoReadYourOwnWriteWithinPhoto(t *testing.T) {
	store := &fakeStore{}
	// One photo with two occurrences of the same individual: the person
	// created for the first face must be visible to the second.
	extractor := &fakeExtractor{detections: []models.Detection{
		det(0.5, 0.5, 0.1),
		det(0.5, 0.5, 0.1),
	}}
	resolver := NewResolver(store, fakeObjects{}, extractor, 0.6)

	result, err := resolver.ProcessPhoto(context.Background(), models.ResolveTask{PhotoID: 1, ObjectKey: "k"})
	if err != nil {
		t.Fatalf("ProcessPhoto failed: %v", err)
	}

	if result.Faces != 2 {
		t.Errorf("Faces = %d, want 2", result.Faces)
	}
	if result.NewPersons != 1 {
		t.Errorf("NewPersons = %d, want 1", result.NewPersons)
	}
	if len(store.persons) != 1 {
		t.Errorf("created %d persons, want 1", len(store.persons))
	}
}

func TestProcessPhotoZeroDetections(t *testing.T) {
	store := &fakeStore{}
	resolver := NewResolver(store, fakeObjects{}, &fakeExtractor{}, 0.6)

	result, err := resolver.ProcessPhoto(context.Background(), models.ResolveTask{PhotoID: 1, ObjectKey: "k"})
	if err != nil {
		t.Fatalf("ProcessPhoto failed: %v", err)
	}

	if result.Faces != 0 || result.NewPersons != 0 || result.Skipped {
		t.Errorf("result = %+v, want zero faces, zero persons, not skipped", result)
	}
	if len(store.faces) != 0 || len(store.persons) != 0 {
		t.Errorf("store mutated: %d faces, %d persons", len(store.faces), len(store.persons))
	}
}

func TestProcessPhotoExtractionFailureAbortsJob(t *testing.T) {
	store := &fakeStore{}
	resolver := NewResolver(store, fakeObjects{}, &fakeExtractor{err: errors.New("model unavailable")}, 0.6)

	if _, err := resolver.ProcessPhoto(context.Background(), models.ResolveTask{PhotoID: 1, ObjectKey: "k"}); err == nil {
		t.Fatal("ProcessPhoto should fail when extraction fails")
	}

	if len(store.faces) != 0 || len(store.persons) != 0 {
		t.Errorf("partial persistence after failed extraction: %d faces, %d persons", len(store.faces), len(store.persons))
	}
}

func TestProcessPhotoSkipsCompletedJob(t *testing.T) {
	store := &fakeStore{}
	extractor := &fakeExtractor{detections: []models.Detection{det(1, 0)}}
	resolver := NewResolver(store, fakeObjects{}, extractor, 0.6)

	if _, err := resolver.ProcessPhoto(context.Background(), models.ResolveTask{PhotoID: 1, ObjectKey: "k"}); err != nil {
		t.Fatalf("first ProcessPhoto failed: %v", err)
	}

	// Redelivery of the same task must not duplicate faces.
	result, err := resolver.ProcessPhoto(context.Background(), models.ResolveTask{PhotoID: 1, ObjectKey: "k"})
	if err != nil {
		t.Fatalf("second ProcessPhoto failed: %v", err)
	}

	if !result.Skipped {
		t.Error("redelivered job should report skipped")
	}
	if extractor.calls != 1 {
		t.Errorf("extractor called %d times, want 1", extractor.calls)
	}
	if got := store.faceCount(1); got != 1 {
		t.Errorf("photo has %d faces after redelivery, want 1", got)
	}
}

func TestProcessPhotoDimensionMismatchFailsLoudly(t *testing.T) {
	store := &fakeStore{}
	seed := NewResolver(store, fakeObjects{}, &fakeExtractor{detections: []models.Detection{det(1, 0)}}, 0.6)
	if _, err := seed.ProcessPhoto(context.Background(), models.ResolveTask{PhotoID: 1, ObjectKey: "k"}); err != nil {
		t.Fatalf("seed ProcessPhoto failed: %v", err)
	}

	resolver := NewResolver(store, fakeObjects{}, &fakeExtractor{detections: []models.Detection{det(1, 0, 0)}}, 0.6)
	if _, err := resolver.ProcessPhoto(context.Background(), models.ResolveTask{PhotoID: 2, ObjectKey: "k"}); err == nil {
		t.Fatal("ProcessPhoto should fail on embedding dimensionality mismatch")
	}

	if got := store.faceCount(2); got != 0 {
		t.Errorf("photo 2 has %d faces after failed job, want 0", got)
	}
}

func TestProcessPhotoDoubleScheduleRecheckedUnderLock(t *testing.T) {
	store := &fakeStore{}
	extractor := &fakeExtractor{detections: []models.Detection{det(1, 0)}}
	resolver := NewResolver(store, fakeObjects{}, extractor, 0.6)

	if _, err := resolver.ProcessPhoto(context.Background(), models.ResolveTask{PhotoID: 1, ObjectKey: "k"}); err != nil {
		t.Fatalf("first ProcessPhoto failed: %v", err)
	}

	// A double-scheduled job whose unlocked guard read predates the first
	// job's commit must still come up empty inside the lock.
	store.guardStale = true
	result, err := resolver.ProcessPhoto(context.Background(), models.ResolveTask{PhotoID: 1, ObjectKey: "k"})
	if err != nil {
		t.Fatalf("second ProcessPhoto failed: %v", err)
	}

	if !result.Skipped {
		t.Error("duplicate job should report skipped")
	}
	if result.Faces != 0 {
		t.Errorf("Faces = %d, want 0", result.Faces)
	}
	store.guardStale = false
	if got := store.faceCount(1); got != 1 {
		t.Errorf("photo has %d faces after double schedule, want 1", got)
	}
}

func TestProcessPhotoToleratesSkippedRepresentative(t *testing.T) {
	store := &fakeStore{}
	// Person 1's only face carries an undecodable embedding; its
	// representative is skipped on load rather than failing the job.
	personID := int64(1)
	store.nextPersonID = 1
	store.nextFaceID = 1
	store.persons = []int64{personID}
	store.faces = []models.Face{{ID: 1, PhotoID: 1, PersonID: &personID}}

	resolver := NewResolver(store, fakeObjects{}, &fakeExtractor{detections: []models.Detection{det(1, 0)}}, 0.6)
	result, err := resolver.ProcessPhoto(context.Background(), models.ResolveTask{PhotoID: 2, ObjectKey: "k"})
	if err != nil {
		t.Fatalf("ProcessPhoto failed: %v", err)
	}

	if result.Faces != 1 || result.NewPersons != 1 {
		t.Errorf("result = %+v, want 1 face in 1 new person", result)
	}
	if len(store.persons) != 2 {
		t.Errorf("have %d persons, want 2 (unmatchable person left alone)", len(store.persons))
	}
}

func TestProcessPhotoConcurrentJobsCreateOnePerson(t *testing.T) {
	store := &fakeStore{}
	embedding := []float32{0.3, 0.6, 0.75}

	// Two photos of the same unseen individual racing: the lock serializes
	// the match-or-create decision so the loser matches the winner's person.
	var wg sync.WaitGroup
	for photoID := int64(1); photoID <= 2; photoID++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			resolver := NewResolver(store, fakeObjects{}, &fakeExtractor{detections: []models.Detection{det(embedding...)}}, 0.6)
			if _, err := resolver.ProcessPhoto(context.Background(), models.ResolveTask{PhotoID: id, ObjectKey: "k"}); err != nil {
				t.Errorf("ProcessPhoto(%d) failed: %v", id, err)
			}
		}(photoID)
	}
	wg.Wait()

	if len(store.persons) != 1 {
		t.Errorf("created %d persons under concurrency, want exactly 1", len(store.persons))
	}
	if len(store.faces) != 2 {
		t.Errorf("stored %d faces, want 2", len(store.faces))
	}
}
