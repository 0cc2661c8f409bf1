package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/photoid/internal/config"
	"github.com/your-org/photoid/internal/models"
	"github.com/your-org/photoid/internal/resolve"
)

var (
	// ErrDuplicatePhoto means a photo with the same content digest already
	// exists. The sha256 unique constraint makes concurrent identical
	// uploads lose deterministically.
	ErrDuplicatePhoto = errors.New("photo with this content digest already exists")

	ErrNotFound = errors.New("not found")
)

// resolveLockKey is the advisory lock serializing match-or-create decisions
// across concurrent resolution jobs. One global key: person creation is rare
// relative to face matching, so a single critical section is acceptable.
const resolveLockKey int64 = 0x70686f746f6964 // "photoid"

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Photos ---

const photoColumns = `id, uploader, original_filename, object_key, content_type, size_bytes, width, height, sha256, uploaded_at`

func scanPhoto(row pgx.Row) (*models.Photo, error) {
	p := &models.Photo{}
	err := row.Scan(&p.ID, &p.Uploader, &p.OriginalFilename, &p.ObjectKey, &p.ContentType,
		&p.SizeBytes, &p.Width, &p.Height, &p.SHA256, &p.UploadedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// CreatePhoto inserts a photo row. It returns ErrDuplicatePhoto when a row
// with the same sha256 already exists, relying on the unique constraint so
// two identical concurrent uploads cannot both succeed.
func (s *PostgresStore) CreatePhoto(ctx context.Context, p *models.Photo) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO photos (uploader, original_filename, object_key, content_type, size_bytes, width, height, sha256)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, uploaded_at`,
		p.Uploader, p.OriginalFilename, p.ObjectKey, p.ContentType, p.SizeBytes, p.Width, p.Height, p.SHA256,
	).Scan(&p.ID, &p.UploadedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicatePhoto
		}
		return fmt.Errorf("create photo: %w", err)
	}
	return nil
}

func (s *PostgresStore) PhotoBySHA256(ctx context.Context, digest string) (*models.Photo, error) {
	p, err := scanPhoto(s.pool.QueryRow(ctx,
		`SELECT `+photoColumns+` FROM photos WHERE sha256 = $1`, digest))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("photo by sha256: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) GetPhoto(ctx context.Context, id int64) (*models.Photo, error) {
	p, err := scanPhoto(s.pool.QueryRow(ctx,
		`SELECT `+photoColumns+` FROM photos WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get photo: %w", err)
	}
	return p, nil
}

// ListPhotos returns photos newest-first, optionally filtered by uploader.
func (s *PostgresStore) ListPhotos(ctx context.Context, uploader *string) ([]models.Photo, error) {
	query := `SELECT ` + photoColumns + ` FROM photos ORDER BY uploaded_at DESC, id DESC`
	args := []interface{}{}
	if uploader != nil {
		query = `SELECT ` + photoColumns + ` FROM photos WHERE uploader = $1 ORDER BY uploaded_at DESC, id DESC`
		args = append(args, *uploader)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}
	defer rows.Close()

	var photos []models.Photo
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		photos = append(photos, *p)
	}
	return photos, rows.Err()
}

// DeletePhoto removes a photo row; its faces go with it via the cascade.
// Persons referenced by those faces are left intact even at zero faces.
// Returns the stored object key so the caller can delete the blob.
func (s *PostgresStore) DeletePhoto(ctx context.Context, id int64) (string, error) {
	var objectKey string
	err := s.pool.QueryRow(ctx,
		`DELETE FROM photos WHERE id = $1 RETURNING object_key`, id).Scan(&objectKey)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("delete photo: %w", err)
	}
	return objectKey, nil
}

// PhotosWithoutFaces returns every photo with zero associated faces,
// oldest first. Used by the reconciliation operation.
func (s *PostgresStore) PhotosWithoutFaces(ctx context.Context) ([]models.Photo, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+photoColumns+` FROM photos p
		 WHERE NOT EXISTS (SELECT 1 FROM faces f WHERE f.photo_id = p.id)
		 ORDER BY p.id`)
	if err != nil {
		return nil, fmt.Errorf("photos without faces: %w", err)
	}
	defer rows.Close()

	var photos []models.Photo
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		photos = append(photos, *p)
	}
	return photos, rows.Err()
}

// PhotoHasFaces reports whether any face row exists for the photo. The
// resolution job uses this as its completed-job guard under at-least-once
// task delivery.
func (s *PostgresStore) PhotoHasFaces(ctx context.Context, photoID int64) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM faces WHERE photo_id = $1)`, photoID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("photo has faces: %w", err)
	}
	return exists, nil
}

// --- Faces ---

func (s *PostgresStore) FacesByPhoto(ctx context.Context, photoID int64) ([]models.Face, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, photo_id, person_id, bbox, confidence, detected_at
		 FROM faces WHERE photo_id = $1 ORDER BY id`, photoID)
	if err != nil {
		return nil, fmt.Errorf("faces by photo: %w", err)
	}
	defer rows.Close()

	var faces []models.Face
	for rows.Next() {
		var f models.Face
		var bboxJSON []byte
		if err := rows.Scan(&f.ID, &f.PhotoID, &f.PersonID, &bboxJSON, &f.Confidence, &f.DetectedAt); err != nil {
			return nil, fmt.Errorf("scan face: %w", err)
		}
		if err := json.Unmarshal(bboxJSON, &f.BBox); err != nil {
			return nil, fmt.Errorf("decode bbox: %w", err)
		}
		faces = append(faces, f)
	}
	return faces, rows.Err()
}

// FaceMatch is one neighbour from a similar-face query.
type FaceMatch struct {
	FaceID   int64   `json:"face_id"`
	PhotoID  int64   `json:"photo_id"`
	PersonID *int64  `json:"person_id,omitempty"`
	Score    float64 `json:"score"`
}

// SimilarFaces returns the nearest stored faces to the given face by cosine
// similarity, excluding the face itself. Read-only; never part of the
// resolution write path.
func (s *PostgresStore) SimilarFaces(ctx context.Context, faceID int64, limit int) ([]FaceMatch, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.pool.Query(ctx,
		`SELECT f.id, f.photo_id, f.person_id, 1 - (f.embedding <=> ref.embedding) AS score
		 FROM faces f, (SELECT embedding FROM faces WHERE id = $1) ref
		 WHERE f.id != $1
		 ORDER BY f.embedding <=> ref.embedding
		 LIMIT $2`, faceID, limit)
	if err != nil {
		return nil, fmt.Errorf("similar faces: %w", err)
	}
	defer rows.Close()

	var matches []FaceMatch
	for rows.Next() {
		var m FaceMatch
		if err := rows.Scan(&m.FaceID, &m.PhotoID, &m.PersonID, &m.Score); err != nil {
			return nil, fmt.Errorf("scan face match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// FaceVector is one stored embedding, for offline batch clustering.
type FaceVector struct {
	FaceID    int64
	PersonID  *int64
	Embedding []float32
}

// AllFaceVectors returns every stored embedding in insertion order.
func (s *PostgresStore) AllFaceVectors(ctx context.Context) ([]FaceVector, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, person_id, embedding FROM faces ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("all face vectors: %w", err)
	}
	defer rows.Close()

	var vectors []FaceVector
	for rows.Next() {
		var fv FaceVector
		var vec pgvector.Vector
		if err := rows.Scan(&fv.FaceID, &fv.PersonID, &vec); err != nil {
			return nil, fmt.Errorf("scan face vector: %w", err)
		}
		fv.Embedding = vec.Slice()
		vectors = append(vectors, fv)
	}
	return vectors, rows.Err()
}

// --- Persons ---

// PersonSummary is a person with its current face count.
type PersonSummary struct {
	models.Person
	FaceCount int `json:"face_count"`
}

func (s *PostgresStore) ListPersons(ctx context.Context) ([]PersonSummary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT p.id, p.name, p.created_at, COUNT(f.id)
		 FROM persons p
		 LEFT JOIN faces f ON f.person_id = p.id
		 GROUP BY p.id
		 ORDER BY p.id`)
	if err != nil {
		return nil, fmt.Errorf("list persons: %w", err)
	}
	defer rows.Close()

	var persons []PersonSummary
	for rows.Next() {
		var ps PersonSummary
		if err := rows.Scan(&ps.ID, &ps.Name, &ps.CreatedAt, &ps.FaceCount); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		persons = append(persons, ps)
	}
	return persons, rows.Err()
}

func (s *PostgresStore) GetPerson(ctx context.Context, id int64) (*models.Person, error) {
	p := &models.Person{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, created_at FROM persons WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get person: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) UpdatePersonName(ctx context.Context, id int64, name string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE persons SET name = $1 WHERE id = $2`, name, id)
	if err != nil {
		return fmt.Errorf("update person name: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RepresentativeFace returns the person's display face: the earliest face row
// by primary-key order. Resolved per read, so deleting the current
// representative promotes the next-oldest face on the following read.
func (s *PostgresStore) RepresentativeFace(ctx context.Context, personID int64) (*models.Face, error) {
	var f models.Face
	var bboxJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, photo_id, person_id, bbox, confidence, detected_at
		 FROM faces WHERE person_id = $1 ORDER BY id LIMIT 1`, personID,
	).Scan(&f.ID, &f.PhotoID, &f.PersonID, &bboxJSON, &f.Confidence, &f.DetectedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("representative face: %w", err)
	}
	if err := json.Unmarshal(bboxJSON, &f.BBox); err != nil {
		return nil, fmt.Errorf("decode bbox: %w", err)
	}
	return &f, nil
}

// PersonPhotos returns every photo in which the person appears, newest-first.
func (s *PostgresStore) PersonPhotos(ctx context.Context, personID int64) ([]models.Photo, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT `+photoColumns+` FROM photos
		 WHERE id IN (SELECT photo_id FROM faces WHERE person_id = $1)
		 ORDER BY uploaded_at DESC, id DESC`, personID)
	if err != nil {
		return nil, fmt.Errorf("person photos: %w", err)
	}
	defer rows.Close()

	var photos []models.Photo
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		photos = append(photos, *p)
	}
	return photos, rows.Err()
}

// --- Resolution transaction ---

// WithResolveLock runs fn inside a transaction holding the global advisory
// lock for match-or-create decisions. The lock is released at commit or
// rollback, so at most one resolution job decides person assignments at any
// moment. All writes inside fn commit atomically or not at all.
func (s *PostgresStore) WithResolveLock(ctx context.Context, fn func(resolve.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin resolve tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, resolveLockKey); err != nil {
		return fmt.Errorf("acquire resolve lock: %w", err)
	}

	if err := fn(&resolveTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit resolve tx: %w", err)
	}
	return nil
}

type resolveTx struct {
	tx pgx.Tx
}

// PhotoHasFaces mirrors the store-level guard inside the locked
// transaction, where a job committed after the unlocked check is visible.
func (t *resolveTx) PhotoHasFaces(ctx context.Context, photoID int64) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM faces WHERE photo_id = $1)`, photoID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("photo has faces: %w", err)
	}
	return exists, nil
}

// Representatives returns one embedding per person: the first face
// historically recorded for it. Rows whose stored embedding cannot be
// decoded are skipped with a warning so one malformed vector never blocks
// resolution of unrelated photos.
func (t *resolveTx) Representatives(ctx context.Context) ([]resolve.Representative, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT DISTINCT ON (person_id) person_id, embedding
		 FROM faces WHERE person_id IS NOT NULL
		 ORDER BY person_id, id`)
	if err != nil {
		return nil, fmt.Errorf("load representatives: %w", err)
	}
	defer rows.Close()

	var reps []resolve.Representative
	for rows.Next() {
		var personID int64
		var vec pgvector.Vector
		if err := rows.Scan(&personID, &vec); err != nil {
			slog.Warn("skipping malformed representative embedding", "error", err)
			continue
		}
		emb := vec.Slice()
		if len(emb) == 0 {
			slog.Warn("skipping empty representative embedding", "person_id", personID)
			continue
		}
		reps = append(reps, resolve.Representative{PersonID: personID, Embedding: emb})
	}
	return reps, rows.Err()
}

func (t *resolveTx) CreatePerson(ctx context.Context) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO persons DEFAULT VALUES RETURNING id`).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create person: %w", err)
	}
	return id, nil
}

func (t *resolveTx) InsertFace(ctx context.Context, f *models.Face) error {
	bboxJSON, err := json.Marshal(f.BBox)
	if err != nil {
		return fmt.Errorf("encode bbox: %w", err)
	}
	vec := pgvector.NewVector(f.Embedding)
	err = t.tx.QueryRow(ctx,
		`INSERT INTO faces (photo_id, person_id, embedding, bbox, confidence)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, detected_at`,
		f.PhotoID, f.PersonID, vec, bboxJSON, f.Confidence,
	).Scan(&f.ID, &f.DetectedAt)
	if err != nil {
		return fmt.Errorf("insert face: %w", err)
	}
	return nil
}
