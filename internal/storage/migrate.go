package storage

import (
	"context"
	"fmt"
	"log/slog"
)

// Migrate creates the schema if it does not exist. Idempotent; run by the
// API at startup. embeddingDim fixes the vector column width — it is set
// once per deployment and mixing dimensionalities is not supported.
func (s *PostgresStore) Migrate(ctx context.Context, embeddingDim int) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,

		`CREATE TABLE IF NOT EXISTS photos (
			id BIGSERIAL PRIMARY KEY,
			uploader TEXT,
			original_filename TEXT NOT NULL,
			object_key TEXT NOT NULL UNIQUE,
			content_type TEXT NOT NULL DEFAULT '',
			size_bytes BIGINT NOT NULL,
			width INT NOT NULL DEFAULT 0,
			height INT NOT NULL DEFAULT 0,
			sha256 CHAR(64) NOT NULL UNIQUE,
			uploaded_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,

		`CREATE TABLE IF NOT EXISTS persons (
			id BIGSERIAL PRIMARY KEY,
			name TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS faces (
			id BIGSERIAL PRIMARY KEY,
			photo_id BIGINT NOT NULL REFERENCES photos(id) ON DELETE CASCADE,
			person_id BIGINT REFERENCES persons(id) ON DELETE SET NULL,
			embedding vector(%d) NOT NULL,
			bbox JSONB NOT NULL,
			confidence REAL NOT NULL DEFAULT 0,
			detected_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, embeddingDim),

		`CREATE INDEX IF NOT EXISTS idx_faces_photo_id ON faces(photo_id)`,
		`CREATE INDEX IF NOT EXISTS idx_faces_person_id ON faces(person_id)`,
		`CREATE INDEX IF NOT EXISTS idx_photos_uploader ON photos(uploader)`,
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	slog.Info("database schema ensured", "embedding_dim", embeddingDim)
	return nil
}
