package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"github.com/visionid/visionid/internal/database"
)

// IdentityRepository provides PostgreSQL-backed identity storage.
type IdentityRepository struct {
	pool *Pool
}

// NewIdentityRepository creates a new PostgreSQL identity repository.
func NewIdentityRepository(pool *Pool) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

const identityColumns = "id, name, embedding, dim, image_path, metadata, created_at, updated_at"

// scanIdentity scans a single identity row.
func scanIdentity(row *sql.Row) (*database.Identity, error) {
	var identity database.Identity
	var vec pgvector.Vector

	err := row.Scan(
		&identity.ID,
		&identity.Name,
		&vec,
		&identity.Dim,
		&identity.ImagePath,
		&identity.Metadata,
		&identity.CreatedAt,
		&identity.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan identity: %w", err)
	}

	identity.Embedding = vec.Slice()
	return &identity, nil
}

// Get retrieves an identity by ID, returns nil if not found.
func (r *IdentityRepository) Get(ctx context.Context, id string) (*database.Identity, error) {
	query := fmt.Sprintf("SELECT %s FROM identities WHERE id = $1", identityColumns)
	return scanIdentity(r.pool.QueryRow(ctx, query, id))
}

// GetByName retrieves an identity by name, returns nil if not found.
// When several identities share a name, the earliest enrollment wins.
func (r *IdentityRepository) GetByName(ctx context.Context, name string) (*database.Identity, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM identities WHERE name = $1 ORDER BY created_at, id LIMIT 1", identityColumns,
	)
	return scanIdentity(r.pool.QueryRow(ctx, query, name))
}

// List returns identities with pagination, ordered by enrollment time.
func (r *IdentityRepository) List(ctx context.Context, limit, offset int) ([]database.Identity, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM identities ORDER BY created_at, id LIMIT $1 OFFSET $2", identityColumns,
	)

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query identities: %w", err)
	}
	defer rows.Close()

	var identities []database.Identity
	for rows.Next() {
		var identity database.Identity
		var vec pgvector.Vector
		if err := rows.Scan(
			&identity.ID, &identity.Name, &vec, &identity.Dim,
			&identity.ImagePath, &identity.Metadata, &identity.CreatedAt, &identity.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		identity.Embedding = vec.Slice()
		identities = append(identities, identity)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identities: %w", err)
	}
	return identities, nil
}

// Count returns the total number of enrolled identities.
func (r *IdentityRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM identities").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count identities: %w", err)
	}
	return count, nil
}

// ListGalleryEntries returns every identity's matching projection.
// The ORDER BY clause makes iteration order stable across calls; the matcher
// relies on it as the tie-break for equal similarity scores.
func (r *IdentityRepository) ListGalleryEntries(ctx context.Context) ([]database.GalleryEntry, error) {
	query := "SELECT id, name, embedding FROM identities ORDER BY created_at, id"

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query gallery entries: %w", err)
	}
	defer rows.Close()

	var entries []database.GalleryEntry
	for rows.Next() {
		var entry database.GalleryEntry
		var vec pgvector.Vector
		if err := rows.Scan(&entry.IdentityID, &entry.Name, &vec); err != nil {
			return nil, fmt.Errorf("scan gallery entry: %w", err)
		}
		entry.Embedding = vec.Slice()
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate gallery entries: %w", err)
	}
	return entries, nil
}

// Save inserts a new identity or replaces the stored embedding and metadata
// of an existing one.
func (r *IdentityRepository) Save(ctx context.Context, identity *database.Identity) error {
	query := `
		INSERT INTO identities (id, name, embedding, dim, image_path, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			embedding = EXCLUDED.embedding,
			dim = EXCLUDED.dim,
			image_path = EXCLUDED.image_path,
			metadata = EXCLUDED.metadata,
			updated_at = NOW()
	`

	_, err := r.pool.Exec(ctx, query,
		identity.ID,
		identity.Name,
		pgvector.NewVector(identity.Embedding),
		identity.Dim,
		identity.ImagePath,
		identity.Metadata,
	)
	if err != nil {
		return fmt.Errorf("save identity: %w", err)
	}
	return nil
}

// Delete removes an identity. Returns false if it did not exist.
func (r *IdentityRepository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.pool.Exec(ctx, "DELETE FROM identities WHERE id = $1", id)
	if err != nil {
		return false, fmt.Errorf("delete identity: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete identity rows affected: %w", err)
	}
	return affected > 0, nil
}
