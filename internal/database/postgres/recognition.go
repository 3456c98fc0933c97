package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/visionid/visionid/internal/database"
)

// RecognitionRepository provides PostgreSQL-backed storage for the
// recognition audit trail.
type RecognitionRepository struct {
	pool *Pool
}

// NewRecognitionRepository creates a new PostgreSQL recognition repository.
func NewRecognitionRepository(pool *Pool) *RecognitionRepository {
	return &RecognitionRepository{pool: pool}
}

const recognitionColumns = "id, identity_id, identity_name, score, matched, embedding, logged_at"

// Log appends one recognition attempt and fills in its ID and timestamp.
// The identity ID is stored as NULL for unrecognized faces.
func (r *RecognitionRepository) Log(ctx context.Context, record *database.RecognitionRecord) error {
	var identityID any
	if record.IdentityID != "" {
		identityID = record.IdentityID
	}

	query := `
		INSERT INTO recognition_history (identity_id, identity_name, score, matched, embedding)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, logged_at
	`

	err := r.pool.QueryRow(ctx, query,
		identityID, record.IdentityName, record.Score, record.Matched, record.Embedding,
	).Scan(&record.ID, &record.LoggedAt)
	if err != nil {
		return fmt.Errorf("log recognition attempt: %w", err)
	}
	return nil
}

// scanRecognitionRows scans recognition history rows.
func scanRecognitionRows(rows rowScanner) ([]database.RecognitionRecord, error) {
	var records []database.RecognitionRecord
	for rows.Next() {
		var record database.RecognitionRecord
		var identityID sql.NullString
		if err := rows.Scan(
			&record.ID, &identityID, &record.IdentityName,
			&record.Score, &record.Matched, &record.Embedding, &record.LoggedAt,
		); err != nil {
			return nil, fmt.Errorf("scan recognition record: %w", err)
		}
		record.IdentityID = identityID.String
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recognition records: %w", err)
	}
	return records, nil
}

// History returns the most recent recognition attempts.
func (r *RecognitionRepository) History(ctx context.Context, limit int) ([]database.RecognitionRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM recognition_history
		ORDER BY logged_at DESC, id DESC
		LIMIT $1
	`, recognitionColumns)

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query recognition history: %w", err)
	}
	defer rows.Close()

	return scanRecognitionRows(rows)
}

// HistoryByIdentity returns the most recent attempts for one identity.
func (r *RecognitionRepository) HistoryByIdentity(
	ctx context.Context, identityID string, limit int,
) ([]database.RecognitionRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM recognition_history
		WHERE identity_id = $1
		ORDER BY logged_at DESC, id DESC
		LIMIT $2
	`, recognitionColumns)

	rows, err := r.pool.Query(ctx, query, identityID, limit)
	if err != nil {
		return nil, fmt.Errorf("query recognition history by identity: %w", err)
	}
	defer rows.Close()

	return scanRecognitionRows(rows)
}
