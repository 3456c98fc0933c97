package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/visionid/visionid/internal/database"
)

// AttendanceRepository provides PostgreSQL-backed attendance logging.
type AttendanceRepository struct {
	pool *Pool
}

// NewAttendanceRepository creates a new PostgreSQL attendance repository.
func NewAttendanceRepository(pool *Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

const attendanceColumns = "id, identity_id, identity_name, marked_at, status, score"

// Mark appends one attendance record and fills in its ID and timestamp.
func (r *AttendanceRepository) Mark(ctx context.Context, log *database.AttendanceLog) error {
	if log.Status == "" {
		log.Status = database.StatusPresent
	}

	query := `
		INSERT INTO attendance_logs (identity_id, identity_name, status, score)
		VALUES ($1, $2, $3, $4)
		RETURNING id, marked_at
	`

	err := r.pool.QueryRow(ctx, query, log.IdentityID, log.IdentityName, log.Status, log.Score).
		Scan(&log.ID, &log.MarkedAt)
	if err != nil {
		return fmt.Errorf("mark attendance: %w", err)
	}
	return nil
}

// scanAttendanceRows scans attendance log rows.
func scanAttendanceRows(rows rowScanner) ([]database.AttendanceLog, error) {
	var logs []database.AttendanceLog
	for rows.Next() {
		var log database.AttendanceLog
		if err := rows.Scan(
			&log.ID, &log.IdentityID, &log.IdentityName, &log.MarkedAt, &log.Status, &log.Score,
		); err != nil {
			return nil, fmt.Errorf("scan attendance log: %w", err)
		}
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance logs: %w", err)
	}
	return logs, nil
}

// rowScanner is the subset of sql.Rows used by the scan helpers.
type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// Today returns all attendance records marked today.
func (r *AttendanceRepository) Today(ctx context.Context) ([]database.AttendanceLog, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM attendance_logs
		WHERE marked_at::date = CURRENT_DATE
		ORDER BY marked_at
	`, attendanceColumns)

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query today's attendance: %w", err)
	}
	defer rows.Close()

	return scanAttendanceRows(rows)
}

// Range returns attendance records between start and end (inclusive),
// optionally filtered to a set of identity IDs.
func (r *AttendanceRepository) Range(
	ctx context.Context, start, end time.Time, identityIDs []string,
) ([]database.AttendanceLog, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM attendance_logs
		WHERE marked_at >= $1 AND marked_at <= $2
	`, attendanceColumns)

	args := []any{start, end}
	if len(identityIDs) > 0 {
		query += " AND identity_id = ANY($3)"
		args = append(args, pq.Array(identityIDs))
	}
	query += " ORDER BY marked_at"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query attendance range: %w", err)
	}
	defer rows.Close()

	return scanAttendanceRows(rows)
}

// ByIdentity returns the most recent attendance records for one identity.
func (r *AttendanceRepository) ByIdentity(
	ctx context.Context, identityID string, limit int,
) ([]database.AttendanceLog, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM attendance_logs
		WHERE identity_id = $1
		ORDER BY marked_at DESC
		LIMIT $2
	`, attendanceColumns)

	rows, err := r.pool.Query(ctx, query, identityID, limit)
	if err != nil {
		return nil, fmt.Errorf("query attendance by identity: %w", err)
	}
	defer rows.Close()

	return scanAttendanceRows(rows)
}

// CountToday returns the number of distinct identities marked today.
func (r *AttendanceRepository) CountToday(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(
		ctx, "SELECT COUNT(DISTINCT identity_id) FROM attendance_logs WHERE marked_at::date = CURRENT_DATE",
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count today's attendance: %w", err)
	}
	return count, nil
}
