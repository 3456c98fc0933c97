package database

import (
	"context"
	"time"
)

// IdentityReader provides read-only access to enrolled identities.
type IdentityReader interface {
	// Get retrieves an identity by ID, returns nil if not found
	Get(ctx context.Context, id string) (*Identity, error)
	// GetByName retrieves an identity by name, returns nil if not found
	GetByName(ctx context.Context, name string) (*Identity, error)
	// List returns identities with pagination, ordered by enrollment time
	List(ctx context.Context, limit, offset int) ([]Identity, error)
	// Count returns the total number of enrolled identities
	Count(ctx context.Context) (int, error)
	// ListGalleryEntries returns every identity's matching projection in a
	// stable order (enrollment time, then ID). The Batch Coordinator takes
	// exactly one such snapshot per batch; iteration order is the tie-break
	// for equal similarity scores, so it must be deterministic.
	ListGalleryEntries(ctx context.Context) ([]GalleryEntry, error)
}

// IdentityWriter provides write access to enrolled identities.
type IdentityWriter interface {
	IdentityReader

	// Save inserts a new identity or replaces the stored embedding and
	// metadata of an existing one (one embedding per identity).
	Save(ctx context.Context, identity *Identity) error

	// Delete removes an identity. Returns false if it did not exist.
	Delete(ctx context.Context, id string) (bool, error)
}

// AttendanceReader provides read-only access to attendance logs.
type AttendanceReader interface {
	// Today returns all attendance records marked today
	Today(ctx context.Context) ([]AttendanceLog, error)
	// Range returns attendance records between start and end (inclusive),
	// optionally filtered to a set of identity IDs
	Range(ctx context.Context, start, end time.Time, identityIDs []string) ([]AttendanceLog, error)
	// ByIdentity returns the most recent attendance records for one identity
	ByIdentity(ctx context.Context, identityID string, limit int) ([]AttendanceLog, error)
	// CountToday returns the number of distinct identities marked today
	CountToday(ctx context.Context) (int, error)
}

// AttendanceWriter provides write access to attendance logs.
type AttendanceWriter interface {
	AttendanceReader

	// Mark appends one attendance record and fills in its ID and timestamp
	Mark(ctx context.Context, log *AttendanceLog) error
}

// RecognitionReader provides read-only access to the recognition audit trail.
type RecognitionReader interface {
	// History returns the most recent recognition attempts
	History(ctx context.Context, limit int) ([]RecognitionRecord, error)
	// HistoryByIdentity returns the most recent attempts for one identity
	HistoryByIdentity(ctx context.Context, identityID string, limit int) ([]RecognitionRecord, error)
}

// RecognitionWriter provides write access to the recognition audit trail.
type RecognitionWriter interface {
	RecognitionReader

	// Log appends one recognition attempt and fills in its ID and timestamp
	Log(ctx context.Context, record *RecognitionRecord) error
}
