package database

import (
	"time"
)

// Identity represents an enrolled identity with its face embedding.
// Each identity holds exactly one embedding at a time; re-enrollment
// replaces it.
type Identity struct {
	ID        string
	Name      string
	Embedding []float32
	Dim       int
	ImagePath string
	Metadata  string // JSON string for additional info
	CreatedAt time.Time
	UpdatedAt time.Time
}

// GalleryEntry is the minimal projection of an identity used for matching.
type GalleryEntry struct {
	IdentityID string
	Name       string
	Embedding  []float32
}

// AttendanceLog represents one attendance mark for an identity.
type AttendanceLog struct {
	ID           int64
	IdentityID   string
	IdentityName string
	MarkedAt     time.Time
	Status       string // present, late
	Score        float64
}

// RecognitionRecord represents one recognition attempt, matched or not.
// Unlike attendance marks, recognition records are a full audit trail and are
// never deduplicated.
type RecognitionRecord struct {
	ID           int64
	IdentityID   string // empty if the face was not recognized
	IdentityName string
	Score        float64
	Matched      bool
	Embedding    []byte // probe vector, raw little-endian float32 bytes
	LoggedAt     time.Time
}

// AttendanceStats summarizes attendance across all identities.
type AttendanceStats struct {
	TotalRegistered int
	PresentToday    int
	OverallRate     float64 // PresentToday / TotalRegistered, 0 when none registered
}

// Attendance status values.
const (
	StatusPresent = "present"
	StatusLate    = "late"
)
