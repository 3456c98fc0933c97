package recognition

import (
	"context"
	"fmt"

	"github.com/visionid/visionid/internal/database"
	"github.com/visionid/visionid/internal/embedding"
)

// Recorder persists the side effects of a finished batch: the audit trail and
// attendance marks.
type Recorder interface {
	// RecordBatch persists all outcomes of one batch. A persistence failure
	// for one outcome is stored in that outcome's RecordError and never stops
	// the others.
	RecordBatch(ctx context.Context, outcomes []Outcome)
}

// PersistingRecorder writes outcomes to the attendance and recognition
// repositories. Every outcome gets a history record, demoted duplicates
// included; only accepted outcomes mark attendance.
type PersistingRecorder struct {
	attendance  database.AttendanceWriter
	recognition database.RecognitionWriter
}

// NewPersistingRecorder creates a recorder backed by the given repositories.
func NewPersistingRecorder(attendance database.AttendanceWriter, recognition database.RecognitionWriter) *PersistingRecorder {
	return &PersistingRecorder{
		attendance:  attendance,
		recognition: recognition,
	}
}

// NewHistoryRecorder creates a recorder that writes the audit trail but never
// marks attendance. The plain recognize endpoints use it; only the attendance
// mark flow gets the full recorder.
func NewHistoryRecorder(recognition database.RecognitionWriter) *PersistingRecorder {
	return &PersistingRecorder{recognition: recognition}
}

// RecordBatch persists each outcome in face-index order.
func (r *PersistingRecorder) RecordBatch(ctx context.Context, outcomes []Outcome) {
	for i := range outcomes {
		outcomes[i].RecordError = r.recordOne(ctx, &outcomes[i])
	}
}

func (r *PersistingRecorder) recordOne(ctx context.Context, outcome *Outcome) error {
	record := &database.RecognitionRecord{
		IdentityID:   outcome.IdentityID,
		IdentityName: outcome.IdentityName,
		Score:        outcome.Score,
		Matched:      outcome.Matched(),
	}
	if len(outcome.Embedding) > 0 {
		record.Embedding = embedding.Encode(outcome.Embedding)
	}

	if err := r.recognition.Log(ctx, record); err != nil {
		return fmt.Errorf("log recognition outcome: %w", err)
	}

	if outcome.State != StateAccepted || r.attendance == nil {
		return nil
	}

	log := &database.AttendanceLog{
		IdentityID:   outcome.IdentityID,
		IdentityName: outcome.IdentityName,
		Score:        outcome.Score,
	}
	if err := r.attendance.Mark(ctx, log); err != nil {
		return fmt.Errorf("mark attendance: %w", err)
	}
	return nil
}
