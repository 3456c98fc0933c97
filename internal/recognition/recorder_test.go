package recognition

import (
	"context"
	"errors"
	"testing"

	"github.com/visionid/visionid/internal/database/mock"
	"github.com/visionid/visionid/internal/embedding"
)

func TestRecordBatchWritesHistoryForEveryOutcome(t *testing.T) {
	attendance := mock.NewMockAttendanceRepo()
	recognition := mock.NewMockRecognitionRepo()
	recorder := NewPersistingRecorder(attendance, recognition)

	outcomes := []Outcome{
		{FaceIndex: 0, State: StateAccepted, IdentityID: "id-a", IdentityName: "alice", Score: 0.9, Embedding: []float32{1, 0}},
		{FaceIndex: 1, State: StateDuplicate, IdentityID: "id-a", IdentityName: "alice", Score: 0.8, Embedding: []float32{0.9, 0.1}},
		{FaceIndex: 2, State: StateBelowThreshold, Score: 0.3, Embedding: []float32{0, 1}},
		{FaceIndex: 3, State: StateNoEmbedding},
	}

	recorder.RecordBatch(context.Background(), outcomes)

	for i := range outcomes {
		if outcomes[i].RecordError != nil {
			t.Errorf("outcome %d: unexpected record error: %v", i, outcomes[i].RecordError)
		}
	}

	records := recognition.Records()
	if len(records) != 4 {
		t.Fatalf("expected history record for every outcome, got %d", len(records))
	}

	// The duplicate is still a match in the audit trail.
	if !records[1].Matched || records[1].IdentityID != "id-a" {
		t.Errorf("duplicate outcome misrecorded: %+v", records[1])
	}
	if records[2].Matched || records[2].IdentityID != "" {
		t.Errorf("below-threshold outcome misrecorded: %+v", records[2])
	}
	if records[3].Embedding != nil {
		t.Errorf("no-embedding outcome should not store a vector, got %d bytes", len(records[3].Embedding))
	}

	// Stored probe bytes round-trip to the original vector.
	vec, err := embedding.Decode(records[0].Embedding)
	if err != nil {
		t.Fatalf("stored embedding does not decode: %v", err)
	}
	if len(vec) != 2 || vec[0] != 1 || vec[1] != 0 {
		t.Errorf("stored embedding corrupted: %v", vec)
	}
}

func TestRecordBatchMarksAttendanceOnlyForAccepted(t *testing.T) {
	attendance := mock.NewMockAttendanceRepo()
	recognition := mock.NewMockRecognitionRepo()
	recorder := NewPersistingRecorder(attendance, recognition)

	outcomes := []Outcome{
		{FaceIndex: 0, State: StateAccepted, IdentityID: "id-a", IdentityName: "alice", Score: 0.9},
		{FaceIndex: 1, State: StateDuplicate, IdentityID: "id-a", IdentityName: "alice", Score: 0.8},
		{FaceIndex: 2, State: StateAccepted, IdentityID: "id-b", IdentityName: "bob", Score: 0.7},
		{FaceIndex: 3, State: StateBelowThreshold, Score: 0.2},
	}

	recorder.RecordBatch(context.Background(), outcomes)

	logs := attendance.Logs()
	if len(logs) != 2 {
		t.Fatalf("expected exactly one attendance mark per accepted outcome, got %d", len(logs))
	}
	if logs[0].IdentityID != "id-a" || logs[1].IdentityID != "id-b" {
		t.Errorf("unexpected attendance identities: %s, %s", logs[0].IdentityID, logs[1].IdentityID)
	}
}

func TestHistoryRecorderNeverMarksAttendance(t *testing.T) {
	recognition := mock.NewMockRecognitionRepo()
	recorder := NewHistoryRecorder(recognition)

	outcomes := []Outcome{
		{FaceIndex: 0, State: StateAccepted, IdentityID: "id-a", IdentityName: "alice", Score: 0.9},
		{FaceIndex: 1, State: StateBelowThreshold, Score: 0.3},
	}

	recorder.RecordBatch(context.Background(), outcomes)

	for i := range outcomes {
		if outcomes[i].RecordError != nil {
			t.Errorf("outcome %d: unexpected record error: %v", i, outcomes[i].RecordError)
		}
	}
	// The audit trail is complete even though no attendance writer exists.
	if len(recognition.Records()) != 2 {
		t.Errorf("expected 2 history records, got %d", len(recognition.Records()))
	}
}

func TestRecordBatchSurfacesFailuresPerOutcome(t *testing.T) {
	attendance := mock.NewMockAttendanceRepo()
	recognition := mock.NewMockRecognitionRepo()
	recognition.LogError = errors.New("disk full")
	recorder := NewPersistingRecorder(attendance, recognition)

	outcomes := []Outcome{
		{FaceIndex: 0, State: StateAccepted, IdentityID: "id-a", IdentityName: "alice", Score: 0.9},
		{FaceIndex: 1, State: StateBelowThreshold, Score: 0.3},
	}

	recorder.RecordBatch(context.Background(), outcomes)

	if outcomes[0].RecordError == nil || outcomes[1].RecordError == nil {
		t.Error("expected record errors on both outcomes")
	}
	// Attendance was never reached because history logging failed first.
	if len(attendance.Logs()) != 0 {
		t.Errorf("expected no attendance marks after history failure, got %d", len(attendance.Logs()))
	}
}

func TestRecordBatchAttendanceFailureDoesNotStopOthers(t *testing.T) {
	attendance := mock.NewMockAttendanceRepo()
	recognition := mock.NewMockRecognitionRepo()
	attendance.MarkError = errors.New("constraint violation")
	recorder := NewPersistingRecorder(attendance, recognition)

	outcomes := []Outcome{
		{FaceIndex: 0, State: StateAccepted, IdentityID: "id-a", IdentityName: "alice", Score: 0.9},
		{FaceIndex: 1, State: StateBelowThreshold, Score: 0.3},
	}

	recorder.RecordBatch(context.Background(), outcomes)

	if outcomes[0].RecordError == nil {
		t.Error("expected record error on the accepted outcome")
	}
	if outcomes[1].RecordError != nil {
		t.Errorf("below-threshold outcome should have recorded cleanly: %v", outcomes[1].RecordError)
	}
	// History still has both records.
	if len(recognition.Records()) != 2 {
		t.Errorf("expected 2 history records, got %d", len(recognition.Records()))
	}
}
