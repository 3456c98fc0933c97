package recognition

import (
	"context"
	"errors"
	"testing"

	"github.com/visionid/visionid/internal/config"
	"github.com/visionid/visionid/internal/database"
	"github.com/visionid/visionid/internal/database/mock"
	"github.com/visionid/visionid/internal/detector"
)

// stubDetector returns canned faces without an HTTP round trip.
type stubDetector struct {
	faces []detector.Face
	err   error
}

func (s *stubDetector) Detect(ctx context.Context, imageData []byte) ([]detector.Face, error) {
	return s.faces, s.err
}

func testConfig() *config.RecognitionConfig {
	return &config.RecognitionConfig{
		Dim:                 4,
		AcceptThreshold:     0.6,
		DetectionConfidence: 0.5,
		TopK:                5,
		Workers:             4,
	}
}

func serviceFixture(t *testing.T, det FaceDetector) (*Service, *mock.MockAttendanceRepo, *mock.MockRecognitionRepo) {
	t.Helper()
	identities := mock.NewMockIdentityRepo()
	identities.AddIdentity(database.Identity{ID: "id-alice", Name: "alice", Embedding: []float32{1, 0, 0, 0}, Dim: 4})
	identities.AddIdentity(database.Identity{ID: "id-bob", Name: "bob", Embedding: []float32{0, 1, 0, 0}, Dim: 4})

	attendance := mock.NewMockAttendanceRepo()
	recognitionRepo := mock.NewMockRecognitionRepo()
	recorder := NewPersistingRecorder(attendance, recognitionRepo)

	return NewService(det, identities, recorder, testConfig()), attendance, recognitionRepo
}

func TestRecognizeImage(t *testing.T) {
	// Three faces: alice twice (second crop weaker) and one stranger. Alice
	// is marked present once, the weaker crop is demoted, the stranger is
	// logged but never marked.
	det := &stubDetector{faces: []detector.Face{
		{FaceIndex: 0, DetScore: 0.99, Embedding: []float32{1, 0, 0, 0}},
		{FaceIndex: 1, DetScore: 0.97, Embedding: []float32{0.9, 0.1, 0, 0}},
		{FaceIndex: 2, DetScore: 0.95, Embedding: []float32{0, 0, 1, 0}},
	}}

	svc, attendance, history := serviceFixture(t, det)

	result, err := svc.RecognizeImage(context.Background(), []byte("image"), Options{})
	if err != nil {
		t.Fatalf("RecognizeImage failed: %v", err)
	}

	if result.FacesCount != 3 {
		t.Errorf("expected 3 detected faces, got %d", result.FacesCount)
	}
	if len(result.Outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(result.Outcomes))
	}

	if result.Outcomes[0].State != StateAccepted || result.Outcomes[0].IdentityName != "alice" {
		t.Errorf("face 0: expected accepted alice, got %+v", result.Outcomes[0])
	}
	if result.Outcomes[1].State != StateDuplicate {
		t.Errorf("face 1: expected duplicate, got %s", result.Outcomes[1].State)
	}
	if result.Outcomes[2].State != StateBelowThreshold {
		t.Errorf("face 2: expected below_threshold, got %s", result.Outcomes[2].State)
	}

	if len(attendance.Logs()) != 1 {
		t.Fatalf("expected exactly 1 attendance mark, got %d", len(attendance.Logs()))
	}
	if attendance.Logs()[0].IdentityID != "id-alice" {
		t.Errorf("expected alice marked, got %s", attendance.Logs()[0].IdentityID)
	}
	if len(history.Records()) != 3 {
		t.Errorf("expected history record for every face, got %d", len(history.Records()))
	}
}

func TestRecognizeImageFiltersLowConfidence(t *testing.T) {
	det := &stubDetector{faces: []detector.Face{
		{FaceIndex: 0, DetScore: 0.99, Embedding: []float32{1, 0, 0, 0}},
		{FaceIndex: 1, DetScore: 0.2, Embedding: []float32{0, 1, 0, 0}}, // below confidence floor
	}}

	svc, attendance, _ := serviceFixture(t, det)

	result, err := svc.RecognizeImage(context.Background(), []byte("image"), Options{})
	if err != nil {
		t.Fatalf("RecognizeImage failed: %v", err)
	}

	if result.FacesCount != 2 {
		t.Errorf("faces_count reflects all detections, got %d", result.FacesCount)
	}
	if len(result.Outcomes) != 1 {
		t.Fatalf("expected only the confident face matched, got %d outcomes", len(result.Outcomes))
	}
	if len(attendance.Logs()) != 1 {
		t.Errorf("expected 1 attendance mark, got %d", len(attendance.Logs()))
	}
}

func TestRecognizeImageThresholdOverride(t *testing.T) {
	// Scores about 0.89 against alice: accepted under the configured 0.6
	// threshold, rejected when the request asks for 0.95.
	det := &stubDetector{faces: []detector.Face{
		{FaceIndex: 0, DetScore: 0.99, Embedding: []float32{0.9, 0.1, 0, 0}},
	}}

	svc, attendance, _ := serviceFixture(t, det)

	result, err := svc.RecognizeImage(context.Background(), []byte("image"), Options{})
	if err != nil {
		t.Fatalf("RecognizeImage failed: %v", err)
	}
	if result.Outcomes[0].State != StateAccepted {
		t.Fatalf("expected accept at default threshold, got %s", result.Outcomes[0].State)
	}

	result, err = svc.RecognizeImage(context.Background(), []byte("image"), Options{Threshold: 0.95})
	if err != nil {
		t.Fatalf("RecognizeImage failed: %v", err)
	}
	if result.Outcomes[0].State != StateBelowThreshold {
		t.Errorf("expected below_threshold at 0.95, got %s", result.Outcomes[0].State)
	}
	if result.Outcomes[0].Score <= 0 {
		t.Errorf("rejected outcome should still carry the best score, got %f", result.Outcomes[0].Score)
	}

	if len(attendance.Logs()) != 1 {
		t.Errorf("expected only the first call to mark attendance, got %d", len(attendance.Logs()))
	}
}

func TestRecognizeImageTopKOverride(t *testing.T) {
	det := &stubDetector{faces: []detector.Face{
		{FaceIndex: 0, DetScore: 0.99, Embedding: []float32{1, 0, 0, 0}},
	}}

	svc, _, _ := serviceFixture(t, det)

	result, err := svc.RecognizeImage(context.Background(), []byte("image"), Options{TopK: 1})
	if err != nil {
		t.Fatalf("RecognizeImage failed: %v", err)
	}
	if len(result.Outcomes[0].Candidates) != 1 {
		t.Errorf("expected 1 candidate with top_k=1, got %d", len(result.Outcomes[0].Candidates))
	}
}

func TestRecognizeImageDetectorError(t *testing.T) {
	det := &stubDetector{err: errors.New("connection refused")}
	svc, _, history := serviceFixture(t, det)

	_, err := svc.RecognizeImage(context.Background(), []byte("image"), Options{})
	if err == nil {
		t.Fatal("expected detector error to propagate")
	}
	if len(history.Records()) != 0 {
		t.Errorf("expected no records after detector failure, got %d", len(history.Records()))
	}
}

func TestRecognizeBulkScopesDedupPerImage(t *testing.T) {
	// The same face appears in both images; it must be accepted in each,
	// because each image is its own deduplication scope.
	det := &stubDetector{faces: []detector.Face{
		{FaceIndex: 0, DetScore: 0.99, Embedding: []float32{1, 0, 0, 0}},
	}}

	svc, attendance, _ := serviceFixture(t, det)

	results, err := svc.RecognizeBulk(context.Background(), [][]byte{[]byte("one"), []byte("two")}, Options{})
	if err != nil {
		t.Fatalf("RecognizeBulk failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 image results, got %d", len(results))
	}

	for i, r := range results {
		if r.Error != "" {
			t.Fatalf("image %d failed: %s", i, r.Error)
		}
		if r.Result.Outcomes[0].State != StateAccepted {
			t.Errorf("image %d: expected accepted, got %s", i, r.Result.Outcomes[0].State)
		}
	}
	// Two marks: dedup never crosses image boundaries.
	if len(attendance.Logs()) != 2 {
		t.Errorf("expected 2 attendance marks, got %d", len(attendance.Logs()))
	}
}

func TestRecognizeBulkIsolatesFailures(t *testing.T) {
	calls := 0
	det := &flakyDetector{failOn: 1, calls: &calls}
	svc, _, _ := serviceFixture(t, det)

	results, err := svc.RecognizeBulk(context.Background(), [][]byte{[]byte("one"), []byte("two")}, Options{})
	if err != nil {
		t.Fatalf("RecognizeBulk failed: %v", err)
	}
	if results[0].Error == "" {
		t.Error("expected first image to carry its error")
	}
	if results[1].Error != "" || results[1].Result == nil {
		t.Errorf("expected second image to succeed: %+v", results[1])
	}
}

// flakyDetector fails on one specific call and succeeds on the rest.
type flakyDetector struct {
	failOn int
	calls  *int
}

func (f *flakyDetector) Detect(ctx context.Context, imageData []byte) ([]detector.Face, error) {
	*f.calls++
	if *f.calls == f.failOn {
		return nil, errors.New("detector crashed")
	}
	return []detector.Face{
		{FaceIndex: 0, DetScore: 0.99, Embedding: []float32{1, 0, 0, 0}},
	}, nil
}
