package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/visionid/visionid/internal/config"
	"github.com/visionid/visionid/internal/database"
	"github.com/visionid/visionid/internal/database/mock"
	"github.com/visionid/visionid/internal/detector"
	"github.com/visionid/visionid/internal/enroll"
	"github.com/visionid/visionid/internal/gallery"
	"github.com/visionid/visionid/internal/recognition"
)

// stubDetector serves canned faces for both detection entry points.
type stubDetector struct {
	faces []detector.Face
	err   error
}

func (s *stubDetector) Detect(ctx context.Context, imageData []byte) ([]detector.Face, error) {
	return s.faces, s.err
}

func (s *stubDetector) DetectSingle(ctx context.Context, imageData []byte) (*detector.Face, error) {
	if s.err != nil {
		return nil, s.err
	}
	switch len(s.faces) {
	case 0:
		return nil, detector.ErrNoFace
	case 1:
		face := s.faces[0]
		return &face, nil
	default:
		return nil, detector.ErrMultipleFaces
	}
}

// fixture holds a fully wired API router over in-memory repositories.
type fixture struct {
	router      *chi.Mux
	det         *stubDetector
	identities  *mock.MockIdentityRepo
	attendance  *mock.MockAttendanceRepo
	recognition *mock.MockRecognitionRepo
	lookalike   *gallery.LookalikeIndex
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		det:         &stubDetector{},
		identities:  mock.NewMockIdentityRepo(),
		attendance:  mock.NewMockAttendanceRepo(),
		recognition: mock.NewMockRecognitionRepo(),
		lookalike:   gallery.NewLookalikeIndex(),
	}

	cfg := &config.RecognitionConfig{
		Dim:                 4,
		AcceptThreshold:     0.6,
		DetectionConfidence: 0.5,
		TopK:                5,
		Workers:             4,
	}

	historySvc := recognition.NewService(f.det, f.identities,
		recognition.NewHistoryRecorder(f.recognition), cfg)
	markerSvc := recognition.NewService(f.det, f.identities,
		recognition.NewPersistingRecorder(f.attendance, f.recognition), cfg)
	enrollSvc := enroll.NewService(f.det, f.identities, f.lookalike, cfg.Dim)

	recognizeHandler := NewRecognizeHandler(historySvc, f.recognition)
	registerHandler := NewRegisterHandler(enrollSvc, f.identities, f.lookalike)
	attendanceHandler := NewAttendanceHandler(markerSvc, f.attendance, f.identities)

	r := chi.NewRouter()
	r.Get("/api/v1/health", HealthCheck)
	r.Post("/api/v1/recognize", recognizeHandler.Recognize)
	r.Post("/api/v1/recognize/bulk", recognizeHandler.RecognizeBulk)
	r.Get("/api/v1/recognize/history", recognizeHandler.History)
	r.Post("/api/v1/register", registerHandler.Register)
	r.Get("/api/v1/register/identities", registerHandler.List)
	r.Get("/api/v1/register/identities/{id}", registerHandler.Get)
	r.Put("/api/v1/register/identities/{id}", registerHandler.Update)
	r.Delete("/api/v1/register/identities/{id}", registerHandler.Delete)
	r.Get("/api/v1/register/identities/{id}/similar", registerHandler.Similar)
	r.Post("/api/v1/attendance/mark", attendanceHandler.Mark)
	r.Post("/api/v1/attendance/manual", attendanceHandler.ManualMark)
	r.Get("/api/v1/attendance/today", attendanceHandler.Today)
	r.Get("/api/v1/attendance/report", attendanceHandler.Report)
	r.Get("/api/v1/attendance/identity/{id}", attendanceHandler.ByIdentity)
	r.Get("/api/v1/attendance/statistics", attendanceHandler.Statistics)

	f.router = r
	return f
}

// enrollAlice puts a known identity into the fixture's repositories directly.
func (f *fixture) enrollAlice() database.Identity {
	identity := database.Identity{
		ID:        "id-alice",
		Name:      "alice",
		Embedding: []float32{1, 0, 0, 0},
		Dim:       4,
	}
	f.identities.AddIdentity(identity)
	f.lookalike.Add(gallery.Entry{IdentityID: identity.ID, Name: identity.Name, Embedding: identity.Embedding})
	return identity
}

// aliceLookalike is a second identity close to alice in embedding space.
func aliceLookalike() database.Identity {
	return database.Identity{
		ID:        "id-alice2",
		Name:      "alicia",
		Embedding: []float32{0.95, 0.05, 0, 0},
		Dim:       4,
	}
}

func aliceLookalikeEntry() gallery.Entry {
	identity := aliceLookalike()
	return gallery.Entry{IdentityID: identity.ID, Name: identity.Name, Embedding: identity.Embedding}
}

func (f *fixture) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	recorder := httptest.NewRecorder()
	f.router.ServeHTTP(recorder, req)
	return recorder
}

// multipartBody builds a multipart form with the given fields and files.
func multipartBody(t *testing.T, fields map[string]string, files map[string][][]byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			t.Fatalf("failed to write field %s: %v", name, err)
		}
	}
	for field, contents := range files {
		for i, content := range contents {
			part, err := writer.CreateFormFile(field, "image.jpg")
			if err != nil {
				t.Fatalf("failed to create file part %d: %v", i, err)
			}
			if _, err := part.Write(content); err != nil {
				t.Fatalf("failed to write file part %d: %v", i, err)
			}
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}
	return &buf, writer.FormDataContentType()
}

func decodeBody(t *testing.T, body io.Reader, dest any) {
	t.Helper()
	if err := json.NewDecoder(body).Decode(dest); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
}
