package detector

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/visionid/visionid/internal/embedding"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server, New(server.URL, 5*time.Second)
}

// jpegHeader is enough magic bytes for MIME detection.
var jpegHeader = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 0x4A, 0x46}

func TestDetect(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/detect" {
			t.Errorf("expected /detect path, got %s", r.URL.Path)
		}

		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Errorf("failed to parse multipart form: %v", err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("expected file part: %v", err)
		} else {
			file.Close()
			if ct := header.Header.Get("Content-Type"); ct != "image/jpeg" {
				t.Errorf("expected image/jpeg part, got %s", ct)
			}
		}

		json.NewEncoder(w).Encode(Response{
			FacesCount: 2,
			Faces: []Face{
				{FaceIndex: 0, BBox: []float64{10, 20, 110, 140}, DetScore: 0.98, Dim: 4, Embedding: []float32{1, 0, 0, 0}},
				{FaceIndex: 1, BBox: []float64{200, 20, 300, 140}, DetScore: 0.91, Dim: 4, Embedding: []float32{0, 1, 0, 0}},
			},
			Model: "buffalo_l",
		})
	})

	faces, err := client.Detect(context.Background(), jpegHeader)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(faces) != 2 {
		t.Fatalf("expected 2 faces, got %d", len(faces))
	}
	if faces[0].FaceIndex != 0 || faces[1].FaceIndex != 1 {
		t.Errorf("face indices out of order: %d, %d", faces[0].FaceIndex, faces[1].FaceIndex)
	}
	if faces[0].Embedding[0] != 1.0 {
		t.Errorf("unexpected embedding for face 0: %v", faces[0].Embedding)
	}
}

func TestDetectBase64Embedding(t *testing.T) {
	vec := []float32{0.25, -0.5, 1.0}
	encoded := base64.StdEncoding.EncodeToString(embedding.Encode(vec))

	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Response{
			FacesCount: 1,
			Faces: []Face{
				{FaceIndex: 0, Dim: 3, EmbeddingB64: encoded},
			},
		})
	})

	faces, err := client.Detect(context.Background(), jpegHeader)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(faces) != 1 {
		t.Fatalf("expected 1 face, got %d", len(faces))
	}
	got := faces[0].Embedding
	if len(got) != 3 {
		t.Fatalf("expected 3-dim embedding, got %d", len(got))
	}
	for i := range vec {
		if got[i] != vec[i] {
			t.Errorf("component %d: expected %f, got %f", i, vec[i], got[i])
		}
	}
	if faces[0].EmbeddingB64 != "" {
		t.Error("expected base64 form to be cleared after decoding")
	}
}

func TestDetectNoFaces(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Response{FacesCount: 0, Faces: []Face{}})
	})

	faces, err := client.Detect(context.Background(), jpegHeader)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(faces) != 0 {
		t.Errorf("expected no faces, got %d", len(faces))
	}
}

func TestDetectServerError(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	})

	_, err := client.Detect(context.Background(), jpegHeader)
	if err == nil {
		t.Fatal("expected error for 503 response")
	}
}

func TestDetectSingle(t *testing.T) {
	tests := []struct {
		name    string
		faces   []Face
		wantErr error
	}{
		{"ExactlyOne", []Face{{FaceIndex: 0, Embedding: []float32{1}}}, nil},
		{"None", []Face{}, ErrNoFace},
		{"Multiple", []Face{{FaceIndex: 0}, {FaceIndex: 1}}, ErrMultipleFaces},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(Response{FacesCount: len(tt.faces), Faces: tt.faces})
			})

			face, err := client.DetectSingle(context.Background(), jpegHeader)
			if tt.wantErr != nil {
				if err != tt.wantErr {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DetectSingle failed: %v", err)
			}
			if face == nil || face.FaceIndex != 0 {
				t.Errorf("unexpected face: %+v", face)
			}
		})
	}
}

func TestDetectMIMEType(t *testing.T) {
	png := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	if got := detectMIMEType(png); got != "image/png" {
		t.Errorf("expected image/png, got %s", got)
	}
	if got := detectMIMEType(jpegHeader); got != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %s", got)
	}
	if got := detectMIMEType([]byte{1, 2}); got != "application/octet-stream" {
		t.Errorf("expected octet-stream for short data, got %s", got)
	}
}
