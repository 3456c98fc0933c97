// Package detector provides the HTTP client for the face detection and
// embedding collaborator. Detection itself (bounding boxes, landmarks,
// embedding extraction from pixels) is an opaque external capability; this
// package only speaks its wire protocol.
package detector

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/visionid/visionid/internal/embedding"
)

const defaultDetectorURL = "http://localhost:8000"

// Face represents a single detected face returned by the collaborator.
type Face struct {
	FaceIndex int       `json:"face_index"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2] in raw pixel coordinates
	DetScore  float64   `json:"det_score"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding,omitempty"`
	// EmbeddingB64 carries the vector as base64 raw little-endian float32
	// bytes. Servers send either this or the plain float array.
	EmbeddingB64 string `json:"embedding_b64,omitempty"`
}

// Response represents the response from the face detection endpoint.
type Response struct {
	FacesCount int    `json:"faces_count"`
	Faces      []Face `json:"faces"`
	Model      string `json:"model"`
}

// Client calls the face detection/embedding server.
type Client struct {
	baseURL string
	client  *http.Client
}

// New creates a new detector client.
func New(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultDetectorURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Detect posts an image to the collaborator and returns the detected faces
// with their embedding vectors decoded. A response with zero faces is not an
// error.
func (c *Client) Detect(ctx context.Context, imageData []byte) ([]Face, error) {
	body, err := c.postMultipartImage(ctx, "/detect", imageData)
	if err != nil {
		return nil, err
	}

	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	for i := range resp.Faces {
		if err := decodeFaceEmbedding(&resp.Faces[i]); err != nil {
			return nil, fmt.Errorf("face %d: %w", resp.Faces[i].FaceIndex, err)
		}
	}
	return resp.Faces, nil
}

// decodeFaceEmbedding materializes the embedding vector from whichever wire
// form the server used.
func decodeFaceEmbedding(face *Face) error {
	if face.EmbeddingB64 == "" {
		return nil
	}
	raw, err := base64.StdEncoding.DecodeString(face.EmbeddingB64)
	if err != nil {
		return fmt.Errorf("decode base64 embedding: %w", err)
	}
	vec, err := embedding.Decode(raw)
	if err != nil {
		return fmt.Errorf("decode embedding bytes: %w", err)
	}
	face.Embedding = vec
	face.EmbeddingB64 = ""
	return nil
}

// postMultipartImage constructs a multipart form with the image data and posts
// it to the given endpoint. The part carries an explicit Content-Type header
// based on magic byte detection.
func (c *Client) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	mimeType := detectMIMEType(imageData)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
	h.Set("Content-Type", mimeType)
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("detector error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// detectMIMEType detects the MIME type from image data.
func detectMIMEType(data []byte) string {
	if len(data) < 8 {
		return "application/octet-stream"
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}
	// PNG: 89 50 4E 47 0D 0A 1A 0A
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	// WebP: 52 49 46 46 ... 57 45 42 50
	if len(data) >= 12 && data[0] == 0x52 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x46 &&
		data[8] == 0x57 && data[9] == 0x45 && data[10] == 0x42 && data[11] == 0x50 {
		return "image/webp"
	}
	return "application/octet-stream"
}

// ErrNoFace is returned by DetectSingle when the image contains no face.
var ErrNoFace = errors.New("no face detected in image")

// ErrMultipleFaces is returned by DetectSingle when the image contains more
// than one face.
var ErrMultipleFaces = errors.New("multiple faces detected in image")

// DetectSingle detects faces and requires exactly one. Used by enrollment,
// where an ambiguous image must be rejected rather than guessed at.
func (c *Client) DetectSingle(ctx context.Context, imageData []byte) (*Face, error) {
	faces, err := c.Detect(ctx, imageData)
	if err != nil {
		return nil, err
	}
	switch len(faces) {
	case 0:
		return nil, ErrNoFace
	case 1:
		return &faces[0], nil
	default:
		return nil, ErrMultipleFaces
	}
}
