package recognition

import (
	"context"
	"fmt"

	"github.com/visionid/visionid/internal/config"
	"github.com/visionid/visionid/internal/database"
	"github.com/visionid/visionid/internal/detector"
	"github.com/visionid/visionid/internal/gallery"
)

// FaceDetector is the slice of the detector client the service needs.
type FaceDetector interface {
	Detect(ctx context.Context, imageData []byte) ([]detector.Face, error)
}

// Options are per-request overrides of the configured matching policy. Zero
// values mean "use the configured default".
type Options struct {
	Threshold float64 // accept threshold, must be in (0, 1] when set
	TopK      int     // diagnostic candidate count
}

// Service runs the full recognize path: detect, snapshot the gallery, match,
// deduplicate, record.
type Service struct {
	detector      FaceDetector
	identities    database.IdentityReader
	recorder      Recorder
	workers       int
	threshold     float64
	topK          int
	dim           int
	minConfidence float64
}

// NewService wires a recognition service from its collaborators.
func NewService(
	faceDetector FaceDetector,
	identities database.IdentityReader,
	recorder Recorder,
	cfg *config.RecognitionConfig,
) *Service {
	return &Service{
		detector:      faceDetector,
		identities:    identities,
		recorder:      recorder,
		workers:       cfg.Workers,
		threshold:     cfg.AcceptThreshold,
		topK:          cfg.TopK,
		dim:           cfg.Dim,
		minConfidence: cfg.DetectionConfidence,
	}
}

// coordinatorFor builds a coordinator with per-request overrides applied.
func (s *Service) coordinatorFor(opts Options) *Coordinator {
	threshold := s.threshold
	if opts.Threshold > 0 {
		threshold = opts.Threshold
	}
	topK := s.topK
	if opts.TopK > 0 {
		topK = opts.TopK
	}
	return NewCoordinator(s.workers, threshold, topK)
}

// ImageResult is the outcome set for one image.
type ImageResult struct {
	FacesCount int       `json:"faces_count"`
	Outcomes   []Outcome `json:"outcomes"`
}

// RecognizeImage processes one image end to end. The gallery snapshot is
// taken once, before matching starts, and every recorded side effect reflects
// the deduplicated outcomes.
func (s *Service) RecognizeImage(ctx context.Context, imageData []byte, opts Options) (*ImageResult, error) {
	faces, err := s.detector.Detect(ctx, imageData)
	if err != nil {
		return nil, fmt.Errorf("detect faces: %w", err)
	}

	// Low-confidence detections are dropped before matching rather than
	// risking a false accept on a blurry sliver of a face.
	descriptors := make([]FaceDescriptor, 0, len(faces))
	for _, f := range faces {
		if f.DetScore < s.minConfidence {
			continue
		}
		descriptors = append(descriptors, FaceDescriptor{
			FaceIndex: f.FaceIndex,
			BBox:      f.BBox,
			DetScore:  f.DetScore,
			Embedding: f.Embedding,
		})
	}

	outcomes, err := s.Match(ctx, descriptors, opts)
	if err != nil {
		return nil, err
	}
	return &ImageResult{FacesCount: len(faces), Outcomes: outcomes}, nil
}

// Match runs matching and recording for already detected faces.
func (s *Service) Match(ctx context.Context, faces []FaceDescriptor, opts Options) ([]Outcome, error) {
	snap, err := gallery.Load(ctx, s.identities, s.dim)
	if err != nil {
		return nil, err
	}

	outcomes, err := s.coordinatorFor(opts).Run(ctx, snap, faces)
	if err != nil {
		return nil, err
	}

	s.recorder.RecordBatch(ctx, outcomes)
	return outcomes, nil
}

// BulkImageResult is one image's slot in a bulk response.
type BulkImageResult struct {
	ImageIndex int          `json:"image_index"`
	Result     *ImageResult `json:"result,omitempty"`
	Error      string       `json:"error,omitempty"`
}

// RecognizeBulk processes several images independently. Each image gets its
// own gallery snapshot and its own deduplication scope: the same identity may
// legitimately be accepted once per image. A failing image does not stop the
// rest; its slot carries the error.
func (s *Service) RecognizeBulk(ctx context.Context, images [][]byte, opts Options) ([]BulkImageResult, error) {
	results := make([]BulkImageResult, len(images))
	for i, img := range images {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		res, err := s.RecognizeImage(ctx, img, opts)
		if err != nil {
			results[i] = BulkImageResult{ImageIndex: i, Error: err.Error()}
			continue
		}
		results[i] = BulkImageResult{ImageIndex: i, Result: res}
	}
	return results, nil
}
