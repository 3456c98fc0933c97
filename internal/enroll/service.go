// Package enroll implements identity registration: one face per image, one
// embedding per identity. Both the HTTP API and the CLI go through this
// service so re-enrollment semantics stay in one place.
package enroll

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/visionid/visionid/internal/database"
	"github.com/visionid/visionid/internal/detector"
	"github.com/visionid/visionid/internal/embedding"
	"github.com/visionid/visionid/internal/gallery"
)

// ErrEmptyName rejects registration without an identity name.
var ErrEmptyName = errors.New("identity name must not be empty")

// ErrBadEmbedding rejects a caller-supplied embedding that cannot be used.
var ErrBadEmbedding = errors.New("invalid embedding")

// ErrNameTaken rejects a rename to a name another identity already holds.
var ErrNameTaken = errors.New("identity name already in use")

// SingleFaceDetector is the slice of the detector client enrollment needs.
type SingleFaceDetector interface {
	DetectSingle(ctx context.Context, imageData []byte) (*detector.Face, error)
}

// Service registers, replaces and removes identities.
type Service struct {
	detector   SingleFaceDetector
	identities database.IdentityWriter
	lookalike  *gallery.LookalikeIndex
	dim        int
}

// NewService wires an enrollment service. lookalike may be nil when no
// similarity index is maintained (CLI usage).
func NewService(det SingleFaceDetector, identities database.IdentityWriter, lookalike *gallery.LookalikeIndex, dim int) *Service {
	return &Service{
		detector:   det,
		identities: identities,
		lookalike:  lookalike,
		dim:        dim,
	}
}

// Enroll registers the single face in imageData under the given name. An
// existing identity with the same name is replaced in place: same ID, new
// embedding. The second return value reports whether that happened.
func (s *Service) Enroll(ctx context.Context, name string, imageData []byte, imagePath, metadata string) (*database.Identity, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false, ErrEmptyName
	}

	face, err := s.detector.DetectSingle(ctx, imageData)
	if err != nil {
		return nil, false, err
	}
	if err := embedding.CheckDim(face.Embedding, s.dim); err != nil {
		return nil, false, fmt.Errorf("detector returned unusable embedding: %w", err)
	}

	return s.save(ctx, name, face.Embedding, imagePath, metadata)
}

// EnrollVector registers an identity from a precomputed embedding, skipping
// detection. Used when the caller already holds the vector, for example from
// an offline enrollment pipeline.
func (s *Service) EnrollVector(ctx context.Context, name string, vec []float32, imagePath, metadata string) (*database.Identity, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false, ErrEmptyName
	}
	if err := embedding.CheckDim(vec, s.dim); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrBadEmbedding, err)
	}
	return s.save(ctx, name, vec, imagePath, metadata)
}

func (s *Service) save(ctx context.Context, name string, vec []float32, imagePath, metadata string) (*database.Identity, bool, error) {
	existing, err := s.identities.GetByName(ctx, name)
	if err != nil {
		return nil, false, fmt.Errorf("look up identity %q: %w", name, err)
	}

	identity := &database.Identity{
		Name:      name,
		Embedding: vec,
		Dim:       s.dim,
		ImagePath: imagePath,
		Metadata:  metadata,
	}
	if existing != nil {
		identity.ID = existing.ID
		identity.CreatedAt = existing.CreatedAt
	} else {
		identity.ID = uuid.New().String()
	}

	if err := s.identities.Save(ctx, identity); err != nil {
		return nil, false, fmt.Errorf("save identity %q: %w", name, err)
	}

	if s.lookalike != nil {
		s.lookalike.Add(gallery.Entry{
			IdentityID: identity.ID,
			Name:       identity.Name,
			Embedding:  identity.Embedding,
		})
	}
	return identity, existing != nil, nil
}

// Update changes an identity's name and/or metadata in place. The embedding
// is untouched; re-enroll to replace it. Returns nil when the identity does
// not exist.
func (s *Service) Update(ctx context.Context, id, name, metadata string) (*database.Identity, error) {
	identity, err := s.identities.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("look up identity %s: %w", id, err)
	}
	if identity == nil {
		return nil, nil
	}

	if name = strings.TrimSpace(name); name != "" {
		other, err := s.identities.GetByName(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("look up identity %q: %w", name, err)
		}
		if other != nil && other.ID != id {
			return nil, ErrNameTaken
		}
		identity.Name = name
	}
	if metadata != "" {
		identity.Metadata = metadata
	}

	if err := s.identities.Save(ctx, identity); err != nil {
		return nil, fmt.Errorf("save identity %s: %w", id, err)
	}

	if s.lookalike != nil {
		s.lookalike.Add(gallery.Entry{
			IdentityID: identity.ID,
			Name:       identity.Name,
			Embedding:  identity.Embedding,
		})
	}
	return identity, nil
}

// Delete removes an identity and drops it from the similarity index. Returns
// false when no such identity existed.
func (s *Service) Delete(ctx context.Context, id string) (bool, error) {
	deleted, err := s.identities.Delete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("delete identity %s: %w", id, err)
	}
	if deleted && s.lookalike != nil {
		s.lookalike.Remove(id)
	}
	return deleted, nil
}
