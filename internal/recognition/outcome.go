// Package recognition implements the batch matching pipeline: detected faces
// go through parallel gallery matching, a deduplication pass, and persistent
// recording of every outcome.
package recognition

import (
	"github.com/visionid/visionid/internal/gallery"
)

// State classifies what happened to a single face. Every face in a batch ends
// in exactly one state; there is no "matched but maybe not" middle ground.
type State string

const (
	// StateAccepted means the face matched an identity and won deduplication.
	StateAccepted State = "accepted"
	// StateBelowThreshold means no gallery identity scored above the accept
	// threshold.
	StateBelowThreshold State = "below_threshold"
	// StateDuplicate means the face matched an identity that a higher-scoring
	// face in the same batch already claimed.
	StateDuplicate State = "duplicate"
	// StateNoEmbedding means the detector produced no usable vector for the
	// face, so it never entered matching.
	StateNoEmbedding State = "no_embedding"
)

// FaceDescriptor is one detected face handed to the coordinator. FaceIndex is
// the detector's ordering and is preserved end to end.
type FaceDescriptor struct {
	FaceIndex int
	BBox      []float64
	DetScore  float64
	Embedding []float32
}

// Outcome is the final result for one face.
type Outcome struct {
	FaceIndex    int             `json:"face_index"`
	State        State           `json:"state"`
	IdentityID   string          `json:"identity_id,omitempty"`
	IdentityName string          `json:"identity_name,omitempty"`
	Score        float64         `json:"score"`
	BBox         []float64       `json:"bbox,omitempty"`
	DetScore     float64         `json:"det_score"`
	Candidates   []gallery.Match `json:"candidates,omitempty"`
	Embedding    []float32       `json:"-"`

	// RecordError reports a persistence failure for this outcome. The batch
	// result itself stands; callers decide how loudly to surface it.
	RecordError error `json:"-"`
}

// Matched reports whether the face found a gallery identity above the
// threshold, regardless of whether it later lost deduplication.
func (o *Outcome) Matched() bool {
	return o.State == StateAccepted || o.State == StateDuplicate
}
