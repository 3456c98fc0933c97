// Package gallery holds the enrolled-identity gallery and the exact matcher
// that decides recognition outcomes. Matching is a full linear scan over a
// stable-ordered snapshot so results are deterministic for a given gallery
// state; the approximate index in lookalike.go is diagnostics only and never
// feeds accept/reject decisions.
package gallery

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/visionid/visionid/internal/database"
	"github.com/visionid/visionid/internal/embedding"
)

// ErrDimMismatch reports a probe vector whose dimensionality differs from the
// gallery's. It is a caller error, distinct from "no match found".
var ErrDimMismatch = errors.New("embedding dimension mismatch")

// Entry is one enrolled identity inside a snapshot.
type Entry struct {
	IdentityID string
	Name       string
	Embedding  []float32
}

// Match is a scored candidate identity.
type Match struct {
	IdentityID string  `json:"identity_id"`
	Name       string  `json:"name"`
	Score      float64 `json:"score"`
}

// Snapshot is an immutable, ordered view of the gallery taken at the start of
// a matching run. Entries keep the repository's stable order, which decides
// ties between equally scored candidates.
type Snapshot struct {
	entries []Entry
	dim     int
}

// NewSnapshot wraps pre-loaded entries. Entries whose embedding does not have
// the expected dimension are rejected, not silently skipped.
func NewSnapshot(entries []Entry, dim int) (*Snapshot, error) {
	for _, e := range entries {
		if err := embedding.CheckDim(e.Embedding, dim); err != nil {
			return nil, fmt.Errorf("gallery entry %s: %w", e.IdentityID, err)
		}
	}
	return &Snapshot{entries: entries, dim: dim}, nil
}

// Load reads all enrolled identities into a snapshot.
func Load(ctx context.Context, reader database.IdentityReader, dim int) (*Snapshot, error) {
	rows, err := reader.ListGalleryEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("load gallery: %w", err)
	}

	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, Entry{
			IdentityID: row.IdentityID,
			Name:       row.Name,
			Embedding:  row.Embedding,
		})
	}
	return NewSnapshot(entries, dim)
}

// Size returns the number of enrolled identities in the snapshot.
func (s *Snapshot) Size() int {
	return len(s.entries)
}

// Dim returns the embedding dimensionality the snapshot was built for.
func (s *Snapshot) Dim() int {
	return s.dim
}

// Entries returns the snapshot's entries in stable order.
func (s *Snapshot) Entries() []Entry {
	return s.entries
}

// BestMatch scans the full gallery and returns the single best candidate
// whose similarity strictly exceeds the threshold, or nil when nothing does.
// When several candidates score identically, the one enrolled first wins: the
// running best starts at the threshold and is only displaced by a strictly
// greater score.
func (s *Snapshot) BestMatch(probe []float32, threshold float64) (*Match, error) {
	if err := embedding.CheckDim(probe, s.dim); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDimMismatch, err)
	}

	var best *Match
	bestScore := threshold
	for i := range s.entries {
		score := embedding.Cosine(probe, s.entries[i].Embedding)
		if score > bestScore {
			bestScore = score
			best = &Match{
				IdentityID: s.entries[i].IdentityID,
				Name:       s.entries[i].Name,
				Score:      score,
			}
		}
	}
	return best, nil
}

// TopK returns the k highest-scoring candidates regardless of threshold,
// highest first. Equal scores keep gallery order. Intended for diagnostics
// and operator tooling, not for accept/reject decisions.
func (s *Snapshot) TopK(probe []float32, k int) ([]Match, error) {
	if err := embedding.CheckDim(probe, s.dim); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDimMismatch, err)
	}
	if k <= 0 {
		return nil, nil
	}

	matches := make([]Match, 0, len(s.entries))
	for i := range s.entries {
		matches = append(matches, Match{
			IdentityID: s.entries[i].IdentityID,
			Name:       s.entries[i].Name,
			Score:      embedding.Cosine(probe, s.entries[i].Embedding),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}
