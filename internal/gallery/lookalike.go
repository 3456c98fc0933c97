package gallery

import (
	"sync"

	"github.com/coder/hnsw"

	"github.com/visionid/visionid/internal/constants"
	"github.com/visionid/visionid/internal/embedding"
)

// LookalikeIndex is an approximate nearest-neighbor index over enrolled
// identities, used to answer "who looks similar to X" queries. It trades
// exactness for speed and therefore never participates in recognition
// decisions.
type LookalikeIndex struct {
	mu    sync.RWMutex
	graph *hnsw.Graph[string]
	names map[string]string // identity ID -> name; also the liveness filter
	dead  int               // removed identities whose graph nodes remain
}

// NewLookalikeIndex creates an empty index.
func NewLookalikeIndex() *LookalikeIndex {
	return &LookalikeIndex{
		names: make(map[string]string),
	}
}

func newGraph() *hnsw.Graph[string] {
	g := hnsw.NewGraph[string]()
	g.M = constants.HNSWMaxNeighbors
	g.Ml = 1.0 / float64(constants.HNSWMaxNeighbors)
	g.Distance = hnsw.CosineDistance
	return g
}

// Rebuild replaces the index contents with the given entries.
func (l *LookalikeIndex) Rebuild(entries []Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.dead = 0
	if len(entries) == 0 {
		l.graph = nil
		l.names = make(map[string]string)
		return
	}

	g := newGraph()
	l.names = make(map[string]string, len(entries))
	for i := range entries {
		if len(entries[i].Embedding) == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(entries[i].IdentityID, entries[i].Embedding))
		l.names[entries[i].IdentityID] = entries[i].Name
	}
	l.graph = g
}

// Add inserts or refreshes a single identity.
func (l *LookalikeIndex) Add(entry Entry) {
	if len(entry.Embedding) == 0 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.graph == nil {
		l.graph = newGraph()
	}
	l.graph.Add(hnsw.MakeNode(entry.IdentityID, entry.Embedding))
	l.names[entry.IdentityID] = entry.Name
}

// Remove drops an identity from search results. The graph node stays behind
// (HNSW has no true deletion) and is filtered out at query time.
func (l *LookalikeIndex) Remove(identityID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.names[identityID]; ok {
		delete(l.names, identityID)
		l.dead++
	}
}

// Size returns the number of live identities in the index.
func (l *LookalikeIndex) Size() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.names)
}

// Neighbors returns up to k identities most similar to the probe, highest
// similarity first. Scores are exact cosine similarities recomputed from the
// stored vectors; only the candidate selection is approximate.
func (l *LookalikeIndex) Neighbors(probe []float32, k int) []Match {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.graph == nil || k <= 0 {
		return nil
	}

	// Over-fetch to compensate for tombstoned nodes still in the graph.
	nodes := l.graph.Search(probe, k+l.dead)

	matches := make([]Match, 0, k)
	for _, n := range nodes {
		name, ok := l.names[n.Key]
		if !ok {
			continue
		}
		matches = append(matches, Match{
			IdentityID: n.Key,
			Name:       name,
			Score:      embedding.Cosine(probe, n.Value),
		})
		if len(matches) == k {
			break
		}
	}
	return matches
}
