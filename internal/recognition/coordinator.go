package recognition

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/visionid/visionid/internal/gallery"
)

// Coordinator runs the two-phase batch matching algorithm. Phase one scores
// every face against the gallery in parallel; phase two is a single-threaded
// deduplication pass, so the final outcomes never depend on goroutine timing.
type Coordinator struct {
	workers   int
	threshold float64
	topK      int
}

// NewCoordinator creates a coordinator. workers bounds matching parallelism;
// topK controls how many diagnostic candidates each outcome carries.
func NewCoordinator(workers int, threshold float64, topK int) *Coordinator {
	if workers < 1 {
		workers = 1
	}
	return &Coordinator{
		workers:   workers,
		threshold: threshold,
		topK:      topK,
	}
}

type faceResult struct {
	index   int
	outcome Outcome
	err     error
}

// Run matches a batch of faces against one gallery snapshot and returns one
// outcome per face, ordered by face index. The snapshot is fixed for the
// whole batch: every face sees the same gallery regardless of scheduling.
func (c *Coordinator) Run(ctx context.Context, snap *gallery.Snapshot, faces []FaceDescriptor) ([]Outcome, error) {
	if len(faces) == 0 {
		return []Outcome{}, nil
	}

	resultsChan := make(chan faceResult, len(faces))
	semaphore := make(chan struct{}, c.workers)
	var wg sync.WaitGroup

	for i := range faces {
		wg.Add(1)
		go func(idx int, face FaceDescriptor) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			if ctx.Err() != nil {
				resultsChan <- faceResult{index: idx, err: ctx.Err()}
				return
			}

			outcome, err := c.matchOne(snap, face)
			resultsChan <- faceResult{index: idx, outcome: outcome, err: err}
		}(i, faces[i])
	}

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	outcomes := make([]Outcome, len(faces))
	for r := range resultsChan {
		if r.err != nil {
			return nil, fmt.Errorf("match face %d: %w", faces[r.index].FaceIndex, r.err)
		}
		outcomes[r.index] = r.outcome
	}

	c.deduplicate(outcomes)

	sort.SliceStable(outcomes, func(i, j int) bool {
		return outcomes[i].FaceIndex < outcomes[j].FaceIndex
	})
	return outcomes, nil
}

// matchOne produces the provisional outcome for a single face.
func (c *Coordinator) matchOne(snap *gallery.Snapshot, face FaceDescriptor) (Outcome, error) {
	outcome := Outcome{
		FaceIndex: face.FaceIndex,
		BBox:      face.BBox,
		DetScore:  face.DetScore,
		Embedding: face.Embedding,
	}

	if len(face.Embedding) == 0 {
		outcome.State = StateNoEmbedding
		return outcome, nil
	}

	candidates, err := snap.TopK(face.Embedding, c.topK)
	if err != nil {
		return outcome, err
	}
	outcome.Candidates = candidates

	match, err := snap.BestMatch(face.Embedding, c.threshold)
	if err != nil {
		return outcome, err
	}

	if match == nil {
		outcome.State = StateBelowThreshold
		if len(candidates) > 0 {
			outcome.Score = candidates[0].Score
		}
		return outcome, nil
	}

	outcome.State = StateAccepted
	outcome.IdentityID = match.IdentityID
	outcome.IdentityName = match.Name
	outcome.Score = match.Score
	return outcome, nil
}

// deduplicate demotes all but the strongest claim on each identity. Amongst
// equal scores the lowest face index keeps the acceptance. Runs after all
// provisional outcomes exist, so the result is independent of match timing.
func (c *Coordinator) deduplicate(outcomes []Outcome) {
	winners := make(map[string]int) // identity ID -> outcome slice index

	for i := range outcomes {
		if outcomes[i].State != StateAccepted {
			continue
		}
		id := outcomes[i].IdentityID

		w, claimed := winners[id]
		if !claimed {
			winners[id] = i
			continue
		}

		better := outcomes[i].Score > outcomes[w].Score ||
			(outcomes[i].Score == outcomes[w].Score && outcomes[i].FaceIndex < outcomes[w].FaceIndex)
		if better {
			outcomes[w].State = StateDuplicate
			winners[id] = i
		} else {
			outcomes[i].State = StateDuplicate
		}
	}
}
