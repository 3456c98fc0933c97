package gallery

import (
	"testing"
)

func lookalikeEntries() []Entry {
	return []Entry{
		{IdentityID: "a", Name: "alice", Embedding: []float32{1, 0, 0, 0}},
		{IdentityID: "b", Name: "bob", Embedding: []float32{0.95, 0.05, 0, 0}},
		{IdentityID: "c", Name: "carol", Embedding: []float32{0, 0, 1, 0}},
	}
}

func TestLookalikeNeighbors(t *testing.T) {
	idx := NewLookalikeIndex()
	idx.Rebuild(lookalikeEntries())

	if idx.Size() != 3 {
		t.Fatalf("expected 3 identities, got %d", idx.Size())
	}

	matches := idx.Neighbors([]float32{1, 0, 0, 0}, 2)
	if len(matches) != 2 {
		t.Fatalf("expected 2 neighbors, got %d", len(matches))
	}
	if matches[0].IdentityID != "a" {
		t.Errorf("expected alice as nearest neighbor, got %s", matches[0].IdentityID)
	}
	if matches[1].IdentityID != "b" {
		t.Errorf("expected bob as second neighbor, got %s", matches[1].IdentityID)
	}
	if matches[0].Score < matches[1].Score {
		t.Error("expected descending similarity order")
	}
}

func TestLookalikeEmptyIndex(t *testing.T) {
	idx := NewLookalikeIndex()
	if matches := idx.Neighbors([]float32{1, 0, 0, 0}, 5); matches != nil {
		t.Errorf("expected nil from empty index, got %v", matches)
	}
}

func TestLookalikeRemoveFiltersResults(t *testing.T) {
	idx := NewLookalikeIndex()
	idx.Rebuild(lookalikeEntries())

	idx.Remove("a")
	if idx.Size() != 2 {
		t.Fatalf("expected 2 identities after removal, got %d", idx.Size())
	}

	matches := idx.Neighbors([]float32{1, 0, 0, 0}, 3)
	for _, m := range matches {
		if m.IdentityID == "a" {
			t.Error("removed identity still appears in results")
		}
	}
	if len(matches) != 2 {
		t.Errorf("expected 2 live neighbors, got %d", len(matches))
	}
}

func TestLookalikeAddAfterRebuild(t *testing.T) {
	idx := NewLookalikeIndex()
	idx.Rebuild(lookalikeEntries())

	idx.Add(Entry{IdentityID: "d", Name: "dave", Embedding: []float32{0, 0, 0.99, 0.01}})

	matches := idx.Neighbors([]float32{0, 0, 1, 0}, 2)
	if len(matches) != 2 {
		t.Fatalf("expected 2 neighbors, got %d", len(matches))
	}
	found := false
	for _, m := range matches {
		if m.IdentityID == "d" {
			found = true
		}
	}
	if !found {
		t.Error("freshly added identity missing from neighbors")
	}
}

func TestLookalikeRebuildResetsState(t *testing.T) {
	idx := NewLookalikeIndex()
	idx.Rebuild(lookalikeEntries())
	idx.Remove("a")

	idx.Rebuild(lookalikeEntries())
	if idx.Size() != 3 {
		t.Fatalf("expected rebuild to restore all identities, got %d", idx.Size())
	}

	matches := idx.Neighbors([]float32{1, 0, 0, 0}, 1)
	if len(matches) != 1 || matches[0].IdentityID != "a" {
		t.Errorf("expected alice back after rebuild, got %v", matches)
	}
}
