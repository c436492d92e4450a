package radio

import (
	"testing"

	"weradio/model"
)

type fakeCatalog struct {
	tracks []string
}

func (c *fakeCatalog) Tracks() []string { return append([]string(nil), c.tracks...) }

func (c *fakeCatalog) Has(id string) bool {
	for _, t := range c.tracks {
		if t == id {
			return true
		}
	}
	return false
}

func (c *fakeCatalog) Metadata(id string) model.TrackMetadata {
	return model.TrackMetadata{Title: id, Artist: "Tester", Filepath: id}
}

func TestRefillIfEmpty(t *testing.T) {
	catalog := &fakeCatalog{tracks: []string{"a.mp3", "b.mp3"}}
	q := NewQueue(catalog, 10)

	if !q.RefillIfEmpty() {
		t.Fatal("expected refill on empty queue")
	}
	if q.Len() != 1 {
		t.Fatalf("expected exactly one track after refill, got %d", q.Len())
	}
	picked := q.Items()[0]
	if !catalog.Has(picked) {
		t.Fatalf("refill picked %q which is not in the library", picked)
	}

	// Non-empty queue must not be touched.
	if q.RefillIfEmpty() {
		t.Fatal("refill must be a no-op on a non-empty queue")
	}
	if q.Len() != 1 {
		t.Fatalf("queue length changed on no-op refill: %d", q.Len())
	}
}

func TestRefillIfEmptyWithEmptyLibrary(t *testing.T) {
	q := NewQueue(&fakeCatalog{}, 10)
	if q.RefillIfEmpty() {
		t.Fatal("refill must not add anything when the library is empty")
	}
	if q.Len() != 0 {
		t.Fatalf("expected empty queue, got %d", q.Len())
	}
}

func TestAddFrontOrdering(t *testing.T) {
	catalog := &fakeCatalog{tracks: []string{"a.mp3", "b.mp3", "c.mp3"}}
	q := NewQueue(catalog, 10)

	for _, id := range []string{"a.mp3", "b.mp3", "c.mp3"} {
		if err := q.AddFront(id); err != nil {
			t.Fatalf("AddFront(%q): %v", id, err)
		}
	}

	// Most recently added plays first.
	want := []string{"c.mp3", "b.mp3", "a.mp3"}
	for i, w := range want {
		got, ok := q.PopNext()
		if !ok || got != w {
			t.Fatalf("pop %d: got (%q, %v), want %q", i, got, ok, w)
		}
	}
	if _, ok := q.PopNext(); ok {
		t.Fatal("pop on empty queue must report empty")
	}
}

func TestAddFrontErrors(t *testing.T) {
	catalog := &fakeCatalog{tracks: []string{"a.mp3", "b.mp3", "c.mp3"}}
	q := NewQueue(catalog, 2)

	if err := q.AddFront("missing.mp3"); err != ErrNotInLibrary {
		t.Fatalf("unknown track: got %v, want ErrNotInLibrary", err)
	}
	if err := q.AddFront("a.mp3"); err != nil {
		t.Fatalf("AddFront: %v", err)
	}
	if err := q.AddFront("a.mp3"); err != ErrDuplicate {
		t.Fatalf("duplicate: got %v, want ErrDuplicate", err)
	}
	if err := q.AddFront("b.mp3"); err != nil {
		t.Fatalf("AddFront: %v", err)
	}
	if err := q.AddFront("c.mp3"); err != ErrQueueFull {
		t.Fatalf("full queue: got %v, want ErrQueueFull", err)
	}
}

func TestRemoveDistinguishesUnknownFromUnqueued(t *testing.T) {
	catalog := &fakeCatalog{tracks: []string{"a.mp3", "b.mp3"}}
	q := NewQueue(catalog, 10)
	if err := q.AddFront("a.mp3"); err != nil {
		t.Fatal(err)
	}

	if err := q.Remove("missing.mp3"); err != ErrNotInLibrary {
		t.Fatalf("unknown track: got %v, want ErrNotInLibrary", err)
	}
	if err := q.Remove("b.mp3"); err != ErrNotQueued {
		t.Fatalf("unqueued track: got %v, want ErrNotQueued", err)
	}
	if err := q.Remove("a.mp3"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if q.Contains("a.mp3") {
		t.Fatal("track still queued after Remove")
	}
}

func TestEvictIsSilent(t *testing.T) {
	catalog := &fakeCatalog{tracks: []string{"a.mp3"}}
	q := NewQueue(catalog, 10)
	if q.Evict("a.mp3") {
		t.Fatal("evicting an unqueued track must report false")
	}
	if err := q.AddFront("a.mp3"); err != nil {
		t.Fatal(err)
	}
	if !q.Evict("a.mp3") {
		t.Fatal("evicting a queued track must report true")
	}
}

func TestInfoSnapshot(t *testing.T) {
	catalog := &fakeCatalog{tracks: []string{"a.mp3", "b.mp3"}}
	q := NewQueue(catalog, 10)
	if err := q.AddFront("a.mp3"); err != nil {
		t.Fatal(err)
	}
	if err := q.AddFront("b.mp3"); err != nil {
		t.Fatal(err)
	}

	info := q.Info()
	if info.Length != 2 || len(info.Queue) != 2 {
		t.Fatalf("unexpected snapshot: %+v", info)
	}
	if info.NextTrack == nil || info.NextTrack.Filepath != "b.mp3" {
		t.Fatalf("next track should be the queue head, got %+v", info.NextTrack)
	}
}
