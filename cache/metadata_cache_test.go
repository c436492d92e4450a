package cache

import (
	"fmt"
	"testing"

	"weradio/model"
)

func TestMetadataCachePutGet(t *testing.T) {
	c := NewMetadataCache(10)
	meta := model.TrackMetadata{Title: "T", Artist: "A", Duration: 3, Filepath: "t.mp3"}
	c.Put("t.mp3", meta)

	got, ok := c.Get("t.mp3")
	if !ok || got != meta {
		t.Fatalf("got (%+v, %v)", got, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Fatal("unexpected hit for missing key")
	}
}

func TestMetadataCacheEvictsOldestInserted(t *testing.T) {
	c := NewMetadataCache(3)
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("track%d.mp3", i)
		c.Put(id, model.TrackMetadata{Filepath: id})
	}

	// Reads trigger the opportunistic clean down to capacity.
	if _, ok := c.Get("track4.mp3"); !ok {
		t.Fatal("newest entry must survive")
	}
	if _, ok := c.Get("track0.mp3"); ok {
		t.Fatal("oldest entry must be evicted")
	}
	if c.Len() > 3 {
		t.Fatalf("cache over capacity: %d", c.Len())
	}
}

func TestMetadataCacheDelete(t *testing.T) {
	c := NewMetadataCache(10)
	c.Put("x.mp3", model.TrackMetadata{Filepath: "x.mp3"})
	c.Delete("x.mp3")
	if _, ok := c.Get("x.mp3"); ok {
		t.Fatal("entry survived Delete")
	}
	c.Delete("never-existed") // must not panic
}
