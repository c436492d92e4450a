package cache

import (
	"fmt"
	"os"
	"testing"
	"time"
)

func TestAudioCachePathForIsStable(t *testing.T) {
	c, err := NewAudioCache(t.TempDir(), 50)
	if err != nil {
		t.Fatal(err)
	}
	a := c.PathFor("dir/song.mp3")
	b := c.PathFor("dir/song.mp3")
	if a != b {
		t.Fatalf("path not deterministic: %q vs %q", a, b)
	}
	if a == c.PathFor("other.mp3") {
		t.Fatal("different ids must map to different paths")
	}
}

func TestAudioCacheLookup(t *testing.T) {
	c, err := NewAudioCache(t.TempDir(), 50)
	if err != nil {
		t.Fatal(err)
	}

	if _, ok := c.Lookup("song.mp3"); ok {
		t.Fatal("unexpected hit on empty cache")
	}
	if err := os.WriteFile(c.PathFor("song.mp3"), []byte("aac"), 0644); err != nil {
		t.Fatal(err)
	}
	path, ok := c.Lookup("song.mp3")
	if !ok || path != c.PathFor("song.mp3") {
		t.Fatalf("lookup failed: (%q, %v)", path, ok)
	}
}

func TestAudioCacheCleanEvictsLRU(t *testing.T) {
	c, err := NewAudioCache(t.TempDir(), 2)
	if err != nil {
		t.Fatal(err)
	}

	old := time.Now().Add(-time.Hour)
	for i := 0; i < 4; i++ {
		id := fmt.Sprintf("track%d.mp3", i)
		p := c.PathFor(id)
		if err := os.WriteFile(p, []byte("aac"), 0644); err != nil {
			t.Fatal(err)
		}
		// track0 and track1 look stale.
		if i < 2 {
			if err := os.Chtimes(p, old, old); err != nil {
				t.Fatal(err)
			}
		}
	}

	removed := c.Clean()
	if removed != 2 {
		t.Fatalf("expected 2 evictions, got %d", removed)
	}
	if _, ok := c.Lookup("track0.mp3"); ok {
		t.Fatal("stale entry survived clean")
	}
	if _, ok := c.Lookup("track3.mp3"); !ok {
		t.Fatal("fresh entry evicted")
	}
}

func TestAudioCacheRemove(t *testing.T) {
	c, err := NewAudioCache(t.TempDir(), 50)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Remove("never-cached.mp3"); err != nil {
		t.Fatalf("removing an uncached id must be a no-op, got %v", err)
	}
	if err := os.WriteFile(c.PathFor("x.mp3"), []byte("aac"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := c.Remove("x.mp3"); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Lookup("x.mp3"); ok {
		t.Fatal("entry survived Remove")
	}
}
