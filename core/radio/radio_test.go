package radio

import (
	"os/exec"
	"testing"
	"time"

	"weradio/config"
	"weradio/core/audio"
	"weradio/model"
	"weradio/storage"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Role:              "producer",
		HLSDir:            t.TempDir(),
		CacheDir:          t.TempDir(),
		FFmpegPath:        "ffmpeg",
		SegmentDuration:   2,
		HLSListSize:       20,
		ClientBufferDelay: 10,
		QueueSize:         100,
		AudioCacheMax:     50,
		MetadataCacheMax:  200,
		PublishInterval:   time.Second,
		SnapshotTTL:       time.Hour,
	}
}

func newTestRadio(t *testing.T, tracks ...string) (*Radio, *memStore) {
	t.Helper()
	store := newMemStore()
	for _, id := range tracks {
		store.Write(storage.FolderLibrary, id, []byte("audio"), "")
	}
	proc := &stubProcessor{meta: audio.Metadata{Title: "T", Artist: "A", Duration: 60}}
	return New(testConfig(t), store, proc, nil), store
}

func TestNewSeedsQueue(t *testing.T) {
	r, _ := newTestRadio(t, "a.mp3", "b.mp3")
	if r.Queue.Len() != 1 {
		t.Fatalf("expected one seeded track, got %d", r.Queue.Len())
	}
}

func TestStatusWhileIdle(t *testing.T) {
	r, _ := newTestRadio(t, "a.mp3")
	status := r.Status()
	if status.Playing {
		t.Fatal("engine never started, status must not report playing")
	}
	if status.AvailableTracks != 1 {
		t.Fatalf("expected 1 available track, got %d", status.AvailableTracks)
	}
	if status.QueueLength != 1 || status.NextTrack == nil {
		t.Fatalf("expected seeded queue in status, got %+v", status)
	}
}

func TestTracksSortedWithQueueFlags(t *testing.T) {
	store := newMemStore()
	store.Write(storage.FolderLibrary, "b.mp3", []byte("x"), "")
	store.Write(storage.FolderLibrary, "a.mp3", []byte("x"), "")
	proc := &stubProcessor{probeErr: errProbe} // titles fall back to filenames
	r := New(testConfig(t), store, proc, nil)

	entries := r.Tracks()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Title > entries[1].Title {
		t.Fatalf("entries not title-sorted: %q, %q", entries[0].Title, entries[1].Title)
	}
	queued := 0
	for _, e := range entries {
		if e.InQueue {
			queued++
		}
	}
	if queued != 1 {
		t.Fatalf("expected exactly the seeded track flagged, got %d", queued)
	}
}

func TestAddToQueueValidation(t *testing.T) {
	r, _ := newTestRadio(t, "a.mp3", "b.mp3")
	if err := r.AddToQueue("../sneaky.mp3"); err != ErrInvalidPath {
		t.Fatalf("traversal id: got %v, want ErrInvalidPath", err)
	}
	if err := r.AddToQueue("ghost.mp3"); err != ErrNotInLibrary {
		t.Fatalf("unknown id: got %v, want ErrNotInLibrary", err)
	}
}

func TestRemoveTrackRefillsQueue(t *testing.T) {
	r, _ := newTestRadio(t, "a.mp3", "b.mp3", "c.mp3")

	// Make the seeded entry deterministic.
	for {
		if _, ok := r.Queue.PopNext(); !ok {
			break
		}
	}
	if err := r.AddToQueue("a.mp3"); err != nil {
		t.Fatal(err)
	}

	wasPlaying, err := r.RemoveTrack("a.mp3")
	if err != nil {
		t.Fatalf("RemoveTrack: %v", err)
	}
	if wasPlaying {
		t.Fatal("nothing is streaming, wasPlaying must be false")
	}
	if r.Library.Has("a.mp3") {
		t.Fatal("track still in library")
	}
	if r.Queue.Contains("a.mp3") {
		t.Fatal("track still queued")
	}
	if r.Queue.Len() != 1 {
		t.Fatalf("queue must be refilled after removal, got %d", r.Queue.Len())
	}
}

func TestDispatchCommands(t *testing.T) {
	r, store := newTestRadio(t, "a.mp3", "b.mp3")
	for {
		if _, ok := r.Queue.PopNext(); !ok {
			break
		}
	}

	r.dispatch(model.Command{Action: model.CommandAddToQueue, Filepath: "a.mp3"})
	if !r.Queue.Contains("a.mp3") {
		t.Fatal("add_to_queue command not applied")
	}

	r.dispatch(model.Command{Action: model.CommandRemoveFromQueue, Filepath: "a.mp3"})
	if r.Queue.Contains("a.mp3") {
		t.Fatal("remove_from_queue command not applied")
	}

	store.Write(storage.FolderLibrary, "new.mp3", []byte("x"), "")
	r.dispatch(model.Command{Action: model.CommandReloadTracks})
	if !r.Library.Has("new.mp3") {
		t.Fatal("reload_tracks command did not rescan the library")
	}

	// Unknown actions are ignored, not fatal.
	r.dispatch(model.Command{Action: "self_destruct"})
}

func TestRemoveTrackWhilePlayingSkips(t *testing.T) {
	r, _ := newTestRadio(t, "a.mp3", "b.mp3")
	for {
		if _, ok := r.Queue.PopNext(); !ok {
			break
		}
	}

	// Stand in for a live ffmpeg encode of a.mp3.
	cmd := exec.Command("sleep", "60")
	if err := cmd.Start(); err != nil {
		t.Skipf("cannot start sleep: %v", err)
	}
	done := make(chan struct{})
	go func() {
		cmd.Wait()
		close(done)
	}()

	r.Streamer.mu.Lock()
	r.Streamer.cmd = cmd
	r.Streamer.trackDone = done
	r.Streamer.current = model.TrackMetadata{Title: "A", Filepath: "a.mp3"}
	r.Streamer.trackStart = time.Now()
	r.Streamer.mu.Unlock()

	wasPlaying, err := r.RemoveTrack("a.mp3")
	if err != nil {
		t.Fatalf("RemoveTrack: %v", err)
	}
	if !wasPlaying {
		t.Fatal("removing the track being encoded must report wasPlaying")
	}

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("encoder process survived the removal grace window")
	}

	if r.Library.Has("a.mp3") {
		t.Fatal("track still in library")
	}
	if r.Queue.Contains("a.mp3") {
		t.Fatal("track still queued")
	}
	if r.Queue.Len() != 1 {
		t.Fatalf("queue must be refilled after removal, got %d", r.Queue.Len())
	}
}
