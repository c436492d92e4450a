package radio

import (
	"os/exec"
	"testing"
	"time"
)

func TestSegmentsPerTrack(t *testing.T) {
	cases := []struct {
		duration float64
		segment  int
		want     int
	}{
		{duration: 180, segment: 2, want: 91},   // exact multiple
		{duration: 181, segment: 2, want: 92},   // rounds up
		{duration: 0.5, segment: 2, want: 2},    // shorter than one segment
		{duration: 0, segment: 2, want: 1},      // unknown duration
		{duration: -3, segment: 2, want: 1},     // garbage duration
		{duration: 10, segment: 0, want: 1},     // garbage segment length
	}
	for _, c := range cases {
		if got := segmentsPerTrack(c.duration, c.segment); got != c.want {
			t.Errorf("segmentsPerTrack(%v, %d) = %d, want %d", c.duration, c.segment, got, c.want)
		}
	}
}

func TestSegmentCounterMonotonic(t *testing.T) {
	counter := 0
	durations := []float64{181, 0, 62.5}
	var baselines []int
	for _, d := range durations {
		baselines = append(baselines, counter)
		counter += segmentsPerTrack(d, 2)
	}
	for i := 1; i < len(baselines); i++ {
		if baselines[i] <= baselines[i-1] {
			t.Fatalf("baseline %d (%d) not greater than previous (%d)", i, baselines[i], baselines[i-1])
		}
	}
	if counter != 92+1+33 {
		t.Fatalf("unexpected final counter: %d", counter)
	}
}

func TestSegmentsInPlaylist(t *testing.T) {
	playlist := `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:2
#EXT-X-MEDIA-SEQUENCE:42
#EXTINF:2.000000,
segment_042.ts
#EXTINF:2.000000,
segment_043.ts
#EXTINF:1.500000,
  segment_044.ts
`
	refs := segmentsInPlaylist(playlist)
	for _, want := range []string{"segment_042.ts", "segment_043.ts", "segment_044.ts"} {
		if !refs[want] {
			t.Errorf("missing reference %q", want)
		}
	}
	if len(refs) != 3 {
		t.Errorf("expected 3 references, got %d", len(refs))
	}
	if refs["#EXTINF:2.000000,"] {
		t.Error("directive line misparsed as a segment")
	}
}

func TestPlaybackPosition(t *testing.T) {
	cases := []struct {
		elapsed  time.Duration
		buffer   int
		duration float64
		want     float64
	}{
		{elapsed: 5 * time.Second, buffer: 10, duration: 180, want: 0},    // still in the buffer window
		{elapsed: 30 * time.Second, buffer: 10, duration: 180, want: 20},  // normal case
		{elapsed: 300 * time.Second, buffer: 10, duration: 180, want: 180}, // clamped to duration
		{elapsed: 30 * time.Second, buffer: 10, duration: 0, want: 20},    // unknown duration, no clamp
	}
	for _, c := range cases {
		if got := playbackPosition(c.elapsed, c.buffer, c.duration); got != c.want {
			t.Errorf("playbackPosition(%v, %d, %v) = %v, want %v", c.elapsed, c.buffer, c.duration, got, c.want)
		}
	}
}

func TestTerminateStopsProcess(t *testing.T) {
	cmd := exec.Command("sleep", "60")
	if err := cmd.Start(); err != nil {
		t.Skipf("cannot start sleep: %v", err)
	}

	done := make(chan struct{})
	go func() {
		cmd.Wait()
		close(done)
	}()

	terminate(cmd, done, 2*time.Second)

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("process survived terminate")
	}
}
