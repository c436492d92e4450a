package cluster

import (
	"context"
	"sync"
	"testing"
	"time"

	"weradio/model"
)

// memBus is an in-memory Bus with real TTL expiry, standing in for Redis.
type memBus struct {
	mu      sync.Mutex
	values  map[string]string
	expires map[string]time.Time
	subs    map[string][]chan string
	down    bool
}

func newMemBus() *memBus {
	return &memBus{
		values:  make(map[string]string),
		expires: make(map[string]time.Time),
		subs:    make(map[string][]chan string),
	}
}

func (b *memBus) Get(ctx context.Context, key string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.down {
		return "", ErrUnavailable
	}
	val, ok := b.values[key]
	if !ok {
		return "", ErrNoData
	}
	if exp, ok := b.expires[key]; ok && time.Now().After(exp) {
		delete(b.values, key)
		delete(b.expires, key)
		return "", ErrNoData
	}
	return val, nil
}

func (b *memBus) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.down {
		return ErrUnavailable
	}
	b.values[key] = value
	if ttl > 0 {
		b.expires[key] = time.Now().Add(ttl)
	}
	return nil
}

func (b *memBus) Publish(ctx context.Context, channel, payload string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.down {
		return ErrUnavailable
	}
	for _, sub := range b.subs[channel] {
		sub <- payload
	}
	return nil
}

func (b *memBus) Subscribe(ctx context.Context, channel string) (<-chan string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.down {
		return nil, ErrUnavailable
	}
	ch := make(chan string, 16)
	b.subs[channel] = append(b.subs[channel], ch)
	return ch, nil
}

func TestSnapshotRoundTrip(t *testing.T) {
	bus := newMemBus()
	ch := NewChannel(bus, time.Hour)
	ctx := context.Background()

	meta := model.TrackMetadata{Title: "Song", Artist: "Band", Duration: 182.5, Filepath: "song.mp3"}
	if err := ch.SetCurrentTrack(ctx, meta); err != nil {
		t.Fatal(err)
	}
	got, err := ch.CurrentTrack(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || *got != meta {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	if err := ch.SetPlaybackTime(ctx, 42.75); err != nil {
		t.Fatal(err)
	}
	seconds, err := ch.PlaybackTime(ctx)
	if err != nil || seconds != 42.75 {
		t.Fatalf("playback time: got (%v, %v)", seconds, err)
	}

	if err := ch.SetQueue(ctx, []string{"a.mp3", "b.mp3"}); err != nil {
		t.Fatal(err)
	}
	queue, err := ch.Queue(ctx)
	if err != nil || len(queue) != 2 || queue[0] != "a.mp3" {
		t.Fatalf("queue: got (%v, %v)", queue, err)
	}
}

func TestSnapshotExpiry(t *testing.T) {
	bus := newMemBus()
	ch := NewChannel(bus, 20*time.Millisecond)
	ctx := context.Background()

	if err := ch.SetCurrentTrack(ctx, model.TrackMetadata{Filepath: "x.mp3"}); err != nil {
		t.Fatal(err)
	}
	time.Sleep(40 * time.Millisecond)

	got, err := ch.CurrentTrack(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("expired snapshot must read as no data, got %+v", got)
	}

	seconds, err := ch.PlaybackTime(ctx)
	if err != nil || seconds != 0 {
		t.Fatalf("expired playback time: got (%v, %v)", seconds, err)
	}
}

func TestCommandDelivery(t *testing.T) {
	bus := newMemBus()
	ch := NewChannel(bus, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmds, err := ch.SubscribeCommands(ctx)
	if err != nil {
		t.Fatal(err)
	}

	want := model.Command{Action: model.CommandAddToQueue, Filepath: "a.mp3"}
	if err := ch.PublishCommand(ctx, want); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-cmds:
		if got != want {
			t.Fatalf("got %+v, want %+v", got, want)
		}
	case <-time.After(time.Second):
		t.Fatal("command not delivered")
	}
}

func TestMalformedCommandDropped(t *testing.T) {
	bus := newMemBus()
	ch := NewChannel(bus, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmds, err := ch.SubscribeCommands(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if err := bus.Publish(ctx, CommandChannel, "{not json"); err != nil {
		t.Fatal(err)
	}
	if err := ch.PublishCommand(ctx, model.Command{Action: model.CommandReloadTracks}); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-cmds:
		if got.Action != model.CommandReloadTracks {
			t.Fatalf("expected the valid command, got %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("valid command lost behind malformed one")
	}
}

func TestUnavailableBusSurfaces(t *testing.T) {
	bus := newMemBus()
	bus.down = true
	ch := NewChannel(bus, time.Hour)
	ctx := context.Background()

	if err := ch.SetCurrentTrack(ctx, model.TrackMetadata{}); err != ErrUnavailable {
		t.Fatalf("set: got %v, want ErrUnavailable", err)
	}
	if _, err := ch.CurrentTrack(ctx); err != ErrUnavailable {
		t.Fatalf("get: got %v, want ErrUnavailable", err)
	}
}
