package radio

import (
	"math/rand"
	"path"
	"sync"

	"weradio/logger"
	"weradio/model"
)

// Queue is the bounded playback queue. A single mutex guards every field;
// all operations are set-like on track identifiers.
type Queue struct {
	mu      sync.Mutex
	items   []string
	max     int
	catalog Catalog
}

// NewQueue creates an empty queue bound to a library catalog.
func NewQueue(catalog Catalog, max int) *Queue {
	return &Queue{catalog: catalog, max: max}
}

// RefillIfEmpty appends exactly one uniformly random library track, but only
// when the queue is empty and the library is not. Reports whether a track
// was added.
func (q *Queue) RefillIfEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) > 0 {
		return false
	}
	tracks := q.catalog.Tracks()
	if len(tracks) == 0 {
		return false
	}
	pick := tracks[rand.Intn(len(tracks))]
	q.items = append(q.items, pick)
	logger.Info("队列补充随机曲目", logger.String("track", pick))
	return true
}

// AddFront inserts a track at the head so it plays next.
func (q *Queue) AddFront(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) >= q.max {
		return ErrQueueFull
	}
	if !q.catalog.Has(id) {
		return ErrNotInLibrary
	}
	for _, it := range q.items {
		if it == id {
			return ErrDuplicate
		}
	}
	q.items = append([]string{id}, q.items...)
	return nil
}

// Remove deletes a queued track, distinguishing unknown tracks from known
// but unqueued ones.
func (q *Queue) Remove(id string) error {
	if !q.catalog.Has(id) {
		return ErrNotInLibrary
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	for i, it := range q.items {
		if it == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return nil
		}
	}
	return ErrNotQueued
}

// Evict silently drops the identifier if queued. Used by library removal,
// where absence is not an error.
func (q *Queue) Evict(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, it := range q.items {
		if it == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}

// PopNext removes and returns the head. Empty is not an error.
func (q *Queue) PopNext() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return "", false
	}
	head := q.items[0]
	q.items = q.items[1:]
	return head, true
}

// Len returns the number of queued tracks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Contains reports whether the identifier is queued.
func (q *Queue) Contains(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, it := range q.items {
		if it == id {
			return true
		}
	}
	return false
}

// Items returns a snapshot copy of the queued identifiers, head first.
func (q *Queue) Items() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.items...)
}

// Info builds a display snapshot: human-readable queue entries plus the
// metadata of the next track.
func (q *Queue) Info() model.QueueInfo {
	items := q.Items()

	info := model.QueueInfo{
		Queue:  make([]string, 0, len(items)),
		Length: len(items),
	}
	for _, id := range items {
		meta := q.catalog.Metadata(id)
		display := meta.Artist + " - " + meta.Title
		if meta.Title == "" {
			display = path.Base(id)
		}
		info.Queue = append(info.Queue, display)
	}
	if len(items) > 0 {
		next := q.catalog.Metadata(items[0])
		info.NextTrack = &next
	}
	return info
}
