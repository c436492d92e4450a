// Package cluster shares live radio state between the producer node and any
// number of stateless reader nodes. The producer publishes TTL-bounded
// snapshots of its state; readers consume them and send control commands
// back over a pub/sub channel. Replication is best-effort: a dead producer's
// snapshot simply expires.
package cluster

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable is returned by every operation while the replication store
// is unreachable. Callers degrade to "no sync" instead of crashing.
var ErrUnavailable = errors.New("replication store unavailable")

// ErrNoData is returned by Get when a key is absent or its TTL has expired.
var ErrNoData = errors.New("no data")

// Bus is the transport capability the channel is built on: a TTL'd
// key/value store plus publish/subscribe. The production implementation is
// RedisBus; tests substitute an in-memory fake.
type Bus interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Publish(ctx context.Context, channel, payload string) error
	// Subscribe delivers payloads published to channel until ctx is done.
	// The returned channel is closed on cancellation or connection loss;
	// callers re-subscribe to resume.
	Subscribe(ctx context.Context, channel string) (<-chan string, error)
}
