package cluster

import (
	"context"
	"fmt"
	"sync"
	"time"

	"weradio/logger"

	"github.com/redis/go-redis/v9"
)

// Reconnection settings.
const (
	reconnectMaxAttempts = 5
	reconnectDelay       = 2 * time.Second
)

// RedisOptions configures the Redis connection backing a RedisBus.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// RedisBus implements Bus over a Redis connection. Every operation is a
// single attempt; on a transport failure the bus marks itself disconnected
// and tries to reconnect with linearly increasing backoff, throttled so a
// flapping server cannot trigger reconnect storms.
type RedisBus struct {
	opts RedisOptions

	mu            sync.Mutex
	client        *redis.Client
	lastReconnect time.Time
}

// NewRedisBus creates a bus; the connection is established lazily on first use.
func NewRedisBus(opts RedisOptions) *RedisBus {
	return &RedisBus{opts: opts}
}

// connect dials Redis and verifies the connection with a ping.
func (b *RedisBus) connect() (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     b.opts.Addr,
		Password: b.opts.Password,
		DB:       b.opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis已连接", logger.String("addr", b.opts.Addr))
	return client, nil
}

// acquire returns the live client, connecting if needed.
func (b *RedisBus) acquire() (*redis.Client, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.client != nil {
		return b.client, nil
	}
	return b.reconnectLocked()
}

// dropAndReconnect discards a client observed to be broken and attempts a
// fresh connection.
func (b *RedisBus) dropAndReconnect(broken *redis.Client) (*redis.Client, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.client == broken && b.client != nil {
		b.client.Close()
		b.client = nil
	}
	if b.client != nil {
		// Someone else already reconnected.
		return b.client, nil
	}
	return b.reconnectLocked()
}

func (b *RedisBus) reconnectLocked() (*redis.Client, error) {
	// Throttle gate: avoid hammering a server that just went away.
	if time.Since(b.lastReconnect) < reconnectDelay {
		return nil, ErrUnavailable
	}
	b.lastReconnect = time.Now()

	for attempt := 1; attempt <= reconnectMaxAttempts; attempt++ {
		client, err := b.connect()
		if err == nil {
			if attempt > 1 {
				logger.Info("Redis重连成功", logger.Int("attempts", attempt))
			}
			b.client = client
			return client, nil
		}

		if attempt < reconnectMaxAttempts {
			wait := reconnectDelay * time.Duration(attempt)
			logger.Warn("Redis重连失败，稍后重试",
				logger.Int("attempt", attempt),
				logger.Duration("wait", wait),
				logger.ErrorField(err))
			time.Sleep(wait)
		}
	}

	logger.Error("Redis重连失败，已放弃", logger.Int("attempts", reconnectMaxAttempts))
	return nil, ErrUnavailable
}

// execute runs op once, reconnecting and retrying a single time if the
// connection proves broken.
func (b *RedisBus) execute(op func(client *redis.Client) error) error {
	client, err := b.acquire()
	if err != nil {
		return ErrUnavailable
	}

	err = op(client)
	if err == nil || err == redis.Nil {
		return err
	}

	client, rerr := b.dropAndReconnect(client)
	if rerr != nil {
		return ErrUnavailable
	}
	if err := op(client); err != nil {
		if err == redis.Nil {
			return err
		}
		return ErrUnavailable
	}
	return nil
}

func (b *RedisBus) Get(ctx context.Context, key string) (string, error) {
	var val string
	err := b.execute(func(client *redis.Client) error {
		res, err := client.Get(ctx, key).Result()
		if err != nil {
			return err
		}
		val = res
		return nil
	})
	if err == redis.Nil {
		return "", ErrNoData
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

func (b *RedisBus) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return b.execute(func(client *redis.Client) error {
		return client.Set(ctx, key, value, ttl).Err()
	})
}

func (b *RedisBus) Publish(ctx context.Context, channel, payload string) error {
	return b.execute(func(client *redis.Client) error {
		return client.Publish(ctx, channel, payload).Err()
	})
}

// Subscribe opens a pub/sub subscription and forwards payloads until ctx is
// done or the connection drops.
func (b *RedisBus) Subscribe(ctx context.Context, channel string) (<-chan string, error) {
	client, err := b.acquire()
	if err != nil {
		return nil, ErrUnavailable
	}

	sub := client.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		b.dropAndReconnect(client)
		return nil, ErrUnavailable
	}

	out := make(chan string)
	go func() {
		defer close(out)
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-sub.Channel():
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Close releases the underlying connection.
func (b *RedisBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client != nil {
		err := b.client.Close()
		b.client = nil
		return err
	}
	return nil
}
