package cluster

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"weradio/logger"
	"weradio/model"
)

// Redis keys for the replicated snapshot and the command channel.
const (
	KeyCurrentTrack    = "weradio:current_track"
	KeyQueue           = "weradio:queue"
	KeyAvailableTracks = "weradio:available_tracks"
	KeyPlaybackTime    = "weradio:playback_time"
	CommandChannel     = "weradio:commands"
)

// Channel is the typed snapshot/command API over a Bus. The producer writes
// each snapshot field on a fixed cadence with a TTL; readers treat an absent
// or expired field as "no producer currently live". No cross-field atomicity
// is promised.
type Channel struct {
	bus Bus
	ttl time.Duration
}

// NewChannel wraps an injected bus. ttl bounds the lifetime of every
// snapshot field.
func NewChannel(bus Bus, ttl time.Duration) *Channel {
	return &Channel{bus: bus, ttl: ttl}
}

// === current track ===

// SetCurrentTrack publishes the now-playing metadata.
func (c *Channel) SetCurrentTrack(ctx context.Context, meta model.TrackMetadata) error {
	return c.setJSON(ctx, KeyCurrentTrack, meta)
}

// CurrentTrack returns the replicated now-playing metadata, or nil when the
// snapshot has expired.
func (c *Channel) CurrentTrack(ctx context.Context) (*model.TrackMetadata, error) {
	var meta model.TrackMetadata
	ok, err := c.getJSON(ctx, KeyCurrentTrack, &meta)
	if err != nil || !ok {
		return nil, err
	}
	return &meta, nil
}

// === playback time ===

func (c *Channel) SetPlaybackTime(ctx context.Context, seconds float64) error {
	return c.bus.Set(ctx, KeyPlaybackTime, strconv.FormatFloat(seconds, 'f', -1, 64), c.ttl)
}

func (c *Channel) PlaybackTime(ctx context.Context) (float64, error) {
	raw, err := c.bus.Get(ctx, KeyPlaybackTime)
	if err == ErrNoData {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		logger.Error("解析播放进度失败", logger.String("raw", raw), logger.ErrorField(err))
		return 0, nil
	}
	return seconds, nil
}

// === queue ===

func (c *Channel) SetQueue(ctx context.Context, queue []string) error {
	return c.setJSON(ctx, KeyQueue, queue)
}

func (c *Channel) Queue(ctx context.Context) ([]string, error) {
	var queue []string
	if _, err := c.getJSON(ctx, KeyQueue, &queue); err != nil {
		return nil, err
	}
	return queue, nil
}

// === available tracks ===

func (c *Channel) SetAvailableTracks(ctx context.Context, tracks []model.TrackMetadata) error {
	return c.setJSON(ctx, KeyAvailableTracks, tracks)
}

func (c *Channel) AvailableTracks(ctx context.Context) ([]model.TrackMetadata, error) {
	var tracks []model.TrackMetadata
	if _, err := c.getJSON(ctx, KeyAvailableTracks, &tracks); err != nil {
		return nil, err
	}
	return tracks, nil
}

// === commands ===

// PublishCommand sends a control command to the producer. Delivery is
// at-most-once: the command is lost if no producer is subscribed.
func (c *Channel) PublishCommand(ctx context.Context, cmd model.Command) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	return c.bus.Publish(ctx, CommandChannel, string(payload))
}

// SubscribeCommands yields decoded commands until ctx is done. Malformed
// payloads are logged and dropped.
func (c *Channel) SubscribeCommands(ctx context.Context) (<-chan model.Command, error) {
	raw, err := c.bus.Subscribe(ctx, CommandChannel)
	if err != nil {
		return nil, err
	}

	out := make(chan model.Command)
	go func() {
		defer close(out)
		for payload := range raw {
			var cmd model.Command
			if err := json.Unmarshal([]byte(payload), &cmd); err != nil {
				logger.Warn("收到无法解析的命令", logger.String("payload", payload), logger.ErrorField(err))
				continue
			}
			select {
			case out <- cmd:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// === helpers ===

func (c *Channel) setJSON(ctx context.Context, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.bus.Set(ctx, key, string(data), c.ttl)
}

// getJSON returns (false, nil) when the key is absent or expired.
func (c *Channel) getJSON(ctx context.Context, key string, v interface{}) (bool, error) {
	raw, err := c.bus.Get(ctx, key)
	if err == ErrNoData {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		logger.Error("解析复制状态失败", logger.String("key", key), logger.ErrorField(err))
		return false, nil
	}
	return true, nil
}
