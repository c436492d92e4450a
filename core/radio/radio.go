package radio

import (
	"context"
	"errors"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"weradio/cache"
	"weradio/cluster"
	"weradio/config"
	"weradio/core/audio"
	"weradio/core/utils"
	"weradio/logger"
	"weradio/model"
	"weradio/storage"
)

const listenerRetryDelay = 5 * time.Second

// Radio coordinates the library, the playback queue and the stream engine,
// and (in the producer role) replicates state over the cluster channel.
type Radio struct {
	cfg      *config.Config
	Library  *Library
	Queue    *Queue
	Streamer *Streamer
	channel  *cluster.Channel // nil when replication is not configured

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New assembles the full playback pipeline. channel may be nil for a
// standalone node.
func New(cfg *config.Config, store storage.Storage, processor audio.Processor, channel *cluster.Channel) *Radio {
	metaCache := cache.NewMetadataCache(cfg.MetadataCacheMax)
	audioCache, err := cache.NewAudioCache(cfg.CacheDir, cfg.AudioCacheMax)
	if err != nil {
		logger.Fatal("初始化音频缓存失败", logger.ErrorField(err))
	}

	library := NewLibrary(store, processor, metaCache, audioCache)
	library.Load()

	queue := NewQueue(library, cfg.QueueSize)
	queue.RefillIfEmpty()

	return &Radio{
		cfg:      cfg,
		Library:  library,
		Queue:    queue,
		Streamer: NewStreamer(cfg, library, queue),
		channel:  channel,
	}
}

// Start brings the node up. The producer role starts the engine and the two
// replication loops; nothing is started for readers.
func (r *Radio) Start() {
	if r.cfg.Role != "producer" {
		logger.Info("以读取节点模式运行，不启动本地流引擎")
		return
	}

	r.Streamer.Start()

	if r.channel == nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	r.wg.Add(2)
	go r.publishLoop(ctx)
	go r.listenLoop(ctx)
}

// Stop tears the node down: loops first, engine last, all joined.
func (r *Radio) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	r.Streamer.Stop()
}

// publishLoop replicates the full station snapshot on the publish cadence.
func (r *Radio) publishLoop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.PublishInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.publishSnapshot(ctx)
		}
	}
}

func (r *Radio) publishSnapshot(ctx context.Context) {
	if err := r.channel.SetCurrentTrack(ctx, r.Streamer.NowPlaying()); err != nil {
		r.logPublishErr("current_track", err)
		return
	}
	if err := r.channel.SetPlaybackTime(ctx, r.Streamer.PlaybackTime()); err != nil {
		r.logPublishErr("playback_time", err)
	}
	if err := r.channel.SetQueue(ctx, r.Queue.Items()); err != nil {
		r.logPublishErr("queue", err)
	}

	ids := r.Library.Tracks()
	tracks := make([]model.TrackMetadata, 0, len(ids))
	for _, id := range ids {
		tracks = append(tracks, r.Library.Metadata(id))
	}
	if err := r.channel.SetAvailableTracks(ctx, tracks); err != nil {
		r.logPublishErr("available_tracks", err)
	}
}

func (r *Radio) logPublishErr(field string, err error) {
	// Unavailable is routine while Redis is down; the bus reconnects itself.
	if errors.Is(err, cluster.ErrUnavailable) {
		logger.Debug("复制通道不可用", logger.String("field", field))
		return
	}
	logger.Warn("发布状态失败", logger.String("field", field), logger.ErrorField(err))
}

// listenLoop consumes remote commands and applies them through the same
// entry points local HTTP calls use.
func (r *Radio) listenLoop(ctx context.Context) {
	defer r.wg.Done()

	for {
		cmds, err := r.channel.SubscribeCommands(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("订阅命令通道失败，稍后重试", logger.ErrorField(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(listenerRetryDelay):
			}
			continue
		}

		for cmd := range cmds {
			r.dispatch(cmd)
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (r *Radio) dispatch(cmd model.Command) {
	logger.Info("收到远程命令",
		logger.String("action", cmd.Action),
		logger.String("filepath", cmd.Filepath))

	switch cmd.Action {
	case model.CommandAddToQueue:
		if err := r.AddToQueue(cmd.Filepath); err != nil {
			logger.Warn("远程加入队列失败", logger.String("track", cmd.Filepath), logger.ErrorField(err))
		}
	case model.CommandRemoveFromQueue:
		if err := r.RemoveFromQueue(cmd.Filepath); err != nil {
			logger.Warn("远程移出队列失败", logger.String("track", cmd.Filepath), logger.ErrorField(err))
		}
	case model.CommandReloadTracks:
		r.Library.Load()
		r.Queue.RefillIfEmpty()
	default:
		logger.Warn("未知命令", logger.String("action", cmd.Action))
	}
}

// Status builds the live station status from local state.
func (r *Radio) Status() model.Status {
	info := r.Queue.Info()
	return model.Status{
		Playing:         r.Streamer.Running(),
		Metadata:        r.Streamer.NowPlaying(),
		CurrentTime:     r.Streamer.PlaybackTime(),
		NextTrack:       info.NextTrack,
		AvailableTracks: r.Library.Count(),
		QueueLength:     info.Length,
		Queue:           info.Queue,
	}
}

// Tracks lists the library sorted by title (case-insensitive) with queue
// membership flags.
func (r *Radio) Tracks() []model.TrackEntry {
	ids := r.Library.Tracks()
	entries := make([]model.TrackEntry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, model.TrackEntry{
			TrackMetadata: r.Library.Metadata(id),
			Filename:      path.Base(id),
			InQueue:       r.Queue.Contains(id),
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return strings.ToLower(entries[i].Title) < strings.ToLower(entries[j].Title)
	})
	return entries
}

// AddToQueue validates the identifier and puts the track next in line.
func (r *Radio) AddToQueue(id string) error {
	if !utils.ValidateRelPath(id) {
		return ErrInvalidPath
	}
	return r.Queue.AddFront(id)
}

// RemoveFromQueue validates the identifier and removes it from the queue.
func (r *Radio) RemoveFromQueue(id string) error {
	if !utils.ValidateRelPath(id) {
		return ErrInvalidPath
	}
	return r.Queue.Remove(id)
}

// RemoveTrack deletes a track from the station. The queue is evicted before
// the bytes go away; a track being streamed right now is skipped, and the
// queue is refilled so playback never starves. Reports whether the deleted
// track was playing.
func (r *Radio) RemoveTrack(id string) (bool, error) {
	wasPlaying := r.Streamer.IsCurrent(id)

	if err := r.Library.Remove(id, r.Queue); err != nil {
		return false, err
	}

	if wasPlaying {
		r.Streamer.Skip()
	}
	r.Queue.RefillIfEmpty()
	return wasPlaying, nil
}
