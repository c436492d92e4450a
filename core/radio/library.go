package radio

import (
	"fmt"
	"os"
	"path"
	"strings"
	"sync"

	"weradio/cache"
	"weradio/core/audio"
	"weradio/core/utils"
	"weradio/logger"
	"weradio/model"
	"weradio/storage"
)

// SilenceTrack is the identifier of the synthetic placeholder inserted when
// the library holds no real tracks, so the engine always has something to play.
const SilenceTrack = "silence_fallback.aac"

const silenceDurationSeconds = 5

// Catalog is the capability the playback queue needs from the library.
type Catalog interface {
	Tracks() []string
	Has(id string) bool
	Metadata(id string) model.TrackMetadata
}

// Source is the capability the stream engine needs from the library.
type Source interface {
	Count() int
	Metadata(id string) model.TrackMetadata
	PlayableAudio(id string) (string, error)
}

// Library manages the playable tracks of the station: scanning the storage
// backend, serving cached metadata, serving playback-ready renditions and
// handling removal.
type Library struct {
	store      storage.Storage
	processor  audio.Processor
	metaCache  *cache.MetadataCache
	audioCache *cache.AudioCache

	mu     sync.RWMutex
	tracks []string // discovery order
}

// NewLibrary wires the library to its storage backend and caches. Call
// Load before use.
func NewLibrary(store storage.Storage, processor audio.Processor, metaCache *cache.MetadataCache, audioCache *cache.AudioCache) *Library {
	return &Library{
		store:      store,
		processor:  processor,
		metaCache:  metaCache,
		audioCache: audioCache,
	}
}

// Load rescans the storage backend and replaces the track list. An empty
// store gets the silence placeholder materialized so downstream consumers
// always have something to play. Scan errors degrade to an empty
// (silence-backed) library rather than propagating.
func (l *Library) Load() []string {
	files, err := l.store.List(storage.FolderLibrary, utils.AudioExtensions)
	if err != nil {
		logger.Error("扫描音乐库失败", logger.ErrorField(err))
		files = nil
	}

	if len(files) == 0 {
		if err := l.ensureSilence(); err != nil {
			logger.Error("生成静音占位文件失败", logger.ErrorField(err))
		}
		files, err = l.store.List(storage.FolderLibrary, utils.AudioExtensions)
		if err != nil {
			logger.Error("扫描音乐库失败", logger.ErrorField(err))
			files = nil
		}
	}

	l.mu.Lock()
	l.tracks = files
	l.mu.Unlock()

	logger.Info("音乐库加载完成", logger.Int("tracks", len(files)))
	return append([]string(nil), files...)
}

// ensureSilence generates and registers the placeholder when missing.
func (l *Library) ensureSilence() error {
	exists, err := l.store.Exists(storage.FolderLibrary, SilenceTrack)
	if err == nil && exists {
		return nil
	}

	tmp, err := os.CreateTemp("", "weradio-silence-*.aac")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := l.processor.GenerateSilence(tmpPath, silenceDurationSeconds); err != nil {
		return err
	}
	data, err := os.ReadFile(tmpPath)
	if err != nil {
		return err
	}
	return l.store.Write(storage.FolderLibrary, SilenceTrack, data, "audio/aac")
}

// Add registers a freshly stored track. The silence placeholder is retired
// atomically with the real track becoming visible.
func (l *Library) Add(id string) {
	l.mu.Lock()
	for _, t := range l.tracks {
		if t == id {
			l.mu.Unlock()
			return
		}
	}
	l.tracks = append(l.tracks, id)

	dropSilence := false
	if id != SilenceTrack {
		for i, t := range l.tracks {
			if t == SilenceTrack {
				l.tracks = append(l.tracks[:i], l.tracks[i+1:]...)
				dropSilence = true
				break
			}
		}
	}
	l.mu.Unlock()

	if dropSilence {
		l.metaCache.Delete(SilenceTrack)
		if err := l.store.Delete(storage.FolderLibrary, SilenceTrack); err != nil {
			logger.Warn("删除静音占位文件失败", logger.ErrorField(err))
		}
		logger.Info("已有真实曲目，静音占位文件退场")
	}
}

// Tracks returns a copy of the identifier list in discovery order.
func (l *Library) Tracks() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string(nil), l.tracks...)
}

// Count returns the number of tracks, placeholder included.
func (l *Library) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.tracks)
}

// Has reports membership of an identifier.
func (l *Library) Has(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, t := range l.tracks {
		if t == id {
			return true
		}
	}
	return false
}

func (l *Library) realCountLocked() int {
	n := 0
	for _, t := range l.tracks {
		if t != SilenceTrack {
			n++
		}
	}
	return n
}

// Metadata returns tag metadata for a track, cached by identifier. Missing
// tags fall back to the filename and "Unknown". The silence placeholder
// short-circuits to a fixed synthetic record.
func (l *Library) Metadata(id string) model.TrackMetadata {
	if id == SilenceTrack {
		return model.TrackMetadata{
			Title:    "Silence",
			Artist:   "WeRadio",
			Duration: silenceDurationSeconds,
			Filepath: id,
		}
	}

	if meta, ok := l.metaCache.Get(id); ok {
		return meta
	}

	meta := model.TrackMetadata{
		Title:    path.Base(id),
		Artist:   "Unknown",
		Filepath: id,
	}

	local, cleanup, err := l.localSource(id)
	if err != nil {
		logger.Error("无法读取音频文件", logger.String("track", id), logger.ErrorField(err))
		l.metaCache.Put(id, meta)
		return meta
	}
	defer cleanup()

	probed, err := l.processor.Probe(local)
	if err != nil {
		logger.Error("读取音频标签失败", logger.String("track", id), logger.ErrorField(err))
		l.metaCache.Put(id, meta)
		return meta
	}

	if strings.TrimSpace(probed.Title) != "" {
		meta.Title = probed.Title
	}
	if strings.TrimSpace(probed.Artist) != "" {
		meta.Artist = probed.Artist
	}
	meta.Duration = probed.Duration

	l.metaCache.Put(id, meta)
	return meta
}

// PlayableAudio returns a local path to a playback-ready AAC rendition of
// the track, transcoding into the bounded audio cache on miss.
func (l *Library) PlayableAudio(id string) (string, error) {
	// Local AAC sources are already clean.
	if strings.HasSuffix(strings.ToLower(id), ".aac") {
		if resolver, ok := l.store.(storage.PathResolver); ok {
			if local, ok := resolver.LocalPath(storage.FolderLibrary, id); ok {
				return local, nil
			}
		}
	}

	if cached, ok := l.audioCache.Lookup(id); ok {
		return cached, nil
	}

	l.audioCache.Clean()

	local, cleanup, err := l.localSource(id)
	if err != nil {
		return "", fmt.Errorf("failed to materialize %s: %w", id, err)
	}
	defer cleanup()

	target := l.audioCache.PathFor(id)
	if err := l.processor.ConvertToAAC(local, target, audio.Metadata{
		Title:    l.Metadata(id).Title,
		Artist:   l.Metadata(id).Artist,
	}); err != nil {
		logger.Warn("转码失败，回退到原始文件",
			logger.String("track", id),
			logger.ErrorField(err))
		// Only usable as a fallback when the source is a real local file.
		if resolver, ok := l.store.(storage.PathResolver); ok {
			if direct, ok := resolver.LocalPath(storage.FolderLibrary, id); ok {
				return direct, nil
			}
		}
		return "", err
	}
	return target, nil
}

// localSource yields a local filesystem path for the track's source bytes.
// Object-stored tracks are spooled to a temp file; cleanup removes it.
func (l *Library) localSource(id string) (string, func(), error) {
	if resolver, ok := l.store.(storage.PathResolver); ok {
		if local, ok := resolver.LocalPath(storage.FolderLibrary, id); ok {
			return local, func() {}, nil
		}
	}

	data, err := l.store.Read(storage.FolderLibrary, id)
	if err != nil {
		return "", nil, err
	}

	tmp, err := os.CreateTemp("", "weradio-src-*"+path.Ext(id))
	if err != nil {
		return "", nil, err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", nil, err
	}
	tmp.Close()
	return tmp.Name(), func() { os.Remove(tmp.Name()) }, nil
}

// Remove deletes a track from the library and its backing bytes. The
// placeholder and the last remaining real track are protected. When a queue
// is supplied, the identifier is evicted from it before the deletion so no
// dangling reference exists.
func (l *Library) Remove(id string, q *Queue) error {
	if !utils.ValidateRelPath(id) {
		return ErrInvalidPath
	}
	if id == SilenceTrack {
		return ErrPlaceholderProtected
	}

	l.mu.Lock()
	found := false
	for _, t := range l.tracks {
		if t == id {
			found = true
			break
		}
	}
	if !found {
		l.mu.Unlock()
		return ErrNotInLibrary
	}
	if l.realCountLocked() <= 1 {
		l.mu.Unlock()
		return ErrLastTrackProtected
	}
	l.mu.Unlock()

	// Queue first, so a concurrent pop cannot hand out a deleted track.
	if q != nil {
		q.Evict(id)
	}

	if err := l.store.Delete(storage.FolderLibrary, id); err != nil {
		logger.Warn("删除音频文件失败", logger.String("track", id), logger.ErrorField(err))
	}
	if err := l.audioCache.Remove(id); err != nil {
		logger.Warn("删除缓存转码文件失败", logger.String("track", id), logger.ErrorField(err))
	}
	l.metaCache.Delete(id)

	l.mu.Lock()
	for i, t := range l.tracks {
		if t == id {
			l.tracks = append(l.tracks[:i], l.tracks[i+1:]...)
			break
		}
	}
	l.mu.Unlock()

	// A concurrent refill may have re-picked the id between the first
	// eviction and the list removal; evict again now that it can no longer
	// be chosen.
	if q != nil {
		q.Evict(id)
	}

	logger.Info("曲目已从库中移除", logger.String("track", id))
	return nil
}
