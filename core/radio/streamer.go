package radio

import (
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"weradio/config"
	"weradio/logger"
	"weradio/model"
)

const (
	playlistName = "playlist.m3u8"

	queueRetryDelay = 5 * time.Second
	trackFailDelay  = 2 * time.Second
	settleDelay     = 1500 * time.Millisecond
	skipGrace       = 2 * time.Second
	stopGrace       = 5 * time.Second
	joinTimeout     = 10 * time.Second
)

// Streamer drives the continuous HLS encode: it pops tracks off the queue
// and feeds them to ffmpeg one at a time, keeping the segment numbering
// monotonic across tracks so clients see a single unbroken stream.
type Streamer struct {
	hlsDir            string
	ffmpegPath        string
	segmentDuration   int
	listSize          int
	clientBufferDelay int

	library Source
	queue   *Queue

	mu         sync.Mutex
	running    bool
	cmd        *exec.Cmd
	trackDone  chan struct{} // closed when the current ffmpeg exits
	current    model.TrackMetadata
	trackStart time.Time

	// Monotonic for the engine lifetime; next track's -start_number.
	segmentNumber int

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewStreamer builds an idle engine and wipes any stale output from a
// previous run.
func NewStreamer(cfg *config.Config, library Source, queue *Queue) *Streamer {
	s := &Streamer{
		hlsDir:            cfg.HLSDir,
		ffmpegPath:        cfg.FFmpegPath,
		segmentDuration:   cfg.SegmentDuration,
		listSize:          cfg.HLSListSize,
		clientBufferDelay: cfg.ClientBufferDelay,
		library:           library,
		queue:             queue,
	}
	s.resetOutputDir()
	return s
}

func (s *Streamer) resetOutputDir() {
	if err := os.RemoveAll(s.hlsDir); err != nil {
		logger.Warn("清理HLS输出目录失败", logger.ErrorField(err))
	}
	if err := os.MkdirAll(s.hlsDir, 0755); err != nil {
		logger.Error("创建HLS输出目录失败", logger.ErrorField(err))
	}
}

// Start launches the control loop. Calling it while running is a no-op, and
// an empty library leaves the engine idle.
func (s *Streamer) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		logger.Warn("流引擎已在运行，忽略重复启动")
		return
	}
	if s.library.Count() == 0 {
		s.mu.Unlock()
		logger.Warn("音乐库为空，流引擎保持空闲")
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.loop()
	logger.Info("流引擎已启动")
}

// Stop terminates the active encode and joins the control loop with a
// bounded wait.
func (s *Streamer) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	cmd, done := s.cmd, s.trackDone
	s.mu.Unlock()

	if cmd != nil {
		terminate(cmd, done, stopGrace)
	}

	select {
	case <-s.doneCh:
	case <-time.After(joinTimeout):
		logger.Error("流引擎控制循环未在限期内退出")
	}
	logger.Info("流引擎已停止")
}

// Skip terminates the active ffmpeg so the loop moves to the next track.
// Reports whether a running encode was actually interrupted.
func (s *Streamer) Skip() bool {
	s.mu.Lock()
	cmd, done := s.cmd, s.trackDone
	s.mu.Unlock()

	if cmd == nil {
		return false
	}
	logger.Info("跳过当前曲目", logger.String("track", s.NowPlaying().Filepath))
	terminate(cmd, done, skipGrace)
	return true
}

// Running reports whether the control loop is active.
func (s *Streamer) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NowPlaying returns the metadata recorded when the current encode spawned.
func (s *Streamer) NowPlaying() model.TrackMetadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// IsCurrent reports whether the identifier is being encoded right now.
func (s *Streamer) IsCurrent(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cmd != nil && s.current.Filepath == id
}

// PlaybackTime estimates the client playback position within the current
// track: wall time since spawn minus the client buffer delay, clamped to
// [0, duration].
func (s *Streamer) PlaybackTime() float64 {
	s.mu.Lock()
	start, duration := s.trackStart, s.current.Duration
	s.mu.Unlock()

	if start.IsZero() {
		return 0
	}
	return playbackPosition(time.Since(start), s.clientBufferDelay, duration)
}

func playbackPosition(elapsed time.Duration, bufferDelay int, duration float64) float64 {
	pos := elapsed.Seconds() - float64(bufferDelay)
	if pos < 0 {
		return 0
	}
	if duration > 0 && pos > duration {
		return duration
	}
	return pos
}

func (s *Streamer) loop() {
	defer close(s.doneCh)

	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		if s.queue.Len() == 0 {
			s.queue.RefillIfEmpty()
		}
		id, ok := s.queue.PopNext()
		if !ok {
			logger.Warn("队列为空且无法补充，等待重试")
			if !s.pause(queueRetryDelay) {
				return
			}
			continue
		}

		meta := s.library.Metadata(id)
		audioPath, err := s.library.PlayableAudio(id)
		if err != nil {
			logger.Error("无法准备播放文件，跳过曲目",
				logger.String("track", id),
				logger.ErrorField(err))
			if !s.pause(trackFailDelay) {
				return
			}
			continue
		}

		// Top up before the encode blocks, so the next pop is instant.
		s.queue.RefillIfEmpty()

		s.streamTrack(audioPath, meta)
	}
}

// pause sleeps unless stopped first; reports whether to keep looping.
func (s *Streamer) pause(d time.Duration) bool {
	select {
	case <-s.stopCh:
		return false
	case <-time.After(d):
		return true
	}
}

func (s *Streamer) streamTrack(audioPath string, meta model.TrackMetadata) {
	s.mu.Lock()
	startNumber := s.segmentNumber
	s.mu.Unlock()

	cmd := exec.Command(s.ffmpegPath,
		"-re",
		"-i", audioPath,
		"-c:a", "copy",
		"-f", "hls",
		"-hls_time", fmt.Sprintf("%d", s.segmentDuration),
		"-hls_list_size", fmt.Sprintf("%d", s.listSize),
		"-hls_flags", "delete_segments+append_list+omit_endlist",
		"-hls_segment_type", "mpegts",
		"-hls_segment_filename", filepath.Join(s.hlsDir, "segment_%03d.ts"),
		"-start_number", fmt.Sprintf("%d", startNumber),
		"-hls_allow_cache", "0",
		filepath.Join(s.hlsDir, playlistName),
	)

	if logFile, err := os.OpenFile(filepath.Join(s.hlsDir, "ffmpeg.log"),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err == nil {
		cmd.Stderr = logFile
		defer logFile.Close()
	}

	if err := cmd.Start(); err != nil {
		logger.Error("启动ffmpeg失败",
			logger.String("track", meta.Filepath),
			logger.ErrorField(err))
		s.pause(trackFailDelay)
		return
	}

	done := make(chan struct{})
	s.mu.Lock()
	s.cmd = cmd
	s.trackDone = done
	s.current = meta
	s.trackStart = time.Now()
	s.mu.Unlock()

	logger.Info("开始推流",
		logger.String("track", meta.Filepath),
		logger.String("title", meta.Title),
		logger.Float64("duration", meta.Duration),
		logger.Int("start_number", startNumber))

	err := cmd.Wait()
	close(done)

	s.mu.Lock()
	s.cmd = nil
	s.trackDone = nil
	s.mu.Unlock()

	if err != nil {
		// Expected on skip/stop; real encode failures land here too and the
		// loop just moves on.
		logger.Warn("ffmpeg退出", logger.String("track", meta.Filepath), logger.ErrorField(err))
	}

	if !s.pause(settleDelay) {
		return
	}
	s.cleanupSegments()

	s.mu.Lock()
	s.segmentNumber += segmentsPerTrack(meta.Duration, s.segmentDuration)
	s.mu.Unlock()
}

// segmentsPerTrack is how far the segment counter advances after a track:
// ceil(duration/segmentDuration)+1, or 1 when the duration is unknown.
func segmentsPerTrack(duration float64, segmentDuration int) int {
	if duration <= 0 || segmentDuration <= 0 {
		return 1
	}
	return int(math.Ceil(duration/float64(segmentDuration))) + 1
}

// cleanupSegments deletes every on-disk segment the playlist no longer
// references. The playlist is the single source of truth for liveness.
func (s *Streamer) cleanupSegments() {
	data, err := os.ReadFile(filepath.Join(s.hlsDir, playlistName))
	if err != nil {
		return
	}
	referenced := segmentsInPlaylist(string(data))

	matches, err := filepath.Glob(filepath.Join(s.hlsDir, "segment_*.ts"))
	if err != nil {
		return
	}
	removed := 0
	for _, m := range matches {
		if referenced[filepath.Base(m)] {
			continue
		}
		if err := os.Remove(m); err == nil {
			removed++
		}
	}
	if removed > 0 {
		logger.Debug("清理过期切片", logger.Int("removed", removed))
	}
}

// segmentsInPlaylist extracts the segment filenames referenced by an HLS
// playlist body.
func segmentsInPlaylist(playlist string) map[string]bool {
	refs := make(map[string]bool)
	for _, line := range strings.Split(playlist, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "segment_") && strings.HasSuffix(line, ".ts") {
			refs[line] = true
		}
	}
	return refs
}

// terminate asks the process to exit and kills it if it outlives the grace
// window. done is the channel closed once Wait has returned.
func terminate(cmd *exec.Cmd, done <-chan struct{}, grace time.Duration) {
	if cmd.Process == nil {
		return
	}
	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		return
	}
	if done == nil {
		return
	}
	select {
	case <-done:
	case <-time.After(grace):
		logger.Warn("ffmpeg未响应终止信号，强制结束")
		_ = cmd.Process.Kill()
	}
}
