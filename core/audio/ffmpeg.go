package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"weradio/logger"
)

// FFmpegProcessor implements the Processor interface using ffmpeg/ffprobe.
type FFmpegProcessor struct {
	ffmpegPath string
	bitrate    string
	sampleRate string
	channels   string
	timeout    time.Duration
}

// NewFFmpegProcessor creates a new FFmpegProcessor.
func NewFFmpegProcessor(ffmpegPath, bitrate, sampleRate, channels string, timeout time.Duration) *FFmpegProcessor {
	return &FFmpegProcessor{
		ffmpegPath: ffmpegPath,
		bitrate:    bitrate,
		sampleRate: sampleRate,
		channels:   channels,
		timeout:    timeout,
	}
}

func (p *FFmpegProcessor) ffprobePath() string {
	return strings.Replace(p.ffmpegPath, "ffmpeg", "ffprobe", 1)
}

// ffprobeOutput defines the structure for ffprobe JSON output.
type ffprobeOutput struct {
	Format struct {
		Duration string            `json:"duration"`
		Tags     map[string]string `json:"tags"`
	} `json:"format"`
}

// Probe extracts title, artist and duration from an audio file via ffprobe.
func (p *FFmpegProcessor) Probe(inputFile string) (Metadata, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration:format_tags=title,artist",
		"-of", "json",
		inputFile,
	}

	cmd := exec.Command(p.ffprobePath(), args...)
	var out bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return Metadata{}, fmt.Errorf("ffprobe execution failed for %s: %w\nFFprobe Error: %s", inputFile, err, stderr.String())
	}

	var probeData ffprobeOutput
	if err := json.Unmarshal(out.Bytes(), &probeData); err != nil {
		return Metadata{}, fmt.Errorf("failed to unmarshal ffprobe output for %s: %w", inputFile, err)
	}

	meta := Metadata{}
	for key, val := range probeData.Format.Tags {
		switch strings.ToLower(key) {
		case "title":
			meta.Title = strings.TrimSpace(val)
		case "artist":
			meta.Artist = strings.TrimSpace(val)
		}
	}

	if probeData.Format.Duration != "" {
		duration, err := strconv.ParseFloat(probeData.Format.Duration, 64)
		if err != nil {
			return meta, fmt.Errorf("failed to parse duration %q for %s: %w", probeData.Format.Duration, inputFile, err)
		}
		meta.Duration = duration
	}

	return meta, nil
}

// ConvertToAAC transcodes an audio file to a fixed AAC rendition, carrying
// over known tags.
func (p *FFmpegProcessor) ConvertToAAC(inputFile, outputFile string, meta Metadata) error {
	args := []string{
		"-i", inputFile,
		"-vn",
		"-c:a", "aac",
		"-b:a", p.bitrate,
		"-ar", p.sampleRate,
		"-ac", p.channels,
		"-f", "ipod",
	}

	if meta.Title != "" && meta.Title != "Unknown" {
		args = append(args, "-metadata", "title="+meta.Title)
	}
	if meta.Artist != "" && meta.Artist != "Unknown" {
		args = append(args, "-metadata", "artist="+meta.Artist)
	}

	args = append(args, "-y", outputFile)

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	logger.Debug("开始音频转码",
		logger.String("input", inputFile),
		logger.String("output", outputFile))

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("conversion timeout for %s after %s", inputFile, p.timeout)
		}
		return fmt.Errorf("ffmpeg execution failed for %s: %w\nFFmpeg Error: %s", inputFile, err, tail(stderr.String(), 500))
	}

	if _, err := os.Stat(outputFile); err != nil {
		return fmt.Errorf("output file not created: %s", outputFile)
	}

	logger.Info("音频转码完成", logger.String("output", outputFile))
	return nil
}

// GenerateSilence writes a silent AAC file using the anullsrc source.
func (p *FFmpegProcessor) GenerateSilence(outputFile string, durationSeconds int) error {
	args := []string{
		"-f", "lavfi",
		"-i", fmt.Sprintf("anullsrc=channel_layout=stereo:sample_rate=%s", p.sampleRate),
		"-t", strconv.Itoa(durationSeconds),
		"-c:a", "aac",
		"-b:a", p.bitrate,
		"-y", outputFile,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg failed to generate silence file: %w\nFFmpeg Error: %s", err, tail(stderr.String(), 500))
	}

	if _, err := os.Stat(outputFile); err != nil {
		return fmt.Errorf("silence file not created: %s", outputFile)
	}

	logger.Info("生成静音占位文件", logger.String("output", outputFile), logger.Int("seconds", durationSeconds))
	return nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
