package server

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"weradio/core/utils"
	"weradio/logger"

	"github.com/gorilla/mux"
)

// PlaylistHandler serves the live playlist with segment references rewritten
// to the /hls/ route. 503 while the encoder is still warming up.
func (h *APIHandler) PlaylistHandler(w http.ResponseWriter, r *http.Request) {
	data, err := os.ReadFile(filepath.Join(h.cfg.HLSDir, "playlist.m3u8"))
	if err != nil {
		w.Header().Set("Retry-After", "2")
		http.Error(w, "Stream is warming up, try again shortly", http.StatusServiceUnavailable)
		return
	}

	lines := strings.Split(string(data), "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "segment_") && strings.HasSuffix(trimmed, ".ts") {
			lines[i] = "/hls/" + trimmed
		}
	}

	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	if _, err := w.Write([]byte(strings.Join(lines, "\n"))); err != nil {
		logger.Debug("写入播放列表失败", logger.ErrorField(err))
	}
}

// SegmentHandler serves one validated HLS segment from the output directory.
func (h *APIHandler) SegmentHandler(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["segment"]
	if !utils.ValidateFilename(name) ||
		!strings.HasPrefix(name, "segment_") || !strings.HasSuffix(name, ".ts") {
		http.Error(w, "Invalid segment name", http.StatusBadRequest)
		return
	}

	full := filepath.Join(h.cfg.HLSDir, name)
	if _, err := os.Stat(full); err != nil {
		http.Error(w, "Segment not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "video/MP2T")
	w.Header().Set("Cache-Control", "public, max-age=60")
	http.ServeFile(w, r, full)
}
