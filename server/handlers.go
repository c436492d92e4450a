package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path"
	"sort"
	"strings"

	"weradio/cluster"
	"weradio/config"
	"weradio/core/audio"
	"weradio/core/radio"
	"weradio/core/utils"
	"weradio/logger"
	"weradio/model"
	"weradio/repository"
	"weradio/storage"
)

// APIHandler holds everything the HTTP endpoints need. Handlers are
// role-aware: a producer mutates local state, a reader proxies through the
// replication channel.
type APIHandler struct {
	cfg       *config.Config
	radio     *radio.Radio
	channel   *cluster.Channel
	userRepo  *repository.UserRepository
	store     storage.Storage
	processor audio.Processor
}

// NewAPIHandler wires the endpoint set.
func NewAPIHandler(cfg *config.Config, r *radio.Radio, channel *cluster.Channel,
	userRepo *repository.UserRepository, store storage.Storage, processor audio.Processor) *APIHandler {
	return &APIHandler{
		cfg:       cfg,
		radio:     r,
		channel:   channel,
		userRepo:  userRepo,
		store:     store,
		processor: processor,
	}
}

func (h *APIHandler) isProducer() bool {
	return h.cfg.Role == "producer"
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("写入响应失败", logger.ErrorField(err))
	}
}

// writeOpError maps domain errors onto the success/message contract.
func writeOpError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, radio.ErrNotInLibrary), errors.Is(err, radio.ErrNotQueued):
		status = http.StatusNotFound
	case errors.Is(err, radio.ErrDuplicate):
		status = http.StatusConflict
	case errors.Is(err, radio.ErrQueueFull):
		status = http.StatusInsufficientStorage
	case errors.Is(err, radio.ErrInvalidPath):
		status = http.StatusBadRequest
	case errors.Is(err, radio.ErrLastTrackProtected), errors.Is(err, radio.ErrPlaceholderProtected):
		status = http.StatusForbidden
	case errors.Is(err, cluster.ErrUnavailable):
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, model.OpResult{Success: false, Message: err.Error()})
}

// IndexHandler describes the service.
func (h *APIHandler) IndexHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service": "WeRadio",
		"role":    h.cfg.Role,
		"stream":  "/playlist.m3u8",
		"status":  "/status",
	})
}

// statusSnapshot builds the station status from local state (producer) or
// the replicated snapshot (reader).
func (h *APIHandler) statusSnapshot(ctx context.Context) (model.Status, error) {
	if h.isProducer() {
		return h.radio.Status(), nil
	}

	current, err := h.channel.CurrentTrack(ctx)
	if err != nil {
		return model.Status{}, err
	}
	playbackTime, err := h.channel.PlaybackTime(ctx)
	if err != nil {
		return model.Status{}, err
	}
	queueIDs, err := h.channel.Queue(ctx)
	if err != nil {
		return model.Status{}, err
	}
	available, err := h.channel.AvailableTracks(ctx)
	if err != nil {
		return model.Status{}, err
	}

	byID := make(map[string]model.TrackMetadata, len(available))
	for _, meta := range available {
		byID[meta.Filepath] = meta
	}

	status := model.Status{
		Playing:         current != nil,
		CurrentTime:     playbackTime,
		AvailableTracks: len(available),
		QueueLength:     len(queueIDs),
		Queue:           make([]string, 0, len(queueIDs)),
	}
	if current != nil {
		status.Metadata = *current
	}
	for _, id := range queueIDs {
		if meta, ok := byID[id]; ok && meta.Title != "" {
			status.Queue = append(status.Queue, meta.Artist+" - "+meta.Title)
		} else {
			status.Queue = append(status.Queue, path.Base(id))
		}
	}
	if len(queueIDs) > 0 {
		if meta, ok := byID[queueIDs[0]]; ok {
			status.NextTrack = &meta
		}
	}
	return status, nil
}

// localStatus is the best-effort status used by the websocket push; a
// momentarily unavailable snapshot yields an empty status, not an error.
func (h *APIHandler) localStatus() model.Status {
	status, err := h.statusSnapshot(context.Background())
	if err != nil {
		logger.Debug("获取状态快照失败", logger.ErrorField(err))
	}
	return status
}

// StatusHandler serves the live station status.
func (h *APIHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	status, err := h.statusSnapshot(r.Context())
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// TracksHandler lists the library, title-sorted, with queue flags.
func (h *APIHandler) TracksHandler(w http.ResponseWriter, r *http.Request) {
	if h.isProducer() {
		writeJSON(w, http.StatusOK, map[string]interface{}{"tracks": h.radio.Tracks()})
		return
	}

	ctx := r.Context()
	available, err := h.channel.AvailableTracks(ctx)
	if err != nil {
		writeOpError(w, err)
		return
	}
	queueIDs, err := h.channel.Queue(ctx)
	if err != nil {
		writeOpError(w, err)
		return
	}
	queued := make(map[string]bool, len(queueIDs))
	for _, id := range queueIDs {
		queued[id] = true
	}

	entries := make([]model.TrackEntry, 0, len(available))
	for _, meta := range available {
		entries = append(entries, model.TrackEntry{
			TrackMetadata: meta,
			Filename:      path.Base(meta.Filepath),
			InQueue:       queued[meta.Filepath],
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return strings.ToLower(entries[i].Title) < strings.ToLower(entries[j].Title)
	})
	writeJSON(w, http.StatusOK, map[string]interface{}{"tracks": entries})
}

type trackRequest struct {
	Filepath string `json:"filepath"`
}

func decodeTrackRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req trackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Filepath == "" {
		writeJSON(w, http.StatusBadRequest, model.OpResult{Success: false, Message: "missing filepath"})
		return "", false
	}
	if !utils.ValidateRelPath(req.Filepath) {
		writeOpError(w, radio.ErrInvalidPath)
		return "", false
	}
	return req.Filepath, true
}

// AddToQueueHandler puts a track next in line. Readers forward the request
// to the producer over the command channel.
func (h *APIHandler) AddToQueueHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := decodeTrackRequest(w, r)
	if !ok {
		return
	}

	if h.isProducer() {
		if err := h.radio.AddToQueue(id); err != nil {
			writeOpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, model.OpResult{Success: true, Message: "track queued"})
		return
	}

	cmd := model.Command{Action: model.CommandAddToQueue, Filepath: id}
	if err := h.channel.PublishCommand(r.Context(), cmd); err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, model.OpResult{Success: true, Message: "command forwarded to producer"})
}

// RemoveFromQueueHandler removes a queued track.
func (h *APIHandler) RemoveFromQueueHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := decodeTrackRequest(w, r)
	if !ok {
		return
	}

	if h.isProducer() {
		if err := h.radio.RemoveFromQueue(id); err != nil {
			writeOpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, model.OpResult{Success: true, Message: "track removed from queue"})
		return
	}

	cmd := model.Command{Action: model.CommandRemoveFromQueue, Filepath: id}
	if err := h.channel.PublishCommand(r.Context(), cmd); err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, model.OpResult{Success: true, Message: "command forwarded to producer"})
}

// RemoveTrackHandler deletes a track from the station. Producer only: the
// command channel carries queue operations, not destructive library ones.
func (h *APIHandler) RemoveTrackHandler(w http.ResponseWriter, r *http.Request) {
	if !h.isProducer() {
		writeJSON(w, http.StatusForbidden,
			model.OpResult{Success: false, Message: "track removal is only available on the producer node"})
		return
	}

	id, ok := decodeTrackRequest(w, r)
	if !ok {
		return
	}

	wasPlaying, err := h.radio.RemoveTrack(id)
	if err != nil {
		writeOpError(w, err)
		return
	}
	msg := "track removed"
	if wasPlaying {
		msg = "track removed, playback skipped to next"
	}
	writeJSON(w, http.StatusOK, model.OpResult{Success: true, Message: msg})
}
