package server

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"weradio/core/audio"
	"weradio/core/utils"
	"weradio/logger"
	"weradio/model"
	"weradio/storage"

	"github.com/google/uuid"
)

// UploadHandler accepts one audio file, converts it to a clean AAC
// rendition and registers it in the library. Producer only.
func (h *APIHandler) UploadHandler(w http.ResponseWriter, r *http.Request) {
	if !h.isProducer() {
		writeJSON(w, http.StatusForbidden,
			model.OpResult{Success: false, Message: "uploads are only accepted on the producer node"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge,
			model.OpResult{Success: false, Message: "upload too large"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest,
			model.OpResult{Success: false, Message: "missing file field"})
		return
	}
	defer file.Close()

	if !utils.ValidateFilename(header.Filename) || !utils.IsAudioFile(header.Filename) {
		writeJSON(w, http.StatusBadRequest,
			model.OpResult{Success: false, Message: "unsupported or invalid filename"})
		return
	}

	// 先落到临时文件，转码成功才进入库
	src, err := os.CreateTemp("", "weradio-upload-*"+strings.ToLower(filepath.Ext(header.Filename)))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError,
			model.OpResult{Success: false, Message: "failed to stage upload"})
		return
	}
	defer os.Remove(src.Name())
	if _, err := io.Copy(src, file); err != nil {
		src.Close()
		writeJSON(w, http.StatusInternalServerError,
			model.OpResult{Success: false, Message: "failed to stage upload"})
		return
	}
	src.Close()

	base := strings.TrimSuffix(utils.SanitizeFilename(filepath.Base(header.Filename)), filepath.Ext(header.Filename))
	trackID := uuid.NewString()[:8] + "_" + base + ".aac"

	converted, err := os.CreateTemp("", "weradio-convert-*.aac")
	if err != nil {
		writeJSON(w, http.StatusInternalServerError,
			model.OpResult{Success: false, Message: "failed to stage conversion"})
		return
	}
	converted.Close()
	defer os.Remove(converted.Name())

	if err := h.processor.ConvertToAAC(src.Name(), converted.Name(), audio.Metadata{}); err != nil {
		logger.Error("上传转码失败", logger.String("file", header.Filename), logger.ErrorField(err))
		writeJSON(w, http.StatusUnprocessableEntity,
			model.OpResult{Success: false, Message: "audio conversion failed"})
		return
	}

	data, err := os.ReadFile(converted.Name())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError,
			model.OpResult{Success: false, Message: "failed to read converted audio"})
		return
	}
	if err := h.store.Write(storage.FolderLibrary, trackID, data, "audio/aac"); err != nil {
		logger.Error("写入音乐库失败", logger.String("track", trackID), logger.ErrorField(err))
		writeJSON(w, http.StatusInternalServerError,
			model.OpResult{Success: false, Message: "failed to store track"})
		return
	}

	h.radio.Library.Add(trackID)

	if r.FormValue("queue_next") == "true" {
		if err := h.radio.AddToQueue(trackID); err != nil {
			logger.Warn("上传后入队失败", logger.String("track", trackID), logger.ErrorField(err))
		}
	}

	logger.Info("曲目上传完成",
		logger.String("original", header.Filename),
		logger.String("track", trackID))
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success":  true,
		"filepath": trackID,
	})
}
