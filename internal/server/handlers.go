package server

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/tablecraft/menu-digitizer/constants"
	"github.com/tablecraft/menu-digitizer/internal/common"
	"github.com/tablecraft/menu-digitizer/internal/pipeline"
	"github.com/tablecraft/menu-digitizer/internal/progress"
)

// Handler serves the digitization HTTP contracts: synchronous runs, async
// job submission, and progress polling.
type Handler struct {
	pipe      *pipeline.Pipeline
	queue     *pipeline.Queue
	pub       progress.Publisher
	uploadDir string
	maxUpload int64
	logger    *slog.Logger
}

func NewHandler(pipe *pipeline.Pipeline, queue *pipeline.Queue, pub progress.Publisher, uploadDir string, maxUpload int64, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if uploadDir == "" {
		uploadDir = os.TempDir()
	}
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}
	return &Handler{
		pipe:      pipe,
		queue:     queue,
		pub:       pub,
		uploadDir: uploadDir,
		maxUpload: maxUpload,
		logger:    logger,
	}
}

// DigitizeSync blocks until the pipeline completes and returns the
// structured menu directly.
func (h *Handler) DigitizeSync(c *gin.Context) {
	path, ok := h.saveUpload(c)
	if !ok {
		return
	}

	menu, err := h.pipe.Run(c.Request.Context(), "", path)
	if err != nil {
		h.renderPipelineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": menu})
}

// SubmitJob accepts the image, registers an async job, and returns its id
// with 202 Accepted. Progress and the terminal result are published to the
// progress channel under that id.
func (h *Handler) SubmitJob(c *gin.Context) {
	path, ok := h.saveUpload(c)
	if !ok {
		return
	}

	jobID, err := h.queue.Submit(c.Request.Context(), path)
	if err != nil {
		h.removeUpload(path)
		if errors.Is(err, pipeline.ErrQueueClosed) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "server is shutting down"})
			return
		}
		if errors.Is(err, pipeline.ErrQueueFull) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "too many queued jobs, retry later"})
			return
		}
		h.logger.Error("server.submit.failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to queue job"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"job_id": jobID.String(),
		"status": "processing",
	})
}

// JobProgress returns the latest checkpoint for a job, or 404 when the id
// is unknown or the entry has expired.
func (h *Handler) JobProgress(c *gin.Context) {
	jobID := c.Param("job_id")

	cp, err := h.pub.Get(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, progress.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found or expired"})
			return
		}
		h.logger.Error("server.progress.failed", "job_id", jobID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "progress lookup failed"})
		return
	}
	c.JSON(http.StatusOK, cp)
}

// saveUpload validates the multipart image and writes it to a temp file
// owned by the pipeline (which removes it when the run concludes). On
// failure it has already written the error response.
func (h *Handler) saveUpload(c *gin.Context) (string, bool) {
	file, header, err := c.Request.FormFile("menu_image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "menu_image is required"})
		return "", false
	}
	defer file.Close()

	ext := filepath.Ext(header.Filename)
	if !constants.IsImageExt(ext) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported image format: " + constants.NormalizeExt(ext)})
		return "", false
	}
	if header.Size > h.maxUpload {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image too large"})
		return "", false
	}

	tmp, err := os.CreateTemp(h.uploadDir, "menu-*."+constants.NormalizeExt(ext))
	if err != nil {
		h.logger.Error("server.upload.tempfile_failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store upload"})
		return "", false
	}

	if _, err := io.Copy(tmp, file); err != nil {
		_ = tmp.Close()
		h.removeUpload(tmp.Name())
		h.logger.Error("server.upload.write_failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store upload"})
		return "", false
	}
	if err := tmp.Close(); err != nil {
		h.removeUpload(tmp.Name())
		h.logger.Error("server.upload.close_failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store upload"})
		return "", false
	}
	return tmp.Name(), true
}

func (h *Handler) removeUpload(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		h.logger.Warn("server.upload.remove_failed", "path", path, "error", err)
	}
}

// renderPipelineError maps the error taxonomy onto HTTP statuses.
func (h *Handler) renderPipelineError(c *gin.Context, err error) {
	kind := common.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case common.KindExtraction:
		status = http.StatusUnprocessableEntity
	case common.KindStructuring, common.KindSchemaParse:
		status = http.StatusBadGateway
	case common.KindTimeout:
		status = http.StatusGatewayTimeout
	}
	c.JSON(status, gin.H{"error": err.Error(), "kind": kind})
}
