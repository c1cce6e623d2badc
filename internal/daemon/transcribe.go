package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"livesub/internal/api"
	"livesub/internal/deps"
	"livesub/internal/fileutil"
	"livesub/internal/logging"
	"livesub/internal/media/ffprobe"
	"livesub/internal/queue"
	"livesub/internal/services"
	"livesub/internal/workflow"
)

const (
	taskIDHeader   = "X-Task-Id"
	maxFieldBytes  = 64
	probeTimeout   = 30 * time.Second
	cancelTimeout  = 5 * time.Second
	ndjsonMimeType = "application/x-ndjson"
)

type uploadRequest struct {
	saved     fileutil.Saved
	fileName  string
	translate bool
	startFrom time.Duration
}

// handleTranscribe accepts a multipart upload, schedules a task and streams
// its cues back as NDJSON until the task ends or the client goes away.
func (s *apiServer) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.WithContext(ctx, s.logger)
	rc := http.NewResponseController(w)
	if timeout := time.Duration(s.cfg.Workflow.UploadTimeout) * time.Second; timeout > 0 {
		_ = rc.SetReadDeadline(time.Now().Add(timeout))
	}

	taskID := uuid.NewString()
	workDir := s.cfg.TaskDir(taskID)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("create task directory: %v", err), "configuration")
		return
	}
	discard := func() { _ = os.RemoveAll(workDir) }

	upload, err := s.readUpload(r, workDir)
	if err != nil {
		discard()
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, fileutil.ErrTooLarge):
			status = http.StatusRequestEntityTooLarge
		case errors.Is(err, services.ErrValidation):
			status = http.StatusBadRequest
		}
		s.writeError(w, status, err.Error(), services.Kind(err))
		return
	}

	fingerprint, err := s.probeUpload(ctx, upload)
	if err != nil {
		discard()
		s.writeError(w, http.StatusBadRequest, err.Error(), services.Kind(err))
		return
	}

	handle, err := s.daemon.workflow.Submit(ctx, queue.NewTaskParams{
		ID:          taskID,
		SourcePath:  upload.saved.Path,
		FileName:    upload.fileName,
		Fingerprint: fingerprint,
		WorkDir:     workDir,
		StartFrom:   upload.startFrom,
		Translate:   upload.translate,
	})
	if err != nil {
		discard()
		status := http.StatusInternalServerError
		if errors.Is(err, workflow.ErrNotRunning) {
			status = http.StatusServiceUnavailable
		}
		s.writeError(w, status, err.Error(), services.Kind(err))
		return
	}
	logger = logger.With(logging.String(logging.FieldTaskID, taskID))
	logger.Info("upload accepted",
		logging.String("file_name", upload.fileName),
		logging.Int64("bytes", upload.saved.Size),
		logging.Bool("translate", upload.translate),
		logging.Duration("start_from", upload.startFrom),
	)

	w.Header().Set("Content-Type", ndjsonMimeType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set(taskIDHeader, taskID)
	w.WriteHeader(http.StatusOK)
	_ = rc.SetWriteDeadline(time.Time{})
	_ = rc.Flush()

	enc := json.NewEncoder(w)
	write := func(payload any) bool {
		if err := enc.Encode(payload); err != nil {
			return false
		}
		_ = rc.Flush()
		return true
	}

	for {
		select {
		case ev, ok := <-handle.Events():
			if !ok {
				<-handle.Done()
				write(s.terminalFromRecord(taskID))
				return
			}
			if !write(api.FromEvent(ev)) {
				s.cancelDisconnected(logger, taskID, "stream write failed")
				return
			}
			if ev.Terminal() {
				return
			}
		case <-ctx.Done():
			s.cancelDisconnected(logger, taskID, "client disconnected")
			return
		}
	}
}

func (s *apiServer) cancelDisconnected(logger *slog.Logger, taskID, reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), cancelTimeout)
	defer cancel()
	if err := s.daemon.workflow.Cancel(ctx, taskID); err != nil {
		s.logger.Warn("cancel after disconnect failed", logging.String(logging.FieldTaskID, taskID), logging.Error(err))
		return
	}
	logger.Info("task cancelled", logging.String("reason", reason))
}

// terminalFromRecord rebuilds the status line from the persisted record when
// the terminal event could not be delivered on the task channel.
func (s *apiServer) terminalFromRecord(taskID string) api.StatusPayload {
	ctx, cancel := context.WithTimeout(context.Background(), cancelTimeout)
	defer cancel()
	task, err := s.daemon.workflow.Get(ctx, taskID)
	if err != nil {
		return api.ErrorStatus(err)
	}
	switch task.Status {
	case queue.StatusCompleted:
		return api.StatusPayload{Status: api.StreamCompleted}
	case queue.StatusCancelled:
		return api.StatusPayload{Status: api.StreamCancelled, Message: task.ErrorMessage}
	default:
		return api.StatusPayload{Status: api.StreamError, Message: task.ErrorMessage}
	}
}

func (s *apiServer) readUpload(r *http.Request, workDir string) (uploadRequest, error) {
	reader, err := r.MultipartReader()
	if err != nil {
		return uploadRequest{}, services.Wrap(services.ErrValidation, "api", "upload", "expected multipart/form-data body", err)
	}
	limit := int64(s.cfg.Workflow.UploadMaxMB) << 20
	var (
		upload   uploadRequest
		haveFile bool
	)
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return uploadRequest{}, services.Wrap(services.ErrValidation, "api", "upload", "read multipart body", err)
		}
		switch part.FormName() {
		case "file":
			if haveFile {
				part.Close()
				return uploadRequest{}, services.Wrap(services.ErrValidation, "api", "upload", "only one file may be uploaded", nil)
			}
			upload.fileName = fileutil.SafeName(part.FileName())
			upload.saved, err = fileutil.SaveStream(filepath.Join(workDir, upload.fileName), part, limit)
			part.Close()
			if errors.Is(err, fileutil.ErrTooLarge) {
				return uploadRequest{}, fmt.Errorf("%w: %w: upload exceeds %d MB", services.ErrValidation, err, s.cfg.Workflow.UploadMaxMB)
			}
			if err != nil {
				return uploadRequest{}, services.Wrap(services.ErrTransient, "api", "upload", "save file", err)
			}
			haveFile = true
		case "enable_translation":
			value, err := readField(part)
			if err != nil {
				return uploadRequest{}, err
			}
			upload.translate, err = strconv.ParseBool(value)
			if err != nil {
				return uploadRequest{}, services.Wrap(services.ErrValidation, "api", "upload", fmt.Sprintf("invalid enable_translation %q", value), nil)
			}
		case "start_from":
			value, err := readField(part)
			if err != nil {
				return uploadRequest{}, err
			}
			seconds, err := strconv.ParseFloat(value, 64)
			if err != nil || seconds < 0 {
				return uploadRequest{}, services.Wrap(services.ErrValidation, "api", "upload", fmt.Sprintf("invalid start_from %q", value), nil)
			}
			upload.startFrom = api.Duration(seconds)
		default:
			part.Close()
		}
	}
	if !haveFile {
		return uploadRequest{}, services.Wrap(services.ErrValidation, "api", "upload", "file is required", nil)
	}
	return upload, nil
}

func readField(part io.ReadCloser) (string, error) {
	defer part.Close()
	raw, err := io.ReadAll(io.LimitReader(part, maxFieldBytes+1))
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "api", "upload", "read form field", err)
	}
	if len(raw) > maxFieldBytes {
		return "", services.Wrap(services.ErrValidation, "api", "upload", "form field too long", nil)
	}
	return strings.TrimSpace(string(raw)), nil
}

// probeUpload fingerprints the upload and rejects a start offset past the
// end of the media. An unprobeable file is accepted without a fingerprint;
// the extractor reports the real failure.
func (s *apiServer) probeUpload(ctx context.Context, upload uploadRequest) (string, error) {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	info, err := ffprobe.Probe(probeCtx, deps.ResolveFFprobe(s.cfg.Audio.FFprobeBinary, s.cfg.Audio.FFmpegBinary), upload.saved.Path)
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, s.logger), "media probe failed", "probe_failed",
			logging.String("file_name", upload.fileName),
			logging.Error(err),
			logging.String(logging.FieldImpact, "task runs without fingerprint or duration check"),
			logging.String(logging.FieldErrorHint, "check ffprobe installation"),
		)
		return "", nil
	}
	if info.Duration > 0 && upload.startFrom >= info.Duration {
		return "", services.Wrap(services.ErrValidation, "api", "upload",
			fmt.Sprintf("start_from %.3fs is beyond media duration %.3fs", upload.startFrom.Seconds(), info.Duration.Seconds()), nil)
	}
	if info.Duration == 0 {
		return "", nil
	}
	return info.Fingerprint, nil
}
