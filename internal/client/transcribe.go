package client

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"livesub/internal/api"
	"livesub/internal/subtitles"
)

const taskIDHeader = "X-Task-Id"

// TranscribeRequest describes one upload.
type TranscribeRequest struct {
	Path      string
	Translate bool
	StartFrom time.Duration
	// OnTask is called with the task ID once the daemon accepts the upload.
	OnTask func(id string)
	// OnCue is called for every cue in stream order. Returning an error
	// aborts the stream, which cancels the task.
	OnCue func(subtitles.Cue) error
}

// Transcribe uploads req.Path and streams cues until the task ends. It
// returns the task ID and the terminal status as an error: nil when the task
// completed, an error wrapping services.ErrCancelled when it was cancelled.
func (c *Client) Transcribe(ctx context.Context, req TranscribeRequest) (string, error) {
	file, err := os.Open(req.Path)
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	body, writer := io.Pipe()
	mw := multipart.NewWriter(writer)
	go func() {
		writer.CloseWithError(writeUpload(mw, file, req))
	}()

	endpoint := c.base.ResolveReference(&url.URL{Path: "/transcribe"})
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), body)
	if err != nil {
		body.Close()
		return "", err
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	httpReq.Header.Set("Accept", "application/x-ndjson")
	c.authorize(httpReq)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", wrapTransport(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", decodeError(resp)
	}

	taskID := resp.Header.Get(taskIDHeader)
	if req.OnTask != nil && taskID != "" {
		req.OnTask(taskID)
	}
	err = api.DecodeStream(resp.Body, func(line api.StreamLine) error {
		if line.IsTerminal() || req.OnCue == nil {
			return nil
		}
		return req.OnCue(line.Cue())
	})
	if err != nil && ctx.Err() != nil {
		return taskID, ctx.Err()
	}
	return taskID, err
}

func writeUpload(mw *multipart.Writer, file *os.File, req TranscribeRequest) error {
	if err := mw.WriteField("enable_translation", strconv.FormatBool(req.Translate)); err != nil {
		return err
	}
	if req.StartFrom > 0 {
		if err := mw.WriteField("start_from", strconv.FormatFloat(api.Seconds(req.StartFrom), 'f', -1, 64)); err != nil {
			return err
		}
	}
	part, err := mw.CreateFormFile("file", filepath.Base(req.Path))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("stream upload: %w", err)
	}
	return mw.Close()
}
