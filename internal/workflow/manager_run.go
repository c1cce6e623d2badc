package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"livesub/internal/logging"
	"livesub/internal/pipeline"
	"livesub/internal/queue"
	"livesub/internal/services"
	"livesub/internal/subtitles"
)

const (
	// CancelledMessage is recorded for tasks stopped by their client.
	CancelledMessage = "Task cancelled by user"

	persistTimeout = 5 * time.Second
	notifyTimeout  = 15 * time.Second
)

func (m *Manager) runTask(ctx context.Context, h *Handle) {
	defer m.wg.Done()
	defer close(h.done)
	defer m.release(h.task.ID)
	defer h.cancel()

	task := h.task
	ctx = services.WithTaskID(ctx, task.ID)
	logger := logging.WithContext(ctx, m.logger)

	select {
	case m.sem <- struct{}{}:
	case <-ctx.Done():
		m.finish(ctx, h, pipeline.Event{Kind: pipeline.EventCancelled}, 0)
		return
	}
	defer func() { <-m.sem }()

	if err := m.store.MarkRunning(ctx, task.ID); err != nil {
		m.setLastError(err)
		m.finish(ctx, h, pipeline.Event{Kind: pipeline.EventError, Err: err}, 0)
		return
	}
	logger.Info("task started")

	var hbWG sync.WaitGroup
	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, task.ID)
	defer func() {
		stopHeartbeat()
		hbWG.Wait()
	}()

	transcript := subtitles.NewTranscriptFile(filepath.Join(task.WorkDir, subtitles.TranscriptFileName), m.cfg.LockTimeout())
	if err := m.withTimeout(ctx, transcript.Truncate); err != nil {
		logging.WarnWithContext(logger, "transcript reset failed", "transcript_reset_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "transcript file may contain stale cues"),
		)
	}

	events, err := m.events(ctx, h)
	if err != nil {
		m.finish(ctx, h, pipeline.Event{Kind: pipeline.EventError, Err: err}, 0)
		return
	}

	cues := 0
	terminal := pipeline.Event{Kind: pipeline.EventCompleted}
	for ev := range events {
		if ev.Terminal() {
			terminal = ev
			continue
		}
		cues++
		m.recordCue(ctx, logger, task.ID, transcript, ev.Cue, cues)
		select {
		case h.events <- ev:
		case <-ctx.Done():
		}
	}
	m.finish(ctx, h, terminal, cues)
}

// events returns the task's cue stream: a replay of a matching completed
// transcript when one exists, otherwise a fresh pipeline run.
func (m *Manager) events(ctx context.Context, h *Handle) (<-chan pipeline.Event, error) {
	task := h.task
	if replay, ok := m.replaySource(ctx, &task); ok {
		return replay, nil
	}
	p, err := m.factory(ctx, &task)
	if err != nil {
		return nil, err
	}
	return p.Run(ctx, task.StartFrom), nil
}

func (m *Manager) replaySource(ctx context.Context, task *queue.Task) (<-chan pipeline.Event, bool) {
	if task.Fingerprint == "" || task.StartFrom != 0 {
		return nil, false
	}
	logger := logging.WithContext(ctx, m.logger)
	prior, err := m.store.FindByFingerprint(ctx, task.Fingerprint, task.Translate)
	if err != nil {
		logger.Warn("fingerprint lookup failed", logging.Error(err))
		return nil, false
	}
	if prior == nil || prior.ID == task.ID {
		return nil, false
	}
	file := subtitles.NewTranscriptFile(filepath.Join(prior.WorkDir, subtitles.TranscriptFileName), m.cfg.LockTimeout())
	var cues []subtitles.Cue
	err = m.withTimeout(ctx, func(c context.Context) error {
		var loadErr error
		cues, loadErr = file.Load(c)
		return loadErr
	})
	if err != nil || len(cues) == 0 {
		return nil, false
	}
	issues := subtitles.ValidateSRTContent(file.Path(), 0)
	if prior.CuesEmitted > 0 && len(cues) != prior.CuesEmitted {
		issues = append(issues, fmt.Sprintf("cue_count_mismatch: have %d, recorded %d", len(cues), prior.CuesEmitted))
	}
	if len(issues) > 0 {
		logging.WarnWithContext(logger, "prior transcript rejected for replay", "replay_transcript_invalid",
			logging.String("source_task", prior.ID),
			logging.String("issues", strings.Join(issues, "; ")),
			logging.String(logging.FieldErrorHint, "the matching task's transcript is damaged or incomplete"),
			logging.String(logging.FieldImpact, "media is transcribed again"),
		)
		return nil, false
	}
	logger.Info("replaying transcript of matching task",
		logging.String("source_task", prior.ID),
		logging.Int("cues", len(cues)),
	)

	out := make(chan pipeline.Event, m.queueSize)
	go func() {
		defer close(out)
		for _, cue := range cues {
			select {
			case out <- pipeline.Event{Kind: pipeline.EventCue, Cue: cue}:
			case <-ctx.Done():
				out <- pipeline.Event{Kind: pipeline.EventCancelled}
				return
			}
		}
		out <- pipeline.Event{Kind: pipeline.EventCompleted}
	}()
	return out, true
}

func (m *Manager) recordCue(ctx context.Context, logger *slog.Logger, id string, transcript *subtitles.TranscriptFile, cue subtitles.Cue, cues int) {
	if err := m.withTimeout(ctx, func(c context.Context) error { return transcript.Append(c, cue) }); err != nil {
		logger.Warn("transcript append failed",
			logging.Int("cue_index", cue.Index),
			logging.Error(err),
			logging.String(logging.FieldEventType, "transcript_append_failed"),
			logging.String(logging.FieldImpact, "cue missing from transcript file"),
			logging.String(logging.FieldErrorHint, "check work directory permissions"),
		)
	}
	if err := m.store.UpdateProgress(ctx, id, cues, cue.End); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("progress update failed", logging.Error(err))
	}
}

// finish persists the terminal status and delivers the terminal event.
func (m *Manager) finish(ctx context.Context, h *Handle, ev pipeline.Event, cues int) {
	logger := logging.WithContext(ctx, m.logger)
	status, message := m.resolveStatus(h, ev)
	switch {
	case status == queue.StatusCancelled:
		ev = pipeline.Event{Kind: pipeline.EventCancelled}
	case ev.Kind == pipeline.EventCancelled:
		ev = pipeline.Event{Kind: pipeline.EventError, Err: services.Wrap(services.ErrCancelled, "workflow", "run", message, nil)}
	}

	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := m.store.Finish(persistCtx, h.task.ID, status, message); err != nil {
		m.setLastError(err)
		logging.ErrorWithContext(logger, "failed to persist task status", "task_persist_failed",
			logging.String("status", string(status)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check queue database access"),
		)
	}

	attrs := []logging.Attr{
		logging.String("status", string(status)),
		logging.Int("cues", cues),
	}
	if ev.Err != nil {
		m.setLastError(ev.Err)
		attrs = append(attrs, logging.Error(ev.Err), logging.String("error_kind", services.Kind(ev.Err)))
		logger.Error("task finished", logging.Args(attrs...)...)
	} else {
		logger.Info("task finished", logging.Args(attrs...)...)
	}

	if ctx.Err() != nil {
		select {
		case h.events <- ev:
		default:
		}
	} else {
		select {
		case h.events <- ev:
		case <-ctx.Done():
		}
	}
	close(h.events)
	m.announce(ctx, h, status, ev.Err, cues)
}

// announce publishes the outcome without holding up the task. The caller
// still holds its wait group slot, so Add cannot race with Stop's Wait.
func (m *Manager) announce(ctx context.Context, h *Handle, status queue.Status, err error, cues int) {
	if status == queue.StatusCancelled {
		return
	}
	task := h.task
	logger := logging.WithContext(ctx, m.logger)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()
		var notifyErr error
		if status == queue.StatusCompleted {
			notifyErr = m.notifier.NotifyTaskCompleted(notifyCtx, task.FileName, cues, time.Since(task.CreatedAt))
		} else {
			notifyErr = m.notifier.NotifyTaskFailed(notifyCtx, task.FileName, err)
		}
		if notifyErr != nil {
			logging.WarnWithContext(logger, "task notification failed", "notification_failed",
				logging.Error(notifyErr),
				logging.String(logging.FieldImpact, "task outcome was not pushed"),
				logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
			)
		}
	}()
}

func (m *Manager) resolveStatus(h *Handle, ev pipeline.Event) (queue.Status, string) {
	if h.Cancelled() && ev.Kind != pipeline.EventCompleted {
		return queue.StatusCancelled, CancelledMessage
	}
	switch ev.Kind {
	case pipeline.EventCompleted:
		return queue.StatusCompleted, ""
	case pipeline.EventCancelled:
		return queue.StatusFailed, queue.DaemonStopReason
	default:
		if ev.Err == nil {
			return queue.StatusFailed, "task failed"
		}
		return services.FailureStatus(ev.Err), ev.Err.Error()
	}
}

func (m *Manager) withTimeout(ctx context.Context, fn func(context.Context) error) error {
	c, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	return fn(c)
}
