package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"livesub/internal/config"
	"livesub/internal/logging"
	"livesub/internal/notifications"
	"livesub/internal/pipeline"
	"livesub/internal/queue"
)

// ErrNotRunning is returned when tasks are submitted before Start or after Stop.
var ErrNotRunning = errors.New("workflow manager not running")

const defaultTaskQueueSize = 100

// PipelineFactory builds the pipeline for a task.
type PipelineFactory func(ctx context.Context, task *queue.Task) (*pipeline.Pipeline, error)

// Handle is a caller's view of a submitted task.
type Handle struct {
	task      queue.Task
	events    chan pipeline.Event
	done      chan struct{}
	cancel    context.CancelFunc
	cancelled atomic.Bool
}

// ID returns the task identifier.
func (h *Handle) ID() string { return h.task.ID }

// Task returns the task as it was at submission.
func (h *Handle) Task() queue.Task { return h.task }

// Events streams cues and then one terminal event. The channel is closed
// after the terminal event.
func (h *Handle) Events() <-chan pipeline.Event { return h.events }

// Done is closed once the task has finished and its status is persisted.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Cancel stops the task. It is safe to call more than once.
func (h *Handle) Cancel() {
	h.cancelled.Store(true)
	h.cancel()
}

// Cancelled reports whether Cancel was called.
func (h *Handle) Cancelled() bool { return h.cancelled.Load() }

// Manager coordinates task execution.
type Manager struct {
	cfg       *config.Config
	store     *queue.Store
	logger    *slog.Logger
	factory   PipelineFactory
	metrics   *pipeline.Metrics
	notifier  notifications.Service
	heartbeat *HeartbeatMonitor
	sem       chan struct{}
	queueSize int

	mu      sync.RWMutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	active  map[string]*Handle
	wg      sync.WaitGroup
	lastErr error
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithPipelineFactory replaces the production pipeline builder.
func WithPipelineFactory(factory PipelineFactory) ManagerOption {
	return func(m *Manager) {
		if factory != nil {
			m.factory = factory
		}
	}
}

// WithMetrics records pipeline metrics for every task.
func WithMetrics(metrics *pipeline.Metrics) ManagerOption {
	return func(m *Manager) { m.metrics = metrics }
}

// WithNotifier publishes task outcomes. Cancelled tasks are not announced.
func WithNotifier(n notifications.Service) ManagerOption {
	return func(m *Manager) {
		if n != nil {
			m.notifier = n
		}
	}
}

// NewManager constructs a task manager.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger, opts ...ManagerOption) *Manager {
	limit := cfg.Workflow.MaxConcurrentTasks
	if limit <= 0 {
		limit = 1
	}
	queueSize := cfg.Pipeline.OutputQueueSize
	if queueSize <= 0 {
		queueSize = defaultTaskQueueSize
	}
	logger = logging.NewComponentLogger(logger, "workflow-manager")
	m := &Manager{
		cfg:    cfg,
		store:  store,
		logger: logger,
		heartbeat: NewHeartbeatMonitor(
			store,
			logger,
			time.Duration(cfg.Workflow.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Workflow.HeartbeatTimeout)*time.Second,
		),
		sem:       make(chan struct{}, limit),
		queueSize: queueSize,
		active:    make(map[string]*Handle),
	}
	m.factory = m.defaultPipeline
	m.notifier = notifications.NewService(cfg)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start enables task submission and begins stale-task reclamation.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.ctx = runCtx
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	m.mu.Unlock()

	if _, err := m.heartbeat.ReclaimStale(runCtx); err != nil {
		m.setLastError(err)
		m.logger.Warn("initial stale task reclaim failed", logging.Error(err))
	}
	go func() {
		defer m.wg.Done()
		m.heartbeat.reclaimLoop(runCtx)
	}()
	return nil
}

// Stop cancels every active task and waits for them to persist their status.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// Submit records a new task and schedules it. An empty params.ID is replaced
// with a UUID and an empty params.WorkDir with the configured task directory.
func (m *Manager) Submit(ctx context.Context, params queue.NewTaskParams) (*Handle, error) {
	m.mu.RLock()
	running := m.running
	parent := m.ctx
	m.mu.RUnlock()
	if !running {
		return nil, ErrNotRunning
	}

	if strings.TrimSpace(params.ID) == "" {
		params.ID = uuid.NewString()
	}
	if strings.TrimSpace(params.WorkDir) == "" {
		params.WorkDir = m.cfg.TaskDir(params.ID)
	}
	if err := os.MkdirAll(params.WorkDir, 0o755); err != nil {
		return nil, fmt.Errorf("create task directory: %w", err)
	}
	task, err := m.store.NewTask(ctx, params)
	if err != nil {
		return nil, err
	}

	taskCtx, cancel := context.WithCancel(parent)
	h := &Handle{
		task:   *task,
		events: make(chan pipeline.Event, m.queueSize),
		done:   make(chan struct{}),
		cancel: cancel,
	}

	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		cancel()
		_ = m.store.Finish(context.WithoutCancel(ctx), task.ID, queue.StatusFailed, queue.DaemonStopReason)
		return nil, ErrNotRunning
	}
	m.active[task.ID] = h
	m.wg.Add(1)
	m.mu.Unlock()

	m.logger.Info("task submitted",
		logging.String(logging.FieldTaskID, task.ID),
		logging.String("file_name", task.FileName),
		logging.Duration("start_from", task.StartFrom),
		logging.Bool("translate", task.Translate),
	)
	go m.runTask(taskCtx, h)
	return h, nil
}

// Lookup returns the handle of an active task.
func (m *Manager) Lookup(id string) (*Handle, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.active[id]
	return h, ok
}

// Cancel stops an active task. Finished tasks are a no-op; unknown IDs
// return queue.ErrTaskNotFound.
func (m *Manager) Cancel(ctx context.Context, id string) error {
	if h, ok := m.Lookup(id); ok {
		h.Cancel()
		m.logger.Info("task cancel requested", logging.String(logging.FieldTaskID, id))
		return nil
	}
	if _, err := m.store.GetByID(ctx, id); err != nil {
		return err
	}
	return nil
}

// IsCancelled reports whether a task was cancelled, either while active or
// as recorded in the store.
func (m *Manager) IsCancelled(ctx context.Context, id string) bool {
	if h, ok := m.Lookup(id); ok {
		return h.Cancelled()
	}
	task, err := m.store.GetByID(ctx, id)
	return err == nil && task.Status == queue.StatusCancelled
}

// Cleanup cancels a task if it is active, waits for it to stop, removes its
// work directory and deletes its record.
func (m *Manager) Cleanup(ctx context.Context, id string) error {
	if h, ok := m.Lookup(id); ok {
		h.Cancel()
		select {
		case <-h.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	task, err := m.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := m.removeWorkDir(task.WorkDir); err != nil {
		return err
	}
	if _, err := m.store.Remove(ctx, id); err != nil {
		return err
	}
	m.logger.Info("task cleaned up", logging.String(logging.FieldTaskID, id))
	return nil
}

// Get returns a task record.
func (m *Manager) Get(ctx context.Context, id string) (*queue.Task, error) {
	return m.store.GetByID(ctx, id)
}

// List returns task records, newest first.
func (m *Manager) List(ctx context.Context, statuses ...queue.Status) ([]*queue.Task, error) {
	return m.store.List(ctx, statuses...)
}

// Prune removes finished tasks older than cutoff together with their work
// directories.
func (m *Manager) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	dirs, err := m.store.PruneFinished(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	for _, dir := range dirs {
		if err := m.removeWorkDir(dir); err != nil {
			m.logger.Warn("failed to remove pruned task directory",
				logging.String("work_dir", dir),
				logging.Error(err),
			)
		}
	}
	if len(dirs) > 0 {
		m.logger.Info("pruned finished tasks", logging.Int("count", len(dirs)))
	}
	return len(dirs), nil
}

// removeWorkDir deletes dir only when it lies inside the configured work root.
func (m *Manager) removeWorkDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return nil
	}
	root, err := filepath.Abs(m.cfg.Paths.WorkDir)
	if err != nil {
		return err
	}
	target, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("refusing to remove %q outside work directory", dir)
	}
	if err := os.RemoveAll(target); err != nil {
		return fmt.Errorf("remove task directory: %w", err)
	}
	return nil
}

func (m *Manager) release(id string) {
	m.mu.Lock()
	delete(m.active, id)
	m.mu.Unlock()
}

func (m *Manager) defaultPipeline(ctx context.Context, task *queue.Task) (*pipeline.Pipeline, error) {
	cfg := *m.cfg
	cfg.Translation.Enabled = task.Translate
	logger := logging.WithContext(ctx, m.logger)
	in := pipeline.ResolveInput(ctx, &cfg, task.SourcePath, task.WorkDir, logger)
	return pipeline.FromConfig(&cfg, in, m.metrics, logger)
}
