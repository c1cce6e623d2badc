package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	WorkDir  string `toml:"work_dir"`
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Audio contains extraction and segmentation settings.
type Audio struct {
	FFmpegBinary      string  `toml:"ffmpeg_binary"`
	FFprobeBinary     string  `toml:"ffprobe_binary"`
	SampleRate        int     `toml:"sample_rate"`
	FrameMillis       int     `toml:"frame_ms"`
	MaxSegmentSeconds float64 `toml:"max_segment_seconds"`
	MinSegmentSeconds float64 `toml:"min_segment_seconds"`
	SilenceRatio      float64 `toml:"silence_ratio"`
	SilenceWindowMS   int     `toml:"silence_window_ms"`
}

// Transcription selects and configures the speech-to-text backend.
type Transcription struct {
	Backend        string `toml:"backend"`
	URL            string `toml:"url"`
	Binary         string `toml:"binary"`
	Model          string `toml:"model"`
	Language       string `toml:"language"`
	Threads        int    `toml:"threads"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	RetryAttempts  int    `toml:"retry_attempts"`
}

// Translation selects and configures the translation backend.
type Translation struct {
	Enabled        bool   `toml:"enabled"`
	Backend        string `toml:"backend"`
	SourceLanguage string `toml:"source_language"`
	TargetLanguage string `toml:"target_language"`
	URL            string `toml:"url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	RetryAttempts  int    `toml:"retry_attempts"`
}

// LLM contains connection settings for the chat-completion translator.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Pipeline contains queue depths between stages.
type Pipeline struct {
	SegmentQueueSize       int `toml:"segment_queue_size"`
	TranscriptionQueueSize int `toml:"transcription_queue_size"`
	OutputQueueSize        int `toml:"output_queue_size"`
}

// Subtitles contains transcript file and synchronizer settings.
type Subtitles struct {
	TranscriptFile    string `toml:"transcript_file"`
	LockTimeoutMillis int    `toml:"lock_timeout_ms"`
	RefreshTicks      int    `toml:"refresh_ticks"`
	TickMillis        int    `toml:"tick_ms"`
	PauseGraceMillis  int    `toml:"pause_grace_ms"`
	BufferingChecks   int    `toml:"buffering_checks"`
}

// Workflow contains configuration for daemon task handling.
type Workflow struct {
	MaxConcurrentTasks int `toml:"max_concurrent_tasks"`
	UploadMaxMB        int `toml:"upload_max_mb"`
	UploadTimeout      int `toml:"upload_timeout"`
	HeartbeatInterval  int `toml:"heartbeat_interval"`
	HeartbeatTimeout   int `toml:"heartbeat_timeout"`
	HealthAttempts     int `toml:"health_attempts"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Metrics contains OpenTelemetry export settings. An empty endpoint keeps
// instruments local to the process.
type Metrics struct {
	OTLPEndpoint    string `toml:"otlp_endpoint"`
	Insecure        bool   `toml:"insecure"`
	IntervalSeconds int    `toml:"interval_seconds"`
}

// Notifications configures ntfy push notifications. An empty topic disables
// them.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	NotifyFailures bool   `toml:"notify_failures"`
}

// Evaluation contains benchmark regression tolerances.
type Evaluation struct {
	ChrFTolerance float64 `toml:"chrf_tolerance"`
	BLEUTolerance float64 `toml:"bleu_tolerance"`
	TERTolerance  float64 `toml:"ter_tolerance"`
	Workers       int     `toml:"workers"`
}

// Config encapsulates all configuration values for livesub.
//
// Configuration sections by subsystem:
//   - Paths: work/state/log directories and API bind address
//   - Audio: ffmpeg extraction and segment bounds
//   - Transcription: speech-to-text backend
//   - Translation: translation backend and language pair
//   - LLM: chat-completion translator connection
//   - Pipeline: inter-stage queue depths
//   - Subtitles: transcript file and playback synchronizer
//   - Workflow: daemon concurrency, uploads, heartbeats
//   - Logging: log format, level, and retention
//   - Metrics: OpenTelemetry export
//   - Notifications: ntfy task and regression alerts
//   - Evaluation: benchmark regression tolerances
type Config struct {
	Paths         Paths         `toml:"paths"`
	Audio         Audio         `toml:"audio"`
	Transcription Transcription `toml:"transcription"`
	Translation   Translation   `toml:"translation"`
	LLM           LLM           `toml:"llm"`
	Pipeline      Pipeline      `toml:"pipeline"`
	Subtitles     Subtitles     `toml:"subtitles"`
	Workflow      Workflow      `toml:"workflow"`
	Logging       Logging       `toml:"logging"`
	Metrics       Metrics       `toml:"metrics"`
	Notifications Notifications `toml:"notifications"`
	Evaluation    Evaluation    `toml:"evaluation"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("livesub.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// QueueDBPath returns the task store location.
func (c *Config) QueueDBPath() string {
	return filepath.Join(c.Paths.StateDir, "tasks.db")
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "livesubd.lock")
}

// TaskDir returns the working directory for a task.
func (c *Config) TaskDir(taskID string) string {
	return filepath.Join(c.Paths.WorkDir, taskID)
}

// FrameDuration returns the extractor frame length.
func (c *Config) FrameDuration() time.Duration {
	return time.Duration(c.Audio.FrameMillis) * time.Millisecond
}

// TickInterval returns the synchronizer polling interval.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Subtitles.TickMillis) * time.Millisecond
}

// LockTimeout returns how long a transcript refresh waits for the file lock.
func (c *Config) LockTimeout() time.Duration {
	return time.Duration(c.Subtitles.LockTimeoutMillis) * time.Millisecond
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// LLMConfig contains the LLM settings resolved for translation.
type LLMConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
}

// GetLLM returns the LLM connection settings.
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		APIKey:         strings.TrimSpace(c.LLM.APIKey),
		BaseURL:        strings.TrimSpace(c.LLM.BaseURL),
		Model:          strings.TrimSpace(c.LLM.Model),
		Referer:        strings.TrimSpace(c.LLM.Referer),
		Title:          strings.TrimSpace(c.LLM.Title),
		TimeoutSeconds: c.LLM.TimeoutSeconds,
	}
}
