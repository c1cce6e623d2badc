package config

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// Transcription backends.
const (
	TranscriptionWhisperHTTP = "whisper_http"
	TranscriptionCommand     = "command"
)

// Translation backends.
const (
	TranslationHTTP        = "http"
	TranslationLLM         = "llm"
	TranslationPassthrough = "passthrough"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateAudio(); err != nil {
		return err
	}
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateTranslation(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateSubtitles(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateMetrics(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return c.validateEvaluation()
}

func (c *Config) validateAudio() error {
	if err := ensurePositiveMap(map[string]int{
		"audio.sample_rate":       c.Audio.SampleRate,
		"audio.frame_ms":          c.Audio.FrameMillis,
		"audio.silence_window_ms": c.Audio.SilenceWindowMS,
	}); err != nil {
		return err
	}
	if c.Audio.MinSegmentSeconds <= 0 {
		return errors.New("audio.min_segment_seconds must be positive")
	}
	if c.Audio.MaxSegmentSeconds < c.Audio.MinSegmentSeconds {
		return errors.New("audio.max_segment_seconds must be at least audio.min_segment_seconds")
	}
	if c.Audio.SilenceRatio <= 0 || c.Audio.SilenceRatio > 1 {
		return errors.New("audio.silence_ratio must be in (0, 1]")
	}
	return nil
}

func (c *Config) validateTranscription() error {
	switch c.Transcription.Backend {
	case TranscriptionWhisperHTTP:
		if c.Transcription.URL == "" {
			return errors.New("transcription.url must be set for the whisper_http backend")
		}
	case TranscriptionCommand:
		if c.Transcription.Binary == "" {
			return errors.New("transcription.binary must be set for the command backend")
		}
	default:
		return fmt.Errorf("transcription.backend: unsupported value %q (want %s or %s)",
			c.Transcription.Backend, TranscriptionWhisperHTTP, TranscriptionCommand)
	}
	if c.Transcription.TimeoutSeconds <= 0 {
		return errors.New("transcription.timeout_seconds must be positive")
	}
	if err := validateLanguage("transcription.language", c.Transcription.Language); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateTranslation() error {
	if err := validateLanguage("translation.source_language", c.Translation.SourceLanguage); err != nil {
		return err
	}
	if err := validateLanguage("translation.target_language", c.Translation.TargetLanguage); err != nil {
		return err
	}
	if !c.Translation.Enabled {
		return nil
	}
	switch c.Translation.Backend {
	case TranslationHTTP:
		if c.Translation.URL == "" {
			return errors.New("translation.url must be set for the http backend")
		}
	case TranslationLLM:
		if c.LLM.APIKey == "" {
			defaultPath, err := DefaultConfigPath()
			if err != nil {
				defaultPath = defaultConfigPath
			}
			return fmt.Errorf("llm.api_key is required for the llm translation backend. Set OPENROUTER_API_KEY or edit %s (create with 'livesub config init')", defaultPath)
		}
	case TranslationPassthrough:
	default:
		return fmt.Errorf("translation.backend: unsupported value %q (want %s, %s, or %s)",
			c.Translation.Backend, TranslationHTTP, TranslationLLM, TranslationPassthrough)
	}
	if c.Translation.TimeoutSeconds <= 0 {
		return errors.New("translation.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	return ensurePositiveMap(map[string]int{
		"pipeline.segment_queue_size":       c.Pipeline.SegmentQueueSize,
		"pipeline.transcription_queue_size": c.Pipeline.TranscriptionQueueSize,
		"pipeline.output_queue_size":        c.Pipeline.OutputQueueSize,
	})
}

func (c *Config) validateSubtitles() error {
	if strings.ContainsAny(c.Subtitles.TranscriptFile, `/\`) {
		return errors.New("subtitles.transcript_file must be a file name, not a path")
	}
	if c.Subtitles.PauseGraceMillis < 0 {
		return errors.New("subtitles.pause_grace_ms must not be negative")
	}
	return ensurePositiveMap(map[string]int{
		"subtitles.lock_timeout_ms":  c.Subtitles.LockTimeoutMillis,
		"subtitles.refresh_ticks":    c.Subtitles.RefreshTicks,
		"subtitles.tick_ms":          c.Subtitles.TickMillis,
		"subtitles.buffering_checks": c.Subtitles.BufferingChecks,
	})
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.max_concurrent_tasks": c.Workflow.MaxConcurrentTasks,
		"workflow.upload_max_mb":        c.Workflow.UploadMaxMB,
		"workflow.upload_timeout":       c.Workflow.UploadTimeout,
		"workflow.health_attempts":      c.Workflow.HealthAttempts,
	}); err != nil {
		return err
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		return errors.New("workflow.heartbeat_interval must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must be greater than workflow.heartbeat_interval")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must not be negative")
	}
	return nil
}

func (c *Config) validateMetrics() error {
	if c.Metrics.OTLPEndpoint != "" && c.Metrics.IntervalSeconds <= 0 {
		return errors.New("metrics.interval_seconds must be positive when metrics.otlp_endpoint is set")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	topic := c.Notifications.NtfyTopic
	if topic == "" {
		return nil
	}
	if !strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		return fmt.Errorf("notifications.ntfy_topic must be an http(s) URL, got %q", topic)
	}
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive when notifications.ntfy_topic is set")
	}
	return nil
}

func (c *Config) validateEvaluation() error {
	if c.Evaluation.ChrFTolerance < 0 || c.Evaluation.BLEUTolerance < 0 || c.Evaluation.TERTolerance < 0 {
		return errors.New("evaluation tolerances must not be negative")
	}
	if c.Evaluation.Workers <= 0 {
		return errors.New("evaluation.workers must be positive")
	}
	return nil
}

func validateLanguage(key, value string) error {
	if value == "" {
		return fmt.Errorf("%s must be set", key)
	}
	if _, err := language.Parse(value); err != nil {
		return fmt.Errorf("%s: invalid language tag %q: %w", key, value, err)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
