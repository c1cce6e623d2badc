package config

const (
	defaultConfigPath             = "~/.config/livesub/config.toml"
	defaultWorkDir                = "~/.local/share/livesub/work"
	defaultStateDir               = "~/.local/share/livesub"
	defaultLogDir                 = "~/.local/share/livesub/logs"
	defaultAPIBind                = "127.0.0.1:8000"
	defaultFFmpegBinary           = "ffmpeg"
	defaultFFprobeBinary          = "ffprobe"
	defaultSampleRate             = 16000
	defaultFrameMillis            = 100
	defaultMaxSegmentSeconds      = 30
	defaultMinSegmentSeconds      = 5
	defaultSilenceRatio           = 0.5
	defaultSilenceWindowMS        = 100
	defaultTranscriptionURL       = "http://127.0.0.1:8387"
	defaultWhisperBinary          = "whisper-cli"
	defaultWhisperModel           = "small"
	defaultSourceLanguage         = "en"
	defaultTargetLanguage         = "ar"
	defaultTranslationURL         = "http://127.0.0.1:8388"
	defaultTranslationModel       = "marianmt_en_ar_distilled"
	defaultLLMBaseURL             = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel               = "google/gemini-3-flash-preview"
	defaultLLMReferer             = "https://github.com/livesub/livesub"
	defaultLLMTitle               = "livesub"
	defaultLLMTimeoutSeconds      = 30
	defaultTranscriptFile         = "transcription.srt"
	defaultLockTimeoutMillis      = 500
	defaultRefreshTicks           = 10
	defaultTickMillis             = 100
	defaultPauseGraceMillis       = 200
	defaultBufferingChecks        = 3
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultLogRetentionDays       = 30
	defaultWorkflowHeartbeat      = 15
	defaultWorkflowHeartbeatLimit = 120
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:  defaultWorkDir,
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
			APIBind:  defaultAPIBind,
		},
		Audio: Audio{
			FFmpegBinary:      defaultFFmpegBinary,
			FFprobeBinary:     defaultFFprobeBinary,
			SampleRate:        defaultSampleRate,
			FrameMillis:       defaultFrameMillis,
			MaxSegmentSeconds: defaultMaxSegmentSeconds,
			MinSegmentSeconds: defaultMinSegmentSeconds,
			SilenceRatio:      defaultSilenceRatio,
			SilenceWindowMS:   defaultSilenceWindowMS,
		},
		Transcription: Transcription{
			Backend:        "whisper_http",
			URL:            defaultTranscriptionURL,
			Binary:         defaultWhisperBinary,
			Model:          defaultWhisperModel,
			Language:       defaultSourceLanguage,
			Threads:        2,
			TimeoutSeconds: 120,
			RetryAttempts:  3,
		},
		Translation: Translation{
			Enabled:        true,
			Backend:        "http",
			SourceLanguage: defaultSourceLanguage,
			TargetLanguage: defaultTargetLanguage,
			URL:            defaultTranslationURL,
			Model:          defaultTranslationModel,
			TimeoutSeconds: 30,
			RetryAttempts:  3,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Pipeline: Pipeline{
			SegmentQueueSize:       4,
			TranscriptionQueueSize: 50,
			OutputQueueSize:        100,
		},
		Subtitles: Subtitles{
			TranscriptFile:    defaultTranscriptFile,
			LockTimeoutMillis: defaultLockTimeoutMillis,
			RefreshTicks:      defaultRefreshTicks,
			TickMillis:        defaultTickMillis,
			PauseGraceMillis:  defaultPauseGraceMillis,
			BufferingChecks:   defaultBufferingChecks,
		},
		Workflow: Workflow{
			MaxConcurrentTasks: 2,
			UploadMaxMB:        4096,
			UploadTimeout:      600,
			HeartbeatInterval:  defaultWorkflowHeartbeat,
			HeartbeatTimeout:   defaultWorkflowHeartbeatLimit,
			HealthAttempts:     30,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		Metrics: Metrics{
			IntervalSeconds: 15,
		},
		Notifications: Notifications{
			RequestTimeout: 10,
			NotifyFailures: true,
		},
		Evaluation: Evaluation{
			ChrFTolerance: 0.02,
			BLEUTolerance: 1.0,
			TERTolerance:  0.02,
			Workers:       4,
		},
	}
}
