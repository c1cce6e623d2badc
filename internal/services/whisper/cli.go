package whisper

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// CommandRunner executes an external command. Tests substitute a fake.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// CLIConfig captures whisper.cpp invocation settings.
type CLIConfig struct {
	Binary   string
	Model    string
	Language string
	Threads  int
}

// CLI runs the whisper.cpp command-line tool.
type CLI struct {
	cfg    CLIConfig
	runner CommandRunner
}

// NewCLI constructs a CLI wrapper.
func NewCLI(cfg CLIConfig) *CLI {
	if strings.TrimSpace(cfg.Binary) == "" {
		cfg.Binary = CLICommand
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultModel
	}
	cfg.Language = isoLanguage(cfg.Language)
	return &CLI{cfg: cfg, runner: runCommand}
}

// WithCommandRunner sets a custom command runner (for testing).
func (c *CLI) WithCommandRunner(runner CommandRunner) {
	if runner != nil {
		c.runner = runner
	}
}

// Model returns the configured model path or name.
func (c *CLI) Model() string { return c.cfg.Model }

// Binary returns the executable the CLI invokes.
func (c *CLI) Binary() string { return c.cfg.Binary }

// Args returns the argument list for transcribing wavPath into outputPrefix.json.
func (c *CLI) Args(wavPath, outputPrefix string) []string {
	args := []string{"-m", c.cfg.Model, "-f", wavPath}
	if c.cfg.Language != "" {
		args = append(args, "-l", c.cfg.Language)
	}
	if c.cfg.Threads > 0 {
		args = append(args, "-t", strconv.Itoa(c.cfg.Threads))
	}
	args = append(args, "-oj", "-of", outputPrefix, "-np")
	return args
}

// Transcribe runs whisper.cpp on wavPath and parses its JSON output, written
// next to the WAV file.
func (c *CLI) Transcribe(ctx context.Context, wavPath string) (Result, error) {
	var result Result
	if strings.TrimSpace(wavPath) == "" {
		return result, fmt.Errorf("whisper cli: wav path required")
	}
	prefix := strings.TrimSuffix(wavPath, filepath.Ext(wavPath))
	if err := c.runner(ctx, c.cfg.Binary, c.Args(wavPath, prefix)...); err != nil {
		return result, fmt.Errorf("whisper cli: %w", err)
	}
	segments, err := LoadSegments(prefix + ".json")
	if err != nil {
		return result, fmt.Errorf("whisper cli: %w", err)
	}
	result.Segments = segments
	result.Text = joinText(segments)
	result.Language = c.cfg.Language
	return result, nil
}

func runCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// cliPayload is the JSON document whisper.cpp writes with -oj.
type cliPayload struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

// LoadSegments reads a whisper.cpp JSON file. Offsets are milliseconds.
func LoadSegments(jsonPath string) ([]Segment, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, err
	}
	var payload cliPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse whisper json: %w", err)
	}
	segments := make([]Segment, 0, len(payload.Transcription))
	for _, item := range payload.Transcription {
		segments = append(segments, Segment{
			Text:  strings.TrimSpace(item.Text),
			Start: float64(item.Offsets.From) / 1000,
			End:   float64(item.Offsets.To) / 1000,
		})
	}
	return segments, nil
}
