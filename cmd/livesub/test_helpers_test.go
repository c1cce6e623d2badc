package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"livesub/internal/config"
	"livesub/internal/daemon"
	"livesub/internal/logging"
	"livesub/internal/pipeline"
	"livesub/internal/queue"
	"livesub/internal/testsupport"
	"livesub/internal/workflow"
)

type cliTestEnv struct {
	cfg        *config.Config
	daemon     *daemon.Daemon
	configPath string
	baseDir    string
}

// setupCLITestEnv starts a daemon whose tasks run a synthetic tone through
// the pipeline and writes a config file pointing at it.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	t.Setenv("HOME", t.TempDir())
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure dirs: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)

	factory := func(_ context.Context, _ *queue.Task) (*pipeline.Pipeline, error) {
		source := testsupport.NewPCMSource(testsupport.Tone(10*time.Second, testsupport.PipelineRate, 0.5), testsupport.PipelineRate)
		return testsupport.NewPipeline(t, source, &testsupport.FakeBackend{}), nil
	}
	logger := logging.NewNop()
	mgr := workflow.NewManager(cfg, store, logger, workflow.WithPipelineFactory(factory))
	d, err := daemon.New(cfg, store, logger, mgr)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon Start: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	base := testsupport.BaseDir(cfg)
	configPath := filepath.Join(base, "livesub.toml")
	written := *cfg
	written.Paths.APIBind = d.APIAddress()
	writeTestConfig(t, configPath, &written)

	return &cliTestEnv{cfg: cfg, daemon: d, configPath: configPath, baseDir: base}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func writeMediaFile(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "episode.mkv")
	if err := os.WriteFile(path, bytes.Repeat([]byte{0x42}, 2048), 0o644); err != nil {
		t.Fatalf("write media: %v", err)
	}
	return path
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}
