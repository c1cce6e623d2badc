package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"livesub/internal/testsupport"
)

func TestConfigInitAndValidate(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	target := filepath.Join(t.TempDir(), "config.toml")

	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse overwriting an existing file")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}

	out, _, err = runCLI(t, []string{"config", "validate"}, target)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Config path: "+target)
	requireContains(t, out, "Configuration valid")
}

func TestConfigValidateReportsErrors(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("[logging]\nlevel = \"loud\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, _, err := runCLI(t, []string{"config", "validate"}, path)
	if err == nil || !strings.Contains(err.Error(), "logging.level") {
		t.Fatalf("expected logging.level error, got %v", err)
	}
}

func TestConfigShowRedactsSecrets(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg := testsupport.NewConfig(t, testsupport.WithAPIToken("super-secret"))
	path := filepath.Join(testsupport.BaseDir(cfg), "livesub.toml")
	writeTestConfig(t, path, cfg)

	out, _, err := runCLI(t, []string{"config", "show"}, path)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(out, "super-secret") {
		t.Fatalf("expected token to be redacted, got:\n%s", out)
	}
	requireContains(t, out, redacted)
	requireContains(t, out, "[workflow]")
}

func TestConfigTestNotify(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	hits := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits <- r.Header.Get("Title")
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = srv.URL
	path := filepath.Join(testsupport.BaseDir(cfg), "livesub.toml")
	writeTestConfig(t, path, cfg)

	out, _, err := runCLI(t, []string{"config", "test-notify"}, path)
	if err != nil {
		t.Fatalf("config test-notify: %v", err)
	}
	requireContains(t, out, "Sent test notification")
	if title := <-hits; title != "livesub - Test" {
		t.Fatalf("unexpected title %q", title)
	}
}

func TestLogsCommandFiltersByTask(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg := testsupport.NewConfig(t)
	if err := os.MkdirAll(cfg.Paths.LogDir, 0o755); err != nil {
		t.Fatalf("mkdir logs: %v", err)
	}
	content := "task_id=abc started\ntask_id=def started\ntask_id=abc finished\n"
	if err := os.WriteFile(filepath.Join(cfg.Paths.LogDir, "livesub.log"), []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	path := filepath.Join(testsupport.BaseDir(cfg), "livesub.toml")
	writeTestConfig(t, path, cfg)

	out, _, err := runCLI(t, []string{"logs", "--task", "abc"}, path)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if out != "task_id=abc started\ntask_id=abc finished\n" {
		t.Fatalf("unexpected output %q", out)
	}
}
