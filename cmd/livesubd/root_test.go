package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func executeRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootFlags(t *testing.T) {
	cmd := newRootCommand()
	config := cmd.PersistentFlags().Lookup("config")
	if config == nil || config.Shorthand != "c" {
		t.Fatalf("expected --config/-c persistent flag, got %+v", config)
	}
	if cmd.PersistentFlags().Lookup("log-level") == nil {
		t.Fatal("expected --log-level persistent flag")
	}
	if cmd.Flags().Lookup("development") == nil {
		t.Fatal("expected --development flag")
	}
}

func TestRootRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "livesub.toml")
	if err := os.WriteFile(path, []byte("[paths]\nunknown_key = 1\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, err := executeRoot(t, "--config", path, "--log-level", "debug")
	if err == nil || !strings.Contains(err.Error(), "load config") {
		t.Fatalf("expected config load error, got %v", err)
	}
}

func TestRootRejectsArguments(t *testing.T) {
	if _, err := executeRoot(t, "extra"); err == nil {
		t.Fatal("expected positional arguments to be rejected")
	}
}

func TestRootVersion(t *testing.T) {
	out, err := executeRoot(t, "--version")
	if err != nil {
		t.Fatalf("--version returned error: %v", err)
	}
	if !strings.Contains(out, version) {
		t.Fatalf("expected version in output, got %q", out)
	}
}
