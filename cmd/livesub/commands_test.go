package main

import (
	"bufio"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"livesub/internal/api"
	"livesub/internal/client"
	"livesub/internal/evaluation"
)

func TestBenchmarksSkipsConfig(t *testing.T) {
	out, _, err := runCLI(t, []string{"benchmarks", "--json"}, "")
	if err != nil {
		t.Fatalf("benchmarks: %v", err)
	}
	var got []evaluation.Benchmark
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode benchmarks: %v\n%s", err, out)
	}
	if len(got) != len(evaluation.Benchmarks) {
		t.Fatalf("expected %d benchmarks, got %d", len(evaluation.Benchmarks), len(got))
	}
}

func TestStatusCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status", "--json", "--no-health"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var status api.DaemonStatus
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatalf("decode status: %v\n%s", err, out)
	}
	if !status.Running || status.Workflow.Capacity != env.cfg.Workflow.MaxConcurrentTasks {
		t.Fatalf("unexpected status %+v", status)
	}

	out, _, err = runCLI(t, []string{"status", "--no-health"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "== Daemon ==")
	requireContains(t, out, "running (pid")
}

func TestStatusCommandWithoutDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	_ = env.daemon.Close()

	_, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "livesub daemon") {
		t.Fatalf("expected hint to start the daemon, got %v", err)
	}
}

func TestTranslateRemoteStreamsNDJSON(t *testing.T) {
	env := setupCLITestEnv(t)
	media := writeMediaFile(t, env.baseDir)

	out, _, err := runCLI(t, []string{"translate", "--remote", "--json", media}, env.configPath)
	if err != nil {
		t.Fatalf("translate --remote: %v", err)
	}
	var cues int
	var last api.StatusPayload
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.Contains(line, `"status"`) {
			if err := json.Unmarshal([]byte(line), &last); err != nil {
				t.Fatalf("decode status line: %v", err)
			}
			continue
		}
		var cue api.CuePayload
		if err := json.Unmarshal([]byte(line), &cue); err != nil {
			t.Fatalf("decode cue line %q: %v", line, err)
		}
		cues++
	}
	if cues != 5 {
		t.Fatalf("expected 5 cues, got %d:\n%s", cues, out)
	}
	if last.Status != api.StreamCompleted {
		t.Fatalf("expected completed status, got %+v", last)
	}
}

func TestTranslateRemoteWritesSRT(t *testing.T) {
	env := setupCLITestEnv(t)
	media := writeMediaFile(t, env.baseDir)

	out, _, err := runCLI(t, []string{"translate", "--remote", media}, env.configPath)
	if err != nil {
		t.Fatalf("translate --remote: %v", err)
	}
	requireContains(t, out, "1\n00:00:")
	requireContains(t, out, "5\n00:00:")
	requireContains(t, out, " --> ")
}

func TestTasksCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	media := writeMediaFile(t, env.baseDir)

	cl, err := client.New(env.daemon.APIAddress(), "")
	if err != nil {
		t.Fatalf("client.New: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	id, err := cl.Transcribe(ctx, client.TranscribeRequest{Path: media})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	out, _, err := runCLI(t, []string{"tasks", "list", "--json", "--status", "completed"}, env.configPath)
	if err != nil {
		t.Fatalf("tasks list: %v", err)
	}
	var tasks []api.TaskView
	if err := json.Unmarshal([]byte(out), &tasks); err != nil {
		t.Fatalf("decode tasks: %v\n%s", err, out)
	}
	if len(tasks) != 1 || tasks[0].ID != id {
		t.Fatalf("expected task %s, got %+v", id, tasks)
	}

	out, _, err = runCLI(t, []string{"tasks", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("tasks list: %v", err)
	}
	requireContains(t, out, "episode.mkv")
	requireContains(t, out, "Completed")

	out, _, err = runCLI(t, []string{"tasks", "show", id}, env.configPath)
	if err != nil {
		t.Fatalf("tasks show: %v", err)
	}
	requireContains(t, out, "Task "+id)
	requireContains(t, out, "[OK] Completed")

	out, _, err = runCLI(t, []string{"tasks", "cleanup", id}, env.configPath)
	if err != nil {
		t.Fatalf("tasks cleanup: %v", err)
	}
	requireContains(t, out, "cleaned up successfully")

	out, _, err = runCLI(t, []string{"tasks", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("tasks list: %v", err)
	}
	requireContains(t, out, "No tasks")
}

func TestTasksCancelUnknown(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"tasks", "cancel", "missing"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestTasksListRejectsUnknownStatus(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"tasks", "list", "--status", "paused"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "unknown task status") {
		t.Fatalf("expected status validation error, got %v", err)
	}
}
