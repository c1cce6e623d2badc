package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"livesub/internal/config"
)

// Requirement defines an external binary livesub relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements lists the binaries the configured backends execute.
func Requirements(cfg *config.Config) []Requirement {
	reqs := []Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.Audio.FFmpegBinary,
			Description: "Required for audio extraction",
		},
		{
			Name:        "FFprobe",
			Command:     ResolveFFprobe(cfg.Audio.FFprobeBinary, cfg.Audio.FFmpegBinary),
			Description: "Used to fingerprint uploads and pick the dialogue track",
			Optional:    true,
		},
	}
	if cfg.Transcription.Backend == config.TranscriptionCommand {
		reqs = append(reqs, Requirement{
			Name:        "whisper",
			Command:     cfg.Transcription.Binary,
			Description: "Required for command-line transcription",
		})
	}
	return reqs
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// Missing returns the required statuses that are unavailable.
func Missing(statuses []Status) []Status {
	var out []Status
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			out = append(out, status)
		}
	}
	return out
}
