package deps

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// ResolveFFprobe returns the ffprobe binary to execute.
//
// An explicitly configured binary wins. Otherwise an ffprobe sitting next to
// the resolved ffmpeg is preferred, so static builds unpacked into one
// directory stay paired, and "ffprobe" from PATH is the fallback.
func ResolveFFprobe(configured, ffmpegCommand string) string {
	if configured = strings.TrimSpace(configured); configured != "" && configured != "ffprobe" {
		return configured
	}
	ffmpegBinary := strings.TrimSpace(ffmpegCommand)
	if ffmpegBinary == "" {
		ffmpegBinary = "ffmpeg"
	}
	if resolved, err := exec.LookPath(ffmpegBinary); err == nil {
		if candidate, ok := siblingBinary(resolved, "ffprobe"); ok {
			if info, statErr := os.Stat(candidate); statErr == nil && isExecutable(info) {
				return candidate
			}
		}
	}
	return "ffprobe"
}

func siblingBinary(path, name string) (string, bool) {
	if path == "" {
		return "", false
	}
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return filepath.Join(filepath.Dir(path), name), true
}

func isExecutable(info os.FileInfo) bool {
	if info == nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
