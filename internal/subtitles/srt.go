package subtitles

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// TranslationErrorPrefix marks cues whose translation failed; the source text
// follows the prefix.
const TranslationErrorPrefix = "[Translation Error] "

// FormatTimestamp renders d as an SRT timestamp (HH:MM:SS,mmm).
func FormatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	hours := ms / 3_600_000
	ms -= hours * 3_600_000
	minutes := ms / 60_000
	ms -= minutes * 60_000
	seconds := ms / 1000
	ms -= seconds * 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, ms)
}

// ParseTimestamp parses an SRT timestamp. A period is accepted in place of
// the comma separating milliseconds.
func ParseTimestamp(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	value = strings.ReplaceAll(value, ".", ",")
	timeParts := strings.Split(value, ",")
	if len(timeParts) != 2 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hms := strings.Split(timeParts[0], ":")
	if len(hms) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hours, errH := strconv.Atoi(hms[0])
	minutes, errM := strconv.Atoi(hms[1])
	seconds, errS := strconv.Atoi(hms[2])
	millis, errMS := strconv.Atoi(timeParts[1])
	if errH != nil || errM != nil || errS != nil || errMS != nil {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	if minutes > 59 || seconds > 59 || millis > 999 || hours < 0 || minutes < 0 || seconds < 0 || millis < 0 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	total := time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second +
		time.Duration(millis)*time.Millisecond
	return total, nil
}

// FormatCue renders one SRT block including the trailing blank line.
func FormatCue(c Cue) string {
	return fmt.Sprintf("%d\n%s --> %s\n%s\n\n", c.Index, FormatTimestamp(c.Start), FormatTimestamp(c.End), strings.TrimSpace(c.Text))
}

// Write renders cues as an SRT document, renumbering them from 1.
func Write(w io.Writer, cues []Cue) error {
	bw := bufio.NewWriter(w)
	for i, c := range cues {
		c.Index = i + 1
		if _, err := bw.WriteString(FormatCue(c)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Parse reads SRT content. Malformed blocks are skipped; the returned count
// reports how many were rejected.
func Parse(content string) ([]Cue, int) {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.TrimPrefix(content, "\ufeff")
	var cues []Cue
	skipped := 0
	for _, block := range strings.Split(strings.TrimSpace(content), "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		lines := strings.Split(block, "\n")
		if len(lines) < 3 {
			skipped++
			continue
		}
		index, err := strconv.Atoi(strings.TrimSpace(lines[0]))
		if err != nil {
			skipped++
			continue
		}
		start, end, ok := parseTimingLine(lines[1])
		if !ok {
			skipped++
			continue
		}
		text := strings.TrimSpace(strings.Join(lines[2:], "\n"))
		cues = append(cues, Cue{Index: index, Start: start, End: end, Text: text})
	}
	return cues, skipped
}

func parseTimingLine(line string) (time.Duration, time.Duration, bool) {
	parts := strings.Split(line, "-->")
	if len(parts) != 2 {
		return 0, 0, false
	}
	start, err := ParseTimestamp(parts[0])
	if err != nil {
		return 0, 0, false
	}
	// Position hints may follow the end timestamp.
	endField := strings.Fields(parts[1])
	if len(endField) == 0 {
		return 0, 0, false
	}
	end, err := ParseTimestamp(endField[0])
	if err != nil {
		return 0, 0, false
	}
	return start, end, true
}

// ParseLegacy reads the "[start - end] text" line format, with start and end
// in fractional seconds.
func ParseLegacy(content string) ([]Cue, int) {
	var cues []Cue
	skipped := 0
	for _, line := range strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		cue, ok := parseLegacyLine(line)
		if !ok {
			skipped++
			continue
		}
		cue.Index = len(cues) + 1
		cues = append(cues, cue)
	}
	return cues, skipped
}

func parseLegacyLine(line string) (Cue, bool) {
	if !strings.HasPrefix(line, "[") {
		return Cue{}, false
	}
	closing := strings.Index(line, "]")
	if closing < 0 {
		return Cue{}, false
	}
	bounds := strings.SplitN(line[1:closing], "-", 2)
	if len(bounds) != 2 {
		return Cue{}, false
	}
	start, errS := strconv.ParseFloat(strings.TrimSpace(bounds[0]), 64)
	end, errE := strconv.ParseFloat(strings.TrimSpace(bounds[1]), 64)
	if errS != nil || errE != nil || math.IsNaN(start) || math.IsNaN(end) {
		return Cue{}, false
	}
	return Cue{
		Start: secondsToDuration(start),
		End:   secondsToDuration(end),
		Text:  strings.TrimSpace(line[closing+1:]),
	}, true
}

// ParseAny detects SRT content by its timing arrows and falls back to the
// legacy line format otherwise.
func ParseAny(content string) ([]Cue, int) {
	if strings.Contains(content, "-->") {
		return Parse(content)
	}
	return ParseLegacy(content)
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(math.Round(seconds * float64(time.Second)))
}

// ValidateSRTContent checks an SRT file for format issues. videoDuration, when
// known, flags cues that run past the end of the media.
// Returns a list of issues found; an empty slice means validation passed.
func ValidateSRTContent(path string, videoDuration time.Duration) []string {
	var issues []string

	data, err := os.ReadFile(path)
	if err != nil {
		return append(issues, fmt.Sprintf("read_error: %v", err))
	}
	cues, skipped := Parse(string(data))
	if len(cues) == 0 && skipped == 0 {
		return append(issues, "empty_subtitle_file")
	}
	if skipped > 0 {
		issues = append(issues, fmt.Sprintf("malformed_blocks: %d", skipped))
	}
	if len(cues) == 0 {
		return append(issues, "no_valid_timestamps")
	}

	var prevEnd time.Duration
	for i, c := range cues {
		if c.End <= c.Start {
			issues = append(issues, fmt.Sprintf("non_positive_duration: cue %d", c.Index))
		}
		if i > 0 && c.Start < prevEnd {
			issues = append(issues, fmt.Sprintf("overlap: cue %d starts before previous end", c.Index))
		}
		prevEnd = c.End
	}

	if videoDuration > 0 {
		last := cues[len(cues)-1].End
		if last > videoDuration+time.Second {
			delta := (last - videoDuration).Seconds()
			issues = append(issues, fmt.Sprintf("duration_mismatch: delta=%.1fs", delta))
		}
	}
	return issues
}
