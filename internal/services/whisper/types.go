package whisper

import (
	"strings"

	"golang.org/x/text/language"
)

// Segment is one recognised span relative to the start of the submitted
// audio.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Result is the outcome of transcribing one audio file.
type Result struct {
	Text     string    `json:"text"`
	Language string    `json:"language"`
	Segments []Segment `json:"segments"`
}

// Command names for external tools.
const (
	CLICommand   = "whisper-cli"
	DefaultModel = "small"
)

// isoLanguage reduces a BCP 47 tag to the two-letter code whisper expects.
// Unknown values pass through unchanged; "auto" is preserved.
func isoLanguage(value string) string {
	value = strings.TrimSpace(value)
	if value == "" || strings.EqualFold(value, "auto") {
		return strings.ToLower(value)
	}
	tag, err := language.Parse(value)
	if err != nil {
		return value
	}
	base, _ := tag.Base()
	return base.String()
}

func joinText(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}
