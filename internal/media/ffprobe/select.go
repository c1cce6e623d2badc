package ffprobe

import (
	"strconv"
	"strings"

	"golang.org/x/text/language"
)

// SpeechSelection identifies the audio stream fed to transcription.
type SpeechSelection struct {
	Stream  Stream
	Ordinal int // position among audio streams, as used by ffmpeg's 0:a:N
}

// Label returns a short human-readable summary of the stream.
func (s SpeechSelection) Label() string {
	if s.Ordinal < 0 {
		return ""
	}
	parts := make([]string, 0, 4)
	if lang := streamLanguage(s.Stream.Tags); lang != "" {
		parts = append(parts, lang)
	}
	if s.Stream.CodecName != "" {
		parts = append(parts, s.Stream.CodecName)
	}
	if s.Stream.Channels > 0 {
		parts = append(parts, strconv.Itoa(s.Stream.Channels)+"ch")
	}
	if title := streamTitle(s.Stream.Tags); title != "" {
		parts = append(parts, title)
	}
	if len(parts) == 0 {
		return "audio"
	}
	return strings.Join(parts, " | ")
}

// SelectSpeech picks the audio stream most likely to carry dialogue in lang.
// Tracks tagged with the wanted language win, commentary and audio
// description tracks lose, and the default disposition breaks ties before
// container order does. Ordinal is -1 when there is no audio.
func SelectSpeech(streams []Stream, lang string) SpeechSelection {
	want, wantOK := baseLanguage(lang)
	best := SpeechSelection{Ordinal: -1}
	bestScore := 0.0
	ordinal := 0
	for _, stream := range streams {
		if !strings.EqualFold(stream.CodecType, "audio") {
			continue
		}
		score := 100.0
		if wantOK {
			if got, ok := baseLanguage(streamLanguage(stream.Tags)); ok && got == want {
				score += 1000
			}
		}
		if isSecondaryTrack(streamTitle(stream.Tags), stream.Disposition) {
			score -= 500
		}
		if stream.Disposition["default"] == 1 {
			score += 10
		}
		score -= float64(ordinal) * 0.1
		if best.Ordinal < 0 || score > bestScore {
			best = SpeechSelection{Stream: stream, Ordinal: ordinal}
			bestScore = score
		}
		ordinal++
	}
	return best
}

func baseLanguage(value string) (language.Base, bool) {
	value = strings.TrimSpace(value)
	if value == "" || strings.EqualFold(value, "und") {
		return language.Base{}, false
	}
	tag, err := language.Parse(value)
	if err != nil {
		return language.Base{}, false
	}
	base, confidence := tag.Base()
	return base, confidence != language.No
}

func streamLanguage(tags map[string]string) string {
	for _, key := range []string{"language", "LANGUAGE", "Language", "language_ietf", "LANG"} {
		if value, ok := tags[key]; ok {
			return strings.ToLower(strings.TrimSpace(value))
		}
	}
	return ""
}

func streamTitle(tags map[string]string) string {
	for _, key := range []string{"title", "TITLE", "handler_name", "HANDLER_NAME"} {
		if value, ok := tags[key]; ok {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func isSecondaryTrack(title string, disposition map[string]int) bool {
	if disposition["comment"] == 1 || disposition["visual_impaired"] == 1 {
		return true
	}
	lower := strings.ToLower(title)
	for _, keyword := range []string{"commentary", "descriptive", "audio description"} {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}
