package llm

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// TranslationPrompt builds the system prompt for subtitle translation between
// two BCP 47 language tags.
func TranslationPrompt(source, target string) string {
	return fmt.Sprintf(`You translate spoken-video subtitles from %s to %s.
Rules:
- Translate the user's line faithfully and naturally; do not summarise or add commentary.
- Keep names, numbers, and punctuation that the target language shares.
- The line may be an incomplete sentence cut at a segment boundary; translate it as-is.
Respond with JSON only: {"translation": "<translated line>"}`, languageName(source), languageName(target))
}

func languageName(code string) string {
	code = strings.TrimSpace(code)
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return code
}
