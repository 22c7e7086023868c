package analysis

import (
	"fmt"
	"strings"
)

const promptTemplate = `Analyze the following text for grammatical errors, spelling mistakes, punctuation issues, and stylistic improvements.
Provide a detailed breakdown of each issue and a fully corrected version of the text.
For every issue, "original" must be copied exactly from the text so it can be located by substring search.

Text: %s`

// BuildPrompt embeds text in the analysis instruction.
// The text is quoted so that embedded quotes cannot end the literal early.
func BuildPrompt(text string) string {
	return fmt.Sprintf(promptTemplate, quote(text))
}

func quote(text string) string {
	return `"` + strings.ReplaceAll(text, `"`, `\"`) + `"`
}
