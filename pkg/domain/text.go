package domain

import (
	"strings"
	"unicode/utf8"
)

// CountWords counts whitespace-separated words in text.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// CountCharacters counts the runes in text.
func CountCharacters(text string) int {
	return utf8.RuneCountInString(text)
}

// IsBlank reports whether text is empty or whitespace only.
func IsBlank(text string) bool {
	return strings.TrimSpace(text) == ""
}
