package domain

import "strings"

// Category classifies an Issue. Wire values are upper-case.
type Category string

const (
	CategoryGrammar     Category = "GRAMMAR"
	CategorySpelling    Category = "SPELLING"
	CategoryPunctuation Category = "PUNCTUATION"
	CategoryStyle       Category = "STYLE"
)

// Categories lists every valid Category in display order.
func Categories() []Category {
	return []Category{CategoryGrammar, CategorySpelling, CategoryPunctuation, CategoryStyle}
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryGrammar, CategorySpelling, CategoryPunctuation, CategoryStyle:
		return true
	}
	return false
}

// Label returns the lower-case form used in user-facing output.
func (c Category) Label() string {
	return strings.ToLower(string(c))
}

// Issue is one flagged span of text.
//
// Original is expected to occur in the analyzed text, but neither presence nor
// uniqueness is guaranteed; applying an Issue is best-effort.
type Issue struct {
	// ID is assigned when the result is received and stays stable while
	// other issues are applied or removed.
	ID          int      `json:"id"`
	Original    string   `json:"original"`
	Replacement string   `json:"replacement"`
	Explanation string   `json:"explanation"`
	Category    Category `json:"category"`
	// Context is a short surrounding snippet for display only.
	Context string `json:"context"`
}
