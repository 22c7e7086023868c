// Package input cleans drafts before they reach the editor.
package input

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// DefaultMaxSize is 64KB, enough for a long essay.
	DefaultMaxSize = 64 * 1024
	// EnvMaxSize overrides the default limit.
	EnvMaxSize = "PROOFLINE_MAX_INPUT_SIZE"
)

var (
	ErrTooLarge    = errors.New("input exceeds maximum allowed size")
	ErrInvalidUTF8 = errors.New("input contains invalid UTF-8 sequences")
)

// Sanitizer enforces a size limit, validates UTF-8 and strips control characters
// other than newline, tab and carriage return.
type Sanitizer struct {
	// MaxSize is the limit in bytes. Zero means the environment or default limit.
	MaxSize int
}

// Sanitize uses a Sanitizer with the environment or default limit.
func Sanitize(text string) (string, error) {
	return Sanitizer{}.Sanitize(text)
}

// Sanitize returns the cleaned text. Oversized input is rejected, not truncated.
func (s Sanitizer) Sanitize(text string) (string, error) {
	limit := s.limit()
	if len(text) > limit {
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrTooLarge, len(text), limit)
	}

	if !utf8.ValidString(text) {
		return "", ErrInvalidUTF8
	}

	if strings.IndexFunc(text, unsafeControl) < 0 {
		return text, nil
	}

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if !unsafeControl(r) {
			b.WriteRune(r)
		}
	}
	return b.String(), nil
}

// Limit reports the effective size limit.
func (s Sanitizer) Limit() int {
	return s.limit()
}

func (s Sanitizer) limit() int {
	if s.MaxSize > 0 {
		return s.MaxSize
	}
	if val := os.Getenv(EnvMaxSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxSize
}

// ESC, NUL, BEL and friends corrupt terminals and logs.
func unsafeControl(r rune) bool {
	return unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r'
}
