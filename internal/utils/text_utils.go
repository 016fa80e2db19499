package utils

import (
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// TextProcessor provides utilities for preparing text for display and
// matching.
type TextProcessor struct {
	logger *zap.Logger
}

// NewTextProcessor creates a new TextProcessor
func NewTextProcessor(logger *zap.Logger) *TextProcessor {
	return &TextProcessor{
		logger: logger,
	}
}

// Excerpt shortens text to at most maxRunes runes for evidence snippets,
// cutting on a rune boundary and appending an ellipsis when truncated.
func (tp *TextProcessor) Excerpt(text string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(text) <= maxRunes {
		return text
	}

	runes := []rune(text)
	cut := string(runes[:maxRunes])

	// Avoid cutting mid-word when a nearby space allows it
	if idx := strings.LastIndex(cut, " "); idx > maxRunes/2 {
		cut = cut[:idx]
	}

	tp.logger.Debug("Excerpt truncated",
		zap.Int("original_runes", len(runes)),
		zap.Int("max_runes", maxRunes))

	return cut + "…"
}

// SanitizeUTF8 ensures the string contains only valid UTF-8 characters
func (tp *TextProcessor) SanitizeUTF8(text string) string {
	if utf8.ValidString(text) {
		return text
	}

	// Matching text must not contain replacement characters the patterns
	// could stumble over, so invalid sequences are dropped outright.
	result := make([]rune, 0, len(text))
	for i, r := range text {
		if r == utf8.RuneError {
			_, size := utf8.DecodeRuneInString(text[i:])
			if size == 1 {
				continue
			}
		}
		result = append(result, r)
	}

	tp.logger.Debug("Text sanitized",
		zap.Int("original_size", len(text)),
		zap.Int("sanitized_size", len(string(result))))

	return string(result)
}
