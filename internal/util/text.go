package util

import (
	"strings"
	"unicode"
)

func SanitizePostgresText(value string) string {
	if value == "" {
		return value
	}

	sanitized := strings.ToValidUTF8(value, "")
	return strings.ReplaceAll(sanitized, "\x00", "")
}

// SplitSentences splits text at '.', '!' and '?' followed by whitespace
// or the end of input. Decimal numbers ("0.5%") and list markers ("1. ")
// do not end a sentence. Closing quotes and brackets stay with the
// sentence they close.
func SplitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	flush := func() {
		s := strings.TrimSpace(current.String())
		if s != "" {
			sentences = append(sentences, s)
		}
		current.Reset()
	}

	for i := 0; i < len(text); i++ {
		current.WriteByte(text[i])
		if !isTerminator(text[i]) {
			continue
		}

		j := i + 1
		for j < len(text) && isTerminator(text[j]) {
			current.WriteByte(text[j])
			j++
		}
		for j < len(text) && isCloser(text[j]) {
			current.WriteByte(text[j])
			j++
		}
		if j < len(text) && !unicode.IsSpace(rune(text[j])) {
			i = j - 1
			continue
		}
		if text[i] == '.' && j == i+1 && isListMarker(current.String()) {
			i = j - 1
			continue
		}
		flush()
		i = j - 1
	}
	flush()
	return sentences
}

// FirstSentence returns the first sentence of text, or "" for blank text.
func FirstSentence(text string) string {
	s := SplitSentences(text)
	if len(s) == 0 {
		return ""
	}
	return s[0]
}

func isTerminator(b byte) bool {
	return b == '.' || b == '!' || b == '?'
}

func isCloser(b byte) bool {
	return b == '"' || b == '\'' || b == ')' || b == ']' || b == '}'
}

// isListMarker reports whether s is only a number followed by a dot.
func isListMarker(s string) bool {
	s = strings.TrimSuffix(strings.TrimSpace(s), ".")
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
