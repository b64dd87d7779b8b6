package util

import (
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const nanoidLength = 21

// NewID returns a random 21 character nanoid.
func NewID() string {
	id, err := gonanoid.New()
	if err != nil {
		// crypto/rand failure; nanoid has no other error path.
		panic(err)
	}
	return id
}

// RequestID returns the incoming id when it is a well-formed nanoid and a
// fresh one otherwise. Prefixed forms such as "req:<nanoid>" are reduced
// to the nanoid.
func RequestID(incoming string) string {
	if id := extractNanoid(strings.TrimSpace(incoming)); id != "" {
		return id
	}
	return NewID()
}

func isNanoid(s string) bool {
	if len(s) != nanoidLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '_' || c == '-':
		default:
			return false
		}
	}
	return true
}

func extractNanoid(s string) string {
	if isNanoid(s) {
		return s
	}
	idx := strings.LastIndexAny(s, ",;|: ")
	if idx < 0 {
		return ""
	}
	if candidate := s[idx+1:]; isNanoid(candidate) {
		return candidate
	}
	return ""
}
