package utils

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Size limits in bytes
const (
	MaxContentSize = 2 << 20 // one buffer
	MaxMessageSize = 4 << 20 // one WebSocket frame
	MaxUploadSize  = 4 << 20 // one imported file
)

// Length limits in runes
const (
	MaxIDLength   = 128
	MaxNameLength = 256
)

// SafeIDPattern matches buffer ids: ULIDs or sequence numbers behind a
// prefix, never path fragments
var SafeIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateID checks an id taken from a URL or message. An empty id is an
// error only when required.
func ValidateID(id, field string, required bool) error {
	if id == "" {
		if required {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
	if utf8.RuneCountInString(id) > MaxIDLength {
		return fmt.Errorf("%s must not exceed %d characters", field, MaxIDLength)
	}
	if !SafeIDPattern.MatchString(id) {
		return fmt.Errorf("%s contains invalid characters (only alphanumeric, hyphens, and underscores allowed)", field)
	}
	return nil
}

// ValidateName checks a buffer display name. Names are free text apart
// from NUL and blank values.
func ValidateName(name, field string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%s is required", field)
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return fmt.Errorf("%s must not exceed %d characters", field, MaxNameLength)
	}
	if strings.ContainsRune(name, 0) {
		return fmt.Errorf("%s contains invalid characters", field)
	}
	return nil
}

// ValidateContent checks buffer content size. Content is otherwise opaque.
func ValidateContent(content string) error {
	if len(content) > MaxContentSize {
		return fmt.Errorf("content size %d bytes exceeds maximum %d bytes", len(content), MaxContentSize)
	}
	return nil
}
