package pipeline

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

const (
	MaxMessageBytes = 4096 // largest frame payload accepted as chat
	MaxTextChars    = 2000
)

// ErrEmptyMessage is returned for empty input.
var ErrEmptyMessage = errors.New("pipeline: message text is empty")

// ValidateMessage checks that raw chat input is something the pipeline can
// work on.
func ValidateMessage(text string) error {
	if len(text) == 0 {
		return ErrEmptyMessage
	}
	if len(text) > MaxMessageBytes {
		return fmt.Errorf("pipeline: message exceeds %d byte limit", MaxMessageBytes)
	}
	if !utf8.ValidString(text) {
		return fmt.Errorf("pipeline: message contains invalid UTF-8")
	}
	if utf8.RuneCountInString(text) > MaxTextChars {
		return fmt.Errorf("pipeline: message exceeds %d character limit", MaxTextChars)
	}
	return nil
}
