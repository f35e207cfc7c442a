package middleware

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

const (
	// MaxWindowSec bounds the reply collection window.
	MaxWindowSec = 15.0
	// MaxDelayMs bounds the delay between batch items.
	MaxDelayMs = 10000
	// MaxTextLength bounds a single query.
	MaxTextLength = 256
)

// ValidateText validates a single query.
func ValidateText(text string) error {
	if len(text) == 0 {
		return errors.New("text cannot be empty")
	}
	if len(text) > MaxTextLength {
		return errors.New("text exceeds maximum length")
	}
	if !utf8.ValidString(text) {
		return errors.New("text must be valid UTF-8")
	}
	return nil
}

// ValidateWindow validates window_sec.
func ValidateWindow(sec float64) error {
	if sec < 0 || sec > MaxWindowSec {
		return fmt.Errorf("window_sec must be between 0 and %g", MaxWindowSec)
	}
	return nil
}

// ValidateDelay validates delay_ms.
func ValidateDelay(ms int) error {
	if ms < 0 || ms > MaxDelayMs {
		return fmt.Errorf("delay_ms must be between 0 and %d", MaxDelayMs)
	}
	return nil
}

// ValidateBatch validates the messages of a batch.
func ValidateBatch(messages []string, maxItems int) error {
	if len(messages) == 0 {
		return errors.New("messages cannot be empty")
	}
	if maxItems > 0 && len(messages) > maxItems {
		return fmt.Errorf("at most %d messages per batch", maxItems)
	}
	for _, m := range messages {
		if len(m) > MaxTextLength {
			return errors.New("message exceeds maximum length")
		}
		if !utf8.ValidString(m) {
			return errors.New("messages must be valid UTF-8")
		}
	}
	return nil
}
