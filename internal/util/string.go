// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides utility functions for the forgeshell application.
package util

import (
	"time"

	"github.com/google/uuid"
)

// UNICODE: Rune-aware truncation preserves multi-byte characters.
// These functions count characters, not bytes, preventing mid-character
// truncation that would corrupt UTF-8 strings.

// TruncateRunes truncates a string to a maximum number of runes (characters).
// If the string is truncated, "..." is appended.
func TruncateRunes(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	if maxRunes <= 3 {
		return string(runes[:maxRunes])
	}
	return string(runes[:maxRunes-3]) + "..."
}

// TruncateRunesNoEllipsis truncates a string to a maximum number of runes
// without appending an ellipsis.
func TruncateRunesNoEllipsis(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes])
}

// ShortID returns a short unique identifier: the first 8 hex characters of
// a random UUID. Collision probability is negligible at the scale of a
// single interactive session.
func ShortID() string {
	return uuid.New().String()[:8]
}

// FormatDuration formats a duration for display, e.g. "340ms", "2.5s", "1m12s".
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	if d < time.Minute {
		return d.Round(100 * time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}

// Timestamp returns the current wall-clock time formatted for log lines.
func Timestamp() string {
	return time.Now().Format("15:04:05")
}
