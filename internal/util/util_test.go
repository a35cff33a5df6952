// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"testing"
	"time"
)

func TestTruncateRunes(t *testing.T) {
	if got := TruncateRunes("hello world", 8); got != "hello..." {
		t.Errorf("Expected 'hello...', got '%s'", got)
	}

	if got := TruncateRunes("short", 10); got != "short" {
		t.Errorf("Short strings should pass through, got '%s'", got)
	}

	// Multi-byte characters must not be split
	if got := TruncateRunes("日本語のテキスト", 5); got != "日本..." {
		t.Errorf("Expected '日本...', got '%s'", got)
	}

	if got := TruncateRunes("anything", 0); got != "" {
		t.Errorf("Zero max should return empty, got '%s'", got)
	}
}

func TestTruncateRunesNoEllipsis(t *testing.T) {
	if got := TruncateRunesNoEllipsis("hello world", 5); got != "hello" {
		t.Errorf("Expected 'hello', got '%s'", got)
	}

	if got := TruncateRunesNoEllipsis("hi", 5); got != "hi" {
		t.Errorf("Expected 'hi', got '%s'", got)
	}
}

func TestShortID(t *testing.T) {
	id := ShortID()
	if len(id) != 8 {
		t.Errorf("Expected 8-character ID, got %d characters", len(id))
	}

	if ShortID() == id {
		t.Error("Consecutive IDs should differ")
	}
}

func TestFormatDuration(t *testing.T) {
	if got := FormatDuration(340 * time.Millisecond); got != "340ms" {
		t.Errorf("Expected '340ms', got '%s'", got)
	}

	if got := FormatDuration(2500 * time.Millisecond); got != "2.5s" {
		t.Errorf("Expected '2.5s', got '%s'", got)
	}
}
