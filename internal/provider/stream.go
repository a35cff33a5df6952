// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package provider defines the streaming text-generation interface.
package provider

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"
)

// =============================================================================
// STREAM READER
// =============================================================================

// StreamReader handles line-by-line JSON parsing of Ollama streaming
// responses. Each line is a JSON object carrying one content delta.
type StreamReader struct {
	reader *bufio.Reader
	// PERFORMANCE: strings.Builder avoids quadratic allocations
	accumulator strings.Builder
	chunkCount  int
	model       string
}

// NewStreamReader creates a new stream reader from an io.Reader.
func NewStreamReader(r io.Reader) *StreamReader {
	return &StreamReader{
		reader: bufio.NewReader(r),
	}
}

// Process reads the stream and calls fn for each non-empty content chunk.
// Blocks until the stream reports done, the reader is exhausted, or the
// context is cancelled. The context is checked at every chunk boundary:
// this is the suspension point where cooperative cancellation takes effect.
func (s *StreamReader) Process(ctx context.Context, fn StreamFunc) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			content, done, err := s.readChunk()
			if err != nil {
				if err == io.EOF {
					return nil
				}
				return err
			}

			if content != "" && fn != nil {
				fn(content)
			}
			if done {
				return nil
			}
		}
	}
}

// readChunk reads and parses a single line from the stream.
// Malformed lines are skipped rather than failing the stream.
func (s *StreamReader) readChunk() (content string, done bool, err error) {
	line, err := s.reader.ReadBytes('\n')
	if err != nil {
		if err == io.EOF && len(line) == 0 {
			return "", false, io.EOF
		}
		// Try to process the last line even on EOF
		if len(line) == 0 {
			return "", false, err
		}
	}

	if len(line) == 0 {
		return "", false, nil
	}

	var response struct {
		Model   string `json:"model"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		Done bool `json:"done"`
	}
	if err := json.Unmarshal(line, &response); err != nil {
		// Skip malformed lines
		return "", false, nil
	}

	if response.Model != "" {
		s.model = response.Model
	}

	if response.Message.Content != "" {
		s.accumulator.WriteString(response.Message.Content)
		s.chunkCount++
	}

	return response.Message.Content, response.Done, nil
}

// Accumulated returns all content received so far.
func (s *StreamReader) Accumulated() string {
	return s.accumulator.String()
}

// ChunkCount returns the number of non-empty content chunks received.
func (s *StreamReader) ChunkCount() int {
	return s.chunkCount
}

// Model returns the model name reported by the stream.
func (s *StreamReader) Model() string {
	return s.model
}
