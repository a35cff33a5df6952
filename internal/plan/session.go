// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package plan

import "sync"

// =============================================================================
// SESSION
// =============================================================================

// Session tracks which plan a caller is currently working with. The
// engine itself has no notion of an active plan; each interactive
// surface owns a Session so two surfaces never fight over one pointer.
type Session struct {
	mu       sync.Mutex
	activeID string
}

// NewSession creates a session with no active plan.
func NewSession() *Session {
	return &Session{}
}

// SetActive records the plan the session is working with.
func (s *Session) SetActive(planID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeID = planID
}

// ActiveID returns the active plan ID, or "" when none is set.
func (s *Session) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// Drop clears the active plan if it matches planID. Used when a plan is
// cancelled so the session does not point at a dead plan.
func (s *Session) Drop(planID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeID == planID {
		s.activeID = ""
	}
}

// Clear unconditionally clears the active plan.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeID = ""
}
