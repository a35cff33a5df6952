// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package plan

import (
	"encoding/json"
	"regexp"
	"strings"
)

// =============================================================================
// RESPONSE PARSING
// =============================================================================

var (
	stepLineRegex = regexp.MustCompile(`(?i)STEP\s*\d+:\s*(.+)`)
	typeLineRegex = regexp.MustCompile(`(?i)TYPE:\s*(prompt|tool|checkpoint)`)
	toolLineRegex = regexp.MustCompile(`(?i)TOOL:\s*(\w+)`)
	argsLineRegex = regexp.MustCompile(`(?i)ARGS:\s*(\{.+?\})`)
)

// stepDraft accumulates fields for one step while scanning lines.
type stepDraft struct {
	description string
	stepType    StepType
	toolName    string
	toolArgs    map[string]interface{}
}

// parsePlanResponse scans the model's response line by line and appends
// the recognized steps to the plan. The parser is total: unrecognized
// lines are ignored, a malformed ARGS object leaves the step without
// arguments, and a step never fails to parse. If no STEP lines are
// found at all the plan gains a single fallback prompt step so every
// plan has at least one step.
func parsePlanResponse(p *Plan, response string) {
	var current *stepDraft

	flush := func() {
		if current != nil && current.description != "" {
			p.AddStep(current.description, current.stepType, current.toolName, current.toolArgs)
		}
		current = nil
	}

	for _, line := range strings.Split(strings.TrimSpace(response), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		upper := strings.ToUpper(line)

		switch {
		case strings.HasPrefix(upper, "STEP"):
			flush()
			current = &stepDraft{stepType: StepPrompt}
			if m := stepLineRegex.FindStringSubmatch(line); m != nil {
				current.description = strings.TrimSpace(m[1])
			} else {
				// A bare "STEP" line keeps the whole line as description.
				current.description = line
			}

		case strings.HasPrefix(upper, "TYPE:"):
			if current == nil {
				continue
			}
			if m := typeLineRegex.FindStringSubmatch(line); m != nil {
				switch strings.ToLower(m[1]) {
				case "tool":
					current.stepType = StepTool
				case "checkpoint":
					current.stepType = StepCheckpoint
				default:
					current.stepType = StepPrompt
				}
			}

		case strings.HasPrefix(upper, "TOOL:"):
			if current == nil {
				continue
			}
			if m := toolLineRegex.FindStringSubmatch(line); m != nil {
				current.toolName = m[1]
			}

		case strings.HasPrefix(upper, "ARGS:"):
			if current == nil {
				continue
			}
			if m := argsLineRegex.FindStringSubmatch(line); m != nil {
				var args map[string]interface{}
				if err := json.Unmarshal([]byte(m[1]), &args); err == nil {
					current.toolArgs = args
				}
			}
		}
	}
	flush()

	if len(p.Steps) == 0 {
		p.AddStep("Execute: "+p.Goal, StepPrompt, "", nil)
	}
}
