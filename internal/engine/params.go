package engine

import (
	"regexp"
	"strings"
)

var (
	workflowIDPattern  = regexp.MustCompile(`(?i)\bworkflow\s+([A-Za-z0-9][A-Za-z0-9_-]*)`)
	executionIDPattern = regexp.MustCompile(`(?i)\bexecution\s+([A-Za-z0-9][A-Za-z0-9_-]*)`)
	filePathPattern    = regexp.MustCompile(`([\w@./\\-]+\.json)\b`)

	activeOnlyPattern   = regexp.MustCompile(`\bactive\s+workflows?\b`)
	inactiveOnlyPattern = regexp.MustCompile(`\b(?:inactive|disabled)\s+workflows?\b`)
	allWorkflowsPattern = regexp.MustCompile(`\b(?:all|every)\s+workflows?\b`)
)

// workflowIDStopwords are words that can follow "workflow" without being an
// identifier ("update workflow to ...", "export workflow from backup").
var workflowIDStopwords = map[string]struct{}{
	"to": {}, "the": {}, "and": {}, "with": {}, "from": {}, "for": {},
	"that": {}, "it": {}, "now": {}, "file": {}, "files": {}, "named": {},
	"called": {}, "status": {}, "changes": {}, "exist": {}, "list": {},
	"result": {}, "results": {},
}

// Extract pulls structured parameters out of the raw instruction. It is a
// pure function: it never mutates the instruction and never guesses defaults
// for fields the text does not mention.
func Extract(instruction string, taskType TaskType) Parameters {
	lower := strings.ToLower(instruction)
	params := Parameters{}

	if m := workflowIDPattern.FindStringSubmatch(instruction); len(m) == 2 {
		candidate := m[1]
		if _, stop := workflowIDStopwords[strings.ToLower(candidate)]; !stop {
			params.WorkflowID = candidate
		}
	}
	if taskType == TaskExecutionStatus {
		if m := executionIDPattern.FindStringSubmatch(instruction); len(m) == 2 {
			candidate := m[1]
			if _, stop := workflowIDStopwords[strings.ToLower(candidate)]; !stop {
				params.ExecutionID = candidate
			}
		}
	}
	if m := filePathPattern.FindStringSubmatch(instruction); len(m) == 2 {
		params.FilePath = m[1]
	}

	switch {
	case containsAny(lower, "critical", "urgent", "immediate"):
		params.Priority = PriorityCritical
	case strings.Contains(lower, "important"):
		params.Priority = PriorityHigh
	case strings.Contains(lower, "medium"):
		params.Priority = PriorityMedium
	case strings.Contains(lower, "minor"):
		params.Priority = PriorityLow
	}

	if containsAny(lower, "dry run", "dry-run", "preview") {
		params.DryRun = true
	}
	if containsAny(lower, "apply", "execute", "do it") {
		params.Apply = true
	}
	if containsAny(lower, "detailed", "comprehensive") {
		params.Detailed = true
	}
	if allWorkflowsPattern.MatchString(lower) {
		params.All = true
	}
	if inactiveOnlyPattern.MatchString(lower) {
		params.InactiveOnly = true
	} else if activeOnlyPattern.MatchString(lower) {
		params.ActiveOnly = true
	}

	return params
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
