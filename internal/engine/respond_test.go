package engine

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSynthesizeFailureAlwaysSuggests(t *testing.T) {
	s := NewSynthesizer()
	task := taskFor(TaskWorkflowExecute, "execute workflow 42", Parameters{WorkflowID: "42"})

	for _, kind := range []FailureKind{FailureMissingParameter, FailureHandler, FailureTimeout, FailureNotImplemented} {
		result := HandlerResult{Err: &TaskError{Kind: kind, Err: fmt.Errorf("it broke")}}
		resp := s.Synthesize(result, task)
		if resp.Success {
			t.Fatalf("Synthesize(%s) success = true", kind)
		}
		if len(resp.Suggestions) == 0 {
			t.Fatalf("Synthesize(%s) returned no suggestions", kind)
		}
		if !strings.Contains(resp.Message, "failed") {
			t.Fatalf("Synthesize(%s) message = %q", kind, resp.Message)
		}
	}
}

func TestSynthesizeAnalysisCriticalFirst(t *testing.T) {
	s := NewSynthesizer()
	task := taskFor(TaskSystemAnalysis, "analyze the system", Parameters{})
	report := &AnalysisReport{
		Issues: []Issue{{Severity: PriorityCritical}, {Severity: PriorityHigh}},
		Summary: AnalysisSummary{
			WorkflowCount: 4,
			Critical:      1,
			High:          1,
		},
	}

	resp := s.Synthesize(HandlerResult{Success: true, Data: report}, task)
	if !resp.Success {
		t.Fatalf("Synthesize() success = false")
	}
	if !strings.Contains(resp.Message, "analyzed 4 workflows") {
		t.Fatalf("message = %q", resp.Message)
	}
	if len(resp.Suggestions) == 0 || !strings.Contains(resp.Suggestions[0], "critical") {
		t.Fatalf("suggestions = %v, want critical fix first", resp.Suggestions)
	}
}

func TestSynthesizeUnknownTypeDefaults(t *testing.T) {
	s := NewSynthesizer()
	task := taskFor(TaskType("mystery"), "do something", Parameters{})

	resp := s.Synthesize(HandlerResult{Success: true}, task)
	if resp.Message != "operation completed successfully" {
		t.Fatalf("message = %q", resp.Message)
	}
	if resp.Suggestions == nil || resp.NextSteps == nil {
		t.Fatalf("response slices must be non-nil")
	}
}

func TestConfirmationResponse(t *testing.T) {
	task := taskFor(TaskSystemImprovement, "fix issues and apply", Parameters{Apply: true})
	decision := Decision{Required: true, Reason: "system_improvement applies irreversible changes"}

	resp := ConfirmationResponse(task, decision)
	if resp.Success {
		t.Fatalf("ConfirmationResponse() success = true")
	}
	if !strings.Contains(resp.Message, "requires confirmation") {
		t.Fatalf("message = %q", resp.Message)
	}
	found := false
	for _, s := range resp.Suggestions {
		if strings.Contains(s, "confirmed") {
			found = true
		}
	}
	if !found {
		t.Fatalf("suggestions = %v, want resubmission hint", resp.Suggestions)
	}
}

func TestSynthesizeHelpCandidates(t *testing.T) {
	s := NewSynthesizer()
	task := taskFor(TaskGeneralQuery, "do the workflow thing", Parameters{})
	summary := &HelpSummary{
		Confidence: 0.2,
		Candidates: []TaskType{TaskWorkflowList, TaskWorkflowExport},
		TaskTypes: []TaskTypeInfo{
			{Type: TaskWorkflowList, ExamplePhrases: []string{"list workflows"}},
		},
	}

	resp := s.Synthesize(HandlerResult{Success: true, Data: summary}, task)
	if !strings.Contains(resp.Suggestions[0], "did you mean workflow_list?") {
		t.Fatalf("suggestions = %v", resp.Suggestions)
	}
	if !strings.Contains(resp.Message, "0.20") {
		t.Fatalf("message = %q", resp.Message)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("  hello  ", 10); got != "hello" {
		t.Fatalf("truncate() = %q", got)
	}
	if got := truncate("abcdefghij", 5); got != "ab..." {
		t.Fatalf("truncate() = %q", got)
	}
}

func TestTruncateKeepsRunesIntact(t *testing.T) {
	long := strings.Repeat("日", 100)

	for _, max := range []int{2, 3, 20, 299} {
		got := truncate(long, max)
		if len(got) > max {
			t.Fatalf("truncate(max=%d) len = %d", max, len(got))
		}
		if !utf8.ValidString(got) {
			t.Fatalf("truncate(max=%d) produced invalid UTF-8: %q", max, got)
		}
	}

	got := truncate(long, 20)
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("truncate() = %q, want ellipsis suffix", got)
	}
}
