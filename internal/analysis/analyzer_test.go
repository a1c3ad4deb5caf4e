package analysis

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/user/n8nops/internal/engine"
)

func writeWorkflow(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

const cleanWorkflow = `{
  "name": "clean",
  "active": true,
  "nodes": [{"name": "Webhook", "type": "n8n-nodes-base.webhook"}],
  "settings": {"errorWorkflow": "err-handler"}
}`

func TestAnalyzeProjectFindsIssues(t *testing.T) {
	dir := t.TempDir()
	writeWorkflow(t, dir, "clean.json", cleanWorkflow)
	writeWorkflow(t, dir, "risky.json", `{
  "name": "risky",
  "nodes": [
    {"name": "Old", "type": "n8n-nodes-base.function"},
    {"name": "Off", "type": "n8n-nodes-base.set", "disabled": true},
    {"name": "Call", "type": "n8n-nodes-base.httpRequest", "parameters": {"url": "http://localhost:9000/hook"}}
  ],
  "settings": {}
}`)

	a, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	report, err := a.AnalyzeProject(context.Background())
	if err != nil {
		t.Fatalf("AnalyzeProject() error = %v", err)
	}

	if report.Summary.WorkflowCount != 2 {
		t.Fatalf("workflow count = %d, want 2", report.Summary.WorkflowCount)
	}
	rules := map[string]int{}
	for _, issue := range report.Issues {
		rules[issue.Rule]++
	}
	for _, want := range []string{"hardcoded-url", "no-error-workflow", "disabled-node", "deprecated-node"} {
		if rules[want] == 0 {
			t.Errorf("rule %s not reported; got %v", want, rules)
		}
	}
	if report.Summary.High == 0 || report.Summary.Medium == 0 || report.Summary.Low == 0 {
		t.Fatalf("summary = %+v", report.Summary)
	}
}

func TestAnalyzeProjectInlineSecretIsCritical(t *testing.T) {
	dir := t.TempDir()
	writeWorkflow(t, dir, "leaky.json", `{
  "name": "leaky",
  "nodes": [{"name": "Call", "type": "n8n-nodes-base.httpRequest", "parameters": {"apiKey": "sk-sekret"}}],
  "settings": {"errorWorkflow": "x"}
}`)

	a, _ := New(dir)
	report, err := a.AnalyzeProject(context.Background())
	if err != nil {
		t.Fatalf("AnalyzeProject() error = %v", err)
	}
	if report.Summary.Critical == 0 {
		t.Fatalf("inline secret not reported critical: %+v", report.Issues)
	}
}

func TestAnalyzeProjectBadJSONReportedNotFatal(t *testing.T) {
	dir := t.TempDir()
	writeWorkflow(t, dir, "broken.json", "{not json")
	writeWorkflow(t, dir, "clean.json", cleanWorkflow)

	a, _ := New(dir)
	report, err := a.AnalyzeProject(context.Background())
	if err != nil {
		t.Fatalf("AnalyzeProject() error = %v", err)
	}
	found := false
	for _, issue := range report.Issues {
		if issue.Rule == "parse-error" && issue.Severity == engine.PriorityCritical {
			found = true
		}
	}
	if !found {
		t.Fatalf("parse error not reported: %+v", report.Issues)
	}
}

func TestImproveDryRunPlansWithoutWriting(t *testing.T) {
	dir := t.TempDir()
	original := `{
  "name": "has disabled",
  "nodes": [{"name": "Off", "type": "n8n-nodes-base.set", "disabled": true}],
  "settings": {"errorWorkflow": "x"}
}`
	writeWorkflow(t, dir, "wf.json", original)

	a, _ := New(dir)
	report, err := a.Improve(context.Background(), engine.ImproveOptions{DryRun: true})
	if err != nil {
		t.Fatalf("Improve() error = %v", err)
	}
	if report.Applied {
		t.Fatalf("dry run applied changes")
	}
	if report.FixedCount == 0 || len(report.Phases) == 0 {
		t.Fatalf("report = %+v, want planned fixes", report)
	}

	data, _ := os.ReadFile(filepath.Join(dir, "wf.json"))
	if string(data) != original {
		t.Fatalf("dry run modified the file")
	}
}

func TestImproveApplyRemovesDisabledNodes(t *testing.T) {
	dir := t.TempDir()
	writeWorkflow(t, dir, "wf.json", `{
  "name": "has disabled",
  "nodes": [
    {"name": "Keep", "type": "n8n-nodes-base.set"},
    {"name": "Off", "type": "n8n-nodes-base.set", "disabled": true}
  ],
  "settings": {"errorWorkflow": "x"}
}`)

	a, _ := New(dir)
	report, err := a.Improve(context.Background(), engine.ImproveOptions{Apply: true})
	if err != nil {
		t.Fatalf("Improve() error = %v", err)
	}
	if !report.Applied {
		t.Fatalf("apply run not marked applied")
	}

	data, err := os.ReadFile(filepath.Join(dir, "wf.json"))
	if err != nil {
		t.Fatalf("read rewritten file: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("rewritten file invalid: %v", err)
	}
	nodes := doc["nodes"].([]any)
	if len(nodes) != 1 {
		t.Fatalf("nodes after apply = %d, want 1", len(nodes))
	}
}

func TestImprovePriorityFilter(t *testing.T) {
	dir := t.TempDir()
	writeWorkflow(t, dir, "wf.json", `{
  "name": "mixed",
  "nodes": [{"name": "Off", "type": "n8n-nodes-base.set", "disabled": true}],
  "settings": {}
}`)

	a, _ := New(dir)
	report, err := a.Improve(context.Background(), engine.ImproveOptions{Priority: engine.PriorityLow, DryRun: true})
	if err != nil {
		t.Fatalf("Improve() error = %v", err)
	}
	for _, phase := range report.Phases {
		if phase.Name != "fix low issues" {
			t.Fatalf("unexpected phase %q with priority filter", phase.Name)
		}
	}
	if report.FixedCount != 1 {
		t.Fatalf("FixedCount = %d, want only the disabled-node fix", report.FixedCount)
	}
}

var _ engine.Analyzer = (*Analyzer)(nil)
