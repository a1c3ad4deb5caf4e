// Package analysis implements the static analysis collaborator: heuristic
// checks over exported workflow JSON files.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/user/n8nops/internal/engine"
)

var (
	hardcodedURLPattern = regexp.MustCompile(`"(https?://(?:localhost|127\.0\.0\.1|192\.168\.[0-9.]+)[^"]*)"`)
	inlineSecretPattern = regexp.MustCompile(`(?i)"(password|apikey|api_key|token|secret)"\s*:\s*"[^"]+"`)

	deprecatedNodeTypes = map[string]string{
		"n8n-nodes-base.start":                "replaced by the manual trigger node",
		"n8n-nodes-base.functionItem":         "replaced by the code node",
		"n8n-nodes-base.function":             "replaced by the code node",
		"n8n-nodes-base.executeCommandLegacy": "legacy execute-command node",
	}
)

type workflowDoc struct {
	Name     string         `json:"name"`
	Active   bool           `json:"active"`
	Nodes    []workflowNode `json:"nodes"`
	Settings map[string]any `json:"settings"`
}

type workflowNode struct {
	Name       string         `json:"name"`
	Type       string         `json:"type"`
	Disabled   bool           `json:"disabled"`
	Parameters map[string]any `json:"parameters"`
}

// Analyzer walks a directory of exported workflow JSON files and reports
// structural and quality issues.
type Analyzer struct {
	dir string
}

func New(dir string) (*Analyzer, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("workflows directory is required")
	}
	return &Analyzer{dir: dir}, nil
}

// AnalyzeProject scans every *.json file under the workflows directory.
// Files that do not parse as workflows are reported as critical issues
// instead of aborting the scan.
func (a *Analyzer) AnalyzeProject(ctx context.Context) (*engine.AnalysisReport, error) {
	report := &engine.AnalysisReport{Issues: []engine.Issue{}}

	files, err := a.workflowFiles()
	if err != nil {
		return nil, err
	}
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rel, _ := filepath.Rel(a.dir, path)
		issues, err := a.analyzeFile(path, rel)
		if err != nil {
			report.Issues = append(report.Issues, engine.Issue{
				Severity: engine.PriorityCritical,
				File:     rel,
				Rule:     "parse-error",
				Message:  err.Error(),
			})
			continue
		}
		report.Issues = append(report.Issues, issues...)
	}

	report.Summary.WorkflowCount = len(files)
	for _, issue := range report.Issues {
		switch issue.Severity {
		case engine.PriorityCritical:
			report.Summary.Critical++
		case engine.PriorityHigh:
			report.Summary.High++
		case engine.PriorityMedium:
			report.Summary.Medium++
		case engine.PriorityLow:
			report.Summary.Low++
		}
	}
	return report, nil
}

// Improve plans remediation phases from a fresh analysis. Safe rewrites
// (normalizing the JSON of files with fixable findings) are written only
// when opts.Apply is set; otherwise the run is a dry run.
func (a *Analyzer) Improve(ctx context.Context, opts engine.ImproveOptions) (*engine.ImprovementReport, error) {
	report, err := a.AnalyzeProject(ctx)
	if err != nil {
		return nil, err
	}

	order := []engine.Priority{engine.PriorityCritical, engine.PriorityHigh, engine.PriorityMedium, engine.PriorityLow}
	byseverity := map[engine.Priority][]string{}
	for _, issue := range report.Issues {
		if opts.Priority != "" && issue.Severity != opts.Priority {
			continue
		}
		fix := fmt.Sprintf("%s: %s (%s)", issue.File, issue.Message, issue.Rule)
		byseverity[issue.Severity] = append(byseverity[issue.Severity], fix)
	}

	out := &engine.ImprovementReport{Phases: []engine.ImprovementPhase{}}
	for _, severity := range order {
		fixes := byseverity[severity]
		if len(fixes) == 0 {
			continue
		}
		out.Phases = append(out.Phases, engine.ImprovementPhase{
			Name:  fmt.Sprintf("fix %s issues", severity),
			Fixes: fixes,
		})
		out.FixedCount += len(fixes)
	}

	if opts.Apply && !opts.DryRun {
		applied, err := a.applySafeRewrites(ctx)
		if err != nil {
			return nil, err
		}
		out.Applied = true
		if applied < out.FixedCount {
			out.FixedCount = applied
		}
	}
	return out, nil
}

func (a *Analyzer) workflowFiles() ([]string, error) {
	files := []string{}
	err := filepath.WalkDir(a.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".json") {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("workflows directory %q does not exist", a.dir)
		}
		return nil, fmt.Errorf("scan workflows dir: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

func (a *Analyzer) analyzeFile(path, rel string) ([]engine.Issue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow: %w", err)
	}
	var doc workflowDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid workflow JSON: %w", err)
	}

	issues := []engine.Issue{}
	raw := string(data)

	if m := inlineSecretPattern.FindStringSubmatch(raw); len(m) == 2 {
		issues = append(issues, engine.Issue{
			Severity: engine.PriorityCritical,
			File:     rel,
			Rule:     "inline-credentials",
			Message:  fmt.Sprintf("workflow embeds a literal %q value; move it to a credential", strings.ToLower(m[1])),
		})
	}
	if m := hardcodedURLPattern.FindStringSubmatch(raw); len(m) == 2 {
		issues = append(issues, engine.Issue{
			Severity: engine.PriorityHigh,
			File:     rel,
			Rule:     "hardcoded-url",
			Message:  fmt.Sprintf("hardcoded environment-specific URL %s", m[1]),
		})
	}
	if doc.Settings == nil || doc.Settings["errorWorkflow"] == nil {
		issues = append(issues, engine.Issue{
			Severity: engine.PriorityMedium,
			File:     rel,
			Rule:     "no-error-workflow",
			Message:  "no error workflow configured; failures will go unnoticed",
		})
	}
	for _, node := range doc.Nodes {
		if node.Disabled {
			issues = append(issues, engine.Issue{
				Severity: engine.PriorityLow,
				File:     rel,
				Node:     node.Name,
				Rule:     "disabled-node",
				Message:  fmt.Sprintf("node %q is disabled", node.Name),
			})
		}
		if reason, deprecated := deprecatedNodeTypes[node.Type]; deprecated {
			issues = append(issues, engine.Issue{
				Severity: engine.PriorityMedium,
				File:     rel,
				Node:     node.Name,
				Rule:     "deprecated-node",
				Message:  fmt.Sprintf("node %q uses deprecated type %s: %s", node.Name, node.Type, reason),
			})
		}
	}
	return issues, nil
}

// applySafeRewrites normalizes workflow files in place: stable indentation
// and removal of disabled nodes. Anything riskier stays a manual fix.
func (a *Analyzer) applySafeRewrites(ctx context.Context) (int, error) {
	files, err := a.workflowFiles()
	if err != nil {
		return 0, err
	}
	applied := 0
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return applied, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return applied, fmt.Errorf("read workflow: %w", err)
		}
		var doc map[string]any
		if err := json.Unmarshal(data, &doc); err != nil {
			continue
		}
		changed := false
		if nodes, ok := doc["nodes"].([]any); ok {
			kept := make([]any, 0, len(nodes))
			for _, n := range nodes {
				node, ok := n.(map[string]any)
				if ok {
					if disabled, _ := node["disabled"].(bool); disabled {
						changed = true
						continue
					}
				}
				kept = append(kept, n)
			}
			if changed {
				doc["nodes"] = kept
			}
		}
		if !changed {
			continue
		}
		out, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return applied, fmt.Errorf("marshal workflow: %w", err)
		}
		if err := os.WriteFile(path, append(out, '\n'), 0o644); err != nil {
			return applied, fmt.Errorf("write workflow: %w", err)
		}
		applied++
	}
	return applied, nil
}
