package engine

import (
	"context"
	"errors"
	"time"
)

// ErrNotImplemented is returned by capability collaborators that have no real
// backing implementation. The dispatcher reports it as a distinct failure
// kind instead of a generic handler failure.
var ErrNotImplemented = errors.New("capability not implemented")

// Workflow is the backend's view of a single workflow.
type Workflow struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	NodeCount int       `json:"node_count"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WorkflowSpec carries the payload for create/update calls.
type WorkflowSpec struct {
	Name       string `json:"name"`
	Definition []byte `json:"definition,omitempty"`
}

// ExportResult reports an export-to-disk run.
type ExportResult struct {
	Count int      `json:"count"`
	Dir   string   `json:"dir"`
	Files []string `json:"files,omitempty"`
}

// Execution is the backend's view of one workflow execution.
type Execution struct {
	ID         string    `json:"id"`
	WorkflowID string    `json:"workflow_id"`
	Status     string    `json:"status"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// ExecutionRef is returned when a workflow run has been started.
type ExecutionRef struct {
	WorkflowID  string `json:"workflow_id"`
	ExecutionID string `json:"execution_id"`
}

// WorkflowBackend is the workflow-management collaborator contract.
type WorkflowBackend interface {
	GetWorkflow(ctx context.Context, id string) (*Workflow, error)
	ListWorkflows(ctx context.Context) ([]Workflow, error)
	CreateWorkflow(ctx context.Context, spec WorkflowSpec) (*Workflow, error)
	UpdateWorkflow(ctx context.Context, id string, spec WorkflowSpec) (*Workflow, error)
	ExportAll(ctx context.Context) (*ExportResult, error)
	ImportWorkflow(ctx context.Context, path string) (*Workflow, error)
	ExecuteWorkflow(ctx context.Context, id string, input map[string]any) (*ExecutionRef, error)
	GetExecution(ctx context.Context, id string) (*Execution, error)
}

// CommitResult reports one version-control commit.
type CommitResult struct {
	Hash         string `json:"hash"`
	Message      string `json:"message"`
	FilesChanged int    `json:"files_changed"`
}

// RepoStatus reports the working tree state.
type RepoStatus struct {
	Branch    string   `json:"branch"`
	Clean     bool     `json:"clean"`
	Modified  []string `json:"modified,omitempty"`
	Untracked []string `json:"untracked,omitempty"`
}

// VersionControl is the VCS collaborator contract.
type VersionControl interface {
	Commit(ctx context.Context, message string, paths ...string) (*CommitResult, error)
	Status(ctx context.Context) (*RepoStatus, error)
}

// Issue is one static analysis finding.
type Issue struct {
	Severity Priority `json:"severity"`
	File     string   `json:"file"`
	Node     string   `json:"node,omitempty"`
	Rule     string   `json:"rule"`
	Message  string   `json:"message"`
}

// AnalysisSummary buckets findings by severity.
type AnalysisSummary struct {
	WorkflowCount int `json:"workflow_count"`
	Critical      int `json:"critical"`
	High          int `json:"high"`
	Medium        int `json:"medium"`
	Low           int `json:"low"`
}

// AnalysisReport is the analyzer's project-wide result.
type AnalysisReport struct {
	Issues  []Issue         `json:"issues"`
	Summary AnalysisSummary `json:"summary"`
}

// ImproveOptions narrows an improvement run.
type ImproveOptions struct {
	Priority Priority `json:"priority,omitempty"`
	DryRun   bool     `json:"dry_run,omitempty"`
	Apply    bool     `json:"apply,omitempty"`
}

// ImprovementPhase groups planned fixes.
type ImprovementPhase struct {
	Name  string   `json:"name"`
	Fixes []string `json:"fixes"`
}

// ImprovementReport is the result of an improvement run.
type ImprovementReport struct {
	Phases     []ImprovementPhase `json:"phases"`
	Applied    bool               `json:"applied"`
	FixedCount int                `json:"fixed_count"`
}

// Analyzer is the static analysis collaborator contract.
type Analyzer interface {
	AnalyzeProject(ctx context.Context) (*AnalysisReport, error)
	Improve(ctx context.Context, opts ImproveOptions) (*ImprovementReport, error)
}

// EnvCheck is a single environment validation result.
type EnvCheck struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// EnvReport is the environment-check collaborator result.
type EnvReport struct {
	OK     bool       `json:"ok"`
	Checks []EnvCheck `json:"checks"`
}

// EnvironmentChecker validates settings and environment prerequisites.
type EnvironmentChecker interface {
	CheckEnvironment(ctx context.Context) (*EnvReport, error)
}

// SearchResult is one repository search hit.
type SearchResult struct {
	Path    string `json:"path"`
	Line    int    `json:"line"`
	Snippet string `json:"snippet"`
}

// SearchCapability is a pluggable capability with no defined external
// protocol. Implementations without a real backend must return
// ErrNotImplemented.
type SearchCapability interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

// NotImplementedSearch is the shipped SearchCapability.
type NotImplementedSearch struct{}

func (NotImplementedSearch) Search(ctx context.Context, query string) ([]SearchResult, error) {
	return nil, ErrNotImplemented
}
