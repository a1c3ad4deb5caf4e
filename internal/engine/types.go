package engine

import (
	"fmt"
	"time"
)

// TaskType is one value from the closed enumeration of operations the engine
// can classify an instruction into.
type TaskType string

const (
	TaskSystemAnalysis    TaskType = "system_analysis"
	TaskSystemImprovement TaskType = "system_improvement"
	TaskWorkflowCreate    TaskType = "workflow_create"
	TaskWorkflowUpdate    TaskType = "workflow_update"
	TaskWorkflowList      TaskType = "workflow_list"
	TaskWorkflowExport    TaskType = "workflow_export"
	TaskWorkflowImport    TaskType = "workflow_import"
	TaskWorkflowExecute   TaskType = "workflow_execute"
	TaskExecutionStatus   TaskType = "execution_status"
	TaskGitCommit         TaskType = "git_commit"
	TaskGitStatus         TaskType = "git_status"
	TaskEnvironmentCheck  TaskType = "environment_check"
	TaskRepositorySearch  TaskType = "repository_search"

	// TaskGeneralQuery is the reserved fallback when classification stays
	// below the confidence threshold.
	TaskGeneralQuery TaskType = "general_query"
)

type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Parameters holds the structured fields extracted from an instruction.
// Absent fields keep their zero value and are omitted from JSON; defaults
// belong to the handlers, never to extraction.
type Parameters struct {
	WorkflowID   string   `json:"workflow_id,omitempty"`
	ExecutionID  string   `json:"execution_id,omitempty"`
	FilePath     string   `json:"file_path,omitempty"`
	Priority     Priority `json:"priority,omitempty"`
	DryRun       bool     `json:"dry_run,omitempty"`
	Apply        bool     `json:"apply,omitempty"`
	Detailed     bool     `json:"detailed,omitempty"`
	All          bool     `json:"all,omitempty"`
	ActiveOnly   bool     `json:"active_only,omitempty"`
	InactiveOnly bool     `json:"inactive_only,omitempty"`
}

// Task is created once per ExecuteInstruction call and is not mutated after
// dispatch begins.
type Task struct {
	ID                    string         `json:"id"`
	RawInstruction        string         `json:"raw_instruction"`
	NormalizedInstruction string         `json:"normalized_instruction"`
	Context               map[string]any `json:"context,omitempty"`
	Type                  TaskType       `json:"type"`
	Parameters            Parameters     `json:"parameters"`
	RequiresConfirmation  bool           `json:"requires_confirmation"`
}

// Classification is the classifier's verdict for one instruction.
type Classification struct {
	Type            TaskType             `json:"type"`
	Confidence      float64              `json:"confidence"`
	MatchedPattern  string               `json:"matched_pattern,omitempty"`
	CandidateScores map[TaskType]float64 `json:"candidate_scores,omitempty"`
}

// FailureKind tags the failure classes a handler result can carry.
type FailureKind string

const (
	FailureMissingParameter FailureKind = "missing_parameter"
	FailureHandler          FailureKind = "handler_failure"
	FailureTimeout          FailureKind = "timeout"
	FailureNotImplemented   FailureKind = "not_implemented"
)

// TaskError wraps a collaborator or validation error with its failure kind.
// The underlying error is preserved verbatim.
type TaskError struct {
	Kind FailureKind
	Err  error
}

func (e *TaskError) Error() string {
	if e == nil || e.Err == nil {
		return string(FailureHandler)
	}
	return e.Err.Error()
}

func (e *TaskError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func missingParameter(name string) *TaskError {
	return &TaskError{Kind: FailureMissingParameter, Err: fmt.Errorf("required parameter %q is missing", name)}
}

// HandlerResult is what the dispatcher returns after invoking a collaborator.
type HandlerResult struct {
	Success bool
	Data    any
	Err     *TaskError
}

// Response is the sole externally observable artifact of an instruction.
type Response struct {
	Success     bool        `json:"success"`
	Message     string      `json:"message"`
	Suggestions []string    `json:"suggestions"`
	NextSteps   []string    `json:"next_steps"`
	Task        TaskSummary `json:"task"`
}

type TaskSummary struct {
	Type           TaskType   `json:"type"`
	RawInstruction string     `json:"raw_instruction"`
	Parameters     Parameters `json:"parameters"`
}

// TaskTypeInfo describes one catalog entry for discovery endpoints.
type TaskTypeInfo struct {
	Type           TaskType `json:"type"`
	Description    string   `json:"description"`
	ExamplePhrases []string `json:"example_phrases"`
}

// HistoryEntry is one conversation memory record exposed through
// ExecutionHistory.
type HistoryEntry struct {
	Instruction   string    `json:"instruction"`
	ResultSummary string    `json:"result_summary"`
	Success       bool      `json:"success"`
	Timestamp     time.Time `json:"timestamp"`
}

// ContextEntry is one context stack record exposed through CurrentContext.
type ContextEntry struct {
	Instruction string         `json:"instruction"`
	Context     map[string]any `json:"context,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}
