package engine

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const defaultHandlerTimeout = 30 * time.Second

// HelpSummary is the local result for general_query: no collaborator is
// involved, the engine answers from its own catalog.
type HelpSummary struct {
	Confidence float64        `json:"confidence"`
	Candidates []TaskType     `json:"candidates,omitempty"`
	TaskTypes  []TaskTypeInfo `json:"task_types"`
}

type handlerFunc func(ctx context.Context, task *Task) (any, error)

// Dispatcher routes a classified, parameterized task to the single handler
// registered for its type. Each handler validates its required parameters,
// performs exactly one collaborator call, and returns the collaborator's
// result unmodified.
type Dispatcher struct {
	backend  WorkflowBackend
	vcs      VersionControl
	analyzer Analyzer
	env      EnvironmentChecker
	search   SearchCapability
	catalog  *Catalog
	timeout  time.Duration

	handlers map[TaskType]handlerFunc
}

func newDispatcher(opts Options, catalog *Catalog) *Dispatcher {
	timeout := opts.HandlerTimeout
	if timeout <= 0 {
		timeout = defaultHandlerTimeout
	}
	search := opts.Search
	if search == nil {
		search = NotImplementedSearch{}
	}
	d := &Dispatcher{
		backend:  opts.Backend,
		vcs:      opts.VCS,
		analyzer: opts.Analyzer,
		env:      opts.Env,
		search:   search,
		catalog:  catalog,
		timeout:  timeout,
	}
	d.handlers = map[TaskType]handlerFunc{
		TaskSystemAnalysis:    d.handleSystemAnalysis,
		TaskSystemImprovement: d.handleSystemImprovement,
		TaskWorkflowCreate:    d.handleWorkflowCreate,
		TaskWorkflowUpdate:    d.handleWorkflowUpdate,
		TaskWorkflowList:      d.handleWorkflowList,
		TaskWorkflowExport:    d.handleWorkflowExport,
		TaskWorkflowImport:    d.handleWorkflowImport,
		TaskWorkflowExecute:   d.handleWorkflowExecute,
		TaskExecutionStatus:   d.handleExecutionStatus,
		TaskGitCommit:         d.handleGitCommit,
		TaskGitStatus:         d.handleGitStatus,
		TaskEnvironmentCheck:  d.handleEnvironmentCheck,
		TaskRepositorySearch:  d.handleRepositorySearch,
		TaskGeneralQuery:      d.handleGeneralQuery,
	}
	return d
}

// Dispatch runs the handler for task.Type under the configured deadline. The
// handler map is total over the task-type enumeration; a type without a
// handler is a configuration error, reported as a failure result rather than
// a silent no-op. Collaborator errors are wrapped verbatim, never swallowed.
func (d *Dispatcher) Dispatch(ctx context.Context, task *Task) (result HandlerResult) {
	defer func() {
		if r := recover(); r != nil {
			result = failure(&TaskError{
				Kind: FailureHandler,
				Err:  fmt.Errorf("handler for %s panicked: %v", task.Type, r),
			})
		}
	}()

	handler, ok := d.handlers[task.Type]
	if !ok {
		return failure(&TaskError{
			Kind: FailureHandler,
			Err:  fmt.Errorf("no handler registered for task type %q", task.Type),
		})
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	data, err := handler(ctx, task)
	if err != nil {
		return failure(classifyError(err))
	}
	return HandlerResult{Success: true, Data: data}
}

func failure(err *TaskError) HandlerResult {
	return HandlerResult{Success: false, Err: err}
}

func classifyError(err error) *TaskError {
	var taskErr *TaskError
	if errors.As(err, &taskErr) {
		return taskErr
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &TaskError{Kind: FailureTimeout, Err: err}
	case errors.Is(err, ErrNotImplemented):
		return &TaskError{Kind: FailureNotImplemented, Err: err}
	default:
		return &TaskError{Kind: FailureHandler, Err: err}
	}
}

func (d *Dispatcher) handleSystemAnalysis(ctx context.Context, task *Task) (any, error) {
	if d.analyzer == nil {
		return nil, fmt.Errorf("analyzer collaborator is not configured")
	}
	return d.analyzer.AnalyzeProject(ctx)
}

func (d *Dispatcher) handleSystemImprovement(ctx context.Context, task *Task) (any, error) {
	if d.analyzer == nil {
		return nil, fmt.Errorf("analyzer collaborator is not configured")
	}
	return d.analyzer.Improve(ctx, ImproveOptions{
		Priority: task.Parameters.Priority,
		DryRun:   task.Parameters.DryRun || !task.Parameters.Apply,
		Apply:    task.Parameters.Apply,
	})
}

func (d *Dispatcher) handleWorkflowCreate(ctx context.Context, task *Task) (any, error) {
	if d.backend == nil {
		return nil, fmt.Errorf("workflow backend is not configured")
	}
	name := task.Parameters.WorkflowID
	if name == "" {
		return nil, missingParameter("workflow_id")
	}
	return d.backend.CreateWorkflow(ctx, WorkflowSpec{Name: name})
}

func (d *Dispatcher) handleWorkflowUpdate(ctx context.Context, task *Task) (any, error) {
	if d.backend == nil {
		return nil, fmt.Errorf("workflow backend is not configured")
	}
	if task.Parameters.WorkflowID == "" {
		return nil, missingParameter("workflow_id")
	}
	spec := WorkflowSpec{Name: task.Parameters.WorkflowID}
	return d.backend.UpdateWorkflow(ctx, task.Parameters.WorkflowID, spec)
}

func (d *Dispatcher) handleWorkflowList(ctx context.Context, task *Task) (any, error) {
	if d.backend == nil {
		return nil, fmt.Errorf("workflow backend is not configured")
	}
	workflows, err := d.backend.ListWorkflows(ctx)
	if err != nil {
		return nil, err
	}
	if task.Parameters.ActiveOnly || task.Parameters.InactiveOnly {
		filtered := workflows[:0:0]
		for _, wf := range workflows {
			if wf.Active == task.Parameters.ActiveOnly {
				filtered = append(filtered, wf)
			}
		}
		workflows = filtered
	}
	return workflows, nil
}

func (d *Dispatcher) handleWorkflowExport(ctx context.Context, task *Task) (any, error) {
	if d.backend == nil {
		return nil, fmt.Errorf("workflow backend is not configured")
	}
	if id := task.Parameters.WorkflowID; id != "" {
		return d.backend.GetWorkflow(ctx, id)
	}
	return d.backend.ExportAll(ctx)
}

func (d *Dispatcher) handleWorkflowImport(ctx context.Context, task *Task) (any, error) {
	if d.backend == nil {
		return nil, fmt.Errorf("workflow backend is not configured")
	}
	if task.Parameters.FilePath == "" {
		return nil, missingParameter("file_path")
	}
	return d.backend.ImportWorkflow(ctx, task.Parameters.FilePath)
}

func (d *Dispatcher) handleWorkflowExecute(ctx context.Context, task *Task) (any, error) {
	if d.backend == nil {
		return nil, fmt.Errorf("workflow backend is not configured")
	}
	if task.Parameters.WorkflowID == "" {
		return nil, missingParameter("workflow_id")
	}
	return d.backend.ExecuteWorkflow(ctx, task.Parameters.WorkflowID, task.Context)
}

func (d *Dispatcher) handleExecutionStatus(ctx context.Context, task *Task) (any, error) {
	if d.backend == nil {
		return nil, fmt.Errorf("workflow backend is not configured")
	}
	id := task.Parameters.ExecutionID
	if id == "" {
		id = task.Parameters.WorkflowID
	}
	if id == "" {
		return nil, missingParameter("execution_id")
	}
	return d.backend.GetExecution(ctx, id)
}

func (d *Dispatcher) handleGitCommit(ctx context.Context, task *Task) (any, error) {
	if d.vcs == nil {
		return nil, fmt.Errorf("version control collaborator is not configured")
	}
	message := fmt.Sprintf("chore: %s", task.RawInstruction)
	return d.vcs.Commit(ctx, message)
}

func (d *Dispatcher) handleGitStatus(ctx context.Context, task *Task) (any, error) {
	if d.vcs == nil {
		return nil, fmt.Errorf("version control collaborator is not configured")
	}
	return d.vcs.Status(ctx)
}

func (d *Dispatcher) handleEnvironmentCheck(ctx context.Context, task *Task) (any, error) {
	if d.env == nil {
		return nil, fmt.Errorf("environment checker is not configured")
	}
	return d.env.CheckEnvironment(ctx)
}

func (d *Dispatcher) handleRepositorySearch(ctx context.Context, task *Task) (any, error) {
	query := task.NormalizedInstruction
	results, err := d.search.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (d *Dispatcher) handleGeneralQuery(ctx context.Context, task *Task) (any, error) {
	return &HelpSummary{
		TaskTypes: d.catalog.TaskTypes(),
	}, nil
}
