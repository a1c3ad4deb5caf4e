package engine

import (
	"context"
	"fmt"
	"testing"
	"time"
)

type fakeBackend struct {
	getWorkflow     func(ctx context.Context, id string) (*Workflow, error)
	listWorkflows   func(ctx context.Context) ([]Workflow, error)
	createWorkflow  func(ctx context.Context, spec WorkflowSpec) (*Workflow, error)
	updateWorkflow  func(ctx context.Context, id string, spec WorkflowSpec) (*Workflow, error)
	exportAll       func(ctx context.Context) (*ExportResult, error)
	importWorkflow  func(ctx context.Context, path string) (*Workflow, error)
	executeWorkflow func(ctx context.Context, id string, input map[string]any) (*ExecutionRef, error)
	getExecution    func(ctx context.Context, id string) (*Execution, error)
}

func (f *fakeBackend) GetWorkflow(ctx context.Context, id string) (*Workflow, error) {
	if f.getWorkflow == nil {
		return nil, fmt.Errorf("unexpected GetWorkflow call")
	}
	return f.getWorkflow(ctx, id)
}

func (f *fakeBackend) ListWorkflows(ctx context.Context) ([]Workflow, error) {
	if f.listWorkflows == nil {
		return nil, fmt.Errorf("unexpected ListWorkflows call")
	}
	return f.listWorkflows(ctx)
}

func (f *fakeBackend) CreateWorkflow(ctx context.Context, spec WorkflowSpec) (*Workflow, error) {
	if f.createWorkflow == nil {
		return nil, fmt.Errorf("unexpected CreateWorkflow call")
	}
	return f.createWorkflow(ctx, spec)
}

func (f *fakeBackend) UpdateWorkflow(ctx context.Context, id string, spec WorkflowSpec) (*Workflow, error) {
	if f.updateWorkflow == nil {
		return nil, fmt.Errorf("unexpected UpdateWorkflow call")
	}
	return f.updateWorkflow(ctx, id, spec)
}

func (f *fakeBackend) ExportAll(ctx context.Context) (*ExportResult, error) {
	if f.exportAll == nil {
		return nil, fmt.Errorf("unexpected ExportAll call")
	}
	return f.exportAll(ctx)
}

func (f *fakeBackend) ImportWorkflow(ctx context.Context, path string) (*Workflow, error) {
	if f.importWorkflow == nil {
		return nil, fmt.Errorf("unexpected ImportWorkflow call")
	}
	return f.importWorkflow(ctx, path)
}

func (f *fakeBackend) ExecuteWorkflow(ctx context.Context, id string, input map[string]any) (*ExecutionRef, error) {
	if f.executeWorkflow == nil {
		return nil, fmt.Errorf("unexpected ExecuteWorkflow call")
	}
	return f.executeWorkflow(ctx, id, input)
}

func (f *fakeBackend) GetExecution(ctx context.Context, id string) (*Execution, error) {
	if f.getExecution == nil {
		return nil, fmt.Errorf("unexpected GetExecution call")
	}
	return f.getExecution(ctx, id)
}

type fakeVCS struct {
	commit func(ctx context.Context, message string, paths ...string) (*CommitResult, error)
	status func(ctx context.Context) (*RepoStatus, error)
}

func (f *fakeVCS) Commit(ctx context.Context, message string, paths ...string) (*CommitResult, error) {
	if f.commit == nil {
		return nil, fmt.Errorf("unexpected Commit call")
	}
	return f.commit(ctx, message, paths...)
}

func (f *fakeVCS) Status(ctx context.Context) (*RepoStatus, error) {
	if f.status == nil {
		return nil, fmt.Errorf("unexpected Status call")
	}
	return f.status(ctx)
}

type fakeAnalyzer struct {
	analyze func(ctx context.Context) (*AnalysisReport, error)
	improve func(ctx context.Context, opts ImproveOptions) (*ImprovementReport, error)
}

func (f *fakeAnalyzer) AnalyzeProject(ctx context.Context) (*AnalysisReport, error) {
	if f.analyze == nil {
		return nil, fmt.Errorf("unexpected AnalyzeProject call")
	}
	return f.analyze(ctx)
}

func (f *fakeAnalyzer) Improve(ctx context.Context, opts ImproveOptions) (*ImprovementReport, error) {
	if f.improve == nil {
		return nil, fmt.Errorf("unexpected Improve call")
	}
	return f.improve(ctx, opts)
}

type fakeEnv struct {
	check func(ctx context.Context) (*EnvReport, error)
}

func (f *fakeEnv) CheckEnvironment(ctx context.Context) (*EnvReport, error) {
	if f.check == nil {
		return nil, fmt.Errorf("unexpected CheckEnvironment call")
	}
	return f.check(ctx)
}

func testDispatcher(t *testing.T, opts Options) *Dispatcher {
	t.Helper()
	catalog := opts.Catalog
	if catalog == nil {
		catalog = testCatalog(t)
	}
	return newDispatcher(opts, catalog)
}

func taskFor(taskType TaskType, instruction string, params Parameters) *Task {
	return &Task{
		ID:                    "task-1",
		RawInstruction:        instruction,
		NormalizedInstruction: instruction,
		Type:                  taskType,
		Parameters:            params,
	}
}

func TestDispatchMissingParameter(t *testing.T) {
	d := testDispatcher(t, Options{Backend: &fakeBackend{}})

	result := d.Dispatch(context.Background(), taskFor(TaskWorkflowExecute, "execute workflow", Parameters{}))
	if result.Success {
		t.Fatalf("Dispatch() succeeded without workflow id")
	}
	if result.Err == nil || result.Err.Kind != FailureMissingParameter {
		t.Fatalf("Dispatch() err = %+v, want missing_parameter", result.Err)
	}
}

func TestDispatchUnknownType(t *testing.T) {
	d := testDispatcher(t, Options{})
	delete(d.handlers, TaskGitStatus)

	result := d.Dispatch(context.Background(), taskFor(TaskGitStatus, "git status", Parameters{}))
	if result.Success || result.Err == nil || result.Err.Kind != FailureHandler {
		t.Fatalf("Dispatch() = %+v, want handler failure", result)
	}
}

func TestDispatchNotImplemented(t *testing.T) {
	d := testDispatcher(t, Options{Search: NotImplementedSearch{}})

	result := d.Dispatch(context.Background(), taskFor(TaskRepositorySearch, "search the repository", Parameters{}))
	if result.Success {
		t.Fatalf("Dispatch() succeeded for unimplemented capability")
	}
	if result.Err == nil || result.Err.Kind != FailureNotImplemented {
		t.Fatalf("Dispatch() err = %+v, want not_implemented", result.Err)
	}
}

func TestDispatchTimeout(t *testing.T) {
	backend := &fakeBackend{
		listWorkflows: func(ctx context.Context) ([]Workflow, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	d := testDispatcher(t, Options{Backend: backend, HandlerTimeout: 10 * time.Millisecond})

	result := d.Dispatch(context.Background(), taskFor(TaskWorkflowList, "list workflows", Parameters{}))
	if result.Success {
		t.Fatalf("Dispatch() succeeded past the deadline")
	}
	if result.Err == nil || result.Err.Kind != FailureTimeout {
		t.Fatalf("Dispatch() err = %+v, want timeout", result.Err)
	}
}

func TestDispatchRecoversFromPanic(t *testing.T) {
	backend := &fakeBackend{
		listWorkflows: func(ctx context.Context) ([]Workflow, error) {
			panic("boom")
		},
	}
	d := testDispatcher(t, Options{Backend: backend})

	result := d.Dispatch(context.Background(), taskFor(TaskWorkflowList, "list workflows", Parameters{}))
	if result.Success || result.Err == nil || result.Err.Kind != FailureHandler {
		t.Fatalf("Dispatch() = %+v, want handler failure from panic", result)
	}
}

func TestDispatchWorkflowListFilters(t *testing.T) {
	backend := &fakeBackend{
		listWorkflows: func(ctx context.Context) ([]Workflow, error) {
			return []Workflow{
				{ID: "1", Name: "a", Active: true},
				{ID: "2", Name: "b", Active: false},
				{ID: "3", Name: "c", Active: true},
			}, nil
		},
	}
	d := testDispatcher(t, Options{Backend: backend})

	result := d.Dispatch(context.Background(), taskFor(TaskWorkflowList, "list active workflows", Parameters{ActiveOnly: true}))
	if !result.Success {
		t.Fatalf("Dispatch() error = %v", result.Err)
	}
	workflows := result.Data.([]Workflow)
	if len(workflows) != 2 {
		t.Fatalf("filtered workflows = %d, want 2", len(workflows))
	}

	result = d.Dispatch(context.Background(), taskFor(TaskWorkflowList, "list inactive workflows", Parameters{InactiveOnly: true}))
	workflows = result.Data.([]Workflow)
	if len(workflows) != 1 || workflows[0].ID != "2" {
		t.Fatalf("inactive filter = %+v", workflows)
	}
}

func TestDispatchExportBranches(t *testing.T) {
	var gotCalls []string
	backend := &fakeBackend{
		getWorkflow: func(ctx context.Context, id string) (*Workflow, error) {
			gotCalls = append(gotCalls, "get:"+id)
			return &Workflow{ID: id, Name: "one"}, nil
		},
		exportAll: func(ctx context.Context) (*ExportResult, error) {
			gotCalls = append(gotCalls, "export-all")
			return &ExportResult{Count: 3, Dir: "/tmp/workflows"}, nil
		},
	}
	d := testDispatcher(t, Options{Backend: backend})

	result := d.Dispatch(context.Background(), taskFor(TaskWorkflowExport, "export workflow 7", Parameters{WorkflowID: "7"}))
	if !result.Success {
		t.Fatalf("Dispatch() error = %v", result.Err)
	}
	result = d.Dispatch(context.Background(), taskFor(TaskWorkflowExport, "export all workflows", Parameters{All: true}))
	if !result.Success {
		t.Fatalf("Dispatch() error = %v", result.Err)
	}
	if len(gotCalls) != 2 || gotCalls[0] != "get:7" || gotCalls[1] != "export-all" {
		t.Fatalf("collaborator calls = %v", gotCalls)
	}
}

func TestDispatchGitCommitMessage(t *testing.T) {
	var gotMessage string
	vcs := &fakeVCS{
		commit: func(ctx context.Context, message string, paths ...string) (*CommitResult, error) {
			gotMessage = message
			return &CommitResult{Hash: "abc1234def", Message: message, FilesChanged: 2}, nil
		},
	}
	d := testDispatcher(t, Options{VCS: vcs})

	result := d.Dispatch(context.Background(), taskFor(TaskGitCommit, "commit changes", Parameters{}))
	if !result.Success {
		t.Fatalf("Dispatch() error = %v", result.Err)
	}
	if gotMessage != "chore: commit changes" {
		t.Fatalf("commit message = %q", gotMessage)
	}
}

func TestDispatchGeneralQueryAnswersLocally(t *testing.T) {
	// No collaborators configured: general_query must still succeed.
	d := testDispatcher(t, Options{})

	result := d.Dispatch(context.Background(), taskFor(TaskGeneralQuery, "zzz qqq banana", Parameters{}))
	if !result.Success {
		t.Fatalf("Dispatch() error = %v", result.Err)
	}
	summary := result.Data.(*HelpSummary)
	if len(summary.TaskTypes) == 0 {
		t.Fatalf("HelpSummary has no task types")
	}
}
