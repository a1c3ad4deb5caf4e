package engine

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// genericRecoverySuggestions is the fixed fallback list every failure
// response carries at minimum.
var genericRecoverySuggestions = []string{
	"check the toolkit configuration and backend connectivity",
	"verify the instruction names an existing workflow or file",
	"retry with a simpler, more specific instruction",
}

type template struct {
	message func(data any, task *Task) string
	follow  func(data any, task *Task) (suggestions, nextSteps []string)
}

// Synthesizer turns handler results into the uniform response contract. A
// task type without a template gets the default completion message.
type Synthesizer struct {
	templates map[TaskType]template
}

func NewSynthesizer() *Synthesizer {
	s := &Synthesizer{}
	s.templates = map[TaskType]template{
		TaskSystemAnalysis:    {message: analysisMessage, follow: analysisFollowups},
		TaskSystemImprovement: {message: improvementMessage, follow: improvementFollowups},
		TaskWorkflowList:      {message: workflowListMessage, follow: workflowListFollowups},
		TaskWorkflowExport:    {message: exportMessage},
		TaskWorkflowImport:    {message: workflowMessage("imported workflow")},
		TaskWorkflowCreate:    {message: workflowMessage("created workflow"), follow: createFollowups},
		TaskWorkflowUpdate:    {message: workflowMessage("updated workflow")},
		TaskWorkflowExecute:   {message: executeMessage, follow: executeFollowups},
		TaskExecutionStatus:   {message: executionStatusMessage},
		TaskGitCommit:         {message: commitMessage},
		TaskGitStatus:         {message: gitStatusMessage, follow: gitStatusFollowups},
		TaskEnvironmentCheck:  {message: envMessage, follow: envFollowups},
		TaskRepositorySearch:  {message: searchMessage},
		TaskGeneralQuery:      {message: helpMessage, follow: helpFollowups},
	}
	return s
}

// Synthesize builds the externally observable response for one handler
// result. Failures always carry at least one actionable suggestion.
func (s *Synthesizer) Synthesize(result HandlerResult, task *Task) Response {
	resp := Response{
		Success:     result.Success,
		Suggestions: []string{},
		NextSteps:   []string{},
		Task: TaskSummary{
			Type:           task.Type,
			RawInstruction: task.RawInstruction,
			Parameters:     task.Parameters,
		},
	}

	if !result.Success {
		resp.Message = failureMessage(result.Err, task)
		resp.Suggestions = failureSuggestions(result.Err, task)
		return resp
	}

	tmpl, ok := s.templates[task.Type]
	if !ok || tmpl.message == nil {
		resp.Message = "operation completed successfully"
		return resp
	}
	resp.Message = tmpl.message(result.Data, task)
	if tmpl.follow != nil {
		suggestions, nextSteps := tmpl.follow(result.Data, task)
		if suggestions != nil {
			resp.Suggestions = suggestions
		}
		if nextSteps != nil {
			resp.NextSteps = nextSteps
		}
	}
	return resp
}

// ConfirmationResponse asks the caller to resubmit with explicit intent
// instead of performing the gated action.
func ConfirmationResponse(task *Task, decision Decision) Response {
	return Response{
		Success: false,
		Message: fmt.Sprintf("%s requires confirmation before executing: %s", task.Type, decision.Reason),
		Suggestions: []string{
			"resubmit the same instruction with \"confirmed\": true in the request context",
			"rerun without \"apply\" to preview the changes first",
		},
		NextSteps: []string{"review the pending changes, then confirm or cancel"},
		Task: TaskSummary{
			Type:           task.Type,
			RawInstruction: task.RawInstruction,
			Parameters:     task.Parameters,
		},
	}
}

func failureMessage(err *TaskError, task *Task) string {
	detail := "unknown error"
	if err != nil {
		detail = err.Error()
	}
	if err != nil && err.Kind == FailureTimeout {
		return fmt.Sprintf("%s failed: timed out waiting for the collaborator (%s)", task.Type, detail)
	}
	return fmt.Sprintf("%s failed: %s", task.Type, detail)
}

func failureSuggestions(err *TaskError, task *Task) []string {
	if err == nil {
		return append([]string(nil), genericRecoverySuggestions...)
	}
	switch err.Kind {
	case FailureMissingParameter:
		return append([]string{
			"restate the instruction including the missing identifier or file path",
		}, genericRecoverySuggestions...)
	case FailureTimeout:
		return append([]string{
			"check that the n8n backend is reachable and responsive",
		}, genericRecoverySuggestions...)
	case FailureNotImplemented:
		return append([]string{
			"this capability has no configured provider; plug one in or use another task",
		}, genericRecoverySuggestions...)
	default:
		return append([]string(nil), genericRecoverySuggestions...)
	}
}

func analysisMessage(data any, task *Task) string {
	report, ok := data.(*AnalysisReport)
	if !ok {
		return "analysis completed"
	}
	return fmt.Sprintf("analyzed %d workflows: %d issues (%d critical, %d high, %d medium, %d low)",
		report.Summary.WorkflowCount, len(report.Issues),
		report.Summary.Critical, report.Summary.High, report.Summary.Medium, report.Summary.Low)
}

func analysisFollowups(data any, task *Task) ([]string, []string) {
	report, ok := data.(*AnalysisReport)
	if !ok {
		return nil, nil
	}
	suggestions := []string{}
	nextSteps := []string{}
	if report.Summary.Critical > 0 {
		suggestions = append(suggestions, fmt.Sprintf("fix the %d critical issues before anything else", report.Summary.Critical))
		nextSteps = append(nextSteps, "run \"fix all critical issues\" to plan the remediation")
	}
	if report.Summary.High > 0 {
		suggestions = append(suggestions, "schedule the high-severity fixes next")
	}
	if len(report.Issues) == 0 {
		suggestions = append(suggestions, "no issues found; consider committing the current state")
		nextSteps = append(nextSteps, "run \"commit changes\" to checkpoint the workflows")
	}
	return suggestions, nextSteps
}

func improvementMessage(data any, task *Task) string {
	report, ok := data.(*ImprovementReport)
	if !ok {
		return "improvement run completed"
	}
	mode := "planned (dry run)"
	if report.Applied {
		mode = "applied"
	}
	return fmt.Sprintf("improvement %s: %d phases, %d fixes", mode, len(report.Phases), report.FixedCount)
}

func improvementFollowups(data any, task *Task) ([]string, []string) {
	report, ok := data.(*ImprovementReport)
	if !ok {
		return nil, nil
	}
	if !report.Applied && report.FixedCount > 0 {
		return []string{"rerun with \"apply\" and confirm to write the fixes"},
			[]string{"review the planned phases before applying"}
	}
	if report.Applied {
		return []string{"commit the applied fixes to git"},
			[]string{"run \"analyze the system\" to verify the fixes"}
	}
	return nil, nil
}

func workflowListMessage(data any, task *Task) string {
	workflows, ok := data.([]Workflow)
	if !ok {
		return "workflow listing completed"
	}
	active := 0
	for _, wf := range workflows {
		if wf.Active {
			active++
		}
	}
	return fmt.Sprintf("found %d workflows (%d active)", len(workflows), active)
}

func workflowListFollowups(data any, task *Task) ([]string, []string) {
	workflows, ok := data.([]Workflow)
	if !ok || len(workflows) > 0 {
		return nil, nil
	}
	return []string{"no workflows on the backend; import or create one"}, nil
}

func exportMessage(data any, task *Task) string {
	switch v := data.(type) {
	case *ExportResult:
		return fmt.Sprintf("exported %d workflows to %s", v.Count, v.Dir)
	case *Workflow:
		return fmt.Sprintf("exported workflow %q (%s)", v.Name, v.ID)
	default:
		return "export completed"
	}
}

func workflowMessage(verb string) func(data any, task *Task) string {
	return func(data any, task *Task) string {
		wf, ok := data.(*Workflow)
		if !ok {
			return verb
		}
		return fmt.Sprintf("%s %q (%s)", verb, wf.Name, wf.ID)
	}
}

func createFollowups(data any, task *Task) ([]string, []string) {
	wf, ok := data.(*Workflow)
	if !ok {
		return nil, nil
	}
	return nil, []string{fmt.Sprintf("run \"execute workflow %s\" to test it", wf.ID)}
}

func executeMessage(data any, task *Task) string {
	ref, ok := data.(*ExecutionRef)
	if !ok {
		return "workflow execution started"
	}
	return fmt.Sprintf("started workflow %s, execution %s", ref.WorkflowID, ref.ExecutionID)
}

func executeFollowups(data any, task *Task) ([]string, []string) {
	ref, ok := data.(*ExecutionRef)
	if !ok {
		return nil, nil
	}
	return nil, []string{fmt.Sprintf("run \"check execution %s\" for the result", ref.ExecutionID)}
}

func executionStatusMessage(data any, task *Task) string {
	exec, ok := data.(*Execution)
	if !ok {
		return "execution status retrieved"
	}
	return fmt.Sprintf("execution %s is %s", exec.ID, exec.Status)
}

func commitMessage(data any, task *Task) string {
	commit, ok := data.(*CommitResult)
	if !ok {
		return "commit completed"
	}
	return fmt.Sprintf("committed %d files as %s", commit.FilesChanged, shortHash(commit.Hash))
}

func gitStatusMessage(data any, task *Task) string {
	status, ok := data.(*RepoStatus)
	if !ok {
		return "git status retrieved"
	}
	if status.Clean {
		return fmt.Sprintf("working tree clean on %s", status.Branch)
	}
	return fmt.Sprintf("%d modified and %d untracked files on %s",
		len(status.Modified), len(status.Untracked), status.Branch)
}

func gitStatusFollowups(data any, task *Task) ([]string, []string) {
	status, ok := data.(*RepoStatus)
	if !ok || status.Clean {
		return nil, nil
	}
	return []string{"commit the pending changes to keep the workflow history current"},
		[]string{"run \"commit changes\""}
}

func envMessage(data any, task *Task) string {
	report, ok := data.(*EnvReport)
	if !ok {
		return "environment check completed"
	}
	failed := 0
	for _, check := range report.Checks {
		if !check.OK {
			failed++
		}
	}
	if report.OK {
		return fmt.Sprintf("environment ok: %d checks passed", len(report.Checks))
	}
	return fmt.Sprintf("environment has problems: %d of %d checks failed", failed, len(report.Checks))
}

func envFollowups(data any, task *Task) ([]string, []string) {
	report, ok := data.(*EnvReport)
	if !ok || report.OK {
		return nil, nil
	}
	suggestions := []string{}
	for _, check := range report.Checks {
		if !check.OK {
			suggestions = append(suggestions, fmt.Sprintf("fix %s: %s", check.Name, check.Detail))
		}
	}
	return suggestions, nil
}

func searchMessage(data any, task *Task) string {
	results, ok := data.([]SearchResult)
	if !ok {
		return "search completed"
	}
	return fmt.Sprintf("found %d matches", len(results))
}

func helpMessage(data any, task *Task) string {
	summary, ok := data.(*HelpSummary)
	if !ok {
		return "no matching task found for the instruction"
	}
	return fmt.Sprintf("could not map the instruction to a known task (confidence %.2f); %d task types are available",
		summary.Confidence, len(summary.TaskTypes))
}

func helpFollowups(data any, task *Task) ([]string, []string) {
	summary, ok := data.(*HelpSummary)
	if !ok {
		return nil, nil
	}
	suggestions := []string{}
	for _, candidate := range summary.Candidates {
		suggestions = append(suggestions, fmt.Sprintf("did you mean %s?", candidate))
	}
	for _, info := range summary.TaskTypes {
		if len(info.ExamplePhrases) == 0 {
			continue
		}
		suggestions = append(suggestions, fmt.Sprintf("%s: e.g. %q", info.Type, info.ExamplePhrases[0]))
	}
	return suggestions, []string{"reformulate the instruction using one of the listed phrasings"}
}

func shortHash(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}

// truncate caps v at max bytes without splitting a multibyte rune.
func truncate(v string, max int) string {
	v = strings.TrimSpace(v)
	if max <= 0 || len(v) <= max {
		return v
	}
	cut := max
	suffix := ""
	if max > 3 {
		cut = max - 3
		suffix = "..."
	}
	for cut > 0 && !utf8.RuneStart(v[cut]) {
		cut--
	}
	return v[:cut] + suffix
}
