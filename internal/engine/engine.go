// Package engine implements the instruction interpretation and task dispatch
// core: a deterministic, rule-based classifier over a pattern catalog,
// keyword parameter extraction, a confirmation gate for destructive actions,
// a handler-per-task-type dispatcher, and a uniform response contract.
package engine

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/user/n8nops/internal/db"
)

// Options wires the engine's collaborators. All dependencies are injected
// explicitly; there are no package-level singletons.
type Options struct {
	Backend  WorkflowBackend
	VCS      VersionControl
	Analyzer Analyzer
	Env      EnvironmentChecker
	Search   SearchCapability

	// Catalog overrides the embedded default pattern catalog.
	Catalog *Catalog

	// LogRepo, when set, receives a best-effort audit record per
	// instruction.
	LogRepo *db.InstructionLogRepo

	// HandlerTimeout bounds each collaborator call. Zero means the default.
	HandlerTimeout time.Duration
}

// Engine is the single entry point for instruction execution. Classification,
// extraction, and the confirmation policy are pure; only the dispatcher's
// handler call performs I/O, and it is awaited before synthesis proceeds.
type Engine struct {
	catalog     *Catalog
	classifier  *Classifier
	dispatcher  *Dispatcher
	synthesizer *Synthesizer
	state       *ConversationState
	logRepo     *db.InstructionLogRepo
}

func New(opts Options) (*Engine, error) {
	catalog := opts.Catalog
	if catalog == nil {
		loaded, err := DefaultCatalog()
		if err != nil {
			return nil, err
		}
		catalog = loaded
	}
	return &Engine{
		catalog:     catalog,
		classifier:  NewClassifier(catalog),
		dispatcher:  newDispatcher(opts, catalog),
		synthesizer: NewSynthesizer(),
		state:       NewConversationState(),
		logRepo:     opts.LogRepo,
	}, nil
}

// ExecuteInstruction classifies, parameterizes, gates, dispatches, and
// synthesizes one instruction. Every code path terminates in a well-formed
// Response; nothing above the dispatcher returns an error to the caller.
func (e *Engine) ExecuteInstruction(ctx context.Context, text string, callerContext map[string]any) Response {
	raw := text
	normalized := strings.ToLower(strings.TrimSpace(text))

	classification := e.classifier.Classify(raw)
	params := Extract(raw, classification.Type)
	decision := DecideConfirmation(classification.Type, params)
	if decision.Required && contextConfirmed(callerContext) {
		decision = Decision{}
	}

	task := &Task{
		ID:                    uuid.NewString(),
		RawInstruction:        raw,
		NormalizedInstruction: normalized,
		Context:               callerContext,
		Type:                  classification.Type,
		Parameters:            params,
		RequiresConfirmation:  decision.Required,
	}

	e.state.PushContext(raw, callerContext)

	var resp Response
	if decision.Required {
		resp = ConfirmationResponse(task, decision)
	} else {
		result := e.dispatcher.Dispatch(ctx, task)
		if task.Type == TaskGeneralQuery && result.Success {
			if summary, ok := result.Data.(*HelpSummary); ok {
				summary.Confidence = classification.Confidence
				summary.Candidates = ClosestCandidates(classification.CandidateScores, 3)
			}
		}
		resp = e.synthesizer.Synthesize(result, task)
	}

	e.state.Record(raw, resp.Message, resp.Success)
	e.audit(ctx, task, resp)
	return resp
}

// contextConfirmed reports whether the caller resubmitted with explicit
// intent. The confirmation policy itself stays pure; only the resubmission
// marker in the caller context can clear a Required decision.
func contextConfirmed(callerContext map[string]any) bool {
	confirmed, _ := callerContext["confirmed"].(bool)
	return confirmed
}

func (e *Engine) audit(ctx context.Context, task *Task, resp Response) {
	if e.logRepo == nil {
		return
	}
	entry := &db.InstructionLog{
		TaskID:      task.ID,
		Instruction: task.RawInstruction,
		TaskType:    string(task.Type),
		Success:     resp.Success,
		Message:     resp.Message,
	}
	if err := e.logRepo.Create(ctx, entry); err != nil {
		slog.Warn("instruction audit write failed", "task_id", task.ID, "error", err)
	}
}

// ExecutionHistory returns up to limit recent conversation memory entries,
// oldest first.
func (e *Engine) ExecutionHistory(limit int) []HistoryEntry {
	return e.state.History(limit)
}

// CurrentContext returns the visible window of the context stack.
func (e *Engine) CurrentContext() []ContextEntry {
	return e.state.Window()
}

// TaskTypes lists the task types the engine can classify into, derived from
// the pattern catalog.
func (e *Engine) TaskTypes() []TaskTypeInfo {
	return e.catalog.TaskTypes()
}

// MemorySize reports the conversation memory length. Exposed for health
// reporting.
func (e *Engine) MemorySize() int {
	return e.state.MemorySize()
}
