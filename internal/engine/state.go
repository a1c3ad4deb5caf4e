package engine

import (
	"sync"
	"time"
)

const (
	contextWindow    = 5
	contextRetained  = 50
	memoryCapacity   = 50
	summaryMaxLength = 220
)

// ConversationState holds the two bounded buffers the engine keeps between
// instructions: a short context stack and a longer conversation memory. Both
// evict strictly FIFO. A single mutex gives the single-writer discipline the
// buffers need when the engine serves concurrent callers.
type ConversationState struct {
	mu     sync.Mutex
	stack  []ContextEntry
	memory []HistoryEntry
}

func NewConversationState() *ConversationState {
	return &ConversationState{
		stack:  make([]ContextEntry, 0, contextWindow),
		memory: make([]HistoryEntry, 0, memoryCapacity),
	}
}

// PushContext records the instruction and its caller-supplied context. Only
// the last contextWindow entries are exposed; older entries are retained up
// to contextRetained before the oldest is dropped.
func (s *ConversationState) PushContext(instruction string, callerContext map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stack = append(s.stack, ContextEntry{
		Instruction: instruction,
		Context:     callerContext,
		Timestamp:   time.Now().UTC(),
	})
	if len(s.stack) > contextRetained {
		s.stack = s.stack[len(s.stack)-contextRetained:]
	}
}

// Window returns the visible context window, oldest first.
func (s *ConversationState) Window() []ContextEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := len(s.stack) - contextWindow
	if start < 0 {
		start = 0
	}
	out := make([]ContextEntry, len(s.stack)-start)
	copy(out, s.stack[start:])
	return out
}

// Record appends one memory entry, evicting exactly the oldest entry when
// the buffer is full. The capacity invariant holds on every insert.
func (s *ConversationState) Record(instruction, resultSummary string, success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memory = append(s.memory, HistoryEntry{
		Instruction:   instruction,
		ResultSummary: truncate(resultSummary, summaryMaxLength),
		Success:       success,
		Timestamp:     time.Now().UTC(),
	})
	if len(s.memory) > memoryCapacity {
		s.memory = s.memory[len(s.memory)-memoryCapacity:]
	}
}

// History returns up to limit of the most recent memory entries, oldest
// first. limit <= 0 returns everything retained.
func (s *ConversationState) History(limit int) []HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := 0
	if limit > 0 && limit < len(s.memory) {
		start = len(s.memory) - limit
	}
	out := make([]HistoryEntry, len(s.memory)-start)
	copy(out, s.memory[start:])
	return out
}

// MemorySize reports the current conversation memory length.
func (s *ConversationState) MemorySize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.memory)
}
