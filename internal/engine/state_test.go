package engine

import (
	"fmt"
	"testing"
)

func TestConversationMemoryEvictsFIFO(t *testing.T) {
	s := NewConversationState()
	for i := 0; i < memoryCapacity+1; i++ {
		s.Record(fmt.Sprintf("instruction %d", i), "ok", true)
	}

	if got := s.MemorySize(); got != memoryCapacity {
		t.Fatalf("MemorySize() = %d, want %d", got, memoryCapacity)
	}
	history := s.History(0)
	if history[0].Instruction != "instruction 1" {
		t.Fatalf("oldest retained = %q, want %q", history[0].Instruction, "instruction 1")
	}
	if last := history[len(history)-1].Instruction; last != fmt.Sprintf("instruction %d", memoryCapacity) {
		t.Fatalf("newest retained = %q", last)
	}
}

func TestHistoryLimit(t *testing.T) {
	s := NewConversationState()
	for i := 0; i < 10; i++ {
		s.Record(fmt.Sprintf("instruction %d", i), "ok", i%2 == 0)
	}

	got := s.History(3)
	if len(got) != 3 {
		t.Fatalf("History(3) len = %d", len(got))
	}
	if got[0].Instruction != "instruction 7" || got[2].Instruction != "instruction 9" {
		t.Fatalf("History(3) = [%q .. %q], want oldest-first tail", got[0].Instruction, got[2].Instruction)
	}
}

func TestContextWindow(t *testing.T) {
	s := NewConversationState()
	for i := 0; i < contextWindow+3; i++ {
		s.PushContext(fmt.Sprintf("instruction %d", i), nil)
	}

	window := s.Window()
	if len(window) != contextWindow {
		t.Fatalf("Window() len = %d, want %d", len(window), contextWindow)
	}
	if window[0].Instruction != "instruction 3" {
		t.Fatalf("Window() oldest = %q", window[0].Instruction)
	}
	if window[contextWindow-1].Instruction != fmt.Sprintf("instruction %d", contextWindow+2) {
		t.Fatalf("Window() newest = %q", window[contextWindow-1].Instruction)
	}
}

func TestRecordTruncatesSummary(t *testing.T) {
	s := NewConversationState()
	long := ""
	for i := 0; i < summaryMaxLength; i++ {
		long += "ab"
	}
	s.Record("instruction", long, true)

	got := s.History(1)[0].ResultSummary
	if len(got) > summaryMaxLength {
		t.Fatalf("len(ResultSummary) = %d, want <= %d", len(got), summaryMaxLength)
	}
}
