package db

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
)

func testRepo(t *testing.T) *InstructionLogRepo {
	t.Helper()
	ctx := context.Background()
	conn, err := Open(ctx, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return NewInstructionLogRepo(conn.SQL())
}

func TestInstructionLogCreateAndList(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		entry := &InstructionLog{
			TaskID:      fmt.Sprintf("task-%d", i),
			Instruction: fmt.Sprintf("instruction %d", i),
			TaskType:    "workflow_list",
			Success:     i%2 == 0,
			CreatedAt:   fmt.Sprintf("2026-08-25T10:00:0%dZ", i),
		}
		if err := repo.Create(ctx, entry); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if entry.ID == "" {
			t.Fatalf("Create() did not assign an id")
		}
	}

	items, err := repo.ListRecent(ctx, 2)
	if err != nil {
		t.Fatalf("ListRecent() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("ListRecent(2) len = %d", len(items))
	}
	if items[0].Instruction != "instruction 2" || items[1].Instruction != "instruction 1" {
		t.Fatalf("ListRecent() order = %q, %q", items[0].Instruction, items[1].Instruction)
	}
	if items[0].TaskType != "workflow_list" || !items[0].Success {
		t.Fatalf("ListRecent() entry = %+v", items[0])
	}
}

func TestInstructionLogCreateValidation(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	if err := repo.Create(ctx, nil); err == nil {
		t.Fatalf("Create(nil) expected error")
	}
	if err := repo.Create(ctx, &InstructionLog{TaskType: "x"}); err == nil {
		t.Fatalf("Create() without instruction expected error")
	}
	if err := repo.Create(ctx, &InstructionLog{Instruction: "x"}); err == nil {
		t.Fatalf("Create() without task type expected error")
	}
}

func TestInstructionLogOrderStableWithinSecond(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	// No explicit CreatedAt: entries land within the same wall-clock second
	// and must still list in reverse insertion order.
	for i := 0; i < 5; i++ {
		entry := &InstructionLog{
			TaskID:      fmt.Sprintf("task-%d", i),
			Instruction: fmt.Sprintf("instruction %d", i),
			TaskType:    "workflow_list",
		}
		if err := repo.Create(ctx, entry); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	items, err := repo.ListRecent(ctx, 5)
	if err != nil {
		t.Fatalf("ListRecent() error = %v", err)
	}
	for i, item := range items {
		want := fmt.Sprintf("instruction %d", 4-i)
		if item.Instruction != want {
			t.Fatalf("ListRecent()[%d] = %q, want %q", i, item.Instruction, want)
		}
	}

	if err := repo.TrimTo(ctx, 2); err != nil {
		t.Fatalf("TrimTo() error = %v", err)
	}
	items, err = repo.ListRecent(ctx, 5)
	if err != nil {
		t.Fatalf("ListRecent() error = %v", err)
	}
	if len(items) != 2 || items[0].Instruction != "instruction 4" || items[1].Instruction != "instruction 3" {
		t.Fatalf("after TrimTo(2) = %+v", items)
	}
}

func TestInstructionLogTrimTo(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		entry := &InstructionLog{
			TaskID:      fmt.Sprintf("task-%d", i),
			Instruction: fmt.Sprintf("instruction %d", i),
			TaskType:    "git_status",
			CreatedAt:   fmt.Sprintf("2026-08-25T10:00:0%dZ", i),
		}
		if err := repo.Create(ctx, entry); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	if err := repo.TrimTo(ctx, 2); err != nil {
		t.Fatalf("TrimTo() error = %v", err)
	}
	items, err := repo.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("ListRecent() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("after TrimTo(2) len = %d", len(items))
	}
	if items[0].Instruction != "instruction 4" {
		t.Fatalf("newest after trim = %q", items[0].Instruction)
	}
}
