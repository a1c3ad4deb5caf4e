package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// createdAtFormat is RFC 3339 with a fixed-width nanosecond fraction, so the
// stored strings sort lexicographically in insertion order even within the
// same second.
const createdAtFormat = "2006-01-02T15:04:05.000000000Z07:00"

// InstructionLog is one audit record for an executed instruction.
type InstructionLog struct {
	ID          string `json:"id"`
	TaskID      string `json:"task_id"`
	Instruction string `json:"instruction"`
	TaskType    string `json:"task_type"`
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	CreatedAt   string `json:"created_at"`
}

type InstructionLogRepo struct {
	db *sql.DB
}

func NewInstructionLogRepo(db *sql.DB) *InstructionLogRepo {
	return &InstructionLogRepo{db: db}
}

func (r *InstructionLogRepo) Create(ctx context.Context, entry *InstructionLog) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("instruction log repo unavailable")
	}
	if entry == nil {
		return fmt.Errorf("entry is required")
	}
	if entry.Instruction == "" {
		return fmt.Errorf("instruction is required")
	}
	if entry.TaskType == "" {
		return fmt.Errorf("task type is required")
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt == "" {
		entry.CreatedAt = time.Now().UTC().Format(createdAtFormat)
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO instruction_log (id, task_id, instruction, task_type, success, message, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`, entry.ID, entry.TaskID, entry.Instruction, entry.TaskType, boolToInt(entry.Success), entry.Message, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert instruction log: %w", err)
	}
	return nil
}

func (r *InstructionLogRepo) ListRecent(ctx context.Context, limit int) ([]*InstructionLog, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("instruction log repo unavailable")
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, task_id, instruction, task_type, success, message, created_at
FROM instruction_log
ORDER BY created_at DESC, id DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list instruction log: %w", err)
	}
	defer rows.Close()

	items := make([]*InstructionLog, 0)
	for rows.Next() {
		entry := &InstructionLog{}
		var success int
		if err := rows.Scan(&entry.ID, &entry.TaskID, &entry.Instruction, &entry.TaskType, &success, &entry.Message, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan instruction log: %w", err)
		}
		entry.Success = success != 0
		items = append(items, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate instruction log: %w", err)
	}
	return items, nil
}

// TrimTo deletes everything but the newest limit entries.
func (r *InstructionLogRepo) TrimTo(ctx context.Context, limit int) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("instruction log repo unavailable")
	}
	if limit <= 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
DELETE FROM instruction_log
WHERE id NOT IN (
	SELECT id FROM instruction_log
	ORDER BY created_at DESC, id DESC
	LIMIT ?
)
`, limit)
	if err != nil {
		return fmt.Errorf("trim instruction log: %w", err)
	}
	return nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
