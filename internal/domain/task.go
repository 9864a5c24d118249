package domain

import (
	"strings"
	"time"
)

// TaskStatus is the lifecycle state of an asynchronous pipeline run.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// Terminal reports whether the status can no longer change.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// RunParams are the inputs of one pipeline run.
type RunParams struct {
	State         string  `json:"estado"`
	City          string  `json:"cidade"`
	MinScore      float64 `json:"min_nota"`
	MaxProperties int     `json:"max_imoveis,omitempty"`
}

// Normalize uppercases the region fields as the auction site expects them.
func (p RunParams) Normalize() RunParams {
	p.State = strings.ToUpper(strings.TrimSpace(p.State))
	p.City = strings.ToUpper(strings.TrimSpace(p.City))
	return p
}

// Key returns the listing key for the run region.
func (p RunParams) Key() ListingKey {
	return ListingKey{State: p.State, City: p.City}
}

// Task is a snapshot of a registered pipeline run.
type Task struct {
	ID        string     `json:"task_id"`
	Status    TaskStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Params    RunParams  `json:"params"`
	Result    *Report    `json:"-"`
	Error     string     `json:"error,omitempty"`
}

// HasResult reports whether a completed report is attached.
func (t Task) HasResult() bool {
	return t.Result != nil
}
