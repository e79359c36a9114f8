package models

import (
	"context"
	"time"
)

// Task run states as reported through TaskStatus.
const (
	TaskStateNotRun  = "NOT_RUN"
	TaskStatePending = "PENDING"
	TaskStateRunning = "RUNNING"
	TaskStateOK      = "OK"
	TaskStateFailed  = "FAILED"
)

// TaskHandler is the work a recurring task performs. The scheduler owns
// the call: a returned error (or panic) marks the run FAILED and the
// task keeps its cadence.
type TaskHandler func(ctx context.Context) error

// TaskConfig describes a recurring task at registration time.
// Everything except IntervalMinutes is fixed for the task's lifetime.
type TaskConfig struct {
	ID              string      `json:"id"`
	Label           string      `json:"label"`
	IntervalMinutes int         `json:"interval_minutes"`
	Priority        int         `json:"priority"` // lower runs sooner
	Handler         TaskHandler `json:"-"`
	RunOnStartup    bool        `json:"run_on_startup"`
	// MinRescheduleMinutes guards UpdateInterval: a pending run closer
	// than this threshold completes on the old cadence.
	MinRescheduleMinutes int `json:"min_reschedule_minutes"`
}

// TaskStatus is the live view of one registered task.
type TaskStatus struct {
	ID              string     `json:"id"`
	Label           string     `json:"label"`
	State           string     `json:"state"` // NOT_RUN | PENDING | RUNNING | OK | FAILED
	Detail          string     `json:"detail,omitempty"`
	LastRun         *time.Time `json:"last_run,omitempty"`
	NextRun         *time.Time `json:"next_run,omitempty"`
	IntervalMinutes int        `json:"interval_minutes"`
	RunCount        int        `json:"run_count"`
}

// QueuedOperation is one pending execution in the serial queue.
// Ephemeral: created when a timer fires, discarded once executed.
type QueuedOperation struct {
	TaskID   string
	Priority int
	Run      func()
}
