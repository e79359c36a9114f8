// Package scheduler runs N independently-configured recurring tasks
// through one debounced, priority-ordered serial queue. The vendor API
// rate-limits aggressively, so operations run one at a time with an
// inter-operation delay between them.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"heating_bridge/internal/clock"
	"heating_bridge/internal/logger"
	"heating_bridge/internal/models"
)

// Default queue tuning. A burst of due tasks settles for the debounce
// window before the queue drains; each drained operation is followed
// by the inter-operation delay.
const (
	DefaultDebounceWindow = 2 * time.Second
	DefaultInterOpDelay   = 2 * time.Second
)

// Tuning overrides the queue timing knobs; zero values select the
// defaults.
type Tuning struct {
	DebounceWindow time.Duration
	InterOpDelay   time.Duration
}

type task struct {
	cfg    models.TaskConfig
	status models.TaskStatus
	// cancelTimer stops the currently armed reschedule timer.
	cancelTimer chan struct{}
	// pendingInterval takes effect after the imminent run completes.
	pendingInterval int
}

// Scheduler owns the registered tasks, their timers, and the serial
// execution queue. All mutable state is guarded by mu; executions
// happen one at a time on the dispatcher goroutine.
type Scheduler struct {
	clk    clock.Clock
	log    *logger.Logger
	tuning Tuning

	mu      sync.Mutex
	tasks   map[string]*task
	queue   []models.QueuedOperation
	started bool
	stopped bool

	stopCh  chan struct{}
	arrival chan struct{}
}

func New(clk clock.Clock, log *logger.Logger, tuning Tuning) *Scheduler {
	if tuning.DebounceWindow <= 0 {
		tuning.DebounceWindow = DefaultDebounceWindow
	}
	if tuning.InterOpDelay <= 0 {
		tuning.InterOpDelay = DefaultInterOpDelay
	}
	return &Scheduler{
		clk:     clk,
		log:     log,
		tuning:  tuning,
		tasks:   make(map[string]*task),
		stopCh:  make(chan struct{}),
		arrival: make(chan struct{}, 1),
	}
}

// RegisterTask adds a recurring task. Registering an ID twice is a
// contract error and fails fast.
func (s *Scheduler) RegisterTask(cfg models.TaskConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[cfg.ID]; exists {
		return fmt.Errorf("task %q already registered", cfg.ID)
	}
	if cfg.IntervalMinutes <= 0 {
		return fmt.Errorf("task %q: interval must be positive", cfg.ID)
	}
	if cfg.Handler == nil {
		return fmt.Errorf("task %q: handler is required", cfg.ID)
	}
	s.tasks[cfg.ID] = &task{
		cfg: cfg,
		status: models.TaskStatus{
			ID:              cfg.ID,
			Label:           cfg.Label,
			State:           models.TaskStateNotRun,
			IntervalMinutes: cfg.IntervalMinutes,
		},
	}
	return nil
}

// StartAllTasks enqueues every run-on-startup task in priority order,
// arms the first aligned run for every task, and starts the queue
// dispatcher. Calling it twice is a no-op.
func (s *Scheduler) StartAllTasks() {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.started = true

	ordered := make([]*task, 0, len(s.tasks))
	for _, t := range s.tasks {
		ordered = append(ordered, t)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].cfg.Priority != ordered[j].cfg.Priority {
			return ordered[i].cfg.Priority < ordered[j].cfg.Priority
		}
		return ordered[i].cfg.ID < ordered[j].cfg.ID
	})

	for _, t := range ordered {
		if t.cfg.RunOnStartup {
			s.pushLocked(t)
		}
		s.armTimerLocked(t)
	}
	s.mu.Unlock()

	s.notifyArrival()
	go s.dispatch()
}

// StopAllTasks cancels every armed timer and the debounce, and
// discards queued operations without executing them. An already
// dequeued operation runs to completion.
func (s *Scheduler) StopAllTasks() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	close(s.stopCh)
	for _, t := range s.tasks {
		if t.cancelTimer != nil {
			close(t.cancelTimer)
			t.cancelTimer = nil
		}
		t.status.NextRun = nil
	}
	s.queue = nil
}

// UpdateInterval changes a task's recurrence. A next run farther away
// than the task's min-reschedule threshold is cancelled and re-armed
// with the new interval immediately; an imminent run completes on the
// old cadence and the new interval applies from the run after it.
func (s *Scheduler) UpdateInterval(taskID string, intervalMinutes int) error {
	if intervalMinutes <= 0 {
		return fmt.Errorf("task %q: interval must be positive", taskID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return fmt.Errorf("task %q not registered", taskID)
	}
	if t.cfg.IntervalMinutes == intervalMinutes {
		return nil
	}

	threshold := time.Duration(t.cfg.MinRescheduleMinutes) * time.Minute
	now := s.clk.Now()
	if t.cancelTimer != nil && t.status.NextRun != nil && t.status.NextRun.Sub(now) > threshold {
		close(t.cancelTimer)
		t.cancelTimer = nil
		t.cfg.IntervalMinutes = intervalMinutes
		t.status.IntervalMinutes = intervalMinutes
		t.pendingInterval = 0
		s.armTimerLocked(t)
		if s.log != nil {
			s.log.Infow("task rescheduled", "task", taskID, "interval_minutes", intervalMinutes)
		}
		return nil
	}
	// The next run is imminent (or in flight); let it keep its cadence.
	t.pendingInterval = intervalMinutes
	return nil
}

// GetTaskStatus returns a copy of one task's live status.
func (s *Scheduler) GetTaskStatus(taskID string) (models.TaskStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok {
		return models.TaskStatus{}, false
	}
	return copyStatus(t.status), true
}

// GetAllTaskStatuses returns copies of every task status, ordered by
// priority then ID.
func (s *Scheduler) GetAllTaskStatuses() []models.TaskStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	ordered := make([]*task, 0, len(s.tasks))
	for _, t := range s.tasks {
		ordered = append(ordered, t)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].cfg.Priority != ordered[j].cfg.Priority {
			return ordered[i].cfg.Priority < ordered[j].cfg.Priority
		}
		return ordered[i].cfg.ID < ordered[j].cfg.ID
	})
	out := make([]models.TaskStatus, 0, len(ordered))
	for _, t := range ordered {
		out = append(out, copyStatus(t.status))
	}
	return out
}

// AlignedDelay computes the wait until the next interval boundary in
// the current clock hour, snapped to zero seconds. Interval 5 lands
// runs on :00, :05, :10, ...; a boundary past the hour targets :00 of
// the next hour. Alignment prevents drift and keeps sibling tasks'
// runs synchronized.
func AlignedDelay(now time.Time, intervalMinutes int) time.Duration {
	if intervalMinutes <= 0 {
		intervalMinutes = 1
	}
	boundary := (now.Minute()/intervalMinutes + 1) * intervalMinutes
	if boundary > 60 {
		boundary = 60
	}
	hourStart := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, now.Location())
	return hourStart.Add(time.Duration(boundary) * time.Minute).Sub(now)
}

// armTimerLocked schedules the task's next aligned run. Called with
// s.mu held.
func (s *Scheduler) armTimerLocked(t *task) {
	if s.stopped {
		return
	}
	now := s.clk.Now()
	delay := AlignedDelay(now, t.cfg.IntervalMinutes)
	next := now.Add(delay)
	t.status.NextRun = &next

	cancel := make(chan struct{})
	t.cancelTimer = cancel
	wait := s.clk.After(delay)
	go func() {
		select {
		case <-cancel:
		case <-wait:
			s.enqueue(t)
		}
	}()
}

// enqueue marks the task due and hands it to the dispatcher.
func (s *Scheduler) enqueue(t *task) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	t.cancelTimer = nil
	s.pushLocked(t)
	s.mu.Unlock()
	s.notifyArrival()
}

// pushLocked appends a queued operation unless the task is already
// waiting in the queue. Called with s.mu held.
func (s *Scheduler) pushLocked(t *task) {
	for _, op := range s.queue {
		if op.TaskID == t.cfg.ID {
			return
		}
	}
	t.status.State = models.TaskStatePending
	s.queue = append(s.queue, models.QueuedOperation{
		TaskID:   t.cfg.ID,
		Priority: t.cfg.Priority,
		Run:      func() { s.runTask(t) },
	})
}

func (s *Scheduler) notifyArrival() {
	select {
	case s.arrival <- struct{}{}:
	default:
	}
}

// dispatch is the single goroutine that owns queue draining. Every
// observed arrival re-arms the debounce window; once it elapses with
// no further arrivals the queue drains serially.
func (s *Scheduler) dispatch() {
	var debounce <-chan time.Time
	for {
		select {
		case <-s.stopCh:
			return
		case <-s.arrival:
			debounce = s.clk.After(s.tuning.DebounceWindow)
		case <-debounce:
			debounce = nil
			if !s.drain() {
				return
			}
		}
	}
}

// drain pops and executes queued operations until the queue is empty,
// re-sorting by priority before every pop so a high-priority arrival
// mid-drain jumps ahead. Returns false when the scheduler stopped.
func (s *Scheduler) drain() bool {
	for {
		op, remaining, ok := s.pop()
		if !ok {
			return true
		}
		op.Run()
		if remaining == 0 && s.queueLen() == 0 {
			return true
		}
		select {
		case <-s.stopCh:
			return false
		case <-s.clk.After(s.tuning.InterOpDelay):
		}
	}
}

// pop re-sorts the queue ascending by priority and removes the head.
func (s *Scheduler) pop() (models.QueuedOperation, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || len(s.queue) == 0 {
		return models.QueuedOperation{}, 0, false
	}
	sort.SliceStable(s.queue, func(i, j int) bool {
		return s.queue[i].Priority < s.queue[j].Priority
	})
	op := s.queue[0]
	s.queue = s.queue[1:]
	return op, len(s.queue), true
}

func (s *Scheduler) queueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// runTask executes one task to completion. Handler errors and panics
// are recorded into the task status and never escape: a failed run
// keeps its recurring cadence.
func (s *Scheduler) runTask(t *task) {
	s.mu.Lock()
	t.status.State = models.TaskStateRunning
	t.status.RunCount++
	s.mu.Unlock()

	err := s.invokeHandler(t.cfg.Handler)

	now := s.clk.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	last := now
	t.status.LastRun = &last
	if err != nil {
		t.status.State = models.TaskStateFailed
		t.status.Detail = err.Error()
		if s.log != nil {
			s.log.Errorw("task failed", "task", t.cfg.ID, "err", err)
		}
	} else {
		t.status.State = models.TaskStateOK
		t.status.Detail = ""
	}
	if t.pendingInterval > 0 {
		t.cfg.IntervalMinutes = t.pendingInterval
		t.status.IntervalMinutes = t.pendingInterval
		t.pendingInterval = 0
	}
	s.armTimerLocked(t)
}

func (s *Scheduler) invokeHandler(h models.TaskHandler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(context.Background())
}

func copyStatus(st models.TaskStatus) models.TaskStatus {
	out := st
	if st.LastRun != nil {
		v := *st.LastRun
		out.LastRun = &v
	}
	if st.NextRun != nil {
		v := *st.NextRun
		out.NextRun = &v
	}
	return out
}
