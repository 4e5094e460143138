package server

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sanonone/kektorgraph/pkg/kgerr"
)

// TaskStatus defines the possible states of a task.
type TaskStatus string

const (
	TaskStatusStarted   TaskStatus = "started"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// Task represents a long-running analytics operation.
type Task struct {
	ID              string
	Kind            string
	Status          TaskStatus
	ProgressMessage string
	Error           string
	ErrorCode       string

	result   any
	finished time.Time
	mu       sync.RWMutex
}

// TaskManager tracks all running asynchronous tasks.
type TaskManager struct {
	tasks map[string]*Task
	mu    sync.RWMutex
}

// NewTaskManager creates a new task manager.
func NewTaskManager() *TaskManager {
	return &TaskManager{
		tasks: make(map[string]*Task),
	}
}

// NewTask creates a new task, registers it, and returns it.
func (tm *TaskManager) NewTask(kind string) *Task {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	task := &Task{
		ID:     uuid.New().String(),
		Kind:   kind,
		Status: TaskStatusStarted,
	}
	tm.tasks[task.ID] = task
	return task
}

// GetTask safely retrieves a task by its ID.
func (tm *TaskManager) GetTask(id string) (*Task, bool) {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	task, found := tm.tasks[id]
	return task, found
}

// Prune forgets tasks that finished before cutoff and returns how many
// were dropped. Running tasks are kept.
func (tm *TaskManager) Prune(cutoff time.Time) int {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	n := 0
	for id, task := range tm.tasks {
		task.mu.RLock()
		done := !task.finished.IsZero() && task.finished.Before(cutoff)
		task.mu.RUnlock()
		if done {
			delete(tm.tasks, id)
			n++
		}
	}
	return n
}

// --- Methods for updating a Task ---

// SetStatus updates the status of the task.
func (t *Task) SetStatus(status TaskStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Status = status
}

// SetResult marks the task as completed and stores its result.
func (t *Task) SetResult(result any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Status = TaskStatusCompleted
	t.result = result
	t.finished = time.Now()
}

// SetError marks the task as failed and records the error message and its
// wire code.
func (t *Task) SetError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Status = TaskStatusFailed
	t.Error = err.Error()
	t.ErrorCode = kgerr.Code(err)
	t.finished = time.Now()
}

// SetProgress updates the progress message for the task.
func (t *Task) SetProgress(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ProgressMessage = message
}

// Snapshot returns a copy of the public fields, safe to encode while the
// task keeps running.
func (t *Task) Snapshot() TaskView {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return TaskView{
		ID:              t.ID,
		Kind:            t.Kind,
		Status:          t.Status,
		ProgressMessage: t.ProgressMessage,
		Error:           t.Error,
		ErrorCode:       t.ErrorCode,
	}
}

// Result returns the stored result and the status of the task.
func (t *Task) Result() (any, TaskStatus) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.result, t.Status
}

// TaskView is the JSON form of a Task.
type TaskView struct {
	ID              string     `json:"id"`
	Kind            string     `json:"kind"`
	Status          TaskStatus `json:"status"`
	ProgressMessage string     `json:"progress_message,omitempty"`
	Error           string     `json:"error,omitempty"`
	ErrorCode       string     `json:"error_code,omitempty"`
}
