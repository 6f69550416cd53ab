// Package ingest runs batch wardrobe ingestion: item creation on the
// progress path, embedding generation off it, and an in-memory task
// registry for progress reporting and cancellation.
package ingest

import (
	"context"
	"sync"
	"time"
)

// TaskStatus is the lifecycle state of one ingestion task.
type TaskStatus string

const (
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusCanceled  TaskStatus = "canceled"
	TaskStatusFailed    TaskStatus = "failed"
)

// finishedTaskTTL is how long a finished task stays queryable before
// the registry drops it.
const finishedTaskTTL = 30 * time.Minute

// Task is the progress snapshot of one batch ingestion. Processed counts
// created items only; embedding runs off the progress path and is
// tracked separately by Embedded.
type Task struct {
	ID        string
	Status    TaskStatus
	Error     string
	Total     int
	Processed int
	Embedded  int
	OwnerID   int32
	CreatedAt time.Time
	UpdatedAt time.Time
}

type taskEntry struct {
	task   Task
	cancel context.CancelFunc
}

// Registry tracks ingestion tasks in memory. Finished tasks are kept for
// a grace period and swept on access.
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]*taskEntry
}

func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]*taskEntry)}
}

func (r *Registry) add(id string, ownerID int32, total int, cancel context.CancelFunc) {
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked(now)
	r.tasks[id] = &taskEntry{
		task: Task{
			ID:        id,
			Status:    TaskStatusRunning,
			Total:     total,
			OwnerID:   ownerID,
			CreatedAt: now,
			UpdatedAt: now,
		},
		cancel: cancel,
	}
}

// Get returns a snapshot of the task, or false when unknown or swept.
func (r *Registry) Get(id string) (Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked(time.Now())
	entry, ok := r.tasks[id]
	if !ok {
		return Task{}, false
	}
	return entry.task, true
}

// Cancel requests cancellation of a running task. Canceling a finished
// or unknown task is a no-op and returns false.
func (r *Registry) Cancel(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.tasks[id]
	if !ok || entry.task.Status != TaskStatusRunning {
		return false
	}
	entry.cancel()
	return true
}

// Running returns the number of running tasks.
func (r *Registry) Running() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, entry := range r.tasks {
		if entry.task.Status == TaskStatusRunning {
			count++
		}
	}
	return count
}

func (r *Registry) update(id string, mutate func(*Task)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.tasks[id]
	if !ok {
		return
	}
	entry.task.UpdatedAt = time.Now()
	mutate(&entry.task)
}

func (r *Registry) sweepLocked(now time.Time) {
	for id, entry := range r.tasks {
		if entry.task.Status == TaskStatusRunning {
			continue
		}
		if now.Sub(entry.task.UpdatedAt) >= finishedTaskTTL {
			delete(r.tasks, id)
		}
	}
}
