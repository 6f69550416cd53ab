package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryAddAndGet(t *testing.T) {
	registry := NewRegistry()
	_, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry.add("task-1", 7, 5, cancel)

	task, ok := registry.Get("task-1")
	require.True(t, ok)
	assert.Equal(t, TaskStatusRunning, task.Status)
	assert.Equal(t, 5, task.Total)
	assert.EqualValues(t, 7, task.OwnerID)

	_, ok = registry.Get("unknown")
	assert.False(t, ok)
}

func TestRegistryUpdate(t *testing.T) {
	registry := NewRegistry()
	_, cancel := context.WithCancel(context.Background())
	defer cancel()
	registry.add("task-1", 1, 3, cancel)

	registry.update("task-1", func(t *Task) { t.Processed = 2 })

	task, ok := registry.Get("task-1")
	require.True(t, ok)
	assert.Equal(t, 2, task.Processed)
}

func TestRegistryCancel(t *testing.T) {
	registry := NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	registry.add("task-1", 1, 1, cancel)

	assert.True(t, registry.Cancel("task-1"))
	assert.Error(t, ctx.Err(), "cancel must fire the task context")

	registry.update("task-1", func(t *Task) { t.Status = TaskStatusCanceled })
	assert.False(t, registry.Cancel("task-1"), "finished task cannot be canceled")
	assert.False(t, registry.Cancel("unknown"))
}

func TestRegistryRunning(t *testing.T) {
	registry := NewRegistry()
	_, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry.add("a", 1, 1, cancel)
	registry.add("b", 1, 1, cancel)
	assert.Equal(t, 2, registry.Running())

	registry.update("a", func(t *Task) { t.Status = TaskStatusCompleted })
	assert.Equal(t, 1, registry.Running())
}

func TestRegistrySweepsFinishedTasks(t *testing.T) {
	registry := NewRegistry()
	_, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry.add("old", 1, 1, cancel)
	registry.update("old", func(t *Task) {
		t.Status = TaskStatusCompleted
		t.UpdatedAt = time.Now().Add(-finishedTaskTTL - time.Minute)
	})
	registry.add("running", 1, 1, cancel)

	_, ok := registry.Get("old")
	assert.False(t, ok, "finished task past TTL is swept on access")
	_, ok = registry.Get("running")
	assert.True(t, ok, "running tasks are never swept")
}
