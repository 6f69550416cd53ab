package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shenlehan/fashion-recommendation/internal/profile"
	"github.com/shenlehan/fashion-recommendation/store"
)

func TestCleanupJobDefaults(t *testing.T) {
	driver := newMemoryDriver()
	st := store.New(driver, &profile.Profile{Mode: "dev", Driver: "sqlite"})

	job := NewCleanupJob(st, nil, CleanupConfig{})
	assert.Equal(t, DefaultRetentionDays, job.config.RetentionDays)
	assert.Equal(t, DefaultCleanupInterval, job.config.CleanupInterval)

	custom := NewCleanupJob(st, nil, CleanupConfig{RetentionDays: 7, CleanupInterval: time.Minute})
	assert.Equal(t, 7, custom.config.RetentionDays)
	assert.Equal(t, time.Minute, custom.config.CleanupInterval)
}

func TestCleanupJobRunOnce(t *testing.T) {
	ctx := context.Background()
	svc, driver := newTestService(t)
	st := store.New(driver, &profile.Profile{Mode: "dev", Driver: "sqlite"})

	old, err := svc.Create(ctx, 1, store.Preferences{})
	require.NoError(t, err)
	_, err = svc.SetCurrentOutfit(ctx, 1, old.UID, []int64{1})
	require.NoError(t, err)
	driver.backdate(old.UID, 4*24*time.Hour)

	recent, err := svc.Create(ctx, 1, store.Preferences{})
	require.NoError(t, err)
	_, err = svc.SetCurrentOutfit(ctx, 1, recent.UID, []int64{2})
	require.NoError(t, err)

	job := NewCleanupJob(st, svc, CleanupConfig{})
	deleted, err := job.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, err = svc.Get(ctx, 1, old.UID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Get(ctx, 1, recent.UID)
	assert.NoError(t, err)

	assert.False(t, svc.hasLock(old.UID), "sweep must evict the removed session's lock")
	assert.True(t, svc.hasLock(recent.UID), "live session locks survive the sweep")
}

func TestCleanupJobStartStop(t *testing.T) {
	driver := newMemoryDriver()
	st := store.New(driver, &profile.Profile{Mode: "dev", Driver: "sqlite"})
	job := NewCleanupJob(st, nil, CleanupConfig{CleanupInterval: time.Hour})

	assert.False(t, job.IsRunning())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	job.Start(ctx)
	assert.True(t, job.IsRunning())

	// Starting twice is a no-op.
	job.Start(ctx)
	assert.True(t, job.IsRunning())

	job.Stop()
	assert.False(t, job.IsRunning())

	// Stopping twice is safe.
	job.Stop()
	assert.False(t, job.IsRunning())
}
