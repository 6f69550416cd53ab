package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shenlehan/fashion-recommendation/store"
)

const (
	// DefaultRetentionDays is the sweep cutoff in days when the config
	// leaves it unset. It matches the per-access retention check.
	DefaultRetentionDays = 3
	// DefaultCleanupInterval is the period between sweeps.
	DefaultCleanupInterval = 1 * time.Hour
)

// CleanupConfig configures the retention sweep.
type CleanupConfig struct {
	RetentionDays   int
	CleanupInterval time.Duration
}

// CleanupJob periodically removes sessions whose last update fell behind
// the retention cutoff. The sweep applies the same cutoff the session
// service applies on access, so a session an access would reject is also
// one the sweep removes.
type CleanupJob struct {
	store    *store.Store
	sessions *Service
	config   CleanupConfig

	mu      sync.Mutex
	stop    chan struct{}
	running bool
}

// SweptObserver is notified with the number of sessions each sweep
// removed. Used to feed metrics.
type SweptObserver func(count int)

// NewCleanupJob creates the sweep. sessions is optional; when set, the
// sweep also evicts the per-session mutexes of removed sessions.
func NewCleanupJob(st *store.Store, sessions *Service, config CleanupConfig) *CleanupJob {
	if config.RetentionDays < 0 {
		config.RetentionDays = 0
	}
	if config.RetentionDays == 0 {
		config.RetentionDays = DefaultRetentionDays
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultCleanupInterval
	}
	return &CleanupJob{store: st, sessions: sessions, config: config}
}

// RunOnce sweeps expired sessions and returns the number removed.
func (j *CleanupJob) RunOnce(ctx context.Context) (int, error) {
	cutoff := time.Now().AddDate(0, 0, -j.config.RetentionDays).Unix()
	deleted, err := j.store.DeleteConversationSessions(ctx, &store.DeleteConversationSession{
		UpdatedBefore: &cutoff,
	})
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		slog.Info("swept expired sessions", "count", deleted, "retention_days", j.config.RetentionDays)
		if j.sessions != nil {
			if err := j.sessions.pruneLocks(ctx); err != nil {
				slog.Error("session lock prune failed", "error", err)
			}
		}
	}
	return deleted, nil
}

// Start launches the periodic sweep. Calling Start on a running job is
// a no-op.
func (j *CleanupJob) Start(ctx context.Context, observers ...SweptObserver) {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		return
	}
	j.running = true
	j.stop = make(chan struct{})
	stop := j.stop
	j.mu.Unlock()

	go func() {
		ticker := time.NewTicker(j.config.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				deleted, err := j.RunOnce(ctx)
				if err != nil {
					slog.Error("session sweep failed", "error", err)
					continue
				}
				for _, observe := range observers {
					observe(deleted)
				}
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the periodic sweep. Safe to call on a stopped job.
func (j *CleanupJob) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.running {
		return
	}
	close(j.stop)
	j.running = false
}

// IsRunning reports whether the periodic sweep is active.
func (j *CleanupJob) IsRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}
