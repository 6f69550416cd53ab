// Package session manages conversation sessions: bounded turn history,
// lifecycle states, ownership checks, and retention enforcement.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/shenlehan/fashion-recommendation/store"
)

var (
	// ErrNotFound means no session exists for the given UID.
	ErrNotFound = errors.New("session not found")
	// ErrPermissionDenied means the session belongs to a different owner.
	ErrPermissionDenied = errors.New("session permission denied")
	// ErrExpired means the session passed the retention cutoff and was
	// removed on access.
	ErrExpired = errors.New("session expired")
	// ErrInvalidTurnIndex means a turn operation referenced an index
	// outside the current history.
	ErrInvalidTurnIndex = errors.New("invalid turn index")
)

// DefaultRetention is the hard retention cutoff measured from the last
// update. It applies identically to per-access checks and the periodic
// sweep.
const DefaultRetention = 3 * 24 * time.Hour

// conflictRetries bounds optimistic update retries against concurrent
// writers outside this process. Within the process the per-session
// mutex already serializes mutations.
const conflictRetries = 3

// Service serializes all mutations of one session behind a per-session
// mutex and enforces ownership and retention on every access.
type Service struct {
	store     *store.Store
	retention time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewService(st *store.Store, retention time.Duration) *Service {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Service{
		store:     st,
		retention: retention,
		locks:     make(map[string]*sync.Mutex),
	}
}

func (s *Service) Retention() time.Duration {
	return s.retention
}

func (s *Service) sessionLock(uid string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[uid]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[uid] = lock
	}
	return lock
}

func (s *Service) releaseLock(uid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, uid)
}

// pruneLocks drops mutex entries whose sessions no longer exist, so the
// lock map does not grow as the sweep removes sessions behind it. Held
// entries are left for the next pass.
func (s *Service) pruneLocks(ctx context.Context) error {
	sessions, err := s.store.ListConversationSessions(ctx, &store.FindConversationSession{})
	if err != nil {
		return err
	}
	alive := make(map[string]struct{}, len(sessions))
	for _, sess := range sessions {
		alive[sess.UID] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for uid, lock := range s.locks {
		if _, ok := alive[uid]; ok {
			continue
		}
		if lock.TryLock() {
			lock.Unlock()
			delete(s.locks, uid)
		}
	}
	return nil
}

// Create opens a new empty session for the owner.
func (s *Service) Create(ctx context.Context, ownerID int32, prefs store.Preferences) (*store.ConversationSession, error) {
	now := time.Now().Unix()
	return s.store.CreateConversationSession(ctx, &store.ConversationSession{
		UID:         uuid.New().String(),
		OwnerID:     ownerID,
		Preferences: prefs,
		CreatedTs:   now,
		UpdatedTs:   now,
	})
}

// Get loads a session, enforcing ownership and retention. An expired
// session is deleted during the call and reported as ErrExpired.
func (s *Service) Get(ctx context.Context, ownerID int32, uid string) (*store.ConversationSession, error) {
	sess, err := s.store.GetConversationSession(ctx, uid)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrNotFound
	}
	if sess.OwnerID != ownerID {
		return nil, ErrPermissionDenied
	}
	if StateOf(sess, time.Now(), s.retention) == StateExpired {
		if _, err := s.store.DeleteConversationSessions(ctx, &store.DeleteConversationSession{UID: &sess.UID}); err != nil {
			return nil, err
		}
		s.releaseLock(sess.UID)
		return nil, ErrExpired
	}
	return sess, nil
}

// State derives the lifecycle state of a session without removing it.
func (s *Service) State(ctx context.Context, ownerID int32, uid string) (State, error) {
	sess, err := s.store.GetConversationSession(ctx, uid)
	if err != nil {
		return "", err
	}
	if sess == nil {
		return "", ErrNotFound
	}
	if sess.OwnerID != ownerID {
		return "", ErrPermissionDenied
	}
	return StateOf(sess, time.Now(), s.retention), nil
}

// GetHistory returns the session's turns oldest first.
func (s *Service) GetHistory(ctx context.Context, ownerID int32, uid string) ([]store.Turn, error) {
	sess, err := s.Get(ctx, ownerID, uid)
	if err != nil {
		return nil, err
	}
	return sess.Turns, nil
}

// AddTurn appends a turn, evicting the oldest turns beyond the history
// cap in the same write.
func (s *Service) AddTurn(ctx context.Context, ownerID int32, uid string, turn store.Turn) (*store.ConversationSession, error) {
	if turn.CreatedTs == 0 {
		turn.CreatedTs = time.Now().Unix()
	}
	return s.mutate(ctx, ownerID, uid, func(sess *store.ConversationSession, update *store.UpdateConversationSession) error {
		turns := append(append([]store.Turn{}, sess.Turns...), turn)
		if len(turns) > store.MaxSessionTurns {
			turns = turns[len(turns)-store.MaxSessionTurns:]
		}
		update.Turns = &turns
		return nil
	})
}

// DeleteTurn removes the turn at index, counted from the oldest turn.
func (s *Service) DeleteTurn(ctx context.Context, ownerID int32, uid string, index int) (*store.ConversationSession, error) {
	return s.mutate(ctx, ownerID, uid, func(sess *store.ConversationSession, update *store.UpdateConversationSession) error {
		if index < 0 || index >= len(sess.Turns) {
			return errors.Wrapf(ErrInvalidTurnIndex, "index %d, history length %d", index, len(sess.Turns))
		}
		turns := append([]store.Turn{}, sess.Turns[:index]...)
		turns = append(turns, sess.Turns[index+1:]...)
		update.Turns = &turns
		return nil
	})
}

// SetCurrentOutfit replaces the session's working outfit selection.
func (s *Service) SetCurrentOutfit(ctx context.Context, ownerID int32, uid string, itemIDs []int64) (*store.ConversationSession, error) {
	return s.mutate(ctx, ownerID, uid, func(_ *store.ConversationSession, update *store.UpdateConversationSession) error {
		outfit := append([]int64{}, itemIDs...)
		update.CurrentOutfit = &outfit
		return nil
	})
}

// mutate runs one serialized read-modify-write cycle on a session. The
// per-session mutex covers the whole cycle so concurrent mutations of
// the same session within the process never interleave.
func (s *Service) mutate(ctx context.Context, ownerID int32, uid string, apply func(*store.ConversationSession, *store.UpdateConversationSession) error) (*store.ConversationSession, error) {
	lock := s.sessionLock(uid)
	lock.Lock()
	defer lock.Unlock()

	var lastErr error
	for attempt := 0; attempt < conflictRetries; attempt++ {
		sess, err := s.Get(ctx, ownerID, uid)
		if err != nil {
			return nil, err
		}
		update := &store.UpdateConversationSession{
			UID:       uid,
			UpdatedTs: time.Now().Unix(),
			Version:   sess.Version,
		}
		if err := apply(sess, update); err != nil {
			return nil, err
		}
		updated, err := s.store.UpdateConversationSession(ctx, update)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, store.ErrSessionConflict) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

// List returns a page of the owner's live sessions, newest first. A
// non-positive limit means no bound. Expired sessions are excluded but
// not removed; the sweep handles removal.
func (s *Service) List(ctx context.Context, ownerID int32, limit, offset int) ([]*store.ConversationSession, error) {
	cutoff := time.Now().Add(-s.retention).Unix()
	find := &store.FindConversationSession{
		OwnerID:      &ownerID,
		UpdatedAfter: &cutoff,
	}
	if limit > 0 {
		find.Limit = &limit
	}
	if offset > 0 {
		find.Offset = &offset
	}
	return s.store.ListConversationSessions(ctx, find)
}

// Delete removes one session after an ownership check.
func (s *Service) Delete(ctx context.Context, ownerID int32, uid string) error {
	sess, err := s.store.GetConversationSession(ctx, uid)
	if err != nil {
		return err
	}
	if sess == nil {
		return ErrNotFound
	}
	if sess.OwnerID != ownerID {
		return ErrPermissionDenied
	}
	if _, err := s.store.DeleteConversationSessions(ctx, &store.DeleteConversationSession{UID: &uid}); err != nil {
		return err
	}
	s.releaseLock(uid)
	return nil
}

// DeleteAll removes every session of the owner and returns the count.
func (s *Service) DeleteAll(ctx context.Context, ownerID int32) (int, error) {
	sessions, err := s.store.ListConversationSessions(ctx, &store.FindConversationSession{OwnerID: &ownerID})
	if err != nil {
		return 0, err
	}
	deleted, err := s.store.DeleteConversationSessions(ctx, &store.DeleteConversationSession{OwnerID: &ownerID})
	if err != nil {
		return 0, err
	}
	for _, sess := range sessions {
		s.releaseLock(sess.UID)
	}
	return deleted, nil
}
