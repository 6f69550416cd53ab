package session

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shenlehan/fashion-recommendation/internal/profile"
	"github.com/shenlehan/fashion-recommendation/store"
)

// memoryDriver is an in-memory store.Driver for session tests. The
// session methods behave like the SQL drivers, including the optimistic
// version check; the rest are stubs.
type memoryDriver struct {
	mu       sync.Mutex
	sessions map[string]*store.ConversationSession
	nextID   int64

	// conflictsLeft makes the next N updates fail with a version
	// conflict to exercise the retry path.
	conflictsLeft int
}

func newMemoryDriver() *memoryDriver {
	return &memoryDriver{sessions: make(map[string]*store.ConversationSession)}
}

func (d *memoryDriver) GetDB() *sql.DB                  { return nil }
func (d *memoryDriver) Close() error                    { return nil }
func (d *memoryDriver) Migrate(_ context.Context) error { return nil }

func (d *memoryDriver) CreateWardrobeItem(_ context.Context, create *store.WardrobeItem) (*store.WardrobeItem, error) {
	return create, nil
}

func (d *memoryDriver) ListWardrobeItems(_ context.Context, _ *store.FindWardrobeItem) ([]*store.WardrobeItem, error) {
	return nil, nil
}

func (d *memoryDriver) DeleteWardrobeItem(_ context.Context, _ *store.DeleteWardrobeItem) error {
	return nil
}

func (d *memoryDriver) UpsertEmbeddingRecord(_ context.Context, upsert *store.EmbeddingRecord) (*store.EmbeddingRecord, error) {
	return upsert, nil
}

func (d *memoryDriver) DeleteEmbeddingRecord(_ context.Context, _ int64) error { return nil }

func (d *memoryDriver) VectorSearch(_ context.Context, _ *store.VectorSearchOptions) ([]*store.EmbeddingMatch, error) {
	return nil, nil
}

func (d *memoryDriver) CreateConversationSession(_ context.Context, create *store.ConversationSession) (*store.ConversationSession, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	created := *create
	created.ID = d.nextID
	created.Version = 1
	d.sessions[created.UID] = &created
	return &created, nil
}

func (d *memoryDriver) ListConversationSessions(_ context.Context, find *store.FindConversationSession) ([]*store.ConversationSession, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*store.ConversationSession
	for _, sess := range d.sessions {
		if find.UID != nil && sess.UID != *find.UID {
			continue
		}
		if find.OwnerID != nil && sess.OwnerID != *find.OwnerID {
			continue
		}
		if find.UpdatedAfter != nil && sess.UpdatedTs <= *find.UpdatedAfter {
			continue
		}
		copied := *sess
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedTs != out[j].UpdatedTs {
			return out[i].UpdatedTs > out[j].UpdatedTs
		}
		return out[i].ID > out[j].ID
	})
	if find.Offset != nil {
		if *find.Offset >= len(out) {
			out = nil
		} else {
			out = out[*find.Offset:]
		}
	}
	if find.Limit != nil && *find.Limit < len(out) {
		out = out[:*find.Limit]
	}
	return out, nil
}

func (d *memoryDriver) UpdateConversationSession(_ context.Context, update *store.UpdateConversationSession) (*store.ConversationSession, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conflictsLeft > 0 {
		d.conflictsLeft--
		return nil, store.ErrSessionConflict
	}
	sess, ok := d.sessions[update.UID]
	if !ok || sess.Version != update.Version {
		return nil, store.ErrSessionConflict
	}
	if update.Turns != nil {
		sess.Turns = *update.Turns
	}
	if update.CurrentOutfit != nil {
		sess.CurrentOutfit = *update.CurrentOutfit
	}
	sess.UpdatedTs = update.UpdatedTs
	sess.Version++
	copied := *sess
	return &copied, nil
}

func (d *memoryDriver) DeleteConversationSessions(_ context.Context, del *store.DeleteConversationSession) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	deleted := 0
	for uid, sess := range d.sessions {
		if del.UID != nil && sess.UID != *del.UID {
			continue
		}
		if del.OwnerID != nil && sess.OwnerID != *del.OwnerID {
			continue
		}
		if del.UpdatedBefore != nil && sess.UpdatedTs >= *del.UpdatedBefore {
			continue
		}
		delete(d.sessions, uid)
		deleted++
	}
	return deleted, nil
}

func (d *memoryDriver) backdate(uid string, age time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if sess, ok := d.sessions[uid]; ok {
		sess.UpdatedTs = time.Now().Add(-age).Unix()
	}
}

func newTestService(t *testing.T) (*Service, *memoryDriver) {
	t.Helper()
	driver := newMemoryDriver()
	st := store.New(driver, &profile.Profile{Mode: "dev", Driver: "sqlite"})
	return NewService(st, DefaultRetention), driver
}

func TestServiceCreateAndGet(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	sess, err := svc.Create(ctx, 1, store.Preferences{Style: "casual"})
	require.NoError(t, err)
	assert.NotEmpty(t, sess.UID)
	assert.Equal(t, "casual", sess.Preferences.Style)

	loaded, err := svc.Get(ctx, 1, sess.UID)
	require.NoError(t, err)
	assert.Equal(t, sess.UID, loaded.UID)
}

func TestServiceGetErrors(t *testing.T) {
	ctx := context.Background()
	svc, driver := newTestService(t)

	t.Run("unknown UID", func(t *testing.T) {
		_, err := svc.Get(ctx, 1, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("foreign owner", func(t *testing.T) {
		sess, err := svc.Create(ctx, 1, store.Preferences{})
		require.NoError(t, err)

		_, err = svc.Get(ctx, 2, sess.UID)
		assert.ErrorIs(t, err, ErrPermissionDenied)
	})

	t.Run("expired session is removed on access", func(t *testing.T) {
		sess, err := svc.Create(ctx, 1, store.Preferences{})
		require.NoError(t, err)
		driver.backdate(sess.UID, 4*24*time.Hour)

		_, err = svc.Get(ctx, 1, sess.UID)
		assert.ErrorIs(t, err, ErrExpired)

		// Gone for good, not just flagged.
		_, err = svc.Get(ctx, 1, sess.UID)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestServiceAddTurnCapsHistory(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	sess, err := svc.Create(ctx, 1, store.Preferences{})
	require.NoError(t, err)

	for i := 0; i < store.MaxSessionTurns+5; i++ {
		_, err := svc.AddTurn(ctx, 1, sess.UID, store.Turn{
			Role:    store.TurnRoleUser,
			Content: fmt.Sprintf("turn %d", i),
		})
		require.NoError(t, err)
	}

	history, err := svc.GetHistory(ctx, 1, sess.UID)
	require.NoError(t, err)
	require.Len(t, history, store.MaxSessionTurns)
	assert.Equal(t, "turn 5", history[0].Content, "oldest turns evicted first")
	assert.Equal(t, fmt.Sprintf("turn %d", store.MaxSessionTurns+4), history[len(history)-1].Content)
}

func TestServiceDeleteTurn(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	sess, err := svc.Create(ctx, 1, store.Preferences{})
	require.NoError(t, err)
	for _, content := range []string{"a", "b", "c"} {
		_, err := svc.AddTurn(ctx, 1, sess.UID, store.Turn{Role: store.TurnRoleUser, Content: content})
		require.NoError(t, err)
	}

	t.Run("removes the addressed turn", func(t *testing.T) {
		updated, err := svc.DeleteTurn(ctx, 1, sess.UID, 1)
		require.NoError(t, err)
		require.Len(t, updated.Turns, 2)
		assert.Equal(t, "a", updated.Turns[0].Content)
		assert.Equal(t, "c", updated.Turns[1].Content)
	})

	t.Run("out of range index", func(t *testing.T) {
		_, err := svc.DeleteTurn(ctx, 1, sess.UID, 5)
		assert.ErrorIs(t, err, ErrInvalidTurnIndex)

		_, err = svc.DeleteTurn(ctx, 1, sess.UID, -1)
		assert.ErrorIs(t, err, ErrInvalidTurnIndex)
	})
}

func TestServiceSetCurrentOutfit(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	sess, err := svc.Create(ctx, 1, store.Preferences{})
	require.NoError(t, err)

	updated, err := svc.SetCurrentOutfit(ctx, 1, sess.UID, []int64{3, 5, 8})
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 5, 8}, updated.CurrentOutfit)
}

func TestServiceRetriesVersionConflict(t *testing.T) {
	ctx := context.Background()
	svc, driver := newTestService(t)

	sess, err := svc.Create(ctx, 1, store.Preferences{})
	require.NoError(t, err)

	driver.conflictsLeft = 2
	updated, err := svc.AddTurn(ctx, 1, sess.UID, store.Turn{Role: store.TurnRoleUser, Content: "hi"})
	require.NoError(t, err, "update should succeed after retrying conflicts")
	assert.Len(t, updated.Turns, 1)
}

func TestServiceConcurrentMutationsSerialize(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	sess, err := svc.Create(ctx, 1, store.Preferences{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.AddTurn(ctx, 1, sess.UID, store.Turn{
				Role:    store.TurnRoleUser,
				Content: fmt.Sprintf("turn %d", i),
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	history, err := svc.GetHistory(ctx, 1, sess.UID)
	require.NoError(t, err)
	assert.Len(t, history, 10, "no concurrent append may be lost")
}

func TestServiceListExcludesExpired(t *testing.T) {
	ctx := context.Background()
	svc, driver := newTestService(t)

	live, err := svc.Create(ctx, 1, store.Preferences{})
	require.NoError(t, err)
	dead, err := svc.Create(ctx, 1, store.Preferences{})
	require.NoError(t, err)
	driver.backdate(dead.UID, 4*24*time.Hour)

	sessions, err := svc.List(ctx, 1, 0, 0)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, live.UID, sessions[0].UID)
}

func TestServiceListPagination(t *testing.T) {
	ctx := context.Background()
	svc, driver := newTestService(t)

	uids := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		sess, err := svc.Create(ctx, 1, store.Preferences{})
		require.NoError(t, err)
		// Spread update times so the newest-first order is unambiguous.
		driver.backdate(sess.UID, time.Duration(5-i)*time.Minute)
		uids = append(uids, sess.UID)
	}

	page, err := svc.List(ctx, 1, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, uids[4], page[0].UID)
	assert.Equal(t, uids[3], page[1].UID)

	page, err = svc.List(ctx, 1, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, uids[2], page[0].UID)
	assert.Equal(t, uids[1], page[1].UID)

	page, err = svc.List(ctx, 1, 2, 4)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, uids[0], page[0].UID)
}

func (s *Service) hasLock(uid string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.locks[uid]
	return ok
}

func TestServiceExpiryOnAccessReleasesLock(t *testing.T) {
	ctx := context.Background()
	svc, driver := newTestService(t)

	sess, err := svc.Create(ctx, 1, store.Preferences{})
	require.NoError(t, err)
	_, err = svc.AddTurn(ctx, 1, sess.UID, store.Turn{Role: store.TurnRoleUser, Content: "hello"})
	require.NoError(t, err)
	require.True(t, svc.hasLock(sess.UID))

	driver.backdate(sess.UID, 4*24*time.Hour)
	_, err = svc.Get(ctx, 1, sess.UID)
	require.ErrorIs(t, err, ErrExpired)
	assert.False(t, svc.hasLock(sess.UID), "expiry on access must release the session lock")
}

func TestServiceDelete(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	sess, err := svc.Create(ctx, 1, store.Preferences{})
	require.NoError(t, err)

	t.Run("foreign owner cannot delete", func(t *testing.T) {
		assert.ErrorIs(t, svc.Delete(ctx, 2, sess.UID), ErrPermissionDenied)
	})

	t.Run("owner deletes", func(t *testing.T) {
		require.NoError(t, svc.Delete(ctx, 1, sess.UID))
		_, err := svc.Get(ctx, 1, sess.UID)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestServiceDeleteAll(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	mine := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		sess, err := svc.Create(ctx, 1, store.Preferences{})
		require.NoError(t, err)
		_, err = svc.SetCurrentOutfit(ctx, 1, sess.UID, []int64{1})
		require.NoError(t, err)
		mine = append(mine, sess.UID)
	}
	_, err := svc.Create(ctx, 2, store.Preferences{})
	require.NoError(t, err)

	deleted, err := svc.DeleteAll(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)
	for _, uid := range mine {
		assert.False(t, svc.hasLock(uid), "delete all must release session locks")
	}

	others, err := svc.List(ctx, 2, 0, 0)
	require.NoError(t, err)
	assert.Len(t, others, 1, "other owners untouched")
}
