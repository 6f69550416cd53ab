package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/shenlehan/fashion-recommendation/internal/profile"
	"github.com/shenlehan/fashion-recommendation/store/cache"
)

// ErrSessionConflict is returned by UpdateConversationSession when the
// optimistic version check fails because another writer got there first.
var ErrSessionConflict = errors.New("session version conflict")

// Driver is an interface for database access.
type Driver interface {
	GetDB() *sql.DB
	Close() error
	Migrate(ctx context.Context) error

	// Wardrobe items.
	CreateWardrobeItem(ctx context.Context, create *WardrobeItem) (*WardrobeItem, error)
	ListWardrobeItems(ctx context.Context, find *FindWardrobeItem) ([]*WardrobeItem, error)
	DeleteWardrobeItem(ctx context.Context, delete *DeleteWardrobeItem) error

	// Embedding records.
	UpsertEmbeddingRecord(ctx context.Context, upsert *EmbeddingRecord) (*EmbeddingRecord, error)
	DeleteEmbeddingRecord(ctx context.Context, itemID int64) error
	VectorSearch(ctx context.Context, opts *VectorSearchOptions) ([]*EmbeddingMatch, error)

	// Conversation sessions.
	CreateConversationSession(ctx context.Context, create *ConversationSession) (*ConversationSession, error)
	ListConversationSessions(ctx context.Context, find *FindConversationSession) ([]*ConversationSession, error)
	UpdateConversationSession(ctx context.Context, update *UpdateConversationSession) (*ConversationSession, error)
	DeleteConversationSessions(ctx context.Context, delete *DeleteConversationSession) (int, error)
}

// CacheObserver receives cache hit and miss events. Implemented by the
// metrics exporter.
type CacheObserver interface {
	RecordCacheHit(cacheType string)
	RecordCacheMiss(cacheType string)
}

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver

	wardrobeCache *cache.LRUCache[int64, *WardrobeItem]
	cacheObserver CacheObserver
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:        driver,
		profile:       profile,
		wardrobeCache: cache.NewLRUCache[int64, *WardrobeItem](2000, 10*time.Minute),
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

// SetCacheObserver attaches an observer for cache hit and miss events.
func (s *Store) SetCacheObserver(observer CacheObserver) {
	s.cacheObserver = observer
}

func (s *Store) Migrate(ctx context.Context) error {
	return s.driver.Migrate(ctx)
}

func (s *Store) Close() error {
	return s.driver.Close()
}

func (s *Store) CreateWardrobeItem(ctx context.Context, create *WardrobeItem) (*WardrobeItem, error) {
	if !create.Category.IsValid() {
		return nil, errors.Errorf("invalid category %q", create.Category)
	}
	item, err := s.driver.CreateWardrobeItem(ctx, create)
	if err != nil {
		return nil, err
	}
	s.wardrobeCache.SetWithDefaultTTL(item.ID, item)
	return item, nil
}

// GetWardrobeItem fetches a single item, serving hot reads from the cache.
// Returns nil when the item does not exist.
func (s *Store) GetWardrobeItem(ctx context.Context, id int64) (*WardrobeItem, error) {
	if item, ok := s.wardrobeCache.Get(id); ok {
		if s.cacheObserver != nil {
			s.cacheObserver.RecordCacheHit("wardrobe")
		}
		return item, nil
	}
	if s.cacheObserver != nil {
		s.cacheObserver.RecordCacheMiss("wardrobe")
	}
	items, err := s.driver.ListWardrobeItems(ctx, &FindWardrobeItem{ID: &id})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	s.wardrobeCache.SetWithDefaultTTL(id, items[0])
	return items[0], nil
}

func (s *Store) ListWardrobeItems(ctx context.Context, find *FindWardrobeItem) ([]*WardrobeItem, error) {
	return s.driver.ListWardrobeItems(ctx, find)
}

func (s *Store) DeleteWardrobeItem(ctx context.Context, delete *DeleteWardrobeItem) error {
	if err := s.driver.DeleteWardrobeItem(ctx, delete); err != nil {
		return err
	}
	s.wardrobeCache.Remove(delete.ID)
	return nil
}

func (s *Store) UpsertEmbeddingRecord(ctx context.Context, upsert *EmbeddingRecord) (*EmbeddingRecord, error) {
	return s.driver.UpsertEmbeddingRecord(ctx, upsert)
}

func (s *Store) DeleteEmbeddingRecord(ctx context.Context, itemID int64) error {
	return s.driver.DeleteEmbeddingRecord(ctx, itemID)
}

func (s *Store) VectorSearch(ctx context.Context, opts *VectorSearchOptions) ([]*EmbeddingMatch, error) {
	return s.driver.VectorSearch(ctx, opts)
}

func (s *Store) CreateConversationSession(ctx context.Context, create *ConversationSession) (*ConversationSession, error) {
	return s.driver.CreateConversationSession(ctx, create)
}

func (s *Store) ListConversationSessions(ctx context.Context, find *FindConversationSession) ([]*ConversationSession, error) {
	return s.driver.ListConversationSessions(ctx, find)
}

// GetConversationSession fetches a single session by UID. Returns nil when
// the session does not exist.
func (s *Store) GetConversationSession(ctx context.Context, uid string) (*ConversationSession, error) {
	sessions, err := s.driver.ListConversationSessions(ctx, &FindConversationSession{UID: &uid})
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, nil
	}
	return sessions[0], nil
}

func (s *Store) UpdateConversationSession(ctx context.Context, update *UpdateConversationSession) (*ConversationSession, error) {
	return s.driver.UpdateConversationSession(ctx, update)
}

func (s *Store) DeleteConversationSessions(ctx context.Context, delete *DeleteConversationSession) (int, error) {
	return s.driver.DeleteConversationSessions(ctx, delete)
}
