package recommend

import (
	"context"
	"fmt"
	"strings"

	"github.com/shenlehan/fashion-recommendation/ai"
	"github.com/shenlehan/fashion-recommendation/store"
)

// QueryFilter restricts an index query to one owner and, optionally, one
// garment category.
type QueryFilter struct {
	Category *store.Category
	OwnerID  int32
}

// Index is the vector index over wardrobe items. Implementations must
// order Query results by ascending cosine distance and tolerate a
// degraded embedding provider: Add with an empty vector and Query with
// an empty vector both succeed without touching the index.
type Index interface {
	// Add inserts or replaces the record for record.ItemID.
	Add(ctx context.Context, record *store.EmbeddingRecord) error
	// Delete removes the record for itemID. Deleting an absent record
	// is not an error.
	Delete(ctx context.Context, itemID int64) error
	// Query returns up to topK nearest records matching the filter.
	Query(ctx context.Context, vector []float32, filter QueryFilter, topK int) ([]*store.EmbeddingMatch, error)
}

// StoreIndex backs Index with the embedding table of the store driver.
type StoreIndex struct {
	store *store.Store
}

func NewStoreIndex(st *store.Store) *StoreIndex {
	return &StoreIndex{store: st}
}

func (s *StoreIndex) Add(ctx context.Context, record *store.EmbeddingRecord) error {
	if len(record.Vector) == 0 {
		// Degraded provider produced no vector. The item stays
		// outside the index and retrieval falls back to the full
		// wardrobe.
		return nil
	}
	_, err := s.store.UpsertEmbeddingRecord(ctx, record)
	return err
}

func (s *StoreIndex) Delete(ctx context.Context, itemID int64) error {
	return s.store.DeleteEmbeddingRecord(ctx, itemID)
}

func (s *StoreIndex) Query(ctx context.Context, vector []float32, filter QueryFilter, topK int) ([]*store.EmbeddingMatch, error) {
	if len(vector) == 0 {
		return nil, nil
	}
	return s.store.VectorSearch(ctx, &store.VectorSearchOptions{
		OwnerID:  filter.OwnerID,
		Category: filter.Category,
		Vector:   vector,
		Limit:    topK,
	})
}

// Embedder turns wardrobe items and query descriptions into fused
// vectors: the text half followed by the image half, with an all-zero
// half standing in for an absent modality so every vector has the same
// dimensionality.
type Embedder struct {
	svc ai.EmbeddingService
}

func NewEmbedder(svc ai.EmbeddingService) *Embedder {
	return &Embedder{svc: svc}
}

// FuseVectors concatenates the text and image halves, zero-filling
// whichever half is absent. Both absent yields nil.
func FuseVectors(text, image []float32, textDim, imageDim int) []float32 {
	if len(text) == 0 && len(image) == 0 {
		return nil
	}
	fused := make([]float32, textDim+imageDim)
	copy(fused, text)
	copy(fused[textDim:], image)
	return fused
}

func semanticText(item *store.WardrobeItem) string {
	parts := []string{item.Name, item.Color, item.Material, string(item.Category)}
	for _, s := range item.Seasons {
		parts = append(parts, string(s))
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}

// ItemVector builds the fused vector for a wardrobe item from its
// semantic text and, when an image reference is present, its image.
// A degraded provider yields (nil, nil).
func (e *Embedder) ItemVector(ctx context.Context, item *store.WardrobeItem) ([]float32, error) {
	text, err := e.svc.EmbedText(ctx, semanticText(item))
	if err != nil {
		return nil, fmt.Errorf("embed item text: %w", err)
	}
	var image []float32
	if item.ImageRef != "" {
		image, err = e.svc.EmbedImage(ctx, item.ImageRef)
		if err != nil {
			return nil, fmt.Errorf("embed item image: %w", err)
		}
	}
	return FuseVectors(text, image, e.svc.TextDimensions(), e.svc.ImageDimensions()), nil
}

// QueryVector builds the fused vector for a query description. The
// image half is always zero-filled. A degraded provider yields
// (nil, nil).
func (e *Embedder) QueryVector(ctx context.Context, description string) ([]float32, error) {
	text, err := e.svc.EmbedText(ctx, description)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return FuseVectors(text, nil, e.svc.TextDimensions(), e.svc.ImageDimensions()), nil
}
