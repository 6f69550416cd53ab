package recommend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shenlehan/fashion-recommendation/store"
)

// fakeEmbedding is a deterministic embedding provider for tests. With
// disabled set it behaves like the degraded provider and returns no
// vectors.
type fakeEmbedding struct {
	disabled bool
	textDim  int
	imageDim int
}

func (f *fakeEmbedding) EmbedText(_ context.Context, text string) ([]float32, error) {
	if f.disabled {
		return nil, nil
	}
	vec := make([]float32, f.textDim)
	for i := range vec {
		vec[i] = float32(len(text)%7) + 1
	}
	return vec, nil
}

func (f *fakeEmbedding) EmbedImage(_ context.Context, _ string) ([]float32, error) {
	if f.disabled {
		return nil, nil
	}
	vec := make([]float32, f.imageDim)
	vec[0] = 1
	return vec, nil
}

func (f *fakeEmbedding) TextDimensions() int  { return f.textDim }
func (f *fakeEmbedding) ImageDimensions() int { return f.imageDim }

// fakeIndex serves canned matches per category and records the queries
// it receives.
type fakeIndex struct {
	byCategory map[store.Category][]*store.EmbeddingMatch
	queries    []QueryFilter
	topKs      []int
}

func (f *fakeIndex) Add(_ context.Context, _ *store.EmbeddingRecord) error { return nil }
func (f *fakeIndex) Delete(_ context.Context, _ int64) error               { return nil }

func (f *fakeIndex) Query(_ context.Context, _ []float32, filter QueryFilter, topK int) ([]*store.EmbeddingMatch, error) {
	f.queries = append(f.queries, filter)
	f.topKs = append(f.topKs, topK)
	if filter.Category == nil {
		return nil, nil
	}
	matches := f.byCategory[*filter.Category]
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func match(itemID int64, category store.Category, distance float32) *store.EmbeddingMatch {
	return &store.EmbeddingMatch{
		ItemID:   itemID,
		Distance: distance,
		Record:   &store.EmbeddingRecord{ItemID: itemID, Category: category},
	}
}

func newTestRetriever(index Index) *Retriever {
	return NewRetriever(index, NewEmbedder(&fakeEmbedding{textDim: 4, imageDim: 2}))
}

func TestRetrieveFansOutPerCategory(t *testing.T) {
	ctx := context.Background()
	index := &fakeIndex{byCategory: map[store.Category][]*store.EmbeddingMatch{
		store.CategoryInnerTop: {match(1, store.CategoryInnerTop, 0.1), match(2, store.CategoryInnerTop, 0.2)},
		store.CategoryShoes:    {match(3, store.CategoryShoes, 0.3)},
	}}

	result, err := newTestRetriever(index).Retrieve(ctx, RetrieveOptions{OwnerID: 7})
	require.NoError(t, err)

	assert.Len(t, index.queries, len(store.OutfitCategories), "one query per composable category")
	for _, topK := range index.topKs {
		assert.Equal(t, DefaultPerCategoryK, topK)
	}
	for _, filter := range index.queries {
		assert.EqualValues(t, 7, filter.OwnerID)
		require.NotNil(t, filter.Category)
	}

	assert.False(t, result.NoRelevantSubset)
	assert.Equal(t, []int64{1, 2, 3}, result.ItemIDs)
}

func TestRetrieveDeduplicatesKeepingFirst(t *testing.T) {
	ctx := context.Background()
	// Item 5 shows up under two categories with different distances;
	// the dedup keeps the occurrence from the earlier category.
	index := &fakeIndex{byCategory: map[store.Category][]*store.EmbeddingMatch{
		store.CategoryInnerTop: {match(5, store.CategoryInnerTop, 0.1)},
		store.CategoryMidTop:   {match(5, store.CategoryMidTop, 0.5), match(6, store.CategoryMidTop, 0.6)},
	}}

	result, err := newTestRetriever(index).Retrieve(ctx, RetrieveOptions{OwnerID: 1})
	require.NoError(t, err)

	require.Equal(t, []int64{5, 6}, result.ItemIDs)
	assert.InDelta(t, 0.1, float64(result.Matches[0].Distance), 1e-6, "first occurrence wins")
}

func TestRetrieveDegradedProviderSignalsFallback(t *testing.T) {
	ctx := context.Background()
	index := &fakeIndex{byCategory: map[store.Category][]*store.EmbeddingMatch{
		store.CategoryShoes: {match(1, store.CategoryShoes, 0.1)},
	}}
	retriever := NewRetriever(index, NewEmbedder(&fakeEmbedding{disabled: true, textDim: 4, imageDim: 2}))

	result, err := retriever.Retrieve(ctx, RetrieveOptions{OwnerID: 1})
	require.NoError(t, err)

	assert.True(t, result.NoRelevantSubset)
	assert.Empty(t, result.ItemIDs)
	assert.Empty(t, index.queries, "degraded retrieval never touches the index")
}

func TestRetrieveEmptyIndexSignalsFallback(t *testing.T) {
	ctx := context.Background()
	index := &fakeIndex{byCategory: map[store.Category][]*store.EmbeddingMatch{}}

	result, err := newTestRetriever(index).Retrieve(ctx, RetrieveOptions{OwnerID: 1})
	require.NoError(t, err)

	assert.True(t, result.NoRelevantSubset)
}

func TestRetrieveSeasonPostFilter(t *testing.T) {
	ctx := context.Background()
	winter := match(1, store.CategoryOuterTop, 0.1)
	winter.Record.Seasons = []store.Season{store.SeasonWinter}
	summer := match(2, store.CategoryOuterTop, 0.2)
	summer.Record.Seasons = []store.Season{store.SeasonSummer}
	untagged := match(3, store.CategoryOuterTop, 0.3)

	index := &fakeIndex{byCategory: map[store.Category][]*store.EmbeddingMatch{
		store.CategoryOuterTop: {winter, summer, untagged},
	}}

	result, err := newTestRetriever(index).Retrieve(ctx, RetrieveOptions{
		OwnerID: 1,
		Seasons: []store.Season{store.SeasonWinter},
	})
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 3}, result.ItemIDs, "wrong-season items dropped, untagged items kept")
}

func TestRetrieveHybridScoring(t *testing.T) {
	ctx := context.Background()

	// Closest by distance but wrong color.
	plain := match(1, store.CategoryInnerTop, 0.30)
	plain.Record.Color = "white"
	// Slightly farther but matches the requested color.
	boosted := match(2, store.CategoryInnerTop, 0.40)
	boosted.Record.Color = "navy blue"
	// Too far to survive the similarity floor even with the bonus.
	distant := match(3, store.CategoryInnerTop, 0.95)
	distant.Record.Color = "blue"

	index := &fakeIndex{byCategory: map[store.Category][]*store.EmbeddingMatch{
		store.CategoryInnerTop: {plain, boosted, distant},
	}}

	result, err := newTestRetriever(index).Retrieve(ctx, RetrieveOptions{
		OwnerID: 1,
		Color:   "blue",
	})
	require.NoError(t, err)

	// boosted: 0.60+0.15=0.75, plain: 0.70, distant: 0.05+0.15=0.20 < floor.
	assert.Equal(t, []int64{2, 1}, result.ItemIDs)
}

func TestRetrieveTopKTruncation(t *testing.T) {
	ctx := context.Background()
	index := &fakeIndex{byCategory: map[store.Category][]*store.EmbeddingMatch{
		store.CategoryInnerTop: {match(1, store.CategoryInnerTop, 0.1), match(2, store.CategoryInnerTop, 0.2)},
		store.CategoryBottom:   {match(3, store.CategoryBottom, 0.3)},
	}}

	result, err := newTestRetriever(index).Retrieve(ctx, RetrieveOptions{OwnerID: 1, TopK: 2})
	require.NoError(t, err)

	assert.Len(t, result.ItemIDs, 2)
}

func TestFuseVectors(t *testing.T) {
	t.Run("both halves present", func(t *testing.T) {
		fused := FuseVectors([]float32{1, 2}, []float32{3}, 2, 1)
		assert.Equal(t, []float32{1, 2, 3}, fused)
	})

	t.Run("image half zero-filled", func(t *testing.T) {
		fused := FuseVectors([]float32{1, 2}, nil, 2, 2)
		assert.Equal(t, []float32{1, 2, 0, 0}, fused)
	})

	t.Run("text half zero-filled", func(t *testing.T) {
		fused := FuseVectors(nil, []float32{5}, 2, 1)
		assert.Equal(t, []float32{0, 0, 5}, fused)
	})

	t.Run("both absent yields nil", func(t *testing.T) {
		assert.Nil(t, FuseVectors(nil, nil, 2, 1))
	})
}
