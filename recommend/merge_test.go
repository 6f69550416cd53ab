package recommend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shenlehan/fashion-recommendation/store"
)

func item(id int64, category store.Category) *store.WardrobeItem {
	return &store.WardrobeItem{ID: id, Category: category, Name: string(category)}
}

func categories(items []*store.WardrobeItem) []store.Category {
	out := make([]store.Category, 0, len(items))
	for _, it := range items {
		out = append(out, it.Category)
	}
	return out
}

func TestMergeOutfit(t *testing.T) {
	t.Run("backfills shoes from previous outfit", func(t *testing.T) {
		previous := []*store.WardrobeItem{item(1, store.CategoryInnerTop), item(2, store.CategoryBottom), item(3, store.CategoryShoes)}
		proposed := []*store.WardrobeItem{item(4, store.CategoryOuterTop), item(5, store.CategoryBottom)}

		final := MergeOutfit(previous, proposed)

		require.Len(t, final, 3)
		assert.Equal(t, int64(3), final[2].ID, "previous shoes appended last")
	})

	t.Run("backfills lower body with bottom", func(t *testing.T) {
		previous := []*store.WardrobeItem{item(1, store.CategoryBottom), item(2, store.CategoryShoes)}
		proposed := []*store.WardrobeItem{item(3, store.CategoryInnerTop), item(4, store.CategoryShoes)}

		final := MergeOutfit(previous, proposed)

		assert.Contains(t, categories(final), store.CategoryBottom)
	})

	t.Run("full body satisfies lower body", func(t *testing.T) {
		previous := []*store.WardrobeItem{item(1, store.CategoryBottom)}
		proposed := []*store.WardrobeItem{item(2, store.CategoryFullBody), item(3, store.CategoryShoes)}

		final := MergeOutfit(previous, proposed)

		assert.Len(t, final, 2, "no backfill when a full-body garment covers the lower body")
	})

	t.Run("previous full body backfills when proposal has neither", func(t *testing.T) {
		previous := []*store.WardrobeItem{item(1, store.CategoryFullBody), item(2, store.CategoryShoes)}
		proposed := []*store.WardrobeItem{item(3, store.CategoryOuterTop)}

		final := MergeOutfit(previous, proposed)

		assert.Contains(t, categories(final), store.CategoryFullBody)
		assert.Contains(t, categories(final), store.CategoryShoes)
	})

	t.Run("proposal wins over previous", func(t *testing.T) {
		previous := []*store.WardrobeItem{item(1, store.CategoryShoes)}
		proposed := []*store.WardrobeItem{item(2, store.CategoryShoes), item(3, store.CategoryBottom)}

		final := MergeOutfit(previous, proposed)

		require.Len(t, final, 2)
		assert.Equal(t, int64(2), final[0].ID)
	})

	t.Run("empty previous yields proposal unchanged", func(t *testing.T) {
		proposed := []*store.WardrobeItem{item(1, store.CategoryInnerTop)}

		final := MergeOutfit(nil, proposed)

		require.Len(t, final, 1)
		assert.Equal(t, int64(1), final[0].ID)
	})

	t.Run("does not mutate inputs", func(t *testing.T) {
		previous := []*store.WardrobeItem{item(1, store.CategoryShoes), item(2, store.CategoryBottom)}
		proposed := []*store.WardrobeItem{item(3, store.CategoryInnerTop)}

		MergeOutfit(previous, proposed)

		assert.Len(t, previous, 2)
		assert.Len(t, proposed, 1)
	})
}
