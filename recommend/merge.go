package recommend

import "github.com/shenlehan/fashion-recommendation/store"

// MergeOutfit folds an adjusted proposal into the previous outfit so the
// result is always wearable. The proposal wins wherever it says anything;
// the previous outfit only backfills the mandatory categories the
// proposal left uncovered: shoes, and a lower body covered by either a
// bottom or a full-body garment.
//
// The function is pure. Inputs are not mutated and proposal order is
// preserved, with backfilled items appended at the end.
func MergeOutfit(previous, proposed []*store.WardrobeItem) []*store.WardrobeItem {
	final := make([]*store.WardrobeItem, 0, len(proposed)+2)
	final = append(final, proposed...)

	if !hasCategory(final, store.CategoryShoes) {
		if shoes := firstOfCategory(previous, store.CategoryShoes); shoes != nil {
			final = append(final, shoes)
		}
	}
	if !hasCategory(final, store.CategoryBottom) && !hasCategory(final, store.CategoryFullBody) {
		lower := firstOfCategory(previous, store.CategoryBottom)
		if lower == nil {
			lower = firstOfCategory(previous, store.CategoryFullBody)
		}
		if lower != nil {
			final = append(final, lower)
		}
	}
	return final
}

func hasCategory(items []*store.WardrobeItem, category store.Category) bool {
	for _, item := range items {
		if item.Category == category {
			return true
		}
	}
	return false
}

func firstOfCategory(items []*store.WardrobeItem, category store.Category) *store.WardrobeItem {
	for _, item := range items {
		if item.Category == category {
			return item
		}
	}
	return nil
}
