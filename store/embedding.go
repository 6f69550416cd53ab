package store

// EmbeddingRecord holds the fused semantic vector for one wardrobe item,
// keyed 1:1 by item ID, plus the metadata projection used for pre-filtering.
// The vector is the text-semantic half concatenated with the image-semantic
// half; an absent modality is zero-filled so dimensionality stays constant.
// Records are replaced in place, never partially updated.
type EmbeddingRecord struct {
	Color     string
	Material  string
	Category  Category
	Seasons   []Season
	Vector    []float32
	CreatedTs int64
	UpdatedTs int64
	ItemID    int64
	OwnerID   int32
}

type FindEmbeddingRecord struct {
	ItemID  *int64
	OwnerID *int32
}

// VectorSearchOptions restricts a similarity query. OwnerID is mandatory:
// a record must never be queryable across owners.
type VectorSearchOptions struct {
	Category *Category
	Vector   []float32
	Limit    int
	OwnerID  int32
}

// EmbeddingMatch is one similarity result, ranked by ascending distance.
type EmbeddingMatch struct {
	Record   *EmbeddingRecord
	Distance float32
	ItemID   int64
}
