package recommend

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/shenlehan/fashion-recommendation/store"
)

const (
	// DefaultPerCategoryK is the fan-out depth per garment category.
	DefaultPerCategoryK = 3

	// attributeBonus is added to the similarity score once per match
	// when an explicit color or material constraint is satisfied.
	attributeBonus = 0.15
	// minSimilarity is the floor below which hybrid-scored candidates
	// are dropped.
	minSimilarity = 0.30
)

// RetrieveOptions parameterizes one category-balanced retrieval.
type RetrieveOptions struct {
	// Categories to fan out over. Empty means store.OutfitCategories.
	Categories []store.Category
	// Seasons post-filters candidates on their season tags. Empty
	// disables the filter.
	Seasons []store.Season
	// Color and Material enable hybrid scoring when non-empty.
	Color    string
	Material string
	Context  SituationContext
	// TopK caps the merged candidate list after hybrid re-ranking.
	// Zero means no cap.
	TopK    int
	OwnerID int32
}

// RetrievalResult is the outcome of one retrieval. When NoRelevantSubset
// is set ItemIDs is empty and the caller must widen to the full wardrobe
// rather than fail.
type RetrievalResult struct {
	ItemIDs          []int64
	Matches          []*store.EmbeddingMatch
	NoRelevantSubset bool
}

// Retriever runs the category-balanced retrieval strategy: one nearest
// neighbor query per garment category so that no single category can
// crowd out the rest, then dedup, season filtering, and optional hybrid
// re-ranking on explicit attribute constraints.
type Retriever struct {
	index        Index
	embedder     *Embedder
	perCategoryK int
}

func NewRetriever(index Index, embedder *Embedder) *Retriever {
	return &Retriever{
		index:        index,
		embedder:     embedder,
		perCategoryK: DefaultPerCategoryK,
	}
}

func (r *Retriever) Retrieve(ctx context.Context, opts RetrieveOptions) (*RetrievalResult, error) {
	query := opts.Context.QueryDescription()
	vector, err := r.embedder.QueryVector(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(vector) == 0 {
		// Degraded embedding provider. Signal the caller to use the
		// full wardrobe instead of an empty candidate set.
		slog.Warn("retrieval degraded, no query vector", "owner", opts.OwnerID)
		return &RetrievalResult{NoRelevantSubset: true}, nil
	}

	categories := opts.Categories
	if len(categories) == 0 {
		categories = store.OutfitCategories
	}

	var merged []*store.EmbeddingMatch
	seen := make(map[int64]bool)
	for _, category := range categories {
		category := category
		matches, err := r.index.Query(ctx, vector, QueryFilter{
			OwnerID:  opts.OwnerID,
			Category: &category,
		}, r.perCategoryK)
		if err != nil {
			return nil, err
		}
		// Dedup keeps the first occurrence, which carries the rank
		// from the earliest category query.
		for _, match := range matches {
			if seen[match.ItemID] {
				continue
			}
			seen[match.ItemID] = true
			merged = append(merged, match)
		}
	}

	if len(opts.Seasons) > 0 {
		merged = filterSeasons(merged, opts.Seasons)
	}
	if opts.Color != "" || opts.Material != "" {
		merged = rankHybrid(merged, opts.Color, opts.Material)
	}
	if opts.TopK > 0 && len(merged) > opts.TopK {
		merged = merged[:opts.TopK]
	}

	if len(merged) == 0 {
		return &RetrievalResult{NoRelevantSubset: true}, nil
	}
	ids := make([]int64, 0, len(merged))
	for _, match := range merged {
		ids = append(ids, match.ItemID)
	}
	return &RetrievalResult{ItemIDs: ids, Matches: merged}, nil
}

func filterSeasons(matches []*store.EmbeddingMatch, seasons []store.Season) []*store.EmbeddingMatch {
	kept := matches[:0]
	for _, match := range matches {
		if match.Record == nil || hasAnySeason(match.Record.Seasons, seasons) {
			kept = append(kept, match)
		}
	}
	return kept
}

func hasAnySeason(have, want []store.Season) bool {
	// Untagged records pass the filter; absence of tags is not a
	// statement about wearability.
	if len(have) == 0 {
		return true
	}
	for _, w := range want {
		for _, h := range have {
			if w == h {
				return true
			}
		}
	}
	return false
}

// rankHybrid converts distances to similarity scores, boosts candidates
// matching the explicit color or material constraint, drops everything
// under the similarity floor, and re-sorts descending by score.
func rankHybrid(matches []*store.EmbeddingMatch, color, material string) []*store.EmbeddingMatch {
	type scored struct {
		match *store.EmbeddingMatch
		score float64
	}
	color = strings.ToLower(color)
	material = strings.ToLower(material)

	ranked := make([]scored, 0, len(matches))
	for _, match := range matches {
		score := similarity(match.Distance)
		if match.Record != nil {
			if color != "" && strings.Contains(strings.ToLower(match.Record.Color), color) {
				score += attributeBonus
			}
			if material != "" && strings.Contains(strings.ToLower(match.Record.Material), material) {
				score += attributeBonus
			}
		}
		if score < minSimilarity {
			continue
		}
		ranked = append(ranked, scored{match: match, score: score})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})
	out := make([]*store.EmbeddingMatch, 0, len(ranked))
	for _, s := range ranked {
		out = append(out, s.match)
	}
	return out
}

// similarity maps cosine distance to a score clamped to [0, 1].
func similarity(distance float32) float64 {
	s := 1 - float64(distance)
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
