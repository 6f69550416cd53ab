package sqlite

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/shenlehan/fashion-recommendation/store"
)

// UpsertEmbeddingRecord replaces the embedding record for an item in place.
func (d *DB) UpsertEmbeddingRecord(ctx context.Context, upsert *store.EmbeddingRecord) (*store.EmbeddingRecord, error) {
	seasons, err := json.Marshal(upsert.Seasons)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal seasons")
	}
	now := time.Now().Unix()
	if upsert.CreatedTs == 0 {
		upsert.CreatedTs = now
	}
	upsert.UpdatedTs = now

	stmt := `
		INSERT INTO wardrobe_embedding (item_id, owner_id, category, color, material, seasons, embedding, created_ts, updated_ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (item_id)
		DO UPDATE SET
			owner_id = excluded.owner_id,
			category = excluded.category,
			color = excluded.color,
			material = excluded.material,
			seasons = excluded.seasons,
			embedding = excluded.embedding,
			updated_ts = excluded.updated_ts
	`
	if _, err := d.db.ExecContext(ctx, stmt,
		upsert.ItemID,
		upsert.OwnerID,
		upsert.Category,
		upsert.Color,
		upsert.Material,
		string(seasons),
		encodeVector(upsert.Vector),
		upsert.CreatedTs,
		upsert.UpdatedTs,
	); err != nil {
		return nil, errors.Wrap(err, "failed to upsert embedding record")
	}
	return upsert, nil
}

// DeleteEmbeddingRecord is idempotent; deleting a missing record is not an error.
func (d *DB) DeleteEmbeddingRecord(ctx context.Context, itemID int64) error {
	if _, err := d.db.ExecContext(ctx, "DELETE FROM wardrobe_embedding WHERE item_id = ?", itemID); err != nil {
		return errors.Wrap(err, "failed to delete embedding record")
	}
	return nil
}

// VectorSearch pre-filters rows by owner and category in SQL, then ranks
// by cosine distance computed in Go.
func (d *DB) VectorSearch(ctx context.Context, opts *store.VectorSearchOptions) ([]*store.EmbeddingMatch, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	where, args := []string{"owner_id = ?"}, []any{opts.OwnerID}
	if opts.Category != nil {
		where, args = append(where, "category = ?"), append(args, *opts.Category)
	}

	query := `
		SELECT item_id, owner_id, category, color, material, seasons, embedding
		FROM wardrobe_embedding
		WHERE ` + strings.Join(where, " AND ")

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to vector search")
	}
	defer rows.Close()

	results := []*store.EmbeddingMatch{}
	for rows.Next() {
		var record store.EmbeddingRecord
		var seasons string
		var blob []byte
		if err := rows.Scan(
			&record.ItemID,
			&record.OwnerID,
			&record.Category,
			&record.Color,
			&record.Material,
			&seasons,
			&blob,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan embedding record")
		}
		if err := json.Unmarshal([]byte(seasons), &record.Seasons); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal seasons")
		}
		record.Vector = decodeVector(blob)
		results = append(results, &store.EmbeddingMatch{
			ItemID:   record.ItemID,
			Record:   &record,
			Distance: cosineDistance(opts.Vector, record.Vector),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}
