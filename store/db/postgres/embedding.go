package postgres

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"
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
		VALUES (` + placeholders(9) + `)
		ON CONFLICT (item_id)
		DO UPDATE SET
			owner_id = EXCLUDED.owner_id,
			category = EXCLUDED.category,
			color = EXCLUDED.color,
			material = EXCLUDED.material,
			seasons = EXCLUDED.seasons,
			embedding = EXCLUDED.embedding,
			updated_ts = EXCLUDED.updated_ts
		RETURNING created_ts, updated_ts
	`
	vector := pgvector.NewVector(upsert.Vector)
	if err := d.db.QueryRowContext(ctx, stmt,
		upsert.ItemID,
		upsert.OwnerID,
		upsert.Category,
		upsert.Color,
		upsert.Material,
		string(seasons),
		vector,
		upsert.CreatedTs,
		upsert.UpdatedTs,
	).Scan(&upsert.CreatedTs, &upsert.UpdatedTs); err != nil {
		return nil, errors.Wrap(err, "failed to upsert embedding record")
	}
	return upsert, nil
}

// DeleteEmbeddingRecord is idempotent; deleting a missing record is not an error.
func (d *DB) DeleteEmbeddingRecord(ctx context.Context, itemID int64) error {
	stmt := `DELETE FROM wardrobe_embedding WHERE item_id = ` + placeholder(1)
	if _, err := d.db.ExecContext(ctx, stmt, itemID); err != nil {
		return errors.Wrap(err, "failed to delete embedding record")
	}
	return nil
}

// VectorSearch returns up to Limit records ranked by ascending cosine
// distance, restricted to the owner and, optionally, a category.
func (d *DB) VectorSearch(ctx context.Context, opts *store.VectorSearchOptions) ([]*store.EmbeddingMatch, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	where, args := []string{"owner_id = " + placeholder(1)}, []any{opts.OwnerID}
	if opts.Category != nil {
		where = append(where, "category = "+placeholder(len(args)+1))
		args = append(args, *opts.Category)
	}

	vector := pgvector.NewVector(opts.Vector)
	distExpr := "embedding <=> " + placeholder(len(args)+1)
	args = append(args, vector)

	// The <=> operator computes cosine distance, so ascending order puts
	// the most similar records first.
	query := `
		SELECT item_id, owner_id, category, color, material, seasons, ` + distExpr + ` AS distance
		FROM wardrobe_embedding
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY distance ASC
		LIMIT ` + placeholder(len(args)+1)
	args = append(args, limit)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to vector search")
	}
	defer rows.Close()

	results := []*store.EmbeddingMatch{}
	for rows.Next() {
		var match store.EmbeddingMatch
		var record store.EmbeddingRecord
		var seasons string
		if err := rows.Scan(
			&record.ItemID,
			&record.OwnerID,
			&record.Category,
			&record.Color,
			&record.Material,
			&seasons,
			&match.Distance,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan vector search result")
		}
		if err := json.Unmarshal([]byte(seasons), &record.Seasons); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal seasons")
		}
		match.ItemID = record.ItemID
		match.Record = &record
		results = append(results, &match)
	}
	return results, rows.Err()
}
