package postgres

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/shenlehan/fashion-recommendation/store"
)

func (d *DB) CreateWardrobeItem(ctx context.Context, create *store.WardrobeItem) (*store.WardrobeItem, error) {
	seasons, err := json.Marshal(create.Seasons)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal seasons")
	}
	now := time.Now().Unix()
	create.CreatedTs = now
	create.UpdatedTs = now

	stmt := `
		INSERT INTO wardrobe_item (owner_id, name, category, color, material, seasons, image_ref, created_ts, updated_ts)
		VALUES (` + placeholders(9) + `)
		RETURNING id
	`
	if err := d.db.QueryRowContext(ctx, stmt,
		create.OwnerID,
		create.Name,
		create.Category,
		create.Color,
		create.Material,
		string(seasons),
		create.ImageRef,
		create.CreatedTs,
		create.UpdatedTs,
	).Scan(&create.ID); err != nil {
		return nil, errors.Wrap(err, "failed to create wardrobe item")
	}
	return create, nil
}

func (d *DB) ListWardrobeItems(ctx context.Context, find *store.FindWardrobeItem) ([]*store.WardrobeItem, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if len(find.IDs) > 0 {
		list := make([]string, 0, len(find.IDs))
		for _, id := range find.IDs {
			list = append(list, placeholder(len(args)+1))
			args = append(args, id)
		}
		where = append(where, "id IN ("+strings.Join(list, ", ")+")")
	}
	if find.OwnerID != nil {
		where, args = append(where, "owner_id = "+placeholder(len(args)+1)), append(args, *find.OwnerID)
	}
	if find.Category != nil {
		where, args = append(where, "category = "+placeholder(len(args)+1)), append(args, *find.Category)
	}

	query := `
		SELECT id, owner_id, name, category, color, material, seasons, image_ref, created_ts, updated_ts
		FROM wardrobe_item
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_ts DESC, id DESC
	`
	if find.Limit != nil {
		query += " LIMIT " + placeholder(len(args)+1)
		args = append(args, *find.Limit)
		if find.Offset != nil {
			query += " OFFSET " + placeholder(len(args)+1)
			args = append(args, *find.Offset)
		}
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list wardrobe items")
	}
	defer rows.Close()

	list := []*store.WardrobeItem{}
	for rows.Next() {
		var item store.WardrobeItem
		var seasons string
		if err := rows.Scan(
			&item.ID,
			&item.OwnerID,
			&item.Name,
			&item.Category,
			&item.Color,
			&item.Material,
			&seasons,
			&item.ImageRef,
			&item.CreatedTs,
			&item.UpdatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan wardrobe item")
		}
		if err := json.Unmarshal([]byte(seasons), &item.Seasons); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal seasons")
		}
		list = append(list, &item)
	}
	return list, rows.Err()
}

func (d *DB) DeleteWardrobeItem(ctx context.Context, delete *store.DeleteWardrobeItem) error {
	stmt := `DELETE FROM wardrobe_item WHERE id = ` + placeholder(1)
	if _, err := d.db.ExecContext(ctx, stmt, delete.ID); err != nil {
		return errors.Wrap(err, "failed to delete wardrobe item")
	}
	return nil
}
