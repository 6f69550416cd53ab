package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/shenlehan/fashion-recommendation/store"
)

func (d *DB) CreateConversationSession(ctx context.Context, create *store.ConversationSession) (*store.ConversationSession, error) {
	if create.Turns == nil {
		create.Turns = []store.Turn{}
	}
	if create.CurrentOutfit == nil {
		create.CurrentOutfit = []int64{}
	}
	turns, err := json.Marshal(create.Turns)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal turns")
	}
	outfit, err := json.Marshal(create.CurrentOutfit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal current outfit")
	}
	prefs, err := json.Marshal(create.Preferences)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal preferences")
	}
	now := time.Now().Unix()
	create.CreatedTs = now
	create.UpdatedTs = now
	create.Version = 1

	stmt := `
		INSERT INTO conversation_session (uid, owner_id, turns, current_outfit, preferences, version, created_ts, updated_ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`
	if err := d.db.QueryRowContext(ctx, stmt,
		create.UID,
		create.OwnerID,
		string(turns),
		string(outfit),
		string(prefs),
		create.Version,
		create.CreatedTs,
		create.UpdatedTs,
	).Scan(&create.ID); err != nil {
		return nil, errors.Wrap(err, "failed to create conversation session")
	}
	return create, nil
}

func (d *DB) ListConversationSessions(ctx context.Context, find *store.FindConversationSession) ([]*store.ConversationSession, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.UID != nil {
		where, args = append(where, "uid = ?"), append(args, *find.UID)
	}
	if find.OwnerID != nil {
		where, args = append(where, "owner_id = ?"), append(args, *find.OwnerID)
	}
	if find.UpdatedAfter != nil {
		where, args = append(where, "updated_ts > ?"), append(args, *find.UpdatedAfter)
	}

	query := `
		SELECT id, uid, owner_id, turns, current_outfit, preferences, version, created_ts, updated_ts
		FROM conversation_session
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY updated_ts DESC, id DESC
	`
	if find.Limit != nil {
		query += " LIMIT ?"
		args = append(args, *find.Limit)
		if find.Offset != nil {
			query += " OFFSET ?"
			args = append(args, *find.Offset)
		}
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list conversation sessions")
	}
	defer rows.Close()

	list := []*store.ConversationSession{}
	for rows.Next() {
		session, err := scanConversationSession(rows.Scan)
		if err != nil {
			return nil, err
		}
		list = append(list, session)
	}
	return list, rows.Err()
}

// UpdateConversationSession applies an optimistic update guarded by the
// version stamp; store.ErrSessionConflict is returned when another writer
// has bumped the version first.
func (d *DB) UpdateConversationSession(ctx context.Context, update *store.UpdateConversationSession) (*store.ConversationSession, error) {
	set, args := []string{}, []any{}

	if update.Turns != nil {
		buf, err := json.Marshal(*update.Turns)
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal turns")
		}
		set, args = append(set, "turns = ?"), append(args, string(buf))
	}
	if update.CurrentOutfit != nil {
		buf, err := json.Marshal(*update.CurrentOutfit)
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal current outfit")
		}
		set, args = append(set, "current_outfit = ?"), append(args, string(buf))
	}
	updatedTs := update.UpdatedTs
	if updatedTs == 0 {
		updatedTs = time.Now().Unix()
	}
	set, args = append(set, "updated_ts = ?"), append(args, updatedTs)
	set = append(set, "version = version + 1")

	stmt := `
		UPDATE conversation_session
		SET ` + strings.Join(set, ", ") + `
		WHERE uid = ? AND version = ?
		RETURNING id, uid, owner_id, turns, current_outfit, preferences, version, created_ts, updated_ts
	`
	args = append(args, update.UID, update.Version)

	row := d.db.QueryRowContext(ctx, stmt, args...)
	session, err := scanConversationSession(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrSessionConflict
		}
		return nil, errors.Wrap(err, "failed to update conversation session")
	}
	return session, nil
}

func (d *DB) DeleteConversationSessions(ctx context.Context, delete *store.DeleteConversationSession) (int, error) {
	where, args := []string{"1 = 1"}, []any{}

	if delete.UID != nil {
		where, args = append(where, "uid = ?"), append(args, *delete.UID)
	}
	if delete.OwnerID != nil {
		where, args = append(where, "owner_id = ?"), append(args, *delete.OwnerID)
	}
	if delete.UpdatedBefore != nil {
		where, args = append(where, "updated_ts < ?"), append(args, *delete.UpdatedBefore)
	}

	stmt := `DELETE FROM conversation_session WHERE ` + strings.Join(where, " AND ")
	result, err := d.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, errors.Wrap(err, "failed to delete conversation sessions")
	}
	affected, _ := result.RowsAffected()
	return int(affected), nil
}

func scanConversationSession(scan func(dest ...any) error) (*store.ConversationSession, error) {
	var session store.ConversationSession
	var turns, outfit, prefs string
	if err := scan(
		&session.ID,
		&session.UID,
		&session.OwnerID,
		&turns,
		&outfit,
		&prefs,
		&session.Version,
		&session.CreatedTs,
		&session.UpdatedTs,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(turns), &session.Turns); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal turns")
	}
	if err := json.Unmarshal([]byte(outfit), &session.CurrentOutfit); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal current outfit")
	}
	if err := json.Unmarshal([]byte(prefs), &session.Preferences); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal preferences")
	}
	return &session, nil
}
