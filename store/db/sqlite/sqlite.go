// Package sqlite implements the store driver backed by SQLite. Vector
// similarity is computed in Go over stored float32 blobs after the SQL
// metadata pre-filter.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"io/fs"
	"math"
	"time"

	"github.com/pkg/errors"
	// Import the SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/shenlehan/fashion-recommendation/internal/profile"
	"github.com/shenlehan/fashion-recommendation/internal/version"
)

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens a database identified by the DSN in the given profile.
func NewDB(profile *profile.Profile) (*DB, error) {
	if profile == nil {
		return nil, errors.New("profile is nil")
	}
	if profile.DSN == "" {
		return nil, errors.New("dsn required")
	}

	db, err := sql.Open("sqlite", profile.DSN)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database with dsn: %s", profile.DSN)
	}

	// SQLite allows a single writer; bounding the pool avoids SQLITE_BUSY
	// under concurrent session mutations.
	db.SetMaxOpenConns(1)

	return &DB{
		db:      db,
		profile: profile,
	}, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

//go:embed migration
var migrationFS embed.FS

const latestSchemaFile = "migration/LATEST.sql"

// Migrate bootstraps a fresh database from LATEST.sql and applies any
// versioned patch directories not yet recorded in migration_history.
func (d *DB) Migrate(ctx context.Context) error {
	latest, err := migrationFS.ReadFile(latestSchemaFile)
	if err != nil {
		return errors.Wrap(err, "failed to read latest schema")
	}
	if _, err := d.db.ExecContext(ctx, string(latest)); err != nil {
		return errors.Wrap(err, "failed to apply latest schema")
	}

	rows, err := d.db.QueryContext(ctx, "SELECT version FROM migration_history")
	if err != nil {
		return errors.Wrap(err, "failed to list migration history")
	}
	defer rows.Close()

	applied := map[string]bool{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return err
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}

	entries, err := fs.ReadDir(migrationFS, "migration")
	if err != nil {
		return errors.Wrap(err, "failed to read migration dir")
	}
	pending := []string{}
	for _, entry := range entries {
		if !entry.IsDir() || applied[entry.Name()] {
			continue
		}
		pending = append(pending, entry.Name())
	}
	version.SortVersions(pending)

	for _, patchVersion := range pending {
		if err := d.applyPatch(ctx, patchVersion); err != nil {
			return errors.Wrapf(err, "failed to apply migration %s", patchVersion)
		}
	}
	return nil
}

func (d *DB) applyPatch(ctx context.Context, patchVersion string) error {
	entries, err := fs.ReadDir(migrationFS, "migration/"+patchVersion)
	if err != nil {
		return err
	}
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, entry := range entries {
		buf, err := migrationFS.ReadFile("migration/" + patchVersion + "/" + entry.Name())
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, string(buf)); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO migration_history (version, created_ts) VALUES (?, ?)",
		patchVersion, time.Now().Unix(),
	); err != nil {
		return err
	}
	return tx.Commit()
}

// encodeVector serializes a vector as a little-endian float32 blob.
func encodeVector(vector []float32) []byte {
	buf := make([]byte, 4*len(vector))
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeVector deserializes a little-endian float32 blob.
func decodeVector(buf []byte) []float32 {
	vector := make([]float32, len(buf)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vector
}

// cosineDistance returns 1 - cosine similarity, matching the pgvector
// <=> operator so both drivers rank identically.
func cosineDistance(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return float32(1 - dot/(math.Sqrt(normA)*math.Sqrt(normB)))
}
