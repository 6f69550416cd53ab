package postgres

import (
	"context"
	"embed"
	"io/fs"
	"time"

	"github.com/pkg/errors"

	"github.com/shenlehan/fashion-recommendation/internal/version"
)

//go:embed migration
var migrationFS embed.FS

const latestSchemaFile = "migration/LATEST.sql"

// Migrate bootstraps a fresh database from LATEST.sql and applies any
// versioned patch directories (migration/<semver>/*.sql) that are not yet
// recorded in migration_history, in semver order.
func (d *DB) Migrate(ctx context.Context) error {
	latest, err := migrationFS.ReadFile(latestSchemaFile)
	if err != nil {
		return errors.Wrap(err, "failed to read latest schema")
	}
	if _, err := d.db.ExecContext(ctx, string(latest)); err != nil {
		return errors.Wrap(err, "failed to apply latest schema")
	}

	applied, err := d.appliedMigrations(ctx)
	if err != nil {
		return err
	}

	pending, err := pendingPatchVersions(migrationFS, applied)
	if err != nil {
		return err
	}
	for _, patchVersion := range pending {
		if err := d.applyPatch(ctx, patchVersion); err != nil {
			return errors.Wrapf(err, "failed to apply migration %s", patchVersion)
		}
	}
	return nil
}

func (d *DB) appliedMigrations(ctx context.Context) (map[string]bool, error) {
	rows, err := d.db.QueryContext(ctx, "SELECT version FROM migration_history")
	if err != nil {
		return nil, errors.Wrap(err, "failed to list migration history")
	}
	defer rows.Close()

	applied := map[string]bool{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
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
	stmt := "INSERT INTO migration_history (version, created_ts) VALUES (" + placeholders(2) + ") ON CONFLICT (version) DO NOTHING"
	if _, err := tx.ExecContext(ctx, stmt, patchVersion, time.Now().Unix()); err != nil {
		return err
	}
	return tx.Commit()
}

// pendingPatchVersions lists migration/<semver> directories not yet applied,
// sorted ascending.
func pendingPatchVersions(migrations embed.FS, applied map[string]bool) ([]string, error) {
	entries, err := fs.ReadDir(migrations, "migration")
	if err != nil {
		return nil, errors.Wrap(err, "failed to read migration dir")
	}
	pending := []string{}
	for _, entry := range entries {
		if !entry.IsDir() || applied[entry.Name()] {
			continue
		}
		pending = append(pending, entry.Name())
	}
	version.SortVersions(pending)
	return pending, nil
}
