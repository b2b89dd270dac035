package postgres

import (
	"cmp"
	"context"
	"embed"
	"fmt"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrateLockID keys the advisory lock held while migrating, so two clients
// starting against an empty database don't race on CREATE TABLE.
const migrateLockID = 0x5354554449 // "STUDI"

type migration struct {
	version int
	file    string
	sql     string
}

// migrate applies every embedded migration newer than the recorded schema
// version. All of it runs in one transaction under an advisory lock.
func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	pending, err := loadMigrations()
	if err != nil {
		return err
	}

	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, migrateLockID); err != nil {
			return classify("migrate lock", err)
		}

		if _, err := tx.Exec(ctx, `CREATE TABLE IF NOT EXISTS client_state_version (
			version INTEGER NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`); err != nil {
			return classify("migrate init", err)
		}

		var current int
		if err := tx.QueryRow(ctx, `SELECT coalesce(max(version), 0) FROM client_state_version`).Scan(&current); err != nil {
			return classify("migrate version", err)
		}

		for _, m := range pending {
			if m.version <= current {
				continue
			}

			log.Info().Int("version", m.version).Str("file", m.file).Msg("applying migration")

			if _, err := tx.Exec(ctx, m.sql); err != nil {
				return fmt.Errorf("migration %s: %w", m.file, classify("migrate", err))
			}
			if _, err := tx.Exec(ctx, `INSERT INTO client_state_version (version) VALUES ($1)`, m.version); err != nil {
				return classify("migrate record", err)
			}
		}

		return nil
	})
}

// loadMigrations returns the embedded migrations ordered by the numeric
// prefix of their file name, e.g. 1_client_state.sql.
func loadMigrations() ([]migration, error) {
	files, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("read embedded migrations: %w", err)
	}

	out := make([]migration, 0, len(files))
	for _, f := range files {
		prefix, _, ok := strings.Cut(f.Name(), "_")
		if !ok {
			return nil, fmt.Errorf("migration %s: name must start with <version>_", f.Name())
		}

		version, err := strconv.Atoi(prefix)
		if err != nil {
			return nil, fmt.Errorf("migration %s: bad version: %w", f.Name(), err)
		}

		body, err := migrationsFS.ReadFile(path.Join("migrations", f.Name()))
		if err != nil {
			return nil, err
		}

		out = append(out, migration{version: version, file: f.Name(), sql: string(body)})
	}

	slices.SortFunc(out, func(a, b migration) int { return cmp.Compare(a.version, b.version) })

	return out, nil
}
