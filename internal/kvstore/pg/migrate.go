package pg

import (
	"context"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"

	"github.com/pagopa/interop-token-platform/internal/observability/logger"
	migrations "github.com/pagopa/interop-token-platform/migrations/postgres"
)

// migrationFilePattern: NNNN_nombre.sql
var migrationFilePattern = regexp.MustCompile(`^(\d+)_(.+)\.sql$`)

type migration struct {
	version int
	name    string
	sql     string
}

// Migrate aplica las migraciones embebidas pendientes. Idempotente: lleva
// registro en schema_migrations y saltea las ya aplicadas.
func (s *Store) Migrate(ctx context.Context) error {
	const createTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version    INT PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`
	if _, err := s.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("schema_migrations: %w", err)
	}

	ms, err := parseMigrations()
	if err != nil {
		return err
	}

	for _, m := range ms {
		var exists bool
		err := s.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, m.version).Scan(&exists)
		if err != nil {
			return fmt.Errorf("migration %d check: %w", m.version, err)
		}
		if exists {
			continue
		}
		if _, err := s.pool.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
		if _, err := s.pool.Exec(ctx,
			`INSERT INTO schema_migrations (version) VALUES ($1)`, m.version); err != nil {
			return fmt.Errorf("migration %d record: %w", m.version, err)
		}
		logger.S().Infow("migration applied", "version", m.version, "name", m.name)
	}
	return nil
}

func parseMigrations() ([]migration, error) {
	var ms []migration
	entries, err := fs.ReadDir(migrations.FS, ".")
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		matches := migrationFilePattern.FindStringSubmatch(e.Name())
		if matches == nil {
			continue
		}
		version, _ := strconv.Atoi(matches[1])
		b, err := fs.ReadFile(migrations.FS, e.Name())
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", e.Name(), err)
		}
		ms = append(ms, migration{version: version, name: matches[2], sql: string(b)})
	}
	sort.Slice(ms, func(i, j int) bool { return ms[i].version < ms[j].version })
	return ms, nil
}
