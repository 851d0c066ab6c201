package db

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migration is one numbered SQL file such as 001_slot_engine.sql.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

type MigrationStatus struct {
	Migration
	AppliedAt *time.Time
}

func (s MigrationStatus) Applied() bool { return s.AppliedAt != nil }

const migrateLockKey = "slotengine:migrate"

const createMigrationsTable = `CREATE TABLE IF NOT EXISTS _migrations (
    version    INTEGER PRIMARY KEY,
    name       VARCHAR(255) NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Migrator applies the slot engine schema to the database's search_path.
type Migrator struct {
	pool  *pgxpool.Pool
	files fs.FS
}

// NewMigrator reads migrations from files, normally migrations.FS.
func NewMigrator(pool *pgxpool.Pool, files fs.FS) *Migrator {
	return &Migrator{pool: pool, files: files}
}

// LoadMigrations returns the numbered .sql files of files in version order.
// Files without a numeric prefix are ignored; a repeated version is an error.
func LoadMigrations(files fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(files, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	var out []Migration
	seen := make(map[int]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		prefix, _, ok := strings.Cut(name, "_")
		if !ok {
			continue
		}
		version, err := strconv.Atoi(prefix)
		if err != nil {
			continue
		}
		if other, dup := seen[version]; dup {
			return nil, fmt.Errorf("migration version %d used by %s and %s", version, other, name)
		}
		seen[version] = name

		content, err := fs.ReadFile(files, name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		out = append(out, Migration{Version: version, Name: name, SQL: string(content)})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// pending selects the unapplied migrations up to and including to; to <= 0
// means all of them.
func pending(all []Migration, applied map[int]time.Time, to int) []Migration {
	var out []Migration
	for _, mig := range all {
		if to > 0 && mig.Version > to {
			break
		}
		if _, ok := applied[mig.Version]; !ok {
			out = append(out, mig)
		}
	}
	return out
}

func statuses(all []Migration, applied map[int]time.Time) []MigrationStatus {
	out := make([]MigrationStatus, 0, len(all))
	for _, mig := range all {
		st := MigrationStatus{Migration: mig}
		if at, ok := applied[mig.Version]; ok {
			st.AppliedAt = &at
		}
		out = append(out, st)
	}
	return out
}

func appliedVersions(ctx context.Context, q Queryable) (map[int]time.Time, error) {
	if _, err := q.Exec(ctx, createMigrationsTable); err != nil {
		return nil, fmt.Errorf("create _migrations table: %w", err)
	}
	rows, err := q.Query(ctx, `SELECT version, applied_at FROM _migrations`)
	if err != nil {
		return nil, fmt.Errorf("query applied versions: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]time.Time)
	for rows.Next() {
		var v int
		var at time.Time
		if err := rows.Scan(&v, &at); err != nil {
			return nil, fmt.Errorf("scan migration version: %w", err)
		}
		applied[v] = at
	}
	return applied, rows.Err()
}

// Up applies the pending migrations up to version to (0 for all) in a single
// transaction under an advisory lock. Concurrent runs apply each file once
// and a failing file leaves the schema unchanged.
func (m *Migrator) Up(ctx context.Context, to int) ([]Migration, error) {
	all, err := LoadMigrations(m.files)
	if err != nil {
		return nil, err
	}

	var done []Migration
	err = NewTxRunner(m.pool).WithLock(ctx, migrateLockKey, func(ctx context.Context) error {
		tx := TxFromContext(ctx)
		applied, err := appliedVersions(ctx, tx)
		if err != nil {
			return err
		}
		for _, mig := range pending(all, applied, to) {
			if _, err := tx.Exec(ctx, mig.SQL); err != nil {
				return fmt.Errorf("apply migration %d (%s): %w", mig.Version, mig.Name, err)
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO _migrations (version, name) VALUES ($1, $2)`, mig.Version, mig.Name,
			); err != nil {
				return fmt.Errorf("record migration %d: %w", mig.Version, err)
			}
			done = append(done, mig)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return done, nil
}

// Status lists every known migration with its applied time, if any.
func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	all, err := LoadMigrations(m.files)
	if err != nil {
		return nil, err
	}
	applied, err := appliedVersions(ctx, m.pool)
	if err != nil {
		return nil, err
	}
	return statuses(all, applied), nil
}

// Pending lists the migrations Up would apply.
func (m *Migrator) Pending(ctx context.Context) ([]Migration, error) {
	all, err := LoadMigrations(m.files)
	if err != nil {
		return nil, err
	}
	applied, err := appliedVersions(ctx, m.pool)
	if err != nil {
		return nil, err
	}
	return pending(all, applied, 0), nil
}
