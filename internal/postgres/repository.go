// Package postgres keeps the audit trail of task transitions.
package postgres

import (
	"context"
	"fmt"
	"io/fs"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/92Bilal26/ai-junior-bilal/internal/domain"
	"github.com/92Bilal26/ai-junior-bilal/internal/postgres/migrations"
)

// TransitionRepository stores and lists transition records.
type TransitionRepository interface {
	Record(ctx context.Context, rec domain.TransitionRecord) error
	ListRecent(ctx context.Context, limit int) ([]domain.TransitionRecord, error)
	ListByTask(ctx context.Context, task string, limit int) ([]domain.TransitionRecord, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository wraps pool. The result is also a lifecycle sink.
func NewRepository(pool *pgxpool.Pool) TransitionRepository {
	return &repository{pool: pool}
}

// NewPool creates a pgxpool and verifies connectivity.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return pool, nil
}

// Migrate applies every embedded migration in file name order and returns
// the names applied. Migrations are idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) ([]string, error) {
	files, err := MigrationFiles()
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		sql, err := migrations.FS.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", f, err)
		}
		if _, err := pool.Exec(ctx, string(sql)); err != nil {
			return nil, fmt.Errorf("execute migration %s: %w", f, err)
		}
	}
	return files, nil
}

// MigrationFiles lists the embedded migrations in apply order.
func MigrationFiles() ([]string, error) {
	files, err := fs.Glob(migrations.FS, "*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func (r *repository) Record(ctx context.Context, rec domain.TransitionRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO task_transitions
			(id, task, kind, event, from_status, to_status, folder, detail, at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`,
		rec.ID, rec.Task, string(rec.Kind), rec.Event,
		string(rec.From), string(rec.To), string(rec.Folder), rec.Detail, rec.At,
	)
	if err != nil {
		return fmt.Errorf("record transition for %s: %w", rec.Task, err)
	}
	return nil
}

func (r *repository) ListRecent(ctx context.Context, limit int) ([]domain.TransitionRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, task, kind, event, from_status, to_status, folder, detail, at
		FROM task_transitions
		ORDER BY at DESC
		LIMIT $1
	`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list recent transitions: %w", err)
	}
	return collect(rows)
}

func (r *repository) ListByTask(ctx context.Context, task string, limit int) ([]domain.TransitionRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, task, kind, event, from_status, to_status, folder, detail, at
		FROM task_transitions
		WHERE task = $1
		ORDER BY at DESC
		LIMIT $2
	`, task, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list transitions for %s: %w", task, err)
	}
	return collect(rows)
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return 50
	}
	return limit
}

type rowsScanner interface {
	Next() bool
	Scan(...any) error
	Err() error
	Close()
}

func collect(rows rowsScanner) ([]domain.TransitionRecord, error) {
	defer rows.Close()
	var out []domain.TransitionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// scanRecord reads a transition row from any pgx row type.
func scanRecord(row interface {
	Scan(...any) error
}) (domain.TransitionRecord, error) {
	var (
		rec                    domain.TransitionRecord
		id                     uuid.UUID
		kind, from, to, folder string
	)
	if err := row.Scan(&id, &rec.Task, &kind, &rec.Event, &from, &to, &folder, &rec.Detail, &rec.At); err != nil {
		return rec, fmt.Errorf("scan transition: %w", err)
	}
	rec.ID = id.String()
	rec.Kind = domain.Kind(kind)
	rec.From = domain.Status(from)
	rec.To = domain.Status(to)
	rec.Folder = domain.Folder(folder)
	rec.At = rec.At.UTC()
	return rec, nil
}
