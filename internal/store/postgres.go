package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/joanies-kitchen/recipes-cli/internal/db"
	"github.com/joanies-kitchen/recipes-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(errors.Join(ErrUnavailable, err), "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wires an existing pool; used by tests.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS recipes (
	id                TEXT PRIMARY KEY,
	source            TEXT NOT NULL,
	source_id         TEXT NOT NULL,
	fingerprint       TEXT NOT NULL UNIQUE,
	name              TEXT NOT NULL,
	description       TEXT,
	ingredients       JSONB NOT NULL,
	instructions      JSONB NOT NULL,
	cuisine           TEXT,
	difficulty        TEXT,
	prep_time_minutes INTEGER,
	cook_time_minutes INTEGER,
	servings          INTEGER,
	quality_score     DOUBLE PRECISION,
	tags              JSONB,
	ingested_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	is_system_recipe  BOOLEAN NOT NULL DEFAULT true,
	UNIQUE (source, source_id)
);

CREATE INDEX IF NOT EXISTS idx_recipes_fingerprint ON recipes(fingerprint);
CREATE INDEX IF NOT EXISTS idx_recipes_source ON recipes(source);

CREATE TABLE IF NOT EXISTS tools (
	id       TEXT PRIMARY KEY,
	name     TEXT NOT NULL UNIQUE,
	category TEXT NOT NULL DEFAULT 'other'
);

CREATE TABLE IF NOT EXISTS recipe_tools (
	recipe_id TEXT NOT NULL REFERENCES recipes(id),
	tool_id   TEXT NOT NULL REFERENCES tools(id),
	PRIMARY KEY (recipe_id, tool_id)
);

CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	source     TEXT NOT NULL,
	dry_run    BOOLEAN NOT NULL DEFAULT true,
	status     TEXT NOT NULL DEFAULT 'running',
	report     JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_source ON runs(source);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return eris.Wrap(errors.Join(ErrUnavailable, err), "postgres: ping")
	}
	return nil
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) ExistsByFingerprint(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM recipes WHERE fingerprint = $1)`,
		key,
	).Scan(&exists)
	if err != nil {
		// A failed ping marks the lookup error run-fatal, not record-fatal.
		if ctx.Err() == nil && s.pool.Ping(ctx) != nil {
			err = errors.Join(ErrUnavailable, err)
		}
		return false, eris.Wrap(err, "postgres: exists by fingerprint")
	}
	return exists, nil
}

// Begin opens a batch-commit transaction.
func (s *PostgresStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(errors.Join(ErrUnavailable, err), "postgres: begin")
	}
	return &postgresTx{tx: tx}, nil
}

type postgresTx struct {
	tx pgx.Tx
}

func (t *postgresTx) InsertRecipe(ctx context.Context, r *model.Recipe) error {
	ingredients, err := json.Marshal(r.Ingredients)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal ingredients")
	}
	instructions, err := json.Marshal(r.Instructions)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal instructions")
	}
	tags, err := json.Marshal(r.Tags)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal tags")
	}

	_, err = t.tx.Exec(ctx,
		`INSERT INTO recipes (
			id, source, source_id, fingerprint, name, description,
			ingredients, instructions, cuisine, difficulty,
			prep_time_minutes, cook_time_minutes, servings,
			quality_score, tags, ingested_at, is_system_recipe
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		r.ID, string(r.Source), r.SourceID, r.Fingerprint, r.Name, nullString(r.Description),
		ingredients, instructions, nullString(r.Cuisine), string(r.Difficulty),
		r.PrepTimeMinutes, r.CookTimeMinutes, r.Servings,
		r.QualityScore, tags, r.IngestedAt, r.IsSystemRecipe,
	)
	return eris.Wrapf(err, "postgres: insert recipe %s", r.SourceID)
}

func (t *postgresTx) UpsertTool(ctx context.Context, name, category string) (string, error) {
	// The no-op DO UPDATE makes RETURNING yield the existing id on conflict.
	var id string
	err := t.tx.QueryRow(ctx,
		`INSERT INTO tools (id, name, category) VALUES ($1, $2, $3)
		 ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id`,
		uuid.New().String(), name, category,
	).Scan(&id)
	if err != nil {
		return "", eris.Wrapf(err, "postgres: upsert tool %s", name)
	}
	return id, nil
}

func (t *postgresTx) InsertRecipeTool(ctx context.Context, recipeID, toolID string) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO recipe_tools (recipe_id, tool_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		recipeID, toolID,
	)
	return eris.Wrap(err, "postgres: insert recipe tool")
}

func (t *postgresTx) Commit(ctx context.Context) error {
	return eris.Wrap(t.tx.Commit(ctx), "postgres: commit")
}

func (t *postgresTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return eris.Wrap(err, "postgres: rollback")
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, source model.Source, dryRun bool) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, source, dry_run, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, string(source), dryRun, string(model.RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		Source:    source,
		DryRun:    dryRun,
		Status:    model.RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, status model.RunStatus, report *model.Report) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal report")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, report = $2, updated_at = $3 WHERE id = $4`,
		string(status), reportJSON, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, source, dry_run, status, report, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	)
	r, err := scanRun(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, source, dry_run, status, report, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = $1`
	}
	if filter.Source != "" {
		args = append(args, string(filter.Source))
		query += ` AND source = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT $` + strconv.Itoa(len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var source string
	var status string
	var reportJSON []byte

	err := row.Scan(&r.ID, &source, &r.DryRun, &status, &reportJSON, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.Source = model.Source(source)
	r.Status = model.RunStatus(status)

	if len(reportJSON) > 0 {
		r.Report = &model.Report{}
		if err := json.Unmarshal(reportJSON, r.Report); err != nil {
			return nil, eris.Wrap(err, "unmarshal report")
		}
	}
	return &r, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

