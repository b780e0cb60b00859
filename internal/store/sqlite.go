package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/joanies-kitchen/recipes-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Intended for local
// and development use; production ingestion targets Postgres.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS recipes (
	id                TEXT PRIMARY KEY,
	source            TEXT NOT NULL,
	source_id         TEXT NOT NULL,
	fingerprint       TEXT NOT NULL UNIQUE,
	name              TEXT NOT NULL,
	description       TEXT,
	ingredients       TEXT NOT NULL,
	instructions      TEXT NOT NULL,
	cuisine           TEXT,
	difficulty        TEXT,
	prep_time_minutes INTEGER,
	cook_time_minutes INTEGER,
	servings          INTEGER,
	quality_score     REAL,
	tags              TEXT,
	ingested_at       DATETIME NOT NULL,
	is_system_recipe  INTEGER NOT NULL DEFAULT 1,
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
	dry_run    INTEGER NOT NULL DEFAULT 1,
	status     TEXT NOT NULL DEFAULT 'running',
	report     TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_source ON runs(source);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return eris.Wrap(errors.Join(ErrUnavailable, err), "sqlite: ping")
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ExistsByFingerprint(ctx context.Context, key string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM recipes WHERE fingerprint = ?)`,
		key,
	).Scan(&exists)
	if err != nil {
		// A failed ping marks the lookup error run-fatal, not record-fatal.
		if ctx.Err() == nil && s.db.PingContext(ctx) != nil {
			err = errors.Join(ErrUnavailable, err)
		}
		return false, eris.Wrap(err, "sqlite: exists by fingerprint")
	}
	return exists == 1, nil
}

func (s *SQLiteStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(errors.Join(ErrUnavailable, err), "sqlite: begin")
	}
	return &sqliteTx{tx: tx}, nil
}

type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) InsertRecipe(ctx context.Context, r *model.Recipe) error {
	ingredients, err := json.Marshal(r.Ingredients)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal ingredients")
	}
	instructions, err := json.Marshal(r.Instructions)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal instructions")
	}
	tags, err := json.Marshal(r.Tags)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal tags")
	}

	_, err = t.tx.ExecContext(ctx,
		`INSERT INTO recipes (
			id, source, source_id, fingerprint, name, description,
			ingredients, instructions, cuisine, difficulty,
			prep_time_minutes, cook_time_minutes, servings,
			quality_score, tags, ingested_at, is_system_recipe
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, string(r.Source), r.SourceID, r.Fingerprint, r.Name, r.Description,
		string(ingredients), string(instructions), r.Cuisine, string(r.Difficulty),
		r.PrepTimeMinutes, r.CookTimeMinutes, r.Servings,
		r.QualityScore, string(tags), r.IngestedAt.UTC(), r.IsSystemRecipe,
	)
	return eris.Wrapf(err, "sqlite: insert recipe %s", r.SourceID)
}

func (t *sqliteTx) UpsertTool(ctx context.Context, name, category string) (string, error) {
	id := uuid.New().String()
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO tools (id, name, category) VALUES (?, ?, ?) ON CONFLICT (name) DO NOTHING`,
		id, name, category,
	)
	if err != nil {
		return "", eris.Wrapf(err, "sqlite: upsert tool %s", name)
	}

	err = t.tx.QueryRowContext(ctx, `SELECT id FROM tools WHERE name = ?`, name).Scan(&id)
	if err != nil {
		return "", eris.Wrapf(err, "sqlite: select tool %s", name)
	}
	return id, nil
}

func (t *sqliteTx) InsertRecipeTool(ctx context.Context, recipeID, toolID string) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO recipe_tools (recipe_id, tool_id) VALUES (?, ?)`,
		recipeID, toolID,
	)
	return eris.Wrap(err, "sqlite: insert recipe tool")
}

func (t *sqliteTx) Commit(ctx context.Context) error {
	return eris.Wrap(t.tx.Commit(), "sqlite: commit")
}

func (t *sqliteTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback()
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		return eris.Wrap(err, "sqlite: rollback")
	}
	return nil
}

func (s *SQLiteStore) CreateRun(ctx context.Context, source model.Source, dryRun bool) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, source, dry_run, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, string(source), dryRun, string(model.RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
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

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, status model.RunStatus, report *model.Report) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal report")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, report = ?, updated_at = ? WHERE id = ?`,
		string(status), string(reportJSON), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source, dry_run, status, report, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)

	var r model.Run
	var source, status string
	var reportJSON sql.NullString

	err := row.Scan(&r.ID, &source, &r.DryRun, &status, &reportJSON, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("run not found: %s", runID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get run")
	}
	r.Source = model.Source(source)
	r.Status = model.RunStatus(status)

	if reportJSON.Valid && reportJSON.String != "" {
		r.Report = &model.Report{}
		if err := json.Unmarshal([]byte(reportJSON.String), r.Report); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal report")
		}
	}
	return &r, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, source, dry_run, status, report, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Source != "" {
		query += ` AND source = ?`
		args = append(args, string(filter.Source))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var source, status string
		var reportJSON sql.NullString
		if err := rows.Scan(&r.ID, &source, &r.DryRun, &status, &reportJSON, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		r.Source = model.Source(source)
		r.Status = model.RunStatus(status)
		if reportJSON.Valid && reportJSON.String != "" {
			r.Report = &model.Report{}
			if err := json.Unmarshal([]byte(reportJSON.String), r.Report); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal report")
			}
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}
