package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joanies-kitchen/recipes-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresWithPool(mock), mock
}

func TestPostgresStore_ExistsByFingerprint(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM recipes WHERE fingerprint = \$1\)`).
		WithArgs("pizza|flour,mozzarella,tomato").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := s.ExistsByFingerprint(context.Background(), "pizza|flour,mozzarella,tomato")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ExistsByFingerprint_Missing(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("unseen-key").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	exists, err := s.ExistsByFingerprint(context.Background(), "unseen-key")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ExistsByFingerprint_DeadConnectionUnavailable(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("any-key").
		WillReturnError(errors.New("connection refused"))
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	_, err := s.ExistsByFingerprint(context.Background(), "any-key")
	require.Error(t, err)
	assert.True(t, IsUnavailable(err), "a dead database during lookup must halt the run")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ExistsByFingerprint_QueryErrorNotUnavailable(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("any-key").
		WillReturnError(errors.New("deadlock detected"))
	mock.ExpectPing()

	_, err := s.ExistsByFingerprint(context.Background(), "any-key")
	require.Error(t, err)
	assert.False(t, IsUnavailable(err), "a query error with a live connection fails the record only")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_BatchCommit(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO recipes`).
		WithArgs(
			pgxmock.AnyArg(), "csv_dump", "rec-001", pgxmock.AnyArg(), "Margherita Pizza",
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`INSERT INTO tools .+ ON CONFLICT \(name\) DO UPDATE SET name = EXCLUDED\.name`).
		WithArgs(pgxmock.AnyArg(), "Skillet", "stovetop").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("tool-1"))
	mock.ExpectExec(`INSERT INTO recipe_tools .+ ON CONFLICT DO NOTHING`).
		WithArgs("recipe-1", "tool-1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	ctx := context.Background()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)

	err = tx.InsertRecipe(ctx, &model.Recipe{
		ID:           "recipe-1",
		Source:       model.SourceCSVDump,
		SourceID:     "rec-001",
		Fingerprint:  "margherita pizza|flour,mozzarella,tomato",
		Name:         "Margherita Pizza",
		Ingredients:  []string{"flour", "tomato sauce", "mozzarella"},
		Instructions: []string{"Make the pizza."},
		Difficulty:   model.DifficultyEasy,
		IngestedAt:   time.Now().UTC(),
	})
	require.NoError(t, err)

	toolID, err := tx.UpsertTool(ctx, "Skillet", "stovetop")
	require.NoError(t, err)
	assert.Equal(t, "tool-1", toolID)

	require.NoError(t, tx.InsertRecipeTool(ctx, "recipe-1", toolID))
	require.NoError(t, tx.Commit(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_BatchRollback(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO recipes`).
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnError(pgx.ErrTxCommitRollback)
	mock.ExpectRollback()

	ctx := context.Background()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)

	err = tx.InsertRecipe(ctx, &model.Recipe{ID: "r1", SourceID: "rec-002", Name: "X"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rec-002")

	require.NoError(t, tx.Rollback(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(pgxmock.AnyArg(), "scraped_json", false, "running", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateRun(context.Background(), model.SourceScraped, false)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.SourceScraped, run.Source)
	assert.Equal(t, model.RunStatusRunning, run.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompleteRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET status = \$1, report = \$2, updated_at = \$3 WHERE id = \$4`).
		WithArgs("complete", pgxmock.AnyArg(), pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	report := &model.Report{Source: model.SourceCSVDump, Processed: 10, Inserted: 8, Duplicates: 2}
	err := s.CompleteRun(context.Background(), "run-1", model.RunStatusComplete, report)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompleteRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), "ghost-run").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.CompleteRun(context.Background(), "ghost-run", model.RunStatusComplete, &model.Report{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	reportJSON, err := json.Marshal(&model.Report{Processed: 5, Inserted: 5})
	require.NoError(t, err)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT id, source, dry_run, status, report, created_at, updated_at FROM runs WHERE id = \$1`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "source", "dry_run", "status", "report", "created_at", "updated_at"}).
			AddRow("run-1", "csv_dump", false, "complete", reportJSON, now, now))

	run, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, model.SourceCSVDump, run.Source)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	require.NotNil(t, run.Report)
	assert.Equal(t, 5, run.Report.Inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, source, dry_run, status, report, created_at, updated_at FROM runs WHERE id = \$1`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nonexistent-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get run")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns_Filters(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT .+ FROM runs WHERE 1=1 AND status = \$1 AND source = \$2 ORDER BY created_at DESC LIMIT \$3`).
		WithArgs("complete", "csv_dump", 10).
		WillReturnRows(pgxmock.NewRows([]string{"id", "source", "dry_run", "status", "report", "created_at", "updated_at"}).
			AddRow("run-1", "csv_dump", false, "complete", []byte(nil), now, now))

	runs, err := s.ListRuns(context.Background(), RunFilter{
		Status: model.RunStatusComplete,
		Source: model.SourceCSVDump,
		Limit:  10,
	})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.Nil(t, runs[0].Report)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS recipes`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
