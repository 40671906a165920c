package inventory_test

import (
	"context"
	"testing"
	"time"

	"inventory-sync/core/bulk"
	"inventory-sync/feature/inventory"
	"inventory-sync/feature/inventory/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to open mock sql db: %v", err)
	}

	dialector := mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to open gorm db: %v", err)
	}

	return gormDB, mock
}

func TestStore_RecordJobUpserts(t *testing.T) {
	store := newLedger(t)
	ctx := context.Background()
	submitted := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	job := bulk.Job{ID: "op-1", Kind: bulk.KindWrite, Status: bulk.StatusCreated, SubmittedAt: submitted, UpdatedAt: submitted}
	require.NoError(t, store.RecordJob(ctx, job))

	active, err := store.ActiveJob(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "op-1", active.ID)
	assert.Equal(t, bulk.KindWrite, active.Kind)

	job.Status = bulk.StatusCompleted
	job.ObjectCount = 12
	job.ResultURL = "https://results.test/op-1"
	job.UpdatedAt = submitted.Add(time.Minute)
	require.NoError(t, store.RecordJob(ctx, job))

	got, err := store.Job(ctx, "op-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, bulk.StatusCompleted, got.Status)
	assert.Equal(t, int64(12), got.ObjectCount)
	assert.Equal(t, "https://results.test/op-1", got.ResultURL)

	active, err = store.ActiveJob(ctx)
	require.NoError(t, err)
	assert.Nil(t, active)

	missing, err := store.Job(ctx, "op-404")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStore_ActiveJobPicksLatest(t *testing.T) {
	store := newLedger(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.RecordJob(ctx, bulk.Job{ID: "old", Kind: bulk.KindRead, Status: bulk.StatusRunning, SubmittedAt: base}))
	require.NoError(t, store.RecordJob(ctx, bulk.Job{ID: "new", Kind: bulk.KindWrite, Status: bulk.StatusCreated, SubmittedAt: base.Add(time.Hour)}))

	active, err := store.ActiveJob(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "new", active.ID)
}

func TestStore_Runs(t *testing.T) {
	store := newLedger(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	first := &models.SyncRun{ID: "run-1", Kind: models.RunExport, Status: models.RunRunning, StartedAt: base}
	second := &models.SyncRun{ID: "run-2", Kind: models.RunImport, Status: models.RunRunning, StartedAt: base.Add(time.Minute)}
	require.NoError(t, store.SaveRun(ctx, first))
	require.NoError(t, store.SaveRun(ctx, second))

	finished := base.Add(2 * time.Minute)
	first.Status = models.RunCompleted
	first.Total = 3
	first.FinishedAt = &finished
	require.NoError(t, store.SaveRun(ctx, first))

	got, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, models.RunCompleted, got.Status)
	assert.Equal(t, 3, got.Total)
	assert.True(t, got.Finished())

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].ID)

	_, err = store.GetRun(ctx, "run-404")
	assert.ErrorIs(t, err, inventory.ErrRunNotFound)
}

func TestStore_Check(t *testing.T) {
	store := newLedger(t)
	assert.NoError(t, store.Check(context.Background()))
}

func TestStore_Check_MissingColumns(t *testing.T) {
	db, mock := setupMockDB(t)
	store := inventory.NewStore(db)

	mock.ExpectQuery("information_schema.tables").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	rows := sqlmock.NewRows([]string{"Field", "Type", "Null", "Key", "Default", "Extra"}).
		AddRow("id", "varchar(191)", "NO", "PRI", nil, "").
		AddRow("kind", "varchar(16)", "YES", "MUL", nil, "").
		AddRow("status", "varchar(16)", "YES", "MUL", nil, "")
	mock.ExpectQuery("SHOW COLUMNS FROM `bulk_jobs`").WillReturnRows(rows)

	err := store.Check(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bulk_jobs")
	assert.Contains(t, err.Error(), "object_count")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_RecordJob_MySQL(t *testing.T) {
	db, mock := setupMockDB(t)
	store := inventory.NewStore(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `bulk_jobs`.*ON DUPLICATE KEY UPDATE").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := store.RecordJob(context.Background(), bulk.Job{ID: "op-1", Kind: bulk.KindRead, Status: bulk.StatusRunning})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
