package inventory

import (
	"context"
	"errors"
	"fmt"

	"inventory-sync/core/bulk"
	"inventory-sync/core/database"
	"inventory-sync/feature/inventory/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("run not found")

var requiredColumns = map[string][]string{
	"bulk_jobs": {"id", "kind", "status", "object_count", "result_url", "error_code", "submitted_at", "observed_at"},
	"sync_runs": {"id", "kind", "status", "job_id", "total", "applied", "skipped", "rejected", "failed", "report_key", "started_at", "finished_at"},
}

// Store persists bulk jobs and sync runs. It implements bulk.Recorder.
type Store struct {
	db *gorm.DB
}

// NewStore creates a store over db.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the ledger tables.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&models.JobRecord{}, &models.SyncRun{})
}

// Check verifies that the ledger tables carry every column the store writes.
func (s *Store) Check(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	for _, table := range []string{"bulk_jobs", "sync_runs"} {
		missing, err := database.MissingColumns(db, table, requiredColumns[table])
		if err != nil {
			return fmt.Errorf("inspect %s: %w", table, err)
		}
		if len(missing) > 0 {
			return fmt.Errorf("table %s is missing columns %v", table, missing)
		}
	}
	return nil
}

// RecordJob upserts the ledger row of job.
func (s *Store) RecordJob(ctx context.Context, job bulk.Job) error {
	rec := models.JobRecord{
		ID:          job.ID,
		Kind:        string(job.Kind),
		Status:      string(job.Status),
		ObjectCount: job.ObjectCount,
		ResultURL:   job.ResultURL,
		ErrorCode:   job.ErrorCode,
		SubmittedAt: job.SubmittedAt,
		ObservedAt:  job.UpdatedAt,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "object_count", "result_url", "error_code", "observed_at"}),
		}).
		Create(&rec).Error
}

// Job returns the ledger entry of id, or nil if it was never recorded.
func (s *Store) Job(ctx context.Context, id string) (*bulk.Job, error) {
	var rec models.JobRecord
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	job := jobFromRecord(rec)
	return &job, nil
}

// ActiveJob returns the most recently submitted non-terminal job, or nil.
func (s *Store) ActiveJob(ctx context.Context) (*bulk.Job, error) {
	var rec models.JobRecord
	err := s.db.WithContext(ctx).
		Where("status IN ?", []string{string(bulk.StatusCreated), string(bulk.StatusRunning)}).
		Order("submitted_at DESC").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	job := jobFromRecord(rec)
	return &job, nil
}

// SaveRun inserts or fully updates a run.
func (s *Store) SaveRun(ctx context.Context, run *models.SyncRun) error {
	return s.db.WithContext(ctx).Save(run).Error
}

// GetRun returns the run with the given id.
func (s *Store) GetRun(ctx context.Context, id string) (*models.SyncRun, error) {
	var run models.SyncRun
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns returns the latest runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]models.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []models.SyncRun
	err := s.db.WithContext(ctx).Order("started_at DESC").Limit(limit).Find(&runs).Error
	return runs, err
}

func jobFromRecord(rec models.JobRecord) bulk.Job {
	return bulk.Job{
		ID:          rec.ID,
		Kind:        bulk.Kind(rec.Kind),
		Status:      bulk.Status(rec.Status),
		ObjectCount: rec.ObjectCount,
		ResultURL:   rec.ResultURL,
		ErrorCode:   rec.ErrorCode,
		SubmittedAt: rec.SubmittedAt,
		UpdatedAt:   rec.ObservedAt,
	}
}
