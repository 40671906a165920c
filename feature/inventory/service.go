package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"inventory-sync/core/bulk"
	"inventory-sync/core/jsonl"
	"inventory-sync/core/reconcile"
	"inventory-sync/core/remote"
	"inventory-sync/core/staged"
	"inventory-sync/feature/inventory/models"

	"github.com/google/uuid"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

var (
	// ErrBusy is returned while another export or import is running.
	ErrBusy = errors.New("another inventory run is in progress")
	// ErrNoLedger is returned by run lookups when no database is configured.
	ErrNoLedger = errors.New("run history requires a database")
	// ErrNoArchive is returned by artifact operations when no bucket is configured.
	ErrNoArchive = errors.New("artifact archive is not configured")
	// ErrNoActiveJob is returned when no bulk job occupies the slot.
	ErrNoActiveJob = errors.New("no active bulk job")
	// ErrUnknownJob is returned when a notification names a job this instance never saw.
	ErrUnknownJob = errors.New("unknown bulk job")
	// ErrLocationRequired is returned when an import names no location and several exist.
	ErrLocationRequired = errors.New("a location or all-locations mode is required")
)

// Remote is the admin API surface used by the service.
type Remote interface {
	bulk.API
	reconcile.Lister
	reconcile.LocationSource
	staged.API
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

// Settings groups the configuration sections the service reads.
type Settings struct {
	Bulk      bulk.Config
	Reconcile reconcile.Config
}

// ExportRequest selects what to export.
type ExportRequest struct {
	// Location limits the export to one location, by name or id.
	Location string `json:"location"`
}

// ExportResult is the outcome of an export run.
type ExportResult struct {
	RunID     string              `json:"run_id"`
	Job       bulk.Job            `json:"job"`
	Rows      []jsonl.Row         `json:"rows"`
	Stats     jsonl.Stats         `json:"stats"`
	ObjectKey string              `json:"object_key,omitempty"`
	Location  *reconcile.Location `json:"location,omitempty"`
}

// ImportRequest describes one import run.
type ImportRequest struct {
	Rows []reconcile.DesiredRow
	// Location is the target of single-location mode, by name or id.
	Location string
	// AllLocations requires every row to name its location.
	AllLocations bool
	// DryRun stops after classification and planning.
	DryRun bool
	// Source names where the rows came from, for the run history.
	Source string
	// Sheet is the raw input, archived alongside the run when set.
	Sheet []byte
}

// ImportResult is the outcome of an import run. Outcomes and Report are set even
// when a later stage failed.
type ImportResult struct {
	RunID     string              `json:"run_id"`
	Job       *bulk.Job           `json:"job,omitempty"`
	Outcomes  []reconcile.Outcome `json:"-"`
	Units     int                 `json:"units"`
	Report    *reconcile.Report   `json:"report"`
	ReportKey string              `json:"report_key,omitempty"`
	DryRun    bool                `json:"dry_run"`
}

// Service runs exports and imports against the remote inventory.
//
// Only one run executes at a time per service; a second caller gets ErrBusy.
type Service struct {
	remote    Remote
	jobs      *bulk.Client
	poller    *bulk.Poller
	locations *reconcile.LocationCache
	store     *Store
	archive   *Archive
	cfg       reconcile.Config
	logger    *zap.Logger

	busy   *atomic.Bool
	ctx    context.Context
	cancel context.CancelFunc
}

// NewService creates a service. store and archive are optional.
func NewService(r Remote, store *Store, archive *Archive, settings Settings, logger *zap.Logger, opts ...bulk.Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	clientOpts := []bulk.Option{bulk.WithLogger(logger)}
	if store != nil {
		clientOpts = append(clientOpts, bulk.WithRecorder(store))
	}
	clientOpts = append(clientOpts, opts...)

	jobs := bulk.NewClient(r, settings.Bulk, clientOpts...)
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		remote:    r,
		jobs:      jobs,
		poller:    bulk.NewPoller(jobs, settings.Bulk),
		locations: reconcile.NewLocationCache(r, settings.Reconcile.LocationsTTL()),
		store:     store,
		archive:   archive,
		cfg:       settings.Reconcile,
		logger:    logger,
		busy:      atomic.NewBool(false),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Close stops background runs started with StartExport or StartImport.
func (s *Service) Close() {
	s.cancel()
}

// Busy reports whether a run is in progress.
func (s *Service) Busy() bool {
	return s.busy.Load()
}

// Locations returns the cached location catalog.
func (s *Service) Locations(ctx context.Context) ([]reconcile.Location, error) {
	return s.locations.Locations(ctx)
}

// RestoreActive loads the last non-terminal job from the ledger into the job slot, so
// a job started by an earlier process still blocks new submissions. The job is polled
// once: if it finished meanwhile, the slot is freed and the ledger updated.
func (s *Service) RestoreActive(ctx context.Context) (*bulk.Job, error) {
	if s.store == nil {
		return nil, nil
	}
	job, err := s.store.ActiveJob(ctx)
	if err != nil || job == nil {
		return nil, err
	}
	s.jobs.Restore(*job)

	refreshed, err := s.jobs.Poll(ctx, *job)
	if err != nil {
		s.logger.Warn("Failed to refresh restored bulk job", zap.String("job_id", job.ID), zap.Error(err))
		refreshed = *job
	}
	s.logger.Info("Restored bulk job",
		zap.String("job_id", refreshed.ID),
		zap.String("status", string(refreshed.Status)),
	)
	return &refreshed, nil
}

// Export runs a bulk read job and returns the flattened rows.
func (s *Service) Export(ctx context.Context, req ExportRequest) (*ExportResult, error) {
	if !s.busy.CAS(false, true) {
		return nil, ErrBusy
	}
	defer s.busy.Store(false)
	return s.export(ctx, s.beginExport(ctx, req), req)
}

// StartExport runs an export in the background and returns its run id.
func (s *Service) StartExport(req ExportRequest) (string, error) {
	if !s.busy.CAS(false, true) {
		return "", ErrBusy
	}
	run := s.beginExport(s.ctx, req)
	go func() {
		defer s.busy.Store(false)
		if _, err := s.export(s.ctx, run, req); err != nil {
			s.logger.Error("Background export failed", zap.String("run_id", run.ID), zap.Error(err))
		}
	}()
	return run.ID, nil
}

// Import classifies the rows, uploads the accepted changes and waits for the write job.
func (s *Service) Import(ctx context.Context, req ImportRequest) (*ImportResult, error) {
	if !s.busy.CAS(false, true) {
		return nil, ErrBusy
	}
	defer s.busy.Store(false)
	return s.importRows(ctx, s.beginImport(ctx, req), req)
}

// StartImport runs an import in the background and returns its run id.
func (s *Service) StartImport(req ImportRequest) (string, error) {
	if !s.busy.CAS(false, true) {
		return "", ErrBusy
	}
	run := s.beginImport(s.ctx, req)
	go func() {
		defer s.busy.Store(false)
		if _, err := s.importRows(s.ctx, run, req); err != nil {
			s.logger.Error("Background import failed", zap.String("run_id", run.ID), zap.Error(err))
		}
	}()
	return run.ID, nil
}

func (s *Service) beginExport(ctx context.Context, req ExportRequest) *models.SyncRun {
	return s.beginRun(ctx, uuid.NewString(), models.RunExport, req.Location, "", false)
}

func (s *Service) beginImport(ctx context.Context, req ImportRequest) *models.SyncRun {
	label := req.Location
	if req.AllLocations {
		label = "*"
	}
	return s.beginRun(ctx, uuid.NewString(), models.RunImport, label, req.Source, req.DryRun)
}

func (s *Service) export(ctx context.Context, run *models.SyncRun, req ExportRequest) (*ExportResult, error) {
	runID := run.ID
	log := s.logger.With(zap.String("run_id", runID), zap.String("kind", models.RunExport))
	res := &ExportResult{RunID: runID}

	filter := jsonl.Filter{QuantityName: s.cfg.PayloadOptions().Name}
	if req.Location != "" {
		loc, err := s.locations.Find(ctx, req.Location)
		if err != nil {
			return nil, s.failRun(ctx, run, err)
		}
		res.Location = loc
		filter.LocationID = loc.ID
	}

	job, err := s.jobs.Submit(ctx, bulk.Spec{Kind: bulk.KindRead, Query: remote.ExportQuery})
	if err != nil {
		return nil, s.failRun(ctx, run, err)
	}
	run.JobID = job.ID
	s.saveRun(ctx, run)

	var tree *jsonl.Tree
	job, err = s.poller.Wait(ctx, job, func(ctx context.Context, job bulk.Job) error {
		t, err := s.readExport(ctx, job)
		tree = t
		return err
	})
	res.Job = job
	if err != nil {
		return nil, s.failRun(ctx, run, err)
	}

	res.Rows = jsonl.Project(tree.Products, filter)
	res.Stats = tree.Stats
	if tree.Stats.Malformed > 0 || tree.Stats.Orphans > 0 {
		log.Warn("Export result had dropped lines",
			zap.Int("malformed", tree.Stats.Malformed),
			zap.Int("orphans", tree.Stats.Orphans),
			zap.Int("unknown", tree.Stats.Unknown),
		)
	}

	if s.archive != nil {
		var buf bytes.Buffer
		if err := WriteRows(&buf, res.Rows); err != nil {
			return nil, s.failRun(ctx, run, err)
		}
		key, err := s.archive.Put(ctx, runID, ArtifactExport, buf.Bytes(), "text/csv")
		if err != nil {
			log.Warn("Failed to archive export", zap.Error(err))
		} else {
			res.ObjectKey = key
			run.ReportKey = key
		}
	}

	run.Total = len(res.Rows)
	s.finishRun(ctx, run, models.RunCompleted, nil)
	log.Info("Export finished", zap.Int("rows", len(res.Rows)), zap.String("job_id", job.ID))
	return res, nil
}

func (s *Service) readExport(ctx context.Context, job bulk.Job) (*jsonl.Tree, error) {
	if job.ResultURL == "" {
		// No objects matched the query.
		return jsonl.NewBuilder().Build(), nil
	}
	body, err := s.remote.Fetch(ctx, job.ResultURL)
	if err != nil {
		return nil, fmt.Errorf("download export result: %w", err)
	}
	defer body.Close()
	return jsonl.Decode(body)
}

func (s *Service) importRows(ctx context.Context, run *models.SyncRun, req ImportRequest) (*ImportResult, error) {
	runID := run.ID
	log := s.logger.With(zap.String("run_id", runID), zap.String("kind", models.RunImport))
	res := &ImportResult{RunID: runID, DryRun: req.DryRun}

	if s.archive != nil && len(req.Sheet) > 0 {
		if _, err := s.archive.Put(ctx, runID, ArtifactInput, req.Sheet, "text/csv"); err != nil {
			log.Warn("Failed to archive input sheet", zap.Error(err))
		}
	}

	mode, locations, err := s.resolveMode(ctx, req)
	if err != nil {
		return nil, s.failRun(ctx, run, err)
	}

	// The index is a snapshot: remote changes after this point are not seen by this run.
	index, err := reconcile.BuildIndex(ctx, s.remote, log)
	if err != nil {
		return nil, s.failRun(ctx, run, err)
	}

	differ, err := reconcile.NewDiffer(index, locations, mode)
	if err != nil {
		return nil, s.failRun(ctx, run, err)
	}
	res.Outcomes = differ.ClassifyAll(req.Rows)
	immediate := reconcile.ReportOf(res.Outcomes)
	res.Report = immediate

	units := reconcile.Plan(reconcile.DiffsOf(res.Outcomes), s.cfg.UnitSize())
	res.Units = len(units)
	log.Info("Rows classified",
		zap.Int("rows", immediate.Total),
		zap.Int("accepted", immediate.Applied),
		zap.Int("skipped", immediate.Skipped),
		zap.Int("rejected", immediate.Rejected),
		zap.Int("units", len(units)),
	)

	if req.DryRun || len(units) == 0 {
		status := models.RunCompleted
		if req.DryRun {
			status = models.RunDryRun
		}
		s.storeReport(ctx, run, res)
		s.finishRun(ctx, run, status, nil)
		return res, nil
	}

	pipeline := staged.NewPipeline(s.remote, s.jobs, s.cfg.PayloadOptions(), log)
	upload, err := pipeline.Run(ctx, units)
	if upload != nil && s.archive != nil {
		if _, aErr := s.archive.Put(ctx, runID, ArtifactPayload, upload.Payload, "application/jsonl"); aErr != nil {
			log.Warn("Failed to archive mutation payload", zap.Error(aErr))
		}
	}
	if err != nil {
		s.storeReport(ctx, run, res)
		return res, s.failRun(ctx, run, err)
	}
	job := upload.Job
	res.Job = &job
	run.JobID = job.ID
	s.saveRun(ctx, run)

	var deferred *reconcile.Report
	job, err = s.poller.Wait(ctx, job, func(ctx context.Context, job bulk.Job) error {
		r, err := s.readWriteResult(ctx, runID, job, units)
		deferred = r
		return err
	})
	res.Job = &job
	if err != nil {
		s.storeReport(ctx, run, res)
		return res, s.failRun(ctx, run, err)
	}

	res.Report = reconcile.Merge(immediate, deferred)
	s.storeReport(ctx, run, res)
	s.finishRun(ctx, run, models.RunCompleted, nil)
	log.Info("Import finished",
		zap.String("job_id", job.ID),
		zap.Int("applied", res.Report.Applied),
		zap.Int("failed", res.Report.Failed),
	)
	return res, nil
}

func (s *Service) readWriteResult(ctx context.Context, runID string, job bulk.Job, units []reconcile.BatchUnit) (*reconcile.Report, error) {
	if job.ResultURL == "" {
		return reconcile.NewReport().Finalize(), nil
	}
	body, err := s.remote.Fetch(ctx, job.ResultURL)
	if err != nil {
		return nil, fmt.Errorf("download write result: %w", err)
	}
	defer body.Close()

	var src io.Reader = body
	var raw bytes.Buffer
	if s.archive != nil {
		src = io.TeeReader(body, &raw)
	}
	report, err := reconcile.ParseWriteResult(src, units, s.logger.With(zap.String("run_id", runID)))
	if err != nil {
		return nil, err
	}
	if s.archive != nil {
		if _, err := s.archive.Put(ctx, runID, ArtifactResult, raw.Bytes(), "application/jsonl"); err != nil {
			s.logger.Warn("Failed to archive write result", zap.String("run_id", runID), zap.Error(err))
		}
	}
	return report, nil
}

func (s *Service) resolveMode(ctx context.Context, req ImportRequest) (reconcile.Mode, []reconcile.Location, error) {
	locations, err := s.locations.Locations(ctx)
	if err != nil {
		return reconcile.Mode{}, nil, err
	}
	if req.AllLocations {
		return reconcile.Mode{AllLocations: true}, locations, nil
	}
	if req.Location != "" {
		loc, err := s.locations.Find(ctx, req.Location)
		if err != nil {
			return reconcile.Mode{}, nil, err
		}
		return reconcile.Mode{Location: loc}, locations, nil
	}
	if len(locations) == 1 {
		loc := locations[0]
		return reconcile.Mode{Location: &loc}, locations, nil
	}
	return reconcile.Mode{}, nil, ErrLocationRequired
}

// CurrentJob returns the job occupying the slot after refreshing it once.
func (s *Service) CurrentJob(ctx context.Context) (bulk.Job, error) {
	job, ok := s.jobs.Active()
	if !ok {
		return bulk.Job{}, ErrNoActiveJob
	}
	return s.jobs.Poll(ctx, job)
}

// CancelCurrent cancels the job occupying the slot.
func (s *Service) CancelCurrent(ctx context.Context) (bulk.Job, error) {
	job, ok := s.jobs.Active()
	if !ok {
		return bulk.Job{}, ErrNoActiveJob
	}
	return s.jobs.Cancel(ctx, job)
}

// NotifyJobFinished handles a completion notification for jobID by polling it once.
// Repeated notifications for a terminal job have no effect.
func (s *Service) NotifyJobFinished(ctx context.Context, jobID string) (bulk.Job, error) {
	if job, ok := s.jobs.Active(); ok && job.ID == jobID {
		return s.jobs.Poll(ctx, job)
	}
	if s.store != nil {
		job, err := s.store.Job(ctx, jobID)
		if err != nil {
			return bulk.Job{}, err
		}
		if job != nil {
			return s.jobs.Poll(ctx, *job)
		}
	}
	return bulk.Job{}, fmt.Errorf("%w: %s", ErrUnknownJob, jobID)
}

// GetRun returns a recorded run.
func (s *Service) GetRun(ctx context.Context, id string) (*models.SyncRun, error) {
	if s.store == nil {
		return nil, ErrNoLedger
	}
	return s.store.GetRun(ctx, id)
}

// ListRuns returns the latest runs.
func (s *Service) ListRuns(ctx context.Context, limit int) ([]models.SyncRun, error) {
	if s.store == nil {
		return nil, ErrNoLedger
	}
	return s.store.ListRuns(ctx, limit)
}

// OpenArtifact streams an archived object, such as an import sheet kept in the bucket.
func (s *Service) OpenArtifact(ctx context.Context, key string) (io.ReadCloser, error) {
	if s.archive == nil {
		return nil, ErrNoArchive
	}
	return s.archive.Open(ctx, key)
}

// PurgeRun deletes the archived artifacts of a run.
func (s *Service) PurgeRun(ctx context.Context, id string) (int, error) {
	if s.archive == nil {
		return 0, ErrNoArchive
	}
	return s.archive.Purge(ctx, id)
}

func (s *Service) beginRun(ctx context.Context, id, kind, location, source string, dryRun bool) *models.SyncRun {
	run := &models.SyncRun{
		ID:        id,
		Kind:      kind,
		Status:    models.RunRunning,
		Location:  location,
		Source:    source,
		DryRun:    dryRun,
		StartedAt: time.Now().UTC(),
	}
	s.saveRun(ctx, run)
	return run
}

func (s *Service) saveRun(ctx context.Context, run *models.SyncRun) {
	if s.store == nil {
		return
	}
	if err := s.store.SaveRun(ctx, run); err != nil {
		s.logger.Warn("Failed to save run", zap.String("run_id", run.ID), zap.Error(err))
	}
}

func (s *Service) finishRun(ctx context.Context, run *models.SyncRun, status string, cause error) {
	now := time.Now().UTC()
	run.Status = status
	run.FinishedAt = &now
	if cause != nil {
		run.Error = cause.Error()
	}
	// The run outcome must be recorded even if the caller's context is gone.
	s.saveRun(context.WithoutCancel(ctx), run)
}

// failRun records cause on the run and returns it.
func (s *Service) failRun(ctx context.Context, run *models.SyncRun, cause error) error {
	s.finishRun(ctx, run, models.RunFailed, cause)
	return cause
}

func (s *Service) storeReport(ctx context.Context, run *models.SyncRun, res *ImportResult) {
	if res.Report == nil {
		return
	}
	run.Total = res.Report.Total
	run.Applied = res.Report.Applied
	run.Skipped = res.Report.Skipped
	run.Rejected = res.Report.Rejected
	run.Failed = res.Report.Failed

	if s.archive == nil {
		return
	}
	data, err := json.MarshalIndent(res.Report, "", "  ")
	if err != nil {
		s.logger.Warn("Failed to encode report", zap.String("run_id", run.ID), zap.Error(err))
		return
	}
	key, err := s.archive.Put(context.WithoutCancel(ctx), run.ID, ArtifactReport, data, "application/json")
	if err != nil {
		s.logger.Warn("Failed to archive report", zap.String("run_id", run.ID), zap.Error(err))
		return
	}
	run.ReportKey = key
	res.ReportKey = key
}
