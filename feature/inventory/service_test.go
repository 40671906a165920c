package inventory_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"inventory-sync/core/bulk"
	"inventory-sync/core/database"
	"inventory-sync/core/reconcile"
	"inventory-sync/core/remote"
	"inventory-sync/core/staged"
	"inventory-sync/core/storage/mocks"
	"inventory-sync/feature/inventory"
	"inventory-sync/feature/inventory/models"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const writeArtifact = `{"data":{"inventorySetQuantities":{"userErrors":[]}},"__lineNumber":0}
{"data":{"inventorySetQuantities":{"userErrors":[{"field":["input","quantities","0","quantity"],"message":"Quantity is not allowed","code":"INVALID"}]}},"__lineNumber":1}
`

func importRows() []reconcile.DesiredRow {
	return []reconcile.DesiredRow{
		{Line: 2, SKU: "TEE-S", Quantity: qty(5), LocationLabel: "Main"},
		{Line: 3, SKU: "tee-s", Quantity: qty(9), LocationLabel: "backroom"},
		{Line: 4, SKU: "TEE-L", Quantity: qty(4), LocationLabel: "Main"},
		{Line: 5, SKU: "ZZ", Quantity: qty(1), LocationLabel: "Main"},
		{Line: 6, SKU: "TEE-S", Quantity: qty(7), LocationLabel: "MAIN"},
		{Line: 7, SKU: "CAP", Quantity: qty(3), LocationLabel: "Main"},
	}
}

func newLedger(t *testing.T) *inventory.Store {
	t.Helper()
	db, err := database.Connect(database.Config{Driver: "sqlite", Name: ":memory:"})
	require.NoError(t, err)
	store := inventory.NewStore(db)
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func TestService_Export(t *testing.T) {
	fake := newFakeRemote()
	svc := newService(t, fake, nil, nil)

	res, err := svc.Export(context.Background(), inventory.ExportRequest{})
	require.NoError(t, err)

	specs := fake.Submitted()
	require.Len(t, specs, 1)
	assert.Equal(t, bulk.KindRead, specs[0].Kind)
	assert.Equal(t, remote.ExportQuery, specs[0].Query)

	assert.Equal(t, bulk.StatusCompleted, res.Job.Status)
	require.Len(t, res.Rows, 3)
	assert.Equal(t, "TEE-S", res.Rows[0].SKU)
	assert.Equal(t, 5, res.Rows[0].Quantity)
	assert.Equal(t, "TEE-L", res.Rows[2].SKU)
	assert.False(t, res.Rows[2].Stocked)
	assert.False(t, svc.Busy())

	_, ok := jobActive(t, svc)
	assert.False(t, ok, "completed export leaves the slot free")
}

func TestService_Export_LocationFilter(t *testing.T) {
	fake := newFakeRemote()
	svc := newService(t, fake, nil, nil)

	res, err := svc.Export(context.Background(), inventory.ExportRequest{Location: "backroom"})
	require.NoError(t, err)
	require.NotNil(t, res.Location)
	assert.Equal(t, backroomLocation.ID, res.Location.ID)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, 2, res.Rows[0].Quantity)

	_, err = svc.Export(context.Background(), inventory.ExportRequest{Location: "Warehouse 9"})
	assert.ErrorIs(t, err, reconcile.ErrUnknownLocation)
}

func TestService_Export_JobFailed(t *testing.T) {
	fake := newFakeRemote()
	fake.final[bulk.KindRead] = bulk.StatusFailed
	svc := newService(t, fake, nil, nil)

	_, err := svc.Export(context.Background(), inventory.ExportRequest{})
	var failure *bulk.JobFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, "INTERNAL_SERVER_ERROR", failure.Job.ErrorCode)
}

func TestService_Import(t *testing.T) {
	fake := newFakeRemote()
	fake.results[bulk.KindWrite] = writeArtifact
	svc := newService(t, fake, nil, nil)

	res, err := svc.Import(context.Background(), inventory.ImportRequest{Rows: importRows(), AllLocations: true})
	require.NoError(t, err)

	reasons := make([]string, 0, len(res.Outcomes))
	for _, o := range res.Outcomes {
		reasons = append(reasons, string(o.Verdict)+":"+o.Reason)
	}
	assert.Equal(t, []string{
		"skipped:" + reconcile.ReasonAlreadyMatches,
		"accepted:",
		"accepted:",
		"rejected:" + reconcile.ReasonVariantNotFound,
		"rejected:" + reconcile.ReasonDuplicateRow,
		"rejected:" + reconcile.ReasonNotStocked,
	}, reasons)

	specs := fake.Submitted()
	require.Len(t, specs, 1)
	assert.Equal(t, bulk.KindWrite, specs[0].Kind)
	assert.Equal(t, reconcile.SetQuantitiesMutation, specs[0].Mutation)
	assert.Contains(t, specs[0].StagedUploadKey, "tmp/1/bulk/")

	uploads := fake.Uploads()
	require.Len(t, uploads, 1)
	assert.Equal(t, 2, bytes.Count(uploads[0], []byte("\n")), "one line per unit")

	assert.Equal(t, 2, res.Units)
	require.NotNil(t, res.Job)
	assert.Equal(t, bulk.StatusCompleted, res.Job.Status)

	report := res.Report
	assert.True(t, report.Finalized())
	assert.Equal(t, 6, report.Total)
	assert.Equal(t, 2, report.Applied)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 3, report.Rejected)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.JobErrors, 1)
	assert.Equal(t, "TEE-L", report.JobErrors[0].SKU)
	assert.Equal(t, 4, report.JobErrors[0].Line)
}

func TestService_Import_SecondRunIsNoop(t *testing.T) {
	fake := newFakeRemote()
	svc := newService(t, fake, nil, nil)

	rows := []reconcile.DesiredRow{
		{Line: 2, SKU: "TEE-S", Quantity: qty(5), LocationLabel: "Main"},
		{Line: 3, SKU: "TEE-S", Quantity: qty(2), LocationLabel: "Backroom"},
	}
	for i := 0; i < 2; i++ {
		res, err := svc.Import(context.Background(), inventory.ImportRequest{Rows: rows, AllLocations: true})
		require.NoError(t, err)
		assert.Equal(t, 0, res.Report.Applied)
		assert.Equal(t, 2, res.Report.Skipped)
		assert.Nil(t, res.Job)
	}
	assert.Empty(t, fake.Submitted(), "nothing to apply, nothing submitted")
}

func TestService_Import_DryRun(t *testing.T) {
	fake := newFakeRemote()
	svc := newService(t, fake, nil, nil)

	res, err := svc.Import(context.Background(), inventory.ImportRequest{Rows: importRows(), AllLocations: true, DryRun: true})
	require.NoError(t, err)
	assert.True(t, res.DryRun)
	assert.Equal(t, 2, res.Units)
	assert.Equal(t, 2, res.Report.Applied)
	assert.True(t, res.Report.Finalized())
	assert.Empty(t, fake.Submitted())
	assert.Empty(t, fake.Uploads())
}

func TestService_Import_SingleLocation(t *testing.T) {
	fake := newFakeRemote()
	svc := newService(t, fake, nil, nil)

	rows := []reconcile.DesiredRow{
		{Line: 2, SKU: "TEE-S", Quantity: qty(8)},
		{Line: 3, SKU: "TEE-L", Quantity: qty(1), LocationLabel: "Backroom"},
	}

	_, err := svc.Import(context.Background(), inventory.ImportRequest{Rows: rows, DryRun: true})
	assert.ErrorIs(t, err, inventory.ErrLocationRequired)

	res, err := svc.Import(context.Background(), inventory.ImportRequest{Rows: rows, Location: "Main", DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, reconcile.Accepted, res.Outcomes[0].Verdict)
	assert.Equal(t, mainLocation.ID, res.Outcomes[0].Diff.LocationID)
	assert.Equal(t, reconcile.ReasonLocationMismatch, res.Outcomes[1].Reason)
}

func TestService_Import_IndexFailureAborts(t *testing.T) {
	fake := newFakeRemote()
	fake.listErr = errors.New("throttled")
	svc := newService(t, fake, nil, nil)

	res, err := svc.Import(context.Background(), inventory.ImportRequest{Rows: importRows(), AllLocations: true})
	assert.Nil(t, res)
	var indexErr *reconcile.IndexBuildError
	assert.ErrorAs(t, err, &indexErr)
	assert.Empty(t, fake.Submitted())
}

func TestService_Import_UploadFailureKeepsOutcomes(t *testing.T) {
	fake := newFakeRemote()
	fake.uploadErr = errors.New("403 forbidden")
	svc := newService(t, fake, nil, nil)

	res, err := svc.Import(context.Background(), inventory.ImportRequest{Rows: importRows(), AllLocations: true})
	var uploadErr *staged.UploadError
	require.ErrorAs(t, err, &uploadErr)
	assert.Equal(t, staged.StageUpload, uploadErr.Stage)

	require.NotNil(t, res)
	assert.Nil(t, res.Job)
	assert.Len(t, res.Outcomes, 6)
	assert.Equal(t, 2, res.Report.Applied)
	assert.Empty(t, fake.Submitted())
}

func TestService_Busy(t *testing.T) {
	fake := newFakeRemote()
	fake.block = make(chan struct{})
	svc := newService(t, fake, nil, nil)

	runID, err := svc.StartImport(inventory.ImportRequest{Rows: importRows(), AllLocations: true, DryRun: true})
	require.NoError(t, err)
	assert.NotEmpty(t, runID)
	assert.True(t, svc.Busy())

	_, err = svc.Import(context.Background(), inventory.ImportRequest{Rows: importRows(), AllLocations: true})
	assert.ErrorIs(t, err, inventory.ErrBusy)
	_, err = svc.StartExport(inventory.ExportRequest{})
	assert.ErrorIs(t, err, inventory.ErrBusy)

	close(fake.block)
	assert.Eventually(t, func() bool { return !svc.Busy() }, 2*time.Second, 10*time.Millisecond)
}

func TestService_LedgerAndArchive(t *testing.T) {
	fake := newFakeRemote()
	fake.results[bulk.KindWrite] = writeArtifact
	store := newLedger(t)

	client := new(mocks.Client)
	client.On("PutObject", mock.Anything, "artifacts", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(minio.UploadInfo{}, nil)
	archive := inventory.NewArchive(client, "artifacts", "inventory")

	svc := newService(t, fake, store, archive)
	ctx := context.Background()

	res, err := svc.Import(ctx, inventory.ImportRequest{
		Rows: importRows(), AllLocations: true, Source: "test", Sheet: []byte("sku,quantity\n"),
	})
	require.NoError(t, err)
	assert.Equal(t, "inventory/"+res.RunID+"/report.json", res.ReportKey)

	for _, name := range []string{inventory.ArtifactInput, inventory.ArtifactPayload, inventory.ArtifactResult, inventory.ArtifactReport} {
		client.AssertCalled(t, "PutObject", mock.Anything, "artifacts", "inventory/"+res.RunID+"/"+name,
			mock.Anything, mock.Anything, mock.Anything)
	}

	run, err := svc.GetRun(ctx, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, models.RunCompleted, run.Status)
	assert.Equal(t, models.RunImport, run.Kind)
	assert.Equal(t, "*", run.Location)
	assert.Equal(t, res.Job.ID, run.JobID)
	assert.Equal(t, 6, run.Total)
	assert.Equal(t, 2, run.Applied)
	assert.Equal(t, 1, run.Failed)
	assert.Equal(t, res.ReportKey, run.ReportKey)
	assert.NotNil(t, run.FinishedAt)

	job, err := store.Job(ctx, res.Job.ID)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, bulk.StatusCompleted, job.Status)

	runs, err := svc.ListRuns(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestService_FailedRunIsRecorded(t *testing.T) {
	fake := newFakeRemote()
	fake.listErr = errors.New("boom")
	store := newLedger(t)
	svc := newService(t, fake, store, nil)
	ctx := context.Background()

	runID, err := svc.StartImport(inventory.ImportRequest{Rows: importRows(), AllLocations: true})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		run, err := svc.GetRun(ctx, runID)
		return err == nil && run.Finished()
	}, 2*time.Second, 10*time.Millisecond)

	run, err := svc.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, models.RunFailed, run.Status)
	assert.Contains(t, run.Error, "boom")
}

func TestService_RestoreAndCancel(t *testing.T) {
	fake := newFakeRemote()
	store := newLedger(t)
	ctx := context.Background()

	// A job left running by an earlier process.
	fake.addJob("gid://shopify/BulkOperation/99", bulk.KindWrite)
	fake.final[bulk.KindWrite] = bulk.StatusRunning
	require.NoError(t, store.RecordJob(ctx, bulk.Job{
		ID: "gid://shopify/BulkOperation/99", Kind: bulk.KindWrite, Status: bulk.StatusRunning,
		SubmittedAt: time.Now().UTC(),
	}))

	svc := newService(t, fake, store, nil)
	restored, err := svc.RestoreActive(ctx)
	require.NoError(t, err)
	require.NotNil(t, restored)

	_, err = svc.Export(ctx, inventory.ExportRequest{})
	var conflict *bulk.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, restored.ID, conflict.Active.ID)

	current, err := svc.CurrentJob(ctx)
	require.NoError(t, err)
	assert.Equal(t, bulk.StatusRunning, current.Status)

	canceled, err := svc.CancelCurrent(ctx)
	require.NoError(t, err)
	assert.Equal(t, bulk.StatusCanceled, canceled.Status)
	assert.Equal(t, []string{restored.ID}, fake.Cancels())

	_, err = svc.CurrentJob(ctx)
	assert.ErrorIs(t, err, inventory.ErrNoActiveJob)
	_, err = svc.CancelCurrent(ctx)
	assert.ErrorIs(t, err, inventory.ErrNoActiveJob)

	job, err := store.ActiveJob(ctx)
	require.NoError(t, err)
	assert.Nil(t, job, "cancellation recorded in the ledger")
}

func TestService_RestoreRefreshesFinishedJob(t *testing.T) {
	fake := newFakeRemote()
	store := newLedger(t)
	ctx := context.Background()

	// The earlier process died while polling; the job completed since.
	fake.addJob("gid://shopify/BulkOperation/98", bulk.KindRead)
	require.NoError(t, store.RecordJob(ctx, bulk.Job{
		ID: "gid://shopify/BulkOperation/98", Kind: bulk.KindRead, Status: bulk.StatusRunning,
		SubmittedAt: time.Now().UTC(),
	}))

	svc := newService(t, fake, store, nil)
	restored, err := svc.RestoreActive(ctx)
	require.NoError(t, err)
	require.NotNil(t, restored)
	assert.Equal(t, bulk.StatusCompleted, restored.Status)

	_, err = svc.CurrentJob(ctx)
	assert.ErrorIs(t, err, inventory.ErrNoActiveJob)

	active, err := store.ActiveJob(ctx)
	require.NoError(t, err)
	assert.Nil(t, active, "refreshed status recorded in the ledger")

	res, err := svc.Export(ctx, inventory.ExportRequest{})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Rows)
}

func TestService_NotifyJobFinished(t *testing.T) {
	fake := newFakeRemote()
	store := newLedger(t)
	ctx := context.Background()

	fake.addJob("gid://shopify/BulkOperation/7", bulk.KindRead)
	require.NoError(t, store.RecordJob(ctx, bulk.Job{
		ID: "gid://shopify/BulkOperation/7", Kind: bulk.KindRead, Status: bulk.StatusRunning,
	}))
	svc := newService(t, fake, store, nil)

	job, err := svc.NotifyJobFinished(ctx, "gid://shopify/BulkOperation/7")
	require.NoError(t, err)
	assert.Equal(t, bulk.StatusCompleted, job.Status)

	// A repeated notification sees the terminal job and does not poll again.
	polls := fake.polls
	job, err = svc.NotifyJobFinished(ctx, "gid://shopify/BulkOperation/7")
	require.NoError(t, err)
	assert.Equal(t, bulk.StatusCompleted, job.Status)
	assert.Equal(t, polls, fake.polls)

	_, err = svc.NotifyJobFinished(ctx, "gid://shopify/BulkOperation/404")
	assert.ErrorIs(t, err, inventory.ErrUnknownJob)
}

func TestService_WithoutLedger(t *testing.T) {
	svc := newService(t, newFakeRemote(), nil, nil)
	ctx := context.Background()

	_, err := svc.GetRun(ctx, "x")
	assert.ErrorIs(t, err, inventory.ErrNoLedger)
	_, err = svc.PurgeRun(ctx, "x")
	assert.ErrorIs(t, err, inventory.ErrNoArchive)
	job, err := svc.RestoreActive(ctx)
	assert.NoError(t, err)
	assert.Nil(t, job)
}

func jobActive(t *testing.T, svc *inventory.Service) (bulk.Job, bool) {
	t.Helper()
	job, err := svc.CurrentJob(context.Background())
	if errors.Is(err, inventory.ErrNoActiveJob) {
		return bulk.Job{}, false
	}
	require.NoError(t, err)
	return job, true
}
