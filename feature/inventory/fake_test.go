package inventory_test

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"inventory-sync/core/bulk"
	"inventory-sync/core/bulk/mocks"
	"inventory-sync/core/reconcile"
	"inventory-sync/core/staged"
	"inventory-sync/feature/inventory"

	"go.uber.org/zap"
)

const resultHost = "https://results.test/"

// exportArtifact is a read job result: TEE-S is stocked at both locations, TEE-L at none.
const exportArtifact = `{"id":"gid://shopify/Product/1","title":"Tee","handle":"tee"}
{"id":"gid://shopify/ProductVariant/10","title":"Small","sku":"TEE-S","inventoryItem":{"id":"gid://shopify/InventoryItem/501"},"__parentId":"gid://shopify/Product/1"}
{"id":"gid://shopify/InventoryLevel/11?inventory_item_id=501","location":{"id":"gid://shopify/Location/1","name":"Main"},"quantities":[{"name":"available","quantity":5}],"__parentId":"gid://shopify/ProductVariant/10"}
{"id":"gid://shopify/InventoryLevel/12?inventory_item_id=501","location":{"id":"gid://shopify/Location/2","name":"Backroom"},"quantities":[{"name":"available","quantity":2}],"__parentId":"gid://shopify/ProductVariant/10"}
{"id":"gid://shopify/ProductVariant/20","title":"Large","sku":"TEE-L","inventoryItem":{"id":"gid://shopify/InventoryItem/502"},"__parentId":"gid://shopify/Product/1"}
`

var (
	mainLocation     = reconcile.Location{ID: "gid://shopify/Location/1", Name: "Main"}
	backroomLocation = reconcile.Location{ID: "gid://shopify/Location/2", Name: "Backroom"}
)

// fakeRemote is an in-memory admin API. Jobs complete on their first poll unless a
// final status is scripted for their kind.
type fakeRemote struct {
	mu sync.Mutex

	locations []reconcile.Location
	variants  []reconcile.ListedVariant
	pageSize  int
	results   map[bulk.Kind]string
	final     map[bulk.Kind]bulk.Status
	listErr   error
	uploadErr error
	block     chan struct{}

	seq     int
	jobs    map[string]bulk.Kind
	specs   []bulk.Spec
	uploads [][]byte
	cancels []string
	polls   int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		locations: []reconcile.Location{mainLocation, backroomLocation},
		variants: []reconcile.ListedVariant{
			{
				SKU: "TEE-S", VariantID: "gid://shopify/ProductVariant/10", InventoryItemID: "gid://shopify/InventoryItem/501",
				Levels: []reconcile.Level{{LocationID: mainLocation.ID, Quantity: 5}, {LocationID: backroomLocation.ID, Quantity: 2}},
			},
			{
				SKU: "TEE-L", VariantID: "gid://shopify/ProductVariant/20", InventoryItemID: "gid://shopify/InventoryItem/502",
				Levels: []reconcile.Level{{LocationID: mainLocation.ID, Quantity: 0}},
			},
			{
				SKU: "CAP", VariantID: "gid://shopify/ProductVariant/30", InventoryItemID: "gid://shopify/InventoryItem/503",
				Levels: []reconcile.Level{{LocationID: backroomLocation.ID, Quantity: 1}},
			},
		},
		pageSize: 2,
		results:  map[bulk.Kind]string{bulk.KindRead: exportArtifact},
		final:    map[bulk.Kind]bulk.Status{},
		jobs:     map[string]bulk.Kind{},
	}
}

func (f *fakeRemote) addJob(id string, kind bulk.Kind) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[id] = kind
}

func (f *fakeRemote) Submitted() []bulk.Spec {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bulk.Spec(nil), f.specs...)
}

func (f *fakeRemote) Uploads() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.uploads...)
}

func (f *fakeRemote) Cancels() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.cancels...)
}

func (f *fakeRemote) Submit(ctx context.Context, spec bulk.Spec) (*bulk.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	id := fmt.Sprintf("gid://shopify/BulkOperation/%d", f.seq)
	f.jobs[id] = spec.Kind
	f.specs = append(f.specs, spec)
	return &bulk.Submission{Job: &bulk.Snapshot{ID: id, Status: bulk.StatusCreated}}, nil
}

func (f *fakeRemote) Status(ctx context.Context, id string) (*bulk.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	kind, ok := f.jobs[id]
	if !ok {
		return nil, nil
	}
	status, ok := f.final[kind]
	if !ok {
		status = bulk.StatusCompleted
	}
	snap := &bulk.Snapshot{ID: id, Status: status, ObjectCount: 3}
	switch {
	case status == bulk.StatusCompleted && f.results[kind] != "":
		snap.ResultURL = resultHost + id
	case status == bulk.StatusFailed:
		snap.ErrorCode = "INTERNAL_SERVER_ERROR"
	}
	return snap, nil
}

func (f *fakeRemote) Cancel(ctx context.Context, id string) (*bulk.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels = append(f.cancels, id)
	return &bulk.Snapshot{ID: id, Status: bulk.StatusCanceled}, nil
}

func (f *fakeRemote) Current(ctx context.Context, kind bulk.Kind) (*bulk.Snapshot, error) {
	return nil, nil
}

func (f *fakeRemote) ListInventory(ctx context.Context, cursor string) (*reconcile.Page, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.listErr != nil {
		return nil, f.listErr
	}
	start := 0
	if cursor != "" {
		start, _ = strconv.Atoi(strings.TrimPrefix(cursor, "c"))
	}
	end := min(start+f.pageSize, len(f.variants))
	return &reconcile.Page{
		Variants:    f.variants[start:end],
		HasNextPage: end < len(f.variants),
		EndCursor:   "c" + strconv.Itoa(end),
	}, nil
}

func (f *fakeRemote) ListLocations(ctx context.Context) ([]reconcile.Location, error) {
	return append([]reconcile.Location(nil), f.locations...), nil
}

func (f *fakeRemote) CreateStagedUpload(ctx context.Context, req staged.Request) (*staged.Target, error) {
	return &staged.Target{
		URL:         "https://uploads.test/bucket",
		ResourceKey: "tmp/1/bulk/" + req.Filename,
		Parameters:  []staged.Parameter{{Name: "key", Value: "tmp/1/bulk/" + req.Filename}},
	}, nil
}

func (f *fakeRemote) Upload(ctx context.Context, target *staged.Target, filename string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.uploads = append(f.uploads, payload)
	return nil
}

func (f *fakeRemote) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kind, ok := f.jobs[strings.TrimPrefix(url, resultHost)]
	if !ok {
		return nil, fmt.Errorf("no artifact at %s", url)
	}
	return io.NopCloser(strings.NewReader(f.results[kind])), nil
}

func newService(t *testing.T, remote *fakeRemote, store *inventory.Store, archive *inventory.Archive) *inventory.Service {
	t.Helper()
	svc := inventory.NewService(remote, store, archive, inventory.Settings{
		Reconcile: reconcile.Config{BatchUnitSize: 1, QuantityName: "available", Reason: "correction"},
	}, zap.NewNop(), bulk.WithClock(mocks.NewClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))))
	t.Cleanup(svc.Close)
	return svc
}

func qty(v int) *int { return &v }
