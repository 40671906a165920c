package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
)

// IndexBuildError is returned when a listing page cannot be fetched.
// No partial index is ever returned alongside it.
type IndexBuildError struct {
	Page   int
	Cursor string
	Err    error
}

func (e *IndexBuildError) Error() string {
	if e.Cursor == "" {
		return fmt.Sprintf("build inventory index: page %d: %v", e.Page, e.Err)
	}
	return fmt.Sprintf("build inventory index: page %d (cursor %s): %v", e.Page, e.Cursor, e.Err)
}

func (e *IndexBuildError) Unwrap() error { return e.Err }

var errCursorStuck = errors.New("listing cursor did not advance")

// Entry is the indexed state of one SKU.
type Entry struct {
	SKU             string
	VariantID       string
	InventoryItemID string
	// Levels maps location id to quantity.
	Levels map[string]int
}

// Quantity returns the quantity at a location and whether the SKU is stocked there.
func (e *Entry) Quantity(locationID string) (int, bool) {
	q, ok := e.Levels[locationID]
	return q, ok
}

// Index maps case-folded SKUs to their current state.
type Index struct {
	entries map[string]*Entry
	pages   int
}

// NewIndex builds an index from already listed variants. The first variant wins on
// duplicate SKUs.
func NewIndex(variants []ListedVariant) *Index {
	idx := &Index{entries: make(map[string]*Entry, len(variants))}
	for _, v := range variants {
		idx.add(v)
	}
	return idx
}

// Lookup finds a SKU, ignoring case and surrounding whitespace.
func (i *Index) Lookup(sku string) (*Entry, bool) {
	e, ok := i.entries[NormalizeSKU(sku)]
	return e, ok
}

// Len returns the number of indexed SKUs.
func (i *Index) Len() int { return len(i.entries) }

// Pages returns the number of listing pages read to build the index.
func (i *Index) Pages() int { return i.pages }

// add indexes a variant and reports whether it was kept.
func (i *Index) add(v ListedVariant) bool {
	key := NormalizeSKU(v.SKU)
	if key == "" {
		return false
	}
	if _, dup := i.entries[key]; dup {
		return false
	}
	levels := make(map[string]int, len(v.Levels))
	for _, l := range v.Levels {
		levels[l.LocationID] = l.Quantity
	}
	i.entries[key] = &Entry{
		SKU:             strings.TrimSpace(v.SKU),
		VariantID:       v.VariantID,
		InventoryItemID: v.InventoryItemID,
		Levels:          levels,
	}
	return true
}

// NormalizeSKU returns the lookup key of a SKU.
func NormalizeSKU(sku string) string {
	return cases.Fold().String(strings.TrimSpace(sku))
}

// BuildIndex pages through lister until the listing is exhausted.
func BuildIndex(ctx context.Context, lister Lister, logger *zap.Logger) (*Index, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	idx := &Index{entries: make(map[string]*Entry)}
	cursor := ""
	duplicates := 0
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return nil, &IndexBuildError{Page: page, Cursor: cursor, Err: err}
		}

		p, err := lister.ListInventory(ctx, cursor)
		if err != nil {
			return nil, &IndexBuildError{Page: page, Cursor: cursor, Err: err}
		}
		idx.pages = page

		for _, v := range p.Variants {
			if idx.add(v) || NormalizeSKU(v.SKU) == "" {
				continue
			}
			duplicates++
			logger.Debug("Duplicate SKU in remote listing, keeping first",
				zap.String("sku", v.SKU),
				zap.String("variant_id", v.VariantID),
			)
		}

		if !p.HasNextPage {
			break
		}
		if p.EndCursor == "" || p.EndCursor == cursor {
			return nil, &IndexBuildError{Page: page, Cursor: cursor, Err: errCursorStuck}
		}
		cursor = p.EndCursor
	}

	logger.Info("Inventory index built",
		zap.Int("skus", idx.Len()),
		zap.Int("pages", idx.pages),
		zap.Int("duplicate_skus", duplicates),
	)
	return idx, nil
}
