package reconcile

import (
	"errors"
	"strings"
)

// Rejection and skip reasons.
const (
	ReasonInvalidQuantity  = "invalid quantity"
	ReasonLocationRequired = "location required"
	ReasonLocationNotFound = "location not found"
	ReasonLocationMismatch = "location mismatch"
	ReasonDuplicateRow     = "duplicate row"
	ReasonVariantNotFound  = "variant not found"
	ReasonNotStocked       = "location not stocked for this SKU"
	ReasonAlreadyMatches   = "already matches"
)

// DesiredRow is one imported record.
type DesiredRow struct {
	// Line is the 1-based position of the row in its source file.
	Line int `json:"line"`

	SKU string `json:"sku"`

	// Quantity is nil when the cell was empty or not an integer.
	Quantity *int `json:"quantity"`

	// LocationLabel is the location name given on the row, if any.
	LocationLabel string `json:"location,omitempty"`
}

// Verdict classifies a row.
type Verdict string

const (
	Accepted Verdict = "accepted"
	Skipped  Verdict = "skipped"
	Rejected Verdict = "rejected"
)

// Diff is a single change to apply.
type Diff struct {
	Line            int    `json:"line"`
	SKU             string `json:"sku"`
	InventoryItemID string `json:"inventory_item_id"`
	LocationID      string `json:"location_id"`
	Quantity        int    `json:"quantity"`
	Previous        int    `json:"previous"`
}

// Outcome is the classification of one row. Diff is set only when accepted.
type Outcome struct {
	Row     DesiredRow
	Verdict Verdict
	Reason  string
	Diff    *Diff
}

// Mode selects how rows are matched to locations.
type Mode struct {
	// AllLocations requires every row to name its location.
	AllLocations bool
	// Location is the target of single-location mode.
	Location *Location
}

// ErrNoLocation is returned when single-location mode is requested without a location.
var ErrNoLocation = errors.New("single-location mode requires a location")

// Differ classifies desired rows against an index. It remembers the (SKU, location)
// pairs already seen, so one Differ serves exactly one run.
type Differ struct {
	index     *Index
	locations []Location
	mode      Mode
	seen      map[string]struct{}
}

// NewDiffer creates a differ for one run.
func NewDiffer(index *Index, locations []Location, mode Mode) (*Differ, error) {
	if !mode.AllLocations && mode.Location == nil {
		return nil, ErrNoLocation
	}
	return &Differ{
		index:     index,
		locations: locations,
		mode:      mode,
		seen:      make(map[string]struct{}),
	}, nil
}

// Classify applies the rules in order and stops at the first one that decides the row.
func (d *Differ) Classify(row DesiredRow) Outcome {
	if row.Quantity == nil || *row.Quantity < 0 {
		return reject(row, ReasonInvalidQuantity)
	}

	loc, reason := d.resolveLocation(row.LocationLabel)
	if reason != "" {
		return reject(row, reason)
	}

	key := NormalizeSKU(row.SKU) + "\x00" + loc.ID
	if _, dup := d.seen[key]; dup {
		return reject(row, ReasonDuplicateRow)
	}
	d.seen[key] = struct{}{}

	entry, ok := d.index.Lookup(row.SKU)
	if !ok {
		return reject(row, ReasonVariantNotFound)
	}
	current, stocked := entry.Quantity(loc.ID)
	if !stocked {
		return reject(row, ReasonNotStocked)
	}

	if current == *row.Quantity {
		return Outcome{Row: row, Verdict: Skipped, Reason: ReasonAlreadyMatches}
	}

	return Outcome{
		Row:     row,
		Verdict: Accepted,
		Diff: &Diff{
			Line:            row.Line,
			SKU:             entry.SKU,
			InventoryItemID: entry.InventoryItemID,
			LocationID:      loc.ID,
			Quantity:        *row.Quantity,
			Previous:        current,
		},
	}
}

// ClassifyAll classifies rows in order.
func (d *Differ) ClassifyAll(rows []DesiredRow) []Outcome {
	out := make([]Outcome, 0, len(rows))
	for _, row := range rows {
		out = append(out, d.Classify(row))
	}
	return out
}

func (d *Differ) resolveLocation(label string) (Location, string) {
	label = strings.TrimSpace(label)

	if !d.mode.AllLocations {
		if label != "" && !matchLocation(*d.mode.Location, label) {
			return Location{}, ReasonLocationMismatch
		}
		return *d.mode.Location, ""
	}

	if label == "" {
		return Location{}, ReasonLocationRequired
	}
	for _, loc := range d.locations {
		if matchLocation(loc, label) {
			return loc, ""
		}
	}
	return Location{}, ReasonLocationNotFound
}

// matchLocation matches a row label against a location name, ignoring case.
// The location id is accepted as well.
func matchLocation(loc Location, label string) bool {
	return strings.EqualFold(loc.Name, label) || loc.ID == label
}

func reject(row DesiredRow, reason string) Outcome {
	return Outcome{Row: row, Verdict: Rejected, Reason: reason}
}
