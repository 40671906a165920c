package reconcile

import "errors"

// ErrFinalized is returned when a finalized report is modified.
var ErrFinalized = errors.New("report is finalized")

// Issue is a skipped or rejected row.
type Issue struct {
	Line     int    `json:"line"`
	SKU      string `json:"sku"`
	Location string `json:"location,omitempty"`
	Reason   string `json:"reason"`
}

// JobError is a failure reported by the write job for one diff.
type JobError struct {
	// Unit is the sequence number of the batch unit that failed.
	Unit            int      `json:"unit"`
	Line            int      `json:"line"`
	SKU             string   `json:"sku"`
	InventoryItemID string   `json:"inventory_item_id"`
	LocationID      string   `json:"location_id"`
	Message         string   `json:"message"`
	Code            string   `json:"code,omitempty"`
	Field           []string `json:"field,omitempty"`
}

// Report aggregates the outcomes of a run. It is built incrementally and becomes
// immutable once finalized.
type Report struct {
	Total      int        `json:"total"`
	Applied    int        `json:"applied"`
	Skipped    int        `json:"skipped"`
	Rejected   int        `json:"rejected"`
	Failed     int        `json:"failed"`
	Skips      []Issue    `json:"skips"`
	Rejections []Issue    `json:"rejections"`
	JobErrors  []JobError `json:"job_errors"`

	finalized bool
}

// NewReport creates an empty, open report.
func NewReport() *Report {
	return &Report{
		Skips:      []Issue{},
		Rejections: []Issue{},
		JobErrors:  []JobError{},
	}
}

// ReportOf builds a finalized report from classified outcomes.
func ReportOf(outcomes []Outcome) *Report {
	r := NewReport()
	for _, o := range outcomes {
		_ = r.Add(o)
	}
	return r.Finalize()
}

// Add records one row outcome.
func (r *Report) Add(o Outcome) error {
	if r.finalized {
		return ErrFinalized
	}
	r.Total++
	issue := Issue{Line: o.Row.Line, SKU: o.Row.SKU, Location: o.Row.LocationLabel, Reason: o.Reason}
	switch o.Verdict {
	case Accepted:
		r.Applied++
	case Skipped:
		r.Skipped++
		r.Skips = append(r.Skips, issue)
	case Rejected:
		r.Rejected++
		r.Rejections = append(r.Rejections, issue)
	}
	return nil
}

// AddJobError records a job-level failure. Row counts are left untouched.
func (r *Report) AddJobError(e JobError) error {
	if r.finalized {
		return ErrFinalized
	}
	r.Failed++
	r.JobErrors = append(r.JobErrors, e)
	return nil
}

// Finalize freezes the report and returns it.
func (r *Report) Finalize() *Report {
	r.finalized = true
	return r
}

// Finalized reports whether the report can no longer change.
func (r *Report) Finalized() bool { return r.finalized }

// Merge combines the immediate report of a run with the deferred report of its write
// job into a new finalized report. Counts add and lists concatenate. Either side may be nil.
func Merge(immediate, deferred *Report) *Report {
	out := NewReport()
	for _, r := range []*Report{immediate, deferred} {
		if r == nil {
			continue
		}
		out.Total += r.Total
		out.Applied += r.Applied
		out.Skipped += r.Skipped
		out.Rejected += r.Rejected
		out.Failed += r.Failed
		out.Skips = append(out.Skips, r.Skips...)
		out.Rejections = append(out.Rejections, r.Rejections...)
		out.JobErrors = append(out.JobErrors, r.JobErrors...)
	}
	return out.Finalize()
}
