package models

import "time"

// Run kinds.
const (
	RunExport = "export"
	RunImport = "import"
)

// Run statuses.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
	RunDryRun    = "dry_run"
)

// JobRecord is the ledger row of one bulk job, upserted on every observed transition.
type JobRecord struct {
	ID          string    `gorm:"column:id;primaryKey;size:191"`
	Kind        string    `gorm:"column:kind;size:16;index"`
	Status      string    `gorm:"column:status;size:16;index"`
	ObjectCount int64     `gorm:"column:object_count"`
	ResultURL   string    `gorm:"column:result_url;type:text"`
	ErrorCode   string    `gorm:"column:error_code;size:64"`
	SubmittedAt time.Time `gorm:"column:submitted_at"`
	ObservedAt  time.Time `gorm:"column:observed_at"`
}

// TableName overrides the table name.
func (JobRecord) TableName() string {
	return "bulk_jobs"
}

// SyncRun is one export or import execution.
type SyncRun struct {
	ID         string     `gorm:"column:id;primaryKey;size:36" json:"id"`
	Kind       string     `gorm:"column:kind;size:16;index" json:"kind"`
	Status     string     `gorm:"column:status;size:16" json:"status"`
	Location   string     `gorm:"column:location;size:191" json:"location,omitempty"`
	Source     string     `gorm:"column:source;size:255" json:"source,omitempty"`
	DryRun     bool       `gorm:"column:dry_run" json:"dry_run"`
	JobID      string     `gorm:"column:job_id;size:191" json:"job_id,omitempty"`
	Total      int        `gorm:"column:total" json:"total"`
	Applied    int        `gorm:"column:applied" json:"applied"`
	Skipped    int        `gorm:"column:skipped" json:"skipped"`
	Rejected   int        `gorm:"column:rejected" json:"rejected"`
	Failed     int        `gorm:"column:failed" json:"failed"`
	ReportKey  string     `gorm:"column:report_key;size:512" json:"report_key,omitempty"`
	Error      string     `gorm:"column:error;type:text" json:"error,omitempty"`
	StartedAt  time.Time  `gorm:"column:started_at" json:"started_at"`
	FinishedAt *time.Time `gorm:"column:finished_at" json:"finished_at,omitempty"`
}

// TableName overrides the table name.
func (SyncRun) TableName() string {
	return "sync_runs"
}

// Finished reports whether the run reached a final status.
func (r SyncRun) Finished() bool {
	return r.Status != RunRunning
}
