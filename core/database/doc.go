// Package database opens the job ledger database and inspects its schema.
//
// Connect wraps GORM for MySQL (production) and SQLite (single-host deployments and
// tests). GetTableColumns and MissingColumns let callers verify that the ledger tables
// carry the columns the running binary expects before jobs are recorded.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    return err
//	}
//
//	missing, err := database.MissingColumns(db, "bulk_jobs", []string{"id", "status"})
package database
