// Package models holds the gorm models of the job ledger and run history.
package models
