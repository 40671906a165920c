// Package bulk tracks the lifecycle of remote asynchronous bulk jobs.
//
// A bulk job is a read (export) or write (mutation) operation executed by the remote
// inventory store over a large dataset. The remote side only exposes submission, status,
// and cancellation; everything else (state tracking, conflict handling, polling) lives here.
//
// # Job Lifecycle
//
// Jobs move through a small state machine that is driven exclusively by polling responses:
//
//	CREATED -> RUNNING -> COMPLETED | FAILED | CANCELED
//
// Terminal states are never left. Repeated polling of a terminal job returns the same
// snapshot without calling the remote system.
//
// # Single Slot
//
// A Client owns exactly one job slot. Submitting while the slot holds a non-terminal job
// fails with a ConflictError unless the caller cancels first. The only built-in retry is
// the cancel-and-retry path taken when the remote system itself reports that another job
// is already in progress.
//
// # Polling
//
// Poller drives a job to a terminal state through an injected Clock, which lets tests
// advance simulated time instead of waiting on real timers.
//
//	client := bulk.NewClient(api, cfg.Bulk, bulk.WithLogger(log))
//	job, err := client.Submit(ctx, bulk.Spec{Kind: bulk.KindRead, Query: q})
//	job, err = bulk.NewPoller(client, cfg.Bulk).Wait(ctx, job, onComplete)
package bulk
