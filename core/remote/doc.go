// Package remote is the admin GraphQL transport of the inventory store.
//
// Client implements the interfaces the engine depends on: bulk.API for bulk operations,
// reconcile.Lister and reconcile.LocationSource for the index, and staged.API for the
// staged upload protocol. Every call goes through a rate limiter and retries on
// throttling and server errors.
package remote
