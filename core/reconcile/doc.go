// Package reconcile compares desired inventory rows against the remote store and plans
// the resulting changes.
//
// An import run goes through four stages:
//
//  1. BuildIndex pages through the remote variant listing and builds an immutable
//     SKU index of current quantities per location. Any page failure aborts the run.
//  2. A Differ classifies every desired row as accepted, skipped or rejected, applying
//     its rules in a fixed order.
//  3. Plan groups accepted diffs into batch units and WritePayload serializes them as
//     the variables file of a bulk mutation.
//  4. ParseWriteResult turns the mutation's result artifact into a deferred Report,
//     which Merge combines with the immediate Report of stage 2.
//
// The index is a snapshot. Remote changes made after it is built are not seen by the run.
package reconcile
