// Package inventory wires the bulk job engine into exports and imports.
//
// # Export
//
// A bulk read job is submitted and polled to completion, its result artifact is rebuilt
// into a product tree and flattened to one row per variant and location. The rows are
// returned and archived as CSV.
//
// # Import
//
// Rows decoded from a CSV sheet are classified against a freshly built remote index.
// Accepted changes are grouped into batch units, uploaded through a staged upload and
// applied by a bulk write job. The immediate report of the classification and the
// deferred report parsed from the job result are merged into the run report.
//
// # Persistence
//
// With a database, every observed job transition and every run is recorded (Store), so
// a job started by an earlier process is restored into the job slot at startup. With a
// bucket, run artifacts are kept under <prefix>/<run id>/ (Archive).
//
// Both are optional; without them the service still runs, minus history and artifacts.
package inventory
