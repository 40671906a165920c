// Package jsonl rebuilds the product hierarchy from a bulk read result.
//
// Bulk read jobs produce one JSON object per line. Nested connections are flattened:
// each child line carries the id of its parent in `__parentId`, and lines are not
// guaranteed to appear after their parents. Builder collects every record first and
// links the tree in a second pass.
//
// Records are classified once, at decode time, by the type tag embedded in their global id
// (gid://<app>/<Type>/<n>). A record with no recognizable tag but with `location` and
// `quantities` fields is treated as an inventory level.
//
// Malformed lines and records whose parent cannot be resolved are dropped and counted in
// Stats; a build never aborts because of them.
package jsonl
