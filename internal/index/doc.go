// Package index implements the storage patterns shared by every entity
// repository: key naming, JSON records, unique and multi-valued secondary
// indexes, per-key locking and an undo journal for multi-step writes.
//
// # Consistency
//
// The underlying engine.Store offers only single-key operations. A
// multi-valued index is a JSON array of ids updated by read-modify-write.
// Every such update runs under Env.Locks for its key, so writers that share
// an Env never lose each other's ids. Writers in other processes can still
// interleave; Reindex in the repomanager package repairs the result.
//
// Each repository mutation is recorded in a Journal. When a step fails, the
// completed steps are undone in reverse order. If an undo also fails the
// caller receives a *PartialWriteError describing what is left behind.
//
// # Key layouts
//
//   - Namespaced (default): rec/<entity>/<id...> and idx/<entity>/<index>/<value...>,
//     every segment path-escaped.
//   - Legacy: the colon-separated layout of pre-existing data
//     (user:<id>, user:email:<email>, employee:ids, ...).
package index
