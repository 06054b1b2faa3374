// Package types provides shared type definitions for the MemVault MCP server.
//
// This package defines the domain types used across the components of
// MemVault: records, search results, recall entries, and the error
// taxonomy shared by the store, the relevance engine, and the git
// replication subsystem.
//
// # Core Types
//
// Record is the unit of storage, a memory written once and never mutated
// in place:
//
//	rec := &types.Record{
//	    ID:      "a1b2c3d4",
//	    Agent:   "claude",
//	    User:    "dave",
//	    Topics:  []string{"go", "testing"},
//	    Content: "Prefer table-driven tests for codecs.",
//	}
//
// # Error Taxonomy
//
// Every failure surfaced by the core is one of five typed errors:
//
//   - ValidationError: malformed caller input, rejected before storage
//   - StorageError: I/O failure, lock timeout, or id generation exhaustion
//   - ParseError: a malformed on-disk record (recoverable, never fatal)
//   - NotFoundError: no record file matches the requested identifier
//   - SyncError: replication failure, never fatal to the caller
//
// Callers discriminate with errors.As:
//
//	var nf *types.NotFoundError
//	if errors.As(err, &nf) {
//	    // report per-id, continue with the rest
//	}
package types
