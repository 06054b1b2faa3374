package types

import (
	"errors"
	"fmt"
)

// Sentinel causes carried inside a StorageError so callers can distinguish
// a lock timeout or id exhaustion from a plain I/O failure.
var (
	ErrLockTimeout = errors.New("lock acquisition timed out")
	ErrIDExhausted = errors.New("identifier generation attempts exhausted")
)

// ValidationError reports malformed or missing caller input. It is always
// raised before any storage is touched.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// StorageError reports a failure of the underlying store: an I/O error, a
// lock acquisition timeout, or identifier generation exhaustion. The
// underlying cause is attached and reachable via errors.Is/As.
type StorageError struct {
	Op  string // operation that failed, e.g. "create", "write", "rename"
	Err error
}

func (e *StorageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("storage %s failed", e.Op)
	}
	return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ParseError reports a malformed on-disk record. It is recoverable: search
// skips the record, recall reports it per identifier.
type ParseError struct {
	Path   string // file that failed to parse, may be empty
	Reason string
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("malformed record: %s", e.Reason)
	}
	return fmt.Sprintf("malformed record %s: %s", e.Path, e.Reason)
}

// NotFoundError reports that no record file matches the requested
// identifier.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("memory %s not found", e.ID)
}

// SyncError reports a replication failure. It never propagates past the
// replication manager boundary; it exists so sync internals share the
// taxonomy when logging.
type SyncError struct {
	Op  string
	Err error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync %s failed: %v", e.Op, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsParseError reports whether err is (or wraps) a ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
