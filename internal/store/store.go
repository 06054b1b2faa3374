// Package store creates, locates, and atomically persists memory records
// in a directory. It owns identifier generation and the directory lock
// that serializes concurrent writers.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"github.com/dshills/memvault-mcp/internal/codec"
	"github.com/dshills/memvault-mcp/pkg/types"
)

const (
	// idAlphabet restricts generated identifiers to lowercase hex.
	idAlphabet = "0123456789abcdef"

	// maxIDAttempts bounds regeneration when a candidate id collides with
	// an existing record file.
	maxIDAttempts = 5

	// filenameTimeLayout is the sortable timestamp prefix of record
	// filenames: <prefix>_<id>.md.
	filenameTimeLayout = "20060102_150405"

	// defaultLockTimeout bounds how long a writer waits for the directory
	// lock before failing with a lock-timeout StorageError.
	defaultLockTimeout = 30 * time.Second
)

// Store is a file-backed record store rooted at a single directory.
// Create serializes through a directory lock; Fetch is lock-free because
// record files only ever appear via atomic rename.
type Store struct {
	dir         string
	lock        *dirLock
	lockTimeout time.Duration
	log         zerolog.Logger
	now         func() time.Time
}

// New creates a Store rooted at dir, creating the directory if needed.
func New(dir string, log zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &types.StorageError{Op: "init", Err: err}
	}
	return &Store{
		dir:         dir,
		lock:        newDirLock(),
		lockTimeout: defaultLockTimeout,
		log:         log.With().Str("component", "store").Logger(),
		now:         time.Now,
	}, nil
}

// Dir returns the directory record files live in.
func (s *Store) Dir() string { return s.dir }

// Create validates the input, generates a collision-free identifier, and
// atomically persists a new record. On success it returns the record and
// its filename; the filename is what replication jobs stage.
func (s *Store) Create(ctx context.Context, agent, user string, topics []string, content string) (*types.Record, string, error) {
	if err := validateInput(agent, user, topics, content); err != nil {
		return nil, "", err
	}

	if !s.lock.Acquire(ctx, s.lockTimeout) {
		return nil, "", &types.StorageError{Op: "lock", Err: types.ErrLockTimeout}
	}
	defer s.lock.Release()

	id, err := s.generateID()
	if err != nil {
		return nil, "", err
	}

	now := s.now()
	rec := &types.Record{
		ID:        id,
		Timestamp: now,
		Agent:     agent,
		User:      user,
		Topics:    topics,
		Content:   content,
	}
	filename := fmt.Sprintf("%s_%s.md", now.Format(filenameTimeLayout), id)

	if err := s.writeAtomic(filepath.Join(s.dir, filename), codec.Encode(rec)); err != nil {
		return nil, "", err
	}

	s.log.Debug().Str("memory_id", id).Str("filename", filename).Msg("memory stored")
	return rec, filename, nil
}

// Fetch locates the unique record file whose name ends with id and returns
// the parsed record. The embedded id must match the filename-derived id;
// a mismatch is treated as a malformed record.
func (s *Store) Fetch(ctx context.Context, id string) (*types.Record, error) {
	if !types.ValidID(id) {
		return nil, &types.ValidationError{Field: "memory_id", Reason: "must be 8 lowercase hex characters"}
	}

	matches, err := filepath.Glob(filepath.Join(s.dir, "*_"+id+".md"))
	if err != nil {
		return nil, &types.StorageError{Op: "glob", Err: err}
	}
	if len(matches) == 0 {
		return nil, &types.NotFoundError{ID: id}
	}
	if len(matches) > 1 {
		// Should be impossible given the uniqueness check in Create; take
		// the oldest file deterministically and flag the rest.
		sort.Strings(matches)
		s.log.Warn().Str("memory_id", id).Int("files", len(matches)).Msg("duplicate record files for id")
	}
	path := matches[0]

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Removed between glob and read.
			return nil, &types.NotFoundError{ID: id}
		}
		return nil, &types.StorageError{Op: "read", Err: err}
	}

	rec, err := codec.Decode(data)
	if err != nil {
		if pe, ok := err.(*types.ParseError); ok {
			pe.Path = path
		}
		return nil, err
	}
	if rec.ID != id {
		return nil, &types.ParseError{Path: path, Reason: fmt.Sprintf("embedded id %q does not match filename id %q", rec.ID, id)}
	}
	return rec, nil
}

// generateID produces a candidate 8-hex identifier and retries on
// collision with an existing record file. Must be called with the
// directory lock held.
func (s *Store) generateID() (string, error) {
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id, err := gonanoid.Generate(idAlphabet, types.IDLength)
		if err != nil {
			return "", &types.StorageError{Op: "generate id", Err: err}
		}
		matches, err := filepath.Glob(filepath.Join(s.dir, "*_"+id+".md"))
		if err != nil {
			return "", &types.StorageError{Op: "generate id", Err: err}
		}
		if len(matches) == 0 {
			return id, nil
		}
		s.log.Debug().Str("memory_id", id).Int("attempt", attempt+1).Msg("id collision, regenerating")
	}
	return "", &types.StorageError{Op: "generate id", Err: types.ErrIDExhausted}
}

// writeAtomic writes data to a temporary file in the store directory and
// renames it into place, so a concurrent reader sees either no file or the
// complete file, never a partial one.
func (s *Store) writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, ".memvault-*.tmp")
	if err != nil {
		return &types.StorageError{Op: "create temp", Err: err}
	}
	tmpName := tmp.Name()

	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return &types.StorageError{Op: "write", Err: err}
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return &types.StorageError{Op: "sync", Err: err}
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return &types.StorageError{Op: "close", Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return &types.StorageError{Op: "rename", Err: err}
	}
	return nil
}
