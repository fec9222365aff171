// Package vfs implements the File Store (spec.md §4.2): the bijection
// between paths (or virtual URIs) and dense FileIDs, with per-file
// revision tracking and optional in-memory overlays. It is grounded on
// the teacher's internal/lsp/fscache (fs_cache.go, fs_overlay.go), which
// plays the same role for CUE's LSP session.
package vfs

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/tylang/tycore/internal/core/db"
	"github.com/tylang/tycore/ty/token"
)

// FileID is a dense, stable identifier for a file or virtual document. It
// is created the first time a path or URI is observed and never reused
// within a project's lifetime (spec.md §3 "FileId").
type FileID uint32

// Kind classifies where a file's bytes originate and, transitively,
// whether the Check Scheduler should run rule checks over it
// (spec.md §4.6 "Classification").
type Kind int

const (
	KindFirstParty Kind = iota
	KindThirdParty
	KindVendoredTypeshed
	KindVirtual
)

func (k Kind) String() string {
	switch k {
	case KindFirstParty:
		return "first-party"
	case KindThirdParty:
		return "third-party"
	case KindVendoredTypeshed:
		return "vendored-typeshed"
	case KindVirtual:
		return "virtual"
	default:
		return "unknown"
	}
}

// record is the File Store's internal bookkeeping for one FileID.
type record struct {
	path     string
	kind     Kind
	exists   bool
	revision db.Revision
	overlay  []byte
	hasOver  bool
}

// Store is the File Store. It is shared across worker threads: map
// mutation is guarded by mu, but reads of already-resolved records do not
// need the lock held across I/O (spec.md §4.2 "Concurrency").
type Store struct {
	database *db.Database

	mu       sync.Mutex
	byPath   map[string]FileID
	records  []record // indexed by FileID
	readFile func(path string) ([]byte, error)
}

// New creates an empty Store backed by database for revision bumps.
// readFile defaults to os.ReadFile; tests may substitute a fake.
func New(database *db.Database) *Store {
	return &Store{
		database: database,
		byPath:   make(map[string]FileID),
		readFile: os.ReadFile,
	}
}

// SetReadFile overrides the function used to read first-party/third-party
// file content from disk; used by tests to avoid a real filesystem.
func (s *Store) SetReadFile(f func(path string) ([]byte, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readFile = f
}

// FileForPath returns the FileID for path, inserting a new record with
// the given kind if path has not been seen before.
func (s *Store) FileForPath(path string, kind Kind) FileID {
	path = filepath.Clean(path)
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byPath[path]; ok {
		return id
	}
	id := FileID(len(s.records))
	s.records = append(s.records, record{path: path, kind: kind, exists: true})
	s.byPath[path] = id
	return id
}

// VirtualFile mints a FileID for an unsaved buffer identified by a
// `virtual://<uuid>` URI, as spec.md §6 describes. The caller supplies
// the buffer's initial content via SetOverlay.
func (s *Store) VirtualFile() (FileID, string) {
	uri := fmt.Sprintf("virtual://%s", uuid.NewString())
	s.mu.Lock()
	defer s.mu.Unlock()
	id := FileID(len(s.records))
	s.records = append(s.records, record{path: uri, kind: KindVirtual, exists: true})
	s.byPath[uri] = id
	return id, uri
}

// CloseVirtual marks a virtual document as gone. Its FileID is not
// reused; subsequent Content calls return an error.
func (s *Store) CloseVirtual(id FileID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(id) >= len(s.records) {
		return
	}
	r := &s.records[id]
	r.exists = false
	r.overlay = nil
	r.hasOver = false
	s.database.SetInput(inputKey{id}, s.database.Revision()+1)
}

// Path returns the path or URI for id.
func (s *Store) Path(id FileID) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(id) >= len(s.records) {
		return ""
	}
	return s.records[id].path
}

// Kind returns the provenance classification for id.
func (s *Store) Kind(id FileID) Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(id) >= len(s.records) {
		return KindFirstParty
	}
	return s.records[id].kind
}

// Exists reports whether id currently refers to live content.
func (s *Store) Exists(id FileID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int(id) < len(s.records) && s.records[id].exists
}

type inputKey struct{ id FileID }

// FileInputKey returns the db.InputKey under which id's content revision
// is tracked, so a query that reads a file's content through something
// other than ContentCtx (e.g. the File Store's internal NewTokenFile
// helper) can still declare the dependency explicitly.
func FileInputKey(id FileID) db.InputKey { return inputKey{id} }

// SetOverlay installs (or replaces) in-memory content for id, bumping
// both the file's own revision and the database's global revision
// (spec.md §4.2 "set_overlay").
func (s *Store) SetOverlay(id FileID, content []byte) {
	s.mu.Lock()
	if int(id) >= len(s.records) {
		s.mu.Unlock()
		return
	}
	r := &s.records[id]
	r.overlay = content
	r.hasOver = true
	r.exists = true
	s.mu.Unlock()
	s.database.SetInput(inputKey{id}, string(content))
}

// ClearOverlay removes any overlay for id, reverting to on-disk content.
func (s *Store) ClearOverlay(id FileID) {
	s.mu.Lock()
	if int(id) >= len(s.records) {
		s.mu.Unlock()
		return
	}
	r := &s.records[id]
	r.overlay = nil
	r.hasOver = false
	s.mu.Unlock()
	s.database.SetInput(inputKey{id}, s.database.Revision()+1)
}

// MarkOnDiskChanged bumps id's revision without changing any overlay,
// for use when a Changed{path} event arrives from the file watcher.
func (s *Store) MarkOnDiskChanged(id FileID) {
	s.database.SetInput(inputKey{id}, s.database.Revision()+1)
}

// Content returns the current textual content of id: the overlay if one
// is set, otherwise the on-disk bytes. A virtual document with no
// overlay yet returns an error.
func (s *Store) Content(id FileID) ([]byte, error) {
	s.mu.Lock()
	if int(id) >= len(s.records) {
		s.mu.Unlock()
		return nil, fmt.Errorf("vfs: unknown file id %d", id)
	}
	r := s.records[id]
	s.mu.Unlock()

	if r.hasOver {
		return r.overlay, nil
	}
	if r.kind == KindVirtual {
		return nil, fmt.Errorf("vfs: virtual file %s has no content", r.path)
	}
	content, err := s.readFile(r.path)
	if err != nil {
		// I/O error is recorded against the file and surfaced as a
		// diagnostic by the caller; queries see empty content
		// (spec.md §7 "I/O error").
		return nil, err
	}
	return content, nil
}

// NewTokenFile wraps id's current content in a *token.File stamped with
// the database's current revision, for use by the Parsed Module Cache.
func (s *Store) NewTokenFile(id FileID) (*token.File, error) {
	content, err := s.Content(id)
	if err != nil {
		return nil, err
	}
	return token.NewFile(s.Path(id), content, int64(s.database.Revision())), nil
}

// NewTokenFileCtx is the query-aware counterpart of NewTokenFile: it
// records a dependency on id's content input so the memoized query
// calling it is correctly invalidated the next time SetOverlay,
// ClearOverlay, or MarkOnDiskChanged touches this file (spec.md §4.1
// "get_or_compute... records the set of inputs read").
func (s *Store) NewTokenFileCtx(ctx *db.Ctx, id FileID) (*token.File, error) {
	ctx.ReadInput(FileInputKey(id))
	return s.NewTokenFile(id)
}
