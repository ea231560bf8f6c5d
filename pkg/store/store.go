package store

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/domeniconappo/grib-interpolator/pkg/interperr"
)

func init() {
	gob.Register(NearestTable{})
	gob.Register(InvdistTable{})
	gob.Register(GribNearestTable{})
	gob.Register(GribInvdistTable{})
}

// Store is a directory on the filesystem holding one file per
// (grid_id, method, mode) combination.
//
// Warning: target-grid identity is not part of the cache key. Callers
// interpolating onto more than one target grid from the same source must
// use a separate Store directory per target grid, or tables will be
// silently overwritten.
type Store struct {
	dir string
}

// Open returns a Store rooted at dir, creating the directory if it does
// not already exist.
func Open(dir string) (*Store, error) {
	if dir == "" {
		dir = "./"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &interperr.IOError{Path: dir, Err: err}
	}
	return &Store{dir: dir}, nil
}

// Name returns the cache filename for (gridID, method, mode):
//
//	{gridID with '$' replaced by '_'}_{method}_{mode}.gob
func Name(gridID string, method Method, mode Mode) string {
	safe := strings.ReplaceAll(gridID, "$", "_")
	return fmt.Sprintf("%s_%s_%s.gob", safe, method, mode)
}

// Path returns the path Name(gridID, method, mode) resolves to within this
// store: the store directory joined with the file name, relative if the
// directory was given as a relative path.
func (s *Store) Path(gridID string, method Method, mode Mode) string {
	return filepath.Join(s.dir, Name(gridID, method, mode))
}

// Exists reports whether a table is already cached for (gridID, method,
// mode), without loading it.
func (s *Store) Exists(gridID string, method Method, mode Mode) bool {
	_, err := os.Stat(s.Path(gridID, method, mode))
	return err == nil
}

// Lookup loads the cached table for (gridID, method, mode). It returns
// (nil, nil) on a cache miss (file absent), and a *interperr.DecodeError
// if the file is present but cannot be decoded.
func (s *Store) Lookup(gridID string, method Method, mode Mode) (*Table, error) {
	path := s.Path(gridID, method, mode)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, &interperr.IOError{Path: path, Err: err}
	}
	defer f.Close()

	var tbl Table
	if err := gob.NewDecoder(f).Decode(&tbl); err != nil {
		return nil, &interperr.DecodeError{Path: path, Reason: err.Error()}
	}
	return &tbl, nil
}

// Store persists tbl under (gridID, method, mode). The write is atomic:
// the table is encoded to a temporary file in the same directory, then
// renamed into place, so a crash mid-write never leaves a partial table
// file behind.
func (s *Store) Store(gridID string, method Method, mode Mode, tbl *Table) error {
	path := s.Path(gridID, method, mode)

	tmp, err := os.CreateTemp(s.dir, ".tmp-intertable-*")
	if err != nil {
		return &interperr.IOError{Path: s.dir, Err: err}
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	if err := gob.NewEncoder(tmp).Encode(tbl); err != nil {
		tmp.Close()
		return &interperr.IOError{Path: tmpPath, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &interperr.IOError{Path: tmpPath, Err: err}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return &interperr.IOError{Path: path, Err: err}
	}
	return nil
}
