package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/graphpipe/graphpipe/internal/domain"
	"github.com/graphpipe/graphpipe/internal/observability"
)

// Store persists the catalog as a single JSON file on disk.
type Store struct {
	path      string
	staleness time.Duration
	logger    *observability.Logger
}

// NewStore returns a store rooted at path. A catalog older than staleness
// is reported as expired by Load.
func NewStore(path string, staleness time.Duration, logger *observability.Logger) *Store {
	return &Store{path: path, staleness: staleness, logger: logger.WithComponent("catalog")}
}

// Path returns the on-disk location of the catalog file.
func (s *Store) Path() string { return s.path }

// Load reads the catalog from disk. A missing or corrupt file yields an
// empty catalog and a warning, never an error: the caller repopulates via
// refresh. An expired catalog is still returned in full so that probed
// verdicts survive the subsequent refresh merge; expired reports whether a
// refresh is due.
func (s *Store) Load() (c *Catalog, expired bool, err error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Debug().Str("path", s.path).Msg("no catalog file, starting empty")
			return New(), true, nil
		}
		return nil, false, domain.IOError(fmt.Sprintf("reading catalog %s", s.path), err)
	}

	loaded := New()
	if err := json.Unmarshal(data, loaded); err != nil {
		corrupt := domain.CacheCorruptionError(s.path, err)
		s.logger.Warn().Err(corrupt).Msg("catalog file corrupt, starting empty")
		return New(), true, nil
	}
	if loaded.Models == nil {
		loaded.Models = make(map[string]*ModelDescriptor)
	}
	for id, d := range loaded.Models {
		// tolerate hand-edited files: normalize rather than reject
		if d.ID == "" {
			d.ID = id
		}
		if !d.Vision.Valid() {
			d.Vision = VisionUnknown
		}
	}

	expired = loaded.Expired(s.staleness)
	s.logger.Debug().
		Int("models", loaded.Len()).
		Bool("expired", expired).
		Time("last_updated", loaded.LastRefresh).
		Msg("catalog loaded")
	return loaded, expired, nil
}

// Save writes the catalog atomically: marshal to a temp file in the same
// directory, fsync, then rename over the destination. Concurrent readers
// see either the old file or the new one, never a partial write.
func (s *Store) Save(c *Catalog) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return domain.IOError("encoding catalog", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".catalog-*.json")
	if err != nil {
		return domain.IOError(fmt.Sprintf("creating temp file in %s", dir), err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return domain.IOError(fmt.Sprintf("writing %s", tmpName), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return domain.IOError(fmt.Sprintf("syncing %s", tmpName), err)
	}
	if err := tmp.Close(); err != nil {
		return domain.IOError(fmt.Sprintf("closing %s", tmpName), err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return domain.IOError(fmt.Sprintf("chmod %s", tmpName), err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return domain.IOError(fmt.Sprintf("renaming into %s", s.path), err)
	}

	s.logger.Debug().Int("models", c.Len()).Str("path", s.path).Msg("catalog saved")
	return nil
}
