// Package jsonfile implements core.Gateway on top of one JSON file per
// collection. Writes go through a temp file and rename; a gofrs/flock lock
// file guards read-modify-write cycles across processes.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/iancoleman/strcase"
	"github.com/sirupsen/logrus"

	"github.com/danceflow/danceflow/core"
)

// Constants for file locking
const (
	lockTimeout    = 3 * time.Second
	lockRetryDelay = 100 * time.Millisecond
)

// Store is a JSON-file document store
type Store struct {
	dir    string
	log    logrus.FieldLogger
	mu     sync.Mutex
	locks  map[string]*flock.Flock
	now    func() time.Time
	closed bool
}

// collectionFile is the on-disk layout of one collection
type collectionFile struct {
	Documents []core.Document `json:"documents"`
	Metadata  fileMetadata    `json:"metadata"`
}

type fileMetadata struct {
	Version   string    `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Open creates the data directory if needed and returns a store rooted at dir
func Open(dir string, log logrus.FieldLogger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	if log == nil {
		l := logrus.New()
		l.SetOutput(os.Stderr)
		log = l
	}
	return &Store{
		dir:   dir,
		log:   log.WithField("gateway", "jsonfile"),
		locks: make(map[string]*flock.Flock),
		now:   time.Now,
	}, nil
}

func (s *Store) path(collection string) string {
	return filepath.Join(s.dir, strcase.ToSnake(collection)+".json")
}

// withCollection runs fn on the loaded collection while holding both the
// in-process mutex and the collection's file lock. When fn reports a change
// the collection is written back.
func (s *Store) withCollection(ctx context.Context, collection string, fn func(c *collectionFile) (bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("jsonfile: store is closed")
	}

	lock, ok := s.locks[collection]
	if !ok {
		lock = flock.New(s.path(collection) + ".lock")
		s.locks[collection] = lock
	}

	lctx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()
	locked, err := lock.TryLockContext(lctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("locking %s: %w", collection, err)
	}
	if !locked {
		return fmt.Errorf("locking %s: timed out", collection)
	}
	defer func() { _ = lock.Unlock() }()

	c, err := s.load(collection)
	if err != nil {
		return err
	}
	changed, err := fn(c)
	if err != nil || !changed {
		return err
	}
	return s.save(collection, c)
}

func (s *Store) load(collection string) (*collectionFile, error) {
	data, err := os.ReadFile(s.path(collection))
	if errors.Is(err, os.ErrNotExist) {
		return &collectionFile{Documents: []core.Document{}, Metadata: fileMetadata{Version: "1.0"}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", collection, err)
	}
	var c collectionFile
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", collection, err)
	}
	return &c, nil
}

// save writes the collection atomically (temp file, then rename)
func (s *Store) save(collection string, c *collectionFile) error {
	c.Metadata.UpdatedAt = s.now().UTC()
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", collection, err)
	}

	path := s.path(collection)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", collection, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replacing %s: %w", collection, err)
	}
	return nil
}

// Find evaluates the query in memory
func (s *Store) Find(ctx context.Context, collection string, q *core.Query) ([]core.Document, int64, error) {
	if q == nil {
		q = core.NewQuery()
	}
	var out []core.Document
	var total int64
	err := s.withCollection(ctx, collection, func(c *collectionFile) (bool, error) {
		matched := make([]core.Document, 0, len(c.Documents))
		for _, d := range c.Documents {
			if core.Match(d, q.Filter) {
				matched = append(matched, d)
			}
		}
		core.SortDocuments(matched, q.Sort)
		total = int64(len(matched))
		out = core.Paginate(matched, q.Pagination)
		return false, nil
	})
	if err != nil {
		return nil, 0, err
	}
	s.log.WithFields(logrus.Fields{"collection": collection, "filter": q.Filter.String(), "total": total}).Debug("find")
	return out, total, nil
}

func (s *Store) FindOne(ctx context.Context, collection, id string) (core.Document, error) {
	var found core.Document
	err := s.withCollection(ctx, collection, func(c *collectionFile) (bool, error) {
		if i := indexOf(c.Documents, id); i >= 0 {
			found = c.Documents[i]
			return false, nil
		}
		return false, core.ErrNotFound
	})
	return found, err
}

func (s *Store) Insert(ctx context.Context, collection string, doc core.Document) (core.Document, error) {
	stored := doc.Clone()
	stored["id"] = uuid.NewString()
	err := s.withCollection(ctx, collection, func(c *collectionFile) (bool, error) {
		c.Documents = append(c.Documents, stored)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return stored.Clone(), nil
}

func (s *Store) UpdateOne(ctx context.Context, collection, id string, patch core.Document) error {
	return s.withCollection(ctx, collection, func(c *collectionFile) (bool, error) {
		i := indexOf(c.Documents, id)
		if i < 0 {
			return false, core.ErrNotFound
		}
		c.Documents[i] = merge(c.Documents[i], patch, id)
		return true, nil
	})
}

func (s *Store) UpdateMany(ctx context.Context, collection string, filter core.Filter, patch core.Document) (int64, error) {
	var n int64
	err := s.withCollection(ctx, collection, func(c *collectionFile) (bool, error) {
		for i, d := range c.Documents {
			if core.Match(d, filter) {
				c.Documents[i] = merge(d, patch, d.ID())
				n++
			}
		}
		return n > 0, nil
	})
	return n, err
}

func (s *Store) DeleteOne(ctx context.Context, collection, id string) error {
	return s.withCollection(ctx, collection, func(c *collectionFile) (bool, error) {
		i := indexOf(c.Documents, id)
		if i < 0 {
			return false, core.ErrNotFound
		}
		c.Documents = append(c.Documents[:i], c.Documents[i+1:]...)
		return true, nil
	})
}

// Close releases the lock files
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for _, l := range s.locks {
		_ = l.Close()
	}
	return nil
}

func indexOf(docs []core.Document, id string) int {
	for i, d := range docs {
		if d.ID() == id {
			return i
		}
	}
	return -1
}

// merge applies patch and keeps the identity untouchable
func merge(doc, patch core.Document, id string) core.Document {
	out := core.MergePatch(doc.Clone(), patch)
	out["id"] = id
	return out
}
