// Package sqlite implements core.Gateway with JSON documents stored in
// SQLite tables, one table per collection
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/iancoleman/strcase"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/danceflow/danceflow/core"
)

var tablePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Store is a SQLite document store
type Store struct {
	db     *sql.DB
	logger *SQLLogger

	mu     sync.Mutex
	tables map[string]string // collection -> ensured table name
}

// Open opens the database at dsn. In-memory databases are pinned to a single
// connection so every query sees the same data.
func Open(dsn string, log logrus.FieldLogger, debug bool) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to sqlite: %w", err)
	}
	return New(db, log, debug), nil
}

// New wraps an existing connection pool
func New(db *sql.DB, log logrus.FieldLogger, debug bool) *Store {
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		log = l
	}
	return &Store{
		db:     db,
		logger: NewSQLLogger(log.WithField("gateway", "sqlite"), debug),
		tables: make(map[string]string),
	}
}

// SetDebugEnabled enables or disables SQL debug logging
func (s *Store) SetDebugEnabled(enabled bool) {
	s.logger.SetEnabled(enabled)
}

// DB exposes the connection pool
func (s *Store) DB() *sql.DB {
	return s.db
}

// table returns the table for a collection, creating it on first use
func (s *Store) table(ctx context.Context, collection string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if name, ok := s.tables[collection]; ok {
		return name, nil
	}
	name := strcase.ToSnake(collection)
	if !tablePattern.MatchString(name) {
		return "", fmt.Errorf("invalid collection name %q", collection)
	}

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (
		seq  INTEGER PRIMARY KEY AUTOINCREMENT,
		id   TEXT NOT NULL UNIQUE,
		body TEXT NOT NULL CHECK (json_valid(body))
	)`, name)
	if _, err := s.loggedExecContext(ctx, ddl); err != nil {
		return "", fmt.Errorf("creating table for %s: %w", collection, err)
	}
	s.tables[collection] = name
	return name, nil
}

// loggedQueryContext wraps QueryContext with logging
func (s *Store) loggedQueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		s.logger.LogError(query, args, time.Since(start), err)
		return nil, err
	}
	// Row count is logged by the caller after scanning
	return rows, nil
}

// loggedExecContext wraps ExecContext with logging
func (s *Store) loggedExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	result, err := s.db.ExecContext(ctx, query, args...)
	duration := time.Since(start)
	if err != nil {
		s.logger.LogError(query, args, duration, err)
		return nil, err
	}
	s.logger.LogExec(query, args, duration, result)
	return result, nil
}

// Find retrieves documents matching the query and the total match count
func (s *Store) Find(ctx context.Context, collection string, q *core.Query) ([]core.Document, int64, error) {
	if q == nil {
		q = core.NewQuery()
	}
	table, err := s.table(ctx, collection)
	if err != nil {
		return nil, 0, err
	}

	where, args, err := compileFilter(q.Filter)
	if err != nil {
		return nil, 0, fmt.Errorf("compiling filter for %s: %w", collection, err)
	}

	// Count total records (before applying limit/offset)
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %q WHERE %s", table, where)
	var total int64
	start := time.Now()
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		s.logger.LogError(countQuery, args, time.Since(start), err)
		return nil, 0, fmt.Errorf("counting %s: %w", collection, err)
	}
	s.logger.LogQuery(countQuery, args, time.Since(start), 1)

	order, orderArgs, err := compileSort(q.Sort)
	if err != nil {
		return nil, 0, fmt.Errorf("compiling sort for %s: %w", collection, err)
	}
	query := fmt.Sprintf("SELECT body FROM %q WHERE %s", table, where) + order
	queryArgs := append(append([]any{}, args...), orderArgs...)

	// Apply pagination
	switch {
	case q.Pagination.Limit > 0:
		query += " LIMIT ? OFFSET ?"
		queryArgs = append(queryArgs, q.Pagination.Limit, q.Pagination.Offset)
	case q.Pagination.Offset > 0:
		query += " LIMIT -1 OFFSET ?"
		queryArgs = append(queryArgs, q.Pagination.Offset)
	}

	start = time.Now()
	rows, err := s.loggedQueryContext(ctx, query, queryArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying %s: %w", collection, err)
	}
	defer rows.Close()

	docs := make([]core.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning %s: %w", collection, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating %s: %w", collection, err)
	}
	s.logger.LogQuery(query, queryArgs, time.Since(start), len(docs))

	return docs, total, nil
}

// FindOne retrieves a single document by its identity
func (s *Store) FindOne(ctx context.Context, collection, id string) (core.Document, error) {
	table, err := s.table(ctx, collection)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT body FROM %q WHERE id = ?", table)
	start := time.Now()
	rows, err := s.loggedQueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("loading %s %s: %w", collection, id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("loading %s %s: %w", collection, id, err)
		}
		s.logger.LogQuery(query, []any{id}, time.Since(start), 0)
		return nil, core.ErrNotFound
	}
	doc, err := scanDocument(rows)
	if err != nil {
		return nil, fmt.Errorf("scanning %s %s: %w", collection, id, err)
	}
	s.logger.LogQuery(query, []any{id}, time.Since(start), 1)
	return doc, nil
}

// Insert stores a new document under a fresh UUID
func (s *Store) Insert(ctx context.Context, collection string, doc core.Document) (core.Document, error) {
	table, err := s.table(ctx, collection)
	if err != nil {
		return nil, err
	}

	stored := doc.Clone()
	stored["id"] = uuid.NewString()
	body, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", collection, err)
	}

	query := fmt.Sprintf("INSERT INTO %q (id, body) VALUES (?, ?)", table)
	if _, err := s.loggedExecContext(ctx, query, stored.ID(), string(body)); err != nil {
		return nil, fmt.Errorf("inserting into %s: %w", collection, err)
	}
	return stored, nil
}

// UpdateOne merges patch into a document with json_patch (RFC 7396)
func (s *Store) UpdateOne(ctx context.Context, collection, id string, patch core.Document) error {
	table, err := s.table(ctx, collection)
	if err != nil {
		return err
	}
	body, err := encodePatch(patch)
	if err != nil {
		return fmt.Errorf("encoding patch for %s: %w", collection, err)
	}

	query := fmt.Sprintf("UPDATE %q SET body = json_patch(body, ?) WHERE id = ?", table)
	result, err := s.loggedExecContext(ctx, query, body, id)
	if err != nil {
		return fmt.Errorf("updating %s %s: %w", collection, id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating %s %s: %w", collection, id, err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// UpdateMany merges patch into every document matching filter
func (s *Store) UpdateMany(ctx context.Context, collection string, filter core.Filter, patch core.Document) (int64, error) {
	table, err := s.table(ctx, collection)
	if err != nil {
		return 0, err
	}
	body, err := encodePatch(patch)
	if err != nil {
		return 0, fmt.Errorf("encoding patch for %s: %w", collection, err)
	}
	where, args, err := compileFilter(filter)
	if err != nil {
		return 0, fmt.Errorf("compiling filter for %s: %w", collection, err)
	}

	query := fmt.Sprintf("UPDATE %q SET body = json_patch(body, ?) WHERE %s", table, where)
	result, err := s.loggedExecContext(ctx, query, append([]any{body}, args...)...)
	if err != nil {
		return 0, fmt.Errorf("updating %s: %w", collection, err)
	}
	return result.RowsAffected()
}

// DeleteOne deletes a document by its identity
func (s *Store) DeleteOne(ctx context.Context, collection, id string) error {
	table, err := s.table(ctx, collection)
	if err != nil {
		return err
	}

	query := fmt.Sprintf("DELETE FROM %q WHERE id = ?", table)
	result, err := s.loggedExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("deleting %s %s: %w", collection, id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting %s %s: %w", collection, id, err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// Close closes the connection pool
func (s *Store) Close() error {
	return s.db.Close()
}

func scanDocument(rows *sql.Rows) (core.Document, error) {
	var body string
	if err := rows.Scan(&body); err != nil {
		return nil, err
	}
	var doc core.Document
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// encodePatch serializes a merge patch; the identity is never patched
func encodePatch(patch core.Document) (string, error) {
	p := patch.Clone()
	delete(p, "id")
	if len(p) == 0 {
		return "{}", nil
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
