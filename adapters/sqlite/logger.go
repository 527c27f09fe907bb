package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// SQLLogger logs executed statements at debug level when enabled
type SQLLogger struct {
	log     logrus.FieldLogger
	enabled bool
	mu      sync.RWMutex
}

// NewSQLLogger creates a new SQL logger
func NewSQLLogger(log logrus.FieldLogger, enabled bool) *SQLLogger {
	return &SQLLogger{
		log:     log,
		enabled: enabled,
	}
}

// IsEnabled returns whether SQL logging is enabled
func (l *SQLLogger) IsEnabled() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.enabled
}

// SetEnabled enables or disables SQL logging
func (l *SQLLogger) SetEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = enabled
}

func (l *SQLLogger) entry(query string, args []any, duration time.Duration) *logrus.Entry {
	return l.log.WithFields(logrus.Fields{
		"sql":         l.formatQuery(query),
		"args":        l.formatArgs(args),
		"duration_ms": float64(duration.Nanoseconds()) / 1e6,
	})
}

// LogQuery logs a SELECT query with execution time and row count
func (l *SQLLogger) LogQuery(query string, args []any, duration time.Duration, rowCount int) {
	if !l.IsEnabled() {
		return
	}
	l.entry(query, args, duration).WithField("rows", rowCount).Debug("query")
}

// LogExec logs an INSERT/UPDATE/DELETE statement with execution time and affected rows
func (l *SQLLogger) LogExec(query string, args []any, duration time.Duration, result sql.Result) {
	if !l.IsEnabled() {
		return
	}

	e := l.entry(query, args, duration)
	if result != nil {
		if affected, err := result.RowsAffected(); err == nil {
			e = e.WithField("rows", affected)
		}
	}
	e.Debug("exec")
}

// LogError logs a statement that failed. Errors are logged even when debug
// logging is disabled.
func (l *SQLLogger) LogError(query string, args []any, duration time.Duration, err error) {
	l.entry(query, args, duration).WithError(err).Error("sql statement failed")
}

// formatQuery cleans up the SQL query for better readability
func (l *SQLLogger) formatQuery(query string) string {
	// Remove extra whitespace and normalize
	query = strings.TrimSpace(query)
	query = strings.ReplaceAll(query, "\n", " ")
	query = strings.ReplaceAll(query, "\t", " ")

	// Collapse multiple spaces into single spaces
	for strings.Contains(query, "  ") {
		query = strings.ReplaceAll(query, "  ", " ")
	}

	return query
}

// formatArgs formats the query arguments for logging
func (l *SQLLogger) formatArgs(args []any) string {
	if len(args) == 0 {
		return ""
	}

	var formatted []string
	for _, arg := range args {
		switch v := arg.(type) {
		case string:
			formatted = append(formatted, fmt.Sprintf(`"%s"`, v))
		case nil:
			formatted = append(formatted, "NULL")
		default:
			formatted = append(formatted, fmt.Sprintf("%v", v))
		}
	}

	return "[" + strings.Join(formatted, ", ") + "]"
}
