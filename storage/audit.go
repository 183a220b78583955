package storage

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AuditWriter mirrors every applied persistence operation to a flat,
// append-only .sql artifact for audit and manual replay. The pipeline never
// reads it back and it carries no transactional guarantee.
type AuditWriter struct {
	mu    sync.Mutex
	file  *os.File
	w     *bufio.Writer
	path  string
	count int
}

// NewAuditWriter creates a timestamped replay file under dir.
func NewAuditWriter(dir string) (*AuditWriter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("audit: create output dir: %w", err)
	}

	now := time.Now()
	path := filepath.Join(dir, fmt.Sprintf("audit_replay_%s.sql", now.Format("060102_1504")))
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("audit: create %q: %w", path, err)
	}

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "-- property replay log\n-- started: %s\n\n", now.Format(time.RFC3339))

	return &AuditWriter{file: f, w: w, path: path}, nil
}

// Record appends one statement-equivalent line.
func (a *AuditWriter) Record(stmt string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fmt.Fprintln(a.w, stmt)
	a.count++
}

// Path returns the artifact location.
func (a *AuditWriter) Path() string {
	return a.path
}

// Close writes the trailing statement count and closes the file.
func (a *AuditWriter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	fmt.Fprintf(a.w, "\n-- statements: %d\n", a.count)
	if err := a.w.Flush(); err != nil {
		_ = a.file.Close()
		return fmt.Errorf("audit: flush: %w", err)
	}
	return a.file.Close()
}

// auditStage buffers one row's statements so that a rolled-back row never
// reaches the replay log. The writer may be nil, in which case staging is a
// no-op.
type auditStage struct {
	writer *AuditWriter
	stmts  []string
}

func (s *auditStage) add(stmt string) {
	if s.writer == nil {
		return
	}
	s.stmts = append(s.stmts, stmt)
}

// discard drops the staged statements of an undone row.
func (s *auditStage) discard() {
	s.stmts = s.stmts[:0]
}

// flush records the staged statements of a completed row.
func (s *auditStage) flush() {
	for _, stmt := range s.stmts {
		s.writer.Record(stmt)
	}
	s.stmts = s.stmts[:0]
}
