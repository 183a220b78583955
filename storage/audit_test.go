package storage

import (
	"os"
	"strings"
	"testing"
)

func TestAuditWriterRecordsStatements(t *testing.T) {
	dir := t.TempDir()

	a, err := NewAuditWriter(dir)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	a.Record("INSERT INTO properties (house_id) VALUES (1);")
	a.Record("DELETE FROM property_school WHERE property_id = 1;")
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(a.Path())
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	text := string(data)

	if !strings.HasPrefix(text, "-- property replay log\n") {
		t.Errorf("missing header:\n%s", text)
	}
	if !strings.Contains(text, "INSERT INTO properties (house_id) VALUES (1);\n") {
		t.Errorf("missing insert statement:\n%s", text)
	}
	if !strings.Contains(text, "-- statements: 2\n") {
		t.Errorf("missing trailing count:\n%s", text)
	}
}

func TestAuditStageDiscardsRolledBackRow(t *testing.T) {
	dir := t.TempDir()

	a, err := NewAuditWriter(dir)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	stage := &auditStage{writer: a}
	stage.add("INSERT INTO properties (house_id) VALUES (1);")
	stage.add("INSERT INTO property_school (property_id, school_id, commute_time) VALUES (10, 1, 30);")
	stage.discard() // the row was rolled back in the store

	stage.add("INSERT INTO properties (house_id) VALUES (2);")
	stage.flush()

	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(a.Path())
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	text := string(data)

	if strings.Contains(text, "VALUES (1)") || strings.Contains(text, "property_school") {
		t.Errorf("rolled-back row leaked into the replay log:\n%s", text)
	}
	if !strings.Contains(text, "VALUES (2);\n") {
		t.Errorf("completed row missing from the replay log:\n%s", text)
	}
	if !strings.Contains(text, "-- statements: 1\n") {
		t.Errorf("statement count should only cover flushed rows:\n%s", text)
	}
}

func TestAuditStageNilWriterIsNoop(t *testing.T) {
	stage := &auditStage{}
	stage.add("INSERT INTO properties (house_id) VALUES (1);")
	if len(stage.stmts) != 0 {
		t.Errorf("nil-writer stage buffered %d statements", len(stage.stmts))
	}
	stage.flush()
	stage.discard()
}

func TestAuditWriterPathShape(t *testing.T) {
	dir := t.TempDir()

	a, err := NewAuditWriter(dir)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer a.Close()

	base := a.Path()
	if !strings.HasPrefix(base, dir) {
		t.Errorf("artifact %q not under %q", base, dir)
	}
	if !strings.Contains(base, "audit_replay_") || !strings.HasSuffix(base, ".sql") {
		t.Errorf("unexpected artifact name %q", base)
	}
}
