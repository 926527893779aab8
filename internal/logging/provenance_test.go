package logging

import (
	"bytes"
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// #region helpers
func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	_, err = db.Exec(`CREATE TABLE provenance_log (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id      TEXT NOT NULL,
		inventory    TEXT NOT NULL,
		version_id   TEXT,
		trigger_type TEXT NOT NULL,
		input_text   TEXT,
		observation  TEXT,
		decision     TEXT NOT NULL,
		reason       TEXT,
		created_at   TEXT NOT NULL
	)`)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	return db
}

// #endregion helpers

// #region log-decision-tests
func TestLogDecision_Success(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	entry := ProvenanceEntry{
		UserID:          "u1",
		Inventory:       "interests",
		VersionID:       "v1",
		TriggerType:     TriggerTurn,
		InputText:       "I like fixing engines",
		ObservationJSON: `{"should_finish":false}`,
		Decision:        DecisionCommit,
		Reason:          "delta norm: 0.3",
		CreatedAt:       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	if err := LogDecision(context.Background(), db, entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var count int
	db.QueryRow("SELECT COUNT(*) FROM provenance_log").Scan(&count)
	if count != 1 {
		t.Errorf("expected 1 row, got %d", count)
	}

	var versionID, decision string
	db.QueryRow("SELECT version_id, decision FROM provenance_log").Scan(&versionID, &decision)
	if versionID != "v1" {
		t.Errorf("expected version_id 'v1', got %q", versionID)
	}
	if decision != "commit" {
		t.Errorf("expected decision 'commit', got %q", decision)
	}
}

func TestLogDecision_ZeroCreatedAt(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	before := time.Now().UTC()
	err := LogDecision(context.Background(), db, ProvenanceEntry{UserID: "u1", Inventory: "skills", TriggerType: TriggerTurn, Decision: DecisionNoOp})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var createdAtStr string
	db.QueryRow("SELECT created_at FROM provenance_log").Scan(&createdAtStr)
	createdAt, err := time.Parse(time.RFC3339Nano, createdAtStr)
	if err != nil {
		t.Fatalf("parse created_at: %v", err)
	}
	if createdAt.Before(before) {
		t.Error("expected auto-filled created_at to be >= test start time")
	}
}

func TestLogDecision_EmptyOptionalFields(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	err := LogDecision(context.Background(), db, ProvenanceEntry{UserID: "u1", Inventory: "values", TriggerType: TriggerTurn, Decision: DecisionDegraded})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var versionID, input, obs, reason sql.NullString
	db.QueryRow("SELECT version_id, input_text, observation, reason FROM provenance_log").Scan(
		&versionID, &input, &obs, &reason,
	)
	if versionID.Valid || input.Valid || obs.Valid || reason.Valid {
		t.Error("expected NULL optional columns for empty strings")
	}
}

func TestLogDecision_Error(t *testing.T) {
	db := setupDB(t)
	db.Close() // close to force error

	err := LogDecision(context.Background(), db, ProvenanceEntry{UserID: "u1", TriggerType: TriggerTurn, Decision: DecisionCommit})
	if err == nil {
		t.Fatal("expected error on closed db")
	}
}

// #endregion log-decision-tests

// #region read-entries-tests
func TestReadEntries_SinceReset(t *testing.T) {
	db := setupDB(t)
	defer db.Close()
	ctx := context.Background()

	log := func(user, trigger, decision string) {
		t.Helper()
		if err := LogDecision(ctx, db, ProvenanceEntry{UserID: user, Inventory: "interests", TriggerType: trigger, Decision: decision}); err != nil {
			t.Fatalf("LogDecision: %v", err)
		}
	}
	log("u1", TriggerTurn, DecisionCommit)
	log("u2", TriggerTurn, DecisionCommit)
	log("u1", TriggerReset, DecisionReset)
	log("u1", TriggerTurn, DecisionNoOp)

	all, err := ReadEntries(ctx, db, "u1", false)
	if err != nil {
		t.Fatalf("ReadEntries: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(all))
	}

	recent, err := ReadEntries(ctx, db, "u1", true)
	if err != nil {
		t.Fatalf("ReadEntries: %v", err)
	}
	if len(recent) != 1 || recent[0].Decision != DecisionNoOp {
		t.Fatalf("expected only the post-reset entry, got %+v", recent)
	}

	none, _ := ReadEntries(ctx, db, "u2", true)
	if len(none) != 1 {
		t.Fatalf("user without reset should see all entries, got %d", len(none))
	}
}

// #endregion read-entries-tests

// #region recorder-tests
func TestRecorder_WritesAndLogs(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	var buf bytes.Buffer
	r := NewRecorder(db, zerolog.New(&buf).Level(zerolog.DebugLevel))
	r.Record(context.Background(), ProvenanceEntry{UserID: "u1", Inventory: "traits", TriggerType: TriggerTurn, Decision: DecisionFinish, Reason: "done"})

	var count int
	db.QueryRow("SELECT COUNT(*) FROM provenance_log").Scan(&count)
	if count != 1 {
		t.Errorf("expected 1 row, got %d", count)
	}
	if !strings.Contains(buf.String(), `"decision":"finish"`) {
		t.Errorf("expected decision in log output, got %s", buf.String())
	}
}

func TestRecorder_NilDBAndWriteFailure(t *testing.T) {
	NewRecorder(nil, zerolog.Nop()).Record(context.Background(), ProvenanceEntry{Decision: DecisionCommit})

	db := setupDB(t)
	db.Close()
	var buf bytes.Buffer
	NewRecorder(db, zerolog.New(&buf)).Record(context.Background(), ProvenanceEntry{UserID: "u1", Decision: DecisionCommit})
	if !strings.Contains(buf.String(), "provenance write failed") {
		t.Errorf("expected warning on failed write, got %s", buf.String())
	}
}

func TestNew_LevelFallback(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "bogus", false)
	if l.GetLevel() != zerolog.InfoLevel {
		t.Errorf("expected info level, got %s", l.GetLevel())
	}
	l.Debug().Msg("hidden")
	l.Info().Msg("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

// #endregion recorder-tests

// #region null-if-empty-tests
func TestNullIfEmpty(t *testing.T) {
	if nullIfEmpty("") != nil {
		t.Error("expected nil for empty string")
	}
	if nullIfEmpty("hello") != "hello" {
		t.Error("expected 'hello'")
	}
}

// #endregion null-if-empty-tests
