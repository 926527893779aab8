package state

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/danielpatrickdp/adaptive-assessment/internal/inventory"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// #region store-struct
// SQLiteStore persists sessions, versioned assessments, and history in SQLite.
// Every committed turn writes a new assessment version; active_assessments
// points at the current one per (user, inventory).
type SQLiteStore struct {
	db *sql.DB
}
// #endregion store-struct

// #region constructor
// NewSQLiteStore opens a SQLite database and runs migrations.
func NewSQLiteStore(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One connection keeps pragmas and :memory: databases consistent.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	fsys, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrations fs: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
// #endregion close

// #region db-accessor
// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}
// #endregion db-accessor

// #region stage
func (s *SQLiteStore) Stage(ctx context.Context, userID string) (int, bool, error) {
	var idx int
	err := s.db.QueryRowContext(ctx,
		`SELECT stage_index FROM sessions WHERE user_id = ?`, userID,
	).Scan(&idx)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get stage: %w", err)
	}
	return idx, true, nil
}

func (s *SQLiteStore) SetStage(ctx context.Context, userID string, index int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (user_id, stage_index, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET stage_index = excluded.stage_index, updated_at = excluded.updated_at`,
		userID, index, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("set stage: %w", err)
	}
	return nil
}
// #endregion stage

// #region get-current
// Assessment reads the active assessment version for key.
func (s *SQLiteStore) Assessment(ctx context.Context, key Key) (Assessment, bool, error) {
	var versionID string
	err := s.db.QueryRowContext(ctx,
		`SELECT version_id FROM active_assessments WHERE user_id = ? AND inventory = ?`,
		key.UserID, string(key.Inventory),
	).Scan(&versionID)
	if errors.Is(err, sql.ErrNoRows) {
		return Assessment{}, false, nil
	}
	if err != nil {
		return Assessment{}, false, fmt.Errorf("get active: %w", err)
	}
	a, err := s.GetVersion(ctx, versionID)
	if err != nil {
		return Assessment{}, false, err
	}
	return a, true, nil
}
// #endregion get-current

// #region get-version
// GetVersion retrieves a specific assessment version by ID.
func (s *SQLiteStore) GetVersion(ctx context.Context, id string) (Assessment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT version_id, parent_id, user_id, inventory, scores, confidence, finished, created_at
		 FROM assessment_versions WHERE version_id = ?`, id,
	)
	a, err := scanAssessment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Assessment{}, fmt.Errorf("version %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Assessment{}, fmt.Errorf("get version %s: %w", id, err)
	}
	return a, nil
}
// #endregion get-version

// #region history
func (s *SQLiteStore) History(ctx context.Context, key Key) ([]Turn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, created_at FROM conversation_turns
		 WHERE user_id = ? AND inventory = ? ORDER BY id ASC`,
		key.UserID, string(key.Inventory),
	)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	defer rows.Close()

	turns := []Turn{}
	for rows.Next() {
		var t Turn
		var role, createdStr string
		if err := rows.Scan(&role, &t.Content, &createdStr); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		t.Role = Role(role)
		t.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

func (s *SQLiteStore) AppendTurn(ctx context.Context, key Key, turn Turn) error {
	return insertTurn(ctx, s.db, key, turn)
}
// #endregion history

// #region commit-state
// CommitTurn inserts the turns, a new assessment version, and moves the
// active pointer in one transaction.
func (s *SQLiteStore) CommitTurn(ctx context.Context, c Commit) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, t := range c.Turns {
		if err := insertTurn(ctx, tx, c.Key, t); err != nil {
			return err
		}
	}
	if err := insertVersion(ctx, tx, c.Assessment, c.MetricsJSON); err != nil {
		return err
	}
	return tx.Commit()
}
// #endregion commit-state

// #region delete-user
func (s *SQLiteStore) DeleteUser(ctx context.Context, userID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM active_assessments WHERE user_id = ?`,
		`DELETE FROM assessment_versions WHERE user_id = ?`,
		`DELETE FROM conversation_turns WHERE user_id = ?`,
		`DELETE FROM sessions WHERE user_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, userID); err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
	}
	return tx.Commit()
}
// #endregion delete-user

// #region rollback
// Rollback points the active assessment for key at an earlier version.
func (s *SQLiteStore) Rollback(ctx context.Context, key Key, targetVersionID string) error {
	target, err := s.GetVersion(ctx, targetVersionID)
	if err != nil {
		return err
	}
	if target.Key() != key {
		return fmt.Errorf("version %s belongs to %s/%s", targetVersionID, target.UserID, target.Inventory)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE active_assessments SET version_id = ? WHERE user_id = ? AND inventory = ?`,
		targetVersionID, key.UserID, string(key.Inventory),
	)
	if err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}
// #endregion rollback

// #region list-versions
// ListVersions returns the most recent assessment versions for key, newest first.
func (s *SQLiteStore) ListVersions(ctx context.Context, key Key, limit int) ([]Assessment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT version_id, parent_id, user_id, inventory, scores, confidence, finished, created_at
		 FROM assessment_versions WHERE user_id = ? AND inventory = ?
		 ORDER BY rowid DESC LIMIT ?`,
		key.UserID, string(key.Inventory), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var records []Assessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		records = append(records, a)
	}
	return records, rows.Err()
}
// #endregion list-versions

// #region helpers
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type scanner interface {
	Scan(dest ...any) error
}

func insertTurn(ctx context.Context, db execer, key Key, t Turn) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO conversation_turns (user_id, inventory, role, content, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		key.UserID, string(key.Inventory), string(t.Role), t.Content,
		t.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert turn: %w", err)
	}
	return nil
}

func insertVersion(ctx context.Context, tx *sql.Tx, a Assessment, metricsJSON string) error {
	if a.VersionID == "" {
		return errors.New("assessment has no version id")
	}
	scores, err := json.Marshal(a.Scores)
	if err != nil {
		return fmt.Errorf("marshal scores: %w", err)
	}
	conf, err := json.Marshal(a.Confidence)
	if err != nil {
		return fmt.Errorf("marshal confidence: %w", err)
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	var parentPtr interface{}
	if a.ParentID != "" {
		parentPtr = a.ParentID
	}
	var metricsPtr interface{}
	if metricsJSON != "" {
		metricsPtr = metricsJSON
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO assessment_versions
		 (version_id, parent_id, user_id, inventory, scores, confidence, finished, created_at, metrics_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.VersionID, parentPtr, a.UserID, string(a.Inventory), string(scores), string(conf),
		a.Finished, a.CreatedAt.Format(time.RFC3339Nano), metricsPtr,
	)
	if err != nil {
		return fmt.Errorf("insert version: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO active_assessments (user_id, inventory, version_id) VALUES (?, ?, ?)
		 ON CONFLICT(user_id, inventory) DO UPDATE SET version_id = excluded.version_id`,
		a.UserID, string(a.Inventory), a.VersionID,
	)
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}
	return nil
}

func scanAssessment(row scanner) (Assessment, error) {
	var a Assessment
	var parentID sql.NullString
	var inv, scores, conf, createdStr string
	if err := row.Scan(&a.VersionID, &parentID, &a.UserID, &inv, &scores, &conf, &a.Finished, &createdStr); err != nil {
		return Assessment{}, err
	}
	a.Inventory = inventory.ID(inv)
	if parentID.Valid {
		a.ParentID = parentID.String
	}
	if err := json.Unmarshal([]byte(scores), &a.Scores); err != nil {
		return Assessment{}, fmt.Errorf("unmarshal scores: %w", err)
	}
	if err := json.Unmarshal([]byte(conf), &a.Confidence); err != nil {
		return Assessment{}, fmt.Errorf("unmarshal confidence: %w", err)
	}
	a.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return a, nil
}
// #endregion helpers

var _ Store = (*SQLiteStore)(nil)
