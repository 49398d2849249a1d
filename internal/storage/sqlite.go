package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"kanban/internal/board"

	_ "modernc.org/sqlite"
)

// SQLiteStore 基于 SQLite (WAL 模式) 的任务存储
// SQLiteStore implements Store using SQLite with WAL mode
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore 创建并初始化 SQLite 数据库
// NewSQLiteStore creates and initializes a SQLite database
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, fmt.Errorf("sqlite db path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// 单连接，保证 PRAGMA 对所有语句生效 / one connection so the PRAGMAs apply everywhere
	db.SetMaxOpenConns(1)

	// 启用 WAL 模式和优化 PRAGMA / Enable WAL and performance PRAGMAs
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}

	store := &SQLiteStore{db: db, path: dbPath}
	if err := store.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) ensureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		seq        INTEGER PRIMARY KEY AUTOINCREMENT,
		id         TEXT NOT NULL UNIQUE,
		title      TEXT NOT NULL,
		content    TEXT,
		status     TEXT NOT NULL DEFAULT 'todo',
		position   REAL NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_lane ON tasks(status, position);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Path returns the database file.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close 关闭数据库连接 / Close the database connection
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ListTasks returns every task ordered by position, then insertion.
func (s *SQLiteStore) ListTasks(ctx context.Context) ([]board.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, content, status, position
		FROM tasks ORDER BY position, seq`)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]board.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *SQLiteStore) GetTask(ctx context.Context, id string) (board.Task, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return board.Task{}, fmt.Errorf("task id is empty")
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, content, status, position FROM tasks WHERE id=?`, id)
	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return board.Task{}, fmt.Errorf("%w: %s", board.ErrNotFound, id)
		}
		return board.Task{}, fmt.Errorf("load task: %w", err)
	}
	return t, nil
}

func (s *SQLiteStore) InsertTask(ctx context.Context, t board.Task) error {
	now := nowUTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, title, content, status, position, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Title, nullString(t.Content), t.Status, t.Position, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// UpdateTask applies a partial update and returns the stored result.
func (s *SQLiteStore) UpdateTask(ctx context.Context, id string, p board.Patch) (board.Task, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return board.Task{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		SELECT id, title, content, status, position FROM tasks WHERE id=?`, id)
	current, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return board.Task{}, fmt.Errorf("%w: %s", board.ErrNotFound, id)
		}
		return board.Task{}, fmt.Errorf("load task: %w", err)
	}
	if p.Empty() {
		return current, nil
	}

	next := p.ApplyTo(current)
	if _, err := tx.ExecContext(ctx, `
		UPDATE tasks SET title=?, content=?, status=?, position=?, updated_at=?
		WHERE id=?`,
		next.Title, nullString(next.Content), next.Status, next.Position, nowUTC(), id,
	); err != nil {
		return board.Task{}, fmt.Errorf("update task: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return board.Task{}, fmt.Errorf("commit: %w", err)
	}
	return next, nil
}

func (s *SQLiteStore) DeleteTask(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE id=?", id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", board.ErrNotFound, id)
	}
	return nil
}

// TailPosition returns the largest position in a lane, or nil for an empty
// lane.
func (s *SQLiteStore) TailPosition(ctx context.Context, status string) (*float64, error) {
	var tail sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		"SELECT MAX(position) FROM tasks WHERE status=?", status).Scan(&tail)
	if err != nil {
		return nil, fmt.Errorf("tail position: %w", err)
	}
	if !tail.Valid {
		return nil, nil
	}
	v := tail.Float64
	return &v, nil
}

// --- Helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (board.Task, error) {
	var t board.Task
	var content sql.NullString
	if err := row.Scan(&t.ID, &t.Title, &content, &t.Status, &t.Position); err != nil {
		return board.Task{}, err
	}
	if content.Valid {
		c := content.String
		t.Content = &c
	}
	return t, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nowUTC() string {
	return time.Now().UTC().Format(time.RFC3339)
}
