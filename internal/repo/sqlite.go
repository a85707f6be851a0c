package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"ofs-bridge/internal/model"
)

// DefaultLimit caps listings when the caller passes a non-positive limit.
const DefaultLimit = 100

type SQLiteRepo struct {
	db *sql.DB
}

func NewSQLiteRepo(path string) (*SQLiteRepo, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a single writer keeps concurrent relay requests from hitting SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	r := &SQLiteRepo{db: db}
	if err := r.init(); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *SQLiteRepo) init() error {
	_, err := r.db.Exec(`CREATE TABLE IF NOT EXISTS exchanges(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		request_id TEXT NOT NULL DEFAULT '',
		cmd TEXT NOT NULL DEFAULT '',
		request TEXT NOT NULL,
		response TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		status INTEGER NOT NULL,
		duration_ns INTEGER NOT NULL,
		created_at_ns INTEGER NOT NULL
	);`)
	if err != nil {
		return fmt.Errorf("failed to create exchanges table: %w", err)
	}
	return nil
}

func (r *SQLiteRepo) SaveExchange(ctx context.Context, e *model.Exchange) error {
	if e == nil {
		return errors.New("nil exchange")
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	res, err := r.db.ExecContext(ctx, `INSERT INTO exchanges(request_id, cmd, request, response, error, status, duration_ns, created_at_ns)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RequestID, e.Cmd, e.Request, e.Response, e.Error, e.Status, int64(e.Duration), e.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to save exchange: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read exchange id: %w", err)
	}
	e.ID = id
	return nil
}

func (r *SQLiteRepo) RecentExchanges(ctx context.Context, limit int) ([]model.Exchange, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := r.db.QueryContext(ctx, `SELECT id, request_id, cmd, request, response, error, status, duration_ns, created_at_ns
		FROM exchanges ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list exchanges: %w", err)
	}
	defer rows.Close()

	var out []model.Exchange
	for rows.Next() {
		var (
			e         model.Exchange
			durNs     int64
			createdNs int64
		)
		if err := rows.Scan(&e.ID, &e.RequestID, &e.Cmd, &e.Request, &e.Response, &e.Error, &e.Status, &durNs, &createdNs); err != nil {
			return nil, fmt.Errorf("failed to scan exchange: %w", err)
		}
		e.Duration = time.Duration(durNs)
		e.CreatedAt = time.Unix(0, createdNs)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}
