package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dalefocus/dalefocus/internal/ratelimit"
)

// UpdateWindow implements ratelimit.WindowStore. The read-modify-write
// runs under BEGIN IMMEDIATE so the write lock is taken before the read:
// two concurrent updates for the same principal serialize instead of both
// reading the same count. A deferred transaction would allow both to read
// under the old snapshot and one to fail on lock upgrade.
func (db *DB) UpdateWindow(ctx context.Context, principal string, fn func(w ratelimit.Window, exists bool) (ratelimit.Window, error)) error {
	conn, err := db.conn.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return fmt.Errorf("begin immediate: %w", err)
	}

	commit := false
	defer func() {
		if !commit {
			_, _ = conn.ExecContext(ctx, "ROLLBACK")
		}
	}()

	var w ratelimit.Window
	exists := true
	var windowStart string
	row := conn.QueryRowContext(ctx,
		"SELECT window_start, count FROM rate_limit_windows WHERE principal = ?", principal)
	err = row.Scan(&windowStart, &w.Count)
	switch {
	case err == sql.ErrNoRows:
		exists = false
	case err != nil:
		return fmt.Errorf("read window: %w", err)
	default:
		w.Start, err = parseTime(windowStart)
		if err != nil {
			return fmt.Errorf("parse window start: %w", err)
		}
	}

	next, err := fn(w, exists)
	if err != nil {
		return err
	}

	_, err = conn.ExecContext(ctx, `
		INSERT INTO rate_limit_windows (principal, window_start, count)
		VALUES (?, ?, ?)
		ON CONFLICT(principal) DO UPDATE SET window_start = excluded.window_start, count = excluded.count
	`, principal, formatTime(next.Start), next.Count)
	if err != nil {
		return fmt.Errorf("write window: %w", err)
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("commit window update: %w", err)
	}
	commit = true
	return nil
}
