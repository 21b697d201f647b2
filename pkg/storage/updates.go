package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ZentaChain/zentalk-gateway/pkg/tl"
	"github.com/ZentaChain/zentalk-gateway/pkg/updates"
)

// Updates is the sqlite updates.Store. Counters live in update_state and
// pts-carrying updates are appended to update_log in the same transaction.
type Updates struct {
	db *DB
}

func (s *DB) Updates() *Updates { return &Updates{db: s} }

var _ updates.Store = (*Updates)(nil)

func counterColumn(c updates.Counter) (string, error) {
	switch c {
	case updates.CounterPts:
		return "pts", nil
	case updates.CounterQts:
		return "qts", nil
	case updates.CounterSeq:
		return "seq", nil
	}
	return "", updates.ErrUnknownCounter
}

func (u *Updates) State(ctx context.Context, authID int64) (updates.State, error) {
	var st updates.State
	err := u.db.db.QueryRowContext(ctx,
		`SELECT pts, qts, seq, date FROM update_state WHERE auth_id = ?`, authID,
	).Scan(&st.Pts, &st.Qts, &st.Seq, &st.Date)
	if errors.Is(err, sql.ErrNoRows) {
		return updates.State{Date: int32(u.db.now().Unix())}, nil
	}
	if err != nil {
		return updates.State{}, fmt.Errorf("failed to load update state: %w", err)
	}
	return st, nil
}

func (u *Updates) Apply(ctx context.Context, authID int64, c updates.Counter, effect updates.Effect, build updates.Builder) (updates.State, tl.Object, error) {
	column, err := counterColumn(c)
	if err != nil {
		return updates.State{}, nil, err
	}

	tx, err := u.db.db.BeginTx(ctx, nil)
	if err != nil {
		return updates.State{}, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if effect != nil {
		if err := effect(ctx, tx); err != nil {
			return updates.State{}, nil, err
		}
	}

	now := u.db.now()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO update_state (auth_id, date) VALUES (?, ?) ON CONFLICT(auth_id) DO NOTHING`,
		authID, now.Unix()); err != nil {
		return updates.State{}, nil, fmt.Errorf("failed to init update state: %w", err)
	}

	var st updates.State
	err = tx.QueryRowContext(ctx,
		`UPDATE update_state SET `+column+` = `+column+` + 1, date = ? WHERE auth_id = ?
		RETURNING pts, qts, seq, date`, now.Unix(), authID,
	).Scan(&st.Pts, &st.Qts, &st.Seq, &st.Date)
	if err != nil {
		return updates.State{}, nil, fmt.Errorf("failed to increment %s: %w", c, err)
	}

	var obj tl.Object
	if build != nil {
		obj = build(st)
	}
	if obj != nil && c == updates.CounterPts {
		payload, err := tl.Marshal(obj)
		if err != nil {
			return updates.State{}, nil, err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO update_log (auth_id, pts, date, payload, expires_at) VALUES (?, ?, ?, ?, ?)`,
			authID, st.Pts, st.Date, payload, now.Add(u.db.opts.UpdateTTL).Unix()); err != nil {
			return updates.State{}, nil, fmt.Errorf("failed to log update: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return updates.State{}, nil, fmt.Errorf("failed to commit update: %w", err)
	}
	return st, obj, nil
}

// Since returns logged updates with pts greater than pts, oldest first.
func (u *Updates) Since(ctx context.Context, authID int64, pts int32) ([]updates.Entry, error) {
	rows, err := u.db.db.QueryContext(ctx, `
		SELECT pts, date, payload FROM update_log
		WHERE auth_id = ? AND pts > ? AND expires_at > ?
		ORDER BY pts ASC`, authID, pts, u.db.now().Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query update log: %w", err)
	}
	defer rows.Close()

	var out []updates.Entry
	for rows.Next() {
		var (
			e       updates.Entry
			payload []byte
		)
		if err := rows.Scan(&e.Pts, &e.Date, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan update: %w", err)
		}
		if e.Object, err = tl.Decode(payload); err != nil {
			return nil, fmt.Errorf("logged update at pts %d: %w", e.Pts, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
