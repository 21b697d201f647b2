package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ZentaChain/zentalk-gateway/pkg/tl"
	"github.com/ZentaChain/zentalk-gateway/pkg/updates"
)

// UserRecord is a row of the users table.
type UserRecord struct {
	ID         int64
	AccessHash int64
	FirstName  string
	LastName   string
	Username   string
	Phone      string
	IsBot      bool
}

// Object renders the record as the current user constructor.
func (r *UserRecord) Object() *tl.User {
	u := &tl.User{ID: r.ID, AccessHash: r.AccessHash}
	u.Flags.Set(tl.UserFlagAccessHash)
	if r.FirstName != "" {
		u.Flags.Set(tl.UserFlagFirstName)
		u.FirstName = r.FirstName
	}
	if r.LastName != "" {
		u.Flags.Set(tl.UserFlagLastName)
		u.LastName = r.LastName
	}
	if r.Username != "" {
		u.Flags.Set(tl.UserFlagUsername)
		u.Username = r.Username
	}
	if r.Phone != "" {
		u.Flags.Set(tl.UserFlagPhone)
		u.Phone = r.Phone
	}
	if r.IsBot {
		u.Flags.Set(tl.UserFlagBot)
	}
	return u
}

// Users is the users table plus channel membership.
type Users struct {
	db *DB
}

func (s *DB) Users() *Users { return &Users{db: s} }

func nullableUsername(name string) any {
	if name == "" {
		return nil
	}
	return name
}

// Put inserts or replaces a user.
func (u *Users) Put(ctx context.Context, r *UserRecord) error {
	_, err := u.db.db.ExecContext(ctx, `
		INSERT INTO users (id, access_hash, first_name, last_name, username, phone, is_bot)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET access_hash = excluded.access_hash,
			first_name = excluded.first_name, last_name = excluded.last_name,
			username = excluded.username, phone = excluded.phone, is_bot = excluded.is_bot`,
		r.ID, r.AccessHash, r.FirstName, r.LastName, nullableUsername(r.Username), r.Phone, boolToInt(r.IsBot))
	if isUniqueViolation(err) {
		return ErrUsernameOccupied
	}
	if err != nil {
		return fmt.Errorf("failed to store user: %w", err)
	}
	return nil
}

func (u *Users) Get(ctx context.Context, id int64) (*UserRecord, error) {
	r := &UserRecord{}
	var (
		username sql.NullString
		isBot    int
	)
	err := u.db.db.QueryRowContext(ctx, `
		SELECT id, access_hash, first_name, last_name, username, phone, is_bot
		FROM users WHERE id = ?`, id,
	).Scan(&r.ID, &r.AccessHash, &r.FirstName, &r.LastName, &username, &r.Phone, &isBot)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	r.Username = username.String
	r.IsBot = isBot != 0
	return r, nil
}

// SetUsername returns the effect that renames a user inside an update
// transaction.
func (u *Users) SetUsername(userID int64, username string) updates.Effect {
	return func(ctx context.Context, tx updates.Execer) error {
		result, err := tx.ExecContext(ctx, `UPDATE users SET username = ? WHERE id = ?`, nullableUsername(username), userID)
		if isUniqueViolation(err) {
			return ErrUsernameOccupied
		}
		if err != nil {
			return fmt.Errorf("failed to set username: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	}
}

// Channels lists the channels userID is a member of.
func (u *Users) Channels(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := u.db.db.QueryContext(ctx,
		`SELECT channel_id FROM channel_members WHERE user_id = ? ORDER BY channel_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query channels: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (u *Users) JoinChannel(ctx context.Context, channelID, userID int64) error {
	_, err := u.db.db.ExecContext(ctx,
		`INSERT INTO channel_members (channel_id, user_id) VALUES (?, ?) ON CONFLICT DO NOTHING`, channelID, userID)
	if err != nil {
		return fmt.Errorf("failed to join channel: %w", err)
	}
	return nil
}

func (u *Users) LeaveChannel(ctx context.Context, channelID, userID int64) error {
	_, err := u.db.db.ExecContext(ctx,
		`DELETE FROM channel_members WHERE channel_id = ? AND user_id = ?`, channelID, userID)
	if err != nil {
		return fmt.Errorf("failed to leave channel: %w", err)
	}
	return nil
}
