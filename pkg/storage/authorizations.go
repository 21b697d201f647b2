package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ZentaChain/zentalk-gateway/pkg/session"
)

// Authorizations maps permanent auth keys to signed-in users.
type Authorizations struct {
	db *DB
}

func (s *DB) Authorizations() *Authorizations { return &Authorizations{db: s} }

// Lookup returns the authorization of a permanent key, or ErrNotFound when
// the key is not signed in.
func (a *Authorizations) Lookup(ctx context.Context, permAuthKeyID int64) (session.Authorization, error) {
	auth := session.Authorization{PermAuthKeyID: permAuthKeyID}
	var isBot int
	err := a.db.db.QueryRowContext(ctx, `
		SELECT a.id, a.user_id, u.is_bot
		FROM authorizations a JOIN users u ON u.id = a.user_id
		WHERE a.perm_auth_key_id = ?`, permAuthKeyID,
	).Scan(&auth.AuthID, &auth.UserID, &isBot)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Authorization{}, ErrNotFound
	}
	if err != nil {
		return session.Authorization{}, fmt.Errorf("failed to load authorization: %w", err)
	}
	auth.IsBot = isBot != 0
	return auth, nil
}

// Create signs userID in on a permanent key, replacing any previous
// authorization of that key.
func (a *Authorizations) Create(ctx context.Context, permAuthKeyID, userID int64) (session.Authorization, error) {
	_, err := a.db.db.ExecContext(ctx, `
		INSERT INTO authorizations (perm_auth_key_id, user_id) VALUES (?, ?)
		ON CONFLICT(perm_auth_key_id) DO UPDATE SET user_id = excluded.user_id`,
		permAuthKeyID, userID)
	if err != nil {
		return session.Authorization{}, fmt.Errorf("failed to create authorization: %w", err)
	}
	return a.Lookup(ctx, permAuthKeyID)
}

// Delete signs the key out.
func (a *Authorizations) Delete(ctx context.Context, permAuthKeyID int64) error {
	if _, err := a.db.db.ExecContext(ctx, `DELETE FROM authorizations WHERE perm_auth_key_id = ?`, permAuthKeyID); err != nil {
		return fmt.Errorf("failed to delete authorization: %w", err)
	}
	return nil
}
