package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ZentaChain/zentalk-gateway/pkg/crypto"
	"github.com/ZentaChain/zentalk-gateway/pkg/mtproto"
)

// AuthKeys is the sqlite mtproto.KeyStore.
type AuthKeys struct {
	db *DB
}

func (s *DB) AuthKeys() *AuthKeys { return &AuthKeys{db: s} }

var _ mtproto.KeyStore = (*AuthKeys)(nil)

func (a *AuthKeys) Get(ctx context.Context, id int64) (*mtproto.StoredKey, error) {
	var (
		raw       []byte
		typ       int
		expiresAt int64
		permID    int64
	)
	err := a.db.db.QueryRowContext(ctx,
		`SELECT key, type, expires_at, perm_id FROM auth_keys WHERE id = ?`, id,
	).Scan(&raw, &typ, &expiresAt, &permID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, mtproto.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load auth key: %w", err)
	}

	var exp time.Time
	if expiresAt > 0 {
		exp = time.Unix(expiresAt, 0)
	}
	key, err := crypto.NewAuthKey(raw, crypto.KeyType(typ), exp)
	if err != nil {
		return nil, err
	}
	return &mtproto.StoredKey{AuthKey: key, PermID: permID}, nil
}

func (a *AuthKeys) Put(ctx context.Context, key *crypto.AuthKey) error {
	var expiresAt, permID int64
	if !key.ExpiresAt.IsZero() {
		expiresAt = key.ExpiresAt.Unix()
	}
	if !key.Temporary() {
		permID = key.ID
	}
	_, err := a.db.db.ExecContext(ctx, `
		INSERT INTO auth_keys (id, key, type, expires_at, perm_id) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET key = excluded.key, type = excluded.type,
			expires_at = excluded.expires_at, perm_id = excluded.perm_id`,
		key.ID, key.Key[:], int(key.Type), expiresAt, permID)
	if err != nil {
		return fmt.Errorf("failed to store auth key: %w", err)
	}
	return nil
}

// Bind links a temporary key to a permanent one. Both keys must exist.
func (a *AuthKeys) Bind(ctx context.Context, tempID, permID int64) error {
	result, err := a.db.db.ExecContext(ctx, `
		UPDATE auth_keys SET perm_id = ?
		WHERE id = ? AND EXISTS (SELECT 1 FROM auth_keys WHERE id = ? AND type = ?)`,
		permID, tempID, permID, int(crypto.KeyPermanent))
	if err != nil {
		return fmt.Errorf("failed to bind auth key: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return mtproto.ErrKeyNotFound
	}
	return nil
}

func (a *AuthKeys) Delete(ctx context.Context, id int64) error {
	if _, err := a.db.db.ExecContext(ctx, `DELETE FROM auth_keys WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete auth key: %w", err)
	}
	return nil
}
