package mtproto

import (
	"context"
	"sync"

	"github.com/ZentaChain/zentalk-gateway/pkg/crypto"
)

// StoredKey is an auth key with its binding. PermID equals the key's own
// id for permanent keys, the bound permanent key for temporary keys, and
// zero for temporary keys that are not bound yet.
type StoredKey struct {
	*crypto.AuthKey
	PermID int64
}

// Bound reports whether the key can authorize RPCs.
func (k *StoredKey) Bound() bool {
	return k.PermID != 0
}

// KeyStore persists auth keys. Implementations are safe for concurrent use.
type KeyStore interface {
	Get(ctx context.Context, id int64) (*StoredKey, error)
	Put(ctx context.Context, key *crypto.AuthKey) error
	Bind(ctx context.Context, tempID, permID int64) error
	Delete(ctx context.Context, id int64) error
}

// MemoryKeyStore keeps keys in a map.
type MemoryKeyStore struct {
	mu   sync.RWMutex
	keys map[int64]*StoredKey
}

func NewMemoryKeyStore() *MemoryKeyStore {
	return &MemoryKeyStore{keys: make(map[int64]*StoredKey)}
}

func (s *MemoryKeyStore) Get(_ context.Context, id int64) (*StoredKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k, ok := s.keys[id]
	if !ok {
		return nil, ErrKeyNotFound
	}
	cp := *k
	return &cp, nil
}

func (s *MemoryKeyStore) Put(_ context.Context, key *crypto.AuthKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := &StoredKey{AuthKey: key}
	if !key.Temporary() {
		stored.PermID = key.ID
	}
	s.keys[key.ID] = stored
	return nil
}

func (s *MemoryKeyStore) Bind(_ context.Context, tempID, permID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	temp, ok := s.keys[tempID]
	if !ok {
		return ErrKeyNotFound
	}
	if _, ok := s.keys[permID]; !ok {
		return ErrKeyNotFound
	}
	temp.PermID = permID
	return nil
}

func (s *MemoryKeyStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, id)
	return nil
}
