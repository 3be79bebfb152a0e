package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/redis/go-redis/v9"
)

// Store holds WebAuthn ceremony state between the begin and finish calls.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store { return &Store{rdb: rdb, ttl: ttl} }

// Ceremony kinds.
const (
	Registration = "reg"
	Login        = "auth"
)

func ceremonyKey(kind, id string) string { return fmt.Sprintf("webauthn:%s:%s", kind, id) }

func (s *Store) Save(ctx context.Context, kind, id string, sd *webauthn.SessionData) error {
	b, err := codec.Marshal(sd)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, ceremonyKey(kind, id), b, s.ttl).Err()
}

// Take loads and removes the ceremony so it cannot be replayed.
func (s *Store) Take(ctx context.Context, kind, id string) (*webauthn.SessionData, error) {
	b, err := s.rdb.GetDel(ctx, ceremonyKey(kind, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var sd webauthn.SessionData
	if err := codec.Unmarshal(b, &sd); err != nil {
		return nil, err
	}
	return &sd, nil
}
