package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned for unknown or expired sessions.
var ErrNotFound = errors.New("session not found")

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// AppSessionStore keeps login sessions in redis. Every session id is also
// indexed under its user so all of a user's sessions can be revoked at once.
type AppSessionStore struct {
	rdb *redis.Client
	ttl time.Duration
	now func() time.Time
}

func NewAppSessionStore(rdb *redis.Client, ttl time.Duration) *AppSessionStore {
	return &AppSessionStore{rdb: rdb, ttl: ttl, now: time.Now}
}

type AppSession struct {
	ID        string `json:"-"`
	UserID    string `json:"uid"`
	IP        string `json:"ip,omitempty"`
	UserAgent string `json:"ua,omitempty"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

func key(id string) string         { return fmt.Sprintf("app:sess:%s", id) }
func userSetKey(uid string) string { return fmt.Sprintf("app:user_sessions:%s", uid) }
func seenKey(uid string) string    { return fmt.Sprintf("app:seen:%s", uid) }

// NewID returns a random URL-safe session id.
func NewID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("session id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func (s *AppSessionStore) TTL() time.Duration { return s.ttl }

// Create starts a session for userID and returns it with a fresh id.
func (s *AppSessionStore) Create(ctx context.Context, userID, ip, ua string) (*AppSession, error) {
	id, err := NewID()
	if err != nil {
		return nil, err
	}
	now := s.now()
	as := &AppSession{
		ID:        id,
		UserID:    userID,
		IP:        ip,
		UserAgent: ua,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(s.ttl).Unix(),
	}
	b, err := codec.Marshal(as)
	if err != nil {
		return nil, err
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, key(id), b, s.ttl)
	pipe.SAdd(ctx, userSetKey(userID), id)
	pipe.Expire(ctx, userSetKey(userID), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	return as, nil
}

func (s *AppSessionStore) Get(ctx context.Context, id string) (*AppSession, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	b, err := s.rdb.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	var as AppSession
	if err := codec.Unmarshal(b, &as); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	as.ID = id
	return &as, nil
}

func (s *AppSessionStore) Delete(ctx context.Context, id string) error {
	as, err := s.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, key(id))
	if as != nil {
		pipe.SRem(ctx, userSetKey(as.UserID), id)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// RevokeAllForUser ends every session of userID. Used on delete, deactivation,
// role and password changes.
func (s *AppSessionStore) RevokeAllForUser(ctx context.Context, userID string) error {
	ids, err := s.rdb.SMembers(ctx, userSetKey(userID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}

	pipe := s.rdb.TxPipeline()
	for _, sid := range ids {
		pipe.Del(ctx, key(sid))
	}
	pipe.Del(ctx, userSetKey(userID))
	_, err = pipe.Exec(ctx)
	return err
}

// ShouldTouchSeen reports whether the user's last-seen stamp is due, at most
// once per every.
func (s *AppSessionStore) ShouldTouchSeen(ctx context.Context, userID string, every time.Duration) (bool, error) {
	return s.rdb.SetNX(ctx, seenKey(userID), 1, every).Result()
}
