package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// TicketTTL is how long a websocket ticket stays redeemable.
const TicketTTL = 30 * time.Second

var (
	// ErrSessionStoreUnavailable is returned when Redis is not configured.
	ErrSessionStoreUnavailable = errors.New("session store unavailable")
	// ErrTicketInvalid covers unknown, expired and already used tickets.
	ErrTicketInvalid = errors.New("invalid or expired ticket")
)

func ticketKey(ticket string) string { return fmt.Sprintf("ws_ticket:%s", ticket) }
func revokedKey(jti string) string   { return "blacklist:" + jti }

// SessionStore keeps revoked token ids and one-time websocket tickets in Redis.
// A nil client disables tickets and treats every token as live.
type SessionStore struct {
	rdb *redis.Client
}

func NewSessionStore(rdb *redis.Client) *SessionStore {
	return &SessionStore{rdb: rdb}
}

// IssueTicket stores a single-use ticket for userID.
func (s *SessionStore) IssueTicket(ctx context.Context, userID uint) (string, error) {
	if s.rdb == nil {
		return "", ErrSessionStoreUnavailable
	}
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate ticket: %w", err)
	}
	ticket := hex.EncodeToString(buf)
	if err := s.rdb.Set(ctx, ticketKey(ticket), userID, TicketTTL).Err(); err != nil {
		return "", fmt.Errorf("store ticket: %w", err)
	}
	return ticket, nil
}

// RedeemTicket consumes a ticket atomically and returns its user.
func (s *SessionStore) RedeemTicket(ctx context.Context, ticket string) (uint, error) {
	if s.rdb == nil {
		return 0, ErrSessionStoreUnavailable
	}
	raw, err := s.rdb.GetDel(ctx, ticketKey(ticket)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrTicketInvalid
	}
	if err != nil {
		return 0, fmt.Errorf("redeem ticket: %w", err)
	}
	userID, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || userID == 0 {
		return 0, ErrTicketInvalid
	}
	return uint(userID), nil
}

// Revoke blacklists jti until the token would have expired anyway.
func (s *SessionStore) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	if s.rdb == nil || jti == "" {
		return nil
	}
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return s.rdb.Set(ctx, revokedKey(jti), 1, ttl).Err()
}

// IsRevoked reports whether jti was revoked.
func (s *SessionStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if s.rdb == nil || jti == "" {
		return false, nil
	}
	n, err := s.rdb.Exists(ctx, revokedKey(jti)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
