package notifications

import (
	"context"
	"slices"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultPresenceKey    = "ws:online_users"
	defaultLastSeenPrefix = "ws:last_seen:"
	// A user whose last_seen key lapses is treated as offline, even if an
	// instance died without decrementing its count.
	defaultPresenceTTL    = 90 * time.Second
	defaultReaperInterval = 30 * time.Second
)

// Presence mirrors per-user connection counts into a Redis hash so every
// instance sees the same online set. Each online user also has a last_seen
// key that live instances refresh; entries without one are stale.
type Presence struct {
	rdb            *redis.Client
	key            string
	lastSeenPrefix string
	ttl            time.Duration
}

func NewPresence(rdb *redis.Client) *Presence {
	return &Presence{
		rdb:            rdb,
		key:            defaultPresenceKey,
		lastSeenPrefix: defaultLastSeenPrefix,
		ttl:            defaultPresenceTTL,
	}
}

func (p *Presence) lastSeenKey(field string) string {
	return p.lastSeenPrefix + field
}

func userField(userID uint) string {
	return strconv.FormatUint(uint64(userID), 10)
}

// Connected records one more connection for userID.
func (p *Presence) Connected(ctx context.Context, userID uint) error {
	field := userField(userID)
	_, err := p.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetEx(ctx, p.lastSeenKey(field), time.Now().Unix(), p.ttl)
		pipe.HIncrBy(ctx, p.key, field, 1)
		return nil
	})
	return err
}

// Touch extends the user's last_seen lease. A hash entry removed by a
// concurrent reap is restored with a single connection.
func (p *Presence) Touch(ctx context.Context, userID uint) error {
	field := userField(userID)
	_, err := p.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetEx(ctx, p.lastSeenKey(field), time.Now().Unix(), p.ttl)
		pipe.HSetNX(ctx, p.key, field, 1)
		return nil
	})
	return err
}

// Disconnected drops one connection and removes the user when none remain.
// It reports whether the user went offline.
func (p *Presence) Disconnected(ctx context.Context, userID uint) (bool, error) {
	field := userField(userID)
	n, err := p.rdb.HIncrBy(ctx, p.key, field, -1).Result()
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	_, err = p.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, p.key, field)
		pipe.Del(ctx, p.lastSeenKey(field))
		return nil
	})
	return true, err
}

// partition splits the hash fields into users with a live lease and stale ones.
func (p *Presence) partition(ctx context.Context) (live []uint, stale []string, err error) {
	fields, err := p.rdb.HKeys(ctx, p.key).Result()
	if err != nil || len(fields) == 0 {
		return nil, nil, err
	}

	checks := make([]*redis.IntCmd, len(fields))
	_, err = p.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, f := range fields {
			checks[i] = pipe.Exists(ctx, p.lastSeenKey(f))
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	for i, f := range fields {
		id, perr := strconv.ParseUint(f, 10, 32)
		if perr != nil || checks[i].Val() == 0 {
			stale = append(stale, f)
			continue
		}
		live = append(live, uint(id))
	}
	slices.Sort(live)
	return live, stale, nil
}

// Online returns the ids of users connected to any instance, ascending.
// Users whose lease lapsed are left out even before they are reaped.
func (p *Presence) Online(ctx context.Context) ([]uint, error) {
	live, _, err := p.partition(ctx)
	if err != nil {
		return nil, err
	}
	if live == nil {
		live = []uint{}
	}
	return live, nil
}

// Reap deletes hash entries whose lease lapsed and returns how many it removed.
func (p *Presence) Reap(ctx context.Context) (int, error) {
	_, stale, err := p.partition(ctx)
	if err != nil || len(stale) == 0 {
		return 0, err
	}
	if err := p.rdb.HDel(ctx, p.key, stale...).Err(); err != nil {
		return 0, err
	}
	return len(stale), nil
}
