package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"
)

// CacheClient defines the subset of Redis commands we need.
type CacheClient interface {
	// SetNX claims the key if free, reporting whether the claim won.
	SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error)
}

// DedupStore suppresses duplicate wake-ups. SIP retransmissions can
// deliver the same invite event several times; only the first push per
// (call, device) pair within the TTL should go out.
type DedupStore struct {
	cache  CacheClient
	ttl    time.Duration
	logger *slog.Logger
}

func NewDedupStore(cache CacheClient, ttl time.Duration, logger *slog.Logger) *DedupStore {
	return &DedupStore{
		cache:  cache,
		ttl:    ttl,
		logger: logger.With("component", "dedup"),
	}
}

// FirstSeen claims the (callID, token) pair and reports whether this is
// its first appearance within the TTL. A cache failure is treated as
// first-seen: a duplicate push beats a dropped one.
func (s *DedupStore) FirstSeen(ctx context.Context, callID, token string) bool {
	key := s.dedupKey(callID, token)
	won, err := s.cache.SetNX(ctx, key, "1", s.ttl)
	if err != nil {
		s.logger.Warn("Dedup check failed, letting push through", "call_id", callID, "err", err)
		return true
	}
	return won
}

func (s *DedupStore) dedupKey(callID, token string) string {
	// Device tokens can be long and contain arbitrary bytes; hash them
	// into the key.
	sum := sha256.Sum256([]byte(token))
	return fmt.Sprintf("push:dedup:%s:%s", callID, hex.EncodeToString(sum[:]))
}
