package services

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/soulseer/settlement/internal/models"
)

// BalanceCache is a read-through cache for GET balance. It is never consulted
// by a settlement: every balance decision re-reads the locked row. Commits
// write their snapshots through, and a write never replaces a newer version.
// A nil client disables caching.
type BalanceCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewBalanceCache(rdb *redis.Client, ttl time.Duration) *BalanceCache {
	return &BalanceCache{rdb: rdb, ttl: ttl}
}

func balanceKey(accountID string) string {
	return "balance:" + accountID
}

// setIfNewer stores ARGV[1] unless the cached snapshot already carries a
// version of at least ARGV[2]. ARGV[3] is the TTL in milliseconds.
const setIfNewer = `local current = redis.call('GET', KEYS[1])
if current then
	local ok, cached = pcall(cjson.decode, current)
	if ok and cached['version'] and tonumber(cached['version']) >= tonumber(ARGV[2]) then
		return 0
	end
end
if tonumber(ARGV[3]) > 0 then
	redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
else
	redis.call('SET', KEYS[1], ARGV[1])
end
return 1`

func (c *BalanceCache) Get(ctx context.Context, accountID string) (*models.Account, bool) {
	if c == nil || c.rdb == nil {
		return nil, false
	}
	data, err := c.rdb.Get(ctx, balanceKey(accountID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("[CACHE] balance read failed for %s: %v", accountID, err)
		}
		return nil, false
	}
	var account models.Account
	if err := json.Unmarshal([]byte(data), &account); err != nil {
		return nil, false
	}
	return &account, true
}

// Set caches each snapshot unless a newer version is already cached, so a
// slow reader can never overwrite what a later commit wrote.
func (c *BalanceCache) Set(ctx context.Context, accounts ...*models.Account) {
	if c == nil || c.rdb == nil {
		return
	}
	for _, account := range accounts {
		data, err := json.Marshal(account)
		if err != nil {
			continue
		}
		err = c.rdb.Eval(ctx, setIfNewer, []string{balanceKey(account.ID)},
			string(data), account.Version, c.ttl.Milliseconds()).Err()
		if err != nil {
			log.Printf("[CACHE] balance write failed for %s: %v", account.ID, err)
		}
	}
}

type idempotentResult struct {
	RequestHash string `json:"requestHash"`
	EntryID     string `json:"entryId"`
}

// IdempotencyCache short-circuits replays of already settled requests. The
// database record stays authoritative; a miss here falls through to it.
type IdempotencyCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewIdempotencyCache(rdb *redis.Client, ttl time.Duration) *IdempotencyCache {
	return &IdempotencyCache{rdb: rdb, ttl: ttl}
}

func idempotencyKey(accountID, scope, key string) string {
	return "idem:" + scope + ":" + accountID + ":" + key
}

func (c *IdempotencyCache) Lookup(ctx context.Context, accountID, scope, key string) (requestHash, entryID string, ok bool) {
	if c == nil || c.rdb == nil {
		return "", "", false
	}
	data, err := c.rdb.Get(ctx, idempotencyKey(accountID, scope, key)).Result()
	if err != nil {
		return "", "", false
	}
	var res idempotentResult
	if err := json.Unmarshal([]byte(data), &res); err != nil {
		return "", "", false
	}
	return res.RequestHash, res.EntryID, true
}

func (c *IdempotencyCache) Remember(ctx context.Context, accountID, scope, key, requestHash, entryID string) {
	if c == nil || c.rdb == nil {
		return
	}
	data, _ := json.Marshal(idempotentResult{RequestHash: requestHash, EntryID: entryID})
	if err := c.rdb.Set(ctx, idempotencyKey(accountID, scope, key), string(data), c.ttl).Err(); err != nil {
		log.Printf("[CACHE] idempotency write failed: %v", err)
	}
}

// RunLock is a best-effort Redis lock that keeps two schedulers from running
// the same payout batch at once. Duplicate requests are still prevented by
// the store's run-key uniqueness when Redis is absent.
type RunLock struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRunLock(rdb *redis.Client, ttl time.Duration) *RunLock {
	return &RunLock{rdb: rdb, ttl: ttl}
}

func (l *RunLock) Acquire(ctx context.Context, name, owner string) (bool, error) {
	if l == nil || l.rdb == nil {
		return true, nil
	}
	return l.rdb.SetNX(ctx, "lock:"+name, owner, l.ttl).Result()
}

func (l *RunLock) Release(ctx context.Context, name string) {
	if l == nil || l.rdb == nil {
		return
	}
	if err := l.rdb.Del(ctx, "lock:"+name).Err(); err != nil {
		log.Printf("[LOCK] release %s failed: %v", name, err)
	}
}
