package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/covercheck/internal/config"
)

const (
	ScopeEntityHourly = "entity_hourly"
	ScopeOrgMonthly   = "org_monthly"
)

const (
	keyQuotaEntity = "covercheck:quota:entity:%s:%s"
	keyQuotaOrg    = "covercheck:quota:org:%s:%s"
)

// Both windows are checked before either is consumed, so a denied upload
// costs nothing. A limit of zero or less disables that window.
const fixedWindowScript = `
local entityLimit = tonumber(ARGV[1])
local orgLimit = tonumber(ARGV[2])

local entityCount = tonumber(redis.call("GET", KEYS[1]) or "0")
local orgCount = tonumber(redis.call("GET", KEYS[2]) or "0")

if entityLimit >= 0 and entityCount >= entityLimit then
  return {0, 1, entityCount}
end
if orgLimit >= 0 and orgCount >= orgLimit then
  return {0, 2, orgCount}
end

redis.call("INCR", KEYS[1])
redis.call("PEXPIREAT", KEYS[1], ARGV[3])
redis.call("INCR", KEYS[2])
redis.call("PEXPIREAT", KEYS[2], ARGV[4])
return {1, 0, entityCount + 1}
`

// Decision reports whether an extraction may proceed. On denial Scope names
// the exhausted window and RetryAfter is the time until it resets.
type Decision struct {
	Allowed    bool
	Scope      string
	Limit      int
	RetryAfter time.Duration
}

// ExtractionQuota meters gateway calls per entity per hour and per org per
// calendar month.
type ExtractionQuota interface {
	Allow(ctx context.Context, orgID, entityID snowflake.ID, now time.Time) (Decision, error)
}

type windows struct {
	hour     string
	month    string
	hourEnd  time.Time
	monthEnd time.Time
}

func windowsAt(now time.Time) windows {
	now = now.UTC()
	hourStart := now.Truncate(time.Hour)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return windows{
		hour:     hourStart.Format("2006010215"),
		month:    monthStart.Format("200601"),
		hourEnd:  hourStart.Add(time.Hour),
		monthEnd: monthStart.AddDate(0, 1, 0),
	}
}

func limitOrUnlimited(v int) int {
	if v <= 0 {
		return -1
	}
	return v
}

func deny(scope string, limit int, now, reset time.Time) Decision {
	return Decision{Scope: scope, Limit: limit, RetryAfter: reset.Sub(now.UTC())}
}

// RedisQuota shares counters across processes.
type RedisQuota struct {
	client *redis.Client
	script *redis.Script
	policy *config.PolicyHolder
}

func NewRedisQuota(client *redis.Client, policy *config.PolicyHolder) *RedisQuota {
	return &RedisQuota{
		client: client,
		script: redis.NewScript(fixedWindowScript),
		policy: policy,
	}
}

func (q *RedisQuota) Allow(ctx context.Context, orgID, entityID snowflake.ID, now time.Time) (Decision, error) {
	limits := q.policy.Get().Quota
	entityLimit := limitOrUnlimited(limits.PerEntityPerHour)
	orgLimit := limitOrUnlimited(limits.PerOrgPerMonth)
	w := windowsAt(now)

	res, err := q.script.Run(ctx, q.client,
		[]string{
			fmt.Sprintf(keyQuotaEntity, entityID, w.hour),
			fmt.Sprintf(keyQuotaOrg, orgID, w.month),
		},
		entityLimit,
		orgLimit,
		// Keep each counter a little past its window so clock skew between
		// app hosts never resurrects a closed window.
		w.hourEnd.Add(time.Minute).UnixMilli(),
		w.monthEnd.Add(time.Hour).UnixMilli(),
	).Int64Slice()
	if err != nil {
		return Decision{}, err
	}
	if len(res) < 2 {
		return Decision{}, errors.New("invalid quota script response")
	}

	switch res[1] {
	case 1:
		return deny(ScopeEntityHourly, entityLimit, now, w.hourEnd), nil
	case 2:
		return deny(ScopeOrgMonthly, orgLimit, now, w.monthEnd), nil
	}
	return Decision{Allowed: true}, nil
}

// MemoryQuota keeps counters in process. Counters for closed windows are
// dropped lazily when a key rolls over.
type MemoryQuota struct {
	mu     sync.Mutex
	counts map[string]memoryWindow
	policy *config.PolicyHolder
}

type memoryWindow struct {
	window string
	count  int
}

func NewMemoryQuota(policy *config.PolicyHolder) *MemoryQuota {
	return &MemoryQuota{
		counts: make(map[string]memoryWindow),
		policy: policy,
	}
}

func (q *MemoryQuota) Allow(_ context.Context, orgID, entityID snowflake.ID, now time.Time) (Decision, error) {
	limits := q.policy.Get().Quota
	entityLimit := limitOrUnlimited(limits.PerEntityPerHour)
	orgLimit := limitOrUnlimited(limits.PerOrgPerMonth)
	w := windowsAt(now)
	entityKey := "entity:" + entityID.String()
	orgKey := "org:" + orgID.String()

	q.mu.Lock()
	defer q.mu.Unlock()

	entityCount := q.current(entityKey, w.hour)
	orgCount := q.current(orgKey, w.month)

	if entityLimit >= 0 && entityCount >= entityLimit {
		return deny(ScopeEntityHourly, entityLimit, now, w.hourEnd), nil
	}
	if orgLimit >= 0 && orgCount >= orgLimit {
		return deny(ScopeOrgMonthly, orgLimit, now, w.monthEnd), nil
	}

	q.counts[entityKey] = memoryWindow{window: w.hour, count: entityCount + 1}
	q.counts[orgKey] = memoryWindow{window: w.month, count: orgCount + 1}
	return Decision{Allowed: true}, nil
}

func (q *MemoryQuota) current(key, window string) int {
	c, ok := q.counts[key]
	if !ok || c.window != window {
		return 0
	}
	return c.count
}
