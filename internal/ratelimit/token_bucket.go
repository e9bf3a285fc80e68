package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// KEYS[1] bucket hash. ARGV: refill rate per second, burst, key ttl in ms.
// Returns {allowed, tokens left, ms until the next token}.
const tokenBucketScript = `
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])

local clock = redis.call("TIME")
local now = clock[1] * 1000 + math.floor(clock[2] / 1000)

local state = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(state[1]) or burst
local last = tonumber(state[2]) or now
if now > last then
  tokens = math.min(burst, tokens + (now - last) * rate / 1000)
end

local allowed = 0
local wait = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
else
  wait = math.ceil((1 - tokens) * 1000 / rate)
end

redis.call("HSET", KEYS[1], "tokens", tostring(tokens), "ts", now)
redis.call("PEXPIRE", KEYS[1], ARGV[3])
return {allowed, tostring(tokens), wait}
`

var (
	ErrNotConfigured = errors.New("rate limiter not configured")
	errBadReply      = errors.New("unexpected rate limit script reply")
)

// TokenBucket is a redis-backed bucket shared by every API replica.
type TokenBucket struct {
	client *redis.Client
	script *redis.Script
}

type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

func NewTokenBucket(client *redis.Client) *TokenBucket {
	if client == nil {
		return nil
	}
	return &TokenBucket{client: client, script: redis.NewScript(tokenBucketScript)}
}

// Allow takes one token from the bucket at key, refilling at rate tokens per
// second up to burst.
func (t *TokenBucket) Allow(ctx context.Context, key string, rate float64, burst int) (Result, error) {
	switch {
	case t == nil || t.client == nil:
		return Result{}, ErrNotConfigured
	case key == "":
		return Result{}, errors.New("rate limit key is empty")
	case rate <= 0 || burst <= 0:
		return Result{}, fmt.Errorf("rate limit %v/s burst %d must be positive", rate, burst)
	}

	ttl := bucketTTL(rate, burst)
	reply, err := t.script.Run(ctx, t.client, []string{key}, rate, burst, ttl.Milliseconds()).Slice()
	if err != nil {
		return Result{}, err
	}
	return parseReply(reply)
}

func parseReply(reply []any) (Result, error) {
	if len(reply) != 3 {
		return Result{}, errBadReply
	}
	allowed, ok := reply[0].(int64)
	if !ok {
		return Result{}, errBadReply
	}
	raw, ok := reply[1].(string)
	if !ok {
		return Result{}, errBadReply
	}
	tokens, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", errBadReply, err)
	}
	waitMS, ok := reply[2].(int64)
	if !ok {
		return Result{}, errBadReply
	}
	return Result{
		Allowed:    allowed == 1,
		Remaining:  int(math.Floor(tokens)),
		RetryAfter: time.Duration(waitMS) * time.Millisecond,
	}, nil
}

// bucketTTL keeps an idle bucket for two full refills, at least a second.
func bucketTTL(rate float64, burst int) time.Duration {
	if rate <= 0 || burst <= 0 {
		return time.Second
	}
	return max(time.Second, time.Duration(math.Ceil(2*float64(burst)/rate))*time.Second)
}
