package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/lokma/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLimiterDisabledWithoutRedis(t *testing.T) {
	limiter := NewOrderIngestLimiter(config.Config{OrderIngestRate: 5, OrderIngestBurst: 10}, nil, zap.NewNop())
	assert.Nil(t, limiter)
	assert.False(t, limiter.Enabled())
	assert.True(t, limiter.AllowBusiness(context.Background(), "biz-1").Allowed)
}

func TestUnconfiguredBucketRejects(t *testing.T) {
	var bucket *TokenBucket
	_, err := bucket.Allow(context.Background(), "k", 1, 1)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestBucketTTLCoversTwoRefills(t *testing.T) {
	assert.Equal(t, 4*time.Second, bucketTTL(5, 10))
	assert.Equal(t, time.Second, bucketTTL(100, 1))
	assert.Equal(t, time.Second, bucketTTL(0, 1))
}

func TestParseReply(t *testing.T) {
	res, err := parseReply([]any{int64(1), "3.75", int64(0)})
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 3, res.Remaining)
	assert.Zero(t, res.RetryAfter)

	res, err = parseReply([]any{int64(0), "0.5", int64(250)})
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 250*time.Millisecond, res.RetryAfter)
}

func TestParseReplyRejectsMalformed(t *testing.T) {
	for _, reply := range [][]any{
		nil,
		{int64(1), "1"},
		{"1", "1", int64(0)},
		{int64(1), "nope", int64(0)},
	} {
		_, err := parseReply(reply)
		assert.ErrorIs(t, err, errBadReply)
	}
}
