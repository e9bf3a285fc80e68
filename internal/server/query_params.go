package server

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/lokma/internal/observability/context"
)

// queryBool parses an optional boolean filter. Empty means unset.
func queryBool(field, raw string) (*bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, invalidQuery(field)
	}
	return &value, nil
}

// queryTime accepts RFC 3339 or a plain date. A plain date is the start of
// that UTC day, or its last instant when inclusiveEnd is set.
func queryTime(field, raw string, inclusiveEnd bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if value, err := time.Parse(time.RFC3339, raw); err == nil {
		return &value, nil
	}
	day, err := time.ParseInLocation(time.DateOnly, raw, time.UTC)
	if err != nil {
		return nil, invalidQuery(field)
	}
	if inclusiveEnd {
		day = day.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return &day, nil
}

func invalidQuery(field string) error {
	return newValidationError(field, "invalid_"+field, "invalid "+field)
}

// requestActor is the X-Actor header stored on the context by the logging
// middleware.
func requestActor(c *gin.Context) string {
	return obscontext.ActorFromContext(c.Request.Context())
}
