package logger

import (
	"context"
	"testing"

	obscontext "github.com/smallbiznis/lokma/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func TestWithContextAddsRequestFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ctx := obscontext.WithRequestID(context.Background(), "req-1")
	ctx = obscontext.WithActor(ctx, "staff-7")

	WithContext(ctx, zap.New(core)).Info("hello")

	entries := logs.All()
	assert.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "staff-7", fields["actor"])
	assert.NotContains(t, fields, "business_id")
}

func TestStatementKind(t *testing.T) {
	assert.Equal(t, "SELECT", statementKind(`SELECT * FROM "invoices"`))
	assert.Equal(t, "UPDATE", statementKind(" update invoice_counters set value = value + 1"))
	assert.Equal(t, "OTHER", statementKind("PRAGMA foreign_keys = ON"))
	assert.Equal(t, "UNKNOWN", statementKind(""))
}

func TestRequestLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, requestLevel("/health", 200))
	assert.Equal(t, zapcore.InfoLevel, requestLevel("/api/invoices", 201))
	assert.Equal(t, zapcore.WarnLevel, requestLevel("/api/invoices", 409))
	assert.Equal(t, zapcore.ErrorLevel, requestLevel("/api/invoices", 503))
}

func TestGormLoggerLogModeCopies(t *testing.T) {
	base := NewGormLogger(DefaultGormLoggerConfig())
	silent := base.LogMode(gormlogger.Silent).(*GormLogger)

	assert.Equal(t, gormlogger.Silent, silent.cfg.Level)
	assert.Equal(t, gormlogger.Warn, base.cfg.Level)
}
