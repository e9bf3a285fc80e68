package db

import (
	"testing"
	"time"

	"github.com/smallbiznis/lokma/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigNormalizesTypeAndDurations(t *testing.T) {
	cfg := NewConfig(config.Config{
		DBType:            " SQLite ",
		DBName:            "test.db",
		DBConnMaxLifetime: 300,
		DBConnMaxIdleTime: 60,
	})

	assert.Equal(t, "sqlite", cfg.Type)
	assert.Equal(t, 5*time.Minute, cfg.ConnMaxLifetime)
	assert.Equal(t, time.Minute, cfg.ConnMaxIdleTime)
	require.NoError(t, cfg.Validate())
}

func TestValidateRequiresHostForServerDialects(t *testing.T) {
	assert.Error(t, Config{Type: "postgres", Name: "lokma"}.Validate())
	assert.NoError(t, Config{Type: "postgres", Host: "localhost", Name: "lokma"}.Validate())
	assert.Error(t, Config{}.Validate())
	assert.Error(t, Config{Type: "oracle"}.Validate())
}

func TestDialectSqliteDefaultsFile(t *testing.T) {
	dialector, err := Dialect(Config{Type: "sqlite"})
	require.NoError(t, err)
	assert.Equal(t, "sqlite", dialector.Name())
}
