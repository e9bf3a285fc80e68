package migration

import (
	"io/fs"
	"testing"

	invoicedomain "github.com/smallbiznis/lokma/internal/invoice/domain"
	"github.com/smallbiznis/lokma/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunAutoMigratesNonPostgres(t *testing.T) {
	db := testutil.NewDB(t)
	require.NoError(t, Run(db))

	for _, model := range Models() {
		assert.True(t, db.Migrator().HasTable(model), "%T", model)
	}
}

func TestSeedCounterIsIdempotent(t *testing.T) {
	db := testutil.NewDB(t, &invoicedomain.InvoiceCounter{})
	now := testutil.FixedClock().Now()

	require.NoError(t, SeedCounter(db, "global", now))
	require.NoError(t, db.Model(&invoicedomain.InvoiceCounter{}).Where("counter_key = ?", "global").Update("value", 41).Error)
	require.NoError(t, SeedCounter(db, "global", now))

	var counter invoicedomain.InvoiceCounter
	require.NoError(t, db.First(&counter, "counter_key = ?", "global").Error)
	assert.Equal(t, int64(41), counter.Value)

	assert.Error(t, SeedCounter(db, "", now))
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	ups, err := fs.Glob(embeddedMigrations, migrationsDir+"/*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(embeddedMigrations, migrationsDir+"/*.down.sql")
	require.NoError(t, err)

	assert.NotEmpty(t, ups)
	assert.Len(t, downs, len(ups))
}
