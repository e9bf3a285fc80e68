package repository

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/lokma/internal/testutil"
	"github.com/smallbiznis/lokma/pkg/db/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct {
	ID        int64 `gorm:"primaryKey"`
	Kind      string
	Size      int
	CreatedAt time.Time
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := ProvideStore[widget](testutil.NewDB(t, &widget{}))
	base := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

	for i, kind := range []string{"table", "chair", "chair"} {
		require.NoError(t, repo.Create(ctx, &widget{ID: int64(i + 1), Kind: kind, Size: i, CreatedAt: base.Add(time.Duration(i) * time.Minute)}))
	}

	chairs, err := repo.Find(ctx, &widget{Kind: "chair"}, option.WithSortBy(option.WithQuerySortBy("", "", nil)))
	require.NoError(t, err)
	require.Len(t, chairs, 2)
	assert.Equal(t, int64(3), chairs[0].ID)

	n, err := repo.Count(ctx, &widget{}, option.ApplyOperator(option.Condition{Field: "size", Operator: option.GTE, Value: 1}))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	affected, err := repo.Update(ctx, 1, map[string]any{"kind": "bench"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	missing, err := repo.FindOne(ctx, &widget{Kind: "table"})
	require.NoError(t, err)
	assert.Nil(t, missing)

	bench, err := repo.FindOne(ctx, &widget{ID: 1})
	require.NoError(t, err)
	require.NotNil(t, bench)
	assert.Equal(t, "bench", bench.Kind)
}
