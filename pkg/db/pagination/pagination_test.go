package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	token, err := EncodeCursor(Cursor{ID: "42"})
	require.NoError(t, err)

	value, err := DecodeInt64Cursor(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), value)

	_, err = DecodeInt64Cursor("%%%")
	assert.ErrorIs(t, err, ErrInvalidPageToken)
}

func TestBuildCursorPageInfoTrimsLookahead(t *testing.T) {
	rows := []*int{ptr(5), ptr(4), ptr(3)}
	page, info := BuildCursorPageInfo(rows, 2, func(v *int) string { return "x" })
	assert.Len(t, page, 2)
	assert.True(t, info.HasMore)
	assert.Equal(t, "x", info.NextPageToken)

	page, info = BuildCursorPageInfo(rows, 3, func(v *int) string { return "x" })
	assert.Len(t, page, 3)
	assert.False(t, info.HasMore)
}

func TestSizeClamps(t *testing.T) {
	assert.Equal(t, DefaultPageSize, Pagination{}.Size())
	assert.Equal(t, MaxPageSize, Pagination{PageSize: 1000}.Size())
	assert.Equal(t, 10, Pagination{PageSize: 10}.Size())
}

func ptr(v int) *int { return &v }
