package pagination

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct{ id int64 }

func TestBuildCursorPageInfoTrimsExtraRow(t *testing.T) {
	data := []*row{{id: 5}, {id: 4}, {id: 3}}
	page, info, err := BuildCursorPageInfo(data, 2, func(r *row) Cursor {
		return Cursor{ID: strconv.FormatInt(r.id, 10)}
	})
	require.NoError(t, err)
	assert.Len(t, page, 2)
	assert.True(t, info.HasMore)

	cursor, err := DecodeCursor(info.NextPageToken)
	require.NoError(t, err)
	assert.Equal(t, "4", cursor.ID)
}

func TestBuildCursorPageInfoLastPage(t *testing.T) {
	data := []*row{{id: 1}}
	page, info, err := BuildCursorPageInfo(data, 2, func(r *row) Cursor {
		return Cursor{ID: strconv.FormatInt(r.id, 10)}
	})
	require.NoError(t, err)
	assert.Len(t, page, 1)
	assert.False(t, info.HasMore)
	assert.Empty(t, info.NextPageToken)
}

func TestLimitClamps(t *testing.T) {
	assert.Equal(t, DefaultPageSize, Pagination{}.Limit())
	assert.Equal(t, MaxPageSize, Pagination{PageSize: 1000}.Limit())
	assert.Equal(t, 7, Pagination{PageSize: 7}.Limit())
}
