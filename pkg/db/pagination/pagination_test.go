package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	token, err := EncodeCursor(Cursor{ID: 42, Key: "Acme"})
	require.NoError(t, err)

	got, err := DecodeCursor(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.ID)
	assert.Equal(t, "Acme", got.Key)
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	got, err := DecodeCursor("")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = DecodeCursor("!!!")
	assert.ErrorIs(t, err, ErrInvalidPageToken)
}

func TestTrim(t *testing.T) {
	rows := []int{1, 2, 3}
	cursorOf := func(v int) Cursor { return Cursor{ID: int64(v)} }

	kept, info, err := Trim(rows, 2, cursorOf)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, kept)
	assert.True(t, info.HasMore)

	next, err := DecodeCursor(info.NextPageToken)
	require.NoError(t, err)
	assert.Equal(t, int64(2), next.ID)

	kept, info, err = Trim(rows, 5, cursorOf)
	require.NoError(t, err)
	assert.Len(t, kept, 3)
	assert.False(t, info.HasMore)
}

func TestLimit(t *testing.T) {
	assert.Equal(t, DefaultPageSize, Pagination{}.Limit())
	assert.Equal(t, MaxPageSize, Pagination{PageSize: 10000}.Limit())
	assert.Equal(t, 7, Pagination{PageSize: 7}.Limit())
}
