package pagination

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCursorRoundTrip(t *testing.T) {
	token, err := EncodeCursor(Cursor{ID: "12345", CreatedAt: "2026-03-01T09:00:00Z"})
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	cursor, err := DecodeCursor(token)
	assert.NoError(t, err)
	assert.Equal(t, "12345", cursor.ID)
	assert.Equal(t, "2026-03-01T09:00:00Z", cursor.CreatedAt)

	_, err = DecodeCursor("%%%not-base64%%%")
	assert.Error(t, err)
}

func TestDecodeKeyset(t *testing.T) {
	token, err := EncodeCursor(Cursor{ID: "12345", CreatedAt: "2026-03-01T09:00:00.5Z"})
	assert.NoError(t, err)

	createdAt, id, err := DecodeKeyset(token)
	assert.NoError(t, err)
	assert.Equal(t, int64(12345), id)
	assert.Equal(t, time.Date(2026, 3, 1, 9, 0, 0, 500000000, time.UTC), createdAt.UTC())

	for _, bad := range []string{
		"%%%not-base64%%%",
		mustEncode(t, Cursor{ID: "12345", CreatedAt: "not-a-time"}),
		mustEncode(t, Cursor{ID: "not-a-number", CreatedAt: "2026-03-01T09:00:00Z"}),
		mustEncode(t, Cursor{ID: "-1", CreatedAt: "2026-03-01T09:00:00Z"}),
	} {
		_, _, err := DecodeKeyset(bad)
		assert.ErrorIs(t, err, ErrInvalidPageToken, "token: %s", bad)
	}
}

func mustEncode(t *testing.T, c Cursor) string {
	t.Helper()
	token, err := EncodeCursor(c)
	assert.NoError(t, err)
	return token
}

func TestBuildCursorPageInfo(t *testing.T) {
	extract := func(v *int) string { return strconv.Itoa(*v) }

	info := BuildCursorPageInfo(nil, 10, extract)
	assert.False(t, info.HasMore)
	assert.Empty(t, info.NextPageToken)

	one, two, three := 1, 2, 3

	// Fewer rows than the limit: no more pages.
	info = BuildCursorPageInfo([]*int{&one, &two}, 10, extract)
	assert.False(t, info.HasMore)
	assert.Equal(t, "2", info.NextPageToken)

	// The extra row beyond the limit signals another page.
	info = BuildCursorPageInfo([]*int{&one, &two, &three}, 2, extract)
	assert.True(t, info.HasMore)
	assert.Equal(t, "2", info.NextPageToken)
}
