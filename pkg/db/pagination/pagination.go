package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strconv"
	"time"
)

// ErrInvalidPageToken reports a page token the server did not issue.
var ErrInvalidPageToken = errors.New("invalid_page_token")

type Pagination struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size,default=10" validate:"gte=1,lte=250"` // Min 1, Max 250
}

type Cursor struct {
	ID        string `json:"id,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

type PageInfo struct {
	NextPageToken string `json:"next_page_token"`
	HasMore       bool   `json:"has_more"`
}

func EncodeCursor(data Cursor) (string, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(b), nil
}

func DecodeCursor(data string) (*Cursor, error) {
	b, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, err
	}

	var cursor Cursor
	if err := json.Unmarshal(b, &cursor); err != nil {
		return nil, err
	}

	return &cursor, nil
}

// DecodeKeyset decodes a page token into the typed (created_at, id) pair
// used for keyset predicates on listings ordered by created_at desc, id desc.
func DecodeKeyset(token string) (time.Time, int64, error) {
	cursor, err := DecodeCursor(token)
	if err != nil {
		return time.Time{}, 0, ErrInvalidPageToken
	}
	createdAt, err := time.Parse(time.RFC3339Nano, cursor.CreatedAt)
	if err != nil {
		return time.Time{}, 0, ErrInvalidPageToken
	}
	id, err := strconv.ParseInt(cursor.ID, 10, 64)
	if err != nil || id <= 0 {
		return time.Time{}, 0, ErrInvalidPageToken
	}
	return createdAt, id, nil
}

func BuildCursorPageInfo[T any](data []*T, limit int, extractCursor func(*T) string) *PageInfo {
	if len(data) == 0 {
		return &PageInfo{HasMore: false}
	}

	hasMore := false
	if len(data) > limit {
		hasMore = true
		data = data[:limit]
	}

	return &PageInfo{
		HasMore:       hasMore,
		NextPageToken: extractCursor(data[len(data)-1]),
	}
}
