package pagination

import (
	"encoding/base64"
	"encoding/json"
)

// Pagination carries the cursor token and page size of a list request.
type Pagination struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size,default=10" validate:"gte=1,lte=250"`
}

// Cursor marks a position in a listing ordered by creation time then id.
type Cursor struct {
	ID        string `json:"id,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

type PageInfo struct {
	NextPageToken string `json:"next_page_token"`
	HasMore       bool   `json:"has_more"`
}

func EncodeCursor(cursor Cursor) (string, error) {
	b, err := json.Marshal(cursor)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func DecodeCursor(token string) (*Cursor, error) {
	b, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, err
	}

	var cursor Cursor
	if err := json.Unmarshal(b, &cursor); err != nil {
		return nil, err
	}
	return &cursor, nil
}

// BuildCursorPageInfo derives the page info from a result set fetched with
// one extra row. The extra row only signals has_more; the caller trims it.
func BuildCursorPageInfo[T any](rows []*T, limit int32, cursorOf func(*T) string) *PageInfo {
	if len(rows) == 0 {
		return &PageInfo{}
	}

	hasMore := false
	if len(rows) > int(limit) {
		hasMore = true
		rows = rows[:limit]
	}

	return &PageInfo{
		HasMore:       hasMore,
		NextPageToken: cursorOf(rows[len(rows)-1]),
	}
}
