// Package pagination provides an opaque cursor encoding that the search
// formatter's progressive-loading envelope uses to label the next page of
// a response without exposing internal offsets to the client.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidCursor is returned when a cursor string cannot be decoded.
var ErrInvalidCursor = errors.New("invalid cursor")

// PageCursor identifies a page of a search response by query hash and page number.
type PageCursor struct {
	QueryHash string `json:"h"`
	Page      int    `json:"p"`
}

// Encode returns an opaque, base64-encoded representation of the cursor.
func Encode(c PageCursor) (string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to encode cursor: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// Decode parses an opaque cursor string produced by Encode.
func Decode(s string) (PageCursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return PageCursor{}, ErrInvalidCursor
	}

	var c PageCursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return PageCursor{}, ErrInvalidCursor
	}

	return c, nil
}
