package feeds

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrBadCursor indicates a cursor that does not parse.
var ErrBadCursor = errors.New("malformed cursor")

// SkeletonCursor is the keyset position of a feed-skeleton page, encoded
// as "<iso>::<rkey>".
type SkeletonCursor struct {
	IndexedAt time.Time
	RKey      string
}

// Encode renders the cursor wire form.
func (c SkeletonCursor) Encode() string {
	return c.IndexedAt.UTC().Format(time.RFC3339) + "::" + c.RKey
}

// DecodeSkeletonCursor parses "<iso>::<rkey>".
func DecodeSkeletonCursor(s string) (SkeletonCursor, error) {
	ts, rkey, found := strings.Cut(s, "::")
	if !found || rkey == "" {
		return SkeletonCursor{}, fmt.Errorf("%w: %q", ErrBadCursor, s)
	}
	at, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return SkeletonCursor{}, fmt.Errorf("%w: %q", ErrBadCursor, s)
	}
	return SkeletonCursor{IndexedAt: at.UTC(), RKey: rkey}, nil
}

// ListCursor is the opaque cursor used by listing endpoints: a base64url
// JSON envelope carrying sort mode and keyset position.
type ListCursor struct {
	Sort    string `json:"sort"`
	Primary string `json:"p"`
	RKey    string `json:"r"`
}

// Encode renders the base64url JSON wire form.
func (c ListCursor) Encode() string {
	raw, _ := json.Marshal(c)
	return base64.URLEncoding.EncodeToString(raw)
}

// DecodeListCursor parses a base64url JSON cursor.
func DecodeListCursor(s string) (ListCursor, error) {
	raw, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return ListCursor{}, fmt.Errorf("%w: %q", ErrBadCursor, s)
	}
	var c ListCursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return ListCursor{}, fmt.Errorf("%w: %q", ErrBadCursor, s)
	}
	return c, nil
}
