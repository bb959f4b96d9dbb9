package cursor

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
)

// Cursor is the continuation point of a source feed: the values the feed
// sorts by and the id of the last item seen. Feeds that paginate by id alone
// leave After empty.
type Cursor struct {
	Feed    string        `json:"feed"`
	After   []interface{} `json:"after,omitempty"`
	AfterID string        `json:"after_id,omitempty"`
}

// Encode serializes the cursor to an opaque base64 string
func (c *Cursor) Encode() (string, error) {
	if c.Feed == "" {
		return "", fmt.Errorf("cursor missing feed")
	}
	if len(c.After) == 0 && c.AfterID == "" {
		return "", fmt.Errorf("cursor has no position")
	}

	jsonData, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to marshal cursor: %w", err)
	}

	return base64.URLEncoding.EncodeToString(jsonData), nil
}

// Decode deserializes a cursor from an opaque base64 string and checks it
// belongs to feed.
func Decode(encoded, feed string) (*Cursor, error) {
	if encoded == "" {
		return nil, fmt.Errorf("empty cursor string")
	}

	jsonData, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor encoding: %w", err)
	}

	var c Cursor
	dec := json.NewDecoder(bytes.NewReader(jsonData))
	dec.UseNumber()
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("invalid cursor format: %w", err)
	}

	if c.Feed != feed {
		return nil, fmt.Errorf("cursor belongs to feed %q, not %q", c.Feed, feed)
	}
	if len(c.After) == 0 && c.AfterID == "" {
		return nil, fmt.Errorf("cursor has no position")
	}

	return &c, nil
}

// New creates a cursor from the sort values and id of the last item of a page
func New(feed string, after []interface{}, afterID string) (*Cursor, error) {
	if feed == "" {
		return nil, fmt.Errorf("feed required")
	}
	if len(after) == 0 && afterID == "" {
		return nil, fmt.Errorf("sort values or last ID required")
	}
	return &Cursor{Feed: feed, After: after, AfterID: afterID}, nil
}

// Apply writes the cursor into query parameters. afterParam receives the
// first sort value and idParam the last id; an empty name skips it.
func (c *Cursor) Apply(q url.Values, afterParam, idParam string) {
	if afterParam != "" && len(c.After) > 0 {
		q.Set(afterParam, fmt.Sprint(c.After[0]))
	}
	if idParam != "" && c.AfterID != "" {
		q.Set(idParam, c.AfterID)
	}
}
