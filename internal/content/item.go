// Package content holds the item model shared by every collection variant,
// the collection descriptors, and the read-side transforms (expiry, masking).
package content

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	MaxTextLength  = 2000
	MaxTitleLength = 200
)

var (
	ErrMalformed = errors.New("malformed item record")
	ErrInvalid   = errors.New("invalid item")
)

// Item is the decoded form of a content record. Timestamps are epoch
// milliseconds as assigned by the store. EditedAt is zero until the first
// edit.
type Item struct {
	UID         string `json:"uid"`
	Text        string `json:"text"`
	UserID      string `json:"userId"`
	Username    string `json:"username"`
	CreatedAt   int64  `json:"createdAt"`
	EditedAt    int64  `json:"editedAt,omitempty"`
	Title       string `json:"title,omitempty"`
	EndDate     int64  `json:"endDate,omitempty"`
	IsAnonymous bool   `json:"isAnonymous,omitempty"`
	ParentID    string `json:"parentId,omitempty"`
}

// Edited reports whether the item has been edited at least once.
func (it Item) Edited() bool { return it.EditedAt != 0 }

// Draft carries the mutable fields supplied by a writer.
type Draft struct {
	Text        string `json:"text"`
	Title       string `json:"title,omitempty"`
	EndDate     int64  `json:"endDate,omitempty"`
	IsAnonymous bool   `json:"isAnonymous,omitempty"`
}

// DraftOf returns the mutable fields of an existing item.
func DraftOf(it Item) Draft {
	return Draft{Text: it.Text, Title: it.Title, EndDate: it.EndDate, IsAnonymous: it.IsAnonymous}
}

func (d Draft) Validate(c Collection) error {
	text := strings.TrimSpace(d.Text)
	if text == "" {
		return fmt.Errorf("%w: text is required", ErrInvalid)
	}
	if utf8.RuneCountInString(text) > MaxTextLength {
		return fmt.Errorf("%w: text must be under %d characters", ErrInvalid, MaxTextLength)
	}
	if c.Titled && utf8.RuneCountInString(d.Title) > MaxTitleLength {
		return fmt.Errorf("%w: title must be under %d characters", ErrInvalid, MaxTitleLength)
	}
	if c.Expires && d.EndDate <= 0 {
		return fmt.Errorf("%w: endDate is required", ErrInvalid)
	}
	return nil
}

// Record builds the full flat record for c. Every write is a full overwrite,
// so the immutable fields (author and createdAt) are always re-included.
// createdAt and editedAt are passed through untouched so callers can hand in
// the store's server timestamp token; a nil editedAt is omitted.
func Record(c Collection, d Draft, userID, username string, createdAt, editedAt any) map[string]any {
	fields := map[string]any{
		"text":     strings.TrimSpace(d.Text),
		"userId":   userID,
		"username": username,
		OrderField: createdAt,
	}
	if editedAt != nil {
		fields["editedAt"] = editedAt
	}
	if c.Titled {
		fields["title"] = strings.TrimSpace(d.Title)
	}
	if c.Expires {
		fields["endDate"] = d.EndDate
	}
	if c.Anonymous {
		fields["isAnonymous"] = d.IsAnonymous
	}
	if c.ParentField != "" {
		fields[c.ParentField] = c.ParentID
	}
	return fields
}

// Decode reads one pushed record. Records missing a required field are
// reported as ErrMalformed; optional fields are read only when present.
func Decode(c Collection, key string, fields map[string]any) (Item, error) {
	if key == "" || fields == nil {
		return Item{}, ErrMalformed
	}
	it := Item{UID: key}

	var ok bool
	if it.Text, ok = fields["text"].(string); !ok {
		return Item{}, fmt.Errorf("%w: %s/%s has no text", ErrMalformed, c.Path, key)
	}
	if it.UserID, ok = fields["userId"].(string); !ok || it.UserID == "" {
		return Item{}, fmt.Errorf("%w: %s/%s has no userId", ErrMalformed, c.Path, key)
	}
	if it.CreatedAt, ok = Millis(fields[c.OrderField]); !ok {
		return Item{}, fmt.Errorf("%w: %s/%s has no %s", ErrMalformed, c.Path, key, c.OrderField)
	}
	it.Username, _ = fields["username"].(string)
	it.EditedAt, _ = Millis(fields["editedAt"])

	if c.Titled {
		it.Title, _ = fields["title"].(string)
	}
	if c.Expires {
		if it.EndDate, ok = Millis(fields["endDate"]); !ok {
			return Item{}, fmt.Errorf("%w: %s/%s has no endDate", ErrMalformed, c.Path, key)
		}
	}
	if c.Anonymous {
		it.IsAnonymous, _ = fields["isAnonymous"].(bool)
	}
	if c.ParentField != "" {
		it.ParentID, _ = fields[c.ParentField].(string)
	}
	return it, nil
}

// Millis reads an epoch-millisecond value from any of the numeric shapes a
// record can carry after a JSON round trip, including numeric strings.
func Millis(v any) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case float64:
		return int64(t), true
	case json.Number:
		n, err := t.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(t, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}
