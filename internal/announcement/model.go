package announcement

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ID is an announcement id. Feed documents use both numbers and strings.
type ID struct {
	Value   string
	Numeric bool
}

func (id ID) String() string {
	return id.Value
}

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*id = ID{}
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID{Value: s}
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("announcement id must be a number or string: %w", err)
		}
		*id = ID{Value: n.String(), Numeric: true}
	}
	return nil
}

func (id ID) MarshalJSON() ([]byte, error) {
	if id.Numeric {
		return []byte(id.Value), nil
	}
	return json.Marshal(id.Value)
}

func (id ID) MarshalYAML() (interface{}, error) {
	if id.Numeric {
		if n, err := strconv.ParseInt(id.Value, 10, 64); err == nil {
			return n, nil
		}
		if f, err := strconv.ParseFloat(id.Value, 64); err == nil {
			return f, nil
		}
	}
	return id.Value, nil
}

type Announcement struct {
	ID       ID     `json:"id" yaml:"id"`
	Title    string `json:"title" yaml:"title"`
	Content  string `json:"content" yaml:"content"`
	Date     string `json:"date" yaml:"date"`
	Type     string `json:"type" yaml:"type"`
	Priority int    `json:"priority" yaml:"priority"`
	Active   bool   `json:"active" yaml:"active"`
}

// Document decodes a feed document. An empty document or null is an empty
// feed.
func Document(data []byte) ([]Announcement, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return []Announcement{}, nil
	}

	var list []Announcement
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse announcements: %w", err)
	}
	if list == nil {
		list = []Announcement{}
	}
	return list, nil
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseDate parses the ISO date forms feed documents use. Dates without a
// zone are taken as UTC.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

const InvalidDate = "Invalid Date"

// FormatDate renders a date the way en-US long dates read, e.g.
// "January 2, 2006".
func FormatDate(s string) string {
	t, ok := ParseDate(s)
	if !ok {
		return InvalidDate
	}
	return t.UTC().Format("January 2, 2006")
}

func FilterActive(list []Announcement) []Announcement {
	out := make([]Announcement, 0, len(list))
	for _, a := range list {
		if a.Active {
			out = append(out, a)
		}
	}
	return out
}

// Sort orders by priority ascending, then date descending. Unparseable dates
// sort as the zero time and ties keep document order.
func Sort(list []Announcement) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		da, _ := ParseDate(a.Date)
		db, _ := ParseDate(b.Date)
		return da.After(db)
	})
}

// Types lists the announcement types in order.
func Types(list []Announcement) []string {
	out := make([]string, len(list))
	for i, a := range list {
		out[i] = a.Type
	}
	return out
}

func IDs(list []Announcement) []string {
	out := make([]string, len(list))
	for i, a := range list {
		out[i] = a.ID.String()
	}
	return out
}

// celDocument is the view of an announcement visibility expressions see.
func (a Announcement) celDocument() map[string]interface{} {
	return map[string]interface{}{
		"id":       a.ID.String(),
		"title":    a.Title,
		"content":  a.Content,
		"date":     a.Date,
		"type":     a.Type,
		"priority": int64(a.Priority),
		"active":   a.Active,
	}
}
