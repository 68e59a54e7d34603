// Package validation holds input rules shared by the composers.
package validation

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyTag is returned when the input trims to nothing.
	ErrEmptyTag = errors.New("cannot be empty")
	// ErrDuplicateTag is returned for an exact (case-sensitive) repeat.
	ErrDuplicateTag = errors.New("already added")
	// ErrTagCapReached is returned when the set is full.
	ErrTagCapReached = errors.New("limit reached")
)

// TagSet is an ordered, duplicate-free list of short strings with an upper
// bound. Listing tags and profile services both use it.
type TagSet struct {
	items []string
	limit int
}

// NewTagSet returns an empty set holding at most limit items. A limit of
// zero or less means unbounded.
func NewTagSet(limit int) *TagSet {
	return &TagSet{limit: limit}
}

// TagSetFrom seeds a set with existing items, dropping blanks and repeats
// and truncating at the limit.
func TagSetFrom(limit int, items []string) *TagSet {
	ts := NewTagSet(limit)
	for _, it := range items {
		_ = ts.Add(it)
	}
	return ts
}

// Add trims raw and appends it. The set is unchanged when an error is
// returned.
func (ts *TagSet) Add(raw string) error {
	tag := strings.TrimSpace(raw)
	if tag == "" {
		return ErrEmptyTag
	}
	for _, it := range ts.items {
		if it == tag {
			return ErrDuplicateTag
		}
	}
	if ts.limit > 0 && len(ts.items) >= ts.limit {
		return fmt.Errorf("%w (max %d)", ErrTagCapReached, ts.limit)
	}
	ts.items = append(ts.items, tag)
	return nil
}

// RemoveAt drops the item at index i. Out-of-range indexes are ignored.
func (ts *TagSet) RemoveAt(i int) bool {
	if i < 0 || i >= len(ts.items) {
		return false
	}
	ts.items = append(ts.items[:i:i], ts.items[i+1:]...)
	return true
}

// Items returns a copy of the current items.
func (ts *TagSet) Items() []string {
	out := make([]string, len(ts.items))
	copy(out, ts.items)
	return out
}

// Len returns the number of items.
func (ts *TagSet) Len() int { return len(ts.items) }

// Limit returns the cap.
func (ts *TagSet) Limit() int { return ts.limit }

// Full reports whether another Add would hit the cap.
func (ts *TagSet) Full() bool {
	return ts.limit > 0 && len(ts.items) >= ts.limit
}
