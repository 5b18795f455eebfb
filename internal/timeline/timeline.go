// Package timeline filters, sorts and groups entries for the Timeline and
// Dark Side listings.
package timeline

import (
	"fmt"
	"sort"
	"time"

	"life.tape/internal/models"
)

type Side int

const (
	// Timeline lists the entries that are not private.
	Timeline Side = iota
	// DarkSide lists only private entries.
	DarkSide
)

func (s Side) includes(e models.Entry) bool {
	return e.IsDarkSide == (s == DarkSide)
}

type Order int

const (
	Newest Order = iota
	Oldest
)

func ParseOrder(s string) (Order, error) {
	switch s {
	case "", "newest":
		return Newest, nil
	case "oldest":
		return Oldest, nil
	}
	return Newest, fmt.Errorf("unknown order %q (must be newest or oldest)", s)
}

type Query struct {
	Side   Side
	Search string
	// Tag keeps only entries with exactly this tag. Empty keeps all.
	Tag string
	// Tagged keeps only entries that carry some tag.
	Tagged bool
	Order  Order
}

// Apply returns the entries visible for q, sorted by creation time. The
// input slice is not modified.
func Apply(entries []models.Entry, q Query) []models.Entry {
	out := make([]models.Entry, 0, len(entries))
	for _, e := range entries {
		if !q.Side.includes(e) {
			continue
		}
		if !e.Matches(q.Search) {
			continue
		}
		if q.Tag != "" && e.Tag != q.Tag {
			continue
		}
		if q.Tagged && e.Tag == "" {
			continue
		}
		out = append(out, e)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if q.Order == Oldest {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].CreatedAt > out[j].CreatedAt
	})
	return out
}

// UniqueTags returns the sorted distinct tags used on side.
func UniqueTags(entries []models.Entry, side Side) []string {
	seen := make(map[string]bool)
	tags := make([]string, 0)
	for _, e := range entries {
		if e.Tag == "" || !side.includes(e) || seen[e.Tag] {
			continue
		}
		seen[e.Tag] = true
		tags = append(tags, e.Tag)
	}
	sort.Strings(tags)
	return tags
}

type Group struct {
	Label   string
	Entries []models.Entry
}

// GroupByDate splits already sorted entries into runs sharing a date label.
// Groups keep the order in which their label first appears.
func GroupByDate(entries []models.Entry, now time.Time) []Group {
	var groups []Group
	index := make(map[string]int)
	for _, e := range entries {
		label := DateLabel(e.Created().In(now.Location()), now)
		i, ok := index[label]
		if !ok {
			i = len(groups)
			index[label] = i
			groups = append(groups, Group{Label: label})
		}
		groups[i].Entries = append(groups[i].Entries, e)
	}
	return groups
}

// DateLabel is "Today", "Yesterday", the weekday within the last week, and
// "Jan 2" (or "Jan 2, 2006" outside the current year) before that.
func DateLabel(t, now time.Time) string {
	t = t.In(now.Location())
	days := calendarDays(t, now)
	switch {
	case days <= 0:
		return "Today"
	case days == 1:
		return "Yesterday"
	case days < 7:
		return t.Weekday().String()
	case t.Year() != now.Year():
		return t.Format("Jan 2, 2006")
	default:
		return t.Format("Jan 2")
	}
}

func calendarDays(t, now time.Time) int {
	y1, m1, d1 := t.Date()
	y2, m2, d2 := now.Date()
	a := time.Date(y1, m1, d1, 0, 0, 0, 0, time.UTC)
	b := time.Date(y2, m2, d2, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

// FormatDuration renders seconds as "45s", "2m" or "2m 5s".
func FormatDuration(seconds int) string {
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	mins, secs := seconds/60, seconds%60
	if secs > 0 {
		return fmt.Sprintf("%dm %ds", mins, secs)
	}
	return fmt.Sprintf("%dm", mins)
}

// FormatTime renders the clock time, e.g. "3:04 PM".
func FormatTime(t time.Time) string {
	return t.Format("3:04 PM")
}

// CountLabel is "1 entry" or "n entries".
func CountLabel(n int) string {
	if n == 1 {
		return "1 entry"
	}
	return fmt.Sprintf("%d entries", n)
}
