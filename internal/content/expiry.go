package content

import "time"

// Visible keeps the announcements whose endDate is strictly after now.
// Expired items stay in the store; they are only hidden here. A nil input
// (absent collection) stays nil.
func Visible(items []Item, now time.Time) []Item {
	if items == nil {
		return nil
	}
	cutoff := now.UnixMilli()
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if it.EndDate > cutoff {
			out = append(out, it)
		}
	}
	return out
}

// ExpiryFilter returns a snapshot stage that samples clock once per call.
// Items that expire between two notifications stay visible until the next
// one arrives.
func ExpiryFilter(clock func() time.Time) func([]Item) []Item {
	if clock == nil {
		clock = time.Now
	}
	return func(items []Item) []Item {
		return Visible(items, clock())
	}
}
