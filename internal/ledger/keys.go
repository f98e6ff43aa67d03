package ledger

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	dateLayout = "02/01/06"
	timeLayout = "15:04"
)

// DateKey partitions slots by calendar day, formatted DD/MM/YY.
type DateKey string

// DateKeyOf formats t in its own location.
func DateKeyOf(t time.Time) DateKey {
	return DateKey(t.Format(dateLayout))
}

// Time parses the key back to midnight in loc.
func (d DateKey) Time(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(dateLayout, string(d), loc)
}

// SlotKey identifies one occupancy event within a day.
// It is encoded as "<containerID>-<HH:MM>"; decoding splits on the last hyphen
// so container ids containing hyphens survive a round trip.
type SlotKey struct {
	ContainerID string
	TimeOfDay   string
}

// NewSlotKey truncates t to the minute.
func NewSlotKey(containerID string, t time.Time) SlotKey {
	return SlotKey{ContainerID: containerID, TimeOfDay: t.Format(timeLayout)}
}

func (k SlotKey) String() string {
	return k.ContainerID + "-" + k.TimeOfDay
}

// ParseSlotKey decodes the "<containerID>-<HH:MM>" form.
func ParseSlotKey(s string) (SlotKey, error) {
	i := strings.LastIndex(s, "-")
	if i <= 0 || i == len(s)-1 {
		return SlotKey{}, fmt.Errorf("malformed slot key %q", s)
	}
	tod := s[i+1:]
	if _, err := time.Parse(timeLayout, tod); err != nil {
		return SlotKey{}, fmt.Errorf("malformed slot key %q: %w", s, err)
	}
	return SlotKey{ContainerID: s[:i], TimeOfDay: tod}, nil
}

// MarshalText implements encoding.TextMarshaler so SlotKey can be a JSON object key.
func (k SlotKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *SlotKey) UnmarshalText(b []byte) error {
	parsed, err := ParseSlotKey(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// DailySlots holds the slot states recorded on one date.
// true means present, false means cleared. Entries are never removed.
type DailySlots map[SlotKey]bool

// Keys returns the slot keys ordered by time of day, then container id.
func (s DailySlots) Keys() []SlotKey {
	keys := make([]SlotKey, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].TimeOfDay != keys[j].TimeOfDay {
			return keys[i].TimeOfDay < keys[j].TimeOfDay
		}
		return keys[i].ContainerID < keys[j].ContainerID
	})
	return keys
}

// Daily maps a date to the slots recorded on it.
type Daily map[DateKey]DailySlots

// Dates returns the recorded dates in chronological order.
// Keys that do not parse sort last, lexically.
func (d Daily) Dates() []DateKey {
	dates := make([]DateKey, 0, len(d))
	for k := range d {
		dates = append(dates, k)
	}
	sort.Slice(dates, func(i, j int) bool {
		ti, erri := dates[i].Time(time.UTC)
		tj, errj := dates[j].Time(time.UTC)
		switch {
		case erri == nil && errj == nil && !ti.Equal(tj):
			return ti.Before(tj)
		case erri == nil && errj != nil:
			return true
		case erri != nil && errj == nil:
			return false
		}
		return dates[i] < dates[j]
	})
	return dates
}
