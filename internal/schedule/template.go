// Package schedule holds the weekly template of offerable appointment
// times.  The template is process-wide configuration: it is built once at
// startup (from defaults or a JSON file) and never mutated afterwards.
package schedule

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
)

// Slot groups the offerable times of one weekday.
type Slot struct {
	Weekday time.Weekday
	Times   []string
}

// Template maps weekdays to ordered HH:MM times and designates an optional
// closed weekday on which no bookings are accepted.
type Template struct {
	slots     map[time.Weekday][]string
	closed    time.Weekday
	hasClosed bool
}

// New builds a template from the given slots.  Times are normalised to
// HH:MM, sorted and deduplicated.  closed may be nil when the business opens
// every day.
func New(slots []Slot, closed *time.Weekday) (*Template, error) {
	t := &Template{slots: make(map[time.Weekday][]string, len(slots))}
	for _, s := range slots {
		for _, raw := range s.Times {
			hhmm, err := NormalizeTime(raw)
			if err != nil {
				return nil, fmt.Errorf("schedule: %s: %w", s.Weekday, err)
			}
			t.slots[s.Weekday] = append(t.slots[s.Weekday], hhmm)
		}
	}
	for wd, times := range t.slots {
		t.slots[wd] = dedupSorted(times)
	}
	if closed != nil {
		t.closed = *closed
		t.hasClosed = true
	}
	return t, nil
}

// Default returns the template the business has been running with:
// weekdays 08:00-11:00, Saturday 08:00-12:00 and 14:00-20:00, Sunday closed.
func Default() *Template {
	weekday := []string{"08:00", "09:00", "10:00", "11:00"}
	saturday := []string{"08:00", "09:00", "10:00", "11:00", "12:00", "14:00", "15:00", "16:00", "17:00", "18:00", "19:00", "20:00"}
	sunday := time.Sunday
	t, _ := New([]Slot{
		{Weekday: time.Monday, Times: weekday},
		{Weekday: time.Tuesday, Times: weekday},
		{Weekday: time.Wednesday, Times: weekday},
		{Weekday: time.Thursday, Times: weekday},
		{Weekday: time.Friday, Times: weekday},
		{Weekday: time.Saturday, Times: saturday},
	}, &sunday)
	return t
}

// fileFormat is the JSON layout accepted by Load.
type fileFormat struct {
	Closed string              `json:"closed"`
	Slots  map[string][]string `json:"slots"`
}

// Load reads a template from a JSON file such as
//
//	{"closed": "sunday", "slots": {"monday": ["09:00", "11:00"]}}
//
// Weekday labels may be English or Spanish.
func Load(path string) (*Template, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schedule: read %s: %w", path, err)
	}
	return Parse(b)
}

// Parse decodes a template from its JSON representation.
func Parse(b []byte) (*Template, error) {
	var f fileFormat
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("schedule: decode: %w", err)
	}
	slots := make([]Slot, 0, len(f.Slots))
	for label, times := range f.Slots {
		wd, ok := ParseWeekday(label)
		if !ok {
			return nil, fmt.Errorf("schedule: unknown weekday %q", label)
		}
		slots = append(slots, Slot{Weekday: wd, Times: times})
	}
	var closed *time.Weekday
	if strings.TrimSpace(f.Closed) != "" {
		wd, ok := ParseWeekday(f.Closed)
		if !ok {
			return nil, fmt.Errorf("schedule: unknown closed weekday %q", f.Closed)
		}
		closed = &wd
	}
	return New(slots, closed)
}

// WithClosed returns a copy of the template whose closed day is wd.
func (t *Template) WithClosed(wd time.Weekday) *Template {
	return &Template{slots: t.slots, closed: wd, hasClosed: true}
}

// WithoutClosed returns a copy of the template that accepts bookings on
// every day.
func (t *Template) WithoutClosed() *Template {
	return &Template{slots: t.slots}
}

// SlotsFor returns the ordered times offered on wd.  The result is a copy
// and is empty for weekdays without an offering.
func (t *Template) SlotsFor(wd time.Weekday) []string {
	times := t.slots[wd]
	out := make([]string, len(times))
	copy(out, times)
	return out
}

// SlotsForLabel is SlotsFor keyed by a weekday label.  Unrecognised labels
// yield an empty sequence.
func (t *Template) SlotsForLabel(label string) []string {
	wd, ok := ParseWeekday(label)
	if !ok {
		return []string{}
	}
	return t.SlotsFor(wd)
}

// IsClosed reports whether wd is the designated closed day.
func (t *Template) IsClosed(wd time.Weekday) bool {
	return t.hasClosed && t.closed == wd
}

// ClosedDay returns the closed weekday, if any.
func (t *Template) ClosedDay() (time.Weekday, bool) {
	return t.closed, t.hasClosed
}

// Offers reports whether hhmm is one of the times offered on wd.
func (t *Template) Offers(wd time.Weekday, hhmm string) bool {
	for _, s := range t.slots[wd] {
		if s == hhmm {
			return true
		}
	}
	return false
}

// NormalizeTime validates a time-of-day and returns it as HH:MM.  Seconds
// are accepted ("09:00:00") but must be zero.
func NormalizeTime(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	for _, layout := range []string{"15:04", "15:04:05"} {
		if tm, err := time.Parse(layout, s); err == nil {
			if tm.Second() != 0 {
				return "", fmt.Errorf("time %q has non-zero seconds", raw)
			}
			return tm.Format("15:04"), nil
		}
	}
	return "", fmt.Errorf("invalid time %q", raw)
}

func dedupSorted(in []string) []string {
	sort.Strings(in)
	out := in[:0]
	for _, s := range in {
		if len(out) > 0 && out[len(out)-1] == s {
			continue
		}
		out = append(out, s)
	}
	return out
}
