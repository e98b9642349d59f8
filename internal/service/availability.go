package service

import (
	"context"
	"time"

	"github.com/iliyamo/turnos-booking/internal/schedule"
)

// AvailabilityService projects the schedule template minus the active
// reservations of a day.  It only reads from the store; a reservation created
// concurrently may not be reflected, which affects freshness but never the
// uniqueness of bookings.
type AvailabilityService struct {
	store    ReservationStore
	template *schedule.Template
	loc      *time.Location
	now      func() time.Time
}

// NewAvailabilityService wires the calculator to its store and template.
// Dates are interpreted in loc.
func NewAvailabilityService(store ReservationStore, tpl *schedule.Template, loc *time.Location) *AvailabilityService {
	if store == nil || tpl == nil {
		panic("nil dependency passed to NewAvailabilityService")
	}
	if loc == nil {
		loc = time.UTC
	}
	return &AvailabilityService{store: store, template: tpl, loc: loc, now: time.Now}
}

// SetClock overrides the clock used to drop slots already in the past.
func (a *AvailabilityService) SetClock(now func() time.Time) { a.now = now }

// ComputeAvailable returns the bookable HH:MM times of date, in template
// order.  It fails with ErrInvalidInput when date is missing or unparseable
// and with ErrPolicyViolation when date falls on the closed weekday.
// Reserved times are matched on the full HH:MM of the reservation.
func (a *AvailabilityService) ComputeAvailable(ctx context.Context, date string) ([]string, error) {
	if date == "" {
		return nil, invalidInput("a date is required to list available times")
	}
	day, ok := ParseDate(date, a.loc)
	if !ok {
		return nil, invalidInput("invalid date %q, expected YYYY-MM-DD", date)
	}
	wd := day.Weekday()
	if a.template.IsClosed(wd) {
		return nil, policyViolation("no bookings are accepted on %s", weekdayName(wd))
	}
	slots := a.template.SlotsFor(wd)
	if len(slots) == 0 {
		return []string{}, nil
	}

	reserved, err := a.store.ListActiveByDate(ctx, day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, unavailable("failed to load reservations", err)
	}
	taken := make(map[string]struct{}, len(reserved))
	for _, r := range reserved {
		taken[r.SlotAt.In(a.loc).Format("15:04")] = struct{}{}
	}

	now := a.now()
	out := make([]string, 0, len(slots))
	for _, hhmm := range slots {
		if _, busy := taken[hhmm]; busy {
			continue
		}
		at, ok := atTime(day, hhmm)
		if !ok || !at.After(now) {
			continue
		}
		out = append(out, hhmm)
	}
	return out, nil
}
