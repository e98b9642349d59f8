package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/turnos-booking/internal/model"
)

// MemoryReservationRepo is an in-process reservation store with the same
// semantics as ReservationRepo.  Each method runs under a single mutex so
// check-and-insert and conditional updates are atomic.  It backs local runs
// with DB_DRIVER=memory and the service tests.
type MemoryReservationRepo struct {
	mu     sync.Mutex
	nextID uint64
	rows   []model.Reservation
	now    func() time.Time
}

// NewMemoryReservationRepo returns an empty in-memory store.
func NewMemoryReservationRepo() *MemoryReservationRepo {
	return &MemoryReservationRepo{now: time.Now}
}

// SetClock overrides the clock used for created_at/updated_at.
func (m *MemoryReservationRepo) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MemoryReservationRepo) activeIndex(slot time.Time) int {
	for i, r := range m.rows {
		if r.Status.Active() && r.SlotAt.Equal(slot) {
			return i
		}
	}
	return -1
}

func (m *MemoryReservationRepo) FindActiveBySlot(_ context.Context, slot time.Time) (*model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.activeIndex(slot)
	if i < 0 {
		return nil, ErrNotFound
	}
	res := m.rows[i]
	return &res, nil
}

func (m *MemoryReservationRepo) InsertIfAbsent(_ context.Context, res *model.Reservation) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if res.Status.Active() && m.activeIndex(res.SlotAt) >= 0 {
		return false, nil
	}
	m.nextID++
	now := m.now().UTC()
	stored := *res
	stored.ID = m.nextID
	stored.SlotAt = res.SlotAt.UTC()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	m.rows = append(m.rows, stored)
	*res = stored
	return true, nil
}

// holdIndex returns the pending hold at slot issued with token, or -1.
func (m *MemoryReservationRepo) holdIndex(slot time.Time, token string) int {
	i := m.activeIndex(slot)
	if i < 0 {
		return -1
	}
	r := m.rows[i]
	if r.Status != model.StatusPending || r.HoldToken == nil || *r.HoldToken != token {
		return -1
	}
	return i
}

func (m *MemoryReservationRepo) ResolveHold(_ context.Context, slot time.Time, token string, to model.Status) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.holdIndex(slot, token)
	if i < 0 {
		return false, nil
	}
	m.rows[i].Status = to
	m.rows[i].UpdatedAt = m.now().UTC()
	return true, nil
}

func (m *MemoryReservationRepo) SetPaymentRef(_ context.Context, slot time.Time, token, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.holdIndex(slot, token)
	if i < 0 {
		return ErrNotFound
	}
	m.rows[i].PaymentRef = &ref
	m.rows[i].UpdatedAt = m.now().UTC()
	return nil
}

func (m *MemoryReservationRepo) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.rows[:0]
	var n int64
	for _, r := range m.rows {
		if r.SlotAt.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, r)
	}
	m.rows = kept
	return n, nil
}

func (m *MemoryReservationRepo) CancelPendingBefore(_ context.Context, createdBefore time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for i := range m.rows {
		if m.rows[i].Status == model.StatusPending && m.rows[i].CreatedAt.Before(createdBefore) {
			m.rows[i].Status = model.StatusCancelled
			m.rows[i].UpdatedAt = m.now().UTC()
			n++
		}
	}
	return n, nil
}

func (m *MemoryReservationRepo) ListActiveByDate(_ context.Context, from, to time.Time) ([]model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Reservation{}
	for _, r := range m.rows {
		if r.Status.Active() && !r.SlotAt.Before(from) && r.SlotAt.Before(to) {
			out = append(out, r)
		}
	}
	sortBySlot(out)
	return out, nil
}

func (m *MemoryReservationRepo) List(_ context.Context) ([]model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Reservation, len(m.rows))
	copy(out, m.rows)
	sortBySlot(out)
	return out, nil
}

func sortBySlot(rs []model.Reservation) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].SlotAt.Equal(rs[j].SlotAt) {
			return rs[i].ID < rs[j].ID
		}
		return rs[i].SlotAt.Before(rs[j].SlotAt)
	})
}
