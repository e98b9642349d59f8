package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/turnos-booking/internal/model"
	"github.com/iliyamo/turnos-booking/internal/repository"
	"github.com/iliyamo/turnos-booking/internal/schedule"
)

type fakeGateway struct {
	mu      sync.Mutex
	intents []PaymentIntent
	err     error
}

func (g *fakeGateway) CreatePaymentIntent(_ context.Context, in PaymentIntent) (PaymentHandle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return PaymentHandle{}, g.err
	}
	g.intents = append(g.intents, in)
	return PaymentHandle{PaymentRef: "chrg_" + in.ExternalReference, RedirectURL: "https://pay.example/" + in.ExternalReference}, nil
}

type verifyingGateway struct {
	fakeGateway
	status PaymentStatus
}

func (g *verifyingGateway) PaymentStatus(context.Context, string) (PaymentStatus, error) {
	return g.status, nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []model.Reservation
	err  error
}

func (n *fakeNotifier) Notify(_ context.Context, res model.Reservation) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, res)
	return n.err
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type bookingFixture struct {
	store    *repository.MemoryReservationRepo
	gateway  *fakeGateway
	notifier *fakeNotifier
	svc      *BookingService
}

func newBookingFixture(t *testing.T, tpl *schedule.Template, gateway PaymentGateway) bookingFixture {
	t.Helper()
	f := bookingFixture{store: repository.NewMemoryReservationRepo(), notifier: &fakeNotifier{}}
	if g, ok := gateway.(*fakeGateway); ok {
		f.gateway = g
	}
	f.svc = NewBookingService(f.store, tpl, gateway, f.notifier, BookingConfig{
		Location:   time.UTC,
		Currency:   "ars",
		BackendURL: "https://api.example/",
	})
	f.svc.SetClock(fixedClock(time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)))
	return f
}

func amount(s string) *string { return &s }

func TestRequestReservation_SecondRequestConflicts(t *testing.T) {
	f := newBookingFixture(t, schedule.Default(), &fakeGateway{})
	req := ReservationRequest{DateTime: "2024-06-10T09:00", ClientName: "Ana", ServiceType: "haircut", DepositAmount: amount("500")}

	h, err := f.svc.RequestReservation(context.Background(), req)
	if err != nil {
		t.Fatalf("expected first request to succeed, got %v", err)
	}
	if !h.PaymentRequired || h.RedirectURL == "" || h.ExternalReference != "2024-06-10T09:00" {
		t.Fatalf("unexpected handle %+v", h)
	}
	if h.Reservation.Status != model.StatusPending {
		t.Fatalf("expected pending hold, got %s", h.Reservation.Status)
	}

	_, err = f.svc.RequestReservation(context.Background(), req)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestRequestReservation_PaymentIntent(t *testing.T) {
	f := newBookingFixture(t, schedule.Default(), &fakeGateway{})
	_, err := f.svc.RequestReservation(context.Background(), ReservationRequest{
		DateTime: "2024-06-10T09:00", ClientName: "Ana", ServiceType: "haircut",
		ClientEmail: "ana@example.com", DepositAmount: amount("500.5"),
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(f.gateway.intents) != 1 {
		t.Fatalf("expected one payment intent, got %d", len(f.gateway.intents))
	}
	in := f.gateway.intents[0]
	if in.AmountCents != 50050 || in.Currency != "ars" || in.ExternalReference != "2024-06-10T09:00" {
		t.Fatalf("unexpected intent %+v", in)
	}
	if !strings.HasPrefix(in.ReturnURLs.Success, "https://api.example/turnos/confirmar?") ||
		!strings.Contains(in.ReturnURLs.Success, "clientEmail=ana%40example.com") {
		t.Fatalf("unexpected success URL %q", in.ReturnURLs.Success)
	}
	if !strings.HasPrefix(in.ReturnURLs.Failure, "https://api.example/turnos/error?externalReference=") {
		t.Fatalf("unexpected failure URL %q", in.ReturnURLs.Failure)
	}

	stored, err := f.store.FindActiveBySlot(context.Background(), time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("expected stored hold, got %v", err)
	}
	if stored.PaymentRef == nil || *stored.PaymentRef != "chrg_2024-06-10T09:00" {
		t.Fatalf("expected payment ref to be stored, got %+v", stored)
	}
	if f.notifier.count() != 0 {
		t.Fatalf("expected no notification before payment")
	}
}

func TestRequestReservation_ConcurrentRequestsOneWins(t *testing.T) {
	for _, gateway := range []PaymentGateway{nil, &fakeGateway{}} {
		f := newBookingFixture(t, schedule.Default(), gateway)
		const n = 32
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes int
			conflicts int
		)
		start := make(chan struct{})
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				_, err := f.svc.RequestReservation(context.Background(), ReservationRequest{
					DateTime: "2024-06-15T14:00", ClientName: "Ana", ServiceType: "haircut", DepositAmount: amount("100"),
				})
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					successes++
				case errors.Is(err, ErrConflict):
					conflicts++
				default:
					t.Errorf("unexpected error %v", err)
				}
			}()
		}
		close(start)
		wg.Wait()
		if successes != 1 || conflicts != n-1 {
			t.Fatalf("expected 1 success and %d conflicts, got %d and %d", n-1, successes, conflicts)
		}
	}
}

func TestRequestReservation_WithoutPaymentStepConfirms(t *testing.T) {
	f := newBookingFixture(t, schedule.Default(), nil)
	h, err := f.svc.RequestReservation(context.Background(), ReservationRequest{
		DateTime: "2024-06-10T10:00", ClientName: "Ana", ServiceType: "haircut", DepositAmount: amount("500"),
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if h.PaymentRequired || h.Reservation.Status != model.StatusConfirmed {
		t.Fatalf("expected direct confirmation, got %+v", h)
	}
	if h.Reservation.DepositCents == nil || *h.Reservation.DepositCents != 50000 {
		t.Fatalf("expected deposit to be recorded, got %+v", h.Reservation.DepositCents)
	}
	if f.notifier.count() != 1 {
		t.Fatalf("expected one notification, got %d", f.notifier.count())
	}
}

func TestRequestReservation_ZeroDepositSkipsPayment(t *testing.T) {
	f := newBookingFixture(t, schedule.Default(), &fakeGateway{})
	h, err := f.svc.RequestReservation(context.Background(), ReservationRequest{
		DateTime: "2024-06-10T10:00", ClientName: "Ana", ServiceType: "haircut", DepositAmount: amount("0"),
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if h.PaymentRequired || len(f.gateway.intents) != 0 {
		t.Fatalf("expected no payment step for a zero deposit")
	}
}

func TestRequestReservation_InvalidInput(t *testing.T) {
	f := newBookingFixture(t, schedule.Default(), &fakeGateway{})
	cases := []struct {
		name string
		req  ReservationRequest
	}{
		{"non-numeric deposit", ReservationRequest{DateTime: "2024-06-10T09:00", ClientName: "Ana", ServiceType: "haircut", DepositAmount: amount("abc")}},
		{"negative deposit", ReservationRequest{DateTime: "2024-06-10T09:00", ClientName: "Ana", ServiceType: "haircut", DepositAmount: amount("-1")}},
		{"missing date", ReservationRequest{ClientName: "Ana", ServiceType: "haircut"}},
		{"bad date", ReservationRequest{DateTime: "10/06/2024 09:00", ClientName: "Ana", ServiceType: "haircut"}},
		{"missing name", ReservationRequest{DateTime: "2024-06-10T09:00", ServiceType: "haircut"}},
		{"missing service", ReservationRequest{DateTime: "2024-06-10T09:00", ClientName: "Ana"}},
		{"past slot", ReservationRequest{DateTime: "2024-05-27T09:00", ClientName: "Ana", ServiceType: "haircut"}},
		{"not offered", ReservationRequest{DateTime: "2024-06-10T13:00", ClientName: "Ana", ServiceType: "haircut"}},
	}
	for _, tc := range cases {
		_, err := f.svc.RequestReservation(context.Background(), tc.req)
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("%s: expected ErrInvalidInput, got %v", tc.name, err)
		}
	}
	if rs, _ := f.store.List(context.Background()); len(rs) != 0 {
		t.Fatalf("expected nothing stored, got %d rows", len(rs))
	}
}

func TestRequestReservation_ClosedDay(t *testing.T) {
	f := newBookingFixture(t, schedule.Default(), nil)
	_, err := f.svc.RequestReservation(context.Background(), ReservationRequest{
		DateTime: "2024-06-09T09:00", ClientName: "Ana", ServiceType: "haircut",
	})
	if !errors.Is(err, ErrPolicyViolation) {
		t.Fatalf("expected ErrPolicyViolation, got %v", err)
	}
}

func TestRequestReservation_GatewayFailureReleasesHold(t *testing.T) {
	gw := &fakeGateway{err: errors.New("gateway down")}
	f := newBookingFixture(t, schedule.Default(), gw)
	req := ReservationRequest{DateTime: "2024-06-10T09:00", ClientName: "Ana", ServiceType: "haircut", DepositAmount: amount("500")}

	_, err := f.svc.RequestReservation(context.Background(), req)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	gw.mu.Lock()
	gw.err = nil
	gw.mu.Unlock()
	if _, err := f.svc.RequestReservation(context.Background(), req); err != nil {
		t.Fatalf("expected slot to be free after gateway failure, got %v", err)
	}
}

// refFailingStore loses every payment reference it is asked to record.
type refFailingStore struct {
	*repository.MemoryReservationRepo
}

func (refFailingStore) SetPaymentRef(context.Context, time.Time, string, string) error {
	return errors.New("connection reset")
}

var monday9 = time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)

func holdToken(t *testing.T, store *repository.MemoryReservationRepo, slot time.Time) string {
	t.Helper()
	res, err := store.FindActiveBySlot(context.Background(), slot)
	if err != nil {
		t.Fatalf("load hold: %v", err)
	}
	if res.HoldToken == nil || *res.HoldToken == "" {
		t.Fatalf("expected hold token on %+v", res)
	}
	return *res.HoldToken
}

func requestHold(t *testing.T, f bookingFixture, name string) string {
	t.Helper()
	if _, err := f.svc.RequestReservation(context.Background(), ReservationRequest{
		DateTime: "2024-06-10T09:00", ClientName: name, ServiceType: "haircut", ClientEmail: "ana@example.com", DepositAmount: amount("500"),
	}); err != nil {
		t.Fatalf("request: %v", err)
	}
	return holdToken(t, f.store, monday9)
}

func TestRequestReservation_ReturnURLsCarryHoldToken(t *testing.T) {
	f := newBookingFixture(t, schedule.Default(), &fakeGateway{})
	token := requestHold(t, f, "Ana")
	urls := f.gateway.intents[0].ReturnURLs
	for _, u := range []string{urls.Success, urls.Failure, urls.Pending} {
		if !strings.Contains(u, "token="+token) {
			t.Fatalf("expected %q to carry the hold token", u)
		}
	}
}

func TestRequestReservation_PaymentRefFailureReleasesHold(t *testing.T) {
	store := repository.NewMemoryReservationRepo()
	svc := NewBookingService(refFailingStore{store}, schedule.Default(), &fakeGateway{}, nil, BookingConfig{Location: time.UTC})
	svc.SetClock(fixedClock(time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)))

	_, err := svc.RequestReservation(context.Background(), ReservationRequest{
		DateTime: "2024-06-10T09:00", ClientName: "Ana", ServiceType: "haircut", DepositAmount: amount("500"),
	})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if _, err := store.FindActiveBySlot(context.Background(), monday9); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected the hold to be released, got %v", err)
	}
}

func TestConfirmReservation_PendingStatusRejected(t *testing.T) {
	f := newBookingFixture(t, schedule.Default(), &fakeGateway{})
	token := requestHold(t, f, "Ana")
	_, err := f.svc.ConfirmReservation(context.Background(), Confirmation{
		ExternalReference: "2024-06-10T09:00", Token: token, Status: "pending",
	})
	if !errors.Is(err, ErrPaymentRejected) {
		t.Fatalf("expected ErrPaymentRejected, got %v", err)
	}
	if res, _ := f.store.FindActiveBySlot(context.Background(), monday9); res == nil || res.Status != model.StatusPending {
		t.Fatalf("expected the hold to stay pending, got %+v", res)
	}
}

func TestConfirmReservation_FlipsHoldAndIsIdempotent(t *testing.T) {
	f := newBookingFixture(t, schedule.Default(), &fakeGateway{})
	token := requestHold(t, f, "Ana")
	cb := Confirmation{ExternalReference: "2024-06-10T09:00", Token: token, Status: "approved"}

	first, err := f.svc.ConfirmReservation(context.Background(), cb)
	if err != nil {
		t.Fatalf("expected first confirmation to succeed, got %v", err)
	}
	if first.AlreadyConfirmed || first.Reservation.Status != model.StatusConfirmed {
		t.Fatalf("unexpected first result %+v", first)
	}
	if first.Reservation.Email() != "ana@example.com" {
		t.Fatalf("expected client email from the hold, got %q", first.Reservation.Email())
	}

	second, err := f.svc.ConfirmReservation(context.Background(), cb)
	if err != nil {
		t.Fatalf("expected duplicate confirmation to succeed, got %v", err)
	}
	if !second.AlreadyConfirmed {
		t.Fatalf("expected duplicate to be flagged as already confirmed")
	}

	rs, _ := f.store.List(context.Background())
	if len(rs) != 1 || rs[0].Status != model.StatusConfirmed {
		t.Fatalf("expected exactly one confirmed reservation, got %+v", rs)
	}
	if f.notifier.count() != 1 {
		t.Fatalf("expected one notification, got %d", f.notifier.count())
	}
}

func TestConfirmReservation_GatewayNeedsMatchingHold(t *testing.T) {
	f := newBookingFixture(t, schedule.Default(), &verifyingGateway{status: PaymentPending})
	cb := Confirmation{ExternalReference: "2024-06-10T10:00", Status: "approved", ClientName: "Eve", ServiceType: "haircut"}

	if _, err := f.svc.ConfirmReservation(context.Background(), cb); !errors.Is(err, ErrPaymentRejected) {
		t.Fatalf("expected a callback without hold to be rejected, got %v", err)
	}
	cb.Token = "00000000-0000-0000-0000-000000000000"
	if _, err := f.svc.ConfirmReservation(context.Background(), cb); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected an unknown token to conflict, got %v", err)
	}
	if rs, _ := f.store.List(context.Background()); len(rs) != 0 {
		t.Fatalf("expected nothing persisted, got %+v", rs)
	}
}

func TestConfirmReservation_WithoutHoldInsertsConfirmed(t *testing.T) {
	f := newBookingFixture(t, schedule.Default(), nil)
	cb := Confirmation{ExternalReference: "2024-06-10T09:00", Status: "APPROVED", ClientName: "Ana", ServiceType: "haircut"}

	for i := 0; i < 2; i++ {
		if _, err := f.svc.ConfirmReservation(context.Background(), cb); err != nil {
			t.Fatalf("confirmation %d: %v", i, err)
		}
	}
	rs, _ := f.store.List(context.Background())
	if len(rs) != 1 || rs[0].Status != model.StatusConfirmed || rs[0].ClientName != "Ana" {
		t.Fatalf("expected one confirmed reservation, got %+v", rs)
	}
}

func TestConfirmReservation_WithoutHoldValidatesSlot(t *testing.T) {
	f := newBookingFixture(t, schedule.Default(), nil)
	cases := []struct {
		ref  string
		kind error
	}{
		{"2024-06-09T03:17", ErrPolicyViolation},
		{"2024-06-10T13:00", ErrInvalidInput},
		{"2024-05-27T09:00", ErrInvalidInput},
	}
	for _, tc := range cases {
		_, err := f.svc.ConfirmReservation(context.Background(), Confirmation{
			ExternalReference: tc.ref, Status: "approved", ClientName: "Ana", ServiceType: "haircut",
		})
		if !errors.Is(err, tc.kind) {
			t.Fatalf("%s: expected %v, got %v", tc.ref, tc.kind, err)
		}
	}
	if rs, _ := f.store.List(context.Background()); len(rs) != 0 {
		t.Fatalf("expected nothing persisted, got %+v", rs)
	}
}

func TestConfirmReservation_WithoutHoldNeedsClientInfo(t *testing.T) {
	f := newBookingFixture(t, schedule.Default(), nil)
	_, err := f.svc.ConfirmReservation(context.Background(), Confirmation{ExternalReference: "2024-06-10T09:00", Status: "approved"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestConfirmReservation_InvalidReference(t *testing.T) {
	f := newBookingFixture(t, schedule.Default(), &fakeGateway{})
	_, err := f.svc.ConfirmReservation(context.Background(), Confirmation{ExternalReference: "nope", Status: "approved"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestConfirmReservation_RejectedReleasesHold(t *testing.T) {
	f := newBookingFixture(t, schedule.Default(), &fakeGateway{})
	token := requestHold(t, f, "Ana")
	_, err := f.svc.ConfirmReservation(context.Background(), Confirmation{ExternalReference: "2024-06-10T09:00", Token: token, Status: "rejected"})
	if !errors.Is(err, ErrPaymentRejected) {
		t.Fatalf("expected ErrPaymentRejected, got %v", err)
	}
	requestHold(t, f, "Bea")
}

func TestConfirmReservation_VerifierOverridesCallbackStatus(t *testing.T) {
	gw := &verifyingGateway{status: PaymentPending}
	f := newBookingFixture(t, schedule.Default(), gw)
	if _, err := f.svc.RequestReservation(context.Background(), ReservationRequest{
		DateTime: "2024-06-10T09:00", ClientName: "Ana", ServiceType: "haircut", DepositAmount: amount("500"),
	}); err != nil {
		t.Fatalf("request: %v", err)
	}

	cb := Confirmation{ExternalReference: "2024-06-10T09:00", Token: holdToken(t, f.store, monday9), Status: "approved"}
	if _, err := f.svc.ConfirmReservation(context.Background(), cb); !errors.Is(err, ErrPaymentRejected) {
		t.Fatalf("expected unverified approval to be rejected, got %v", err)
	}

	gw.status = PaymentApproved
	cb.Status = ""
	res, err := f.svc.ConfirmReservation(context.Background(), cb)
	if err != nil {
		t.Fatalf("expected verified approval to confirm, got %v", err)
	}
	if res.Reservation.Status != model.StatusConfirmed {
		t.Fatalf("expected confirmed, got %s", res.Reservation.Status)
	}
}

func TestConfirmReservation_NotifierFailureDoesNotFail(t *testing.T) {
	f := newBookingFixture(t, schedule.Default(), nil)
	f.notifier.err = errors.New("smtp down")
	_, err := f.svc.ConfirmReservation(context.Background(), Confirmation{
		ExternalReference: "2024-06-10T09:00", Status: "approved", ClientName: "Ana", ServiceType: "haircut",
	})
	if err != nil {
		t.Fatalf("expected notifier failure to be swallowed, got %v", err)
	}
}

func TestCancelReservation(t *testing.T) {
	f := newBookingFixture(t, schedule.Default(), &fakeGateway{})
	token := requestHold(t, f, "Ana")

	if _, err := f.svc.CancelReservation(context.Background(), "2024-06-10T09:00", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput without a token, got %v", err)
	}
	ok, err := f.svc.CancelReservation(context.Background(), "2024-06-10T09:00", token)
	if err != nil || !ok {
		t.Fatalf("expected hold to be cancelled, got ok=%v err=%v", ok, err)
	}
	ok, err = f.svc.CancelReservation(context.Background(), "2024-06-10T09:00", token)
	if err != nil || ok {
		t.Fatalf("expected second cancel to be a no-op, got ok=%v err=%v", ok, err)
	}
}

func TestCallbacks_StaleHoldCannotTouchReplacement(t *testing.T) {
	f := newBookingFixture(t, schedule.Default(), &fakeGateway{})
	created := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	f.store.SetClock(fixedClock(created))
	stale := requestHold(t, f, "Ana")

	if n, err := f.svc.ExpireHolds(context.Background(), created.Add(31*time.Minute), 30*time.Minute); err != nil || n != 1 {
		t.Fatalf("expected the first hold to expire, got n=%d err=%v", n, err)
	}
	f.store.SetClock(fixedClock(created.Add(32 * time.Minute)))
	current := requestHold(t, f, "Bea")
	if current == stale {
		t.Fatalf("expected a fresh token for the second hold")
	}

	if ok, err := f.svc.CancelReservation(context.Background(), "2024-06-10T09:00", stale); err != nil || ok {
		t.Fatalf("expected a stale cancel to be a no-op, got ok=%v err=%v", ok, err)
	}
	_, err := f.svc.ConfirmReservation(context.Background(), Confirmation{ExternalReference: "2024-06-10T09:00", Token: stale, Status: "approved"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected a stale approval to conflict, got %v", err)
	}

	res, err := f.store.FindActiveBySlot(context.Background(), monday9)
	if err != nil {
		t.Fatalf("expected the second hold to survive, got %v", err)
	}
	if res.ClientName != "Bea" || res.Status != model.StatusPending {
		t.Fatalf("expected Bea's hold to stay pending, got %+v", res)
	}
}

func TestParseDeposit(t *testing.T) {
	cases := []struct {
		in    string
		cents int64
		ok    bool
	}{
		{"500", 50000, true},
		{"12.34", 1234, true},
		{"90071992547409", 9007199254740900, true},
		{"90071992547410", 0, false},
		{"92233720368547758", 0, false},
		{"1e300", 0, false},
		{"-0.01", 0, false},
	}
	for _, tc := range cases {
		raw := tc.in
		got, err := parseDeposit(&raw)
		if !tc.ok {
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("%s: expected ErrInvalidInput, got %v (%v)", tc.in, err, got)
			}
			continue
		}
		if err != nil || got == nil || *got != tc.cents {
			t.Fatalf("%s: expected %d, got %v err=%v", tc.in, tc.cents, got, err)
		}
	}
}

func TestPurgeExpired_Boundary(t *testing.T) {
	f := newBookingFixture(t, schedule.Default(), nil)
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	window := 24 * time.Hour
	cutoff := now.Add(-window)

	old := cutoff.Add(-time.Minute)
	atCutoff := cutoff
	recent := now.Add(-time.Hour)
	future := now.Add(48 * time.Hour)
	seed(t, f.store, old, model.StatusConfirmed)
	seed(t, f.store, old.Add(-time.Hour), model.StatusCancelled)
	seed(t, f.store, atCutoff, model.StatusPending)
	seed(t, f.store, recent, model.StatusConfirmed)
	seed(t, f.store, future, model.StatusConfirmed)

	n, err := f.svc.PurgeExpired(context.Background(), now, window)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 records purged, got %d", n)
	}
	rs, _ := f.store.List(context.Background())
	if len(rs) != 3 {
		t.Fatalf("expected 3 records kept, got %d", len(rs))
	}
	for _, r := range rs {
		if r.SlotAt.Before(cutoff) {
			t.Fatalf("record %s older than the cutoff survived", r.SlotAt)
		}
	}
}

func TestPurgeExpired_StoreFailure(t *testing.T) {
	svc := NewBookingService(failingStore{err: errors.New("down")}, schedule.Default(), nil, nil, BookingConfig{})
	if _, err := svc.PurgeExpired(context.Background(), time.Now(), time.Hour); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestExpireHolds(t *testing.T) {
	f := newBookingFixture(t, schedule.Default(), &fakeGateway{})
	created := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	f.store.SetClock(fixedClock(created))
	if _, err := f.svc.RequestReservation(context.Background(), ReservationRequest{
		DateTime: "2024-06-10T09:00", ClientName: "Ana", ServiceType: "haircut", DepositAmount: amount("500"),
	}); err != nil {
		t.Fatalf("request: %v", err)
	}

	if n, _ := f.svc.ExpireHolds(context.Background(), created.Add(10*time.Minute), 30*time.Minute); n != 0 {
		t.Fatalf("expected fresh hold to survive, got %d cancelled", n)
	}
	if n, _ := f.svc.ExpireHolds(context.Background(), created.Add(time.Hour), 0); n != 0 {
		t.Fatalf("expected zero ttl to disable expiry, got %d cancelled", n)
	}
	n, err := f.svc.ExpireHolds(context.Background(), created.Add(time.Hour), 30*time.Minute)
	if err != nil || n != 1 {
		t.Fatalf("expected one hold cancelled, got n=%d err=%v", n, err)
	}
}

func TestListReservations_Localized(t *testing.T) {
	loc := time.FixedZone("ART", -3*60*60)
	store := repository.NewMemoryReservationRepo()
	seed(t, store, time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC), model.StatusConfirmed)
	svc := NewBookingService(store, schedule.Default(), nil, nil, BookingConfig{Location: loc})

	rs, err := svc.ListReservations(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(rs) != 1 || rs[0].Reference() != "2024-06-10T09:00" {
		t.Fatalf("expected local reference 2024-06-10T09:00, got %+v", rs)
	}
}
