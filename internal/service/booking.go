package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"log"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/turnos-booking/internal/model"
	"github.com/iliyamo/turnos-booking/internal/repository"
	"github.com/iliyamo/turnos-booking/internal/schedule"
)

// BookingConfig carries the settings of the reservation lifecycle.
type BookingConfig struct {
	Location   *time.Location // business time zone; slots are wall-clock times here
	Currency   string         // deposit currency sent to the gateway
	BackendURL string         // public base URL the gateway redirects back to
}

// BookingService drives reservations through pending, confirmed and
// cancelled.  A pending record is persisted when the client requests a slot
// and flipped to confirmed when the payment callback reports approval, so a
// paid slot always has a record.  Each hold carries a random token that only
// travels in the gateway return URLs; callbacks resolve a hold only when they
// present it, so a stale or forged callback cannot touch another client's
// hold.  Uniqueness of active slots is enforced by the store; the existence
// check done here only saves a gateway round trip.
type BookingService struct {
	store    ReservationStore
	template *schedule.Template
	gateway  PaymentGateway
	notifier Notifier
	cfg      BookingConfig
	now      func() time.Time
}

// NewBookingService wires the lifecycle.  gateway may be nil, in which case
// reservations are confirmed immediately; notifier may be nil to disable
// confirmations.
func NewBookingService(store ReservationStore, tpl *schedule.Template, gateway PaymentGateway, notifier Notifier, cfg BookingConfig) *BookingService {
	if store == nil || tpl == nil {
		panic("nil dependency passed to NewBookingService")
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	cfg.BackendURL = strings.TrimRight(cfg.BackendURL, "/")
	return &BookingService{store: store, template: tpl, gateway: gateway, notifier: notifier, cfg: cfg, now: time.Now}
}

// SetClock overrides the clock used to reject slots in the past.
func (s *BookingService) SetClock(now func() time.Time) { s.now = now }

// ReservationRequest is the client's booking request.  DepositAmount is the
// raw amount as sent by the client; nil means no deposit was supplied.
type ReservationRequest struct {
	DateTime      string
	ClientName    string
	ServiceType   string
	ClientEmail   string
	DepositAmount *string
}

// Handle describes an accepted reservation request.  When PaymentRequired
// is set the reservation is pending and the client must follow RedirectURL.
type Handle struct {
	Reservation       model.Reservation
	ExternalReference string
	RedirectURL       string
	PaymentRequired   bool
}

// RequestReservation validates the request and claims the slot.  With a
// deposit and a configured gateway the slot is held as pending and a payment
// is started; otherwise the reservation is confirmed directly.  It fails with
// ErrConflict when an active reservation already holds the slot.
func (s *BookingService) RequestReservation(ctx context.Context, in ReservationRequest) (Handle, error) {
	slot, err := s.validateSlot(in.DateTime)
	if err != nil {
		return Handle{}, err
	}
	name := strings.TrimSpace(in.ClientName)
	service := strings.TrimSpace(in.ServiceType)
	if name == "" || service == "" {
		return Handle{}, invalidInput("clientName and serviceType are required")
	}
	deposit, err := parseDeposit(in.DepositAmount)
	if err != nil {
		return Handle{}, err
	}

	if _, err := s.store.FindActiveBySlot(ctx, slot); err == nil {
		return Handle{}, conflict("the slot %s is already booked", slot.Format(model.SlotLayout))
	} else if !errors.Is(err, repository.ErrNotFound) {
		return Handle{}, unavailable("failed to check the slot", err)
	}

	paid := deposit != nil && *deposit > 0 && s.gateway != nil
	res := model.Reservation{
		SlotAt:       slot,
		ClientName:   name,
		ServiceType:  service,
		ClientEmail:  optional(in.ClientEmail),
		Status:       model.StatusConfirmed,
		DepositCents: deposit,
	}
	var token string
	if paid {
		token = uuid.NewString()
		res.Status = model.StatusPending
		res.HoldToken = &token
	}
	inserted, err := s.store.InsertIfAbsent(ctx, &res)
	if err != nil {
		return Handle{}, unavailable("failed to store the reservation", err)
	}
	if !inserted {
		return Handle{}, conflict("the slot %s is already booked", slot.Format(model.SlotLayout))
	}
	ref := slot.Format(model.SlotLayout)
	res = s.localize(res)

	if !paid {
		s.notify(ctx, res)
		return Handle{Reservation: res, ExternalReference: ref}, nil
	}

	ph, err := s.gateway.CreatePaymentIntent(ctx, PaymentIntent{
		AmountCents:       *deposit,
		Currency:          s.cfg.Currency,
		Description:       "Reservation deposit: " + service,
		ExternalReference: ref,
		PayerName:         name,
		ReturnURLs:        s.returnURLs(ref, token, name, service, in.ClientEmail),
	})
	if err != nil {
		s.release(ctx, slot, token, "gateway failure")
		return Handle{}, unavailable("failed to start the deposit payment", err)
	}
	if ph.PaymentRef != "" {
		// Without the charge id the hold could never be verified.
		if err := s.store.SetPaymentRef(ctx, slot, token, ph.PaymentRef); err != nil {
			s.release(ctx, slot, token, "lost payment ref")
			return Handle{}, unavailable("failed to record the deposit payment", err)
		}
		pr := ph.PaymentRef
		res.PaymentRef = &pr
	}
	return Handle{Reservation: res, ExternalReference: ref, RedirectURL: ph.RedirectURL, PaymentRequired: true}, nil
}

// Confirmation is the payment callback as received from the gateway.  Token
// is the hold token carried by the return URL; it is empty only for the
// callback variant without a prior hold.
type Confirmation struct {
	ExternalReference string
	Token             string
	Status            string
	ClientName        string
	ServiceType       string
	ClientEmail       string
}

// ConfirmResult reports the confirmed reservation.  AlreadyConfirmed is set
// when the callback was a duplicate and nothing changed.
type ConfirmResult struct {
	Reservation      model.Reservation
	AlreadyConfirmed bool
}

// ConfirmReservation applies an approved payment callback.  A callback
// carrying a hold token flips that pending hold to confirmed.  Without a
// token, and only when no payment step is configured, the callback records a
// confirmed reservation for a bookable slot.  A duplicate callback is a no-op
// success.  Any status other than approved fails with ErrPaymentRejected and
// persists nothing; a rejected payment also releases the hold.
func (s *BookingService) ConfirmReservation(ctx context.Context, in Confirmation) (ConfirmResult, error) {
	slot, ok := ParseSlot(in.ExternalReference, s.cfg.Location)
	if !ok {
		return ConfirmResult{}, invalidInput("invalid external reference %q", in.ExternalReference)
	}
	if token := strings.TrimSpace(in.Token); token != "" {
		return s.confirmHold(ctx, slot, token, in.Status)
	}
	if s.gateway != nil {
		return ConfirmResult{}, paymentRejected("the callback does not reference a pending reservation")
	}
	if normalizeStatus(in.Status) != PaymentApproved {
		return ConfirmResult{}, paymentRejected("the payment was not approved")
	}
	if res, done, err := s.alreadyConfirmed(ctx, slot); err != nil || done {
		return res, err
	}

	// No hold to flip: record the confirmed reservation from the callback.
	if _, err := s.validateSlot(in.ExternalReference); err != nil {
		return ConfirmResult{}, err
	}
	name := strings.TrimSpace(in.ClientName)
	service := strings.TrimSpace(in.ServiceType)
	if name == "" || service == "" {
		return ConfirmResult{}, invalidInput("clientName and serviceType are required")
	}
	res := model.Reservation{
		SlotAt:      slot,
		ClientName:  name,
		ServiceType: service,
		ClientEmail: optional(in.ClientEmail),
		Status:      model.StatusConfirmed,
	}
	inserted, err := s.store.InsertIfAbsent(ctx, &res)
	if err != nil {
		return ConfirmResult{}, unavailable("failed to store the reservation", err)
	}
	if !inserted {
		if res, done, err := s.alreadyConfirmed(ctx, slot); err != nil || done {
			return res, err
		}
		return ConfirmResult{}, conflict("the slot %s is already booked", slot.Format(model.SlotLayout))
	}
	out := s.localize(res)
	s.notify(ctx, out)
	return ConfirmResult{Reservation: out}, nil
}

func (s *BookingService) confirmHold(ctx context.Context, slot time.Time, token, raw string) (ConfirmResult, error) {
	cur, err := s.findHold(ctx, slot, token)
	if err != nil {
		return ConfirmResult{}, err
	}
	if cur.Status == model.StatusConfirmed {
		return ConfirmResult{Reservation: s.localize(*cur), AlreadyConfirmed: true}, nil
	}
	status, err := s.paymentStatus(ctx, cur, raw)
	if err != nil {
		return ConfirmResult{}, err
	}
	if status != PaymentApproved {
		if status == PaymentRejected {
			s.release(ctx, slot, token, "rejected payment")
		}
		return ConfirmResult{}, paymentRejected("the payment was not approved")
	}

	flipped, err := s.store.ResolveHold(ctx, slot, token, model.StatusConfirmed)
	if err != nil {
		return ConfirmResult{}, unavailable("failed to confirm the reservation", err)
	}
	// Reload either way: a concurrent duplicate may have won the flip.
	cur, err = s.findHold(ctx, slot, token)
	if err != nil {
		return ConfirmResult{}, err
	}
	if cur.Status != model.StatusConfirmed {
		return ConfirmResult{}, conflict("the reservation at %s could not be confirmed", slot.Format(model.SlotLayout))
	}
	out := s.localize(*cur)
	if !flipped {
		return ConfirmResult{Reservation: out, AlreadyConfirmed: true}, nil
	}
	s.notify(ctx, out)
	return ConfirmResult{Reservation: out}, nil
}

// CancelReservation releases the pending hold behind a failed or abandoned
// payment.  token must be the one issued with the hold.  It reports whether
// a hold was cancelled; cancelling twice is a no-op.
func (s *BookingService) CancelReservation(ctx context.Context, externalReference, token string) (bool, error) {
	slot, ok := ParseSlot(externalReference, s.cfg.Location)
	if !ok {
		return false, invalidInput("invalid external reference %q", externalReference)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return false, invalidInput("a hold token is required")
	}
	cancelled, err := s.store.ResolveHold(ctx, slot, token, model.StatusCancelled)
	if err != nil {
		return false, unavailable("failed to cancel the reservation", err)
	}
	return cancelled, nil
}

// PurgeExpired deletes every reservation, whatever its status, whose slot is
// older than now minus retention.  Reservations at or after the cutoff, and
// therefore all future ones, are kept.
func (s *BookingService) PurgeExpired(ctx context.Context, now time.Time, retention time.Duration) (int64, error) {
	if retention < 0 {
		retention = 0
	}
	n, err := s.store.DeleteBefore(ctx, now.Add(-retention))
	if err != nil {
		return 0, unavailable("failed to purge reservations", err)
	}
	return n, nil
}

// ExpireHolds cancels pending reservations created more than ttl ago.  A
// non-positive ttl disables expiry.
func (s *BookingService) ExpireHolds(ctx context.Context, now time.Time, ttl time.Duration) (int64, error) {
	if ttl <= 0 {
		return 0, nil
	}
	n, err := s.store.CancelPendingBefore(ctx, now.Add(-ttl))
	if err != nil {
		return 0, unavailable("failed to expire pending holds", err)
	}
	return n, nil
}

// ListReservations returns every stored reservation ordered by slot.
func (s *BookingService) ListReservations(ctx context.Context) ([]model.Reservation, error) {
	rs, err := s.store.List(ctx)
	if err != nil {
		return nil, unavailable("failed to list reservations", err)
	}
	for i := range rs {
		rs[i] = s.localize(rs[i])
	}
	return rs, nil
}

func (s *BookingService) validateSlot(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, invalidInput("dateTime is required")
	}
	slot, ok := ParseSlot(raw, s.cfg.Location)
	if !ok {
		return time.Time{}, invalidInput("invalid dateTime %q, expected YYYY-MM-DDTHH:MM", raw)
	}
	if !slot.After(s.now()) {
		return time.Time{}, invalidInput("the slot %s is in the past", slot.Format(model.SlotLayout))
	}
	wd := slot.Weekday()
	if s.template.IsClosed(wd) {
		return time.Time{}, policyViolation("no bookings are accepted on %s", weekdayName(wd))
	}
	if !s.template.Offers(wd, slot.Format("15:04")) {
		return time.Time{}, invalidInput("%s is not offered on %s", slot.Format("15:04"), weekdayName(wd))
	}
	return slot, nil
}

// paymentStatus resolves the callback status, asking the gateway when it can
// verify the charge behind the hold.
func (s *BookingService) paymentStatus(ctx context.Context, hold *model.Reservation, raw string) (PaymentStatus, error) {
	v, ok := s.gateway.(PaymentVerifier)
	if !ok || hold.PaymentRef == nil {
		return normalizeStatus(raw), nil
	}
	verified, err := v.PaymentStatus(ctx, *hold.PaymentRef)
	if err != nil {
		return "", unavailable("failed to verify the payment", err)
	}
	return verified, nil
}

// findHold loads the active reservation at slot and checks it was issued
// with token.
func (s *BookingService) findHold(ctx context.Context, slot time.Time, token string) (*model.Reservation, error) {
	cur, err := s.store.FindActiveBySlot(ctx, slot)
	switch {
	case errors.Is(err, repository.ErrNotFound):
	case err != nil:
		return nil, unavailable("failed to load the reservation", err)
	case cur.HoldToken != nil && subtle.ConstantTimeCompare([]byte(*cur.HoldToken), []byte(token)) == 1:
		return cur, nil
	}
	return nil, conflict("no active reservation at %s matches this payment", slot.Format(model.SlotLayout))
}

func (s *BookingService) release(ctx context.Context, slot time.Time, token, why string) {
	if _, err := s.store.ResolveHold(ctx, slot, token, model.StatusCancelled); err != nil {
		log.Printf("booking: release hold %s after %s: %v", slot.Format(model.SlotLayout), why, err)
	}
}

func (s *BookingService) alreadyConfirmed(ctx context.Context, slot time.Time) (ConfirmResult, bool, error) {
	cur, err := s.store.FindActiveBySlot(ctx, slot)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ConfirmResult{}, false, nil
	case err != nil:
		return ConfirmResult{}, true, unavailable("failed to load the reservation", err)
	case cur.Status == model.StatusConfirmed:
		return ConfirmResult{Reservation: s.localize(*cur), AlreadyConfirmed: true}, true, nil
	default:
		return ConfirmResult{}, true, conflict("the slot %s is held by another pending reservation", slot.Format(model.SlotLayout))
	}
}

func (s *BookingService) notify(ctx context.Context, res model.Reservation) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, res); err != nil {
		log.Printf("booking: notify confirmation of %s failed: %v", res.Reference(), err)
	}
}

func (s *BookingService) localize(res model.Reservation) model.Reservation {
	res.SlotAt = res.SlotAt.In(s.cfg.Location)
	return res
}

func (s *BookingService) returnURLs(ref, token, name, service, email string) ReturnURLs {
	hold := url.Values{}
	hold.Set("externalReference", ref)
	hold.Set("token", token)
	q := url.Values{}
	q.Set("externalReference", ref)
	q.Set("token", token)
	q.Set("clientName", name)
	q.Set("serviceType", service)
	if e := strings.TrimSpace(email); e != "" {
		q.Set("clientEmail", e)
	}
	return ReturnURLs{
		Success: s.cfg.BackendURL + "/turnos/confirmar?" + q.Encode(),
		Failure: s.cfg.BackendURL + "/turnos/error?" + hold.Encode(),
		Pending: s.cfg.BackendURL + "/turnos/pendiente?" + hold.Encode(),
	}
}

// maxDepositCents bounds deposits to integers a float64 represents exactly,
// well below the int64 range.
const maxDepositCents = 1 << 53

// parseDeposit converts the client-supplied amount to minor units.
func parseDeposit(raw *string) (*int64, error) {
	if raw == nil {
		return nil, nil
	}
	s := strings.TrimSpace(*raw)
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, invalidInput("depositAmount must be a valid number")
	}
	if f < 0 {
		return nil, invalidInput("depositAmount must not be negative")
	}
	c := math.Round(f * 100)
	if c > maxDepositCents {
		return nil, invalidInput("depositAmount %s is too large", s)
	}
	cents := int64(c)
	return &cents, nil
}

func normalizeStatus(raw string) PaymentStatus {
	return PaymentStatus(strings.ToLower(strings.TrimSpace(raw)))
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
