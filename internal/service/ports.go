package service

import (
	"context"
	"time"

	"github.com/iliyamo/turnos-booking/internal/model"
)

// ReservationStore is the persistence contract of the booking core.  Every
// mutation must be atomic at the store: InsertIfAbsent is a conditional
// insert guarded by the uniqueness of active slots, ResolveHold a conditional
// update of the pending hold carrying token, DeleteBefore a
// delete-by-predicate.
type ReservationStore interface {
	FindActiveBySlot(ctx context.Context, slot time.Time) (*model.Reservation, error)
	InsertIfAbsent(ctx context.Context, res *model.Reservation) (bool, error)
	ResolveHold(ctx context.Context, slot time.Time, token string, to model.Status) (bool, error)
	SetPaymentRef(ctx context.Context, slot time.Time, token, ref string) error
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
	CancelPendingBefore(ctx context.Context, createdBefore time.Time) (int64, error)
	ListActiveByDate(ctx context.Context, from, to time.Time) ([]model.Reservation, error)
	List(ctx context.Context) ([]model.Reservation, error)
}

// PaymentStatus is the normalised outcome reported by a payment gateway.
type PaymentStatus string

const (
	PaymentApproved PaymentStatus = "approved"
	PaymentRejected PaymentStatus = "rejected"
	PaymentPending  PaymentStatus = "pending"
)

// ReturnURLs are the pages the gateway sends the payer back to.
type ReturnURLs struct {
	Success string
	Failure string
	Pending string
}

// PaymentIntent describes a deposit to collect.
type PaymentIntent struct {
	AmountCents       int64
	Currency          string
	Description       string
	ExternalReference string
	PayerName         string
	ReturnURLs        ReturnURLs
}

// PaymentHandle is what the gateway returns for a started payment.
type PaymentHandle struct {
	PaymentRef  string
	RedirectURL string
}

// PaymentGateway starts deposit payments.  The outcome arrives later through
// the confirmation callback.
type PaymentGateway interface {
	CreatePaymentIntent(ctx context.Context, in PaymentIntent) (PaymentHandle, error)
}

// PaymentVerifier is implemented by gateways able to report the status of a
// payment they issued.  When available, the verified status takes precedence
// over the status carried by the callback.
type PaymentVerifier interface {
	PaymentStatus(ctx context.Context, paymentRef string) (PaymentStatus, error)
}

// Notifier delivers the confirmation of a reservation.
type Notifier interface {
	Notify(ctx context.Context, res model.Reservation) error
}
