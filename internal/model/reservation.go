package model

import "time"

// Status is the lifecycle state of a reservation.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// Active reports whether a reservation in this state still occupies its
// slot.  Only pending and confirmed reservations block the slot; cancelled
// rows are kept until the sweeper purges them.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

// SlotLayout is the canonical text form of a reservation date-time.  It is
// also used as the external reference handed to the payment gateway.
const SlotLayout = "2006-01-02T15:04"

// Reservation records one client's claim on a single date-time slot.
//
// Fields:
//
//	ID           – primary key identifier.
//	SlotAt       – booked date-time, truncated to the minute; identity key
//	               among active reservations.
//	ClientName   – name supplied by the client.
//	ServiceType  – requested service (e.g. haircut).
//	ClientEmail  – optional address for the confirmation email.
//	Status       – pending, confirmed or cancelled.
//	DepositCents – optional deposit in currency minor units.
//	PaymentRef   – gateway charge identifier, if a payment was started.
//	HoldToken    – secret issued with a pending hold; payment callbacks must
//	               present it to confirm or release the hold.
//	CreatedAt    – creation timestamp.
//	UpdatedAt    – last update timestamp.
type Reservation struct {
	ID           uint64    `json:"id"`
	SlotAt       time.Time `json:"dateTime"`
	ClientName   string    `json:"clientName"`
	ServiceType  string    `json:"serviceType"`
	ClientEmail  *string   `json:"clientEmail,omitempty"`
	Status       Status    `json:"status"`
	DepositCents *int64    `json:"depositAmount,omitempty"`
	PaymentRef   *string   `json:"paymentRef,omitempty"`
	HoldToken    *string   `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Reference returns the external reference of the reservation, which is
// its slot in SlotLayout form.
func (r Reservation) Reference() string {
	return r.SlotAt.Format(SlotLayout)
}

// TimeOfDay returns the HH:MM part of the slot.
func (r Reservation) TimeOfDay() string {
	return r.SlotAt.Format("15:04")
}

// Email returns the client email or "" when none was given.
func (r Reservation) Email() string {
	if r.ClientEmail == nil {
		return ""
	}
	return *r.ClientEmail
}
