// Package queue moves reservation confirmation events through RabbitMQ.
package queue

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/turnos-booking/internal/model"
)

// ConfirmedQueue is the durable queue carrying ReservationConfirmedEvent.
const ConfirmedQueue = "reservation.confirmed"

// ReservationConfirmedEvent is published when a reservation is confirmed.
// It carries everything the consumer needs to notify the client without
// querying the database.
type ReservationConfirmedEvent struct {
	EventID           string `json:"event_id"`
	ReservationID     uint64 `json:"reservation_id"`
	ExternalReference string `json:"external_reference"`
	SlotAt            string `json:"slot_at"`
	ClientName        string `json:"client_name"`
	ServiceType       string `json:"service_type"`
	ClientEmail       string `json:"client_email,omitempty"`
	DepositCents      int64  `json:"deposit_cents,omitempty"`
	ConfirmedAt       string `json:"confirmed_at"`
}

// NewReservationConfirmedEvent builds the event for res.  SlotAt keeps the
// offset of res.SlotAt so consumers render the same wall-clock time.
func NewReservationConfirmedEvent(res model.Reservation, now time.Time) ReservationConfirmedEvent {
	ev := ReservationConfirmedEvent{
		EventID:           uuid.NewString(),
		ReservationID:     res.ID,
		ExternalReference: res.Reference(),
		SlotAt:            res.SlotAt.Format(time.RFC3339),
		ClientName:        res.ClientName,
		ServiceType:       res.ServiceType,
		ClientEmail:       res.Email(),
		ConfirmedAt:       now.UTC().Format(time.RFC3339),
	}
	if res.DepositCents != nil {
		ev.DepositCents = *res.DepositCents
	}
	return ev
}

// Reservation rebuilds the confirmed reservation described by the event.
func (e ReservationConfirmedEvent) Reservation() (model.Reservation, error) {
	slot, err := time.Parse(time.RFC3339, e.SlotAt)
	if err != nil {
		return model.Reservation{}, fmt.Errorf("slot_at: %w", err)
	}
	res := model.Reservation{
		ID:          e.ReservationID,
		SlotAt:      slot,
		ClientName:  e.ClientName,
		ServiceType: e.ServiceType,
		Status:      model.StatusConfirmed,
	}
	if e.ClientEmail != "" {
		email := e.ClientEmail
		res.ClientEmail = &email
	}
	if e.DepositCents != 0 {
		d := e.DepositCents
		res.DepositCents = &d
	}
	return res, nil
}
