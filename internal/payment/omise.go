// Package payment adapts payment providers to the booking core.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/omise/omise-go"
	"github.com/omise/omise-go/operations"

	"github.com/iliyamo/turnos-booking/internal/service"
)

// OmiseConfig holds the credentials and defaults of the Omise gateway.
type OmiseConfig struct {
	PublicKey  string
	SecretKey  string
	SourceType string // redirect payment method, e.g. mobile_banking_kbank
}

// OmiseGateway collects reservation deposits through Omise charges.  A
// charge is created against a redirect source; the payer is sent to the
// charge's authorize URI and comes back to the confirmation callback.
type OmiseGateway struct {
	client     *omise.Client
	sourceType string
}

// NewOmiseGateway builds the Omise client.  Both keys are required.
func NewOmiseGateway(cfg OmiseConfig) (*OmiseGateway, error) {
	if cfg.PublicKey == "" || cfg.SecretKey == "" {
		return nil, errors.New("omise: public and secret keys are required")
	}
	c, err := omise.NewClient(cfg.PublicKey, cfg.SecretKey)
	if err != nil {
		return nil, err
	}
	c.SetDebug(false)
	st := cfg.SourceType
	if st == "" {
		st = "promptpay"
	}
	return &OmiseGateway{client: c, sourceType: st}, nil
}

// CreatePaymentIntent creates the source and the charge of a deposit.
func (g *OmiseGateway) CreatePaymentIntent(ctx context.Context, in service.PaymentIntent) (service.PaymentHandle, error) {
	if in.AmountCents <= 0 || in.Currency == "" {
		return service.PaymentHandle{}, errors.New("omise: amount and currency are required")
	}
	if err := ctx.Err(); err != nil {
		return service.PaymentHandle{}, err
	}

	src := &omise.Source{}
	if err := g.client.Do(src, &operations.CreateSource{
		Type:     g.sourceType,
		Amount:   in.AmountCents,
		Currency: in.Currency,
	}); err != nil {
		return service.PaymentHandle{}, fmt.Errorf("omise: create source: %w", err)
	}

	ch := &omise.Charge{}
	if err := g.client.Do(ch, &operations.CreateCharge{
		Amount:      in.AmountCents,
		Currency:    in.Currency,
		Source:      src.ID,
		ReturnURI:   in.ReturnURLs.Success,
		Description: in.Description,
		Metadata: map[string]interface{}{
			"external_reference": in.ExternalReference,
			"payer_name":         in.PayerName,
		},
	}); err != nil {
		return service.PaymentHandle{}, fmt.Errorf("omise: create charge: %w", err)
	}
	log.Printf("omise: charge %s for %s is %s", ch.ID, in.ExternalReference, ch.Status)

	if s := MapChargeStatus(string(ch.Status)); s == service.PaymentRejected {
		return service.PaymentHandle{}, fmt.Errorf("omise: charge %s failed immediately", ch.ID)
	}
	return service.PaymentHandle{PaymentRef: ch.ID, RedirectURL: ch.AuthorizeURI}, nil
}

// PaymentStatus retrieves the charge and maps its status.
func (g *OmiseGateway) PaymentStatus(ctx context.Context, chargeID string) (service.PaymentStatus, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ch := &omise.Charge{}
	if err := g.client.Do(ch, &operations.RetrieveCharge{ChargeID: chargeID}); err != nil {
		return "", fmt.Errorf("omise: retrieve charge %s: %w", chargeID, err)
	}
	return MapChargeStatus(string(ch.Status)), nil
}

// MapChargeStatus maps an Omise charge status to the booking outcome.
func MapChargeStatus(status string) service.PaymentStatus {
	switch strings.ToLower(status) {
	case "successful":
		return service.PaymentApproved
	case "failed", "expired", "reversed":
		return service.PaymentRejected
	default:
		return service.PaymentPending
	}
}
