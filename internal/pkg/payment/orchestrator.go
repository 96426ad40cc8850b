package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/rifei/backend/app/models"
	"gorm.io/gorm"
)

var (
	// ErrIntentNotPending is returned when a charge is requested for an
	// intent that already reached a terminal state.
	ErrIntentNotPending = errors.New("payment intent is not pending")
	// ErrHoldExpired is returned when a charge is requested after the
	// number hold already lapsed.
	ErrHoldExpired = errors.New("number hold has expired")
	// ErrUnsupportedMethod rejects charge methods outside pix/checkout.
	ErrUnsupportedMethod = errors.New("unsupported payment method")
)

// ChargeResult is what the checkout endpoint returns to the client:
// either PIX QR data or a hosted checkout redirect, never both.
type ChargeResult struct {
	IntentID    string            `json:"intent_id"`
	Method      string            `json:"method"`
	AmountCents int64             `json:"amount_cents"`
	ExpiresAt   time.Time         `json:"expires_at"`
	Pix         *PixCharge        `json:"pix,omitempty"`
	Checkout    *PreferenceCharge `json:"checkout,omitempty"`
}

// Orchestrator creates gateway charges for pending intents and looks up
// their live status. It never transitions internal payment state itself.
type Orchestrator struct {
	repo    Repository
	gateway Gateway
}

// NewOrchestrator creates a payment orchestrator.
func NewOrchestrator(repo Repository, gateway Gateway) *Orchestrator {
	return &Orchestrator{repo: repo, gateway: gateway}
}

// NewOrchestratorFromDB wires the orchestrator against a GORM handle.
func NewOrchestratorFromDB(db *gorm.DB, gateway Gateway) *Orchestrator {
	return NewOrchestrator(NewRepository(db), gateway)
}

// CreateCharge creates the gateway charge for a pending intent. The
// external reference on the charge is the intent id, which is how the
// webhook reconciler later finds its way back. Calling it again with the
// same method returns the already attached charge instead of creating a
// duplicate.
func (o *Orchestrator) CreateCharge(ctx context.Context, intentID, method string) (*ChargeResult, error) {
	intent, err := o.repo.GetIntent(intentID)
	if err != nil {
		return nil, err
	}
	if intent.IsTerminal() {
		return nil, ErrIntentNotPending
	}
	if time.Now().After(intent.ExpiresAt) {
		return nil, ErrHoldExpired
	}

	result := &ChargeResult{
		IntentID:    intent.ID,
		Method:      method,
		AmountCents: intent.AmountCents,
		ExpiresAt:   intent.ExpiresAt,
	}

	// Idempotent replay: hand back the charge we already created.
	switch method {
	case models.PaymentMethodPix:
		if intent.Method == models.PaymentMethodPix && intent.GatewayPaymentID() != "" {
			result.Pix = &PixCharge{
				PaymentID:    intent.GatewayPaymentID(),
				QRCode:       intent.PixQRCode,
				QRCodeBase64: intent.PixQRCodeBase64,
			}
			return result, nil
		}
	case models.PaymentMethodCheckout:
		if intent.Method == models.PaymentMethodCheckout && intent.MPPreferenceID != "" {
			result.Checkout = &PreferenceCharge{
				PreferenceID: intent.MPPreferenceID,
				InitPoint:    intent.CheckoutURL,
			}
			return result, nil
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, method)
	}

	user, err := o.repo.GetUser(intent.UserID)
	if err != nil {
		return nil, err
	}
	raffle, err := o.repo.GetRaffle(intent.RaffleID)
	if err != nil {
		return nil, err
	}

	req := ChargeRequest{
		IntentID:       intent.ID,
		Description:    fmt.Sprintf("%s - %d número(s)", raffle.Title, len(intent.Numbers())),
		AmountCents:    intent.AmountCents,
		PayerEmail:     user.Email,
		PayerFirstName: user.FirstName(),
		ExpiresAt:      intent.ExpiresAt,
	}

	switch method {
	case models.PaymentMethodPix:
		pix, err := o.gateway.CreatePixPayment(ctx, req)
		if err != nil {
			return nil, err
		}
		if err := o.repo.AttachPixCharge(intent.ID, pix); err != nil {
			return nil, err
		}
		log.Infof("[Payment] Created pix charge %s for intent %s", pix.PaymentID, intent.ID)
		result.Pix = pix
	case models.PaymentMethodCheckout:
		pref, err := o.gateway.CreatePreference(ctx, req)
		if err != nil {
			return nil, err
		}
		if err := o.repo.AttachPreferenceCharge(intent.ID, pref); err != nil {
			return nil, err
		}
		log.Infof("[Payment] Created checkout preference %s for intent %s", pref.PreferenceID, intent.ID)
		result.Checkout = pref
	}
	return result, nil
}

// LookupStatus fetches the live gateway state for an intent's charge and
// mirrors the raw status fields onto the intent row.
func (o *Orchestrator) LookupStatus(ctx context.Context, intentID string) (*PaymentInfo, StatusClass, error) {
	intent, err := o.repo.GetIntent(intentID)
	if err != nil {
		return nil, "", err
	}
	paymentID := intent.GatewayPaymentID()
	if paymentID == "" {
		return nil, StatusPending, nil
	}

	info, err := o.gateway.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, "", err
	}
	if err := o.repo.MirrorGatewayStatus(intent.ID, info); err != nil {
		return nil, "", err
	}
	return info, ClassifyStatus(info.Status), nil
}
