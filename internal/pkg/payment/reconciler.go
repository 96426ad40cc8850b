package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"github.com/rifei/backend/app/models"
	"github.com/rifei/backend/internal/pkg/inventory"
	"github.com/rifei/backend/internal/pkg/notify"
	"gorm.io/gorm"
)

var (
	// ErrUnauthenticatedWebhook means the signature check failed. The
	// delivery is dropped without touching any state.
	ErrUnauthenticatedWebhook = errors.New("webhook signature verification failed")
	// ErrAmountMismatch means the gateway charged a different amount than
	// the intent records. The intent stays pending for manual review.
	ErrAmountMismatch = errors.New("gateway amount does not match intent amount")
)

// Finalizer is the slice of the inventory service the reconciler needs.
type Finalizer interface {
	Finalize(intentID string, outcome inventory.Outcome) (*inventory.FinalizeResult, error)
}

// WebhookDelivery is one raw webhook request as received on the wire.
type WebhookDelivery struct {
	Body            []byte
	SignatureHeader string
	RequestID       string
}

// ReconcileResult reports what processing one delivery did.
type ReconcileResult struct {
	Ignored   bool
	Duplicate bool
	IntentID  string
	Class     StatusClass
	Applied   bool
}

// Reconciler turns webhook deliveries into payment state. It never trusts
// the delivery body for payment state: the body only names a charge id,
// the authoritative status is always fetched live from the gateway.
type Reconciler struct {
	repo          Repository
	gateway       Gateway
	finalizer     Finalizer
	notifier      notify.Notifier
	webhookSecret string
}

// NewReconciler creates a webhook reconciler. An empty webhookSecret
// disables signature verification, matching unconfigured environments.
func NewReconciler(repo Repository, gateway Gateway, finalizer Finalizer, notifier notify.Notifier, webhookSecret string) *Reconciler {
	return &Reconciler{
		repo:          repo,
		gateway:       gateway,
		finalizer:     finalizer,
		notifier:      notifier,
		webhookSecret: webhookSecret,
	}
}

type webhookPayload struct {
	ID     json.Number `json:"id"`
	Action string      `json:"action"`
	Type   string      `json:"type"`
	Data   struct {
		ID json.Number `json:"id"`
	} `json:"data"`
}

// Process runs one delivery through the full reconciliation path:
// authenticate, deduplicate, fetch the live charge, resolve the intent,
// check the amount, then apply the classified outcome exactly once.
func (r *Reconciler) Process(ctx context.Context, delivery WebhookDelivery) (*ReconcileResult, error) {
	signatureValid := false
	if r.webhookSecret != "" && delivery.SignatureHeader != "" {
		if !VerifyWebhookSignature(delivery.SignatureHeader, delivery.RequestID, r.webhookSecret) {
			return nil, ErrUnauthenticatedWebhook
		}
		signatureValid = true
	}

	var payload webhookPayload
	if err := json.Unmarshal(delivery.Body, &payload); err != nil {
		return nil, fmt.Errorf("malformed webhook body: %w", err)
	}
	if payload.Type != "payment" {
		log.Debugf("[Webhook] Ignoring %s notification", payload.Type)
		return &ReconcileResult{Ignored: true}, nil
	}
	paymentID := payload.Data.ID.String()
	if paymentID == "" || paymentID == "0" {
		return nil, errors.New("webhook payload missing payment id")
	}

	event := &models.WebhookEvent{
		Provider:        WebhookProvider,
		ProviderEventID: eventID(payload, paymentID),
		EventType:       payload.Type,
		PayloadJSON:     string(delivery.Body),
		SignatureValid:  signatureValid,
	}
	created, stored, err := r.repo.CreateWebhookEventIfNotExists(event)
	if err != nil {
		return nil, err
	}
	if !created && stored.ProcessedAt != nil {
		log.Infof("[Webhook] Duplicate delivery %s, already processed", stored.ProviderEventID)
		return &ReconcileResult{Duplicate: true}, nil
	}

	result, err := r.reconcile(ctx, paymentID)
	if err != nil {
		if markErr := r.repo.MarkWebhookProcessed(stored.ID, err.Error()); markErr != nil {
			log.Errorf("[Webhook] Failed to mark event %d failed: %v", stored.ID, markErr)
		}
		return nil, err
	}
	if err := r.repo.MarkWebhookProcessed(stored.ID, ""); err != nil {
		log.Errorf("[Webhook] Failed to mark event %d processed: %v", stored.ID, err)
	}
	return result, nil
}

// reconcile applies the live gateway state of one charge to its intent.
// The expiry sweep reuses this path for intents that already carry a
// charge id, so both entry points share identical semantics.
func (r *Reconciler) reconcile(ctx context.Context, paymentID string) (*ReconcileResult, error) {
	info, err := r.gateway.GetPayment(ctx, paymentID)
	if err != nil {
		if errors.Is(err, ErrPaymentNotFound) {
			// The gateway does not know this charge. Nothing to apply and
			// nothing a retry would change.
			log.Warnf("[Webhook] Payment %s not found at gateway, acknowledging", paymentID)
			return &ReconcileResult{Ignored: true}, nil
		}
		return nil, err
	}

	intentID := strings.TrimSpace(info.ExternalReference)
	if intentID == "" {
		log.Warnf("[Webhook] Payment %s carries no external reference, acknowledging", paymentID)
		return &ReconcileResult{Ignored: true}, nil
	}

	intent, err := r.repo.GetIntent(intentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// A charge referencing an intent we never created. Log the
			// anomaly and acknowledge so the gateway stops retrying.
			log.Errorf("[Webhook] Payment %s references unknown intent %s", paymentID, intentID)
			return &ReconcileResult{Ignored: true}, nil
		}
		return nil, err
	}

	if info.TransactionCents != intent.AmountCents {
		log.Errorf("[Webhook] Amount mismatch on intent %s: charged %d, expected %d", intent.ID, info.TransactionCents, intent.AmountCents)
		return nil, fmt.Errorf("%w: charged %d, expected %d", ErrAmountMismatch, info.TransactionCents, intent.AmountCents)
	}

	if err := r.repo.MirrorGatewayStatus(intent.ID, info); err != nil {
		return nil, err
	}

	result := &ReconcileResult{IntentID: intent.ID, Class: ClassifyStatus(info.Status)}
	switch result.Class {
	case StatusApproved:
		final, err := r.finalizer.Finalize(intent.ID, inventory.OutcomeSold)
		if err != nil {
			return nil, err
		}
		result.Applied = final.Applied
		if final.Applied {
			r.notifyApproved(final)
		}
	case StatusRejected:
		final, err := r.finalizer.Finalize(intent.ID, inventory.OutcomeReleased)
		if err != nil {
			return nil, err
		}
		result.Applied = final.Applied
		if final.Applied {
			r.notifier.Notify(final.Intent.UserID, models.NotificationKindPaymentRejected,
				"❌ Pagamento não aprovado",
				"Seu pagamento não foi aprovado. Os números foram liberados.",
				final.Intent.RaffleID)
		}
	default:
		log.Infof("[Webhook] Payment %s still %s for intent %s", paymentID, info.Status, intent.ID)
	}
	return result, nil
}

// ReconcileIntent runs the shared apply path for an intent that already
// has a gateway charge, used by the expiry sweep before releasing numbers.
func (r *Reconciler) ReconcileIntent(ctx context.Context, intent *models.PaymentIntent) (*ReconcileResult, error) {
	paymentID := intent.GatewayPaymentID()
	if paymentID == "" {
		return &ReconcileResult{Ignored: true}, nil
	}
	return r.reconcile(ctx, paymentID)
}

func (r *Reconciler) notifyApproved(final *inventory.FinalizeResult) {
	count := len(final.Numbers)
	r.notifier.Notify(final.Intent.UserID, models.NotificationKindPurchaseConfirmed,
		"✅ Compra confirmada!",
		fmt.Sprintf("Seus %d números foram confirmados. Boa sorte!", count),
		final.Intent.RaffleID)

	raffle, err := r.repo.GetRaffle(final.Intent.RaffleID)
	if err != nil {
		log.Errorf("[Webhook] Failed to load raffle %d for sale notification: %v", final.Intent.RaffleID, err)
		return
	}
	r.notifier.Notify(raffle.CreatorID, models.NotificationKindSaleOccurred,
		"💰 Nova venda!",
		fmt.Sprintf("%d números vendidos na rifa \"%s\"", count, raffle.Title),
		raffle.ID)
}

func eventID(payload webhookPayload, paymentID string) string {
	if id := payload.ID.String(); id != "" && id != "0" {
		return id
	}
	return fmt.Sprintf("payment:%s:%s", paymentID, payload.Action)
}
