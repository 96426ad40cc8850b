package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/rifei/backend/internal/pkg/env"
)

const defaultMercadoPagoAPIBaseURL = "https://api.mercadopago.com"

// WebhookProvider tags stored webhook events from this gateway.
const WebhookProvider = "mercadopago"

var (
	// ErrGatewayUnavailable wraps transport failures talking to the gateway.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	// ErrPaymentNotFound is returned when the gateway does not know the
	// charge id we asked about.
	ErrPaymentNotFound = errors.New("payment not found at gateway")
)

// ChargeRequest carries everything a gateway charge needs, snapshotted
// from the intent so a later price change cannot leak into the charge.
type ChargeRequest struct {
	IntentID       string
	Description    string
	AmountCents    int64
	PayerEmail     string
	PayerFirstName string
	ExpiresAt      time.Time
}

// PixCharge is the result of a direct PIX payment: the buyer pays by
// scanning the QR code or pasting the copy-paste code.
type PixCharge struct {
	PaymentID    string `json:"payment_id"`
	QRCode       string `json:"qr_code"`
	QRCodeBase64 string `json:"qr_code_base64"`
	TicketURL    string `json:"ticket_url,omitempty"`
}

// PreferenceCharge is the result of a checkout preference: the buyer is
// redirected to the gateway's hosted checkout page.
type PreferenceCharge struct {
	PreferenceID     string `json:"preference_id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point,omitempty"`
}

// PaymentInfo is the gateway's view of one charge, fetched live during
// webhook reconciliation. ExternalReference echoes our intent id back.
type PaymentInfo struct {
	ID                string
	Status            string
	StatusDetail      string
	PaymentMethodID   string
	PaymentTypeID     string
	TransactionCents  int64
	ExternalReference string
	PayerEmail        string
}

// Gateway is the payment provider surface the orchestrator and reconciler
// depend on. Tests swap in a fake.
type Gateway interface {
	CreatePixPayment(ctx context.Context, req ChargeRequest) (*PixCharge, error)
	CreatePreference(ctx context.Context, req ChargeRequest) (*PreferenceCharge, error)
	GetPayment(ctx context.Context, paymentID string) (*PaymentInfo, error)
}

type MercadoPagoClient struct {
	AccessToken     string
	APIBaseURL      string
	NotificationURL string
	BackURLBase     string

	HTTPClient *http.Client
}

func NewMercadoPagoClientFromEnv() *MercadoPagoClient {
	base := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/")
	notificationURL := strings.TrimSpace(env.GetEnv("MP_NOTIFICATION_URL", ""))
	if notificationURL == "" && base != "" {
		notificationURL = base + "/webhooks/mercadopago"
	}

	return &MercadoPagoClient{
		AccessToken:     strings.TrimSpace(env.GetEnv("MP_ACCESS_TOKEN", "")),
		APIBaseURL:      strings.TrimSpace(env.GetEnv("MP_API_BASE_URL", defaultMercadoPagoAPIBaseURL)),
		NotificationURL: notificationURL,
		BackURLBase:     base,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// CreatePixPayment creates a direct PIX charge. The QR code data comes
// back immediately; settlement arrives later via webhook.
func (c *MercadoPagoClient) CreatePixPayment(ctx context.Context, req ChargeRequest) (*PixCharge, error) {
	payload := map[string]interface{}{
		"transaction_amount": centsToAmount(req.AmountCents),
		"description":        req.Description,
		"payment_method_id":  "pix",
		"payer": map[string]interface{}{
			"email":      req.PayerEmail,
			"first_name": req.PayerFirstName,
		},
		"external_reference": req.IntentID,
		"notification_url":   c.NotificationURL,
		"date_of_expiration": req.ExpiresAt.UTC().Format("2006-01-02T15:04:05.000-07:00"),
	}

	body, err := c.post(ctx, "/v1/payments", req.IntentID, payload)
	if err != nil {
		return nil, err
	}

	var raw struct {
		ID                 json.Number `json:"id"`
		Status             string      `json:"status"`
		PointOfInteraction struct {
			TransactionData struct {
				QRCode       string `json:"qr_code"`
				QRCodeBase64 string `json:"qr_code_base64"`
				TicketURL    string `json:"ticket_url"`
			} `json:"transaction_data"`
		} `json:"point_of_interaction"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	if raw.ID.String() == "" || raw.ID.String() == "0" {
		return nil, errors.New("mercadopago pix response missing payment id")
	}

	return &PixCharge{
		PaymentID:    raw.ID.String(),
		QRCode:       raw.PointOfInteraction.TransactionData.QRCode,
		QRCodeBase64: raw.PointOfInteraction.TransactionData.QRCodeBase64,
		TicketURL:    raw.PointOfInteraction.TransactionData.TicketURL,
	}, nil
}

// CreatePreference creates a hosted checkout preference the buyer is
// redirected to. The preference expires together with the number hold.
func (c *MercadoPagoClient) CreatePreference(ctx context.Context, req ChargeRequest) (*PreferenceCharge, error) {
	payload := map[string]interface{}{
		"items": []map[string]interface{}{
			{
				"title":       req.Description,
				"quantity":    1,
				"unit_price":  centsToAmount(req.AmountCents),
				"currency_id": "BRL",
			},
		},
		"payer": map[string]interface{}{
			"name":  req.PayerFirstName,
			"email": req.PayerEmail,
		},
		"back_urls": map[string]interface{}{
			"success": c.BackURLBase + "/payment/success?payment_id=" + req.IntentID,
			"failure": c.BackURLBase + "/payment/failure?payment_id=" + req.IntentID,
			"pending": c.BackURLBase + "/payment/pending?payment_id=" + req.IntentID,
		},
		"auto_return":          "approved",
		"external_reference":   req.IntentID,
		"statement_descriptor": "RIFEI",
		"notification_url":     c.NotificationURL,
		"expires":              true,
		"expiration_date_from": time.Now().UTC().Format(time.RFC3339),
		"expiration_date_to":   req.ExpiresAt.UTC().Format(time.RFC3339),
	}

	body, err := c.post(ctx, "/checkout/preferences", req.IntentID, payload)
	if err != nil {
		return nil, err
	}

	var raw struct {
		ID               string `json:"id"`
		InitPoint        string `json:"init_point"`
		SandboxInitPoint string `json:"sandbox_init_point"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	if strings.TrimSpace(raw.ID) == "" {
		return nil, errors.New("mercadopago preference response missing id")
	}

	return &PreferenceCharge{
		PreferenceID:     raw.ID,
		InitPoint:        raw.InitPoint,
		SandboxInitPoint: raw.SandboxInitPoint,
	}, nil
}

// GetPayment fetches the live state of one charge. Reconciliation always
// trusts this response over the webhook body.
func (c *MercadoPagoClient) GetPayment(ctx context.Context, paymentID string) (*PaymentInfo, error) {
	if strings.TrimSpace(paymentID) == "" {
		return nil, errors.New("payment id is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(c.APIBaseURL, "/")+"/v1/payments/"+paymentID, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.AccessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrPaymentNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("mercadopago payment lookup failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var raw struct {
		ID                json.Number `json:"id"`
		Status            string      `json:"status"`
		StatusDetail      string      `json:"status_detail"`
		PaymentMethodID   string      `json:"payment_method_id"`
		PaymentTypeID     string      `json:"payment_type_id"`
		TransactionAmount float64     `json:"transaction_amount"`
		ExternalReference string      `json:"external_reference"`
		Payer             struct {
			Email string `json:"email"`
		} `json:"payer"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}

	return &PaymentInfo{
		ID:                raw.ID.String(),
		Status:            raw.Status,
		StatusDetail:      raw.StatusDetail,
		PaymentMethodID:   raw.PaymentMethodID,
		PaymentTypeID:     raw.PaymentTypeID,
		TransactionCents:  amountToCents(raw.TransactionAmount),
		ExternalReference: raw.ExternalReference,
		PayerEmail:        raw.Payer.Email,
	}, nil
}

func (c *MercadoPagoClient) post(ctx context.Context, path, idempotencyKey string, payload interface{}) ([]byte, error) {
	if strings.TrimSpace(c.AccessToken) == "" {
		return nil, errors.New("MP_ACCESS_TOKEN is not configured")
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.APIBaseURL, "/")+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.AccessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("X-Idempotency-Key", idempotencyKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("mercadopago request %s failed: status=%d body=%s", path, resp.StatusCode, string(body))
	}
	return body, nil
}

// Amounts are stored as integer cents but the gateway speaks BRL floats.
func centsToAmount(cents int64) float64 {
	return float64(cents) / 100
}

func amountToCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
