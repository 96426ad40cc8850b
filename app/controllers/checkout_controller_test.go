package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rifei/backend/app/models"
	"github.com/rifei/backend/internal/pkg/inventory"
	"github.com/rifei/backend/internal/pkg/notify"
	"github.com/rifei/backend/internal/pkg/payment"
	"github.com/rifei/backend/internal/pkg/reservation"
	"github.com/rifei/backend/internal/pkg/testutil"
	"github.com/rifei/backend/internal/pkg/usercontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type stubGateway struct {
	payments map[string]*payment.PaymentInfo
	pix      *payment.PixCharge
}

func (g *stubGateway) CreatePixPayment(ctx context.Context, req payment.ChargeRequest) (*payment.PixCharge, error) {
	return g.pix, nil
}

func (g *stubGateway) CreatePreference(ctx context.Context, req payment.ChargeRequest) (*payment.PreferenceCharge, error) {
	return &payment.PreferenceCharge{PreferenceID: "pref-test", InitPoint: "https://mp.example/pref-test"}, nil
}

func (g *stubGateway) GetPayment(ctx context.Context, paymentID string) (*payment.PaymentInfo, error) {
	info, ok := g.payments[paymentID]
	if !ok {
		return nil, payment.ErrPaymentNotFound
	}
	return info, nil
}

func newTestApp(t *testing.T) (*fiber.App, *gorm.DB, *stubGateway) {
	t.Helper()
	db := testutil.NewTestDB(t)
	gateway := &stubGateway{
		payments: map[string]*payment.PaymentInfo{},
		pix:      &payment.PixCharge{PaymentID: "999001", QRCode: "pix-code"},
	}

	inv := inventory.NewServiceFromDB(db, nil)
	resv := reservation.NewService(inv, 15*time.Minute)
	orch := payment.NewOrchestratorFromDB(db, gateway)
	rec := payment.NewReconciler(payment.NewRepository(db), gateway, inv, notify.NewNotifier(db), "")
	SetupServices(inv, resv, orch, rec)

	app := fiber.New()
	api := app.Group("/api", usercontext.Middleware())
	api.Get("/raffles/:id/numbers", HandleGetRaffleNumbers)
	api.Post("/reservations", HandleCreateReservation)
	api.Delete("/reservations/:intentID", HandleCancelReservation)
	api.Post("/checkout/:intentID", HandleCreateCharge)
	api.Get("/payments/:intentID", HandleGetPayment)
	api.Get("/payments", HandleListMyPayments)
	app.Post("/webhooks/mercadopago", HandleMercadoPagoWebhook)
	app.Get("/webhooks/mercadopago", HandleMercadoPagoWebhookCheck)

	return app, db, gateway
}

func jsonBody(t *testing.T, v interface{}) io.Reader {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(raw)
}

func decodeBody(t *testing.T, resp io.Reader) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp).Decode(&out))
	return out
}

func TestReservationEndpoint(t *testing.T) {
	app, db, _ := newTestApp(t)
	raffle, _ := testutil.SeedRaffle(t, db, 10, 500)
	buyer := testutil.SeedUser(t, db, "Buyer")

	t.Run("requires authentication", func(t *testing.T) {
		req := httptest.NewRequest(fiber.MethodPost, "/api/reservations",
			jsonBody(t, fiber.Map{"raffle_id": raffle.ID, "numbers": []int{1}}))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("creates a reservation", func(t *testing.T) {
		req := httptest.NewRequest(fiber.MethodPost, "/api/reservations",
			jsonBody(t, fiber.Map{"raffle_id": raffle.ID, "numbers": []int{1, 2}}))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-User-ID", fmt.Sprint(buyer.ID))
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

		body := decodeBody(t, resp.Body)
		assert.NotEmpty(t, body["intent_id"])
		assert.Equal(t, float64(1000), body["amount_cents"])
	})

	t.Run("reports conflicting numbers", func(t *testing.T) {
		req := httptest.NewRequest(fiber.MethodPost, "/api/reservations",
			jsonBody(t, fiber.Map{"raffle_id": raffle.ID, "numbers": []int{2, 3}}))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-User-ID", fmt.Sprint(buyer.ID))
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

		body := decodeBody(t, resp.Body)
		assert.Equal(t, "numbers_unavailable", body["error"])
		assert.Equal(t, []interface{}{float64(2)}, body["conflicting_numbers"])
	})

	t.Run("rejects invalid body", func(t *testing.T) {
		req := httptest.NewRequest(fiber.MethodPost, "/api/reservations",
			jsonBody(t, fiber.Map{"raffle_id": raffle.ID, "numbers": []int{}}))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-User-ID", fmt.Sprint(buyer.ID))
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	})
}

func TestCancelReservationEndpoint(t *testing.T) {
	app, db, _ := newTestApp(t)
	raffle, _ := testutil.SeedRaffle(t, db, 10, 500)
	buyer := testutil.SeedUser(t, db, "Buyer")
	stranger := testutil.SeedUser(t, db, "Stranger")

	inv := inventory.NewServiceFromDB(db, nil)
	intent, err := inv.Claim(inventory.ClaimInput{RaffleID: raffle.ID, UserID: buyer.ID, Numbers: []int{4}, HoldFor: time.Minute})
	require.NoError(t, err)

	req := httptest.NewRequest(fiber.MethodDelete, "/api/reservations/"+intent.ID, nil)
	req.Header.Set("X-User-ID", fmt.Sprint(stranger.ID))
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	req = httptest.NewRequest(fiber.MethodDelete, "/api/reservations/"+intent.ID, nil)
	req.Header.Set("X-User-ID", fmt.Sprint(buyer.ID))
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}

func TestCheckoutEndpoint(t *testing.T) {
	app, db, _ := newTestApp(t)
	raffle, _ := testutil.SeedRaffle(t, db, 10, 500)
	buyer := testutil.SeedUser(t, db, "Buyer")

	inv := inventory.NewServiceFromDB(db, nil)
	intent, err := inv.Claim(inventory.ClaimInput{RaffleID: raffle.ID, UserID: buyer.ID, Numbers: []int{5}, HoldFor: 15 * time.Minute})
	require.NoError(t, err)

	req := httptest.NewRequest(fiber.MethodPost, "/api/checkout/"+intent.ID,
		jsonBody(t, fiber.Map{"method": "pix"}))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", fmt.Sprint(buyer.ID))
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp.Body)
	assert.Equal(t, "pix", body["method"])
	pix := body["pix"].(map[string]interface{})
	assert.Equal(t, "999001", pix["payment_id"])
}

func TestRaffleNumbersEndpoint(t *testing.T) {
	app, db, _ := newTestApp(t)
	raffle, _ := testutil.SeedRaffle(t, db, 5, 500)
	buyer := testutil.SeedUser(t, db, "Buyer")

	inv := inventory.NewServiceFromDB(db, nil)
	_, err := inv.Claim(inventory.ClaimInput{RaffleID: raffle.ID, UserID: buyer.ID, Numbers: []int{2}, HoldFor: time.Minute})
	require.NoError(t, err)

	req := httptest.NewRequest(fiber.MethodGet, fmt.Sprintf("/api/raffles/%d/numbers", raffle.ID), nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp.Body)
	numbers := body["numbers"].(map[string]interface{})
	assert.Equal(t, []interface{}{float64(2)}, numbers["held"])
	assert.Len(t, numbers["available"], 4)
}

func TestWebhookEndpoint(t *testing.T) {
	app, db, gateway := newTestApp(t)
	raffle, _ := testutil.SeedRaffle(t, db, 10, 500)
	buyer := testutil.SeedUser(t, db, "Buyer")

	inv := inventory.NewServiceFromDB(db, nil)
	intent, err := inv.Claim(inventory.ClaimInput{RaffleID: raffle.ID, UserID: buyer.ID, Numbers: []int{7}, HoldFor: time.Minute})
	require.NoError(t, err)

	gateway.payments["999002"] = &payment.PaymentInfo{
		ID:                "999002",
		Status:            "approved",
		TransactionCents:  intent.AmountCents,
		ExternalReference: intent.ID,
	}

	t.Run("liveness probe", func(t *testing.T) {
		req := httptest.NewRequest(fiber.MethodGet, "/webhooks/mercadopago", nil)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("approved notification sells numbers", func(t *testing.T) {
		body := []byte(`{"id":42,"action":"payment.updated","type":"payment","data":{"id":999002}}`)
		req := httptest.NewRequest(fiber.MethodPost, "/webhooks/mercadopago", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		fresh, err := inv.GetIntent(intent.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PaymentStatusApproved, fresh.Status)

		var notifications []models.Notification
		require.NoError(t, db.Where("user_id = ?", buyer.ID).Find(&notifications).Error)
		assert.Len(t, notifications, 1)
	})
}
