package models

import (
	"encoding/json"
	"time"
)

const (
	PaymentStatusPending  = "pending"
	PaymentStatusApproved = "approved"
	PaymentStatusRejected = "rejected"
)

const (
	PaymentMethodPix      = "pix"
	PaymentMethodCheckout = "checkout"
)

// PaymentIntent is one checkout attempt: one buyer, one raffle, one fixed
// set of numbers and one price snapshot. The numbers list and amounts are
// immutable after creation; status moves pending -> approved|rejected
// exactly once and the row is never mutated after a terminal state.
type PaymentIntent struct {
	ID             string `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID         uint   `gorm:"not null;index" json:"user_id"`
	RaffleID       uint   `gorm:"not null;index:idx_payment_intents_raffle_status,priority:1" json:"raffle_id"`
	NumbersJSON    string `gorm:"type:text;not null" json:"-"`
	UnitPriceCents int64  `gorm:"not null" json:"unit_price_cents"`
	AmountCents    int64  `gorm:"not null" json:"amount_cents"`
	FeeCents       int64  `gorm:"not null;default:0" json:"fee_cents"`
	NetAmountCents int64  `gorm:"not null;default:0" json:"net_amount_cents"`
	Status         string `gorm:"type:varchar(16);not null;default:'pending';index:idx_payment_intents_raffle_status,priority:2;index:idx_payment_intents_status_expires,priority:1" json:"status"`
	Method         string `gorm:"type:varchar(16)" json:"method,omitempty"`

	// Mirrored gateway state. MPPaymentID is the gateway's own charge id,
	// unique so one charge can never be bound to two intents. It stays
	// NULL until a charge is attached, so pending intents without a
	// charge never collide on the unique index.
	MPPaymentID     *string `gorm:"type:varchar(100);index:ux_payment_intents_mp_payment,unique" json:"mp_payment_id,omitempty"`
	MPPreferenceID  string `gorm:"type:varchar(100)" json:"mp_preference_id,omitempty"`
	MPStatus        string `gorm:"type:varchar(32)" json:"mp_status,omitempty"`
	MPStatusDetail  string `gorm:"type:varchar(100)" json:"mp_status_detail,omitempty"`
	PixQRCode       string `gorm:"type:text" json:"pix_qr_code,omitempty"`
	PixQRCodeBase64 string `gorm:"type:text" json:"pix_qr_code_base64,omitempty"`
	CheckoutURL     string `gorm:"type:text" json:"checkout_url,omitempty"`

	ExpiresAt time.Time  `gorm:"not null;index:idx_payment_intents_status_expires,priority:2" json:"expires_at"`
	PaidAt    *time.Time `gorm:"type:timestamp;default:null" json:"paid_at,omitempty"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// Numbers decodes the requested number list.
func (p *PaymentIntent) Numbers() []int {
	var nums []int
	if err := json.Unmarshal([]byte(p.NumbersJSON), &nums); err != nil {
		return nil
	}
	return nums
}

// SetNumbers encodes the requested number list. Only called at creation.
func (p *PaymentIntent) SetNumbers(nums []int) error {
	raw, err := json.Marshal(nums)
	if err != nil {
		return err
	}
	p.NumbersJSON = string(raw)
	return nil
}

// GatewayPaymentID returns the attached charge id, or "" while no charge
// exists yet.
func (p *PaymentIntent) GatewayPaymentID() string {
	if p.MPPaymentID == nil {
		return ""
	}
	return *p.MPPaymentID
}

// IsTerminal reports whether the intent reached a final state.
func (p *PaymentIntent) IsTerminal() bool {
	return p.Status == PaymentStatusApproved || p.Status == PaymentStatusRejected
}
