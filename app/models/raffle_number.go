package models

import "time"

const (
	NumberStatusAvailable = "available"
	NumberStatusHeld      = "held"
	NumberStatusSold      = "sold"
)

// RaffleNumber is one purchasable position in a raffle. Rows are seeded in
// bulk when the raffle is published and never deleted while the raffle
// exists. Status transitions run exclusively through conditional updates in
// the inventory store so that at most one claim owns a number at a time.
type RaffleNumber struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	RaffleID        uint       `gorm:"not null;index:ux_raffle_numbers_raffle_number,unique,priority:1" json:"raffle_id"`
	Number          int        `gorm:"not null;index:ux_raffle_numbers_raffle_number,unique,priority:2" json:"number"`
	Status          string     `gorm:"type:varchar(16);not null;default:'available';index:idx_raffle_numbers_status" json:"status"`
	UserID          *uint      `gorm:"index" json:"user_id,omitempty"`
	PaymentIntentID *string    `gorm:"type:varchar(36);index" json:"payment_intent_id,omitempty"`
	HeldUntil       *time.Time `gorm:"type:timestamp;default:null" json:"held_until,omitempty"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
