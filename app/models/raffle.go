package models

import "time"

const (
	RaffleStatusDraft     = "draft"
	RaffleStatusActive    = "active"
	RaffleStatusCompleted = "completed"
	RaffleStatusCancelled = "cancelled"
)

// Raffle is one campaign selling a fixed count of numbered tickets.
// SoldCount is a counter cache kept in sync by the inventory store; it is
// only ever incremented inside the same transaction that marks numbers sold.
type Raffle struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Title          string    `gorm:"type:varchar(200);not null" json:"title"`
	Slug           string    `gorm:"type:varchar(200);unique;not null;index" json:"slug"`
	Description    string    `gorm:"type:text" json:"description"`
	PriceCents     int64     `gorm:"not null" json:"price_cents"`
	TotalNumbers   int       `gorm:"not null" json:"total_numbers"`
	Status         string    `gorm:"type:varchar(16);not null;default:'draft';index:idx_raffles_status_end_date,priority:1" json:"status"`
	EndDate        time.Time `gorm:"not null;index:idx_raffles_status_end_date,priority:2" json:"end_date"`
	SoldCount      int       `gorm:"not null;default:0" json:"sold_count"`
	CreatorID      uint      `gorm:"not null;index" json:"creator_id"`
	Creator        User      `gorm:"foreignKey:CreatorID" json:"creator,omitempty"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// AvailableCount returns how many numbers are neither held nor sold,
// based on the counter cache only (held numbers are not subtracted here).
func (r *Raffle) AvailableCount() int {
	return r.TotalNumbers - r.SoldCount
}

// ProgressPercent returns the sold share in percent for UI progress bars.
func (r *Raffle) ProgressPercent() float64 {
	if r.TotalNumbers == 0 {
		return 0
	}
	return float64(r.SoldCount) / float64(r.TotalNumbers) * 100
}

// IsActive reports whether the raffle currently sells numbers.
func (r *Raffle) IsActive() bool {
	return r.Status == RaffleStatusActive
}
