package payment

import "strings"

// StatusClass folds the gateway's status vocabulary into the three
// outcomes the inventory understands.
type StatusClass string

const (
	StatusApproved StatusClass = "approved"
	StatusRejected StatusClass = "rejected"
	StatusPending  StatusClass = "pending"
)

// ClassifyStatus maps a raw Mercado Pago payment status to its class.
// Unknown statuses classify as pending so a vocabulary change on the
// gateway side can never release or sell numbers by accident.
func ClassifyStatus(status string) StatusClass {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "approved":
		return StatusApproved
	case "rejected", "cancelled", "refunded", "charged_back":
		return StatusRejected
	default:
		return StatusPending
	}
}
