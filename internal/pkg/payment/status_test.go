package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyStatus(t *testing.T) {
	cases := []struct {
		status string
		want   StatusClass
	}{
		{"approved", StatusApproved},
		{"APPROVED", StatusApproved},
		{"rejected", StatusRejected},
		{"cancelled", StatusRejected},
		{"refunded", StatusRejected},
		{"charged_back", StatusRejected},
		{"pending", StatusPending},
		{"in_process", StatusPending},
		{"in_mediation", StatusPending},
		{"authorized", StatusPending},
		{"", StatusPending},
		{"some_future_status", StatusPending},
	}
	for _, tc := range cases {
		t.Run(tc.status, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyStatus(tc.status))
		})
	}
}
