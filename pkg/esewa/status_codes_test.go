package esewa

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusClassification(t *testing.T) {
	tests := []struct {
		status                             string
		success, pending, failed, refunded bool
	}{
		{StatusComplete, true, false, false, false},
		{StatusPending, false, true, false, false},
		{StatusAmbiguous, false, true, false, false},
		{StatusNotFound, false, false, true, false},
		{StatusCanceled, false, false, true, false},
		{StatusFullRefund, false, false, false, true},
		{StatusPartialRefund, false, false, false, true},
		{"SOMETHING_NEW", false, false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			assert.Equal(t, tt.success, IsSuccess(tt.status))
			assert.Equal(t, tt.pending, IsPending(tt.status))
			assert.Equal(t, tt.failed, IsFailed(tt.status))
			assert.Equal(t, tt.refunded, IsRefunded(tt.status))
		})
	}
}
