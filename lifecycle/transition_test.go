package lifecycle_test

import (
	"testing"

	"civicsync-issues/lifecycle"
	"civicsync-issues/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextStatus(t *testing.T) {
	tests := []struct {
		slot      models.AssignmentSlot
		direction lifecycle.Direction
		want      models.IssueStatus
	}{
		{models.SlotFiscal, lifecycle.Assign, models.StatusWaitingForManager},
		{models.SlotFiscal, lifecycle.Unassign, models.StatusWaitingForFiscal},
		{models.SlotManager, lifecycle.Assign, models.StatusWaitingForManagerAction},
		{models.SlotManager, lifecycle.Unassign, models.StatusWaitingForManager},
	}

	for _, tt := range tests {
		t.Run(tt.slot.String()+"/"+tt.direction.String(), func(t *testing.T) {
			got, err := lifecycle.NextStatus(tt.slot, tt.direction)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextStatusUnknownSlot(t *testing.T) {
	_, err := lifecycle.NextStatus(models.AssignmentSlot(9), lifecycle.Assign)
	assert.ErrorIs(t, err, lifecycle.ErrInvalidField)
}

func TestStatusWireValues(t *testing.T) {
	assert.Equal(t, "Open", string(models.StatusOpen))
	assert.Equal(t, "Waiting for fiscal", string(models.StatusWaitingForFiscal))
	assert.Equal(t, "Waiting for manager", string(models.StatusWaitingForManager))
	assert.Equal(t, "Waiting for manager action", string(models.StatusWaitingForManagerAction))
	assert.Equal(t, "Waiting for reporter response", string(models.StatusWaitingForReporterResponse))
	assert.Equal(t, "Solved", string(models.StatusSolved))
	assert.Equal(t, models.StatusWaitingForFiscal, lifecycle.InitialStatus)
}
