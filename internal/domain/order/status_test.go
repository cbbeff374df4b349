package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from Status
		to   Status
		want bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusShipped, false},
		{StatusPending, StatusDelivered, false},
		{StatusConfirmed, StatusProcessing, true},
		{StatusConfirmed, StatusCancelled, true},
		{StatusConfirmed, StatusPending, false},
		{StatusProcessing, StatusShipped, true},
		{StatusProcessing, StatusCancelled, true},
		{StatusShipped, StatusDelivered, true},
		{StatusShipped, StatusCancelled, false},
		{StatusDelivered, StatusCancelled, false},
		{StatusDelivered, StatusPending, false},
		{StatusCancelled, StatusPending, false},
		{StatusCancelled, StatusConfirmed, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestValidStatus(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusConfirmed, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled} {
		assert.True(t, ValidStatus(s), "status %s", s)
	}
	assert.False(t, ValidStatus(Status("archived")))
	assert.False(t, ValidStatus(Status("")))
}

func TestRestoresInventory(t *testing.T) {
	assert.True(t, RestoresInventory(StatusPending))
	assert.True(t, RestoresInventory(StatusConfirmed))
	assert.True(t, RestoresInventory(StatusProcessing))
	assert.False(t, RestoresInventory(StatusShipped))
	assert.False(t, RestoresInventory(StatusDelivered))
	assert.False(t, RestoresInventory(StatusCancelled))
}

func TestInvalidTransitionError(t *testing.T) {
	err := &InvalidTransitionError{From: StatusShipped, To: StatusCancelled}
	assert.Equal(t, "cannot transition order from shipped to cancelled", err.Error())
}

func TestCanTransitionReturn(t *testing.T) {
	tests := []struct {
		from ReturnStatus
		to   ReturnStatus
		want bool
	}{
		{ReturnNone, ReturnRequested, true},
		{ReturnNone, ReturnPickupScheduled, false},
		{ReturnNone, ReturnCompleted, false},
		{ReturnRequested, ReturnPickupScheduled, true},
		{ReturnRequested, ReturnCompleted, false},
		{ReturnRequested, ReturnNone, false},
		{ReturnPickupScheduled, ReturnInTransit, true},
		{ReturnInTransit, ReturnCompleted, true},
		{ReturnCompleted, ReturnRequested, false},
		{ReturnCompleted, ReturnNone, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransitionReturn(tt.from, tt.to))
		})
	}
}

func TestValidReturnStatus(t *testing.T) {
	for _, s := range []ReturnStatus{ReturnNone, ReturnRequested, ReturnPickupScheduled, ReturnInTransit, ReturnCompleted} {
		assert.True(t, ValidReturnStatus(s), "return status %s", s)
	}
	assert.False(t, ValidReturnStatus(ReturnStatus("lost")))
	assert.False(t, ValidReturnStatus(ReturnStatus("")))
}

func TestShippingStatusFor(t *testing.T) {
	ss, ok := ShippingStatusFor(StatusShipped)
	assert.True(t, ok)
	assert.Equal(t, ShippingShipped, ss)

	ss, ok = ShippingStatusFor(StatusDelivered)
	assert.True(t, ok)
	assert.Equal(t, ShippingDelivered, ss)

	for _, s := range []Status{StatusPending, StatusConfirmed, StatusProcessing, StatusCancelled} {
		_, ok := ShippingStatusFor(s)
		assert.False(t, ok, "status %s", s)
	}
}
