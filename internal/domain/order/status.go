package order

import "fmt"

// Status is the fulfillment state of an order.
type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// PaymentStatus tracks money independently from fulfillment.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// ShippingStatus tracks the carrier-side progress of an order.
type ShippingStatus string

const (
	ShippingNotShipped ShippingStatus = "not_shipped"
	ShippingProcessing ShippingStatus = "processing"
	ShippingShipped    ShippingStatus = "shipped"
	ShippingInTransit  ShippingStatus = "in_transit"
	ShippingDelivered  ShippingStatus = "delivered"
)

// ReturnStatus tracks the optional post-delivery return sub-flow.
type ReturnStatus string

const (
	ReturnNone            ReturnStatus = "none"
	ReturnRequested       ReturnStatus = "requested"
	ReturnPickupScheduled ReturnStatus = "pickup_scheduled"
	ReturnInTransit       ReturnStatus = "in_transit"
	ReturnCompleted       ReturnStatus = "completed"
)

// transitions is the order status graph. Delivered and cancelled are terminal.
var transitions = map[Status][]Status{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered},
	StatusDelivered:  {},
	StatusCancelled:  {},
}

// returnTransitions is the post-delivery return machine. Completed is terminal.
var returnTransitions = map[ReturnStatus][]ReturnStatus{
	ReturnNone:            {ReturnRequested},
	ReturnRequested:       {ReturnPickupScheduled},
	ReturnPickupScheduled: {ReturnInTransit},
	ReturnInTransit:       {ReturnCompleted},
	ReturnCompleted:       {},
}

// InvalidTransitionError reports an order status change outside the graph.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition order from %s to %s", e.From, e.To)
}

// ValidStatus reports whether s is a known order status.
func ValidStatus(s Status) bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether the status graph has an edge from → to.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// InvalidReturnTransitionError reports a return status change outside the
// return machine.
type InvalidReturnTransitionError struct {
	From ReturnStatus
	To   ReturnStatus
}

func (e *InvalidReturnTransitionError) Error() string {
	return fmt.Sprintf("cannot move return from %s to %s", e.From, e.To)
}

// ValidReturnStatus reports whether s is a known return status.
func ValidReturnStatus(s ReturnStatus) bool {
	_, ok := returnTransitions[s]
	return ok
}

// CanTransitionReturn reports whether the return machine has an edge
// from → to.
func CanTransitionReturn(from, to ReturnStatus) bool {
	for _, next := range returnTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ShippingStatusFor maps fulfillment statuses that imply carrier progress to
// the shipping status written alongside them in the same transaction.
func ShippingStatusFor(s Status) (ShippingStatus, bool) {
	switch s {
	case StatusShipped:
		return ShippingShipped, true
	case StatusDelivered:
		return ShippingDelivered, true
	}
	return "", false
}

// RestoresInventory reports whether cancelling an order in the given status
// must put its items back in stock.
func RestoresInventory(from Status) bool {
	switch from {
	case StatusPending, StatusConfirmed, StatusProcessing:
		return true
	}
	return false
}
