package order

import (
	"ms-bookstore/internal/models"
)

// transitions is the full lifecycle graph. Anything not listed here is
// rejected, including self-transitions.
var transitions = map[models.OrderStatus][]models.OrderStatus{
	models.StatusPending:        {models.StatusConfirmed, models.StatusCancelled},
	models.StatusConfirmed:      {models.StatusProcessing, models.StatusCancelled},
	models.StatusProcessing:     {models.StatusPacked, models.StatusCancelled},
	models.StatusPacked:         {models.StatusShipped, models.StatusCancelled},
	models.StatusShipped:        {models.StatusOutForDelivery},
	models.StatusOutForDelivery: {models.StatusDelivered},
	models.StatusDelivered:      {models.StatusReturned},
	models.StatusReturned:       {models.StatusRefunded},
	models.StatusCancelled:      {},
	models.StatusRefunded:       {},
}

// CanTransition reports whether from → to is a legal move in the lifecycle.
func CanTransition(from, to models.OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether an order can never change status again.
func IsTerminal(status models.OrderStatus) bool {
	return len(transitions[status]) == 0
}

// Cancellable reports whether an order may still be cancelled. Once it has
// shipped the only way back is the return flow after delivery.
func Cancellable(status models.OrderStatus) bool {
	return CanTransition(status, models.StatusCancelled)
}

// ValidStatus reports whether s is a known lifecycle status at all.
func ValidStatus(s models.OrderStatus) bool {
	_, ok := transitions[s]
	return ok
}
