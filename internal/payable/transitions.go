package payable

import "box-office/internal/models"

// AllowedTransitions defines the valid status transitions. The key is the
// current status, the value the statuses reachable from it.
var AllowedTransitions = map[models.PayableStatus][]models.PayableStatus{
	models.StatusInProgress: {
		models.StatusPaid,
		models.StatusCancelled,
	},
	models.StatusPaid: {
		models.StatusRefundProcessing,
		models.StatusCancelled,
	},
	models.StatusCancelled: {
		models.StatusRefundProcessing,
	},
	models.StatusRefundProcessing: {
		models.StatusRefunded,
	},
	models.StatusRefunded: {}, // Terminal state
}

// CanTransition checks if a transition from one status to another is allowed.
func CanTransition(from, to models.PayableStatus) bool {
	allowed, exists := AllowedTransitions[from]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns an error if the transition is not allowed.
func ValidateTransition(from, to models.PayableStatus) error {
	if !CanTransition(from, to) {
		return &InvalidTransitionError{From: from, To: to}
	}
	return nil
}
