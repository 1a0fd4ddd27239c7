package discounts

import "box-office/internal/models"

// ValidationError reports an invalid discount mutation. Field names the
// offending input field for the API layer.
type ValidationError struct {
	Message string
	Field   string
}

func (e *ValidationError) Error() string { return e.Message }

// ValidateDiscount checks the discount's own shape before it is saved.
func ValidateDiscount(d *models.Discount) error {
	if d.Percentage <= 0 || d.Percentage > 1 {
		return &ValidationError{Message: "discount percentage must be between 0 and 1", Field: "percentage"}
	}
	if len(d.Requirements) == 0 {
		return &ValidationError{Message: "discount must have at least one requirement", Field: "requirements"}
	}
	for _, req := range d.Requirements {
		if req.Number < 1 {
			return &ValidationError{Message: "requirement count must be at least 1", Field: "requirements"}
		}
	}
	if len(d.PerformanceIDs) == 0 {
		return &ValidationError{Message: "discount must be scoped to at least one performance", Field: "performance_ids"}
	}
	return nil
}

// ValidateUnique enforces the catalogue invariant: two discounts may not
// carry the same requirement multiset while applying to overlapping
// performances.
func ValidateUnique(existing []*models.Discount, candidate *models.Discount) error {
	candMap := ConcessionMap(candidate.Requirements)
	for _, d := range existing {
		if d.ID == candidate.ID {
			continue
		}
		if !mapsEqual(ConcessionMap(d.Requirements), candMap) {
			continue
		}
		if overlaps(d.PerformanceIDs, candidate.PerformanceIDs) {
			return &ValidationError{
				Message: "a discount with the same requirements already applies to one of these performances",
				Field:   "requirements",
			}
		}
	}
	return nil
}

func mapsEqual(a, b map[string]int) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

func overlaps(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}
