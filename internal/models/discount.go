package models

import "github.com/uptrace/bun"

// DiscountRequirement says "Number tickets of ConcessionTypeID are required
// for the owning discount to apply".
type DiscountRequirement struct {
	ConcessionTypeID string `json:"concessionTypeID"`
	Number           int    `json:"number"`
}

type Discount struct {
	bun.BaseModel `bun:"table:discounts"`

	ID             string                `json:"discountID" bun:"discount_id,pk"`
	Name           string                `json:"name" bun:"name"`
	Percentage     float64               `json:"percentage" bun:"percentage"`
	PerformanceIDs []string              `json:"performanceIDs" bun:"performance_ids,array"`
	SeatGroupID    string                `json:"seatGroupID,omitempty" bun:"seat_group_id"`
	Requirements   []DiscountRequirement `json:"requirements" bun:"requirements,type:json"`
}

// RequiredTickets is the total number of tickets the discount consumes.
func (d *Discount) RequiredTickets() int {
	total := 0
	for _, r := range d.Requirements {
		total += r.Number
	}
	return total
}

// IsSingle reports whether the discount requires exactly one ticket, which
// makes it act as a per-concession-type price override rather than a group
// deal.
func (d *Discount) IsSingle() bool { return d.RequiredTickets() == 1 }

// AppliesToPerformance reports whether the discount is scoped to the given
// performance. A discount with no performance list applies nowhere; scoping
// is always explicit.
func (d *Discount) AppliesToPerformance(performanceID string) bool {
	for _, id := range d.PerformanceIDs {
		if id == performanceID {
			return true
		}
	}
	return false
}

// DiscountCombination is an ordered tuple of discounts evaluated together
// against one booking. It is a transient computation artifact, never
// persisted.
type DiscountCombination struct {
	Discounts []*Discount
}

func NewDiscountCombination(discounts ...*Discount) *DiscountCombination {
	return &DiscountCombination{Discounts: discounts}
}

// Equal compares two combinations by tuple contents (discount IDs in order).
func (c *DiscountCombination) Equal(other *DiscountCombination) bool {
	if other == nil || len(c.Discounts) != len(other.Discounts) {
		return false
	}
	for i, d := range c.Discounts {
		if d.ID != other.Discounts[i].ID {
			return false
		}
	}
	return true
}

// Requirements flattens the requirements of every discount in the tuple.
func (c *DiscountCombination) Requirements() []DiscountRequirement {
	var reqs []DiscountRequirement
	for _, d := range c.Discounts {
		reqs = append(reqs, d.Requirements...)
	}
	return reqs
}
