package discounts

import (
	"math"

	"box-office/internal/models"
)

// Optimizer finds the cheapest way to price a set of tickets against a
// discount catalogue. The catalogue is expected to be pre-filtered to the
// booking's performance and is treated as read-only.
//
// Combinations are ordered tuples drawn from the catalogue with repetition,
// so the search space is O(n^k) in the catalogue size n and the tuple length
// cap k. Keep maxLen small.
type Optimizer struct {
	catalogue []*models.Discount
	maxLen    int
}

func NewOptimizer(catalogue []*models.Discount, maxLen int) *Optimizer {
	if maxLen < 1 {
		maxLen = 1
	}
	return &Optimizer{catalogue: catalogue, maxLen: maxLen}
}

// ConcessionMap reduces a list of requirements to a map of concession type to
// required ticket count, summing counts for repeated types.
func ConcessionMap(reqs []models.DiscountRequirement) map[string]int {
	m := make(map[string]int, len(reqs))
	for _, r := range reqs {
		m[r.ConcessionTypeID] += r.Number
	}
	return m
}

// IsValidCombination reports whether the booking's tickets can satisfy every
// aggregated requirement of the combination, and whether the combination as a
// whole does not require more tickets than the booking holds.
func (o *Optimizer) IsValidCombination(comb *models.DiscountCombination, tickets []*models.Ticket) bool {
	counts := make(map[string]int)
	for _, t := range tickets {
		counts[t.ConcessionTypeID]++
	}

	required := 0
	for typeID, number := range ConcessionMap(comb.Requirements()) {
		if counts[typeID] < number {
			return false
		}
		required += number
	}

	return required <= len(tickets)
}

// ValidCombinations enumerates every valid combination of 1..maxLen discounts
// from the catalogue, with repetition. Tuples are emitted in lexicographic
// catalogue order, shortest first, which BestCombination relies on for its
// tie-break.
func (o *Optimizer) ValidCombinations(tickets []*models.Ticket) []*models.DiscountCombination {
	if len(o.catalogue) == 0 || len(tickets) == 0 {
		return nil
	}

	limit := len(o.catalogue)
	if limit > o.maxLen {
		limit = o.maxLen
	}

	var valid []*models.DiscountCombination
	tuple := make([]*models.Discount, 0, limit)

	var expand func(length int)
	expand = func(length int) {
		if len(tuple) == length {
			comb := models.NewDiscountCombination(append([]*models.Discount(nil), tuple...)...)
			if o.IsValidCombination(comb, tickets) {
				valid = append(valid, comb)
			}
			return
		}
		for _, d := range o.catalogue {
			tuple = append(tuple, d)
			expand(length)
			tuple = tuple[:len(tuple)-1]
		}
	}

	for length := 1; length <= limit; length++ {
		expand(length)
	}

	return valid
}

// PriceWithCombination prices the tickets under the given combination. Each
// discount in the tuple consumes its required tickets at
// price * (1 - percentage); tickets left over are priced at their best
// applicable single-discount price, or full price when none applies.
func (o *Optimizer) PriceWithCombination(comb *models.DiscountCombination, tickets []*models.Ticket) int64 {
	pool := append([]*models.Ticket(nil), tickets...)

	var total int64
	if comb != nil {
		for _, d := range comb.Discounts {
			for _, req := range d.Requirements {
				for i := 0; i < req.Number; i++ {
					idx := takeTicket(pool, req.ConcessionTypeID, d.SeatGroupID)
					if idx < 0 {
						continue
					}
					total += discountedPrice(pool[idx].Price, d.Percentage)
					pool = append(pool[:idx], pool[idx+1:]...)
				}
			}
		}
	}

	for _, t := range pool {
		total += discountedPrice(t.Price, o.bestSinglePercentage(t))
	}

	return total
}

// BestCombination evaluates every valid combination and returns the one with
// the minimum price, along with that price. Ties are broken by fewest
// discounts applied, then by enumeration order. The empty combination is
// always a candidate, so the result never prices worse than no discount.
func (o *Optimizer) BestCombination(tickets []*models.Ticket) (*models.DiscountCombination, int64) {
	best := (*models.DiscountCombination)(nil)
	bestPrice := o.PriceWithCombination(nil, tickets)

	for _, comb := range o.ValidCombinations(tickets) {
		price := o.PriceWithCombination(comb, tickets)
		if price < bestPrice {
			best, bestPrice = comb, price
			continue
		}
		if price == bestPrice && best != nil && len(comb.Discounts) < len(best.Discounts) {
			best = comb
		}
	}

	return best, bestPrice
}

// FullPrice is the undiscounted sum of all ticket prices.
func FullPrice(tickets []*models.Ticket) int64 {
	var total int64
	for _, t := range tickets {
		total += t.Price
	}
	return total
}

// bestSinglePercentage returns the highest percentage among single discounts
// in the catalogue applicable to the ticket's concession type and seat group.
func (o *Optimizer) bestSinglePercentage(t *models.Ticket) float64 {
	best := 0.0
	for _, d := range o.catalogue {
		if !d.IsSingle() {
			continue
		}
		if d.SeatGroupID != "" && d.SeatGroupID != t.SeatGroupID {
			continue
		}
		for _, req := range d.Requirements {
			if req.Number == 1 && req.ConcessionTypeID == t.ConcessionTypeID && d.Percentage > best {
				best = d.Percentage
			}
		}
	}
	return best
}

func takeTicket(pool []*models.Ticket, concessionTypeID, seatGroupID string) int {
	for i, t := range pool {
		if t.ConcessionTypeID != concessionTypeID {
			continue
		}
		if seatGroupID != "" && t.SeatGroupID != seatGroupID {
			continue
		}
		return i
	}
	return -1
}

func discountedPrice(price int64, percentage float64) int64 {
	if percentage <= 0 {
		return price
	}
	return price - int64(math.Round(float64(price)*percentage))
}
