package models

import (
	"time"

	"github.com/uptrace/bun"
)

// PayableKindBooking is the kind tag bookings use in transaction references.
const PayableKindBooking = "booking"

type Booking struct {
	bun.BaseModel `bun:"table:bookings"`

	ID            string        `json:"bookingID" bun:"booking_id,pk"`
	Reference     string        `json:"reference" bun:"reference"`
	PerformanceID string        `json:"performanceID" bun:"performance_id"`
	UserID        string        `json:"userID" bun:"user_id"`
	UserEmail     string        `json:"userEmail" bun:"user_email"`
	CreatorID     string        `json:"creatorID" bun:"creator_id"`
	Status        PayableStatus `json:"status" bun:"status"`
	CreatedAt     time.Time     `json:"createdAt" bun:"created_at"`
	UpdatedAt     time.Time     `json:"updatedAt" bun:"updated_at"`
}

func (b *Booking) PayableKind() string              { return PayableKindBooking }
func (b *Booking) PayableID() string                { return b.ID }
func (b *Booking) PayableStatus() PayableStatus     { return b.Status }
func (b *Booking) SetPayableStatus(s PayableStatus) { b.Status = s }
func (b *Booking) OwnerID() string                  { return b.UserID }
func (b *Booking) OwnerEmail() string               { return b.UserEmail }
func (b *Booking) DisplayName() string              { return b.Reference }

// MiscCost is an extra charge applied on top of a booking's discounted
// subtotal, either a fixed value in pence or a percentage of the subtotal.
type MiscCost struct {
	bun.BaseModel `bun:"table:misc_costs"`

	ID         string  `json:"miscCostID" bun:"misc_cost_id,pk"`
	Name       string  `json:"name" bun:"name"`
	Value      int64   `json:"value" bun:"value"`
	Percentage float64 `json:"percentage" bun:"percentage"`
}

// ValueFor returns the cost in pence for a given subtotal.
func (m *MiscCost) ValueFor(subtotal int64) float64 {
	if m.Percentage > 0 {
		return float64(subtotal) * m.Percentage
	}
	return float64(m.Value)
}
