package models

import (
	"time"

	"github.com/uptrace/bun"
)

// ConcessionType is a category of ticket holder (e.g. "Student", "Adult")
// used to decide which discounts a booking's tickets qualify for.
type ConcessionType struct {
	bun.BaseModel `bun:"table:concession_types"`

	ID   string `json:"concessionTypeID" bun:"concession_type_id,pk"`
	Name string `json:"name" bun:"name"`
}

type SeatGroup struct {
	bun.BaseModel `bun:"table:seat_groups"`

	ID   string `json:"seatGroupID" bun:"seat_group_id,pk"`
	Name string `json:"name" bun:"name"`
}

type Ticket struct {
	bun.BaseModel `bun:"table:tickets"`

	ID               string     `json:"ticketID" bun:"ticket_id,pk"`
	BookingID        string     `json:"bookingID" bun:"booking_id"`
	ConcessionTypeID string     `json:"concessionTypeID" bun:"concession_type_id"`
	SeatGroupID      string     `json:"seatGroupID" bun:"seat_group_id"`
	Price            int64      `json:"price" bun:"price"`
	CheckedInAt      *time.Time `json:"checkedInAt,omitempty" bun:"checked_in_at,nullzero"`
	CheckedInByID    string     `json:"checkedInByID,omitempty" bun:"checked_in_by_id"`
}

func (t *Ticket) CheckedIn() bool { return t.CheckedInAt != nil }
