package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Performance struct {
	bun.BaseModel `bun:"table:performances"`

	ID             string    `json:"performanceID" bun:"performance_id,pk"`
	ProductionName string    `json:"productionName" bun:"production_name"`
	VenueName      string    `json:"venueName" bun:"venue_name"`
	DoorsOpen      time.Time `json:"doorsOpen" bun:"doors_open"`
	Start          time.Time `json:"start" bun:"start"`
	End            time.Time `json:"end" bun:"end"`
}
