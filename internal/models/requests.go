package models

type CreateBookingRequest struct {
	PerformanceID string `json:"performance_id" binding:"required"`
	UserID        string `json:"user_id" binding:"required"`
	UserEmail     string `json:"user_email" binding:"required,email"`
	CreatorID     string `json:"creator_id"`
}

type AddTicketRequest struct {
	ConcessionTypeID string `json:"concession_type_id" binding:"required"`
	SeatGroupID      string `json:"seat_group_id" binding:"required"`
	Price            int64  `json:"price" binding:"required,gt=0"`
}

type PayRequest struct {
	Method string `json:"method" binding:"required"`
	// Token is the gateway payment method or source token. Required for the
	// online provider, ignored by the manual ones.
	Token          string `json:"token,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

type RefundRequest struct {
	AuthorizerID         string `json:"authorizer_id" binding:"required"`
	Async                bool   `json:"async"`
	PreserveProviderFees bool   `json:"preserve_provider_fees"`
	PreserveAppFees      bool   `json:"preserve_app_fees"`
	Reason               string `json:"reason,omitempty"`
}

type CheckInRequest struct {
	TicketIDs     []string `json:"ticket_ids" binding:"required"`
	CheckedInByID string   `json:"checked_in_by_id" binding:"required"`
}

type CreateDiscountRequest struct {
	Name           string                `json:"name" binding:"required"`
	Percentage     float64               `json:"percentage" binding:"required,gt=0,lte=1"`
	PerformanceIDs []string              `json:"performance_ids" binding:"required"`
	SeatGroupID    string                `json:"seat_group_id"`
	Requirements   []DiscountRequirement `json:"requirements" binding:"required"`
}

type PriceResponse struct {
	Subtotal  int64    `json:"subtotal"`
	MiscCosts int64    `json:"misc_costs"`
	Total     int64    `json:"total"`
	Discounts []string `json:"discounts"`
}
