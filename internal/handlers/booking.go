package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"box-office/internal/bookings"
	"box-office/internal/models"
	"box-office/internal/payable"
	"box-office/internal/storage"
	"box-office/internal/utils"
)

type BookingHandler struct {
	bookingService *bookings.Service
}

func NewBookingHandler(bookingService *bookings.Service) *BookingHandler {
	return &BookingHandler{
		bookingService: bookingService,
	}
}

func (h *BookingHandler) CreateBooking(c *gin.Context) {
	var req models.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	booking, err := h.bookingService.Create(&req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to create booking", err.Error()))
		return
	}

	c.JSON(http.StatusCreated, utils.SuccessResponse("Booking created", booking))
}

func (h *BookingHandler) GetBooking(c *gin.Context) {
	booking, err := h.bookingService.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, utils.ErrorResponse("Booking not found", err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to retrieve booking", err.Error()))
		return
	}

	tickets, err := h.bookingService.Tickets(booking.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to retrieve tickets", err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Booking retrieved", gin.H{
		"booking": booking,
		"tickets": tickets,
	}))
}

func (h *BookingHandler) AddTicket(c *gin.Context) {
	var req models.AddTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	ticket, err := h.bookingService.AddTicket(c.Param("id"), &req)
	if err != nil {
		h.writeBookingError(c, "Failed to add ticket", err)
		return
	}

	c.JSON(http.StatusCreated, utils.SuccessResponse("Ticket added", ticket))
}

func (h *BookingHandler) RemoveTicket(c *gin.Context) {
	if err := h.bookingService.RemoveTicket(c.Param("id"), c.Param("ticketID")); err != nil {
		h.writeBookingError(c, "Failed to remove ticket", err)
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Ticket removed", nil))
}

func (h *BookingHandler) GetPrice(c *gin.Context) {
	price, err := h.bookingService.Price(c.Param("id"))
	if err != nil {
		h.writeBookingError(c, "Failed to price booking", err)
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Booking priced", &models.PriceResponse{
		Subtotal:  price.Subtotal,
		MiscCosts: price.MiscCosts,
		Total:     price.Total,
		Discounts: price.Discounts,
	}))
}

func (h *BookingHandler) PayBooking(c *gin.Context) {
	var req models.PayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	txn, err := h.bookingService.Pay(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		var cantPay *payable.CantBePaidForError
		if errors.As(err, &cantPay) {
			c.JSON(http.StatusConflict, utils.ErrorResponse("Booking can not be paid for", cantPay.Error()))
			return
		}
		h.writeBookingError(c, "Payment failed", err)
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Payment processed", txn))
}

func (h *BookingHandler) RefundBooking(c *gin.Context) {
	var req models.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid refund request", err.Error()))
		return
	}

	if err := h.bookingService.Refund(c.Request.Context(), c.Param("id"), &req); err != nil {
		var cantRefund *payable.CantBeRefundedError
		if errors.As(err, &cantRefund) {
			c.JSON(http.StatusConflict, gin.H{
				"success": false,
				"message": "Booking can not be refunded",
				"error":   cantRefund.Message,
				"field":   cantRefund.Field,
				"code":    cantRefund.Code,
			})
			return
		}
		h.writeBookingError(c, "Refund failed", err)
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Refund initiated", nil))
}

func (h *BookingHandler) CheckIn(c *gin.Context) {
	var req models.CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	tickets, err := h.bookingService.CheckIn(c.Param("id"), &req)
	if err != nil {
		h.writeBookingError(c, "Check-in failed", err)
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Tickets checked in", tickets))
}

func (h *BookingHandler) writeBookingError(c *gin.Context, message string, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, utils.ErrorResponse(message, err.Error()))
	case errors.Is(err, bookings.ErrBookingLocked),
		errors.Is(err, bookings.ErrTicketCheckedIn),
		errors.Is(err, bookings.ErrNotPaid):
		c.JSON(http.StatusConflict, utils.ErrorResponse(message, err.Error()))
	default:
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse(message, err.Error()))
	}
}
