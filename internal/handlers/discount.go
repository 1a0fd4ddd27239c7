package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"box-office/internal/discounts"
	"box-office/internal/logger"
	"box-office/internal/models"
	"box-office/internal/storage"
	"box-office/internal/utils"
)

type DiscountHandler struct {
	store storage.Store
	log   *logger.Logger
}

func NewDiscountHandler(store storage.Store, log *logger.Logger) *DiscountHandler {
	return &DiscountHandler{
		store: store,
		log:   log,
	}
}

func (h *DiscountHandler) CreateDiscount(c *gin.Context) {
	var req models.CreateDiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	discount := &models.Discount{
		ID:             utils.GenerateUUID(),
		Name:           req.Name,
		Percentage:     req.Percentage,
		PerformanceIDs: req.PerformanceIDs,
		SeatGroupID:    req.SeatGroupID,
		Requirements:   req.Requirements,
	}

	if err := discounts.ValidateDiscount(discount); err != nil {
		h.writeValidationError(c, err)
		return
	}

	existing, err := h.store.ListDiscounts()
	if err != nil {
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to list discounts", err.Error()))
		return
	}
	if err := discounts.ValidateUnique(existing, discount); err != nil {
		h.writeValidationError(c, err)
		return
	}

	if err := h.store.SaveDiscount(discount); err != nil {
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to save discount", err.Error()))
		return
	}

	h.log.LogProcess("DISCOUNT_CREATED", "Discount "+discount.Name+" ("+discount.ID+") created")
	c.JSON(http.StatusCreated, utils.SuccessResponse("Discount created", discount))
}

func (h *DiscountHandler) ListForPerformance(c *gin.Context) {
	catalogue, err := h.store.ListDiscountsForPerformance(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to list discounts", err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Discounts retrieved", catalogue))
}

func (h *DiscountHandler) writeValidationError(c *gin.Context, err error) {
	var verr *discounts.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"success": false,
			"message": "Discount validation failed",
			"error":   verr.Message,
			"field":   verr.Field,
		})
		return
	}
	c.JSON(http.StatusBadRequest, utils.ErrorResponse("Discount validation failed", err.Error()))
}
