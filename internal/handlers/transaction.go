package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"box-office/internal/payable"
	"box-office/internal/storage"
	"box-office/internal/utils"
)

type TransactionHandler struct {
	payments *payable.Service
}

func NewTransactionHandler(payments *payable.Service) *TransactionHandler {
	return &TransactionHandler{
		payments: payments,
	}
}

// SyncTransaction pulls the current gateway status for a pending transaction
// and applies any resulting state transitions.
func (h *TransactionHandler) SyncTransaction(c *gin.Context) {
	txn, err := h.payments.SyncTransaction(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, utils.ErrorResponse("Transaction not found", err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to sync transaction", err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Transaction synced", txn))
}
