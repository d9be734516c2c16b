package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"movie-membership/internal/domain"
	"movie-membership/internal/http/middleware"
	"movie-membership/internal/service"
)

type MomoHandler struct {
	orders    service.OrderService
	callbacks service.CallbackService
	log       *slog.Logger
}

func NewMomoHandler(orders service.OrderService, callbacks service.CallbackService, log *slog.Logger) *MomoHandler {
	return &MomoHandler{orders: orders, callbacks: callbacks, log: log}
}

func (h *MomoHandler) CreateOrder(c *gin.Context) {
	if middleware.IsAdmin(c) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "admin accounts do not need a membership"})
		return
	}

	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	order, err := h.orders.Checkout(c.Request.Context(), c.GetString(middleware.ContextUserID), req.PlanCode, req.Period)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, createOrderResponse{
		PayURL:  order.PayURL,
		OrderID: order.OrderID,
		Amount:  order.Amount,
	})
}

// IPN acknowledges gateway notifications. A 2xx body starting with "0"
// stops redelivery; anything else makes the gateway retry.
func (h *MomoHandler) IPN(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.String(http.StatusBadRequest, "unreadable body")
		return
	}

	res, err := h.callbacks.HandleCallback(c.Request.Context(), raw)
	switch {
	case errors.Is(err, domain.ErrInvalidSignature):
		c.String(http.StatusBadRequest, "signature mismatch")
		return
	case errors.Is(err, domain.ErrNotFound):
		c.String(http.StatusNotFound, "payment not found")
		return
	case errors.Is(err, domain.ErrValidation):
		c.String(http.StatusBadRequest, "malformed notification")
		return
	case err != nil:
		h.log.Error("ipn handling failed", slog.Any("error", err))
		c.String(http.StatusInternalServerError, "server error")
		return
	}

	switch res.Outcome {
	case service.OutcomeDuplicate:
		c.String(http.StatusOK, "0 | already processed")
	case service.OutcomeAmountMismatch:
		c.String(http.StatusBadRequest, "amount mismatch")
	case service.OutcomePaid:
		c.String(http.StatusOK, "0 | success")
	default:
		c.String(http.StatusOK, "0 | failure recorded")
	}
}

func (h *MomoHandler) Return(c *gin.Context) {
	res, err := h.callbacks.VerifyReturn(c.Request.Context(), c.Request.URL.Query())
	switch {
	case errors.Is(err, domain.ErrInvalidSignature):
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "reason": "signature"})
		return
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "reason": "order-not-found"})
		return
	case errors.Is(err, domain.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "reason": "malformed"})
		return
	case err != nil:
		h.log.Error("return verification failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "reason": "server"})
		return
	}
	c.JSON(http.StatusOK, res)
}

// GetOwnOrder lets the buyer poll an order after the redirect.
func (h *MomoHandler) GetOwnOrder(c *gin.Context) {
	order, err := h.orders.GetOrder(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	if order.UserID != c.GetString(middleware.ContextUserID) && !middleware.IsAdmin(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order))
}

func (h *MomoHandler) AdminGetOrder(c *gin.Context) {
	order, err := h.orders.GetOrder(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, toAdminOrderResponse(order))
}

func (h *MomoHandler) AdminOverrideStatus(c *gin.Context) {
	var req overrideStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}

	order, err := h.orders.OverrideStatus(c.Request.Context(), c.Param("orderId"), domain.OrderStatus(req.Status))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	h.log.Info("order status overridden",
		slog.String("order_id", order.OrderID),
		slog.String("status", string(order.Status)),
		slog.String("admin_id", c.GetString(middleware.ContextUserID)),
	)
	c.JSON(http.StatusOK, toAdminOrderResponse(order))
}
