package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"movie-membership/internal/http/middleware"
	"movie-membership/internal/service"
)

type UserHandler struct {
	orders      service.OrderService
	memberships service.MembershipService
	log         *slog.Logger
}

func NewUserHandler(orders service.OrderService, memberships service.MembershipService, log *slog.Logger) *UserHandler {
	return &UserHandler{orders: orders, memberships: memberships, log: log}
}

func (h *UserHandler) Subscription(c *gin.Context) {
	status, err := h.memberships.Status(c.Request.Context(), c.GetString(middleware.ContextUserID), middleware.IsAdmin(c))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *UserHandler) Payments(c *gin.Context) {
	orders, err := h.orders.ListUserOrders(c.Request.Context(), c.GetString(middleware.ContextUserID))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	res := make([]orderResponse, 0, len(orders))
	for i := range orders {
		res = append(res, toOrderResponse(&orders[i]))
	}
	c.JSON(http.StatusOK, res)
}
