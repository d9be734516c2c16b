package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"movie-membership/internal/repo"
)

type PlanHandler struct {
	plans repo.PlanRepo
	log   *slog.Logger
}

func NewPlanHandler(plans repo.PlanRepo, log *slog.Logger) *PlanHandler {
	return &PlanHandler{plans: plans, log: log}
}

func (h *PlanHandler) List(c *gin.Context) {
	plans, err := h.plans.ListActive(c.Request.Context())
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, plans)
}
