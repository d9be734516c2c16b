package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"movie-membership/internal/domain"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidSignature):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUpstream):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeError(c *gin.Context, log *slog.Logger, err error) {
	status := statusFor(err)
	msg := err.Error()
	switch status {
	case http.StatusBadGateway:
		msg = "payment gateway unavailable, please try again"
	case http.StatusInternalServerError:
		log.Error("request failed", slog.String("path", c.FullPath()), slog.Any("error", err))
		msg = "internal error"
	}
	c.JSON(status, gin.H{"error": msg})
}
