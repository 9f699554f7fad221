package httpserver

import (
	"errors"
	"net/http"

	"bookstore-pos/internal/domain"
	"bookstore-pos/internal/recent"
	"bookstore-pos/internal/service/catalog"
	"bookstore-pos/internal/service/order"
	"bookstore-pos/internal/service/payment"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func statusFor(err error) int {
	var subErr *order.SubmissionError
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, recent.ErrNoRecentOrder):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, catalog.ErrInvalidProduct):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrEmptyCart), errors.Is(err, domain.ErrInsufficientCash):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrCheckoutInFlight),
		errors.Is(err, domain.ErrPaymentInProgress),
		errors.Is(err, domain.ErrNoActivePayment),
		errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict
	case errors.As(err, &subErr):
		return http.StatusBadGateway
	case errors.Is(err, payment.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *handlers) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError || status == http.StatusBadGateway {
		h.logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	c.JSON(status, gin.H{"error": msg})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "invalid request format",
		"details": err.Error(),
	})
}
