package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/Dhoini/Entitlement-microservice/internal/domain"
	"github.com/Dhoini/Entitlement-microservice/internal/service"
	"github.com/Dhoini/Entitlement-microservice/pkg/logger"
	"github.com/Dhoini/Entitlement-microservice/pkg/res"
	"github.com/gin-gonic/gin"
)

const (
	// maxWebhookBodyBytes Stripe не присылает события больше 64 KiB
	maxWebhookBodyBytes = 65536

	signatureHeader = "Stripe-Signature"
)

// WebhookHandler принимает события Stripe
type WebhookHandler struct {
	webhooks *service.WebhookService
	timeout  time.Duration
	log      *logger.Logger
}

// NewWebhookHandler создает обработчик. timeout ограничивает запись в хранилище.
func NewWebhookHandler(webhooks *service.WebhookService, timeout time.Duration, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks, timeout: timeout, log: log}
}

// HandleStripeWebhook проверяет подпись и применяет событие. 2xx означает,
// что событие обработано или сознательно пропущено.
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			res.JsonErrorResponse(c.Writer, res.ErrorResponse{Error: "Webhook payload too large", Code: domain.CodeInvalidInput},
				http.StatusRequestEntityTooLarge, h.log)
			c.Abort()
			return
		}
		res.JsonErrorResponse(c.Writer, res.ErrorResponse{Error: "Failed to read webhook body", Code: domain.CodeInvalidInput},
			http.StatusBadRequest, h.log)
		c.Abort()
		return
	}

	// обработка доводится до конца, даже если Stripe оборвал соединение
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), h.timeout)
	defer cancel()

	outcome, err := h.webhooks.ProcessWebhook(ctx, payload, c.GetHeader(signatureHeader))
	if err != nil {
		writeError(c, err, h.log)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true, "outcome": outcome})
}
