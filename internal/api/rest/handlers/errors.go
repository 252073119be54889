package handlers

import (
	"errors"
	"net/http"

	"github.com/Dhoini/Entitlement-microservice/internal/domain"
	"github.com/Dhoini/Entitlement-microservice/pkg/logger"
	"github.com/Dhoini/Entitlement-microservice/pkg/res"
	"github.com/gin-gonic/gin"
)

// publicMessages тексты для ответов, в которых детали ошибки не раскрываются
var publicMessages = map[string]string{
	domain.CodeConfiguration:   "Service is not configured for this request",
	domain.CodeStoreWrite:      "Failed to save entitlement",
	domain.CodeSessionCreation: "Failed to create checkout session",
	domain.CodeProviderTimeout: "Payment provider did not respond in time",
	domain.CodeNotFound:        "Entitlement not found",
	domain.CodeInternal:        "Internal server error",
}

// writeError отвечает клиенту кодом и статусом, соответствующими ошибке.
// Для 4xx отдается сообщение EntitlementError, остальное скрывается.
func writeError(c *gin.Context, err error, log *logger.Logger) {
	code, status := domain.StatusOf(err)

	message, ok := publicMessages[code]
	var ee *domain.EntitlementError
	if status < http.StatusInternalServerError && errors.As(err, &ee) && ee.Message != "" {
		message = ee.Message
	} else if !ok {
		message = http.StatusText(status)
	}

	log.Debugw("Request failed", "code", code, "status", status, "error", err)
	res.JsonErrorResponse(c.Writer, res.ErrorResponse{Error: message, Code: code}, status, log)
	c.Abort()
}
