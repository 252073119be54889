package handlers

import (
	"net/http"

	"github.com/Dhoini/Entitlement-microservice/internal/api/rest/middleware"
	"github.com/Dhoini/Entitlement-microservice/internal/domain"
	"github.com/Dhoini/Entitlement-microservice/internal/service"
	"github.com/Dhoini/Entitlement-microservice/pkg/logger"
	"github.com/Dhoini/Entitlement-microservice/pkg/req"
	"github.com/gin-gonic/gin"
)

// CreateCheckoutRequest тело запроса на создание сессии оплаты
type CreateCheckoutRequest struct {
	Plan string `json:"plan" validate:"required"`
	// UserID необязателен, но если передан, должен совпадать с токеном
	UserID string `json:"userId"`
}

// CheckoutHandler обработчик создания сессий оплаты
type CheckoutHandler struct {
	checkout *service.CheckoutService
	log      *logger.Logger
}

// NewCheckoutHandler создает обработчик
func NewCheckoutHandler(checkout *service.CheckoutService, log *logger.Logger) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout, log: log}
}

// CreateSession создает hosted checkout сессию для текущего пользователя
func (h *CheckoutHandler) CreateSession(c *gin.Context) {
	body, err := req.HandleBody[CreateCheckoutRequest](c.Writer, c.Request, h.log)
	if err != nil {
		c.Abort()
		return
	}

	userID := middleware.UserID(c)
	if body.UserID != "" && body.UserID != userID {
		writeError(c, domain.NewEntitlementError(domain.CodeUnauthorized,
			"Cannot start checkout for another user", userID, http.StatusForbidden, domain.ErrUnauthorized), h.log)
		return
	}

	out, err := h.checkout.CreateCheckoutSession(c.Request.Context(), service.CreateCheckoutInput{
		UserID: userID,
		Email:  middleware.UserEmail(c),
		Plan:   body.Plan,
	})
	if err != nil {
		writeError(c, err, h.log)
		return
	}

	c.JSON(http.StatusOK, out)
}
