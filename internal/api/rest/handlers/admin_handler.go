package handlers

import (
	"net/http"

	"github.com/Dhoini/Entitlement-microservice/internal/service"
	"github.com/Dhoini/Entitlement-microservice/pkg/logger"
	"github.com/Dhoini/Entitlement-microservice/pkg/req"
	"github.com/gin-gonic/gin"
)

// SetTierRequest тело административного изменения уровня
type SetTierRequest struct {
	Tier string `json:"tier" validate:"required"`
}

// AdminHandler административные операции над записями любых пользователей
type AdminHandler struct {
	entitlements *service.EntitlementService
	log          *logger.Logger
}

func NewAdminHandler(entitlements *service.EntitlementService, log *logger.Logger) *AdminHandler {
	return &AdminHandler{entitlements: entitlements, log: log}
}

// GetEntitlement возвращает запись пользователя из пути
func (h *AdminHandler) GetEntitlement(c *gin.Context) {
	rec, err := h.entitlements.Get(c.Request.Context(), c.Param("userId"))
	if err != nil {
		writeError(c, err, h.log)
		return
	}
	c.JSON(http.StatusOK, newEntitlementView(rec))
}

// SetTier выставляет уровень пользователю из пути
func (h *AdminHandler) SetTier(c *gin.Context) {
	body, err := req.HandleBody[SetTierRequest](c.Writer, c.Request, h.log)
	if err != nil {
		c.Abort()
		return
	}

	userID := c.Param("userId")
	rec, err := h.entitlements.SetTier(c.Request.Context(), userID, body.Tier)
	if err != nil {
		writeError(c, err, h.log)
		return
	}

	h.log.Infow("Admin tier override", "userID", userID, "tier", rec.MembershipTier)
	c.JSON(http.StatusOK, newEntitlementView(rec))
}
