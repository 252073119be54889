package handlers

import (
	"net/http"

	"github.com/Dhoini/Entitlement-microservice/config"
	"github.com/Dhoini/Entitlement-microservice/internal/domain"
	"github.com/gin-gonic/gin"
)

// PlanInfo описание плана для страницы с ценами
type PlanInfo struct {
	Plan    domain.Tier     `json:"plan"`
	Regions []domain.Region `json:"regions"`
	// Configured false, если для плана не задан price ID и оплата вернет ошибку
	Configured bool `json:"configured"`
}

// PlansHandler список платных планов
type PlansHandler struct {
	plans []PlanInfo
}

// NewPlansHandler собирает список один раз: цены меняются только с перезапуском.
func NewPlansHandler(prices map[string]string) *PlansHandler {
	plans := make([]PlanInfo, 0, len(domain.PaidTiers))
	for _, tier := range domain.PaidTiers {
		plans = append(plans, PlanInfo{
			Plan:       tier,
			Regions:    domain.AccessibleRegions(tier),
			Configured: !config.IsPlaceholder(prices[string(tier)]),
		})
	}
	return &PlansHandler{plans: plans}
}

func (h *PlansHandler) ListPlans(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"plans": h.plans})
}
