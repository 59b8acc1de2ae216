package public

import (
	"errors"

	"github.com/splitpos-next/internal/http/response"
	"github.com/splitpos-next/internal/service"

	"github.com/gin-gonic/gin"
)

type registerTenantRequest struct {
	Country      string `json:"country" binding:"required"`
	BusinessName string `json:"business_name"`
	Email        string `json:"email"`
}

// RegisterTenant 用户入驻为收款租户
func (h *Handler) RegisterTenant(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}

	var req registerTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}

	result, err := h.TenantService.Register(service.RegisterTenantInput{
		UserID:       userID,
		Country:      req.Country,
		BusinessName: req.BusinessName,
		Email:        req.Email,
		Context:      c.Request.Context(),
	})
	if err != nil {
		if errors.Is(err, service.ErrTenantExists) {
			// 重复入驻返回已有账户，不再新建
			response.ErrorWithData(c, response.CodeConflict, "tenant account already exists", gin.H{
				"tenant": result.Tenant,
			})
			return
		}
		respondTenantRegisterError(c, err)
		return
	}

	response.Success(c, gin.H{
		"tenant":         result.Tenant,
		"onboarding_url": result.OnboardingURL,
	})
}

// GetMyTenant 查询当前用户的租户账户
func (h *Handler) GetMyTenant(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}

	tenant, err := h.TenantService.GetByUserID(userID)
	if err != nil {
		if errors.Is(err, service.ErrTenantNotFound) {
			respondError(c, response.CodeNotFound, "tenant account not found", nil)
			return
		}
		respondError(c, response.CodeInternal, "tenant fetch failed", err)
		return
	}

	response.Success(c, gin.H{
		"tenant":          tenant,
		"commission_rate": h.TenantService.EffectiveRate(tenant),
	})
}

// GetOnboardingLink 重新签发入驻引导链接
func (h *Handler) GetOnboardingLink(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}

	link, err := h.TenantService.OnboardingLink(c.Request.Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTenantNotFound):
			respondError(c, response.CodeNotFound, "tenant account not found", nil)
		case errors.Is(err, service.ErrTenantVirtual):
			respondError(c, response.CodeBadRequest, "tenant account has no onboarding flow", nil)
		case errors.Is(err, service.ErrProcessorUnavailable):
			respondError(c, response.CodeUpstream, "payment processor unavailable", err)
		default:
			respondError(c, response.CodeInternal, "onboarding link failed", err)
		}
		return
	}

	response.Success(c, gin.H{"onboarding_url": link})
}
