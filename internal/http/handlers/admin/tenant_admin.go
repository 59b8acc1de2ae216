package admin

import (
	"errors"
	"strconv"
	"strings"

	handlershared "github.com/splitpos-next/internal/http/handlers/shared"
	"github.com/splitpos-next/internal/http/response"
	"github.com/splitpos-next/internal/repository"
	"github.com/splitpos-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// AdminUpdateTenantRateRequest 管理端调整佣金比例请求
type AdminUpdateTenantRateRequest struct {
	Rate string `json:"rate" binding:"required"` // 0~1 小数字符串
}

// AdminUpdateTenantStatusRequest 管理端调整租户状态请求
type AdminUpdateTenantStatusRequest struct {
	Status string `json:"status" binding:"required"` // active / disabled
}

// AdminListTenants 管理端租户列表
func (h *Handler) AdminListTenants(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	filter := repository.TenantListFilter{
		Page:        page,
		PageSize:    pageSize,
		Country:     strings.ToUpper(strings.TrimSpace(c.Query("country"))),
		AccountKind: strings.TrimSpace(c.Query("account_kind")),
		Status:      strings.TrimSpace(c.Query("status")),
	}
	if raw := strings.TrimSpace(c.Query("can_split")); raw != "" {
		canSplit := raw == "true"
		filter.CanSplit = &canSplit
	}

	tenants, total, err := h.TenantService.ListAdmin(filter)
	if err != nil {
		respondError(c, response.CodeInternal, "tenant list failed", err)
		return
	}
	response.SuccessWithPage(c, tenants, response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: handlershared.TotalPages(total, pageSize),
	})
}

// AdminUpdateTenantRate 管理端调整租户佣金比例
func (h *Handler) AdminUpdateTenantRate(c *gin.Context) {
	tenantID, ok := parsePathUint(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "tenant id invalid", nil)
		return
	}
	var req AdminUpdateTenantRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	rate, err := decimal.NewFromString(strings.TrimSpace(req.Rate))
	if err != nil {
		respondError(c, response.CodeBadRequest, "commission rate invalid", nil)
		return
	}

	tenant, err := h.TenantService.UpdateRate(tenantID, rate)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRateInvalid):
			respondError(c, response.CodeBadRequest, "commission rate invalid", nil)
		case errors.Is(err, service.ErrTenantNotFound):
			respondError(c, response.CodeNotFound, "tenant account not found", nil)
		default:
			respondError(c, response.CodeInternal, "tenant rate update failed", err)
		}
		return
	}
	response.Success(c, tenant)
}

// AdminPromoteTenant 为虚拟账户租户补建真实处理方账户
func (h *Handler) AdminPromoteTenant(c *gin.Context) {
	tenantID, ok := parsePathUint(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "tenant id invalid", nil)
		return
	}

	result, err := h.TenantService.Promote(c.Request.Context(), tenantID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTenantNotFound):
			respondError(c, response.CodeNotFound, "tenant account not found", nil)
		case errors.Is(err, service.ErrTenantNotVirtual):
			respondError(c, response.CodeBadRequest, "tenant account is not virtual", nil)
		case errors.Is(err, service.ErrProcessorUnavailable):
			respondError(c, response.CodeUpstream, "payment processor unavailable", err)
		default:
			respondError(c, response.CodeInternal, "tenant promote failed", err)
		}
		return
	}
	response.Success(c, gin.H{
		"tenant":         result.Tenant,
		"onboarding_url": result.OnboardingURL,
	})
}

// AdminUpdateTenantStatus 管理端启用/停用租户
func (h *Handler) AdminUpdateTenantStatus(c *gin.Context) {
	tenantID, ok := parsePathUint(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "tenant id invalid", nil)
		return
	}
	var req AdminUpdateTenantStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}

	tenant, err := h.TenantService.SetStatus(tenantID, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTenantStatusInvalid):
			respondError(c, response.CodeBadRequest, "tenant status invalid", nil)
		case errors.Is(err, service.ErrTenantNotFound):
			respondError(c, response.CodeNotFound, "tenant account not found", nil)
		default:
			respondError(c, response.CodeInternal, "tenant status update failed", err)
		}
		return
	}
	response.Success(c, tenant)
}
