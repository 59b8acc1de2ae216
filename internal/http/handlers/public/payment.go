package public

import (
	"errors"
	"strings"

	"github.com/splitpos-next/internal/http/response"
	"github.com/splitpos-next/internal/service"

	"github.com/gin-gonic/gin"
)

type createPaymentRequest struct {
	Amount      int64  `json:"amount" binding:"required"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
}

// CreatePayment 创建抽佣支付会话并落库销售记录
func (h *Handler) CreatePayment(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}

	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}

	tenant, err := h.TenantService.GetByUserID(userID)
	if err != nil {
		if errors.Is(err, service.ErrTenantNotFound) {
			respondError(c, response.CodeNotFound, "tenant account not found", nil)
			return
		}
		respondError(c, response.CodeInternal, "payment create failed", err)
		return
	}

	handle, err := h.CheckoutService.CreateSession(service.CreateSessionInput{
		TenantID:         tenant.ID,
		Amount:           req.Amount,
		Currency:         req.Currency,
		Description:      req.Description,
		RequestingUserID: userID,
		Context:          c.Request.Context(),
	})
	if err != nil {
		respondPaymentCreateError(c, err)
		return
	}

	sale, duplicate, err := h.SaleService.RecordSale(handle)
	if err != nil {
		// 会话已在处理方建立，落库失败需排查后人工处理
		respondError(c, response.CodeInternal, "sale record failed", err)
		return
	}

	response.Success(c, gin.H{
		"session_id":        handle.SessionID,
		"pay_url":           handle.PayURL,
		"amount_total":      handle.AmountTotal,
		"commission_amount": handle.CommissionAmount,
		"net_amount":        handle.NetAmount,
		"currency":          handle.Currency,
		"sale":              sale,
		"duplicate":         duplicate,
	})
}

// CapturePayment 主动查询处理方会话状态并推进销售记录
func (h *Handler) CapturePayment(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}

	sessionID := strings.TrimSpace(c.Param("session_id"))
	if sessionID == "" {
		respondError(c, response.CodeBadRequest, "session_id required", nil)
		return
	}

	sale, err := h.SaleService.GetBySessionID(sessionID)
	if err != nil {
		respondPaymentCaptureError(c, err)
		return
	}
	tenant, err := h.TenantService.GetByUserID(userID)
	if err != nil || tenant == nil || sale.TenantAccountID != tenant.ID {
		respondError(c, response.CodeForbidden, "commission sale not owned by caller", nil)
		return
	}

	result, err := h.SaleService.CapturePayment(c.Request.Context(), sessionID)
	if err != nil {
		respondPaymentCaptureError(c, err)
		return
	}

	response.Success(c, gin.H{
		"session_status": result.SessionStatus,
		"payment_status": result.PaymentStatus,
		"sale":           result.Sale,
	})
}

// GetPayment 查询单条销售记录
func (h *Handler) GetPayment(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}

	sessionID := strings.TrimSpace(c.Param("session_id"))
	sale, err := h.SaleService.GetBySessionID(sessionID)
	if err != nil {
		respondPaymentCaptureError(c, err)
		return
	}
	tenant, err := h.TenantService.GetByUserID(userID)
	if err != nil || tenant == nil || sale.TenantAccountID != tenant.ID {
		respondError(c, response.CodeForbidden, "commission sale not owned by caller", nil)
		return
	}

	response.Success(c, sale)
}
