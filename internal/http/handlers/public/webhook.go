package public

import (
	"encoding/json"
	"errors"
	"io"

	handlershared "github.com/splitpos-next/internal/http/handlers/shared"
	"github.com/splitpos-next/internal/http/response"
	"github.com/splitpos-next/internal/service"

	"github.com/gin-gonic/gin"
)

type webhookEvent struct {
	Type string `json:"type"`
	Data struct {
		Object map[string]interface{} `json:"object"`
	} `json:"data"`
}

// ProcessorWebhook 处理方事件回调。未知事件直接确认，避免处理方
// 反复重投。确认与轮询共用同一套状态迁移，重复事件天然幂等。
func (h *Handler) ProcessorWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		respondError(c, response.CodeBadRequest, "webhook payload invalid", err)
		return
	}

	log := handlershared.RequestLog(c)
	objectID, _ := event.Data.Object["id"].(string)

	switch event.Type {
	case "checkout.session.completed":
		paymentStatus, _ := event.Data.Object["payment_status"].(string)
		if paymentStatus != "paid" {
			log.Debugw("webhook_session_completed_unpaid", "session_id", objectID, "payment_status", paymentStatus)
			break
		}
		paymentIntentID, _ := event.Data.Object["payment_intent"].(string)
		if _, err := h.SaleService.ConfirmPayment(service.ConfirmPaymentInput{
			SessionID:       objectID,
			PaymentIntentID: paymentIntentID,
		}); err != nil && !errors.Is(err, service.ErrSaleNotFound) {
			respondError(c, response.CodeInternal, "webhook confirm failed", err)
			return
		}
	case "checkout.session.expired":
		if _, err := h.SaleService.FailSale(objectID); err != nil && !errors.Is(err, service.ErrSaleNotFound) {
			respondError(c, response.CodeInternal, "webhook expire failed", err)
			return
		}
	case "account.updated":
		if _, err := h.TenantService.CompleteOnboarding(c.Request.Context(), objectID); err != nil &&
			!errors.Is(err, service.ErrTenantNotFound) {
			respondError(c, response.CodeInternal, "webhook account update failed", err)
			return
		}
	default:
		log.Debugw("webhook_event_ignored", "type", event.Type)
	}

	response.Success(c, gin.H{"received": true})
}
