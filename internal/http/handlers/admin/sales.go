package admin

import (
	"strconv"
	"strings"
	"time"

	handlershared "github.com/splitpos-next/internal/http/handlers/shared"
	"github.com/splitpos-next/internal/http/response"
	"github.com/splitpos-next/internal/repository"

	"github.com/gin-gonic/gin"
)

// AdminListSales 管理端销售记录列表。pending_before 过滤出长期
// 停留在 pending 的记录，用于排查未确认的孤儿会话。
func (h *Handler) AdminListSales(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	filter := repository.SaleListFilter{
		Page:      page,
		PageSize:  pageSize,
		Status:    strings.TrimSpace(c.Query("status")),
		Currency:  strings.ToUpper(strings.TrimSpace(c.Query("currency"))),
		Unsettled: c.Query("unsettled") == "true",
	}
	if raw := strings.TrimSpace(c.Query("tenant_id")); raw != "" {
		if id, err := strconv.ParseUint(raw, 10, 64); err == nil {
			filter.TenantAccountID = uint(id)
		}
	}
	if raw := strings.TrimSpace(c.Query("created_from")); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.CreatedFrom = &t
		}
	}
	if raw := strings.TrimSpace(c.Query("created_to")); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.CreatedTo = &t
		}
	}
	if raw := strings.TrimSpace(c.Query("pending_before")); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.PendingBefore = &t
		}
	}

	sales, total, err := h.SaleService.ListAdmin(filter)
	if err != nil {
		respondError(c, response.CodeInternal, "sale list failed", err)
		return
	}
	response.SuccessWithPage(c, sales, response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: handlershared.TotalPages(total, pageSize),
	})
}
