package admin

import (
	"strconv"

	handlershared "github.com/splitpos-next/internal/http/handlers/shared"
	"github.com/splitpos-next/internal/http/response"
	"github.com/splitpos-next/internal/repository"

	"github.com/gin-gonic/gin"
)

// RunSettlement 同步执行一次手动结算批次并返回报告
func (h *Handler) RunSettlement(c *gin.Context) {
	report, err := h.SettlementService.Run(c.Request.Context())
	if err != nil {
		respondError(c, response.CodeInternal, "settlement run failed", err)
		return
	}
	response.Success(c, report)
}

// ListSettlementRuns 结算批次历史列表
func (h *Handler) ListSettlementRuns(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	runs, total, err := h.SettlementService.ListRuns(repository.SettlementRunListFilter{
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "settlement run list failed", err)
		return
	}
	response.SuccessWithPage(c, runs, response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: handlershared.TotalPages(total, pageSize),
	})
}
