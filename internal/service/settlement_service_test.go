package service

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/splitpos-next/internal/constants"
	"github.com/splitpos-next/internal/models"
	"github.com/splitpos-next/internal/processor"
	"github.com/splitpos-next/internal/repository"

	"gorm.io/gorm"
)

func TestSettlementRun(t *testing.T) {
	svc, db := setupSettlementTest(t)

	userA := createCheckoutTestUser(t, db, "settle-a@example.com")
	userB := createCheckoutTestUser(t, db, "settle-b@example.com")
	userC := createCheckoutTestUser(t, db, "settle-c@example.com")
	userD := createCheckoutTestUser(t, db, "settle-d@example.com")

	// 处理方账户、未开分账：正常结算对象
	tenantOK := createCheckoutTestTenant(t, db, userA.ID, constants.AccountKindProcessor, false, constants.TenantStatusActive)
	// 虚拟账户：跳过
	tenantVirtual := createCheckoutTestTenant(t, db, userB.ID, constants.AccountKindVirtual, false, constants.TenantStatusActive)
	// 处理方账户、目标账户被拒：失败
	tenantFail := createCheckoutTestTenant(t, db, userC.ID, constants.AccountKindProcessor, false, constants.TenantStatusActive)
	tenantFail.AccountID = "acct_reject"
	if err := db.Save(tenantFail).Error; err != nil {
		t.Fatalf("save tenant failed: %v", err)
	}
	// 自动分账租户：不进入批次
	tenantSplit := createCheckoutTestTenant(t, db, userD.ID, constants.AccountKindProcessor, true, constants.TenantStatusActive)

	createSettledSale(t, db, tenantOK.ID, "cs_settle_ok", 9500)
	createSettledSale(t, db, tenantVirtual.ID, "cs_settle_virtual", 4750)
	createSettledSale(t, db, tenantFail.ID, "cs_settle_fail", 1900)
	createSettledSale(t, db, tenantSplit.ID, "cs_settle_split", 950)

	report, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if report.TransferCount != 1 || report.TotalAmount != 9500 {
		t.Fatalf("unexpected transfer totals: count=%d amount=%d", report.TransferCount, report.TotalAmount)
	}
	if len(report.Skipped) != 1 || report.Skipped[0].Reason != constants.SkipReasonNotTransferable {
		t.Fatalf("unexpected skipped: %+v", report.Skipped)
	}
	if len(report.Failures) != 1 || report.Failures[0].TenantID != tenantFail.ID {
		t.Fatalf("unexpected failures: %+v", report.Failures)
	}
	if report.Transfers[0].Destination != tenantOK.AccountID {
		t.Fatalf("unexpected destination: %s", report.Transfers[0].Destination)
	}

	// 成功记录回填 transfer_id 并落结算转账行
	var settled models.CommissionSale
	if err := db.Where("session_id = ?", "cs_settle_ok").First(&settled).Error; err != nil {
		t.Fatalf("load sale failed: %v", err)
	}
	if settled.TransferID == nil {
		t.Fatalf("transfer_id not backfilled")
	}
	var transfer models.SettlementTransfer
	if err := db.First(&transfer, *settled.TransferID).Error; err != nil {
		t.Fatalf("load transfer failed: %v", err)
	}
	if transfer.Amount != 9500 || transfer.ProviderRef == "" {
		t.Fatalf("unexpected transfer row: %+v", transfer)
	}

	// 重跑只重试失败子集：已结算行不再发起转账
	second, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if second.TransferCount != 0 {
		t.Fatalf("second run must not repeat settled transfers, got %d", second.TransferCount)
	}
	if len(second.Failures) != 1 {
		t.Fatalf("second run must retry the failed sale, got %+v", second.Failures)
	}

	// 两次批次均落汇总记录
	runs, total, err := svc.ListRuns(repository.SettlementRunListFilter{Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("list runs failed: %v", err)
	}
	if total != 2 || len(runs) != 2 {
		t.Fatalf("expected two persisted runs, got total=%d len=%d", total, len(runs))
	}
	if runs[1].TransferCount != 1 || runs[1].FailedCount != 1 || runs[1].SkippedCount != 1 {
		t.Fatalf("unexpected first run summary: %+v", runs[1])
	}
}

func TestSettlementRunRetriesFailureAfterFix(t *testing.T) {
	svc, db := setupSettlementTest(t)

	user := createCheckoutTestUser(t, db, "settle-retry@example.com")
	tenant := createCheckoutTestTenant(t, db, user.ID, constants.AccountKindProcessor, false, constants.TenantStatusActive)
	tenant.AccountID = "acct_reject"
	if err := db.Save(tenant).Error; err != nil {
		t.Fatalf("save tenant failed: %v", err)
	}
	createSettledSale(t, db, tenant.ID, "cs_retry_1", 2850)

	report, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if report.TransferCount != 0 || len(report.Failures) != 1 {
		t.Fatalf("expected one failure: %+v", report)
	}

	// 修复目标账户后重跑即可结清
	tenant.AccountID = "acct_fixed"
	if err := db.Save(tenant).Error; err != nil {
		t.Fatalf("save tenant failed: %v", err)
	}
	report, err = svc.Run(context.Background())
	if err != nil {
		t.Fatalf("rerun failed: %v", err)
	}
	if report.TransferCount != 1 || report.TotalAmount != 2850 {
		t.Fatalf("rerun did not settle the fixed sale: %+v", report)
	}
}

func TestSettlementRunEmptyBatch(t *testing.T) {
	svc, _ := setupSettlementTest(t)

	report, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if report.TransferCount != 0 || len(report.Failures) != 0 || len(report.Skipped) != 0 {
		t.Fatalf("empty batch must be a no-op: %+v", report)
	}
}

func setupSettlementTest(t *testing.T) (*SettlementService, *gorm.DB) {
	t.Helper()

	db := setupServiceTestDB(t, "settlement_service")

	transferSeq := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/transfers" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form failed: %v", err)
		}
		if r.PostForm.Get("destination") == "acct_reject" {
			w.WriteHeader(http.StatusPaymentRequired)
			writeJSON(w, map[string]interface{}{
				"error": map[string]interface{}{"message": "insufficient platform balance"},
			})
			return
		}
		if !strings.HasPrefix(r.PostForm.Get("transfer_group"), "sale_") {
			t.Fatalf("missing transfer group, form: %v", r.PostForm)
		}
		transferSeq++
		writeJSON(w, map[string]interface{}{
			"id":          fmt.Sprintf("tr_%d", transferSeq),
			"amount":      r.PostForm.Get("amount"),
			"destination": r.PostForm.Get("destination"),
		})
	}))
	t.Cleanup(server.Close)

	processorCfg := &processor.Config{
		APIBaseURL: server.URL,
		SecretKey:  "sk_test_123",
	}
	return NewSettlementService(
		repository.NewSaleRepository(db),
		repository.NewTenantRepository(db),
		repository.NewSettlementRepository(db),
		processorCfg,
		0,
		0,
	), db
}

func createSettledSale(t *testing.T, db *gorm.DB, tenantID uint, sessionID string, net int64) *models.CommissionSale {
	t.Helper()

	now := time.Now()
	intent := "pi_" + sessionID
	sale := &models.CommissionSale{
		TenantAccountID:  tenantID,
		SessionID:        sessionID,
		PaymentIntentID:  &intent,
		AmountTotal:      net + net/19,
		CommissionAmount: net / 19,
		NetAmount:        net,
		Currency:         "USD",
		Status:           constants.SaleStatusCompleted,
		PaidAt:           &now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := db.Create(sale).Error; err != nil {
		t.Fatalf("create sale failed: %v", err)
	}
	return sale
}
