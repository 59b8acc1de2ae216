package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/splitpos-next/internal/constants"
	"github.com/splitpos-next/internal/models"
	"github.com/splitpos-next/internal/processor"
	"github.com/splitpos-next/internal/queue"
	"github.com/splitpos-next/internal/repository"

	"gorm.io/gorm"
)

func TestRecordSaleIdempotent(t *testing.T) {
	svc, db := setupSaleServiceTest(t, nil)

	handle := &SessionHandle{
		SessionID:        "cs_record_1",
		TenantAccountID:  1,
		AmountTotal:      10000,
		CommissionAmount: 500,
		NetAmount:        9500,
		Currency:         "USD",
		Description:      "coffee",
	}

	first, duplicate, err := svc.RecordSale(handle)
	if err != nil {
		t.Fatalf("first record failed: %v", err)
	}
	if duplicate {
		t.Fatalf("first record reported as duplicate")
	}
	if first.Status != constants.SaleStatusPending {
		t.Fatalf("unexpected status: %s", first.Status)
	}

	second, duplicate, err := svc.RecordSale(handle)
	if err != nil {
		t.Fatalf("second record failed: %v", err)
	}
	if !duplicate {
		t.Fatalf("second record not reported as duplicate")
	}
	if second.ID != first.ID {
		t.Fatalf("duplicate returned a different row: %d vs %d", second.ID, first.ID)
	}

	var count int64
	if err := db.Model(&models.CommissionSale{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one row, got %d", count)
	}
}

func TestRecordSaleConcurrentSameSession(t *testing.T) {
	svc, db := setupSaleServiceTest(t, nil)

	// 单连接串行化写入，避免 sqlite 并发写锁干扰用例本身
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db failed: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	handle := SessionHandle{
		SessionID:        "cs_concurrent_1",
		TenantAccountID:  1,
		AmountTotal:      10000,
		CommissionAmount: 500,
		NetAmount:        9500,
		Currency:         "USD",
	}

	const writers = 8
	var inserted int64
	errs := make(chan error, writers)
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func() {
			defer wg.Done()
			local := handle
			_, duplicate, err := svc.RecordSale(&local)
			if err != nil {
				errs <- err
				return
			}
			if !duplicate {
				atomic.AddInt64(&inserted, 1)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent record failed: %v", err)
	}

	if got := atomic.LoadInt64(&inserted); got != 1 {
		t.Fatalf("expected exactly one non-duplicate insert, got %d", got)
	}
	var count int64
	if err := db.Model(&models.CommissionSale{}).Where("session_id = ?", "cs_concurrent_1").Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one row, got %d", count)
	}
}

func TestRecordSaleDuplicateByPaymentIntent(t *testing.T) {
	svc, _ := setupSaleServiceTest(t, nil)

	base := SessionHandle{
		TenantAccountID:  1,
		AmountTotal:      5000,
		CommissionAmount: 250,
		NetAmount:        4750,
		Currency:         "USD",
	}
	first := base
	first.SessionID = "cs_intent_a"
	first.PaymentIntentID = "pi_shared"
	recorded, _, err := svc.RecordSale(&first)
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}

	// 同一支付意向下的重放使用了不同的会话 ID，仍须收敛到同一行
	second := base
	second.SessionID = "cs_intent_b"
	second.PaymentIntentID = "pi_shared"
	row, duplicate, err := svc.RecordSale(&second)
	if err != nil {
		t.Fatalf("replay record failed: %v", err)
	}
	if !duplicate {
		t.Fatalf("replay not reported as duplicate")
	}
	if row.ID != recorded.ID {
		t.Fatalf("replay resolved to a different row: %d vs %d", row.ID, recorded.ID)
	}
}

func TestRecordSaleAmountMismatch(t *testing.T) {
	svc, _ := setupSaleServiceTest(t, nil)

	_, _, err := svc.RecordSale(&SessionHandle{
		SessionID:        "cs_bad",
		TenantAccountID:  1,
		AmountTotal:      10000,
		CommissionAmount: 500,
		NetAmount:        9000, // 和不等于总额
		Currency:         "USD",
	})
	if !errors.Is(err, ErrAmountInvalid) {
		t.Fatalf("expected ErrAmountInvalid, got: %v", err)
	}
}

func TestConfirmPaymentBackfillsIntent(t *testing.T) {
	svc, _ := setupSaleServiceTest(t, nil)

	recorded, _, err := svc.RecordSale(&SessionHandle{
		SessionID:        "cs_confirm_1",
		TenantAccountID:  1,
		AmountTotal:      10000,
		CommissionAmount: 500,
		NetAmount:        9500,
		Currency:         "USD",
	})
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if recorded.PaymentIntentID != nil {
		t.Fatalf("intent should be empty before confirmation")
	}

	confirmed, err := svc.ConfirmPayment(ConfirmPaymentInput{
		SessionID:       "cs_confirm_1",
		PaymentIntentID: "pi_confirm_1",
	})
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if confirmed.ID != recorded.ID {
		t.Fatalf("confirmed a different row: %d vs %d", confirmed.ID, recorded.ID)
	}
	if confirmed.Status != constants.SaleStatusCompleted {
		t.Fatalf("unexpected status: %s", confirmed.Status)
	}
	if confirmed.PaymentIntentID == nil || *confirmed.PaymentIntentID != "pi_confirm_1" {
		t.Fatalf("intent not backfilled: %+v", confirmed.PaymentIntentID)
	}
	if confirmed.PaidAt == nil {
		t.Fatalf("paid_at not set")
	}
}

func TestConfirmPaymentIdempotent(t *testing.T) {
	svc, db := setupSaleServiceTest(t, nil)

	if _, _, err := svc.RecordSale(&SessionHandle{
		SessionID:        "cs_confirm_twice",
		TenantAccountID:  1,
		AmountTotal:      3000,
		CommissionAmount: 150,
		NetAmount:        2850,
		Currency:         "USD",
	}); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	input := ConfirmPaymentInput{SessionID: "cs_confirm_twice", PaymentIntentID: "pi_twice"}
	first, err := svc.ConfirmPayment(input)
	if err != nil {
		t.Fatalf("first confirm failed: %v", err)
	}
	second, err := svc.ConfirmPayment(input)
	if err != nil {
		t.Fatalf("second confirm failed: %v", err)
	}
	if second.ID != first.ID || second.Status != constants.SaleStatusCompleted {
		t.Fatalf("second confirm diverged: %+v", second)
	}

	var count int64
	if err := db.Model(&models.CommissionSale{}).Where("status = ?", constants.SaleStatusCompleted).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one completed row, got %d", count)
	}
}

func TestConfirmPaymentPrefersIntentHolder(t *testing.T) {
	svc, db := setupSaleServiceTest(t, nil)

	// 同一检出请求的两行：先行记录已持有支付意向 ID
	winner, _, err := svc.RecordSale(&SessionHandle{
		SessionID:        "cs_race_a",
		PaymentIntentID:  "pi_race",
		TenantAccountID:  1,
		AmountTotal:      2000,
		CommissionAmount: 100,
		NetAmount:        1900,
		Currency:         "USD",
	})
	if err != nil {
		t.Fatalf("record winner failed: %v", err)
	}
	if _, _, err := svc.RecordSale(&SessionHandle{
		SessionID:        "cs_race_b",
		TenantAccountID:  1,
		AmountTotal:      2000,
		CommissionAmount: 100,
		NetAmount:        1900,
		Currency:         "USD",
	}); err != nil {
		t.Fatalf("record loser failed: %v", err)
	}

	confirmed, err := svc.ConfirmPayment(ConfirmPaymentInput{
		SessionID:       "cs_race_b",
		PaymentIntentID: "pi_race",
	})
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if confirmed.ID != winner.ID {
		t.Fatalf("confirmation did not land on the intent holder: %d vs %d", confirmed.ID, winner.ID)
	}

	var loser models.CommissionSale
	if err := db.Where("session_id = ?", "cs_race_b").First(&loser).Error; err != nil {
		t.Fatalf("load loser failed: %v", err)
	}
	if loser.Status != constants.SaleStatusPending {
		t.Fatalf("loser row must stay untouched, got status %s", loser.Status)
	}
}

func TestConfirmPaymentUnknownSession(t *testing.T) {
	svc, _ := setupSaleServiceTest(t, nil)

	_, err := svc.ConfirmPayment(ConfirmPaymentInput{SessionID: "cs_missing"})
	if !errors.Is(err, ErrSaleNotFound) {
		t.Fatalf("expected ErrSaleNotFound, got: %v", err)
	}
}

func TestFailSale(t *testing.T) {
	svc, _ := setupSaleServiceTest(t, nil)

	if _, _, err := svc.RecordSale(&SessionHandle{
		SessionID:        "cs_fail_1",
		TenantAccountID:  1,
		AmountTotal:      1000,
		CommissionAmount: 50,
		NetAmount:        950,
		Currency:         "USD",
	}); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	failed, err := svc.FailSale("cs_fail_1")
	if err != nil {
		t.Fatalf("fail failed: %v", err)
	}
	if failed.Status != constants.SaleStatusFailed {
		t.Fatalf("unexpected status: %s", failed.Status)
	}
}

func TestFailSaleKeepsCompleted(t *testing.T) {
	svc, _ := setupSaleServiceTest(t, nil)

	if _, _, err := svc.RecordSale(&SessionHandle{
		SessionID:        "cs_fail_completed",
		TenantAccountID:  1,
		AmountTotal:      1000,
		CommissionAmount: 50,
		NetAmount:        950,
		Currency:         "USD",
	}); err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if _, err := svc.ConfirmPayment(ConfirmPaymentInput{
		SessionID:       "cs_fail_completed",
		PaymentIntentID: "pi_done",
	}); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}

	// 过期通知晚于支付确认到达时不得回退状态
	sale, err := svc.FailSale("cs_fail_completed")
	if err != nil {
		t.Fatalf("fail failed: %v", err)
	}
	if sale.Status != constants.SaleStatusCompleted {
		t.Fatalf("completed sale must not be demoted, got %s", sale.Status)
	}
}

func TestCapturePaymentPaid(t *testing.T) {
	svc, db := setupSaleServiceTest(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"id":             "cs_capture_1",
			"payment_intent": "pi_capture_1",
			"status":         constants.SessionStatusComplete,
			"payment_status": "paid",
			"amount_total":   10000,
			"currency":       "usd",
			"created":        time.Now().Unix(),
		})
	})

	if _, _, err := svc.RecordSale(&SessionHandle{
		SessionID:        "cs_capture_1",
		TenantAccountID:  1,
		AmountTotal:      10000,
		CommissionAmount: 500,
		NetAmount:        9500,
		Currency:         "USD",
	}); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	result, err := svc.CapturePayment(context.Background(), "cs_capture_1")
	if err != nil {
		t.Fatalf("capture failed: %v", err)
	}
	if result.PaymentStatus != "paid" {
		t.Fatalf("unexpected payment status: %s", result.PaymentStatus)
	}
	if result.Sale == nil || result.Sale.Status != constants.SaleStatusCompleted {
		t.Fatalf("sale not completed: %+v", result.Sale)
	}

	var stored models.CommissionSale
	if err := db.Where("session_id = ?", "cs_capture_1").First(&stored).Error; err != nil {
		t.Fatalf("load sale failed: %v", err)
	}
	if stored.PaymentIntentID == nil || *stored.PaymentIntentID != "pi_capture_1" {
		t.Fatalf("intent not backfilled: %+v", stored.PaymentIntentID)
	}
}

func TestCapturePaymentExpired(t *testing.T) {
	svc, _ := setupSaleServiceTest(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"id":             "cs_capture_expired",
			"status":         constants.SessionStatusExpired,
			"payment_status": "unpaid",
		})
	})

	if _, _, err := svc.RecordSale(&SessionHandle{
		SessionID:        "cs_capture_expired",
		TenantAccountID:  1,
		AmountTotal:      1000,
		CommissionAmount: 50,
		NetAmount:        950,
		Currency:         "USD",
	}); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	result, err := svc.CapturePayment(context.Background(), "cs_capture_expired")
	if err != nil {
		t.Fatalf("capture failed: %v", err)
	}
	if result.Sale == nil || result.Sale.Status != constants.SaleStatusFailed {
		t.Fatalf("expired session must fail the sale: %+v", result.Sale)
	}
}

func TestCapturePaymentStillOpen(t *testing.T) {
	svc, _ := setupSaleServiceTest(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"id":             "cs_capture_open",
			"status":         constants.SessionStatusOpen,
			"payment_status": "unpaid",
		})
	})

	if _, _, err := svc.RecordSale(&SessionHandle{
		SessionID:        "cs_capture_open",
		TenantAccountID:  1,
		AmountTotal:      1000,
		CommissionAmount: 50,
		NetAmount:        950,
		Currency:         "USD",
	}); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	result, err := svc.CapturePayment(context.Background(), "cs_capture_open")
	if err != nil {
		t.Fatalf("capture failed: %v", err)
	}
	if result.SessionStatus != constants.SessionStatusOpen {
		t.Fatalf("unexpected session status: %s", result.SessionStatus)
	}
	if result.Sale == nil || result.Sale.Status != constants.SaleStatusPending {
		t.Fatalf("open session must keep the sale pending: %+v", result.Sale)
	}
}

func setupSaleServiceTest(t *testing.T, handler http.HandlerFunc) (*SaleService, *gorm.DB) {
	t.Helper()

	db := setupServiceTestDB(t, "sale_service")

	// 所有用例的销售记录都挂在该租户（ID 为 1）下
	user := createCheckoutTestUser(t, db, "sale-owner@example.com")
	createCheckoutTestTenant(t, db, user.ID, constants.AccountKindProcessor, true, constants.TenantStatusActive)

	baseURL := "http://127.0.0.1:0"
	if handler != nil {
		server := httptest.NewServer(handler)
		t.Cleanup(server.Close)
		baseURL = server.URL
	}
	processorCfg := &processor.Config{
		APIBaseURL: baseURL,
		SecretKey:  "sk_test_123",
	}
	queueClient, err := queue.NewClient(nil)
	if err != nil {
		t.Fatalf("new queue client failed: %v", err)
	}
	return NewSaleService(repository.NewSaleRepository(db), processorCfg, queueClient, time.Minute), db
}
