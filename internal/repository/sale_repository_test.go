package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/splitpos-next/internal/constants"
	"github.com/splitpos-next/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func TestInsertIfAbsent(t *testing.T) {
	repo, db := setupSaleRepoTest(t)

	first := newRepoSale(1, "cs_repo_1", nil)
	inserted, err := repo.InsertIfAbsent(first)
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if !inserted {
		t.Fatalf("first insert reported as absent")
	}

	// 同会话 ID 重放不落新行
	replay := newRepoSale(1, "cs_repo_1", nil)
	inserted, err = repo.InsertIfAbsent(replay)
	if err != nil {
		t.Fatalf("replay insert failed: %v", err)
	}
	if inserted {
		t.Fatalf("replay insert must be a no-op")
	}

	var count int64
	if err := db.Model(&models.CommissionSale{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one row, got %d", count)
	}
}

func TestInsertIfAbsentDuplicateIntent(t *testing.T) {
	repo, _ := setupSaleRepoTest(t)

	intent := "pi_repo_dup"
	if inserted, err := repo.InsertIfAbsent(newRepoSale(1, "cs_repo_a", &intent)); err != nil || !inserted {
		t.Fatalf("insert failed: inserted=%v err=%v", inserted, err)
	}

	// 不同会话但同一支付意向：唯一索引拦截
	inserted, err := repo.InsertIfAbsent(newRepoSale(1, "cs_repo_b", &intent))
	if err != nil {
		t.Fatalf("duplicate intent insert failed: %v", err)
	}
	if inserted {
		t.Fatalf("duplicate intent insert must be a no-op")
	}
}

func TestInsertIfAbsentAllowsMultipleNullIntents(t *testing.T) {
	repo, _ := setupSaleRepoTest(t)

	// 确认前意向为空，可空唯一索引不得拦截多条未确认记录
	if inserted, err := repo.InsertIfAbsent(newRepoSale(1, "cs_null_a", nil)); err != nil || !inserted {
		t.Fatalf("first insert failed: inserted=%v err=%v", inserted, err)
	}
	if inserted, err := repo.InsertIfAbsent(newRepoSale(1, "cs_null_b", nil)); err != nil || !inserted {
		t.Fatalf("second insert failed: inserted=%v err=%v", inserted, err)
	}
}

func TestListUnsettled(t *testing.T) {
	repo, db := setupSaleRepoTest(t)

	manual := createRepoTenant(t, db, 1, false)
	split := createRepoTenant(t, db, 2, true)

	// 进入批次：已完成、未结算、租户未开分账
	eligible := newRepoSale(manual.ID, "cs_unsettled_1", nil)
	eligible.Status = constants.SaleStatusCompleted
	mustCreate(t, db, eligible)

	// 未完成：排除
	pending := newRepoSale(manual.ID, "cs_unsettled_2", nil)
	mustCreate(t, db, pending)

	// 已结算：排除
	transferID := uint(7)
	settled := newRepoSale(manual.ID, "cs_unsettled_3", nil)
	settled.Status = constants.SaleStatusCompleted
	settled.TransferID = &transferID
	mustCreate(t, db, settled)

	// 分账租户：排除
	splitSale := newRepoSale(split.ID, "cs_unsettled_4", nil)
	splitSale.Status = constants.SaleStatusCompleted
	mustCreate(t, db, splitSale)

	sales, err := repo.ListUnsettled(0)
	if err != nil {
		t.Fatalf("list unsettled failed: %v", err)
	}
	if len(sales) != 1 || sales[0].SessionID != "cs_unsettled_1" {
		t.Fatalf("unexpected unsettled set: %+v", sales)
	}
	if sales[0].TenantAccount.ID != manual.ID {
		t.Fatalf("tenant not preloaded: %+v", sales[0].TenantAccount)
	}
}

func TestListAdminFilters(t *testing.T) {
	repo, db := setupSaleRepoTest(t)

	tenant := createRepoTenant(t, db, 1, false)

	old := newRepoSale(tenant.ID, "cs_admin_old", nil)
	old.CreatedAt = time.Now().Add(-48 * time.Hour)
	mustCreate(t, db, old)

	fresh := newRepoSale(tenant.ID, "cs_admin_fresh", nil)
	fresh.Status = constants.SaleStatusCompleted
	mustCreate(t, db, fresh)

	// 孤儿排查：指定时间点之前仍 pending 的记录
	cutoff := time.Now().Add(-24 * time.Hour)
	sales, total, err := repo.ListAdmin(SaleListFilter{Page: 1, PageSize: 10, PendingBefore: &cutoff})
	if err != nil {
		t.Fatalf("list admin failed: %v", err)
	}
	if total != 1 || len(sales) != 1 || sales[0].SessionID != "cs_admin_old" {
		t.Fatalf("pending_before filter broken: total=%d sales=%+v", total, sales)
	}

	sales, total, err = repo.ListAdmin(SaleListFilter{Page: 1, PageSize: 10, Status: constants.SaleStatusCompleted})
	if err != nil {
		t.Fatalf("list admin failed: %v", err)
	}
	if total != 1 || sales[0].SessionID != "cs_admin_fresh" {
		t.Fatalf("status filter broken: total=%d sales=%+v", total, sales)
	}

	_, total, err = repo.ListAdmin(SaleListFilter{Page: 1, PageSize: 10, Unsettled: true})
	if err != nil {
		t.Fatalf("list admin failed: %v", err)
	}
	if total != 2 {
		t.Fatalf("unsettled filter broken: total=%d", total)
	}
}

func TestSoftDeleteHidesRow(t *testing.T) {
	repo, _ := setupSaleRepoTest(t)

	sale := newRepoSale(1, "cs_soft_delete", nil)
	if _, err := repo.InsertIfAbsent(sale); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := repo.SoftDelete(sale.ID); err != nil {
		t.Fatalf("soft delete failed: %v", err)
	}

	found, err := repo.GetBySessionID("cs_soft_delete")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if found != nil {
		t.Fatalf("soft deleted row must be invisible")
	}
}

func setupSaleRepoTest(t *testing.T) (*GormSaleRepository, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:sale_repository_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.TenantAccount{}, &models.CommissionSale{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	// ID 为 1 的兜底租户，供不关心租户语义的用例引用
	createRepoTenant(t, db, 99, true)
	return NewSaleRepository(db), db
}

func newRepoSale(tenantID uint, sessionID string, intent *string) *models.CommissionSale {
	now := time.Now()
	return &models.CommissionSale{
		TenantAccountID:  tenantID,
		SessionID:        sessionID,
		PaymentIntentID:  intent,
		AmountTotal:      10000,
		CommissionAmount: 500,
		NetAmount:        9500,
		Currency:         "USD",
		Status:           constants.SaleStatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func createRepoTenant(t *testing.T, db *gorm.DB, userID uint, canSplit bool) *models.TenantAccount {
	t.Helper()

	now := time.Now()
	tenant := &models.TenantAccount{
		UserID:            userID,
		AccountID:         fmt.Sprintf("acct_repo_%d_%d", userID, now.UnixNano()),
		AccountKind:       constants.AccountKindProcessor,
		Country:           "US",
		CanSplit:          canSplit,
		CanManualTransfer: true,
		Status:            constants.TenantStatusActive,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := db.Create(tenant).Error; err != nil {
		t.Fatalf("create tenant failed: %v", err)
	}
	return tenant
}

func mustCreate(t *testing.T, db *gorm.DB, sale *models.CommissionSale) {
	t.Helper()
	if err := db.Create(sale).Error; err != nil {
		t.Fatalf("create sale failed: %v", err)
	}
}
