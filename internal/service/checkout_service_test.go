package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/splitpos-next/internal/config"
	"github.com/splitpos-next/internal/constants"
	"github.com/splitpos-next/internal/models"
	"github.com/splitpos-next/internal/processor"
	"github.com/splitpos-next/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func TestSplitAmount(t *testing.T) {
	cases := []struct {
		amount     int64
		rate       string
		commission int64
		net        int64
	}{
		{10000, "0.05", 500, 9500},
		{999, "0.05", 50, 949}, // 49.95 -> 50（0.5 进位）
		{10, "0.05", 1, 9},     // 0.5 -> 1
		{10000, "0", 0, 10000},
		{10000, "1", 10000, 0},
		{1, "0.05", 0, 1},
		{0, "0.05", 0, 0},
	}
	for _, tc := range cases {
		rate, err := decimal.NewFromString(tc.rate)
		if err != nil {
			t.Fatalf("parse rate %s failed: %v", tc.rate, err)
		}
		commission, net := SplitAmount(tc.amount, rate)
		if commission != tc.commission || net != tc.net {
			t.Fatalf("SplitAmount(%d, %s) = (%d, %d), want (%d, %d)",
				tc.amount, tc.rate, commission, net, tc.commission, tc.net)
		}
		if commission+net != tc.amount {
			t.Fatalf("split of %d does not sum up: %d + %d", tc.amount, commission, net)
		}
	}
}

func TestCreateSessionSplitTenant(t *testing.T) {
	var gotForm map[string]string
	svc, db, server := setupCheckoutTest(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/checkout/sessions" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form failed: %v", err)
		}
		gotForm = map[string]string{}
		for key := range r.PostForm {
			gotForm[key] = r.PostForm.Get(key)
		}
		writeJSON(w, map[string]interface{}{
			"id":             "cs_split_1",
			"payment_intent": "pi_split_1",
			"url":            "https://pay.example/cs_split_1",
			"status":         "open",
		})
	})
	defer server.Close()

	user := createCheckoutTestUser(t, db, "split@example.com")
	tenant := createCheckoutTestTenant(t, db, user.ID, constants.AccountKindProcessor, true, constants.TenantStatusActive)

	handle, err := svc.CreateSession(CreateSessionInput{
		TenantID:         tenant.ID,
		Amount:           10000,
		Currency:         "usd",
		Description:      "coffee",
		RequestingUserID: user.ID,
		Context:          context.Background(),
	})
	if err != nil {
		t.Fatalf("create session failed: %v", err)
	}
	if handle.SessionID != "cs_split_1" || handle.PayURL != "https://pay.example/cs_split_1" {
		t.Fatalf("unexpected handle: %+v", handle)
	}
	if handle.CommissionAmount != 500 || handle.NetAmount != 9500 {
		t.Fatalf("unexpected split: %d / %d", handle.CommissionAmount, handle.NetAmount)
	}
	if handle.Currency != "USD" {
		t.Fatalf("unexpected currency: %s", handle.Currency)
	}
	if gotForm["payment_intent_data[transfer_data][destination]"] != tenant.AccountID {
		t.Fatalf("missing split destination, form: %v", gotForm)
	}
	if gotForm["payment_intent_data[application_fee_amount]"] != "500" {
		t.Fatalf("missing application fee, form: %v", gotForm)
	}
}

func TestCreateSessionVirtualTenantOmitsSplitFields(t *testing.T) {
	var gotForm map[string][]string
	svc, db, server := setupCheckoutTest(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form failed: %v", err)
		}
		gotForm = r.PostForm
		writeJSON(w, map[string]interface{}{
			"id":     "cs_plain_1",
			"url":    "https://pay.example/cs_plain_1",
			"status": "open",
		})
	})
	defer server.Close()

	user := createCheckoutTestUser(t, db, "virtual@example.com")
	tenant := createCheckoutTestTenant(t, db, user.ID, constants.AccountKindVirtual, false, constants.TenantStatusActive)

	handle, err := svc.CreateSession(CreateSessionInput{
		TenantID:         tenant.ID,
		Amount:           10000,
		RequestingUserID: user.ID,
		Context:          context.Background(),
	})
	if err != nil {
		t.Fatalf("create session failed: %v", err)
	}
	// 佣金仍然本地计算并记账，但会话本身不携带分账指令
	if handle.CommissionAmount != 500 || handle.NetAmount != 9500 {
		t.Fatalf("unexpected split: %d / %d", handle.CommissionAmount, handle.NetAmount)
	}
	if _, ok := gotForm["payment_intent_data[transfer_data][destination]"]; ok {
		t.Fatalf("virtual tenant session must not carry split destination")
	}
	if _, ok := gotForm["payment_intent_data[application_fee_amount]"]; ok {
		t.Fatalf("virtual tenant session must not carry application fee")
	}
}

func TestCreateSessionUsesTenantRate(t *testing.T) {
	svc, db, server := setupCheckoutTest(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"id":     "cs_rate_1",
			"url":    "https://pay.example/cs_rate_1",
			"status": "open",
		})
	})
	defer server.Close()

	user := createCheckoutTestUser(t, db, "rate@example.com")
	tenant := createCheckoutTestTenant(t, db, user.ID, constants.AccountKindProcessor, true, constants.TenantStatusActive)
	rate := models.NewRateFromDecimal(decimal.NewFromFloat(0.1))
	tenant.CommissionRate = &rate
	if err := db.Save(tenant).Error; err != nil {
		t.Fatalf("save tenant failed: %v", err)
	}

	handle, err := svc.CreateSession(CreateSessionInput{
		TenantID:         tenant.ID,
		Amount:           10000,
		RequestingUserID: user.ID,
		Context:          context.Background(),
	})
	if err != nil {
		t.Fatalf("create session failed: %v", err)
	}
	if handle.CommissionAmount != 1000 || handle.NetAmount != 9000 {
		t.Fatalf("tenant rate not applied: %d / %d", handle.CommissionAmount, handle.NetAmount)
	}
}

func TestCreateSessionValidation(t *testing.T) {
	svc, db, server := setupCheckoutTest(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"id": "cs_x", "url": "https://pay", "status": "open"})
	})
	defer server.Close()

	user := createCheckoutTestUser(t, db, "valid@example.com")
	other := createCheckoutTestUser(t, db, "other@example.com")
	tenant := createCheckoutTestTenant(t, db, user.ID, constants.AccountKindProcessor, true, constants.TenantStatusActive)

	if _, err := svc.CreateSession(CreateSessionInput{TenantID: tenant.ID, Amount: 0, RequestingUserID: user.ID}); !errors.Is(err, ErrAmountInvalid) {
		t.Fatalf("expected ErrAmountInvalid, got: %v", err)
	}
	if _, err := svc.CreateSession(CreateSessionInput{TenantID: 9999, Amount: 100, RequestingUserID: user.ID}); !errors.Is(err, ErrTenantNotFound) {
		t.Fatalf("expected ErrTenantNotFound, got: %v", err)
	}
	if _, err := svc.CreateSession(CreateSessionInput{TenantID: tenant.ID, Amount: 100, RequestingUserID: other.ID}); !errors.Is(err, ErrTenantForbidden) {
		t.Fatalf("expected ErrTenantForbidden, got: %v", err)
	}

	tenant.Status = constants.TenantStatusDisabled
	if err := db.Save(tenant).Error; err != nil {
		t.Fatalf("save tenant failed: %v", err)
	}
	if _, err := svc.CreateSession(CreateSessionInput{TenantID: tenant.ID, Amount: 100, RequestingUserID: user.ID}); !errors.Is(err, ErrTenantDisabled) {
		t.Fatalf("expected ErrTenantDisabled, got: %v", err)
	}
}

func TestCreateSessionProcessorFailure(t *testing.T) {
	svc, db, server := setupCheckoutTest(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		writeJSON(w, map[string]interface{}{
			"error": map[string]interface{}{"message": "upstream boom"},
		})
	})
	defer server.Close()

	user := createCheckoutTestUser(t, db, "boom@example.com")
	tenant := createCheckoutTestTenant(t, db, user.ID, constants.AccountKindProcessor, true, constants.TenantStatusActive)

	_, err := svc.CreateSession(CreateSessionInput{TenantID: tenant.ID, Amount: 100, RequestingUserID: user.ID})
	if !errors.Is(err, ErrProcessorUnavailable) {
		t.Fatalf("expected ErrProcessorUnavailable, got: %v", err)
	}
	// 包装后仍可辨认处理方侧的原始错误
	if !errors.Is(err, processor.ErrRequestFailed) {
		t.Fatalf("processor cause lost in wrapping: %v", err)
	}
	if !strings.Contains(err.Error(), "upstream boom") {
		t.Fatalf("processor message not surfaced: %v", err)
	}
}

func setupCheckoutTest(t *testing.T, handler http.HandlerFunc) (*CheckoutService, *gorm.DB, *httptest.Server) {
	t.Helper()

	db := setupServiceTestDB(t, "checkout_service")
	server := httptest.NewServer(handler)

	processorCfg := &processor.Config{
		APIBaseURL: server.URL,
		SecretKey:  "sk_test_123",
		SuccessURL: "https://shop.example/success",
		CancelURL:  "https://shop.example/cancel",
	}
	tenantRepo := repository.NewTenantRepository(db)
	userRepo := repository.NewUserRepository(db)
	commission := config.CommissionConfig{
		DefaultRate:     0.05,
		SplitCountries:  []string{"US", "DE"},
		DefaultCurrency: "USD",
	}
	tenantSvc := NewTenantService(tenantRepo, userRepo, processorCfg, commission)
	return NewCheckoutService(tenantRepo, tenantSvc, processorCfg, commission), db, server
}

func setupServiceTestDB(t *testing.T, name string) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.TenantAccount{},
		&models.CommissionSale{},
		&models.SettlementTransfer{},
		&models.SettlementRun{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db
	return db
}

func createCheckoutTestUser(t *testing.T, db *gorm.DB, email string) models.User {
	t.Helper()

	row := models.User{
		Email:     email,
		Status:    constants.UserStatusActive,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("create user failed: %v", err)
	}
	return row
}

func createCheckoutTestTenant(t *testing.T, db *gorm.DB, userID uint, kind string, canSplit bool, status string) *models.TenantAccount {
	t.Helper()

	accountID := fmt.Sprintf("acct_test_%d", time.Now().UnixNano())
	if kind == constants.AccountKindVirtual {
		accountID = fmt.Sprintf("%s%d", constants.VirtualAccountPrefix, time.Now().UnixNano())
	}
	row := models.TenantAccount{
		UserID:            userID,
		AccountID:         accountID,
		AccountKind:       kind,
		Country:           "US",
		BusinessName:      "tester",
		CanSplit:          canSplit,
		CanManualTransfer: true,
		Status:            status,
		CreatedAt:         time.Now(),
		UpdatedAt:         time.Now(),
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("create tenant failed: %v", err)
	}
	return &row
}

func writeJSON(w http.ResponseWriter, payload map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
