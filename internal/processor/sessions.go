package processor

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// SessionInput 创建支付会话输入。Destination 为空时创建普通会话，
// 资金全额落入平台余额；非空时携带分账指令。
type SessionInput struct {
	Amount         int64
	Currency       string
	Description    string
	Reference      string
	Destination    string
	ApplicationFee int64
	SuccessURL     string
	CancelURL      string
}

// SessionResult 创建支付会话返回。
type SessionResult struct {
	SessionID       string
	PaymentIntentID string
	URL             string
	Status          string
	Raw             map[string]interface{}
}

// SessionQueryResult 查询支付会话返回。
type SessionQueryResult struct {
	SessionID       string
	PaymentIntentID string
	Status          string
	PaymentStatus   string
	AmountTotal     int64
	Currency        string
	PaidAt          *time.Time
	Raw             map[string]interface{}
}

// CreateSession 创建 Checkout 会话。
func CreateSession(ctx context.Context, cfg *Config, input SessionInput) (*SessionResult, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if input.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrConfigInvalid)
	}
	currency := strings.ToLower(strings.TrimSpace(input.Currency))
	if currency == "" {
		return nil, fmt.Errorf("%w: currency is required", ErrConfigInvalid)
	}
	subject := strings.TrimSpace(input.Description)
	if subject == "" {
		subject = strings.TrimSpace(input.Reference)
	}
	if subject == "" {
		subject = "sale"
	}
	successURL := strings.TrimSpace(input.SuccessURL)
	if successURL == "" {
		successURL = cfg.SuccessURL
	}
	cancelURL := strings.TrimSpace(input.CancelURL)
	if cancelURL == "" {
		cancelURL = cfg.CancelURL
	}

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", currency)
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(input.Amount, 10))
	form.Set("line_items[0][price_data][product_data][name]", subject)
	if successURL != "" {
		form.Set("success_url", successURL)
	}
	if cancelURL != "" {
		form.Set("cancel_url", cancelURL)
	}
	if reference := strings.TrimSpace(input.Reference); reference != "" {
		form.Set("client_reference_id", reference)
	}
	if destination := strings.TrimSpace(input.Destination); destination != "" {
		form.Set("payment_intent_data[transfer_data][destination]", destination)
		form.Set("payment_intent_data[application_fee_amount]", strconv.FormatInt(input.ApplicationFee, 10))
	}

	payload, err := postForm(ctx, cfg, "/v1/checkout/sessions", form)
	if err != nil {
		return nil, err
	}

	sessionID := stringField(payload, "id")
	if sessionID == "" {
		return nil, fmt.Errorf("%w: missing session id", ErrResponseInvalid)
	}
	return &SessionResult{
		SessionID:       sessionID,
		PaymentIntentID: stringField(payload, "payment_intent"),
		URL:             stringField(payload, "url"),
		Status:          stringField(payload, "status"),
		Raw:             payload,
	}, nil
}

// QuerySession 查询 Checkout 会话状态。
func QuerySession(ctx context.Context, cfg *Config, sessionID string) (*SessionQueryResult, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrConfigInvalid)
	}

	payload, err := getJSON(ctx, cfg, "/v1/checkout/sessions/"+url.PathEscape(sessionID))
	if err != nil {
		return nil, err
	}

	result := &SessionQueryResult{
		SessionID:       stringField(payload, "id"),
		PaymentIntentID: stringField(payload, "payment_intent"),
		Status:          stringField(payload, "status"),
		PaymentStatus:   stringField(payload, "payment_status"),
		AmountTotal:     int64Field(payload, "amount_total"),
		Currency:        strings.ToUpper(stringField(payload, "currency")),
		Raw:             payload,
	}
	if result.SessionID == "" {
		return nil, fmt.Errorf("%w: missing session id", ErrResponseInvalid)
	}
	if result.PaymentStatus == "paid" {
		if created := int64Field(payload, "created"); created > 0 {
			paidAt := time.Unix(created, 0)
			result.PaidAt = &paidAt
		} else {
			now := time.Now()
			result.PaidAt = &now
		}
	}
	return result, nil
}
