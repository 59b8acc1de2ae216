package processor

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// TransferInput 创建结算转账输入。
type TransferInput struct {
	Amount      int64
	Currency    string
	Destination string
	SaleRef     string
}

// TransferResult 创建结算转账返回。
type TransferResult struct {
	TransferID  string
	Amount      int64
	Destination string
	Raw         map[string]interface{}
}

// CreateTransfer 向租户账户发起平台转账。
func CreateTransfer(ctx context.Context, cfg *Config, input TransferInput) (*TransferResult, error) {
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
	destination := strings.TrimSpace(input.Destination)
	if destination == "" {
		return nil, fmt.Errorf("%w: destination is required", ErrConfigInvalid)
	}

	form := url.Values{}
	form.Set("amount", strconv.FormatInt(input.Amount, 10))
	form.Set("currency", currency)
	form.Set("destination", destination)
	if saleRef := strings.TrimSpace(input.SaleRef); saleRef != "" {
		form.Set("metadata[sale_id]", saleRef)
		form.Set("transfer_group", "sale_"+saleRef)
	}

	payload, err := postForm(ctx, cfg, "/v1/transfers", form)
	if err != nil {
		return nil, err
	}

	transferID := stringField(payload, "id")
	if transferID == "" {
		return nil, fmt.Errorf("%w: missing transfer id", ErrResponseInvalid)
	}
	return &TransferResult{
		TransferID:  transferID,
		Amount:      int64Field(payload, "amount"),
		Destination: stringField(payload, "destination"),
		Raw:         payload,
	}, nil
}
