package processor

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// AccountInput 创建处理方子账户输入。
type AccountInput struct {
	Email        string
	Country      string
	BusinessName string
}

// AccountResult 处理方子账户信息。
type AccountResult struct {
	AccountID        string
	Country          string
	ChargesEnabled   bool
	PayoutsEnabled   bool
	DetailsSubmitted bool
	Raw              map[string]interface{}
}

// CreateAccount 创建处理方子账户。
func CreateAccount(ctx context.Context, cfg *Config, input AccountInput) (*AccountResult, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	country := strings.ToUpper(strings.TrimSpace(input.Country))
	if country == "" {
		return nil, fmt.Errorf("%w: country is required", ErrConfigInvalid)
	}

	form := url.Values{}
	form.Set("type", "express")
	form.Set("country", country)
	if email := strings.TrimSpace(input.Email); email != "" {
		form.Set("email", email)
	}
	if name := strings.TrimSpace(input.BusinessName); name != "" {
		form.Set("business_profile[name]", name)
	}
	form.Set("capabilities[transfers][requested]", "true")
	form.Set("capabilities[card_payments][requested]", "true")

	payload, err := postForm(ctx, cfg, "/v1/accounts", form)
	if err != nil {
		return nil, err
	}
	return parseAccount(payload)
}

// GetAccount 查询处理方子账户。
func GetAccount(ctx context.Context, cfg *Config, accountID string) (*AccountResult, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil, fmt.Errorf("%w: account id is required", ErrConfigInvalid)
	}
	payload, err := getJSON(ctx, cfg, "/v1/accounts/"+url.PathEscape(accountID))
	if err != nil {
		return nil, err
	}
	return parseAccount(payload)
}

// CreateAccountLink 创建入驻引导链接。
func CreateAccountLink(ctx context.Context, cfg *Config, accountID string) (string, error) {
	if err := ValidateConfig(cfg); err != nil {
		return "", err
	}
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return "", fmt.Errorf("%w: account id is required", ErrConfigInvalid)
	}

	form := url.Values{}
	form.Set("account", accountID)
	form.Set("type", "account_onboarding")
	if cfg.RefreshURL != "" {
		form.Set("refresh_url", cfg.RefreshURL)
	}
	if cfg.ReturnURL != "" {
		form.Set("return_url", cfg.ReturnURL)
	}

	payload, err := postForm(ctx, cfg, "/v1/account_links", form)
	if err != nil {
		return "", err
	}
	link := stringField(payload, "url")
	if link == "" {
		return "", fmt.Errorf("%w: missing url", ErrResponseInvalid)
	}
	return link, nil
}

func parseAccount(payload map[string]interface{}) (*AccountResult, error) {
	accountID := stringField(payload, "id")
	if accountID == "" {
		return nil, fmt.Errorf("%w: missing account id", ErrResponseInvalid)
	}
	return &AccountResult{
		AccountID:        accountID,
		Country:          stringField(payload, "country"),
		ChargesEnabled:   boolField(payload, "charges_enabled"),
		PayoutsEnabled:   boolField(payload, "payouts_enabled"),
		DetailsSubmitted: boolField(payload, "details_submitted"),
		Raw:              payload,
	}, nil
}
