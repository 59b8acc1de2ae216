package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	ErrConfigInvalid   = errors.New("processor config invalid")
	ErrRequestFailed   = errors.New("processor request failed")
	ErrResponseInvalid = errors.New("processor response invalid")
)

const (
	defaultAPIBaseURL = "https://api.stripe.com"
	defaultTimeout    = 12 * time.Second
)

// Config 支付处理方配置。
type Config struct {
	APIBaseURL string `json:"api_base_url"`
	SecretKey  string `json:"secret_key"`
	SuccessURL string `json:"success_url"`
	CancelURL  string `json:"cancel_url"`
	RefreshURL string `json:"refresh_url"`
	ReturnURL  string `json:"return_url"`
	TimeoutMS  int    `json:"timeout_ms"`
}

func (c *Config) normalize() {
	if c == nil {
		return
	}
	c.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.APIBaseURL), "/")
	if c.APIBaseURL == "" {
		c.APIBaseURL = defaultAPIBaseURL
	}
	c.SecretKey = strings.TrimSpace(c.SecretKey)
	c.SuccessURL = strings.TrimSpace(c.SuccessURL)
	c.CancelURL = strings.TrimSpace(c.CancelURL)
	c.RefreshURL = strings.TrimSpace(c.RefreshURL)
	c.ReturnURL = strings.TrimSpace(c.ReturnURL)
}

// ValidateConfig 校验配置。
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrConfigInvalid)
	}
	cfg.normalize()
	if cfg.SecretKey == "" {
		return fmt.Errorf("%w: secret_key is required", ErrConfigInvalid)
	}
	if _, err := url.ParseRequestURI(cfg.APIBaseURL); err != nil {
		return fmt.Errorf("%w: api_base_url is invalid", ErrConfigInvalid)
	}
	return nil
}

func (c *Config) timeout() time.Duration {
	if c != nil && c.TimeoutMS > 0 {
		return time.Duration(c.TimeoutMS) * time.Millisecond
	}
	return defaultTimeout
}

// postForm 发送表单请求并解析 JSON 响应。
func postForm(ctx context.Context, cfg *Config, path string, form url.Values) (map[string]interface{}, error) {
	return doRequest(ctx, cfg, http.MethodPost, path, strings.NewReader(form.Encode()))
}

// getJSON 发送 GET 请求并解析 JSON 响应。
func getJSON(ctx context.Context, cfg *Config, path string) (map[string]interface{}, error) {
	return doRequest(ctx, cfg, http.MethodGet, path, nil)
}

func doRequest(ctx context.Context, cfg *Config, method, path string, body io.Reader) (map[string]interface{}, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, method, cfg.APIBaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrRequestFailed, err)
	}
	req.Header.Set("Authorization", "Bearer "+cfg.SecretKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	client := &http.Client{Timeout: cfg.timeout()}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrResponseInvalid, err)
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: decode body: %v", ErrResponseInvalid, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("%w: status %d: %s", ErrRequestFailed, resp.StatusCode, extractErrorMessage(payload))
	}
	return payload, nil
}

func extractErrorMessage(payload map[string]interface{}) string {
	errObj, ok := payload["error"].(map[string]interface{})
	if !ok {
		return "unknown error"
	}
	if msg, ok := errObj["message"].(string); ok && strings.TrimSpace(msg) != "" {
		return msg
	}
	if code, ok := errObj["code"].(string); ok && code != "" {
		return code
	}
	return "unknown error"
}

func stringField(payload map[string]interface{}, key string) string {
	if value, ok := payload[key].(string); ok {
		return value
	}
	return ""
}

func boolField(payload map[string]interface{}, key string) bool {
	if value, ok := payload[key].(bool); ok {
		return value
	}
	return false
}

func int64Field(payload map[string]interface{}, key string) int64 {
	switch value := payload[key].(type) {
	case float64:
		return int64(value)
	case int64:
		return value
	case json.Number:
		parsed, err := value.Int64()
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}
