package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gauravv01/subshare-sub000/internal/config"
	"github.com/gauravv01/subshare-sub000/internal/domain/ports/adapter"
)

var _ adapter.PaymentProcessor = (*HTTPProcessor)(nil)

// codeOK is the processor's success code; any other code is a decline.
const codeOK = 100

const (
	liveBaseURL    = "https://api.payments.example/v1"
	sandboxBaseURL = "https://sandbox.payments.example/v1"
)

// HTTPProcessor talks to a JSON processor API:
//
//	POST {base}/charges  {amount, currency, method_ref}
//	POST {base}/refunds  {reference, amount}
//
// Transport errors and non-2xx responses are returned as errors (outcome
// unknown); a 2xx body with a non-success code is an explicit decline.
type HTTPProcessor struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPProcessor(cfg config.PaymentConfig) (*HTTPProcessor, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("payment api key empty")
	}
	base := cfg.BaseURL
	if base == "" {
		base = liveBaseURL
		if cfg.Sandbox {
			base = sandboxBaseURL
		}
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("invalid payment base url: %w", err)
	}
	return &HTTPProcessor{
		baseURL: strings.TrimRight(base, "/"),
		apiKey:  cfg.APIKey,
		// The caller's context carries the real deadline.
		client: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (p *HTTPProcessor) Name() string { return "http" }

func (p *HTTPProcessor) Charge(ctx context.Context, amount int64, currency, methodRef string) (adapter.ChargeResult, error) {
	payload := map[string]any{
		"amount":     amount,
		"currency":   currency,
		"method_ref": methodRef,
	}
	var out struct {
		Data struct {
			Code      int    `json:"code"`
			Reference string `json:"reference"`
			Message   string `json:"message"`
		} `json:"data"`
	}
	if err := p.post(ctx, "/charges", payload, &out); err != nil {
		return adapter.ChargeResult{}, err
	}
	if out.Data.Code != codeOK {
		return adapter.ChargeResult{Success: false, Message: declineMessage(out.Data.Code, out.Data.Message)}, nil
	}
	if out.Data.Reference == "" {
		return adapter.ChargeResult{}, errors.New("charge succeeded without reference")
	}
	return adapter.ChargeResult{Success: true, Reference: out.Data.Reference}, nil
}

func (p *HTTPProcessor) Refund(ctx context.Context, reference string, amount int64) (adapter.RefundResult, error) {
	payload := map[string]any{
		"reference": reference,
		"amount":    amount,
	}
	var out struct {
		Data struct {
			Code       int    `json:"code"`
			ID         string `json:"id"`
			RefundTime string `json:"refund_time"`
			Message    string `json:"message"`
		} `json:"data"`
	}
	if err := p.post(ctx, "/refunds", payload, &out); err != nil {
		return adapter.RefundResult{}, err
	}
	if out.Data.Code != codeOK {
		return adapter.RefundResult{Success: false, Message: declineMessage(out.Data.Code, out.Data.Message)}, nil
	}
	var rt time.Time
	if t := out.Data.RefundTime; t != "" {
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			rt = parsed
		}
	}
	return adapter.RefundResult{Success: true, ID: out.Data.ID, RefundTime: rt}, nil
}

func (p *HTTPProcessor) post(ctx context.Context, path string, payload any, out any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("processor http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode processor response: %w", err)
	}
	return nil
}

func declineMessage(code int, msg string) string {
	if msg != "" {
		return msg
	}
	return fmt.Sprintf("declined with code %d", code)
}
