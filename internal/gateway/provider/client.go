package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/guardline/aegis/internal/config"
	"github.com/guardline/aegis/internal/gateway/domain"
)

const (
	sandboxBaseURL = "https://api-m.sandbox.paypal.com"
	liveBaseURL    = "https://api-m.paypal.com"
)

// Client talks to the provider's invoicing REST API. Access tokens are
// fetched with the client-credentials grant and cached until shortly before
// expiry.
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	client       *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func NewClient(cfg config.GatewayConfig) *Client {
	base := sandboxBaseURL
	if cfg.Environment == "live" {
		base = liveBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 12 * time.Second
	}
	return &Client{
		baseURL:      base,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		client:       &http.Client{Timeout: timeout},
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

type providerErrorResponse struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

type invoiceResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type captureResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Amount struct {
		Value        string `json:"value"`
		CurrencyCode string `json:"currency_code"`
	} `json:"amount"`
}

func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}
	if c.clientID == "" || c.clientSecret == "" {
		return "", &domain.GatewayError{Op: "token", Err: errors.New("gateway credentials not configured")}
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", &domain.GatewayError{Op: "token", Err: err}
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &domain.GatewayError{Op: "token", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return "", &domain.GatewayError{Op: "token", Status: resp.StatusCode, Err: decodeError(resp.Body)}
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", &domain.GatewayError{Op: "token", Err: err}
	}
	c.accessToken = tok.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - time.Minute)
	return c.accessToken, nil
}

func (c *Client) CreateInvoice(ctx context.Context, params domain.CreateInvoiceParams) (domain.ProviderInvoice, error) {
	currency := params.Currency
	if currency == "" {
		currency = "USD"
	}

	body := map[string]any{
		"detail": map[string]any{
			"invoice_number": params.Reference,
			"currency_code":  currency,
			"note":           params.Description,
			"payment_term": map[string]any{
				"due_date": params.DueAt.Format("2006-01-02"),
			},
		},
		"primary_recipients": []map[string]any{
			{
				"billing_info": map[string]any{
					"name":          map[string]any{"full_name": params.ClientName},
					"email_address": params.ClientEmail,
				},
			},
		},
		"items": []map[string]any{
			{
				"name":     params.Description,
				"quantity": "1",
				"unit_amount": map[string]any{
					"currency_code": currency,
					"value":         formatAmount(params.Amount),
				},
			},
		},
		"configuration": map[string]any{
			"partial_payment": map[string]any{
				"allow_partial_payment": true,
				"minimum_amount_due": map[string]any{
					"currency_code": currency,
					"value":         formatAmount(params.DepositAmount),
				},
			},
		},
	}

	var out invoiceResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v2/invoicing/invoices", body, &out, "create_invoice"); err != nil {
		return domain.ProviderInvoice{}, err
	}
	if out.ID == "" {
		return domain.ProviderInvoice{}, &domain.GatewayError{Op: "create_invoice", Err: errors.New("provider returned no invoice id")}
	}
	return domain.ProviderInvoice{ID: out.ID, Status: out.Status}, nil
}

func (c *Client) SendInvoice(ctx context.Context, providerInvoiceID string) error {
	providerInvoiceID = strings.TrimSpace(providerInvoiceID)
	if providerInvoiceID == "" {
		return &domain.GatewayError{Op: "send_invoice", Err: errors.New("provider invoice id is empty")}
	}
	path := "/v2/invoicing/invoices/" + url.PathEscape(providerInvoiceID) + "/send"
	return c.doJSON(ctx, http.MethodPost, path, map[string]any{"send_to_recipient": true}, nil, "send_invoice")
}

func (c *Client) GetPayment(ctx context.Context, paymentID string) (domain.ProviderPayment, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return domain.ProviderPayment{}, &domain.GatewayError{Op: "get_payment", Err: errors.New("payment id is empty")}
	}

	var out captureResponse
	path := "/v2/payments/captures/" + url.PathEscape(paymentID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out, "get_payment"); err != nil {
		return domain.ProviderPayment{}, err
	}

	amount, err := parseAmount(out.Amount.Value)
	if err != nil {
		return domain.ProviderPayment{}, &domain.GatewayError{Op: "get_payment", Err: err}
	}
	return domain.ProviderPayment{
		PaymentID: out.ID,
		Status:    strings.ToLower(out.Status),
		Amount:    amount,
	}, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any, op string) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return &domain.GatewayError{Op: op, Err: err}
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &domain.GatewayError{Op: op, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &domain.GatewayError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return &domain.GatewayError{Op: op, Status: resp.StatusCode, Err: decodeError(resp.Body)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &domain.GatewayError{Op: op, Err: err}
	}
	return nil
}

func decodeError(body io.Reader) error {
	var provErr providerErrorResponse
	if err := json.NewDecoder(body).Decode(&provErr); err == nil && provErr.Message != "" {
		return fmt.Errorf("%s: %s", provErr.Name, provErr.Message)
	}
	return errors.New("provider request failed")
}

// formatAmount renders integer cents as the provider's decimal string.
func formatAmount(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}

func parseAmount(value string) (int64, error) {
	if strings.TrimSpace(value) == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", value)
	}
	return int64(math.Round(f * 100)), nil
}
