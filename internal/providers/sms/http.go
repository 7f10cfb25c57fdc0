package sms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Config struct {
	APIURL string
	APIKey string
	Sender string
}

// HTTPProvider delivers SMS through a REST gateway.
type HTTPProvider struct {
	cfg    Config
	client *http.Client
}

func NewHTTP(cfg Config) *HTTPProvider {
	return &HTTPProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type smsErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (p *HTTPProvider) Send(ctx context.Context, to string, message string) error {
	if strings.TrimSpace(p.cfg.APIURL) == "" || strings.TrimSpace(p.cfg.APIKey) == "" {
		return errors.New("sms gateway not configured")
	}

	values := url.Values{}
	values.Set("to", strings.TrimSpace(to))
	values.Set("from", p.cfg.Sender)
	values.Set("body", message)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.APIURL, strings.NewReader(values.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr smsErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("sms gateway: %s", apiErr.Error.Message)
		}
		return fmt.Errorf("sms gateway: status %d", resp.StatusCode)
	}
	return nil
}
