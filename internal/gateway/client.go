// Package gateway talks to the external payment gateway: deposit intents,
// payout transfers and the webhooks that confirm them.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/soulseer/settlement/internal/models"
)

var (
	// ErrUnavailable marks transient failures (timeouts, 5xx). The same
	// request may be retried with the same idempotency key.
	ErrUnavailable = errors.New("gateway: unavailable")
	// ErrRejected marks a definitive refusal (4xx).
	ErrRejected = errors.New("gateway: rejected")
)

type TransferStatus string

const (
	TransferPending   TransferStatus = "pending"
	TransferCompleted TransferStatus = "completed"
	TransferFailed    TransferStatus = "failed"
)

type DepositIntent struct {
	GatewayRef   string `json:"gatewayRef"`
	ClientSecret string `json:"clientSecret"`
	CheckoutURL  string `json:"checkoutUrl,omitempty"`
}

type TransferRequest struct {
	IdempotencyKey string
	AccountID      string
	Destination    string
	Amount         int64
	Currency       string
}

type Transfer struct {
	TransferRef string         `json:"transferRef"`
	Status      TransferStatus `json:"status"`
	Reason      string         `json:"reason,omitempty"`
}

// Client is the payment gateway as seen by the settlement engine.
type Client interface {
	CreateDeposit(ctx context.Context, accountID string, amount int64, currency string) (*DepositIntent, error)
	CreateTransfer(ctx context.Context, req TransferRequest) (*Transfer, error)
	GetTransfer(ctx context.Context, transferRef string) (*Transfer, error)
}

type Config struct {
	BaseURL        string
	APIKey         string
	Timeout        time.Duration
	DebtorName     string
	DebtorAgentBIC string
}

// HTTPClient implements Client over the gateway's REST API. Transfers are
// submitted as ISO 20022 pacs.008 credit transfer instructions.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	builder    *Pacs008Builder
}

func NewHTTPClient(cfg Config) *HTTPClient {
	return &HTTPClient{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		builder:    NewPacs008Builder(cfg.DebtorName, cfg.DebtorAgentBIC),
	}
}

type depositRequest struct {
	AccountID string `json:"accountId"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
}

func (c *HTTPClient) CreateDeposit(ctx context.Context, accountID string, amount int64, currency string) (*DepositIntent, error) {
	body, err := json.Marshal(depositRequest{
		AccountID: accountID,
		Amount:    models.FormatAmount(amount),
		Currency:  currency,
	})
	if err != nil {
		return nil, err
	}

	var intent DepositIntent
	if err := c.do(ctx, http.MethodPost, "/v1/deposits", "application/json", "", body, &intent); err != nil {
		return nil, err
	}
	if intent.GatewayRef == "" {
		return nil, fmt.Errorf("%w: deposit response without reference", ErrRejected)
	}
	return &intent, nil
}

func (c *HTTPClient) CreateTransfer(ctx context.Context, req TransferRequest) (*Transfer, error) {
	doc := c.builder.Build(req)
	xmlData, err := ToXML(doc)
	if err != nil {
		return nil, err
	}

	var transfer Transfer
	if err := c.do(ctx, http.MethodPost, "/v1/transfers", "application/xml", req.IdempotencyKey, []byte(xmlData), &transfer); err != nil {
		return nil, err
	}
	if transfer.TransferRef == "" {
		return nil, fmt.Errorf("%w: transfer response without reference", ErrRejected)
	}
	return &transfer, nil
}

func (c *HTTPClient) GetTransfer(ctx context.Context, transferRef string) (*Transfer, error) {
	var transfer Transfer
	if err := c.do(ctx, http.MethodGet, "/v1/transfers/"+transferRef, "", "", nil, &transfer); err != nil {
		return nil, err
	}
	return &transfer, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path, contentType, idempotencyKey string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", ErrUnavailable, err)
	}

	switch {
	case res.StatusCode >= 500 || res.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s %s returned %d", ErrUnavailable, method, path, res.StatusCode)
	case res.StatusCode >= 400:
		return fmt.Errorf("%w: %s %s returned %d: %s", ErrRejected, method, path, res.StatusCode, bytes.TrimSpace(data))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decoding response: %v", ErrUnavailable, err)
	}
	return nil
}
