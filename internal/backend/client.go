// Package backend talks to the bookstore REST API: order creation and
// lookup, transfer status, and customer lookup by phone.
package backend

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

	"bookstore-pos/internal/domain"
	"bookstore-pos/internal/logging"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// ErrUnavailable is reported by Ready while the circuit breaker is open.
var ErrUnavailable = errors.New("backend unavailable")

// StatusError is returned for non-2xx responses other than 404.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

type Options struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	logger  *zap.Logger
}

func New(opts Options) *Client {
	logger := logging.OrNop(opts.Logger).Named("backend")
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "bookstore-backend",
		MaxRequests: 1,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrNotFound) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		token:   opts.Token,
		http:    httpClient,
		breaker: breaker,
		logger:  logger,
	}
}

// CreateOrder posts the draft to POST /orders and returns the normalized
// response. The draft's client code is sent as the idempotency key.
func (c *Client) CreateOrder(ctx context.Context, draft domain.OrderDraft) (*domain.Order, error) {
	payload, err := json.Marshal(draft)
	if err != nil {
		return nil, fmt.Errorf("encode order draft: %w", err)
	}
	body, err := c.do(ctx, http.MethodPost, "/orders", payload, draft.OrderCode)
	if err != nil {
		return nil, err
	}
	return NormalizeOrder(body)
}

// GetOrder fetches the canonical order from GET /orders/{orderCode}.
func (c *Client) GetOrder(ctx context.Context, orderCode string) (*domain.Order, error) {
	body, err := c.do(ctx, http.MethodGet, "/orders/"+url.PathEscape(orderCode), nil, "")
	if err != nil {
		return nil, err
	}
	return NormalizeOrder(body)
}

// HasTransfer polls GET /orders/{orderCode}/transfers.
func (c *Client) HasTransfer(ctx context.Context, orderCode string) (bool, error) {
	body, err := c.do(ctx, http.MethodGet, "/orders/"+url.PathEscape(orderCode)+"/transfers", nil, "")
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return TransferDetected(body)
}

// LookupPhone resolves a customer through GET /account/phone/{phone}.
func (c *Client) LookupPhone(ctx context.Context, phone string) (*domain.MemberInfo, error) {
	body, err := c.do(ctx, http.MethodGet, "/account/phone/"+url.PathEscape(phone), nil, "")
	if err != nil {
		return nil, err
	}
	return NormalizeMember(body)
}

// Ready fails while the breaker is open, so the terminal reports itself
// unready instead of accepting checkouts it cannot submit.
func (c *Client) Ready(context.Context) error {
	if c.breaker.State() == gobreaker.StateOpen {
		return ErrUnavailable
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte, idempotencyKey string) ([]byte, error) {
	return c.breaker.Execute(func() ([]byte, error) {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if idempotencyKey != "" {
			req.Header.Set("Idempotency-Key", idempotencyKey)
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", method, path, err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return nil, fmt.Errorf("%s %s: read body: %w", method, path, err)
		}
		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil, fmt.Errorf("%s %s: %w", method, path, domain.ErrNotFound)
		case resp.StatusCode < 200 || resp.StatusCode > 299:
			return nil, &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		}
		c.logger.Debug("backend call", zap.String("method", method), zap.String("path", path), zap.Int("status", resp.StatusCode))
		return body, nil
	})
}
