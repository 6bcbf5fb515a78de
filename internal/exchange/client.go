package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"delta-hedge-bot/internal/strategy"

	"go.uber.org/zap"
)

const (
	DefaultTimeout = 10 * time.Second
	userAgent      = "delta-hedge-bot"
	maxErrorBody   = 2048
)

type Client struct {
	baseURL string
	apiKey  string
	secret  string
	http    *http.Client
	log     *zap.Logger
	now     func() time.Time
}

func NewClient(baseURL string, timeout time.Duration, apiKey, secret string, log *zap.Logger) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("base url is required")
	}
	if apiKey == "" || secret == "" {
		return nil, errors.New("api key and secret are required")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		secret:  secret,
		http: &http.Client{
			Timeout: timeout,
		},
		log: log,
		now: time.Now,
	}, nil
}

// FetchPositions returns the open positions of the account. An account with
// no positions yields an empty slice and a nil error; every failure wraps
// ErrFetch.
func (c *Client) FetchPositions(ctx context.Context) ([]strategy.Position, error) {
	result, err := c.do(ctx, http.MethodGet, PositionsPath, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	payload, err := decodeAny(result)
	if err != nil {
		return nil, fmt.Errorf("%w: decode positions: %w", ErrFetch, err)
	}
	positions, err := parsePositions(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	return positions, nil
}

// PlaceMarketOrder submits an immediate-or-cancel market order. It is sent
// exactly once; callers must not retry it blindly since a timed out request
// may still have filled.
func (c *Client) PlaceMarketOrder(ctx context.Context, order MarketOrder) (OrderAck, error) {
	if order.ProductID <= 0 {
		return OrderAck{}, fmt.Errorf("%w: product id is required", ErrOrder)
	}
	if !order.Side.Valid() {
		return OrderAck{}, fmt.Errorf("%w: invalid side %q", ErrOrder, order.Side)
	}
	size := math.Abs(order.Size)
	if size == 0 {
		return OrderAck{}, fmt.Errorf("%w: size must be > 0", ErrOrder)
	}
	req := orderRequest{
		ProductID:   order.ProductID,
		Size:        size,
		Side:        string(order.Side),
		OrderType:   OrderTypeMarket,
		TimeInForce: TimeInForceImmediateOrCancel,
	}
	result, err := c.do(ctx, http.MethodPost, OrdersPath, req)
	if err != nil {
		return OrderAck{}, fmt.Errorf("%w: %w", ErrOrder, err)
	}
	payload, err := decodeAny(result)
	if err != nil {
		return OrderAck{}, fmt.Errorf("%w: decode order: %w", ErrOrder, err)
	}
	ack := parseOrderAck(payload)
	if ack.Side == "" {
		ack.Side = string(order.Side)
	}
	if ack.ProductID == 0 {
		ack.ProductID = order.ProductID
	}
	if ack.Size == 0 {
		ack.Size = size
	}
	return ack, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any) (json.RawMessage, error) {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, err
		}
	}
	method = strings.ToUpper(method)
	timestamp := Timestamp(c.now())
	signature := Sign(c.secret, method, timestamp, path, string(body))

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("api-key", c.apiKey)
	httpReq.Header.Set("timestamp", timestamp)
	httpReq.Header.Set("signature", signature)
	httpReq.Header.Set("User-Agent", userAgent)
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		var env envelope
		if json.Unmarshal(raw, &env) == nil && len(env.Error) > 0 {
			apiErr = parseAPIError(resp.StatusCode, env.Error)
		}
		c.log.Debug("exchange request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("code", apiErr.Code),
		)
		return nil, apiErr
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if !env.Success {
		return nil, parseAPIError(resp.StatusCode, env.Error)
	}
	return env.Result, nil
}
