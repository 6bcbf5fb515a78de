package exec

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"delta-hedge-bot/internal/exchange"
	"delta-hedge-bot/internal/metrics"
	"delta-hedge-bot/internal/strategy"

	"go.uber.org/zap"
)

type mockClient struct {
	mu     sync.Mutex
	calls  int
	orders []exchange.MarketOrder
	ack    exchange.OrderAck
	err    error
}

func (m *mockClient) PlaceMarketOrder(ctx context.Context, order exchange.MarketOrder) (exchange.OrderAck, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.orders = append(m.orders, order)
	return m.ack, m.err
}

func TestExecutorPlacesOnce(t *testing.T) {
	client := &mockClient{ack: exchange.OrderAck{OrderID: "oid-1", State: "closed"}}
	prom := metrics.NewPrometheus()
	executor := New(client, prom.Metrics, zap.NewNop())

	ack, err := executor.PlaceOrder(context.Background(), Order{ProductID: 3136, Side: strategy.SideSell, Size: 2.5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ack.OrderID != "oid-1" {
		t.Fatalf("expected oid-1, got %s", ack.OrderID)
	}
	if client.calls != 1 {
		t.Fatalf("expected 1 client call, got %d", client.calls)
	}
	if got := client.orders[0]; got.ProductID != 3136 || got.Side != strategy.SideSell || got.Size != 2.5 {
		t.Fatalf("unexpected order sent: %+v", got)
	}
	rec := httptest.NewRecorder()
	prom.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "delta_hedge_bot_orders_placed_total 1") {
		t.Fatalf("expected orders_placed_total 1, got %s", rec.Body.String())
	}
}

func TestExecutorDoesNotRetryFailures(t *testing.T) {
	client := &mockClient{err: exchange.ErrOrder}
	executor := New(client, nil, zap.NewNop())

	_, err := executor.PlaceOrder(context.Background(), Order{ProductID: 1, Side: strategy.SideBuy, Size: 1})
	if !errors.Is(err, exchange.ErrOrder) {
		t.Fatalf("expected ErrOrder, got %v", err)
	}
	if client.calls != 1 {
		t.Fatalf("expected exactly 1 attempt, got %d", client.calls)
	}
}

func TestExecutorRejectsInvalidOrders(t *testing.T) {
	client := &mockClient{}
	executor := New(client, nil, zap.NewNop())
	cases := []Order{
		{ProductID: 0, Side: strategy.SideBuy, Size: 1},
		{ProductID: 1, Side: "hold", Size: 1},
		{ProductID: 1, Side: strategy.SideBuy, Size: 0},
		{ProductID: 1, Side: strategy.SideBuy, Size: -1},
	}
	for _, order := range cases {
		if _, err := executor.PlaceOrder(context.Background(), order); !errors.Is(err, ErrInvalidOrder) {
			t.Fatalf("expected ErrInvalidOrder for %+v, got %v", order, err)
		}
	}
	if client.calls != 0 {
		t.Fatalf("expected no client calls, got %d", client.calls)
	}
}
