package exec

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"delta-hedge-bot/internal/exchange"
	"delta-hedge-bot/internal/metrics"
	"delta-hedge-bot/internal/strategy"

	"go.uber.org/zap"
)

var ErrInvalidOrder = errors.New("invalid order")

type Order struct {
	ProductID int
	Side      strategy.Side
	// Size is the unsigned quantity to trade.
	Size float64
}

type OrderClient interface {
	PlaceMarketOrder(ctx context.Context, order exchange.MarketOrder) (exchange.OrderAck, error)
}

// Executor submits hedge orders one at a time. Orders are never retried:
// a market order that timed out may still have filled, and the next cycle
// re-measures exposure from scratch.
type Executor struct {
	client  OrderClient
	metrics *metrics.Metrics
	log     *zap.Logger

	mu sync.Mutex
}

func New(client OrderClient, m *metrics.Metrics, log *zap.Logger) *Executor {
	if m == nil {
		m = metrics.NewNoop()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{client: client, metrics: m, log: log}
}

func (e *Executor) PlaceOrder(ctx context.Context, order Order) (exchange.OrderAck, error) {
	if err := validateOrder(order); err != nil {
		e.metrics.OrdersFailed.Inc()
		return exchange.OrderAck{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	ack, err := e.client.PlaceMarketOrder(ctx, exchange.MarketOrder{
		ProductID: order.ProductID,
		Size:      order.Size,
		Side:      order.Side,
	})
	if err != nil {
		e.metrics.OrdersFailed.Inc()
		e.log.Warn("hedge order failed",
			zap.Int("product_id", order.ProductID),
			zap.String("side", string(order.Side)),
			zap.Float64("size", order.Size),
			zap.Error(err),
		)
		return exchange.OrderAck{}, err
	}
	e.metrics.OrdersPlaced.Inc()
	e.log.Info("hedge order placed",
		zap.Int("product_id", order.ProductID),
		zap.String("side", string(order.Side)),
		zap.Float64("size", order.Size),
		zap.String("order_id", ack.OrderID),
		zap.String("state", ack.State),
	)
	return ack, nil
}

func validateOrder(order Order) error {
	if order.ProductID <= 0 {
		return fmt.Errorf("%w: product id is required", ErrInvalidOrder)
	}
	if !order.Side.Valid() {
		return fmt.Errorf("%w: side %q", ErrInvalidOrder, order.Side)
	}
	if order.Size <= 0 || math.IsNaN(order.Size) || math.IsInf(order.Size, 0) {
		return fmt.Errorf("%w: size must be a positive number", ErrInvalidOrder)
	}
	return nil
}
