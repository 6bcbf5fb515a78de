package exchange

import (
	"encoding/json"

	"delta-hedge-bot/internal/strategy"
)

const (
	PositionsPath = "/v2/positions"
	OrdersPath    = "/v2/orders"

	OrderTypeMarket              = "market_order"
	TimeInForceImmediateOrCancel = "immediate_or_cancel"
)

type MarketOrder struct {
	ProductID int
	Size      float64
	Side      strategy.Side
}

type orderRequest struct {
	ProductID   int     `json:"product_id"`
	Size        float64 `json:"size"`
	Side        string  `json:"side"`
	OrderType   string  `json:"order_type"`
	TimeInForce string  `json:"time_in_force"`
}

// OrderAck is what the exchange returned for an accepted order.
type OrderAck struct {
	OrderID       string  `json:"orderId" msgpack:"orderId"`
	ProductID     int     `json:"productId" msgpack:"productId"`
	Side          string  `json:"side" msgpack:"side"`
	Size          float64 `json:"size" msgpack:"size"`
	UnfilledSize  float64 `json:"unfilledSize" msgpack:"unfilledSize"`
	State         string  `json:"state" msgpack:"state"`
	AvgFillPrice  float64 `json:"avgFillPrice" msgpack:"avgFillPrice"`
	ClientOrderID string  `json:"clientOrderId,omitempty" msgpack:"clientOrderId,omitempty"`
}

type envelope struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
	Error   json.RawMessage `json:"error"`
}
