package events

import "time"

type Type string

const (
	TypeDeltaUpdate    Type = "deltaUpdate"
	TypeTradeExecuted  Type = "tradeExecuted"
	TypeLogEmitted     Type = "logEmitted"
	TypeStatusSnapshot Type = "statusSnapshot"
)

type Event struct {
	Type    Type      `json:"type" msgpack:"type"`
	Payload any       `json:"payload" msgpack:"payload"`
	Time    time.Time `json:"time" msgpack:"time"`
}

type DeltaUpdate struct {
	Delta              float64   `json:"delta" msgpack:"delta"`
	DeltaPercentage    float64   `json:"deltaPercentage" msgpack:"deltaPercentage"`
	Notional           float64   `json:"notional" msgpack:"notional"`
	PositionCount      int       `json:"positionCount" msgpack:"positionCount"`
	LastCheckTimestamp time.Time `json:"lastCheckTimestamp" msgpack:"lastCheckTimestamp"`
}

type TradeExecuted struct {
	ID          string  `json:"id" msgpack:"id"`
	Side        string  `json:"side" msgpack:"side"`
	Size        float64 `json:"size" msgpack:"size"`
	DeltaBefore float64 `json:"deltaBefore" msgpack:"deltaBefore"`
	TotalTrades int64   `json:"totalTrades" msgpack:"totalTrades"`
	OrderID     string  `json:"orderId,omitempty" msgpack:"orderId,omitempty"`
}

type LogEmitted struct {
	Level     string    `json:"level" msgpack:"level"`
	Message   string    `json:"message" msgpack:"message"`
	Timestamp time.Time `json:"timestamp" msgpack:"timestamp"`
}

// Sink is the publish side of the event stream.
type Sink interface {
	Publish(Event)
}
