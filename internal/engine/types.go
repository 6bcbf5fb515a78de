package engine

import (
	"time"

	"delta-hedge-bot/internal/exchange"
	"delta-hedge-bot/internal/strategy"
)

const (
	HistoryCapacity = 100
	TradesCapacity  = 50
	LogsCapacity    = 200
)

type Level string

const (
	LevelInfo    Level = "INFO"
	LevelWarning Level = "WARNING"
	LevelError   Level = "ERROR"
)

type BotState struct {
	Status                 strategy.State `json:"status" msgpack:"status"`
	CurrentDelta           float64        `json:"currentDelta" msgpack:"currentDelta"`
	CurrentDeltaPercentage float64        `json:"currentDeltaPercentage" msgpack:"currentDeltaPercentage"`
	CurrentNotional        float64        `json:"currentNotional" msgpack:"currentNotional"`
	TotalTradesExecuted    int64          `json:"totalTradesExecuted" msgpack:"totalTradesExecuted"`
	LastCheckTimestamp     *time.Time     `json:"lastCheckTimestamp" msgpack:"lastCheckTimestamp"`
}

// Status is the pull-side view of the engine, also sent as the
// statusSnapshot event when a subscriber connects.
type Status struct {
	BotState
	Settings Settings `json:"settings" msgpack:"settings"`
}

type ExposureSnapshot struct {
	DeltaPercentage  float64   `json:"deltaPercentage" msgpack:"deltaPercentage"`
	TotalDelta       float64   `json:"totalDelta" msgpack:"totalDelta"`
	EthValueNotional float64   `json:"ethValueNotional" msgpack:"ethValueNotional"`
	PositionCount    int       `json:"positionCount" msgpack:"positionCount"`
	Timestamp        time.Time `json:"timestamp" msgpack:"timestamp"`
}

type Trade struct {
	ID               string            `json:"id" msgpack:"id"`
	Side             strategy.Side     `json:"side" msgpack:"side"`
	HedgeSize        float64           `json:"hedgeSize" msgpack:"hedgeSize"`
	DeltaBeforeHedge float64           `json:"deltaBeforeHedge" msgpack:"deltaBeforeHedge"`
	OrderResult      exchange.OrderAck `json:"orderResult" msgpack:"orderResult"`
	Timestamp        time.Time         `json:"timestamp" msgpack:"timestamp"`
}

type LogEntry struct {
	Level     Level     `json:"level" msgpack:"level"`
	Message   string    `json:"message" msgpack:"message"`
	Timestamp time.Time `json:"timestamp" msgpack:"timestamp"`
}

// CycleReport describes what a single cycle observed and did.
type CycleReport struct {
	Snapshot ExposureSnapshot
	Decision strategy.Decision
	Trade    *Trade
	Err      error
	// Discarded is set when the bot was stopped before the cycle could
	// record its observation.
	Discarded bool
}
