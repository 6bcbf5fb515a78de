package strategy

type ProductType string

const (
	ProductFuture     ProductType = "future"
	ProductCallOption ProductType = "call_option"
	ProductPutOption  ProductType = "put_option"
	ProductOther      ProductType = "other"
)

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Position is an open position as reported by the exchange. Delta is the
// option greek and is ignored for futures.
type Position struct {
	ProductID     int         `json:"productId"`
	ProductSymbol string      `json:"productSymbol"`
	ProductType   ProductType `json:"productType"`
	Size          float64     `json:"size"`
	Delta         float64     `json:"delta"`
	MarkPrice     float64     `json:"markPrice"`
}

type Exposure struct {
	TotalDelta      float64 `json:"totalDelta"`
	Notional        float64 `json:"notional"`
	DeltaPercentage float64 `json:"deltaPercentage"`
	PositionCount   int     `json:"positionCount"`
}

type Action string

const (
	ActionNone      Action = "none"
	ActionSkipSmall Action = "skip_small"
	ActionHedge     Action = "hedge"
)

// Policy is the subset of settings the hedge decision depends on.
type Policy struct {
	DeltaThreshold float64
	MinHedgeSize   float64
}

type Decision struct {
	Action Action
	Side   Side
	// Size is the signed quantity that would flatten TotalDelta.
	Size float64
}

type State string

type Event string

const (
	StateStopped State = "stopped"
	StateRunning State = "running"
)

const (
	EventStart Event = "START"
	EventStop  Event = "STOP"
)
