package metrics

type Counter interface {
	Inc()
}

type Gauge interface {
	Set(float64)
}

type Metrics struct {
	Cycles             Counter
	CyclesSkipped      Counter
	FetchFailed        Counter
	OrdersPlaced       Counter
	OrdersFailed       Counter
	HedgesSkippedSmall Counter
	EventsDropped      Counter
	DeltaPercentage    Gauge
	Notional           Gauge
}

type noop struct{}

func (noop) Inc() {}

func (noop) Set(float64) {}

func NewNoop() *Metrics {
	n := noop{}
	return &Metrics{
		Cycles:             n,
		CyclesSkipped:      n,
		FetchFailed:        n,
		OrdersPlaced:       n,
		OrdersFailed:       n,
		HedgesSkippedSmall: n,
		EventsDropped:      n,
		DeltaPercentage:    n,
		Notional:           n,
	}
}
