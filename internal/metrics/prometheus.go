package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const promNamespace = "delta_hedge_bot"

type Prometheus struct {
	Metrics *Metrics

	registry      *prometheus.Registry
	cycles        prometheus.Counter
	cyclesSkipped prometheus.Counter
	fetchFailed   prometheus.Counter
	ordersPlaced  prometheus.Counter
	ordersFailed  prometheus.Counter
	skippedSmall  prometheus.Counter
	eventsDropped prometheus.Counter
	deltaPct      prometheus.Gauge
	notional      prometheus.Gauge
}

func newCounter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      name,
		Help:      help,
	})
}

func newGauge(name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: promNamespace,
		Name:      name,
		Help:      help,
	})
}

func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry:      prometheus.NewRegistry(),
		cycles:        newCounter("cycles_total", "Total number of completed hedge cycles."),
		cyclesSkipped: newCounter("cycles_skipped_total", "Ticks skipped because a cycle was still in flight."),
		fetchFailed:   newCounter("fetch_failed_total", "Total number of failed position fetches."),
		ordersPlaced:  newCounter("orders_placed_total", "Total number of hedge orders accepted by the exchange."),
		ordersFailed:  newCounter("orders_failed_total", "Total number of hedge order failures."),
		skippedSmall:  newCounter("hedges_skipped_small_total", "Hedges skipped because the size was below the minimum."),
		eventsDropped: newCounter("events_dropped_total", "Events dropped because a subscriber buffer was full."),
		deltaPct:      newGauge("delta_percentage", "Net delta as a fraction of notional at the last check."),
		notional:      newGauge("notional", "Absolute notional of open positions at the last check."),
	}
	p.registry.MustRegister(
		p.cycles,
		p.cyclesSkipped,
		p.fetchFailed,
		p.ordersPlaced,
		p.ordersFailed,
		p.skippedSmall,
		p.eventsDropped,
		p.deltaPct,
		p.notional,
	)
	p.Metrics = &Metrics{
		Cycles:             p.cycles,
		CyclesSkipped:      p.cyclesSkipped,
		FetchFailed:        p.fetchFailed,
		OrdersPlaced:       p.ordersPlaced,
		OrdersFailed:       p.ordersFailed,
		HedgesSkippedSmall: p.skippedSmall,
		EventsDropped:      p.eventsDropped,
		DeltaPercentage:    p.deltaPct,
		Notional:           p.notional,
	}
	return p
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
