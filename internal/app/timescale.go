package app

import (
	"delta-hedge-bot/internal/events"
	"delta-hedge-bot/internal/timescale"
)

// timescaleSink forwards exposure and trade events to the writer queues.
type timescaleSink struct {
	writer *timescale.Writer
}

func (s timescaleSink) Publish(ev events.Event) {
	switch payload := ev.Payload.(type) {
	case events.DeltaUpdate:
		s.writer.EnqueueExposure(timescale.ExposureRow{
			Time:            payload.LastCheckTimestamp.UTC(),
			TotalDelta:      payload.Delta,
			DeltaPercentage: payload.DeltaPercentage,
			Notional:        payload.Notional,
			PositionCount:   payload.PositionCount,
		})
	case events.TradeExecuted:
		s.writer.EnqueueTrade(timescale.TradeRow{
			Time:        ev.Time.UTC(),
			TradeID:     payload.ID,
			OrderID:     payload.OrderID,
			Side:        payload.Side,
			Size:        payload.Size,
			DeltaBefore: payload.DeltaBefore,
			TotalTrades: payload.TotalTrades,
		})
	}
}
