package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"delta-hedge-bot/internal/events"
	"delta-hedge-bot/internal/exchange"
	"delta-hedge-bot/internal/exec"
	"delta-hedge-bot/internal/metrics"
	"delta-hedge-bot/internal/state"
	"delta-hedge-bot/internal/strategy"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const defaultCycleTimeout = 30 * time.Second

// ErrCycleInFlight is returned by RunCycle when another cycle is running.
var ErrCycleInFlight = errors.New("cycle already in flight")

type PositionSource interface {
	FetchPositions(ctx context.Context) ([]strategy.Position, error)
}

type OrderPlacer interface {
	PlaceOrder(ctx context.Context, order exec.Order) (exchange.OrderAck, error)
}

type Options struct {
	Settings  Settings
	Positions PositionSource
	Orders    OrderPlacer
	// Sinks receive every event in addition to the engine's subscribers.
	Sinks        []events.Sink
	Journal      *state.Journal
	Clock        Clock
	Metrics      *metrics.Metrics
	Log          *zap.Logger
	CycleTimeout time.Duration
}

// Engine owns the hedge loop. Every mutation of the bot state, the buffers
// and the event stream happens under mu, so subscribers observe events in
// the order they were applied.
type Engine struct {
	positions    PositionSource
	orders       OrderPlacer
	sinks        []events.Sink
	broadcaster  *events.Broadcaster
	journal      *state.Journal
	clock        Clock
	metrics      *metrics.Metrics
	log          *zap.Logger
	cycleTimeout time.Duration

	machine  *strategy.StateMachine
	history  *state.Buffer[ExposureSnapshot]
	trades   *state.Buffer[Trade]
	logs     *state.Buffer[LogEntry]
	inflight *semaphore.Weighted
	cycles   sync.WaitGroup

	baseCtx    context.Context
	cancelBase context.CancelFunc

	mu       sync.Mutex
	settings Settings
	bot      BotState
	run      uint64
	loop     *loop
	closed   bool
}

type loop struct {
	ticker Ticker
	cancel context.CancelFunc
	done   chan struct{}
}

func New(opts Options) (*Engine, error) {
	if opts.Positions == nil {
		return nil, errors.New("position source is required")
	}
	if opts.Orders == nil {
		return nil, errors.New("order placer is required")
	}
	if err := opts.Settings.Validate(); err != nil {
		return nil, err
	}
	if opts.Clock == nil {
		opts.Clock = RealClock()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewNoop()
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.CycleTimeout <= 0 {
		opts.CycleTimeout = defaultCycleTimeout
	}
	baseCtx, cancel := context.WithCancel(context.Background())
	return &Engine{
		positions:    opts.Positions,
		orders:       opts.Orders,
		sinks:        opts.Sinks,
		broadcaster:  events.NewBroadcaster(opts.Metrics),
		journal:      opts.Journal,
		clock:        opts.Clock,
		metrics:      opts.Metrics,
		log:          opts.Log,
		cycleTimeout: opts.CycleTimeout,
		machine:      strategy.NewStateMachine(),
		history:      state.NewBuffer[ExposureSnapshot](HistoryCapacity, state.OldestFirst),
		trades:       state.NewBuffer[Trade](TradesCapacity, state.NewestFirst),
		logs:         state.NewBuffer[LogEntry](LogsCapacity, state.NewestFirst),
		inflight:     semaphore.NewWeighted(1),
		baseCtx:      baseCtx,
		cancelBase:   cancel,
		settings:     opts.Settings,
		bot:          BotState{Status: strategy.StateStopped},
	}, nil
}

// Start arms the ticker and runs the first cycle immediately. It reports
// whether the bot was stopped before the call.
func (e *Engine) Start() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	return e.startLocked()
}

// Stop cancels future cycles. A cycle already in flight finishes but its
// observation is discarded.
func (e *Engine) Stop() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopLocked()
}

func (e *Engine) startLocked() bool {
	next, changed := e.machine.Apply(strategy.EventStart)
	if !changed {
		return false
	}
	e.bot.Status = next
	e.run++
	e.logLocked(LevelInfo, fmt.Sprintf("Bot started, checking every %s", e.settings.Interval()))
	e.armLocked(e.run)
	return true
}

func (e *Engine) stopLocked() bool {
	next, changed := e.machine.Apply(strategy.EventStop)
	if !changed {
		return false
	}
	e.bot.Status = next
	e.run++
	e.disarmLocked()
	e.logLocked(LevelInfo, "Bot stopped")
	return true
}

func (e *Engine) armLocked(run uint64) {
	ctx, cancel := context.WithCancel(e.baseCtx)
	l := &loop{
		ticker: e.clock.NewTicker(e.settings.Interval()),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	e.loop = l
	go e.runLoop(ctx, l, run)
}

// disarmLocked waits for the loop goroutine, which never takes mu.
func (e *Engine) disarmLocked() {
	if e.loop == nil {
		return
	}
	e.loop.ticker.Stop()
	e.loop.cancel()
	<-e.loop.done
	e.loop = nil
}

// runLoop waits for any cycle left over from a previous run before the
// immediate first cycle, so a restart always produces a fresh observation.
func (e *Engine) runLoop(ctx context.Context, l *loop, run uint64) {
	defer close(l.done)
	if err := e.inflight.Acquire(ctx, 1); err != nil {
		return
	}
	e.launch(run)
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.ticker.C():
			e.tick(run)
		}
	}
}

func (e *Engine) tick(run uint64) {
	if !e.inflight.TryAcquire(1) {
		e.metrics.CyclesSkipped.Inc()
		e.log.Debug("tick skipped, cycle in flight")
		return
	}
	e.launch(run)
}

// launch runs a cycle in the background. The caller holds the inflight slot.
func (e *Engine) launch(run uint64) {
	e.cycles.Add(1)
	go func() {
		defer e.cycles.Done()
		defer e.inflight.Release(1)
		e.runCycle(e.baseCtx, run)
	}()
}

// RunCycle runs one cycle synchronously. Observations are only applied while
// the bot is running.
func (e *Engine) RunCycle(ctx context.Context) (CycleReport, error) {
	if !e.inflight.TryAcquire(1) {
		e.metrics.CyclesSkipped.Inc()
		return CycleReport{}, ErrCycleInFlight
	}
	defer e.inflight.Release(1)
	e.mu.Lock()
	run := e.run
	e.mu.Unlock()
	return e.runCycle(ctx, run), nil
}

func (e *Engine) runCycle(parent context.Context, run uint64) CycleReport {
	ctx, cancel := context.WithTimeout(parent, e.cycleTimeout)
	defer cancel()

	e.mu.Lock()
	settings := e.settings
	e.mu.Unlock()

	positions, err := e.positions.FetchPositions(ctx)
	if err != nil {
		e.metrics.FetchFailed.Inc()
		e.mu.Lock()
		defer e.mu.Unlock()
		if !e.currentLocked(run) {
			return CycleReport{Err: err, Discarded: true}
		}
		e.logLocked(LevelError, fmt.Sprintf("Failed to fetch positions: %v", err))
		return CycleReport{Err: err}
	}

	exp := strategy.ComputeExposure(positions)
	now := e.clock.Now()
	report := CycleReport{
		Snapshot: ExposureSnapshot{
			DeltaPercentage:  exp.DeltaPercentage,
			TotalDelta:       exp.TotalDelta,
			EthValueNotional: exp.Notional,
			PositionCount:    exp.PositionCount,
			Timestamp:        now,
		},
		Decision: strategy.Decide(exp, settings.Policy()),
	}

	e.mu.Lock()
	if !e.currentLocked(run) {
		e.mu.Unlock()
		e.log.Info("cycle result discarded, bot stopped")
		report.Discarded = true
		return report
	}
	e.recordExposureLocked(report.Snapshot, len(positions))
	proceed := e.reportDecisionLocked(exp, report.Decision, settings)
	e.mu.Unlock()
	e.metrics.Cycles.Inc()
	if !proceed {
		return report
	}

	order := exec.Order{
		ProductID: settings.HedgeProductID,
		Side:      report.Decision.Side,
		Size:      math.Abs(report.Decision.Size),
	}
	ack, err := e.orders.PlaceOrder(ctx, order)
	if err != nil {
		report.Err = err
		e.mu.Lock()
		e.logLocked(LevelError, fmt.Sprintf("Hedge order failed: %v", err))
		e.mu.Unlock()
		return report
	}

	// A filled order is recorded even if the bot was stopped meanwhile.
	trade := Trade{
		ID:               uuid.NewString(),
		Side:             order.Side,
		HedgeSize:        order.Size,
		DeltaBeforeHedge: exp.TotalDelta,
		OrderResult:      ack,
		Timestamp:        e.clock.Now(),
	}
	e.mu.Lock()
	e.trades.Append(trade)
	e.bot.TotalTradesExecuted++
	total := e.bot.TotalTradesExecuted
	e.publishLocked(events.TypeTradeExecuted, events.TradeExecuted{
		ID:          trade.ID,
		Side:        string(trade.Side),
		Size:        trade.HedgeSize,
		DeltaBefore: trade.DeltaBeforeHedge,
		TotalTrades: total,
		OrderID:     ack.OrderID,
	})
	e.logLocked(LevelInfo, fmt.Sprintf("Hedge executed: %s %.4f (order %s)", trade.Side, trade.HedgeSize, ack.OrderID))
	e.mu.Unlock()
	report.Trade = &trade

	if err := e.journal.Record(e.baseCtx, state.JournalTrade, trade); err != nil {
		e.log.Warn("journal trade failed", zap.Error(err))
	}
	return report
}

func (e *Engine) currentLocked(run uint64) bool {
	return !e.closed && e.run == run && e.bot.Status == strategy.StateRunning
}

func (e *Engine) recordExposureLocked(snap ExposureSnapshot, positions int) {
	if positions == 0 {
		e.logLocked(LevelInfo, "No open positions")
	}
	e.history.Append(snap)
	ts := snap.Timestamp
	e.bot.CurrentDelta = snap.TotalDelta
	e.bot.CurrentDeltaPercentage = snap.DeltaPercentage
	e.bot.CurrentNotional = snap.EthValueNotional
	e.bot.LastCheckTimestamp = &ts
	e.metrics.DeltaPercentage.Set(snap.DeltaPercentage)
	e.metrics.Notional.Set(snap.EthValueNotional)
	e.publishLocked(events.TypeDeltaUpdate, events.DeltaUpdate{
		Delta:              snap.TotalDelta,
		DeltaPercentage:    snap.DeltaPercentage,
		Notional:           snap.EthValueNotional,
		PositionCount:      snap.PositionCount,
		LastCheckTimestamp: ts,
	})
}

// reportDecisionLocked logs the decision and reports whether an order
// should be placed.
func (e *Engine) reportDecisionLocked(exp strategy.Exposure, decision strategy.Decision, settings Settings) bool {
	pct := exp.DeltaPercentage * 100
	switch decision.Action {
	case strategy.ActionNone:
		e.logLocked(LevelInfo, fmt.Sprintf("Delta %.2f%% within threshold %.2f%%", pct, settings.DeltaThreshold*100))
		return false
	case strategy.ActionSkipSmall:
		e.metrics.HedgesSkippedSmall.Inc()
		e.logLocked(LevelWarning, fmt.Sprintf("Hedge size %.4f below minimum %.4f, skipped", math.Abs(decision.Size), settings.MinHedgeSize))
		return false
	}
	e.logLocked(LevelInfo, fmt.Sprintf("Delta %.2f%% exceeds threshold %.2f%%, hedging %s %.4f", pct, settings.DeltaThreshold*100, decision.Side, math.Abs(decision.Size)))
	return true
}

func (e *Engine) logLocked(level Level, message string) {
	entry := LogEntry{Level: level, Message: message, Timestamp: e.clock.Now()}
	e.logs.Append(entry)
	switch level {
	case LevelError:
		e.log.Error(message)
	case LevelWarning:
		e.log.Warn(message)
	default:
		e.log.Info(message)
	}
	e.publishLocked(events.TypeLogEmitted, events.LogEmitted{
		Level:     string(entry.Level),
		Message:   entry.Message,
		Timestamp: entry.Timestamp,
	})
}

func (e *Engine) publishLocked(typ events.Type, payload any) {
	ev := events.Event{Type: typ, Payload: payload, Time: e.clock.Now()}
	e.broadcaster.Publish(ev)
	for _, sink := range e.sinks {
		sink.Publish(ev)
	}
}

// UpdateSettings validates and applies a partial update. A changed check
// interval while running restarts the loop, which runs one extra cycle
// immediately.
func (e *Engine) UpdateSettings(patch SettingsPatch) (Settings, error) {
	e.mu.Lock()
	next, restart, err := e.settings.Apply(patch)
	if err != nil {
		current := e.settings
		e.mu.Unlock()
		return current, err
	}
	e.settings = next
	e.logLocked(LevelInfo, fmt.Sprintf("Settings updated: threshold %.2f%%, interval %dms, min size %.4f, product %d",
		next.DeltaThreshold*100, next.CheckIntervalMS, next.MinHedgeSize, next.HedgeProductID))
	if restart && e.bot.Status == strategy.StateRunning && !e.closed {
		e.stopLocked()
		e.startLocked()
	}
	e.mu.Unlock()

	if err := e.journal.Record(e.baseCtx, state.JournalSettings, next); err != nil {
		e.log.Warn("journal settings failed", zap.Error(err))
	}
	return next, nil
}

func (e *Engine) Settings() Settings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settings
}

func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.statusLocked()
}

func (e *Engine) statusLocked() Status {
	bot := e.bot
	if bot.LastCheckTimestamp != nil {
		ts := *bot.LastCheckTimestamp
		bot.LastCheckTimestamp = &ts
	}
	return Status{BotState: bot, Settings: e.settings}
}

// RecentTrades returns up to limit trades, newest first.
func (e *Engine) RecentTrades(limit int) []Trade {
	return e.trades.Recent(limit)
}

// DeltaHistory returns up to limit snapshots, oldest first.
func (e *Engine) DeltaHistory(limit int) []ExposureSnapshot {
	return e.history.Recent(limit)
}

// RecentLogs returns up to limit log entries, newest first.
func (e *Engine) RecentLogs(limit int) []LogEntry {
	return e.logs.Recent(limit)
}

// Subscribe returns a subscription whose first event is a statusSnapshot.
func (e *Engine) Subscribe(buffer int) *events.Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()
	snapshot := events.Event{
		Type:    events.TypeStatusSnapshot,
		Payload: e.statusLocked(),
		Time:    e.clock.Now(),
	}
	return e.broadcaster.Subscribe(buffer, snapshot)
}

// Close stops the bot, waits for in-flight cycles and closes subscriptions.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.stopLocked()
	e.closed = true
	e.mu.Unlock()

	e.cancelBase()
	e.cycles.Wait()
	e.broadcaster.Close()
}
