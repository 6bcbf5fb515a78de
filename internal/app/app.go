package app

import (
	"context"
	"errors"
	"time"

	"delta-hedge-bot/internal/alerts"
	"delta-hedge-bot/internal/api"
	"delta-hedge-bot/internal/config"
	"delta-hedge-bot/internal/engine"
	"delta-hedge-bot/internal/events"
	"delta-hedge-bot/internal/exchange"
	"delta-hedge-bot/internal/exec"
	"delta-hedge-bot/internal/metrics"
	"delta-hedge-bot/internal/state"
	"delta-hedge-bot/internal/state/sqlite"
	"delta-hedge-bot/internal/timescale"
	"delta-hedge-bot/internal/ws"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const notifierBuffer = 64

// controller is the engine surface the app drives.
type controller interface {
	api.Controller
	Settings() engine.Settings
	Subscribe(buffer int) *events.Subscription
	Close()
}

type telegramClient interface {
	Send(ctx context.Context, message string) error
	GetUpdates(ctx context.Context, offset int64, wait time.Duration) ([]alerts.Update, error)
}

type App struct {
	cfg       *config.Config
	log       *zap.Logger
	store     state.Store
	journal   *state.Journal
	engine    controller
	alerts    telegramClient
	notifier  *alerts.Notifier
	timescale *timescale.Writer
	http      *api.Server

	operatorWarned bool
}

func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	creds, err := config.LoadCredentials()
	if err != nil {
		return nil, err
	}
	store, err := sqlite.New(cfg.State.SQLitePath)
	if err != nil {
		return nil, err
	}
	journal := state.NewJournal(store)

	client, err := exchange.NewClient(cfg.REST.BaseURL, cfg.REST.Timeout, creds.APIKey, creds.APISecret, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	var prom *metrics.Prometheus
	m := metrics.NewNoop()
	if cfg.Metrics.EnabledValue() {
		prom = metrics.NewPrometheus()
		m = prom.Metrics
	}
	executor := exec.New(client, m, log)

	writer, err := timescale.New(cfg.Timescale, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	var sinks []events.Sink
	if writer != nil {
		sinks = append(sinks, timescaleSink{writer: writer})
	}

	eng, err := engine.New(engine.Options{
		Settings:  settingsFromConfig(cfg.Hedge),
		Positions: client,
		Orders:    executor,
		Sinks:     sinks,
		Journal:   journal,
		Metrics:   m,
		Log:       log,
	})
	if err != nil {
		_ = writer.Close()
		_ = store.Close()
		return nil, err
	}

	a := &App{
		cfg:       cfg,
		log:       log,
		store:     store,
		journal:   journal,
		engine:    eng,
		timescale: writer,
	}
	if cfg.Telegram.Enabled {
		tg := alerts.NewTelegram(cfg.Telegram, log)
		a.alerts = tg
		a.notifier = alerts.NewNotifier(tg, log)
	}
	if cfg.HTTP.EnabledValue() {
		stream := ws.NewServer(eng, cfg.HTTP.PingInterval, log)
		stream.AllowOrigins(cfg.HTTP.AllowedOrigins...)
		opts := api.Options{
			Addr:            cfg.HTTP.Addr,
			Controller:      eng,
			Stream:          stream,
			MetricsPath:     cfg.Metrics.Path,
			ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
			Log:             log,
		}
		if prom != nil {
			opts.Metrics = prom.Handler()
		}
		a.http = api.NewServer(opts)
	}
	return a, nil
}

func settingsFromConfig(cfg config.HedgeConfig) engine.Settings {
	return engine.Settings{
		DeltaThreshold:  cfg.DeltaThresholdValue(),
		CheckIntervalMS: cfg.CheckInterval.Milliseconds(),
		MinHedgeSize:    cfg.MinHedgeSize,
		HedgeProductID:  cfg.HedgeProductID,
	}
}

// Run serves until ctx is cancelled. The engine is closed before returning.
func (a *App) Run(ctx context.Context) error {
	defer a.close()
	g, ctx := errgroup.WithContext(ctx)

	a.timescale.Start(ctx)
	if a.notifier != nil {
		sub := a.engine.Subscribe(notifierBuffer)
		g.Go(func() error {
			a.notifier.Run(ctx, sub)
			return nil
		})
	}
	if op, ok := a.newOperator(); ok {
		g.Go(func() error {
			a.operatorLoop(ctx, op)
			return nil
		})
	}
	if a.http != nil {
		g.Go(func() error {
			return a.http.Run(ctx)
		})
	}
	if a.cfg.Hedge.AutoStart {
		a.engine.Start()
	}
	a.log.Info("delta hedge bot running",
		zap.Bool("auto_start", a.cfg.Hedge.AutoStart),
		zap.Int("hedge_product_id", a.cfg.Hedge.HedgeProductID),
	)

	g.Go(func() error {
		<-ctx.Done()
		a.engine.Close()
		return nil
	})
	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (a *App) close() {
	a.engine.Close()
	if err := a.timescale.Close(); err != nil {
		a.log.Warn("timescale close failed", zap.Error(err))
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("state store close failed", zap.Error(err))
		}
	}
}
