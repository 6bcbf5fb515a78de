package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"time"

	"delta-hedge-bot/internal/config"
	"delta-hedge-bot/internal/exchange"
	"delta-hedge-bot/internal/exec"
	"delta-hedge-bot/internal/logging"
	"delta-hedge-bot/internal/metrics"
	"delta-hedge-bot/internal/state"
	"delta-hedge-bot/internal/state/sqlite"
	"delta-hedge-bot/internal/strategy"
)

const (
	defaultRESTTimeout   = 10 * time.Second
	defaultRESTBaseURL   = "https://api.india.delta.exchange"
	defaultVerifyEnvFile = ".env"
)

func main() {
	configPath := flag.String("config", "", "optional config path for REST and hedge settings")
	place := flag.Bool("place", false, "submit the hedge order if one is due")
	productID := flag.Int("product-id", 0, "hedge product id (overrides config)")
	threshold := flag.Float64("threshold", -1, "delta threshold as a fraction (overrides config)")
	minSize := flag.Float64("min-size", -1, "minimum hedge size (overrides config)")
	journal := flag.Int("journal", 0, "print the N most recent journal entries and exit")
	journalKind := flag.String("journal-kind", "", "restrict -journal to trade, settings or command entries")
	flag.Parse()

	if err := config.LoadEnv(defaultVerifyEnvFile); err != nil {
		fatal(err)
	}

	logCfg := config.LoggingConfig{Level: "info"}
	baseURL := defaultRESTBaseURL
	timeout := defaultRESTTimeout
	policy := strategy.Policy{DeltaThreshold: config.DefaultDeltaThreshold}
	hedgeProduct := 0
	statePath := "data/delta-hedge-bot.db"
	if *configPath != "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			fatal(err)
		}
		logCfg = cfg.Log
		baseURL = cfg.REST.BaseURL
		timeout = cfg.REST.Timeout
		policy = strategy.Policy{DeltaThreshold: cfg.Hedge.DeltaThresholdValue(), MinHedgeSize: cfg.Hedge.MinHedgeSize}
		hedgeProduct = cfg.Hedge.HedgeProductID
		statePath = cfg.State.SQLitePath
	}
	if *productID > 0 {
		hedgeProduct = *productID
	}
	if *threshold >= 0 {
		policy.DeltaThreshold = *threshold
	}
	if *minSize >= 0 {
		policy.MinHedgeSize = *minSize
	}

	log := logging.New(logCfg)
	defer func() { _ = log.Sync() }()
	ctx := context.Background()

	if *journal > 0 {
		printJournal(ctx, statePath, *journalKind, *journal)
		return
	}

	creds, err := config.LoadCredentials()
	if err != nil {
		fatal(err)
	}
	client, err := exchange.NewClient(baseURL, timeout, creds.APIKey, creds.APISecret, log)
	if err != nil {
		fatal(err)
	}
	positions, err := client.FetchPositions(ctx)
	if err != nil {
		fatal(err)
	}
	for _, pos := range positions {
		fmt.Printf("position: product=%d symbol=%s type=%s size=%.4f delta=%.4f mark=%.2f\n",
			pos.ProductID, pos.ProductSymbol, pos.ProductType, pos.Size, pos.Delta, pos.MarkPrice)
	}
	exp := strategy.ComputeExposure(positions)
	fmt.Printf("exposure: delta=%.4f notional=%.2f delta_pct=%.2f%% positions=%d\n",
		exp.TotalDelta, exp.Notional, exp.DeltaPercentage*100, exp.PositionCount)

	decision := strategy.Decide(exp, policy)
	fmt.Printf("decision: action=%s side=%s size=%.4f\n", decision.Action, decision.Side, math.Abs(decision.Size))
	if decision.Action != strategy.ActionHedge || !*place {
		return
	}
	if hedgeProduct <= 0 {
		fatal(errors.New("hedge product id is required to place an order"))
	}
	executor := exec.New(client, metrics.NewNoop(), log)
	ack, err := executor.PlaceOrder(ctx, exec.Order{
		ProductID: hedgeProduct,
		Side:      decision.Side,
		Size:      math.Abs(decision.Size),
	})
	if err != nil {
		fatal(err)
	}
	fmt.Printf("exchange response: order_id=%s state=%s size=%.4f avg_fill=%.2f\n", ack.OrderID, ack.State, ack.Size, ack.AvgFillPrice)
}

func printJournal(ctx context.Context, path, kind string, limit int) {
	store, err := sqlite.New(path)
	if err != nil {
		fatal(err)
	}
	defer store.Close()
	prefix := "journal:"
	if kind != "" {
		prefix = state.JournalPrefix(kind)
	}
	entries, err := store.Scan(ctx, prefix, limit)
	if err != nil {
		fatal(err)
	}
	fmt.Printf("journal entries: %d\n", len(entries))
	for _, entry := range entries {
		fmt.Printf("%s %s\n", entry.Key, entry.Value)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
