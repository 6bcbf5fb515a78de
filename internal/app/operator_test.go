package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"delta-hedge-bot/internal/alerts"
	"delta-hedge-bot/internal/config"
	"delta-hedge-bot/internal/engine"
	"delta-hedge-bot/internal/events"
	"delta-hedge-bot/internal/state"
	"delta-hedge-bot/internal/strategy"

	"go.uber.org/zap"
)

type fakeController struct {
	mu       sync.Mutex
	settings engine.Settings
	running  bool
	closed   bool
	b        *events.Broadcaster
}

func newFakeController() *fakeController {
	return &fakeController{
		settings: engine.Settings{DeltaThreshold: 0.15, CheckIntervalMS: 30000, HedgeProductID: 3136},
		b:        events.NewBroadcaster(nil),
	}
}

func (f *fakeController) Status() engine.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := engine.Status{Settings: f.settings}
	st.Status = strategy.StateStopped
	if f.running {
		st.Status = strategy.StateRunning
	}
	return st
}

func (f *fakeController) RecentTrades(limit int) []engine.Trade { return nil }

func (f *fakeController) DeltaHistory(limit int) []engine.ExposureSnapshot { return nil }

func (f *fakeController) RecentLogs(limit int) []engine.LogEntry { return nil }

func (f *fakeController) Start() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	changed := !f.running
	f.running = true
	return changed
}

func (f *fakeController) Stop() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	changed := f.running
	f.running = false
	return changed
}

func (f *fakeController) UpdateSettings(patch engine.SettingsPatch) (engine.Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	next, _, err := f.settings.Apply(patch)
	if err != nil {
		return f.settings, err
	}
	f.settings = next
	return next, nil
}

func (f *fakeController) Settings() engine.Settings {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.settings
}

func (f *fakeController) Subscribe(buffer int) *events.Subscription {
	return f.b.Subscribe(buffer)
}

func (f *fakeController) Close() {
	f.mu.Lock()
	f.closed = true
	f.running = false
	f.mu.Unlock()
	f.b.Close()
}

type fakeTelegram struct {
	mu      sync.Mutex
	sent    []string
	updates [][]alerts.Update
	offsets []int64
}

func (f *fakeTelegram) Send(ctx context.Context, message string) error {
	_ = ctx
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, message)
	return nil
}

func (f *fakeTelegram) GetUpdates(ctx context.Context, offset int64, wait time.Duration) ([]alerts.Update, error) {
	f.mu.Lock()
	f.offsets = append(f.offsets, offset)
	if len(f.updates) > 0 {
		next := f.updates[0]
		f.updates = f.updates[1:]
		f.mu.Unlock()
		return next, nil
	}
	f.mu.Unlock()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(wait):
		return nil, nil
	}
}

func (f *fakeTelegram) Sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func newTestApp() (*App, *fakeController, *state.Memory) {
	store := state.NewMemory()
	ctl := newFakeController()
	return &App{
		cfg:     &config.Config{},
		log:     zap.NewNop(),
		store:   store,
		journal: state.NewJournal(store),
		engine:  ctl,
	}, ctl, store
}

func auditRecords(t *testing.T, store *state.Memory) []state.Entry {
	t.Helper()
	records, err := store.Scan(context.Background(), state.JournalPrefix(state.JournalCommand), 0)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	return records
}

func TestParseOperatorCommand(t *testing.T) {
	cmd, args, ok := parseOperatorCommand("/set delta_threshold=0.2")
	if !ok || cmd != "set" {
		t.Fatalf("unexpected parse: %s %v", cmd, ok)
	}
	if len(args) != 1 || args[0] != "delta_threshold=0.2" {
		t.Fatalf("unexpected args: %v", args)
	}
	cmd, _, ok = parseOperatorCommand("/Status@hedge_bot")
	if !ok || cmd != "status" {
		t.Fatalf("expected status, got %s", cmd)
	}
	if _, _, ok := parseOperatorCommand("hello"); ok {
		t.Fatalf("expected plain text to be ignored")
	}
}

func TestParseSettingsPatch(t *testing.T) {
	patch, err := parseSettingsPatch([]string{"delta_threshold=0.2", "check_interval_ms=5000", "min_hedge_size=1.5", "hedge_product_id=27"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if *patch.DeltaThreshold != 0.2 || *patch.CheckIntervalMS != 5000 || *patch.MinHedgeSize != 1.5 || *patch.HedgeProductID != 27 {
		t.Fatalf("unexpected patch: %+v", patch)
	}
	for _, args := range [][]string{nil, {"unknown=1"}, {"delta_threshold=abc"}, {"min_hedge_size"}} {
		if _, err := parseSettingsPatch(args); err == nil {
			t.Fatalf("expected error for %v", args)
		}
	}
}

func TestOperatorStartStopAudit(t *testing.T) {
	app, ctl, store := newTestApp()
	meta := operatorMeta{UserID: 1, ChatID: 2, Raw: "/start"}

	resp, err := app.handleOperatorCommand(context.Background(), "start", nil, meta)
	if err != nil || resp != "bot started" {
		t.Fatalf("unexpected start response: %q %v", resp, err)
	}
	resp, _ = app.handleOperatorCommand(context.Background(), "start", nil, meta)
	if resp != "bot already running" {
		t.Fatalf("unexpected second start response: %q", resp)
	}
	meta.Raw = "/stop"
	resp, _ = app.handleOperatorCommand(context.Background(), "stop", nil, meta)
	if resp != "bot stopped" || ctl.running {
		t.Fatalf("unexpected stop response: %q", resp)
	}
	if got := len(auditRecords(t, store)); got != 3 {
		t.Fatalf("expected 3 audit records, got %d", got)
	}
}

func TestOperatorSetSettings(t *testing.T) {
	app, ctl, store := newTestApp()
	meta := operatorMeta{UserID: 1, ChatID: 2, Raw: "/set delta_threshold=0.25"}
	resp, err := app.handleOperatorCommand(context.Background(), "set", []string{"delta_threshold=0.25"}, meta)
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if !strings.Contains(resp, "delta_threshold=0.2500") {
		t.Fatalf("unexpected response: %s", resp)
	}
	if ctl.Settings().DeltaThreshold != 0.25 {
		t.Fatalf("settings not applied")
	}
	records := auditRecords(t, store)
	if len(records) != 1 || !strings.Contains(records[0].Value, `"settings_after"`) {
		t.Fatalf("unexpected audit records: %v", records)
	}
}

func TestOperatorSetRejectsInvalid(t *testing.T) {
	app, ctl, store := newTestApp()
	meta := operatorMeta{Raw: "/set check_interval_ms=0"}
	_, err := app.handleOperatorCommand(context.Background(), "set", []string{"check_interval_ms=0"}, meta)
	if !errors.Is(err, engine.ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
	if ctl.Settings().CheckIntervalMS != 30000 {
		t.Fatalf("settings changed on invalid input")
	}
	records := auditRecords(t, store)
	if len(records) != 1 || !strings.Contains(records[0].Value, `"error"`) {
		t.Fatalf("expected failed command audited, got %v", records)
	}
}

func TestHandleOperatorUpdateFilters(t *testing.T) {
	app, _, _ := newTestApp()
	tg := &fakeTelegram{}
	app.alerts = tg
	op := operatorConfig{chatID: 100, allowedUsers: map[int64]struct{}{7: {}}}

	update := func(chatID, userID int64, text string) alerts.Update {
		return alerts.Update{UpdateID: 1, Message: &alerts.Message{
			Text: text,
			Chat: &alerts.Chat{ID: chatID},
			From: &alerts.User{ID: userID},
		}}
	}
	app.handleOperatorUpdate(context.Background(), update(999, 7, "/status"), op)
	app.handleOperatorUpdate(context.Background(), update(100, 8, "/status"), op)
	app.handleOperatorUpdate(context.Background(), update(100, 7, "not a command"), op)
	if got := len(tg.Sent()); got != 0 {
		t.Fatalf("expected filtered updates to be ignored, got %d replies", got)
	}
	app.handleOperatorUpdate(context.Background(), update(100, 7, "/status"), op)
	sent := tg.Sent()
	if len(sent) != 1 || !strings.Contains(sent[0], "status: stopped") {
		t.Fatalf("unexpected replies: %v", sent)
	}
	app.handleOperatorUpdate(context.Background(), update(100, 7, "/set nope=1"), op)
	sent = tg.Sent()
	if !strings.HasPrefix(sent[len(sent)-1], "command failed:") {
		t.Fatalf("expected failure reply, got %q", sent[len(sent)-1])
	}
}

func TestOperatorLoopPersistsOffset(t *testing.T) {
	app, ctl, store := newTestApp()
	tg := &fakeTelegram{updates: [][]alerts.Update{{
		{UpdateID: 10, Message: &alerts.Message{Text: "/start", Chat: &alerts.Chat{ID: 5}, From: &alerts.User{ID: 1}}},
	}}}
	app.alerts = tg
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		app.operatorLoop(ctx, operatorConfig{chatID: 5, pollInterval: 10 * time.Millisecond})
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for len(tg.Sent()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	if sent := tg.Sent(); len(sent) != 1 || sent[0] != "bot started" {
		t.Fatalf("unexpected replies: %v", sent)
	}
	if ctl.Status().Status != strategy.StateRunning {
		t.Fatalf("expected controller running")
	}
	raw, ok, _ := store.Get(context.Background(), operatorOffsetKey)
	if !ok || raw != "11" {
		t.Fatalf("expected offset 11 persisted, got %q", raw)
	}
	if got := app.loadOperatorOffset(context.Background()); got != 11 {
		t.Fatalf("expected offset 11 loaded, got %d", got)
	}
}

func TestNewOperatorRequiresChatID(t *testing.T) {
	app, _, _ := newTestApp()
	app.alerts = &fakeTelegram{}
	app.cfg.Telegram = config.TelegramConfig{Enabled: true, OperatorEnabled: true, ChatID: "not-a-number"}
	if _, ok := app.newOperator(); ok {
		t.Fatalf("expected operator disabled for invalid chat id")
	}
	app.cfg.Telegram.ChatID = "42"
	app.cfg.Telegram.OperatorAllowedUserIDs = []int64{1, 2}
	op, ok := app.newOperator()
	if !ok || op.chatID != 42 || len(op.allowedUsers) != 2 || op.pollInterval != 3*time.Second {
		t.Fatalf("unexpected operator config: %+v ok=%v", op, ok)
	}
}
