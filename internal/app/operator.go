package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"delta-hedge-bot/internal/alerts"
	"delta-hedge-bot/internal/engine"
	"delta-hedge-bot/internal/state"

	"go.uber.org/zap"
)

const operatorOffsetKey = "telegram:operator:last_update_id"

type operatorConfig struct {
	chatID       int64
	allowedUsers map[int64]struct{}
	pollInterval time.Duration
}

type operatorMeta struct {
	UpdateID int64
	UserID   int64
	Username string
	ChatID   int64
	Raw      string
}

type operatorAuditEvent struct {
	UpdateID       int64            `json:"update_id"`
	Time           time.Time        `json:"time"`
	Action         string           `json:"action"`
	Command        string           `json:"command"`
	UserID         int64            `json:"user_id"`
	Username       string           `json:"username,omitempty"`
	ChatID         int64            `json:"chat_id"`
	StatusBefore   string           `json:"status_before"`
	StatusAfter    string           `json:"status_after"`
	SettingsBefore *engine.Settings `json:"settings_before,omitempty"`
	SettingsAfter  *engine.Settings `json:"settings_after,omitempty"`
	Error          string           `json:"error,omitempty"`
}

func (a *App) newOperator() (operatorConfig, bool) {
	if a.cfg == nil || a.alerts == nil || !a.cfg.Telegram.OperatorEnabled {
		return operatorConfig{}, false
	}
	chatID, err := strconv.ParseInt(strings.TrimSpace(a.cfg.Telegram.ChatID), 10, 64)
	if err != nil {
		a.log.Warn("telegram operator disabled: invalid chat_id", zap.Error(err))
		return operatorConfig{}, false
	}
	pollInterval := a.cfg.Telegram.OperatorPollInterval
	if pollInterval <= 0 {
		pollInterval = 3 * time.Second
	}
	allowedUsers := make(map[int64]struct{}, len(a.cfg.Telegram.OperatorAllowedUserIDs))
	for _, id := range a.cfg.Telegram.OperatorAllowedUserIDs {
		allowedUsers[id] = struct{}{}
	}
	return operatorConfig{chatID: chatID, allowedUsers: allowedUsers, pollInterval: pollInterval}, true
}

func (a *App) operatorLoop(ctx context.Context, op operatorConfig) {
	offset := a.loadOperatorOffset(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		updates, err := a.alerts.GetUpdates(ctx, offset, op.pollInterval)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			a.logOperatorError(err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(op.pollInterval):
			}
			continue
		}
		if a.operatorWarned {
			a.log.Info("telegram operator recovered")
			a.operatorWarned = false
		}
		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
				a.saveOperatorOffset(ctx, offset)
			}
			a.handleOperatorUpdate(ctx, upd, op)
		}
	}
}

func (a *App) handleOperatorUpdate(ctx context.Context, upd alerts.Update, op operatorConfig) {
	msg := upd.Message
	if msg == nil || msg.Chat == nil || msg.From == nil {
		return
	}
	if msg.Chat.ID != op.chatID {
		return
	}
	if len(op.allowedUsers) > 0 {
		if _, ok := op.allowedUsers[msg.From.ID]; !ok {
			return
		}
	}
	cmd, args, ok := parseOperatorCommand(msg.Text)
	if !ok {
		return
	}
	meta := operatorMeta{
		UpdateID: upd.UpdateID,
		UserID:   msg.From.ID,
		Username: msg.From.Username,
		ChatID:   msg.Chat.ID,
		Raw:      msg.Text,
	}
	resp, err := a.handleOperatorCommand(ctx, cmd, args, meta)
	if err != nil {
		resp = fmt.Sprintf("command failed: %v", err)
	}
	if resp == "" {
		return
	}
	if err := a.alerts.Send(ctx, resp); err != nil {
		a.log.Warn("operator response failed", zap.Error(err))
	}
}

func parseOperatorCommand(text string) (string, []string, bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "/") {
		return "", nil, false
	}
	fields := strings.Fields(trimmed)
	if len(fields) == 0 {
		return "", nil, false
	}
	cmd := strings.ToLower(strings.TrimPrefix(fields[0], "/"))
	// commands addressed as /status@botname
	if at := strings.IndexByte(cmd, '@'); at >= 0 {
		cmd = cmd[:at]
	}
	return cmd, fields[1:], true
}

func (a *App) handleOperatorCommand(ctx context.Context, cmd string, args []string, meta operatorMeta) (string, error) {
	switch cmd {
	case "status":
		return a.operatorStatus(), nil
	case "start":
		before := a.engine.Status().Status
		changed := a.engine.Start()
		a.auditOperatorEvent(ctx, meta, operatorAuditEvent{
			Action:       "start",
			StatusBefore: string(before),
			StatusAfter:  string(a.engine.Status().Status),
		})
		if changed {
			return "bot started", nil
		}
		return "bot already running", nil
	case "stop":
		before := a.engine.Status().Status
		changed := a.engine.Stop()
		a.auditOperatorEvent(ctx, meta, operatorAuditEvent{
			Action:       "stop",
			StatusBefore: string(before),
			StatusAfter:  string(a.engine.Status().Status),
		})
		if changed {
			return "bot stopped", nil
		}
		return "bot already stopped", nil
	case "set":
		return a.handleSetCommand(ctx, args, meta)
	default:
		return operatorHelpText(), nil
	}
}

func (a *App) handleSetCommand(ctx context.Context, args []string, meta operatorMeta) (string, error) {
	patch, err := parseSettingsPatch(args)
	if err != nil {
		return "", err
	}
	before := a.engine.Settings()
	after, err := a.engine.UpdateSettings(patch)
	event := operatorAuditEvent{
		Action:         "set",
		StatusBefore:   string(a.engine.Status().Status),
		SettingsBefore: &before,
	}
	if err != nil {
		event.Error = err.Error()
		a.auditOperatorEvent(ctx, meta, event)
		return "", err
	}
	event.SettingsAfter = &after
	event.StatusAfter = string(a.engine.Status().Status)
	a.auditOperatorEvent(ctx, meta, event)
	return "settings updated\n" + formatSettings(after), nil
}

func parseSettingsPatch(args []string) (engine.SettingsPatch, error) {
	var patch engine.SettingsPatch
	if len(args) == 0 {
		return patch, errors.New("set requires key=value pairs")
	}
	for _, arg := range args {
		key, val, ok := strings.Cut(arg, "=")
		key = strings.ToLower(strings.TrimSpace(key))
		val = strings.TrimSpace(val)
		if !ok || key == "" || val == "" {
			return engine.SettingsPatch{}, fmt.Errorf("invalid setting: %s", arg)
		}
		switch key {
		case "delta_threshold":
			parsed, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return engine.SettingsPatch{}, fmt.Errorf("delta_threshold: %w", err)
			}
			patch.DeltaThreshold = &parsed
		case "check_interval_ms":
			parsed, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return engine.SettingsPatch{}, fmt.Errorf("check_interval_ms: %w", err)
			}
			patch.CheckIntervalMS = &parsed
		case "min_hedge_size":
			parsed, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return engine.SettingsPatch{}, fmt.Errorf("min_hedge_size: %w", err)
			}
			patch.MinHedgeSize = &parsed
		case "hedge_product_id":
			parsed, err := strconv.Atoi(val)
			if err != nil {
				return engine.SettingsPatch{}, fmt.Errorf("hedge_product_id: %w", err)
			}
			patch.HedgeProductID = &parsed
		default:
			return engine.SettingsPatch{}, fmt.Errorf("unknown setting: %s", key)
		}
	}
	return patch, nil
}

func (a *App) operatorStatus() string {
	status := a.engine.Status()
	lastCheck := "n/a"
	if status.LastCheckTimestamp != nil {
		lastCheck = status.LastCheckTimestamp.UTC().Format(time.RFC3339)
	}
	return strings.Join([]string{
		fmt.Sprintf("status: %s", status.Status),
		fmt.Sprintf("delta: %.4f (%.2f%%)", status.CurrentDelta, status.CurrentDeltaPercentage*100),
		fmt.Sprintf("notional: %.2f", status.CurrentNotional),
		fmt.Sprintf("trades_executed: %d", status.TotalTradesExecuted),
		fmt.Sprintf("last_check: %s", lastCheck),
		formatSettings(status.Settings),
	}, "\n")
}

func formatSettings(s engine.Settings) string {
	return fmt.Sprintf("delta_threshold=%.4f check_interval_ms=%d min_hedge_size=%.4f hedge_product_id=%d",
		s.DeltaThreshold, s.CheckIntervalMS, s.MinHedgeSize, s.HedgeProductID)
}

func operatorHelpText() string {
	return strings.Join([]string{
		"commands:",
		"/status - current exposure and settings",
		"/start - start hedging",
		"/stop - stop hedging",
		"/set key=value ... - update settings (keys: delta_threshold, check_interval_ms, min_hedge_size, hedge_product_id)",
		"/help - this message",
	}, "\n")
}

func (a *App) logOperatorError(err error) {
	if a.operatorWarned {
		return
	}
	a.operatorWarned = true
	a.log.Warn("telegram operator failed", zap.Error(err))
}

func (a *App) loadOperatorOffset(ctx context.Context) int64 {
	if a.store == nil {
		return 0
	}
	raw, ok, err := a.store.Get(ctx, operatorOffsetKey)
	if err != nil || !ok {
		return 0
	}
	val, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || val < 0 {
		return 0
	}
	return val
}

func (a *App) saveOperatorOffset(ctx context.Context, offset int64) {
	if a.store == nil {
		return
	}
	_ = a.store.Set(ctx, operatorOffsetKey, strconv.FormatInt(offset, 10))
}

func (a *App) auditOperatorEvent(ctx context.Context, meta operatorMeta, event operatorAuditEvent) {
	event.UpdateID = meta.UpdateID
	event.Time = time.Now().UTC()
	event.Command = meta.Raw
	event.UserID = meta.UserID
	event.Username = meta.Username
	event.ChatID = meta.ChatID
	if err := a.journal.Record(ctx, state.JournalCommand, event); err != nil {
		a.log.Warn("operator audit failed", zap.Error(err))
	}
}
