package api

import (
	"errors"
	"net/http"

	"delta-hedge-bot/internal/engine"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// Controller is the engine surface exposed over HTTP.
type Controller interface {
	Status() engine.Status
	RecentTrades(limit int) []engine.Trade
	DeltaHistory(limit int) []engine.ExposureSnapshot
	RecentLogs(limit int) []engine.LogEntry
	Start() bool
	Stop() bool
	UpdateSettings(patch engine.SettingsPatch) (engine.Settings, error)
}

type limitQuery struct {
	Limit int `query:"limit" validate:"gte=0"`
}

type lifecycleResult struct {
	Changed bool          `json:"changed"`
	Status  engine.Status `json:"status"`
}

type handlers struct {
	ctl      Controller
	validate *validator.Validate
}

func (h *handlers) register(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/status", h.status)
	g.GET("/trades", h.trades)
	g.GET("/history", h.history)
	g.GET("/logs", h.logs)
	g.POST("/start", h.start)
	g.POST("/stop", h.stop)
	g.PUT("/settings", h.updateSettings)
}

func (h *handlers) status(c echo.Context) error {
	return successResponse(c, h.ctl.Status())
}

func (h *handlers) trades(c echo.Context) error {
	limit, err := h.limit(c, engine.TradesCapacity)
	if err != nil {
		return badRequestResponse(c, err.Error())
	}
	return successResponse(c, h.ctl.RecentTrades(limit))
}

func (h *handlers) history(c echo.Context) error {
	limit, err := h.limit(c, engine.HistoryCapacity)
	if err != nil {
		return badRequestResponse(c, err.Error())
	}
	return successResponse(c, h.ctl.DeltaHistory(limit))
}

func (h *handlers) logs(c echo.Context) error {
	limit, err := h.limit(c, engine.LogsCapacity)
	if err != nil {
		return badRequestResponse(c, err.Error())
	}
	return successResponse(c, h.ctl.RecentLogs(limit))
}

func (h *handlers) start(c echo.Context) error {
	changed := h.ctl.Start()
	return successResponse(c, lifecycleResult{Changed: changed, Status: h.ctl.Status()})
}

func (h *handlers) stop(c echo.Context) error {
	changed := h.ctl.Stop()
	return successResponse(c, lifecycleResult{Changed: changed, Status: h.ctl.Status()})
}

func (h *handlers) updateSettings(c echo.Context) error {
	var patch engine.SettingsPatch
	if err := c.Bind(&patch); err != nil {
		return badRequestResponse(c, "invalid settings body")
	}
	if patch.Empty() {
		return badRequestResponse(c, "no settings provided")
	}
	settings, err := h.ctl.UpdateSettings(patch)
	if err != nil {
		if errors.Is(err, engine.ErrConfig) {
			return badRequestResponse(c, err.Error())
		}
		return dataResponse(c, http.StatusInternalServerError, nil)
	}
	return successResponse(c, settings)
}

// limit reads ?limit=, clamping zero and oversized values to capacity.
func (h *handlers) limit(c echo.Context, capacity int) (int, error) {
	var q limitQuery
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &q); err != nil {
		return 0, errors.New("limit must be an integer")
	}
	if err := h.validate.Struct(q); err != nil {
		return 0, errors.New("limit must be >= 0")
	}
	if q.Limit == 0 || q.Limit > capacity {
		return capacity, nil
	}
	return q.Limit, nil
}
