package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

type Options struct {
	Addr            string
	Controller      Controller
	Stream          http.Handler
	Metrics         http.Handler
	MetricsPath     string
	ShutdownTimeout time.Duration
	Log             *zap.Logger
}

type Server struct {
	echo            *echo.Echo
	addr            string
	shutdownTimeout time.Duration
	log             *zap.Logger
}

func NewServer(opts Options) *Server {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}
	if opts.MetricsPath == "" {
		opts.MetricsPath = "/metrics"
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler
	e.Use(middleware.Recover())
	e.Use(requestLogging(opts.Log))

	h := &handlers{ctl: opts.Controller, validate: validator.New()}
	h.register(e)
	if opts.Stream != nil {
		e.GET("/ws", echo.WrapHandler(opts.Stream))
	}
	if opts.Metrics != nil {
		e.GET(opts.MetricsPath, echo.WrapHandler(opts.Metrics))
	}
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	return &Server{
		echo:            e,
		addr:            opts.Addr,
		shutdownTimeout: opts.ShutdownTimeout,
		log:             opts.Log,
	}
}

func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", zap.String("addr", s.addr))
		if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.log.Info("http server stopped")
	return nil
}

func requestLogging(log *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			req := c.Request()
			log.Debug("http request",
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.Int("status", c.Response().Status),
				zap.Duration("latency", time.Since(start)),
			)
			return err
		}
	}
}
