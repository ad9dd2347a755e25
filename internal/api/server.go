package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/Vex788/zeus-trading-bot/internal/config"
	"github.com/Vex788/zeus-trading-bot/internal/engine"
	"github.com/Vex788/zeus-trading-bot/internal/md"
	"github.com/Vex788/zeus-trading-bot/internal/risk"
	"github.com/Vex788/zeus-trading-bot/internal/state"
)

// Engine is the control surface the HTTP API drives.
type Engine interface {
	Start() error
	Stop() error
	Pause() error
	Resume() error
	SwitchMode(mode config.Mode) error
	Status() engine.Status
	Portfolio() engine.Portfolio
	RecentTrades(n int) []state.Trade
	Learning(pair md.Pair) engine.LearningState
	RiskStatus(ctx context.Context) (risk.Status, error)
}

type Server struct {
	echo *echo.Echo
	eng  Engine
}

// NewServer registers the control, status, metrics and event-stream routes.
// stream may be nil when no websocket hub is running.
func NewServer(eng Engine, stream http.Handler, gatherer prometheus.Gatherer) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.RequestID(), recoverMiddleware(), requestLogging())

	s := &Server{echo: e, eng: eng}

	g := e.Group("/api")
	bot := g.Group("/bot")
	bot.POST("/start", s.control(eng.Start))
	bot.POST("/stop", s.control(eng.Stop))
	bot.POST("/pause", s.control(eng.Pause))
	bot.POST("/resume", s.control(eng.Resume))
	bot.POST("/mode", s.switchMode)
	bot.GET("/status", s.status)
	g.GET("/portfolio", s.portfolio)
	g.GET("/trades", s.trades)
	g.GET("/learning/:pair", s.learning)
	g.GET("/risk/status", s.riskStatus)

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	if stream != nil {
		e.GET("/ws", echo.WrapHandler(stream))
	}
	return s
}

func (s *Server) Handler() http.Handler { return s.echo }

// Start blocks until the server stops. A clean shutdown returns nil.
func (s *Server) Start(addr string) error {
	log.Info().Str("addr", addr).Msg("http server listening")
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	log.Info().Msg("http server stopped")
	return nil
}

func (s *Server) control(action func() error) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := action(); err != nil {
			return transitionError(c, err)
		}
		return success(c, s.eng.Status())
	}
}

func (s *Server) switchMode(c echo.Context) error {
	req := &modeRequest{}
	if verr := bindRequest(c, req); verr != nil {
		return dataResponse(c, http.StatusBadRequest, verr)
	}
	mode, err := config.ParseMode(req.Mode)
	if err != nil {
		return failure(c, http.StatusBadRequest, "ERR_ONEOF", err.Error())
	}
	if err := s.eng.SwitchMode(mode); err != nil {
		return transitionError(c, err)
	}
	return success(c, s.eng.Status())
}

func (s *Server) status(c echo.Context) error {
	return success(c, s.eng.Status())
}

func (s *Server) portfolio(c echo.Context) error {
	return success(c, s.eng.Portfolio())
}

func (s *Server) trades(c echo.Context) error {
	req := &tradesRequest{}
	if verr := bindRequest(c, req); verr != nil {
		return dataResponse(c, http.StatusBadRequest, verr)
	}
	return success(c, s.eng.RecentTrades(req.Limit))
}

func (s *Server) learning(c echo.Context) error {
	req := &learningRequest{}
	if verr := bindRequest(c, req); verr != nil {
		return dataResponse(c, http.StatusBadRequest, verr)
	}
	pair, err := md.ParsePair(req.Pair)
	if err != nil {
		return failure(c, http.StatusBadRequest, "ERR_PAIR", err.Error())
	}
	return success(c, s.eng.Learning(pair))
}

func (s *Server) riskStatus(c echo.Context) error {
	st, err := s.eng.RiskStatus(c.Request().Context())
	if err != nil {
		log.Error().Err(err).Msg("risk status failed")
		return failure(c, http.StatusBadGateway, "ERR_UPSTREAM", err.Error())
	}
	return success(c, st)
}

func transitionError(c echo.Context, err error) error {
	if errors.Is(err, engine.ErrInvalidTransition) {
		return failure(c, http.StatusConflict, "ERR_INVALID_TRANSITION", err.Error())
	}
	log.Error().Err(err).Str("path", c.Path()).Msg("control request failed")
	return failure(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
}

func recoverMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Str("path", c.Path()).Msg("http handler panicked")
					err = failure(c, http.StatusInternalServerError, "ERR_INTERNAL", "internal server error")
				}
			}()
			return next(c)
		}
	}
}

func requestLogging() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			req, res := c.Request(), c.Response()
			log.Debug().
				Str("request_id", res.Header().Get(echo.HeaderXRequestID)).
				Str("method", req.Method).
				Str("uri", req.RequestURI).
				Str("remote", req.RemoteAddr).
				Int("status", res.Status).
				Dur("latency", time.Since(start)).
				Msg("http request")
			return err
		}
	}
}
