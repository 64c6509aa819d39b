// Package server exposes the engine's ambient HTTP surface: liveness,
// Prometheus metrics, and read-only dashboard-feed endpoints that
// serve the same JSON state the engine persists to disk. It opens no
// write paths — every mutation happens inside the decision cycle.
package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/riverforge/combine-trader/internal/decision"
	"github.com/riverforge/combine-trader/internal/executor"
	"github.com/riverforge/combine-trader/internal/orchestrator"
	"github.com/riverforge/combine-trader/internal/portfolio"
)

// Server wires the read-only ops surface over the engine's live
// collaborators.
type Server struct {
	engine *gin.Engine

	ledger       *portfolio.Store
	decisions    *decision.Ring
	tradeLog     *executor.TradeLog
	orchestrator *orchestrator.Orchestrator
	registry     *prometheus.Registry
	startedAt    time.Time
}

func New(ledger *portfolio.Store, decisions *decision.Ring, tradeLog *executor.TradeLog, orch *orchestrator.Orchestrator, registry *prometheus.Registry) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		engine:       gin.New(),
		ledger:       ledger,
		decisions:    decisions,
		tradeLog:     tradeLog,
		orchestrator: orch,
		registry:     registry,
		startedAt:    time.Now(),
	}
	s.engine.Use(gin.Recovery())
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/healthz", s.handleHealthz)
	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
	s.engine.GET("/api/portfolio", s.handlePortfolio)
	s.engine.GET("/api/decisions", s.handleDecisions)
	s.engine.GET("/api/trades", s.handleTrades)
}

// Handler returns the underlying gin engine, e.g. for wrapping in an
// *http.Server with explicit timeouts.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"state":      s.orchestrator.State(),
		"uptime_sec": time.Since(s.startedAt).Seconds(),
	})
}

func (s *Server) handlePortfolio(c *gin.Context) {
	view := s.ledger.View()
	c.JSON(http.StatusOK, gin.H{
		"quote_currency":        view.QuoteCurrency,
		"holdings":              view.Holdings,
		"trades_executed":       view.TradesExecuted,
		"portfolio_value_quote": view.PortfolioValueQuote,
		"initial_value_quote":   view.InitialValueQuote,
		"last_updated":          view.LastUpdated,
	})
}

func (s *Server) handleDecisions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"decisions": s.decisions.Records()})
}

func (s *Server) handleTrades(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"trades": s.tradeLog.Records()})
}
