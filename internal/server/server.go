package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"nifty-signals/internal/featurestore"
	"nifty-signals/internal/logger"
	"nifty-signals/internal/signal"
	"nifty-signals/internal/types"
)

const (
	ServiceName         = "nifty-signals"
	ServiceVersion      = "1.0.0"
	RequestIDHeaderKey  = "X-Request-ID"
	RequestIDContextKey = "request_id"
)

// RunLister lists recorded pipeline runs, newest first.
type RunLister interface {
	ListRuns(ctx context.Context, limit int) ([]featurestore.Run, error)
}

type Server struct {
	board *Board
	runs  RunLister
}

// New builds the HTTP surface over board. runs may be nil.
func New(board *Board, runs RunLister) *Server {
	return &Server{board: board, runs: runs}
}

type signalsResponse struct {
	UpdatedAt time.Time           `json:"updated_at"`
	Count     int                 `json:"count"`
	Signals   []signal.Evaluation `json:"signals"`
}

func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(requestIDMiddleware())
	r.Use(requestLogMiddleware())
	r.Use(gin.Recovery())

	r.GET("/healthz", s.health)
	r.GET("/signals", s.listSignals)
	r.GET("/signals/:symbol", s.getSignal)
	r.GET("/runs", s.listRuns)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

func (s *Server) health(c *gin.Context) {
	_, updated := s.board.Sorted()
	c.JSON(http.StatusOK, gin.H{
		"status":     "OK",
		"service":    ServiceName,
		"version":    ServiceVersion,
		"updated_at": updated,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
}

// listSignals serves the current set sorted by symbol, optionally filtered by
// ?signal=BUY|SELL|HOLD|NO_MODEL.
func (s *Server) listSignals(c *gin.Context) {
	all, updated := s.board.Sorted()
	if want := strings.ToUpper(c.Query("signal")); want != "" {
		switch types.Signal(want) {
		case types.SignalBuy, types.SignalSell, types.SignalHold, types.SignalNoModel:
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown signal " + want})
			return
		}
		filtered := all[:0]
		for _, e := range all {
			if string(e.Signal) == want {
				filtered = append(filtered, e)
			}
		}
		all = filtered
	}
	c.JSON(http.StatusOK, signalsResponse{UpdatedAt: updated, Count: len(all), Signals: all})
}

func (s *Server) getSignal(c *gin.Context) {
	sym := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
	e, ok := s.board.Get(sym)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no signal for " + sym})
		return
	}
	c.JSON(http.StatusOK, e)
}

func (s *Server) listRuns(c *gin.Context) {
	if s.runs == nil {
		c.JSON(http.StatusOK, []featurestore.Run{})
		return
	}
	runs, err := s.runs.ListRuns(c.Request.Context(), 50)
	if err != nil {
		logger.ErrorWithErr(c.Request.Context(), "Failed to list runs", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if runs == nil {
		runs = []featurestore.Run{}
	}
	c.JSON(http.StatusOK, runs)
}

// Start serves the router on addr until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Router(), ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeaderKey)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(RequestIDHeaderKey, requestID)
		c.Set(RequestIDContextKey, requestID)
		c.Next()
	}
}

func requestLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug(c.Request.Context(), "HTTP request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", c.GetString(RequestIDContextKey))
	}
}
