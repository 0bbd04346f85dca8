// Package bridge exposes the signing session to the UI over HTTP.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nando-os/ghost-stark/marketplace"
	"github.com/nando-os/ghost-stark/rules"
	"github.com/nando-os/ghost-stark/stark"
	"github.com/nando-os/ghost-stark/txflow"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

var errBadRequest = errors.New("bad request")

// UserSource returns the authenticated user and records the operations submitted outside
// the signing session.
type UserSource interface {
	CurrentUser(ctx context.Context) (*rules.CurrentUser, error)
	RecordTransaction(ctx context.Context, record rules.Record) error
}

// LockInspector resolves the on-chain side of a wallet lock.
type LockInspector interface {
	Inspect(ctx context.Context, address string, reason stark.LockingReason, triggeredAt *time.Time) (*stark.WalletLock, error)
}

// AccountState is the part of the account the bridge reads and updates.
type AccountState interface {
	SenderAddress() string
	SenderFor(target string) (string, error)
	SetEscapeStatus(status *stark.EscapeStatus)
}

var (
	_ UserSource    = (*rules.Client)(nil)
	_ LockInspector = (*stark.EscapeMonitor)(nil)
	_ AccountState  = (*stark.Account)(nil)
)

// Config holds the bridge collaborators.
type Config struct {
	Session  *txflow.Session
	Account  AccountState
	Users    UserSource
	Monitor  LockInspector
	Builder  *marketplace.Builder
	Registry *prometheus.Registry
}

// Server is the gin HTTP bridge.
type Server struct {
	session *txflow.Session
	account AccountState
	users   UserSource
	monitor LockInspector
	builder *marketplace.Builder
	metrics *Metrics
	engine  *gin.Engine
	log     logrus.FieldLogger
}

// NewServer builds the routes.
func NewServer(cfg Config, log logrus.FieldLogger) (*Server, error) {
	if cfg.Session == nil {
		return nil, fmt.Errorf("bridge session is nil")
	}

	if cfg.Account == nil {
		return nil, fmt.Errorf("bridge account is nil")
	}

	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	s := &Server{
		session: cfg.Session,
		account: cfg.Account,
		users:   cfg.Users,
		monitor: cfg.Monitor,
		builder: cfg.Builder,
		metrics: NewMetrics(registry),
		engine:  gin.New(),
		log:     log.WithField("component", "bridge"),
	}

	s.engine.Use(gin.Recovery(), s.metrics.middleware())

	v1 := s.engine.Group("/v1")
	{
		session := v1.Group("/session")
		session.GET("", s.getSession)
		session.POST("/begin", s.begin)
		session.POST("/calls", s.setCalls)
		session.POST("/value", s.increaseValue)
		session.POST("/estimate", s.estimate)
		session.POST("/confirm", s.confirm)
		session.DELETE("", s.closeSession)

		v1.POST("/marketplace/:operation", s.prepareOperation)
		v1.GET("/wallet/lock", s.walletLock)
		v1.GET("/retrieve", s.retrieveEthers)
		v1.POST("/retrieve", s.recordRetrieve)
	}

	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	return s, nil
}

// Handler returns the HTTP handler of the bridge.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("Starting bridge")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("bridge stopped: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.log.Info("Stopping bridge")

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop bridge: %w", err)
	}

	return nil
}
