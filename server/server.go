package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/ctfer-io/lfs-station/global"
	errs "github.com/ctfer-io/lfs-station/pkg/errors"
	"github.com/ctfer-io/lfs-station/pkg/fs"
	"github.com/ctfer-io/lfs-station/pkg/station"
)

// Server is a helper to manage the HTTP server. It owns its route table.
type Server struct {
	Options

	page   []byte
	router *gin.Engine

	lis net.Listener
	srv *http.Server
}

// Options to configure it once for all.
type Options struct {
	Port int
	// Page is served on the root path. Defaults to DefaultPage.
	Page string
	// Healthcheck turns on the /healthcheck endpoint.
	Healthcheck bool

	// Mount and Link are only used by health checks, when set.
	Mount *fs.Mount
	Link  station.Link
}

// NewServer returns a fresh HTTP server.
func NewServer(opts Options) *Server {
	if opts.Page == "" {
		opts.Page = DefaultPage
	}
	s := &Server{
		Options: opts,
		page:    []byte(opts.Page),
	}
	s.initRouter()
	return s
}

func (s *Server) initRouter() {
	gin.SetMode(gin.ReleaseMode)
	s.router = gin.New()
	s.router.Use(recoverPanics())
	s.router.Use(logRequests())

	s.router.GET("/", s.handleRoot)

	if s.Healthcheck {
		s.router.GET("/healthcheck", gin.WrapH(healthcheck(s.Mount, s.Link)))
	}
}

func (s *Server) handleRoot(c *gin.Context) {
	c.Data(http.StatusOK, "text/html", s.page)
}

// Handler returns the instrumented HTTP handler.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.router, "lfs-station")
}

// Run the HTTP server in backend.
func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.Port))
	if err != nil {
		return err
	}
	s.lis = lis
	s.srv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: time.Second,
	}

	logger := global.Log()
	go func() {
		if err := s.srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "http server", zap.Error(err))
		}
	}()

	logger.Info(ctx, "HTTP server started",
		zap.String("address", lis.Addr().String()),
	)
	return nil
}

// Addr returns the address the server listens on, or nil if not running.
func (s *Server) Addr() net.Addr {
	if s.lis == nil {
		return nil
	}
	return s.lis.Addr()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// recoverPanics answers 500 on handler panics, without leaking details
// to the client.
func recoverPanics() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, rec any) {
		err := &errs.ErrInternal{Sub: fmt.Errorf("panic: %v", rec)}
		global.Log().Error(c.Request.Context(), "recovered from panic",
			zap.Error(err),
		)
		c.String(http.StatusInternalServerError, errs.ErrInternalNoSub.Error())
	})
}

func logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		global.Log().Debug(c.Request.Context(), "handled request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
