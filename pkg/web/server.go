// Package web serves a browser UI for a shutter Screen: status, record
// controls, the recordings list, an MJPEG preview stream and a websocket
// status feed.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/zoobzio/shutter"
	"github.com/zoobzio/shutter/pkg/output"
)

// DefaultWait bounds how long record handlers wait for the operation.
const DefaultWait = 5 * time.Second

// FrameSource supplies preview frames for the MJPEG stream.
type FrameSource interface {
	Subscribe(buffer int) (<-chan []byte, func())
}

// Recordings lists finished recordings.
type Recordings interface {
	List() ([]output.Entry, error)
}

// Server is the web UI.
type Server struct {
	addr       string
	screen     *shutter.Screen
	ctrl       *shutter.Controller
	preview    FrameSource
	recordings Recordings
	wait       time.Duration
	logger     *zap.Logger

	hub        *Hub
	upgrader   websocket.Upgrader
	engine     *gin.Engine
	httpServer *http.Server
}

// New creates a Server for screen listening on addr. Register Hub() as the
// controller's observer to push status over websockets.
func New(addr string, screen *shutter.Screen) *Server {
	s := &Server{
		addr:   addr,
		screen: screen,
		ctrl:   screen.Controller(),
		wait:   DefaultWait,
		logger: zap.NewNop(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
	}
	s.hub = newHub(s.ctrl.Snapshot, s.logger)
	return s
}

// -----------------------------------------------------------------------------
// Chainable Instance Configuration
// -----------------------------------------------------------------------------

// Preview sets the source of the MJPEG stream.
func (s *Server) Preview(src FrameSource) *Server {
	s.preview = src
	return s
}

// Recordings sets the recordings list.
func (s *Server) Recordings(r Recordings) *Server {
	s.recordings = r
	return s
}

// Wait sets how long record handlers wait before answering 202 Accepted.
func (s *Server) Wait(d time.Duration) *Server {
	s.wait = d
	return s
}

// Logger sets the logger.
func (s *Server) Logger(logger *zap.Logger) *Server {
	s.logger = logger
	s.hub.logger = logger
	return s
}

// Hub returns the observer that feeds websocket clients.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the HTTP handler, building the routes on first use.
func (s *Server) Handler() http.Handler {
	if s.engine == nil {
		s.engine = s.routes()
	}
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.accessLog())

	r.GET("/health", s.handleHealth)
	r.GET("/stream.mjpeg", s.handleStream)
	r.GET("/ws/status", s.handleStatusSocket)

	api := r.Group("/api")
	api.GET("/status", s.handleStatus)
	api.GET("/errors", s.handleErrors)
	api.GET("/recordings", s.handleRecordings)
	api.POST("/record/start", s.handleRecord(func() *shutter.Future { return s.ctrl.StartRecording(nil) }))
	api.POST("/record/stop", s.handleRecord(s.ctrl.StopRecording))
	api.POST("/record/toggle", s.handleRecord(s.screen.ToggleRecording))
	return r
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("web server listening", zap.String("addr", s.addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("listen %s: %w", s.addr, err)
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}
	return s.Shutdown()
}

// Shutdown stops the server, waiting up to five seconds for requests.
// Streaming responses are cut off.
func (s *Server) Shutdown() error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown web server: %w", err)
	}
	s.logger.Info("web server stopped")
	return nil
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
