package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/zoobzio/shutter"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, newStatus(s.ctrl.Snapshot()))
}

func (s *Server) handleErrors(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"errors": newFailures(s.ctrl.ErrorHistory())})
}

func (s *Server) handleRecordings(c *gin.Context) {
	if s.recordings == nil {
		c.JSON(http.StatusOK, gin.H{"recordings": []any{}})
		return
	}
	entries, err := s.recordings.List()
	if err != nil {
		s.fail(c, http.StatusInternalServerError, "list_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recordings": entries})
}

// handleRecord runs op and waits for it. An operation still pending after
// the wait bound is answered with 202 and keeps running.
func (s *Server) handleRecord(op func() *shutter.Future) gin.HandlerFunc {
	return func(c *gin.Context) {
		f := op()

		ctx, cancel := context.WithTimeout(c.Request.Context(), s.wait)
		defer cancel()
		err := f.Wait(ctx)

		switch {
		case err == nil:
			c.JSON(http.StatusOK, newStatus(s.ctrl.Snapshot()))
		case ctx.Err() != nil:
			c.JSON(http.StatusAccepted, newStatus(s.ctrl.Snapshot()))
		case errors.Is(err, shutter.ErrInvalidState):
			s.fail(c, http.StatusConflict, "invalid_state", err)
		case errors.Is(err, shutter.ErrClosed), errors.Is(err, shutter.ErrExecutorStopped):
			s.fail(c, http.StatusServiceUnavailable, "closed", err)
		default:
			s.fail(c, http.StatusInternalServerError, "operation_failed", err)
		}
	}
}

// handleStream serves preview frames as multipart/x-mixed-replace.
func (s *Server) handleStream(c *gin.Context) {
	if s.preview == nil {
		s.fail(c, http.StatusServiceUnavailable, "no_preview", errors.New("preview stream not configured"))
		return
	}

	frames, cancel := s.preview.Subscribe(2)
	defer cancel()

	c.Header("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	clientGone := c.Request.Context().Done()
	for {
		select {
		case <-clientGone:
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			if _, err := c.Writer.WriteString("--frame\r\nContent-Type: image/jpeg\r\n\r\n"); err != nil {
				return
			}
			if _, err := c.Writer.Write(frame); err != nil {
				return
			}
			if _, err := c.Writer.WriteString("\r\n"); err != nil {
				return
			}
			c.Writer.Flush()
		}
	}
}

func (s *Server) handleStatusSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	s.hub.serve(conn)
}

func (s *Server) fail(c *gin.Context, status int, code string, err error) {
	c.JSON(status, ErrorResponse{
		Error:     code,
		Message:   err.Error(),
		Timestamp: time.Now(),
	})
}
