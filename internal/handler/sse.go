package handler

import (
	"errors"
	"net/http"
	"sync"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"github.com/user/curtas/internal/model"
)

var errStreamClosed = errors.New("stream closed")

// sseWriter 把 StreamEvent 写成 data: 事件；handler 与注册表可能并发写入，用锁串行
type sseWriter struct {
	mu     sync.Mutex
	w      gin.ResponseWriter
	closed bool
}

func newSSEWriter(c *gin.Context) *sseWriter {
	h := c.Writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	return &sseWriter{w: c.Writer}
}

func (s *sseWriter) Send(ev model.StreamEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errStreamClosed
	}
	if err := sse.Encode(s.w, sse.Event{Data: ev}); err != nil {
		s.closed = true
		return err
	}
	s.w.Flush()
	return nil
}

// Close 之后的 Send 全部丢弃
func (s *sseWriter) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// CloseWith 写出终止事件后立即关闭，两步在同一把锁内完成
func (s *sseWriter) CloseWith(ev model.StreamEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errStreamClosed
	}
	s.closed = true
	if err := sse.Encode(s.w, sse.Event{Data: ev}); err != nil {
		return err
	}
	s.w.Flush()
	return nil
}
