package service

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/user/curtas/internal/logging"
	"github.com/user/curtas/internal/metrics"
	"github.com/user/curtas/internal/model"
)

// EventSink 客户端事件输出。实现需并发安全，关闭之后的 Send 必须返回错误而不是写出
type EventSink interface {
	Send(ev model.StreamEvent) error
	// CloseWith 在同一把锁内写出最后一个事件并关闭，之后不会再有任何输出
	CloseWith(ev model.StreamEvent) error
	Close()
}

// Outcome 连接结束方式，对应 stream_connections_closed_total 的 outcome 标签
type Outcome string

const (
	OutcomeFinished Outcome = "finished"
	OutcomeFailed   Outcome = "failed"
	OutcomeStopped  Outcome = "stopped"
	OutcomeSwept    Outcome = "swept"
)

// StreamConnection 一条进行中的生成流
type StreamConnection struct {
	ID        string
	UserID    int
	CreatedAt time.Time

	upstream io.Closer
	cancel   context.CancelFunc
	sink     EventSink
}

// ConnectionInfo 连接的只读信息
type ConnectionInfo struct {
	ID        string    `json:"id"`
	UserID    int       `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ConnectionRegistry 进程内的生成流登记表。每条连接只会被移除一次，
// stop、finish、sweep 谁先拿到锁谁生效，其余调用为空操作
type ConnectionRegistry struct {
	mu    sync.Mutex
	conns map[string]*StreamConnection
	now   func() time.Time
	log   zerolog.Logger
}

// NewConnectionRegistry 创建登记表，进程内只应有一个实例
func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		conns: make(map[string]*StreamConnection),
		now:   time.Now,
		log:   logging.With("connections"),
	}
}

// Register 登记一条新连接。id 重复属于调用方错误，直接 panic
func (r *ConnectionRegistry) Register(id string, userID int, upstream io.Closer, cancel context.CancelFunc, sink EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conns[id]; exists {
		panic(fmt.Sprintf("connection %q already registered", id))
	}
	r.conns[id] = &StreamConnection{
		ID:        id,
		UserID:    userID,
		CreatedAt: r.now(),
		upstream:  upstream,
		cancel:    cancel,
		sink:      sink,
	}
	metrics.StreamConnectionsActive.Set(float64(len(r.conns)))
	r.log.Debug().Str("connection_id", id).Int("user_id", userID).Msg("连接已登记")
}

// take 取出并移除连接，不存在返回 nil
func (r *ConnectionRegistry) take(id string) *StreamConnection {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[id]
	if !ok {
		return nil
	}
	delete(r.conns, id)
	metrics.StreamConnectionsActive.Set(float64(len(r.conns)))
	return conn
}

// Stop 用户主动中断。连接不存在或已结束返回 false。
// 先从登记表移除，再在锁外取消上游请求、写出终止事件并关闭输出、关闭上游响应
func (r *ConnectionRegistry) Stop(id string) bool {
	conn := r.take(id)
	if conn == nil {
		return false
	}
	r.terminate(conn)
	metrics.StreamConnectionsClosed.WithLabelValues(string(OutcomeStopped)).Inc()
	r.log.Info().Str("connection_id", id).Int("user_id", conn.UserID).Msg("连接已被用户中断")
	return true
}

// terminate 取消先于终止事件，终止事件之后输出即关闭，转发中的文本块不会排在终止事件之后
func (r *ConnectionRegistry) terminate(conn *StreamConnection) {
	if conn.cancel != nil {
		conn.cancel()
	}
	if conn.sink != nil {
		// 客户端可能已经断开，写失败不算错误
		_ = conn.sink.CloseWith(model.StoppedEvent())
	}
	if conn.upstream != nil {
		_ = conn.upstream.Close()
	}
}

// Finish 由 handler 结束连接，outcome 为 finished 或 failed。调用方已写出最后一个事件，
// 这里不触碰输出流；已被中断或回收时为空操作，不重复计数
func (r *ConnectionRegistry) Finish(id string, outcome Outcome) {
	if conn := r.take(id); conn != nil {
		metrics.StreamConnectionsClosed.WithLabelValues(string(outcome)).Inc()
		r.log.Debug().Str("connection_id", id).Str("outcome", string(outcome)).
			Dur("age", r.now().Sub(conn.CreatedAt)).Msg("连接已结束")
	}
}

// CleanupOldConnections 中断所有存活时间 >= maxAge 的连接，返回中断数量。maxAge 为 0 时全部中断
func (r *ConnectionRegistry) CleanupOldConnections(maxAge time.Duration) int {
	now := r.now()

	r.mu.Lock()
	stale := make([]*StreamConnection, 0)
	for id, conn := range r.conns {
		if now.Sub(conn.CreatedAt) >= maxAge {
			stale = append(stale, conn)
			delete(r.conns, id)
		}
	}
	metrics.StreamConnectionsActive.Set(float64(len(r.conns)))
	r.mu.Unlock()

	for _, conn := range stale {
		r.terminate(conn)
		metrics.StreamConnectionsClosed.WithLabelValues(string(OutcomeSwept)).Inc()
		r.log.Warn().Str("connection_id", conn.ID).Dur("age", now.Sub(conn.CreatedAt)).Msg("回收超时连接")
	}
	return len(stale)
}

// ListConnections 某用户当前存活的连接 ID，按创建时间排序
func (r *ConnectionRegistry) ListConnections(userID int) []string {
	r.mu.Lock()
	owned := make([]*StreamConnection, 0)
	for _, conn := range r.conns {
		if conn.UserID == userID {
			owned = append(owned, conn)
		}
	}
	r.mu.Unlock()

	sort.Slice(owned, func(i, j int) bool {
		if owned[i].CreatedAt.Equal(owned[j].CreatedAt) {
			return owned[i].ID < owned[j].ID
		}
		return owned[i].CreatedAt.Before(owned[j].CreatedAt)
	})
	ids := make([]string, 0, len(owned))
	for _, c := range owned {
		ids = append(ids, c.ID)
	}
	return ids
}

// Snapshot 所有存活连接，管理后台用
func (r *ConnectionRegistry) Snapshot() []ConnectionInfo {
	r.mu.Lock()
	out := make([]ConnectionInfo, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, ConnectionInfo{ID: c.ID, UserID: c.UserID, CreatedAt: c.CreatedAt})
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Len 存活连接数
func (r *ConnectionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// IsOpen 连接是否仍在登记表中
func (r *ConnectionRegistry) IsOpen(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.conns[id]
	return ok
}
