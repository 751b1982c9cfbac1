package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/user/curtas/internal/logging"
)

// maintenanceInterval 数据清理每天一次
const maintenanceInterval = 24 * time.Hour

// Maintainer 需要定期清理过期数据的服务
type Maintainer interface {
	Maintain(ctx context.Context)
}

// CleanupService 定时回收超时的生成流连接，防止客户端异常消失后泄漏；
// 同时按天执行各服务的数据清理
type CleanupService struct {
	registry    *ConnectionRegistry
	interval    time.Duration
	maxAge      time.Duration
	maintainers []Maintainer
	log         zerolog.Logger
}

// NewCleanupService 创建清理服务
func NewCleanupService(registry *ConnectionRegistry, interval, maxAge time.Duration) *CleanupService {
	return &CleanupService{
		registry: registry,
		interval: interval,
		maxAge:   maxAge,
		log:      logging.With("cleanup"),
	}
}

// WithMaintainer 追加每日清理任务
func (s *CleanupService) WithMaintainer(m Maintainer) *CleanupService {
	s.maintainers = append(s.maintainers, m)
	return s
}

// Start 启动定时清理任务，ctx 取消后退出
func (s *CleanupService) Start(ctx context.Context) {
	s.startMaintenance(ctx)
	if s.interval <= 0 {
		s.log.Warn().Msg("清理间隔未配置，跳过连接回收")
		return
	}
	ticker := time.NewTicker(s.interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runCleanup()
			}
		}
	}()
}

func (s *CleanupService) runCleanup() int {
	n := s.registry.CleanupOldConnections(s.maxAge)
	if n > 0 {
		s.log.Info().Int("reclaimed", n).Dur("max_age", s.maxAge).Msg("已回收超时连接")
	} else {
		s.log.Debug().Int("open", s.registry.Len()).Msg("无超时连接")
	}
	return n
}

// startMaintenance 启动时先运行一次，之后每天一次
func (s *CleanupService) startMaintenance(ctx context.Context) {
	if len(s.maintainers) == 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(maintenanceInterval)
		defer ticker.Stop()

		s.runMaintenance(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runMaintenance(ctx)
			}
		}
	}()
}

func (s *CleanupService) runMaintenance(ctx context.Context) {
	s.log.Info().Int("tasks", len(s.maintainers)).Msg("开始清理过期数据")
	for _, m := range s.maintainers {
		m.Maintain(ctx)
	}
}
