package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/user/curtas/internal/logging"
	"github.com/user/curtas/internal/metrics"
	"golang.org/x/sync/singleflight"
)

// CarouselInvalidator 热度变化后需要失效的缓存
type CarouselInvalidator interface {
	InvalidateCarousels()
}

// TrendingService 定时全量重算剧集热度
type TrendingService struct {
	store       TrendingStore
	invalidator CarouselInvalidator
	interval    time.Duration
	sf          singleflight.Group
	log         zerolog.Logger
}

// NewTrendingService 创建热度服务，invalidator 可为 nil
func NewTrendingService(store TrendingStore, invalidator CarouselInvalidator, interval time.Duration) *TrendingService {
	return &TrendingService{
		store:       store,
		invalidator: invalidator,
		interval:    interval,
		log:         logging.With("trending"),
	}
}

// Start 启动时先跑一次，之后按间隔执行，ctx 取消后退出
func (s *TrendingService) Start(ctx context.Context) {
	go func() {
		s.run(ctx)
		if s.interval <= 0 {
			return
		}
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.run(ctx)
			}
		}
	}()
}

func (s *TrendingService) run(ctx context.Context) {
	if _, err := s.UpdateTrendingScores(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.log.Error().Err(err).Msg("热度重算失败")
	}
}

// UpdateTrendingScores 全量重算，并发触发时只执行一次。单个剧集写入失败不影响其他剧集，
// 返回成功更新的数量以及合并后的错误
func (s *TrendingService) UpdateTrendingScores(ctx context.Context) (int, error) {
	v, err, _ := s.sf.Do("recompute", func() (interface{}, error) {
		return s.recompute(ctx)
	})
	n, _ := v.(int)
	return n, err
}

func (s *TrendingService) recompute(ctx context.Context) (int, error) {
	start := time.Now()
	defer func() {
		metrics.TrendingRecomputeDuration.Observe(time.Since(start).Seconds())
	}()

	rows, err := s.store.ListEngagement(ctx)
	if err != nil {
		metrics.TrendingRecomputeTotal.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("list engagement: %w", err)
	}

	updated := 0
	var errs []error
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		score := TrendingScore(row)
		if err := s.store.UpdateTrendingScore(ctx, row.SeriesID, score); err != nil {
			errs = append(errs, fmt.Errorf("series %d: %w", row.SeriesID, err))
			continue
		}
		updated++
	}

	if s.invalidator != nil && updated > 0 {
		s.invalidator.InvalidateCarousels()
	}

	result := "ok"
	if len(errs) > 0 {
		result = "partial"
	}
	metrics.TrendingRecomputeTotal.WithLabelValues(result).Inc()
	s.log.Info().Int("series", updated).Int("failed", len(errs)).Dur("took", time.Since(start)).Msg("热度分已更新")

	return updated, errors.Join(errs...)
}
