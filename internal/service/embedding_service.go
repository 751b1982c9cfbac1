package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/user/curtas/internal/logging"
	"github.com/user/curtas/internal/model"
)

const (
	embeddingBatchSize  = 50
	embeddingContentMax = 1000
)

// Embedder 文本向量化
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmbeddingService 为缺少向量的已发布剧集回填 embedding，供相似推荐使用
type EmbeddingService struct {
	store    EmbeddingStore
	embedder Embedder
	interval time.Duration
	log      zerolog.Logger
}

func NewEmbeddingService(store EmbeddingStore, embedder Embedder, interval time.Duration) *EmbeddingService {
	return &EmbeddingService{
		store:    store,
		embedder: embedder,
		interval: interval,
		log:      logging.With("embedding"),
	}
}

// Start interval 为 0 时不启动
func (s *EmbeddingService) Start(ctx context.Context) {
	if s.interval <= 0 {
		s.log.Info().Msg("向量回填已关闭")
		return
	}
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			if _, err := s.BackfillMissing(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.log.Error().Err(err).Msg("向量回填失败")
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

// BackfillMissing 处理一批缺少向量的剧集，单个失败只记录日志。返回成功数量
func (s *EmbeddingService) BackfillMissing(ctx context.Context) (int, error) {
	list, err := s.store.ListMissingEmbedding(ctx, embeddingBatchSize)
	if err != nil {
		return 0, fmt.Errorf("list series without embedding: %w", err)
	}

	done := 0
	for _, sr := range list {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		content := BuildEmbeddingContent(sr)
		if content == "" {
			continue
		}
		vec, err := s.embedder.Embed(ctx, content)
		if err != nil {
			s.log.Warn().Err(err).Int("series_id", sr.ID).Msg("生成向量失败")
			continue
		}
		if err := s.store.SaveEmbedding(ctx, sr.ID, content, vec); err != nil {
			s.log.Warn().Err(err).Int("series_id", sr.ID).Msg("保存向量失败")
			continue
		}
		done++
	}
	if done > 0 {
		s.log.Info().Int("series", done).Int("batch", len(list)).Msg("向量回填完成")
	}
	return done, nil
}

// BuildEmbeddingContent 拼接标题、类型、标签和简介，最多 1000 个字符
func BuildEmbeddingContent(s *model.Series) string {
	if s == nil {
		return ""
	}
	parts := make([]string, 0, 4)
	if t := strings.TrimSpace(s.Title); t != "" {
		parts = append(parts, t)
	}
	if g := strings.TrimSpace(s.Genre); g != "" {
		parts = append(parts, "Gênero: "+g)
	}
	if tags := normalizeTags(s.Tags); len(tags) > 0 {
		parts = append(parts, "Tags: "+strings.Join(tags, ", "))
	}
	if d := strings.TrimSpace(s.Description); d != "" {
		parts = append(parts, d)
	}

	content := strings.Join(parts, "\n")
	if utf8.RuneCountInString(content) > embeddingContentMax {
		content = string([]rune(content)[:embeddingContentMax])
	}
	return content
}
