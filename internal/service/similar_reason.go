package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/user/curtas/internal/model"
)

// SimilarSeriesWithReason 带推荐理由的相似剧集
type SimilarSeriesWithReason struct {
	Series     *model.Series `json:"series"`
	Reason     string        `json:"reason"`
	ReasonType string        `json:"reason_type"`
	Similarity float64       `json:"similarity"`
}

// FindSimilarWithReasons 根据向量相似度查找相似剧集并生成推荐理由
func (s *RecommendationService) FindSimilarWithReasons(ctx context.Context, seriesID, limit int) ([]SimilarSeriesWithReason, *model.Series, error) {
	// 1. 先获取源剧集
	source, err := s.series.FindByID(ctx, seriesID)
	if err != nil {
		return nil, nil, err
	}

	// 2. 向量近邻
	similar, err := s.series.FindSimilar(ctx, seriesID, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("find similar series: %w", err)
	}

	// 3. 逐个生成理由
	result := make([]SimilarSeriesWithReason, 0, len(similar))
	for _, target := range similar {
		reason, reasonType, score := GenerateRecommendationReason(source, target)
		result = append(result, SimilarSeriesWithReason{
			Series:     target,
			Reason:     reason,
			ReasonType: reasonType,
			Similarity: score,
		})
	}
	return result, source, nil
}

// normalizeTags 小写去重
func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// calculateTagSimilarity 标签重合度，按较长的一方归一
func calculateTagSimilarity(source, target []string) (float64, []string) {
	sourceList := normalizeTags(source)
	targetList := normalizeTags(target)

	targetSet := make(map[string]struct{}, len(targetList))
	for _, t := range targetList {
		targetSet[t] = struct{}{}
	}
	common := []string{}
	for _, t := range sourceList {
		if _, ok := targetSet[t]; ok {
			common = append(common, t)
		}
	}

	maxLen := math.Max(float64(len(sourceList)), float64(len(targetList)))
	if maxLen == 0 {
		return 0, common
	}
	return float64(len(common)) / maxLen, common
}

// GenerateRecommendationReason 生成推荐理由（按优先级）
func GenerateRecommendationReason(source, target *model.Series) (string, string, float64) {
	sameGenre := 0.0
	if g := model.NormalizeGenre(source.Genre); g != "" && g == model.NormalizeGenre(target.Genre) {
		sameGenre = 1
	}
	tagSimilarity, commonTags := calculateTagSimilarity(source.Tags, target.Tags)
	trending := clamp(target.TrendingScore/100, 0, 1)

	total := sameGenre*0.4 + tagSimilarity*0.4 + trending*0.2

	// 1. 标签重合最具体
	if tagSimilarity >= 0.5 && len(commonTags) > 0 {
		shown := commonTags
		if len(shown) > 2 {
			shown = shown[:2]
		}
		return fmt.Sprintf("Também tem %s", strings.Join(shown, " e ")), "tags", total
	}

	// 2. 同类型
	if sameGenre > 0 {
		return fmt.Sprintf("Mais um sucesso de %s", target.Genre), "genre", total
	}

	// 3. 正在热播
	if trending >= 0.5 {
		return "Em alta agora", "trending", total
	}

	return fmt.Sprintf("Porque você assistiu %s", source.Title), "similar", total
}
