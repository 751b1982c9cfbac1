package service

import (
	"math"
	"time"

	"github.com/user/curtas/internal/model"
)

// 分集打分权重，和为 1
const (
	episodeCompletionWeight = 0.35
	episodeLikeWeight       = 0.25
	episodeTrendingWeight   = 0.20
	episodeAffinityWeight   = 0.20
)

// 剧集打分权重，另有最高 0.2 的新剧加成
const (
	seriesTrendingWeight = 0.3
	seriesHypeWeight     = 0.2
	seriesAffinityWeight = 0.3
)

// 热度原始分的互动权重
const (
	trendingViewWeight    = 1
	trendingLikeWeight    = 5
	trendingCommentWeight = 3
	trendingShareWeight   = 10
	trendingDivisor       = 1000.0
	maxTrendingScore      = 100.0
)

// CalculateEpisodeScore 分集个性化得分，范围 [0, 1]。
// 点赞率的分母是 views+likes，与历史数据口径保持一致。
func CalculateEpisodeScore(ep model.EpisodeMetrics, series model.SeriesMetrics, affinity model.Affinity) float64 {
	completion := clamp(ep.CompletionRate, 0, 1)

	var likeRatio float64
	if denom := ep.Views + ep.LikesCount; denom > 0 {
		likeRatio = clamp(float64(ep.LikesCount)/float64(denom), 0, 1)
	}

	trending := clamp(series.TrendingScore/100, 0, 1)
	genre := clamp(affinity.Get(series.Genre), 0, model.MaxGenreAffinity) / model.MaxGenreAffinity

	return completion*episodeCompletionWeight +
		likeRatio*episodeLikeWeight +
		trending*episodeTrendingWeight +
		genre*episodeAffinityWeight
}

// CalculateSeriesScore 剧集个性化得分，范围 [0, 1]
func CalculateSeriesScore(series model.SeriesMetrics, affinity model.Affinity, now time.Time) float64 {
	trending := clamp(series.TrendingScore/100, 0, 1)
	hype := clamp(series.HypeScore/100, 0, 1)
	genre := clamp(affinity.Get(series.Genre), 0, model.MaxGenreAffinity) / model.MaxGenreAffinity

	return trending*seriesTrendingWeight +
		hype*seriesHypeWeight +
		genre*seriesAffinityWeight +
		recencyBonus(series.CreatedAt, now)
}

func recencyBonus(createdAt, now time.Time) float64 {
	if createdAt.IsZero() {
		return 0
	}
	age := now.Sub(createdAt)
	switch {
	case age < 7*24*time.Hour:
		return 0.2
	case age < 30*24*time.Hour:
		return 0.1
	default:
		return 0
	}
}

// TrendingScore 由汇总互动数计算热度分，范围 [0, 100]
func TrendingScore(e model.SeriesEngagement) float64 {
	raw := float64(e.Views)*trendingViewWeight +
		float64(e.Likes)*trendingLikeWeight +
		float64(e.Comments)*trendingCommentWeight +
		float64(e.Shares)*trendingShareWeight
	return clamp(raw/trendingDivisor, 0, maxTrendingScore)
}

// ApplyInteraction 按互动类型更新类型偏好，weight 为倍数
func ApplyInteraction(a model.Affinity, genre string, action model.Action, weight float64) (model.Affinity, error) {
	base, ok := action.Weight()
	if !ok {
		return a, ErrInvalidInteraction
	}
	if math.IsNaN(weight) || weight < 0 {
		weight = 0
	}
	return a.Apply(genre, base*weight), nil
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(v, hi))
}
