package service

import (
	"context"

	"github.com/user/curtas/internal/model"
)

// EpisodeStore 分集读取，由 repository.EpisodeRepository 实现
type EpisodeStore interface {
	FetchCandidates(ctx context.Context, excludeIDs []int, limit int) ([]*model.Episode, error)
	ListTrending(ctx context.Context, limit, offset int) ([]*model.Episode, error)
	ListNewReleases(ctx context.Context, limit, offset int) ([]*model.Episode, error)
	ListByGenre(ctx context.Context, genre string, limit, offset int) ([]*model.Episode, error)
}

// SeriesStore 剧集读取，由 repository.SeriesRepository 实现
type SeriesStore interface {
	FindByID(ctx context.Context, id int) (*model.Series, error)
	TopByTrending(ctx context.Context, limit int) ([]*model.Series, error)
	TopByCreated(ctx context.Context, limit int) ([]*model.Series, error)
	TopByHype(ctx context.Context, limit int) ([]*model.Series, error)
	TopByGenre(ctx context.Context, genre string, limit int) ([]*model.Series, error)
	ListPublished(ctx context.Context, limit int) ([]*model.Series, error)
	FindSimilar(ctx context.Context, id int, limit int) ([]*model.Series, error)
}

// TrendingStore 热度重算所需的读写
type TrendingStore interface {
	ListEngagement(ctx context.Context) ([]model.SeriesEngagement, error)
	UpdateTrendingScore(ctx context.Context, id int, score float64) error
}

// EmbeddingStore 向量回填所需的读写
type EmbeddingStore interface {
	ListMissingEmbedding(ctx context.Context, limit int) ([]*model.Series, error)
	SaveEmbedding(ctx context.Context, id int, content string, vec []float32) error
}

// HistoryStore 观看记录读取
type HistoryStore interface {
	CompletedEpisodeIDs(ctx context.Context, userID int, threshold float64) ([]int, error)
}

// AffinityStore 偏好读写；Update 必须对同一用户串行执行 fn
type AffinityStore interface {
	Get(ctx context.Context, userID int) (model.Affinity, error)
	Update(ctx context.Context, userID int, fn func(model.Affinity) model.Affinity) (model.Affinity, error)
}
