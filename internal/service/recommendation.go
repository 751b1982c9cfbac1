package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"github.com/user/curtas/internal/logging"
	"github.com/user/curtas/internal/metrics"
	"github.com/user/curtas/internal/model"
	"github.com/user/curtas/internal/utils"
	"golang.org/x/sync/singleflight"
)

const (
	// candidateMultiplier 候选集大小为 limit 的倍数，给过滤和重排留余量
	candidateMultiplier = 3
	// shuffleMultiplier 参与局部打散的范围为 limit 的倍数
	shuffleMultiplier = 2

	carouselSize        = 10
	carouselTTL         = 2 * time.Minute
	carouselCacheKey    = "carousels:shared"
	affinityCacheTTL    = 5 * time.Minute
	affinityCacheSize   = 10000
	recommendedPoolSize = 200
)

// DefaultHomeGenres 首页按类型轮播的默认类型，按此顺序展示
var DefaultHomeGenres = []string{"acao", "romance", "terror", "comedia", "drama"}

// ScoredEpisode 带个性化得分的分集
type ScoredEpisode struct {
	*model.Episode
	Score float64 `json:"_score"`
}

// ScoredSeries 带个性化得分的剧集
type ScoredSeries struct {
	*model.Series
	Score float64 `json:"_score"`
}

// HomeCarousels 首页轮播
type HomeCarousels struct {
	Trending    []*model.Series            `json:"trending"`
	NewReleases []*model.Series            `json:"new_releases"`
	Recommended []*model.Series            `json:"recommended"`
	ByGenre     map[string][]*model.Series `json:"by_genre"`
}

// sharedCarousels 与用户无关的部分，可缓存
type sharedCarousels struct {
	trending    []*model.Series
	newReleases []*model.Series
	popular     []*model.Series
	byGenre     map[string][]*model.Series
}

// RecommendationService 推荐服务
type RecommendationService struct {
	episodes EpisodeStore
	series   SeriesStore
	history  HistoryStore
	prefs    AffinityStore

	homeGenres []string

	affinityCache *utils.TTLCache[model.Affinity]
	carousels     *cache.Cache
	sf            singleflight.Group

	rng RandSource
	now func() time.Time
	log zerolog.Logger
}

// Option 可选配置
type Option func(*RecommendationService)

// WithRandSource 注入随机源，测试用
func WithRandSource(r RandSource) Option {
	return func(s *RecommendationService) { s.rng = r }
}

// WithClock 注入时钟，测试用
func WithClock(now func() time.Time) Option {
	return func(s *RecommendationService) { s.now = now }
}

// WithHomeGenres 指定首页类型轮播，空列表时沿用默认
func WithHomeGenres(genres []string) Option {
	return func(s *RecommendationService) {
		if len(genres) > 0 {
			s.homeGenres = genres
		}
	}
}

// NewRecommendationService 创建推荐服务
func NewRecommendationService(episodes EpisodeStore, series SeriesStore, history HistoryStore, prefs AffinityStore, opts ...Option) *RecommendationService {
	s := &RecommendationService{
		episodes:      episodes,
		series:        series,
		history:       history,
		prefs:         prefs,
		homeGenres:    DefaultHomeGenres,
		affinityCache: utils.NewTTLCache[model.Affinity](affinityCacheSize, affinityCacheTTL),
		carousels:     utils.NewMemoryCache(carouselTTL, 10*time.Minute),
		rng:           newTimeSeededRand(),
		now:           time.Now,
		log:           logging.With("recommendation"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UserAffinity 读取用户偏好，优先走缓存；匿名用户返回空偏好
func (s *RecommendationService) UserAffinity(ctx context.Context, userID int) (model.Affinity, error) {
	if userID <= 0 {
		return model.Affinity{}, nil
	}
	key := strconv.Itoa(userID)
	if a, ok := s.affinityCache.Get(key); ok {
		return a, nil
	}
	a, err := s.prefs.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load affinity for user %d: %w", userID, err)
	}
	if a == nil {
		a = model.Affinity{}
	}
	s.affinityCache.Set(key, a)
	return a, nil
}

// GetPersonalizedFeed 个性化分集推荐：取 limit*3 个未看完的候选，打分排序，
// 对前 limit*2 做局部打散后返回 [offset, offset+limit)
func (s *RecommendationService) GetPersonalizedFeed(ctx context.Context, userID, limit, offset int) ([]ScoredEpisode, error) {
	start := time.Now()
	defer func() {
		metrics.FeedBuildDuration.WithLabelValues("for_you").Observe(time.Since(start).Seconds())
	}()

	if limit <= 0 {
		return []ScoredEpisode{}, nil
	}
	if offset < 0 {
		offset = 0
	}

	affinity, err := s.UserAffinity(ctx, userID)
	if err != nil {
		return nil, err
	}

	var watched []int
	if userID > 0 {
		watched, err = s.history.CompletedEpisodeIDs(ctx, userID, model.CompletionThreshold)
		if err != nil {
			return nil, fmt.Errorf("load completed episodes: %w", err)
		}
	}

	candidates, err := s.episodes.FetchCandidates(ctx, watched, limit*candidateMultiplier)
	if err != nil {
		return nil, fmt.Errorf("fetch candidates: %w", err)
	}

	scored := RankEpisodes(candidates, affinity)
	LocalShuffle(scored, min(limit*shuffleMultiplier, len(scored)), s.rng)

	if offset >= len(scored) {
		return []ScoredEpisode{}, nil
	}
	end := min(offset+limit, len(scored))
	return scored[offset:end], nil
}

// RankEpisodes 打分并按得分稳定降序，分数相同保持输入顺序
func RankEpisodes(episodes []*model.Episode, affinity model.Affinity) []ScoredEpisode {
	scored := make([]ScoredEpisode, 0, len(episodes))
	for _, ep := range episodes {
		if ep == nil {
			continue
		}
		scored = append(scored, ScoredEpisode{
			Episode: ep,
			Score:   CalculateEpisodeScore(ep.Metrics(), ep.Series.Metrics(), affinity),
		})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return scored
}

// GetRecommendedSeries 按剧集得分推荐
func (s *RecommendationService) GetRecommendedSeries(ctx context.Context, userID, limit int) ([]ScoredSeries, error) {
	affinity, err := s.UserAffinity(ctx, userID)
	if err != nil {
		return nil, err
	}
	pool, err := s.series.ListPublished(ctx, recommendedPoolSize)
	if err != nil {
		return nil, fmt.Errorf("list published series: %w", err)
	}

	now := s.now()
	scored := make([]ScoredSeries, 0, len(pool))
	for _, sr := range pool {
		scored = append(scored, ScoredSeries{Series: sr, Score: CalculateSeriesScore(sr.Metrics(), affinity, now)})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// GetHomeCarousels 首页轮播；登录用户推荐栏走 GetRecommendedSeries（无偏好时按热度与新鲜度），匿名用户用期待值最高的剧集
func (s *RecommendationService) GetHomeCarousels(ctx context.Context, userID int) (*HomeCarousels, error) {
	start := time.Now()
	defer func() {
		metrics.FeedBuildDuration.WithLabelValues("home").Observe(time.Since(start).Seconds())
	}()

	shared, err := s.loadSharedCarousels(ctx)
	if err != nil {
		return nil, err
	}

	out := &HomeCarousels{
		Trending:    shared.trending,
		NewReleases: shared.newReleases,
		Recommended: shared.popular,
		ByGenre:     shared.byGenre,
	}

	if userID > 0 {
		recs, err := s.GetRecommendedSeries(ctx, userID, carouselSize)
		if err != nil {
			return nil, err
		}
		out.Recommended = make([]*model.Series, 0, len(recs))
		for _, r := range recs {
			out.Recommended = append(out.Recommended, r.Series)
		}
	}
	return out, nil
}

func (s *RecommendationService) loadSharedCarousels(ctx context.Context) (*sharedCarousels, error) {
	if v, ok := s.carousels.Get(carouselCacheKey); ok {
		return v.(*sharedCarousels), nil
	}

	// 并发请求只构建一次
	v, err, _ := s.sf.Do(carouselCacheKey, func() (interface{}, error) {
		shared, err := s.buildSharedCarousels(ctx)
		if err != nil {
			return nil, err
		}
		s.carousels.SetDefault(carouselCacheKey, shared)
		return shared, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*sharedCarousels), nil
}

func (s *RecommendationService) buildSharedCarousels(ctx context.Context) (*sharedCarousels, error) {
	trending, err := s.series.TopByTrending(ctx, carouselSize)
	if err != nil {
		return nil, fmt.Errorf("trending carousel: %w", err)
	}
	newReleases, err := s.series.TopByCreated(ctx, carouselSize)
	if err != nil {
		return nil, fmt.Errorf("new releases carousel: %w", err)
	}
	popular, err := s.series.TopByHype(ctx, carouselSize)
	if err != nil {
		return nil, fmt.Errorf("hype carousel: %w", err)
	}
	byGenre := make(map[string][]*model.Series, len(s.homeGenres))
	for _, g := range s.homeGenres {
		list, err := s.series.TopByGenre(ctx, g, carouselSize)
		if err != nil {
			return nil, fmt.Errorf("genre carousel %q: %w", g, err)
		}
		if len(list) > 0 {
			byGenre[g] = list
		}
	}

	return &sharedCarousels{
		trending:    trending,
		newReleases: newReleases,
		popular:     popular,
		byGenre:     byGenre,
	}, nil
}

// InvalidateCarousels 热度更新后清掉首页缓存
func (s *RecommendationService) InvalidateCarousels() {
	s.carousels.Delete(carouselCacheKey)
}

// GetTrendingFeed 热门分集
func (s *RecommendationService) GetTrendingFeed(ctx context.Context, limit, offset int) ([]*model.Episode, error) {
	return s.episodes.ListTrending(ctx, limit, offset)
}

// GetNewReleasesFeed 最新分集
func (s *RecommendationService) GetNewReleasesFeed(ctx context.Context, limit, offset int) ([]*model.Episode, error) {
	return s.episodes.ListNewReleases(ctx, limit, offset)
}

// GetGenreFeed 某类型分集
func (s *RecommendationService) GetGenreFeed(ctx context.Context, genre string, limit, offset int) ([]*model.Episode, error) {
	return s.episodes.ListByGenre(ctx, genre, limit, offset)
}

// UpdateUserPreferences 记录一次互动对类型偏好的影响。类型为空时忽略；
// 同一用户的并发更新由 AffinityStore.Update 串行化，不会丢失
func (s *RecommendationService) UpdateUserPreferences(ctx context.Context, userID int, genre string, action model.Action, weight float64) error {
	if userID <= 0 || model.NormalizeGenre(genre) == "" {
		return nil
	}
	if _, ok := action.Weight(); !ok {
		return ErrInvalidInteraction
	}

	_, err := s.prefs.Update(ctx, userID, func(current model.Affinity) model.Affinity {
		next, _ := ApplyInteraction(current, genre, action, weight)
		return next
	})
	if err != nil {
		return fmt.Errorf("update preferences for user %d: %w", userID, err)
	}

	// 提交后删除而不是写入，乱序返回的并发更新不会把旧值留在缓存里
	s.affinityCache.Delete(strconv.Itoa(userID))
	metrics.PreferenceUpdates.WithLabelValues(string(action)).Inc()
	s.log.Debug().Int("user_id", userID).Str("genre", genre).Str("action", string(action)).Msg("偏好已更新")
	return nil
}
