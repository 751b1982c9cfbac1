package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/user/curtas/internal/logging"
	"github.com/user/curtas/internal/metrics"
	"github.com/user/curtas/internal/model"
	"golang.org/x/sync/singleflight"
)

const (
	// searchPreviewSize all 模式下每类只取前几条
	searchPreviewSize = 10
	searchCacheTTL    = 10 * time.Minute
	// searchRefreshTimeout 过期缓存的后台刷新上限
	searchRefreshTimeout = 15 * time.Second

	hotKeywordWindowHours = 24
	keywordRetentionDays  = 30
	searchLogRetention    = 7
)

// SeriesSearchStore 剧集检索，由 repository.SeriesRepository 实现
type SeriesSearchStore interface {
	Search(ctx context.Context, term, genre string, limit, offset int) ([]*model.Series, int64, error)
	SuggestByTitle(ctx context.Context, term string, limit int) ([]*model.Series, error)
	TopByTrending(ctx context.Context, limit int) ([]*model.Series, error)
	ListGenres(ctx context.Context) ([]string, error)
}

// EpisodeSearchStore 分集检索
type EpisodeSearchStore interface {
	Search(ctx context.Context, term, genre string, limit, offset int) ([]*model.Episode, int64, error)
}

// SearchLogStore 搜索日志与热搜统计
type SearchLogStore interface {
	Log(ctx context.Context, keyword string, userID *int, ipHash string) error
	GetTrending(ctx context.Context, hours, limit int) ([]*model.TrendingKeyword, error)
	DeleteOldKeywords(ctx context.Context, days int) (int64, error)
	DeleteOldLogs(ctx context.Context, days int) (int64, error)
}

// SearchCacheStore 持久化的搜索结果缓存
type SearchCacheStore interface {
	FindWithExpiry(ctx context.Context, keyword, source string) (*model.SearchCache, bool, error)
	Upsert(ctx context.Context, keyword, source, resultJSON string, ttl time.Duration) error
	CleanExpired(ctx context.Context) (int64, error)
}

// SearchQuery 搜索条件，Term 与 Genre 至少一个非空
type SearchQuery struct {
	Term   string
	Genre  string
	Type   model.SearchType
	Limit  int
	Offset int
}

// cacheKey 同一条件命中同一条缓存
func (q SearchQuery) cacheKey() string {
	return fmt.Sprintf("%s|%s|%d|%d",
		strings.ToLower(q.Term), model.NormalizeGenre(q.Genre), q.Limit, q.Offset)
}

// SearchResult 搜索结果
type SearchResult struct {
	Series        []*model.Series  `json:"series"`
	Episodes      []*model.Episode `json:"episodes"`
	TotalSeries   int64            `json:"total_series"`
	TotalEpisodes int64            `json:"total_episodes"`
}

// SearchService 搜索服务
type SearchService struct {
	series   SeriesSearchStore
	episodes EpisodeSearchStore
	logs     SearchLogStore
	cache    SearchCacheStore
	sf       singleflight.Group
	log      zerolog.Logger
}

// NewSearchService 创建搜索服务；logs 与 cache 可为 nil
func NewSearchService(series SeriesSearchStore, episodes EpisodeSearchStore, logs SearchLogStore, cache SearchCacheStore) *SearchService {
	return &SearchService{
		series:   series,
		episodes: episodes,
		logs:     logs,
		cache:    cache,
		log:      logging.With("search"),
	}
}

// Search 搜索剧集与分集
// 1. 缓存未过期直接返回
// 2. 缓存已过期先返回旧数据，后台刷新
// 3. 没有缓存时同步查询并写入缓存，同一条件并发只查一次
func (s *SearchService) Search(ctx context.Context, q SearchQuery) (*SearchResult, error) {
	q.Term = strings.TrimSpace(q.Term)
	q.Genre = strings.TrimSpace(q.Genre)
	if q.Term == "" && q.Genre == "" {
		return nil, ErrEmptySearch
	}
	if q.Type == "" {
		q.Type = model.SearchAll
	}

	key, source := q.cacheKey(), string(q.Type)
	if cached, expired := s.fromCache(ctx, key, source); cached != nil {
		if !expired {
			metrics.SearchRequests.WithLabelValues("hit").Inc()
		} else {
			metrics.SearchRequests.WithLabelValues("stale").Inc()
			go func() {
				refreshCtx, cancel := context.WithTimeout(context.Background(), searchRefreshTimeout)
				defer cancel()
				_, _, _ = s.sf.Do(source+":"+key, func() (interface{}, error) {
					return s.fetchAndSave(refreshCtx, q, key)
				})
			}()
		}
		return cached, nil
	}

	metrics.SearchRequests.WithLabelValues("miss").Inc()
	val, err, _ := s.sf.Do(source+":"+key, func() (interface{}, error) {
		return s.fetchAndSave(ctx, q, key)
	})
	if err != nil {
		return nil, err
	}
	return val.(*SearchResult), nil
}

func (s *SearchService) fromCache(ctx context.Context, key, source string) (*SearchResult, bool) {
	if s.cache == nil {
		return nil, false
	}
	entry, expired, err := s.cache.FindWithExpiry(ctx, key, source)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("读取搜索缓存失败")
		return nil, false
	}
	if entry == nil {
		return nil, false
	}
	var result SearchResult
	if err := json.Unmarshal([]byte(entry.ResultJSON), &result); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("搜索缓存内容损坏，重新查询")
		return nil, false
	}
	return &result, expired
}

// fetchAndSave 查询数据库并刷新缓存，缓存写失败不影响结果
func (s *SearchService) fetchAndSave(ctx context.Context, q SearchQuery, key string) (*SearchResult, error) {
	result, err := s.query(ctx, q)
	if err != nil {
		return nil, err
	}
	if s.cache == nil {
		return result, nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		s.log.Warn().Err(err).Msg("序列化搜索结果失败")
		return result, nil
	}
	if err := s.cache.Upsert(ctx, key, string(q.Type), string(data), searchCacheTTL); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("写入搜索缓存失败")
	}
	return result, nil
}

// query all 模式每类取前 searchPreviewSize 条，单类模式按 limit/offset 分页
func (s *SearchService) query(ctx context.Context, q SearchQuery) (*SearchResult, error) {
	limit, offset := q.Limit, q.Offset
	if q.Type == model.SearchAll {
		limit, offset = searchPreviewSize, 0
	}

	result := &SearchResult{Series: []*model.Series{}, Episodes: []*model.Episode{}}
	if q.Type == model.SearchAll || q.Type == model.SearchSeries {
		list, total, err := s.series.Search(ctx, q.Term, q.Genre, limit, offset)
		if err != nil {
			return nil, fmt.Errorf("search series: %w", err)
		}
		result.Series, result.TotalSeries = list, total
	}
	if q.Type == model.SearchAll || q.Type == model.SearchEpisodes {
		list, total, err := s.episodes.Search(ctx, q.Term, q.Genre, limit, offset)
		if err != nil {
			return nil, fmt.Errorf("search episodes: %w", err)
		}
		result.Episodes, result.TotalEpisodes = list, total
	}
	return result, nil
}

// RecordSearch 有结果的关键词计入热搜，失败只记日志
func (s *SearchService) RecordSearch(ctx context.Context, keyword string, userID int, ipHash string) {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if s.logs == nil || keyword == "" {
		return
	}
	var uid *int
	if userID > 0 {
		uid = &userID
	}
	if err := s.logs.Log(ctx, keyword, uid, ipHash); err != nil {
		s.log.Warn().Err(err).Str("keyword", keyword).Msg("记录搜索日志失败")
	}
}

// Suggestions 标题联想，少于 2 个字符不查询
func (s *SearchService) Suggestions(ctx context.Context, term string, limit int) ([]model.SearchSuggestion, error) {
	term = strings.TrimSpace(term)
	if len([]rune(term)) < 2 {
		return []model.SearchSuggestion{}, nil
	}
	list, err := s.series.SuggestByTitle(ctx, term, limit)
	if err != nil {
		return nil, fmt.Errorf("suggest series: %w", err)
	}
	out := make([]model.SearchSuggestion, 0, len(list))
	for _, sr := range list {
		out = append(out, model.SearchSuggestion{
			ID:       sr.ID,
			Type:     string(model.SearchSeries),
			Title:    sr.Title,
			Subtitle: sr.Genre,
			Image:    sr.CoverURL,
		})
	}
	return out, nil
}

// TrendingSearches 最近 24 小时的热搜词，不足 limit 时用热门剧集标题补齐
func (s *SearchService) TrendingSearches(ctx context.Context, limit int) ([]model.TrendingSearch, error) {
	out := make([]model.TrendingSearch, 0, limit)
	seen := make(map[string]bool, limit)

	if s.logs != nil {
		keywords, err := s.logs.GetTrending(ctx, hotKeywordWindowHours, limit)
		if err != nil {
			s.log.Warn().Err(err).Msg("读取热搜关键词失败，改用热门剧集")
		}
		for _, kw := range keywords {
			out = append(out, model.TrendingSearch{Term: kw.Keyword, Count: kw.Count})
			seen[strings.ToLower(kw.Keyword)] = true
		}
	}
	if len(out) >= limit {
		return out[:limit], nil
	}

	series, err := s.series.TopByTrending(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("trending series: %w", err)
	}
	for _, sr := range series {
		if len(out) >= limit {
			break
		}
		if seen[strings.ToLower(sr.Title)] {
			continue
		}
		seen[strings.ToLower(sr.Title)] = true
		out = append(out, model.TrendingSearch{Term: sr.Title, Genre: sr.Genre})
	}
	return out, nil
}

// Genres 已发布剧集出现过的类型，大小写不同的视为同一类型
func (s *SearchService) Genres(ctx context.Context) ([]model.GenreOption, error) {
	genres, err := s.series.ListGenres(ctx)
	if err != nil {
		return nil, fmt.Errorf("list genres: %w", err)
	}
	out := make([]model.GenreOption, 0, len(genres))
	seen := make(map[string]bool, len(genres))
	for _, g := range genres {
		opt := model.NewGenreOption(g)
		if opt.ID == "" || seen[opt.ID] {
			continue
		}
		seen[opt.ID] = true
		out = append(out, opt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Maintain 清理过期缓存和旧的搜索记录
func (s *SearchService) Maintain(ctx context.Context) {
	if s.cache != nil {
		if n, err := s.cache.CleanExpired(ctx); err != nil {
			s.log.Error().Err(err).Msg("清理搜索缓存失败")
		} else if n > 0 {
			s.log.Info().Int64("deleted", n).Msg("已清理过期搜索缓存")
		}
	}
	if s.logs == nil {
		return
	}
	if n, err := s.logs.DeleteOldKeywords(ctx, keywordRetentionDays); err != nil {
		s.log.Error().Err(err).Msg("清理旧热搜关键词失败")
	} else if n > 0 {
		s.log.Info().Int64("deleted", n).Int("days", keywordRetentionDays).Msg("已清理长期未搜索的关键词")
	}
	if n, err := s.logs.DeleteOldLogs(ctx, searchLogRetention); err != nil {
		s.log.Error().Err(err).Msg("清理搜索日志失败")
	} else if n > 0 {
		s.log.Info().Int64("deleted", n).Int("days", searchLogRetention).Msg("已清理旧搜索日志")
	}
}
