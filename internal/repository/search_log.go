package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/user/curtas/internal/model"
	"github.com/user/curtas/internal/utils"
	"gorm.io/gorm"
)

const hotKeywordsTTL = 10 * time.Minute

type SearchLogRepository struct {
	db  *gorm.DB
	hot *cache.Cache
}

func NewSearchLogRepository(db *gorm.DB) *SearchLogRepository {
	return &SearchLogRepository{db: db, hot: utils.NewMemoryCache(hotKeywordsTTL, 30*time.Minute)}
}

// Log 记录一次搜索并累加热搜计数，两步在同一事务内
func (r *SearchLogRepository) Log(ctx context.Context, keyword string, userID *int, ipHash string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entry := &model.SearchLog{
			Keyword:   keyword,
			UserID:    userID,
			IPHash:    ipHash,
			CreatedAt: time.Now(),
		}
		if err := tx.Create(entry).Error; err != nil {
			return err
		}
		return tx.Exec(`
			INSERT INTO trending_keywords (keyword, count, last_searched_at)
			VALUES (?, 1, NOW())
			ON CONFLICT (keyword) DO UPDATE SET
				count = trending_keywords.count + 1,
				last_searched_at = EXCLUDED.last_searched_at
		`, keyword).Error
	})
}

// GetTrending 热搜关键词。hours > 0 时从 search_logs 实时统计该时间窗口，否则读汇总表
func (r *SearchLogRepository) GetTrending(ctx context.Context, hours, limit int) ([]*model.TrendingKeyword, error) {
	cacheKey := fmt.Sprintf("trending:%d:%d", hours, limit)
	if cached, found := r.hot.Get(cacheKey); found {
		if keywords, ok := cached.([]*model.TrendingKeyword); ok {
			return keywords, nil
		}
	}

	var keywords []*model.TrendingKeyword
	var err error
	if hours > 0 {
		err = r.db.WithContext(ctx).Raw(`
			SELECT keyword, COUNT(*) AS count, MAX(created_at) AS last_searched_at
			FROM search_logs
			WHERE created_at > NOW() - INTERVAL '1 hour' * ?
			GROUP BY keyword
			ORDER BY count DESC, keyword ASC
			LIMIT ?
		`, hours, limit).Scan(&keywords).Error
	} else {
		err = r.db.WithContext(ctx).Model(&model.TrendingKeyword{}).
			Select("keyword, count, last_searched_at").
			Order("count DESC").
			Limit(limit).
			Scan(&keywords).Error
	}
	if err != nil {
		return nil, err
	}

	r.hot.SetDefault(cacheKey, keywords)
	return keywords, nil
}

// DeleteOldKeywords 清理超过指定天数未搜索的关键词
func (r *SearchLogRepository) DeleteOldKeywords(ctx context.Context, days int) (int64, error) {
	result := r.db.WithContext(ctx).Exec(`
		DELETE FROM trending_keywords
		WHERE last_searched_at < NOW() - INTERVAL '1 day' * ?
	`, days)
	return result.RowsAffected, result.Error
}

// DeleteOldLogs 清理超过指定天数的原始搜索日志
func (r *SearchLogRepository) DeleteOldLogs(ctx context.Context, days int) (int64, error) {
	result := r.db.WithContext(ctx).Exec(`
		DELETE FROM search_logs
		WHERE created_at < NOW() - INTERVAL '1 day' * ?
	`, days)
	return result.RowsAffected, result.Error
}
