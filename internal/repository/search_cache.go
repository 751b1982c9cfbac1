package repository

import (
	"context"
	"errors"
	"time"

	"github.com/user/curtas/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SearchCacheRepository struct {
	db *gorm.DB
}

func NewSearchCacheRepository(db *gorm.DB) *SearchCacheRepository {
	return &SearchCacheRepository{db: db}
}

// FindWithExpiry 查找缓存，返回缓存及是否过期。过期的也返回，由调用方先用旧数据再异步刷新
func (r *SearchCacheRepository) FindWithExpiry(ctx context.Context, keyword, source string) (*model.SearchCache, bool, error) {
	var entry model.SearchCache
	err := r.db.WithContext(ctx).
		Where("keyword = ? AND source = ?", keyword, source).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &entry, entry.ExpiresAt.Before(time.Now()), nil
}

// Upsert 创建或更新缓存（按 keyword + source 唯一）
func (r *SearchCacheRepository) Upsert(ctx context.Context, keyword, source, resultJSON string, ttl time.Duration) error {
	now := time.Now()
	entry := &model.SearchCache{
		Keyword:    keyword,
		Source:     source,
		ResultJSON: resultJSON,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "keyword"}, {Name: "source"}},
		DoUpdates: clause.AssignmentColumns([]string{"result_json", "expires_at"}),
	}).Create(entry).Error
}

// CleanExpired 清理过期缓存
func (r *SearchCacheRepository) CleanExpired(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).Where("expires_at < ?", time.Now()).Delete(&model.SearchCache{})
	return result.RowsAffected, result.Error
}
