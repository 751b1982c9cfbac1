package repository

import (
	"context"
	"errors"
	"time"

	"github.com/user/curtas/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EpisodeRepository struct {
	db *gorm.DB
}

func NewEpisodeRepository(db *gorm.DB) *EpisodeRepository {
	return &EpisodeRepository{db: db}
}

// withPublishedSeries 仅保留所属剧集已发布的分集，并预加载剧集
func (r *EpisodeRepository) withPublishedSeries(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&model.Episode{}).
		Preload("Series").
		Joins("JOIN series ON series.id = episodes.series_id AND series.status = ?", model.SeriesPublished)
}

// FindByID 查找分集（含剧集），不存在返回 ErrNotFound
func (r *EpisodeRepository) FindByID(ctx context.Context, id int) (*model.Episode, error) {
	var ep model.Episode
	if err := r.db.WithContext(ctx).Preload("Series").First(&ep, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &ep, nil
}

// FetchCandidates 推荐候选集，排除指定分集
func (r *EpisodeRepository) FetchCandidates(ctx context.Context, excludeIDs []int, limit int) ([]*model.Episode, error) {
	q := r.withPublishedSeries(ctx)
	if len(excludeIDs) > 0 {
		q = q.Where("episodes.id NOT IN ?", excludeIDs)
	}
	var list []*model.Episode
	err := q.Order("episodes.id ASC").Limit(limit).Find(&list).Error
	return list, err
}

// ListTrending 按剧集热度、播放、点赞排序
func (r *EpisodeRepository) ListTrending(ctx context.Context, limit, offset int) ([]*model.Episode, error) {
	var list []*model.Episode
	err := r.withPublishedSeries(ctx).
		Order("series.trending_score DESC").
		Order("episodes.views DESC").
		Order("episodes.likes_count DESC").
		Order("episodes.id ASC").
		Limit(limit).Offset(offset).
		Find(&list).Error
	return list, err
}

// ListNewReleases 最新上线的分集
func (r *EpisodeRepository) ListNewReleases(ctx context.Context, limit, offset int) ([]*model.Episode, error) {
	var list []*model.Episode
	err := r.withPublishedSeries(ctx).
		Order("episodes.created_at DESC").
		Order("episodes.id DESC").
		Limit(limit).Offset(offset).
		Find(&list).Error
	return list, err
}

// ListByGenre 某类型下的分集
func (r *EpisodeRepository) ListByGenre(ctx context.Context, genre string, limit, offset int) ([]*model.Episode, error) {
	var list []*model.Episode
	err := r.withPublishedSeries(ctx).
		Where("series.genre ILIKE ?", "%"+genre+"%").
		Order("series.trending_score DESC").
		Order("episodes.episode_number ASC").
		Order("episodes.id ASC").
		Limit(limit).Offset(offset).
		Find(&list).Error
	return list, err
}

// Search 分集标题、所属剧集标题或简介包含关键词，可按剧集类型筛选
func (r *EpisodeRepository) Search(ctx context.Context, term, genre string, limit, offset int) ([]*model.Episode, int64, error) {
	filter := func(q *gorm.DB) *gorm.DB {
		if term != "" {
			pattern := likePattern(term)
			q = q.Where("episodes.title ILIKE ? OR series.title ILIKE ? OR series.description ILIKE ?", pattern, pattern, pattern)
		}
		if genre != "" {
			q = q.Where("series.genre ILIKE ?", likePattern(genre))
		}
		return q
	}

	var total int64
	err := r.db.WithContext(ctx).Model(&model.Episode{}).
		Joins("JOIN series ON series.id = episodes.series_id AND series.status = ?", model.SeriesPublished).
		Scopes(filter).
		Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	var list []*model.Episode
	err = r.withPublishedSeries(ctx).Scopes(filter).
		Order("episodes.views DESC").Order("episodes.created_at DESC").Order("episodes.id ASC").
		Limit(limit).Offset(offset).
		Find(&list).Error
	return list, total, err
}

// IncrementViews 播放数 +1
func (r *EpisodeRepository) IncrementViews(ctx context.Context, id int) error {
	return r.db.WithContext(ctx).Model(&model.Episode{}).
		Where("id = ?", id).
		UpdateColumn("views", gorm.Expr("views + 1")).Error
}

// IncrementShares 分享数 +1
func (r *EpisodeRepository) IncrementShares(ctx context.Context, id int) error {
	return r.db.WithContext(ctx).Model(&model.Episode{}).
		Where("id = ?", id).
		UpdateColumn("shares_count", gorm.Expr("shares_count + 1")).Error
}

// UpdateCompletionRate 行锁内按播放数更新平均完播率
func (r *EpisodeRepository) UpdateCompletionRate(ctx context.Context, id int, progress float64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ep model.Episode
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "views", "completion_rate").
			First(&ep, id).Error; err != nil {
			return notFound(err)
		}
		rate := model.NextCompletionRate(ep.CompletionRate, ep.Views, progress)
		return tx.Model(&model.Episode{}).Where("id = ?", id).UpdateColumn("completion_rate", rate).Error
	})
}

// ToggleLike 切换点赞状态并同步点赞数，返回切换后是否为已赞
func (r *EpisodeRepository) ToggleLike(ctx context.Context, userID, episodeID int) (bool, error) {
	liked := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var like model.EpisodeLike
		err := tx.Where("user_id = ? AND episode_id = ?", userID, episodeID).First(&like).Error
		switch {
		case err == nil:
			if err := tx.Delete(&like).Error; err != nil {
				return err
			}
			return tx.Model(&model.Episode{}).Where("id = ?", episodeID).
				UpdateColumn("likes_count", gorm.Expr("GREATEST(likes_count - 1, 0)")).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			like = model.EpisodeLike{UserID: userID, EpisodeID: episodeID, CreatedAt: time.Now()}
			if err := tx.Create(&like).Error; err != nil {
				return err
			}
			liked = true
			return tx.Model(&model.Episode{}).Where("id = ?", episodeID).
				UpdateColumn("likes_count", gorm.Expr("likes_count + 1")).Error
		default:
			return err
		}
	})
	return liked, err
}
