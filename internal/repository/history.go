package repository

import (
	"context"
	"time"

	"github.com/user/curtas/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type HistoryRepository struct {
	db *gorm.DB
}

func NewHistoryRepository(db *gorm.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// UpsertProgress 更新或插入观看进度，观看时长累加；进度达到阈值时记录完成时间
func (r *HistoryRepository) UpsertProgress(ctx context.Context, userID, episodeID int, progress float64, watchTime int) (*model.WatchHistory, error) {
	now := time.Now()
	h := &model.WatchHistory{
		UserID:        userID,
		EpisodeID:     episodeID,
		Progress:      progress,
		WatchTime:     watchTime,
		LastWatchedAt: now,
	}
	updates := map[string]interface{}{
		"progress":        progress,
		"last_watched_at": now,
		"watch_time":      gorm.Expr("watch_history.watch_time + ?", watchTime),
	}
	if progress >= model.CompletionThreshold {
		h.CompletedAt = &now
		updates["completed_at"] = now
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "episode_id"}},
		DoUpdates: clause.Assignments(updates),
	}).Create(h).Error
	return h, err
}

// CompletedEpisodeIDs 进度达到 threshold 的分集 ID
func (r *HistoryRepository) CompletedEpisodeIDs(ctx context.Context, userID int, threshold float64) ([]int, error) {
	var ids []int
	err := r.db.WithContext(ctx).Model(&model.WatchHistory{}).
		Where("user_id = ? AND progress >= ?", userID, threshold).
		Pluck("episode_id", &ids).Error
	return ids, err
}

// ListByUser 获取用户观看历史
func (r *HistoryRepository) ListByUser(ctx context.Context, userID, limit, offset int) ([]*model.WatchHistory, error) {
	var histories []*model.WatchHistory
	err := r.db.WithContext(ctx).
		Preload("Episode").Preload("Episode.Series").
		Where("user_id = ?", userID).
		Order("last_watched_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&histories).Error
	return histories, err
}

// ContinueWatching 看了一部分但未看完的，用于“继续观看”
func (r *HistoryRepository) ContinueWatching(ctx context.Context, userID, limit int) ([]*model.WatchHistory, error) {
	var histories []*model.WatchHistory
	err := r.db.WithContext(ctx).
		Preload("Episode").Preload("Episode.Series").
		Where("user_id = ? AND progress > ? AND progress < ?", userID, model.StartedThreshold, model.CompletionThreshold).
		Order("last_watched_at DESC").
		Limit(limit).
		Find(&histories).Error
	return histories, err
}

// CountByUser 统计用户观看历史数量
func (r *HistoryRepository) CountByUser(ctx context.Context, userID int) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.WatchHistory{}).Where("user_id = ?", userID).Count(&count).Error
	return int(count), err
}

// Delete 删除观看记录，不属于该用户时返回 ErrNotFound
func (r *HistoryRepository) Delete(ctx context.Context, userID int, id int) error {
	res := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, id).Delete(&model.WatchHistory{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
