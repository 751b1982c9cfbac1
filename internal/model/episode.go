package model

import "time"

const (
	// CompletionThreshold 进度达到该值视为看完
	CompletionThreshold = 0.9
	// StartedThreshold 进度超过该值才算开始观看
	StartedThreshold = 0.05
)

// EpisodeMetrics 打分用的分集指标快照
type EpisodeMetrics struct {
	Views          int64
	LikesCount     int64
	CommentsCount  int64
	SharesCount    int64
	CompletionRate float64
}

// Episode 分集
type Episode struct {
	ID             int       `json:"id" db:"id" gorm:"primaryKey"`
	SeriesID       int       `json:"series_id" db:"series_id" gorm:"index;uniqueIndex:idx_series_episode"`
	Series         *Series   `json:"series,omitempty" gorm:"foreignKey:SeriesID"`
	EpisodeNumber  int       `json:"episode_number" db:"episode_number" gorm:"uniqueIndex:idx_series_episode"`
	Title          string    `json:"title" db:"title"`
	ThumbnailURL   string    `json:"thumbnail_url" db:"thumbnail_url"`
	VideoURL       string    `json:"video_url" db:"video_url"`
	Duration       int       `json:"duration" db:"duration"` // 秒
	Views          int64     `json:"views" db:"views" gorm:"default:0"`
	LikesCount     int64     `json:"likes_count" db:"likes_count" gorm:"default:0"`
	CommentsCount  int64     `json:"comments_count" db:"comments_count" gorm:"default:0"`
	SharesCount    int64     `json:"shares_count" db:"shares_count" gorm:"default:0"`
	CompletionRate float64   `json:"completion_rate" db:"completion_rate" gorm:"default:0"`
	CreatedAt      time.Time `json:"created_at" db:"created_at" gorm:"index"`
}

func (Episode) TableName() string { return "episodes" }

func (e *Episode) Metrics() EpisodeMetrics {
	return EpisodeMetrics{
		Views:          e.Views,
		LikesCount:     e.LikesCount,
		CommentsCount:  e.CommentsCount,
		SharesCount:    e.SharesCount,
		CompletionRate: e.CompletionRate,
	}
}

// NextCompletionRate 以当前播放数为权重更新平均完播率
func NextCompletionRate(current float64, views int64, progress float64) float64 {
	progress = clamp01(progress)
	if views <= 0 {
		return progress
	}
	return (current*float64(views) + progress) / float64(views+1)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
