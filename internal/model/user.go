package model

import (
	"time"
)

// WatchHistory 观看进度，每个用户每集一条
type WatchHistory struct {
	ID            int        `json:"id" db:"id" gorm:"primaryKey"`
	UserID        int        `json:"user_id" db:"user_id" gorm:"uniqueIndex:idx_user_episode"`
	EpisodeID     int        `json:"episode_id" db:"episode_id" gorm:"uniqueIndex:idx_user_episode"`
	Episode       *Episode   `json:"episode,omitempty" gorm:"foreignKey:EpisodeID"`
	Progress      float64    `json:"progress" db:"progress"`     // 0..1
	WatchTime     int        `json:"watch_time" db:"watch_time"` // 累计秒数
	CompletedAt   *time.Time `json:"completed_at" db:"completed_at"`
	LastWatchedAt time.Time  `json:"last_watched_at" db:"last_watched_at" gorm:"index"`
}

func (WatchHistory) TableName() string { return "watch_history" }

// EpisodeLike 点赞
type EpisodeLike struct {
	UserID    int       `json:"user_id" db:"user_id" gorm:"primaryKey"`
	EpisodeID int       `json:"episode_id" db:"episode_id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

func (EpisodeLike) TableName() string { return "episode_likes" }

// UserPreferences 用户类型偏好
type UserPreferences struct {
	UserID      int       `json:"user_id" db:"user_id" gorm:"primaryKey;autoIncrement:false"`
	Preferences Affinity  `json:"preferences" db:"preferences" gorm:"type:jsonb;not null"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

func (UserPreferences) TableName() string { return "user_preferences" }
