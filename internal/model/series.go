package model

import (
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// SeriesStatus 剧集发布状态
type SeriesStatus string

const (
	SeriesDraft     SeriesStatus = "DRAFT"
	SeriesPublished SeriesStatus = "PUBLISHED"
)

// Series 短剧（多集）
type Series struct {
	ID               int              `json:"id" db:"id" gorm:"primaryKey"`
	Title            string           `json:"title" db:"title"`
	Description      string           `json:"description" db:"description"`
	Genre            string           `json:"genre" db:"genre" gorm:"index"`
	Tags             pq.StringArray   `json:"tags" db:"tags" gorm:"type:text[]"`
	CoverURL         string           `json:"cover_url" db:"cover_url"`
	Status           SeriesStatus     `json:"status" db:"status" gorm:"index;default:DRAFT"`
	TrendingScore    float64          `json:"trending_score" db:"trending_score" gorm:"index"`
	HypeScore        float64          `json:"hype_score" db:"hype_score"`
	TotalEpisodes    int              `json:"total_episodes" db:"total_episodes"`
	EmbeddingContent string           `json:"-" db:"embedding_content"`
	Embedding        *pgvector.Vector `json:"-" db:"embedding" gorm:"type:vector(768)"`
	CreatedAt        time.Time        `json:"created_at" db:"created_at" gorm:"index"`
	UpdatedAt        time.Time        `json:"updated_at" db:"updated_at"`
}

func (Series) TableName() string { return "series" }

// IsPublished 是否已发布
func (s *Series) IsPublished() bool {
	return s != nil && s.Status == SeriesPublished
}

// SeriesMetrics 打分用的剧集指标快照
type SeriesMetrics struct {
	TrendingScore float64
	HypeScore     float64
	Genre         string
	CreatedAt     time.Time
}

func (s *Series) Metrics() SeriesMetrics {
	if s == nil {
		return SeriesMetrics{}
	}
	return SeriesMetrics{
		TrendingScore: s.TrendingScore,
		HypeScore:     s.HypeScore,
		Genre:         s.Genre,
		CreatedAt:     s.CreatedAt,
	}
}

// SeriesEngagement 按剧集汇总的分集互动数据，用于计算热度
type SeriesEngagement struct {
	SeriesID int   `json:"series_id"`
	Views    int64 `json:"views"`
	Likes    int64 `json:"likes"`
	Comments int64 `json:"comments"`
	Shares   int64 `json:"shares"`
}
