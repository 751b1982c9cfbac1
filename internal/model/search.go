package model

import (
	"strings"
	"time"
)

// SearchType 搜索范围
type SearchType string

const (
	SearchAll      SearchType = "all"
	SearchSeries   SearchType = "series"
	SearchEpisodes SearchType = "episodes"
)

// ParseSearchType 未知值按 all 处理
func ParseSearchType(raw string) SearchType {
	switch SearchType(strings.ToLower(strings.TrimSpace(raw))) {
	case SearchSeries:
		return SearchSeries
	case SearchEpisodes:
		return SearchEpisodes
	default:
		return SearchAll
	}
}

// SearchLog 搜索日志
type SearchLog struct {
	ID        int       `json:"id" db:"id"`
	Keyword   string    `json:"keyword" db:"keyword" gorm:"index"`
	UserID    *int      `json:"user_id" db:"user_id"`
	IPHash    string    `json:"ip_hash" db:"ip_hash"`
	CreatedAt time.Time `json:"created_at" db:"created_at" gorm:"index"`
}

// TrendingKeyword 热搜关键词
type TrendingKeyword struct {
	Keyword        string    `json:"keyword" db:"keyword" gorm:"primaryKey"`
	Count          int       `json:"count" db:"count"`
	LastSearchedAt time.Time `json:"last_searched_at" db:"last_searched_at" gorm:"index"`
}

// SearchCache 搜索结果缓存，按 (keyword, source) 唯一
type SearchCache struct {
	ID         int       `json:"id" db:"id"`
	Keyword    string    `json:"keyword" db:"keyword" gorm:"uniqueIndex:idx_search_cache_key"`
	Source     string    `json:"source" db:"source" gorm:"uniqueIndex:idx_search_cache_key"`
	ResultJSON string    `json:"result_json" db:"result_json" gorm:"type:text"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	ExpiresAt  time.Time `json:"expires_at" db:"expires_at" gorm:"index"`
}

func (SearchCache) TableName() string { return "search_cache" }

// SearchSuggestion 搜索框联想项
type SearchSuggestion struct {
	ID       int    `json:"id"`
	Type     string `json:"type"`
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Image    string `json:"image"`
}

// TrendingSearch 热搜词；Genre 仅在由热门剧集补位时有值
type TrendingSearch struct {
	Term  string `json:"term"`
	Genre string `json:"genre,omitempty"`
	Count int    `json:"count,omitempty"`
}

// GenreOption 类型筛选项
type GenreOption struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

var genreLabels = map[string]string{
	"acao":         "Acao",
	"aventura":     "Aventura",
	"comedia":      "Comedia",
	"drama":        "Drama",
	"fantasia":     "Fantasia",
	"ficcao":       "Ficcao Cientifica",
	"horror":       "Horror",
	"misterio":     "Misterio",
	"romance":      "Romance",
	"suspense":     "Suspense",
	"terror":       "Terror",
	"thriller":     "Thriller",
	"animacao":     "Animacao",
	"documentario": "Documentario",
	"musical":      "Musical",
}

// NewGenreOption 已知类型用预设名称，其余原样展示
func NewGenreOption(genre string) GenreOption {
	id := NormalizeGenre(genre)
	name, ok := genreLabels[id]
	if !ok {
		name = strings.TrimSpace(genre)
	}
	return GenreOption{ID: id, Name: name}
}
