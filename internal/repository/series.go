package repository

import (
	"context"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/user/curtas/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SeriesRepository struct {
	db *gorm.DB
}

func NewSeriesRepository(db *gorm.DB) *SeriesRepository {
	return &SeriesRepository{db: db}
}

func (r *SeriesRepository) published(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Where("status = ?", model.SeriesPublished)
}

// FindByID 查找剧集，不存在返回 ErrNotFound
func (r *SeriesRepository) FindByID(ctx context.Context, id int) (*model.Series, error) {
	var s model.Series
	if err := r.db.WithContext(ctx).First(&s, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

// TopByTrending 按热度降序
func (r *SeriesRepository) TopByTrending(ctx context.Context, limit int) ([]*model.Series, error) {
	var list []*model.Series
	err := r.published(ctx).Order("trending_score DESC").Order("id ASC").Limit(limit).Find(&list).Error
	return list, err
}

// TopByCreated 最新上线
func (r *SeriesRepository) TopByCreated(ctx context.Context, limit int) ([]*model.Series, error) {
	var list []*model.Series
	err := r.published(ctx).Order("created_at DESC").Order("id ASC").Limit(limit).Find(&list).Error
	return list, err
}

// TopByHype 按期待值降序
func (r *SeriesRepository) TopByHype(ctx context.Context, limit int) ([]*model.Series, error) {
	var list []*model.Series
	err := r.published(ctx).Order("hype_score DESC").Order("id ASC").Limit(limit).Find(&list).Error
	return list, err
}

// TopByGenre 某类型下按热度降序，类型不区分大小写
func (r *SeriesRepository) TopByGenre(ctx context.Context, genre string, limit int) ([]*model.Series, error) {
	var list []*model.Series
	err := r.published(ctx).
		Where("genre ILIKE ?", "%"+genre+"%").
		Order("trending_score DESC").Order("id ASC").
		Limit(limit).
		Find(&list).Error
	return list, err
}

// ListPublished 全部已发布剧集，用于个性化打分
func (r *SeriesRepository) ListPublished(ctx context.Context, limit int) ([]*model.Series, error) {
	var list []*model.Series
	err := r.published(ctx).Order("id ASC").Limit(limit).Find(&list).Error
	return list, err
}

// ListGenres 已发布剧集出现过的类型
func (r *SeriesRepository) ListGenres(ctx context.Context) ([]string, error) {
	var genres []string
	err := r.published(ctx).Model(&model.Series{}).
		Where("genre <> ''").
		Distinct("genre").
		Order("genre ASC").
		Pluck("genre", &genres).Error
	return genres, err
}

// Search 标题或简介包含关键词，可按类型筛选；返回当前页和总数
func (r *SeriesRepository) Search(ctx context.Context, term, genre string, limit, offset int) ([]*model.Series, int64, error) {
	q := r.published(ctx).Model(&model.Series{})
	if term != "" {
		pattern := likePattern(term)
		q = q.Where("title ILIKE ? OR description ILIKE ?", pattern, pattern)
	}
	if genre != "" {
		q = q.Where("genre ILIKE ?", likePattern(genre))
	}
	// Count 与 Find 共用条件
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []*model.Series
	err := q.Order("trending_score DESC").Order("created_at DESC").Order("id ASC").
		Limit(limit).Offset(offset).
		Find(&list).Error
	return list, total, err
}

// SuggestByTitle 标题联想，按热度排序
func (r *SeriesRepository) SuggestByTitle(ctx context.Context, term string, limit int) ([]*model.Series, error) {
	var list []*model.Series
	err := r.published(ctx).
		Select("id", "title", "genre", "cover_url").
		Where("title ILIKE ?", likePattern(term)).
		Order("trending_score DESC").Order("id ASC").
		Limit(limit).
		Find(&list).Error
	return list, err
}

// ListEngagement 汇总每部已发布剧集的分集互动数
func (r *SeriesRepository) ListEngagement(ctx context.Context) ([]model.SeriesEngagement, error) {
	var rows []model.SeriesEngagement
	err := r.db.WithContext(ctx).
		Table("series AS s").
		Select(`s.id AS series_id,
			COALESCE(SUM(e.views), 0) AS views,
			COALESCE(SUM(e.likes_count), 0) AS likes,
			COALESCE(SUM(e.comments_count), 0) AS comments,
			COALESCE(SUM(e.shares_count), 0) AS shares`).
		Joins("LEFT JOIN episodes e ON e.series_id = s.id").
		Where("s.status = ?", model.SeriesPublished).
		Group("s.id").
		Order("s.id ASC").
		Scan(&rows).Error
	return rows, err
}

// UpdateTrendingScore 写入热度分
func (r *SeriesRepository) UpdateTrendingScore(ctx context.Context, id int, score float64) error {
	return r.db.WithContext(ctx).Model(&model.Series{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{"trending_score": score, "updated_at": time.Now()}).Error
}

// ListMissingEmbedding 尚未生成向量的已发布剧集
func (r *SeriesRepository) ListMissingEmbedding(ctx context.Context, limit int) ([]*model.Series, error) {
	var list []*model.Series
	err := r.published(ctx).Where("embedding IS NULL").Order("id ASC").Limit(limit).Find(&list).Error
	return list, err
}

// SaveEmbedding 保存向量及其原文
func (r *SeriesRepository) SaveEmbedding(ctx context.Context, id int, content string, vec []float32) error {
	v := pgvector.NewVector(vec)
	return r.db.WithContext(ctx).Model(&model.Series{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{"embedding_content": content, "embedding": v}).Error
}

// FindSimilar 按余弦距离查找相似剧集，源剧集无向量时返回空
func (r *SeriesRepository) FindSimilar(ctx context.Context, id int, limit int) ([]*model.Series, error) {
	src, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if src.Embedding == nil {
		return nil, nil
	}

	var list []*model.Series
	err = r.published(ctx).
		Where("id <> ? AND embedding IS NOT NULL", id).
		Clauses(clause.OrderBy{
			Expression: clause.Expr{SQL: "embedding <=> ?", Vars: []interface{}{*src.Embedding}},
		}).
		Limit(limit).
		Find(&list).Error
	return list, err
}
