package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/user/curtas/internal/config"
	"github.com/user/curtas/internal/repository"
	"github.com/user/curtas/internal/service"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
)

// Handler HTTP 处理器
type Handler struct {
	Repos           *repository.Repositories
	Config          *config.Config
	Recommendations *service.RecommendationService
	Trending        *service.TrendingService
	Connections     *service.ConnectionRegistry
	Provider        service.GenerationProvider
	Relay           *service.StreamRelay
	SearchService   *service.SearchService
	Credits         *service.CreditService
	Comments        *service.CommentService
}

// NewHandler 创建处理器并组装推荐、热度、连接等服务
func NewHandler(repos *repository.Repositories, cfg *config.Config, provider service.GenerationProvider) *Handler {
	recs := service.NewRecommendationService(repos.Episode, repos.Series, repos.History, repos.Preference,
		service.WithHomeGenres(cfg.HomeGenres))

	return &Handler{
		Repos:           repos,
		Config:          cfg,
		Recommendations: recs,
		Trending:        service.NewTrendingService(repos.Series, recs, cfg.TrendingInterval),
		Connections:     service.NewConnectionRegistry(),
		Provider:        provider,
		Relay:           service.NewStreamRelay(),
		SearchService:   service.NewSearchService(repos.Series, repos.Episode, repos.SearchLog, repos.SearchCache),
		Credits:         service.NewCreditService(repos.Credits, cfg.Credits.UserDailyLimit, cfg.Credits.DeviceDailyLimit),
		Comments:        service.NewCommentService(repos.Comment, repos.Episode),
	}
}

// pagination 读取 limit/offset，越界时回落到默认值
func pagination(c *gin.Context) (limit, offset int) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	if err != nil || limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset, err = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}

// paramID 解析路径中的正整数 id
func paramID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	return id, err == nil && id > 0
}

// pageResult 列表接口统一的分页包装
func pageResult(items interface{}, count, limit, offset int) gin.H {
	return gin.H{
		"items": items,
		"pagination": gin.H{
			"limit":   limit,
			"offset":  offset,
			"hasMore": count == limit,
		},
	}
}
