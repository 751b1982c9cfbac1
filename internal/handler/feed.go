package handler

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/user/curtas/internal/logging"
	"github.com/user/curtas/internal/metrics"
	"github.com/user/curtas/internal/middleware"
	"github.com/user/curtas/internal/repository"
	"github.com/user/curtas/internal/utils"
)

const continueWatchingLimit = 10

func observeFeed(feed string, start time.Time) {
	metrics.FeedBuildDuration.WithLabelValues(feed).Observe(time.Since(start).Seconds())
}

// ForYou GET /api/feed/for-you
func (h *Handler) ForYou(c *gin.Context) {
	defer observeFeed("for_you", time.Now())
	limit, offset := pagination(c)

	items, err := h.Recommendations.GetPersonalizedFeed(c.Request.Context(), middleware.GetUserID(c), limit, offset)
	if err != nil {
		logging.With("feed").Error().Err(err).Msg("个性化推荐失败")
		utils.InternalServerError(c, "Erro ao carregar feed")
		return
	}
	utils.Success(c, pageResult(items, len(items), limit, offset))
}

// TrendingFeed GET /api/feed/trending
func (h *Handler) TrendingFeed(c *gin.Context) {
	defer observeFeed("trending", time.Now())
	limit, offset := pagination(c)

	items, err := h.Recommendations.GetTrendingFeed(c.Request.Context(), limit, offset)
	if err != nil {
		utils.InternalServerError(c, "Erro ao carregar feed")
		return
	}
	utils.Success(c, pageResult(items, len(items), limit, offset))
}

// NewReleasesFeed GET /api/feed/new
func (h *Handler) NewReleasesFeed(c *gin.Context) {
	defer observeFeed("new", time.Now())
	limit, offset := pagination(c)

	items, err := h.Recommendations.GetNewReleasesFeed(c.Request.Context(), limit, offset)
	if err != nil {
		utils.InternalServerError(c, "Erro ao carregar feed")
		return
	}
	utils.Success(c, pageResult(items, len(items), limit, offset))
}

// GenreFeed GET /api/feed/genre/:genre
func (h *Handler) GenreFeed(c *gin.Context) {
	defer observeFeed("genre", time.Now())
	genre := strings.TrimSpace(c.Param("genre"))
	if genre == "" {
		utils.BadRequest(c, "Gênero é obrigatório")
		return
	}
	limit, offset := pagination(c)

	items, err := h.Recommendations.GetGenreFeed(c.Request.Context(), genre, limit, offset)
	if err != nil {
		utils.InternalServerError(c, "Erro ao carregar feed")
		return
	}
	utils.Success(c, pageResult(items, len(items), limit, offset))
}

// Home GET /api/feed/home，登录用户额外返回继续观看
func (h *Handler) Home(c *gin.Context) {
	defer observeFeed("home", time.Now())
	ctx := c.Request.Context()
	userID := middleware.GetUserID(c)

	carousels, err := h.Recommendations.GetHomeCarousels(ctx, userID)
	if err != nil {
		logging.With("feed").Error().Err(err).Int("user_id", userID).Msg("首页轮播构建失败")
		utils.InternalServerError(c, "Erro ao carregar página inicial")
		return
	}

	data := gin.H{"carousels": carousels}
	if userID > 0 {
		cw, err := h.Repos.History.ContinueWatching(ctx, userID, continueWatchingLimit)
		if err != nil {
			logging.With("feed").Warn().Err(err).Int("user_id", userID).Msg("读取继续观看失败")
		}
		data["continueWatching"] = cw
	}
	utils.Success(c, data)
}

// ContinueWatching GET /api/feed/continue-watching
func (h *Handler) ContinueWatching(c *gin.Context) {
	items, err := h.Repos.History.ContinueWatching(c.Request.Context(), middleware.GetUserID(c), continueWatchingLimit)
	if err != nil {
		utils.InternalServerError(c, "")
		return
	}
	utils.Success(c, items)
}

// History GET /api/feed/history
func (h *Handler) History(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.GetUserID(c)
	limit, offset := pagination(c)

	items, err := h.Repos.History.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		utils.InternalServerError(c, "")
		return
	}
	total, err := h.Repos.History.CountByUser(ctx, userID)
	if err != nil {
		utils.InternalServerError(c, "")
		return
	}

	res := pageResult(items, len(items), limit, offset)
	res["total"] = total
	utils.Success(c, res)
}

// DeleteHistory DELETE /api/feed/history/:id
func (h *Handler) DeleteHistory(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		utils.BadRequest(c, "ID inválido")
		return
	}
	err := h.Repos.History.Delete(c.Request.Context(), middleware.GetUserID(c), id)
	if errors.Is(err, repository.ErrNotFound) {
		utils.NotFound(c, "")
		return
	}
	if err != nil {
		utils.InternalServerError(c, "")
		return
	}
	utils.Success(c, nil)
}
