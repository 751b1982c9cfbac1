package handler

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/user/curtas/internal/logging"
	"github.com/user/curtas/internal/middleware"
	"github.com/user/curtas/internal/model"
	"github.com/user/curtas/internal/service"
	"github.com/user/curtas/internal/utils"
)

const defaultSuggestionLimit = 10

// Search GET /api/search?q=&genre=&type=all|series|episodes
func (h *Handler) Search(c *gin.Context) {
	limit, offset := pagination(c)
	q := service.SearchQuery{
		Term:   strings.TrimSpace(c.Query("q")),
		Genre:  strings.TrimSpace(c.Query("genre")),
		Type:   model.ParseSearchType(c.Query("type")),
		Limit:  limit,
		Offset: offset,
	}

	result, err := h.SearchService.Search(c.Request.Context(), q)
	if errors.Is(err, service.ErrEmptySearch) {
		utils.BadRequest(c, "Informe um termo de busca ou genero")
		return
	}
	if err != nil {
		logging.With("search").Error().Err(err).Str("q", q.Term).Msg("搜索失败")
		utils.InternalServerError(c, "Erro ao buscar")
		return
	}

	// 只要有结果就记录搜索日志
	if q.Term != "" && len(result.Series)+len(result.Episodes) > 0 {
		userID, ipHash := middleware.GetUserID(c), utils.HashIP(c.ClientIP())
		go h.SearchService.RecordSearch(context.WithoutCancel(c.Request.Context()), q.Term, userID, ipHash)
	}

	utils.Success(c, gin.H{
		"series":   result.Series,
		"episodes": result.Episodes,
		"pagination": gin.H{
			"series":   gin.H{"total": result.TotalSeries, "returned": len(result.Series)},
			"episodes": gin.H{"total": result.TotalEpisodes, "returned": len(result.Episodes)},
			"limit":    limit,
			"offset":   offset,
		},
	})
}

func queryLimit(c *gin.Context, def int) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(def)))
	if err != nil || limit <= 0 || limit > maxPageSize {
		return def
	}
	return limit
}

// SearchSuggestions GET /api/search/suggestions?q=
func (h *Handler) SearchSuggestions(c *gin.Context) {
	out, err := h.SearchService.Suggestions(c.Request.Context(), c.Query("q"), queryLimit(c, defaultSuggestionLimit))
	if err != nil {
		utils.InternalServerError(c, "Erro ao buscar sugestoes")
		return
	}
	utils.Success(c, out)
}

// TrendingSearches GET /api/search/trending
func (h *Handler) TrendingSearches(c *gin.Context) {
	out, err := h.SearchService.TrendingSearches(c.Request.Context(), queryLimit(c, defaultSuggestionLimit))
	if err != nil {
		utils.InternalServerError(c, "Erro ao buscar tendencias")
		return
	}
	utils.Success(c, out)
}

// SearchGenres GET /api/search/genres
func (h *Handler) SearchGenres(c *gin.Context) {
	out, err := h.SearchService.Genres(c.Request.Context())
	if err != nil {
		utils.InternalServerError(c, "Erro ao buscar generos")
		return
	}
	utils.Success(c, out)
}
