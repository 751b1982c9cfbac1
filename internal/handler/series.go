package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/user/curtas/internal/logging"
	"github.com/user/curtas/internal/middleware"
	"github.com/user/curtas/internal/repository"
	"github.com/user/curtas/internal/utils"
)

const defaultSimilarLimit = 8

// SimilarSeries GET /api/series/:id/similar，带推荐理由
func (h *Handler) SimilarSeries(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		utils.BadRequest(c, "ID inválido")
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultSimilarLimit)))
	if err != nil || limit <= 0 || limit > maxPageSize {
		limit = defaultSimilarLimit
	}

	similar, source, err := h.Recommendations.FindSimilarWithReasons(c.Request.Context(), id, limit)
	if errors.Is(err, repository.ErrNotFound) {
		utils.NotFound(c, "Série não encontrada")
		return
	}
	if err != nil {
		logging.With("series").Error().Err(err).Int("series_id", id).Msg("获取相似剧集失败")
		utils.InternalServerError(c, "Erro ao buscar séries similares")
		return
	}

	utils.Success(c, gin.H{
		"source":  source,
		"similar": similar,
	})
}

// RecommendedSeries GET /api/series/recommended
func (h *Handler) RecommendedSeries(c *gin.Context) {
	limit, _ := pagination(c)
	items, err := h.Recommendations.GetRecommendedSeries(c.Request.Context(), middleware.GetUserID(c), limit)
	if err != nil {
		utils.InternalServerError(c, "")
		return
	}
	utils.Success(c, items)
}
