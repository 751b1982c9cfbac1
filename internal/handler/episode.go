package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/user/curtas/internal/logging"
	"github.com/user/curtas/internal/middleware"
	"github.com/user/curtas/internal/model"
	"github.com/user/curtas/internal/repository"
	"github.com/user/curtas/internal/utils"
)

type progressRequest struct {
	Progress  *float64 `json:"progress" form:"progress" binding:"required,gte=0,lte=1"`
	WatchTime int      `json:"watchTime" form:"watchTime" binding:"gte=0"`
}

// loadEpisode 解析 :id 并读取分集，失败时已写出响应
func (h *Handler) loadEpisode(c *gin.Context) (*model.Episode, bool) {
	id, ok := paramID(c)
	if !ok {
		utils.BadRequest(c, "ID inválido")
		return nil, false
	}
	ep, err := h.Repos.Episode.FindByID(c.Request.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		utils.NotFound(c, "Episódio não encontrado")
		return nil, false
	}
	if err != nil {
		logging.With("episode").Error().Err(err).Int("episode_id", id).Msg("读取分集失败")
		utils.InternalServerError(c, "")
		return nil, false
	}
	return ep, true
}

// recordInteraction 偏好更新失败不影响主流程
func (h *Handler) recordInteraction(c *gin.Context, ep *model.Episode, action model.Action) {
	userID := middleware.GetUserID(c)
	if userID == 0 || ep.Series == nil {
		return
	}
	if err := h.Recommendations.UpdateUserPreferences(c.Request.Context(), userID, ep.Series.Genre, action, 1); err != nil {
		logging.With("episode").Warn().Err(err).Int("user_id", userID).Int("episode_id", ep.ID).Msg("更新偏好失败")
	}
}

// RecordView POST /api/episodes/:id/view
func (h *Handler) RecordView(c *gin.Context) {
	ep, ok := h.loadEpisode(c)
	if !ok {
		return
	}
	if err := h.Repos.Episode.IncrementViews(c.Request.Context(), ep.ID); err != nil {
		utils.InternalServerError(c, "Erro ao registrar visualização")
		return
	}
	h.recordInteraction(c, ep, model.ActionView)
	utils.SuccessWithMessage(c, "Visualização registrada", nil)
}

// ToggleLike POST /api/episodes/:id/like
func (h *Handler) ToggleLike(c *gin.Context) {
	ep, ok := h.loadEpisode(c)
	if !ok {
		return
	}
	liked, err := h.Repos.Episode.ToggleLike(c.Request.Context(), middleware.GetUserID(c), ep.ID)
	if err != nil {
		utils.InternalServerError(c, "Erro ao curtir episódio")
		return
	}
	if liked {
		h.recordInteraction(c, ep, model.ActionLike)
	}
	utils.Success(c, gin.H{"isLiked": liked})
}

// UpdateProgress POST /api/episodes/:id/progress
func (h *Handler) UpdateProgress(c *gin.Context) {
	var req progressRequest
	if err := c.ShouldBind(&req); err != nil {
		utils.BadRequest(c, "Progress deve ser um número entre 0 e 1")
		return
	}
	ep, ok := h.loadEpisode(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	history, err := h.Repos.History.UpsertProgress(ctx, middleware.GetUserID(c), ep.ID, *req.Progress, req.WatchTime)
	if err != nil {
		utils.InternalServerError(c, "Erro ao atualizar progresso")
		return
	}
	if err := h.Repos.Episode.UpdateCompletionRate(ctx, ep.ID, *req.Progress); err != nil {
		utils.InternalServerError(c, "Erro ao atualizar progresso")
		return
	}

	switch {
	case *req.Progress >= model.CompletionThreshold:
		h.recordInteraction(c, ep, model.ActionComplete)
	case *req.Progress >= 0.5:
		h.recordInteraction(c, ep, model.ActionView)
	}
	utils.Success(c, history)
}

// RecordShare POST /api/episodes/:id/share
func (h *Handler) RecordShare(c *gin.Context) {
	ep, ok := h.loadEpisode(c)
	if !ok {
		return
	}
	if err := h.Repos.Episode.IncrementShares(c.Request.Context(), ep.ID); err != nil {
		utils.InternalServerError(c, "Erro ao registrar compartilhamento")
		return
	}
	h.recordInteraction(c, ep, model.ActionShare)
	utils.SuccessWithMessage(c, "Compartilhamento registrado", nil)
}
