package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/user/curtas/internal/logging"
	"github.com/user/curtas/internal/middleware"
	"github.com/user/curtas/internal/model"
	"github.com/user/curtas/internal/repository"
	"github.com/user/curtas/internal/service"
	"github.com/user/curtas/internal/utils"
)

const defaultRepliesLimit = 10

type createCommentRequest struct {
	EpisodeID int    `json:"episodeId" form:"episodeId" binding:"required,gte=1"`
	Content   string `json:"content" form:"content" binding:"required"`
	ParentID  *int   `json:"parentId" form:"parentId" binding:"omitempty,gte=1"`
}

type updateCommentRequest struct {
	Content string `json:"content" form:"content" binding:"required"`
}

// commentError 统一映射评论相关错误
func commentError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		utils.NotFound(c, "Comentario nao encontrado")
	case errors.Is(err, service.ErrInvalidComment):
		utils.BadRequest(c, "Comentario deve ter entre 1 e 1000 caracteres")
	case errors.Is(err, service.ErrInvalidParent):
		utils.BadRequest(c, "Comentario original invalido")
	case errors.Is(err, service.ErrNotCommentAuthor):
		utils.Forbidden(c, "Voce nao tem permissao para alterar este comentario")
	default:
		logging.With("comments").Error().Err(err).Str("route", c.FullPath()).Msg("评论操作失败")
		utils.InternalServerError(c, fallback)
	}
}

// EpisodeComments GET /api/episodes/:id/comments?sort=newest|oldest|popular
func (h *Handler) EpisodeComments(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		utils.BadRequest(c, "ID inválido")
		return
	}
	limit, offset := pagination(c)
	sort := model.ParseCommentSort(c.Query("sort"))

	list, total, err := h.Comments.List(c.Request.Context(), id, middleware.GetUserID(c), sort, limit, offset)
	if err != nil {
		commentError(c, err, "Erro ao buscar comentarios")
		return
	}
	res := pageResult(list, len(list), limit, offset)
	res["total"] = total
	res["sort"] = sort
	utils.Success(c, res)
}

// CommentReplies GET /api/comments/:id/replies
func (h *Handler) CommentReplies(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		utils.BadRequest(c, "ID inválido")
		return
	}
	_, offset := pagination(c)
	limit := queryLimit(c, defaultRepliesLimit)

	list, total, err := h.Comments.Replies(c.Request.Context(), id, middleware.GetUserID(c), limit, offset)
	if err != nil {
		commentError(c, err, "Erro ao buscar respostas")
		return
	}
	res := pageResult(list, len(list), limit, offset)
	res["total"] = total
	utils.Success(c, res)
}

// CreateComment POST /api/comments
func (h *Handler) CreateComment(c *gin.Context) {
	var req createCommentRequest
	if err := c.ShouldBind(&req); err != nil {
		utils.BadRequest(c, "Campos obrigatorios: episodeId, content")
		return
	}

	comment, err := h.Comments.Create(c.Request.Context(), middleware.GetUserID(c), req.EpisodeID, req.ParentID, req.Content)
	if errors.Is(err, repository.ErrNotFound) {
		utils.NotFound(c, "Episódio não encontrado")
		return
	}
	if err != nil {
		commentError(c, err, "Erro ao enviar comentario")
		return
	}

	message := "Comentario enviado com sucesso"
	if comment.ParentID != nil {
		message = "Resposta enviada com sucesso"
	}
	c.JSON(http.StatusCreated, utils.Response{
		Code:    http.StatusCreated,
		Message: message,
		Data:    comment,
		Success: true,
	})
}

// UpdateComment PUT /api/comments/:id
func (h *Handler) UpdateComment(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		utils.BadRequest(c, "ID inválido")
		return
	}
	var req updateCommentRequest
	if err := c.ShouldBind(&req); err != nil {
		utils.BadRequest(c, "Comentario deve ter entre 1 e 1000 caracteres")
		return
	}

	comment, err := h.Comments.Update(c.Request.Context(), middleware.GetUserID(c), id, req.Content)
	if err != nil {
		commentError(c, err, "Erro ao atualizar comentario")
		return
	}
	utils.SuccessWithMessage(c, "Comentario atualizado com sucesso", comment)
}

// DeleteComment DELETE /api/comments/:id，作者或管理员
func (h *Handler) DeleteComment(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		utils.BadRequest(c, "ID inválido")
		return
	}
	deleted, err := h.Comments.Delete(c.Request.Context(), middleware.GetUserID(c), middleware.IsAdmin(c), id)
	if err != nil {
		commentError(c, err, "Erro ao excluir comentario")
		return
	}
	utils.SuccessWithMessage(c, "Comentario excluido com sucesso", gin.H{"deleted": deleted})
}

// ToggleCommentLike POST /api/comments/:id/like
func (h *Handler) ToggleCommentLike(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		utils.BadRequest(c, "ID inválido")
		return
	}
	liked, err := h.Comments.ToggleLike(c.Request.Context(), middleware.GetUserID(c), id)
	if err != nil {
		commentError(c, err, "Erro ao curtir comentario")
		return
	}
	utils.Success(c, gin.H{"isLiked": liked})
}

// PinComment POST /api/comments/:id/pin，管理员
func (h *Handler) PinComment(c *gin.Context) {
	h.setPinned(c, true, "Comentario fixado com sucesso")
}

// UnpinComment DELETE /api/comments/:id/pin，管理员
func (h *Handler) UnpinComment(c *gin.Context) {
	h.setPinned(c, false, "Comentario desafixado com sucesso")
}

func (h *Handler) setPinned(c *gin.Context, pinned bool, message string) {
	id, ok := paramID(c)
	if !ok {
		utils.BadRequest(c, "ID inválido")
		return
	}
	comment, err := h.Comments.SetPinned(c.Request.Context(), id, pinned)
	if err != nil {
		commentError(c, err, "Erro ao fixar comentario")
		return
	}
	utils.SuccessWithMessage(c, message, comment)
}

// HideComment POST /api/comments/:id/hide，管理员
func (h *Handler) HideComment(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		utils.BadRequest(c, "ID inválido")
		return
	}
	comment, err := h.Comments.Hide(c.Request.Context(), id)
	if err != nil {
		commentError(c, err, "Erro ao ocultar comentario")
		return
	}
	utils.SuccessWithMessage(c, "Comentario ocultado com sucesso", comment)
}
