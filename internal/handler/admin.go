package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/user/curtas/internal/logging"
	"github.com/user/curtas/internal/middleware"
	"github.com/user/curtas/internal/utils"
)

// ==================== 管理后台 ====================

// AdminRecomputeTrending POST /api/admin/trending/recompute，与定时任务共用 singleflight
func (h *Handler) AdminRecomputeTrending(c *gin.Context) {
	updated, err := h.Trending.UpdateTrendingScores(c.Request.Context())
	if err != nil && updated == 0 {
		logging.With("admin").Error().Err(err).Int("admin_id", middleware.GetUserID(c)).Msg("手动重算热度失败")
		utils.InternalServerError(c, "Erro ao recalcular tendências")
		return
	}

	data := gin.H{"updated": updated}
	if err != nil {
		data["warning"] = err.Error()
	}
	utils.Success(c, data)
}

// AdminConnections GET /api/admin/connections
func (h *Handler) AdminConnections(c *gin.Context) {
	snapshot := h.Connections.Snapshot()
	utils.Success(c, gin.H{
		"total":       len(snapshot),
		"connections": snapshot,
	})
}

// AdminStopConnection DELETE /api/admin/connections/:connectionId
func (h *Handler) AdminStopConnection(c *gin.Context) {
	id := c.Param("connectionId")
	if !h.Connections.Stop(id) {
		utils.NotFound(c, "Conexão não encontrada ou já finalizada")
		return
	}
	logging.With("admin").Info().Str("connection_id", id).Int("admin_id", middleware.GetUserID(c)).Msg("管理员中断连接")
	utils.Success(c, nil)
}

// AdminSweepConnections POST /api/admin/connections/cleanup，立即清理超龄连接
func (h *Handler) AdminSweepConnections(c *gin.Context) {
	removed := h.Connections.CleanupOldConnections(h.Config.ConnectionMaxAge)
	utils.Success(c, gin.H{"removed": removed})
}
