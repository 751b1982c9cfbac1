package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/user/curtas/internal/handler"
	"github.com/user/curtas/internal/middleware"
)

// RegisterRoutes 注册所有路由；limiter 只作用于生成接口
func RegisterRoutes(r *gin.Engine, h *handler.Handler, limiter *middleware.RateLimiter) {
	secret := h.Config.AppSecret

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "connections": h.Connections.Len()})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")

	// ==================== AI 生成 ====================
	ai := api.Group("/ai")
	ai.Use(middleware.OptionalAuth(secret))
	{
		ai.GET("/models", h.ListModels)
		ai.GET("/credits", h.CreditsBalance)
		ai.GET("/stop-generation", h.StopGeneration)
		ai.GET("/connections", middleware.RequireAuth(secret), h.ListConnections)

		generate := ai.Group("", limiter.Middleware())
		generate.GET("/generate-text", h.GenerateText)
		generate.POST("/generate-text", h.GenerateText)
		generate.GET("/analyze-image", h.AnalyzeImage)
		generate.POST("/analyze-image", h.AnalyzeImage)
	}

	// ==================== 推荐流 ====================
	feed := api.Group("/feed")
	{
		feed.GET("/trending", h.TrendingFeed)
		feed.GET("/new", h.NewReleasesFeed)
		feed.GET("/genre/:genre", h.GenreFeed)
		feed.GET("/home", middleware.OptionalAuth(secret), h.Home)

		private := feed.Group("", middleware.RequireAuth(secret))
		private.GET("/for-you", h.ForYou)
		private.GET("/continue-watching", h.ContinueWatching)
		private.GET("/history", h.History)
		private.DELETE("/history/:id", h.DeleteHistory)
	}

	// ==================== 分集互动 ====================
	episodes := api.Group("/episodes")
	{
		episodes.POST("/:id/view", middleware.OptionalAuth(secret), h.RecordView)
		episodes.GET("/:id/comments", middleware.OptionalAuth(secret), h.EpisodeComments)

		private := episodes.Group("", middleware.RequireAuth(secret))
		private.POST("/:id/like", h.ToggleLike)
		private.POST("/:id/progress", h.UpdateProgress)
		private.POST("/:id/share", h.RecordShare)
	}

	// ==================== 评论 ====================
	comments := api.Group("/comments")
	{
		comments.GET("/:id/replies", middleware.OptionalAuth(secret), h.CommentReplies)

		private := comments.Group("", middleware.RequireAuth(secret))
		private.POST("", h.CreateComment)
		private.PUT("/:id", h.UpdateComment)
		private.DELETE("/:id", h.DeleteComment)
		private.POST("/:id/like", h.ToggleCommentLike)

		moderation := private.Group("", middleware.RequireAdmin())
		moderation.POST("/:id/pin", h.PinComment)
		moderation.DELETE("/:id/pin", h.UnpinComment)
		moderation.POST("/:id/hide", h.HideComment)
	}

	// ==================== 搜索 ====================
	search := api.Group("/search")
	search.Use(middleware.OptionalAuth(secret))
	{
		search.GET("", h.Search)
		search.GET("/suggestions", h.SearchSuggestions)
		search.GET("/trending", h.TrendingSearches)
		search.GET("/genres", h.SearchGenres)
	}

	// ==================== 剧集 ====================
	series := api.Group("/series")
	series.Use(middleware.OptionalAuth(secret))
	{
		series.GET("/recommended", h.RecommendedSeries)
		series.GET("/:id/similar", h.SimilarSeries)
	}

	// ==================== 管理后台 ====================
	admin := api.Group("/admin")
	admin.Use(middleware.RequireAuth(secret), middleware.RequireAdmin())
	{
		admin.POST("/trending/recompute", h.AdminRecomputeTrending)
		admin.GET("/connections", h.AdminConnections)
		admin.DELETE("/connections/:connectionId", h.AdminStopConnection)
		admin.POST("/connections/cleanup", h.AdminSweepConnections)
	}
}
