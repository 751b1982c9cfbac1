package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata" // 确保在精简镜像中也能识别时区

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/user/curtas/internal/config"
	"github.com/user/curtas/internal/handler"
	"github.com/user/curtas/internal/logging"
	"github.com/user/curtas/internal/middleware"
	"github.com/user/curtas/internal/repository"
	"github.com/user/curtas/internal/router"
	"github.com/user/curtas/internal/service"
	"github.com/user/curtas/internal/utils"
)

func main() {
	// 加载环境变量
	envErr := godotenv.Load()

	// 加载配置
	cfg := config.Load()
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if envErr != nil {
		logging.Info().Msg("未找到 .env 文件，使用系统环境变量")
	}

	// 初始化数据库
	db, err := repository.InitDB(cfg.DatabaseURL)
	if err != nil {
		logging.Fatal().Err(err).Msg("数据库连接失败")
	}
	if err := repository.Migrate(db); err != nil {
		logging.Fatal().Err(err).Msg("数据库迁移失败")
	}

	sqlDB, _ := db.DB()
	defer sqlDB.Close()

	// 初始化仓库
	repos := repository.NewRepositories(db)

	// 初始化 Handler
	provider := service.NewProvider(cfg)
	h := handler.NewHandler(repos, cfg, provider)

	// 后台任务随 rootCtx 退出
	rootCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	h.Trending.Start(rootCtx)
	service.NewCleanupService(h.Connections, cfg.ConnectionSweepInterval, cfg.ConnectionMaxAge).
		WithMaintainer(h.SearchService).
		Start(rootCtx)

	embedder := utils.NewOllamaEmbedder(cfg.AI.OllamaHost, cfg.AI.OllamaEmbedModel)
	service.NewEmbeddingService(repos.Series, embedder, cfg.EmbeddingInterval).Start(rootCtx)

	limiter := middleware.NewRateLimiter(cfg.GenerationRatePerMin)
	limiter.StartCleanup(rootCtx, 10*time.Minute)

	// 初始化 Gin
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	// SSE 接口不压缩，否则分块无法及时送达
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/api/ai/", "/metrics"})))

	// 中间件
	r.Use(middleware.Logger())
	r.Use(middleware.Security())
	r.Use(middleware.CORS(cfg.CORSAllowOrigin))

	// 注册路由
	router.RegisterRoutes(r, h, limiter)

	// 生成流可能持续数分钟，不设写超时，由连接清理任务兜底
	srv := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		logging.Info().Str("port", cfg.Port).Str("provider", provider.Name()).Msg("服务器启动")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("服务器启动失败")
		}
	}()

	// 等待中断信号以优雅地关闭服务器
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logging.Info().Msg("正在关闭服务器...")

	stopBackground()

	// 先中断所有生成流，否则 Shutdown 会一直等待
	h.Connections.CleanupOldConnections(0)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logging.Error().Err(err).Msg("服务器强制关闭")
	}

	logging.Info().Msg("服务器已退出")
}
