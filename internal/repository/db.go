package repository

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/user/curtas/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("record not found")

// InitDB 初始化数据库连接
func InitDB(databaseURL string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("无法连接数据库: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取连接池失败: %w", err)
	}

	// 测试连接
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("数据库 ping 失败: %w", err)
	}

	// 设置连接池
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}

// Migrate 建表并启用 pgvector 扩展
func Migrate(db *gorm.DB) error {
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return fmt.Errorf("启用 vector 扩展失败: %w", err)
	}
	return db.AutoMigrate(
		&model.Series{},
		&model.Episode{},
		&model.WatchHistory{},
		&model.EpisodeLike{},
		&model.UserPreferences{},
		&model.Comment{},
		&model.CommentLike{},
		&model.CreditAccount{},
		&model.SearchLog{},
		&model.TrendingKeyword{},
		&model.SearchCache{},
	)
}

// Repositories 仓库集合
type Repositories struct {
	DB          *gorm.DB
	Series      *SeriesRepository
	Episode     *EpisodeRepository
	History     *HistoryRepository
	Preference  *PreferenceRepository
	Comment     *CommentRepository
	Credits     *CreditsRepository
	SearchLog   *SearchLogRepository
	SearchCache *SearchCacheRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		DB:          db,
		Series:      NewSeriesRepository(db),
		Episode:     NewEpisodeRepository(db),
		History:     NewHistoryRepository(db),
		Preference:  NewPreferenceRepository(db),
		Comment:     NewCommentRepository(db),
		Credits:     NewCreditsRepository(db),
		SearchLog:   NewSearchLogRepository(db),
		SearchCache: NewSearchCacheRepository(db),
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// likePattern 转义通配符后两侧加 %
func likePattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
