package repository

import (
	"context"
	"time"

	"github.com/user/curtas/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PreferenceRepository struct {
	db *gorm.DB
}

func NewPreferenceRepository(db *gorm.DB) *PreferenceRepository {
	return &PreferenceRepository{db: db}
}

// Get 读取用户偏好，没有记录时返回空偏好
func (r *PreferenceRepository) Get(ctx context.Context, userID int) (model.Affinity, error) {
	var prefs model.UserPreferences
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&prefs).Error
	if err != nil {
		if notFound(err) == ErrNotFound {
			return model.Affinity{}, nil
		}
		return nil, err
	}
	if prefs.Preferences == nil {
		return model.Affinity{}, nil
	}
	return prefs.Preferences, nil
}

// Update 在事务内锁定该用户的偏好行执行读-改-写，同一用户的并发更新串行化
func (r *PreferenceRepository) Update(ctx context.Context, userID int, fn func(model.Affinity) model.Affinity) (model.Affinity, error) {
	var result model.Affinity
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seed := &model.UserPreferences{UserID: userID, Preferences: model.Affinity{}, UpdatedAt: time.Now()}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(seed).Error; err != nil {
			return err
		}

		var prefs model.UserPreferences
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).
			First(&prefs).Error; err != nil {
			return err
		}

		result = fn(prefs.Preferences)
		return tx.Model(&model.UserPreferences{}).
			Where("user_id = ?", userID).
			Updates(map[string]interface{}{"preferences": result, "updated_at": time.Now()}).Error
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
