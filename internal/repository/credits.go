package repository

import (
	"context"
	"errors"
	"time"

	"github.com/user/curtas/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CreditsRepository struct {
	db *gorm.DB
}

func NewCreditsRepository(db *gorm.DB) *CreditsRepository {
	return &CreditsRepository{db: db}
}

func ownerScope(kind model.CreditOwnerKind, ownerID string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("owner_kind = ? AND owner_id = ?", kind, ownerID)
	}
}

// Consume 行锁内刷新并扣减额度。额度不足时返回 false，余额不变
func (r *CreditsRepository) Consume(ctx context.Context, kind model.CreditOwnerKind, ownerID string, amount, limit int, now time.Time) (*model.CreditAccount, bool, error) {
	var acc model.CreditAccount
	ok := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 首次使用先建行，并发建行由唯一索引去重
		seed := &model.CreditAccount{
			OwnerKind:  kind,
			OwnerID:    ownerID,
			Available:  limit,
			DailyLimit: limit,
			DailyStart: now,
			UpdatedAt:  now,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "owner_kind"}, {Name: "owner_id"}},
			DoNothing: true,
		}).Create(seed).Error; err != nil {
			return err
		}

		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Scopes(ownerScope(kind, ownerID)).
			First(&acc).Error; err != nil {
			return err
		}

		refreshed := acc.Refresh(limit, now)
		ok = acc.Consume(amount, limit, now)
		if !ok && !refreshed {
			return nil
		}
		acc.UpdatedAt = now
		return tx.Save(&acc).Error
	})
	if err != nil {
		return nil, false, err
	}
	return &acc, ok, nil
}

// Refund 退回额度，不超过当日上限
func (r *CreditsRepository) Refund(ctx context.Context, kind model.CreditOwnerKind, ownerID string, amount int) error {
	return r.db.WithContext(ctx).Model(&model.CreditAccount{}).
		Scopes(ownerScope(kind, ownerID)).
		UpdateColumns(map[string]interface{}{
			"available":  gorm.Expr("LEAST(available + ?, daily_limit)", amount),
			"updated_at": time.Now(),
		}).Error
}

// Find 读取账户，不存在返回 ErrNotFound
func (r *CreditsRepository) Find(ctx context.Context, kind model.CreditOwnerKind, ownerID string) (*model.CreditAccount, error) {
	var acc model.CreditAccount
	err := r.db.WithContext(ctx).Scopes(ownerScope(kind, ownerID)).First(&acc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}
