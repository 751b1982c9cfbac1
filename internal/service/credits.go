package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/user/curtas/internal/logging"
	"github.com/user/curtas/internal/metrics"
	"github.com/user/curtas/internal/model"
	"github.com/user/curtas/internal/repository"
)

// CreditStore 额度读写，Consume 必须在行锁内完成刷新与扣减
type CreditStore interface {
	Consume(ctx context.Context, kind model.CreditOwnerKind, ownerID string, amount, limit int, now time.Time) (*model.CreditAccount, bool, error)
	Refund(ctx context.Context, kind model.CreditOwnerKind, ownerID string, amount int) error
	Find(ctx context.Context, kind model.CreditOwnerKind, ownerID string) (*model.CreditAccount, error)
}

// CreditOwner 被扣费的一方
type CreditOwner struct {
	Kind model.CreditOwnerKind
	ID   string
}

// ResolveCreditOwner 登录用户按用户扣费；匿名用户用设备 ID，设备 ID 无效时退回到 IP 摘要
func ResolveCreditOwner(userID int, deviceID, ipHash string) CreditOwner {
	if userID > 0 {
		return CreditOwner{Kind: model.CreditOwnerUser, ID: strconv.Itoa(userID)}
	}
	if deviceID = strings.TrimSpace(deviceID); len(deviceID) >= model.MinDeviceIDLength {
		return CreditOwner{Kind: model.CreditOwnerDevice, ID: deviceID}
	}
	return CreditOwner{Kind: model.CreditOwnerDevice, ID: "ip:" + ipHash}
}

// CreditService 生成前扣费，失败时退回
type CreditService struct {
	store       CreditStore
	userLimit   int
	deviceLimit int
	now         func() time.Time
	log         zerolog.Logger
}

// NewCreditService 创建额度服务
func NewCreditService(store CreditStore, userLimit, deviceLimit int) *CreditService {
	return &CreditService{
		store:       store,
		userLimit:   userLimit,
		deviceLimit: deviceLimit,
		now:         time.Now,
		log:         logging.With("credits"),
	}
}

func (s *CreditService) limitFor(kind model.CreditOwnerKind) int {
	if kind == model.CreditOwnerUser {
		return s.userLimit
	}
	return s.deviceLimit
}

// Charge 扣除 cost 点；额度不足返回 ErrInsufficientCredits 和当前账户
func (s *CreditService) Charge(ctx context.Context, owner CreditOwner, cost int) (*model.CreditAccount, error) {
	acc, ok, err := s.store.Consume(ctx, owner.Kind, owner.ID, cost, s.limitFor(owner.Kind), s.now())
	if err != nil {
		return nil, fmt.Errorf("consume credits: %w", err)
	}
	if !ok {
		metrics.CreditCharges.WithLabelValues(string(owner.Kind), "insufficient").Inc()
		s.log.Info().Str("owner_kind", string(owner.Kind)).Int("cost", cost).Int("available", acc.Available).Msg("额度不足")
		return acc, ErrInsufficientCredits
	}
	metrics.CreditCharges.WithLabelValues(string(owner.Kind), "charged").Inc()
	return acc, nil
}

// Refund 生成未开始时退回，失败只记日志
func (s *CreditService) Refund(ctx context.Context, owner CreditOwner, cost int) {
	if err := s.store.Refund(ctx, owner.Kind, owner.ID, cost); err != nil {
		s.log.Error().Err(err).Str("owner_kind", string(owner.Kind)).Int("cost", cost).Msg("退回额度失败")
		return
	}
	metrics.CreditCharges.WithLabelValues(string(owner.Kind), "refunded").Inc()
}

// Balance 当前余额，不写库；从未使用过或已过重置时间时按满额返回
func (s *CreditService) Balance(ctx context.Context, owner CreditOwner) (*model.CreditAccount, error) {
	limit := s.limitFor(owner.Kind)
	acc, err := s.store.Find(ctx, owner.Kind, owner.ID)
	if errors.Is(err, repository.ErrNotFound) {
		acc = &model.CreditAccount{OwnerKind: owner.Kind, OwnerID: owner.ID}
	} else if err != nil {
		return nil, fmt.Errorf("load credits: %w", err)
	}
	acc.Refresh(limit, s.now())
	return acc, nil
}
