package model

import "time"

// 生成消耗的额度
const (
	CreditsPerTextRequest  = 1
	CreditsPerImageRequest = 3
	// DocumentCharsPerCredit 带文档的文本生成按字符数计费
	DocumentCharsPerCredit = 300
	// CreditResetPeriod 距 DailyStart 满该时长后恢复到当日上限
	CreditResetPeriod = 24 * time.Hour
	// MinDeviceIDLength 更短的设备 ID 视为无效
	MinDeviceIDLength = 6
)

// CreditOwnerKind 额度归属
type CreditOwnerKind string

const (
	CreditOwnerUser   CreditOwnerKind = "user"
	CreditOwnerDevice CreditOwnerKind = "device"
)

// GenerationCost 图片分析固定 3 点；文本 1 点，带文档时每 300 字符 1 点，向上取整
func GenerationCost(image bool, documentChars int) int {
	if image {
		return CreditsPerImageRequest
	}
	if documentChars <= 0 {
		return CreditsPerTextRequest
	}
	return max(CreditsPerTextRequest, (documentChars+DocumentCharsPerCredit-1)/DocumentCharsPerCredit)
}

// CreditAccount 某个用户或设备的当日额度
type CreditAccount struct {
	ID         int             `json:"-" db:"id" gorm:"primaryKey"`
	OwnerKind  CreditOwnerKind `json:"owner_kind" db:"owner_kind" gorm:"size:16;uniqueIndex:idx_credit_owner"`
	OwnerID    string          `json:"-" db:"owner_id" gorm:"size:128;uniqueIndex:idx_credit_owner"`
	Available  int             `json:"available" db:"available"`
	DailyLimit int             `json:"daily_limit" db:"daily_limit"`
	DailyStart time.Time       `json:"daily_start" db:"daily_start"`
	UpdatedAt  time.Time       `json:"updated_at" db:"updated_at"`
}

func (CreditAccount) TableName() string { return "credit_accounts" }

// ResetsAt 下一次恢复额度的时间
func (a *CreditAccount) ResetsAt() time.Time {
	return a.DailyStart.Add(CreditResetPeriod)
}

// Refresh 首次使用或周期已过时恢复到 limit，返回是否发生了重置
func (a *CreditAccount) Refresh(limit int, now time.Time) bool {
	if !a.DailyStart.IsZero() && now.Before(a.ResetsAt()) {
		return false
	}
	a.Available = limit
	a.DailyLimit = limit
	a.DailyStart = now
	return true
}

// Consume 刷新后扣除 amount；不足时不扣减并返回 false
func (a *CreditAccount) Consume(amount, limit int, now time.Time) bool {
	a.Refresh(limit, now)
	if amount <= 0 {
		return true
	}
	if a.Available < amount {
		return false
	}
	a.Available -= amount
	return true
}

// Refund 退回 amount，不超过当日上限
func (a *CreditAccount) Refund(amount int) {
	if amount <= 0 {
		return
	}
	a.Available = min(a.Available+amount, a.DailyLimit)
}
