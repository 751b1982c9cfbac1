package service

import "errors"

var (
	// ErrProviderUnavailable 上游生成服务不可用（熔断打开或连续失败）
	ErrProviderUnavailable = errors.New("generation provider unavailable")
	// ErrEmptyCompletion 上游返回成功但没有内容
	ErrEmptyCompletion = errors.New("provider returned an empty completion")
	// ErrInvalidInteraction 未知的互动类型
	ErrInvalidInteraction = errors.New("invalid interaction")
	// ErrEmptySearch 关键词和类型都为空
	ErrEmptySearch = errors.New("search term or genre required")
	// ErrInsufficientCredits 当日额度不足以支付本次生成
	ErrInsufficientCredits = errors.New("insufficient credits")
	// ErrInvalidComment 评论内容为空或超长
	ErrInvalidComment = errors.New("invalid comment content")
	// ErrInvalidParent 回复的评论不存在、已隐藏或属于其他分集
	ErrInvalidParent = errors.New("invalid parent comment")
	// ErrNotCommentAuthor 只有作者本人可以修改评论
	ErrNotCommentAuthor = errors.New("not the comment author")
)
