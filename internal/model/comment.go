package model

import (
	"strings"
	"time"
	"unicode/utf8"
)

// MaxCommentLength 评论内容上限（字符）
const MaxCommentLength = 1000

// CommentSort 评论排序
type CommentSort string

const (
	CommentNewest  CommentSort = "newest"
	CommentOldest  CommentSort = "oldest"
	CommentPopular CommentSort = "popular"
)

// ParseCommentSort 未知值按 newest 处理
func ParseCommentSort(raw string) CommentSort {
	switch CommentSort(strings.ToLower(strings.TrimSpace(raw))) {
	case CommentOldest:
		return CommentOldest
	case CommentPopular:
		return CommentPopular
	default:
		return CommentNewest
	}
}

// Comment 分集评论；ParentID 非空时为回复，只有一层
type Comment struct {
	ID           int       `json:"id" db:"id" gorm:"primaryKey"`
	EpisodeID    int       `json:"episode_id" db:"episode_id" gorm:"index;not null"`
	UserID       int       `json:"user_id" db:"user_id" gorm:"index;not null"`
	ParentID     *int      `json:"parent_id" db:"parent_id" gorm:"index"`
	Content      string    `json:"content" db:"content" gorm:"type:text;not null"`
	LikesCount   int64     `json:"likes_count" db:"likes_count" gorm:"default:0"`
	RepliesCount int64     `json:"replies_count" db:"replies_count" gorm:"default:0"`
	IsPinned     bool      `json:"is_pinned" db:"is_pinned" gorm:"default:false"`
	IsHidden     bool      `json:"is_hidden" db:"is_hidden" gorm:"default:false"`
	CreatedAt    time.Time `json:"created_at" db:"created_at" gorm:"index"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`

	// Liked 当前用户是否已赞，不落库
	Liked bool `json:"is_liked" gorm:"-"`
}

func (Comment) TableName() string { return "comments" }

// CommentLike 评论点赞
type CommentLike struct {
	UserID    int       `json:"user_id" db:"user_id" gorm:"primaryKey"`
	CommentID int       `json:"comment_id" db:"comment_id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

func (CommentLike) TableName() string { return "comment_likes" }

// NormalizeCommentContent 去掉首尾空白，长度需在 1 到 MaxCommentLength 之间
func NormalizeCommentContent(raw string) (string, bool) {
	content := strings.TrimSpace(raw)
	n := utf8.RuneCountInString(content)
	return content, n >= 1 && n <= MaxCommentLength
}
