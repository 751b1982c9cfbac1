package repository

import (
	"context"
	"errors"
	"time"

	"github.com/user/curtas/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CommentRepository struct {
	db *gorm.DB
}

func NewCommentRepository(db *gorm.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

// Create 写入评论并同步分集评论数，回复同时累加父评论的回复数
func (r *CommentRepository) Create(ctx context.Context, c *model.Comment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(c).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.Episode{}).Where("id = ?", c.EpisodeID).
			UpdateColumn("comments_count", gorm.Expr("comments_count + 1")).Error; err != nil {
			return err
		}
		if c.ParentID == nil {
			return nil
		}
		return tx.Model(&model.Comment{}).Where("id = ?", *c.ParentID).
			UpdateColumn("replies_count", gorm.Expr("replies_count + 1")).Error
	})
}

// FindByID 不存在返回 ErrNotFound
func (r *CommentRepository) FindByID(ctx context.Context, id int) (*model.Comment, error) {
	var c model.Comment
	if err := r.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// ListByEpisode 顶层评论，置顶在前，隐藏的不返回
func (r *CommentRepository) ListByEpisode(ctx context.Context, episodeID int, sort model.CommentSort, limit, offset int) ([]*model.Comment, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Comment{}).
		Where("episode_id = ? AND parent_id IS NULL AND is_hidden = ?", episodeID, false).
		Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := q.Order("is_pinned DESC")
	switch sort {
	case model.CommentOldest:
		order = order.Order("created_at ASC")
	case model.CommentPopular:
		order = order.Order("likes_count DESC").Order("created_at DESC")
	default:
		order = order.Order("created_at DESC")
	}

	var list []*model.Comment
	err := order.Order("id ASC").Limit(limit).Offset(offset).Find(&list).Error
	return list, total, err
}

// ListReplies 某条评论的回复，按时间正序
func (r *CommentRepository) ListReplies(ctx context.Context, parentID, limit, offset int) ([]*model.Comment, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Comment{}).
		Where("parent_id = ? AND is_hidden = ?", parentID, false).
		Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []*model.Comment
	err := q.Order("created_at ASC").Order("id ASC").Limit(limit).Offset(offset).Find(&list).Error
	return list, total, err
}

// UpdateContent 修改内容
func (r *CommentRepository) UpdateContent(ctx context.Context, id int, content string) (*model.Comment, error) {
	res := r.db.WithContext(ctx).Model(&model.Comment{}).Where("id = ?", id).
		Updates(map[string]interface{}{"content": content, "updated_at": time.Now()})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.FindByID(ctx, id)
}

// Delete 删除评论及其回复，分集评论数减去删除的条数，父评论回复数减一。返回删除条数
func (r *CommentRepository) Delete(ctx context.Context, id int) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c model.Comment
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&c, id).Error; err != nil {
			return notFound(err)
		}

		replies := tx.Where("parent_id = ?", id).Delete(&model.Comment{})
		if replies.Error != nil {
			return replies.Error
		}
		if err := tx.Delete(&model.Comment{}, id).Error; err != nil {
			return err
		}
		deleted = 1 + replies.RowsAffected

		if err := tx.Model(&model.Episode{}).Where("id = ?", c.EpisodeID).
			UpdateColumn("comments_count", gorm.Expr("GREATEST(comments_count - ?, 0)", deleted)).Error; err != nil {
			return err
		}
		if c.ParentID == nil {
			return nil
		}
		return tx.Model(&model.Comment{}).Where("id = ?", *c.ParentID).
			UpdateColumn("replies_count", gorm.Expr("GREATEST(replies_count - 1, 0)")).Error
	})
	return deleted, err
}

// ToggleLike 切换点赞并同步点赞数，返回切换后是否为已赞
func (r *CommentRepository) ToggleLike(ctx context.Context, userID, commentID int) (bool, error) {
	liked := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var like model.CommentLike
		err := tx.Where("user_id = ? AND comment_id = ?", userID, commentID).First(&like).Error
		switch {
		case err == nil:
			if err := tx.Delete(&like).Error; err != nil {
				return err
			}
			return tx.Model(&model.Comment{}).Where("id = ?", commentID).
				UpdateColumn("likes_count", gorm.Expr("GREATEST(likes_count - 1, 0)")).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			like = model.CommentLike{UserID: userID, CommentID: commentID, CreatedAt: time.Now()}
			if err := tx.Create(&like).Error; err != nil {
				return err
			}
			liked = true
			return tx.Model(&model.Comment{}).Where("id = ?", commentID).
				UpdateColumn("likes_count", gorm.Expr("likes_count + 1")).Error
		default:
			return err
		}
	})
	return liked, err
}

// LikedIDs 给定评论中该用户已赞的 ID
func (r *CommentRepository) LikedIDs(ctx context.Context, userID int, commentIDs []int) ([]int, error) {
	if userID <= 0 || len(commentIDs) == 0 {
		return nil, nil
	}
	var ids []int
	err := r.db.WithContext(ctx).Model(&model.CommentLike{}).
		Where("user_id = ? AND comment_id IN ?", userID, commentIDs).
		Pluck("comment_id", &ids).Error
	return ids, err
}

// SetPinned 置顶或取消置顶
func (r *CommentRepository) SetPinned(ctx context.Context, id int, pinned bool) (*model.Comment, error) {
	return r.setFlag(ctx, id, "is_pinned", pinned)
}

// Hide 隐藏评论，计数不变
func (r *CommentRepository) Hide(ctx context.Context, id int) (*model.Comment, error) {
	return r.setFlag(ctx, id, "is_hidden", true)
}

func (r *CommentRepository) setFlag(ctx context.Context, id int, column string, value bool) (*model.Comment, error) {
	res := r.db.WithContext(ctx).Model(&model.Comment{}).Where("id = ?", id).
		Updates(map[string]interface{}{column: value, "updated_at": time.Now()})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.FindByID(ctx, id)
}
