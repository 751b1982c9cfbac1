package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/user/curtas/internal/logging"
	"github.com/user/curtas/internal/metrics"
	"github.com/user/curtas/internal/model"
	"github.com/user/curtas/internal/repository"
)

// CommentStore 评论读写，由 repository.CommentRepository 实现；
// Create 与 Delete 必须在同一事务内维护分集评论数和父评论回复数
type CommentStore interface {
	Create(ctx context.Context, c *model.Comment) error
	FindByID(ctx context.Context, id int) (*model.Comment, error)
	ListByEpisode(ctx context.Context, episodeID int, sort model.CommentSort, limit, offset int) ([]*model.Comment, int64, error)
	ListReplies(ctx context.Context, parentID, limit, offset int) ([]*model.Comment, int64, error)
	UpdateContent(ctx context.Context, id int, content string) (*model.Comment, error)
	Delete(ctx context.Context, id int) (int64, error)
	ToggleLike(ctx context.Context, userID, commentID int) (bool, error)
	LikedIDs(ctx context.Context, userID int, commentIDs []int) ([]int, error)
	SetPinned(ctx context.Context, id int, pinned bool) (*model.Comment, error)
	Hide(ctx context.Context, id int) (*model.Comment, error)
}

// EpisodeFinder 校验分集存在
type EpisodeFinder interface {
	FindByID(ctx context.Context, id int) (*model.Episode, error)
}

// CommentService 评论
type CommentService struct {
	comments CommentStore
	episodes EpisodeFinder
	log      zerolog.Logger
}

// NewCommentService 创建评论服务
func NewCommentService(comments CommentStore, episodes EpisodeFinder) *CommentService {
	return &CommentService{
		comments: comments,
		episodes: episodes,
		log:      logging.With("comments"),
	}
}

// Create 发表评论或回复。回复一条回复时挂到它的顶层评论下
func (s *CommentService) Create(ctx context.Context, userID, episodeID int, parentID *int, raw string) (*model.Comment, error) {
	content, ok := model.NormalizeCommentContent(raw)
	if !ok {
		return nil, ErrInvalidComment
	}
	if _, err := s.episodes.FindByID(ctx, episodeID); err != nil {
		return nil, err
	}

	if parentID != nil {
		parent, err := s.comments.FindByID(ctx, *parentID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidParent
		}
		if err != nil {
			return nil, err
		}
		if parent.EpisodeID != episodeID || parent.IsHidden {
			return nil, ErrInvalidParent
		}
		root := parent.ID
		if parent.ParentID != nil {
			root = *parent.ParentID
		}
		parentID = &root
	}

	c := &model.Comment{
		EpisodeID: episodeID,
		UserID:    userID,
		ParentID:  parentID,
		Content:   content,
	}
	if err := s.comments.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}
	metrics.CommentsCreated.Inc()
	s.log.Debug().Int("episode_id", episodeID).Int("user_id", userID).Bool("reply", parentID != nil).Msg("评论已发表")
	return c, nil
}

// List 分集的顶层评论，viewerID > 0 时标记是否已赞
func (s *CommentService) List(ctx context.Context, episodeID, viewerID int, sort model.CommentSort, limit, offset int) ([]*model.Comment, int64, error) {
	list, total, err := s.comments.ListByEpisode(ctx, episodeID, sort, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list comments: %w", err)
	}
	return s.markLiked(ctx, viewerID, list), total, nil
}

// Replies 某条评论的回复
func (s *CommentService) Replies(ctx context.Context, parentID, viewerID, limit, offset int) ([]*model.Comment, int64, error) {
	if _, err := s.comments.FindByID(ctx, parentID); err != nil {
		return nil, 0, err
	}
	list, total, err := s.comments.ListReplies(ctx, parentID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list replies: %w", err)
	}
	return s.markLiked(ctx, viewerID, list), total, nil
}

// markLiked 查询失败时不影响列表，只是不标记
func (s *CommentService) markLiked(ctx context.Context, viewerID int, list []*model.Comment) []*model.Comment {
	if viewerID <= 0 || len(list) == 0 {
		return list
	}
	ids := make([]int, 0, len(list))
	for _, c := range list {
		ids = append(ids, c.ID)
	}
	liked, err := s.comments.LikedIDs(ctx, viewerID, ids)
	if err != nil {
		s.log.Warn().Err(err).Int("user_id", viewerID).Msg("读取评论点赞状态失败")
		return list
	}
	set := make(map[int]bool, len(liked))
	for _, id := range liked {
		set[id] = true
	}
	for _, c := range list {
		c.Liked = set[c.ID]
	}
	return list
}

// Update 只有作者可以修改
func (s *CommentService) Update(ctx context.Context, userID, id int, raw string) (*model.Comment, error) {
	existing, err := s.comments.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.UserID != userID {
		return nil, ErrNotCommentAuthor
	}
	content, ok := model.NormalizeCommentContent(raw)
	if !ok {
		return nil, ErrInvalidComment
	}
	return s.comments.UpdateContent(ctx, id, content)
}

// Delete 作者或管理员可删除，回复一并删除；返回删除条数
func (s *CommentService) Delete(ctx context.Context, userID int, isAdmin bool, id int) (int64, error) {
	existing, err := s.comments.FindByID(ctx, id)
	if err != nil {
		return 0, err
	}
	if existing.UserID != userID && !isAdmin {
		return 0, ErrNotCommentAuthor
	}
	return s.comments.Delete(ctx, id)
}

// ToggleLike 切换点赞
func (s *CommentService) ToggleLike(ctx context.Context, userID, id int) (bool, error) {
	if _, err := s.comments.FindByID(ctx, id); err != nil {
		return false, err
	}
	return s.comments.ToggleLike(ctx, userID, id)
}

// SetPinned 管理员置顶
func (s *CommentService) SetPinned(ctx context.Context, id int, pinned bool) (*model.Comment, error) {
	return s.comments.SetPinned(ctx, id, pinned)
}

// Hide 管理员隐藏
func (s *CommentService) Hide(ctx context.Context, id int) (*model.Comment, error) {
	return s.comments.Hide(ctx, id)
}
