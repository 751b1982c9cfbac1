package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/user/curtas/internal/middleware"
	"github.com/user/curtas/internal/model"
	"github.com/user/curtas/internal/repository"
	"github.com/user/curtas/internal/service"
)

const commentTestSecret = "comment-secret"

type memEpisodes map[int]*model.Episode

func (m memEpisodes) FindByID(_ context.Context, id int) (*model.Episode, error) {
	if ep, ok := m[id]; ok {
		return ep, nil
	}
	return nil, repository.ErrNotFound
}

type memCommentStore struct {
	mu       sync.Mutex
	comments map[int]*model.Comment
	likes    map[[2]int]bool
	episodes memEpisodes
}

func (m *memCommentStore) Create(_ context.Context, c *model.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = len(m.comments) + 1
	m.comments[c.ID] = c
	m.episodes[c.EpisodeID].CommentsCount++
	return nil
}

func (m *memCommentStore) FindByID(_ context.Context, id int) (*model.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.comments[id]; ok {
		return c, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memCommentStore) ListByEpisode(_ context.Context, episodeID int, _ model.CommentSort, _, _ int) ([]*model.Comment, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Comment, 0)
	for id := 1; id <= len(m.comments)+1; id++ {
		if c, ok := m.comments[id]; ok && c.EpisodeID == episodeID && c.ParentID == nil {
			out = append(out, c)
		}
	}
	return out, int64(len(out)), nil
}

func (m *memCommentStore) ListReplies(context.Context, int, int, int) ([]*model.Comment, int64, error) {
	return nil, 0, nil
}

func (m *memCommentStore) UpdateContent(_ context.Context, id int, content string) (*model.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.comments[id].Content = content
	return m.comments[id], nil
}

func (m *memCommentStore) Delete(_ context.Context, id int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.comments[id]
	delete(m.comments, id)
	m.episodes[c.EpisodeID].CommentsCount--
	return 1, nil
}

func (m *memCommentStore) ToggleLike(_ context.Context, userID, commentID int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := [2]int{userID, commentID}
	m.likes[key] = !m.likes[key]
	return m.likes[key], nil
}

func (m *memCommentStore) LikedIDs(_ context.Context, userID int, ids []int) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, 0)
	for _, id := range ids {
		if m.likes[[2]int{userID, id}] {
			out = append(out, id)
		}
	}
	return out, nil
}

func (m *memCommentStore) SetPinned(_ context.Context, id int, pinned bool) (*model.Comment, error) {
	c, err := m.FindByID(context.Background(), id)
	if err != nil {
		return nil, err
	}
	c.IsPinned = pinned
	return c, nil
}

func (m *memCommentStore) Hide(_ context.Context, id int) (*model.Comment, error) {
	c, err := m.FindByID(context.Background(), id)
	if err != nil {
		return nil, err
	}
	c.IsHidden = true
	return c, nil
}

func newCommentTestRouter() (*gin.Engine, memEpisodes) {
	episodes := memEpisodes{3: {ID: 3, Title: "Episodio 3"}}
	store := &memCommentStore{
		comments: map[int]*model.Comment{},
		likes:    map[[2]int]bool{},
		episodes: episodes,
	}
	h := &Handler{Comments: service.NewCommentService(store, episodes)}

	r := gin.New()
	r.GET("/api/episodes/:id/comments", middleware.OptionalAuth(commentTestSecret), h.EpisodeComments)
	private := r.Group("/api/comments", middleware.RequireAuth(commentTestSecret))
	private.POST("", h.CreateComment)
	private.PUT("/:id", h.UpdateComment)
	private.DELETE("/:id", h.DeleteComment)
	private.POST("/:id/like", h.ToggleCommentLike)
	private.POST("/:id/pin", middleware.RequireAdmin(), h.PinComment)
	return r, episodes
}

func commentRequest(t *testing.T, r http.Handler, method, path, body string, userID int, role string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID > 0 {
		token, err := middleware.GenerateToken(userID, "u@curtas.app", role, commentTestSecret, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateCommentUpdatesEpisodeCount(t *testing.T) {
	r, episodes := newCommentTestRouter()

	w := commentRequest(t, r, http.MethodPost, "/api/comments", `{"episodeId":3,"content":"adorei"}`, 1, "user")
	require.Equal(t, http.StatusCreated, w.Code)
	res := decodeResponse(t, w)
	require.Equal(t, "Comentario enviado com sucesso", res.Message)
	require.Equal(t, int64(1), episodes[3].CommentsCount)

	w = commentRequest(t, r, http.MethodPost, "/api/comments", `{"episodeId":3,"content":"eu tambem","parentId":1}`, 2, "user")
	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, "Resposta enviada com sucesso", decodeResponse(t, w).Message)
	require.Equal(t, int64(2), episodes[3].CommentsCount)

	w = commentRequest(t, r, http.MethodGet, "/api/episodes/3/comments", "", 0, "")
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeResponse(t, w).Data.(map[string]interface{})
	require.EqualValues(t, 1, data["total"])
}

func TestCreateCommentErrors(t *testing.T) {
	r, episodes := newCommentTestRouter()

	w := commentRequest(t, r, http.MethodPost, "/api/comments", `{"episodeId":3,"content":"oi"}`, 0, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = commentRequest(t, r, http.MethodPost, "/api/comments", `{"episodeId":3,"content":"   "}`, 1, "user")
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = commentRequest(t, r, http.MethodPost, "/api/comments", `{"episodeId":99,"content":"oi"}`, 1, "user")
	require.Equal(t, http.StatusNotFound, w.Code)

	w = commentRequest(t, r, http.MethodPost, "/api/comments", `{"episodeId":3,"content":"oi","parentId":50}`, 1, "user")
	require.Equal(t, http.StatusBadRequest, w.Code)

	require.Zero(t, episodes[3].CommentsCount)
}

func TestCommentOwnershipAndModeration(t *testing.T) {
	r, episodes := newCommentTestRouter()

	w := commentRequest(t, r, http.MethodPost, "/api/comments", `{"episodeId":3,"content":"original"}`, 1, "user")
	require.Equal(t, http.StatusCreated, w.Code)

	w = commentRequest(t, r, http.MethodPut, "/api/comments/1", `{"content":"hackeado"}`, 2, "user")
	require.Equal(t, http.StatusForbidden, w.Code)

	w = commentRequest(t, r, http.MethodPut, "/api/comments/1", `{"content":"editado"}`, 1, "user")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "Comentario atualizado com sucesso", decodeResponse(t, w).Message)

	w = commentRequest(t, r, http.MethodPost, "/api/comments/1/like", "", 2, "user")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, true, decodeResponse(t, w).Data.(map[string]interface{})["isLiked"])

	w = commentRequest(t, r, http.MethodPost, "/api/comments/1/pin", "", 2, "user")
	require.Equal(t, http.StatusForbidden, w.Code)

	w = commentRequest(t, r, http.MethodPost, "/api/comments/1/pin", "", 9, middleware.RoleAdmin)
	require.Equal(t, http.StatusOK, w.Code)

	w = commentRequest(t, r, http.MethodDelete, "/api/comments/1", "", 2, "user")
	require.Equal(t, http.StatusForbidden, w.Code)

	w = commentRequest(t, r, http.MethodDelete, "/api/comments/1", "", 9, middleware.RoleAdmin)
	require.Equal(t, http.StatusOK, w.Code)
	require.Zero(t, episodes[3].CommentsCount)

	w = commentRequest(t, r, http.MethodDelete, "/api/comments/1", "", 1, "user")
	require.Equal(t, http.StatusNotFound, w.Code)
}
