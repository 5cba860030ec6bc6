package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/contenthub/internal/middleware"
	"github.com/hitoshi/contenthub/internal/model"
)

// PostServiceInterface は予約投稿ハンドラーが必要とするサービスインターフェース。
type PostServiceInterface interface {
	Schedule(ctx context.Context, actor *model.User, message string, mediaAssets []string, scheduledAt time.Time) (*model.ScheduledPost, error)
	List(ctx context.Context, actor *model.User) ([]*model.ScheduledPost, error)
	Get(ctx context.Context, actor *model.User, postID string) (*model.ScheduledPost, error)
	Delete(ctx context.Context, actor *model.User, postID string) error
}

// PostHandler は予約投稿のHTTPハンドラー。
type PostHandler struct {
	service PostServiceInterface
}

// NewPostHandler はPostHandlerを生成する。
func NewPostHandler(service PostServiceInterface) *PostHandler {
	return &PostHandler{service: service}
}

// createPostRequest は予約投稿作成リクエストのボディ。
// scheduled_atを省略すると即時公開対象として現在時刻で予約される。
type createPostRequest struct {
	Message     string    `json:"message"`
	MediaAssets []string  `json:"media_assets,omitempty"`
	ScheduledAt time.Time `json:"scheduled_at,omitempty"`
}

// postResponse は予約投稿のAPIレスポンス。
type postResponse struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	ContentID      string    `json:"content_id,omitempty"`
	Message        string    `json:"message"`
	MediaAssets    []string  `json:"media_assets,omitempty"`
	ScheduledAt    time.Time `json:"scheduled_at"`
	Status         string    `json:"status"`
	ExternalPostID string    `json:"external_post_id,omitempty"`
	LastError      string    `json:"last_error,omitempty"`
	RetryCount     int       `json:"retry_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Create は予約投稿の作成を処理する。
// POST /api/posts
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req createPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestError())
		return
	}

	if req.Message == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "本文（message）は必須です。",
			Category: "validation",
			Action:   "投稿する本文を入力してください。",
		})
		return
	}

	post, err := h.service.Schedule(r.Context(), actor, req.Message, req.MediaAssets, req.ScheduledAt)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toPostResponse(post))
}

// List は自分の予約投稿一覧を返す。
// GET /api/posts
func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	posts, err := h.service.List(r.Context(), actor)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]postResponse, len(posts))
	for i, p := range posts {
		results[i] = toPostResponse(p)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(results)
}

// Get は予約投稿の詳細を返す。
// GET /api/posts/{id}
func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	post, err := h.service.Get(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toPostResponse(post))
}

// Delete はpending状態の予約投稿の取り消しを処理する。
// DELETE /api/posts/{id}
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	if err := h.service.Delete(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// toPostResponse はmodel.ScheduledPostからAPIレスポンスに変換する。
func toPostResponse(post *model.ScheduledPost) postResponse {
	return postResponse{
		ID:             post.ID,
		UserID:         post.UserID,
		ContentID:      post.ContentID,
		Message:        post.Message,
		MediaAssets:    post.MediaAssets,
		ScheduledAt:    post.ScheduledAt,
		Status:         string(post.Status),
		ExternalPostID: post.ExternalPostID,
		LastError:      post.LastError,
		RetryCount:     post.RetryCount,
		CreatedAt:      post.CreatedAt,
		UpdatedAt:      post.UpdatedAt,
	}
}
