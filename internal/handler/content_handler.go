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

// ContentServiceInterface はコンテンツハンドラーが必要とするサービスインターフェース。
type ContentServiceInterface interface {
	CreateDraft(ctx context.Context, actor *model.User, ownerUserID, title, body string) (*model.Content, error)
	Get(ctx context.Context, actor *model.User, contentID string) (*model.Content, error)
	List(ctx context.Context, actor *model.User) ([]*model.Content, error)
	UpdateDraft(ctx context.Context, actor *model.User, contentID, title, body string) (*model.Content, error)
	Submit(ctx context.Context, actor *model.User, contentID string) (*model.Content, error)
	Approve(ctx context.Context, actor *model.User, contentID string) (*model.Content, error)
	RequestRevision(ctx context.Context, actor *model.User, contentID, comment string) (*model.Content, error)
	Schedule(ctx context.Context, actor *model.User, contentID string, scheduledAt time.Time) (*model.Content, *model.ScheduledPost, error)
	PostNow(ctx context.Context, actor *model.User, contentID string) (*model.ScheduledPost, error)
	MarkPublished(ctx context.Context, actor *model.User, contentID string) (*model.Content, error)
}

// ContentHandler はコンテンツ承認ワークフローのHTTPハンドラー。
type ContentHandler struct {
	service ContentServiceInterface
}

// NewContentHandler はContentHandlerを生成する。
func NewContentHandler(service ContentServiceInterface) *ContentHandler {
	return &ContentHandler{service: service}
}

// createContentRequest はコンテンツ作成リクエストのボディ。
type createContentRequest struct {
	OwnerUserID string `json:"owner_user_id"`
	Title       string `json:"title"`
	Body        string `json:"body"`
}

// updateContentRequest はコンテンツ更新リクエストのボディ。
type updateContentRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// requestRevisionRequest は修正依頼リクエストのボディ。
type requestRevisionRequest struct {
	Comment string `json:"comment"`
}

// scheduleContentRequest は予約公開リクエストのボディ。
type scheduleContentRequest struct {
	ScheduledAt time.Time `json:"scheduled_at"`
}

// contentResponse はコンテンツのAPIレスポンス。
type contentResponse struct {
	ID            string     `json:"id"`
	OwnerUserID   string     `json:"owner_user_id"`
	Title         string     `json:"title"`
	Body          string     `json:"body"`
	Status        string     `json:"status"`
	ReviewComment string     `json:"review_comment,omitempty"`
	ScheduledAt   *time.Time `json:"scheduled_at,omitempty"`
	PublishedAt   *time.Time `json:"published_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// scheduleContentResponse は予約公開成功時のレスポンス。
// 遷移後のコンテンツと作成された予約投稿の両方を返す。
type scheduleContentResponse struct {
	Content contentResponse `json:"content"`
	Post    postResponse    `json:"post"`
}

// Create はコンテンツ下書きの作成を処理する。
// POST /api/contents
func (h *ContentHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req createContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestError())
		return
	}

	content, err := h.service.CreateDraft(r.Context(), actor, req.OwnerUserID, req.Title, req.Body)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toContentResponse(content))
}

// List はコンテンツ一覧を返す。代理店は全件、クライアントは自分のコンテンツのみ。
// GET /api/contents
func (h *ContentHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	contents, err := h.service.List(r.Context(), actor)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]contentResponse, len(contents))
	for i, c := range contents {
		results[i] = toContentResponse(c)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(results)
}

// Get はコンテンツ詳細を取得する。
// GET /api/contents/{id}
func (h *ContentHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	content, err := h.service.Get(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toContentResponse(content))
}

// Update は下書き・修正依頼中コンテンツの本文更新を処理する。
// PATCH /api/contents/{id}
func (h *ContentHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req updateContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestError())
		return
	}

	content, err := h.service.UpdateDraft(r.Context(), actor, chi.URLParam(r, "id"), req.Title, req.Body)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toContentResponse(content))
}

// Submit はコンテンツの承認依頼を処理する。
// POST /api/contents/{id}/submit
func (h *ContentHandler) Submit(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Submit)
}

// Approve はコンテンツの承認を処理する。
// POST /api/contents/{id}/approve
func (h *ContentHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Approve)
}

// MarkPublished は手動公開済みマークを処理する。
// POST /api/contents/{id}/mark-published
func (h *ContentHandler) MarkPublished(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.MarkPublished)
}

// RequestRevision はコンテンツの修正依頼を処理する。コメント必須。
// POST /api/contents/{id}/request-revision
func (h *ContentHandler) RequestRevision(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req requestRevisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestError())
		return
	}

	content, err := h.service.RequestRevision(r.Context(), actor, chi.URLParam(r, "id"), req.Comment)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toContentResponse(content))
}

// Schedule は承認済みコンテンツの予約公開を処理する。
// POST /api/contents/{id}/schedule
func (h *ContentHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req scheduleContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestError())
		return
	}

	content, post, err := h.service.Schedule(r.Context(), actor, chi.URLParam(r, "id"), req.ScheduledAt)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(scheduleContentResponse{
		Content: toContentResponse(content),
		Post:    toPostResponse(post),
	})
}

// PostNow は承認済みコンテンツの即時公開を処理する。
// POST /api/contents/{id}/post-now
func (h *ContentHandler) PostNow(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	post, err := h.service.PostNow(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toPostResponse(post))
}

// transition はボディを取らない状態遷移操作の共通処理。
func (h *ContentHandler) transition(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, actor *model.User, contentID string) (*model.Content, error)) {
	actor, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	content, err := op(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toContentResponse(content))
}

// toContentResponse はmodel.ContentからAPIレスポンスに変換する。
func toContentResponse(content *model.Content) contentResponse {
	return contentResponse{
		ID:            content.ID,
		OwnerUserID:   content.OwnerUserID,
		Title:         content.Title,
		Body:          content.Body,
		Status:        string(content.Status),
		ReviewComment: content.ReviewComment,
		ScheduledAt:   content.ScheduledAt,
		PublishedAt:   content.PublishedAt,
		CreatedAt:     content.CreatedAt,
		UpdatedAt:     content.UpdatedAt,
	}
}
