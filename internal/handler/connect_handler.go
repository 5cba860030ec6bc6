package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/hitoshi/contenthub/internal/connect"
	"github.com/hitoshi/contenthub/internal/middleware"
	"github.com/hitoshi/contenthub/internal/model"
)

// ConnectServiceInterface はLinkedIn連携ハンドラーが必要とするサービスインターフェース。
type ConnectServiceInterface interface {
	// Start は連携フローを開始し、LinkedInの認可URLを返す。
	Start(ctx context.Context, userID string) (string, error)
	// HandleCallback は認可コールバックを処理し、連携したユーザーIDを返す。
	HandleCallback(ctx context.Context, state, code string) (string, error)
	// Disconnect は連携を解除する。冪等。
	Disconnect(ctx context.Context, userID string) error
	// GetStatus は連携状態を返す。トークンは含まない。
	GetStatus(ctx context.Context, userID string) (*connect.Status, error)
}

// ConnectHandlerConfig はLinkedIn連携ハンドラーの設定。
type ConnectHandlerConfig struct {
	// FrontendURL はコールバック完了後のリダイレクト先。
	FrontendURL string
}

// ConnectHandler はLinkedIn連携のHTTPハンドラー。
type ConnectHandler struct {
	service ConnectServiceInterface
	config  ConnectHandlerConfig
}

// NewConnectHandler はConnectHandlerを生成する。
func NewConnectHandler(service ConnectServiceInterface, config ConnectHandlerConfig) *ConnectHandler {
	return &ConnectHandler{
		service: service,
		config:  config,
	}
}

// connectStatusResponse は連携状態のAPIレスポンス。
type connectStatusResponse struct {
	Connected        bool       `json:"connected"`
	LinkedInMemberID string     `json:"linkedin_member_id,omitempty"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	Scopes           string     `json:"scopes,omitempty"`
}

// Connect はLinkedIn連携フローを開始し、認可URLへリダイレクトする。
// GET /api/linkedin/connect
func (h *ConnectHandler) Connect(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	authURL, err := h.service.Start(r.Context(), user.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
}

// Callback はLinkedInからの認可コールバックを処理する。
// state検証はサービス層のledgerで行うため、このルートは認証不要。
// GET /auth/linkedin/callback?code=xxx&state=yyy
func (h *ConnectHandler) Callback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")

	// ユーザーが認可を拒否した場合はerrorパラメータが付く
	if errCode := r.URL.Query().Get("error"); errCode != "" {
		slog.Warn("LinkedIn認可が拒否されました",
			slog.String("error", errCode),
		)
		h.redirectToFrontend(w, r, "denied")
		return
	}

	if state == "" || code == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "stateまたはcodeパラメータがありません。",
			Category: "validation",
			Action:   "連携フローを最初からやり直してください。",
		})
		return
	}

	userID, err := h.service.HandleCallback(r.Context(), state, code)
	if err != nil {
		slog.Error("LinkedIn連携コールバックの処理に失敗しました",
			slog.String("error", err.Error()),
		)
		h.redirectToFrontend(w, r, "error")
		return
	}

	slog.Info("LinkedIn連携が完了しました", slog.String("user_id", userID))
	h.redirectToFrontend(w, r, "connected")
}

// Disconnect はLinkedIn連携を解除する。
// DELETE /api/linkedin/connection
func (h *ConnectHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	if err := h.service.Disconnect(r.Context(), user.ID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Status はLinkedIn連携状態を返す。
// GET /api/linkedin/status
func (h *ConnectHandler) Status(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	status, err := h.service.GetStatus(r.Context(), user.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(connectStatusResponse{
		Connected:        status.Connected,
		LinkedInMemberID: status.LinkedInMemberID,
		ExpiresAt:        status.ExpiresAt,
		Scopes:           status.Scopes,
	})
}

// redirectToFrontend は連携結果をクエリパラメータに載せてフロントエンドに戻す。
func (h *ConnectHandler) redirectToFrontend(w http.ResponseWriter, r *http.Request, result string) {
	dest := h.config.FrontendURL + "/settings/linkedin?result=" + url.QueryEscape(result)
	http.Redirect(w, r, dest, http.StatusTemporaryRedirect)
}
