package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/contenthub/internal/middleware"
	"github.com/hitoshi/contenthub/internal/model"
)

// PublisherRunner は公開サイクルの手動実行インターフェース。
// worker/publish.Schedulerの部分集合として定義する。
type PublisherRunner interface {
	RunOnce(ctx context.Context) error
}

// AdminHandler は管理者向け操作のHTTPハンドラー。
type AdminHandler struct {
	runner PublisherRunner
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(runner PublisherRunner) *AdminHandler {
	return &AdminHandler{runner: runner}
}

// RunPublisher は公開サイクルを即時実行する。デバッグ・運用向け。
// POST /api/admin/publisher/run
func (h *AdminHandler) RunPublisher(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	if !user.IsAdmin() {
		writeAPIErrorResponse(w, http.StatusForbidden,
			model.NewForbiddenError("公開サイクルの手動実行は代理店ユーザーのみ可能です"))
		return
	}

	if err := h.runner.RunOnce(r.Context()); err != nil {
		slog.Error("公開サイクルの手動実行に失敗しました",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "completed"})
}
