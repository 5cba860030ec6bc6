package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/contenthub/internal/connect"
	"github.com/hitoshi/contenthub/internal/model"
)

// mockConnectService はConnectServiceInterfaceのテスト用モック。
type mockConnectService struct {
	startFunc          func(ctx context.Context, userID string) (string, error)
	handleCallbackFunc func(ctx context.Context, state, code string) (string, error)
	disconnectFunc     func(ctx context.Context, userID string) error
	getStatusFunc      func(ctx context.Context, userID string) (*connect.Status, error)
}

func (m *mockConnectService) Start(ctx context.Context, userID string) (string, error) {
	return m.startFunc(ctx, userID)
}

func (m *mockConnectService) HandleCallback(ctx context.Context, state, code string) (string, error) {
	return m.handleCallbackFunc(ctx, state, code)
}

func (m *mockConnectService) Disconnect(ctx context.Context, userID string) error {
	return m.disconnectFunc(ctx, userID)
}

func (m *mockConnectService) GetStatus(ctx context.Context, userID string) (*connect.Status, error) {
	return m.getStatusFunc(ctx, userID)
}

var testConnectConfig = ConnectHandlerConfig{FrontendURL: "http://localhost:3000"}

func TestConnectHandler_Connect_RedirectsToAuthorizationURL(t *testing.T) {
	service := &mockConnectService{
		startFunc: func(ctx context.Context, userID string) (string, error) {
			if userID != "client-1" {
				t.Errorf("userID = %q, want client-1", userID)
			}
			return "https://www.linkedin.com/oauth/v2/authorization?state=abc", nil
		},
	}
	h := NewConnectHandler(service, testConnectConfig)

	req := authedRequest(http.MethodGet, "/api/linkedin/connect", "", clientUser)
	w := httptest.NewRecorder()

	h.Connect(w, req)

	if w.Result().StatusCode != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusTemporaryRedirect)
	}
	location := w.Result().Header.Get("Location")
	if !strings.HasPrefix(location, "https://www.linkedin.com/oauth/v2/authorization") {
		t.Errorf("Location = %q, LinkedInの認可URLへリダイレクトすべき", location)
	}
}

func TestConnectHandler_Callback_Success(t *testing.T) {
	service := &mockConnectService{
		handleCallbackFunc: func(ctx context.Context, state, code string) (string, error) {
			if state != "state-123" || code != "code-456" {
				t.Errorf("state = %q, code = %q", state, code)
			}
			return "client-1", nil
		},
	}
	h := NewConnectHandler(service, testConnectConfig)

	req := httptest.NewRequest(http.MethodGet, "/auth/linkedin/callback?state=state-123&code=code-456", nil)
	w := httptest.NewRecorder()

	h.Callback(w, req)

	if w.Result().StatusCode != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusTemporaryRedirect)
	}
	location := w.Result().Header.Get("Location")
	if !strings.Contains(location, "result=connected") {
		t.Errorf("Location = %q, result=connected でフロントエンドに戻すべき", location)
	}
}

func TestConnectHandler_Callback_InvalidState(t *testing.T) {
	service := &mockConnectService{
		handleCallbackFunc: func(ctx context.Context, state, code string) (string, error) {
			return "", model.NewForbiddenError("OAuth stateが無効または期限切れです")
		},
	}
	h := NewConnectHandler(service, testConnectConfig)

	req := httptest.NewRequest(http.MethodGet, "/auth/linkedin/callback?state=bad&code=code-456", nil)
	w := httptest.NewRecorder()

	h.Callback(w, req)

	// サービス側の失敗はエラー結果付きでフロントエンドに戻す
	location := w.Result().Header.Get("Location")
	if !strings.Contains(location, "result=error") {
		t.Errorf("Location = %q, result=error でフロントエンドに戻すべき", location)
	}
}

func TestConnectHandler_Callback_MissingParams(t *testing.T) {
	h := NewConnectHandler(&mockConnectService{}, testConnectConfig)

	req := httptest.NewRequest(http.MethodGet, "/auth/linkedin/callback", nil)
	w := httptest.NewRecorder()

	h.Callback(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestConnectHandler_Callback_UserDenied(t *testing.T) {
	var called bool
	service := &mockConnectService{
		handleCallbackFunc: func(ctx context.Context, state, code string) (string, error) {
			called = true
			return "", nil
		},
	}
	h := NewConnectHandler(service, testConnectConfig)

	req := httptest.NewRequest(http.MethodGet,
		"/auth/linkedin/callback?error=user_cancelled_authorize&state=abc", nil)
	w := httptest.NewRecorder()

	h.Callback(w, req)

	if called {
		t.Error("認可拒否時はサービスを呼ばないべき")
	}
	location := w.Result().Header.Get("Location")
	if !strings.Contains(location, "result=denied") {
		t.Errorf("Location = %q, result=denied でフロントエンドに戻すべき", location)
	}
}

func TestConnectHandler_Disconnect(t *testing.T) {
	var gotUserID string
	service := &mockConnectService{
		disconnectFunc: func(ctx context.Context, userID string) error {
			gotUserID = userID
			return nil
		},
	}
	h := NewConnectHandler(service, testConnectConfig)

	req := authedRequest(http.MethodDelete, "/api/linkedin/connection", "", clientUser)
	w := httptest.NewRecorder()

	h.Disconnect(w, req)

	if w.Result().StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNoContent)
	}
	if gotUserID != "client-1" {
		t.Errorf("userID = %q, want client-1", gotUserID)
	}
}

func TestConnectHandler_Status_Connected(t *testing.T) {
	expiresAt := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	service := &mockConnectService{
		getStatusFunc: func(ctx context.Context, userID string) (*connect.Status, error) {
			return &connect.Status{
				Connected:        true,
				LinkedInMemberID: "member-abc",
				ExpiresAt:        &expiresAt,
				Scopes:           "openid profile email w_member_social",
			}, nil
		},
	}
	h := NewConnectHandler(service, testConnectConfig)

	req := authedRequest(http.MethodGet, "/api/linkedin/status", "", clientUser)
	w := httptest.NewRecorder()

	h.Status(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}

	var body connectStatusResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	if !body.Connected || body.LinkedInMemberID != "member-abc" {
		t.Errorf("body = %+v, 連携済み状態を返すべき", body)
	}
}

func TestConnectHandler_Status_NotConnected(t *testing.T) {
	service := &mockConnectService{
		getStatusFunc: func(ctx context.Context, userID string) (*connect.Status, error) {
			return &connect.Status{Connected: false}, nil
		},
	}
	h := NewConnectHandler(service, testConnectConfig)

	req := authedRequest(http.MethodGet, "/api/linkedin/status", "", clientUser)
	w := httptest.NewRecorder()

	h.Status(w, req)

	var body connectStatusResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	if body.Connected {
		t.Error("未連携ユーザーはconnected=falseを返すべき")
	}
}
