package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/contenthub/internal/middleware"
	"github.com/hitoshi/contenthub/internal/model"
)

// mockAuthService はAuthServiceInterfaceのテスト用モック。
type mockAuthService struct {
	loginFunc func(ctx context.Context, email, password string) (string, error)
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (string, error) {
	if m.loginFunc != nil {
		return m.loginFunc(ctx, email, password)
	}
	return "", model.NewInvalidCredentialsError()
}

// authedRequest は認証済みユーザーをコンテキストに注入したリクエストを返す。
func authedRequest(method, target string, body string, user *model.User) *http.Request {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	return req.WithContext(middleware.ContextWithUser(req.Context(), user))
}

var (
	adminUser  = &model.User{ID: "admin-1", Email: "agency@example.com", Name: "代理店 太郎", Role: model.UserRoleAdmin, IsActive: true}
	clientUser = &model.User{ID: "client-1", Email: "client@example.com", Name: "顧客 花子", Role: model.UserRoleClient, IsActive: true}
)

func decodeErrorResponse(t *testing.T, w *httptest.ResponseRecorder) apiErrorResponse {
	t.Helper()
	var body apiErrorResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
		t.Fatalf("エラーレスポンスのデコードに失敗: %v", err)
	}
	return body
}

func TestAuthHandler_Login_Success(t *testing.T) {
	service := &mockAuthService{
		loginFunc: func(ctx context.Context, email, password string) (string, error) {
			if email == "client@example.com" && password == "secret" {
				return "signed-token", nil
			}
			return "", model.NewInvalidCredentialsError()
		},
	}
	h := NewAuthHandler(service)

	req := httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"email":"client@example.com","password":"secret"}`))
	w := httptest.NewRecorder()

	h.Login(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}

	var body loginResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	if body.Token != "signed-token" {
		t.Errorf("token = %q, want signed-token", body.Token)
	}
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{})

	req := httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"email":"client@example.com","password":"wrong"}`))
	w := httptest.NewRecorder()

	h.Login(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
	if body := decodeErrorResponse(t, w); body.Code != model.ErrCodeInvalidCredentials {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeInvalidCredentials)
	}
}

func TestAuthHandler_Login_EmptyFields(t *testing.T) {
	var called bool
	service := &mockAuthService{
		loginFunc: func(ctx context.Context, email, password string) (string, error) {
			called = true
			return "", nil
		},
	}
	h := NewAuthHandler(service)

	req := httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"email":"","password":""}`))
	w := httptest.NewRecorder()

	h.Login(w, req)

	if called {
		t.Error("空の認証情報ではサービスを呼ばないべき")
	}
	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestAuthHandler_Login_MalformedJSON(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{})

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{not json`))
	w := httptest.NewRecorder()

	h.Login(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestAuthHandler_Me(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{})

	req := authedRequest(http.MethodGet, "/auth/me", "", clientUser)
	w := httptest.NewRecorder()

	h.Me(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}

	var body userResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	if body.ID != "client-1" || body.Role != "client" {
		t.Errorf("body = %+v, クライアントユーザーの情報を返すべき", body)
	}
}

func TestAuthHandler_Me_Unauthenticated(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{})

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	w := httptest.NewRecorder()

	h.Me(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestMapAPIErrorToHTTPStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{model.ErrCodeUnauthorized, http.StatusUnauthorized},
		{model.ErrCodeInvalidCredentials, http.StatusUnauthorized},
		{model.ErrCodeForbidden, http.StatusForbidden},
		{model.ErrCodeUserNotFound, http.StatusNotFound},
		{model.ErrCodeContentNotFound, http.StatusNotFound},
		{model.ErrCodePostNotFound, http.StatusNotFound},
		{model.ErrCodeInvalidTransition, http.StatusConflict},
		{model.ErrCodePostNotPending, http.StatusConflict},
		{model.ErrCodeCommentRequired, http.StatusBadRequest},
		{model.ErrCodeScheduleInPast, http.StatusBadRequest},
		{model.ErrCodeLinkedInNotConnected, http.StatusConflict},
		{model.ErrCodeLinkedInScopeMissing, http.StatusConflict},
		{"UNKNOWN_CODE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		got := mapAPIErrorToHTTPStatus(&model.APIError{Code: tt.code})
		if got != tt.want {
			t.Errorf("mapAPIErrorToHTTPStatus(%s) = %d, want %d", tt.code, got, tt.want)
		}
	}
}
