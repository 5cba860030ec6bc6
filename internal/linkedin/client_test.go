package linkedin

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/contenthub/internal/logger"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c := NewClient(server.Client(), logger.Setup(io.Discard, "info"))
	c.baseURL = server.URL
	return c
}

func TestPublish_Success_ReturnsIDFromHeader(t *testing.T) {
	var gotAuth, gotProto string
	var gotBody map[string]any

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v2/ugcPosts" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		gotProto = r.Header.Get("X-Restli-Protocol-Version")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		w.Header().Set("X-RestLi-Id", "urn:li:share:6789")
		w.WriteHeader(http.StatusCreated)
	})

	id, err := c.Publish(context.Background(), "token-123", "member-abc", "テスト投稿です", nil)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if id != "urn:li:share:6789" {
		t.Errorf("id = %q, want %q", id, "urn:li:share:6789")
	}
	if gotAuth != "Bearer token-123" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer token-123")
	}
	if gotProto != "2.0.0" {
		t.Errorf("X-Restli-Protocol-Version = %q, want %q", gotProto, "2.0.0")
	}
	if gotBody["author"] != "urn:li:person:member-abc" {
		t.Errorf("author = %v, want urn:li:person:member-abc", gotBody["author"])
	}
	if gotBody["lifecycleState"] != "PUBLISHED" {
		t.Errorf("lifecycleState = %v, want PUBLISHED", gotBody["lifecycleState"])
	}
}

func TestPublish_Success_FallsBackToBodyID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"id": "urn:li:share:999"})
	})

	id, err := c.Publish(context.Background(), "token", "member", "message", nil)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if id != "urn:li:share:999" {
		t.Errorf("id = %q, want %q", id, "urn:li:share:999")
	}
}

func TestPublish_WithMediaAssets_SendsArticleCategory(t *testing.T) {
	var gotBody struct {
		SpecificContent map[string]struct {
			ShareMediaCategory string `json:"shareMediaCategory"`
			Media              []struct {
				OriginalURL string `json:"originalUrl"`
			} `json:"media"`
		} `json:"specificContent"`
	}

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		w.Header().Set("X-RestLi-Id", "urn:li:share:1")
		w.WriteHeader(http.StatusCreated)
	})

	_, err := c.Publish(context.Background(), "token", "member", "message",
		[]string{"https://example.com/article"})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}

	detail := gotBody.SpecificContent["com.linkedin.ugc.ShareContent"]
	if detail.ShareMediaCategory != "ARTICLE" {
		t.Errorf("shareMediaCategory = %q, want ARTICLE", detail.ShareMediaCategory)
	}
	if len(detail.Media) != 1 || detail.Media[0].OriginalURL != "https://example.com/article" {
		t.Errorf("media = %+v, want one entry for https://example.com/article", detail.Media)
	}
}

func TestPublish_ErrorStatus_ReturnsPublishError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"message":"Invalid access token"}`)
	})

	_, err := c.Publish(context.Background(), "bad-token", "member", "message", nil)
	var pubErr *PublishError
	if !errors.As(err, &pubErr) {
		t.Fatalf("expected *PublishError, got %T: %v", err, err)
	}
	if pubErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want %d", pubErr.StatusCode, http.StatusUnauthorized)
	}
	if pubErr.Body == "" {
		t.Error("expected non-empty error body")
	}
}

func TestPublish_MissingPostID_ReturnsError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{}`)
	})

	_, err := c.Publish(context.Background(), "token", "member", "message", nil)
	if err == nil {
		t.Fatal("expected error when post ID is missing")
	}
}
