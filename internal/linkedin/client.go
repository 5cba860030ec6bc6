// Package linkedin はLinkedIn APIクライアントを提供する。
// UGC Posts APIによる投稿作成を扱う。
package linkedin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

const (
	// defaultBaseURL はLinkedIn APIのベースURL。
	defaultBaseURL = "https://api.linkedin.com"
	// restLiProtocolVersion はUGC Posts APIが要求するプロトコルバージョン。
	restLiProtocolVersion = "2.0.0"
)

// PublishError はLinkedIn APIがエラーステータスを返した場合のエラー。
// 呼び出し元はStatusCodeで再試行可否を分類する。
type PublishError struct {
	StatusCode int
	Body       string
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("linkedin api returned status %d: %s", e.StatusCode, e.Body)
}

// Client はLinkedIn APIのクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string // テスト用にベースURLを差し替え可能
}

// NewClient はClientの新しいインスタンスを生成する。
// httpClientのTimeoutは呼び出し元で設定する想定。
func NewClient(httpClient *http.Client, logger *slog.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    defaultBaseURL,
	}
}

// ugcPostRequest はUGC Posts APIのリクエストボディ。
type ugcPostRequest struct {
	Author          string                    `json:"author"`
	LifecycleState  string                    `json:"lifecycleState"`
	SpecificContent map[string]ugcShareDetail `json:"specificContent"`
	Visibility      map[string]string         `json:"visibility"`
}

type ugcShareDetail struct {
	ShareCommentary    ugcText    `json:"shareCommentary"`
	ShareMediaCategory string     `json:"shareMediaCategory"`
	Media              []ugcMedia `json:"media,omitempty"`
}

type ugcText struct {
	Text string `json:"text"`
}

type ugcMedia struct {
	Status      string  `json:"status"`
	OriginalURL string  `json:"originalUrl"`
	Title       ugcText `json:"title"`
}

// Publish はUGC Posts APIで投稿を作成し、作成された投稿IDを返す。
// 投稿IDはX-RestLi-Idヘッダーから取得する。ヘッダーが無い場合はボディのidフィールドを使う。
// APIがエラーステータスを返した場合は*PublishErrorを返す。
func (c *Client) Publish(ctx context.Context, accessToken, memberID, message string, mediaAssets []string) (string, error) {
	detail := ugcShareDetail{
		ShareCommentary:    ugcText{Text: message},
		ShareMediaCategory: "NONE",
	}
	if len(mediaAssets) > 0 {
		detail.ShareMediaCategory = "ARTICLE"
		for _, u := range mediaAssets {
			detail.Media = append(detail.Media, ugcMedia{
				Status:      "READY",
				OriginalURL: u,
				Title:       ugcText{Text: ""},
			})
		}
	}

	reqBody := ugcPostRequest{
		Author:         fmt.Sprintf("urn:li:person:%s", memberID),
		LifecycleState: "PUBLISHED",
		SpecificContent: map[string]ugcShareDetail{
			"com.linkedin.ugc.ShareContent": detail,
		},
		Visibility: map[string]string{
			"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC",
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("リクエストボディの生成に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/ugcPosts", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Restli-Protocol-Version", restLiProtocolVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("LinkedIn APIの呼び出しに失敗しました",
			slog.String("error", err.Error()),
		)
		return "", err
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if readErr != nil {
		return "", fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", readErr)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("LinkedIn APIがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
		)
		return "", &PublishError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if id := resp.Header.Get("X-RestLi-Id"); id != "" {
		return id, nil
	}

	// ヘッダーが無い場合のフォールバック
	var result struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &result); err == nil && result.ID != "" {
		return result.ID, nil
	}

	return "", fmt.Errorf("LinkedIn APIのレスポンスから投稿IDを取得できませんでした")
}
