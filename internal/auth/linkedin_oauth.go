package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const (
	defaultLinkedInAuthURL     = "https://www.linkedin.com/oauth/v2/authorization"
	defaultLinkedInTokenURL    = "https://www.linkedin.com/oauth/v2/accessToken"
	defaultLinkedInUserInfoURL = "https://api.linkedin.com/v2/userinfo"

	// linkedInScopes は連携時に要求するスコープ。
	// w_member_socialが投稿作成に必須。
	linkedInScopes = "openid profile email w_member_social"
)

// LinkedInOAuthConfig はLinkedIn OAuthプロバイダーの設定。
type LinkedInOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// テスト用にオーバーライド可能なURL
	AuthURL     string
	TokenURL    string
	UserInfoURL string
}

// LinkedInToken はトークン交換の結果。
type LinkedInToken struct {
	AccessToken string
	ExpiresIn   int    // 秒
	Scope       string // 実際に許可されたスコープ
}

// LinkedInOAuthProvider はLinkedIn OAuth 2.0による連携を提供する。
type LinkedInOAuthProvider struct {
	config     LinkedInOAuthConfig
	httpClient *http.Client
}

// NewLinkedInOAuthProvider はLinkedInOAuthProviderを生成する。
func NewLinkedInOAuthProvider(config LinkedInOAuthConfig, httpClient *http.Client) *LinkedInOAuthProvider {
	if config.AuthURL == "" {
		config.AuthURL = defaultLinkedInAuthURL
	}
	if config.TokenURL == "" {
		config.TokenURL = defaultLinkedInTokenURL
	}
	if config.UserInfoURL == "" {
		config.UserInfoURL = defaultLinkedInUserInfoURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &LinkedInOAuthProvider{config: config, httpClient: httpClient}
}

// AuthorizationURL はLinkedInの認可URLを生成する。
func (p *LinkedInOAuthProvider) AuthorizationURL(state string) string {
	params := url.Values{
		"response_type": {"code"},
		"client_id":     {p.config.ClientID},
		"redirect_uri":  {p.config.RedirectURL},
		"scope":         {linkedInScopes},
		"state":         {state},
	}
	return p.config.AuthURL + "?" + params.Encode()
}

// linkedInTokenResponse はLinkedInトークンエンドポイントのレスポンス。
type linkedInTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope"`
}

// ExchangeCode は認可コードをアクセストークンに交換する。
func (p *LinkedInOAuthProvider) ExchangeCode(ctx context.Context, code string) (*LinkedInToken, error) {
	data := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"client_id":     {p.config.ClientID},
		"client_secret": {p.config.ClientSecret},
		"redirect_uri":  {p.config.RedirectURL},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token exchange failed with status %d: %s", resp.StatusCode, string(body))
	}

	var tokenResp linkedInTokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}

	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("empty access token in response")
	}

	return &LinkedInToken{
		AccessToken: tokenResp.AccessToken,
		ExpiresIn:   tokenResp.ExpiresIn,
		Scope:       tokenResp.Scope,
	}, nil
}

// linkedInUserInfo はOpenID Connectのuserinfoエンドポイントのレスポンス。
type linkedInUserInfo struct {
	Sub string `json:"sub"`
}

// FetchMemberID はアクセストークンでLinkedInのメンバーIDを取得する。
// userinfoのsubクレームがメンバーIDになる。
func (p *LinkedInOAuthProvider) FetchMemberID(ctx context.Context, accessToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.UserInfoURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create user info request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("user info request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read user info response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("user info fetch failed with status %d: %s", resp.StatusCode, string(body))
	}

	var userInfo linkedInUserInfo
	if err := json.Unmarshal(body, &userInfo); err != nil {
		return "", fmt.Errorf("failed to parse user info response: %w", err)
	}

	if userInfo.Sub == "" {
		return "", fmt.Errorf("empty sub in user info response")
	}

	return userInfo.Sub, nil
}

// compile-time interface check
var _ OAuthProvider = (*LinkedInOAuthProvider)(nil)
