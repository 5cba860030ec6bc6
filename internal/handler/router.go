package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/contenthub/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Authenticator     middleware.TokenAuthenticator
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// 認証
	AuthService AuthServiceInterface

	// コンテンツ承認ワークフロー
	ContentService ContentServiceInterface

	// 予約投稿
	PostService PostServiceInterface

	// LinkedIn連携
	ConnectService ConnectServiceInterface
	ConnectConfig  ConnectHandlerConfig

	// 管理者操作
	PublisherRunner PublisherRunner
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → Auth → RateLimit(General)
//
// ログイン（/auth/login）とLinkedInコールバック（/auth/linkedin/callback）は
// 認証ミドルウェアの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(slog.Default()))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService)
	contentHandler := NewContentHandler(deps.ContentService)
	postHandler := NewPostHandler(deps.PostService)
	connectHandler := NewConnectHandler(deps.ConnectService, deps.ConnectConfig)
	adminHandler := NewAdminHandler(deps.PublisherRunner)

	// --- 認証不要のルート ---

	r.Post("/auth/login", authHandler.Login)

	// LinkedInコールバック。state検証はledgerが行う
	r.Get("/auth/linkedin/callback", connectHandler.Callback)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.Authenticator))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/auth/me", authHandler.Me)

		// コンテンツ承認ワークフロー
		r.Route("/api/contents", func(r chi.Router) {
			r.Post("/", contentHandler.Create)
			r.Get("/", contentHandler.List)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", contentHandler.Get)
				r.Patch("/", contentHandler.Update)
				r.Post("/submit", contentHandler.Submit)
				r.Post("/approve", contentHandler.Approve)
				r.Post("/request-revision", contentHandler.RequestRevision)
				r.Post("/mark-published", contentHandler.MarkPublished)

				// 予約・即時公開は投稿系レート制限を追加適用
				r.With(deps.RateLimiter.ScheduleMiddleware()).Post("/schedule", contentHandler.Schedule)
				r.With(deps.RateLimiter.ScheduleMiddleware()).Post("/post-now", contentHandler.PostNow)
			})
		})

		// 予約投稿管理
		r.Route("/api/posts", func(r chi.Router) {
			// POST /api/posts - 投稿予約（予約系レート制限を追加）
			r.With(deps.RateLimiter.ScheduleMiddleware()).Post("/", postHandler.Create)
			r.Get("/", postHandler.List)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", postHandler.Get)
				r.Delete("/", postHandler.Delete)
			})
		})

		// LinkedIn連携
		r.Route("/api/linkedin", func(r chi.Router) {
			r.Get("/connect", connectHandler.Connect)
			r.Get("/status", connectHandler.Status)
			r.Delete("/connection", connectHandler.Disconnect)
		})

		// 管理者操作
		r.Post("/api/admin/publisher/run", adminHandler.RunPublisher)
	})

	return r
}
