package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/contenthub/internal/auth"
	"github.com/hitoshi/contenthub/internal/config"
	"github.com/hitoshi/contenthub/internal/connect"
	"github.com/hitoshi/contenthub/internal/content"
	"github.com/hitoshi/contenthub/internal/database"
	"github.com/hitoshi/contenthub/internal/handler"
	"github.com/hitoshi/contenthub/internal/linkedin"
	"github.com/hitoshi/contenthub/internal/logger"
	"github.com/hitoshi/contenthub/internal/metrics"
	"github.com/hitoshi/contenthub/internal/middleware"
	"github.com/hitoshi/contenthub/internal/oauthstate"
	"github.com/hitoshi/contenthub/internal/post"
	"github.com/hitoshi/contenthub/internal/repository"
	"github.com/hitoshi/contenthub/internal/security"
	"github.com/hitoshi/contenthub/internal/worker/cleanup"
	publishpkg "github.com/hitoshi/contenthub/internal/worker/publish"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, "info")

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルでロガーを再構成する
	logger.SetupDefault(w, cfg.LogLevel)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	credRepo := repository.NewPostgresCredentialRepo(db)
	contentRepo := repository.NewPostgresContentRepo(db)
	postRepo := repository.NewPostgresPostRepo(db)

	// 3. トークン暗号化の初期化
	cipher, err := security.NewTokenCipher(cfg.SecretKey)
	if err != nil {
		return fmt.Errorf("failed to initialize token cipher: %w", err)
	}

	// 4. ドメインサービスの初期化
	authService := auth.NewService(userRepo, auth.ServiceConfig{
		SecretKey:   cfg.SecretKey,
		TokenMaxAge: cfg.TokenMaxAge,
	})

	oauthProvider := auth.NewLinkedInOAuthProvider(auth.LinkedInOAuthConfig{
		ClientID:     cfg.LinkedInClientID,
		ClientSecret: cfg.LinkedInClientSecret,
		RedirectURL:  cfg.LinkedInRedirectURL,
	}, nil)
	stateLedger := oauthstate.NewMemoryLedger(cfg.OAuthStateTTL)
	connectService := connect.NewService(oauthProvider, stateLedger, credRepo, cipher)

	contentService := content.NewService(contentRepo, postRepo, credRepo)
	postService := post.NewService(postRepo, credRepo)

	// 5. 手動実行用パブリッシャーの初期化
	// 定期実行はworkerモードが担うが、管理者の即時実行APIからも同じ
	// エンジンを使えるようにserveモードにもワイヤリングする。
	collector := metrics.NewCollector(prometheus.NewRegistry())
	linkedinClient := linkedin.NewClient(
		&http.Client{Timeout: cfg.PublishTimeout},
		slog.Default(),
	)
	engine := publishpkg.NewEngine(
		postRepo, contentRepo, credRepo, linkedinClient, cipher,
		slog.Default(), collector, cfg.PublishTimeout,
	)
	publisher := publishpkg.NewScheduler(
		postRepo, engine, slog.Default(), collector, cfg.PublishMaxConcurrent,
	)

	// 6. ルーターの構築
	// configのRateLimit*はreq/min単位なのでreq/secに変換する
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
	rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	rateLimiterCfg.ScheduleRate = rate.Limit(float64(cfg.RateLimitSchedule) / 60.0)
	rateLimiterCfg.ScheduleBurst = cfg.RateLimitSchedule
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		Authenticator:     authService,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,

		AuthService:    authService,
		ContentService: contentService,
		PostService:    postService,

		ConnectService: connectService,
		ConnectConfig: handler.ConnectHandlerConfig{
			FrontendURL: cfg.FrontendURL,
		},

		PublisherRunner: publisher,
	}

	router := handler.NewRouter(deps)

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、公開スケジューラとクリーンアップジョブを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. リポジトリの初期化
	credRepo := repository.NewPostgresCredentialRepo(db)
	contentRepo := repository.NewPostgresContentRepo(db)
	postRepo := repository.NewPostgresPostRepo(db)

	// 3. トークン暗号化の初期化
	cipher, err := security.NewTokenCipher(cfg.SecretKey)
	if err != nil {
		return fmt.Errorf("failed to initialize token cipher: %w", err)
	}

	// 4. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 5. 公開エンジンとスケジューラの初期化
	linkedinClient := linkedin.NewClient(
		&http.Client{Timeout: cfg.PublishTimeout},
		slog.Default(),
	)
	engine := publishpkg.NewEngine(
		postRepo, contentRepo, credRepo, linkedinClient, cipher,
		slog.Default(), collector, cfg.PublishTimeout,
	)
	scheduler := publishpkg.NewScheduler(
		postRepo, engine, slog.Default(), collector, cfg.PublishMaxConcurrent,
	)

	// 6. クリーンアップジョブの初期化
	cleanupJob := cleanup.NewCleanupJob(postRepo, slog.Default())
	cleanupJob.RetentionDays = cfg.PostRetentionDays

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("publish_interval", cfg.PublishInterval),
		slog.Int("max_concurrent", cfg.PublishMaxConcurrent),
	)

	// Prometheusスクレイプ用エンドポイントをバックグラウンドで起動
	metricsServer := &http.Server{
		Addr:    ":" + cfg.MetricsPort,
		Handler: metrics.SetupMetricsRoute(registry),
	}
	go func() {
		slog.Info("metrics server starting", slog.String("addr", metricsServer.Addr))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server listen error", slog.String("error", err.Error()))
		}
	}()
	defer metricsServer.Close()

	// クリーンアップジョブを日次でバックグラウンド実行
	go func() {
		// 起動直後に1回実行
		if err := cleanupJob.Run(ctx); err != nil {
			slog.Error("cleanup job failed", slog.String("error", err.Error()))
		}

		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := cleanupJob.Run(ctx); err != nil {
					slog.Error("cleanup job failed", slog.String("error", err.Error()))
				}
			}
		}
	}()

	// 公開スケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx, cfg.PublishInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
