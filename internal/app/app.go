// Package app はアプリケーションの起動と依存関係のワイヤリングを提供する。
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

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"github.com/hitoshi/crosspost/internal/account"
	"github.com/hitoshi/crosspost/internal/auth"
	"github.com/hitoshi/crosspost/internal/bluesky"
	"github.com/hitoshi/crosspost/internal/config"
	"github.com/hitoshi/crosspost/internal/database"
	"github.com/hitoshi/crosspost/internal/handler"
	"github.com/hitoshi/crosspost/internal/logger"
	"github.com/hitoshi/crosspost/internal/metrics"
	"github.com/hitoshi/crosspost/internal/middleware"
	"github.com/hitoshi/crosspost/internal/model"
	"github.com/hitoshi/crosspost/internal/post"
	"github.com/hitoshi/crosspost/internal/publisher"
	"github.com/hitoshi/crosspost/internal/repository"
	"github.com/hitoshi/crosspost/internal/security"
	publishpkg "github.com/hitoshi/crosspost/internal/worker/publish"
)

// Init はアプリケーションの初期化を行う。
// .envファイルがあれば読み込み、JSON構造化ログをセットアップした上で
// 環境変数からConfigを読み込む。
func Init(w io.Writer) (*config.Config, error) {
	// .envは開発環境向け。存在しない場合は無視する。
	_ = godotenv.Load()

	logger.SetupDefault(w)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

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
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	identRepo := repository.NewPostgresIdentityRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	accountRepo := repository.NewPostgresAccountRepo(db)
	postRepo := repository.NewPostgresPostRepo(db)

	// 資格情報の暗号化
	cipher, err := security.NewCredentialCipher(cfg.CredentialSecret)
	if err != nil {
		return fmt.Errorf("failed to initialize credential cipher: %w", err)
	}

	// 外部クライアント
	bskyClient := bluesky.NewClient(
		&http.Client{Timeout: 10 * time.Second},
		slog.Default(),
	)

	// ドメインサービスの初期化
	oauthProvider := auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
	})
	authService := auth.NewService(
		oauthProvider, userRepo, identRepo, sessionRepo,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)

	// メトリクス
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	accountService := account.NewService(accountRepo, bskyClient, cipher, slog.Default())
	postService := post.NewService(postRepo, accountRepo, collector, slog.Default())

	// ルーターの構築
	csrfConfig := middleware.CSRFConfig{
		CookieSecure: cfg.CookieSecure,
		CookieDomain: cfg.CookieDomain,
	}

	deps := &handler.RouterDeps{
		SessionFinder:     sessionRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig()),
		CSRFConfig:        csrfConfig,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			BaseURL:       cfg.BaseURL,
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		AccountService: accountService,
		PostService:    postService,

		Gatherer: registry,
	}

	router := middleware.NewLoggingMiddleware(slog.Default())(handler.NewRouter(deps))

	// HTTPサーバーの起動
	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server listening",
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
// DB接続を開き、公開スケジューラとリコンサイラを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// リポジトリの初期化
	accountRepo := repository.NewPostgresAccountRepo(db)
	postRepo := repository.NewPostgresPostRepo(db)

	// 資格情報の復号
	cipher, err := security.NewCredentialCipher(cfg.CredentialSecret)
	if err != nil {
		return fmt.Errorf("failed to initialize credential cipher: %w", err)
	}

	// メトリクス
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// パブリッシャーの初期化
	bskyClient := bluesky.NewClient(
		&http.Client{Timeout: 10 * time.Second},
		slog.Default(),
	)
	blueskyPublisher := publisher.NewBlueskyPublisher(postRepo, bskyClient, cipher, slog.Default())

	publisherRegistry := publisher.NewRegistry()
	publisherRegistry.Register(model.PlatformBluesky, blueskyPublisher)

	// スケジューラの初期化
	scheduler := publishpkg.NewScheduler(
		postRepo, accountRepo, publisherRegistry, collector, slog.Default(),
		cfg.PublishClaimLimit, cfg.PublishMaxConcurrent, cfg.PublishTimeout,
	)

	// リコンサイラの初期化
	reconciler := publishpkg.NewReconciler(postRepo, collector, slog.Default(), cfg.ReconcileThreshold)

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
		slog.String("reconcile_schedule", cfg.ReconcileSchedule),
	)

	// リコンサイラをcronスケジュールでバックグラウンド実行
	c := cron.New()
	if _, err := c.AddFunc(cfg.ReconcileSchedule, func() {
		if err := reconciler.Run(ctx); err != nil {
			slog.Error("reconcile job failed", slog.String("error", err.Error()))
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule reconcile job: %w", err)
	}
	c.Start()
	defer c.Stop()

	// メトリクスエンドポイントをバックグラウンドで公開
	metricsServer := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: metrics.Handler(registry),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server listen error", slog.String("error", err.Error()))
		}
	}()
	defer metricsServer.Close()

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
