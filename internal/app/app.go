package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/salonlink/internal/account"
	"github.com/hitoshi/salonlink/internal/config"
	"github.com/hitoshi/salonlink/internal/database"
	"github.com/hitoshi/salonlink/internal/handler"
	"github.com/hitoshi/salonlink/internal/identity"
	"github.com/hitoshi/salonlink/internal/logger"
	"github.com/hitoshi/salonlink/internal/metrics"
	"github.com/hitoshi/salonlink/internal/middleware"
	"github.com/hitoshi/salonlink/internal/model"
	"github.com/hitoshi/salonlink/internal/profile"
	"github.com/hitoshi/salonlink/internal/repository"
	"github.com/hitoshi/salonlink/internal/security"
	"github.com/hitoshi/salonlink/internal/storage"
	"github.com/hitoshi/salonlink/internal/stylist"
	"github.com/hitoshi/salonlink/internal/validation"
	"github.com/hitoshi/salonlink/internal/worker/cleanup"
)

const (
	// dbPingTimeout は起動時のDB疎通確認のタイムアウト。
	dbPingTimeout = 5 * time.Second
	// shutdownTimeout はグレースフルシャットダウンの最大待機時間。
	shutdownTimeout = 30 * time.Second
)

// Init はアプリケーションの初期化を行う。
// .envと環境変数からConfigを読み込み、LOG_LEVELに従ってJSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	config.LoadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		// 設定エラーもJSONログで出力できるよう、デフォルトレベルで初期化しておく
		logger.SetupDefault(w, slog.LevelInfo)
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))
	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。wはログの出力先。
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

	if cmd == CommandUnknown {
		fmt.Fprint(stdout, usage)
		return fmt.Errorf("unknown command: %q", args[0])
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	var rest []string
	if len(args) > 1 {
		rest = args[1:]
	}

	if cmd.IsClient() {
		return runClient(cfg, cmd, rest)
	}

	slog.Info("アプリケーションを起動します",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("supabase_url", cfg.SupabaseURL),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg, rest)
	default:
		return runServe(cfg)
	}
}

// usage はサポートするサブコマンドの一覧。
const usage = `usage: salonlink <command> [flags]

server commands:
  serve        start the API server (default)
  worker       run the orphaned stylist cleanup job
  migrate      apply migrations (migrate [up | down N | version])
  healthcheck  probe the local /health endpoint

client commands:
  login        sign in with email and password
  signup       register a client or stylist account
  verify       confirm an account with the emailed code
  whoami       show the restored session and profile
  dashboard    evaluate the route guard for a dashboard
  logout       sign out
`

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := database.Ping(context.Background(), db, dbPingTimeout); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("データベースに接続しました",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)
	return db, nil
}

// newRegistry はアプリケーションメトリクスとランタイムメトリクスを登録したレジストリを返す。
func newRegistry() (*prometheus.Registry, *metrics.Collector) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.NewCollector(reg)
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	if err := cfg.RequireServer(); err != nil {
		return err
	}

	log := slog.Default()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. DB接続
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// 2. リポジトリの初期化
	profileRepo := repository.NewPostgresProfileRepo(db)
	stylistRepo := repository.NewPostgresStylistRepo(db)
	serviceRepo := repository.NewPostgresServiceRepo(db)

	// 3. メトリクス
	reg, collector := newRegistry()

	// 4. 外部サービスクライアント
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	verifier := identity.NewVerifier(ctx, cfg.JWTIssuer, cfg.JWKSURL, identity.DefaultAudience, log)
	admin := identity.NewAdmin(cfg.SupabaseURL, cfg.SupabaseServiceRoleKey, httpClient, log)
	objects := storage.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceRoleKey, httpClient, log)

	// 5. ドメインサービスの初期化
	validator := validation.New()
	profileService := profile.NewService(profileRepo, log)
	stylistService := stylist.NewService(stylistRepo, serviceRepo, security.NewSanitizer(), validator, log)
	accountService := account.NewService(admin, profileRepo, stylistRepo, objects, cfg.AvatarBucket, validator, log)

	// 6. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.RateLimiterConfigPerMinute(cfg.RateLimitGeneral, cfg.RateLimitAccount),
		log, collector,
	)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:             log,
		Verifier:           verifier,
		Profiles:           profileService,
		RateLimiter:        rateLimiter,
		CORSAllowedOrigins: []string{cfg.CORSAllowedOrigin},
		HTTPRecorder:       collector,
		DB:                 db,
		Metrics:            metrics.Handler(reg),
		ProfileService:     profileService,
		StylistService:     stylistService,
		AccountService:     accountService,
	})

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("APIサーバーを起動します", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("APIサーバーをシャットダウンします")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("APIサーバーを停止しました")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、孤立したスタイリストプロフィールのクリーンアップを定期実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return model.NewConfigurationError([]string{"DATABASE_URL"})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	_, collector := newRegistry()

	job := cleanup.NewCleanupJob(repository.NewPostgresStylistRepo(db), slog.Default(), collector)
	if cfg.CleanupInterval > 0 {
		job.Interval = cfg.CleanupInterval
	}

	slog.Info("ワーカーを起動します",
		slog.Duration("cleanup_interval", job.Interval),
	)

	// シグナル受信までブロックする
	job.Start(ctx)

	slog.Info("ワーカーを停止しました")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// 引数なしまたはupで未適用マイグレーションをすべて適用し、
// down Nで直近N件をロールバック、versionで現在のバージョンを表示する。
func runMigrate(cfg *config.Config, args []string) error {
	if cfg.DatabaseURL == "" {
		return model.NewConfigurationError([]string{"DATABASE_URL"})
	}

	sub, steps, err := parseMigrateArgs(args)
	if err != nil {
		return err
	}

	slog.Info("データベースマイグレーションを実行します",
		slog.String("action", sub),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	switch sub {
	case "down":
		if err := database.RollbackMigrations(cfg.DatabaseURL, steps); err != nil {
			return fmt.Errorf("rollback failed: %w", err)
		}
	case "version":
		version, dirty, err := database.MigrationVersion(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to read migration version: %w", err)
		}
		fmt.Fprintf(stdout, "version=%d dirty=%t\n", version, dirty)
		return nil
	default:
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	slog.Info("データベースマイグレーションが完了しました", slog.String("action", sub))
	return nil
}

// parseMigrateArgs はmigrateサブコマンドの引数を解析する。
func parseMigrateArgs(args []string) (sub string, steps int, err error) {
	if len(args) == 0 {
		return "up", 0, nil
	}

	switch args[0] {
	case "up", "version":
		return args[0], 0, nil
	case "down":
		steps = 1
		if len(args) > 1 {
			steps, err = strconv.Atoi(args[1])
			if err != nil || steps <= 0 {
				return "", 0, fmt.Errorf("invalid rollback steps: %q", args[1])
			}
		}
		return "down", steps, nil
	default:
		return "", 0, fmt.Errorf("unknown migrate action: %q", args[0])
	}
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	target := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(target)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードを伏せ字にする。
// 解析できない場合は全体を伏せる。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
