package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hitoshi/salonlink/internal/config"
	"github.com/hitoshi/salonlink/internal/identity"
	"github.com/hitoshi/salonlink/internal/model"
	"github.com/hitoshi/salonlink/internal/postgrest"
	"github.com/hitoshi/salonlink/internal/profile"
	"github.com/hitoshi/salonlink/internal/role"
	"github.com/hitoshi/salonlink/internal/session"
)

// stdout はクライアントコマンドの結果の出力先。ログはInitで指定したwriterに出力する。
var stdout io.Writer = os.Stdout

// passwordEnv はパスワードをフラグで渡さない場合の環境変数。
const passwordEnv = "SALONLINK_PASSWORD"

// errAccessLocked はdashboardコマンドでガードがアクセスを拒否したことを表す。
var errAccessLocked = errors.New("access locked")

// newCoordinator はクライアント側の依存関係をワイヤリングし、開始済みのCoordinatorを返す。
// 保存済みセッションはcfg.SessionFileから復元する。呼び出し元はCloseを呼ぶこと。
func newCoordinator(ctx context.Context, cfg *config.Config) *session.Coordinator {
	log := slog.Default()
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	idc := identity.NewClient(cfg.SupabaseURL, cfg.SupabaseAnonKey, httpClient,
		identity.NewFileStorage(cfg.SessionFile), log)

	// テーブルAPIには行レベルセキュリティの対象ユーザーとしてアクセスする
	tables := postgrest.NewClient(cfg.SupabaseURL, cfg.SupabaseAnonKey, idc.HTTPClient(ctx), log)
	profiles := profile.NewService(postgrest.NewProfileStore(tables), log)

	_, collector := newRegistry()
	coord := session.New(idc, profile.NewCache(profiles, collector, log), session.Options{
		FallbackDelay: cfg.AuthFallbackDelay,
		Logger:        log,
		Recorder:      collector,
	})
	coord.Start()
	return coord
}

// runClient はエンドユーザー向けのクライアントコマンドを実行する。
// 初期状態の確定を待ってからコマンドを実行し、終了前にバックグラウンド処理の完了を待つ。
func runClient(cfg *config.Config, cmd Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// フラグの解析エラーはネットワークに触れる前に返す
	run, err := clientAction(cmd, args)
	if err != nil {
		return err
	}

	coord := newCoordinator(ctx, cfg)
	defer coord.Close()

	if _, err := coord.Wait(ctx); err != nil {
		return fmt.Errorf("認証状態の確定待ちが中断されました: %w", err)
	}
	return run(ctx, coord)
}

// clientFunc は開始済みのCoordinatorに対してコマンドを実行する。
type clientFunc func(ctx context.Context, coord *session.Coordinator) error

// clientAction はコマンドとフラグからclientFuncを組み立てる。
func clientAction(cmd Command, args []string) (clientFunc, error) {
	fs := flag.NewFlagSet(string(cmd), flag.ContinueOnError)
	fs.SetOutput(stdout)

	switch cmd {
	case CommandLogin:
		email := fs.String("email", "", "account email")
		password := fs.String("password", "", "account password (or "+passwordEnv+")")
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		return func(ctx context.Context, coord *session.Coordinator) error {
			snap, err := coord.SignIn(ctx, *email, passwordOrEnv(*password))
			if err != nil {
				return err
			}
			printSnapshot(snap)
			return nil
		}, nil

	case CommandSignup:
		req := model.SignUpRequest{}
		var roleName, password string
		fs.StringVar(&req.Email, "email", "", "account email")
		fs.StringVar(&password, "password", "", "account password (or "+passwordEnv+")")
		fs.StringVar(&roleName, "role", string(model.RoleClient), "client or stylist")
		fs.StringVar(&req.FullName, "name", "", "full name")
		fs.StringVar(&req.Phone, "phone", "", "phone number")
		fs.StringVar(&req.BusinessName, "business", "", "business name (stylist)")
		fs.StringVar(&req.Location, "location", "", "location (stylist)")
		fs.StringVar(&req.ContactEmail, "contact-email", "", "public contact email (stylist)")
		fs.StringVar(&req.ContactPhone, "contact-phone", "", "public contact phone (stylist)")
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		req.Password = passwordOrEnv(password)
		req.Role = model.Role(roleName)
		return func(ctx context.Context, coord *session.Coordinator) error {
			res, err := coord.SignUp(ctx, req)
			if err != nil {
				return err
			}
			if res.ConfirmationRequired {
				fmt.Fprintf(stdout, "confirmation required: enter the code sent to %s with `salonlink verify`\n", req.Email)
				return nil
			}
			printSnapshot(res.Snapshot)
			return nil
		}, nil

	case CommandVerify:
		email := fs.String("email", "", "account email")
		code := fs.String("code", "", "6 digit confirmation code")
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		return func(ctx context.Context, coord *session.Coordinator) error {
			snap, err := coord.VerifyOTP(ctx, *email, *code)
			if err != nil {
				return err
			}
			printSnapshot(snap)
			return nil
		}, nil

	case CommandWhoami:
		refresh := fs.Bool("refresh", false, "re-fetch the profile")
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		return func(ctx context.Context, coord *session.Coordinator) error {
			snap := coord.Snapshot()
			if *refresh && snap.SessionPresent() {
				var err error
				if snap, err = coord.RefreshProfile(ctx); err != nil {
					return err
				}
			}
			printSnapshot(snap)
			return nil
		}, nil

	case CommandDashboard:
		path := fs.String("path", "", "dashboard path (defaults to the role's own dashboard)")
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		return func(ctx context.Context, coord *session.Coordinator) error {
			snap := coord.Snapshot()
			target := *path
			if target == "" {
				target = snap.DashboardPath()
			}
			guard, ok := role.ForPath(target)
			if !ok {
				return fmt.Errorf("unknown dashboard path: %q", target)
			}
			return printDecision(target, snap.Guard(guard))
		}, nil

	case CommandLogout:
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		return func(ctx context.Context, coord *session.Coordinator) error {
			snap := coord.SignOut(ctx)
			fmt.Fprintf(stdout, "signed out (status=%s)\n", snap.Status)
			return nil
		}, nil
	}

	return nil, fmt.Errorf("unsupported client command: %q", cmd)
}

func passwordOrEnv(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(passwordEnv)
}

// printSnapshot は認証状態を表示する。
func printSnapshot(snap session.Snapshot) {
	fmt.Fprintf(stdout, "status: %s\n", snap.Status)
	if !snap.SessionPresent() {
		if snap.Err != nil {
			fmt.Fprintf(stdout, "error: %s (%s)\n", snap.Err.Message, snap.Err.Action)
		}
		return
	}

	fmt.Fprintf(stdout, "user: %s <%s>\n", snap.User.ID, snap.User.Email)
	if snap.Profile != nil {
		fmt.Fprintf(stdout, "name: %s\n", snap.Profile.FullName)
	}
	fmt.Fprintf(stdout, "role: %s\n", snap.Role())
	fmt.Fprintf(stdout, "dashboard: %s\n", snap.DashboardPath())
}

// printDecision はガード判定を表示する。ロックされた場合はerrAccessLockedを返す。
func printDecision(path string, d role.Decision) error {
	fmt.Fprintf(stdout, "%s: %s\n", path, d.Outcome)
	if d.Reason != "" {
		fmt.Fprintf(stdout, "reason: %s\n", d.Reason)
	}
	for _, a := range d.Actions {
		fmt.Fprintf(stdout, "  -> %s (%s)\n", a.Label, a.Path)
	}
	if d.Outcome == role.OutcomeLocked {
		return errAccessLocked
	}
	return nil
}
