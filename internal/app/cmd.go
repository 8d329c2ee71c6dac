package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandWorker は掲載情報クリーンアップのワーカーモードで起動することを示す。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"

	// CommandLogin はメールアドレスとパスワードでサインインする。
	CommandLogin Command = "login"
	// CommandSignup はアカウントを登録する。
	CommandSignup Command = "signup"
	// CommandVerify はメールで届いた確認コードを検証する。
	CommandVerify Command = "verify"
	// CommandWhoami は保存済みセッションを復元し、ユーザーとプロフィールを表示する。
	CommandWhoami Command = "whoami"
	// CommandDashboard はロールに対応するダッシュボードのガード判定を表示する。
	CommandDashboard Command = "dashboard"
	// CommandLogout はサインアウトする。
	CommandLogout Command = "logout"

	// CommandUnknown はサポート外のコマンド。
	CommandUnknown Command = "unknown"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空の場合はCommandServe、サポート外のコマンドの場合はCommandUnknownを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch cmd := Command(args[0]); cmd {
	case CommandServe, CommandWorker, CommandMigrate, CommandHealthcheck,
		CommandLogin, CommandSignup, CommandVerify, CommandWhoami, CommandDashboard, CommandLogout:
		return cmd
	default:
		return CommandUnknown
	}
}

// IsClient はエンドユーザー向けのクライアントコマンドかどうかを返す。
// クライアントコマンドはDBとservice roleキーを必要としない。
func (c Command) IsClient() bool {
	switch c {
	case CommandLogin, CommandSignup, CommandVerify, CommandWhoami, CommandDashboard, CommandLogout:
		return true
	default:
		return false
	}
}
