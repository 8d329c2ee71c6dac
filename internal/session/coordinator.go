// Package session はログインセッションとプロフィールの同期を担うCoordinatorを提供する。
// IdPの認証状態変化イベントを購読し、サインイン・サインアウト・プロフィール取得が
// 重なっても一貫した認証状態を公開する。
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hitoshi/salonlink/internal/model"
	"github.com/hitoshi/salonlink/internal/validation"
)

const (
	// DefaultFallbackDelay はINITIAL_SESSIONが届かない場合にセッションを自前で復元するまでの待ち時間。
	DefaultFallbackDelay = 100 * time.Millisecond
	// DefaultSignOutTimeout はバックグラウンドで実行するリモートサインアウトのタイムアウト。
	DefaultSignOutTimeout = 10 * time.Second
)

// Provider はIdPクライアントのインターフェース。
type Provider interface {
	SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error)
	// SignUp はユーザーを登録する。自動確認が有効な場合のみセッションを返す。
	SignUp(ctx context.Context, req model.SignUpRequest) (*model.Session, *model.AuthUser, error)
	VerifyOTP(ctx context.Context, email, token string) (*model.Session, error)
	// SignOut はセッションを無効化する。sがnilの場合は保存済みのセッションを対象とする。
	SignOut(ctx context.Context, s *model.Session) error
	// GetSession は保存済みのセッションを返す。存在しない場合はnilを返す。
	GetSession(ctx context.Context) (*model.Session, error)
	// Subscribe は認証状態変化の購読を開始し、購読解除関数を返す。
	Subscribe(fn func(model.AuthEvent)) (unsubscribe func())
}

// ProfileSource はプロフィールキャッシュのインターフェース。
type ProfileSource interface {
	Get(ctx context.Context, user *model.AuthUser, force bool) (*model.UserProfile, error)
	Clear()
}

// Recorder は状態遷移とイベント処理結果を記録するインターフェース。
type Recorder interface {
	RecordTransition(status string)
	RecordAuthEvent(event, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) RecordTransition(string)        {}
func (nopRecorder) RecordAuthEvent(string, string) {}

// Options はCoordinatorの設定。ゼロ値の項目はデフォルト値を使用する。
type Options struct {
	FallbackDelay  time.Duration
	SignOutTimeout time.Duration
	Logger         *slog.Logger
	Recorder       Recorder
	Validator      *validation.Validator
}

// SignUpResult はサインアップの結果。
type SignUpResult struct {
	Snapshot Snapshot
	User     *model.AuthUser
	// ConfirmationRequired はメール確認が完了するまでセッションが発行されないことを示す。
	ConfirmationRequired bool
}

// Coordinator はアプリケーションで唯一の認証状態を保持する。
// セッション・ユーザー・プロフィールはCoordinatorだけが変更し、他のコンポーネントはSnapshotを参照する。
//
// 初期状態の確定はINITIAL_SESSIONイベントとフォールバックタイマーの先着1回だけが適用される。
// セッションが切り替わるたびにepochを進め、切り替え前に開始したプロフィール取得の結果は破棄する。
type Coordinator struct {
	provider       Provider
	profiles       ProfileSource
	validator      *validation.Validator
	logger         *slog.Logger
	recorder       Recorder
	fallbackDelay  time.Duration
	signOutTimeout time.Duration
	now            func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	settled   atomic.Bool
	ready     chan struct{}
	readyOnce sync.Once
	signingIn atomic.Int32

	mu    sync.RWMutex
	state Snapshot
	epoch uint64

	timerMu     sync.Mutex
	timer       *time.Timer
	closed      bool
	unsubscribe func()
	startOnce   sync.Once
	closeOnce   sync.Once

	bg sync.WaitGroup
}

// New はCoordinatorを生成する。Startを呼ぶまでイベントは購読しない。
func New(provider Provider, profiles ProfileSource, opts Options) *Coordinator {
	if opts.FallbackDelay <= 0 {
		opts.FallbackDelay = DefaultFallbackDelay
	}
	if opts.SignOutTimeout <= 0 {
		opts.SignOutTimeout = DefaultSignOutTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	if opts.Validator == nil {
		opts.Validator = validation.New()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		provider:       provider,
		profiles:       profiles,
		validator:      opts.Validator,
		logger:         opts.Logger,
		recorder:       opts.Recorder,
		fallbackDelay:  opts.FallbackDelay,
		signOutTimeout: opts.SignOutTimeout,
		now:            time.Now,
		ctx:            ctx,
		cancel:         cancel,
		ready:          make(chan struct{}),
		state:          Snapshot{Status: StatusInitializing},
	}
}

// Start は認証状態変化の購読を開始し、フォールバックタイマーを起動する。
func (c *Coordinator) Start() {
	c.startOnce.Do(func() {
		unsubscribe := c.provider.Subscribe(c.handleEvent)

		c.timerMu.Lock()
		defer c.timerMu.Unlock()
		c.unsubscribe = unsubscribe
		if c.closed || c.settled.Load() {
			return
		}
		c.bg.Add(1)
		c.timer = time.AfterFunc(c.fallbackDelay, func() {
			defer c.bg.Done()
			c.fallback()
		})
	})
}

// Close は購読を解除し、バックグラウンド処理（リモートサインアウトを含む）の完了を待つ。
// 取得中のプロフィールとセッション復元はキャンセルする。Close後に届いたイベントは無視する。
func (c *Coordinator) Close() {
	c.closeOnce.Do(func() {
		c.timerMu.Lock()
		c.closed = true
		unsubscribe := c.unsubscribe
		c.timerMu.Unlock()

		if unsubscribe != nil {
			unsubscribe()
		}
		c.stopTimer()
		// リモートサインアウトは呼び出し元のcontextから派生するためキャンセルされない
		c.cancel()
		c.bg.Wait()
	})
}

// Ready は初期状態が確定したときにcloseされるチャネルを返す。
func (c *Coordinator) Ready() <-chan struct{} {
	return c.ready
}

// Wait は初期状態の確定を待ってSnapshotを返す。
func (c *Coordinator) Wait(ctx context.Context) (Snapshot, error) {
	select {
	case <-c.ready:
		return c.Snapshot(), nil
	case <-ctx.Done():
		return c.Snapshot(), ctx.Err()
	}
}

// Snapshot は現在の認証状態のコピーを返す。
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// SignIn はメールアドレスとパスワードでサインインする。
// 入力はネットワーク呼び出しの前に検証し、違反があれば状態を変えずにエラーを返す。
// 成功時はプロフィールの強制取得が完了してから返るため、戻り値のDashboardPathはそのまま使用できる。
func (c *Coordinator) SignIn(ctx context.Context, email, password string) (Snapshot, error) {
	if apiErr := c.validator.Struct(model.Credentials{Email: email, Password: password}); apiErr != nil {
		return c.Snapshot(), apiErr
	}

	c.signingIn.Add(1)
	defer c.signingIn.Add(-1)

	c.setLoading()
	sess, err := c.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		return c.fail("サインインに失敗しました", err)
	}
	if sess == nil || sess.User == nil {
		return c.fail("サインインに失敗しました", model.NewBackendUnavailableError("no session was returned"))
	}

	return c.establish(ctx, sess)
}

// SignUp はユーザーを登録する。IdPがセッションを返した場合はサインインと同様にプロフィールを確定させる。
// メール確認が必要な場合は未認証のままConfirmationRequiredを返す。
func (c *Coordinator) SignUp(ctx context.Context, req model.SignUpRequest) (SignUpResult, error) {
	if apiErr := c.validator.Struct(req); apiErr != nil {
		return SignUpResult{Snapshot: c.Snapshot()}, apiErr
	}

	c.signingIn.Add(1)
	defer c.signingIn.Add(-1)

	c.setLoading()
	sess, user, err := c.provider.SignUp(ctx, req)
	if err != nil {
		snap, failErr := c.fail("サインアップに失敗しました", err)
		return SignUpResult{Snapshot: snap}, failErr
	}

	if sess == nil || sess.User == nil {
		c.clearLoading()
		c.logger.Info("確認メールを送信しました",
			slog.String("email", req.Email),
		)
		return SignUpResult{Snapshot: c.Snapshot(), User: user, ConfirmationRequired: true}, nil
	}

	snap, err := c.establish(ctx, sess)
	return SignUpResult{Snapshot: snap, User: sess.User}, err
}

// VerifyOTP はメールで届いた確認コードを検証し、発行されたセッションでサインインする。
func (c *Coordinator) VerifyOTP(ctx context.Context, email, token string) (Snapshot, error) {
	if apiErr := c.validator.Struct(model.OTPRequest{Email: email, Token: token}); apiErr != nil {
		return c.Snapshot(), apiErr
	}

	c.signingIn.Add(1)
	defer c.signingIn.Add(-1)

	c.setLoading()
	sess, err := c.provider.VerifyOTP(ctx, email, token)
	if err != nil {
		return c.fail("確認コードの検証に失敗しました", err)
	}
	if sess == nil || sess.User == nil {
		return c.fail("確認コードの検証に失敗しました", model.NewBackendUnavailableError("no session was returned"))
	}

	return c.establish(ctx, sess)
}

// SignOut はローカルの認証状態を即座にクリアし、リモートサインアウトをバックグラウンドで実行する。
// リモートサインアウトの失敗はログに記録するのみで、状態は戻さない。
func (c *Coordinator) SignOut(ctx context.Context) Snapshot {
	c.mu.Lock()
	prev := c.state.Session
	c.resetLocked(StatusUnauthenticated, nil)
	snap := c.state
	c.mu.Unlock()

	c.settleAndRelease()

	remote := func() {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.signOutTimeout)
		defer cancel()
		if err := c.provider.SignOut(rctx, prev); err != nil {
			c.logger.Warn("リモートサインアウトに失敗しました",
				slog.String("error", err.Error()),
			)
			return
		}
		c.logger.Info("リモートサインアウトが完了しました")
	}
	if !c.spawn(remote) {
		// Close後はバックグラウンド処理を追加できないため同期で実行する
		remote()
	}

	return snap
}

// RefreshProfile は現在のユーザーのプロフィールを強制的に取得し直す。
func (c *Coordinator) RefreshProfile(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	user := c.state.User
	if user == nil {
		snap := c.state
		c.mu.Unlock()
		return snap, model.NewUnauthorizedError()
	}
	epoch := c.epoch
	next := c.state
	next.Loading = true
	c.setLocked(next)
	c.mu.Unlock()

	p, err := c.profiles.Get(ctx, user, true)
	return c.result(c.applyProfile(epoch, user, p, err, StatusError))
}

// establish はセッションを採用し、プロフィールの強制取得を待って結果を返す。
func (c *Coordinator) establish(ctx context.Context, sess *model.Session) (Snapshot, error) {
	initial := c.settled.CompareAndSwap(false, true)
	if initial {
		c.stopTimer()
		defer c.markReady()
	}

	epoch := c.adopt(sess)
	p, err := c.profiles.Get(ctx, sess.User, true)
	return c.result(c.applyProfile(epoch, sess.User, p, err, StatusError))
}

// handleEvent はIdPの認証状態変化を処理する。
// 処理中のパニックは状態をクリアして吸収し、中途半端な状態を残さない。
func (c *Coordinator) handleEvent(ev model.AuthEvent) {
	if c.isClosed() {
		c.recorder.RecordAuthEvent(ev.Name, "ignored_closed")
		return
	}
	kind := classify(ev.Name)

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("認証イベントの処理中にパニックが発生しました",
				slog.String("event", ev.Name),
				slog.String("panic", fmt.Sprintf("%v", r)),
			)
			c.recorder.RecordAuthEvent(ev.Name, "panic")
			status := StatusError
			if !c.isReady() {
				status = StatusUnauthenticated
			}
			c.reset(status, model.NewInternalError())
			c.settleAndRelease()
		}
	}()

	switch kind {
	case kindInitial:
		c.resolveInitial(ev.Session, nil, "event")
	case kindSessionChanged:
		c.onSessionChanged(ev)
	case kindSignedOut:
		c.onSignedOut(ev)
	case kindUserUpdated:
		c.onUserUpdated(ev)
	default:
		c.recorder.RecordAuthEvent(ev.Name, "ignored")
		c.logger.Debug("未対応の認証イベントを無視しました",
			slog.String("event", ev.Name),
		)
	}
}

// fallback はINITIAL_SESSIONが届かなかった場合に保存済みセッションを復元する。
func (c *Coordinator) fallback() {
	if c.settled.Load() {
		return
	}
	sess, err := c.provider.GetSession(c.ctx)
	// 取得中にイベント側で確定した場合は何もしない
	if c.settled.Load() {
		c.recorder.RecordAuthEvent("initial_fallback", "duplicate")
		return
	}
	c.resolveInitial(sess, err, "fallback")
}

// resolveInitial は初期状態を確定する。2回目以降の呼び出しは何もしない。
// 復元に失敗した場合は未認証として確定する。
func (c *Coordinator) resolveInitial(sess *model.Session, err error, source string) {
	event := "initial_" + source
	if !c.settled.CompareAndSwap(false, true) {
		c.recorder.RecordAuthEvent(event, "duplicate")
		c.logger.Debug("初期セッションは確定済みのため無視しました",
			slog.String("source", source),
		)
		return
	}
	c.stopTimer()
	c.recorder.RecordAuthEvent(event, "applied")

	if err != nil {
		c.logger.Warn("セッションの復元に失敗しました",
			slog.String("source", source),
			slog.String("error", err.Error()),
		)
		c.reset(StatusUnauthenticated, toAPIError(err))
		c.markReady()
		return
	}

	if sess == nil || sess.User == nil || sess.Expired(c.now()) {
		c.reset(StatusUnauthenticated, nil)
		c.markReady()
		return
	}

	epoch := c.adopt(sess)
	c.fetchAsync(epoch, sess.User, false, StatusUnauthenticated, true)
}

func (c *Coordinator) onSessionChanged(ev model.AuthEvent) {
	if c.signingIn.Load() > 0 {
		// 手動サインインが自分でプロフィールを取得する
		c.recorder.RecordAuthEvent(ev.Name, "ignored_in_progress")
		return
	}
	if ev.Session == nil || ev.Session.User == nil {
		c.recorder.RecordAuthEvent(ev.Name, "invalid")
		c.reset(StatusError, model.NewInternalError())
		c.settleAndRelease()
		return
	}

	initial := c.settled.CompareAndSwap(false, true)
	failStatus := StatusError
	if initial {
		c.stopTimer()
		failStatus = StatusUnauthenticated
	}

	c.recorder.RecordAuthEvent(ev.Name, "applied")
	epoch := c.adopt(ev.Session)
	c.fetchAsync(epoch, ev.Session.User, true, failStatus, initial)
}

func (c *Coordinator) onSignedOut(ev model.AuthEvent) {
	stale := func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		cur := c.state.Session
		if ev.Session != nil && cur != nil && ev.Session.AccessToken != cur.AccessToken {
			// 既に別のセッションでサインインし直している
			return true
		}
		c.resetLocked(StatusUnauthenticated, nil)
		return false
	}()
	if stale {
		c.recorder.RecordAuthEvent(ev.Name, "ignored_stale")
		return
	}

	c.recorder.RecordAuthEvent(ev.Name, "applied")
	c.settleAndRelease()
}

func (c *Coordinator) onUserUpdated(ev model.AuthEvent) {
	if ev.Session == nil || ev.Session.User == nil {
		c.recorder.RecordAuthEvent(ev.Name, "invalid")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Session == nil || c.state.User == nil || c.state.User.ID != ev.Session.User.ID {
		c.recorder.RecordAuthEvent(ev.Name, "ignored_stale")
		return
	}

	sess := *c.state.Session
	sess.User = ev.Session.User
	next := c.state
	next.Session = &sess
	next.User = ev.Session.User
	c.setLocked(next)
	c.recorder.RecordAuthEvent(ev.Name, "applied")
}

// fetchAsync はプロフィールをバックグラウンドで取得して適用する。
// Close後は取得せず、初期状態の確定待ちだけを解放する。
func (c *Coordinator) fetchAsync(epoch uint64, user *model.AuthUser, force bool, failStatus Status, initial bool) {
	started := c.spawn(func() {
		if initial {
			defer c.markReady()
		}
		p, err := c.profiles.Get(c.ctx, user, force)
		c.applyProfile(epoch, user, p, err, failStatus)
	})
	if !started && initial {
		c.markReady()
	}
}

// spawn はCloseされていなければfnをバックグラウンドで実行してtrueを返す。
// closedの確認とbg.Addを同じロック内で行うため、Closeのbg.Wait開始後にAddされることはない。
func (c *Coordinator) spawn(fn func()) bool {
	c.timerMu.Lock()
	defer c.timerMu.Unlock()
	if c.closed {
		return false
	}
	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		fn()
	}()
	return true
}

func (c *Coordinator) isClosed() bool {
	c.timerMu.Lock()
	defer c.timerMu.Unlock()
	return c.closed
}

// adopt はセッションを採用してepochを進める。
// 同一ユーザーのセッション更新では取得済みのプロフィールを取得完了まで残す。
func (c *Coordinator) adopt(sess *model.Session) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	var keep *model.UserProfile
	if c.state.Profile != nil && c.state.Profile.ID == sess.User.ID {
		keep = c.state.Profile
	}

	c.epoch++
	c.profiles.Clear()
	c.setLocked(Snapshot{
		Status:  StatusAuthenticated,
		Loading: true,
		Session: sess,
		User:    sess.User,
		Profile: keep,
	})
	return c.epoch
}

// applyProfile はプロフィールの取得結果を適用する。
// epochが変わっている場合は結果を破棄する。取得に失敗した場合は状態をクリアしてfailStatusにする。
func (c *Coordinator) applyProfile(epoch uint64, user *model.AuthUser, p *model.UserProfile, err error, failStatus Status) (Snapshot, *model.APIError) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if epoch != c.epoch {
		c.recorder.RecordAuthEvent("profile", "stale")
		c.logger.Debug("セッションが切り替わったためプロフィール取得結果を破棄しました",
			slog.String("user_id", user.ID),
		)
		return c.state, nil
	}

	if p == nil {
		apiErr := toAPIError(err)
		if apiErr == nil {
			apiErr = model.NewProfileNotFoundError(user.ID)
		}
		c.logger.Warn("プロフィールの取得に失敗したため認証状態をクリアしました",
			slog.String("user_id", user.ID),
			slog.String("code", apiErr.Code),
		)
		c.resetLocked(failStatus, apiErr)
		return c.state, apiErr
	}

	next := c.state
	next.Profile = p
	next.Loading = false
	next.Err = nil
	c.setLocked(next)
	return c.state, nil
}

// result はapplyProfileの戻り値をerrorインターフェースに変換する。
func (c *Coordinator) result(snap Snapshot, apiErr *model.APIError) (Snapshot, error) {
	if apiErr != nil {
		return snap, apiErr
	}
	return snap, nil
}

// fail はリモート呼び出しの失敗を正規化し、状態をクリアしてStatusErrorにする。
func (c *Coordinator) fail(msg string, err error) (Snapshot, error) {
	apiErr := toAPIError(err)

	c.mu.Lock()
	c.resetLocked(StatusError, apiErr)
	snap := c.state
	c.mu.Unlock()

	c.logger.Warn(msg,
		slog.String("code", apiErr.Code),
		slog.String("error", apiErr.Message),
	)
	return snap, apiErr
}

func (c *Coordinator) reset(status Status, apiErr *model.APIError) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked(status, apiErr)
}

// resetLocked はセッション・ユーザー・プロフィールとキャッシュをクリアする。c.muを保持して呼ぶ。
func (c *Coordinator) resetLocked(status Status, apiErr *model.APIError) {
	c.epoch++
	c.profiles.Clear()
	c.setLocked(Snapshot{Status: status, Err: apiErr})
}

func (c *Coordinator) setLoading() {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.state
	next.Loading = true
	next.Err = nil
	c.setLocked(next)
}

func (c *Coordinator) clearLoading() {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.state
	next.Loading = false
	c.setLocked(next)
}

// setLocked は状態を差し替え、ステータスが変わった場合は記録する。c.muを保持して呼ぶ。
func (c *Coordinator) setLocked(next Snapshot) {
	prev := c.state.Status
	c.state = next
	if prev != next.Status {
		c.recorder.RecordTransition(string(next.Status))
		c.logger.Info("認証状態が遷移しました",
			slog.String("from", string(prev)),
			slog.String("to", string(next.Status)),
		)
	}
}

// settleAndRelease は初期状態が未確定であれば確定済みにしてReadyを解放する。
func (c *Coordinator) settleAndRelease() {
	if c.settled.CompareAndSwap(false, true) {
		c.stopTimer()
		c.markReady()
	}
}

func (c *Coordinator) stopTimer() {
	c.timerMu.Lock()
	defer c.timerMu.Unlock()
	if c.timer != nil && c.timer.Stop() {
		c.bg.Done()
	}
	c.timer = nil
}

func (c *Coordinator) markReady() {
	c.readyOnce.Do(func() { close(c.ready) })
}

func (c *Coordinator) isReady() bool {
	select {
	case <-c.ready:
		return true
	default:
		return false
	}
}
