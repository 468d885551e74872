package client

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/hitoshi/profilegate/internal/guard"
	"github.com/hitoshi/profilegate/internal/model"
)

// State は保護ビューの表示状態。
type State int

const (
	// StateChecking はセッション確認中。ビューは読み込み表示のみを行う。
	StateChecking State = iota
	// StateReady はセッションが確認され、ビューを表示できる。
	StateReady
	// StateRedirected は/loginへの遷移を指示済み。以後は状態が変わらない。
	StateRedirected
)

func (s State) String() string {
	switch s {
	case StateChecking:
		return "checking"
	case StateReady:
		return "ready"
	case StateRedirected:
		return "redirected"
	default:
		return "unknown"
	}
}

// SessionSource はWatcherが必要とするセッションの取得と購読。
type SessionSource interface {
	GetSession(ctx context.Context) (*Session, error)
	Subscribe(l Listener) Unsubscribe
}

var _ SessionSource = (*Provider)(nil)

// View は状態の変化を受け取る。Mountのロックを保持したまま呼ばれるため、
// 内部からMountのメソッドを同期的に呼んではならない。
type View func(State)

// Watcher は保護ビューのセッションを監視する。
type Watcher struct {
	source SessionSource
	nav    Navigator

	// redirects はマウントが/loginへ遷移を指示した累計回数。
	redirects atomic.Int64
}

// NewWatcher はWatcherを生成する。
func NewWatcher(source SessionSource, nav Navigator) *Watcher {
	return &Watcher{source: source, nav: nav}
}

// Redirects はこのWatcherのマウントが/loginへ遷移を指示した累計回数を返す。
func (w *Watcher) Redirects() int64 {
	return w.redirects.Load()
}

// Mount は保護ビュー1つ分の監視。
type Mount struct {
	ctx     context.Context
	cancel  context.CancelFunc
	watcher *Watcher
	view    View

	mu        sync.Mutex
	state     State
	unmounted bool

	unsubscribe Unsubscribe
	unmountOnce sync.Once
	checked     chan struct{}
	checkOnce   sync.Once
}

// Mount は保護ビューの監視を開始する。
// 購読を1つ確立してからセッションを確認し、セッションがなければ/loginへ遷移する。
// 以後、セッションのない通知を受け取った場合も/loginへ遷移する。
func (w *Watcher) Mount(ctx context.Context, view View) *Mount {
	ctx, cancel := context.WithCancel(ctx)
	m := &Mount{
		ctx:     ctx,
		cancel:  cancel,
		watcher: w,
		view:    view,
		checked: make(chan struct{}),
	}
	m.notify()

	m.unsubscribe = w.source.Subscribe(func(event Event, s *Session) {
		if s == nil {
			m.redirect()
		}
	})

	go func() {
		s, err := w.source.GetSession(ctx)
		if err != nil {
			slog.Warn("session check failed", slog.String("error", err.Error()))
		}
		if s == nil {
			m.redirect()
		} else {
			m.transition(StateReady)
		}
		m.markChecked()
	}()

	return m
}

// Context はマウント中のみ有効なコンテキストを返す。実行中の処理に渡す。
func (m *Mount) Context() context.Context {
	return m.ctx
}

// State は現在の状態を返す。
func (m *Mount) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Checked は初回のセッション確認が終わると閉じられるチャネルを返す。
func (m *Mount) Checked() <-chan struct{} {
	return m.checked
}

// Apply は実行中だった処理の結果を反映する。
// アンマウント後または遷移指示後はfnを呼ばずにfalseを返す。
func (m *Mount) Apply(fn func()) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unmounted || m.state == StateRedirected {
		return false
	}
	fn()
	return true
}

// Unmount は実行中の処理をキャンセルし、購読を解除する。複数回呼んでも一度だけ実行される。
func (m *Mount) Unmount() {
	m.unmountOnce.Do(func() {
		m.mu.Lock()
		m.unmounted = true
		m.mu.Unlock()

		m.cancel()
		if m.unsubscribe != nil {
			m.unsubscribe()
		}
	})
}

// redirect は/loginへの遷移を一度だけ指示する。以後の判定より優先される。
func (m *Mount) redirect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unmounted || m.state == StateRedirected {
		return
	}
	m.state = StateRedirected
	m.watcher.redirects.Add(1)
	m.watcher.nav.Replace(guard.LoginPath)
	if m.view != nil {
		m.view(m.state)
	}
	m.cancel()
}

func (m *Mount) transition(to State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unmounted || m.state == StateRedirected || m.state == to {
		return
	}
	m.state = to
	if m.view != nil {
		m.view(m.state)
	}
}

func (m *Mount) notify() {
	if m.view != nil {
		m.view(m.state)
	}
}

func (m *Mount) markChecked() {
	m.checkOnce.Do(func() { close(m.checked) })
}

// Decide はクライアント側でのルート判定を行う。サーバーと同じ規則を使う。
func Decide(s *Session, class guard.RouteClass) guard.Decision {
	if s == nil {
		return guard.Decide(nil, class)
	}
	return guard.Decide(&model.Session{UserID: s.User.ID, Email: s.User.Email}, class)
}
