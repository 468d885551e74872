// Package client はサーバーの認証APIとプロフィールAPIを利用するクライアントを提供する。
// Providerがセッション状態（Cookie jar）を保持し、Dispatcherが認証アクションの結果を、
// Watcherが保護ビューのセッション監視を扱う。
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/hitoshi/profilegate/internal/middleware"
	"github.com/hitoshi/profilegate/internal/model"
	"github.com/hitoshi/profilegate/internal/session"
)

// User はセッションに紐づくユーザー。
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session はサーバーが返すセッション情報。
type Session struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"expires_at"`
	User        User   `json:"user"`
}

// Expiry は有効期限を返す。
func (s *Session) Expiry() time.Time {
	return time.Unix(s.ExpiresAt, 0)
}

// SignUpResult はサインアップの結果。メール確認待ちの場合Sessionはnil。
type SignUpResult struct {
	Session *Session `json:"session"`
	User    User     `json:"user"`
	Message string   `json:"message,omitempty"`
}

// Event はセッション状態の変化の種類。
type Event string

const (
	EventSignedIn       Event = "SIGNED_IN"
	EventSignedOut      Event = "SIGNED_OUT"
	EventTokenRefreshed Event = "TOKEN_REFRESHED"
)

// Listener はセッション状態の変化を受け取る。SIGNED_OUTの場合sessionはnil。
type Listener func(event Event, s *Session)

// Unsubscribe は購読を解除する。複数回呼んでもよい。
type Unsubscribe func()

// Config はProviderの設定。
type Config struct {
	BaseURL         string        // サーバーのURL（例: "http://localhost:3010"）
	Transport       http.RoundTripper
	Timeout         time.Duration // リクエストごとのタイムアウト
	RefreshInterval time.Duration // 自動更新の確認間隔
	RefreshWindow   time.Duration // 残り有効期間がこれを下回ったら更新する
}

// DefaultConfig はローカル開発用のデフォルト設定を返す。
func DefaultConfig() Config {
	return Config{
		BaseURL:         "http://localhost:3010",
		Timeout:         10 * time.Second,
		RefreshInterval: time.Minute,
		RefreshWindow:   5 * time.Minute,
	}
}

// Provider はサーバーとの接続とローカルのセッション状態を保持する。
// Cookie jarがブラウザのCookieストアに相当する。
type Provider struct {
	baseURL *url.URL
	jar     http.CookieJar
	client  *http.Client
	config  Config
	now     func() time.Time

	mu        sync.Mutex
	current   *Session
	listeners map[int]Listener
	nextID    int
}

// NewProvider はProviderを生成する。
func NewProvider(cfg Config) (*Provider, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	defaults := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = defaults.RefreshInterval
	}
	if cfg.RefreshWindow <= 0 {
		cfg.RefreshWindow = defaults.RefreshWindow
	}

	return &Provider{
		baseURL: base,
		jar:     jar,
		client: &http.Client{
			Jar:       jar,
			Transport: cfg.Transport,
			Timeout:   cfg.Timeout,
			// 認可URLの取得ではリダイレクト先を自分で扱う
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		config:    cfg,
		now:       time.Now,
		listeners: make(map[int]Listener),
	}, nil
}

// Subscribe はセッション状態の変化の購読を開始する。
func (p *Provider) Subscribe(l Listener) Unsubscribe {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = l
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.listeners, id)
			p.mu.Unlock()
		})
	}
}

// ListenerCount は購読中のリスナー数を返す。
func (p *Provider) ListenerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.listeners)
}

// CurrentSession は最後に確認したセッションを返す。ネットワークアクセスはしない。
func (p *Provider) CurrentSession() *Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// GetSession はサーバーに現在のセッションを問い合わせる。未認証の場合はnilを返す。
// GET /auth/v1/session
func (p *Provider) GetSession(ctx context.Context) (*Session, error) {
	var body struct {
		Session *Session `json:"session"`
	}
	if err := p.do(ctx, http.MethodGet, "/auth/v1/session", nil, &body); err != nil {
		return nil, err
	}
	p.setCurrent(body.Session)
	return body.Session, nil
}

// SignInWithPassword はメールアドレスとパスワードでサインインする。
// POST /auth/v1/signin
func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	var s Session
	req := map[string]string{"email": email, "password": password}
	if err := p.do(ctx, http.MethodPost, "/auth/v1/signin", req, &s); err != nil {
		return nil, err
	}
	p.setCurrent(&s)
	p.emit(EventSignedIn, &s)
	return &s, nil
}

// SignUp はアカウントを作成する。セッションが発行された場合のみSIGNED_INを通知する。
// POST /auth/v1/signup
func (p *Provider) SignUp(ctx context.Context, email, password string) (*SignUpResult, error) {
	var result SignUpResult
	req := map[string]string{"email": email, "password": password}
	if err := p.do(ctx, http.MethodPost, "/auth/v1/signup", req, &result); err != nil {
		return nil, err
	}
	if result.Session != nil {
		p.setCurrent(result.Session)
		p.emit(EventSignedIn, result.Session)
	}
	return &result, nil
}

// SignOut はサーバーのセッションを破棄する。
// 通信に失敗した場合もローカルのセッションを削除し、SIGNED_OUTを通知する。
// POST /auth/v1/signout
func (p *Provider) SignOut(ctx context.Context) error {
	err := p.do(ctx, http.MethodPost, "/auth/v1/signout", nil, nil)
	p.clearLocal()
	p.emit(EventSignedOut, nil)
	return err
}

// ResetPasswordForEmail はパスワード再設定メールの送信を依頼する。
// POST /auth/v1/recover
func (p *Provider) ResetPasswordForEmail(ctx context.Context, email string) error {
	return p.do(ctx, http.MethodPost, "/auth/v1/recover", map[string]string{"email": email}, nil)
}

// CompletePasswordReset は再設定メールのトークンで新しいパスワードを設定する。
// POST /auth/v1/recover/confirm
func (p *Provider) CompletePasswordReset(ctx context.Context, token, password string) error {
	return p.do(ctx, http.MethodPost, "/auth/v1/recover/confirm", map[string]string{
		"token":    token,
		"password": password,
	}, nil)
}

// Refresh はセッションを延長する。サーバーが401を返した場合はローカルのセッションを削除する。
// POST /auth/v1/token/refresh
func (p *Provider) Refresh(ctx context.Context) (*Session, error) {
	var s Session
	if err := p.do(ctx, http.MethodPost, "/auth/v1/token/refresh", nil, &s); err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Kind == model.KindUnauthenticated {
			p.clearLocal()
			p.emit(EventSignedOut, nil)
		}
		return nil, err
	}
	p.setCurrent(&s)
	p.emit(EventTokenRefreshed, &s)
	return &s, nil
}

// GetProfile は保存済みの表示名を返す。未設定の場合は空文字。
// GET /api/profile
func (p *Provider) GetProfile(ctx context.Context) (string, error) {
	var body struct {
		FullName string `json:"full_name"`
	}
	if err := p.do(ctx, http.MethodGet, "/api/profile", nil, &body); err != nil {
		return "", err
	}
	return body.FullName, nil
}

// UpsertProfile は表示名を保存し、正規化後の値を返す。
// PUT /api/profile
func (p *Provider) UpsertProfile(ctx context.Context, fullName string) (string, error) {
	var body struct {
		FullName string `json:"full_name"`
	}
	if err := p.do(ctx, http.MethodPut, "/api/profile", map[string]string{"full_name": fullName}, &body); err != nil {
		return "", err
	}
	return body.FullName, nil
}

// OAuthURL はOAuthフローを開始し、IdPの認可URLを返す。
// stateのCookieはjarに保存される。
// GET /auth/v1/authorize
func (p *Provider) OAuthURL(ctx context.Context, provider, redirectTo string) (string, error) {
	q := url.Values{"provider": {provider}, "redirect_to": {redirectTo}}
	req, err := p.newRequest(ctx, http.MethodGet, "/auth/v1/authorize?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to start oauth: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		loc := resp.Header.Get("Location")
		if loc == "" {
			return "", fmt.Errorf("authorize redirect without location")
		}
		return loc, nil
	}
	return "", decodeError(resp)
}

// StartAutoRefresh はctxがキャンセルされるまで、期限が近いセッションを定期的に更新する。
func (p *Provider) StartAutoRefresh(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(p.config.RefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.refreshIfDue(ctx)
			}
		}
	}()
}

// refreshIfDue は残り有効期間がRefreshWindowを下回っている場合にRefreshを呼ぶ。
// 更新したかどうかを返す。
func (p *Provider) refreshIfDue(ctx context.Context) bool {
	s := p.CurrentSession()
	if s == nil {
		return false
	}
	if s.Expiry().Sub(p.now()) > p.config.RefreshWindow {
		return false
	}
	if _, err := p.Refresh(ctx); err != nil {
		slog.Warn("session auto refresh failed", slog.String("error", err.Error()))
	}
	return true
}

func (p *Provider) setCurrent(s *Session) {
	p.mu.Lock()
	p.current = s
	p.mu.Unlock()
}

// clearLocal はjarのセッションCookieとキャッシュを削除する。
func (p *Provider) clearLocal() {
	p.jar.SetCookies(p.baseURL, []*http.Cookie{{Name: session.CookieName, Path: "/", MaxAge: -1}})
	p.setCurrent(nil)
}

// emit はロック外でリスナーを呼び出す。
func (p *Provider) emit(event Event, s *Session) {
	p.mu.Lock()
	listeners := make([]Listener, 0, len(p.listeners))
	for _, l := range p.listeners {
		listeners = append(listeners, l)
	}
	p.mu.Unlock()

	for _, l := range listeners {
		l(event, s)
	}
}

func (p *Provider) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL.String()+path, r)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if method != http.MethodGet && method != http.MethodHead {
		token, err := p.csrfToken(ctx)
		if err != nil {
			return nil, err
		}
		req.Header.Set(middleware.CSRFHeaderName, token)
	}
	return req, nil
}

// do はリクエストを送信し、2xxの場合はoutにデコードする。それ以外はAPIErrorを返す。
func (p *Provider) do(ctx context.Context, method, path string, body, out any) error {
	req, err := p.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

// csrfToken はjarのCSRFトークンを返す。未取得の場合はサーバーから取得する。
func (p *Provider) csrfToken(ctx context.Context) (string, error) {
	for _, c := range p.jar.Cookies(p.baseURL) {
		if c.Name == middleware.CSRFCookieName && c.Value != "" {
			return c.Value, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL.String()+"/api/csrf-token", nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch csrf token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", decodeError(resp)
	}
	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode csrf token: %w", err)
	}
	return body.Token, nil
}

// decodeError はエラーレスポンスをAPIErrorに変換する。
func decodeError(resp *http.Response) error {
	var body middleware.ErrorResponseBody
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err := json.Unmarshal(raw, &body); err != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(raw))
		if body.Error == "" {
			body.Error = http.StatusText(resp.StatusCode)
		}
	}
	return &model.APIError{
		Code:    body.Code,
		Message: body.Error,
		Kind:    kindForStatus(resp.StatusCode),
	}
}

func kindForStatus(status int) model.ErrorKind {
	switch status {
	case http.StatusUnauthorized:
		return model.KindUnauthenticated
	case http.StatusForbidden:
		return model.KindForbidden
	case http.StatusTooManyRequests:
		return model.KindRateLimited
	case http.StatusBadRequest, http.StatusMethodNotAllowed:
		return model.KindValidation
	default:
		return model.KindProvider
	}
}
