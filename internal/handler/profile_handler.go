package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/profilegate/internal/middleware"
	"github.com/hitoshi/profilegate/internal/model"
	"github.com/hitoshi/profilegate/internal/profile"
	"github.com/hitoshi/profilegate/internal/session"
)

// ProfileServiceInterface はプロフィールハンドラーが必要とするサービスインターフェース。
type ProfileServiceInterface interface {
	GetProfile(ctx context.Context, userID string) (*model.Profile, error)
	UpsertProfile(ctx context.Context, userID string, fullName *string) (*model.Profile, error)
}

var _ ProfileServiceInterface = (*profile.Service)(nil)

// ProfileHandler は/api/profileのHTTPハンドラー。
// メソッドの判定は認証チェックの後に行うため、chiのメソッド別ルーティングは使わない。
type ProfileHandler struct {
	service ProfileServiceInterface
}

// NewProfileHandler はProfileHandlerを生成する。
func NewProfileHandler(service ProfileServiceInterface) *ProfileHandler {
	return &ProfileHandler{service: service}
}

// profileResponse はプロフィールのAPIレスポンス。NULLは空文字として返す。
type profileResponse struct {
	FullName string `json:"full_name"`
}

// ServeHTTP はGETとPUTを処理する。
// 未認証は401、それ以外のメソッドは認証チェック後に405を返す。
// CSRFトークンの検証はPUTに限り、401と405の判定の後に行う。
func (h *ProfileHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := session.UserIDFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, model.NewUnauthenticatedError())
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, r, userID)
	case http.MethodPut:
		h.put(w, r, userID)
	default:
		w.Header().Set("Allow", "GET, PUT")
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	}
}

// get は保存済みのプロフィールを返す。
// GET /api/profile
func (h *ProfileHandler) get(w http.ResponseWriter, r *http.Request, userID string) {
	p, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{FullName: p.DisplayName()})
}

// put はfull_nameを正規化して保存する。
// full_nameが存在し文字列でない場合（nullを含む）は何も保存せず400を返す。
// full_nameが省略された場合、またはボディがJSONオブジェクトでない場合はNULLとして保存する。
// PUT /api/profile
func (h *ProfileHandler) put(w http.ResponseWriter, r *http.Request, userID string) {
	if err := middleware.VerifyCSRF(r); err != nil {
		middleware.WriteError(w, err)
		return
	}

	var raw json.RawMessage
	if err := decodeJSON(w, r, &raw); err != nil {
		middleware.WriteError(w, err)
		return
	}

	fullName, err := fullNameFromBody(raw)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	p, err := h.service.UpsertProfile(r.Context(), userID, fullName)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{FullName: p.DisplayName()})
}

// fullNameFromBody はリクエストボディからfull_nameを取り出す。
// オブジェクト以外のボディはfull_nameなしとして扱う。
func fullNameFromBody(raw json.RawMessage) (*string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, nil
	}

	var body map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &body); err != nil {
		return nil, model.NewInvalidRequestError("")
	}

	value, ok := body["full_name"]
	if !ok {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(value, &s); err != nil || string(value) == "null" {
		return nil, model.NewInvalidFullNameError()
	}
	return &s, nil
}
