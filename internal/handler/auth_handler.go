// Package handler はHTTPリクエストの受け付けとレスポンス整形を担う。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/DevAnupShourya/snap-stash/internal/auth"
	"github.com/DevAnupShourya/snap-stash/internal/middleware"
	"github.com/DevAnupShourya/snap-stash/internal/model"
)

// AuthHandler は認証エンドポイントのハンドラー。
type AuthHandler struct {
	service *auth.Service
	cookies middleware.CookieConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service *auth.Service, cookies middleware.CookieConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		cookies: cookies,
	}
}

// loginRequest はPIN認証リクエストのボディ。PINはJSON数値で受け取る。
type loginRequest struct {
	PIN *int `json:"pin"`
}

// sessionResponse は認証成功時のpayload。
type sessionResponse struct {
	SessionID string `json:"sessionId"`
	ExpiresAt string `json:"expiresAt"`
}

// Login はPOST /authを処理する。PINが一致すればセッションを発行し、
// HTTP Only CookieとしてセッションIDを返す。
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteAPIError(w, model.NewValidationError("body", "invalid JSON body"))
		return
	}
	if req.PIN == nil {
		middleware.WriteAPIError(w, model.NewValidationError("pin", "pin is required"))
		return
	}
	// 6桁の数値のみ受け付ける
	if *req.PIN < 100000 || *req.PIN > 999999 {
		middleware.WriteAPIError(w, model.NewValidationError("pin", "pin must be a 6 digit number"))
		return
	}

	sess, err := h.service.Authenticate(strconv.Itoa(*req.PIN))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	http.SetCookie(w, h.cookies.NewSessionCookie(sess.ID))
	middleware.WriteSuccess(w, http.StatusOK, "Authenticated successfully", sessionResponse{
		SessionID: sess.ID,
		ExpiresAt: sess.ExpiresAt.Format(time.RFC3339),
	})
}

// Logout はPOST /auth/logoutを処理する。セッションを破棄しCookieを削除する。
// Cookieが無い・未知のIDでも常に200を返す（冪等）。
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil && cookie.Value != "" {
		h.service.Logout(cookie.Value)
	}

	http.SetCookie(w, h.cookies.ClearSessionCookie())
	middleware.WriteSuccess(w, http.StatusOK, "Logged out successfully", nil)
}

// handleServiceError はサービス層のエラーをHTTPレスポンスに変換する。
// APIError以外は詳細をログへ記録し、クライアントには一般的な500を返す。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteAPIError(w, apiErr)
		return
	}
	slog.Error("request failed", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}
