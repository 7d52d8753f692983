// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/DevAnupShourya/snap-stash/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// sessionIDContextKey はリクエストコンテキストにセッションIDを格納するためのキー。
var sessionIDContextKey = contextKey("session_id")

// SessionAuthorizer はセッション検証に必要なインターフェース。
// auth.Serviceの部分集合として定義する。
type SessionAuthorizer interface {
	Authorize(sessionID string) (*model.Session, error)
}

// NewSessionMiddleware はHTTP Only Cookieからセッションを読み取り、
// 有効性を検証するミドルウェアを返す。有効なセッションは検証のたびに
// 有効期限が延長される（スライディング有効期限）。
// Cookie未提示は「Authentication required」、期限切れは「Session expired」として
// 区別して401を返す。期限切れの場合はCookieも削除し、クライアントに
// キャッシュ済みセッションIDを破棄させる。
func NewSessionMiddleware(authorizer SessionAuthorizer, cookies CookieConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				WriteAPIError(w, model.NewAuthRequiredError())
				return
			}

			sess, err := authorizer.Authorize(cookie.Value)
			if err != nil {
				var apiErr *model.APIError
				if errors.As(err, &apiErr) {
					// 期限切れを検出したらCookieを無効化する
					if apiErr.Code == model.ErrCodeSessionExpired {
						http.SetCookie(w, cookies.ClearSessionCookie())
					}
					WriteAPIError(w, apiErr)
					return
				}
				slog.Error("session authorization failed",
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}

			ctx := context.WithValue(r.Context(), sessionIDContextKey, sess.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionIDFromContext はリクエストコンテキストからセッションIDを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func SessionIDFromContext(ctx context.Context) (string, error) {
	sessionID, ok := ctx.Value(sessionIDContextKey).(string)
	if !ok || sessionID == "" {
		return "", fmt.Errorf("session ID not found in context")
	}
	return sessionID, nil
}

// ContextWithSessionID はコンテキストにセッションIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDContextKey, sessionID)
}
