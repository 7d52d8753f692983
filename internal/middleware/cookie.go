package middleware

import "net/http"

// SessionCookieName はセッションIDを保持するCookie名。
const SessionCookieName = "auth_session"

// CookieConfig はセッションCookieの発行設定。
type CookieConfig struct {
	Domain string
	Secure bool
	MaxAge int // 秒
}

// NewSessionCookie は認証成功時に発行するセッションCookieを生成する。
// フロントエンドが別オリジンで動くためSameSite=Noneを使用する。
func (c CookieConfig) NewSessionCookie(sessionID string) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		Domain:   c.Domain,
		MaxAge:   c.MaxAge,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteNoneMode,
	}
}

// ClearSessionCookie はセッションCookieを削除するCookieを生成する。
func (c CookieConfig) ClearSessionCookie() *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   c.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteNoneMode,
	}
}
