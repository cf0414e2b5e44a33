package auth

import (
	"net/http"
	"time"
)

const (
	SessionCookieName = "auth-token"
	StateCookieName   = "oauth-state"
)

type CookieConfig struct {
	Domain string
	Secure bool
}

func (c CookieConfig) SetSession(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Domain:   c.Domain,
		MaxAge:   int(TokenTTL / time.Second),
		Secure:   c.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c CookieConfig) ClearSession(w http.ResponseWriter) {
	c.clear(w, SessionCookieName, "/")
}

func (c CookieConfig) SetState(w http.ResponseWriter, state string) {
	http.SetCookie(w, &http.Cookie{
		Name:     StateCookieName,
		Value:    state,
		Path:     "/api/auth",
		Domain:   c.Domain,
		MaxAge:   int((10 * time.Minute) / time.Second),
		Secure:   c.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c CookieConfig) ClearState(w http.ResponseWriter) {
	c.clear(w, StateCookieName, "/api/auth")
}

func (c CookieConfig) clear(w http.ResponseWriter, name, path string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		Domain:   c.Domain,
		MaxAge:   -1,
		Secure:   c.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
