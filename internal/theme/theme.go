package theme

import (
	"net/http"
	"time"
)

type Theme string

const (
	Dark  Theme = "dark"
	Light Theme = "light"
)

func Parse(value string) (Theme, bool) {
	switch Theme(value) {
	case Dark, Light:
		return Theme(value), true
	}
	return "", false
}

func (t Theme) Other() Theme {
	if t == Light {
		return Dark
	}
	return Light
}

const cookieMaxAge = 365 * 24 * time.Hour

// Provider holds the light/dark preference. The preference itself lives in
// the browser, in a cookie named after the storage key.
type Provider struct {
	defaultTheme Theme
	storageKey   string
}

func NewProvider(defaultTheme, storageKey string) *Provider {
	t, ok := Parse(defaultTheme)
	if !ok {
		t = Dark
	}
	return &Provider{
		defaultTheme: t,
		storageKey:   storageKey,
	}
}

func (p *Provider) Default() Theme {
	return p.defaultTheme
}

func (p *Provider) StorageKey() string {
	return p.storageKey
}

// Resolve returns the stored preference or the default when the cookie is
// missing or holds an unknown value.
func (p *Provider) Resolve(r *http.Request) Theme {
	cookie, err := r.Cookie(p.storageKey)
	if err != nil {
		return p.defaultTheme
	}
	if t, ok := Parse(cookie.Value); ok {
		return t
	}
	return p.defaultTheme
}

func (p *Provider) Persist(w http.ResponseWriter, t Theme) {
	http.SetCookie(w, &http.Cookie{
		Name:     p.storageKey,
		Value:    string(t),
		Path:     "/",
		MaxAge:   int(cookieMaxAge / time.Second),
		SameSite: http.SameSiteLaxMode,
	})
}

// Toggle flips the current preference and persists the result.
func (p *Provider) Toggle(w http.ResponseWriter, r *http.Request) Theme {
	next := p.Resolve(r).Other()
	p.Persist(w, next)
	return next
}
