package transport

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	goRefresh "github.com/MrEthical07/goRefresh"
)

// Transport reads and writes token pairs on HTTP messages. Implementations
// must be symmetric: a pair written by WriteTokens is readable by the Read
// methods of the same transport.
type Transport interface {
	// ReadAccessToken extracts the access token, or "" when absent.
	ReadAccessToken(r *http.Request) string
	// ReadRefreshToken extracts the refresh token, or "" when absent.
	ReadRefreshToken(r *http.Request) string
	// WriteTokens attaches both tokens of the pair to the response.
	WriteTokens(w http.ResponseWriter, pair *goRefresh.TokenPair)
	// ClearTokens removes both tokens from the client.
	ClearTokens(w http.ResponseWriter)
}

const (
	authorizationHeader = "Authorization"
	refreshTokenHeader  = "X-Refresh-Token"
	bearerPrefix        = "Bearer "
)

// HeaderTransport carries the access token in the Authorization header as a
// Bearer credential and the refresh token in X-Refresh-Token. Suited to API
// clients that store tokens themselves.
type HeaderTransport struct{}

// NewHeaderTransport returns a header-based transport.
func NewHeaderTransport() *HeaderTransport {
	return &HeaderTransport{}
}

func (t *HeaderTransport) ReadAccessToken(r *http.Request) string {
	value := r.Header.Get(authorizationHeader)
	if !strings.HasPrefix(value, bearerPrefix) {
		return ""
	}
	return value[len(bearerPrefix):]
}

func (t *HeaderTransport) ReadRefreshToken(r *http.Request) string {
	return r.Header.Get(refreshTokenHeader)
}

func (t *HeaderTransport) WriteTokens(w http.ResponseWriter, pair *goRefresh.TokenPair) {
	if pair == nil {
		return
	}
	w.Header().Set(authorizationHeader, bearerPrefix+pair.AccessToken)
	w.Header().Set(refreshTokenHeader, pair.RefreshToken)
}

func (t *HeaderTransport) ClearTokens(w http.ResponseWriter) {
	w.Header().Del(authorizationHeader)
	w.Header().Del(refreshTokenHeader)
}

// CookieConfig shapes the cookies written by a cookie transport.
type CookieConfig struct {
	// AccessName and RefreshName default to "access_token" and
	// "refresh_token".
	AccessName  string
	RefreshName string

	// Path defaults to "/". RefreshPath, when set, scopes the refresh cookie
	// more narrowly, typically to the refresh endpoint.
	Path        string
	RefreshPath string

	Domain   string
	Secure   bool
	HTTPOnly bool
	SameSite http.SameSite
}

// CookieTransport carries both tokens in cookies. Suited to browser clients;
// the refresh cookie should be HTTPOnly and narrowly scoped.
type CookieTransport struct {
	cfg CookieConfig
}

// NewCookieTransport validates cfg and returns a cookie-based transport.
// SameSite=None without Secure is rejected because browsers drop such
// cookies.
func NewCookieTransport(cfg CookieConfig) (*CookieTransport, error) {
	if cfg.AccessName == "" {
		cfg.AccessName = "access_token"
	}
	if cfg.RefreshName == "" {
		cfg.RefreshName = "refresh_token"
	}
	if cfg.Path == "" {
		cfg.Path = "/"
	}
	if cfg.SameSite == 0 {
		cfg.SameSite = http.SameSiteLaxMode
	}
	if cfg.SameSite == http.SameSiteNoneMode && !cfg.Secure {
		return nil, fmt.Errorf("%w: SameSite=None cookies require Secure", goRefresh.ErrConfiguration)
	}
	return &CookieTransport{cfg: cfg}, nil
}

func (t *CookieTransport) ReadAccessToken(r *http.Request) string {
	c, err := r.Cookie(t.cfg.AccessName)
	if err != nil {
		return ""
	}
	return c.Value
}

func (t *CookieTransport) ReadRefreshToken(r *http.Request) string {
	c, err := r.Cookie(t.cfg.RefreshName)
	if err != nil {
		return ""
	}
	return c.Value
}

func (t *CookieTransport) WriteTokens(w http.ResponseWriter, pair *goRefresh.TokenPair) {
	if pair == nil {
		return
	}
	http.SetCookie(w, t.cookie(t.cfg.AccessName, pair.AccessToken, t.cfg.Path, pair.AccessExpiresAt))
	http.SetCookie(w, t.cookie(t.cfg.RefreshName, pair.RefreshToken, t.refreshPath(), pair.RefreshExpiresAt))
}

func (t *CookieTransport) ClearTokens(w http.ResponseWriter) {
	expired := time.Unix(0, 0)
	http.SetCookie(w, t.cookie(t.cfg.AccessName, "", t.cfg.Path, expired))
	http.SetCookie(w, t.cookie(t.cfg.RefreshName, "", t.refreshPath(), expired))
}

func (t *CookieTransport) refreshPath() string {
	if t.cfg.RefreshPath != "" {
		return t.cfg.RefreshPath
	}
	return t.cfg.Path
}

func (t *CookieTransport) cookie(name, value, path string, expires time.Time) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Domain:   t.cfg.Domain,
		Secure:   t.cfg.Secure,
		HttpOnly: t.cfg.HTTPOnly,
		SameSite: t.cfg.SameSite,
		Expires:  expires,
	}
	if value == "" {
		c.MaxAge = -1
	}
	return c
}
