package transport

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	goRefresh "github.com/MrEthical07/goRefresh"
)

func testPair() *goRefresh.TokenPair {
	now := time.Now()
	return &goRefresh.TokenPair{
		AccessToken:      "access-abc",
		RefreshToken:     "refresh-xyz",
		AccessExpiresAt:  now.Add(15 * time.Minute),
		RefreshExpiresAt: now.Add(30 * 24 * time.Hour),
	}
}

func TestHeaderTransportRoundTrip(t *testing.T) {
	tr := NewHeaderTransport()
	rec := httptest.NewRecorder()
	tr.WriteTokens(rec, testPair())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header = rec.Header().Clone()

	if got := tr.ReadAccessToken(req); got != "access-abc" {
		t.Fatalf("access token round trip failed: %q", got)
	}
	if got := tr.ReadRefreshToken(req); got != "refresh-xyz" {
		t.Fatalf("refresh token round trip failed: %q", got)
	}
}

func TestHeaderTransportRejectsNonBearer(t *testing.T) {
	tr := NewHeaderTransport()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	if got := tr.ReadAccessToken(req); got != "" {
		t.Fatalf("expected empty token for non-Bearer scheme, got %q", got)
	}

	req.Header.Del("Authorization")
	if got := tr.ReadAccessToken(req); got != "" {
		t.Fatalf("expected empty token for absent header, got %q", got)
	}
}

func TestHeaderTransportClear(t *testing.T) {
	tr := NewHeaderTransport()
	rec := httptest.NewRecorder()
	tr.WriteTokens(rec, testPair())
	tr.ClearTokens(rec)

	if rec.Header().Get("Authorization") != "" || rec.Header().Get("X-Refresh-Token") != "" {
		t.Fatal("ClearTokens left headers behind")
	}
}

func TestHeaderTransportNilPair(t *testing.T) {
	tr := NewHeaderTransport()
	rec := httptest.NewRecorder()
	tr.WriteTokens(rec, nil)
	if len(rec.Header()) != 0 {
		t.Fatalf("nil pair wrote headers: %v", rec.Header())
	}
}

func TestCookieTransportRoundTrip(t *testing.T) {
	tr, err := NewCookieTransport(CookieConfig{
		Secure:      true,
		HTTPOnly:    true,
		RefreshPath: "/auth/refresh",
	})
	if err != nil {
		t.Fatalf("NewCookieTransport failed: %v", err)
	}

	rec := httptest.NewRecorder()
	tr.WriteTokens(rec, testPair())

	cookies := rec.Result().Cookies()
	if len(cookies) != 2 {
		t.Fatalf("expected 2 cookies, got %d", len(cookies))
	}

	byName := map[string]*http.Cookie{}
	for _, c := range cookies {
		byName[c.Name] = c
	}

	access, ok := byName["access_token"]
	if !ok || access.Value != "access-abc" {
		t.Fatalf("access cookie missing or wrong: %+v", access)
	}
	if access.Path != "/" || !access.Secure || !access.HttpOnly {
		t.Fatalf("access cookie attributes wrong: %+v", access)
	}

	refresh, ok := byName["refresh_token"]
	if !ok || refresh.Value != "refresh-xyz" {
		t.Fatalf("refresh cookie missing or wrong: %+v", refresh)
	}
	if refresh.Path != "/auth/refresh" {
		t.Fatalf("refresh cookie should be scoped to the refresh endpoint: %q", refresh.Path)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	if got := tr.ReadAccessToken(req); got != "access-abc" {
		t.Fatalf("access cookie round trip failed: %q", got)
	}
	if got := tr.ReadRefreshToken(req); got != "refresh-xyz" {
		t.Fatalf("refresh cookie round trip failed: %q", got)
	}
}

func TestCookieTransportCustomNames(t *testing.T) {
	tr, err := NewCookieTransport(CookieConfig{
		AccessName:  "at",
		RefreshName: "rt",
	})
	if err != nil {
		t.Fatalf("NewCookieTransport failed: %v", err)
	}

	rec := httptest.NewRecorder()
	tr.WriteTokens(rec, testPair())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	if got := tr.ReadAccessToken(req); got != "access-abc" {
		t.Fatalf("custom-named access cookie failed: %q", got)
	}
	if got := tr.ReadRefreshToken(req); got != "refresh-xyz" {
		t.Fatalf("custom-named refresh cookie failed: %q", got)
	}
}

func TestCookieTransportRejectsInsecureSameSiteNone(t *testing.T) {
	_, err := NewCookieTransport(CookieConfig{SameSite: http.SameSiteNoneMode})
	if !errors.Is(err, goRefresh.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}

	if _, err := NewCookieTransport(CookieConfig{SameSite: http.SameSiteNoneMode, Secure: true}); err != nil {
		t.Fatalf("Secure SameSite=None should be accepted: %v", err)
	}
}

func TestCookieTransportClearTokens(t *testing.T) {
	tr, err := NewCookieTransport(CookieConfig{})
	if err != nil {
		t.Fatalf("NewCookieTransport failed: %v", err)
	}

	rec := httptest.NewRecorder()
	tr.ClearTokens(rec)

	cookies := rec.Result().Cookies()
	if len(cookies) != 2 {
		t.Fatalf("expected 2 expired cookies, got %d", len(cookies))
	}
	for _, c := range cookies {
		if c.Value != "" {
			t.Fatalf("cleared cookie %q carries a value", c.Name)
		}
		if c.MaxAge != -1 {
			t.Fatalf("cleared cookie %q should have MaxAge -1, got %d", c.Name, c.MaxAge)
		}
	}
}
