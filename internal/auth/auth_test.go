package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

func whoAmI(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := GetUser(r)
		if u == nil {
			t.Error("middleware passed a request without a user")
			return
		}
		w.Write([]byte(u.ID))
	})
}

func cookieNamed(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestUserDisplayName(t *testing.T) {
	if got := (&User{Username: "mario", GlobalName: "Mario"}).DisplayName(); got != "Mario" {
		t.Errorf("DisplayName = %q, want Mario", got)
	}
	if got := (&User{Username: "mario"}).DisplayName(); got != "mario" {
		t.Errorf("DisplayName = %q, want mario", got)
	}
}

func TestLoginStoreExpiry(t *testing.T) {
	s := newLoginStore()
	now := time.Now()
	s.now = func() time.Time { return now }

	s.put(&Login{ID: "a", User: &User{ID: "1"}, ExpiresAt: now.Add(time.Minute)})
	if _, ok := s.get("a"); !ok {
		t.Fatal("fresh login not found")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := s.get("a"); ok {
		t.Error("expired login still valid")
	}
}

func TestLoginStorePrunesExpired(t *testing.T) {
	s := newLoginStore()
	now := time.Now()
	s.now = func() time.Time { return now }

	for _, id := range []string{"a", "b", "c"} {
		s.put(&Login{ID: id, User: &User{ID: id}, ExpiresAt: now.Add(time.Minute)})
	}
	s.put(&Login{ID: "long", User: &User{ID: "4"}, ExpiresAt: now.Add(time.Hour)})

	now = now.Add(2 * time.Minute)
	if n := s.prune(); n != 3 {
		t.Errorf("pruned %d logins, want 3", n)
	}
	if s.count() != 1 {
		t.Errorf("expected 1 login left, got %d", s.count())
	}

	// put sweeps once the prune interval has passed
	s.put(&Login{ID: "d", User: &User{ID: "5"}, ExpiresAt: now.Add(time.Minute)})
	now = now.Add(2 * time.Hour)
	s.put(&Login{ID: "e", User: &User{ID: "6"}, ExpiresAt: now.Add(time.Minute)})
	if s.count() != 1 {
		t.Errorf("expected only the newest login, got %d", s.count())
	}

	// an expired lookup drops the entry
	now = now.Add(2 * time.Minute)
	if _, ok := s.get("e"); ok {
		t.Fatal("expired login still valid")
	}
	if s.count() != 0 {
		t.Errorf("expected empty store, got %d", s.count())
	}
}

func TestMockAuthLoginFlow(t *testing.T) {
	m := NewMockAuth(User{})
	protected := m.Middleware(whoAmI(t))

	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous status = %d, want 401", rec.Code)
	}

	rec = httptest.NewRecorder()
	m.LoginHandler(rec, httptest.NewRequest(http.MethodGet, "/auth/login", nil))
	cookie := cookieNamed(rec.Result().Cookies(), sessionCookie)
	if cookie == nil {
		t.Fatal("login did not set a session cookie")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "dev-user-123" {
		t.Fatalf("signed in: status %d body %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/auth/logout", nil)
	req.AddCookie(cookie)
	m.LogoutHandler(rec, req)

	req = httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("after logout status = %d, want 401", rec.Code)
	}
}

func TestMockAuthDevHeader(t *testing.T) {
	m := NewMockAuth(User{})
	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	req.Header.Set(DevUserHeader, "luigi")
	rec := httptest.NewRecorder()
	m.Middleware(whoAmI(t)).ServeHTTP(rec, req)
	if rec.Body.String() != "luigi" {
		t.Errorf("user = %q, want luigi", rec.Body.String())
	}
}

// fakeDiscord serves the token and users/@me endpoints
func fakeDiscord(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if r.Form.Get("code") != "good-code" {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "tok",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/api/users/@me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"80351110224678912","username":"nelly","global_name":"Nelly"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestDiscordLoginRedirect(t *testing.T) {
	d := NewDiscordAuth(&DiscordConfig{ClientID: "app", RedirectURL: "http://localhost/auth/callback"})

	rec := httptest.NewRecorder()
	d.LoginHandler(rec, httptest.NewRequest(http.MethodGet, "/auth/login", nil))
	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want 307", rec.Code)
	}

	loc, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatal(err)
	}
	if loc.Host != "discord.com" || loc.Path != "/oauth2/authorize" {
		t.Errorf("redirect to %s", loc)
	}
	if loc.Query().Get("scope") != "identify" {
		t.Errorf("scope = %q, want identify", loc.Query().Get("scope"))
	}
	state := cookieNamed(rec.Result().Cookies(), stateCookie)
	if state == nil || state.Value != loc.Query().Get("state") {
		t.Error("state cookie does not match redirect state")
	}
}

func TestDiscordCallback(t *testing.T) {
	srv := fakeDiscord(t)
	d := NewDiscordAuth(&DiscordConfig{ClientID: "app", ClientSecret: "s", BaseURL: srv.URL})

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=good-code&state=xyz", nil)
	req.AddCookie(&http.Cookie{Name: stateCookie, Value: "xyz"})
	rec := httptest.NewRecorder()
	d.CallbackHandler(rec, req)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	cookie := cookieNamed(rec.Result().Cookies(), sessionCookie)
	if cookie == nil {
		t.Fatal("callback did not set a session cookie")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	d.Middleware(whoAmI(t)).ServeHTTP(rec, req)
	if rec.Body.String() != "80351110224678912" {
		t.Errorf("user = %q", rec.Body.String())
	}
}

func TestDiscordCallbackRejects(t *testing.T) {
	srv := fakeDiscord(t)
	d := NewDiscordAuth(&DiscordConfig{ClientID: "app", BaseURL: srv.URL})

	tests := []struct {
		name   string
		query  string
		cookie string
		want   int
	}{
		{"missing state cookie", "code=good-code&state=xyz", "", http.StatusBadRequest},
		{"state mismatch", "code=good-code&state=abc", "xyz", http.StatusBadRequest},
		{"bad code", "code=nope&state=xyz", "xyz", http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/auth/callback?"+tt.query, nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: stateCookie, Value: tt.cookie})
			}
			rec := httptest.NewRecorder()
			d.CallbackHandler(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			if c := cookieNamed(rec.Result().Cookies(), sessionCookie); c != nil {
				t.Error("rejected callback set a session cookie")
			}
		})
	}
}

func TestDiscordMiddlewareJSON401(t *testing.T) {
	d := NewDiscordAuth(&DiscordConfig{ClientID: "app"})
	rec := httptest.NewRecorder()
	d.Middleware(whoAmI(t)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Header().Get("Content-Type"), "application/json") {
		t.Error("401 is not JSON")
	}
}
