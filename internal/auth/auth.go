// Package auth identifies who is driving a logging session. Discord OAuth2
// is used in production; MockAuth signs everyone in as a fixed dev user.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

const (
	sessionCookie = "session_id"
	stateCookie   = "oauth_state"
)

// User is an authenticated identity. ID is what sessions are bound to.
type User struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"globalName,omitempty"`
	Avatar     string `json:"avatar,omitempty"`
}

// DisplayName prefers the global name over the username
func (u *User) DisplayName() string {
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}

// Login is a signed in browser session
type Login struct {
	ID        string
	User      *User
	Token     *oauth2.Token
	CreatedAt time.Time
	ExpiresAt time.Time
}

// AuthProvider is implemented by every login backend
type AuthProvider interface {
	LoginHandler(w http.ResponseWriter, r *http.Request)
	CallbackHandler(w http.ResponseWriter, r *http.Request)
	LogoutHandler(w http.ResponseWriter, r *http.Request)
	Middleware(next http.Handler) http.Handler
}

type ctxKey struct{}

// WithUser stores u in ctx
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// UserFrom returns the user stored in ctx, or nil
func UserFrom(ctx context.Context) *User {
	u, _ := ctx.Value(ctxKey{}).(*User)
	return u
}

// GetUser returns the authenticated user of a request
func GetUser(r *http.Request) *User {
	return UserFrom(r.Context())
}

// loginStore keeps logins by cookie value
type loginStore struct {
	mu        sync.RWMutex
	logins    map[string]*Login
	now       func() time.Time
	lastPrune time.Time
}

// loginPruneInterval bounds how often put sweeps expired logins
const loginPruneInterval = time.Minute

func newLoginStore() *loginStore {
	return &loginStore{logins: make(map[string]*Login), now: time.Now}
}

func (s *loginStore) put(l *Login) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if now := s.now(); now.Sub(s.lastPrune) >= loginPruneInterval {
		s.pruneLocked(now)
	}
	s.logins[l.ID] = l
}

// prune removes expired logins and returns how many were dropped
func (s *loginStore) prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pruneLocked(s.now())
}

func (s *loginStore) pruneLocked(now time.Time) int {
	n := 0
	for id, l := range s.logins {
		if now.After(l.ExpiresAt) {
			delete(s.logins, id)
			n++
		}
	}
	s.lastPrune = now
	return n
}

func (s *loginStore) count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.logins)
}

func (s *loginStore) get(id string) (*Login, bool) {
	s.mu.RLock()
	l, ok := s.logins[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if s.now().After(l.ExpiresAt) {
		s.delete(id)
		return nil, false
	}
	return l, true
}

func (s *loginStore) delete(id string) {
	s.mu.Lock()
	delete(s.logins, id)
	s.mu.Unlock()
}

// fromRequest resolves the login cookie of r
func (s *loginStore) fromRequest(r *http.Request) (*Login, bool) {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return nil, false
	}
	return s.get(cookie.Value)
}

func setLoginCookie(w http.ResponseWriter, l *Login, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    l.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  l.ExpiresAt,
	})
}

func clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:   name,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": "not signed in"})
}

func randomToken() string {
	b := make([]byte, 32)
	rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}
