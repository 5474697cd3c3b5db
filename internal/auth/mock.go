package auth

import (
	"net/http"
	"time"
)

// DevUserHeader lets local tools act as another user with MockAuth
const DevUserHeader = "X-Dev-User"

// MockAuth signs everyone in without a provider, for local development
type MockAuth struct {
	logins *loginStore
	user   User
}

// NewMockAuth creates a mock provider whose logins belong to user. A zero
// user becomes a fixed dev identity.
func NewMockAuth(user User) *MockAuth {
	if user.ID == "" {
		user = User{ID: "dev-user-123", Username: "devuser", GlobalName: "Mario"}
	}
	return &MockAuth{logins: newLoginStore(), user: user}
}

// LoginHandler creates a login immediately
func (m *MockAuth) LoginHandler(w http.ResponseWriter, r *http.Request) {
	u := m.user
	login := &Login{
		ID:        randomToken(),
		User:      &u,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}
	m.logins.put(login)
	setLoginCookie(w, login, false)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (m *MockAuth) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (m *MockAuth) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		m.logins.delete(cookie.Value)
	}
	clearCookie(w, sessionCookie)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Middleware accepts a login cookie or the dev user header
func (m *MockAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var user *User
		if login, ok := m.logins.fromRequest(r); ok {
			user = login.User
		} else if id := r.Header.Get(DevUserHeader); id != "" {
			user = &User{ID: id, Username: id}
		}
		if user == nil {
			unauthorized(w)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}
