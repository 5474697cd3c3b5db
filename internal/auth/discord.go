package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/Billy-Davies-2/bo7-match-logger/internal/logger"
)

// DefaultDiscordBaseURL is the Discord web and API host
const DefaultDiscordBaseURL = "https://discord.com"

// DiscordConfig holds the OAuth2 application settings
type DiscordConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	BaseURL      string
}

// DiscordAuth signs users in with their Discord account
type DiscordAuth struct {
	config       *DiscordConfig
	oauth2Config *oauth2.Config
	logins       *loginStore
	client       *http.Client
}

// NewDiscordAuth creates a Discord login provider
func NewDiscordAuth(config *DiscordConfig) *DiscordAuth {
	if len(config.Scopes) == 0 {
		config.Scopes = []string{"identify"}
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultDiscordBaseURL
	}
	base := strings.TrimSuffix(config.BaseURL, "/")

	return &DiscordAuth{
		config: config,
		oauth2Config: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.RedirectURL,
			Scopes:       config.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   base + "/oauth2/authorize",
				TokenURL:  base + "/api/oauth2/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		logins: newLoginStore(),
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// LoginHandler starts the authorization code flow
func (d *DiscordAuth) LoginHandler(w http.ResponseWriter, r *http.Request) {
	state := randomToken()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   300,
	})
	http.Redirect(w, r, d.oauth2Config.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

// CallbackHandler finishes the flow and sets the login cookie
func (d *DiscordAuth) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(stateCookie)
	if err != nil {
		http.Error(w, "Missing state cookie", http.StatusBadRequest)
		return
	}
	if r.URL.Query().Get("state") != cookie.Value {
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	ctx := context.WithValue(r.Context(), oauth2.HTTPClient, d.client)
	token, err := d.oauth2Config.Exchange(ctx, r.URL.Query().Get("code"))
	if err != nil {
		logger.Warn("Discord token exchange failed", "error", err)
		http.Error(w, "Failed to exchange token", http.StatusBadGateway)
		return
	}

	user, err := d.fetchUser(ctx, token)
	if err != nil {
		logger.Warn("Discord user lookup failed", "error", err)
		http.Error(w, "Failed to get user info", http.StatusBadGateway)
		return
	}

	expires := token.Expiry
	if expires.IsZero() {
		expires = time.Now().Add(7 * 24 * time.Hour)
	}
	login := &Login{
		ID:        randomToken(),
		User:      user,
		Token:     token,
		CreatedAt: time.Now(),
		ExpiresAt: expires,
	}
	d.logins.put(login)

	setLoginCookie(w, login, r.TLS != nil)
	clearCookie(w, stateCookie)
	logger.Info("User signed in", "user_id", user.ID, "username", user.Username)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// LogoutHandler forgets the login
func (d *DiscordAuth) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		d.logins.delete(cookie.Value)
	}
	clearCookie(w, sessionCookie)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Middleware rejects requests without a valid login
func (d *DiscordAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		login, ok := d.logins.fromRequest(r)
		if !ok {
			unauthorized(w)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), login.User)))
	})
}

// fetchUser calls /users/@me with the access token
func (d *DiscordAuth) fetchUser(ctx context.Context, token *oauth2.Token) (*User, error) {
	url := strings.TrimSuffix(d.config.BaseURL, "/") + "/api/users/@me"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	token.SetAuthHeader(req)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("users/@me: %s - %s", resp.Status, string(body))
	}

	var me struct {
		ID         string `json:"id"`
		Username   string `json:"username"`
		GlobalName string `json:"global_name"`
		Avatar     string `json:"avatar"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&me); err != nil {
		return nil, err
	}
	if me.ID == "" {
		return nil, fmt.Errorf("users/@me: response has no id")
	}

	return &User{ID: me.ID, Username: me.Username, GlobalName: me.GlobalName, Avatar: me.Avatar}, nil
}
