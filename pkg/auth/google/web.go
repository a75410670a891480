package google

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	nanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/oauth2"
)

const (
	SessionCookie = "teller_session"
	stateCookie   = "teller_oauth_state"

	DefaultSessionTTL = 8 * time.Hour
)

var ErrSecretTooShort = errors.New("google: session secret must be at least 32 bytes")

// WebConfig configures the web flow.
type WebConfig struct {
	ClientID     string        `mapstructure:"client_id" yaml:"client_id"`
	ClientSecret string        `mapstructure:"client_secret" yaml:"client_secret"`
	RedirectURL  string        `mapstructure:"redirect_url" yaml:"redirect_url"`
	SessionKey   string        `mapstructure:"session_key" yaml:"session_key"`
	SessionTTL   time.Duration `mapstructure:"session_ttl" yaml:"session_ttl"`
	// Secure marks cookies HTTPS-only.
	Secure bool `mapstructure:"secure" yaml:"secure"`
}

// SessionClaims is the payload of the session cookie.
type SessionClaims struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// ProtectedResponse is served to signed-in users.
type ProtectedResponse struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

// Web runs the authorization-code flow for a browser app.
type Web struct {
	cfg      WebConfig
	opts     options
	oauth    *oauth2.Config
	verifier *Verifier
	secret   []byte
}

// NewWeb validates cfg.
func NewWeb(cfg WebConfig, opts ...Option) (*Web, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("google: web client id and secret are required")
	}
	if cfg.RedirectURL == "" {
		return nil, errors.New("google: web redirect url is required")
	}
	if len(cfg.SessionKey) < 32 {
		return nil, ErrSecretTooShort
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	o := newOptions(opts)
	return &Web{
		cfg:  cfg,
		opts: o,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     o.endpoint,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       Scopes,
		},
		verifier: &Verifier{clientID: cfg.ClientID, opts: o},
		secret:   []byte(cfg.SessionKey),
	}, nil
}

// Handler serves /login, /oauth2callback, /protected and /logout.
func (w *Web) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/login", w.login)
	r.Get("/oauth2callback", w.callback)
	r.Get("/protected", w.protected)
	r.Get("/logout", w.logout)
	return r
}

func (w *Web) login(rw http.ResponseWriter, r *http.Request) {
	state, err := nanoid.New()
	if err != nil {
		http.Error(rw, "internal error", http.StatusInternalServerError)
		return
	}
	http.SetCookie(rw, w.cookie(stateCookie, state, 10*time.Minute))
	http.Redirect(rw, r, w.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline), http.StatusFound)
}

func (w *Web) callback(rw http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	c, err := r.Cookie(stateCookie)
	if err != nil || c.Value == "" || c.Value != q.Get("state") {
		http.Error(rw, "invalid oauth state", http.StatusBadRequest)
		return
	}
	http.SetCookie(rw, w.cookie(stateCookie, "", -1))

	tok, err := w.oauth.Exchange(w.opts.context(r.Context()), q.Get("code"))
	if err != nil {
		w.opts.logger.WarnContext(r.Context(), "code exchange failed", "err", err)
		http.Error(rw, "code exchange failed", http.StatusBadGateway)
		return
	}
	raw, err := idTokenOf(tok)
	if err != nil {
		http.Error(rw, err.Error(), http.StatusBadGateway)
		return
	}
	id, err := w.verifier.Verify(r.Context(), raw)
	if err != nil {
		http.Error(rw, err.Error(), http.StatusUnauthorized)
		return
	}

	session, err := w.Issue(id)
	if err != nil {
		http.Error(rw, "internal error", http.StatusInternalServerError)
		return
	}
	http.SetCookie(rw, w.cookie(SessionCookie, session, w.cfg.SessionTTL))
	w.opts.logger.InfoContext(r.Context(), "user signed in", "email", id.Email)
	http.Redirect(rw, r, "/protected", http.StatusFound)
}

func (w *Web) protected(rw http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		http.Redirect(rw, r, "/login", http.StatusFound)
		return
	}
	claims, err := w.Parse(c.Value)
	if err != nil {
		http.Redirect(rw, r, "/login", http.StatusFound)
		return
	}
	rw.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(rw).Encode(ProtectedResponse{
		Email:   claims.Email,
		Name:    claims.Name,
		Message: "Authenticated via Google SSO",
	})
}

func (w *Web) logout(rw http.ResponseWriter, r *http.Request) {
	http.SetCookie(rw, w.cookie(SessionCookie, "", -1))
	rw.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = rw.Write([]byte("Logged out"))
}

// Issue signs a session for id.
func (w *Web) Issue(id *Identity) (string, error) {
	jti, err := nanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	now := w.opts.clock()
	claims := SessionClaims{
		Email: id.Email,
		Name:  id.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   id.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(w.cfg.SessionTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(w.secret)
}

// Parse validates a session token.
func (w *Web) Parse(token string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return w.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(w.opts.clock), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func (w *Web) cookie(name, value string, ttl time.Duration) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   w.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if ttl < 0 {
		c.MaxAge = -1
	} else {
		c.MaxAge = int(ttl / time.Second)
	}
	return c
}
