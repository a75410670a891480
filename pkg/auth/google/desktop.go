package google

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	nanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/oauth2"
)

// DesktopConfig configures the desktop flow.
type DesktopConfig struct {
	ClientID string `mapstructure:"client_id" yaml:"client_id"`
	// RedirectURL is served locally, e.g. http://localhost:8080/callback.
	// Port 0 picks a free port at login time.
	RedirectURL string `mapstructure:"redirect_url" yaml:"redirect_url"`
	// DeepLink is the app URL the browser is sent back to, e.g. teller://auth.
	DeepLink string `mapstructure:"deep_link" yaml:"deep_link"`
}

var ErrDeepLinkMismatch = errors.New("deep link does not target this app")

// Desktop runs the PKCE flow for a native app.
type Desktop struct {
	cfg      DesktopConfig
	opts     options
	verifier *Verifier

	mu      sync.Mutex
	pending map[string]string // state -> PKCE verifier
}

// NewDesktop validates cfg.
func NewDesktop(cfg DesktopConfig, opts ...Option) (*Desktop, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("google: desktop client id is required")
	}
	if _, err := url.Parse(cfg.RedirectURL); err != nil || cfg.RedirectURL == "" {
		return nil, fmt.Errorf("google: invalid redirect url %q", cfg.RedirectURL)
	}
	link, err := url.Parse(cfg.DeepLink)
	if err != nil || link.Scheme == "" {
		return nil, fmt.Errorf("google: invalid deep link %q", cfg.DeepLink)
	}
	o := newOptions(opts)
	return &Desktop{
		cfg:      cfg,
		opts:     o,
		verifier: &Verifier{clientID: cfg.ClientID, opts: o},
		pending:  make(map[string]string),
	}, nil
}

func (d *Desktop) oauth(redirect string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:    d.cfg.ClientID,
		Endpoint:    d.opts.endpoint,
		RedirectURL: redirect,
		Scopes:      Scopes,
	}
}

// AuthURL starts a login and returns the URL to open in the browser. The
// PKCE verifier stays in memory keyed by the opaque state.
func (d *Desktop) AuthURL(redirect string) (string, error) {
	state, err := nanoid.New()
	if err != nil {
		return "", err
	}
	verifier := oauth2.GenerateVerifier()

	d.mu.Lock()
	d.pending[state] = verifier
	d.mu.Unlock()

	return d.oauth(redirect).AuthCodeURL(state, oauth2.S256ChallengeOption(verifier)), nil
}

// Exchange redeems code for the deep link carrying the ID token.
func (d *Desktop) Exchange(ctx context.Context, redirect, state, code string) (string, error) {
	d.mu.Lock()
	verifier, ok := d.pending[state]
	delete(d.pending, state)
	d.mu.Unlock()
	if !ok {
		return "", errors.New("google: unknown or reused state")
	}

	tok, err := d.oauth(redirect).Exchange(d.opts.context(ctx), code, oauth2.VerifierOption(verifier))
	if err != nil {
		return "", fmt.Errorf("google: exchange code: %w", err)
	}
	idToken, err := idTokenOf(tok)
	if err != nil {
		return "", err
	}
	return d.cfg.DeepLink + "?" + url.Values{"id_token": {idToken}}.Encode(), nil
}

var redirectPage = template.Must(template.New("redirect").Parse(`<html><body>
<script>window.location.href = {{.}};</script>
<h1>Authentication successful! Returning to application...</h1>
</body></html>`))

type loginResult struct {
	link string
	err  error
}

// Login serves the local callback, calls open with the authorization URL
// and waits for Google to redirect back. It returns the deep link the
// browser was sent to.
func (d *Desktop) Login(ctx context.Context, open func(authURL string) error) (string, error) {
	redirect, err := url.Parse(d.cfg.RedirectURL)
	if err != nil {
		return "", err
	}
	ln, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return "", fmt.Errorf("google: listen for callback: %w", err)
	}
	// The host must stay as registered with Google; only port 0 is replaced.
	if redirect.Port() == "0" {
		_, port, _ := net.SplitHostPort(ln.Addr().String())
		redirect.Host = net.JoinHostPort(redirect.Hostname(), port)
	}
	redirectURL := redirect.String()

	results := make(chan loginResult, 1)
	mux := http.NewServeMux()
	mux.HandleFunc(redirect.Path, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if e := q.Get("error"); e != "" {
			http.Error(w, "Authentication failed: "+e, http.StatusBadRequest)
			d.report(results, loginResult{err: fmt.Errorf("google: %s", e)})
			return
		}
		link, err := d.Exchange(r.Context(), redirectURL, q.Get("state"), q.Get("code"))
		if err != nil {
			http.Error(w, "Authentication failed", http.StatusBadRequest)
			d.report(results, loginResult{err: err})
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = redirectPage.Execute(w, link)
		d.report(results, loginResult{link: link})
	})

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.report(results, loginResult{err: err})
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	authURL, err := d.AuthURL(redirectURL)
	if err != nil {
		return "", err
	}
	d.opts.logger.InfoContext(ctx, "waiting for google callback", "redirect_url", redirectURL)
	if err := open(authURL); err != nil {
		return "", fmt.Errorf("google: open browser: %w", err)
	}

	select {
	case res := <-results:
		return res.link, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (d *Desktop) report(results chan<- loginResult, res loginResult) {
	select {
	case results <- res:
	default:
	}
}

// HandleDeepLink verifies the ID token carried by a deep link addressed
// to this app.
func (d *Desktop) HandleDeepLink(ctx context.Context, rawURL string) (*Identity, error) {
	got, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeepLinkMismatch, err)
	}
	want, _ := url.Parse(d.cfg.DeepLink)
	if got.Scheme != want.Scheme || got.Host != want.Host {
		return nil, ErrDeepLinkMismatch
	}
	return d.verifier.Verify(ctx, got.Query().Get("id_token"))
}
