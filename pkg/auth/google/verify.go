package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/aretw0/teller/internal/logging"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/oauth2"
)

// DefaultTokenInfoURL is Google's ID token introspection endpoint.
const DefaultTokenInfoURL = "https://oauth2.googleapis.com/tokeninfo"

// Endpoint is Google's OAuth 2.0 endpoint.
var Endpoint = oauth2.Endpoint{
	AuthURL:   "https://accounts.google.com/o/oauth2/v2/auth",
	TokenURL:  "https://oauth2.googleapis.com/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

// Scopes requested by both flows.
var Scopes = []string{"openid", "email", "profile"}

var (
	ErrInvalidToken     = errors.New("invalid id token")
	ErrAudienceMismatch = errors.New("id token issued to another client")
	ErrMissingIDToken   = errors.New("token response carries no id_token")
)

// Identity is the verified subject of an ID token.
type Identity struct {
	Subject       string    `json:"sub"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"email_verified"`
	Name          string    `json:"name,omitempty"`
	Audience      string    `json:"aud"`
	ExpiresAt     time.Time `json:"exp"`
}

// tokenInfo mirrors the tokeninfo payload, which encodes every value as a string.
type tokenInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified string `json:"email_verified"`
	Name          string `json:"name"`
	Aud           string `json:"aud"`
	Exp           string `json:"exp"`
}

type options struct {
	client       *http.Client
	endpoint     oauth2.Endpoint
	tokenInfoURL string
	logger       *slog.Logger
	clock        func() time.Time
}

// Option configures the flows and the verifier.
type Option func(*options)

// WithHTTPClient replaces the retrying client used for Google calls.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.client = c }
}

// WithEndpoint overrides the OAuth endpoint.
func WithEndpoint(e oauth2.Endpoint) Option {
	return func(o *options) { o.endpoint = e }
}

// WithTokenInfoURL overrides the tokeninfo endpoint.
func WithTokenInfoURL(u string) Option {
	return func(o *options) { o.tokenInfoURL = u }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock injects the time source used for session expiry.
func WithClock(clock func() time.Time) Option {
	return func(o *options) { o.clock = clock }
}

func newOptions(opts []Option) options {
	o := options{
		endpoint:     Endpoint,
		tokenInfoURL: DefaultTokenInfoURL,
		logger:       logging.NewNop(),
		clock:        time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.client == nil {
		rc := retryablehttp.NewClient()
		rc.RetryMax = 2
		rc.HTTPClient.Timeout = 15 * time.Second
		rc.Logger = o.logger
		o.client = rc.StandardClient()
	}
	return o
}

// context returns ctx carrying the client oauth2 should use for exchanges.
func (o options) context(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, o.client)
}

// Verifier checks ID tokens against the tokeninfo endpoint.
type Verifier struct {
	clientID string
	opts     options
}

// NewVerifier returns a Verifier accepting tokens issued to clientID.
func NewVerifier(clientID string, opts ...Option) *Verifier {
	return &Verifier{clientID: clientID, opts: newOptions(opts)}
}

// Verify resolves idToken to an Identity.
func (v *Verifier) Verify(ctx context.Context, idToken string) (*Identity, error) {
	if idToken == "" {
		return nil, ErrInvalidToken
	}
	u := v.opts.tokenInfoURL + "?" + url.Values{"id_token": {idToken}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := v.opts.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tokeninfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		v.opts.logger.WarnContext(ctx, "id token rejected", "status", resp.StatusCode, "body", string(body))
		return nil, ErrInvalidToken
	}

	var info tokenInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if info.Aud != v.clientID {
		return nil, ErrAudienceMismatch
	}

	id := &Identity{
		Subject:       info.Sub,
		Email:         info.Email,
		EmailVerified: info.EmailVerified == "true",
		Name:          info.Name,
		Audience:      info.Aud,
	}
	var exp int64
	if _, err := fmt.Sscan(info.Exp, &exp); err == nil {
		id.ExpiresAt = time.Unix(exp, 0).UTC()
	}
	return id, nil
}

func idTokenOf(tok *oauth2.Token) (string, error) {
	raw, _ := tok.Extra("id_token").(string)
	if raw == "" {
		return "", ErrMissingIDToken
	}
	return raw, nil
}
