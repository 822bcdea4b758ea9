package auth

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/rocket-approval/mortgage-agent/internal/config"
	"github.com/rocket-approval/mortgage-agent/internal/logger"
	"github.com/rocket-approval/mortgage-agent/internal/session"
)

var (
	ErrNotAuthorized = errors.New("user has not authorized access")
	ErrNotConfigured = errors.New("oauth client is not configured")
	ErrInvalidState  = errors.New("invalid oauth state")
)

const stateTTL = 10 * time.Minute

// TokenKeyPrefix marks stored OAuth tokens.
const TokenKeyPrefix = "token:"

// Provider runs the OAuth2 authorization code flow against Google and keeps the resulting tokens.
type Provider struct {
	oauth  *oauth2.Config
	store  session.Store
	secret []byte
	now    func() time.Time
}

// Option customises a Provider.
type Option func(*Provider)

// WithEndpoint points the provider at a different authorization server.
func WithEndpoint(endpoint oauth2.Endpoint) Option {
	return func(p *Provider) {
		p.oauth.Endpoint = endpoint
	}
}

// NewProvider builds a provider from the google client registration.
// An empty secret signs state with a per-process random key.
func NewProvider(cfg config.GoogleConfig, secret string, store session.Store, opts ...Option) *Provider {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			logger.Warn("Failed to generate state key: %v", err)
		}
	}

	p := &Provider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint:     google.Endpoint,
		},
		store:  store,
		secret: key,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Configured reports whether a client id and secret are present.
func (p *Provider) Configured() bool {
	return p.oauth.ClientID != "" && p.oauth.ClientSecret != ""
}

// Scopes returns the scopes requested during authorization.
func (p *Provider) Scopes() []string {
	return p.oauth.Scopes
}

type stateClaims struct {
	Nonce string `json:"nonce"`
	jwt.RegisteredClaims
}

// AuthorizationURL returns the consent URL for userID.
func (p *Provider) AuthorizationURL(userID string) (string, error) {
	if !p.Configured() {
		return "", ErrNotConfigured
	}

	now := p.now()
	claims := stateClaims{
		Nonce: uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(stateTTL)),
		},
	}
	state, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("sign state: %w", err)
	}

	return p.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent")), nil
}

// VerifyState returns the user id bound to a state value.
func (p *Provider) VerifyState(state string) (string, error) {
	var claims stateClaims
	_, err := jwt.ParseWithClaims(state, &claims, func(t *jwt.Token) (interface{}, error) {
		return p.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(p.now))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidState, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidState)
	}
	return claims.Subject, nil
}

// Complete validates the state, exchanges the code and stores the token.
func (p *Provider) Complete(ctx context.Context, state, code string) (string, *oauth2.Token, error) {
	userID, err := p.VerifyState(state)
	if err != nil {
		return "", nil, err
	}

	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return "", nil, fmt.Errorf("exchange authorization code: %w", err)
	}

	if err := p.SaveToken(ctx, userID, token); err != nil {
		return "", nil, err
	}

	logger.Info("Stored authorization for %s", userID)
	return userID, token, nil
}

func tokenKey(userID string) string {
	return TokenKeyPrefix + userID
}

// SaveToken persists a token for userID.
func (p *Provider) SaveToken(ctx context.Context, userID string, token *oauth2.Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}
	if err := p.store.Set(ctx, tokenKey(userID), data); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

// Token returns the stored token for userID without refreshing it.
func (p *Provider) Token(ctx context.Context, userID string) (*oauth2.Token, error) {
	data, err := p.store.Get(ctx, tokenKey(userID))
	if errors.Is(err, session.ErrNotFound) {
		return nil, ErrNotAuthorized
	}
	if err != nil {
		return nil, fmt.Errorf("load token: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	return &token, nil
}

// TokenSource returns a refreshing source for userID; refreshed tokens are written back.
func (p *Provider) TokenSource(ctx context.Context, userID string) (oauth2.TokenSource, error) {
	if !p.Configured() {
		return nil, ErrNotConfigured
	}

	token, err := p.Token(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !token.Valid() && token.RefreshToken == "" {
		return nil, ErrNotAuthorized
	}

	return &persistingSource{
		base:   p.oauth.TokenSource(ctx, token),
		p:      p,
		userID: userID,
		last:   token.AccessToken,
	}, nil
}

// Revoke forgets the stored token for userID.
func (p *Provider) Revoke(ctx context.Context, userID string) error {
	return p.store.Delete(ctx, tokenKey(userID))
}

type persistingSource struct {
	base   oauth2.TokenSource
	p      *Provider
	userID string

	mu   sync.Mutex
	last string
}

func (s *persistingSource) Token() (*oauth2.Token, error) {
	token, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if token.AccessToken != s.last {
		s.last = token.AccessToken
		if err := s.p.SaveToken(context.Background(), s.userID, token); err != nil {
			logger.Warn("Failed to persist refreshed token for %s: %v", s.userID, err)
		}
	}
	return token, nil
}
