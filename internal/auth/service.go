package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/centuary/backend-dealer/internal/common"
	"github.com/centuary/backend-dealer/internal/crm"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultSessionTTL = 12 * time.Hour

	claimDealerCode = "dealerCode"
	claimDealerName = "dealerName"
)

// Service authenticates dealers against their CRM record and manages the
// portal's token material. The CRM holds the credential hash; only session
// state lives here.
type Service struct {
	crm        crm.Client
	sessions   *SessionStore
	secret     []byte
	accessTTL  time.Duration
	sessionTTL time.Duration
	now        func() time.Time
	signer     jwa.SignatureAlgorithm
	validator  TokenValidator
	issuer     string
	audience   string
	clockSkew  time.Duration
}

// Config configures the auth service.
type Config struct {
	CRM        crm.Client
	Sessions   *SessionStore
	Secret     string
	AccessTTL  time.Duration
	SessionTTL time.Duration
	Issuer     string
	Audience   string
	ClockSkew  time.Duration
}

// LoginResult bundles token material returned after a successful login.
type LoginResult struct {
	Dealer        common.Dealer `json:"dealer"`
	AccessToken   string        `json:"access_token"`
	RefreshToken  string        `json:"refresh_token"`
	AccessExpiry  time.Time     `json:"access_expires_at"`
	RefreshExpiry time.Time     `json:"refresh_expires_at"`
}

// RefreshResult represents the outcome of a refresh operation.
type RefreshResult struct {
	AccessToken   string    `json:"access_token"`
	AccessExpiry  time.Time `json:"access_expires_at"`
	RefreshToken  string    `json:"refresh_token"`
	RefreshExpiry time.Time `json:"refresh_expires_at"`
}

// NewService constructs a Service instance with sane defaults.
func NewService(cfg Config) (*Service, error) {
	if cfg.CRM == nil {
		return nil, errors.New("auth: crm client is required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("auth: session store is required")
	}
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errors.New("auth: secret is required")
	}
	accessTTL := cfg.AccessTTL
	if accessTTL <= 0 {
		accessTTL = defaultAccessTTL
	}
	sessionTTL := cfg.SessionTTL
	if sessionTTL <= 0 {
		sessionTTL = defaultSessionTTL
	}

	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = "centuary-portal"
	}
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		audience = "dealer-web"
	}
	clockSkew := cfg.ClockSkew
	if clockSkew < 0 {
		clockSkew = 0
	}

	return &Service{
		crm:        cfg.CRM,
		sessions:   cfg.Sessions,
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		sessionTTL: sessionTTL,
		now:        time.Now,
		signer:     jwa.HS256,
		validator: TokenValidator{
			Issuer:    issuer,
			Audience:  audience,
			ClockSkew: clockSkew,
			Algorithm: jwa.HS256,
		},
		issuer:    issuer,
		audience:  audience,
		clockSkew: clockSkew,
	}, nil
}

// WithNow allows tests to override the time provider.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Login verifies the dealer code and portal password against the CRM record
// and issues a JWT/refresh token pair.
func (s *Service) Login(ctx context.Context, dealerCode, password, userAgent, ip string) (LoginResult, error) {
	code := strings.TrimSpace(strings.ToUpper(dealerCode))
	if code == "" || password == "" {
		return LoginResult{}, invalidCredentials(nil)
	}

	record, err := s.crm.GetDealer(ctx, code)
	if err != nil {
		// Unknown dealer and CRM outage look identical to the caller.
		return LoginResult{}, invalidCredentials(err)
	}
	ok, err := argon2id.ComparePasswordAndHash(password, record.PortalHash)
	if err != nil || !ok {
		return LoginResult{}, invalidCredentials(err)
	}

	dealer := common.Dealer{ID: record.ID, Code: record.Code, Name: record.Name}
	accessToken, accessExpiry, err := s.signAccessToken(dealer)
	if err != nil {
		return LoginResult{}, fmt.Errorf("sign access token: %w", err)
	}
	refreshToken, refreshExpiry, err := s.createSession(ctx, dealer, userAgent, ip)
	if err != nil {
		return LoginResult{}, fmt.Errorf("create session: %w", err)
	}

	return LoginResult{
		Dealer:        dealer,
		AccessToken:   accessToken,
		RefreshToken:  refreshToken,
		AccessExpiry:  accessExpiry,
		RefreshExpiry: refreshExpiry,
	}, nil
}

// Logout revokes the refresh token.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	token := strings.TrimSpace(refreshToken)
	if token == "" {
		return nil
	}
	return s.sessions.Delete(ctx, common.Sha256Hex(token))
}

// Refresh validates and rotates a refresh token, issuing a fresh access
// token pair. The presented token is revoked whether or not rotation
// succeeds.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (RefreshResult, error) {
	token := strings.TrimSpace(refreshToken)
	if token == "" {
		return RefreshResult{}, invalidRefresh(nil)
	}

	hashed := common.Sha256Hex(token)
	session, err := s.sessions.Get(ctx, hashed)
	if err != nil {
		return RefreshResult{}, invalidRefresh(err)
	}
	if s.now().After(session.ExpiresAt) {
		_ = s.sessions.Delete(ctx, hashed)
		return RefreshResult{}, invalidRefresh(nil)
	}
	_ = s.sessions.Delete(ctx, hashed)

	dealer := common.Dealer{ID: session.DealerID, Code: session.DealerCode, Name: session.DealerName}
	accessToken, accessExpiry, err := s.signAccessToken(dealer)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("sign access token: %w", err)
	}
	newRefresh, refreshExpiry, err := s.createSession(ctx, dealer, session.UserAgent, session.IP)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("rotate session: %w", err)
	}

	return RefreshResult{
		AccessToken:   accessToken,
		AccessExpiry:  accessExpiry,
		RefreshToken:  newRefresh,
		RefreshExpiry: refreshExpiry,
	}, nil
}

// ParseAccessToken validates an access token and returns the dealer identity
// embedded in its claims.
func (s *Service) ParseAccessToken(token string) (common.Dealer, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return common.Dealer{}, common.NewAppError("UNAUTHORIZED", "missing token", httpStatusUnauthorized, nil)
	}
	algorithm, err := extractTokenAlgorithm(trimmed)
	if err != nil {
		return common.Dealer{}, common.NewAppError("UNAUTHORIZED", "invalid token", httpStatusUnauthorized, err)
	}
	if s.validator.Algorithm != "" && algorithm != s.validator.Algorithm {
		return common.Dealer{}, common.NewAppError("UNAUTHORIZED", "invalid token", httpStatusUnauthorized, fmt.Errorf("unexpected token algorithm %s", algorithm))
	}
	parsed, err := jwt.ParseString(trimmed, jwt.WithKey(algorithm, s.secret))
	if err != nil {
		return common.Dealer{}, common.NewAppError("UNAUTHORIZED", "invalid token", httpStatusUnauthorized, err)
	}
	if err := s.validator.Validate(parsed, algorithm, s.now()); err != nil {
		return common.Dealer{}, common.NewAppError("UNAUTHORIZED", "invalid token", httpStatusUnauthorized, err)
	}
	dealer := common.Dealer{ID: parsed.Subject()}
	if v, ok := parsed.Get(claimDealerCode); ok {
		dealer.Code, _ = v.(string)
	}
	if v, ok := parsed.Get(claimDealerName); ok {
		dealer.Name, _ = v.(string)
	}
	if dealer.ID == "" {
		return common.Dealer{}, common.NewAppError("UNAUTHORIZED", "invalid token", httpStatusUnauthorized, errors.New("auth: token missing subject"))
	}
	return dealer, nil
}

func extractTokenAlgorithm(token string) (jwa.SignatureAlgorithm, error) {
	message, err := jws.ParseString(token)
	if err != nil {
		return "", err
	}
	signatures := message.Signatures()
	if len(signatures) == 0 {
		return "", errors.New("auth: token contains no signatures")
	}
	var algorithm jwa.SignatureAlgorithm
	for _, sig := range signatures {
		headers := sig.ProtectedHeaders()
		if headers == nil {
			return "", errors.New("auth: token missing protected headers")
		}
		alg := headers.Algorithm()
		if alg == "" {
			return "", errors.New("auth: token missing algorithm")
		}
		if alg == jwa.NoSignature {
			return "", errors.New("auth: token uses none algorithm")
		}
		if algorithm == "" {
			algorithm = alg
		} else if algorithm != alg {
			return "", fmt.Errorf("auth: mixed token algorithms detected")
		}
	}
	return algorithm, nil
}

func (s *Service) signAccessToken(dealer common.Dealer) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.accessTTL)
	builder := jwt.NewBuilder().
		Subject(dealer.ID).
		Issuer(s.issuer).
		Audience([]string{s.audience}).
		IssuedAt(now).
		NotBefore(now.Add(-s.clockSkew)).
		Expiration(expiresAt).
		Claim(claimDealerCode, dealer.Code).
		Claim(claimDealerName, dealer.Name)
	token, err := builder.Build()
	if err != nil {
		return "", time.Time{}, err
	}
	signed, err := jwt.Sign(token, jwt.WithKey(s.signer, s.secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return string(signed), expiresAt, nil
}

func (s *Service) createSession(ctx context.Context, dealer common.Dealer, userAgent, ip string) (string, time.Time, error) {
	token, err := generateToken(48)
	if err != nil {
		return "", time.Time{}, err
	}
	expiresAt := s.now().Add(s.sessionTTL)
	session := Session{
		DealerID:   dealer.ID,
		DealerCode: dealer.Code,
		DealerName: dealer.Name,
		UserAgent:  strings.TrimSpace(userAgent),
		IP:         strings.TrimSpace(ip),
		ExpiresAt:  expiresAt,
	}
	if err := s.sessions.Create(ctx, common.Sha256Hex(token), session, s.sessionTTL); err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

func generateToken(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func invalidCredentials(err error) error {
	return common.NewAppError("INVALID_CREDENTIALS", "invalid dealer code or password", httpStatusUnauthorized, err)
}

func invalidRefresh(err error) error {
	return common.NewAppError("UNAUTHORIZED", "invalid refresh token", httpStatusUnauthorized, err)
}

const httpStatusUnauthorized = 401
