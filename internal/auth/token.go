package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	DefaultAccessTTL  = time.Hour
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// Claims represents the JWT claims carried by both token classes.
type Claims struct {
	UserID string `json:"id"`
	Role   string `json:"rol"`
	jwt.RegisteredClaims
}

// TokenPair is returned on login.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// TokenService issues and verifies access and refresh tokens. Access tokens
// are stateless; refresh tokens are additionally tracked in a RefreshStore.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	refresh       RefreshStore
	now           func() time.Time
}

// Option configures a TokenService.
type Option func(*TokenService)

// WithAccessTTL overrides the access token lifetime.
func WithAccessTTL(ttl time.Duration) Option {
	return func(s *TokenService) {
		if ttl > 0 {
			s.accessTTL = ttl
		}
	}
}

// WithRefreshTTL overrides the refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) Option {
	return func(s *TokenService) {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
	}
}

// WithClock replaces the time source used for issuing and verifying tokens.
func WithClock(now func() time.Time) Option {
	return func(s *TokenService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewTokenService constructs a TokenService. The two secrets must be
// non-empty and distinct.
func NewTokenService(accessSecret, refreshSecret string, refresh RefreshStore, opts ...Option) (*TokenService, error) {
	accessSecret = strings.TrimSpace(accessSecret)
	refreshSecret = strings.TrimSpace(refreshSecret)
	if accessSecret == "" || refreshSecret == "" {
		return nil, errors.New("access and refresh secrets are required")
	}
	if accessSecret == refreshSecret {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if refresh == nil {
		return nil, errors.New("refresh store is required")
	}

	s := &TokenService{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     DefaultAccessTTL,
		refreshTTL:    DefaultRefreshTTL,
		refresh:       refresh,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// IssueAccessToken signs a short-lived access token for the subject.
func (s *TokenService) IssueAccessToken(userID, role string) (string, error) {
	token, _, err := s.sign(userID, role, s.accessSecret, s.accessTTL)
	return token, err
}

// IssueRefreshToken signs a refresh token and inserts it into the live set.
func (s *TokenService) IssueRefreshToken(ctx context.Context, userID, role string) (string, error) {
	token, expiresAt, err := s.sign(userID, role, s.refreshSecret, s.refreshTTL)
	if err != nil {
		return "", err
	}
	if err := s.refresh.Add(ctx, token, expiresAt); err != nil {
		return "", fmt.Errorf("store refresh token: %w", err)
	}
	return token, nil
}

// IssueTokens issues an access and refresh token for a successful login.
func (s *TokenService) IssueTokens(ctx context.Context, userID, role string) (TokenPair, error) {
	access, err := s.IssueAccessToken(userID, role)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.IssueRefreshToken(ctx, userID, role)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// VerifyAccessToken validates signature and expiry and returns the claims.
func (s *TokenService) VerifyAccessToken(token string) (*Claims, error) {
	return s.parse(token, s.accessSecret)
}

// VerifyRefreshToken requires the token to be in the live set before any
// signature work is done, then validates it cryptographically.
func (s *TokenService) VerifyRefreshToken(ctx context.Context, token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrRevokedToken
	}
	live, err := s.refresh.Contains(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("check refresh token: %w", err)
	}
	if !live {
		return nil, ErrRevokedToken
	}
	return s.parse(token, s.refreshSecret)
}

// RevokeRefreshToken removes exactly this token from the live set. Unknown
// tokens are ignored.
func (s *TokenService) RevokeRefreshToken(ctx context.Context, token string) error {
	if err := s.refresh.Remove(ctx, strings.TrimSpace(token)); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// Refresh exchanges a live refresh token for a new access token. The refresh
// token itself stays valid.
func (s *TokenService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.VerifyRefreshToken(ctx, refreshToken)
	if err != nil {
		return "", err
	}
	return s.IssueAccessToken(claims.UserID, claims.Role)
}

// PruneExpired drops refresh tokens that can no longer verify.
func (s *TokenService) PruneExpired(ctx context.Context) (int, error) {
	return s.refresh.Prune(ctx, s.now())
}

// LiveRefreshTokens reports the size of the refresh token set.
func (s *TokenService) LiveRefreshTokens(ctx context.Context) (int, error) {
	return s.refresh.Len(ctx)
}

func (s *TokenService) sign(userID, role string, secret []byte, ttl time.Duration) (string, time.Time, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", time.Time{}, errors.New("user id is required")
	}
	if strings.TrimSpace(role) == "" {
		return "", time.Time{}, errors.New("role is required")
	}

	now := s.now().UTC()
	expiresAt := now.Add(ttl)
	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

func (s *TokenService) parse(token string, secret []byte) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.UserID) == "" || strings.TrimSpace(claims.Role) == "" {
		return nil, ErrMissingClaims
	}
	return claims, nil
}
