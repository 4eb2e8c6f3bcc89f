// Package accounts authenticates users and manages users, groups and capabilities.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mamadbah2/sitecost/internal/config"
	"github.com/mamadbah2/sitecost/internal/domain/models"
	"github.com/mamadbah2/sitecost/internal/repository"
	"github.com/mamadbah2/sitecost/internal/repository/cache"
)

// PrincipalTTL bounds how long a resolved principal is cached.
const PrincipalTTL = 10 * time.Minute

// Cache is the subset of the JSON cache used for principals.
type Cache interface {
	GetJSON(ctx context.Context, key string, dst interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Claims are the JWT claims issued at login.
type Claims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

// Token is a signed access token and its owner.
type Token struct {
	AccessToken string           `json:"access_token"`
	TokenType   string           `json:"token_type"`
	ExpiresAt   time.Time        `json:"expires_at"`
	Principal   models.Principal `json:"principal"`
}

// Service handles authentication and account administration.
type Service struct {
	store      repository.Store
	cache      Cache
	secret     []byte
	tokenTTL   time.Duration
	bcryptCost int
	now        func() time.Time
	logger     *zap.Logger
}

// NewService wires a new accounts service. A nil cache disables principal caching.
func NewService(store repository.Store, principalCache Cache, cfg config.AuthConfig, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if principalCache == nil {
		principalCache = cache.Noop{}
	}
	return &Service{
		store:      store,
		cache:      principalCache,
		secret:     []byte(cfg.JWTSecret),
		tokenTTL:   cfg.TokenTTL,
		bcryptCost: bcrypt.DefaultCost,
		now:        time.Now,
		logger:     logger,
	}
}

// Login checks username and password and issues an access token. Unknown users,
// wrong passwords and inactive accounts all fail with ErrUnauthorized.
func (s *Service) Login(ctx context.Context, username, password string) (Token, error) {
	user, err := s.store.FindUserByUsername(ctx, username)
	if errors.Is(err, models.ErrNotFound) {
		return Token{}, fmt.Errorf("login %q: %w", username, models.ErrUnauthorized)
	}
	if err != nil {
		return Token{}, err
	}
	if !user.IsActive {
		return Token{}, fmt.Errorf("login %q: account disabled: %w", username, models.ErrUnauthorized)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return Token{}, fmt.Errorf("login %q: %w", username, models.ErrUnauthorized)
	}

	principal, err := s.Principal(ctx, user.ID)
	if err != nil {
		return Token{}, err
	}

	now := s.now()
	expires := now.Add(s.tokenTTL)
	claims := Claims{
		UserID: user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}

	s.logger.Info("User logged in", zap.Int64("user_id", user.ID))
	return Token{AccessToken: signed, TokenType: "Bearer", ExpiresAt: expires.UTC(), Principal: principal}, nil
}

// ParseToken verifies a token and returns the user id it was issued to.
func (s *Service) ParseToken(raw string) (int64, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", models.ErrUnauthorized, err)
	}
	if claims.UserID <= 0 {
		return 0, fmt.Errorf("%w: token carries no user", models.ErrUnauthorized)
	}
	return claims.UserID, nil
}

// Authenticate resolves the principal behind a bearer token.
func (s *Service) Authenticate(ctx context.Context, raw string) (models.Principal, error) {
	userID, err := s.ParseToken(raw)
	if err != nil {
		return models.Principal{}, err
	}
	return s.Principal(ctx, userID)
}

// Principal resolves a user's identity and capability set. Deleted or inactive users
// fail with ErrUnauthorized. Staff principals hold every capability.
func (s *Service) Principal(ctx context.Context, userID int64) (models.Principal, error) {
	key := cache.PrincipalKey(userID)

	var cached models.Principal
	hit, err := s.cache.GetJSON(ctx, key, &cached)
	if err != nil {
		s.logger.Warn("principal cache read failed", zap.Int64("user_id", userID), zap.Error(err))
	}
	if hit {
		return cached, nil
	}

	user, err := s.store.GetUser(ctx, userID)
	if errors.Is(err, models.ErrNotFound) {
		return models.Principal{}, fmt.Errorf("user %d: %w", userID, models.ErrUnauthorized)
	}
	if err != nil {
		return models.Principal{}, err
	}
	if !user.IsActive {
		return models.Principal{}, fmt.Errorf("user %d disabled: %w", userID, models.ErrUnauthorized)
	}

	var caps []models.Capability
	if user.IsStaff {
		caps = make([]models.Capability, 0, len(models.CapabilityCatalog))
		for _, c := range models.CapabilityCatalog {
			caps = append(caps, c.Code)
		}
		caps = models.SortCapabilities(caps)
	} else if caps, err = s.store.UserCapabilities(ctx, userID); err != nil {
		return models.Principal{}, err
	}

	principal := models.Principal{
		UserID:       user.ID,
		Username:     user.Username,
		IsStaff:      user.IsStaff,
		Capabilities: caps,
	}
	if err := s.cache.SetJSON(ctx, key, principal, PrincipalTTL); err != nil {
		s.logger.Warn("principal cache write failed", zap.Int64("user_id", userID), zap.Error(err))
	}
	return principal, nil
}

// Capabilities lists the capability catalog.
func (s *Service) Capabilities() []models.CapabilityInfo {
	out := make([]models.CapabilityInfo, len(models.CapabilityCatalog))
	copy(out, models.CapabilityCatalog)
	return out
}

func (s *Service) forget(ctx context.Context, userIDs ...int64) {
	if len(userIDs) == 0 {
		return
	}
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = cache.PrincipalKey(id)
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.logger.Warn("principal cache invalidation failed", zap.Int64s("user_ids", userIDs), zap.Error(err))
	}
}

func (s *Service) hash(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}
