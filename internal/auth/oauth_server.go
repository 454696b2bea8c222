// Package auth issues and revokes the access tokens used by the API.
// Tokens are HS512 signed JWTs issued through a go-oauth2 manager for the
// password grant, and persisted so logout can revoke them.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/franciscosanchezn/gin-recipes-api/internal/config"
	"github.com/franciscosanchezn/gin-recipes-api/internal/models"
	"github.com/go-oauth2/oauth2/v4"
	"github.com/go-oauth2/oauth2/v4/manage"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var log = logrus.New()

func init() {
	log.SetFormatter(&logrus.JSONFormatter{})
	switch config.GetEnvWithDefault("APP_ENV", "development") {
	case "development":
		log.SetLevel(logrus.DebugLevel)
	case "production":
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}
}

// DefaultClientID is the public client the web frontend logs in with
const DefaultClientID = "foodgram-web"

// ErrInvalidToken is returned for unknown, revoked and expired tokens
var ErrInvalidToken = errors.New("invalid or revoked token")

// Authenticator checks login credentials
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
}

// TokenService logs users in and out
type TokenService struct {
	manager *manage.Manager
	tokens  *GormTokenStore
	clients *GormClientStore
	users   Authenticator
	ttl     time.Duration
}

// NewTokenService creates a TokenService issuing tokens valid for ttl
func NewTokenService(db *gorm.DB, users Authenticator, jwtSecret string, ttl time.Duration) *TokenService {
	manager := manage.NewDefaultManager()

	// Password grant issues a single access token, no refresh token
	manager.SetPasswordTokenCfg(&manage.Config{
		AccessTokenExp:    ttl,
		IsGenerateRefresh: false,
	})

	// Use JWT for access tokens
	manager.MapAccessGenerate(NewCustomJWTAccessGenerate([]byte(jwtSecret), jwt.SigningMethodHS512, db))

	tokenStore := NewGormTokenStore(db)
	manager.MustTokenStorage(tokenStore, nil)

	clientStore := NewGormClientStore(db)
	manager.MapClientStorage(clientStore)

	return &TokenService{
		manager: manager,
		tokens:  tokenStore,
		clients: clientStore,
		users:   users,
		ttl:     ttl,
	}
}

// EnsureDefaultClient registers the public web client if it is missing
func (s *TokenService) EnsureDefaultClient(ctx context.Context) error {
	return s.clients.Ensure(ctx, &models.OAuthClient{
		ID:         DefaultClientID,
		Name:       "Foodgram web",
		GrantTypes: string(oauth2.PasswordCredentials),
	})
}

// Login checks the credentials and issues a new access token.
// Wrong credentials surface as the error of the Authenticator.
func (s *TokenService) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.users.Authenticate(ctx, email, password)
	if err != nil {
		return "", err
	}
	return s.Issue(ctx, user)
}

// Issue creates an access token for an already authenticated user
func (s *TokenService) Issue(ctx context.Context, user *models.User) (string, error) {
	ti, err := s.manager.GenerateAccessToken(ctx, oauth2.PasswordCredentials, &oauth2.TokenGenerateRequest{
		ClientID: DefaultClientID,
		UserID:   strconv.FormatUint(uint64(user.ID), 10),
	})
	if err != nil {
		return "", fmt.Errorf("generate access token: %w", err)
	}
	log.WithField("user_id", user.ID).Info("Access token issued")
	return ti.GetAccess(), nil
}

// Logout revokes an access token. Revoking an unknown token is not an error.
func (s *TokenService) Logout(ctx context.Context, access string) error {
	if err := s.manager.RemoveAccessToken(ctx, access); err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

// IsActive reports whether the token was issued here, is not revoked and has not expired
func (s *TokenService) IsActive(ctx context.Context, access string) error {
	ti, err := s.manager.LoadAccessToken(ctx, access)
	if err != nil || ti == nil {
		return ErrInvalidToken
	}
	return nil
}

// PurgeExpired removes expired tokens from the store
func (s *TokenService) PurgeExpired(ctx context.Context) (int64, error) {
	return s.tokens.PurgeExpired(ctx, time.Now())
}

// TTL is the lifetime of issued tokens
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}
