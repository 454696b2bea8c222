package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/franciscosanchezn/gin-recipes-api/internal/models"
	"github.com/franciscosanchezn/gin-recipes-api/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	viewerKey      = "viewer"
	accessTokenKey = "accessToken"
)

// TokenChecker tells whether an access token is still active
type TokenChecker interface {
	IsActive(ctx context.Context, access string) error
}

// Authenticate resolves the viewer from the Authorization header.
// Requests without the header continue as anonymous, requests with a
// bad, expired or revoked token are rejected with 401.
// Both "Bearer <token>" and "Token <token>" are accepted.
func Authenticate(jwtSecret []byte, tokens TokenChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Next()
			return
		}

		tokenString, ok := extractToken(authHeader)
		if !ok {
			respondWithAuthError(c, "Authorization header must use the Bearer or Token scheme")
			return
		}
		if tokenString == "" {
			respondWithAuthError(c, "access token is empty")
			return
		}

		claims, err := parseAndValidateJWT(tokenString, jwtSecret)
		if err != nil {
			respondWithAuthError(c, err.Error())
			return
		}

		viewer, err := viewerFromClaims(claims)
		if err != nil {
			respondWithAuthError(c, err.Error())
			return
		}

		// A valid signature is not enough, logout revokes the stored token
		if err := tokens.IsActive(c.Request.Context(), tokenString); err != nil {
			respondWithAuthError(c, err.Error())
			return
		}

		c.Set(viewerKey, viewer)
		c.Set(accessTokenKey, tokenString)
		c.Next()
	}
}

// RequireAuth rejects anonymous requests
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ViewerFrom(c).Authenticated() {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				models.NewAPIError(models.ErrUnauthorized, "Authentication credentials were not provided"))
			return
		}
		c.Next()
	}
}

// ViewerFrom returns the viewer set by Authenticate, anonymous when there is none
func ViewerFrom(c *gin.Context) services.Viewer {
	if v, ok := c.Get(viewerKey); ok {
		if viewer, ok := v.(services.Viewer); ok {
			return viewer
		}
	}
	return services.Anonymous
}

// AccessToken returns the raw token of the request, empty for anonymous requests
func AccessToken(c *gin.Context) string {
	return c.GetString(accessTokenKey)
}

func extractToken(header string) (string, bool) {
	for _, scheme := range []string{"Bearer ", "Token "} {
		if strings.HasPrefix(header, scheme) {
			return strings.TrimSpace(strings.TrimPrefix(header, scheme)), true
		}
	}
	return "", false
}

func respondWithAuthError(c *gin.Context, description string) {
	c.Header("WWW-Authenticate", `Bearer error="invalid_token"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, models.NewAPIError(models.ErrInvalidToken, description))
}

// parseJWTToken validates the signature using an HMAC method only
func parseJWTToken(tokenString string, jwtSecret []byte) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Reject tokens whose header switches the algorithm family
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v. Expected HMAC", token.Header["alg"])
		}
		return jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("token parsing failed: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is invalid")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims format")
	}
	return claims, nil
}

// parseAndValidateJWT parses the JWT and checks exp, nbf and iat
func parseAndValidateJWT(tokenString string, jwtSecret []byte) (jwt.MapClaims, error) {
	claims, err := parseJWTToken(tokenString, jwtSecret)
	if err != nil {
		return nil, err
	}

	now := time.Now()

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return nil, fmt.Errorf("invalid exp claim: %w", err)
	}
	if exp == nil {
		return nil, fmt.Errorf("token has no expiration")
	}
	if exp.Before(now) {
		return nil, fmt.Errorf("token has expired")
	}

	nbf, err := claims.GetNotBefore()
	if err != nil {
		return nil, fmt.Errorf("invalid nbf claim: %w", err)
	}
	if nbf != nil && nbf.After(now) {
		return nil, fmt.Errorf("token not yet valid")
	}

	iat, err := claims.GetIssuedAt()
	if err != nil {
		return nil, fmt.Errorf("invalid iat claim: %w", err)
	}
	// one minute of leeway for clock skew between instances
	if iat != nil && iat.After(now.Add(time.Minute)) {
		return nil, fmt.Errorf("token issued in the future")
	}

	return claims, nil
}

func viewerFromClaims(claims jwt.MapClaims) (services.Viewer, error) {
	userID, err := extractUserID(claims)
	if err != nil {
		return services.Viewer{}, err
	}
	if userID == 0 {
		return services.Viewer{}, fmt.Errorf("invalid user identifier: cannot be zero")
	}

	role, err := extractRole(claims)
	if err != nil {
		return services.Viewer{}, err
	}
	return services.Viewer{UserID: userID, Role: role}, nil
}

// extractUserID reads the "uid" claim, a numeric string or a JSON number
func extractUserID(claims jwt.MapClaims) (uint, error) {
	if uid, ok := claims["uid"].(string); ok && uid != "" {
		parsedID, err := strconv.ParseUint(uid, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid uid claim format: must be a numeric string, got: %s", uid)
		}
		return uint(parsedID), nil
	}

	if uid, ok := claims["uid"].(float64); ok {
		if uid <= 0 {
			return 0, fmt.Errorf("invalid uid claim: must be positive, got: %f", uid)
		}
		return uint(uid), nil
	}

	return 0, fmt.Errorf("token missing required 'uid' claim")
}

// extractRole requires an explicit, known role
func extractRole(claims jwt.MapClaims) (string, error) {
	role, ok := claims["role"].(string)
	if !ok || role == "" {
		return "", fmt.Errorf("token missing required 'role' claim")
	}

	switch role {
	case models.RoleAdmin, models.RoleUser:
		return role, nil
	default:
		return "", fmt.Errorf("invalid role '%s'. Allowed roles: admin, user", role)
	}
}
