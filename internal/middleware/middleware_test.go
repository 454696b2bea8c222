package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/franciscosanchezn/gin-recipes-api/internal/models"
	"github.com/franciscosanchezn/gin-recipes-api/internal/ratelimit"
	"github.com/franciscosanchezn/gin-recipes-api/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("middleware-test-secret")

type fakeTokens struct {
	revoked map[string]bool
}

func (f *fakeTokens) IsActive(_ context.Context, access string) error {
	if f.revoked[access] {
		return errors.New("invalid or revoked token")
	}
	return nil
}

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(testSecret)
	require.NoError(t, err)
	return token
}

func validClaims(uid, role string) jwt.MapClaims {
	return jwt.MapClaims{
		"uid":  uid,
		"role": role,
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
}

func setupRouter(tokens TokenChecker, extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Authenticate(testSecret, tokens))
	handlers := append(extra, func(c *gin.Context) {
		v := ViewerFrom(c)
		c.JSON(http.StatusOK, gin.H{"user_id": v.UserID, "role": v.Role})
	})
	r.GET("/whoami", handlers...)
	return r
}

func doRequest(r http.Handler, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthenticate(t *testing.T) {
	good := signToken(t, validClaims("7", models.RoleUser))
	revoked := signToken(t, validClaims("8", models.RoleUser))
	tokens := &fakeTokens{revoked: map[string]bool{revoked: true}}

	testCases := []struct {
		name       string
		header     string
		wantStatus int
		wantUser   float64
	}{
		{"anonymous", "", http.StatusOK, 0},
		{"bearer scheme", "Bearer " + good, http.StatusOK, 7},
		{"token scheme", "Token " + good, http.StatusOK, 7},
		{"unknown scheme", "Basic abc", http.StatusUnauthorized, 0},
		{"empty token", "Bearer ", http.StatusUnauthorized, 0},
		{"garbage", "Bearer not-a-jwt", http.StatusUnauthorized, 0},
		{"revoked", "Bearer " + revoked, http.StatusUnauthorized, 0},
		{"wrong secret", "Bearer " + func() string {
			tok, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims("7", models.RoleUser)).SignedString([]byte("other"))
			return tok
		}(), http.StatusUnauthorized, 0},
		{"expired", "Bearer " + signToken(t, jwt.MapClaims{
			"uid": "7", "role": models.RoleUser, "exp": time.Now().Add(-time.Minute).Unix(),
		}), http.StatusUnauthorized, 0},
		{"missing role", "Bearer " + signToken(t, jwt.MapClaims{
			"uid": "7", "exp": time.Now().Add(time.Hour).Unix(),
		}), http.StatusUnauthorized, 0},
		{"unknown role", "Bearer " + signToken(t, validClaims("7", "root")), http.StatusUnauthorized, 0},
		{"no expiry", "Bearer " + signToken(t, jwt.MapClaims{"uid": "7", "role": models.RoleUser}), http.StatusUnauthorized, 0},
	}

	r := setupRouter(tokens)
	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(r, tt.header)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, tt.wantUser, body["user_id"])
			} else {
				assert.Equal(t, models.ErrInvalidToken, body["code"])
			}
		})
	}
}

func TestRequireAuth(t *testing.T) {
	r := setupRouter(&fakeTokens{}, RequireAuth())

	w := doRequest(r, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(r, "Bearer "+signToken(t, validClaims("3", models.RoleUser)))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireRole(t *testing.T) {
	r := setupRouter(&fakeTokens{}, RequireRole(models.RoleAdmin))

	assert.Equal(t, http.StatusUnauthorized, doRequest(r, "").Code)
	assert.Equal(t, http.StatusForbidden, doRequest(r, "Bearer "+signToken(t, validClaims("3", models.RoleUser))).Code)
	assert.Equal(t, http.StatusOK, doRequest(r, "Bearer "+signToken(t, validClaims("1", models.RoleAdmin))).Code)
}

func TestViewerFromDefaultsToAnonymous(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Equal(t, services.Anonymous, ViewerFrom(c))
	assert.Empty(t, AccessToken(c))
}

func TestRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/login", RateLimit(ratelimit.New(0.001, 2)), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	codes := []int{}
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)
}

func TestRequestLoggerAndMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.JSONFormatter{})

	r := gin.New()
	r.Use(RequestLogger(logger), Metrics())
	r.GET("/api/recipes/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	req := httptest.NewRequest(http.MethodGet, "/api/recipes/5", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "req-123", line["request_id"])
	assert.Equal(t, "/api/recipes/:id", line["route"])
	assert.Equal(t, float64(404), line["status"])
	assert.Equal(t, "warning", line["level"])
}
