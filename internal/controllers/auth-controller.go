package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/franciscosanchezn/gin-recipes-api/internal/middleware"
	"github.com/gin-gonic/gin"
)

// TokenIssuer logs users in and out
type TokenIssuer interface {
	Login(ctx context.Context, email, password string) (string, error)
	Logout(ctx context.Context, access string) error
	TTL() time.Duration
}

// AuthController handles token login and logout
type AuthController struct {
	tokens TokenIssuer
}

// NewAuthController creates a new AuthController
func NewAuthController(tokens TokenIssuer) *AuthController {
	return &AuthController{tokens: tokens}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginResponse struct {
	AuthToken string `json:"auth_token"`
	ExpiresIn int64  `json:"expires_in"`
}

// Login godoc
// @Summary Obtain an access token
// @Description Exchange an email and password for a token, send it as "Token <token>" or "Bearer <token>"
// @Tags auth
// @Accept json
// @Produce json
// @Param credentials body loginRequest true "Credentials"
// @Success 200 {object} loginResponse
// @Failure 400 {object} models.APIError
// @Failure 429 {object} models.APIError
// @Router /api/auth/token/login [post]
func (ac *AuthController) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "email and password are required")
		return
	}

	token, err := ac.tokens.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, loginResponse{
		AuthToken: token,
		ExpiresIn: int64(ac.tokens.TTL() / time.Second),
	})
}

// Logout godoc
// @Summary Revoke the current access token
// @Tags auth
// @Success 204
// @Failure 401 {object} models.APIError
// @Security BearerAuth
// @Router /api/auth/token/logout [post]
func (ac *AuthController) Logout(c *gin.Context) {
	if err := ac.tokens.Logout(c.Request.Context(), middleware.AccessToken(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
