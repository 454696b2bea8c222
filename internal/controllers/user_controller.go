package controllers

import (
	"net/http"

	"github.com/franciscosanchezn/gin-recipes-api/internal/middleware"
	"github.com/franciscosanchezn/gin-recipes-api/internal/services"
	"github.com/gin-gonic/gin"
)

// UserController handles accounts and subscriptions
type UserController struct {
	users     services.UserService
	follows   services.FollowService
	paginator paginator
}

// NewUserController creates a new UserController
func NewUserController(users services.UserService, follows services.FollowService, pageSize int) *UserController {
	return &UserController{users: users, follows: follows, paginator: paginator{defaultSize: pageSize}}
}

// registeredUser is the sign up response, it has no subscription flag
type registeredUser struct {
	ID        uint   `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// ListUsers godoc
// @Summary List users
// @Tags users
// @Produce json
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} pageResponse[services.UserView]
// @Router /api/users [get]
func (uc *UserController) ListUsers(c *gin.Context) {
	page, ok := uc.paginator.page(c)
	if !ok {
		return
	}
	users, err := uc.users.List(c.Request.Context(), middleware.ViewerFrom(c), page)
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, page, users)
}

// Register godoc
// @Summary Register a user
// @Tags users
// @Accept json
// @Produce json
// @Param user body services.RegisterInput true "Account"
// @Success 201 {object} registeredUser
// @Failure 400 {object} models.APIError
// @Router /api/users [post]
func (uc *UserController) Register(c *gin.Context) {
	var in services.RegisterInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	user, err := uc.users.Register(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, registeredUser{
		ID:        user.ID,
		Email:     user.Email,
		Username:  user.Username,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	})
}

// Me godoc
// @Summary Current user
// @Tags users
// @Produce json
// @Success 200 {object} services.UserView
// @Failure 401 {object} models.APIError
// @Security BearerAuth
// @Router /api/users/me [get]
func (uc *UserController) Me(c *gin.Context) {
	user, err := uc.users.Me(c.Request.Context(), middleware.ViewerFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// GetUser godoc
// @Summary Get a user profile
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} services.UserView
// @Failure 404 {object} models.APIError
// @Router /api/users/{id} [get]
func (uc *UserController) GetUser(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	user, err := uc.users.Get(c.Request.Context(), middleware.ViewerFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// SetPassword godoc
// @Summary Change the current user's password
// @Tags users
// @Accept json
// @Param body body services.SetPasswordInput true "Passwords"
// @Success 204
// @Failure 400 {object} models.APIError
// @Security BearerAuth
// @Router /api/users/set_password [post]
func (uc *UserController) SetPassword(c *gin.Context) {
	var in services.SetPasswordInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	if err := uc.users.SetPassword(c.Request.Context(), middleware.ViewerFrom(c), in); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Subscriptions godoc
// @Summary Authors the current user follows
// @Tags users
// @Produce json
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Param recipes_limit query int false "Recipes shown per author"
// @Success 200 {object} pageResponse[services.SubscriptionView]
// @Security BearerAuth
// @Router /api/users/subscriptions [get]
func (uc *UserController) Subscriptions(c *gin.Context) {
	page, ok := uc.paginator.page(c)
	if !ok {
		return
	}
	subs, err := uc.follows.Subscriptions(c.Request.Context(), middleware.ViewerFrom(c), page,
		services.ParseRecipesLimit(c.Query("recipes_limit")))
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, page, subs)
}

// Subscribe godoc
// @Summary Follow an author
// @Tags users
// @Produce json
// @Param id path int true "Author ID"
// @Param recipes_limit query int false "Recipes shown"
// @Success 201 {object} services.SubscriptionView
// @Failure 400 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/users/{id}/subscribe [post]
func (uc *UserController) Subscribe(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	sub, err := uc.follows.Subscribe(c.Request.Context(), middleware.ViewerFrom(c), id,
		services.ParseRecipesLimit(c.Query("recipes_limit")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sub)
}

// Unsubscribe godoc
// @Summary Stop following an author
// @Tags users
// @Param id path int true "Author ID"
// @Success 204
// @Failure 400 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/users/{id}/subscribe [delete]
func (uc *UserController) Unsubscribe(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := uc.follows.Unsubscribe(c.Request.Context(), middleware.ViewerFrom(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
