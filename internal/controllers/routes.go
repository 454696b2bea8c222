package controllers

import (
	"time"

	"github.com/franciscosanchezn/gin-recipes-api/internal/auth"
	"github.com/franciscosanchezn/gin-recipes-api/internal/media"
	"github.com/franciscosanchezn/gin-recipes-api/internal/middleware"
	"github.com/franciscosanchezn/gin-recipes-api/internal/models"
	"github.com/franciscosanchezn/gin-recipes-api/internal/ratelimit"
	"github.com/franciscosanchezn/gin-recipes-api/internal/services"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Deps are the collaborators the API is built from
type Deps struct {
	DB           *gorm.DB
	Storage      *media.Storage
	JWTSecret    string
	TokenTTL     time.Duration
	PageSize     int
	LoginLimiter *ratelimit.KeyedRateLimiter
}

// API wires the services to their controllers
type API struct {
	Tokens  *auth.TokenService
	Catalog services.CatalogService
	Users   services.UserService

	jwtSecret    []byte
	loginLimiter *ratelimit.KeyedRateLimiter

	users   *UserController
	auth    *AuthController
	recipes RecipeController
	catalog *CatalogController
}

// NewAPI builds every service and controller from deps
func NewAPI(deps Deps) *API {
	composer := services.NewComposer(deps.DB, deps.Storage)
	users := services.NewUserService(deps.DB, composer)
	follows := services.NewFollowService(deps.DB, composer)
	catalog := services.NewCatalogService(deps.DB)
	recipes := services.NewRecipeService(deps.DB, composer, deps.Storage)
	memberships := services.NewMembershipService(deps.DB, composer)
	shoppingList := services.NewShoppingListService(deps.DB)
	tokens := auth.NewTokenService(deps.DB, users, deps.JWTSecret, deps.TokenTTL)

	limiter := deps.LoginLimiter
	if limiter == nil {
		limiter = ratelimit.New(1, 5)
	}

	return &API{
		Tokens:       tokens,
		Catalog:      catalog,
		Users:        users,
		jwtSecret:    []byte(deps.JWTSecret),
		loginLimiter: limiter,
		users:        NewUserController(users, follows, deps.PageSize),
		auth:         NewAuthController(tokens),
		recipes:      NewRecipeController(recipes, memberships, shoppingList, deps.PageSize),
		catalog:      NewCatalogController(catalog),
	}
}

// RegisterRoutes mounts the API under /api. Every route resolves the
// viewer first, anonymous requests are allowed on the read routes.
func (a *API) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.Use(middleware.Authenticate(a.jwtSecret, a.Tokens))

	authRequired := middleware.RequireAuth()
	adminOnly := middleware.RequireRole(models.RoleAdmin)

	tokens := api.Group("/auth/token")
	{
		tokens.POST("/login", middleware.RateLimit(a.loginLimiter), a.auth.Login)
		tokens.POST("/logout", authRequired, a.auth.Logout)
	}

	users := api.Group("/users")
	{
		users.GET("", a.users.ListUsers)
		users.POST("", a.users.Register)
		users.GET("/me", authRequired, a.users.Me)
		users.POST("/set_password", authRequired, a.users.SetPassword)
		users.GET("/subscriptions", authRequired, a.users.Subscriptions)
		users.GET("/:id", a.users.GetUser)
		users.POST("/:id/subscribe", authRequired, a.users.Subscribe)
		users.DELETE("/:id/subscribe", authRequired, a.users.Unsubscribe)
	}

	tags := api.Group("/tags")
	{
		tags.GET("", a.catalog.ListTags)
		tags.GET("/:id", a.catalog.GetTag)
		tags.POST("", adminOnly, a.catalog.CreateTag)
		tags.PATCH("/:id", adminOnly, a.catalog.UpdateTag)
	}

	ingredients := api.Group("/ingredients")
	{
		ingredients.GET("", a.catalog.ListIngredients)
		ingredients.GET("/:id", a.catalog.GetIngredient)
		ingredients.POST("", adminOnly, a.catalog.CreateIngredient)
		ingredients.PATCH("/:id", adminOnly, a.catalog.UpdateIngredient)
	}

	recipes := api.Group("/recipes")
	{
		recipes.GET("", a.recipes.ListRecipes)
		recipes.POST("", authRequired, a.recipes.CreateRecipe)
		recipes.GET("/download_shopping_cart", authRequired, a.recipes.DownloadShoppingCart)
		recipes.GET("/:id", a.recipes.GetRecipe)
		recipes.PATCH("/:id", authRequired, a.recipes.UpdateRecipe)
		recipes.DELETE("/:id", authRequired, a.recipes.DeleteRecipe)
		recipes.POST("/:id/favorite", authRequired, a.recipes.AddFavorite)
		recipes.DELETE("/:id/favorite", authRequired, a.recipes.RemoveFavorite)
		recipes.POST("/:id/shopping_cart", authRequired, a.recipes.AddToShoppingCart)
		recipes.DELETE("/:id/shopping_cart", authRequired, a.recipes.RemoveFromShoppingCart)
	}
}
