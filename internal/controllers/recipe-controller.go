package controllers

import (
	"net/http"

	"github.com/franciscosanchezn/gin-recipes-api/internal/middleware"
	"github.com/franciscosanchezn/gin-recipes-api/internal/services"
	"github.com/gin-gonic/gin"
)

// RecipeController handles HTTP requests related to recipes
type RecipeController interface {
	// ListRecipes lists recipes newest first with optional filtering
	ListRecipes(c *gin.Context)
	// GetRecipe retrieves a recipe by its ID
	GetRecipe(c *gin.Context)
	// CreateRecipe publishes a recipe for the current user
	CreateRecipe(c *gin.Context)
	// UpdateRecipe partially updates a recipe
	UpdateRecipe(c *gin.Context)
	// DeleteRecipe deletes a recipe by its ID
	DeleteRecipe(c *gin.Context)

	AddFavorite(c *gin.Context)
	RemoveFavorite(c *gin.Context)
	AddToShoppingCart(c *gin.Context)
	RemoveFromShoppingCart(c *gin.Context)
	DownloadShoppingCart(c *gin.Context)
}

type recipeController struct {
	recipes      services.RecipeService
	memberships  services.MembershipService
	shoppingList services.ShoppingListService
	paginator    paginator
}

// NewRecipeController creates a new instance of RecipeController
func NewRecipeController(
	recipes services.RecipeService,
	memberships services.MembershipService,
	shoppingList services.ShoppingListService,
	pageSize int,
) RecipeController {
	return &recipeController{
		recipes:      recipes,
		memberships:  memberships,
		shoppingList: shoppingList,
		paginator:    paginator{defaultSize: pageSize},
	}
}

// ListRecipes godoc
// @Summary List recipes
// @Description Newest first. Membership filters are ignored for anonymous requests.
// @Tags recipes
// @Produce json
// @Param author query int false "Author ID"
// @Param tags query []string false "Tag slugs, any of" collectionFormat(multi)
// @Param is_favorited query int false "1 to list favorites only"
// @Param is_in_shopping_cart query int false "1 to list the shopping cart only"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} pageResponse[services.RecipeView]
// @Failure 400 {object} models.APIError
// @Router /api/recipes [get]
func (rc *recipeController) ListRecipes(c *gin.Context) {
	filter, err := services.ParseRecipeFilter(c.Request.URL.Query())
	if err != nil {
		respondError(c, err)
		return
	}
	page, ok := rc.paginator.page(c)
	if !ok {
		return
	}

	recipes, err := rc.recipes.List(c.Request.Context(), middleware.ViewerFrom(c), filter, page)
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, page, recipes)
}

// GetRecipe godoc
// @Summary Get recipe by ID
// @Tags recipes
// @Produce json
// @Param id path int true "Recipe ID"
// @Success 200 {object} services.RecipeView
// @Failure 404 {object} models.APIError
// @Router /api/recipes/{id} [get]
func (rc *recipeController) GetRecipe(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	recipe, err := rc.recipes.Get(c.Request.Context(), middleware.ViewerFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, recipe)
}

// CreateRecipe godoc
// @Summary Publish a recipe
// @Description Accepts JSON with the image as a base64 data URI, or multipart with an image file,
// @Description ingredients as a JSON field and repeated tags.
// @Tags recipes
// @Accept json,mpfd
// @Produce json
// @Param recipe body recipePayload true "Recipe"
// @Success 201 {object} services.RecipeView
// @Failure 400 {object} models.APIError
// @Failure 401 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/recipes [post]
func (rc *recipeController) CreateRecipe(c *gin.Context) {
	in, err := bindRecipeInput(c)
	if err != nil {
		respondError(c, err)
		return
	}

	recipe, err := rc.recipes.Create(c.Request.Context(), middleware.ViewerFrom(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, recipe)
}

// UpdateRecipe godoc
// @Summary Update a recipe
// @Description Omitted fields are kept. Tags and ingredients, when sent, replace the current lists.
// @Tags recipes
// @Accept json,mpfd
// @Produce json
// @Param id path int true "Recipe ID"
// @Param recipe body recipePayload true "Recipe fields"
// @Success 200 {object} services.RecipeView
// @Failure 400 {object} models.APIError
// @Failure 403 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/recipes/{id} [patch]
func (rc *recipeController) UpdateRecipe(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	in, err := bindRecipeInput(c)
	if err != nil {
		respondError(c, err)
		return
	}

	recipe, err := rc.recipes.Update(c.Request.Context(), middleware.ViewerFrom(c), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, recipe)
}

// DeleteRecipe godoc
// @Summary Delete a recipe
// @Tags recipes
// @Param id path int true "Recipe ID"
// @Success 204
// @Failure 403 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/recipes/{id} [delete]
func (rc *recipeController) DeleteRecipe(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := rc.recipes.Delete(c.Request.Context(), middleware.ViewerFrom(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AddFavorite godoc
// @Summary Add a recipe to favorites
// @Tags recipes
// @Produce json
// @Param id path int true "Recipe ID"
// @Success 201 {object} services.RecipeMinifiedView
// @Failure 400 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/recipes/{id}/favorite [post]
func (rc *recipeController) AddFavorite(c *gin.Context) {
	rc.addMember(c, services.RelationFavorite)
}

// RemoveFavorite godoc
// @Summary Remove a recipe from favorites
// @Tags recipes
// @Param id path int true "Recipe ID"
// @Success 204
// @Failure 400 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/recipes/{id}/favorite [delete]
func (rc *recipeController) RemoveFavorite(c *gin.Context) {
	rc.removeMember(c, services.RelationFavorite)
}

// AddToShoppingCart godoc
// @Summary Add a recipe to the shopping cart
// @Tags recipes
// @Produce json
// @Param id path int true "Recipe ID"
// @Success 201 {object} services.RecipeMinifiedView
// @Failure 400 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/recipes/{id}/shopping_cart [post]
func (rc *recipeController) AddToShoppingCart(c *gin.Context) {
	rc.addMember(c, services.RelationShoppingCart)
}

// RemoveFromShoppingCart godoc
// @Summary Remove a recipe from the shopping cart
// @Tags recipes
// @Param id path int true "Recipe ID"
// @Success 204
// @Failure 400 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/recipes/{id}/shopping_cart [delete]
func (rc *recipeController) RemoveFromShoppingCart(c *gin.Context) {
	rc.removeMember(c, services.RelationShoppingCart)
}

func (rc *recipeController) addMember(c *gin.Context, relation services.Relation) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	recipe, err := rc.memberships.Add(c.Request.Context(), middleware.ViewerFrom(c), relation, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, recipe)
}

func (rc *recipeController) removeMember(c *gin.Context, relation services.Relation) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := rc.memberships.Remove(c.Request.Context(), middleware.ViewerFrom(c), relation, id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DownloadShoppingCart godoc
// @Summary Download the shopping list
// @Description Ingredient amounts of every recipe in the cart, summed per ingredient and unit
// @Tags recipes
// @Produce plain
// @Success 200 {string} string "shopping_list.txt"
// @Failure 401 {object} models.APIError
// @Security BearerAuth
// @Router /api/recipes/download_shopping_cart [get]
func (rc *recipeController) DownloadShoppingCart(c *gin.Context) {
	items, err := rc.shoppingList.Items(c.Request.Context(), middleware.ViewerFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="shopping_list.txt"`)
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(services.RenderShoppingList(items)))
}
