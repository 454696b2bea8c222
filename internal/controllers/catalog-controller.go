package controllers

import (
	"net/http"

	"github.com/franciscosanchezn/gin-recipes-api/internal/middleware"
	"github.com/franciscosanchezn/gin-recipes-api/internal/services"
	"github.com/gin-gonic/gin"
)

// CatalogController serves tags and ingredients. Lists are not paginated.
type CatalogController struct {
	catalog services.CatalogService
}

// NewCatalogController creates a new CatalogController
func NewCatalogController(catalog services.CatalogService) *CatalogController {
	return &CatalogController{catalog: catalog}
}

// tagPatch and ingredientPatch hold the fields of a partial update
type tagPatch struct {
	Name  *string `json:"name"`
	Color *string `json:"color"`
	Slug  *string `json:"slug"`
}

type ingredientPatch struct {
	Name            *string `json:"name"`
	MeasurementUnit *string `json:"measurement_unit"`
}

func merge(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

// ListTags godoc
// @Summary List tags
// @Tags tags
// @Produce json
// @Success 200 {array} services.TagView
// @Router /api/tags [get]
func (cc *CatalogController) ListTags(c *gin.Context) {
	tags, err := cc.catalog.ListTags(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tags)
}

// GetTag godoc
// @Summary Get tag by ID
// @Tags tags
// @Produce json
// @Param id path int true "Tag ID"
// @Success 200 {object} services.TagView
// @Failure 404 {object} models.APIError
// @Router /api/tags/{id} [get]
func (cc *CatalogController) GetTag(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	tag, err := cc.catalog.GetTag(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tag)
}

// CreateTag godoc
// @Summary Create a tag
// @Tags tags
// @Accept json
// @Produce json
// @Param tag body services.TagInput true "Tag"
// @Success 201 {object} services.TagView
// @Failure 400 {object} models.APIError
// @Failure 403 {object} models.APIError
// @Security BearerAuth
// @Router /api/tags [post]
func (cc *CatalogController) CreateTag(c *gin.Context) {
	var in services.TagInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	tag, err := cc.catalog.CreateTag(c.Request.Context(), middleware.ViewerFrom(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tag)
}

// UpdateTag godoc
// @Summary Update a tag
// @Tags tags
// @Accept json
// @Produce json
// @Param id path int true "Tag ID"
// @Param tag body tagPatch true "Fields to change"
// @Success 200 {object} services.TagView
// @Failure 400 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/tags/{id} [patch]
func (cc *CatalogController) UpdateTag(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var patch tagPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	current, err := cc.catalog.GetTag(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	in := services.TagInput{Name: current.Name, Color: current.Color, Slug: current.Slug}
	merge(&in.Name, patch.Name)
	merge(&in.Color, patch.Color)
	merge(&in.Slug, patch.Slug)

	tag, err := cc.catalog.UpdateTag(c.Request.Context(), middleware.ViewerFrom(c), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tag)
}

// ListIngredients godoc
// @Summary List ingredients
// @Tags ingredients
// @Produce json
// @Param name query string false "Case insensitive name filter"
// @Success 200 {array} services.IngredientView
// @Router /api/ingredients [get]
func (cc *CatalogController) ListIngredients(c *gin.Context) {
	ingredients, err := cc.catalog.ListIngredients(c.Request.Context(), c.Query("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ingredients)
}

// GetIngredient godoc
// @Summary Get ingredient by ID
// @Tags ingredients
// @Produce json
// @Param id path int true "Ingredient ID"
// @Success 200 {object} services.IngredientView
// @Failure 404 {object} models.APIError
// @Router /api/ingredients/{id} [get]
func (cc *CatalogController) GetIngredient(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	ingredient, err := cc.catalog.GetIngredient(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ingredient)
}

// CreateIngredient godoc
// @Summary Create an ingredient
// @Tags ingredients
// @Accept json
// @Produce json
// @Param ingredient body services.IngredientInput true "Ingredient"
// @Success 201 {object} services.IngredientView
// @Failure 400 {object} models.APIError
// @Failure 403 {object} models.APIError
// @Security BearerAuth
// @Router /api/ingredients [post]
func (cc *CatalogController) CreateIngredient(c *gin.Context) {
	var in services.IngredientInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	ingredient, err := cc.catalog.CreateIngredient(c.Request.Context(), middleware.ViewerFrom(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ingredient)
}

// UpdateIngredient godoc
// @Summary Update an ingredient
// @Tags ingredients
// @Accept json
// @Produce json
// @Param id path int true "Ingredient ID"
// @Param ingredient body ingredientPatch true "Fields to change"
// @Success 200 {object} services.IngredientView
// @Failure 400 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/ingredients/{id} [patch]
func (cc *CatalogController) UpdateIngredient(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var patch ingredientPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	current, err := cc.catalog.GetIngredient(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	in := services.IngredientInput{Name: current.Name, MeasurementUnit: current.MeasurementUnit}
	merge(&in.Name, patch.Name)
	merge(&in.MeasurementUnit, patch.MeasurementUnit)

	ingredient, err := cc.catalog.UpdateIngredient(c.Request.Context(), middleware.ViewerFrom(c), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ingredient)
}
