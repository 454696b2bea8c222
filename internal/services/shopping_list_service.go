package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/franciscosanchezn/gin-recipes-api/internal/models"
	"gorm.io/gorm"
)

// ShoppingListItem is the total amount of one ingredient over the cart
type ShoppingListItem struct {
	Name            string `json:"name"`
	MeasurementUnit string `json:"measurement_unit"`
	Amount          int64  `json:"amount"`
}

// ShoppingListService aggregates the shopping cart of a user
type ShoppingListService interface {
	// Items sums the ingredient amounts of every recipe in the viewer's cart,
	// grouped by ingredient name and unit and ordered by name
	Items(ctx context.Context, viewer Viewer) ([]ShoppingListItem, error)
}

type shoppingListService struct {
	db *gorm.DB
}

// NewShoppingListService creates a new ShoppingListService
func NewShoppingListService(db *gorm.DB) ShoppingListService {
	return &shoppingListService{db: db}
}

func (s *shoppingListService) Items(ctx context.Context, viewer Viewer) ([]ShoppingListItem, error) {
	if !viewer.Authenticated() {
		return nil, Permission(MsgAuthRequired)
	}
	items := []ShoppingListItem{}
	err := s.db.WithContext(ctx).Model(&models.RecipeIngredient{}).
		Select("ingredients.name AS name, ingredients.measurement_unit AS measurement_unit, SUM(recipe_ingredients.amount) AS amount").
		Joins("JOIN ingredients ON ingredients.id = recipe_ingredients.ingredient_id").
		Joins("JOIN shopping_cart_items ON shopping_cart_items.recipe_id = recipe_ingredients.recipe_id").
		Where("shopping_cart_items.user_id = ?", viewer.UserID).
		Group("ingredients.name, ingredients.measurement_unit").
		Order("ingredients.name, ingredients.measurement_unit").
		Scan(&items).Error
	if err != nil {
		return nil, fmt.Errorf("aggregate shopping list: %w", err)
	}
	return items, nil
}

// RenderShoppingList formats the items as the downloadable text file
func RenderShoppingList(items []ShoppingListItem) string {
	var b strings.Builder
	b.WriteString("Shopping list\n\n")
	if len(items) == 0 {
		b.WriteString("Your shopping cart is empty.\n")
		return b.String()
	}
	for i, item := range items {
		fmt.Fprintf(&b, "%d. %s (%s) - %d\n", i+1, item.Name, item.MeasurementUnit, item.Amount)
	}
	return b.String()
}
