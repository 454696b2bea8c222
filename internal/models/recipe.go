package models

import (
	"time"
)

// Ownable is implemented by resources that belong to a single user
type Ownable interface {
	GetUserID() uint
}

// Recipe is published by its Author. Ingredients and Tags rows are owned
// by the recipe and removed with it.
type Recipe struct {
	ID            uint      `gorm:"primaryKey"`
	AuthorID      uint      `gorm:"not null;index"`
	Name          string    `gorm:"size:200;not null"`
	Text          string    `gorm:"not null"`
	CookingTime   int       `gorm:"not null;check:chk_recipes_cooking_time,cooking_time >= 1"`
	Image         string    `gorm:"size:255"`
	ImageBlurHash string    `gorm:"size:64"`
	PubDate       time.Time `gorm:"autoCreateTime;index"`

	Author      User               `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE"`
	Ingredients []RecipeIngredient `gorm:"constraint:OnDelete:CASCADE"`
	Tags        []RecipeTag        `gorm:"constraint:OnDelete:CASCADE"`
}

// GetUserID returns the author of the recipe
func (r *Recipe) GetUserID() uint {
	return r.AuthorID
}

// RecipeIngredient is a quantified ingredient line of a recipe.
// A recipe lists a given ingredient at most once.
type RecipeIngredient struct {
	ID           uint `gorm:"primaryKey"`
	RecipeID     uint `gorm:"not null;uniqueIndex:idx_recipe_ingredient"`
	IngredientID uint `gorm:"not null;index;uniqueIndex:idx_recipe_ingredient"`
	Amount       int  `gorm:"not null;check:chk_recipe_ingredients_amount,amount >= 1"`

	Ingredient Ingredient `gorm:"constraint:OnDelete:CASCADE"`
}

// RecipeTag links a recipe to a tag
type RecipeTag struct {
	RecipeID uint `gorm:"primaryKey"`
	TagID    uint `gorm:"primaryKey;index"`

	Tag Tag `gorm:"constraint:OnDelete:CASCADE"`
}

// Favorite is the favorited-by membership between a user and a recipe
type Favorite struct {
	ID        uint `gorm:"primaryKey"`
	UserID    uint `gorm:"not null;uniqueIndex:idx_favorite_pair"`
	RecipeID  uint `gorm:"not null;index;uniqueIndex:idx_favorite_pair"`
	CreatedAt time.Time

	User   User   `gorm:"constraint:OnDelete:CASCADE"`
	Recipe Recipe `gorm:"constraint:OnDelete:CASCADE"`
}

// ShoppingCartItem is the in-shopping-cart-of membership between a user and a recipe
type ShoppingCartItem struct {
	ID        uint `gorm:"primaryKey"`
	UserID    uint `gorm:"not null;uniqueIndex:idx_cart_pair"`
	RecipeID  uint `gorm:"not null;index;uniqueIndex:idx_cart_pair"`
	CreatedAt time.Time

	User   User   `gorm:"constraint:OnDelete:CASCADE"`
	Recipe Recipe `gorm:"constraint:OnDelete:CASCADE"`
}

func (ShoppingCartItem) TableName() string {
	return "shopping_cart_items"
}
