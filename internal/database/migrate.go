package database

import (
	"fmt"

	"github.com/franciscosanchezn/gin-recipes-api/internal/models"
	"gorm.io/gorm"
)

// Migrate creates or updates the schema for every persisted model.
// Order matters: referenced tables come first.
func Migrate(db *gorm.DB) error {
	log.Info("Running database migrations")
	if err := db.AutoMigrate(
		&models.User{},
		&models.Follow{},
		&models.Tag{},
		&models.Ingredient{},
		&models.Recipe{},
		&models.RecipeIngredient{},
		&models.RecipeTag{},
		&models.Favorite{},
		&models.ShoppingCartItem{},
		&models.OAuthClient{},
		&models.OAuthToken{},
	); err != nil {
		return fmt.Errorf("migrations failed: %w", err)
	}
	return nil
}
