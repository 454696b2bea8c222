package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/franciscosanchezn/gin-recipes-api/internal/metrics"
	"github.com/franciscosanchezn/gin-recipes-api/internal/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Relation is a per user set of recipes
type Relation string

const (
	RelationFavorite     Relation = "favorite"
	RelationShoppingCart Relation = "shopping_cart"
)

func (r Relation) row(userID, recipeID uint) any {
	if r == RelationShoppingCart {
		return &models.ShoppingCartItem{UserID: userID, RecipeID: recipeID}
	}
	return &models.Favorite{UserID: userID, RecipeID: recipeID}
}

func (r Relation) label() string {
	if r == RelationShoppingCart {
		return "the shopping cart"
	}
	return "favorites"
}

// MembershipService adds and removes recipes from a viewer's favorites
// and shopping cart
type MembershipService interface {
	Add(ctx context.Context, viewer Viewer, relation Relation, recipeID uint) (RecipeMinifiedView, error)
	Remove(ctx context.Context, viewer Viewer, relation Relation, recipeID uint) error
	IsMember(ctx context.Context, viewer Viewer, relation Relation, recipeID uint) (bool, error)
}

type membershipService struct {
	db       *gorm.DB
	composer *Composer
}

// NewMembershipService creates a new MembershipService
func NewMembershipService(db *gorm.DB, composer *Composer) MembershipService {
	return &membershipService{db: db, composer: composer}
}

func (s *membershipService) Add(ctx context.Context, viewer Viewer, relation Relation, recipeID uint) (RecipeMinifiedView, error) {
	if !viewer.Authenticated() {
		return RecipeMinifiedView{}, Permission(MsgAuthRequired)
	}

	var recipe models.Recipe
	if err := s.db.WithContext(ctx).First(&recipe, recipeID).Error; err != nil {
		return RecipeMinifiedView{}, lookupError(err, "recipe")
	}

	member, err := s.IsMember(ctx, viewer, relation, recipe.ID)
	if err != nil {
		return RecipeMinifiedView{}, err
	}
	alreadyAdded := Conflict(fmt.Sprintf("recipe is already in %s", relation.label()))
	if member {
		return RecipeMinifiedView{}, alreadyAdded
	}

	if err := s.db.WithContext(ctx).Create(relation.row(viewer.UserID, recipe.ID)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return RecipeMinifiedView{}, alreadyAdded
		}
		return RecipeMinifiedView{}, fmt.Errorf("add recipe to %s: %w", relation, err)
	}

	metrics.RecordMembershipChange(string(relation), "add")
	log.WithFields(logrus.Fields{"relation": relation, "user_id": viewer.UserID, "recipe_id": recipe.ID}).Debug("Recipe added")
	return s.composer.RecipeMinified(recipe), nil
}

func (s *membershipService) Remove(ctx context.Context, viewer Viewer, relation Relation, recipeID uint) error {
	if !viewer.Authenticated() {
		return Permission(MsgAuthRequired)
	}

	var recipe models.Recipe
	if err := s.db.WithContext(ctx).First(&recipe, recipeID).Error; err != nil {
		return lookupError(err, "recipe")
	}

	res := s.db.WithContext(ctx).
		Where("user_id = ? AND recipe_id = ?", viewer.UserID, recipe.ID).
		Delete(relation.row(0, 0))
	if res.Error != nil {
		return fmt.Errorf("remove recipe from %s: %w", relation, res.Error)
	}
	if res.RowsAffected == 0 {
		return Conflict(fmt.Sprintf("recipe is not in %s", relation.label()))
	}

	metrics.RecordMembershipChange(string(relation), "remove")
	log.WithFields(logrus.Fields{"relation": relation, "user_id": viewer.UserID, "recipe_id": recipe.ID}).Debug("Recipe removed")
	return nil
}

func (s *membershipService) IsMember(ctx context.Context, viewer Viewer, relation Relation, recipeID uint) (bool, error) {
	if !viewer.Authenticated() {
		return false, nil
	}
	var n int64
	if err := s.db.WithContext(ctx).Model(relation.row(0, 0)).
		Where("user_id = ? AND recipe_id = ?", viewer.UserID, recipeID).
		Count(&n).Error; err != nil {
		return false, fmt.Errorf("check %s membership: %w", relation, err)
	}
	return n > 0, nil
}
