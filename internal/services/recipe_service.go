package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/franciscosanchezn/gin-recipes-api/internal/media"
	"github.com/franciscosanchezn/gin-recipes-api/internal/metrics"
	"github.com/franciscosanchezn/gin-recipes-api/internal/models"
	"github.com/franciscosanchezn/gin-recipes-api/internal/validation"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// IngredientAmount is an ingredient line of a recipe write
type IngredientAmount struct {
	ID     uint `json:"id" validate:"required"`
	Amount int  `json:"amount" validate:"gte=1"`
}

// RecipeInput is the payload of a recipe create or update. On update a nil
// field is left untouched, an empty Tags list clears the tags.
type RecipeInput struct {
	Name        *string             `json:"name" validate:"omitempty,max=200"`
	Text        *string             `json:"text"`
	CookingTime *int                `json:"cooking_time"`
	Tags        *[]uint             `json:"tags"`
	Ingredients *[]IngredientAmount `json:"ingredients" validate:"omitempty,dive"`
	Image       *media.Image        `json:"-"`
}

// RecipeFilter narrows a recipe listing. Membership filters only apply to
// authenticated viewers.
type RecipeFilter struct {
	AuthorID         *uint
	Tags             []string
	IsFavorited      bool
	IsInShoppingCart bool
}

// ParseRecipeFilter reads author, tags, is_favorited and is_in_shopping_cart
func ParseRecipeFilter(q url.Values) (RecipeFilter, error) {
	var f RecipeFilter
	if raw := q.Get("author"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return f, Validation("invalid author filter", map[string]string{"author": "must be a user id"})
		}
		author := uint(id)
		f.AuthorID = &author
	}
	for _, slug := range q["tags"] {
		if slug = strings.TrimSpace(slug); slug != "" {
			f.Tags = append(f.Tags, slug)
		}
	}
	f.IsFavorited = isOne(q.Get("is_favorited"))
	f.IsInShoppingCart = isOne(q.Get("is_in_shopping_cart"))
	return f, nil
}

// isOne reports whether a membership flag restricts the list; only 1 does
func isOne(raw string) bool {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	return err == nil && n == 1
}

// Apply adds the filter conditions to a query on recipes
func (f RecipeFilter) Apply(q *gorm.DB, viewer Viewer) *gorm.DB {
	sub := func() *gorm.DB { return q.Session(&gorm.Session{NewDB: true}) }

	if f.AuthorID != nil {
		q = q.Where("recipes.author_id = ?", *f.AuthorID)
	}
	if len(f.Tags) > 0 {
		q = q.Where("recipes.id IN (?)", sub().Model(&models.RecipeTag{}).
			Select("recipe_tags.recipe_id").
			Joins("JOIN tags ON tags.id = recipe_tags.tag_id").
			Where("tags.slug IN ?", f.Tags))
	}
	if viewer.Authenticated() {
		if f.IsFavorited {
			q = q.Where("recipes.id IN (?)", sub().Model(&models.Favorite{}).
				Select("recipe_id").Where("user_id = ?", viewer.UserID))
		}
		if f.IsInShoppingCart {
			q = q.Where("recipes.id IN (?)", sub().Model(&models.ShoppingCartItem{}).
				Select("recipe_id").Where("user_id = ?", viewer.UserID))
		}
	}
	return q
}

// ImageStore persists recipe images
type ImageStore interface {
	Save(img *media.Image) (string, error)
	Delete(ref string) error
}

// RecipeService publishes and reads recipes. Writes are all or nothing.
type RecipeService interface {
	Create(ctx context.Context, viewer Viewer, in RecipeInput) (RecipeView, error)
	Update(ctx context.Context, viewer Viewer, id uint, in RecipeInput) (RecipeView, error)
	Delete(ctx context.Context, viewer Viewer, id uint) error
	Get(ctx context.Context, viewer Viewer, id uint) (RecipeView, error)
	List(ctx context.Context, viewer Viewer, filter RecipeFilter, page Page) (Paged[RecipeView], error)
}

type recipeService struct {
	db        *gorm.DB
	composer  *Composer
	images    ImageStore
	validator *validation.Validator
}

// NewRecipeService creates a new RecipeService
func NewRecipeService(db *gorm.DB, composer *Composer, images ImageStore) RecipeService {
	return &recipeService{
		db:        db,
		composer:  composer,
		images:    images,
		validator: validation.New(),
	}
}

func (s *recipeService) Create(ctx context.Context, viewer Viewer, in RecipeInput) (RecipeView, error) {
	if !viewer.Authenticated() {
		return RecipeView{}, Permission(MsgAuthRequired)
	}
	if err := s.validateInput(in, true); err != nil {
		return RecipeView{}, err
	}

	recipe := models.Recipe{
		AuthorID:    viewer.UserID,
		Name:        strings.TrimSpace(*in.Name),
		Text:        *in.Text,
		CookingTime: *in.CookingTime,
	}

	var stored string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkReferences(tx, in); err != nil {
			return err
		}
		if in.Image != nil {
			ref, hash, err := s.storeImage(in.Image)
			if err != nil {
				return err
			}
			stored = ref
			recipe.Image = ref
			recipe.ImageBlurHash = hash
		}
		if err := tx.Omit(clause.Associations).Create(&recipe).Error; err != nil {
			return fmt.Errorf("create recipe: %w", err)
		}
		if in.Tags != nil {
			if err := replaceTags(tx, recipe.ID, *in.Tags); err != nil {
				return err
			}
		}
		return replaceIngredients(tx, recipe.ID, *in.Ingredients)
	})
	if err != nil {
		s.discardImage(stored)
		return RecipeView{}, err
	}

	metrics.RecordRecipeWrite("create")
	log.WithFields(logrus.Fields{"recipe_id": recipe.ID, "author_id": recipe.AuthorID}).Info("Recipe created")
	return s.Get(ctx, viewer, recipe.ID)
}

func (s *recipeService) Update(ctx context.Context, viewer Viewer, id uint, in RecipeInput) (RecipeView, error) {
	var stored, previous string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var recipe models.Recipe
		if err := tx.First(&recipe, id).Error; err != nil {
			return lookupError(err, "recipe")
		}
		if !viewer.CanModify(&recipe) {
			return Permission("only the author or an administrator can change this recipe")
		}
		if err := s.validateInput(in, false); err != nil {
			return err
		}
		if err := checkReferences(tx, in); err != nil {
			return err
		}

		updates := map[string]any{}
		if in.Name != nil {
			updates["name"] = strings.TrimSpace(*in.Name)
		}
		if in.Text != nil {
			updates["text"] = *in.Text
		}
		if in.CookingTime != nil {
			updates["cooking_time"] = *in.CookingTime
		}
		if in.Image != nil {
			ref, hash, err := s.storeImage(in.Image)
			if err != nil {
				return err
			}
			stored = ref
			previous = recipe.Image
			updates["image"] = ref
			updates["image_blur_hash"] = hash
		}
		if len(updates) > 0 {
			if err := tx.Model(&recipe).Updates(updates).Error; err != nil {
				return fmt.Errorf("update recipe: %w", err)
			}
		}
		if in.Tags != nil {
			if err := replaceTags(tx, recipe.ID, *in.Tags); err != nil {
				return err
			}
		}
		if in.Ingredients != nil {
			if err := replaceIngredients(tx, recipe.ID, *in.Ingredients); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.discardImage(stored)
		return RecipeView{}, err
	}
	if previous != stored {
		s.discardImage(previous)
	}

	metrics.RecordRecipeWrite("update")
	log.WithField("recipe_id", id).Info("Recipe updated")
	return s.Get(ctx, viewer, id)
}

func (s *recipeService) Delete(ctx context.Context, viewer Viewer, id uint) error {
	var image string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var recipe models.Recipe
		if err := tx.First(&recipe, id).Error; err != nil {
			return lookupError(err, "recipe")
		}
		if !viewer.CanModify(&recipe) {
			return Permission("only the author or an administrator can delete this recipe")
		}
		image = recipe.Image
		if err := tx.Delete(&recipe).Error; err != nil {
			return fmt.Errorf("delete recipe: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.discardImage(image)

	metrics.RecordRecipeWrite("delete")
	log.WithField("recipe_id", id).Info("Recipe deleted")
	return nil
}

func (s *recipeService) Get(ctx context.Context, viewer Viewer, id uint) (RecipeView, error) {
	var recipe models.Recipe
	if err := s.db.WithContext(ctx).Scopes(RecipeRelations).First(&recipe, id).Error; err != nil {
		return RecipeView{}, lookupError(err, "recipe")
	}
	return s.composer.RecipeView(ctx, viewer, recipe)
}

func (s *recipeService) List(ctx context.Context, viewer Viewer, filter RecipeFilter, page Page) (Paged[RecipeView], error) {
	q := filter.Apply(s.db.WithContext(ctx).Model(&models.Recipe{}), viewer).Session(&gorm.Session{})

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return Paged[RecipeView]{}, fmt.Errorf("count recipes: %w", err)
	}

	var recipes []models.Recipe
	if err := q.Scopes(RecipeRelations, page.Scope).
		Order("recipes.pub_date DESC, recipes.id DESC").
		Find(&recipes).Error; err != nil {
		return Paged[RecipeView]{}, fmt.Errorf("list recipes: %w", err)
	}

	views, err := s.composer.RecipeViews(ctx, viewer, recipes)
	if err != nil {
		return Paged[RecipeView]{}, err
	}
	return Paged[RecipeView]{Count: count, Results: views}, nil
}

// validateInput applies the recipe rules in order: ingredients present,
// ingredients distinct, amounts positive, then the scalar fields
func (s *recipeService) validateInput(in RecipeInput, creating bool) error {
	if (creating && in.Ingredients == nil) || (in.Ingredients != nil && len(*in.Ingredients) == 0) {
		return Validation(MsgNoIngredients, map[string]string{"ingredients": MsgNoIngredients})
	}
	if in.Ingredients != nil {
		seen := make(map[uint]struct{}, len(*in.Ingredients))
		for _, item := range *in.Ingredients {
			if _, dup := seen[item.ID]; dup {
				return Validation(MsgDuplicateIngredients, map[string]string{"ingredients": MsgDuplicateIngredients})
			}
			seen[item.ID] = struct{}{}
		}
	}
	if err := s.validator.Validate(in); err != nil {
		return invalid(err)
	}

	details := make(map[string]string)
	if creating {
		if in.Name == nil {
			details["name"] = "is required"
		}
		if in.Text == nil {
			details["text"] = "is required"
		}
		if in.CookingTime == nil {
			details["cooking_time"] = "is required"
		}
	}
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		details["name"] = "may not be blank"
	}
	if in.Text != nil && strings.TrimSpace(*in.Text) == "" {
		details["text"] = "may not be blank"
	}
	if in.CookingTime != nil && *in.CookingTime < 1 {
		details["cooking_time"] = "must be greater than or equal to 1"
	}
	if len(details) > 0 {
		return Validation("invalid input: "+validation.Errors(details).Error(), details)
	}
	return nil
}

// checkReferences fails with ErrNotFound when a tag or ingredient id does not exist
func checkReferences(tx *gorm.DB, in RecipeInput) error {
	if in.Ingredients != nil {
		ids := make([]uint, 0, len(*in.Ingredients))
		for _, item := range *in.Ingredients {
			ids = append(ids, item.ID)
		}
		if err := requireAll(tx, &models.Ingredient{}, "ingredient", ids); err != nil {
			return err
		}
	}
	if in.Tags != nil {
		if err := requireAll(tx, &models.Tag{}, "tag", uniqueIDs(*in.Tags)); err != nil {
			return err
		}
	}
	return nil
}

func requireAll(tx *gorm.DB, model any, what string, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	var found []uint
	if err := tx.Model(model).Where("id IN ?", ids).Pluck("id", &found).Error; err != nil {
		return fmt.Errorf("load %ss: %w", what, err)
	}
	if len(found) == len(ids) {
		return nil
	}

	present := make(map[uint]struct{}, len(found))
	for _, id := range found {
		present[id] = struct{}{}
	}
	var missing []string
	for _, id := range ids {
		if _, ok := present[id]; !ok {
			missing = append(missing, strconv.FormatUint(uint64(id), 10))
		}
	}
	sort.Strings(missing)
	return &Error{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s not found: %s", what, strings.Join(missing, ", ")),
		Details: map[string]string{what + "s": "unknown ids " + strings.Join(missing, ", ")},
	}
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func replaceTags(tx *gorm.DB, recipeID uint, tagIDs []uint) error {
	if err := tx.Where("recipe_id = ?", recipeID).Delete(&models.RecipeTag{}).Error; err != nil {
		return fmt.Errorf("clear recipe tags: %w", err)
	}
	ids := uniqueIDs(tagIDs)
	if len(ids) == 0 {
		return nil
	}
	rows := make([]models.RecipeTag, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, models.RecipeTag{RecipeID: recipeID, TagID: id})
	}
	if err := tx.Omit(clause.Associations).Create(&rows).Error; err != nil {
		return fmt.Errorf("insert recipe tags: %w", err)
	}
	return nil
}

func replaceIngredients(tx *gorm.DB, recipeID uint, items []IngredientAmount) error {
	if err := tx.Where("recipe_id = ?", recipeID).Delete(&models.RecipeIngredient{}).Error; err != nil {
		return fmt.Errorf("clear recipe ingredients: %w", err)
	}
	rows := make([]models.RecipeIngredient, 0, len(items))
	for _, item := range items {
		rows = append(rows, models.RecipeIngredient{RecipeID: recipeID, IngredientID: item.ID, Amount: item.Amount})
	}
	if err := tx.Omit(clause.Associations).Create(&rows).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return Validation(MsgDuplicateIngredients, map[string]string{"ingredients": MsgDuplicateIngredients})
		}
		return fmt.Errorf("insert recipe ingredients: %w", err)
	}
	return nil
}

func (s *recipeService) storeImage(img *media.Image) (string, string, error) {
	hash, err := media.ComputeBlurHash(img.Data)
	if err != nil {
		log.WithError(err).Warn("Could not compute image blurhash")
		hash = ""
	}
	ref, err := s.images.Save(img)
	if err != nil {
		return "", "", fmt.Errorf("store image: %w", err)
	}
	return ref, hash, nil
}

func (s *recipeService) discardImage(ref string) {
	if ref == "" {
		return
	}
	if err := s.images.Delete(ref); err != nil {
		log.WithError(err).WithField("image", ref).Warn("Could not remove image file")
	}
}
