package services

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/franciscosanchezn/gin-recipes-api/internal/models"
	"gorm.io/gorm"
)

// UserView is the public representation of a user as seen by a viewer
type UserView struct {
	ID           uint   `json:"id"`
	Email        string `json:"email"`
	Username     string `json:"username"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	IsSubscribed bool   `json:"is_subscribed"`
}

// TagView is the representation of a tag
type TagView struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
	Slug  string `json:"slug"`
}

// IngredientView is the representation of a catalog ingredient
type IngredientView struct {
	ID              uint   `json:"id"`
	Name            string `json:"name"`
	MeasurementUnit string `json:"measurement_unit"`
}

// RecipeIngredientView is an ingredient line of a recipe. ID is the ingredient id.
type RecipeIngredientView struct {
	ID              uint   `json:"id"`
	Name            string `json:"name"`
	MeasurementUnit string `json:"measurement_unit"`
	Amount          int    `json:"amount"`
}

// RecipeView is a full recipe with author, tags, ingredient lines and viewer flags
type RecipeView struct {
	ID               uint                   `json:"id"`
	Tags             []TagView              `json:"tags"`
	Author           UserView               `json:"author"`
	Ingredients      []RecipeIngredientView `json:"ingredients"`
	IsFavorited      bool                   `json:"is_favorited"`
	IsInShoppingCart bool                   `json:"is_in_shopping_cart"`
	Name             string                 `json:"name"`
	Image            string                 `json:"image"`
	ImageBlurHash    string                 `json:"image_blurhash,omitempty"`
	Text             string                 `json:"text"`
	CookingTime      int                    `json:"cooking_time"`
}

// RecipeMinifiedView is the short form of a recipe used in subscriptions
// and membership responses
type RecipeMinifiedView struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Image       string `json:"image"`
	CookingTime int    `json:"cooking_time"`
}

// SubscriptionView is a followed author with their latest recipes
type SubscriptionView struct {
	UserView
	Recipes      []RecipeMinifiedView `json:"recipes"`
	RecipesCount int64                `json:"recipes_count"`
}

// ImageURLer turns a stored image reference into a public URL
type ImageURLer interface {
	URL(ref string) string
}

// Composer builds API representations. Viewer dependent flags are
// resolved with one query per relation for a whole batch.
type Composer struct {
	db     *gorm.DB
	images ImageURLer
}

// NewComposer creates a Composer; images may be nil when image URLs are not needed
func NewComposer(db *gorm.DB, images ImageURLer) *Composer {
	return &Composer{db: db, images: images}
}

// RecipeRelations preloads what RecipeViews needs. Ingredient lines keep
// their insertion order.
func RecipeRelations(db *gorm.DB) *gorm.DB {
	return db.Preload("Author").
		Preload("Tags.Tag").
		Preload("Ingredients", func(db *gorm.DB) *gorm.DB {
			return db.Order("recipe_ingredients.id")
		}).
		Preload("Ingredients.Ingredient")
}

// ParseRecipesLimit reads the recipes_limit query parameter. Anything that
// is not a positive integer means no limit and yields 0.
func ParseRecipesLimit(raw string) int {
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}

func (c *Composer) imageURL(ref string) string {
	if c.images == nil {
		return ref
	}
	return c.images.URL(ref)
}

// UserView renders a single user for viewer
func (c *Composer) UserView(ctx context.Context, viewer Viewer, user models.User) (UserView, error) {
	views, err := c.UserViews(ctx, viewer, []models.User{user})
	if err != nil {
		return UserView{}, err
	}
	return views[0], nil
}

// UserViews renders users for viewer with one subscription lookup
func (c *Composer) UserViews(ctx context.Context, viewer Viewer, users []models.User) ([]UserView, error) {
	ids := make([]uint, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}

	followed, err := c.followedAmong(ctx, viewer, ids)
	if err != nil {
		return nil, err
	}

	views := make([]UserView, 0, len(users))
	for _, u := range users {
		_, subscribed := followed[u.ID]
		views = append(views, UserView{
			ID:           u.ID,
			Email:        u.Email,
			Username:     u.Username,
			FirstName:    u.FirstName,
			LastName:     u.LastName,
			IsSubscribed: subscribed,
		})
	}
	return views, nil
}

// RecipeView renders a single recipe for viewer
func (c *Composer) RecipeView(ctx context.Context, viewer Viewer, recipe models.Recipe) (RecipeView, error) {
	views, err := c.RecipeViews(ctx, viewer, []models.Recipe{recipe})
	if err != nil {
		return RecipeView{}, err
	}
	return views[0], nil
}

// RecipeViews expects recipes loaded with RecipeRelations and keeps their order
func (c *Composer) RecipeViews(ctx context.Context, viewer Viewer, recipes []models.Recipe) ([]RecipeView, error) {
	recipeIDs := make([]uint, 0, len(recipes))
	authors := make([]models.User, 0, len(recipes))
	seenAuthor := make(map[uint]struct{})
	for _, r := range recipes {
		recipeIDs = append(recipeIDs, r.ID)
		if _, ok := seenAuthor[r.AuthorID]; !ok {
			seenAuthor[r.AuthorID] = struct{}{}
			authors = append(authors, r.Author)
		}
	}

	authorViews, err := c.UserViews(ctx, viewer, authors)
	if err != nil {
		return nil, err
	}
	byAuthor := make(map[uint]UserView, len(authorViews))
	for _, a := range authorViews {
		byAuthor[a.ID] = a
	}

	favorited, err := c.memberAmong(ctx, viewer, &models.Favorite{}, recipeIDs)
	if err != nil {
		return nil, err
	}
	inCart, err := c.memberAmong(ctx, viewer, &models.ShoppingCartItem{}, recipeIDs)
	if err != nil {
		return nil, err
	}

	views := make([]RecipeView, 0, len(recipes))
	for _, r := range recipes {
		tags := make([]TagView, 0, len(r.Tags))
		for _, rt := range r.Tags {
			tags = append(tags, TagView{ID: rt.Tag.ID, Name: rt.Tag.Name, Color: rt.Tag.Color, Slug: rt.Tag.Slug})
		}
		sort.Slice(tags, func(i, j int) bool { return tags[i].Name < tags[j].Name })

		lines := make([]RecipeIngredientView, 0, len(r.Ingredients))
		for _, ri := range r.Ingredients {
			lines = append(lines, RecipeIngredientView{
				ID:              ri.IngredientID,
				Name:            ri.Ingredient.Name,
				MeasurementUnit: ri.Ingredient.MeasurementUnit,
				Amount:          ri.Amount,
			})
		}

		_, fav := favorited[r.ID]
		_, cart := inCart[r.ID]
		views = append(views, RecipeView{
			ID:               r.ID,
			Tags:             tags,
			Author:           byAuthor[r.AuthorID],
			Ingredients:      lines,
			IsFavorited:      fav,
			IsInShoppingCart: cart,
			Name:             r.Name,
			Image:            c.imageURL(r.Image),
			ImageBlurHash:    r.ImageBlurHash,
			Text:             r.Text,
			CookingTime:      r.CookingTime,
		})
	}
	return views, nil
}

// RecipeMinified renders the short form used by memberships and subscriptions
func (c *Composer) RecipeMinified(recipe models.Recipe) RecipeMinifiedView {
	return RecipeMinifiedView{
		ID:          recipe.ID,
		Name:        recipe.Name,
		Image:       c.imageURL(recipe.Image),
		CookingTime: recipe.CookingTime,
	}
}

// SubscriptionViews lists each author with at most recipesLimit of their
// newest recipes (0 means all) and their full recipe count
func (c *Composer) SubscriptionViews(ctx context.Context, viewer Viewer, authors []models.User, recipesLimit int) ([]SubscriptionView, error) {
	userViews, err := c.UserViews(ctx, viewer, authors)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(authors))
	for _, a := range authors {
		ids = append(ids, a.ID)
	}

	counts := make(map[uint]int64, len(ids))
	recipesBy := make(map[uint][]RecipeMinifiedView, len(ids))
	if len(ids) > 0 {
		var rows []struct {
			AuthorID uint
			Total    int64
		}
		if err := c.db.WithContext(ctx).Model(&models.Recipe{}).
			Select("author_id, COUNT(*) AS total").
			Where("author_id IN ?", ids).
			Group("author_id").
			Scan(&rows).Error; err != nil {
			return nil, fmt.Errorf("count recipes per author: %w", err)
		}
		for _, row := range rows {
			counts[row.AuthorID] = row.Total
		}

		var recipes []models.Recipe
		if err := c.latestRecipes(ctx, ids, recipesLimit).Find(&recipes).Error; err != nil {
			return nil, fmt.Errorf("load author recipes: %w", err)
		}
		for _, r := range recipes {
			recipesBy[r.AuthorID] = append(recipesBy[r.AuthorID], c.RecipeMinified(r))
		}
	}

	views := make([]SubscriptionView, 0, len(userViews))
	for _, uv := range userViews {
		recipes := recipesBy[uv.ID]
		if recipes == nil {
			recipes = []RecipeMinifiedView{}
		}
		views = append(views, SubscriptionView{
			UserView:     uv,
			Recipes:      recipes,
			RecipesCount: counts[uv.ID],
		})
	}
	return views, nil
}

// latestRecipes selects the newest recipes of each author, at most limit per
// author when limit is positive
func (c *Composer) latestRecipes(ctx context.Context, authorIDs []uint, limit int) *gorm.DB {
	db := c.db.WithContext(ctx)
	if limit <= 0 {
		return db.Where("author_id IN ?", authorIDs).Order("pub_date DESC, id DESC")
	}
	ranked := c.db.Session(&gorm.Session{NewDB: true}).Model(&models.Recipe{}).
		Select("recipes.*, ROW_NUMBER() OVER (PARTITION BY author_id ORDER BY pub_date DESC, id DESC) AS author_rank").
		Where("author_id IN ?", authorIDs)
	return db.Table("(?) AS recipes", ranked).
		Where("author_rank <= ?", limit).
		Order("pub_date DESC, id DESC")
}

func (c *Composer) followedAmong(ctx context.Context, viewer Viewer, ids []uint) (map[uint]struct{}, error) {
	set := make(map[uint]struct{})
	if !viewer.Authenticated() || len(ids) == 0 {
		return set, nil
	}
	var followed []uint
	if err := c.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ? AND following_id IN ?", viewer.UserID, ids).
		Pluck("following_id", &followed).Error; err != nil {
		return nil, fmt.Errorf("load subscriptions: %w", err)
	}
	for _, id := range followed {
		set[id] = struct{}{}
	}
	return set, nil
}

// memberAmong returns which of the recipes the viewer has in the given membership table
func (c *Composer) memberAmong(ctx context.Context, viewer Viewer, model any, recipeIDs []uint) (map[uint]struct{}, error) {
	set := make(map[uint]struct{})
	if !viewer.Authenticated() || len(recipeIDs) == 0 {
		return set, nil
	}
	var members []uint
	if err := c.db.WithContext(ctx).Model(model).
		Where("user_id = ? AND recipe_id IN ?", viewer.UserID, recipeIDs).
		Pluck("recipe_id", &members).Error; err != nil {
		return nil, fmt.Errorf("load memberships: %w", err)
	}
	for _, id := range members {
		set[id] = struct{}{}
	}
	return set, nil
}
