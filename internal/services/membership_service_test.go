package services

import (
	"context"
	"testing"

	"github.com/franciscosanchezn/gin-recipes-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMembershipLifecycle(t *testing.T) {
	testCases := []struct {
		relation Relation
		flag     func(RecipeView) bool
	}{
		{RelationFavorite, func(v RecipeView) bool { return v.IsFavorited }},
		{RelationShoppingCart, func(v RecipeView) bool { return v.IsInShoppingCart }},
	}

	for _, tt := range testCases {
		t.Run(string(tt.relation), func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			author := f.user(t, "author", models.RoleUser)
			fan := f.user(t, "fan", models.RoleUser)
			salt := f.ingredient(t, "salt", "g")
			recipe := f.recipe(t, author, "Soup", salt)

			minified, err := f.memberships.Add(ctx, viewerOf(fan), tt.relation, recipe.ID)
			require.NoError(t, err)
			assert.Equal(t, RecipeMinifiedView{ID: recipe.ID, Name: "Soup", CookingTime: 30}, minified)

			_, err = f.memberships.Add(ctx, viewerOf(fan), tt.relation, recipe.ID)
			assert.ErrorIs(t, err, ErrConflict)

			seen, err := f.recipes.Get(ctx, viewerOf(fan), recipe.ID)
			require.NoError(t, err)
			assert.True(t, tt.flag(seen))

			byAuthor, err := f.recipes.Get(ctx, viewerOf(author), recipe.ID)
			require.NoError(t, err)
			assert.False(t, tt.flag(byAuthor), "membership is per user")

			anon, err := f.recipes.Get(ctx, Anonymous, recipe.ID)
			require.NoError(t, err)
			assert.False(t, tt.flag(anon))

			require.NoError(t, f.memberships.Remove(ctx, viewerOf(fan), tt.relation, recipe.ID))
			assert.ErrorIs(t, f.memberships.Remove(ctx, viewerOf(fan), tt.relation, recipe.ID), ErrConflict)

			member, err := f.memberships.IsMember(ctx, viewerOf(fan), tt.relation, recipe.ID)
			require.NoError(t, err)
			assert.False(t, member)
		})
	}
}

func TestMembershipErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	fan := f.user(t, "fan", models.RoleUser)

	_, err := f.memberships.Add(ctx, viewerOf(fan), RelationFavorite, 404)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, f.memberships.Remove(ctx, viewerOf(fan), RelationShoppingCart, 404), ErrNotFound)

	_, err = f.memberships.Add(ctx, Anonymous, RelationFavorite, 1)
	assert.ErrorIs(t, err, ErrPermission)
}

func TestAddLosingRaceIsConflict(t *testing.T) {
	testCases := []struct {
		relation Relation
		row      func(userID, recipeID uint) any
	}{
		{RelationFavorite, func(u, r uint) any { return &models.Favorite{UserID: u, RecipeID: r} }},
		{RelationShoppingCart, func(u, r uint) any { return &models.ShoppingCartItem{UserID: u, RecipeID: r} }},
	}

	for _, tt := range testCases {
		t.Run(string(tt.relation), func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			author := f.user(t, "author", models.RoleUser)
			fan := f.user(t, "fan", models.RoleUser)
			recipe := f.recipe(t, author, "Soup", f.ingredient(t, "salt", "g"))

			row := tt.row(fan.ID, recipe.ID)
			insertFirst(t, f.db, row)

			_, err := f.memberships.Add(ctx, viewerOf(fan), tt.relation, recipe.ID)
			assert.ErrorIs(t, err, ErrConflict)
			assert.Equal(t, int64(1), f.count(t, tt.row(0, 0)))
		})
	}
}
