package services

import (
	"context"
	"strings"
	"testing"

	"github.com/franciscosanchezn/gin-recipes-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTagAdministration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.user(t, "admin", models.RoleAdmin)
	cook := f.user(t, "cook", models.RoleUser)

	_, err := f.catalog.CreateTag(ctx, viewerOf(cook), TagInput{Name: "Lunch", Color: "#49B64E", Slug: "lunch"})
	assert.ErrorIs(t, err, ErrPermission)

	tag, err := f.catalog.CreateTag(ctx, viewerOf(admin), TagInput{Name: "Lunch", Color: "#49b64e", Slug: "lunch"})
	require.NoError(t, err)
	assert.Equal(t, "#49B64E", tag.Color)

	_, err = f.catalog.CreateTag(ctx, viewerOf(admin), TagInput{Name: "Lunch 2", Color: "#000000", Slug: "lunch"})
	assert.ErrorIs(t, err, ErrValidation, "slug is unique")

	_, err = f.catalog.CreateTag(ctx, viewerOf(admin), TagInput{Name: "Bad", Color: "green", Slug: "bad"})
	require.ErrorIs(t, err, ErrValidation)
	var svcErr *Error
	require.ErrorAs(t, err, &svcErr)
	assert.Contains(t, svcErr.Details, "color")

	updated, err := f.catalog.UpdateTag(ctx, viewerOf(admin), tag.ID, TagInput{Name: "Brunch", Color: "#E26C2D", Slug: "brunch"})
	require.NoError(t, err)
	assert.Equal(t, "brunch", updated.Slug)

	_, err = f.catalog.UpdateTag(ctx, viewerOf(admin), 999, TagInput{Name: "X", Color: "#000000", Slug: "x"})
	assert.ErrorIs(t, err, ErrNotFound)

	tags, err := f.catalog.ListTags(ctx)
	require.NoError(t, err)
	require.Len(t, tags, 1)

	got, err := f.catalog.GetTag(ctx, tag.ID)
	require.NoError(t, err)
	assert.Equal(t, "Brunch", got.Name)
}

func TestListIngredientsByName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.ingredient(t, "Sugar", "g")
	f.ingredient(t, "brown sugar", "g")
	f.ingredient(t, "salt", "g")
	f.ingredient(t, "100% juice", "ml")

	all, err := f.catalog.ListIngredients(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 4)

	sugars, err := f.catalog.ListIngredients(ctx, "SUG")
	require.NoError(t, err)
	require.Len(t, sugars, 2)
	assert.Equal(t, "Sugar", sugars[0].Name)
	assert.Equal(t, "brown sugar", sugars[1].Name)

	percent, err := f.catalog.ListIngredients(ctx, "%")
	require.NoError(t, err)
	require.Len(t, percent, 1, "wildcards are matched literally")
	assert.Equal(t, "100% juice", percent[0].Name)

	_, err = f.catalog.GetIngredient(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIngredientAdministration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.user(t, "admin", models.RoleAdmin)

	_, err := f.catalog.CreateIngredient(ctx, Anonymous, IngredientInput{Name: "salt", MeasurementUnit: "g"})
	assert.ErrorIs(t, err, ErrPermission)

	salt, err := f.catalog.CreateIngredient(ctx, viewerOf(admin), IngredientInput{Name: " salt ", MeasurementUnit: "g"})
	require.NoError(t, err)
	assert.Equal(t, "salt", salt.Name)

	_, err = f.catalog.CreateIngredient(ctx, viewerOf(admin), IngredientInput{Name: "pepper"})
	assert.ErrorIs(t, err, ErrValidation)

	updated, err := f.catalog.UpdateIngredient(ctx, viewerOf(admin), salt.ID, IngredientInput{Name: "sea salt", MeasurementUnit: "pinch"})
	require.NoError(t, err)
	assert.Equal(t, "pinch", updated.MeasurementUnit)
}

func TestImportIngredients(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.ingredient(t, "old", "g")

	n, err := f.catalog.ImportIngredients(ctx, []IngredientInput{
		{Name: "flour", MeasurementUnit: "g"},
		{Name: "milk", MeasurementUnit: "ml"},
	}, false)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, int64(3), f.count(t, &models.Ingredient{}))

	n, err = f.catalog.ImportIngredients(ctx, []IngredientInput{{Name: "eggs", MeasurementUnit: "pcs"}}, true)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, int64(1), f.count(t, &models.Ingredient{}))

	_, err = f.catalog.ImportIngredients(ctx, []IngredientInput{{Name: "", MeasurementUnit: "g"}}, true)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, int64(1), f.count(t, &models.Ingredient{}), "invalid rows abort the import")
}

func TestReadIngredientsCSV(t *testing.T) {
	rows, err := ReadIngredientsCSV(strings.NewReader("абрикосовое варенье,г\n\"salt, coarse\", pinch\n\nmilk,ml\n"))
	require.NoError(t, err)
	assert.Equal(t, []IngredientInput{
		{Name: "абрикосовое варенье", MeasurementUnit: "г"},
		{Name: "salt, coarse", MeasurementUnit: "pinch"},
		{Name: "milk", MeasurementUnit: "ml"},
	}, rows)

	_, err = ReadIngredientsCSV(strings.NewReader("flour\n"))
	assert.Error(t, err, "every row needs a name and a unit")
}
