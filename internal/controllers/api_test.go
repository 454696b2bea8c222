package controllers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/franciscosanchezn/gin-recipes-api/internal/database"
	"github.com/franciscosanchezn/gin-recipes-api/internal/media"
	"github.com/franciscosanchezn/gin-recipes-api/internal/models"
	"github.com/franciscosanchezn/gin-recipes-api/internal/ratelimit"
	"github.com/franciscosanchezn/gin-recipes-api/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testServer struct {
	router *gin.Engine
	api    *API
	db     *gorm.DB
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?_foreign_keys=on"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := setupTestDB(t)
	storage, err := media.NewStorage(t.TempDir(), "/media/")
	require.NoError(t, err)

	api := NewAPI(Deps{
		DB:           db,
		Storage:      storage,
		JWTSecret:    "controllers-test-secret",
		TokenTTL:     time.Hour,
		PageSize:     2,
		LoginLimiter: ratelimit.New(100, 100),
	})
	require.NoError(t, api.Tokens.EnsureDefaultClient(context.Background()))

	router := gin.New()
	api.RegisterRoutes(router)
	return &testServer{router: router, api: api, db: db}
}

func (s *testServer) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// signUp registers a user and logs them in, returning the user id and token
func (s *testServer) signUp(t *testing.T, username string) (uint, string) {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/users", gin.H{
		"email":      username + "@example.com",
		"username":   username,
		"first_name": "First",
		"last_name":  "Last",
		"password":   "correct-horse",
	}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created registeredUser
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	return created.ID, s.login(t, username+"@example.com", "correct-horse")
}

func (s *testServer) login(t *testing.T, email, password string) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/auth/token/login", gin.H{"email": email, "password": password}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp loginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AuthToken)
	require.Equal(t, int64(time.Hour/time.Second), resp.ExpiresIn)
	return resp.AuthToken
}

func (s *testServer) admin(t *testing.T) string {
	t.Helper()
	_, err := s.api.Users.CreateAdmin(context.Background(), services.RegisterInput{
		Email: "admin@example.com", Username: "admin", FirstName: "Ad", LastName: "Min", Password: "admin-password",
	})
	require.NoError(t, err)
	return s.login(t, "admin@example.com", "admin-password")
}

func (s *testServer) seedCatalog(t *testing.T) (tagIDs []uint, ingredientIDs []uint) {
	t.Helper()
	for _, tag := range []models.Tag{
		{Name: "Breakfast", Color: "#E26C2D", Slug: "breakfast"},
		{Name: "Dinner", Color: "#49B64E", Slug: "dinner"},
	} {
		require.NoError(t, s.db.Create(&tag).Error)
		tagIDs = append(tagIDs, tag.ID)
	}
	for _, ing := range []models.Ingredient{
		{Name: "eggs", MeasurementUnit: "pcs"},
		{Name: "flour", MeasurementUnit: "g"},
	} {
		require.NoError(t, s.db.Create(&ing).Error)
		ingredientIDs = append(ingredientIDs, ing.ID)
	}
	return tagIDs, ingredientIDs
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func samplePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 32), G: 120, B: uint8(y * 32), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func recipeBody(name string, tags []uint, ingredients ...services.IngredientAmount) gin.H {
	return gin.H{
		"name":         name,
		"text":         "Whisk and fry.",
		"cooking_time": 10,
		"tags":         tags,
		"ingredients":  ingredients,
	}
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/users", gin.H{
		"email": "alice@Example.COM", "username": "alice", "first_name": "Alice", "last_name": "Liddell",
		"password": "correct-horse",
	}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decode[map[string]any](t, w)
	assert.NotContains(t, body, "is_subscribed")
	assert.NotContains(t, body, "password")
	assert.Equal(t, "alice", body["username"])

	t.Run("duplicate registration", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/users", gin.H{
			"email": "alice@example.com", "username": "alice", "first_name": "A", "last_name": "L",
			"password": "correct-horse",
		}, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		apiErr := decode[models.APIError](t, w)
		assert.Equal(t, models.ErrValidationFailed, apiErr.Code)
		assert.Contains(t, apiErr.Details, "email")
		assert.Contains(t, apiErr.Details, "username")
	})

	t.Run("wrong password", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/auth/token/login", gin.H{"email": "alice@example.com", "password": "nope"}, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, models.ErrInvalidCredentials, decode[models.APIError](t, w).Code)
	})

	t.Run("missing fields", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/auth/token/login", gin.H{"email": "alice@example.com"}, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	token := s.login(t, "alice@example.com", "correct-horse")

	w = s.do(t, http.MethodGet, "/api/users/me", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	me := decode[services.UserView](t, w)
	assert.Equal(t, "alice", me.Username)
	assert.False(t, me.IsSubscribed)

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/api/users/me", nil, "").Code)

	w = s.do(t, http.MethodPost, "/api/users/set_password", gin.H{
		"current_password": "wrong-one", "new_password": "battery-staple",
	}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/users/set_password", gin.H{
		"current_password": "correct-horse", "new_password": "battery-staple",
	}, token)
	assert.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodPost, "/api/auth/token/logout", nil, token).Code)
	w = s.do(t, http.MethodGet, "/api/users/me", nil, token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, models.ErrInvalidToken, decode[models.APIError](t, w).Code)

	s.login(t, "alice@example.com", "battery-staple")
}

func TestLoginIsRateLimited(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := setupTestDB(t)
	storage, err := media.NewStorage(t.TempDir(), "/media/")
	require.NoError(t, err)
	api := NewAPI(Deps{
		DB: db, Storage: storage, JWTSecret: "s", TokenTTL: time.Hour, PageSize: 6,
		LoginLimiter: ratelimit.New(0.001, 1),
	})
	router := gin.New()
	api.RegisterRoutes(router)
	s := &testServer{router: router, api: api, db: db}

	creds := gin.H{"email": "nobody@example.com", "password": "whatever"}
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/auth/token/login", creds, "").Code)
	w := s.do(t, http.MethodPost, "/api/auth/token/login", creds, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestUserListingAndProfiles(t *testing.T) {
	s := newTestServer(t)
	aliceID, aliceToken := s.signUp(t, "alice")
	bobID, _ := s.signUp(t, "bob")
	s.signUp(t, "carol")

	w := s.do(t, http.MethodGet, "/api/users", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[pageResponse[services.UserView]](t, w)
	assert.Equal(t, int64(3), page.Count)
	require.Len(t, page.Results, 2)
	assert.Equal(t, aliceID, page.Results[0].ID)
	require.NotNil(t, page.Next)
	assert.Equal(t, "http://example.com/api/users?page=2", *page.Next)
	assert.Nil(t, page.Previous)

	w = s.do(t, http.MethodGet, "/api/users?page=2", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	page = decode[pageResponse[services.UserView]](t, w)
	assert.Len(t, page.Results, 1)
	assert.Nil(t, page.Next)
	require.NotNil(t, page.Previous)
	assert.Equal(t, "http://example.com/api/users", *page.Previous)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/users?page=3", nil, "").Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/users?page=zero", nil, "").Code)

	w = s.do(t, http.MethodGet, "/api/users?limit=10", nil, "")
	assert.Len(t, decode[pageResponse[services.UserView]](t, w).Results, 3)

	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, fmt.Sprintf("/api/users/%d/subscribe", bobID), nil, aliceToken).Code)

	w = s.do(t, http.MethodGet, fmt.Sprintf("/api/users/%d", bobID), nil, aliceToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[services.UserView](t, w).IsSubscribed)

	w = s.do(t, http.MethodGet, fmt.Sprintf("/api/users/%d", bobID), nil, "")
	assert.False(t, decode[services.UserView](t, w).IsSubscribed)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/users/999", nil, "").Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/users/abc", nil, "").Code)
}

func TestSubscriptions(t *testing.T) {
	s := newTestServer(t)
	_, ingredients := s.seedCatalog(t)
	aliceID, aliceToken := s.signUp(t, "alice")
	bobID, bobToken := s.signUp(t, "bob")

	for i := 0; i < 3; i++ {
		w := s.do(t, http.MethodPost, "/api/recipes",
			recipeBody(fmt.Sprintf("Omelette %d", i), []uint{}, services.IngredientAmount{ID: ingredients[0], Amount: 2}), bobToken)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	subscribe := fmt.Sprintf("/api/users/%d/subscribe", bobID)
	w := s.do(t, http.MethodPost, subscribe+"?recipes_limit=2", nil, aliceToken)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	sub := decode[services.SubscriptionView](t, w)
	assert.True(t, sub.IsSubscribed)
	assert.Equal(t, int64(3), sub.RecipesCount)
	require.Len(t, sub.Recipes, 2)
	assert.Equal(t, "Omelette 2", sub.Recipes[0].Name)

	w = s.do(t, http.MethodPost, subscribe, nil, aliceToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, models.ErrConflict, decode[models.APIError](t, w).Code)

	w = s.do(t, http.MethodPost, fmt.Sprintf("/api/users/%d/subscribe", aliceID), nil, aliceToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, models.ErrValidationFailed, decode[models.APIError](t, w).Code)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPost, "/api/users/999/subscribe", nil, aliceToken).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPost, subscribe, nil, "").Code)

	w = s.do(t, http.MethodGet, "/api/users/subscriptions?recipes_limit=1", nil, aliceToken)
	require.Equal(t, http.StatusOK, w.Code)
	subs := decode[pageResponse[services.SubscriptionView]](t, w)
	assert.Equal(t, int64(1), subs.Count)
	require.Len(t, subs.Results, 1)
	assert.Equal(t, bobID, subs.Results[0].ID)
	assert.Len(t, subs.Results[0].Recipes, 1)

	w = s.do(t, http.MethodGet, "/api/users/subscriptions?recipes_limit=abc", nil, aliceToken)
	subs = decode[pageResponse[services.SubscriptionView]](t, w)
	assert.Len(t, subs.Results[0].Recipes, 3)

	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, subscribe, nil, aliceToken).Code)
	w = s.do(t, http.MethodDelete, subscribe, nil, aliceToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, models.ErrConflict, decode[models.APIError](t, w).Code)
}

func TestCatalogRoutes(t *testing.T) {
	s := newTestServer(t)
	adminToken := s.admin(t)
	_, userToken := s.signUp(t, "alice")

	tag := gin.H{"name": "Lunch", "color": "#aabbcc", "slug": "lunch"}
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPost, "/api/tags", tag, "").Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPost, "/api/tags", tag, userToken).Code)

	w := s.do(t, http.MethodPost, "/api/tags", tag, adminToken)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[services.TagView](t, w)
	assert.Equal(t, "#AABBCC", created.Color)

	w = s.do(t, http.MethodPost, "/api/tags", gin.H{"name": "Bad", "color": "red", "slug": "bad"}, adminToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode[models.APIError](t, w).Details, "color")

	w = s.do(t, http.MethodPatch, fmt.Sprintf("/api/tags/%d", created.ID), gin.H{"name": "Late lunch"}, adminToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[services.TagView](t, w)
	assert.Equal(t, "Late lunch", updated.Name)
	assert.Equal(t, "lunch", updated.Slug)
	assert.Equal(t, "#AABBCC", updated.Color)

	w = s.do(t, http.MethodGet, "/api/tags", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]services.TagView](t, w), 1)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, fmt.Sprintf("/api/tags/%d", created.ID), nil, "").Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/tags/404", nil, "").Code)

	for _, ing := range []gin.H{
		{"name": "Brown sugar", "measurement_unit": "g"},
		{"name": "sugar", "measurement_unit": "g"},
		{"name": "salt", "measurement_unit": "pinch"},
	} {
		require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/ingredients", ing, adminToken).Code)
	}
	assert.Equal(t, http.StatusForbidden,
		s.do(t, http.MethodPost, "/api/ingredients", gin.H{"name": "x", "measurement_unit": "g"}, userToken).Code)

	w = s.do(t, http.MethodGet, "/api/ingredients?name=SUG", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	found := decode[[]services.IngredientView](t, w)
	require.Len(t, found, 2)
	assert.Equal(t, "Brown sugar", found[0].Name)

	w = s.do(t, http.MethodPatch, fmt.Sprintf("/api/ingredients/%d", found[1].ID), gin.H{"measurement_unit": "kg"}, adminToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "sugar", decode[services.IngredientView](t, w).Name)

	w = s.do(t, http.MethodGet, fmt.Sprintf("/api/ingredients/%d", found[1].ID), nil, "")
	assert.Equal(t, "kg", decode[services.IngredientView](t, w).MeasurementUnit)
}

func TestRecipeLifecycle(t *testing.T) {
	s := newTestServer(t)
	tags, ingredients := s.seedCatalog(t)
	_, aliceToken := s.signUp(t, "alice")
	_, bobToken := s.signUp(t, "bob")

	body := recipeBody("Omelette", []uint{tags[1], tags[0]},
		services.IngredientAmount{ID: ingredients[0], Amount: 3},
		services.IngredientAmount{ID: ingredients[1], Amount: 50})
	body["image"] = "data:image/png;base64," + base64.StdEncoding.EncodeToString(samplePNG(t))

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPost, "/api/recipes", body, "").Code)

	w := s.do(t, http.MethodPost, "/api/recipes", body, aliceToken)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	recipe := decode[services.RecipeView](t, w)
	assert.Equal(t, "alice", recipe.Author.Username)
	assert.True(t, strings.HasPrefix(recipe.Image, "/media/recipes/images/"), recipe.Image)
	require.Len(t, recipe.Tags, 2)
	assert.Equal(t, "Breakfast", recipe.Tags[0].Name)
	require.Len(t, recipe.Ingredients, 2)
	assert.Equal(t, 3, recipe.Ingredients[0].Amount)
	assert.Equal(t, "pcs", recipe.Ingredients[0].MeasurementUnit)

	path := fmt.Sprintf("/api/recipes/%d", recipe.ID)

	t.Run("validation errors are 400", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/recipes", recipeBody("Empty", []uint{}), aliceToken)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, services.MsgNoIngredients, decode[models.APIError](t, w).Message)

		dup := recipeBody("Dup", []uint{},
			services.IngredientAmount{ID: ingredients[0], Amount: 1},
			services.IngredientAmount{ID: ingredients[0], Amount: 2})
		w = s.do(t, http.MethodPost, "/api/recipes", dup, aliceToken)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, services.MsgDuplicateIngredients, decode[models.APIError](t, w).Message)

		bad := recipeBody("Bad image", []uint{}, services.IngredientAmount{ID: ingredients[0], Amount: 1})
		bad["image"] = "data:image/png;base64,bm90IGFuIGltYWdl"
		assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/recipes", bad, aliceToken).Code)
	})

	t.Run("unknown ingredient is 404", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/recipes",
			recipeBody("Ghost", []uint{}, services.IngredientAmount{ID: 999, Amount: 1}), aliceToken)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	w = s.do(t, http.MethodGet, path, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	anon := decode[services.RecipeView](t, w)
	assert.False(t, anon.IsFavorited)

	w = s.do(t, http.MethodPatch, path, gin.H{"name": "Stolen"}, bobToken)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPatch, path, gin.H{"cooking_time": 15, "tags": []uint{}}, aliceToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	patched := decode[services.RecipeView](t, w)
	assert.Equal(t, 15, patched.CookingTime)
	assert.Equal(t, "Omelette", patched.Name)
	assert.Empty(t, patched.Tags)
	assert.Len(t, patched.Ingredients, 2)

	w = s.do(t, http.MethodPatch, path, gin.H{"ingredients": []services.IngredientAmount{}}, aliceToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	favorite := path + "/favorite"
	w = s.do(t, http.MethodPost, favorite, nil, bobToken)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	minified := decode[map[string]any](t, w)
	assert.Equal(t, "Omelette", minified["name"])
	assert.NotContains(t, minified, "author")

	w = s.do(t, http.MethodPost, favorite, nil, bobToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, models.ErrConflict, decode[models.APIError](t, w).Code)

	w = s.do(t, http.MethodGet, path, nil, bobToken)
	assert.True(t, decode[services.RecipeView](t, w).IsFavorited)

	w = s.do(t, http.MethodGet, "/api/recipes?is_favorited=1", nil, bobToken)
	assert.Equal(t, int64(1), decode[pageResponse[services.RecipeView]](t, w).Count)
	w = s.do(t, http.MethodGet, "/api/recipes?is_favorited=1", nil, aliceToken)
	assert.Equal(t, int64(0), decode[pageResponse[services.RecipeView]](t, w).Count)

	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, favorite, nil, bobToken).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodDelete, favorite, nil, bobToken).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPost, "/api/recipes/999/favorite", nil, bobToken).Code)

	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodDelete, path, nil, bobToken).Code)
	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, path, nil, aliceToken).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, path, nil, "").Code)
}

func TestRecipeListFilters(t *testing.T) {
	s := newTestServer(t)
	tags, ingredients := s.seedCatalog(t)
	aliceID, aliceToken := s.signUp(t, "alice")
	_, bobToken := s.signUp(t, "bob")

	create := func(token, name string, tagIDs []uint) {
		w := s.do(t, http.MethodPost, "/api/recipes",
			recipeBody(name, tagIDs, services.IngredientAmount{ID: ingredients[0], Amount: 1}), token)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}
	create(aliceToken, "Pancakes", []uint{tags[0]})
	create(aliceToken, "Stew", []uint{tags[1]})
	create(bobToken, "Porridge", []uint{tags[0]})

	list := func(query string) pageResponse[services.RecipeView] {
		w := s.do(t, http.MethodGet, "/api/recipes"+query, nil, "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		return decode[pageResponse[services.RecipeView]](t, w)
	}

	all := list("?limit=10")
	assert.Equal(t, int64(3), all.Count)
	assert.Equal(t, "Porridge", all.Results[0].Name)

	assert.Equal(t, int64(2), list(fmt.Sprintf("?author=%d", aliceID)).Count)
	assert.Equal(t, int64(2), list("?tags=breakfast").Count)
	assert.Equal(t, int64(3), list("?tags=breakfast&tags=dinner").Count)
	assert.Equal(t, int64(0), list("?tags=unknown").Count)
	assert.Equal(t, int64(3), list("?is_in_shopping_cart=1").Count, "ignored for anonymous viewers")

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/recipes?author=me", nil, "").Code)
}

func TestShoppingCartDownload(t *testing.T) {
	s := newTestServer(t)
	_, ingredients := s.seedCatalog(t)
	_, aliceToken := s.signUp(t, "alice")

	var ids []uint
	for _, amount := range []int{2, 3} {
		w := s.do(t, http.MethodPost, "/api/recipes", recipeBody(fmt.Sprintf("Recipe %d", amount), []uint{},
			services.IngredientAmount{ID: ingredients[0], Amount: amount},
			services.IngredientAmount{ID: ingredients[1], Amount: 100}), aliceToken)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		ids = append(ids, decode[services.RecipeView](t, w).ID)
	}

	w := s.do(t, http.MethodGet, "/api/recipes/download_shopping_cart", nil, aliceToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "empty")

	for _, id := range ids {
		require.Equal(t, http.StatusCreated,
			s.do(t, http.MethodPost, fmt.Sprintf("/api/recipes/%d/shopping_cart", id), nil, aliceToken).Code)
	}

	w = s.do(t, http.MethodGet, "/api/recipes/download_shopping_cart", nil, aliceToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="shopping_list.txt"`, w.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/plain"))
	assert.Equal(t, "Shopping list\n\n1. eggs (pcs) - 5\n2. flour (g) - 200\n", w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/api/recipes/download_shopping_cart", nil, "").Code)

	w = s.do(t, http.MethodDelete, fmt.Sprintf("/api/recipes/%d/shopping_cart", ids[0]), nil, aliceToken)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = s.do(t, http.MethodGet, "/api/recipes?is_in_shopping_cart=true", nil, aliceToken)
	assert.Equal(t, int64(1), decode[pageResponse[services.RecipeView]](t, w).Count)
}

func TestRecipeMultipartCreate(t *testing.T) {
	s := newTestServer(t)
	tags, ingredients := s.seedCatalog(t)
	_, aliceToken := s.signUp(t, "alice")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("name", "Crepes"))
	require.NoError(t, mw.WriteField("text", "Thin pancakes."))
	require.NoError(t, mw.WriteField("cooking_time", "20"))
	require.NoError(t, mw.WriteField("tags", fmt.Sprint(tags[0])))
	require.NoError(t, mw.WriteField("tags", fmt.Sprint(tags[1])))
	require.NoError(t, mw.WriteField("ingredients",
		fmt.Sprintf(`[{"id": %d, "amount": 2}, {"id": %d, "amount": 250}]`, ingredients[0], ingredients[1])))
	part, err := mw.CreateFormFile("image", "crepes.png")
	require.NoError(t, err)
	_, err = part.Write(samplePNG(t))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/recipes", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+aliceToken)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	recipe := decode[services.RecipeView](t, w)
	assert.Equal(t, "Crepes", recipe.Name)
	assert.Equal(t, 20, recipe.CookingTime)
	assert.Len(t, recipe.Tags, 2)
	assert.Len(t, recipe.Ingredients, 2)
	assert.True(t, strings.HasSuffix(recipe.Image, ".png"), recipe.Image)
	assert.NotEmpty(t, recipe.ImageBlurHash)
}

func TestParseTagIDs(t *testing.T) {
	testCases := []struct {
		name    string
		values  []string
		want    []uint
		wantErr bool
	}{
		{"repeated values", []string{"1", "2"}, []uint{1, 2}, false},
		{"json array", []string{"[3, 4]"}, []uint{3, 4}, false},
		{"blank values skipped", []string{"", " 5 "}, []uint{5}, false},
		{"empty list", []string{""}, []uint{}, false},
		{"not a number", []string{"x"}, nil, true},
		{"broken json", []string{"[1,"}, nil, true},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseTagIDs(tt.values)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRespondErrorMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)
	testCases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", services.Validation("bad", map[string]string{"name": "required"}), http.StatusBadRequest, models.ErrValidationFailed},
		{"conflict", services.Conflict("already"), http.StatusBadRequest, models.ErrConflict},
		{"not found", services.NotFound("recipe not found"), http.StatusNotFound, models.ErrNotFound},
		{"permission", services.Permission("not yours"), http.StatusForbidden, models.ErrForbidden},
		{"anonymous", services.Permission(services.MsgAuthRequired), http.StatusUnauthorized, models.ErrUnauthorized},
		{"credentials", services.ErrInvalidCredentials, http.StatusBadRequest, models.ErrInvalidCredentials},
		{"wrapped", fmt.Errorf("update: %w", services.NotFound("tag not found")), http.StatusNotFound, models.ErrNotFound},
		{"unexpected", io.ErrUnexpectedEOF, http.StatusInternalServerError, models.ErrInternalServer},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/api/test", nil)

			respondError(c, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantCode, decode[models.APIError](t, w).Code)
			assert.True(t, c.IsAborted())
		})
	}
}
