// Package controllers exposes the services over HTTP with gin
package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/franciscosanchezn/gin-recipes-api/internal/config"
	"github.com/franciscosanchezn/gin-recipes-api/internal/media"
	"github.com/franciscosanchezn/gin-recipes-api/internal/models"
	"github.com/franciscosanchezn/gin-recipes-api/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

var log = logrus.New()

func init() {
	log.SetFormatter(&logrus.JSONFormatter{})
	environment := config.GetEnvWithDefault("APP_ENV", "development")
	switch environment {
	case "development":
		log.SetLevel(logrus.DebugLevel)
	case "production":
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}
}

// maxImageBytes bounds a multipart recipe image
const maxImageBytes = 10 << 20

// respondError writes the API error matching a service error and aborts the request
func respondError(c *gin.Context, err error) {
	if errors.Is(err, services.ErrInvalidCredentials) {
		c.AbortWithStatusJSON(http.StatusBadRequest,
			models.NewAPIError(models.ErrInvalidCredentials, "Unable to log in with provided credentials"))
		return
	}

	var svcErr *services.Error
	if !errors.As(err, &svcErr) {
		log.WithError(err).WithField("path", c.Request.URL.Path).Error("Unhandled error")
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError,
			models.NewAPIError(models.ErrInternalServer, "Internal server error"))
		return
	}

	var details map[string]interface{}
	if len(svcErr.Details) > 0 {
		details = make(map[string]interface{}, len(svcErr.Details))
		for field, msg := range svcErr.Details {
			details[field] = msg
		}
	}

	status, code := http.StatusInternalServerError, models.ErrInternalServer
	switch svcErr.Kind {
	case services.KindValidation:
		status, code = http.StatusBadRequest, models.ErrValidationFailed
	case services.KindConflict:
		status, code = http.StatusBadRequest, models.ErrConflict
	case services.KindNotFound:
		status, code = http.StatusNotFound, models.ErrNotFound
	case services.KindPermission:
		status, code = http.StatusForbidden, models.ErrForbidden
		if svcErr.Message == services.MsgAuthRequired {
			status, code = http.StatusUnauthorized, models.ErrUnauthorized
		}
	}

	apiErr := models.APIError{Code: code, Message: svcErr.Message, Details: details}
	c.AbortWithStatusJSON(status, apiErr)
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, models.NewAPIError(models.ErrBadRequest, message))
}

// parseID reads a positive numeric path parameter. A malformed id is a 404,
// the resource it names cannot exist.
func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.AbortWithStatusJSON(http.StatusNotFound, models.NewAPIError(models.ErrNotFound, "Not found."))
		return 0, false
	}
	return uint(id), true
}

// pageResponse is a page of a collection with links to its neighbours
type pageResponse[T any] struct {
	Count    int64   `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// paginator reads the page and limit query parameters
type paginator struct {
	defaultSize int
}

func (p paginator) page(c *gin.Context) (services.Page, bool) {
	page := services.Page{Number: 1, Size: p.defaultSize}
	if raw := c.Query("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.AbortWithStatusJSON(http.StatusNotFound, models.NewAPIError(models.ErrNotFound, "Invalid page."))
			return page, false
		}
		page.Number = n
	}
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			page.Size = n
		}
	}
	return page, true
}

// respond writes the page, or 404 when the page number is past the last page
func respondPage[T any](c *gin.Context, page services.Page, paged services.Paged[T]) {
	if page.Number > 1 && int64((page.Number-1)*page.Size) >= paged.Count {
		c.AbortWithStatusJSON(http.StatusNotFound, models.NewAPIError(models.ErrNotFound, "Invalid page."))
		return
	}

	resp := pageResponse[T]{Count: paged.Count, Results: paged.Results}
	if resp.Results == nil {
		resp.Results = []T{}
	}
	if int64(page.Number*page.Size) < paged.Count {
		next := pageURL(c, page.Number+1)
		resp.Next = &next
	}
	if page.Number > 1 {
		prev := pageURL(c, page.Number-1)
		resp.Previous = &prev
	}
	c.JSON(http.StatusOK, resp)
}

// pageURL is the absolute URL of the current request with another page number
func pageURL(c *gin.Context, number int) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	query := c.Request.URL.Query()
	if number == 1 {
		query.Del("page")
	} else {
		query.Set("page", strconv.Itoa(number))
	}

	u := url.URL{Scheme: scheme, Host: c.Request.Host, Path: c.Request.URL.Path, RawQuery: query.Encode()}
	return u.String()
}

// recipePayload is the JSON body of a recipe write, the image travels
// inline as a base64 data URI
type recipePayload struct {
	services.RecipeInput
	Image *string `json:"image"`
}

// bindRecipeInput accepts either a JSON body or a multipart form with
// the image as a file part
func bindRecipeInput(c *gin.Context) (services.RecipeInput, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		return bindRecipeForm(c)
	}

	var payload recipePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		return services.RecipeInput{}, services.Validation("invalid request body: "+err.Error(), nil)
	}
	in := payload.RecipeInput
	if payload.Image != nil && *payload.Image != "" {
		img, err := media.DecodeDataURI(*payload.Image)
		if err != nil {
			return in, services.Validation(err.Error(), map[string]string{"image": err.Error()})
		}
		in.Image = img
	}
	return in, nil
}

func bindRecipeForm(c *gin.Context) (services.RecipeInput, error) {
	var in services.RecipeInput
	form, err := c.MultipartForm()
	if err != nil {
		return in, services.Validation("invalid multipart form: "+err.Error(), nil)
	}
	value := func(key string) (string, bool) {
		values, ok := form.Value[key]
		if !ok || len(values) == 0 {
			return "", false
		}
		return values[0], true
	}

	if name, ok := value("name"); ok {
		in.Name = &name
	}
	if text, ok := value("text"); ok {
		in.Text = &text
	}
	if raw, ok := value("cooking_time"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return in, services.Validation("cooking_time must be an integer",
				map[string]string{"cooking_time": "must be an integer"})
		}
		in.CookingTime = &n
	}

	if values, ok := form.Value["tags"]; ok {
		tags, err := parseTagIDs(values)
		if err != nil {
			return in, services.Validation(err.Error(), map[string]string{"tags": err.Error()})
		}
		in.Tags = &tags
	}

	if raw, ok := value("ingredients"); ok {
		var items []services.IngredientAmount
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			return in, services.Validation("ingredients must be a JSON list",
				map[string]string{"ingredients": "must be a JSON list of {id, amount}"})
		}
		in.Ingredients = &items
	}

	if files := form.File["image"]; len(files) > 0 {
		fh := files[0]
		if fh.Size > maxImageBytes {
			return in, services.Validation("image is too large", map[string]string{"image": "is too large"})
		}
		f, err := fh.Open()
		if err != nil {
			return in, fmt.Errorf("open uploaded image: %w", err)
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return in, fmt.Errorf("read uploaded image: %w", err)
		}
		img, err := media.NewUpload(fh.Filename, data)
		if err != nil {
			return in, services.Validation(err.Error(), map[string]string{"image": err.Error()})
		}
		in.Image = img
	} else if raw, ok := value("image"); ok && raw != "" {
		img, err := media.DecodeDataURI(raw)
		if err != nil {
			return in, services.Validation(err.Error(), map[string]string{"image": err.Error()})
		}
		in.Image = img
	}

	return in, nil
}

// parseTagIDs reads repeated tag values, or a single JSON array
func parseTagIDs(values []string) ([]uint, error) {
	tags := []uint{}
	if len(values) == 1 && strings.HasPrefix(strings.TrimSpace(values[0]), "[") {
		if err := json.Unmarshal([]byte(values[0]), &tags); err != nil {
			return nil, errors.New("tags must be a list of tag ids")
		}
		return tags, nil
	}
	for _, v := range values {
		if v = strings.TrimSpace(v); v == "" {
			continue
		}
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid tag id %q", v)
		}
		tags = append(tags, uint(id))
	}
	return tags, nil
}
