package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/franciscosanchezn/gin-recipes-api/internal/models"
	"github.com/franciscosanchezn/gin-recipes-api/internal/validation"
	"gorm.io/gorm"
)

// TagInput carries the fields of a tag create or update
type TagInput struct {
	Name  string `json:"name" validate:"required,max=200"`
	Color string `json:"color" validate:"required,hexcolor6"`
	Slug  string `json:"slug" validate:"required,max=200,slug"`
}

// IngredientInput is one ingredient with its measurement unit
type IngredientInput struct {
	Name            string `json:"name" validate:"required,max=200"`
	MeasurementUnit string `json:"measurement_unit" validate:"required,max=200"`
}

// CatalogService serves the tag and ingredient reference data.
// Reads are public, writes are reserved to administrators.
type CatalogService interface {
	ListTags(ctx context.Context) ([]TagView, error)
	GetTag(ctx context.Context, id uint) (TagView, error)
	CreateTag(ctx context.Context, viewer Viewer, in TagInput) (TagView, error)
	UpdateTag(ctx context.Context, viewer Viewer, id uint, in TagInput) (TagView, error)

	// ListIngredients filters by a case insensitive name substring when name is not empty
	ListIngredients(ctx context.Context, name string) ([]IngredientView, error)
	GetIngredient(ctx context.Context, id uint) (IngredientView, error)
	CreateIngredient(ctx context.Context, viewer Viewer, in IngredientInput) (IngredientView, error)
	UpdateIngredient(ctx context.Context, viewer Viewer, id uint, in IngredientInput) (IngredientView, error)
	// ImportIngredients bulk loads ingredients. With replace set the
	// existing ingredients, and the recipe lines using them, are removed first.
	ImportIngredients(ctx context.Context, rows []IngredientInput, replace bool) (int, error)
}

type catalogService struct {
	db        *gorm.DB
	validator *validation.Validator
}

// NewCatalogService creates a new CatalogService
func NewCatalogService(db *gorm.DB) CatalogService {
	return &catalogService{db: db, validator: validation.New()}
}

func tagView(t models.Tag) TagView {
	return TagView{ID: t.ID, Name: t.Name, Color: t.Color, Slug: t.Slug}
}

func ingredientView(i models.Ingredient) IngredientView {
	return IngredientView{ID: i.ID, Name: i.Name, MeasurementUnit: i.MeasurementUnit}
}

func requireAdmin(viewer Viewer) error {
	if !viewer.Authenticated() {
		return Permission(MsgAuthRequired)
	}
	if !viewer.IsAdmin() {
		return Permission("administrator role required")
	}
	return nil
}

func (s *catalogService) ListTags(ctx context.Context) ([]TagView, error) {
	var tags []models.Tag
	if err := s.db.WithContext(ctx).Order("name").Find(&tags).Error; err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	views := make([]TagView, 0, len(tags))
	for _, t := range tags {
		views = append(views, tagView(t))
	}
	return views, nil
}

func (s *catalogService) GetTag(ctx context.Context, id uint) (TagView, error) {
	var tag models.Tag
	if err := s.db.WithContext(ctx).First(&tag, id).Error; err != nil {
		return TagView{}, lookupError(err, "tag")
	}
	return tagView(tag), nil
}

func (s *catalogService) CreateTag(ctx context.Context, viewer Viewer, in TagInput) (TagView, error) {
	if err := requireAdmin(viewer); err != nil {
		return TagView{}, err
	}
	if err := s.validator.Validate(in); err != nil {
		return TagView{}, invalid(err)
	}
	tag := models.Tag{Name: strings.TrimSpace(in.Name), Color: strings.ToUpper(in.Color), Slug: in.Slug}
	if err := s.db.WithContext(ctx).Create(&tag).Error; err != nil {
		return TagView{}, tagWriteError(err)
	}
	log.WithField("tag_id", tag.ID).Info("Tag created")
	return tagView(tag), nil
}

func (s *catalogService) UpdateTag(ctx context.Context, viewer Viewer, id uint, in TagInput) (TagView, error) {
	if err := requireAdmin(viewer); err != nil {
		return TagView{}, err
	}
	var tag models.Tag
	if err := s.db.WithContext(ctx).First(&tag, id).Error; err != nil {
		return TagView{}, lookupError(err, "tag")
	}
	if err := s.validator.Validate(in); err != nil {
		return TagView{}, invalid(err)
	}
	tag.Name = strings.TrimSpace(in.Name)
	tag.Color = strings.ToUpper(in.Color)
	tag.Slug = in.Slug
	if err := s.db.WithContext(ctx).Save(&tag).Error; err != nil {
		return TagView{}, tagWriteError(err)
	}
	return tagView(tag), nil
}

func tagWriteError(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return Validation("tag already exists", map[string]string{"slug": "a tag with this slug already exists"})
	}
	return fmt.Errorf("save tag: %w", err)
}

func (s *catalogService) ListIngredients(ctx context.Context, name string) ([]IngredientView, error) {
	q := s.db.WithContext(ctx).Model(&models.Ingredient{})
	if name = strings.TrimSpace(name); name != "" {
		q = q.Where("LOWER(name) LIKE ? ESCAPE '\\'", "%"+escapeLike(strings.ToLower(name))+"%")
	}
	var ingredients []models.Ingredient
	if err := q.Order("name").Order("id").Find(&ingredients).Error; err != nil {
		return nil, fmt.Errorf("list ingredients: %w", err)
	}
	views := make([]IngredientView, 0, len(ingredients))
	for _, i := range ingredients {
		views = append(views, ingredientView(i))
	}
	return views, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func (s *catalogService) GetIngredient(ctx context.Context, id uint) (IngredientView, error) {
	var ingredient models.Ingredient
	if err := s.db.WithContext(ctx).First(&ingredient, id).Error; err != nil {
		return IngredientView{}, lookupError(err, "ingredient")
	}
	return ingredientView(ingredient), nil
}

func (s *catalogService) CreateIngredient(ctx context.Context, viewer Viewer, in IngredientInput) (IngredientView, error) {
	if err := requireAdmin(viewer); err != nil {
		return IngredientView{}, err
	}
	if err := s.validator.Validate(in); err != nil {
		return IngredientView{}, invalid(err)
	}
	ingredient := models.Ingredient{Name: strings.TrimSpace(in.Name), MeasurementUnit: strings.TrimSpace(in.MeasurementUnit)}
	if err := s.db.WithContext(ctx).Create(&ingredient).Error; err != nil {
		return IngredientView{}, fmt.Errorf("create ingredient: %w", err)
	}
	return ingredientView(ingredient), nil
}

func (s *catalogService) UpdateIngredient(ctx context.Context, viewer Viewer, id uint, in IngredientInput) (IngredientView, error) {
	if err := requireAdmin(viewer); err != nil {
		return IngredientView{}, err
	}
	var ingredient models.Ingredient
	if err := s.db.WithContext(ctx).First(&ingredient, id).Error; err != nil {
		return IngredientView{}, lookupError(err, "ingredient")
	}
	if err := s.validator.Validate(in); err != nil {
		return IngredientView{}, invalid(err)
	}
	ingredient.Name = strings.TrimSpace(in.Name)
	ingredient.MeasurementUnit = strings.TrimSpace(in.MeasurementUnit)
	if err := s.db.WithContext(ctx).Save(&ingredient).Error; err != nil {
		return IngredientView{}, fmt.Errorf("update ingredient: %w", err)
	}
	return ingredientView(ingredient), nil
}

func (s *catalogService) ImportIngredients(ctx context.Context, rows []IngredientInput, replace bool) (int, error) {
	ingredients := make([]models.Ingredient, 0, len(rows))
	for i, row := range rows {
		if err := s.validator.Validate(row); err != nil {
			return 0, Validation(fmt.Sprintf("row %d: %v", i+1, err), nil)
		}
		ingredients = append(ingredients, models.Ingredient{
			Name:            strings.TrimSpace(row.Name),
			MeasurementUnit: strings.TrimSpace(row.MeasurementUnit),
		})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if replace {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Ingredient{}).Error; err != nil {
				return fmt.Errorf("clear ingredients: %w", err)
			}
		}
		if len(ingredients) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(&ingredients, 500).Error; err != nil {
			return fmt.Errorf("insert ingredients: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	log.WithField("count", len(ingredients)).Info("Ingredients imported")
	return len(ingredients), nil
}

// ReadIngredientsCSV reads "name,measurement_unit" rows. Blank lines are
// skipped, there is no header row.
func ReadIngredientsCSV(r io.Reader) ([]IngredientInput, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 2
	reader.TrimLeadingSpace = true

	var rows []IngredientInput
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read ingredients csv: %w", err)
		}
		rows = append(rows, IngredientInput{Name: record[0], MeasurementUnit: record[1]})
	}
}
