// Package services holds the recipe, catalog, follow and membership
// operations, and the read model composing API representations.
package services

import (
	"github.com/franciscosanchezn/gin-recipes-api/internal/config"
	"github.com/franciscosanchezn/gin-recipes-api/internal/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var log = logrus.New()

func init() {
	log.SetFormatter(&logrus.JSONFormatter{})
	switch config.GetEnvWithDefault("APP_ENV", "development") {
	case "development":
		log.SetLevel(logrus.DebugLevel)
	case "production":
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}
}

// Viewer is the identity a request is served for. The zero value is anonymous.
type Viewer struct {
	UserID uint
	Role   string
}

// Anonymous is the viewer of unauthenticated requests
var Anonymous = Viewer{}

func (v Viewer) Authenticated() bool {
	return v.UserID != 0
}

func (v Viewer) IsAdmin() bool {
	return v.Authenticated() && v.Role == models.RoleAdmin
}

// CanModify reports whether the viewer owns the resource or is an admin
func (v Viewer) CanModify(resource models.Ownable) bool {
	if !v.Authenticated() {
		return false
	}
	return v.IsAdmin() || resource.GetUserID() == v.UserID
}

// Page selects a window of an ordered collection. Number starts at 1,
// a Size of 0 returns everything.
type Page struct {
	Number int
	Size   int
}

// Scope applies the page as a gorm scope
func (p Page) Scope(db *gorm.DB) *gorm.DB {
	if p.Size <= 0 {
		return db
	}
	number := p.Number
	if number < 1 {
		number = 1
	}
	return db.Offset((number - 1) * p.Size).Limit(p.Size)
}

// Paged is a page of results with the total count of the collection
type Paged[T any] struct {
	Count   int64 `json:"count"`
	Results []T   `json:"results"`
}
