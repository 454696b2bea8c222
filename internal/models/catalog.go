package models

// Tag is reference data used to group recipes, e.g. "breakfast".
type Tag struct {
	ID    uint   `gorm:"primaryKey"`
	Name  string `gorm:"size:200;not null"`
	Color string `gorm:"size:7;not null"`
	Slug  string `gorm:"size:200;uniqueIndex;not null"`
}

// Ingredient is reference data, usually bulk loaded from a CSV file
type Ingredient struct {
	ID              uint   `gorm:"primaryKey"`
	Name            string `gorm:"size:200;index;not null"`
	MeasurementUnit string `gorm:"size:200;not null"`
}
