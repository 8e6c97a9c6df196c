package models

import "time"

// Product is a catalog entry that orders produce.
type Product struct {
	ID        string  `gorm:"primaryKey;size:32"`
	Name      string  `gorm:"size:255;not null"`
	DrawingID *string `gorm:"size:32"`
}

// Drawing is a technical drawing linked to a product.
type Drawing struct {
	ID   string `gorm:"primaryKey;size:32"`
	Name string `gorm:"size:255"`
	URL  string `gorm:"type:text"`
}

// Order is a production order for a product.
type Order struct {
	ID          string  `gorm:"primaryKey;size:32"`
	OrderNumber string  `gorm:"size:64;uniqueIndex;not null"`
	ProductID   string  `gorm:"size:32;index"`
	WorkCycleID *string `gorm:"size:32"`
	Quantity    int     `gorm:"default:0"`
	Deadline    *time.Time
	CreatedAt   time.Time
}

// JobCycle is a reusable production template made of ordered stages.
type JobCycle struct {
	ID     string     `gorm:"primaryKey;size:32"`
	Name   string     `gorm:"size:255;not null"`
	Stages []JobStage `gorm:"foreignKey:CycleID"`
}

// JobStage is one step of a JobCycle. DefaultResponsible holds a JSON array
// of user IDs.
type JobStage struct {
	ID                 string  `gorm:"primaryKey;size:32"`
	CycleID            string  `gorm:"size:32;index"`
	Position           int     `gorm:"default:0"`
	Name               string  `gorm:"size:255;not null"`
	Machine            string  `gorm:"size:128"`
	Notes              string  `gorm:"type:text"`
	DefaultResponsible string  `gorm:"type:json"`
	DefaultCount       int     `gorm:"default:0"`
	SetupMapID         *string `gorm:"size:32"`
}

// SetupMap is the machine-setup document for producing a product.
// Consumption holds a JSON array of component ratios.
type SetupMap struct {
	ID               string `gorm:"primaryKey;size:32"`
	Name             string `gorm:"size:255;not null"`
	ProductCatalogID string `gorm:"size:32;index"`
	PhotoURL         string `gorm:"type:text"`
	DrawingID        string `gorm:"size:32"`
	DrawingURL       string `gorm:"type:text"`
	DrawingName      string `gorm:"size:255"`
	Consumption      string `gorm:"type:json"`
	CreatedAt        time.Time

	Blocks []SetupBlock `gorm:"foreignKey:SetupMapID"`
}

// SetupBlock is one tool row of a SetupMap.
type SetupBlock struct {
	ID         uint    `gorm:"primaryKey;autoIncrement"`
	SetupMapID string  `gorm:"size:32;index"`
	Position   int     `gorm:"default:0"`
	ToolNumber string  `gorm:"size:32"`
	ToolName   string  `gorm:"size:255"`
	ToolID     *string `gorm:"size:32"`
	Settings   string  `gorm:"type:text"`
}
