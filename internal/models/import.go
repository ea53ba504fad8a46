package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ImportFormat represents the file format for import
type ImportFormat string

const (
	ImportFormatCSV  ImportFormat = "csv"
	ImportFormatXLSX ImportFormat = "xlsx"
)

// ImportStage is the orchestrator state of an import run. Runs only move
// forward; there is no transition back to an earlier stage.
type ImportStage string

const (
	StageAwaitingCategories  ImportStage = "awaiting_categories"
	StageCategoriesUploading ImportStage = "categories_uploading"
	StageAwaitingItems       ImportStage = "awaiting_items"
	StageItemsUploading      ImportStage = "items_uploading"
	StageDone                ImportStage = "done"
	StageCancelled           ImportStage = "cancelled"
)

// Next returns the stage the run moves into once the current stage's
// submission finishes (or is skipped).
func (s ImportStage) Next() (ImportStage, error) {
	switch s {
	case StageAwaitingCategories:
		return StageAwaitingItems, nil
	case StageAwaitingItems:
		return StageDone, nil
	default:
		return s, fmt.Errorf("no forward transition from stage %q", s)
	}
}

// AcceptsUpload reports whether a file upload is valid in this stage.
func (s ImportStage) AcceptsUpload() bool {
	return s == StageAwaitingCategories || s == StageAwaitingItems
}

// Terminal reports whether the run has finished.
func (s ImportStage) Terminal() bool {
	return s == StageDone || s == StageCancelled
}

// CategoryStageResult aggregates the outcome of the sequential category
// submission loop. Failures are partial: failed labels are recorded and the
// loop continues.
type CategoryStageResult struct {
	TotalRows    int      `json:"totalRows"`
	SuccessCount int      `json:"successCount"`
	FailureCount int      `json:"failureCount"`
	FailedLabels []string `json:"failedLabels,omitempty"`
	Skipped      bool     `json:"skipped,omitempty"`
}

func (r CategoryStageResult) Value() (driver.Value, error) {
	return json.Marshal(r)
}

func (r *CategoryStageResult) Scan(value interface{}) error {
	return scanJSON(value, r)
}

// ItemStageResult aggregates the outcome of the single bulk item call. Item
// submission is all-or-nothing: a non-2xx response fails the whole batch.
type ItemStageResult struct {
	TotalRows    int    `json:"totalRows"`
	ItemCount    int    `json:"itemCount"`
	Submitted    bool   `json:"submitted"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	Skipped      bool   `json:"skipped,omitempty"`
}

func (r ItemStageResult) Value() (driver.Value, error) {
	return json.Marshal(r)
}

func (r *ItemStageResult) Scan(value interface{}) error {
	return scanJSON(value, r)
}

func scanJSON(value, dest interface{}) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("unsupported column type %T", value)
	}
}

// ImportRun is one two-stage bulk import session. The upstream menu API is
// the system of record for the imported catalog; this row only tracks the
// run's stage and aggregated results.
type ImportRun struct {
	ID             uuid.UUID            `json:"id" gorm:"type:uuid;primary_key"`
	TenantID       string               `json:"tenantId" gorm:"not null;index"`
	CreatedByID    string               `json:"createdById"`
	Stage          ImportStage          `json:"stage" gorm:"not null"`
	CategoryResult *CategoryStageResult `json:"categoryResult,omitempty" gorm:"type:jsonb"`
	ItemResult     *ItemStageResult     `json:"itemResult,omitempty" gorm:"type:jsonb"`
	CreatedAt      time.Time            `json:"createdAt"`
	UpdatedAt      time.Time            `json:"updatedAt"`
}

func (ImportRun) TableName() string {
	return "import_runs"
}

// ImportTemplateColumn defines a column in the import template
type ImportTemplateColumn struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Type        string `json:"type"` // string, number, boolean
	Example     string `json:"example"`
}

// ImportTemplate defines the structure of an import template
type ImportTemplate struct {
	Entity     string                 `json:"entity"`
	Version    string                 `json:"version"`
	Columns    []ImportTemplateColumn `json:"columns"`
	SampleData []map[string]string    `json:"sampleData,omitempty"`
}

// ItemImportColumns returns the column definitions for the items file.
func ItemImportColumns() []ImportTemplateColumn {
	return []ImportTemplateColumn{
		{Name: "label_en", Description: "Item name (English)", Required: true, Type: "string", Example: "Margherita Pizza"},
		{Name: "label_hi", Description: "Item name (Hindi)", Required: false, Type: "string", Example: "मार्गेरिटा पिज़्ज़ा"},
		{Name: "description_en", Description: "Item description (English)", Required: false, Type: "string", Example: "Classic cheese and tomato pizza"},
		{Name: "description_hi", Description: "Item description (Hindi)", Required: false, Type: "string", Example: ""},
		{Name: "image_url", Description: "Image URL", Required: false, Type: "string", Example: "https://example.com/pizza.jpg"},
		{Name: "tags_en", Description: "Comma-separated tags (English)", Required: false, Type: "string", Example: "pizza,italian"},
		{Name: "tags_hi", Description: "Comma-separated tags (Hindi)", Required: false, Type: "string", Example: ""},
		{Name: "veg", Description: "Vegetarian flag (true/false)", Required: false, Type: "boolean", Example: "true"},
		{Name: "category_label", Description: "Category name, must match an imported category", Required: true, Type: "string", Example: "Pizzas"},
		{Name: "base_price", Description: "Base price, used for the first variant", Required: true, Type: "number", Example: "199"},
		{Name: "variants", Description: "Variants as Name:Price|Name:Price (first price overridden by base_price)", Required: false, Type: "string", Example: "Small:199|Medium:299|Large:399"},
		{Name: "addons", Description: "Addons as Name:Price|Name:Price", Required: false, Type: "string", Example: "Extra Cheese:50|Olives:25"},
	}
}

// ItemImportTemplate returns the template definition for the items file.
func ItemImportTemplate() ImportTemplate {
	return ImportTemplate{
		Entity:  "menu-items",
		Version: "1.0",
		Columns: ItemImportColumns(),
		SampleData: []map[string]string{
			{
				"label_en":       "Margherita Pizza",
				"label_hi":       "मार्गेरिटा पिज़्ज़ा",
				"description_en": "Classic cheese and tomato pizza",
				"description_hi": "",
				"image_url":      "",
				"tags_en":        "pizza,italian",
				"tags_hi":        "",
				"veg":            "true",
				"category_label": "Pizzas",
				"base_price":     "199",
				"variants":       "Small:199|Medium:299|Large:399",
				"addons":         "Extra Cheese:50|Olives:25",
			},
			{
				"label_en":       "Masala Chai",
				"label_hi":       "मसाला चाय",
				"description_en": "Spiced milk tea",
				"description_hi": "",
				"image_url":      "",
				"tags_en":        "beverages",
				"tags_hi":        "",
				"veg":            "true",
				"category_label": "Beverages",
				"base_price":     "40",
				"variants":       "",
				"addons":         "",
			},
		},
	}
}

// CategoryImportTemplate returns the template definition for the category
// file. The file is positional: only the first column is read.
func CategoryImportTemplate() ImportTemplate {
	return ImportTemplate{
		Entity:  "menu-categories",
		Version: "1.0",
		Columns: []ImportTemplateColumn{
			{Name: "category", Description: "Category name, one per row", Required: true, Type: "string", Example: "Pizzas"},
		},
		SampleData: []map[string]string{
			{"category": "Pizzas"},
			{"category": "Beverages"},
			{"category": "Desserts"},
		},
	}
}
