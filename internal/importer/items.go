package importer

import (
	"fmt"
	"strconv"
	"strings"

	"menu-service/internal/models"
)

// hindi placeholder for the synthesized default variant.
const regularVariantHindi = "रेगुलर"

// BuildError is a fatal validation failure during the item build. One bad
// category reference or base price aborts the whole file: zero items are
// emitted, not just the offending row.
type BuildError struct {
	Line    int
	Message string
}

func (e *BuildError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("row %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// CategoryIndex resolves category labels (case-insensitive) to upstream
// category IDs.
type CategoryIndex map[string]string

// NewCategoryIndex builds a lookup index from upstream categories. Later
// entries win on duplicate labels.
func NewCategoryIndex(categories []models.Category) CategoryIndex {
	idx := make(CategoryIndex, len(categories))
	for _, c := range categories {
		idx[strings.ToLower(c.Label)] = c.ID
	}
	return idx
}

// Resolve returns the ID for a label, if known.
func (idx CategoryIndex) Resolve(label string) (string, bool) {
	id, ok := idx[strings.ToLower(strings.TrimSpace(label))]
	return id, ok
}

// BuildCatalogItems assembles catalog item documents from header-keyed rows.
//
// Row policy is deliberately asymmetric and matches the import contract:
// a row with no label_en is skipped silently, while an unresolvable
// category_label or unusable base_price fails the entire build.
func BuildCatalogItems(rows []map[string]string, categories CategoryIndex) ([]models.CatalogItem, error) {
	items := make([]models.CatalogItem, 0, len(rows))

	for _, row := range rows {
		if strings.TrimSpace(row["label_en"]) == "" {
			continue
		}

		item, err := buildItem(row, categories)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	return items, nil
}

func buildItem(row map[string]string, categories CategoryIndex) (models.CatalogItem, error) {
	label := row["label_en"]

	categoryID, ok := categories.Resolve(row["category_label"])
	if !ok {
		return models.CatalogItem{}, &BuildError{
			Line:    RowLine(row),
			Message: fmt.Sprintf("category not found: %s", row["category_label"]),
		}
	}

	variants, err := buildVariants(row)
	if err != nil {
		return models.CatalogItem{}, err
	}

	configs := []models.ItemConfig{
		{
			Label:        models.VariantsConfigLabel,
			Dialog:       firstNonEmpty(row["description_en"], label),
			MaxSelection: 1,
			Required:     true,
			Contents:     variants,
		},
	}
	configs = append(configs, buildAddonGroups(row["addons"])...)

	images := []string{}
	if row["image_url"] != "" {
		images = append(images, row["image_url"])
	}

	return models.CatalogItem{
		ItemName:    label,
		Label:       label,
		Description: row["description_en"],
		Images:      images,
		Tags:        splitTags(row["tags_en"]),
		Ingredients: []string{},
		Veg:         strings.EqualFold(row["veg"], "true"),
		Category:    categoryID,
		State:       models.ItemStateActive,
		Configs:     configs,
		Translations: models.ItemTranslations{
			Hi: models.ItemTranslation{
				Label:       firstNonEmpty(row["label_hi"], label),
				Description: firstNonEmpty(row["description_hi"], row["description_en"]),
				Tags:        splitTags(row["tags_hi"]),
				Ingredients: []string{},
			},
		},
		Charges: []interface{}{},
	}, nil
}

// buildVariants expands the variants column, or synthesizes the default
// "Regular" variant from base_price when the column is empty. base_price is
// authoritative for the first variant either way.
func buildVariants(row map[string]string) ([]models.VariantEntry, error) {
	options := ParsePricedOptions(row["variants"])

	if len(options) == 0 {
		if strings.TrimSpace(row["base_price"]) == "" {
			return nil, &BuildError{
				Line:    RowLine(row),
				Message: fmt.Sprintf("base price is required for item: %s", row["label_en"]),
			}
		}
		basePrice, err := strconv.ParseFloat(strings.TrimSpace(row["base_price"]), 64)
		if err != nil {
			return nil, &BuildError{
				Line:    RowLine(row),
				Message: fmt.Sprintf("invalid base price %q for item: %s", row["base_price"], row["label_en"]),
			}
		}
		return []models.VariantEntry{newVariant("Regular", basePrice, regularVariantHindi)}, nil
	}

	variants := make([]models.VariantEntry, 0, len(options))
	for _, opt := range options {
		variants = append(variants, newVariant(opt.Label, opt.Price, opt.Label))
	}

	// base_price overrides the first encoded price; an unparseable (or zero)
	// base leaves the encoded value standing.
	if basePrice, err := strconv.ParseFloat(strings.TrimSpace(row["base_price"]), 64); err == nil && basePrice != 0 {
		variants[0].Value = basePrice
	}

	return variants, nil
}

// buildAddonGroups expands the addons column. The mini-language cannot
// express multi-option groups or shared constraints: every entry becomes its
// own optional single-content group.
func buildAddonGroups(field string) []models.ItemConfig {
	options := ParsePricedOptions(field)
	if len(options) == 0 {
		return nil
	}

	groups := make([]models.ItemConfig, 0, len(options))
	for _, opt := range options {
		groups = append(groups, models.ItemConfig{
			Label:        opt.Label,
			MaxSelection: 1,
			Required:     false,
			Contents:     []models.VariantEntry{newVariant(opt.Label, opt.Price, opt.Label)},
		})
	}
	return groups
}

func newVariant(label string, value float64, hindiLabel string) models.VariantEntry {
	return models.VariantEntry{
		Label: label,
		Value: value,
		Translations: models.VariantTranslations{
			Hi: models.VariantLabel{Label: hindiLabel},
		},
		Conditions: []interface{}{},
	}
}

func splitTags(field string) []string {
	if strings.TrimSpace(field) == "" {
		return []string{}
	}
	parts := strings.Split(field, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		tags = append(tags, strings.TrimSpace(p))
	}
	return tags
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
