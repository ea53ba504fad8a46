package models

// CategoryRecord is the payload sent to the upstream menu API when creating
// a category. ExternalID is caller-generated so other systems can reference
// the category idempotently.
type CategoryRecord struct {
	Label      string `json:"label"`
	ExternalID string `json:"externalId"`
}

// Category is a category as returned by the upstream menu API.
type Category struct {
	ID         string `json:"_id"`
	Label      string `json:"label"`
	ExternalID string `json:"externalId,omitempty"`
}

// VariantLabel holds the Hindi translation for a single variant label.
type VariantLabel struct {
	Label string `json:"label"`
}

// VariantTranslations wraps per-language variant translations. Hindi is the
// only language the upstream API currently accepts.
type VariantTranslations struct {
	Hi VariantLabel `json:"hi"`
}

// VariantEntry is one priced option inside an item config (a size inside the
// Variants config, or the single option inside an addon group).
type VariantEntry struct {
	Label        string              `json:"label"`
	Value        float64             `json:"value"`
	Recommended  bool                `json:"recommended"`
	Added        bool                `json:"added"`
	Translations VariantTranslations `json:"translations"`
	Conditions   []interface{}       `json:"conditions"`
}

// ItemConfig is a selection group attached to an item. Configs[0] of every
// item is the reserved "Variants" config (required, maxSelection 1); any
// further configs are addon groups.
type ItemConfig struct {
	Label        string         `json:"label"`
	Dialog       string         `json:"dialog,omitempty"`
	MaxSelection int            `json:"maxSelection"`
	Required     bool           `json:"required"`
	Contents     []VariantEntry `json:"contents"`
}

// ItemTranslation carries the Hindi rendering of an item's display fields.
type ItemTranslation struct {
	Label       string   `json:"label"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Ingredients []string `json:"ingredients"`
}

// ItemTranslations wraps per-language item translations.
type ItemTranslations struct {
	Hi ItemTranslation `json:"hi"`
}

// CatalogItem is the nested item document the upstream menu API expects for
// bulk item creation. Category must hold the upstream _id of an existing
// category.
type CatalogItem struct {
	ItemName     string           `json:"itemname"`
	Label        string           `json:"label"`
	Description  string           `json:"description"`
	Images       []string         `json:"images"`
	Tags         []string         `json:"tags"`
	Ingredients  []string         `json:"ingredients"`
	Veg          bool             `json:"veg"`
	Category     string           `json:"category"`
	State        string           `json:"state"`
	Configs      []ItemConfig     `json:"configs"`
	Translations ItemTranslations `json:"translations"`
	Charges      []interface{}    `json:"charges"`
}

// ItemStateActive is the only state bulk-imported items are created in.
const ItemStateActive = "active"

// VariantsConfigLabel names the reserved first config of every item.
const VariantsConfigLabel = "Variants"
