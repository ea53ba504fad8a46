package importer

import (
	"strconv"
	"strings"
)

// PricedOption is one entry of the Name:Price|Name:Price mini-language used
// by the variants and addons columns.
type PricedOption struct {
	Label string
	Price float64
}

// ParsePricedOptions tokenizes a Name:Price|Name:Price field. Every
// pipe-separated entry yields exactly one option. Recovery policy for
// malformed entries: a missing colon leaves the whole entry as the label,
// and a non-numeric price defaults to 0.
func ParsePricedOptions(field string) []PricedOption {
	if strings.TrimSpace(field) == "" {
		return nil
	}

	entries := strings.Split(field, "|")
	options := make([]PricedOption, 0, len(entries))
	for _, entry := range entries {
		parts := strings.Split(entry, ":")
		opt := PricedOption{Label: strings.TrimSpace(parts[0])}
		if len(parts) > 1 {
			if price, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64); err == nil {
				opt.Price = price
			}
		}
		options = append(options, opt)
	}
	return options
}
