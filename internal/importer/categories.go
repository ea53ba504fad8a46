package importer

import (
	"strconv"
	"strings"
	"time"

	"menu-service/internal/models"
)

// Clock supplies the timestamp used for external ID generation. Injectable
// so tests can pin it (or force collisions).
type Clock func() time.Time

var whitespaceRun = strings.Fields

// Slug lower-cases a label and collapses whitespace runs into single
// hyphens. Deterministic: the same label always yields the same slug.
func Slug(label string) string {
	return strings.ToLower(strings.Join(whitespaceRun(label), "-"))
}

// ExternalID derives a collision-resistant category identifier from a label
// and a creation timestamp. Two identical labels generated within the same
// millisecond still collide; the submitter's inter-call delay exists to keep
// that from happening across requests.
func ExternalID(label string, now Clock) string {
	return Slug(label) + "-" + strconv.FormatInt(now().UnixMilli(), 10)
}

// NormalizeCategories turns positional category rows into CategoryRecords.
// The first row is the file header and is dropped, as is any row whose first
// column is empty after trimming. Malformed rows are filtered, never
// rejected: this stage produces no errors.
func NormalizeCategories(rows [][]string, now Clock) []models.CategoryRecord {
	if now == nil {
		now = time.Now
	}

	records := make([]models.CategoryRecord, 0, len(rows))
	for i, row := range rows {
		if i == 0 {
			continue // header row
		}
		if len(row) == 0 {
			continue
		}
		label := strings.TrimSpace(row[0])
		if label == "" {
			continue
		}
		records = append(records, models.CategoryRecord{
			Label:      label,
			ExternalID: ExternalID(label, now),
		})
	}
	return records
}
