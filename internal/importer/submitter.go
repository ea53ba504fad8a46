package importer

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"menu-service/internal/models"
)

// ErrTokenRequired is returned when a submission is attempted without an
// authorization credential. The check runs before any network call.
var ErrTokenRequired = errors.New("authentication token is required")

// MenuAPI is the slice of the upstream menu API the submitter needs.
type MenuAPI interface {
	CreateCategory(ctx context.Context, token string, record models.CategoryRecord) error
	BulkCreateItems(ctx context.Context, token string, items []models.CatalogItem) error
}

// Submitter persists normalized records against the upstream menu API.
// Categories go one request at a time with an inter-call delay; items go in
// a single bulk request.
type Submitter struct {
	api    MenuAPI
	delay  time.Duration
	logger *logrus.Entry
}

// NewSubmitter builds a submitter. delay is the pause after each successful
// category call; it keeps timestamp-based external IDs from colliding
// between requests. Tests set it to zero.
func NewSubmitter(api MenuAPI, delay time.Duration, logger *logrus.Logger) *Submitter {
	return &Submitter{
		api:    api,
		delay:  delay,
		logger: logger.WithField("component", "submitter"),
	}
}

// SubmitCategories creates each category with its own request. A failed call
// records the label and moves on; there is no retry and no abort. The
// aggregate result always reflects every record in the batch.
func (s *Submitter) SubmitCategories(ctx context.Context, token string, records []models.CategoryRecord) (models.CategoryStageResult, error) {
	if token == "" {
		return models.CategoryStageResult{}, ErrTokenRequired
	}

	result := models.CategoryStageResult{TotalRows: len(records)}
	for _, record := range records {
		if err := s.api.CreateCategory(ctx, token, record); err != nil {
			result.FailureCount++
			result.FailedLabels = append(result.FailedLabels, record.Label)
			s.logger.WithError(err).WithField("category", record.Label).Warn("Failed to create category")
			continue
		}

		result.SuccessCount++
		if s.delay > 0 {
			select {
			case <-time.After(s.delay):
			case <-ctx.Done():
				return result, ctx.Err()
			}
		}
	}

	return result, nil
}

// SubmitItems sends the whole item batch in one request. Failure is total:
// the caller gets the upstream error verbatim and no partial result.
func (s *Submitter) SubmitItems(ctx context.Context, token string, items []models.CatalogItem) error {
	if token == "" {
		return ErrTokenRequired
	}
	return s.api.BulkCreateItems(ctx, token, items)
}
