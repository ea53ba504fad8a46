package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"menu-service/internal/models"
)

// ErrWrongStage is returned when an operation is attempted in a stage that
// does not allow it. There are no backwards transitions: a finished or
// skipped stage cannot be revisited.
var ErrWrongStage = errors.New("operation not valid in current stage")

// CategorySource supplies the set of categories known upstream, so item rows
// can reference both pre-existing categories and ones created in stage one.
type CategorySource interface {
	ListCategories(ctx context.Context, token, tenantID string) ([]models.Category, error)
	Invalidate(ctx context.Context, tenantID string)
}

// Orchestrator sequences the two import stages over an ImportRun. It mutates
// the run's stage and result fields; persisting the run is the caller's job.
type Orchestrator struct {
	submitter  *Submitter
	categories CategorySource
	clock      Clock
	logger     *logrus.Entry
}

// NewOrchestrator wires the pipeline. clock may be nil, in which case
// time.Now is used for external ID generation.
func NewOrchestrator(submitter *Submitter, categories CategorySource, clock Clock, logger *logrus.Logger) *Orchestrator {
	if clock == nil {
		clock = time.Now
	}
	return &Orchestrator{
		submitter:  submitter,
		categories: categories,
		clock:      clock,
		logger:     logger.WithField("component", "orchestrator"),
	}
}

// RunCategoryStage normalizes positional category rows and submits them one
// by one. The run advances to the items stage when at least one category was
// created; otherwise it stays put so the caller can retry with a fixed file.
func (o *Orchestrator) RunCategoryStage(ctx context.Context, run *models.ImportRun, token string, rows [][]string) (models.CategoryStageResult, error) {
	if run.Stage != models.StageAwaitingCategories {
		return models.CategoryStageResult{}, fmt.Errorf("%w: run %s is in stage %q", ErrWrongStage, run.ID, run.Stage)
	}
	run.Stage = models.StageCategoriesUploading

	records := NormalizeCategories(rows, o.clock)
	result, err := o.submitter.SubmitCategories(ctx, token, records)
	if err != nil {
		run.Stage = models.StageAwaitingCategories
		return result, err
	}

	run.CategoryResult = &result
	if result.SuccessCount > 0 {
		o.categories.Invalidate(ctx, run.TenantID)
		run.Stage = models.StageAwaitingItems
	} else {
		run.Stage = models.StageAwaitingCategories
	}

	o.logger.WithFields(logrus.Fields{
		"run":     run.ID,
		"success": result.SuccessCount,
		"failed":  result.FailureCount,
	}).Info("Category stage finished")

	return result, nil
}

// RunItemsStage builds catalog item documents from header-keyed rows and
// submits them as a single batch. A build failure or a rejected batch leaves
// the run in the items stage for a manual retry; nothing is rolled back.
func (o *Orchestrator) RunItemsStage(ctx context.Context, run *models.ImportRun, token string, rows []map[string]string) (models.ItemStageResult, error) {
	if run.Stage != models.StageAwaitingItems {
		return models.ItemStageResult{}, fmt.Errorf("%w: run %s is in stage %q", ErrWrongStage, run.ID, run.Stage)
	}
	run.Stage = models.StageItemsUploading

	result := models.ItemStageResult{TotalRows: len(rows)}

	categories, err := o.categories.ListCategories(ctx, token, run.TenantID)
	if err != nil {
		run.Stage = models.StageAwaitingItems
		return result, fmt.Errorf("failed to fetch categories: %w", err)
	}

	items, err := BuildCatalogItems(rows, NewCategoryIndex(categories))
	if err != nil {
		result.ErrorMessage = err.Error()
		run.ItemResult = &result
		run.Stage = models.StageAwaitingItems
		return result, err
	}
	result.ItemCount = len(items)

	if err := o.submitter.SubmitItems(ctx, token, items); err != nil {
		result.ErrorMessage = err.Error()
		run.ItemResult = &result
		run.Stage = models.StageAwaitingItems
		return result, err
	}

	result.Submitted = true
	run.ItemResult = &result
	run.Stage = models.StageDone

	o.logger.WithFields(logrus.Fields{
		"run":   run.ID,
		"items": result.ItemCount,
	}).Info("Items stage finished")

	return result, nil
}

// Skip advances the run past the current stage without submitting anything.
func (o *Orchestrator) Skip(run *models.ImportRun) error {
	if !run.Stage.AcceptsUpload() {
		return fmt.Errorf("%w: run %s is in stage %q", ErrWrongStage, run.ID, run.Stage)
	}

	switch run.Stage {
	case models.StageAwaitingCategories:
		run.CategoryResult = &models.CategoryStageResult{Skipped: true}
	case models.StageAwaitingItems:
		run.ItemResult = &models.ItemStageResult{Skipped: true}
	}

	next, err := run.Stage.Next()
	if err != nil {
		return err
	}
	run.Stage = next
	return nil
}

// Cancel marks the run cancelled. Records already persisted upstream stay
// persisted; there is no rollback.
func (o *Orchestrator) Cancel(run *models.ImportRun) error {
	if run.Stage.Terminal() {
		return fmt.Errorf("%w: run %s is in stage %q", ErrWrongStage, run.ID, run.Stage)
	}
	run.Stage = models.StageCancelled
	return nil
}
