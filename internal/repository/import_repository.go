package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"menu-service/internal/models"
)

// ImportRepository persists import runs. The imported catalog itself lives
// upstream; only run state and aggregated results are stored here.
type ImportRepository struct {
	db *gorm.DB
}

func NewImportRepository(db *gorm.DB) *ImportRepository {
	return &ImportRepository{db: db}
}

// CreateRun starts a new import run in the awaiting-categories stage.
func (r *ImportRepository) CreateRun(ctx context.Context, tenantID, createdByID string) (*models.ImportRun, error) {
	run := &models.ImportRun{
		ID:          uuid.New(),
		TenantID:    tenantID,
		CreatedByID: createdByID,
		Stage:       models.StageAwaitingCategories,
	}
	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, fmt.Errorf("failed to create import run: %w", err)
	}
	return run, nil
}

// GetRun fetches a run scoped to its tenant.
func (r *ImportRepository) GetRun(ctx context.Context, tenantID string, id uuid.UUID) (*models.ImportRun, error) {
	var run models.ImportRun
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&run).Error
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// SaveRun persists the run's current stage and results.
func (r *ImportRepository) SaveRun(ctx context.Context, run *models.ImportRun) error {
	if err := r.db.WithContext(ctx).Save(run).Error; err != nil {
		return fmt.Errorf("failed to save import run: %w", err)
	}
	return nil
}

// ListRuns returns a tenant's runs, newest first.
func (r *ImportRepository) ListRuns(ctx context.Context, tenantID string, limit int) ([]models.ImportRun, error) {
	if limit <= 0 {
		limit = 50
	}
	var runs []models.ImportRun
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list import runs: %w", err)
	}
	return runs, nil
}
