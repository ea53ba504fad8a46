package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"menu-service/internal/importer"
	"menu-service/internal/middleware"
	"menu-service/internal/models"
	"menu-service/internal/repository"
)

type ImportHandler struct {
	repo         *repository.ImportRepository
	orchestrator *importer.Orchestrator
	logger       *logrus.Entry
}

func NewImportHandler(repo *repository.ImportRepository, orchestrator *importer.Orchestrator, logger *logrus.Logger) *ImportHandler {
	return &ImportHandler{
		repo:         repo,
		orchestrator: orchestrator,
		logger:       logger.WithField("component", "import-handler"),
	}
}

// StartImport creates a new import run in the awaiting-categories stage.
// POST /api/v1/menu/import
func (h *ImportHandler) StartImport(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	userID := c.GetString("user_id")

	run, err := h.repo.CreateRun(c.Request.Context(), tenantID, userID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to create import run")
		c.JSON(http.StatusInternalServerError, errorResponse("CREATE_FAILED", "Failed to create import run"))
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": run})
}

// GetImport returns a run's stage and aggregated results.
// GET /api/v1/menu/import/:id
func (h *ImportHandler) GetImport(c *gin.Context) {
	run, ok := h.lookupRun(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": run})
}

// ListImports returns the tenant's runs, newest first.
// GET /api/v1/menu/import
func (h *ImportHandler) ListImports(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	runs, err := h.repo.ListRuns(c.Request.Context(), middleware.GetTenantID(c), limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list import runs")
		c.JSON(http.StatusInternalServerError, errorResponse("LIST_FAILED", "Failed to list import runs"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": runs})
}

// UploadCategories runs stage one: parse the positional category file and
// create each category upstream, one call at a time.
// POST /api/v1/menu/import/:id/categories
func (h *ImportHandler) UploadCategories(c *gin.Context) {
	run, ok := h.lookupRun(c)
	if !ok {
		return
	}

	file, format, ok := h.formFile(c)
	if !ok {
		return
	}
	defer file.Close()

	var rows [][]string
	var parseErr error
	if format == models.ImportFormatCSV {
		rows, parseErr = importer.ReadPositionalCSV(file)
	} else {
		rows, parseErr = importer.ReadPositionalXLSX(file)
	}
	if parseErr != nil {
		c.JSON(http.StatusBadRequest, errorResponse("PARSE_ERROR", parseErr.Error()))
		return
	}

	result, err := h.orchestrator.RunCategoryStage(c.Request.Context(), run, middleware.GetAuthToken(c), rows)
	if saveErr := h.repo.SaveRun(c.Request.Context(), run); saveErr != nil {
		h.logger.WithError(saveErr).Error("Failed to persist import run")
	}
	if err != nil {
		h.respondStageError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"stage":          run.Stage,
			"categoryResult": result,
		},
	})
}

// UploadItems runs stage two: parse the header-keyed items file, build the
// nested catalog documents and submit them as one batch.
// POST /api/v1/menu/import/:id/items
func (h *ImportHandler) UploadItems(c *gin.Context) {
	run, ok := h.lookupRun(c)
	if !ok {
		return
	}

	file, format, ok := h.formFile(c)
	if !ok {
		return
	}
	defer file.Close()

	var rows []map[string]string
	var parseErr error
	if format == models.ImportFormatCSV {
		rows, parseErr = importer.ReadKeyedCSV(file)
	} else {
		rows, parseErr = importer.ReadKeyedXLSX(file)
	}
	if parseErr != nil {
		c.JSON(http.StatusBadRequest, errorResponse("PARSE_ERROR", parseErr.Error()))
		return
	}

	result, err := h.orchestrator.RunItemsStage(c.Request.Context(), run, middleware.GetAuthToken(c), rows)
	if saveErr := h.repo.SaveRun(c.Request.Context(), run); saveErr != nil {
		h.logger.WithError(saveErr).Error("Failed to persist import run")
	}
	if err != nil {
		h.respondStageError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"stage":      run.Stage,
			"itemResult": result,
		},
	})
}

// SkipStage advances a run past its current stage without submitting.
// POST /api/v1/menu/import/:id/skip
func (h *ImportHandler) SkipStage(c *gin.Context) {
	run, ok := h.lookupRun(c)
	if !ok {
		return
	}

	if err := h.orchestrator.Skip(run); err != nil {
		h.respondStageError(c, err)
		return
	}
	if err := h.repo.SaveRun(c.Request.Context(), run); err != nil {
		h.logger.WithError(err).Error("Failed to persist import run")
		c.JSON(http.StatusInternalServerError, errorResponse("SAVE_FAILED", "Failed to persist import run"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": run})
}

// CancelImport cancels a run. Records already created upstream stay there;
// cancellation only discards the run's remaining stages.
// DELETE /api/v1/menu/import/:id
func (h *ImportHandler) CancelImport(c *gin.Context) {
	run, ok := h.lookupRun(c)
	if !ok {
		return
	}

	if err := h.orchestrator.Cancel(run); err != nil {
		h.respondStageError(c, err)
		return
	}
	if err := h.repo.SaveRun(c.Request.Context(), run); err != nil {
		h.logger.WithError(err).Error("Failed to persist import run")
		c.JSON(http.StatusInternalServerError, errorResponse("SAVE_FAILED", "Failed to persist import run"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": run})
}

func (h *ImportHandler) lookupRun(c *gin.Context) (*models.ImportRun, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("INVALID_ID", "Import run ID must be a UUID"))
		return nil, false
	}

	run, err := h.repo.GetRun(c.Request.Context(), middleware.GetTenantID(c), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, errorResponse("RUN_NOT_FOUND", "Import run not found"))
		} else {
			h.logger.WithError(err).Error("Failed to fetch import run")
			c.JSON(http.StatusInternalServerError, errorResponse("FETCH_FAILED", "Failed to fetch import run"))
		}
		return nil, false
	}
	return run, true
}

func (h *ImportHandler) formFile(c *gin.Context) (multipart.File, models.ImportFormat, bool) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("FILE_REQUIRED", "Please upload a CSV or Excel file"))
		return nil, "", false
	}

	name := strings.ToLower(header.Filename)
	switch {
	case strings.HasSuffix(name, ".csv"):
		return file, models.ImportFormatCSV, true
	case strings.HasSuffix(name, ".xlsx"):
		return file, models.ImportFormatXLSX, true
	default:
		file.Close()
		c.JSON(http.StatusBadRequest, errorResponse("INVALID_FORMAT", "Only CSV and XLSX files are supported"))
		return nil, "", false
	}
}

func (h *ImportHandler) respondStageError(c *gin.Context, err error) {
	var buildErr *importer.BuildError
	switch {
	case errors.Is(err, importer.ErrWrongStage):
		c.JSON(http.StatusConflict, errorResponse("WRONG_STAGE", err.Error()))
	case errors.Is(err, importer.ErrTokenRequired):
		c.JSON(http.StatusUnauthorized, errorResponse("MISSING_TOKEN", err.Error()))
	case errors.As(err, &buildErr):
		c.JSON(http.StatusBadRequest, errorResponse("BUILD_FAILED", err.Error()))
	default:
		c.JSON(http.StatusBadGateway, errorResponse("UPSTREAM_ERROR", err.Error()))
	}
}

func errorResponse(code, message string) gin.H {
	return gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}
