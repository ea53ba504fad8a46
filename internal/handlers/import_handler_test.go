package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"menu-service/internal/clients"
	"menu-service/internal/importer"
	"menu-service/internal/models"
	"menu-service/internal/repository"
)

// fakeUpstream simulates the menu API: categories are kept in memory so the
// items stage can resolve labels created in stage one.
type fakeUpstream struct {
	mu         sync.Mutex
	nextID     int
	categories []models.Category
	failLabels map[string]bool
	itemsBody  string // non-empty means the bulk items call fails with this body
	items      []models.CatalogItem
}

func (f *fakeUpstream) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/menu/categories/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"data": f.categories})
	})
	mux.HandleFunc("/menu/categories", func(w http.ResponseWriter, r *http.Request) {
		var record models.CategoryRecord
		json.NewDecoder(r.Body).Decode(&record)

		f.mu.Lock()
		defer f.mu.Unlock()
		if f.failLabels[record.Label] {
			w.WriteHeader(http.StatusConflict)
			w.Write([]byte(`{"error":{"message":"external id already exists"}}`))
			return
		}
		f.nextID++
		f.categories = append(f.categories, models.Category{
			ID:         fmt.Sprintf("cat-%d", f.nextID),
			Label:      record.Label,
			ExternalID: record.ExternalID,
		})
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("/menu/items", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.itemsBody != "" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(f.itemsBody))
			return
		}
		var items []models.CatalogItem
		json.NewDecoder(r.Body).Decode(&items)
		f.items = append(f.items, items...)
		w.WriteHeader(http.StatusCreated)
	})
	return mux
}

type testEnv struct {
	router   *gin.Engine
	upstream *fakeUpstream
	repo     *repository.ImportRepository
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	upstream := &fakeUpstream{failLabels: map[string]bool{}}
	server := httptest.NewServer(upstream.handler())
	t.Cleanup(server.Close)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.ImportRun{}))

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	menuClient := clients.NewMenuClientWithURL(server.URL)
	categories := repository.NewCategoryDirectory(menuClient, nil, 0, logger)
	submitter := importer.NewSubmitter(menuClient, 0, logger)
	clock := func() time.Time { return time.UnixMilli(1700000000000) }
	orchestrator := importer.NewOrchestrator(submitter, categories, clock, logger)

	repo := repository.NewImportRepository(db)
	importHandler := NewImportHandler(repo, orchestrator, logger)
	templateHandler := NewTemplateHandler()

	router := gin.New()
	api := router.Group("/api/v1")
	api.Use(func(c *gin.Context) {
		c.Set("auth_token", "test-token")
		c.Set("tenant_id", "tenant-1")
	})

	menu := api.Group("/menu/import")
	menu.GET("/template", templateHandler.GetItemTemplate)
	menu.GET("/template/categories", templateHandler.GetCategoryTemplate)
	menu.POST("", importHandler.StartImport)
	menu.GET("", importHandler.ListImports)
	menu.GET("/:id", importHandler.GetImport)
	menu.POST("/:id/categories", importHandler.UploadCategories)
	menu.POST("/:id/items", importHandler.UploadItems)
	menu.POST("/:id/skip", importHandler.SkipStage)
	menu.DELETE("/:id", importHandler.CancelImport)

	return &testEnv{router: router, upstream: upstream, repo: repo}
}

func (e *testEnv) do(t *testing.T, method, path string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) startRun(t *testing.T) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/menu/import", nil, "")
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Data models.ImportRun `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.StageAwaitingCategories, resp.Data.Stage)
	return resp.Data.ID.String()
}

func fileUpload(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func (e *testEnv) uploadCategories(t *testing.T, runID, csvContent string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := fileUpload(t, "categories.csv", csvContent)
	return e.do(t, http.MethodPost, "/api/v1/menu/import/"+runID+"/categories", body, contentType)
}

func (e *testEnv) uploadItems(t *testing.T, runID, csvContent string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := fileUpload(t, "items.csv", csvContent)
	return e.do(t, http.MethodPost, "/api/v1/menu/import/"+runID+"/items", body, contentType)
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error.Code
}

const categoriesCSV = "Category Name\nStarters\nMains\nBeverages\n"

const itemsCSV = "label_en,label_hi,description_en,description_hi,image_url,tags_en,tags_hi,veg,category_label,base_price,variants,addons\n" +
	"Samosa,समोसा,Crispy fried snack,,,snacks,,true,Starters,40,Small:40|Large:70,Chutney:10\n" +
	"Masala Chai,मसाला चाय,Spiced milk tea,,,beverages,,true,Beverages,20,,\n"

func TestFullImportFlow(t *testing.T) {
	env := setupEnv(t)
	runID := env.startRun(t)

	// Stage one: categories
	w := env.uploadCategories(t, runID, categoriesCSV)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var catResp struct {
		Data struct {
			Stage          models.ImportStage         `json:"stage"`
			CategoryResult models.CategoryStageResult `json:"categoryResult"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &catResp))
	assert.Equal(t, models.StageAwaitingItems, catResp.Data.Stage)
	assert.Equal(t, 3, catResp.Data.CategoryResult.SuccessCount)
	assert.Equal(t, 0, catResp.Data.CategoryResult.FailureCount)

	// Stage two: items
	w = env.uploadItems(t, runID, itemsCSV)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var itemResp struct {
		Data struct {
			Stage      models.ImportStage     `json:"stage"`
			ItemResult models.ItemStageResult `json:"itemResult"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &itemResp))
	assert.Equal(t, models.StageDone, itemResp.Data.Stage)
	assert.True(t, itemResp.Data.ItemResult.Submitted)
	assert.Equal(t, 2, itemResp.Data.ItemResult.ItemCount)

	// Upstream received the built documents with resolved category IDs.
	require.Len(t, env.upstream.items, 2)
	samosa := env.upstream.items[0]
	assert.Equal(t, "Samosa", samosa.ItemName)
	assert.Equal(t, "cat-1", samosa.Category)
	require.NotEmpty(t, samosa.Configs)
	assert.Equal(t, models.VariantsConfigLabel, samosa.Configs[0].Label)
	require.Len(t, samosa.Configs[0].Contents, 2)
	assert.Equal(t, 40.0, samosa.Configs[0].Contents[0].Value)

	chai := env.upstream.items[1]
	assert.Equal(t, "cat-3", chai.Category)
	require.Len(t, chai.Configs[0].Contents, 1)
	assert.Equal(t, "Regular", chai.Configs[0].Contents[0].Label)
	assert.Equal(t, 20.0, chai.Configs[0].Contents[0].Value)

	// The persisted run reflects both stage results.
	w = env.do(t, http.MethodGet, "/api/v1/menu/import/"+runID, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var getResp struct {
		Data models.ImportRun `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &getResp))
	assert.Equal(t, models.StageDone, getResp.Data.Stage)
	require.NotNil(t, getResp.Data.CategoryResult)
	assert.Equal(t, 3, getResp.Data.CategoryResult.SuccessCount)
	require.NotNil(t, getResp.Data.ItemResult)
	assert.True(t, getResp.Data.ItemResult.Submitted)
}

func TestUploadCategoriesPartialFailureStillAdvances(t *testing.T) {
	env := setupEnv(t)
	env.upstream.failLabels["Mains"] = true
	runID := env.startRun(t)

	w := env.uploadCategories(t, runID, categoriesCSV)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			Stage          models.ImportStage         `json:"stage"`
			CategoryResult models.CategoryStageResult `json:"categoryResult"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.StageAwaitingItems, resp.Data.Stage)
	assert.Equal(t, 2, resp.Data.CategoryResult.SuccessCount)
	assert.Equal(t, []string{"Mains"}, resp.Data.CategoryResult.FailedLabels)
}

func TestUploadCategoriesTotalFailureStaysPut(t *testing.T) {
	env := setupEnv(t)
	for _, l := range []string{"Starters", "Mains", "Beverages"} {
		env.upstream.failLabels[l] = true
	}
	runID := env.startRun(t)

	w := env.uploadCategories(t, runID, categoriesCSV)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			Stage models.ImportStage `json:"stage"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.StageAwaitingCategories, resp.Data.Stage)

	// A corrected file can be retried against the same run.
	env.upstream.failLabels = map[string]bool{}
	w = env.uploadCategories(t, runID, categoriesCSV)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestUploadItemsWrongStage(t *testing.T) {
	env := setupEnv(t)
	runID := env.startRun(t)

	w := env.uploadItems(t, runID, itemsCSV)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "WRONG_STAGE", errorCode(t, w))
}

func TestUploadItemsUnknownCategoryFails(t *testing.T) {
	env := setupEnv(t)
	runID := env.startRun(t)

	require.Equal(t, http.StatusOK, env.uploadCategories(t, runID, "Category Name\nStarters\n").Code)

	w := env.uploadItems(t, runID, itemsCSV) // references Beverages, never created
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "BUILD_FAILED", errorCode(t, w))
	assert.Empty(t, env.upstream.items, "a build failure must not submit anything")

	// The run records the failed attempt and stays in the items stage.
	var getResp struct {
		Data models.ImportRun `json:"data"`
	}
	got := env.do(t, http.MethodGet, "/api/v1/menu/import/"+runID, nil, "")
	require.NoError(t, json.Unmarshal(got.Body.Bytes(), &getResp))
	assert.Equal(t, models.StageAwaitingItems, getResp.Data.Stage)
	require.NotNil(t, getResp.Data.ItemResult)
	assert.False(t, getResp.Data.ItemResult.Submitted)
	assert.NotEmpty(t, getResp.Data.ItemResult.ErrorMessage)
}

func TestUploadItemsUpstreamRejection(t *testing.T) {
	env := setupEnv(t)
	env.upstream.itemsBody = `{"error":{"message":"item names must be unique"}}`
	runID := env.startRun(t)

	require.Equal(t, http.StatusOK, env.uploadCategories(t, runID, categoriesCSV).Code)

	w := env.uploadItems(t, runID, itemsCSV)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "UPSTREAM_ERROR", errorCode(t, w))

	var resp struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "item names must be unique", resp.Error.Message)
}

func TestSkipBothStages(t *testing.T) {
	env := setupEnv(t)
	runID := env.startRun(t)

	w := env.do(t, http.MethodPost, "/api/v1/menu/import/"+runID+"/skip", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data models.ImportRun `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.StageAwaitingItems, resp.Data.Stage)
	require.NotNil(t, resp.Data.CategoryResult)
	assert.True(t, resp.Data.CategoryResult.Skipped)

	w = env.do(t, http.MethodPost, "/api/v1/menu/import/"+runID+"/skip", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.StageDone, resp.Data.Stage)

	w = env.do(t, http.MethodPost, "/api/v1/menu/import/"+runID+"/skip", nil, "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "WRONG_STAGE", errorCode(t, w))
}

func TestCancelImport(t *testing.T) {
	env := setupEnv(t)
	runID := env.startRun(t)

	w := env.do(t, http.MethodDelete, "/api/v1/menu/import/"+runID, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data models.ImportRun `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.StageCancelled, resp.Data.Stage)

	// No upload and no second cancel after cancellation.
	assert.Equal(t, http.StatusConflict, env.uploadCategories(t, runID, categoriesCSV).Code)
	assert.Equal(t, http.StatusConflict, env.do(t, http.MethodDelete, "/api/v1/menu/import/"+runID, nil, "").Code)
}

func TestLookupRunErrors(t *testing.T) {
	env := setupEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/menu/import/not-a-uuid", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_ID", errorCode(t, w))

	w = env.do(t, http.MethodGet, "/api/v1/menu/import/7d444840-9dc0-11d1-b245-5ffdce74fad2", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "RUN_NOT_FOUND", errorCode(t, w))
}

func TestUploadValidation(t *testing.T) {
	env := setupEnv(t)
	runID := env.startRun(t)

	// Missing file field
	w := env.do(t, http.MethodPost, "/api/v1/menu/import/"+runID+"/categories", nil, "multipart/form-data; boundary=x")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "FILE_REQUIRED", errorCode(t, w))

	// Unsupported extension
	body, contentType := fileUpload(t, "categories.pdf", "Starters")
	w = env.do(t, http.MethodPost, "/api/v1/menu/import/"+runID+"/categories", body, contentType)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_FORMAT", errorCode(t, w))

	// Malformed CSV
	w = env.uploadCategories(t, runID, "Category Name\n\"unterminated\n")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "PARSE_ERROR", errorCode(t, w))
}

func TestListImports(t *testing.T) {
	env := setupEnv(t)
	first := env.startRun(t)
	second := env.startRun(t)

	w := env.do(t, http.MethodGet, "/api/v1/menu/import", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data []models.ImportRun `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)

	ids := []string{resp.Data[0].ID.String(), resp.Data[1].ID.String()}
	assert.Contains(t, ids, first)
	assert.Contains(t, ids, second)
}

func TestItemTemplateJSON(t *testing.T) {
	env := setupEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/menu/import/template", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Template models.ImportTemplate `json:"template"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "menu-items", resp.Template.Entity)
	require.Len(t, resp.Template.Columns, 12)
	assert.Equal(t, "label_en", resp.Template.Columns[0].Name)
	assert.NotEmpty(t, resp.Template.SampleData)
}

func TestItemTemplateCSV(t *testing.T) {
	env := setupEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/menu/import/template?format=csv", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "menu_items_import_template.csv")

	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.GreaterOrEqual(t, len(lines), 2, "header plus at least one sample row")
	assert.True(t, strings.HasPrefix(lines[0], "label_en,label_hi,"))
}

func TestCategoryTemplateXLSX(t *testing.T) {
	env := setupEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/menu/import/template/categories?format=xlsx", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "menu_categories_import_template.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Categories")
	require.NoError(t, err)
	require.NotEmpty(t, rows)
	assert.Equal(t, "category *", rows[0][0])

	idx, err := f.GetSheetIndex("Instructions")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, idx, 0, "instructions sheet must be present")
}
