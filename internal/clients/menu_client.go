package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"menu-service/internal/models"
)

// MenuClient handles communication with the upstream menu API, the system
// of record for the imported catalog.
type MenuClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewMenuClient creates a menu client against MENU_API_URL.
func NewMenuClient() *MenuClient {
	baseURL := os.Getenv("MENU_API_URL")
	if baseURL == "" {
		baseURL = "https://node.api.dash.thriftyai.in"
	}

	return &MenuClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// NewMenuClientWithURL creates a menu client against an explicit base URL.
func NewMenuClientWithURL(baseURL string) *MenuClient {
	c := NewMenuClient()
	c.baseURL = strings.TrimSuffix(baseURL, "/")
	return c
}

// ListCategories fetches every category currently known upstream. The API
// has served three envelope shapes over time (bare array, {data: […]},
// {categories: […]}); all three are accepted.
func (c *MenuClient) ListCategories(ctx context.Context, token string) ([]models.Category, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/menu/categories/", nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req, token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch categories: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read categories response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apiError(body, "failed to fetch categories")
	}

	return decodeCategoryList(body)
}

// CreateCategory creates a single category upstream.
func (c *MenuClient) CreateCategory(ctx context.Context, token string, record models.CategoryRecord) error {
	return c.post(ctx, token, "/menu/categories", record,
		fmt.Sprintf("failed to create category: %s", record.Label))
}

// BulkCreateItems creates all items in one request. The upstream API offers
// no per-item result: a non-2xx response fails the whole batch.
func (c *MenuClient) BulkCreateItems(ctx context.Context, token string, items []models.CatalogItem) error {
	return c.post(ctx, token, "/menu/items", items, "failed to create items")
}

func (c *MenuClient) post(ctx context.Context, token, path string, payload interface{}, fallback string) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	c.setHeaders(req, token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", fallback, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return apiError(body, fallback)
	}

	return nil
}

func (c *MenuClient) setHeaders(req *http.Request, token string) {
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
}

func decodeCategoryList(body []byte) ([]models.Category, error) {
	var bare []models.Category
	if err := json.Unmarshal(body, &bare); err == nil {
		return bare, nil
	}

	var wrapped struct {
		Data       []models.Category `json:"data"`
		Categories []models.Category `json:"categories"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("unexpected categories response shape: %w", err)
	}
	if wrapped.Data != nil {
		return wrapped.Data, nil
	}
	if wrapped.Categories != nil {
		return wrapped.Categories, nil
	}
	return nil, fmt.Errorf("unexpected categories response shape")
}

// apiError surfaces the server's own message when the response carries one,
// falling back to a generic message otherwise.
func apiError(body []byte, fallback string) error {
	var envelope struct {
		Message string `json:"message"`
		Error   struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if envelope.Error.Message != "" {
			return fmt.Errorf("%s", envelope.Error.Message)
		}
		if envelope.Message != "" {
			return fmt.Errorf("%s", envelope.Message)
		}
	}
	return fmt.Errorf("%s", fallback)
}
