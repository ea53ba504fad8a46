package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"menu-service/internal/models"
)

type fakeLister struct {
	categories []models.Category
	err        error
	calls      int
}

func (f *fakeLister) ListCategories(_ context.Context, _ string) ([]models.Category, error) {
	f.calls++
	return f.categories, f.err
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestCategoryDirectoryWithoutRedis(t *testing.T) {
	lister := &fakeLister{categories: []models.Category{{ID: "cat-1", Label: "Starters"}}}
	dir := NewCategoryDirectory(lister, nil, 0, quietLogger())

	for i := 0; i < 3; i++ {
		categories, err := dir.ListCategories(context.Background(), "token", "tenant-1")
		require.NoError(t, err)
		require.Len(t, categories, 1)
		assert.Equal(t, "Starters", categories[0].Label)
	}

	assert.Equal(t, 3, lister.calls, "without redis every lookup goes upstream")
}

func TestCategoryDirectoryPassesThroughErrors(t *testing.T) {
	lister := &fakeLister{err: fmt.Errorf("upstream unavailable")}
	dir := NewCategoryDirectory(lister, nil, 0, quietLogger())

	_, err := dir.ListCategories(context.Background(), "token", "tenant-1")
	assert.EqualError(t, err, "upstream unavailable")
}

func TestCategoryDirectoryInvalidateWithoutRedis(t *testing.T) {
	dir := NewCategoryDirectory(&fakeLister{}, nil, 0, quietLogger())

	// Must not panic with no cache configured.
	dir.Invalidate(context.Background(), "tenant-1")
}
