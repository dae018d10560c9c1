package services

import (
	"context"

	"github.com/swisscast/kaltura-migration/internal/models"
	"github.com/swisscast/kaltura-migration/pkg/kaltura"
)

// Catalog is the remote operation surface the engine needs. Satisfied
// by *kaltura.Client; tests substitute an in-memory fake.
type Catalog interface {
	FindMediaByReferenceIDs(ctx context.Context, referenceIDs []string) (*models.MediaEntry, error)
	FindMediaByEntryID(ctx context.Context, entryID string) (*models.MediaEntry, error)
	FindCategoriesByReferenceID(ctx context.Context, referenceID string) ([]models.Category, error)
	FindCategoryByReferenceID(ctx context.Context, referenceID string) (*models.Category, error)
	FindCategoryByFullName(ctx context.Context, fullName string) (*models.Category, error)
	CreateCategory(ctx context.Context, req kaltura.CreateCategoryRequest) (*models.Category, error)
	MoveOrRenameCategory(ctx context.Context, category, parent *models.Category, name string) (*models.Category, error)
	CopyCategoryWithMedia(ctx context.Context, source, parent *models.Category, newName string) (*models.Category, error)
	CopyMedia(ctx context.Context, from, to *models.Category) error
	ValidateUIConf(ctx context.Context, configured int64) (int64, error)
}
