package ports

import (
	"context"

	"github.com/solhaga/threatlens/internal/core/domain"
)

// CatalogSource provides a threat catalog from somewhere outside the core: a
// local file, a remote feed, a test fixture.
type CatalogSource interface {
	FetchCatalog(ctx context.Context) (*domain.Catalog, error)
	Name() string
}

// AssessmentRepository persists evaluation runs so risk posture can be tracked
// over time.
type AssessmentRepository interface {
	Save(ctx context.Context, a domain.Assessment) error
	ListRecent(ctx context.Context, limit int) ([]domain.Assessment, error)
}
