package contract

import (
	"context"

	"agro-assistant-be/internal/entity"
	"agro-assistant-be/internal/repository/specification"
)

type AgrofitRepository interface {
	Upsert(ctx context.Context, product *entity.PesticideProduct) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.PesticideProduct, error)
	// DistinctCrops and DistinctPests back the catalog listing tools.
	DistinctCrops(ctx context.Context) ([]string, error)
	DistinctPests(ctx context.Context) ([]string, error)
}
