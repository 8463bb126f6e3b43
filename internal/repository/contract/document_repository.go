package contract

import (
	"context"

	"agro-assistant-be/internal/entity"
	"agro-assistant-be/internal/repository/specification"

	"github.com/google/uuid"
)

type DocumentRepository interface {
	Create(ctx context.Context, document *entity.Document) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Document, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Document, error)
	FindByIds(ctx context.Context, ids []uuid.UUID) ([]*entity.Document, error)
}
