package implementation

import (
	"context"

	"agro-assistant-be/internal/entity"
	"agro-assistant-be/internal/mapper"
	"agro-assistant-be/internal/model"
	"agro-assistant-be/internal/repository/contract"
	"agro-assistant-be/internal/repository/specification"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AgrofitRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.AgrofitMapper
}

func NewAgrofitRepository(db *gorm.DB) contract.AgrofitRepository {
	return &AgrofitRepositoryImpl{
		db:     db,
		mapper: mapper.NewAgrofitMapper(),
	}
}

func (r *AgrofitRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

// Upsert keys on registration_number so catalog refreshes are idempotent.
func (r *AgrofitRepositoryImpl) Upsert(ctx context.Context, product *entity.PesticideProduct) error {
	m := r.mapper.ToModel(product)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "registration_number"}},
		UpdateAll: true,
	}).Create(m).Error
}

func (r *AgrofitRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.PesticideProduct, error) {
	var models []*model.PesticideProduct
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.PesticideProduct, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ToEntity(m)
	}
	return entities, nil
}

func (r *AgrofitRepositoryImpl) DistinctCrops(ctx context.Context) ([]string, error) {
	var rows []string
	err := r.db.WithContext(ctx).
		Model(&model.PesticideProduct{}).
		Distinct("crops").
		Where("crops <> ''").
		Order("crops").
		Pluck("crops", &rows).Error
	return rows, err
}

func (r *AgrofitRepositoryImpl) DistinctPests(ctx context.Context) ([]string, error) {
	var rows []string
	err := r.db.WithContext(ctx).
		Model(&model.PesticideProduct{}).
		Distinct("pests").
		Where("pests <> ''").
		Order("pests").
		Pluck("pests", &rows).Error
	return rows, err
}
