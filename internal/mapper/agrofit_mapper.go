package mapper

import (
	"agro-assistant-be/internal/entity"
	"agro-assistant-be/internal/model"
)

type AgrofitMapper struct{}

func NewAgrofitMapper() *AgrofitMapper {
	return &AgrofitMapper{}
}

func (m *AgrofitMapper) ToEntity(p *model.PesticideProduct) *entity.PesticideProduct {
	if p == nil {
		return nil
	}

	return &entity.PesticideProduct{
		Id:                 p.Id,
		RegistrationNumber: p.RegistrationNumber,
		ProductName:        p.ProductName,
		Company:            p.Company,
		ActiveIngredient:   p.ActiveIngredient,
		ChemicalGroup:      p.ChemicalGroup,
		ToxicologicalClass: p.ToxicologicalClass,
		Crops:              p.Crops,
		Pests:              p.Pests,
		UpdatedAt:          p.UpdatedAt,
	}
}

func (m *AgrofitMapper) ToModel(p *entity.PesticideProduct) *model.PesticideProduct {
	if p == nil {
		return nil
	}

	return &model.PesticideProduct{
		Id:                 p.Id,
		RegistrationNumber: p.RegistrationNumber,
		ProductName:        p.ProductName,
		Company:            p.Company,
		ActiveIngredient:   p.ActiveIngredient,
		ChemicalGroup:      p.ChemicalGroup,
		ToxicologicalClass: p.ToxicologicalClass,
		Crops:              p.Crops,
		Pests:              p.Pests,
		UpdatedAt:          p.UpdatedAt,
	}
}
