package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"agro-assistant-be/internal/repository/contract"
	"agro-assistant-be/internal/repository/specification"
	"agro-assistant-be/pkg/llm"
)

const productSearchSchema = `{
	"type": "object",
	"properties": {
		"query": {
			"type": "string",
			"description": "Nome do produto ou ingrediente ativo a buscar"
		},
		"cultura": {
			"type": "string",
			"description": "Filtrar por cultura, ex: 'Soja'"
		},
		"praga": {
			"type": "string",
			"description": "Filtrar por praga ou doença alvo, ex: 'Ferrugem asiática'"
		}
	}
}`

const emptySchema = `{"type": "object", "properties": {}}`

const maxProductResults = 20

// ProductSearchTool looks up registered pesticide products in the
// Agrofit catalog mirror.
type ProductSearchTool struct {
	repo contract.AgrofitRepository
}

type productSearchParams struct {
	Query   string `json:"query"`
	Cultura string `json:"cultura"`
	Praga   string `json:"praga"`
}

func NewProductSearchTool(repo contract.AgrofitRepository) *ProductSearchTool {
	return &ProductSearchTool{repo: repo}
}

func (t *ProductSearchTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        "buscar_produtos_agrofit",
		Description: "Busca produtos fitossanitários registrados no Agrofit/MAPA por nome, ingrediente ativo, cultura ou praga alvo.",
		Parameters:  json.RawMessage(productSearchSchema),
	}
}

func (t *ProductSearchTool) Call(ctx context.Context, args json.RawMessage) (string, error) {
	var params productSearchParams
	if err := json.Unmarshal(args, &params); err != nil {
		return "", err
	}

	var specs []specification.Specification
	if q := strings.TrimSpace(params.Query); q != "" {
		specs = append(specs, specification.ProductSearch{Query: q})
	}
	if c := strings.TrimSpace(params.Cultura); c != "" {
		specs = append(specs, specification.ByCrop{Crop: c})
	}
	if p := strings.TrimSpace(params.Praga); p != "" {
		specs = append(specs, specification.ByPest{Pest: p})
	}
	if len(specs) == 0 {
		return "", errors.New("informe ao menos um filtro: query, cultura ou praga")
	}
	specs = append(specs, specification.Pagination{Limit: maxProductResults})

	products, err := t.repo.FindAll(ctx, specs...)
	if err != nil {
		return "", err
	}

	type productResult struct {
		Registro         string `json:"registro"`
		Produto          string `json:"produto"`
		Empresa          string `json:"empresa,omitempty"`
		IngredienteAtivo string `json:"ingrediente_ativo,omitempty"`
		GrupoQuimico     string `json:"grupo_quimico,omitempty"`
		ClasseTox        string `json:"classe_toxicologica,omitempty"`
		Culturas         string `json:"culturas,omitempty"`
		Pragas           string `json:"pragas,omitempty"`
	}

	results := make([]productResult, len(products))
	for i, p := range products {
		results[i] = productResult{
			Registro:         p.RegistrationNumber,
			Produto:          p.ProductName,
			Empresa:          p.Company,
			IngredienteAtivo: p.ActiveIngredient,
			GrupoQuimico:     p.ChemicalGroup,
			ClasseTox:        p.ToxicologicalClass,
			Culturas:         p.Crops,
			Pragas:           p.Pests,
		}
	}

	out, err := json.Marshal(map[string]interface{}{
		"total":    len(results),
		"produtos": results,
	})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// CropListTool lists the crops present in the catalog.
type CropListTool struct {
	repo contract.AgrofitRepository
}

func NewCropListTool(repo contract.AgrofitRepository) *CropListTool {
	return &CropListTool{repo: repo}
}

func (t *CropListTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        "listar_culturas_agrofit",
		Description: "Lista as culturas agrícolas presentes no catálogo Agrofit.",
		Parameters:  json.RawMessage(emptySchema),
	}
}

func (t *CropListTool) Call(ctx context.Context, _ json.RawMessage) (string, error) {
	crops, err := t.repo.DistinctCrops(ctx)
	if err != nil {
		return "", err
	}
	out, err := json.Marshal(map[string]interface{}{"culturas": crops})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// PestListTool lists the pests present in the catalog.
type PestListTool struct {
	repo contract.AgrofitRepository
}

func NewPestListTool(repo contract.AgrofitRepository) *PestListTool {
	return &PestListTool{repo: repo}
}

func (t *PestListTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        "listar_pragas_agrofit",
		Description: "Lista as pragas e doenças alvo presentes no catálogo Agrofit.",
		Parameters:  json.RawMessage(emptySchema),
	}
}

func (t *PestListTool) Call(ctx context.Context, _ json.RawMessage) (string, error) {
	pests, err := t.repo.DistinctPests(ctx)
	if err != nil {
		return "", err
	}
	out, err := json.Marshal(map[string]interface{}{"pragas": pests})
	if err != nil {
		return "", err
	}
	return string(out), nil
}
