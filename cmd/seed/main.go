package main

import (
	"context"
	"log"
	"time"

	"agro-assistant-be/internal/config"
	"agro-assistant-be/internal/entity"
	"agro-assistant-be/internal/repository/implementation"
	"agro-assistant-be/internal/repository/specification"
	"agro-assistant-be/pkg/database"

	"github.com/google/uuid"
)

// Seeds the subscription plans and a small Agrofit sample so a fresh
// environment can exercise checkout and the catalog tools. Safe to run
// more than once.
func main() {
	cfg := config.Load()

	db, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	ctx := context.Background()

	subs := implementation.NewSubscriptionRepository(db)
	plans := []entity.SubscriptionPlan{
		{
			Name:          "Mensal",
			Slug:          "mensal",
			Description:   "Acesso completo ao assistente, cobrado mensalmente.",
			Price:         49.90,
			BillingPeriod: entity.BillingPeriodMonthly,
			IsActive:      true,
			SortOrder:     1,
		},
		{
			Name:          "Anual",
			Slug:          "anual",
			Description:   "Acesso completo ao assistente, cobrado anualmente.",
			Price:         499.00,
			BillingPeriod: entity.BillingPeriodYearly,
			IsActive:      true,
			SortOrder:     2,
		},
	}
	for _, plan := range plans {
		existing, err := subs.FindOnePlan(ctx, specification.FilterBy{Field: "slug", Value: plan.Slug})
		if err != nil {
			log.Fatalf("failed to look up plan %s: %v", plan.Slug, err)
		}
		if existing != nil {
			log.Printf("plan %s already present, skipping", plan.Slug)
			continue
		}
		plan.Id = uuid.New()
		if err := subs.CreatePlan(ctx, &plan); err != nil {
			log.Fatalf("failed to create plan %s: %v", plan.Slug, err)
		}
		log.Printf("created plan %s", plan.Slug)
	}

	agrofit := implementation.NewAgrofitRepository(db)
	products := []entity.PesticideProduct{
		{
			RegistrationNumber: "001898",
			ProductName:        "Roundup Original",
			Company:            "Monsanto do Brasil Ltda.",
			ActiveIngredient:   "Glifosato",
			ChemicalGroup:      "Glicina substituída",
			ToxicologicalClass: "Categoria 5",
			Crops:              "Soja;Milho;Algodão;Café",
			Pests:              "Plantas daninhas",
		},
		{
			RegistrationNumber: "008496",
			ProductName:        "Engeo Pleno S",
			Company:            "Syngenta Proteção de Cultivos Ltda.",
			ActiveIngredient:   "Tiametoxam + Lambda-cialotrina",
			ChemicalGroup:      "Neonicotinoide + Piretroide",
			ToxicologicalClass: "Categoria 4",
			Crops:              "Soja;Milho;Trigo",
			Pests:              "Percevejo-marrom;Lagarta-do-cartucho",
		},
		{
			RegistrationNumber: "011007",
			ProductName:        "Fox Xpro",
			Company:            "Bayer S.A.",
			ActiveIngredient:   "Bixafem + Protioconazol + Trifloxistrobina",
			ChemicalGroup:      "Carboxamida + Triazolintiona + Estrobilurina",
			ToxicologicalClass: "Categoria 5",
			Crops:              "Soja;Algodão",
			Pests:              "Ferrugem-asiática;Mancha-alvo",
		},
	}
	for _, product := range products {
		product.Id = uuid.New()
		product.UpdatedAt = time.Now()
		if err := agrofit.Upsert(ctx, &product); err != nil {
			log.Fatalf("failed to upsert product %s: %v", product.RegistrationNumber, err)
		}
		log.Printf("upserted product %s (%s)", product.ProductName, product.RegistrationNumber)
	}

	log.Println("seed finished")
}
