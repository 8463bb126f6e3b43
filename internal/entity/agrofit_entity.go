package entity

import (
	"time"

	"github.com/google/uuid"
)

// PesticideProduct is one registered product from the national
// pesticide registry (Agrofit). Rows are loaded by an external sync
// job; the assistant tools only read them.
type PesticideProduct struct {
	Id                 uuid.UUID
	RegistrationNumber string
	ProductName        string
	Company            string
	ActiveIngredient   string
	ChemicalGroup      string
	ToxicologicalClass string
	Crops              string
	Pests              string
	UpdatedAt          time.Time
}
