package model

import (
	"time"

	"github.com/google/uuid"
)

type PesticideProduct struct {
	Id                 uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	RegistrationNumber string    `gorm:"type:varchar(50);uniqueIndex;not null"`
	ProductName        string    `gorm:"type:varchar(255);not null;index"`
	Company            string    `gorm:"type:varchar(255)"`
	ActiveIngredient   string    `gorm:"type:varchar(255);index"`
	ChemicalGroup      string    `gorm:"type:varchar(255)"`
	ToxicologicalClass string    `gorm:"type:varchar(100)"`
	Crops              string    `gorm:"type:text"`
	Pests              string    `gorm:"type:text"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime"`
}

func (PesticideProduct) TableName() string {
	return "pesticide_products"
}
