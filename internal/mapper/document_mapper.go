package mapper

import (
	"time"

	"agro-assistant-be/internal/entity"
	"agro-assistant-be/internal/model"

	"gorm.io/gorm"
)

type DocumentMapper struct{}

func NewDocumentMapper() *DocumentMapper {
	return &DocumentMapper{}
}

func (m *DocumentMapper) ToEntity(d *model.Document) *entity.Document {
	if d == nil {
		return nil
	}

	return &entity.Document{
		Id:            d.Id,
		UserId:        d.UserId,
		Filename:      d.Filename,
		ContentType:   d.ContentType,
		SizeBytes:     d.SizeBytes,
		ExtractedText: d.ExtractedText,
		CreatedAt:     d.CreatedAt,
		IsDeleted:     d.DeletedAt.Valid,
	}
}

func (m *DocumentMapper) ToModel(d *entity.Document) *model.Document {
	if d == nil {
		return nil
	}

	var deletedAt gorm.DeletedAt
	if d.IsDeleted {
		deletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	}

	return &model.Document{
		Id:            d.Id,
		UserId:        d.UserId,
		Filename:      d.Filename,
		ContentType:   d.ContentType,
		SizeBytes:     d.SizeBytes,
		ExtractedText: d.ExtractedText,
		CreatedAt:     d.CreatedAt,
		DeletedAt:     deletedAt,
	}
}
