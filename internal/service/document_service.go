package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"agro-assistant-be/internal/dto"
	"agro-assistant-be/internal/entity"
	"agro-assistant-be/internal/pkg/logger"
	"agro-assistant-be/internal/repository/specification"
	"agro-assistant-be/internal/repository/unitofwork"

	"github.com/google/uuid"
)

const (
	maxDocumentBytes  = 5 << 20
	maxExtractedChars = 200_000
)

var (
	ErrDocumentTooLarge    = errors.New("document exceeds the size limit")
	ErrUnsupportedDocument = errors.New("unsupported document type")
	ErrDocumentNotFound    = errors.New("document not found")
)

// textExtensions are the formats we extract as-is. Binary formats would
// need a dedicated extractor and are rejected at upload.
var textExtensions = map[string]bool{
	".txt":  true,
	".md":   true,
	".csv":  true,
	".json": true,
}

type IDocumentService interface {
	Upload(ctx context.Context, userId uuid.UUID, filename, contentType string, data []byte) (*dto.DocumentResponse, error)
	List(ctx context.Context, userId uuid.UUID) ([]*dto.DocumentResponse, error)
	Delete(ctx context.Context, userId, documentId uuid.UUID) error
}

type documentService struct {
	uowFactory unitofwork.RepositoryFactory
	logger     logger.ILogger
}

func NewDocumentService(uowFactory unitofwork.RepositoryFactory, log logger.ILogger) IDocumentService {
	return &documentService{
		uowFactory: uowFactory,
		logger:     log,
	}
}

// Upload extracts the document text immediately so the chat pipeline
// only ever deals with stored plain text.
func (s *documentService) Upload(ctx context.Context, userId uuid.UUID, filename, contentType string, data []byte) (*dto.DocumentResponse, error) {
	if len(data) > maxDocumentBytes {
		return nil, ErrDocumentTooLarge
	}

	text, err := extractText(filename, data)
	if err != nil {
		return nil, err
	}

	doc := &entity.Document{
		Id:            uuid.New(),
		UserId:        userId,
		Filename:      filepath.Base(filename),
		ContentType:   contentType,
		SizeBytes:     int64(len(data)),
		ExtractedText: text,
		CreatedAt:     time.Now(),
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.DocumentRepository().Create(ctx, doc); err != nil {
		return nil, err
	}

	s.logger.Info("document", "document uploaded", map[string]interface{}{
		"document_id": doc.Id.String(),
		"user_id":     userId.String(),
		"size_bytes":  doc.SizeBytes,
	})

	return documentToDTO(doc), nil
}

func (s *documentService) List(ctx context.Context, userId uuid.UUID) ([]*dto.DocumentResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	docs, err := uow.DocumentRepository().FindAll(ctx,
		specification.UserOwnedBy{UserID: userId},
		specification.OrderBy{Field: "created_at", Desc: true},
	)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.DocumentResponse, len(docs))
	for i, doc := range docs {
		res[i] = documentToDTO(doc)
	}
	return res, nil
}

func (s *documentService) Delete(ctx context.Context, userId, documentId uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	doc, err := uow.DocumentRepository().FindOne(ctx, specification.ByID{ID: documentId})
	if err != nil {
		return err
	}
	if doc == nil || doc.UserId != userId {
		return ErrDocumentNotFound
	}

	return uow.DocumentRepository().Delete(ctx, documentId)
}

func extractText(filename string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !textExtensions[ext] {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedDocument, ext)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: file is not valid UTF-8 text", ErrUnsupportedDocument)
	}

	text := string(data)
	if len(text) > maxExtractedChars {
		text = text[:maxExtractedChars]
	}
	return text, nil
}

func documentToDTO(doc *entity.Document) *dto.DocumentResponse {
	return &dto.DocumentResponse{
		Id:          doc.Id,
		Filename:    doc.Filename,
		ContentType: doc.ContentType,
		SizeBytes:   doc.SizeBytes,
		CreatedAt:   doc.CreatedAt,
	}
}
