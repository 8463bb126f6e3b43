package service

import (
	"testing"

	"agro-assistant-be/internal/entity"
	"agro-assistant-be/internal/repository/specification"
	"agro-assistant-be/internal/repository/unitofwork"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadStoresExtractedText(t *testing.T) {
	factory := unitofwork.NewRepositoryFactory(newTestDB(t))
	svc := NewDocumentService(factory, nopLogger{})
	user := seedUser(t, factory, entity.UserRoleUser)

	res, err := svc.Upload(t.Context(), user.Id, "laudo-solo.txt", "text/plain", []byte("pH 5.2, saturação de bases 38%"))
	require.NoError(t, err)
	assert.Equal(t, "laudo-solo.txt", res.Filename)

	uow := factory.NewUnitOfWork(t.Context())
	stored, err := uow.DocumentRepository().FindOne(t.Context(), specification.ByID{ID: res.Id})
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "pH 5.2, saturação de bases 38%", stored.ExtractedText)
}

func TestUploadStripsDirectoryFromFilename(t *testing.T) {
	factory := unitofwork.NewRepositoryFactory(newTestDB(t))
	svc := NewDocumentService(factory, nopLogger{})
	user := seedUser(t, factory, entity.UserRoleUser)

	res, err := svc.Upload(t.Context(), user.Id, "../../etc/notes.md", "text/markdown", []byte("ok"))
	require.NoError(t, err)
	assert.Equal(t, "notes.md", res.Filename)
}

func TestUploadRejectsUnknownExtension(t *testing.T) {
	factory := unitofwork.NewRepositoryFactory(newTestDB(t))
	svc := NewDocumentService(factory, nopLogger{})
	user := seedUser(t, factory, entity.UserRoleUser)

	_, err := svc.Upload(t.Context(), user.Id, "photo.png", "image/png", []byte{0x89, 0x50})
	assert.ErrorIs(t, err, ErrUnsupportedDocument)
}

func TestUploadRejectsInvalidUTF8(t *testing.T) {
	factory := unitofwork.NewRepositoryFactory(newTestDB(t))
	svc := NewDocumentService(factory, nopLogger{})
	user := seedUser(t, factory, entity.UserRoleUser)

	_, err := svc.Upload(t.Context(), user.Id, "binary.txt", "text/plain", []byte{0xff, 0xfe, 0x00})
	assert.ErrorIs(t, err, ErrUnsupportedDocument)
}

func TestUploadRejectsOversizedFile(t *testing.T) {
	factory := unitofwork.NewRepositoryFactory(newTestDB(t))
	svc := NewDocumentService(factory, nopLogger{})
	user := seedUser(t, factory, entity.UserRoleUser)

	_, err := svc.Upload(t.Context(), user.Id, "huge.txt", "text/plain", make([]byte, maxDocumentBytes+1))
	assert.ErrorIs(t, err, ErrDocumentTooLarge)
}

func TestDeleteRefusesForeignDocument(t *testing.T) {
	factory := unitofwork.NewRepositoryFactory(newTestDB(t))
	svc := NewDocumentService(factory, nopLogger{})
	owner := seedUser(t, factory, entity.UserRoleUser)
	intruder := seedUser(t, factory, entity.UserRoleUser)

	res, err := svc.Upload(t.Context(), owner.Id, "mine.txt", "text/plain", []byte("x"))
	require.NoError(t, err)

	err = svc.Delete(t.Context(), intruder.Id, res.Id)
	assert.ErrorIs(t, err, ErrDocumentNotFound)

	require.NoError(t, svc.Delete(t.Context(), owner.Id, res.Id))

	docs, err := svc.List(t.Context(), owner.Id)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestDeleteUnknownDocument(t *testing.T) {
	factory := unitofwork.NewRepositoryFactory(newTestDB(t))
	svc := NewDocumentService(factory, nopLogger{})
	user := seedUser(t, factory, entity.UserRoleUser)

	err := svc.Delete(t.Context(), user.Id, uuid.New())
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}
