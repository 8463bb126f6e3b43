package assistant

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildPromptWithoutDocuments(t *testing.T) {
	assert.Equal(t, "qual o vazio?", BuildPrompt("qual o vazio?", nil))
}

func TestBuildPromptInjectsDocumentSections(t *testing.T) {
	got := BuildPrompt("what is this?", []DocumentContent{
		{Filename: "doc.pdf", Text: "ABC"},
	})
	assert.Equal(t, "--- Conteúdo de doc.pdf ---\nABC\n\nPergunta: what is this?", got)
}

func TestBuildPromptMultipleDocumentsKeepOrder(t *testing.T) {
	got := BuildPrompt("compare", []DocumentContent{
		{Filename: "a.txt", Text: "um"},
		{Filename: "b.txt", Text: "dois"},
	})
	assert.Equal(t, "--- Conteúdo de a.txt ---\num\n\n--- Conteúdo de b.txt ---\ndois\n\nPergunta: compare", got)
}
