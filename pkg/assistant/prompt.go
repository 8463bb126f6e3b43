package assistant

import (
	"fmt"
	"strings"
)

// SystemPrompt frames the assistant as an agronomy advisor. Tools are
// advertised separately through their schemas.
const SystemPrompt = `Você é um assistente agronômico especializado em agricultura brasileira. ` +
	`Responda de forma objetiva e tecnicamente fundamentada sobre manejo de culturas, pragas, ` +
	`doenças e defensivos agrícolas. Quando precisar de dados de registro de produtos ou de ` +
	`condições meteorológicas, use as ferramentas disponíveis. Sempre recomende a consulta a um ` +
	`engenheiro agrônomo para prescrições e alerte sobre o uso correto de EPIs.`

// DocumentContent is the extracted text of one attached file.
type DocumentContent struct {
	Filename string
	Text     string
}

// BuildPrompt prepends attached document text to the user's question as
// labeled sections. The persisted message keeps only the raw question;
// this augmented form is what goes to the model.
func BuildPrompt(question string, documents []DocumentContent) string {
	if len(documents) == 0 {
		return question
	}

	var b strings.Builder
	for _, doc := range documents {
		b.WriteString(fmt.Sprintf("--- Conteúdo de %s ---\n%s\n\n", doc.Filename, doc.Text))
	}
	b.WriteString("Pergunta: ")
	b.WriteString(question)
	return b.String()
}

// TitlePrompt asks for a short session title from the first question.
func TitlePrompt(question string) string {
	return fmt.Sprintf("Gere um título curto (máximo 6 palavras, sem aspas) para uma conversa que começa com a pergunta: %s", question)
}
