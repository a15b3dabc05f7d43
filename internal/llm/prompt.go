package llm

import (
	"fmt"
	"strings"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/entity"
)

// BuildPrompt renders the extraction instructions for a document type and field set.
func BuildPrompt(docType constants.DocumentType, fields []entity.SchemaField) string {
	descriptions := make([]string, 0, len(fields))
	keys := make([]string, 0, len(fields))
	for _, f := range fields {
		descriptions = append(descriptions, fmt.Sprintf("- %s: %s - %s", f.ID, f.Name, f.Description))
		keys = append(keys, fmt.Sprintf("%q", f.ID))
	}

	var b strings.Builder
	b.WriteString("You are a precise document data extraction assistant. \n")
	b.WriteString("Extract the following specific information from this ")
	b.WriteString(docType.Label())
	b.WriteString(":\n\n")
	b.WriteString(strings.Join(descriptions, "\n"))
	b.WriteString("\n\nImportant instructions:\n")
	b.WriteString("1. Only extract the specific data fields requested\n")
	b.WriteString("2. Return the data in valid JSON format with these exact keys: {")
	b.WriteString(strings.Join(keys, ", "))
	b.WriteString("}\n")
	b.WriteString("3. If you cannot find a particular piece of information, use an empty string for that field\n")
	b.WriteString("4. Do not include any explanations or notes in your response, only the JSON object\n")
	b.WriteString("5. Be precise and extract the exact data as it appears in the document")
	return b.String()
}

// BuildUserMessage appends the document text to the prompt.
func BuildUserMessage(prompt, text string) string {
	return prompt + "\n\nHere is the text to extract from the document:\n\n" + text
}
