package entity

import "github.com/joseph-ayodele/docextract/constants"

// SchemaField is one named target value requested for extraction.
type SchemaField struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
}

// ExtractionSchema is the caller supplied document type plus ordered fields.
type ExtractionSchema struct {
	DocumentType constants.DocumentType `json:"document_type"`
	Fields       []SchemaField          `json:"fields"`
}

// FieldIDs returns the field ids in order.
func (s ExtractionSchema) FieldIDs() []string {
	return FieldIDs(s.Fields)
}

// FieldIDs returns the ids of fields in order.
func FieldIDs(fields []SchemaField) []string {
	ids := make([]string, len(fields))
	for i, f := range fields {
		ids[i] = f.ID
	}
	return ids
}
