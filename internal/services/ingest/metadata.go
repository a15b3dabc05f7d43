package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/entity"
	"github.com/joseph-ayodele/docextract/internal/presets"
)

const (
	maxFields         = 100
	maxFieldIDLen     = 64
	maxFieldNameLen   = 200
	maxDescriptionLen = 1000
)

// metadataSchema builds the JSON Schema a submission's metadata must satisfy.
func metadataSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"document_type"},
		"properties": map[string]any{
			"document_type": map[string]any{
				"type": "string",
				"enum": constants.DocumentTypeStrings(),
			},
			"fields": fieldsSchema(),
		},
	}
}

func fieldsSchema() map[string]any {
	return map[string]any{
		"type":     "array",
		"maxItems": maxFields,
		"items": map[string]any{
			"type":     "object",
			"required": []string{"id", "name"},
			"properties": map[string]any{
				"id":          map[string]any{"type": "string", "minLength": 1},
				"name":        map[string]any{"type": "string"},
				"description": map[string]any{"type": "string"},
			},
		},
	}
}

func compileSchema(name string, schema map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	return compiler.Compile(name)
}

// MetadataParser turns raw submission metadata into a validated schema.
type MetadataParser struct {
	metadata *jsonschema.Schema
	fields   *jsonschema.Schema
	presets  *presets.Set
}

func NewMetadataParser(p *presets.Set) (*MetadataParser, error) {
	if p == nil {
		p = presets.Default()
	}
	meta, err := compileSchema("metadata.json", metadataSchema())
	if err != nil {
		return nil, err
	}
	fields, err := compileSchema("fields.json", fieldsSchema())
	if err != nil {
		return nil, err
	}
	return &MetadataParser{metadata: meta, fields: fields, presets: p}, nil
}

// Parse validates raw metadata. Empty fields on a non-custom type are filled from presets.
func (p *MetadataParser) Parse(raw []byte) (entity.ExtractionSchema, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return entity.ExtractionSchema{}, common.NewValidationError("metadata", "is required")
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return entity.ExtractionSchema{}, common.NewValidationError("metadata", "Invalid metadata JSON format")
	}
	if err := p.metadata.Validate(doc); err != nil {
		return entity.ExtractionSchema{}, common.NewValidationError("metadata", schemaMessage(err))
	}

	var schema entity.ExtractionSchema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return entity.ExtractionSchema{}, common.NewValidationError("metadata", "Invalid metadata JSON format")
	}
	fields, err := p.completeFields(schema.DocumentType, schema.Fields)
	if err != nil {
		return entity.ExtractionSchema{}, err
	}
	schema.Fields = fields
	return schema, nil
}

// ParseFields validates a raw fields array such as the one sent to /reprocess.
func (p *MetadataParser) ParseFields(raw json.RawMessage) ([]entity.SchemaField, error) {
	if len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null" {
		return nil, nil
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, common.NewValidationError("fields", "must be a JSON array")
	}
	if err := p.fields.Validate(doc); err != nil {
		return nil, common.NewValidationError("fields", schemaMessage(err))
	}
	var fields []entity.SchemaField
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, common.NewValidationError("fields", "must be a JSON array")
	}
	return fields, nil
}

// completeFields applies presets and checks field ids, names and descriptions.
func (p *MetadataParser) completeFields(dt constants.DocumentType, fields []entity.SchemaField) ([]entity.SchemaField, error) {
	if len(fields) == 0 {
		fields = p.presets.Fields(dt)
	}
	if len(fields) == 0 {
		return nil, common.NewValidationError("fields", "at least one field is required for "+string(dt)+" documents")
	}

	v := common.NewValidator()
	seen := make(map[string]bool, len(fields))
	for i, f := range fields {
		prefix := fmt.Sprintf("fields[%d].", i)
		f.ID = strings.TrimSpace(f.ID)
		fields[i].ID = f.ID
		v.Field(prefix+"id", f.ID, common.Required, common.MaxLength(maxFieldIDLen))
		v.Field(prefix+"name", f.Name, common.Required, common.MaxLength(maxFieldNameLen))
		v.Field(prefix+"description", f.Description, common.MaxLength(maxDescriptionLen))
		if f.ID != "" && seen[f.ID] {
			v.Add(prefix+"id", fmt.Sprintf("duplicate field id %q", f.ID))
		}
		seen[f.ID] = true
	}
	if err := v.Error(); err != nil {
		return nil, err
	}
	return fields, nil
}

func schemaMessage(err error) string {
	var ve *jsonschema.ValidationError
	if errors.As(err, &ve) {
		leaf := ve
		for len(leaf.Causes) > 0 {
			leaf = leaf.Causes[0]
		}
		loc := strings.TrimPrefix(leaf.InstanceLocation, "/")
		if loc == "" {
			return leaf.Message
		}
		return loc + ": " + leaf.Message
	}
	return err.Error()
}
