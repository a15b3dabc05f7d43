package constants

import "strings"

// DocumentType is the kind of document a caller submits for extraction.
type DocumentType string

const (
	DocumentTypePaystub                 DocumentType = "paystub"
	DocumentTypeW2                      DocumentType = "w2"
	DocumentTypeTaxReturn               DocumentType = "tax_return"
	DocumentTypeLeaseAgreement          DocumentType = "lease_agreement"
	DocumentTypeMortgageStatement       DocumentType = "mortgage_statement"
	DocumentTypeBankStatement           DocumentType = "bank_statement"
	DocumentTypeCardProcessingStatement DocumentType = "card_processing_statement"
	DocumentTypeCustom                  DocumentType = "custom"
)

var documentTypeLabels = map[DocumentType]string{
	DocumentTypePaystub:                 "Paystub/Pay Slip",
	DocumentTypeW2:                      "W-2 Tax Form",
	DocumentTypeTaxReturn:               "Tax Return",
	DocumentTypeLeaseAgreement:          "Lease Agreement",
	DocumentTypeMortgageStatement:       "Mortgage Statement",
	DocumentTypeBankStatement:           "Bank Statement",
	DocumentTypeCardProcessingStatement: "Card Processing Statement",
	DocumentTypeCustom:                  "Document",
}

// DocumentTypes lists every known type in a stable order.
var DocumentTypes = []DocumentType{
	DocumentTypePaystub,
	DocumentTypeW2,
	DocumentTypeTaxReturn,
	DocumentTypeLeaseAgreement,
	DocumentTypeMortgageStatement,
	DocumentTypeBankStatement,
	DocumentTypeCardProcessingStatement,
	DocumentTypeCustom,
}

// Label returns the human readable label used in prompts. Unknown types read as "Document".
func (t DocumentType) Label() string {
	if l, ok := documentTypeLabels[t]; ok {
		return l
	}
	return documentTypeLabels[DocumentTypeCustom]
}

// Valid reports whether t is one of the known document types.
func (t DocumentType) Valid() bool {
	_, ok := documentTypeLabels[t]
	return ok
}

// ParseDocumentType normalizes input and reports whether it names a known type.
func ParseDocumentType(input string) (DocumentType, bool) {
	t := DocumentType(strings.ToLower(strings.TrimSpace(input)))
	return t, t.Valid()
}

// DocumentTypeStrings returns the known types as strings, e.g. for a JSON Schema enum.
func DocumentTypeStrings() []string {
	out := make([]string, len(DocumentTypes))
	for i, t := range DocumentTypes {
		out[i] = string(t)
	}
	return out
}
