// Package schema defines the closed set of document-type schemas that drive
// metadata extraction, and the Record type extraction produces.
package schema

import (
	"fmt"
	"sort"
	"strings"

	clerrors "github.com/Aman-CERP/claridoc/internal/errors"
)

// DocType tags a supported document type.
type DocType string

const (
	InsurancePolicy DocType = "insurance_policy"
	LegalContract   DocType = "legal_contract"
	HRPolicy        DocType = "hr_policy"
)

// NoveltyFlag is the extraction output key that marks a record as carrying
// values outside the known vocabulary.
const NoveltyFlag = "added_new_keyword"

// Kind is how a field's values are treated.
type Kind string

const (
	// KindKeywords fields hold short controlled values that feed the vocabulary.
	KindKeywords Kind = "keywords"
	// KindText fields hold free text. They travel with passages but never
	// enter the vocabulary or query filters.
	KindText Kind = "text"
)

// Field describes one attribute in a schema.
type Field struct {
	Name        string
	Description string
	Kind        Kind
}

// Schema is one document-type variant.
type Schema struct {
	Type        DocType
	Description string
	Fields      []Field
}

// Field returns the named field.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// KeywordFields returns the names of keyword-kind fields.
func (s Schema) KeywordFields() []string {
	var out []string
	for _, f := range s.Fields {
		if f.Kind == KindKeywords {
			out = append(out, f.Name)
		}
	}
	return out
}

// textFields are shared by every schema and excluded from query filters.
var textFields = []Field{
	{Name: "obligations", Description: "duties the document imposes on any party", Kind: KindText},
	{Name: "exclusions", Description: "what the document explicitly does not cover or allow", Kind: KindText},
	{Name: "notes", Description: "anything else a reader should know about this passage", Kind: KindText},
}

var registry = map[DocType]Schema{
	InsurancePolicy: {
		Type:        InsurancePolicy,
		Description: "an insurance policy wording, schedule or certificate",
		Fields: append([]Field{
			{Name: "coverage_type", Description: "kinds of cover, e.g. life, hospitalization, dental", Kind: KindKeywords},
			{Name: "policy_type", Description: "the product category, e.g. individual health, group term", Kind: KindKeywords},
			{Name: "insured_parties", Description: "who is insured or named in the policy", Kind: KindKeywords},
			{Name: "benefits", Description: "named benefits or payouts", Kind: KindKeywords},
		}, textFields...),
	},
	LegalContract: {
		Type:        LegalContract,
		Description: "a contract or agreement between parties",
		Fields: append([]Field{
			{Name: "contract_type", Description: "e.g. service agreement, NDA, lease", Kind: KindKeywords},
			{Name: "parties", Description: "the contracting parties by role or name", Kind: KindKeywords},
			{Name: "jurisdiction", Description: "governing law or venue", Kind: KindKeywords},
			{Name: "clauses", Description: "clause headings covered, e.g. termination, indemnity", Kind: KindKeywords},
		}, textFields...),
	},
	HRPolicy: {
		Type:        HRPolicy,
		Description: "an employee handbook or HR policy",
		Fields: append([]Field{
			{Name: "policy_area", Description: "e.g. leave, travel, code of conduct", Kind: KindKeywords},
			{Name: "applicable_roles", Description: "employee groups the policy applies to", Kind: KindKeywords},
			{Name: "benefits", Description: "named employee benefits", Kind: KindKeywords},
			{Name: "procedures", Description: "named procedures or processes", Kind: KindKeywords},
		}, textFields...),
	},
}

// Lookup returns the schema for tag. Unknown tags are a schema detection failure.
func Lookup(tag string) (Schema, error) {
	s, ok := registry[DocType(strings.ToLower(strings.TrimSpace(tag)))]
	if !ok {
		return Schema{}, clerrors.SchemaDetectionFailure(
			fmt.Sprintf("unsupported document type %q", tag), nil)
	}
	return s, nil
}

// All returns every schema, ordered by tag.
func All() []Schema {
	out := make([]Schema, 0, len(registry))
	for _, s := range registry {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}
