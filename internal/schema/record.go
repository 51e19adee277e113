package schema

import (
	"fmt"
	"sort"
	"strings"

	clerrors "github.com/Aman-CERP/claridoc/internal/errors"
)

// Record is the metadata extracted from one segment or batch.
type Record struct {
	// Fields maps field names to their values. Text fields hold one element.
	Fields map[string][]string
	// AddedNewKeyword is set when extraction reported values outside the
	// vocabulary it was given.
	AddedNewKeyword bool
}

// Keywords returns the keyword-kind fields of r under s, the part that
// feeds the vocabulary.
func (r Record) Keywords(s Schema) map[string][]string {
	out := make(map[string][]string)
	for _, name := range s.KeywordFields() {
		if vals := r.Fields[name]; len(vals) > 0 {
			out[name] = append([]string(nil), vals...)
		}
	}
	return out
}

// Metadata returns the record as passage metadata. Keyword fields stay
// lists; text fields become a single joined string. The novelty flag is
// not included.
func (r Record) Metadata(s Schema) map[string]any {
	out := make(map[string]any, len(r.Fields))
	for name, vals := range r.Fields {
		if len(vals) == 0 {
			continue
		}
		f, ok := s.Field(name)
		if ok && f.Kind == KindText {
			out[name] = strings.Join(vals, "\n")
			continue
		}
		out[name] = append([]string(nil), vals...)
	}
	return out
}

// ParseRecord normalizes raw extraction output under s. Strings become
// one-element lists, text-field lists are joined, unknown keys are dropped,
// nulls are skipped and the novelty flag is read into AddedNewKeyword.
func (s Schema) ParseRecord(raw map[string]any) (Record, error) {
	rec := Record{Fields: make(map[string][]string)}

	for key, val := range raw {
		if key == NoveltyFlag {
			flag, err := asBool(val)
			if err != nil {
				return Record{}, clerrors.ExtractionFailure("malformed "+NoveltyFlag, err)
			}
			rec.AddedNewKeyword = flag
			continue
		}
		f, ok := s.Field(key)
		if !ok {
			continue
		}
		vals, err := asStrings(val)
		if err != nil {
			return Record{}, clerrors.ExtractionFailure(fmt.Sprintf("malformed field %q", key), err)
		}
		if f.Kind == KindText && len(vals) > 1 {
			vals = []string{strings.Join(vals, "\n")}
		}
		if len(vals) > 0 {
			rec.Fields[key] = vals
		}
	}

	return rec, s.Validate(rec)
}

// Validate checks that every field in r belongs to s and that text fields
// hold at most one value.
func (s Schema) Validate(r Record) error {
	names := make([]string, 0, len(r.Fields))
	for name := range r.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		f, ok := s.Field(name)
		if !ok {
			return clerrors.ExtractionFailure(fmt.Sprintf("field %q is not part of the %s schema", name, s.Type), nil)
		}
		if f.Kind == KindText && len(r.Fields[name]) > 1 {
			return clerrors.ExtractionFailure(fmt.Sprintf("text field %q has %d values", name, len(r.Fields[name])), nil)
		}
	}
	return nil
}

// queryExcluded are dropped from query metadata before it is used as a filter.
var queryExcluded = map[string]bool{
	"obligations": true,
	"exclusions":  true,
	"notes":       true,
	NoveltyFlag:   true,
}

// FilterQueryMetadata keeps only the attributes usable as index filters.
func FilterQueryMetadata(raw map[string]any) map[string]any {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		if !queryExcluded[k] {
			out[k] = v
		}
	}
	return out
}

// QueryFilter converts filtered query metadata into attribute value lists,
// dropping anything that is not a string or list of strings.
func QueryFilter(meta map[string]any) map[string][]string {
	out := make(map[string][]string, len(meta))
	for k, v := range meta {
		vals, err := asStrings(v)
		if err != nil || len(vals) == 0 {
			continue
		}
		out[k] = vals
	}
	return out
}

func asStrings(v any) ([]string, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		if s := strings.TrimSpace(t); s != "" {
			return []string{s}, nil
		}
		return nil, nil
	case []string:
		return trimAll(t), nil
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("list item %v is %T, want string", item, item)
			}
			out = append(out, s)
		}
		return trimAll(out), nil
	default:
		return nil, fmt.Errorf("value %v is %T, want string or list", v, v)
	}
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func asBool(v any) (bool, error) {
	switch t := v.(type) {
	case nil:
		return false, nil
	case bool:
		return t, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes":
			return true, nil
		case "false", "no", "":
			return false, nil
		}
	}
	return false, fmt.Errorf("value %v is not a boolean", v)
}
