// Package validator checks raw JSON documents against a schema and converts
// them into ingestion.Document values. It returns per-field error details.
package validator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/schema"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/sanesearch/pkg/errors"
)

const maxValueLength = 1 << 20

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		names = append(names, field)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, field := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", field, e.Fields[field]))
	}
	return strings.Join(parts, "; ")
}

// ValidateDocument parses text as a JSON object whose keys are declared
// fields and whose values are strings or arrays of strings. Facet values must
// be absolute paths. Any failure is reported as a document validation error.
func ValidateDocument(s *schema.Schema, text string) (ingestion.Document, error) {
	const op = "add_document"

	dec := json.NewDecoder(strings.NewReader(text))
	var raw map[string]json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return ingestion.Document{}, pkgerrors.Newf(pkgerrors.ErrDocumentValidation, op,
			"document is not a JSON object: %v", err)
	}
	if raw == nil {
		return ingestion.Document{}, pkgerrors.New(pkgerrors.ErrDocumentValidation, op,
			"document is not a JSON object")
	}
	if _, err := dec.Token(); err != io.EOF {
		return ingestion.Document{}, pkgerrors.New(pkgerrors.ErrDocumentValidation, op,
			"trailing data after document")
	}

	errs := make(map[string]string)
	doc := ingestion.Document{Fields: make(map[string][]string, len(raw))}
	for name, value := range raw {
		entry, ok := s.Lookup(name)
		if !ok {
			errs[name] = "field is not declared in the schema"
			continue
		}
		values, err := decodeValues(value)
		if err != nil {
			errs[name] = err.Error()
			continue
		}
		if msg := checkValues(entry, values); msg != "" {
			errs[name] = msg
			continue
		}
		if len(values) > 0 {
			doc.Fields[name] = values
		}
	}
	if len(errs) > 0 {
		return ingestion.Document{}, pkgerrors.Wrap(pkgerrors.ErrDocumentValidation, op,
			&ValidationError{Fields: errs})
	}
	return doc, nil
}

func decodeValues(value json.RawMessage) ([]string, error) {
	trimmed := bytes.TrimSpace(value)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("value is empty")
	}
	switch trimmed[0] {
	case '"':
		var v string
		if err := json.Unmarshal(trimmed, &v); err != nil {
			return nil, fmt.Errorf("invalid string value: %w", err)
		}
		return []string{v}, nil
	case '[':
		var vs []string
		if err := json.Unmarshal(trimmed, &vs); err != nil {
			return nil, fmt.Errorf("array values must all be strings")
		}
		return vs, nil
	default:
		return nil, fmt.Errorf("value must be a string or an array of strings")
	}
}

func checkValues(entry schema.Entry, values []string) string {
	for _, v := range values {
		if len(v) > maxValueLength {
			return fmt.Sprintf("value must be at most %d bytes", maxValueLength)
		}
		if entry.Kind == schema.KindFacet && !strings.HasPrefix(v, "/") {
			return fmt.Sprintf("facet value %q must start with '/'", v)
		}
	}
	return ""
}
