package main

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/sanesearch"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/pkg/config"
)

// buildSchema declares index.fields in order.
func buildSchema(fields []config.FieldConfig) (*sanesearch.Schema, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("index.fields declares no fields")
	}
	b := sanesearch.NewSchemaBuilder()
	for i, f := range fields {
		var err error
		switch f.Type {
		case "facet":
			_, err = b.AddFacetField(f.Name)
		default:
			_, err = b.AddTextField(f.Name, f.Options, f.Tokenizer)
		}
		if err != nil {
			return nil, fmt.Errorf("index.fields[%d] %q: %w", i, f.Name, err)
		}
	}
	return b.Build(), nil
}

// fieldHandles resolves field names against sch.
func fieldHandles(sch *sanesearch.Schema, names []string) ([]sanesearch.Field, error) {
	out := make([]sanesearch.Field, 0, len(names))
	for _, name := range names {
		e, ok := sch.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("field %q is not declared in the index schema", name)
		}
		out = append(out, e.Field)
	}
	return out, nil
}
