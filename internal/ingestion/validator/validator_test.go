package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/schema"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/sanesearch/pkg/errors"
)

func testSchema(t *testing.T) *schema.Schema {
	t.Helper()
	b := schema.NewBuilder()
	_, err := b.AddTextField("title", []string{"TEXT", "STORED"})
	require.NoError(t, err)
	_, err = b.AddTextField("body", []string{"TEXT"})
	require.NoError(t, err)
	_, err = b.AddFacetField("category")
	require.NoError(t, err)
	return b.Build()
}

func TestValidateDocument(t *testing.T) {
	s := testSchema(t)
	doc, err := ValidateDocument(s, `{"title":"Red shoes","body":["a","b"],"category":"/apparel/footwear"}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"Red shoes"}, doc.Fields["title"])
	assert.Equal(t, []string{"a", "b"}, doc.Fields["body"])
	assert.Equal(t, []string{"/apparel/footwear"}, doc.Fields["category"])
}

func TestValidateDocumentEmptyObject(t *testing.T) {
	doc, err := ValidateDocument(testSchema(t), `{}`)
	require.NoError(t, err)
	assert.Empty(t, doc.Fields)
}

func TestValidateDocumentRejects(t *testing.T) {
	s := testSchema(t)
	tests := []struct {
		name  string
		input string
		field string
	}{
		{"not json", `not json`, ""},
		{"array", `["a"]`, ""},
		{"null", `null`, ""},
		{"trailing", `{"title":"a"} {"title":"b"}`, ""},
		{"trailing brace", `{"title":"a"}}`, ""},
		{"trailing bracket", `{"title":"a"}]`, ""},
		{"trailing word", `{"title":"a"} x`, ""},
		{"unknown field", `{"nope":"x"}`, "nope"},
		{"number", `{"title":42}`, "title"},
		{"object", `{"title":{"a":"b"}}`, "title"},
		{"mixed array", `{"body":["a",1]}`, "body"},
		{"relative facet", `{"category":"apparel"}`, "category"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateDocument(s, tt.input)
			require.Error(t, err)
			assert.ErrorIs(t, err, pkgerrors.ErrDocumentValidation)
			if tt.field == "" {
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tt.field)
		})
	}
}

func TestValidationErrorIsSorted(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{"b": "bad", "a": "worse"}}
	assert.Equal(t, "a: worse; b: bad", err.Error())
}
