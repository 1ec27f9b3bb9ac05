package schema

import (
	"log/slog"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/indexer/tokenizer"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/sanesearch/pkg/errors"
)

// Builder accumulates field declarations before an index exists. It does
// no I/O.
type Builder struct {
	entries []Entry
	logger  *slog.Logger
}

// NewBuilder returns a builder with no fields.
func NewBuilder() *Builder {
	return &Builder{logger: slog.Default().With("component", "schema-builder")}
}

// AddTextField declares a text field. options are TEXT, STORED and STRING
// tokens in any order; tokenizer defaults to "default" when absent or empty.
// An unknown option fails the call and leaves the builder unchanged.
func (b *Builder) AddTextField(name string, options []string, tok ...string) (Field, error) {
	if err := validateName("add_text_field", name); err != nil {
		return 0, err
	}
	opts, err := ParseOptions(options)
	if err != nil {
		return 0, err
	}
	selected := tokenizer.Default
	if len(tok) > 0 && tok[0] != "" {
		selected = tok[0]
	}
	if !tokenizer.IsKnown(selected) {
		b.logger.Warn("field selects a tokenizer sanesearch does not register",
			"field", name,
			"tokenizer", selected,
		)
	}
	return b.add(Entry{
		Name:     name,
		Kind:     KindText,
		Options:  opts,
		Indexing: resolveIndexing(opts, selected),
	}), nil
}

// AddFacetField declares a hierarchical facet field. Facet values are paths
// such as "/apparel/footwear"; they are stored and match on any ancestor.
func (b *Builder) AddFacetField(name string) (Field, error) {
	if err := validateName("add_facet_field", name); err != nil {
		return 0, err
	}
	return b.add(Entry{
		Name:     name,
		Kind:     KindFacet,
		Options:  NewFieldOptions(STORED),
		Indexing: TextIndexing{Tokenizer: tokenizer.FacetPath, Record: Basic},
	}), nil
}

// Build freezes the declarations made so far. The builder stays usable and
// later declarations do not affect schemas already built.
func (b *Builder) Build() *Schema {
	return newSchema(b.entries)
}

// Len returns the number of declarations made so far.
func (b *Builder) Len() int { return len(b.entries) }

func (b *Builder) add(e Entry) Field {
	e.Field = Field(len(b.entries))
	b.entries = append(b.entries, e)
	return e.Field
}

// resolveIndexing starts from the selected tokenizer with positions and
// folds the options in. STRING without TEXT indexes the value as one term.
func resolveIndexing(opts FieldOptions, selected string) TextIndexing {
	if opts.IsString() && !opts.IsText() {
		return TextIndexing{Tokenizer: tokenizer.Raw, Record: Basic}
	}
	return TextIndexing{Tokenizer: selected, Record: WithFreqsAndPositions}
}

func validateName(op string, name string) error {
	switch {
	case name == "":
		return pkgerrors.New(pkgerrors.ErrConfiguration, op, "field name is required")
	case strings.HasPrefix(name, "_"):
		return pkgerrors.Newf(pkgerrors.ErrConfiguration, op, "field name %q is reserved", name)
	case strings.Contains(name, "."):
		return pkgerrors.Newf(pkgerrors.ErrConfiguration, op, "field name %q must not contain '.'", name)
	}
	return nil
}
