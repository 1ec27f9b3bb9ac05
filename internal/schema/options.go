package schema

import (
	"sort"
	"strings"

	pkgerrors "github.com/Adithya-Monish-Kumar-K/sanesearch/pkg/errors"
)

// Option is a single field capability.
type Option string

// Field capabilities. Tokens are matched case-sensitively.
const (
	// TEXT indexes the value tokenized, with positions.
	TEXT Option = "TEXT"
	// STORED keeps the original value retrievable.
	STORED Option = "STORED"
	// STRING indexes the value as one untokenized term.
	STRING Option = "STRING"
)

// FieldOptions is a set of capabilities. The zero value is the empty set.
type FieldOptions struct {
	set map[Option]struct{}
}

// NewFieldOptions returns the set holding opts.
func NewFieldOptions(opts ...Option) FieldOptions {
	var o FieldOptions
	for _, opt := range opts {
		o = o.With(opt)
	}
	return o
}

// ParseOptions converts option tokens to a set. The first unrecognised token
// fails the whole conversion.
func ParseOptions(tokens []string) (FieldOptions, error) {
	var o FieldOptions
	for _, tok := range tokens {
		switch Option(tok) {
		case TEXT, STORED, STRING:
			o = o.With(Option(tok))
		default:
			return FieldOptions{}, pkgerrors.Newf(pkgerrors.ErrConfiguration, "add_text_field",
				"unknown text option %q (want TEXT, STORED or STRING)", tok)
		}
	}
	return o, nil
}

// With returns the union of o and opt. o is left unchanged.
func (o FieldOptions) With(opt Option) FieldOptions {
	next := make(map[Option]struct{}, len(o.set)+1)
	for k := range o.set {
		next[k] = struct{}{}
	}
	next[opt] = struct{}{}
	return FieldOptions{set: next}
}

// Union returns the union of both sets.
func (o FieldOptions) Union(other FieldOptions) FieldOptions {
	out := o
	for k := range other.set {
		out = out.With(k)
	}
	return out
}

func (o FieldOptions) Has(opt Option) bool {
	_, ok := o.set[opt]
	return ok
}

func (o FieldOptions) IsText() bool   { return o.Has(TEXT) }
func (o FieldOptions) IsStored() bool { return o.Has(STORED) }
func (o FieldOptions) IsString() bool { return o.Has(STRING) }

// List returns the options in a stable order.
func (o FieldOptions) List() []Option {
	out := make([]Option, 0, len(o.set))
	for k := range o.set {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (o FieldOptions) String() string {
	list := o.List()
	parts := make([]string, len(list))
	for i, opt := range list {
		parts[i] = string(opt)
	}
	return strings.Join(parts, "|")
}

// IndexRecordOption says how much detail the inverted index keeps per term.
type IndexRecordOption string

const (
	Basic                 IndexRecordOption = "basic"
	WithFreqs             IndexRecordOption = "freq"
	WithFreqsAndPositions IndexRecordOption = "position"
)

// TextIndexing is the indexing configuration of a text field.
type TextIndexing struct {
	Tokenizer string            `json:"tokenizer"`
	Record    IndexRecordOption `json:"record"`
}
