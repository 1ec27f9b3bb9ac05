// Package parser turns free-text queries into engine queries scoped to a
// schema's fields.
//
// Terms are OR-ed by default. AND binds tighter than OR and juxtaposition;
// NOT and a leading '-' exclude, a leading '+' requires. field:term,
// "phrase", field:"phrase", field:(...) and parentheses are supported.
// Unqualified terms are matched against every default field.
package parser

import (
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/schema"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/sanesearch/pkg/errors"
)

const maxDepth = 32

type occur int

const (
	should occur = iota
	must
	mustNot
)

type clause struct {
	occur occur
	q     query.Query
}

// Parser parses query text against one schema and a default field list.
type Parser struct {
	schema   *schema.Schema
	mapping  mapping.IndexMapping
	defaults []string
}

// New returns a parser. m must carry the analyzers the schema's fields
// select; the index mapping of an open index does.
func New(s *schema.Schema, m mapping.IndexMapping, defaultFields []schema.Field) *Parser {
	p := &Parser{schema: s, mapping: m}
	for _, f := range defaultFields {
		if e, ok := s.Entry(f); ok {
			p.defaults = append(p.defaults, e.Name)
		}
	}
	return p
}

// Parse converts text to a query. An empty query matches nothing.
func (p *Parser) Parse(text string) (query.Query, error) {
	toks, err := lex(text)
	if err != nil {
		return nil, err
	}
	st := &state{Parser: p, toks: toks}
	q, err := st.parseExpr(p.defaults, 0)
	if err != nil {
		return nil, err
	}
	if tok := st.peek(); tok.kind != tEOF {
		if tok.kind == tRParen {
			return nil, parseError(tok.pos, "unbalanced parentheses")
		}
		return nil, parseError(tok.pos, "unexpected %s", tok.kind)
	}
	if q == nil {
		return query.NewMatchNoneQuery(), nil
	}
	return q, nil
}

type state struct {
	*Parser
	toks []token
	pos  int
}

func (s *state) peek() token { return s.toks[s.pos] }

func (s *state) next() token {
	tok := s.toks[s.pos]
	if tok.kind != tEOF {
		s.pos++
	}
	return tok
}

// parseExpr reads OR-ed and juxtaposed groups up to ')' or the end.
func (s *state) parseExpr(scope []string, depth int) (query.Query, error) {
	var clauses []clause
	for {
		tok := s.peek()
		if tok.kind == tEOF || tok.kind == tRParen {
			break
		}
		if tok.kind == tOr {
			return nil, parseError(tok.pos, "operator OR has no left operand")
		}
		c, err := s.parseAndGroup(scope, depth)
		if err != nil {
			return nil, err
		}
		if c.q != nil {
			clauses = append(clauses, c)
		}
		if s.peek().kind == tOr {
			op := s.next()
			if k := s.peek().kind; k == tEOF || k == tRParen || k == tOr || k == tAnd {
				return nil, parseError(op.pos, "operator OR has no right operand")
			}
		}
	}
	return combine(clauses), nil
}

// parseAndGroup reads unary clauses chained with AND.
func (s *state) parseAndGroup(scope []string, depth int) (clause, error) {
	first, err := s.parseUnary(scope, depth)
	if err != nil {
		return clause{}, err
	}
	items := []clause{first}
	for s.peek().kind == tAnd {
		op := s.next()
		if k := s.peek().kind; k == tEOF || k == tRParen || k == tOr || k == tAnd {
			return clause{}, parseError(op.pos, "operator AND has no right operand")
		}
		c, err := s.parseUnary(scope, depth)
		if err != nil {
			return clause{}, err
		}
		items = append(items, c)
	}
	if len(items) == 1 {
		return first, nil
	}

	var required, excluded []query.Query
	for _, c := range items {
		if c.q == nil {
			continue
		}
		if c.occur == mustNot {
			excluded = append(excluded, c.q)
		} else {
			required = append(required, c.q)
		}
	}
	if len(required) == 0 && len(excluded) == 0 {
		return clause{}, nil
	}
	return clause{occur: should, q: query.NewBooleanQuery(required, nil, excluded)}, nil
}

func (s *state) parseUnary(scope []string, depth int) (clause, error) {
	oc := should
	if s.peek().kind == tNot {
		op := s.next()
		if k := s.peek().kind; k == tEOF || k == tRParen || k == tOr || k == tAnd || k == tNot {
			return clause{}, parseError(op.pos, "operator NOT has no operand")
		}
		oc = mustNot
	}

	tok := s.next()
	switch tok.prefix {
	case '+':
		if oc != mustNot {
			oc = must
		}
	case '-':
		oc = mustNot
	}

	switch tok.kind {
	case tLParen:
		if depth+1 > maxDepth {
			return clause{}, parseError(tok.pos, "query nests deeper than %d groups", maxDepth)
		}
		sub := scope
		if tok.field != "" {
			if _, err := s.field(tok.field, tok.pos); err != nil {
				return clause{}, err
			}
			sub = []string{tok.field}
		}
		q, err := s.parseExpr(sub, depth+1)
		if err != nil {
			return clause{}, err
		}
		if closing := s.next(); closing.kind != tRParen {
			return clause{}, parseError(tok.pos, "unbalanced parentheses")
		}
		return clause{occur: oc, q: q}, nil
	case tWord, tPhrase:
		q, err := s.textQuery(tok, scope)
		return clause{occur: oc, q: q}, err
	case tRParen:
		return clause{}, parseError(tok.pos, "unbalanced parentheses")
	case tEOF:
		return clause{}, parseError(tok.pos, "unexpected end of query")
	default:
		return clause{}, parseError(tok.pos, "operator %s has no left operand", tok.kind)
	}
}

func (s *state) field(name string, pos int) (schema.Entry, error) {
	e, ok := s.schema.Lookup(name)
	if !ok {
		return schema.Entry{}, parseError(pos, "field %q does not exist", name)
	}
	return e, nil
}

func (s *state) targets(tok token, scope []string) ([]schema.Entry, error) {
	if tok.field != "" {
		e, err := s.field(tok.field, tok.pos)
		if err != nil {
			return nil, err
		}
		return []schema.Entry{e}, nil
	}
	if len(scope) == 0 {
		return nil, parseError(tok.pos, "term %q names no field and no default fields are set", tok.text)
	}
	out := make([]schema.Entry, 0, len(scope))
	for _, name := range scope {
		e, err := s.field(name, tok.pos)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// textQuery matches a term or phrase against its field, or against every
// field in scope.
func (s *state) textQuery(tok token, scope []string) (query.Query, error) {
	if tok.kind == tWord && tok.text == "*" && tok.field == "" {
		return query.NewMatchAllQuery(), nil
	}
	entries, err := s.targets(tok, scope)
	if err != nil {
		return nil, err
	}
	var per []query.Query
	for _, e := range entries {
		q, err := s.fieldQuery(e, tok)
		if err != nil {
			return nil, err
		}
		if q != nil {
			per = append(per, q)
		}
	}
	return anyOf(per), nil
}

// fieldQuery analyses text with the field's analyzer. One term becomes a
// term query, several become a phrase, none yields no clause.
func (s *state) fieldQuery(e schema.Entry, tok token) (query.Query, error) {
	if e.Kind == schema.KindFacet {
		return FacetTerm(e.Name, tok.text), nil
	}
	terms, err := tokenizer.Analyze(s.mapping, e.Indexing.Tokenizer, tok.text)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.ErrQueryParse, "parse_query", err)
	}
	switch {
	case len(terms) == 0:
		return nil, nil
	case len(terms) == 1:
		tq := query.NewTermQuery(terms[0])
		tq.SetField(e.Name)
		return tq, nil
	case e.Indexing.Record != schema.WithFreqsAndPositions:
		return nil, parseError(tok.pos, "field %q is indexed without positions; phrase %q cannot be matched", e.Name, tok.text)
	}
	pq := query.NewMatchPhraseQuery(tok.text)
	pq.SetField(e.Name)
	pq.Analyzer = tokenizer.AnalyzerName(e.Indexing.Tokenizer)
	return pq, nil
}

// FacetTerm matches documents whose facet value is path or lies below it.
func FacetTerm(field string, path string) query.Query {
	for len(path) > 1 && path[len(path)-1] == '/' {
		path = path[:len(path)-1]
	}
	tq := query.NewTermQuery(path)
	tq.SetField(field)
	return tq
}

func anyOf(qs []query.Query) query.Query {
	switch len(qs) {
	case 0:
		return nil
	case 1:
		return qs[0]
	}
	return query.NewDisjunctionQuery(qs)
}

// combine folds top-level clauses into one query. Without required clauses
// at least one optional clause must match; only exclusions match everything
// else.
func combine(clauses []clause) query.Query {
	var required, optional, excluded []query.Query
	for _, c := range clauses {
		switch c.occur {
		case must:
			required = append(required, c.q)
		case mustNot:
			excluded = append(excluded, c.q)
		default:
			optional = append(optional, c.q)
		}
	}
	switch {
	case len(required) == 0 && len(optional) == 0 && len(excluded) == 0:
		return nil
	case len(required) == 0 && len(excluded) == 0 && len(optional) == 1:
		return optional[0]
	}
	bq := query.NewBooleanQuery(required, optional, excluded)
	if len(required) == 0 && len(optional) > 0 {
		bq.SetMinShould(1)
	}
	return bq
}
