package parser

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	pkgerrors "github.com/Adithya-Monish-Kumar-K/sanesearch/pkg/errors"
)

type tokenKind int

const (
	tEOF tokenKind = iota
	tWord
	tPhrase
	tLParen
	tRParen
	tAnd
	tOr
	tNot
)

func (k tokenKind) String() string {
	switch k {
	case tWord:
		return "term"
	case tPhrase:
		return "phrase"
	case tLParen:
		return "'('"
	case tRParen:
		return "')'"
	case tAnd:
		return "AND"
	case tOr:
		return "OR"
	case tNot:
		return "NOT"
	}
	return "end of query"
}

type token struct {
	kind   tokenKind
	text   string
	field  string
	prefix byte
	pos    int
}

// lex splits query text into tokens. Operators are recognised only in upper
// case; a leading + or - attaches to the following term, phrase or group.
func lex(text string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		if unicode.IsSpace(r) {
			i += size
			continue
		}
		start := i
		var prefix byte
		if (text[i] == '+' || text[i] == '-') && i+1 < len(text) && prefixable(text[i+1]) {
			prefix = text[i]
			i++
		}
		switch text[i] {
		case '(':
			toks = append(toks, token{kind: tLParen, prefix: prefix, pos: start})
			i++
			continue
		case ')':
			if prefix != 0 {
				return nil, parseError(start, "operator %q has no operand", string(prefix))
			}
			toks = append(toks, token{kind: tRParen, pos: start})
			i++
			continue
		case '"':
			phrase, next, err := readPhrase(text, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{kind: tPhrase, text: phrase, prefix: prefix, pos: start})
			i = next
			continue
		}

		wordStart := i
		for i < len(text) && !isBreak(text[i]) && text[i] != ':' {
			i++
		}
		word := text[wordStart:i]

		if i < len(text) && text[i] == ':' && word != "" {
			field := word
			i++
			switch {
			case i < len(text) && text[i] == '"':
				phrase, next, err := readPhrase(text, i)
				if err != nil {
					return nil, err
				}
				toks = append(toks, token{kind: tPhrase, text: phrase, field: field, prefix: prefix, pos: start})
				i = next
			case i < len(text) && text[i] == '(':
				toks = append(toks, token{kind: tLParen, field: field, prefix: prefix, pos: start})
				i++
			default:
				valueStart := i
				for i < len(text) && !isBreak(text[i]) {
					i++
				}
				if valueStart == i {
					return nil, parseError(start, "field %q has no term", field)
				}
				toks = append(toks, token{kind: tWord, text: text[valueStart:i], field: field, prefix: prefix, pos: start})
			}
			continue
		}
		for i < len(text) && !isBreak(text[i]) {
			i++
		}
		word = text[wordStart:i]

		if prefix == 0 {
			switch word {
			case "AND":
				toks = append(toks, token{kind: tAnd, pos: start})
				continue
			case "OR":
				toks = append(toks, token{kind: tOr, pos: start})
				continue
			case "NOT":
				toks = append(toks, token{kind: tNot, pos: start})
				continue
			}
		}
		toks = append(toks, token{kind: tWord, text: word, prefix: prefix, pos: start})
	}
	toks = append(toks, token{kind: tEOF, pos: len(text)})
	return toks, nil
}

// readPhrase reads a quoted phrase starting at the opening quote at i and
// returns its content and the index after the closing quote.
func readPhrase(text string, i int) (string, int, error) {
	end := strings.IndexByte(text[i+1:], '"')
	if end < 0 {
		return "", 0, parseError(i, "unterminated quote")
	}
	return text[i+1 : i+1+end], i + end + 2, nil
}

// prefixable reports whether a leading + or - binds to what follows c:
// a word, a phrase or a group.
func prefixable(c byte) bool {
	return !isBreak(c) || c == '"' || c == '('
}

func isBreak(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '(' || c == ')' || c == '"'
}

func parseError(pos int, format string, args ...any) error {
	e := pkgerrors.Newf(pkgerrors.ErrQueryParse, "parse_query", format, args...)
	e.Message += " at offset " + strconv.Itoa(pos)
	return e
}
