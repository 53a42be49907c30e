// Package queryparse turns a normalised query string into a Boolean query
// tree. The grammar, lowest to highest precedence:
//
//	expression := term ( "or" term )*
//	term       := factor ( ("and")? factor )*
//	factor     := "not" factor | "(" expression ")" | WORD
//
// Juxtaposed factors are an implicit AND. Each WORD leaf is expanded to an OR
// over the word and its synonyms.
package queryparse

import (
	"github.com/cascadeir/cascade/internal/model"
	"github.com/cascadeir/cascade/internal/synonym"
	pkgerrors "github.com/cascadeir/cascade/pkg/errors"
)

type tokenKind int

const (
	tokWord tokenKind = iota
	tokAnd
	tokOr
	tokNot
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// Parser builds query trees, expanding leaves through the synonym store.
type Parser struct {
	synonyms *synonym.Store
}

// New returns a Parser. A nil store disables expansion.
func New(synonyms *synonym.Store) *Parser {
	if synonyms == nil {
		synonyms = synonym.NewEmpty()
	}
	return &Parser{synonyms: synonyms}
}

// Parse parses the (already normalised) query. Empty input yields an empty
// And node, which evaluates to the empty result set.
func (p *Parser) Parse(query string) (*model.QueryNode, error) {
	toks := lex(query)
	if len(toks) == 0 {
		return model.NewAnd(), nil
	}
	st := &state{toks: toks, parser: p}
	node, err := st.parseExpression()
	if err != nil {
		return nil, err
	}
	if !st.eof() {
		tok := st.peek()
		return nil, pkgerrors.Newf(pkgerrors.ErrMalformedQuery, pkgerrors.ExitMalformedQuery,
			"unexpected %q at position %d", tok.text, tok.pos)
	}
	return node, nil
}

func lex(query string) []token {
	var toks []token
	i := 0
	for i < len(query) {
		c := query[i]
		switch {
		case c == ' ':
			i++
		case c == '(':
			toks = append(toks, token{kind: tokLParen, text: "(", pos: i})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokRParen, text: ")", pos: i})
			i++
		default:
			start := i
			for i < len(query) && query[i] != ' ' && query[i] != '(' && query[i] != ')' {
				i++
			}
			word := query[start:i]
			kind := tokWord
			switch word {
			case "and":
				kind = tokAnd
			case "or":
				kind = tokOr
			case "not":
				kind = tokNot
			}
			toks = append(toks, token{kind: kind, text: word, pos: start})
		}
	}
	return toks
}

type state struct {
	toks   []token
	pos    int
	parser *Parser
}

func (s *state) eof() bool {
	return s.pos >= len(s.toks)
}

func (s *state) peek() token {
	return s.toks[s.pos]
}

func (s *state) next() token {
	tok := s.toks[s.pos]
	s.pos++
	return tok
}

func (s *state) parseExpression() (*model.QueryNode, error) {
	first, err := s.parseTerm()
	if err != nil {
		return nil, err
	}
	children := []*model.QueryNode{first}
	for !s.eof() && s.peek().kind == tokOr {
		s.next()
		child, err := s.parseTerm()
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	if len(children) == 1 {
		return children[0], nil
	}
	return model.NewOr(children...), nil
}

func (s *state) parseTerm() (*model.QueryNode, error) {
	first, err := s.parseFactor()
	if err != nil {
		return nil, err
	}
	children := []*model.QueryNode{first}
	for !s.eof() {
		switch s.peek().kind {
		case tokAnd:
			s.next()
		case tokWord, tokNot, tokLParen:
			// implicit AND between juxtaposed factors
		default:
			if len(children) == 1 {
				return children[0], nil
			}
			return model.NewAnd(children...), nil
		}
		child, err := s.parseFactor()
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	if len(children) == 1 {
		return children[0], nil
	}
	return model.NewAnd(children...), nil
}

func (s *state) parseFactor() (*model.QueryNode, error) {
	if s.eof() {
		return nil, pkgerrors.New(pkgerrors.ErrMalformedQuery, pkgerrors.ExitMalformedQuery,
			"unexpected end of query")
	}
	tok := s.next()
	switch tok.kind {
	case tokNot:
		child, err := s.parseFactor()
		if err != nil {
			return nil, err
		}
		return model.NewNot(child), nil
	case tokLParen:
		inner, err := s.parseExpression()
		if err != nil {
			return nil, err
		}
		if s.eof() || s.peek().kind != tokRParen {
			return nil, pkgerrors.Newf(pkgerrors.ErrMalformedQuery, pkgerrors.ExitMalformedQuery,
				"unclosed parenthesis opened at position %d", tok.pos)
		}
		s.next()
		return inner, nil
	case tokWord:
		return s.parser.expand(tok.text), nil
	default:
		return nil, pkgerrors.Newf(pkgerrors.ErrMalformedQuery, pkgerrors.ExitMalformedQuery,
			"unexpected %q at position %d", tok.text, tok.pos)
	}
}

// expand wraps a leaf word in an Or over the word and its synonyms, collapsed
// to a bare Term when the set is a singleton.
func (p *Parser) expand(word string) *model.QueryNode {
	syns := p.synonyms.Lookup(word)
	if len(syns) == 0 {
		return model.NewTerm(word)
	}
	children := make([]*model.QueryNode, 0, len(syns)+1)
	children = append(children, model.NewTerm(word))
	for _, syn := range syns {
		children = append(children, model.NewTerm(syn))
	}
	return model.NewOr(children...)
}
