package queryir

import (
	"fmt"
	"strings"
)

// ParseError reports malformed query text.
type ParseError struct {
	Query   string
	Pos     int // byte offset into Query
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("query %q: %s at offset %d", e.Query, e.Message, e.Pos)
}

// Parse reads query text into a Query. It checks syntax only; use
// Validate to check the terms.
//
// Grammar:
//
//	or    = and { "|" and }
//	and   = unary { ":" unary }
//	unary = "!" unary | "(" or ")" | term
//	term  = "*" | tag | origin | tag origin
//
// Spaces between tokens are ignored.
func Parse(text string) (Query, error) {
	p := &parser{src: text}
	p.skipSpace()
	if p.eof() {
		return nil, p.errorf("empty query")
	}
	q, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if !p.eof() {
		return nil, p.errorf("unexpected %q", p.src[p.pos])
	}
	return q, nil
}

// MustParse is like Parse but panics on error. For tests and constants.
func MustParse(text string) Query {
	q, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return q
}

type parser struct {
	src string
	pos int
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) errorf(format string, args ...any) error {
	return &ParseError{Query: p.src, Pos: p.pos, Message: fmt.Sprintf(format, args...)}
}

func (p *parser) skipSpace() {
	for !p.eof() && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

// accept consumes c if it is the next non-space byte.
func (p *parser) accept(c byte) bool {
	p.skipSpace()
	if !p.eof() && p.src[p.pos] == c {
		p.pos++
		return true
	}
	return false
}

func (p *parser) parseOr() (Query, error) {
	var qs []Query
	for {
		q, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		qs = append(qs, q)
		if !p.accept('|') {
			break
		}
	}
	if len(qs) == 1 {
		return qs[0], nil
	}
	return Or{Queries: qs}, nil
}

func (p *parser) parseAnd() (Query, error) {
	var qs []Query
	for {
		q, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		qs = append(qs, q)
		if !p.accept(':') {
			break
		}
	}
	if len(qs) == 1 {
		return qs[0], nil
	}
	return And{Queries: qs}, nil
}

func (p *parser) parseUnary() (Query, error) {
	switch {
	case p.accept('!'):
		q, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Not{Query: q}, nil
	case p.accept('('):
		q, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if !p.accept(')') {
			return nil, p.errorf("missing )")
		}
		return q, nil
	}
	return p.parseTerm()
}

func (p *parser) parseTerm() (Query, error) {
	p.skipSpace()
	start := p.pos
	for !p.eof() && !strings.ContainsRune(":|!() \t", rune(p.src[p.pos])) {
		p.pos++
	}
	word := p.src[start:p.pos]
	if word == "" {
		if p.eof() {
			return nil, p.errorf("missing term")
		}
		return nil, p.errorf("unexpected %q", p.src[p.pos])
	}
	return term(word), nil
}

func term(word string) Query {
	if word == "*" {
		return All{}
	}
	i := strings.IndexByte(word, '@')
	switch {
	case i < 0:
		return Tag{Tag: word}
	case i == 0:
		return Origin{Origin: word}
	}
	return And{Queries: []Query{Tag{Tag: word[:i]}, Origin{Origin: word[i:]}}}
}
