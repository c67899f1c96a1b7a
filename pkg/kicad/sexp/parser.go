package sexp

import "fmt"

// Parser builds a Node tree from tokens produced by a Lexer.
type Parser struct {
	lex     *Lexer
	current Token
	doc     *Document
}

// Parse parses an entire `.kicad_sch`-style buffer into a Document.
func Parse(src []byte) (*Document, error) {
	doc := &Document{Src: src}
	p := &Parser{lex: NewLexer(src), doc: doc}

	if err := p.advance(); err != nil {
		return nil, err
	}
	for p.current.Type != TokenEOF {
		form, err := p.parseForm()
		if err != nil {
			return nil, err
		}
		doc.Forms = append(doc.Forms, form)
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	if len(doc.Forms) == 0 {
		return nil, fmt.Errorf("sexp: empty document")
	}
	return doc, nil
}

func (p *Parser) advance() error {
	tok, err := p.lex.NextToken()
	if err != nil {
		return err
	}
	p.current = tok
	return nil
}

func (p *Parser) parseForm() (*Node, error) {
	switch p.current.Type {
	case TokenLeftParen:
		return p.parseList()
	case TokenAtom:
		n := &Node{Atom: p.current.Value, doc: p.doc, Start: p.current.Start, End: p.current.End}
		return n, nil
	case TokenString:
		n := &Node{Atom: p.current.Value, Quoted: true, doc: p.doc, Start: p.current.Start, End: p.current.End}
		return n, nil
	case TokenRightParen:
		return nil, fmt.Errorf("sexp: unexpected ')' at byte %d", p.current.Start)
	default:
		return nil, fmt.Errorf("sexp: unexpected EOF")
	}
}

func (p *Parser) parseList() (*Node, error) {
	start := p.current.Start
	var items []*Node

	for {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.current.Type == TokenRightParen {
			break
		}
		if p.current.Type == TokenEOF {
			return nil, fmt.Errorf("sexp: unexpected EOF in list starting at byte %d", start)
		}
		item, err := p.parseForm()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	return &Node{List: true, Items: items, doc: p.doc, Start: start, End: p.current.End}, nil
}
