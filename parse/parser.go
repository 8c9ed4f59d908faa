package parse

import (
	"fmt"
	"math"
	"strconv"

	"github.com/chazu/amalgraph/graph"
	"github.com/chazu/amalgraph/intern"
	"github.com/chazu/amalgraph/opcode"
)

// Parser builds node trees from token streams, allocating through the
// caller's manager so the result lives in the right arena.
type Parser struct {
	lexer      *Lexer
	manager    *graph.Manager
	pool       *intern.Pool
	sourceName string
	debug      bool

	cur Token
}

// Parse parses text into a node tree owned by m. When debug is true each
// composite node's comment records its source location on the first
// line.
func Parse(text string, m *graph.Manager, pool *intern.Pool, sourceName string, debug bool) (graph.Ref, error) {
	p := &Parser{
		lexer:      NewLexer(text),
		manager:    m,
		pool:       pool,
		sourceName: sourceName,
		debug:      debug,
	}
	p.next()
	if p.cur.Type == TokenEOF {
		return graph.Null, nil
	}
	node, err := p.parseNode()
	if err != nil {
		return graph.Null, err
	}
	if p.cur.Type != TokenEOF {
		return graph.Null, p.errorf("unexpected %s after top-level expression", p.cur.Type)
	}
	return graph.Ref{Node: node, Unique: true}, nil
}

func (p *Parser) next() { p.cur = p.lexer.NextToken() }

func (p *Parser) errorf(format string, args ...interface{}) error {
	where := p.cur.Pos.String()
	if p.sourceName != "" {
		where = p.sourceName + ":" + where
	}
	return fmt.Errorf("parse: %s: %s", where, fmt.Sprintf(format, args...))
}

func (p *Parser) alloc(kind opcode.Kind) (*graph.Node, error) {
	r := p.manager.Alloc(kind)
	if r == nil {
		return nil, p.errorf("node budget exhausted")
	}
	return r.Node, nil
}

// parseNode parses one expression, folding any leading labels and
// comments into the node they precede.
func (p *Parser) parseNode() (*graph.Node, error) {
	var labels []uint32
	var comment string

	for {
		switch p.cur.Type {
		case TokenLabel:
			labels = append(labels, p.pool.Intern(p.cur.Literal))
			p.next()
			continue
		case TokenComment:
			if comment != "" {
				comment += "\n"
			}
			comment += p.cur.Literal
			p.next()
			continue
		}
		break
	}

	pos := p.cur.Pos
	node, err := p.parseBare()
	if err != nil {
		return nil, err
	}
	if node != nil {
		node.Labels = append(node.Labels, labels...)
		if comment != "" {
			node.Comment = comment
		}
		if p.debug && !node.IsLeaf() {
			loc := fmt.Sprintf("%s:%s", p.sourceName, pos)
			if node.Comment != "" {
				node.Comment = loc + "\n" + node.Comment
			} else {
				node.Comment = loc
			}
		}
	}
	return node, nil
}

func (p *Parser) parseBare() (*graph.Node, error) {
	switch p.cur.Type {
	case TokenNumber:
		return p.parseNumberOrSymbol()
	case TokenString:
		id := p.pool.Intern(p.cur.Literal)
		r := p.manager.AllocWithReferenceHandoff(opcode.String, id)
		if r == nil {
			p.pool.Release(id)
			return nil, p.errorf("node budget exhausted")
		}
		p.next()
		return r.Node, nil
	case TokenIdentifier:
		return p.parseIdentifier()
	case TokenLParen:
		return p.parseComposite()
	case TokenLBracket:
		return p.parseBracketList()
	case TokenLBrace:
		return p.parseBraceAssoc()
	case TokenError:
		return nil, p.errorf("bad token %q", p.cur.Literal)
	default:
		return nil, p.errorf("unexpected %s", p.cur.Type)
	}
}

func (p *Parser) parseNumberOrSymbol() (*graph.Node, error) {
	lit := p.cur.Literal
	var v float64
	switch lit {
	case ".infinity":
		v = math.Inf(1)
	case "-.infinity":
		v = math.Inf(-1)
	case ".nan":
		v = math.NaN()
	default:
		parsed, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			return p.parseIdentifier()
		}
		v = parsed
	}
	node, allocErr := p.alloc(opcode.Number)
	if allocErr != nil {
		return nil, allocErr
	}
	node.Num = v
	p.next()
	return node, nil
}

func (p *Parser) parseIdentifier() (*graph.Node, error) {
	lit := p.cur.Literal
	p.next()
	switch lit {
	case "null":
		return p.alloc(opcode.Null)
	case "true":
		return p.alloc(opcode.True)
	case "false":
		return p.alloc(opcode.False)
	case ".infinity":
		n, err := p.alloc(opcode.Number)
		if err != nil {
			return nil, err
		}
		n.Num = math.Inf(1)
		return n, nil
	case "-.infinity":
		n, err := p.alloc(opcode.Number)
		if err != nil {
			return nil, err
		}
		n.Num = math.Inf(-1)
		return n, nil
	case ".nan":
		n, err := p.alloc(opcode.Number)
		if err != nil {
			return nil, err
		}
		n.Num = math.NaN()
		return n, nil
	}
	id := p.pool.Intern(lit)
	r := p.manager.AllocWithReferenceHandoff(opcode.Symbol, id)
	if r == nil {
		p.pool.Release(id)
		return nil, p.errorf("node budget exhausted")
	}
	r.Node.Sym = id
	r.Node.Str = 0
	return r.Node, nil
}

// parseComposite parses (head children...). An assoc whose keys are all
// literal strings folds directly into mapped children; computed keys
// stay as ordered alternating pairs for the evaluator.
func (p *Parser) parseComposite() (*graph.Node, error) {
	p.next()
	if p.cur.Type != TokenIdentifier {
		return nil, p.errorf("expected opcode name, got %s", p.cur.Type)
	}
	kind, ok := opcode.ByName(p.cur.Literal)
	if !ok {
		return nil, p.errorf("unknown opcode %q", p.cur.Literal)
	}
	p.next()

	node, err := p.alloc(kind)
	if err != nil {
		return nil, err
	}
	for p.cur.Type != TokenRParen {
		if p.cur.Type == TokenEOF {
			return nil, p.errorf("unterminated (%s ...)", opcode.Name(kind))
		}
		c, childErr := p.parseNode()
		if childErr != nil {
			return nil, childErr
		}
		node.Ordered = append(node.Ordered, c)
	}
	p.next()

	if kind == opcode.Associative {
		p.foldAssoc(node)
	}
	return node, nil
}

func (p *Parser) foldAssoc(node *graph.Node) {
	if len(node.Ordered)%2 != 0 {
		return
	}
	for i := 0; i < len(node.Ordered); i += 2 {
		k := node.Ordered[i]
		if k == nil || k.Kind != opcode.String {
			return
		}
	}
	node.Mapped = make(map[uint32]*graph.Node, len(node.Ordered)/2)
	for i := 0; i < len(node.Ordered); i += 2 {
		key := node.Ordered[i]
		p.pool.Retain(key.Str)
		node.Mapped[key.Str] = node.Ordered[i+1]
		p.manager.FreeNode(key)
	}
	node.Ordered = nil
}

func (p *Parser) parseBracketList() (*graph.Node, error) {
	p.next()
	node, err := p.alloc(opcode.List)
	if err != nil {
		return nil, err
	}
	for p.cur.Type != TokenRBracket {
		if p.cur.Type == TokenEOF {
			return nil, p.errorf("unterminated [...]")
		}
		c, childErr := p.parseNode()
		if childErr != nil {
			return nil, childErr
		}
		node.Ordered = append(node.Ordered, c)
	}
	p.next()
	return node, nil
}

func (p *Parser) parseBraceAssoc() (*graph.Node, error) {
	p.next()
	node, err := p.alloc(opcode.Associative)
	if err != nil {
		return nil, err
	}
	for p.cur.Type != TokenRBrace {
		if p.cur.Type == TokenEOF {
			return nil, p.errorf("unterminated {...}")
		}
		c, childErr := p.parseNode()
		if childErr != nil {
			return nil, childErr
		}
		node.Ordered = append(node.Ordered, c)
	}
	p.next()
	p.foldAssoc(node)
	return node, nil
}
