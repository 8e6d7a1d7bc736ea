// Package condition implements the condition/filter expression parser and
// evaluator from SPEC_FULL.md §4.4: a boolean grammar with precedence
// OR < AND < NOT < primary, used for both ConditionExpression (put/update/
// delete/conditionCheck) and FilterExpression (query/scan post-filtering).
package condition

import (
	"pretender/internal/apierr"
	"pretender/internal/attrvalue"
	"pretender/internal/expr"
)

// Node is a parsed condition expression, evaluated against an item's
// attribute map (which may be nil, representing a non-existent item).
type Node interface {
	Eval(item attrvalue.Map) bool
}

type orNode struct{ left, right Node }
type andNode struct{ left, right Node }
type notNode struct{ inner Node }

func (n *orNode) Eval(item attrvalue.Map) bool  { return n.left.Eval(item) || n.right.Eval(item) }
func (n *andNode) Eval(item attrvalue.Map) bool { return n.left.Eval(item) && n.right.Eval(item) }
func (n *notNode) Eval(item attrvalue.Map) bool { return !n.inner.Eval(item) }

type compareNode struct {
	attr string
	op   string // =, <>, <, >, <=, >=
	bind attrvalue.Value
}

func (n *compareNode) Eval(item attrvalue.Map) bool {
	v, ok := item[n.attr]
	if !ok {
		return false
	}
	cmp := attrvalue.Compare(v, n.bind)
	switch n.op {
	case "=":
		return cmp == attrvalue.OrderEq
	case "<>":
		return cmp != attrvalue.OrderEq
	case "<":
		return cmp == attrvalue.OrderLess
	case ">":
		return cmp == attrvalue.OrderGt
	case "<=":
		return cmp == attrvalue.OrderLess || cmp == attrvalue.OrderEq
	case ">=":
		return cmp == attrvalue.OrderGt || cmp == attrvalue.OrderEq
	}
	return false
}

type betweenNode struct {
	attr     string
	lo, hi   attrvalue.Value
}

func (n *betweenNode) Eval(item attrvalue.Map) bool {
	v, ok := item[n.attr]
	if !ok {
		return false
	}
	lo := attrvalue.Compare(v, n.lo)
	hi := attrvalue.Compare(v, n.hi)
	loOK := lo == attrvalue.OrderGt || lo == attrvalue.OrderEq
	hiOK := hi == attrvalue.OrderLess || hi == attrvalue.OrderEq
	return loOK && hiOK
}

type existsNode struct{ attr string }

func (n *existsNode) Eval(item attrvalue.Map) bool { _, ok := item[n.attr]; return ok }

type notExistsNode struct{ attr string }

func (n *notExistsNode) Eval(item attrvalue.Map) bool { _, ok := item[n.attr]; return !ok }

type beginsWithNode struct {
	attr   string
	prefix attrvalue.Value
}

func (n *beginsWithNode) Eval(item attrvalue.Map) bool {
	v, ok := item[n.attr]
	if !ok || v.Kind != attrvalue.KindS || n.prefix.Kind != attrvalue.KindS {
		return false
	}
	return len(v.S) >= len(n.prefix.S) && v.S[:len(n.prefix.S)] == n.prefix.S
}

type containsNode struct {
	attr    string
	operand attrvalue.Value
}

func (n *containsNode) Eval(item attrvalue.Map) bool {
	v, ok := item[n.attr]
	if !ok {
		return false
	}
	switch v.Kind {
	case attrvalue.KindS:
		return n.operand.Kind == attrvalue.KindS && contains(v.S, n.operand.S)
	case attrvalue.KindSS:
		return n.operand.Kind == attrvalue.KindS && containsStr(v.SS, n.operand.S)
	case attrvalue.KindNS:
		return n.operand.Kind == attrvalue.KindN && containsNum(v.NS, n.operand.N)
	case attrvalue.KindBS:
		return n.operand.Kind == attrvalue.KindB && containsBin(v.BS, n.operand.B)
	case attrvalue.KindL:
		for _, e := range v.L {
			if attrvalue.Equal(e, n.operand) {
				return true
			}
		}
		return false
	}
	return false
}

func contains(s, sub string) bool {
	return len(sub) == 0 || indexOf(s, sub) >= 0
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

func containsStr(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func containsNum(set []string, v string) bool {
	for _, n := range set {
		if attrvalue.Compare(attrvalue.Number(n), attrvalue.Number(v)) == attrvalue.OrderEq {
			return true
		}
	}
	return false
}

func containsBin(set [][]byte, v []byte) bool {
	for _, b := range set {
		if string(b) == string(v) {
			return true
		}
	}
	return false
}

// Parse parses exprStr against names and values. A null/empty exprStr
// evaluates true for every item, per the "a null condition expression
// evaluates true" rule.
func Parse(exprStr string, names map[string]string, values attrvalue.Map) (Node, error) {
	if exprStr == "" {
		return trueNode{}, nil
	}
	p := &parser{lex: expr.NewLexer(exprStr), names: names, values: values}
	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	tail, err := p.lex.Next()
	if err != nil {
		return nil, apierr.New(apierr.KindInvalidExpression, "parsing condition expression: %v", err)
	}
	if tail.Kind != expr.KindEOF {
		return nil, apierr.New(apierr.KindInvalidExpression, "unexpected trailing token %q", tail.Text)
	}
	return node, nil
}

type trueNode struct{}

func (trueNode) Eval(attrvalue.Map) bool { return true }

type parser struct {
	lex    *expr.Lexer
	names  map[string]string
	values attrvalue.Map
}

func (p *parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		tok, err := p.lex.Peek()
		if err != nil {
			return nil, apierr.New(apierr.KindInvalidExpression, "parsing condition expression: %v", err)
		}
		if tok.Kind != expr.KindIdent || !expr.IsKeyword(tok.Text, "OR") {
			return left, nil
		}
		p.lex.Next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &orNode{left: left, right: right}
	}
}

func (p *parser) parseAnd() (Node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for {
		tok, err := p.lex.Peek()
		if err != nil {
			return nil, apierr.New(apierr.KindInvalidExpression, "parsing condition expression: %v", err)
		}
		if tok.Kind != expr.KindIdent || !expr.IsKeyword(tok.Text, "AND") {
			return left, nil
		}
		p.lex.Next()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &andNode{left: left, right: right}
	}
}

func (p *parser) parseNot() (Node, error) {
	tok, err := p.lex.Peek()
	if err != nil {
		return nil, apierr.New(apierr.KindInvalidExpression, "parsing condition expression: %v", err)
	}
	if tok.Kind == expr.KindIdent && expr.IsKeyword(tok.Text, "NOT") {
		p.lex.Next()
		inner, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &notNode{inner: inner}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Node, error) {
	tok, err := p.lex.Next()
	if err != nil {
		return nil, apierr.New(apierr.KindInvalidExpression, "parsing condition expression: %v", err)
	}

	if tok.Kind == expr.KindLParen {
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(expr.KindRParen, ")"); err != nil {
			return nil, err
		}
		return inner, nil
	}

	if tok.Kind == expr.KindIdent {
		switch {
		case expr.IsKeyword(tok.Text, "attribute_exists"):
			attr, err := p.parseAttrCall()
			if err != nil {
				return nil, err
			}
			return &existsNode{attr: attr}, nil
		case expr.IsKeyword(tok.Text, "attribute_not_exists"):
			attr, err := p.parseAttrCall()
			if err != nil {
				return nil, err
			}
			return &notExistsNode{attr: attr}, nil
		case expr.IsKeyword(tok.Text, "begins_with"):
			attr, bind, err := p.parseAttrBindCall()
			if err != nil {
				return nil, err
			}
			return &beginsWithNode{attr: attr, prefix: bind}, nil
		case expr.IsKeyword(tok.Text, "contains"):
			attr, bind, err := p.parseAttrBindCall()
			if err != nil {
				return nil, err
			}
			return &containsNode{attr: attr, operand: bind}, nil
		}

		attr, err := expr.ResolveAttr(p.names, tok)
		if err != nil {
			return nil, apierr.New(apierr.KindInvalidExpression, "resolving attribute: %v", err)
		}
		return p.parseComparisonOrBetween(attr)
	}

	if tok.Kind == expr.KindPlaceholder {
		attr, err := expr.ResolveAttr(p.names, tok)
		if err != nil {
			return nil, apierr.New(apierr.KindInvalidExpression, "resolving attribute: %v", err)
		}
		return p.parseComparisonOrBetween(attr)
	}

	return nil, apierr.New(apierr.KindInvalidExpression, "unexpected token %q", tok.Text)
}

func (p *parser) parseComparisonOrBetween(attr string) (Node, error) {
	opTok, err := p.lex.Next()
	if err != nil {
		return nil, apierr.New(apierr.KindInvalidExpression, "parsing comparison: %v", err)
	}
	if opTok.Kind == expr.KindIdent && expr.IsKeyword(opTok.Text, "BETWEEN") {
		lo, err := p.parseBindValue()
		if err != nil {
			return nil, err
		}
		andTok, err := p.lex.Next()
		if err != nil || andTok.Kind != expr.KindIdent || !expr.IsKeyword(andTok.Text, "AND") {
			return nil, apierr.New(apierr.KindInvalidExpression, "expected AND in BETWEEN … AND …")
		}
		hi, err := p.parseBindValue()
		if err != nil {
			return nil, err
		}
		return &betweenNode{attr: attr, lo: lo, hi: hi}, nil
	}
	if opTok.Kind != expr.KindOp {
		return nil, apierr.New(apierr.KindInvalidExpression, "expected comparison operator, got %q", opTok.Text)
	}
	switch opTok.Text {
	case "=", "<>", "<", ">", "<=", ">=":
	default:
		return nil, apierr.New(apierr.KindInvalidExpression, "unsupported operator %q", opTok.Text)
	}
	bind, err := p.parseBindValue()
	if err != nil {
		return nil, err
	}
	return &compareNode{attr: attr, op: opTok.Text, bind: bind}, nil
}

func (p *parser) parseAttrCall() (string, error) {
	if err := p.expect(expr.KindLParen, "("); err != nil {
		return "", err
	}
	tok, err := p.lex.Next()
	if err != nil {
		return "", apierr.New(apierr.KindInvalidExpression, "parsing function argument: %v", err)
	}
	attr, err := expr.ResolveAttr(p.names, tok)
	if err != nil {
		return "", apierr.New(apierr.KindInvalidExpression, "resolving attribute: %v", err)
	}
	if err := p.expect(expr.KindRParen, ")"); err != nil {
		return "", err
	}
	return attr, nil
}

func (p *parser) parseAttrBindCall() (string, attrvalue.Value, error) {
	if err := p.expect(expr.KindLParen, "("); err != nil {
		return "", attrvalue.Value{}, err
	}
	tok, err := p.lex.Next()
	if err != nil {
		return "", attrvalue.Value{}, apierr.New(apierr.KindInvalidExpression, "parsing function argument: %v", err)
	}
	attr, err := expr.ResolveAttr(p.names, tok)
	if err != nil {
		return "", attrvalue.Value{}, apierr.New(apierr.KindInvalidExpression, "resolving attribute: %v", err)
	}
	comma, err := p.lex.Next()
	if err != nil || comma.Kind != expr.KindComma {
		return "", attrvalue.Value{}, apierr.New(apierr.KindInvalidExpression, "expected ','")
	}
	bind, err := p.parseBindValue()
	if err != nil {
		return "", attrvalue.Value{}, err
	}
	if err := p.expect(expr.KindRParen, ")"); err != nil {
		return "", attrvalue.Value{}, err
	}
	return attr, bind, nil
}

func (p *parser) parseBindValue() (attrvalue.Value, error) {
	tok, err := p.lex.Next()
	if err != nil || tok.Kind != expr.KindBind {
		return attrvalue.Value{}, apierr.New(apierr.KindInvalidExpression, "expected :bind value")
	}
	v, ok := p.values[tok.Text]
	if !ok {
		return attrvalue.Value{}, apierr.New(apierr.KindInvalidExpression, "missing ExpressionAttributeValues entry for %s", tok.Text)
	}
	return v, nil
}

func (p *parser) expect(kind expr.Kind, what string) error {
	t, err := p.lex.Next()
	if err != nil || t.Kind != kind {
		return apierr.New(apierr.KindInvalidExpression, "expected %q", what)
	}
	return nil
}
