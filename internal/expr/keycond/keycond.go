// Package keycond implements the key-condition parser from SPEC_FULL.md
// §4.4: the grammar "hashAttr = :bind [AND sortExpr]" used by Query.
package keycond

import (
	"pretender/internal/apierr"
	"pretender/internal/attrvalue"
	"pretender/internal/expr"
)

// SortOp names the comparison a sort-key condition performs.
type SortOp int

const (
	SortOpNone SortOp = iota
	SortOpEQ
	SortOpLT
	SortOpGT
	SortOpLE
	SortOpGE
	SortOpBetween
	SortOpBeginsWith
)

// Parsed is the resolved, bind-checked result of a key condition.
type Parsed struct {
	HashAttr  string
	HashBind  string // name into ExpressionAttributeValues
	SortAttr  string // "" if no sort condition present
	SortOp    SortOp
	SortBind  string // single bind name for EQ/LT/GT/LE/GE/BeginsWith
	SortLoBind string // BETWEEN low bind
	SortHiBind string // BETWEEN high bind
}

// Parse parses expr against names (ExpressionAttributeNames) and values
// (ExpressionAttributeValues), returning InvalidExpression on any grammar
// violation, unresolved placeholder, or non-scalar bind value.
func Parse(exprStr string, names map[string]string, values attrvalue.Map) (*Parsed, error) {
	lex := expr.NewLexer(exprStr)
	p := &Parsed{}

	hashAttrTok, err := lex.Next()
	if err != nil {
		return nil, apierr.New(apierr.KindInvalidExpression, "parsing key condition: %v", err)
	}
	hashAttr, err := expr.ResolveAttr(names, hashAttrTok)
	if err != nil {
		return nil, apierr.New(apierr.KindInvalidExpression, "resolving hash key attribute: %v", err)
	}
	p.HashAttr = hashAttr

	eqTok, err := lex.Next()
	if err != nil || eqTok.Kind != expr.KindOp || eqTok.Text != "=" {
		return nil, apierr.New(apierr.KindInvalidExpression, "key condition must start with hashAttr = :bind")
	}
	bindTok, err := lex.Next()
	if err != nil || bindTok.Kind != expr.KindBind {
		return nil, apierr.New(apierr.KindInvalidExpression, "expected :bind after hash key comparison")
	}
	if err := requireScalarBind(values, bindTok.Text); err != nil {
		return nil, err
	}
	p.HashBind = bindTok.Text

	next, err := lex.Next()
	if err != nil {
		return nil, apierr.New(apierr.KindInvalidExpression, "parsing key condition: %v", err)
	}
	if next.Kind == expr.KindEOF {
		return p, nil
	}
	if next.Kind != expr.KindIdent || !expr.IsKeyword(next.Text, "AND") {
		return nil, apierr.New(apierr.KindInvalidExpression, "expected AND after hash key condition, got %q", next.Text)
	}

	if err := parseSortExpr(lex, names, values, p); err != nil {
		return nil, err
	}

	tail, err := lex.Next()
	if err != nil {
		return nil, apierr.New(apierr.KindInvalidExpression, "parsing key condition: %v", err)
	}
	if tail.Kind != expr.KindEOF {
		return nil, apierr.New(apierr.KindInvalidExpression, "unexpected trailing token %q", tail.Text)
	}
	return p, nil
}

func parseSortExpr(lex *expr.Lexer, names map[string]string, values attrvalue.Map, p *Parsed) error {
	first, err := lex.Next()
	if err != nil {
		return apierr.New(apierr.KindInvalidExpression, "parsing sort key condition: %v", err)
	}

	// begins_with(attr, :v)
	if first.Kind == expr.KindIdent && expr.IsKeyword(first.Text, "begins_with") {
		if err := expectLParen(lex); err != nil {
			return err
		}
		attrTok, err := lex.Next()
		if err != nil {
			return apierr.New(apierr.KindInvalidExpression, "parsing begins_with argument: %v", err)
		}
		attr, err := expr.ResolveAttr(names, attrTok)
		if err != nil {
			return apierr.New(apierr.KindInvalidExpression, "resolving sort key attribute: %v", err)
		}
		if err := expectComma(lex); err != nil {
			return err
		}
		bindTok, err := lex.Next()
		if err != nil || bindTok.Kind != expr.KindBind {
			return apierr.New(apierr.KindInvalidExpression, "expected :bind in begins_with")
		}
		if err := requireScalarBind(values, bindTok.Text); err != nil {
			return err
		}
		if err := expectRParen(lex); err != nil {
			return err
		}
		p.SortAttr = attr
		p.SortOp = SortOpBeginsWith
		p.SortBind = bindTok.Text
		return nil
	}

	attr, err := expr.ResolveAttr(names, first)
	if err != nil {
		return apierr.New(apierr.KindInvalidExpression, "resolving sort key attribute: %v", err)
	}
	p.SortAttr = attr

	opTok, err := lex.Next()
	if err != nil {
		return apierr.New(apierr.KindInvalidExpression, "parsing sort key condition: %v", err)
	}

	if opTok.Kind == expr.KindIdent && expr.IsKeyword(opTok.Text, "BETWEEN") {
		loTok, err := lex.Next()
		if err != nil || loTok.Kind != expr.KindBind {
			return apierr.New(apierr.KindInvalidExpression, "expected :lo bind in BETWEEN")
		}
		if err := requireScalarBind(values, loTok.Text); err != nil {
			return err
		}
		andTok, err := lex.Next()
		if err != nil || andTok.Kind != expr.KindIdent || !expr.IsKeyword(andTok.Text, "AND") {
			return apierr.New(apierr.KindInvalidExpression, "expected AND in BETWEEN … AND …")
		}
		hiTok, err := lex.Next()
		if err != nil || hiTok.Kind != expr.KindBind {
			return apierr.New(apierr.KindInvalidExpression, "expected :hi bind in BETWEEN")
		}
		if err := requireScalarBind(values, hiTok.Text); err != nil {
			return err
		}
		p.SortOp = SortOpBetween
		p.SortLoBind = loTok.Text
		p.SortHiBind = hiTok.Text
		return nil
	}

	if opTok.Kind != expr.KindOp {
		return apierr.New(apierr.KindInvalidExpression, "expected comparison operator, got %q", opTok.Text)
	}
	switch opTok.Text {
	case "=":
		p.SortOp = SortOpEQ
	case "<":
		p.SortOp = SortOpLT
	case ">":
		p.SortOp = SortOpGT
	case "<=":
		p.SortOp = SortOpLE
	case ">=":
		p.SortOp = SortOpGE
	default:
		return apierr.New(apierr.KindInvalidExpression, "unsupported sort key operator %q", opTok.Text)
	}

	bindTok, err := lex.Next()
	if err != nil || bindTok.Kind != expr.KindBind {
		return apierr.New(apierr.KindInvalidExpression, "expected :bind after sort key operator")
	}
	if err := requireScalarBind(values, bindTok.Text); err != nil {
		return err
	}
	p.SortBind = bindTok.Text
	return nil
}

func expectLParen(lex *expr.Lexer) error {
	t, err := lex.Next()
	if err != nil || t.Kind != expr.KindLParen {
		return apierr.New(apierr.KindInvalidExpression, "expected '('")
	}
	return nil
}

func expectRParen(lex *expr.Lexer) error {
	t, err := lex.Next()
	if err != nil || t.Kind != expr.KindRParen {
		return apierr.New(apierr.KindInvalidExpression, "expected ')'")
	}
	return nil
}

func expectComma(lex *expr.Lexer) error {
	t, err := lex.Next()
	if err != nil || t.Kind != expr.KindComma {
		return apierr.New(apierr.KindInvalidExpression, "expected ','")
	}
	return nil
}

func requireScalarBind(values attrvalue.Map, name string) error {
	v, ok := values[name]
	if !ok {
		return apierr.New(apierr.KindInvalidExpression, "missing ExpressionAttributeValues entry for %s", name)
	}
	if !v.IsScalar() {
		return apierr.New(apierr.KindInvalidExpression, "%s must be a scalar (S/N/B) value", name)
	}
	return nil
}
