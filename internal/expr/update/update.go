// Package update implements the update-expression parser and applier from
// SPEC_FULL.md §4.4: any permutation of SET/REMOVE/ADD/DELETE clauses,
// applied to a mutable copy of an item's attribute map.
package update

import (
	"math/big"

	"pretender/internal/apierr"
	"pretender/internal/attrvalue"
	"pretender/internal/expr"
)

// Expr is a parsed update expression ready to Apply to an item.
type Expr struct {
	sets    []setAssignment
	removes []string
	adds    []addAssignment
	deletes []deleteAssignment
}

type setAssignment struct {
	attr string
	rhs  rhs
}

// rhs is the right-hand side of a SET assignment.
type rhs interface {
	eval(item attrvalue.Map) (attrvalue.Value, error)
}

type bindRHS struct{ value attrvalue.Value }

func (r bindRHS) eval(attrvalue.Map) (attrvalue.Value, error) { return r.value, nil }

type listAppendRHS struct{ a, b rhs }

func (r listAppendRHS) eval(item attrvalue.Map) (attrvalue.Value, error) {
	av, err := r.a.eval(item)
	if err != nil {
		return attrvalue.Value{}, err
	}
	bv, err := r.b.eval(item)
	if err != nil {
		return attrvalue.Value{}, err
	}
	if av.Kind != attrvalue.KindL || bv.Kind != attrvalue.KindL {
		return attrvalue.Value{}, apierr.New(apierr.KindInvalidExpression, "list_append requires two list operands")
	}
	return attrvalue.List(append(append([]attrvalue.Value{}, av.L...), bv.L...)...), nil
}

type ifNotExistsRHS struct {
	attr    string
	fallbk  rhs
}

func (r ifNotExistsRHS) eval(item attrvalue.Map) (attrvalue.Value, error) {
	if v, ok := item[r.attr]; ok {
		return v, nil
	}
	return r.fallbk.eval(item)
}

type attrRefRHS struct{ attr string }

func (r attrRefRHS) eval(item attrvalue.Map) (attrvalue.Value, error) {
	v, ok := item[r.attr]
	if !ok {
		return attrvalue.Value{}, apierr.New(apierr.KindInvalidExpression, "attribute %q does not exist", r.attr)
	}
	return v, nil
}

type arithRHS struct {
	left  rhs
	op    string // + or -
	right rhs
}

func (r arithRHS) eval(item attrvalue.Map) (attrvalue.Value, error) {
	lv, err := r.left.eval(item)
	if err != nil {
		return attrvalue.Value{}, err
	}
	rv, err := r.right.eval(item)
	if err != nil {
		return attrvalue.Value{}, err
	}
	if lv.Kind != attrvalue.KindN || rv.Kind != attrvalue.KindN {
		return attrvalue.Value{}, apierr.New(apierr.KindInvalidExpression, "arithmetic requires numeric operands")
	}
	result, err := arith(lv.N, rv.N, r.op)
	if err != nil {
		return attrvalue.Value{}, err
	}
	return attrvalue.Number(result), nil
}

func arith(a, b, op string) (string, error) {
	af, _, err := big.ParseFloat(a, 10, 200, big.ToNearestEven)
	if err != nil {
		return "", apierr.New(apierr.KindInvalidExpression, "invalid number %q", a)
	}
	bf, _, err := big.ParseFloat(b, 10, 200, big.ToNearestEven)
	if err != nil {
		return "", apierr.New(apierr.KindInvalidExpression, "invalid number %q", b)
	}
	out := new(big.Float).SetPrec(200)
	if op == "+" {
		out.Add(af, bf)
	} else {
		out.Sub(af, bf)
	}
	return out.Text('f', -1), nil
}

type addAssignment struct {
	attr string
	bind attrvalue.Value
}

type deleteAssignment struct {
	attr string
	bind attrvalue.Value
}

// Apply applies the update expression to a mutable copy of item, returning
// the new attribute map. item may be nil (a seed of only key attributes is
// expected from the caller in that case).
func (e *Expr) Apply(item attrvalue.Map) (attrvalue.Map, error) {
	out := item.Clone()
	if out == nil {
		out = attrvalue.Map{}
	}

	for _, s := range e.sets {
		v, err := s.rhs.eval(out)
		if err != nil {
			return nil, err
		}
		out[s.attr] = v
	}

	for _, attr := range e.removes {
		delete(out, attr)
	}

	for _, a := range e.adds {
		if err := applyAdd(out, a); err != nil {
			return nil, err
		}
	}

	for _, d := range e.deletes {
		if err := applyDelete(out, d); err != nil {
			return nil, err
		}
	}

	return out, nil
}

func applyAdd(item attrvalue.Map, a addAssignment) error {
	existing, ok := item[a.attr]
	if !ok {
		item[a.attr] = a.bind
		return nil
	}
	switch a.bind.Kind {
	case attrvalue.KindN:
		if existing.Kind != attrvalue.KindN {
			return apierr.New(apierr.KindInvalidExpression, "ADD on %q requires a numeric attribute", a.attr)
		}
		sum, err := arith(existing.N, a.bind.N, "+")
		if err != nil {
			return err
		}
		item[a.attr] = attrvalue.Number(sum)
	case attrvalue.KindSS:
		if existing.Kind != attrvalue.KindSS {
			return apierr.New(apierr.KindInvalidExpression, "ADD on %q requires a string-set attribute", a.attr)
		}
		item[a.attr] = attrvalue.StringSet(unionStrings(existing.SS, a.bind.SS)...)
	case attrvalue.KindNS:
		if existing.Kind != attrvalue.KindNS {
			return apierr.New(apierr.KindInvalidExpression, "ADD on %q requires a number-set attribute", a.attr)
		}
		item[a.attr] = attrvalue.NumberSet(unionStrings(existing.NS, a.bind.NS)...)
	case attrvalue.KindBS:
		if existing.Kind != attrvalue.KindBS {
			return apierr.New(apierr.KindInvalidExpression, "ADD on %q requires a binary-set attribute", a.attr)
		}
		item[a.attr] = attrvalue.BinarySet(unionBinary(existing.BS, a.bind.BS)...)
	default:
		return apierr.New(apierr.KindInvalidExpression, "ADD requires a number or set value")
	}
	return nil
}

func applyDelete(item attrvalue.Map, d deleteAssignment) error {
	existing, ok := item[d.attr]
	if !ok {
		return nil
	}
	switch d.bind.Kind {
	case attrvalue.KindSS:
		if existing.Kind != attrvalue.KindSS {
			return apierr.New(apierr.KindInvalidExpression, "DELETE on %q requires a string-set attribute", d.attr)
		}
		remaining := subtractStrings(existing.SS, d.bind.SS)
		setOrRemove(item, d.attr, remaining, func(v []string) attrvalue.Value { return attrvalue.StringSet(v...) })
	case attrvalue.KindNS:
		if existing.Kind != attrvalue.KindNS {
			return apierr.New(apierr.KindInvalidExpression, "DELETE on %q requires a number-set attribute", d.attr)
		}
		remaining := subtractStrings(existing.NS, d.bind.NS)
		setOrRemove(item, d.attr, remaining, func(v []string) attrvalue.Value { return attrvalue.NumberSet(v...) })
	case attrvalue.KindBS:
		if existing.Kind != attrvalue.KindBS {
			return apierr.New(apierr.KindInvalidExpression, "DELETE on %q requires a binary-set attribute", d.attr)
		}
		remaining := subtractBinary(existing.BS, d.bind.BS)
		if len(remaining) == 0 {
			delete(item, d.attr)
		} else {
			item[d.attr] = attrvalue.BinarySet(remaining...)
		}
	default:
		return apierr.New(apierr.KindInvalidExpression, "DELETE requires a set value")
	}
	return nil
}

func setOrRemove(item attrvalue.Map, attr string, remaining []string, build func([]string) attrvalue.Value) {
	if len(remaining) == 0 {
		delete(item, attr)
		return
	}
	item[attr] = build(remaining)
}

func unionStrings(a, b []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range a {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func subtractStrings(a, remove []string) []string {
	removeSet := map[string]bool{}
	for _, s := range remove {
		removeSet[s] = true
	}
	var out []string
	for _, s := range a {
		if !removeSet[s] {
			out = append(out, s)
		}
	}
	return out
}

func unionBinary(a, b [][]byte) [][]byte {
	seen := map[string]bool{}
	var out [][]byte
	for _, v := range a {
		if k := string(v); !seen[k] {
			seen[k] = true
			out = append(out, v)
		}
	}
	for _, v := range b {
		if k := string(v); !seen[k] {
			seen[k] = true
			out = append(out, v)
		}
	}
	return out
}

func subtractBinary(a, remove [][]byte) [][]byte {
	removeSet := map[string]bool{}
	for _, v := range remove {
		removeSet[string(v)] = true
	}
	var out [][]byte
	for _, v := range a {
		if !removeSet[string(v)] {
			out = append(out, v)
		}
	}
	return out
}

// Parse parses an update expression against names/values.
func Parse(exprStr string, names map[string]string, values attrvalue.Map) (*Expr, error) {
	p := &uparser{lex: expr.NewLexer(exprStr), names: names, values: values}
	e := &Expr{}
	seen := map[string]bool{}

	for {
		tok, err := p.lex.Peek()
		if err != nil {
			return nil, apierr.New(apierr.KindInvalidExpression, "parsing update expression: %v", err)
		}
		if tok.Kind == expr.KindEOF {
			break
		}
		if tok.Kind != expr.KindIdent {
			return nil, apierr.New(apierr.KindInvalidExpression, "expected clause keyword, got %q", tok.Text)
		}

		switch {
		case expr.IsKeyword(tok.Text, "SET"):
			if seen["SET"] {
				return nil, apierr.New(apierr.KindInvalidExpression, "duplicate SET clause")
			}
			seen["SET"] = true
			p.lex.Next()
			sets, err := p.parseSetClause()
			if err != nil {
				return nil, err
			}
			e.sets = sets
		case expr.IsKeyword(tok.Text, "REMOVE"):
			if seen["REMOVE"] {
				return nil, apierr.New(apierr.KindInvalidExpression, "duplicate REMOVE clause")
			}
			seen["REMOVE"] = true
			p.lex.Next()
			removes, err := p.parseRemoveClause()
			if err != nil {
				return nil, err
			}
			e.removes = removes
		case expr.IsKeyword(tok.Text, "ADD"):
			if seen["ADD"] {
				return nil, apierr.New(apierr.KindInvalidExpression, "duplicate ADD clause")
			}
			seen["ADD"] = true
			p.lex.Next()
			adds, err := p.parseAddClause()
			if err != nil {
				return nil, err
			}
			e.adds = adds
		case expr.IsKeyword(tok.Text, "DELETE"):
			if seen["DELETE"] {
				return nil, apierr.New(apierr.KindInvalidExpression, "duplicate DELETE clause")
			}
			seen["DELETE"] = true
			p.lex.Next()
			dels, err := p.parseDeleteClause()
			if err != nil {
				return nil, err
			}
			e.deletes = dels
		default:
			return nil, apierr.New(apierr.KindInvalidExpression, "unknown clause keyword %q", tok.Text)
		}
	}

	if len(seen) == 0 {
		return nil, apierr.New(apierr.KindInvalidExpression, "update expression must contain at least one clause")
	}
	return e, nil
}

type uparser struct {
	lex    *expr.Lexer
	names  map[string]string
	values attrvalue.Map
}

func (p *uparser) atClauseBoundary() (bool, error) {
	tok, err := p.lex.Peek()
	if err != nil {
		return false, err
	}
	if tok.Kind == expr.KindEOF {
		return true, nil
	}
	if tok.Kind == expr.KindIdent {
		for _, kw := range []string{"SET", "REMOVE", "ADD", "DELETE"} {
			if expr.IsKeyword(tok.Text, kw) {
				return true, nil
			}
		}
	}
	return false, nil
}

func (p *uparser) parseSetClause() ([]setAssignment, error) {
	var out []setAssignment
	for {
		attrTok, err := p.lex.Next()
		if err != nil {
			return nil, apierr.New(apierr.KindInvalidExpression, "parsing SET clause: %v", err)
		}
		attr, err := expr.ResolveAttr(p.names, attrTok)
		if err != nil {
			return nil, apierr.New(apierr.KindInvalidExpression, "resolving attribute: %v", err)
		}
		eq, err := p.lex.Next()
		if err != nil || eq.Kind != expr.KindOp || eq.Text != "=" {
			return nil, apierr.New(apierr.KindInvalidExpression, "expected '=' in SET assignment")
		}
		r, err := p.parseRHS()
		if err != nil {
			return nil, err
		}
		out = append(out, setAssignment{attr: attr, rhs: r})

		done, err := p.atClauseBoundary()
		if err != nil {
			return nil, apierr.New(apierr.KindInvalidExpression, "parsing SET clause: %v", err)
		}
		if done {
			return out, nil
		}
		comma, err := p.lex.Next()
		if err != nil || comma.Kind != expr.KindComma {
			return nil, apierr.New(apierr.KindInvalidExpression, "expected ',' between SET assignments")
		}
	}
}

func (p *uparser) parseRHS() (rhs, error) {
	tok, err := p.lex.Next()
	if err != nil {
		return nil, apierr.New(apierr.KindInvalidExpression, "parsing SET expression: %v", err)
	}

	var left rhs
	switch {
	case tok.Kind == expr.KindBind:
		v, ok := p.values[tok.Text]
		if !ok {
			return nil, apierr.New(apierr.KindInvalidExpression, "missing ExpressionAttributeValues entry for %s", tok.Text)
		}
		left = bindRHS{value: v}
	case tok.Kind == expr.KindIdent && expr.IsKeyword(tok.Text, "list_append"):
		if err := p.expect(expr.KindLParen); err != nil {
			return nil, err
		}
		a, err := p.parseRHS()
		if err != nil {
			return nil, err
		}
		if err := p.expectComma(); err != nil {
			return nil, err
		}
		b, err := p.parseRHS()
		if err != nil {
			return nil, err
		}
		if err := p.expect(expr.KindRParen); err != nil {
			return nil, err
		}
		left = listAppendRHS{a: a, b: b}
	case tok.Kind == expr.KindIdent && expr.IsKeyword(tok.Text, "if_not_exists"):
		if err := p.expect(expr.KindLParen); err != nil {
			return nil, err
		}
		attrTok, err := p.lex.Next()
		if err != nil {
			return nil, apierr.New(apierr.KindInvalidExpression, "parsing if_not_exists argument: %v", err)
		}
		attr, err := expr.ResolveAttr(p.names, attrTok)
		if err != nil {
			return nil, apierr.New(apierr.KindInvalidExpression, "resolving attribute: %v", err)
		}
		if err := p.expectComma(); err != nil {
			return nil, err
		}
		fallbk, err := p.parseRHS()
		if err != nil {
			return nil, err
		}
		if err := p.expect(expr.KindRParen); err != nil {
			return nil, err
		}
		left = ifNotExistsRHS{attr: attr, fallbk: fallbk}
	case tok.Kind == expr.KindIdent:
		attr, err := expr.ResolveAttr(p.names, tok)
		if err != nil {
			return nil, apierr.New(apierr.KindInvalidExpression, "resolving attribute: %v", err)
		}
		left = attrRefRHS{attr: attr}
	case tok.Kind == expr.KindPlaceholder:
		attr, err := expr.ResolveAttr(p.names, tok)
		if err != nil {
			return nil, apierr.New(apierr.KindInvalidExpression, "resolving attribute: %v", err)
		}
		left = attrRefRHS{attr: attr}
	default:
		return nil, apierr.New(apierr.KindInvalidExpression, "unexpected token %q in SET expression", tok.Text)
	}

	opTok, err := p.lex.Peek()
	if err != nil {
		return nil, apierr.New(apierr.KindInvalidExpression, "parsing SET expression: %v", err)
	}
	if opTok.Kind == expr.KindOp && (opTok.Text == "+" || opTok.Text == "-") {
		p.lex.Next()
		right, err := p.parseRHS()
		if err != nil {
			return nil, err
		}
		return arithRHS{left: left, op: opTok.Text, right: right}, nil
	}
	return left, nil
}

func (p *uparser) parseRemoveClause() ([]string, error) {
	var out []string
	for {
		attrTok, err := p.lex.Next()
		if err != nil {
			return nil, apierr.New(apierr.KindInvalidExpression, "parsing REMOVE clause: %v", err)
		}
		attr, err := expr.ResolveAttr(p.names, attrTok)
		if err != nil {
			return nil, apierr.New(apierr.KindInvalidExpression, "resolving attribute: %v", err)
		}
		out = append(out, attr)

		done, err := p.atClauseBoundary()
		if err != nil {
			return nil, apierr.New(apierr.KindInvalidExpression, "parsing REMOVE clause: %v", err)
		}
		if done {
			return out, nil
		}
		comma, err := p.lex.Next()
		if err != nil || comma.Kind != expr.KindComma {
			return nil, apierr.New(apierr.KindInvalidExpression, "expected ',' between REMOVE attributes")
		}
	}
}

func (p *uparser) parseAddClause() ([]addAssignment, error) {
	var out []addAssignment
	for {
		attrTok, err := p.lex.Next()
		if err != nil {
			return nil, apierr.New(apierr.KindInvalidExpression, "parsing ADD clause: %v", err)
		}
		attr, err := expr.ResolveAttr(p.names, attrTok)
		if err != nil {
			return nil, apierr.New(apierr.KindInvalidExpression, "resolving attribute: %v", err)
		}
		bindTok, err := p.lex.Next()
		if err != nil || bindTok.Kind != expr.KindBind {
			return nil, apierr.New(apierr.KindInvalidExpression, "expected :bind in ADD clause")
		}
		v, ok := p.values[bindTok.Text]
		if !ok {
			return nil, apierr.New(apierr.KindInvalidExpression, "missing ExpressionAttributeValues entry for %s", bindTok.Text)
		}
		out = append(out, addAssignment{attr: attr, bind: v})

		done, err := p.atClauseBoundary()
		if err != nil {
			return nil, apierr.New(apierr.KindInvalidExpression, "parsing ADD clause: %v", err)
		}
		if done {
			return out, nil
		}
		comma, err := p.lex.Next()
		if err != nil || comma.Kind != expr.KindComma {
			return nil, apierr.New(apierr.KindInvalidExpression, "expected ',' between ADD assignments")
		}
	}
}

func (p *uparser) parseDeleteClause() ([]deleteAssignment, error) {
	var out []deleteAssignment
	for {
		attrTok, err := p.lex.Next()
		if err != nil {
			return nil, apierr.New(apierr.KindInvalidExpression, "parsing DELETE clause: %v", err)
		}
		attr, err := expr.ResolveAttr(p.names, attrTok)
		if err != nil {
			return nil, apierr.New(apierr.KindInvalidExpression, "resolving attribute: %v", err)
		}
		bindTok, err := p.lex.Next()
		if err != nil || bindTok.Kind != expr.KindBind {
			return nil, apierr.New(apierr.KindInvalidExpression, "expected :bind in DELETE clause")
		}
		v, ok := p.values[bindTok.Text]
		if !ok {
			return nil, apierr.New(apierr.KindInvalidExpression, "missing ExpressionAttributeValues entry for %s", bindTok.Text)
		}
		out = append(out, deleteAssignment{attr: attr, bind: v})

		done, err := p.atClauseBoundary()
		if err != nil {
			return nil, apierr.New(apierr.KindInvalidExpression, "parsing DELETE clause: %v", err)
		}
		if done {
			return out, nil
		}
		comma, err := p.lex.Next()
		if err != nil || comma.Kind != expr.KindComma {
			return nil, apierr.New(apierr.KindInvalidExpression, "expected ',' between DELETE assignments")
		}
	}
}

func (p *uparser) expect(kind expr.Kind) error {
	t, err := p.lex.Next()
	if err != nil || t.Kind != kind {
		return apierr.New(apierr.KindInvalidExpression, "unexpected token in SET expression")
	}
	return nil
}

func (p *uparser) expectComma() error {
	t, err := p.lex.Next()
	if err != nil || t.Kind != expr.KindComma {
		return apierr.New(apierr.KindInvalidExpression, "expected ','")
	}
	return nil
}
