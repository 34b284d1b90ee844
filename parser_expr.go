package tovac

// Expression precedence, lowest to highest (§4.2):
//   pipe |> → null-coalesce ?? → or → and → not → equality → comparison
//   (chained) → bitwise (reserved) → range → additive → multiplicative →
//   unary -/! → power (right-assoc) → call/member/subscript/optional-
//   chain/propagate → primary.
//
// Each tier below is one method, calling into the next-tighter tier for
// its operands, mirroring the teacher's parseRelationalExpression /
// parseSimpleExpression / parseTerm / parsePower chain (parser_expression.go)
// extended with the additional tiers this grammar needs.

func (p *Parser) ParseExpr() (Expr, error) {
	return p.parsePipe()
}

func (p *Parser) parsePipe() (Expr, error) {
	left, err := p.parseNullCoalesce()
	if err != nil {
		return nil, err
	}
	for p.Is(KindPunct, "|>") {
		tok := p.Consume()
		rhs, err := p.parseNullCoalesce()
		if err != nil {
			return nil, err
		}
		method := false
		// `.method(...)` pipe form: rhs parses as a CallExpr whose callee
		// is a MemberExpr with no explicit object (leading dot).
		if mc, ok := rhs.(*CallExpr); ok {
			if me, ok := mc.Callee.(*MemberExpr); ok && me.Object == nil {
				method = true
			}
		}
		left = &PipeExpr{baseExpr: baseExpr{tok.Loc}, Left: left, Call: rhs, Method: method}
	}
	return left, nil
}

func (p *Parser) parseNullCoalesce() (Expr, error) {
	left, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	for p.Is(KindPunct, "??") {
		tok := p.Consume()
		right, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{baseExpr: baseExpr{tok.Loc}, Op: "??", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.Is(KindKeyword, "or") || p.Is(KindPunct, "||") {
		tok := p.Consume()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &LogicalExpr{baseExpr: baseExpr{tok.Loc}, Op: "or", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAnd() (Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.Is(KindKeyword, "and") || p.Is(KindPunct, "&&") {
		tok := p.Consume()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &LogicalExpr{baseExpr: baseExpr{tok.Loc}, Op: "and", Left: left, Right: right}
	}
	return left, nil
}

// parseNot handles the logical-keyword prefix `not expr`, binding looser
// than equality so `not a == b` reads as `not (a == b)`.
func (p *Parser) parseNot() (Expr, error) {
	if tok := p.Match(KindKeyword, "not"); tok != nil {
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{baseExpr: baseExpr{tok.Loc}, Op: "not", Operand: operand}, nil
	}
	return p.parseEquality()
}

func (p *Parser) parseEquality() (Expr, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.Is(KindPunct, "==") || p.Is(KindPunct, "!=") {
		tok := p.Consume()
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{baseExpr: baseExpr{tok.Loc}, Op: tok.Val, Left: left, Right: right}
	}
	return left, nil
}

var comparisonOps = map[string]bool{"<": true, ">": true, "<=": true, ">=": true}

// parseComparison implements chained comparison: `a < b < c` becomes one
// ChainedComparisonExpr evaluated left to right with each subject
// evaluated exactly once (§4.2, §8).
func (p *Parser) parseComparison() (Expr, error) {
	first, err := p.parseRange()
	if err != nil {
		return nil, err
	}

	operands := []Expr{first}
	var ops []string
	for {
		if p.Current() != nil && p.Current().Kind == KindPunct && comparisonOps[p.Current().Val] {
			ops = append(ops, p.Consume().Val)
		} else if p.Is(KindKeyword, "in") {
			p.Consume()
			ops = append(ops, "in")
		} else {
			break
		}
		next, err := p.parseRange()
		if err != nil {
			return nil, err
		}
		operands = append(operands, next)
	}

	if len(ops) == 0 {
		return first, nil
	}
	return &ChainedComparisonExpr{baseExpr: baseExpr{first.Location()}, Operands: operands, Ops: ops}, nil
}

// parseRange sits between comparison and additive; Open Question (a) in
// spec.md §9 resolves the ambiguous range/additive precedence by treating
// ranges as binding just below additive.
func (p *Parser) parseRange() (Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if p.Is(KindPunct, "..") || p.Is(KindPunct, "..=") {
		tok := p.Consume()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &BinaryExpr{baseExpr: baseExpr{tok.Loc}, Op: tok.Val, Left: left, Right: right}, nil
	}
	return left, nil
}

func (p *Parser) parseAdditive() (Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.Is(KindPunct, "+") || p.Is(KindPunct, "-") {
		tok := p.Consume()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{baseExpr: baseExpr{tok.Loc}, Op: tok.Val, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.Is(KindPunct, "*") || p.Is(KindPunct, "/") || p.Is(KindPunct, "%") {
		tok := p.Consume()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{baseExpr: baseExpr{tok.Loc}, Op: tok.Val, Left: left, Right: right}
	}
	return left, nil
}

// parseUnary handles symbolic `-x` / `!x` prefixes, at the tier just above
// power (so `-x^2` parses as `-(x^2)`).
func (p *Parser) parseUnary() (Expr, error) {
	if tok := p.MatchOne(KindPunct, "-", "!"); tok != nil {
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		op := "-"
		if tok.Val == "!" {
			op = "not"
		}
		return &UnaryExpr{baseExpr: baseExpr{tok.Loc}, Op: op, Operand: operand}, nil
	}
	return p.parsePower()
}

// parsePower is right-associative: `2^3^2` == `2^(3^2)`.
func (p *Parser) parsePower() (Expr, error) {
	left, err := p.parsePostfix()
	if err != nil {
		return nil, err
	}
	if tok := p.Match(KindPunct, "^"); tok != nil {
		right, err := p.parsePower()
		if err != nil {
			return nil, err
		}
		return &BinaryExpr{baseExpr: baseExpr{tok.Loc}, Op: "^", Left: left, Right: right}, nil
	}
	return left, nil
}

// parsePostfix chains call/member/subscript/optional-chain/propagate
// suffixes onto a primary expression.
func (p *Parser) parsePostfix() (Expr, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.Is(KindPunct, "."):
			tok := p.Consume()
			name, ok := p.expect(KindIdent, "", "member name")
			if !ok {
				return nil, p.errorf("expected member name after '.'")
			}
			expr = &MemberExpr{baseExpr: baseExpr{tok.Loc}, Object: expr, Name: name.Val}
		case p.Is(KindPunct, "?."):
			tok := p.Consume()
			name, ok := p.expect(KindIdent, "", "member name")
			if !ok {
				return nil, p.errorf("expected member name after '?.'")
			}
			expr = &MemberExpr{baseExpr: baseExpr{tok.Loc}, Object: expr, Name: name.Val, Optional: true}
		case p.Is(KindPunct, "("):
			expr, err = p.parseCallSuffix(expr)
			if err != nil {
				return nil, err
			}
		case p.Is(KindPunct, "["):
			expr, err = p.parseSubscriptOrSlice(expr)
			if err != nil {
				return nil, err
			}
		case p.Is(KindPunct, "?") && !p.IsN(1, KindPunct, "."):
			tok := p.Consume()
			expr = &PropagateExpr{baseExpr: baseExpr{tok.Loc}, Value: expr}
		default:
			return expr, nil
		}
	}
}

func (p *Parser) parseCallSuffix(callee Expr) (Expr, error) {
	tok, _ := p.expect(KindPunct, "(", "'('")
	var args []CallArg
	for !p.Is(KindPunct, ")") {
		arg, err := p.parseCallArg()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if !p.Match(KindPunct, ",") {
			break
		}
	}
	if _, ok := p.expect(KindPunct, ")", "')'"); !ok {
		return nil, p.errorf("unterminated argument list")
	}
	loc := callee.Location()
	if tok != nil {
		loc = tok.Loc
	}
	return &CallExpr{baseExpr: baseExpr{loc}, Callee: callee, Args: args}, nil
}

func (p *Parser) parseCallArg() (CallArg, error) {
	if tok := p.Match(KindPunct, "..."); tok != nil {
		val, err := p.ParseExpr()
		if err != nil {
			return CallArg{}, err
		}
		return CallArg{Spread: true, Value: val}, nil
	}
	// Named argument: `name: value`, distinguished from a bare expression
	// starting with an identifier by a following ':' that isn't part of a
	// larger expression (a ternary-like colon doesn't exist in this
	// grammar, so this lookahead is unambiguous).
	if p.Current() != nil && p.Current().Kind == KindIdent && p.IsN(1, KindPunct, ":") {
		name := p.Consume().Val
		p.Consume() // ':'
		val, err := p.ParseExpr()
		if err != nil {
			return CallArg{}, err
		}
		return CallArg{Name: name, Value: wrapImplicitIt(val)}, nil
	}
	val, err := p.ParseExpr()
	if err != nil {
		return CallArg{}, err
	}
	return CallArg{Value: wrapImplicitIt(val)}, nil
}

func (p *Parser) parseSubscriptOrSlice(obj Expr) (Expr, error) {
	tok, _ := p.expect(KindPunct, "[", "'['")
	var start, end, step Expr
	hasColon := false

	if !p.Is(KindPunct, ":") && !p.Is(KindPunct, "]") {
		e, err := p.ParseExpr()
		if err != nil {
			return nil, err
		}
		start = e
	}
	if p.Match(KindPunct, ":") != nil {
		hasColon = true
		if !p.Is(KindPunct, ":") && !p.Is(KindPunct, "]") {
			e, err := p.ParseExpr()
			if err != nil {
				return nil, err
			}
			end = e
		}
		if p.Match(KindPunct, ":") != nil {
			if !p.Is(KindPunct, "]") {
				e, err := p.ParseExpr()
				if err != nil {
					return nil, err
				}
				step = e
			}
		}
	}
	if _, ok := p.expect(KindPunct, "]", "']'"); !ok {
		return nil, p.errorf("unterminated subscript")
	}
	if hasColon {
		return &SliceExpr{baseExpr: baseExpr{tok.Loc}, Object: obj, Start: start, End: end, Step: step}, nil
	}
	return &SubscriptExpr{baseExpr: baseExpr{tok.Loc}, Object: obj, Index: start}, nil
}

func (p *Parser) parsePrimary() (Expr, error) {
	t := p.Current()
	if t == nil {
		return nil, p.errorf("unexpected end of file")
	}
	loc := t.Loc

	switch t.Kind {
	case KindInt:
		p.Consume()
		return &NumberExpr{baseExpr: baseExpr{loc}, Raw: t.Val, IsFloat: false}, nil
	case KindFloat:
		p.Consume()
		return &NumberExpr{baseExpr: baseExpr{loc}, Raw: t.Val, IsFloat: true}, nil
	case KindString:
		p.Consume()
		return &StringExpr{baseExpr: baseExpr{loc}, Value: t.Val}, nil
	case KindRawString:
		p.Consume()
		return &RawStringExpr{baseExpr: baseExpr{loc}, Value: t.Val}, nil
	case KindTemplateStr:
		p.Consume()
		return p.buildTemplateExpr(t)
	case KindRegex:
		p.Consume()
		pat, flags := splitRegexVal(t.Val)
		return &RegexExpr{baseExpr: baseExpr{loc}, Pattern: pat, Flags: flags}, nil
	case KindBool:
		p.Consume()
		return &BoolExpr{baseExpr: baseExpr{loc}, Value: t.Val == "true"}, nil
	case KindNil:
		p.Consume()
		return &NilExpr{baseExpr{loc}}, nil
	case KindIdent:
		p.Consume()
		return &IdentExpr{baseExpr: baseExpr{loc}, Name: t.Val}, nil
	case KindKeyword:
		switch t.Val {
		case "fn", "async":
			return p.parseLambda()
		case "match":
			return p.parseMatchExpr()
		case "if":
			return p.parseIfExpr()
		case "yield":
			p.Consume()
			if p.exprFollows() {
				v, err := p.ParseExpr()
				if err != nil {
					return nil, err
				}
				return &YieldExpr{baseExpr: baseExpr{loc}, Value: v}, nil
			}
			return &YieldExpr{baseExpr: baseExpr{loc}}, nil
		case "await":
			p.Consume()
			v, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			return &AwaitExpr{baseExpr: baseExpr{loc}, Value: v}, nil
		default:
			// degradable keywords used as plain identifiers in expression
			// position (§4.1: client/server/shared degrade to identifiers).
			if IsDegradable(t.Val) {
				p.Consume()
				return &IdentExpr{baseExpr: baseExpr{loc}, Name: t.Val}, nil
			}
			return nil, p.errorf("unexpected keyword %q in expression", t.Val)
		}
	case KindPunct:
		switch t.Val {
		case "(":
			return p.parseParenOrLambda()
		case "[":
			return p.parseArrayOrComprehension()
		case "{":
			return p.parseObjectOrComprehension()
		case "<":
			if p.jsxLooksLikeTag() {
				return p.parseJSXElement()
			}
		case "_":
			p.Consume()
			return &IdentExpr{baseExpr: baseExpr{loc}, Name: "_"}, nil
		case ".":
			// method-pipe form `x |> .method(args)`: the right side of |>
			// starts with a bare `.name`, its object filled in by the
			// pipe's left side at codegen time.
			p.Consume()
			name, ok := p.expect(KindIdent, "", "member name")
			if !ok {
				return nil, p.errorf("expected member name after '.'")
			}
			return &MemberExpr{baseExpr: baseExpr{loc}, Object: nil, Name: name.Val}, nil
		}
	}
	return nil, p.errorf("unexpected token %s", p.describeCurrent())
}

// exprFollows is a light lookahead used by `yield` to decide whether a
// value expression follows or the statement/expression ends here.
func (p *Parser) exprFollows() bool {
	if p.Current() == nil {
		return false
	}
	if p.Is(KindPunct, "}") || p.Is(KindPunct, ")") || p.Is(KindPunct, ",") || p.Is(KindPunct, ";") {
		return false
	}
	return true
}

func splitRegexVal(raw string) (pattern, flags string) {
	for i := 0; i < len(raw); i++ {
		if raw[i] == 0 {
			return raw[:i], raw[i+1:]
		}
	}
	return raw, ""
}

func (p *Parser) buildTemplateExpr(t *Token) (Expr, error) {
	te := &TemplateExpr{baseExpr: baseExpr{t.Loc}}
	for _, part := range t.TemplateParts {
		if !part.IsExpr {
			te.Parts = append(te.Parts, TemplateExprPart{Text: part.Text})
			continue
		}
		sub := NewLexer(part.Text, t.Loc.File)
		toks, err := sub.Tokenize()
		if err != nil {
			return nil, p.errorf("invalid expression in string interpolation: %v", err)
		}
		subParser := NewParser(toks, t.Loc.File)
		expr, err := subParser.ParseExpr()
		if err != nil {
			return nil, p.errorf("invalid expression in string interpolation: %v", err)
		}
		te.Parts = append(te.Parts, TemplateExprPart{IsExpr: true, Expr: expr})
	}
	return te, nil
}

// parseParenOrLambda disambiguates `(expr)` from `(x, y) => body`.
func (p *Parser) parseParenOrLambda() (Expr, error) {
	save := p.idx
	if params, ok := p.tryParseLambdaParams(); ok {
		if p.Match(KindPunct, "=>") != nil {
			return p.finishLambda(params, false)
		}
	}
	p.idx = save

	tok := p.Consume() // '('
	if p.Is(KindPunct, ")") {
		p.Consume()
		if p.Match(KindPunct, "=>") != nil {
			return p.finishLambda(nil, false)
		}
		return &TupleExpr{baseExpr: baseExpr{tok.Loc}}, nil
	}
	first, err := p.ParseExpr()
	if err != nil {
		return nil, err
	}
	if p.Is(KindPunct, ",") {
		elems := []Expr{first}
		for p.Match(KindPunct, ",") != nil {
			if p.Is(KindPunct, ")") {
				break
			}
			e, err := p.ParseExpr()
			if err != nil {
				return nil, err
			}
			elems = append(elems, e)
		}
		if _, ok := p.expect(KindPunct, ")", "')'"); !ok {
			return nil, p.errorf("unterminated tuple")
		}
		return &TupleExpr{baseExpr: baseExpr{tok.Loc}, Elements: elems}, nil
	}
	if _, ok := p.expect(KindPunct, ")", "')'"); !ok {
		return nil, p.errorf("expected ')' after expression")
	}
	return first, nil
}

// tryParseLambdaParams speculatively parses `(ident [: Type] [, ...])`
// without committing; callers roll back p.idx on failure.
func (p *Parser) tryParseLambdaParams() ([]string, bool) {
	if !p.Is(KindPunct, "(") {
		return nil, false
	}
	p.Consume()
	var names []string
	for !p.Is(KindPunct, ")") {
		if p.Current() == nil || p.Current().Kind != KindIdent {
			return nil, false
		}
		names = append(names, p.Consume().Val)
		if p.Match(KindPunct, ":") != nil {
			if !p.skipTypeExpr() {
				return nil, false
			}
		}
		if !p.Match(KindPunct, ",") {
			break
		}
	}
	if !p.Match(KindPunct, ")") {
		return nil, false
	}
	return names, true
}

// skipTypeExpr consumes a minimal type expression (identifier, possibly
// generic/array/union) purely for lambda-parameter disambiguation.
func (p *Parser) skipTypeExpr() bool {
	if p.Current() == nil {
		return false
	}
	if p.Current().Kind == KindIdent || p.Current().Kind == KindKeyword {
		p.Consume()
		return true
	}
	if p.Is(KindPunct, "[") {
		p.Consume()
		if !p.skipTypeExpr() {
			return false
		}
		return p.Match(KindPunct, "]") != nil
	}
	return false
}

func (p *Parser) finishLambda(params []string, isAsync bool) (Expr, error) {
	loc := p.locHere()
	if p.Is(KindPunct, "{") {
		block, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		return &LambdaExpr{baseExpr: baseExpr{loc}, Params: params, Block: block, IsAsync: isAsync}, nil
	}
	body, err := p.ParseExpr()
	if err != nil {
		return nil, err
	}
	return &LambdaExpr{baseExpr: baseExpr{loc}, Params: params, Body: body, IsAsync: isAsync}, nil
}

// parseLambda parses `fn(...) body` and `async fn(...) body`. Per Open
// Question (b) (spec.md §9), bare `async (x) => …` is not accepted — only
// `async fn(...)`.
func (p *Parser) parseLambda() (Expr, error) {
	isAsync := false
	if p.Match(KindKeyword, "async") != nil {
		isAsync = true
		if _, ok := p.expect(KindKeyword, "fn", "'fn'"); !ok {
			return nil, p.errorf("'async' lambda must use 'fn(...)'")
		}
	} else {
		p.Consume() // 'fn'
	}
	if _, ok := p.expect(KindPunct, "(", "'('"); !ok {
		return nil, p.errorf("expected '(' after fn")
	}
	var params []string
	for !p.Is(KindPunct, ")") {
		name, ok := p.expect(KindIdent, "", "parameter name")
		if !ok {
			return nil, p.errorf("expected parameter name")
		}
		params = append(params, name.Val)
		if p.Match(KindPunct, ":") != nil {
			p.skipTypeExpr()
		}
		if !p.Match(KindPunct, ",") {
			break
		}
	}
	if _, ok := p.expect(KindPunct, ")", "')'"); !ok {
		return nil, p.errorf("unterminated parameter list")
	}
	return p.finishLambda(params, isAsync)
}

func (p *Parser) parseIfExpr() (Expr, error) {
	tok := p.Consume() // 'if'
	cond, err := p.ParseExpr()
	if err != nil {
		return nil, err
	}
	if _, ok := p.expect(KindPunct, "{", "'{'"); !ok {
		return nil, p.errorf("expected '{' after if condition")
	}
	then, err := p.ParseExpr()
	if err != nil {
		return nil, err
	}
	if _, ok := p.expect(KindPunct, "}", "'}'"); !ok {
		return nil, p.errorf("expected '}' after if-expression body")
	}
	if _, ok := p.expect(KindKeyword, "else", "'else'"); !ok {
		return nil, p.errorf("if-expression requires an else branch")
	}
	if _, ok := p.expect(KindPunct, "{", "'{'"); !ok {
		return nil, p.errorf("expected '{' after else")
	}
	elseV, err := p.ParseExpr()
	if err != nil {
		return nil, err
	}
	if _, ok := p.expect(KindPunct, "}", "'}'"); !ok {
		return nil, p.errorf("expected '}' after else body")
	}
	return &IfExpr{baseExpr: baseExpr{tok.Loc}, Cond: cond, Then: then, Else: elseV}, nil
}

func (p *Parser) parseMatchExpr() (Expr, error) {
	tok := p.Consume() // 'match'
	subj, err := p.ParseExpr()
	if err != nil {
		return nil, err
	}
	if _, ok := p.expect(KindPunct, "{", "'{'"); !ok {
		return nil, p.errorf("expected '{' to start match body")
	}
	m := &MatchExpr{baseExpr: baseExpr{tok.Loc}, Subject: subj}
	for !p.Is(KindPunct, "}") {
		arm, err := p.parseMatchArm()
		if err != nil {
			return nil, err
		}
		m.Arms = append(m.Arms, arm)
		p.Match(KindPunct, ",")
	}
	if _, ok := p.expect(KindPunct, "}", "'}'"); !ok {
		return nil, p.errorf("unterminated match")
	}
	return m, nil
}

func (p *Parser) parseMatchArm() (MatchArm, error) {
	pat, err := p.parsePattern()
	if err != nil {
		return MatchArm{}, err
	}
	var guard Expr
	if p.Match(KindKeyword, "if") != nil {
		g, err := p.ParseExpr()
		if err != nil {
			return MatchArm{}, err
		}
		guard = g
	}
	if _, ok := p.expect(KindPunct, "=>", "'=>'"); !ok {
		return MatchArm{}, p.errorf("expected '=>' in match arm")
	}
	body, err := p.ParseExpr()
	if err != nil {
		return MatchArm{}, err
	}
	return MatchArm{Pattern: pat, Guard: guard, Body: body}, nil
}

func (p *Parser) parseArrayOrComprehension() (Expr, error) {
	tok := p.Consume() // '['
	if p.Is(KindPunct, "]") {
		p.Consume()
		return &ArrayExpr{baseExpr: baseExpr{tok.Loc}}, nil
	}
	first, err := p.ParseExpr()
	if err != nil {
		return nil, err
	}
	if p.Is(KindKeyword, "for") {
		return p.finishComprehension(tok.Loc, false, nil, first)
	}
	elems := []Expr{first}
	for p.Match(KindPunct, ",") != nil {
		if p.Is(KindPunct, "]") {
			break
		}
		e, err := p.ParseExpr()
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
	}
	if _, ok := p.expect(KindPunct, "]", "']'"); !ok {
		return nil, p.errorf("unterminated array literal")
	}
	return &ArrayExpr{baseExpr: baseExpr{tok.Loc}, Elements: elems}, nil
}

func (p *Parser) finishComprehension(loc Location, isDict bool, key, val Expr) (Expr, error) {
	if _, ok := p.expect(KindKeyword, "for", "'for'"); !ok {
		return nil, p.errorf("expected 'for' in comprehension")
	}
	var vars []string
	for {
		name, ok := p.expect(KindIdent, "", "loop variable")
		if !ok {
			return nil, p.errorf("expected loop variable")
		}
		vars = append(vars, name.Val)
		if !p.Match(KindPunct, ",") {
			break
		}
	}
	if _, ok := p.expect(KindKeyword, "in", "'in'"); !ok {
		return nil, p.errorf("expected 'in' in comprehension")
	}
	iter, err := p.ParseExpr()
	if err != nil {
		return nil, err
	}
	var cond Expr
	if p.Match(KindKeyword, "if") != nil {
		c, err := p.ParseExpr()
		if err != nil {
			return nil, err
		}
		cond = c
	}
	closeTok := "]"
	if isDict {
		closeTok = "}"
	}
	if _, ok := p.expect(KindPunct, closeTok, "'"+closeTok+"'"); !ok {
		return nil, p.errorf("unterminated comprehension")
	}
	return &ComprehensionExpr{baseExpr: baseExpr{loc}, IsDict: isDict, KeyExpr: key, ValExpr: val, Vars: vars, Iter: iter, Cond: cond}, nil
}

func (p *Parser) parseObjectOrComprehension() (Expr, error) {
	tok := p.Consume() // '{'
	if p.Is(KindPunct, "}") {
		p.Consume()
		return &ObjectExpr{baseExpr: baseExpr{tok.Loc}}, nil
	}
	// Peek: dict comprehension is `{ keyExpr: valExpr for ... }`.
	keyStart := p.idx
	key, err := p.parseObjectKey()
	if err == nil && p.Match(KindPunct, ":") != nil {
		val, err := p.ParseExpr()
		if err != nil {
			return nil, err
		}
		if p.Is(KindKeyword, "for") {
			return p.finishComprehension(tok.Loc, true, key, val)
		}
		entries := []ObjectEntry{{Key: key, Value: val}}
		for p.Match(KindPunct, ",") != nil {
			if p.Is(KindPunct, "}") {
				break
			}
			e, err := p.parseObjectEntry()
			if err != nil {
				return nil, err
			}
			entries = append(entries, e)
		}
		if _, ok := p.expect(KindPunct, "}", "'}'"); !ok {
			return nil, p.errorf("unterminated object literal")
		}
		return &ObjectExpr{baseExpr: baseExpr{tok.Loc}, Entries: entries}, nil
	}
	p.idx = keyStart
	var entries []ObjectEntry
	for !p.Is(KindPunct, "}") {
		e, err := p.parseObjectEntry()
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
		if !p.Match(KindPunct, ",") {
			break
		}
	}
	if _, ok := p.expect(KindPunct, "}", "'}'"); !ok {
		return nil, p.errorf("unterminated object literal")
	}
	return &ObjectExpr{baseExpr: baseExpr{tok.Loc}, Entries: entries}, nil
}

func (p *Parser) parseObjectKey() (Expr, error) {
	if p.Is(KindPunct, "[") {
		p.Consume()
		e, err := p.ParseExpr()
		if err != nil {
			return nil, err
		}
		if _, ok := p.expect(KindPunct, "]", "']'"); !ok {
			return nil, p.errorf("unterminated computed key")
		}
		return e, nil
	}
	if p.Current() != nil && (p.Current().Kind == KindIdent || p.Current().Kind == KindKeyword) {
		tok := p.Consume()
		return &IdentExpr{baseExpr: baseExpr{tok.Loc}, Name: tok.Val}, nil
	}
	if p.Current() != nil && p.Current().Kind == KindString {
		tok := p.Consume()
		return &StringExpr{baseExpr: baseExpr{tok.Loc}, Value: tok.Val}, nil
	}
	return nil, p.errorf("expected object key")
}

func (p *Parser) parseObjectEntry() (ObjectEntry, error) {
	computed := p.Is(KindPunct, "[")
	key, err := p.parseObjectKey()
	if err != nil {
		return ObjectEntry{}, err
	}
	if p.Match(KindPunct, ":") == nil {
		// shorthand `{ name }`
		if id, ok := key.(*IdentExpr); ok {
			return ObjectEntry{Key: key, Value: &IdentExpr{baseExpr: baseExpr{id.Loc}, Name: id.Name}}, nil
		}
		return ObjectEntry{}, p.errorf("expected ':' after object key")
	}
	val, err := p.ParseExpr()
	if err != nil {
		return ObjectEntry{}, err
	}
	return ObjectEntry{Key: key, Computed: computed, Value: val}, nil
}

// wrapImplicitIt implements §4.2's implicit-`it` sugar: a call argument
// subtree that references the free identifier `it` (and isn't itself a
// bare `it` or already a lambda) is wrapped in a unary `(it) => …` lambda
// at parse time, so source locations line up exactly (per the design note
// in §9). Idempotent: an already-wrapped (or bare-`it`, or lambda)
// argument passes through unchanged.
func wrapImplicitIt(arg Expr) Expr {
	if _, ok := arg.(*LambdaExpr); ok {
		return arg
	}
	if id, ok := arg.(*IdentExpr); ok && id.Name == "it" {
		return arg
	}
	if !exprReferencesIt(arg) {
		return arg
	}
	return &LambdaExpr{baseExpr: baseExpr{arg.Location()}, Params: []string{"it"}, Body: arg, Implicit: true}
}

// exprReferencesIt walks e looking for a free (non-lambda-bound)
// reference to `it`, not descending into nested lambda bodies (their `it`
// would refer to the inner lambda's own parameter).
func exprReferencesIt(e Expr) bool {
	switch n := e.(type) {
	case nil:
		return false
	case *IdentExpr:
		return n.Name == "it"
	case *UnaryExpr:
		return exprReferencesIt(n.Operand)
	case *BinaryExpr:
		return exprReferencesIt(n.Left) || exprReferencesIt(n.Right)
	case *LogicalExpr:
		return exprReferencesIt(n.Left) || exprReferencesIt(n.Right)
	case *ChainedComparisonExpr:
		for _, o := range n.Operands {
			if exprReferencesIt(o) {
				return true
			}
		}
		return false
	case *MemberExpr:
		return exprReferencesIt(n.Object)
	case *SubscriptExpr:
		return exprReferencesIt(n.Object) || exprReferencesIt(n.Index)
	case *SliceExpr:
		return exprReferencesIt(n.Object) || exprReferencesIt(n.Start) || exprReferencesIt(n.End) || exprReferencesIt(n.Step)
	case *CallExpr:
		if exprReferencesIt(n.Callee) {
			return true
		}
		for _, a := range n.Args {
			if exprReferencesIt(a.Value) {
				return true
			}
		}
		return false
	case *PipeExpr:
		return exprReferencesIt(n.Left) || exprReferencesIt(n.Call)
	case *LambdaExpr:
		return false // lambda boundary: its own `it` (implicit or explicit) shadows
	case *MatchExpr:
		if exprReferencesIt(n.Subject) {
			return true
		}
		for _, arm := range n.Arms {
			if exprReferencesIt(arm.Guard) || exprReferencesIt(arm.Body) {
				return true
			}
		}
		return false
	case *IfExpr:
		return exprReferencesIt(n.Cond) || exprReferencesIt(n.Then) || exprReferencesIt(n.Else)
	case *YieldExpr:
		return exprReferencesIt(n.Value)
	case *AwaitExpr:
		return exprReferencesIt(n.Value)
	case *PropagateExpr:
		return exprReferencesIt(n.Value)
	case *ArrayExpr:
		for _, el := range n.Elements {
			if exprReferencesIt(el) {
				return true
			}
		}
		return false
	case *TupleExpr:
		for _, el := range n.Elements {
			if exprReferencesIt(el) {
				return true
			}
		}
		return false
	case *ObjectExpr:
		for _, ent := range n.Entries {
			if exprReferencesIt(ent.Value) || (ent.Computed && exprReferencesIt(ent.Key)) {
				return true
			}
		}
		return false
	case *ComprehensionExpr:
		return exprReferencesIt(n.KeyExpr) || exprReferencesIt(n.ValExpr) || exprReferencesIt(n.Iter) || exprReferencesIt(n.Cond)
	case *TemplateExpr:
		for _, part := range n.Parts {
			if part.IsExpr && exprReferencesIt(part.Expr) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// jsxLooksLikeTag is a shallow lookahead: `<` starts a JSX primary when
// followed by an identifier (uppercase, or any case inside client/component
// contexts — the parser doesn't distinguish at this lexical-lookahead
// stage, deferring case-based validation to the analyzer) and then either
// another identifier/attribute-shaped token or `>`/`/>`.
func (p *Parser) jsxLooksLikeTag() bool {
	if !p.IsN(1, KindIdent, "") {
		return false
	}
	t2 := p.PeekN(2)
	if t2 == nil {
		return false
	}
	if t2.Kind == KindIdent || (t2.Kind == KindPunct && (t2.Val == ">" || t2.Val == "/" || t2.Val == ":")) {
		return true
	}
	return false
}

