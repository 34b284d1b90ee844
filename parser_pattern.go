package tovac

// parsePattern parses one match-arm or destructuring pattern (§4.1/§4.2).
func (p *Parser) parsePattern() (Pattern, error) {
	t := p.Current()
	if t == nil {
		return nil, p.errorf("unexpected end of file in pattern")
	}
	loc := t.Loc

	switch {
	case t.Kind == KindPunct && t.Val == "_":
		p.Consume()
		return &WildcardPattern{basePattern{loc}}, nil

	case t.Kind == KindInt || t.Kind == KindFloat:
		lit, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		return p.maybeRangePattern(loc, lit)

	case t.Kind == KindString:
		p.Consume()
		if p.Is(KindPunct, "++") {
			p.Consume()
			rest := ""
			if p.Current() != nil && p.Current().Kind == KindIdent {
				restTok := p.Consume()
				if restTok.Val != "_" {
					rest = restTok.Val
				}
			} else if p.Match(KindPunct, "_") != nil {
				// bare `_` rest, binds nothing
			} else {
				return nil, p.errorf("expected binding name or '_' after '++' in pattern")
			}
			return &StringConcatPattern{basePattern: basePattern{loc}, Prefix: t.Val, Rest: rest}, nil
		}
		return &LiteralPattern{basePattern: basePattern{loc}, Value: &StringExpr{baseExpr: baseExpr{loc}, Value: t.Val}}, nil

	case t.Kind == KindBool:
		p.Consume()
		return &LiteralPattern{basePattern: basePattern{loc}, Value: &BoolExpr{baseExpr: baseExpr{loc}, Value: t.Val == "true"}}, nil

	case t.Kind == KindNil:
		p.Consume()
		return &LiteralPattern{basePattern: basePattern{loc}, Value: &NilExpr{baseExpr{loc}}}, nil

	case t.Kind == KindPunct && t.Val == "-":
		// negative numeric literal pattern, e.g. `-1 => ...`
		lit, err := p.parsePrimary2NegativeNumber()
		if err != nil {
			return nil, err
		}
		return p.maybeRangePattern(loc, lit)

	case t.Kind == KindPunct && t.Val == "[":
		return p.parseArrayPattern()

	case t.Kind == KindPunct && t.Val == "{":
		return p.parseObjectPattern()

	case t.Kind == KindIdent:
		name := p.Consume().Val
		if p.Is(KindPunct, "{") || (p.Is(KindPunct, "(")) {
			return p.parseVariantPattern(loc, name)
		}
		return &BindingPattern{basePattern: basePattern{loc}, Name: name}, nil

	default:
		return nil, p.errorf("unexpected token %s in pattern", p.describeCurrent())
	}
}

func (p *Parser) parsePrimary2NegativeNumber() (Expr, error) {
	tok := p.Consume() // '-'
	if p.Current() == nil || (p.Current().Kind != KindInt && p.Current().Kind != KindFloat) {
		return nil, p.errorf("expected number after '-' in pattern")
	}
	numTok := p.Consume()
	return &NumberExpr{baseExpr: baseExpr{tok.Loc}, Raw: "-" + numTok.Val, IsFloat: numTok.Kind == KindFloat}, nil
}

// maybeRangePattern checks for a trailing `..`/`..=` turning a literal
// into a RangePattern.
func (p *Parser) maybeRangePattern(loc Location, low Expr) (Pattern, error) {
	inclusive := false
	if p.Is(KindPunct, "..=") {
		inclusive = true
	} else if !p.Is(KindPunct, "..") {
		return &LiteralPattern{basePattern: basePattern{loc}, Value: low}, nil
	}
	p.Consume()
	var high Expr
	var err error
	if p.Is(KindPunct, "-") {
		high, err = p.parsePrimary2NegativeNumber()
	} else {
		high, err = p.parsePrimary()
	}
	if err != nil {
		return nil, err
	}
	return &RangePattern{basePattern: basePattern{loc}, Low: low, High: high, Inclusive: inclusive}, nil
}

func (p *Parser) parseVariantPattern(loc Location, name string) (Pattern, error) {
	vp := &VariantPattern{basePattern: basePattern{loc}, Name: name}
	if p.Match(KindPunct, "(") != nil {
		for !p.Is(KindPunct, ")") {
			sub, err := p.parsePattern()
			if err != nil {
				return nil, err
			}
			vp.Fields = append(vp.Fields, sub)
			if !p.Match(KindPunct, ",") {
				break
			}
		}
		if _, ok := p.expect(KindPunct, ")", "')'"); !ok {
			return nil, p.errorf("unterminated variant pattern")
		}
		return vp, nil
	}
	if p.Match(KindPunct, "{") != nil {
		for !p.Is(KindPunct, "}") {
			fieldName, ok := p.expect(KindIdent, "", "field name")
			if !ok {
				return nil, p.errorf("expected field name in variant pattern")
			}
			vp.FieldNames = append(vp.FieldNames, fieldName.Val)
			if p.Match(KindPunct, ":") != nil {
				sub, err := p.parsePattern()
				if err != nil {
					return nil, err
				}
				vp.Fields = append(vp.Fields, sub)
			} else {
				vp.Fields = append(vp.Fields, &BindingPattern{basePattern: basePattern{fieldName.Loc}, Name: fieldName.Val})
			}
			if !p.Match(KindPunct, ",") {
				break
			}
		}
		if _, ok := p.expect(KindPunct, "}", "'}'"); !ok {
			return nil, p.errorf("unterminated variant pattern")
		}
	}
	return vp, nil
}

func (p *Parser) parseArrayPattern() (Pattern, error) {
	tok, _ := p.expect(KindPunct, "[", "'['")
	ap := &ArrayPattern{basePattern: basePattern{tok.Loc}}
	for !p.Is(KindPunct, "]") {
		if p.Match(KindPunct, "...") != nil {
			name, ok := p.expect(KindIdent, "", "rest binding name")
			if !ok {
				return nil, p.errorf("expected binding name after '...' in array pattern")
			}
			ap.Rest = name.Val
			break
		}
		sub, err := p.parsePattern()
		if err != nil {
			return nil, err
		}
		ap.Elements = append(ap.Elements, sub)
		if !p.Match(KindPunct, ",") {
			break
		}
	}
	if _, ok := p.expect(KindPunct, "]", "']'"); !ok {
		return nil, p.errorf("unterminated array pattern")
	}
	return ap, nil
}

func (p *Parser) parseObjectPattern() (Pattern, error) {
	tok, _ := p.expect(KindPunct, "{", "'{'")
	op := &ObjectPattern{basePattern: basePattern{tok.Loc}}
	for !p.Is(KindPunct, "}") {
		name, ok := p.expect(KindIdent, "", "field name")
		if !ok {
			return nil, p.errorf("expected field name in object pattern")
		}
		field := ObjectPatternField{Key: name.Val}
		if p.Match(KindPunct, ":") != nil {
			sub, err := p.parsePattern()
			if err != nil {
				return nil, err
			}
			field.Value = sub
		}
		if p.Match(KindPunct, "=") != nil {
			def, err := p.ParseExpr()
			if err != nil {
				return nil, err
			}
			field.Default = def
		}
		op.Fields = append(op.Fields, field)
		if !p.Match(KindPunct, ",") {
			break
		}
	}
	if _, ok := p.expect(KindPunct, "}", "'}'"); !ok {
		return nil, p.errorf("unterminated object pattern")
	}
	return op, nil
}
