package tovac

// parseJSXElement parses a JSX element or fragment starting at the `<`
// token. Tag disambiguation (deciding that a `<` starts JSX rather than a
// comparison) happens one level up in parsePrimary via jsxLooksLikeTag.
func (p *Parser) parseJSXElement() (Expr, error) {
	tok, ok := p.expect(KindPunct, "<", "'<'")
	if !ok {
		return nil, p.errorf("expected '<'")
	}

	if p.Is(KindPunct, ">") {
		p.Consume()
		children, err := p.parseJSXChildren()
		if err != nil {
			return nil, err
		}
		if err := p.expectJSXClose(""); err != nil {
			return nil, err
		}
		return &JSXFragment{baseExpr: baseExpr{tok.Loc}, Children: children}, nil
	}

	nameTok, ok := p.expect(KindIdent, "", "tag name")
	if !ok {
		return nil, p.errorf("expected JSX tag name")
	}
	el := &JSXElement{baseExpr: baseExpr{tok.Loc}, Tag: nameTok.Val}

	for !p.Is(KindPunct, ">") && !p.Is(KindPunct, "/") {
		if p.atEOF() {
			return nil, p.errorf("unterminated JSX opening tag <%s>", el.Tag)
		}
		attr, err := p.parseJSXAttr()
		if err != nil {
			return nil, err
		}
		el.Attrs = append(el.Attrs, attr)
	}

	if p.Match(KindPunct, "/") != nil {
		if _, ok := p.expect(KindPunct, ">", "'>'"); !ok {
			return nil, p.errorf("expected '>' after self-closing '/'")
		}
		return el, nil
	}
	if _, ok := p.expect(KindPunct, ">", "'>'"); !ok {
		return nil, p.errorf("expected '>' to close opening tag <%s>", el.Tag)
	}

	children, err := p.parseJSXChildren()
	if err != nil {
		return nil, err
	}
	el.Children = children
	if err := p.expectJSXClose(el.Tag); err != nil {
		return nil, err
	}
	return el, nil
}

// expectJSXClose consumes `</name>` (or `</>` when name == "") and reports
// a mismatched-tag error per §4.2/§8 if a non-empty name doesn't match.
func (p *Parser) expectJSXClose(name string) error {
	if _, ok := p.expect(KindPunct, "<", "'<'"); !ok {
		return p.errorf("expected closing tag")
	}
	if _, ok := p.expect(KindPunct, "/", "'/'"); !ok {
		return p.errorf("expected '/' in closing tag")
	}
	if name == "" {
		if _, ok := p.expect(KindPunct, ">", "'>'"); !ok {
			return p.errorf("expected '>' to close fragment")
		}
		return nil
	}
	closeTok, ok := p.expect(KindIdent, "", "closing tag name")
	if !ok {
		return p.errorf("expected closing tag name for <%s>", name)
	}
	if closeTok.Val != name {
		return p.errorf("mismatched closing tag: expected </%s>, got </%s>", name, closeTok.Val)
	}
	if _, ok := p.expect(KindPunct, ">", "'>'"); !ok {
		return p.errorf("expected '>' to close </%s>", name)
	}
	return nil
}

func (p *Parser) parseJSXAttr() (JSXAttr, error) {
	if p.Match(KindPunct, "...") != nil {
		val, err := p.ParseExpr()
		if err != nil {
			return JSXAttr{}, err
		}
		return JSXAttr{Spread: true, Value: val}, nil
	}
	nameTok, ok := p.expect(KindIdent, "", "attribute name")
	if !ok {
		return JSXAttr{}, p.errorf("expected attribute name")
	}
	attrName := nameTok.Val
	if p.Match(KindPunct, ":") != nil {
		subTok, ok := p.expect(KindIdent, "", "attribute name")
		if !ok {
			return JSXAttr{}, p.errorf("expected attribute name after ':'")
		}
		attrName += ":" + subTok.Val
	}
	if p.Match(KindPunct, "=") == nil {
		return JSXAttr{Name: attrName}, nil
	}
	if p.Match(KindPunct, "{") != nil {
		val, err := p.ParseExpr()
		if err != nil {
			return JSXAttr{}, err
		}
		if _, ok := p.expect(KindPunct, "}", "'}'"); !ok {
			return JSXAttr{}, p.errorf("expected '}' after attribute expression")
		}
		return JSXAttr{Name: attrName, Value: val}, nil
	}
	strTok, ok := p.expect(KindString, "", "attribute value")
	if !ok {
		return JSXAttr{}, p.errorf("expected attribute value")
	}
	return JSXAttr{Name: attrName, Value: &StringExpr{baseExpr: baseExpr{strTok.Loc}, Value: strTok.Val}}, nil
}

// parseJSXChildren parses children up to (but not consuming) the next
// closing tag's `</`. Plain text support is limited to string literals and
// single identifier/keyword/number tokens, since the lexer tokenizes JSX
// bodies the same way as the rest of the language rather than switching
// into a dedicated text-run mode.
func (p *Parser) parseJSXChildren() ([]Expr, error) {
	var children []Expr
	for {
		if p.atEOF() {
			return nil, p.errorf("unterminated JSX children")
		}
		if p.Is(KindPunct, "<") && p.IsN(1, KindPunct, "/") {
			return children, nil
		}
		if p.Is(KindPunct, "<") {
			el, err := p.parseJSXElement()
			if err != nil {
				return nil, err
			}
			children = append(children, el)
			continue
		}
		if p.Match(KindPunct, "{") != nil {
			switch {
			case p.Is(KindKeyword, "for"):
				forNode, err := p.parseJSXFor()
				if err != nil {
					return nil, err
				}
				children = append(children, forNode)
			case p.Is(KindKeyword, "if"):
				ifNode, err := p.parseJSXIf()
				if err != nil {
					return nil, err
				}
				children = append(children, ifNode)
			default:
				loc := p.locHere()
				val, err := p.ParseExpr()
				if err != nil {
					return nil, err
				}
				children = append(children, &JSXExprChild{baseExpr: baseExpr{loc}, Value: val})
			}
			if _, ok := p.expect(KindPunct, "}", "'}'"); !ok {
				return nil, p.errorf("expected '}' to close JSX expression child")
			}
			continue
		}
		if p.Current().Kind == KindString {
			tok := p.Consume()
			children = append(children, &JSXText{baseExpr: baseExpr{tok.Loc}, Text: tok.Val})
			continue
		}
		if p.Current().Kind == KindIdent || p.Current().Kind == KindKeyword || p.Current().Kind == KindInt || p.Current().Kind == KindFloat {
			tok := p.Consume()
			children = append(children, &JSXText{baseExpr: baseExpr{tok.Loc}, Text: tok.Val})
			continue
		}
		return nil, p.errorf("unexpected token %s in JSX children", p.describeCurrent())
	}
}

// parseJSXFor parses `for v in iter [key={expr}] { children }` assuming
// the leading `{` has already been consumed by parseJSXChildren.
func (p *Parser) parseJSXFor() (Expr, error) {
	tok := p.Consume() // 'for'
	loc := tok.Loc
	name, ok := p.expect(KindIdent, "", "loop variable")
	if !ok {
		return nil, p.errorf("expected loop variable in JSX for")
	}
	if _, ok := p.expect(KindKeyword, "in", "'in'"); !ok {
		return nil, p.errorf("expected 'in' in JSX for")
	}
	iter, err := p.ParseExpr()
	if err != nil {
		return nil, err
	}
	var keyExpr Expr
	if p.Current() != nil && p.Current().Kind == KindIdent && p.Current().Val == "key" && p.IsN(1, KindPunct, "=") {
		p.Consume() // 'key'
		p.Consume() // '='
		if _, ok := p.expect(KindPunct, "{", "'{'"); !ok {
			return nil, p.errorf("expected '{' after key=")
		}
		keyExpr, err = p.ParseExpr()
		if err != nil {
			return nil, err
		}
		if _, ok := p.expect(KindPunct, "}", "'}'"); !ok {
			return nil, p.errorf("expected '}' after key expression")
		}
	}
	if _, ok := p.expect(KindPunct, "{", "'{'"); !ok {
		return nil, p.errorf("expected '{' to start JSX for body")
	}
	body, err := p.parseJSXChildren()
	if err != nil {
		return nil, err
	}
	if _, ok := p.expect(KindPunct, "}", "'}'"); !ok {
		return nil, p.errorf("expected '}' to close JSX for body")
	}
	return &JSXFor{baseExpr: baseExpr{loc}, Var: name.Val, Iter: iter, KeyExpr: keyExpr, Body: body}, nil
}

// parseJSXIf parses `if cond { ... } [else if cond { ... }]* [else { ... }]`
// assuming the leading `{` has already been consumed.
func (p *Parser) parseJSXIf() (Expr, error) {
	tok := p.Consume() // 'if'
	loc := tok.Loc
	jif := &JSXIf{baseExpr: baseExpr{loc}}

	cond, err := p.ParseExpr()
	if err != nil {
		return nil, err
	}
	if _, ok := p.expect(KindPunct, "{", "'{'"); !ok {
		return nil, p.errorf("expected '{' to start JSX if body")
	}
	body, err := p.parseJSXChildren()
	if err != nil {
		return nil, err
	}
	if _, ok := p.expect(KindPunct, "}", "'}'"); !ok {
		return nil, p.errorf("expected '}' to close JSX if body")
	}
	jif.Branches = append(jif.Branches, JSXIfBranch{Cond: cond, Body: body})

	for p.Match(KindKeyword, "else") != nil {
		if p.Match(KindKeyword, "if") != nil {
			c, err := p.ParseExpr()
			if err != nil {
				return nil, err
			}
			if _, ok := p.expect(KindPunct, "{", "'{'"); !ok {
				return nil, p.errorf("expected '{' to start JSX else-if body")
			}
			b, err := p.parseJSXChildren()
			if err != nil {
				return nil, err
			}
			if _, ok := p.expect(KindPunct, "}", "'}'"); !ok {
				return nil, p.errorf("expected '}' to close JSX else-if body")
			}
			jif.Branches = append(jif.Branches, JSXIfBranch{Cond: c, Body: b})
			continue
		}
		if _, ok := p.expect(KindPunct, "{", "'{'"); !ok {
			return nil, p.errorf("expected '{' to start JSX else body")
		}
		b, err := p.parseJSXChildren()
		if err != nil {
			return nil, err
		}
		if _, ok := p.expect(KindPunct, "}", "'}'"); !ok {
			return nil, p.errorf("expected '}' to close JSX else body")
		}
		jif.Branches = append(jif.Branches, JSXIfBranch{Cond: nil, Body: b})
		break
	}
	return jif, nil
}
