package tovac

import "strings"

// parseDecl dispatches one top-level or block-level declaration. Called
// both directly from Parse()/parseTopLevel() and, recursively, from
// parseBlockMember() for declarations nested inside a shared/server/
// client/security/test block.
func (p *Parser) parseDecl() (Decl, error) {
	t := p.Current()
	if t == nil {
		return nil, p.errorf("unexpected end of file")
	}
	doc := t.Docstring

	if t.Kind == KindKeyword && t.Val == "pub" {
		p.Consume()
		d, err := p.parseDecl()
		if err != nil {
			return nil, err
		}
		markPublic(d)
		attachDocstring(d, doc)
		return d, nil
	}

	var d Decl
	var err error
	switch {
	case t.Kind == KindKeyword && t.Val == "import":
		d, err = p.parseImportDecl()
	case t.Kind == KindKeyword && (t.Val == "fn" || t.Val == "async"):
		d, err = p.parseFunctionDecl()
	case t.Kind == KindKeyword && (t.Val == "var" || t.Val == "let"):
		d, err = p.parseVarDeclCore()
	case t.Kind == KindKeyword && t.Val == "type":
		d, err = p.parseTypeDecl()
	case t.Kind == KindKeyword && t.Val == "interface":
		d, err = p.parseInterfaceDecl()
	case t.Kind == KindKeyword && t.Val == "trait":
		d, err = p.parseTraitDecl()
	case t.Kind == KindKeyword && t.Val == "impl":
		d, err = p.parseImplDecl()
	case t.Kind == KindKeyword && t.Val == "route":
		d, err = p.parseRouteDecl()
	case t.Kind == KindKeyword && (t.Val == "shared" || t.Val == "server" || t.Val == "client" || t.Val == "security" || t.Val == "test"):
		d, err = p.parseBlockDecl()
	default:
		return nil, p.errorf("expected declaration, got %s", p.describeCurrent())
	}
	if err != nil {
		return nil, err
	}
	attachDocstring(d, doc)
	return d, nil
}

func markPublic(d Decl) {
	switch n := d.(type) {
	case *FunctionDecl:
		n.IsPublic = true
	case *TypeDecl:
		n.IsPublic = true
	}
}

func attachDocstring(d Decl, doc string) {
	if doc == "" {
		return
	}
	switch n := d.(type) {
	case *FunctionDecl:
		if n.Docstring == "" {
			n.Docstring = doc
		}
	case *TypeDecl:
		if n.Docstring == "" {
			n.Docstring = doc
		}
	}
}

func (p *Parser) parseImportDecl() (Decl, error) {
	tok := p.Consume() // 'import'
	pathTok, ok := p.expect(KindString, "", "import path")
	if !ok {
		return nil, p.errorf("expected import path string")
	}
	decl := &ImportDecl{baseDecl: baseDecl{tok.Loc}, Path: pathTok.Val}
	if p.Match(KindKeyword, "as") != nil {
		name, ok := p.expect(KindIdent, "", "import alias")
		if !ok {
			return nil, p.errorf("expected alias after 'as'")
		}
		decl.Alias = name.Val
	}
	if p.Match(KindKeyword, "with") != nil {
		for {
			name, ok := p.expect(KindIdent, "", "imported member")
			if !ok {
				return nil, p.errorf("expected member name after 'with'")
			}
			decl.Members = append(decl.Members, name.Val)
			if !p.Match(KindPunct, ",") {
				break
			}
		}
	}
	return decl, nil
}

// parseFunctionDecl parses `[async] fn name[<T>](params) [-> Type] { ... }`.
// Used for top-level functions, block-nested functions, and impl methods.
func (p *Parser) parseFunctionDecl() (*FunctionDecl, error) {
	isAsync := false
	tok := p.Current()
	if p.Match(KindKeyword, "async") != nil {
		isAsync = true
		tok = p.Current()
	}
	if _, ok := p.expect(KindKeyword, "fn", "'fn'"); !ok {
		return nil, p.errorf("expected 'fn'")
	}
	name, ok := p.expect(KindIdent, "", "function name")
	if !ok {
		return nil, p.errorf("expected function name")
	}
	typeParams, err := p.parseOptionalTypeParams()
	if err != nil {
		return nil, err
	}
	generator := p.Match(KindPunct, "*") != nil
	params, err := p.parseParams()
	if err != nil {
		return nil, err
	}
	var ret string
	if p.Match(KindPunct, "->") != nil {
		ret = p.parseTypeExprString()
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &FunctionDecl{
		baseStmt:   baseStmt{tok.Loc},
		Name:       name.Val,
		Params:     params,
		TypeParams: typeParams,
		ReturnType: ret,
		Body:       body,
		IsAsync:    isAsync,
		Generator:  generator,
	}, nil
}

func (p *Parser) parseOptionalTypeParams() ([]string, error) {
	if p.Match(KindPunct, "<") == nil {
		return nil, nil
	}
	var params []string
	for !p.Is(KindPunct, ">") {
		name, ok := p.expect(KindIdent, "", "type parameter")
		if !ok {
			return nil, p.errorf("expected type parameter name")
		}
		params = append(params, name.Val)
		if !p.Match(KindPunct, ",") {
			break
		}
	}
	if _, ok := p.expect(KindPunct, ">", "'>'"); !ok {
		return nil, p.errorf("unterminated type parameter list")
	}
	return params, nil
}

func (p *Parser) parseParams() ([]Param, error) {
	if _, ok := p.expect(KindPunct, "(", "'('"); !ok {
		return nil, p.errorf("expected '('")
	}
	var params []Param
	for !p.Is(KindPunct, ")") {
		variadic := p.Match(KindPunct, "...") != nil
		name, ok := p.expect(KindIdent, "", "parameter name")
		if !ok {
			return nil, p.errorf("expected parameter name")
		}
		param := Param{Name: name.Val, Variadic: variadic}
		if p.Match(KindPunct, ":") != nil {
			param.Type = p.parseTypeExprString()
		}
		if p.Match(KindPunct, "=") != nil {
			def, err := p.ParseExpr()
			if err != nil {
				return nil, err
			}
			param.Default = def
		}
		params = append(params, param)
		if !p.Match(KindPunct, ",") {
			break
		}
	}
	if _, ok := p.expect(KindPunct, ")", "')'"); !ok {
		return nil, p.errorf("unterminated parameter list")
	}
	return params, nil
}

// parseTypeExprString consumes a type annotation and renders it back as a
// string of its tokens joined by single spaces (e.g. "Array [ User ]",
// "Int | String"). A `->` outside brackets ends the annotation, so
// `fn(Int) -> Bool` renders as "fn ( Int )".
// The analyzer's type-compatibility pass (analyzer_types.go) parses this
// string form rather than the parser building a full type-expression AST,
// keeping the grammar's type-annotation surface lightweight the way the
// rest of this declaration surface favors a generic shape over one bespoke
// node per construct.
func (p *Parser) parseTypeExprString() string {
	var b strings.Builder
	depth := 0
	for p.Current() != nil {
		t := p.Current()
		if depth == 0 && t.Kind == KindPunct {
			switch t.Val {
			case ",", ")", "{", "=", "->", ";", "=>":
				return strings.TrimSpace(b.String())
			}
		}
		if t.Kind == KindPunct {
			switch t.Val {
			case "[", "(", "<":
				depth++
			case "]", ")", ">":
				if depth == 0 {
					return strings.TrimSpace(b.String())
				}
				depth--
			}
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(t.Val)
		p.Consume()
	}
	return strings.TrimSpace(b.String())
}

// parseVariantDef parses one `Name[(field[: Type], ...)]` sum-type variant.
func (p *Parser) parseVariantDef() (TypeVariant, error) {
	name, ok := p.expect(KindIdent, "", "variant name")
	if !ok {
		return TypeVariant{}, p.errorf("expected variant name")
	}
	v := TypeVariant{Name: name.Val}
	if p.Match(KindPunct, "(") != nil {
		for !p.Is(KindPunct, ")") {
			fieldName := ""
			if p.Current() != nil && p.Current().Kind == KindIdent && p.IsN(1, KindPunct, ":") {
				fieldName = p.Consume().Val
				p.Consume() // ':'
			}
			ftype := p.parseTypeExprString()
			v.Fields = append(v.Fields, TypeField{Name: fieldName, Type: ftype})
			if !p.Match(KindPunct, ",") {
				break
			}
		}
		if _, ok := p.expect(KindPunct, ")", "')'"); !ok {
			return TypeVariant{}, p.errorf("unterminated variant fields")
		}
	}
	return v, nil
}

func (p *Parser) parseOptionalDerive() ([]string, error) {
	if p.Match(KindKeyword, "derive") == nil {
		return nil, nil
	}
	if _, ok := p.expect(KindPunct, "(", "'('"); !ok {
		return nil, p.errorf("expected '(' after derive")
	}
	var names []string
	for !p.Is(KindPunct, ")") {
		name, ok := p.expect(KindIdent, "", "trait name")
		if !ok {
			return nil, p.errorf("expected trait name in derive list")
		}
		names = append(names, name.Val)
		if !p.Match(KindPunct, ",") {
			break
		}
	}
	if _, ok := p.expect(KindPunct, ")", "')'"); !ok {
		return nil, p.errorf("unterminated derive list")
	}
	return names, nil
}

// parseTypeDecl parses both product types (`type Name { field: Type, ... }`)
// and sum types (`type Name = Variant | Variant(...) | ...`), disambiguated
// by whether more than one `|`-separated variant is present or the sole
// variant carries fields — a bare single no-field variant is instead
// folded into a TypeAliasDecl, since `type X = Y` with no fields and no
// alternatives is indistinguishable from "X is another name for Y".
func (p *Parser) parseTypeDecl() (Decl, error) {
	tok := p.Consume() // 'type'
	name, ok := p.expect(KindIdent, "", "type name")
	if !ok {
		return nil, p.errorf("expected type name")
	}
	typeParams, err := p.parseOptionalTypeParams()
	if err != nil {
		return nil, err
	}

	if p.Match(KindPunct, "{") != nil {
		var fields []TypeField
		for !p.Is(KindPunct, "}") {
			fname, ok := p.expect(KindIdent, "", "field name")
			if !ok {
				return nil, p.errorf("expected field name")
			}
			if _, ok := p.expect(KindPunct, ":", "':'"); !ok {
				return nil, p.errorf("expected ':' after field name")
			}
			ftype := p.parseTypeExprString()
			fields = append(fields, TypeField{Name: fname.Val, Type: ftype})
			if !p.Match(KindPunct, ",") {
				break
			}
		}
		if _, ok := p.expect(KindPunct, "}", "'}'"); !ok {
			return nil, p.errorf("unterminated type body")
		}
		derive, err := p.parseOptionalDerive()
		if err != nil {
			return nil, err
		}
		return &TypeDecl{baseDecl: baseDecl{tok.Loc}, Name: name.Val, TypeParams: typeParams, Fields: fields, Derive: derive}, nil
	}

	if _, ok := p.expect(KindPunct, "=", "'=' or '{'"); !ok {
		return nil, p.errorf("expected '=' or '{' after type name")
	}
	first, err := p.parseVariantDef()
	if err != nil {
		return nil, err
	}
	variants := []TypeVariant{first}
	for p.Match(KindPunct, "|") != nil {
		v, err := p.parseVariantDef()
		if err != nil {
			return nil, err
		}
		variants = append(variants, v)
	}
	derive, err := p.parseOptionalDerive()
	if err != nil {
		return nil, err
	}
	if len(variants) == 1 && len(variants[0].Fields) == 0 && len(derive) == 0 {
		return &TypeAliasDecl{baseDecl: baseDecl{tok.Loc}, Name: name.Val, TypeParams: typeParams, Target: variants[0].Name}, nil
	}
	return &TypeDecl{baseDecl: baseDecl{tok.Loc}, Name: name.Val, TypeParams: typeParams, Variants: variants, Derive: derive}, nil
}

func (p *Parser) parseInterfaceDecl() (Decl, error) {
	tok := p.Consume() // 'interface'
	name, ok := p.expect(KindIdent, "", "interface name")
	if !ok {
		return nil, p.errorf("expected interface name")
	}
	if _, ok := p.expect(KindPunct, "{", "'{'"); !ok {
		return nil, p.errorf("expected '{' to start interface body")
	}
	decl := &InterfaceDecl{baseDecl: baseDecl{tok.Loc}, Name: name.Val}
	for !p.Is(KindPunct, "}") {
		mname, ok := p.expect(KindIdent, "", "method name")
		if !ok {
			return nil, p.errorf("expected method name")
		}
		params, err := p.parseParams()
		if err != nil {
			return nil, err
		}
		var ret string
		if p.Match(KindPunct, "->") != nil {
			ret = p.parseTypeExprString()
		}
		decl.Methods = append(decl.Methods, InterfaceMethod{Name: mname.Val, Params: params, ReturnType: ret})
	}
	if _, ok := p.expect(KindPunct, "}", "'}'"); !ok {
		return nil, p.errorf("unterminated interface body")
	}
	return decl, nil
}

func (p *Parser) parseTraitDecl() (Decl, error) {
	tok := p.Consume() // 'trait'
	name, ok := p.expect(KindIdent, "", "trait name")
	if !ok {
		return nil, p.errorf("expected trait name")
	}
	if _, ok := p.expect(KindPunct, "{", "'{'"); !ok {
		return nil, p.errorf("expected '{' to start trait body")
	}
	decl := &TraitDecl{baseDecl: baseDecl{tok.Loc}, Name: name.Val}
	for !p.Is(KindPunct, "}") {
		mname, ok := p.expect(KindIdent, "", "method name")
		if !ok {
			return nil, p.errorf("expected method name")
		}
		params, err := p.parseParams()
		if err != nil {
			return nil, err
		}
		var ret string
		if p.Match(KindPunct, "->") != nil {
			ret = p.parseTypeExprString()
		}
		var body *BlockStmt
		if p.Is(KindPunct, "{") {
			body, err = p.parseBlock()
			if err != nil {
				return nil, err
			}
		}
		decl.Methods = append(decl.Methods, TraitMethod{Name: mname.Val, Params: params, ReturnType: ret, Body: body})
	}
	if _, ok := p.expect(KindPunct, "}", "'}'"); !ok {
		return nil, p.errorf("unterminated trait body")
	}
	return decl, nil
}

func (p *Parser) parseImplDecl() (Decl, error) {
	tok := p.Consume() // 'impl'
	traitName, ok := p.expect(KindIdent, "", "trait name")
	if !ok {
		return nil, p.errorf("expected trait name after 'impl'")
	}
	if _, ok := p.expect(KindKeyword, "for", "'for'"); !ok {
		return nil, p.errorf("expected 'for' in impl declaration")
	}
	typeName, ok := p.expect(KindIdent, "", "type name")
	if !ok {
		return nil, p.errorf("expected type name after 'for'")
	}
	if _, ok := p.expect(KindPunct, "{", "'{'"); !ok {
		return nil, p.errorf("expected '{' to start impl body")
	}
	decl := &ImplDecl{baseDecl: baseDecl{tok.Loc}, Trait: traitName.Val, Type: typeName.Val}
	for !p.Is(KindPunct, "}") {
		fn, err := p.parseFunctionDecl()
		if err != nil {
			return nil, err
		}
		decl.Methods = append(decl.Methods, fn)
	}
	if _, ok := p.expect(KindPunct, "}", "'}'"); !ok {
		return nil, p.errorf("unterminated impl body")
	}
	return decl, nil
}

// parseArrowHandler parses the common `[(params) =>] { ... }` handler
// shape shared by route declarations and server-block leaves (ws/sse/
// background/schedule/discover/middleware/on_error), or a bare identifier
// reference to an existing function.
func (p *Parser) parseArrowHandler(loc Location) (handler *FunctionDecl, ref string, err error) {
	if p.Current() != nil && p.Current().Kind == KindIdent && !p.IsN(1, KindPunct, "(") && !p.IsN(1, KindPunct, "=>") {
		return nil, p.Consume().Val, nil
	}
	var params []Param
	if p.Is(KindPunct, "(") {
		params, err = p.parseParams()
		if err != nil {
			return nil, "", err
		}
		if _, ok := p.expect(KindPunct, "=>", "'=>'"); !ok {
			return nil, "", p.errorf("expected '=>' after handler parameters")
		}
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, "", err
	}
	return &FunctionDecl{baseStmt: baseStmt{loc}, Params: params, Body: body}, "", nil
}

func (p *Parser) parseRouteDecl() (Decl, error) {
	tok := p.Consume() // 'route'
	method, ok := p.expect(KindIdent, "", "HTTP method")
	if !ok {
		return nil, p.errorf("expected HTTP method after 'route'")
	}
	pathTok, ok := p.expect(KindString, "", "route path")
	if !ok {
		return nil, p.errorf("expected route path string")
	}
	decl := &RouteDecl{baseDecl: baseDecl{tok.Loc}, Method: method.Val, Path: pathTok.Val}
	if p.Match(KindKeyword, "with") != nil {
		for {
			// `auth`, `rate_limit` and similar names lex as keywords.
			mname := p.Current()
			if mname == nil || (mname.Kind != KindIdent && mname.Kind != KindKeyword) {
				return nil, p.errorf("expected middleware name after 'with'")
			}
			p.Consume()
			mw := RouteMiddleware{Name: mname.Val}
			if p.Match(KindPunct, "(") != nil {
				for !p.Is(KindPunct, ")") {
					e, err := p.ParseExpr()
					if err != nil {
						return nil, err
					}
					mw.Args = append(mw.Args, e)
					if !p.Match(KindPunct, ",") {
						break
					}
				}
				if _, ok := p.expect(KindPunct, ")", "')'"); !ok {
					return nil, p.errorf("unterminated middleware arguments")
				}
			}
			decl.Middleware = append(decl.Middleware, mw)
			if !p.Match(KindPunct, ",") {
				break
			}
		}
	}
	if _, ok := p.expect(KindPunct, "=>", "'=>'"); !ok {
		return nil, p.errorf("expected '=>' before route handler")
	}
	handler, ref, err := p.parseArrowHandler(tok.Loc)
	if err != nil {
		return nil, err
	}
	decl.Handler, decl.HandlerRef = handler, ref
	return decl, nil
}

func (p *Parser) parseBlockDecl() (Decl, error) {
	kwTok := p.Consume()
	var kind BlockKind
	switch kwTok.Val {
	case "shared":
		kind = BlockShared
	case "server":
		kind = BlockServer
	case "client":
		kind = BlockClient
	case "security":
		kind = BlockSecurity
	case "test":
		kind = BlockTest
	}
	var name string
	if p.Is(KindString, "") {
		name = p.Consume().Val
	}
	if _, ok := p.expect(KindPunct, "{", "'{'"); !ok {
		return nil, p.errorf("expected '{' to start %s block", kwTok.Val)
	}
	blk := &Block{baseDecl: baseDecl{kwTok.Loc}, Kind: kind, Name: name}
	for !p.Is(KindPunct, "}") {
		d, err := p.parseBlockMember(kind)
		if err != nil {
			return nil, err
		}
		blk.Decls = append(blk.Decls, d)
	}
	if _, ok := p.expect(KindPunct, "}", "'}'"); !ok {
		return nil, p.errorf("unterminated %s block", kwTok.Val)
	}
	return blk, nil
}

func (p *Parser) parseBlockMember(kind BlockKind) (Decl, error) {
	t := p.Current()
	if t == nil {
		return nil, p.errorf("unexpected end of file inside block")
	}
	if t.Kind == KindKeyword {
		switch t.Val {
		case "fn", "async":
			return p.parseFunctionDecl()
		case "import":
			return p.parseImportDecl()
		case "type":
			return p.parseTypeDecl()
		case "interface":
			return p.parseInterfaceDecl()
		case "trait":
			return p.parseTraitDecl()
		case "impl":
			return p.parseImplDecl()
		case "route":
			return p.parseRouteDecl()
		case "var", "let":
			return p.parseVarDeclCore()
		}
	}
	switch kind {
	case BlockServer:
		return p.parseServerLeaf()
	case BlockSecurity:
		return p.parseSecurityLeaf()
	case BlockClient:
		return p.parseClientLeaf()
	case BlockTest:
		return p.parseTestLeaf()
	default:
		return nil, p.errorf("unexpected token %s inside shared block", p.describeCurrent())
	}
}

// parseLeafArgsAndConfig parses the common `[(args...)] [{ key: value, ... }]`
// trailer shared by every server/security leaf declaration.
func (p *Parser) parseLeafArgsAndConfig() ([]Expr, []ConfigEntry, error) {
	var args []Expr
	if p.Match(KindPunct, "(") != nil {
		for !p.Is(KindPunct, ")") {
			e, err := p.ParseExpr()
			if err != nil {
				return nil, nil, err
			}
			args = append(args, e)
			if !p.Match(KindPunct, ",") {
				break
			}
		}
		if _, ok := p.expect(KindPunct, ")", "')'"); !ok {
			return nil, nil, p.errorf("unterminated argument list")
		}
	}
	var config []ConfigEntry
	if p.Match(KindPunct, "{") != nil {
		for !p.Is(KindPunct, "}") {
			key, ok := p.expect(KindIdent, "", "config key")
			if !ok {
				return nil, nil, p.errorf("expected config key")
			}
			if _, ok := p.expect(KindPunct, ":", "':'"); !ok {
				return nil, nil, p.errorf("expected ':' after config key")
			}
			val, err := p.ParseExpr()
			if err != nil {
				return nil, nil, err
			}
			config = append(config, ConfigEntry{Key: key.Val, Value: val})
			if !p.Match(KindPunct, ",") {
				break
			}
		}
		if _, ok := p.expect(KindPunct, "}", "'}'"); !ok {
			return nil, nil, p.errorf("unterminated config block")
		}
	}
	return args, config, nil
}

func (p *Parser) parseServerLeaf() (Decl, error) {
	kw := p.Current()
	if kw == nil || (kw.Kind != KindKeyword && kw.Kind != KindIdent) {
		return nil, p.errorf("expected server declaration, got %s", p.describeCurrent())
	}
	p.Consume()
	leaf := &ServerLeaf{baseDecl: baseDecl{kw.Loc}, Keyword: kw.Val}
	if p.Current() != nil && (p.Current().Kind == KindIdent || p.Current().Kind == KindString) {
		leaf.Name = p.Consume().Val
	}
	args, config, err := p.parseLeafArgsAndConfig()
	if err != nil {
		return nil, err
	}
	leaf.Args, leaf.Config = args, config
	if p.Match(KindPunct, "=>") != nil {
		handler, _, err := p.parseArrowHandler(kw.Loc)
		if err != nil {
			return nil, err
		}
		leaf.Handler = handler
	}
	return leaf, nil
}

func (p *Parser) parseSecurityLeaf() (Decl, error) {
	kw := p.Current()
	if kw == nil || (kw.Kind != KindKeyword && kw.Kind != KindIdent) {
		return nil, p.errorf("expected security declaration, got %s", p.describeCurrent())
	}
	p.Consume()
	leaf := &SecurityLeaf{baseDecl: baseDecl{kw.Loc}, Keyword: kw.Val}
	if p.Current() != nil && (p.Current().Kind == KindIdent || p.Current().Kind == KindString) && !p.Is(KindPunct, "(") {
		leaf.Name = p.Consume().Val
	}
	args, config, err := p.parseLeafArgsAndConfig()
	if err != nil {
		return nil, err
	}
	leaf.Args, leaf.Config = args, config
	return leaf, nil
}

func (p *Parser) parseClientLeaf() (Decl, error) {
	kw := p.Consume()
	leaf := &ClientLeaf{baseDecl: baseDecl{kw.Loc}, Keyword: kw.Val}
	name, ok := p.expect(KindIdent, "", "name")
	if !ok {
		return nil, p.errorf("expected name after %q", kw.Val)
	}
	leaf.Name = name.Val

	switch kw.Val {
	case "component":
		if p.Is(KindPunct, "(") {
			params, err := p.parseParams()
			if err != nil {
				return nil, err
			}
			leaf.Params = params
		}
		if p.Is(KindPunct, "{") {
			body, err := p.parseBlock()
			if err != nil {
				return nil, err
			}
			leaf.Body = body
		} else {
			if _, ok := p.expect(KindPunct, "=>", "'=>'"); !ok {
				return nil, p.errorf("expected component body")
			}
			expr, err := p.ParseExpr()
			if err != nil {
				return nil, err
			}
			leaf.Expr = expr
		}
	case "state", "store":
		if p.Match(KindPunct, ":") != nil {
			p.parseTypeExprString()
		}
		if _, ok := p.expect(KindPunct, "=", "'='"); !ok {
			return nil, p.errorf("expected '=' after %s", kw.Val)
		}
		v, err := p.ParseExpr()
		if err != nil {
			return nil, err
		}
		leaf.InitValue = v
	case "computed":
		if _, ok := p.expect(KindPunct, "=", "'='"); !ok {
			return nil, p.errorf("expected '=' after computed")
		}
		v, err := p.ParseExpr()
		if err != nil {
			return nil, err
		}
		leaf.Computed = v
	case "effect":
		if p.Is(KindPunct, "{") {
			body, err := p.parseBlock()
			if err != nil {
				return nil, err
			}
			leaf.Body = body
		}
	}
	return leaf, nil
}

func (p *Parser) parseTestLeaf() (Decl, error) {
	kw := p.Consume() // 'test'
	desc, ok := p.expect(KindString, "", "test description")
	if !ok {
		return nil, p.errorf("expected test description string")
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &TestLeaf{baseDecl: baseDecl{kw.Loc}, Description: desc.Val, Body: body}, nil
}
