package tovac

import "fmt"

// parseBlock parses a `{ stmt* }` block shared by function bodies, control
// flow bodies, and leaf-declaration handlers.
func (p *Parser) parseBlock() (*BlockStmt, error) {
	tok, ok := p.expect(KindPunct, "{", "'{'")
	if !ok {
		return nil, p.errorf("expected '{'")
	}
	blk := &BlockStmt{baseStmt: baseStmt{tok.Loc}}
	for !p.Is(KindPunct, "}") {
		if p.atEOF() {
			return nil, p.errorf("unterminated block")
		}
		s, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		blk.Stmts = append(blk.Stmts, s)
	}
	if _, ok := p.expect(KindPunct, "}", "'}'"); !ok {
		return nil, p.errorf("expected '}'")
	}
	return blk, nil
}

func (p *Parser) parseStmt() (Stmt, error) {
	t := p.Current()
	if t == nil {
		return nil, p.errorf("unexpected end of file")
	}

	if t.Kind == KindKeyword {
		switch t.Val {
		case "fn", "async":
			return p.parseFunctionDecl()
		case "var", "let":
			return p.parseVarDeclCore()
		case "return":
			return p.parseReturnStmt()
		case "break":
			p.Consume()
			return &BreakStmt{baseStmt{t.Loc}}, nil
		case "continue":
			p.Consume()
			return &ContinueStmt{baseStmt{t.Loc}}, nil
		case "if":
			return p.parseIfStmt()
		case "for":
			return p.parseForStmt()
		case "while":
			return p.parseWhileStmt()
		case "guard":
			return p.parseGuardStmt()
		case "match":
			return p.parseMatchStmt()
		case "defer":
			return p.parseDeferStmt()
		}
	}
	return p.parseSimpleStmt()
}

func (p *Parser) parseReturnStmt() (Stmt, error) {
	tok := p.Consume() // 'return'
	if !p.exprFollows() {
		return &ReturnStmt{baseStmt: baseStmt{tok.Loc}}, nil
	}
	val, err := p.ParseExpr()
	if err != nil {
		return nil, err
	}
	return &ReturnStmt{baseStmt: baseStmt{tok.Loc}, Value: val}, nil
}

func (p *Parser) parseIfStmt() (Stmt, error) {
	tok := p.Consume() // 'if'
	cond, err := p.ParseExpr()
	if err != nil {
		return nil, err
	}
	then, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	stmt := &IfStmt{baseStmt: baseStmt{tok.Loc}, Cond: cond, Then: then}
	for p.Match(KindKeyword, "elif") != nil {
		c, err := p.ParseExpr()
		if err != nil {
			return nil, err
		}
		b, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		stmt.ElifConds = append(stmt.ElifConds, c)
		stmt.ElifBodies = append(stmt.ElifBodies, b)
	}
	if p.Match(KindKeyword, "else") != nil {
		b, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		stmt.Else = b
	}
	return stmt, nil
}

func (p *Parser) parseForStmt() (Stmt, error) {
	tok := p.Consume() // 'for'
	name1, ok := p.expect(KindIdent, "", "loop variable")
	if !ok {
		return nil, p.errorf("expected loop variable after 'for'")
	}
	vars := []string{name1.Val}
	if p.Match(KindPunct, ",") != nil {
		name2, ok := p.expect(KindIdent, "", "loop variable")
		if !ok {
			return nil, p.errorf("expected second loop variable")
		}
		vars = append(vars, name2.Val)
	}
	if _, ok := p.expect(KindKeyword, "in", "'in'"); !ok {
		return nil, p.errorf("expected 'in' in for loop")
	}
	iter, err := p.ParseExpr()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ForStmt{baseStmt: baseStmt{tok.Loc}, Vars: vars, Iter: iter, Body: body}, nil
}

func (p *Parser) parseWhileStmt() (Stmt, error) {
	tok := p.Consume() // 'while'
	cond, err := p.ParseExpr()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &WhileStmt{baseStmt: baseStmt{tok.Loc}, Cond: cond, Body: body}, nil
}

func (p *Parser) parseGuardStmt() (Stmt, error) {
	tok := p.Consume() // 'guard'
	cond, err := p.ParseExpr()
	if err != nil {
		return nil, err
	}
	if _, ok := p.expect(KindKeyword, "else", "'else'"); !ok {
		return nil, p.errorf("guard requires an 'else' clause")
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &GuardStmt{baseStmt: baseStmt{tok.Loc}, Cond: cond, Else: body}, nil
}

func (p *Parser) parseMatchStmt() (Stmt, error) {
	tok := p.Consume() // 'match'
	subj, err := p.ParseExpr()
	if err != nil {
		return nil, err
	}
	if _, ok := p.expect(KindPunct, "{", "'{'"); !ok {
		return nil, p.errorf("expected '{' to start match body")
	}
	m := &MatchStmt{baseStmt: baseStmt{tok.Loc}, Subject: subj}
	for !p.Is(KindPunct, "}") {
		pat, err := p.parsePattern()
		if err != nil {
			return nil, err
		}
		var guard Expr
		if p.Match(KindKeyword, "if") != nil {
			guard, err = p.ParseExpr()
			if err != nil {
				return nil, err
			}
		}
		if _, ok := p.expect(KindPunct, "=>", "'=>'"); !ok {
			return nil, p.errorf("expected '=>' in match arm")
		}
		var body *BlockStmt
		if p.Is(KindPunct, "{") {
			body, err = p.parseBlock()
			if err != nil {
				return nil, err
			}
		} else {
			e, err := p.ParseExpr()
			if err != nil {
				return nil, err
			}
			body = &BlockStmt{baseStmt: baseStmt{e.Location()}, Stmts: []Stmt{&ExprStmt{baseStmt: baseStmt{e.Location()}, Value: e}}}
		}
		m.Arms = append(m.Arms, MatchStmtArm{Pattern: pat, Guard: guard, Body: body})
		p.Match(KindPunct, ",")
	}
	if _, ok := p.expect(KindPunct, "}", "'}'"); !ok {
		return nil, p.errorf("unterminated match")
	}
	return m, nil
}

func (p *Parser) parseDeferStmt() (Stmt, error) {
	tok := p.Consume() // 'defer'
	call, err := p.ParseExpr()
	if err != nil {
		return nil, err
	}
	return &DeferStmt{baseStmt: baseStmt{tok.Loc}, Call: call}, nil
}

// parseVarDeclCore parses `var name[: Type] = expr` / `let name = expr`,
// shared between statement position (parseStmt) and top/block-level
// declaration position (parseDecl): VarDeclStmt implements both Stmt and
// Decl, same as FunctionDecl.
func (p *Parser) parseVarDeclCore() (*VarDeclStmt, error) {
	mutable := p.Current().Val == "var"
	tok := p.Consume() // 'var' or 'let'
	target, err := p.parseAssignTargetForDecl()
	if err != nil {
		return nil, err
	}
	var declType string
	if p.Match(KindPunct, ":") != nil {
		declType = p.parseTypeExprString()
	}
	if _, ok := p.expect(KindPunct, "=", "'='"); !ok {
		return nil, p.errorf("expected '=' in declaration")
	}
	val, err := p.ParseExpr()
	if err != nil {
		return nil, err
	}
	return &VarDeclStmt{baseStmt: baseStmt{tok.Loc}, Mutable: mutable, Target: target, Value: val, DeclType: declType}, nil
}

func (p *Parser) parseAssignTargetForDecl() (AssignTarget, error) {
	if p.Is(KindPunct, "[") || p.Is(KindPunct, "{") {
		pat, err := p.parsePattern()
		if err != nil {
			return AssignTarget{}, err
		}
		return AssignTarget{Destruct: pat}, nil
	}
	name, ok := p.expect(KindIdent, "", "identifier")
	if !ok {
		return AssignTarget{}, p.errorf("expected identifier")
	}
	return AssignTarget{Ident: name.Val}, nil
}

// parseSimpleStmt covers expression statements and every assignment form
// (`a = 1`, `a, b = 1, 2`, `a.b = 1`, `a[i] += 1`) by first parsing a full
// expression and then deciding, from what follows, which statement shape
// it actually was.
func (p *Parser) parseSimpleStmt() (Stmt, error) {
	startLoc := p.locHere()
	first, err := p.ParseExpr()
	if err != nil {
		return nil, err
	}

	if tok := p.MatchOne(KindPunct, "+=", "-=", "*=", "/="); tok != nil {
		target, terr := exprToAssignTarget(first)
		if terr != nil {
			return nil, p.errorf("%v", terr)
		}
		val, err := p.ParseExpr()
		if err != nil {
			return nil, err
		}
		return &CompoundAssignStmt{baseStmt: baseStmt{startLoc}, Target: target, Op: tok.Val, Value: val}, nil
	}

	if p.Is(KindPunct, ",") || p.Is(KindPunct, "=") {
		exprs := []Expr{first}
		for p.Match(KindPunct, ",") != nil {
			e, err := p.ParseExpr()
			if err != nil {
				return nil, err
			}
			exprs = append(exprs, e)
		}
		if p.Match(KindPunct, "=") != nil {
			targets := make([]AssignTarget, len(exprs))
			for i, e := range exprs {
				tgt, terr := exprToAssignTarget(e)
				if terr != nil {
					return nil, p.errorf("%v", terr)
				}
				targets[i] = tgt
			}
			var values []Expr
			v, err := p.ParseExpr()
			if err != nil {
				return nil, err
			}
			values = append(values, v)
			for p.Match(KindPunct, ",") != nil {
				v, err := p.ParseExpr()
				if err != nil {
					return nil, err
				}
				values = append(values, v)
			}
			return &AssignStmt{baseStmt: baseStmt{startLoc}, Targets: targets, Values: values}, nil
		}
		// A bare comma-list that never resolved to `=` isn't meaningful
		// here; report it at the first expression so the caller still
		// makes forward progress under error recovery.
		return nil, p.errorf("expected '=' after comma-separated expression list")
	}

	return &ExprStmt{baseStmt: baseStmt{startLoc}, Value: first}, nil
}

func exprToAssignTarget(e Expr) (AssignTarget, error) {
	switch n := e.(type) {
	case *IdentExpr:
		return AssignTarget{Ident: n.Name}, nil
	case *MemberExpr:
		return AssignTarget{Member: n}, nil
	case *SubscriptExpr:
		return AssignTarget{Member: n}, nil
	default:
		return AssignTarget{}, fmt.Errorf("invalid assignment target")
	}
}
