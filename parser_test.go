package tovac

import "testing"

func parseProgram(t *testing.T, source string) *Program {
	t.Helper()
	toks, err := NewLexer(source, "test.tova").Tokenize()
	if err != nil {
		t.Fatalf("lexing %q: %v", source, err)
	}
	prog, err := NewParser(toks, "test.tova").Parse()
	if err != nil {
		t.Fatalf("parsing %q: %v", source, err)
	}
	return prog
}

func TestParseSimpleFunction(t *testing.T) {
	prog := parseProgram(t, `fn f(x) { x }`)
	if len(prog.Decls) != 1 {
		t.Fatalf("expected 1 decl, got %d", len(prog.Decls))
	}
	fn, ok := prog.Decls[0].(*FunctionDecl)
	if !ok {
		t.Fatalf("expected *FunctionDecl, got %T", prog.Decls[0])
	}
	if fn.Name != "f" {
		t.Errorf("expected name 'f', got %q", fn.Name)
	}
	if len(fn.Params) != 1 || fn.Params[0].Name != "x" {
		t.Errorf("expected one param 'x', got %+v", fn.Params)
	}
	if fn.IsAsync || fn.Generator {
		t.Errorf("plain 'fn' should be neither async nor a generator: %+v", fn)
	}
}

func TestParseAsyncFunction(t *testing.T) {
	prog := parseProgram(t, `async fn f() { await g() }`)
	fn := prog.Decls[0].(*FunctionDecl)
	if !fn.IsAsync {
		t.Errorf("expected IsAsync to be true")
	}
}

func TestParseTypeDeclSumType(t *testing.T) {
	prog := parseProgram(t, `type Shape = Circle(r: Float) | Square(s: Float)`)
	td := prog.Decls[0].(*TypeDecl)
	if td.Name != "Shape" {
		t.Errorf("expected Name 'Shape', got %q", td.Name)
	}
	if len(td.Variants) != 2 {
		t.Fatalf("expected 2 variants, got %d", len(td.Variants))
	}
	if td.Variants[0].Name != "Circle" || td.Variants[1].Name != "Square" {
		t.Errorf("unexpected variant names: %+v", td.Variants)
	}
}

func TestParseTypeDeclDerive(t *testing.T) {
	prog := parseProgram(t, `type Point { x: Int, y: Int } derive(Eq, Show)`)
	td := prog.Decls[0].(*TypeDecl)
	if len(td.Derive) != 2 || td.Derive[0] != "Eq" || td.Derive[1] != "Show" {
		t.Errorf("expected derive [Eq, Show], got %v", td.Derive)
	}
}

func TestParseRouteWithMiddleware(t *testing.T) {
	prog := parseProgram(t, `route GET "/api/users" with auth, rate_limit(50, 30) => { respond(200, []) }`)
	rd := prog.Decls[0].(*RouteDecl)
	if rd.Method != "GET" || rd.Path != "/api/users" {
		t.Errorf("got method=%q path=%q", rd.Method, rd.Path)
	}
	if len(rd.Middleware) != 2 {
		t.Fatalf("expected 2 middleware entries, got %d: %+v", len(rd.Middleware), rd.Middleware)
	}
	if rd.Middleware[0].Name != "auth" {
		t.Errorf("expected first middleware 'auth', got %q", rd.Middleware[0].Name)
	}
	if rd.Middleware[1].Name != "rate_limit" || len(rd.Middleware[1].Args) != 2 {
		t.Errorf("expected rate_limit(50, 30), got %+v", rd.Middleware[1])
	}
}

func TestParseServerBlockAcceptsLeaves(t *testing.T) {
	prog := parseProgram(t, `server { db "postgres://x" {} }`)
	blk := prog.Decls[0].(*Block)
	if blk.Kind != BlockServer {
		t.Fatalf("expected BlockServer, got %v", blk.Kind)
	}
	leaf, ok := blk.Decls[0].(*ServerLeaf)
	if !ok {
		t.Fatalf("expected *ServerLeaf, got %T", blk.Decls[0])
	}
	if leaf.Keyword != "db" {
		t.Errorf("expected keyword 'db', got %q", leaf.Keyword)
	}
}

func TestParseDegradableKeywordAsIdentifierOutsideBlock(t *testing.T) {
	// "db" is only a declaration keyword inside a server block; here it is
	// a plain variable name.
	prog := parseProgram(t, `fn f() { db = 5 }`)
	fn := prog.Decls[0].(*FunctionDecl)
	if len(fn.Body.Stmts) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(fn.Body.Stmts))
	}
	if _, ok := fn.Body.Stmts[0].(*AssignStmt); !ok {
		t.Errorf("expected *AssignStmt for 'db = 5', got %T", fn.Body.Stmts[0])
	}
}

func TestParseSyntaxErrorRecordsPartialAST(t *testing.T) {
	toks, err := NewLexer("fn f( { }", "t").Tokenize()
	if err != nil {
		t.Fatal(err)
	}
	_, err = NewParser(toks, "t").Parse()
	if err == nil {
		t.Fatal("expected a parse error for malformed parameter list")
	}
	pe, ok := err.(*ParseError)
	if !ok {
		t.Fatalf("expected *ParseError, got %T", err)
	}
	if len(pe.Errors) == 0 {
		t.Error("expected at least one recorded ParseErrorEntry")
	}
}

func TestParseChainedComparisonExpression(t *testing.T) {
	prog := parseProgram(t, `fn f(a, b, c) { a < b < c }`)
	fn := prog.Decls[0].(*FunctionDecl)
	exprStmt, ok := fn.Body.Stmts[0].(*ExprStmt)
	if !ok {
		t.Fatalf("expected *ExprStmt, got %T", fn.Body.Stmts[0])
	}
	if _, ok := exprStmt.Value.(*ChainedComparisonExpr); !ok {
		t.Errorf("expected *ChainedComparisonExpr, got %T", exprStmt.Value)
	}
}
