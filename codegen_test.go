package tovac

import (
	"strings"
	"testing"
)

func generate(t *testing.T, source string) *GeneratedOutput {
	t.Helper()
	toks, err := NewLexer(source, "test.tova").Tokenize()
	if err != nil {
		t.Fatalf("lexing: %v", err)
	}
	prog, err := NewParser(toks, "test.tova").Parse()
	if err != nil {
		t.Fatalf("parsing: %v", err)
	}
	return Generate(prog, CompilerOptions{})
}

func serverSource(out *GeneratedOutput) string {
	if out.Server != "" {
		return out.Server
	}
	var all []string
	for _, s := range out.Servers {
		all = append(all, s)
	}
	return strings.Join(all, "\n")
}

// Concrete scenario 5 (§8): routes declared in wildcard/param/static order
// must be emitted sorted static, then param, then wildcard.
func TestCodegenRouteSpecificitySorting(t *testing.T) {
	out := generate(t, `
route GET "/api/*" => { respond(200, {}) }
route GET "/api/:id" => { respond(200, {}) }
route GET "/api/users" => { respond(200, {}) }
`)
	src := serverSource(out)
	iUsers := strings.Index(src, `__addRoute("GET", "/api/users"`)
	iID := strings.Index(src, `__addRoute("GET", "/api/:id"`)
	iWild := strings.Index(src, `__addRoute("GET", "/api/*"`)
	if iUsers < 0 || iID < 0 || iWild < 0 {
		t.Fatalf("expected all three __addRoute calls present, got:\n%s", src)
	}
	if !(iUsers < iID && iID < iWild) {
		t.Errorf("expected static < param < wildcard ordering, got offsets users=%d id=%d wild=%d", iUsers, iID, iWild)
	}
}

// Concrete scenario 4 (§8): JWT auth must enforce HS256 before ever
// invoking the signing primitive.
func TestCodegenJwtEnforcesHS256(t *testing.T) {
	out := generate(t, `
security { auth jwt { secret: env("JWT_SECRET") } }
route GET "/me" with auth => { respond(200, {}) }
`)
	src := serverSource(out)
	algCheck := strings.Index(src, `__header.alg !== "HS256"`)
	signCall := strings.Index(src, "crypto.subtle.sign")
	if algCheck < 0 {
		t.Fatalf("expected an HS256 algorithm check in __authenticate, got:\n%s", src)
	}
	if signCall < 0 {
		t.Fatalf("expected a crypto.subtle.sign call, got:\n%s", src)
	}
	if algCheck > signCall {
		t.Errorf("expected the HS256 check to precede crypto.subtle.sign, got algCheck=%d signCall=%d", algCheck, signCall)
	}
}

// Concrete scenario 6 (§8): model CRUD methods guard against unknown
// columns before ever touching the database.
func TestCodegenModelCrudGuardsColumns(t *testing.T) {
	out := generate(t, `
server {
  db "postgres://x" {}
  model User { id: Int, name: String }
}
`)
	src := serverSource(out)
	for _, method := range []string{"where", "create", "update", "count"} {
		want := "User." + method + " = function"
		if !strings.Contains(src, want) {
			t.Errorf("expected generated model to define %q, got:\n%s", want, src)
		}
	}
	if !strings.Contains(src, "__assertCols(User,") {
		t.Errorf("expected CRUD methods to call __assertCols(User, ...), got:\n%s", src)
	}
	if !strings.Contains(src, "Invalid column in") {
		t.Errorf("expected __assertCols to throw an 'Invalid column in' message, got:\n%s", src)
	}
}

func TestCodegenRoutePatternSupportsParamsAndWildcards(t *testing.T) {
	out := generate(t, `route GET "/api/:id" => { respond(200, {}) }`)
	src := serverSource(out)
	if !strings.Contains(src, "__tovaCompileRoutePattern") {
		t.Errorf("expected routes to be registered with a compiled pattern, got:\n%s", src)
	}
	if !strings.Contains(src, "route.pattern.exec") {
		t.Errorf("expected dispatch to match against the compiled pattern, got:\n%s", src)
	}
}

func TestCodegenSharedFunctionEmitted(t *testing.T) {
	out := generate(t, `fn add(a, b) { a + b }`)
	if !strings.Contains(out.Shared, "function add(") {
		t.Errorf("expected a generated 'add' function, got:\n%s", out.Shared)
	}
}

// Concrete scenario 2 (§8): a match arm with a binding guard lowers to an
// if-ladder that binds the subject before testing the guard.
func TestCodegenMatchWithBindingGuard(t *testing.T) {
	out := generate(t, `fn f(val) { x = match val { n if n > 0 => n, _ => 0 } }`)
	if !strings.Contains(out.Shared, "const n = __subj;") {
		t.Errorf("expected the binding pattern to declare 'n' from the match subject, got:\n%s", out.Shared)
	}
	if !strings.Contains(out.Shared, "n > 0") {
		t.Errorf("expected the guard condition 'n > 0' to appear, got:\n%s", out.Shared)
	}
	if !strings.Contains(out.Shared, "return n;") {
		t.Errorf("expected the guarded arm to return 'n', got:\n%s", out.Shared)
	}
	if !strings.Contains(out.Shared, "return 0;") {
		t.Errorf("expected the wildcard arm to return '0', got:\n%s", out.Shared)
	}
}

func TestCodegenSumTypeDeriveEq(t *testing.T) {
	out := generate(t, `type Point { x: Int, y: Int } derive(Eq)`)
	if !strings.Contains(out.Shared, "Point") {
		t.Errorf("expected generated code to reference 'Point', got:\n%s", out.Shared)
	}
}
