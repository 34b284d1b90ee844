package tovac

import (
	"testing"

	"github.com/kr/pretty"
)

// dumpDiags renders a diagnostic slice for failure messages; %+v on
// Diagnostic (which embeds a Fix pointer and a Location struct) nests
// deep enough that kr/pretty's field-aligned output is actually readable.
func dumpDiags(diags []Diagnostic) string {
	return pretty.Sprint(diags)
}

func analyze(t *testing.T, source string) []Diagnostic {
	t.Helper()
	toks, err := NewLexer(source, "test.tova").Tokenize()
	if err != nil {
		t.Fatalf("lexing: %v", err)
	}
	prog, err := NewParser(toks, "test.tova").Parse()
	if err != nil {
		t.Fatalf("parsing: %v", err)
	}
	a := NewAnalyzer("test.tova", source, false, true)
	diags, _ := a.Analyze(prog)
	return diags
}

func findDiag(diags []Diagnostic, code string) *Diagnostic {
	for i := range diags {
		if diags[i].Code == code {
			return &diags[i]
		}
	}
	return nil
}

// Concrete scenario 1 (§8): reassigning an immutable binding across nested
// blocks is E202 with a fix suggesting `var`.
func TestAnalyzerImmutableReassignmentAcrossBlocks(t *testing.T) {
	diags := analyze(t, "fn test() { x = 10\nif true { x = 20 } }")
	d := findDiag(diags, "E202")
	if d == nil {
		t.Fatalf("expected E202 among diagnostics, got %s", dumpDiags(diags))
	}
	if !containsSubstr(d.Message, "x") {
		t.Errorf("expected message to mention 'x', got %q", d.Message)
	}
	if d.Fix == nil || d.Fix.Replacement != "var x = ..." {
		t.Errorf("expected fix replacement 'var x = ...', got %s", pretty.Sprint(d.Fix))
	}
}

func TestAnalyzerBareAssignmentDeclaresImmutableBinding(t *testing.T) {
	// A single bare assignment with no later reassignment is not an error:
	// it's how an immutable binding is declared in the first place.
	diags := analyze(t, "fn test() { x = 10\nprint(x) }")
	if d := findDiag(diags, "E200"); d != nil {
		t.Errorf("did not expect an undefined-identifier error, got %s", pretty.Sprint(d))
	}
	if d := findDiag(diags, "E202"); d != nil {
		t.Errorf("did not expect a reassignment error, got %s", pretty.Sprint(d))
	}
}

func TestAnalyzerMutableReassignmentAllowed(t *testing.T) {
	diags := analyze(t, "fn test() { var x = 10\nx = 20 }")
	if d := findDiag(diags, "E202"); d != nil {
		t.Errorf("expected no E202 for a 'var' binding, got %s", pretty.Sprint(d))
	}
}

func TestAnalyzerDuplicateDeclarationSameScope(t *testing.T) {
	diags := analyze(t, "fn test() { var x = 1\nvar x = 2 }")
	if findDiag(diags, "E201") == nil {
		t.Fatalf("expected E201 for duplicate declaration, got %s", dumpDiags(diags))
	}
}

func TestAnalyzerUndefinedIdentifier(t *testing.T) {
	diags := analyze(t, "fn test() { print(totallyUnknownName) }")
	if findDiag(diags, "E200") == nil {
		t.Fatalf("expected E200 for an undefined identifier, got %s", dumpDiags(diags))
	}
}

func TestAnalyzerAwaitOutsideAsync(t *testing.T) {
	diags := analyze(t, "fn f() { await g() }")
	if findDiag(diags, "E300") == nil {
		t.Fatalf("expected E300 for 'await' outside an async function, got %s", dumpDiags(diags))
	}
}

func TestAnalyzerBreakOutsideLoop(t *testing.T) {
	diags := analyze(t, "fn f() { break }")
	if findDiag(diags, "E304") == nil {
		t.Fatalf("expected E304 for 'break' outside a loop, got %s", dumpDiags(diags))
	}
}

func TestAnalyzerContinueInsideLoopIsFine(t *testing.T) {
	diags := analyze(t, "fn f() { for i in range(3) { continue } }")
	if d := findDiag(diags, "E304"); d != nil {
		t.Errorf("did not expect E304 for 'continue' inside a loop, got %s", pretty.Sprint(d))
	}
}

func TestAnalyzerUnusedLocalWarning(t *testing.T) {
	diags := analyze(t, "fn f() { var unused = 1\nreturn 0 }")
	if findDiag(diags, "W001") == nil {
		t.Errorf("expected W001 for an unused local, got %s", dumpDiags(diags))
	}
}

func TestAnalyzerSecurityProtectWithoutAuth(t *testing.T) {
	diags := analyze(t, `security { protect "/admin" { require: "admin" } }`)
	if findDiag(diags, "W_PROTECT_WITHOUT_AUTH") == nil {
		t.Errorf("expected W_PROTECT_WITHOUT_AUTH when no auth is configured, got %s", dumpDiags(diags))
	}
}

func TestAnalyzerSecurityCorsWildcard(t *testing.T) {
	diags := analyze(t, `security { cors { origins: ["*"] } }`)
	if findDiag(diags, "W_CORS_WILDCARD") == nil {
		t.Errorf("expected W_CORS_WILDCARD, got %s", dumpDiags(diags))
	}
}

func TestAnalyzerSecurityHardcodedSecret(t *testing.T) {
	diags := analyze(t, `security { auth jwt { secret: "literal-secret" } }`)
	if findDiag(diags, "W_HARDCODED_SECRET") == nil {
		t.Errorf("expected W_HARDCODED_SECRET for a literal secret, got %s", dumpDiags(diags))
	}
}

func containsSubstr(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}
