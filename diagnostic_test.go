package tovac

import (
	"strings"
	"testing"
)

func TestCatalogEntryForKnownAndUnknownCodes(t *testing.T) {
	e, ok := CatalogEntryFor("E202")
	if !ok {
		t.Fatal("expected E202 to be registered")
	}
	if e.Category != "mutability" {
		t.Errorf("expected category 'mutability', got %q", e.Category)
	}

	if _, ok := CatalogEntryFor("E999"); ok {
		t.Error("expected E999 to be unregistered")
	}
}

func TestExplainUnknownCode(t *testing.T) {
	got := Explain("E999")
	want := "E999: no catalog entry registered"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExplainKnownCode(t *testing.T) {
	got := Explain("E304")
	if got == "" {
		t.Fatal("expected non-empty explanation")
	}
	if !strings.Contains(got, "break") {
		t.Errorf("expected explanation to mention 'break', got %q", got)
	}
}

func TestSuppressionTableSameLine(t *testing.T) {
	source := "x = 1 // tova-ignore E202\n"
	tbl := NewSuppressionTable(source)
	if !tbl.Suppresses(Location{Line: 1}, "E202") {
		t.Error("expected E202 to be suppressed on line 1")
	}
	if tbl.Suppresses(Location{Line: 1}, "E201") {
		t.Error("E201 was not listed and should not be suppressed")
	}
}

func TestSuppressionTableBareDirectiveSuppressesNextLine(t *testing.T) {
	source := "// tova-ignore\nx = 10\n"
	tbl := NewSuppressionTable(source)
	if !tbl.Suppresses(Location{Line: 2}, "E202") {
		t.Error("expected a bare tova-ignore to suppress every code on the following line")
	}
}

func TestSuppressionTableFilter(t *testing.T) {
	source := "x = 1 // tova-ignore E202\ny = 2\n"
	tbl := NewSuppressionTable(source)
	diags := []Diagnostic{
		{Code: "E202", Loc: Location{Line: 1}},
		{Code: "E202", Loc: Location{Line: 2}},
	}
	filtered := tbl.Filter(diags)
	if len(filtered) != 1 {
		t.Fatalf("expected 1 diagnostic to survive filtering, got %d", len(filtered))
	}
	if filtered[0].Loc.Line != 2 {
		t.Errorf("expected the line-2 diagnostic to survive, got %+v", filtered[0])
	}
}

func TestApplyFixReplacesSpan(t *testing.T) {
	source := "x = 10\n"
	d := Diagnostic{
		Loc: Location{Line: 1, Column: 1, Length: 1},
		Fix: &Fix{Replacement: "var x"},
	}
	got := ApplyFix(source, d)
	want := "var x = 10\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestApplyFixNilFixIsNoop(t *testing.T) {
	source := "x = 10\n"
	got := ApplyFix(source, Diagnostic{})
	if got != source {
		t.Errorf("expected source unchanged, got %q", got)
	}
}

func TestFormatDiagnosticIncludesCaretAndCode(t *testing.T) {
	source := "fn f() {\n  x = 1\n}\n"
	d := Diagnostic{Severity: SeverityError, Code: "E202", Message: "bad thing", Loc: Location{File: "t", Line: 2, Column: 3}}
	out := FormatDiagnostic(d, source)
	if !strings.Contains(out, "[E202]") {
		t.Errorf("expected formatted diagnostic to include code, got %q", out)
	}
	if !strings.Contains(out, "^") {
		t.Errorf("expected formatted diagnostic to include a caret, got %q", out)
	}
}
