package tovac

import (
	"strings"
	"testing"
)

// Concrete scenario 3 (§8): a -> b -> a must not loop forever and must
// record a warning naming both files.
func TestWorkspaceCircularImportDetected(t *testing.T) {
	w := NewWorkspace(CompilerOptions{Tolerant: true})
	w.AddSource("a.tova", `import "b.tova"
fn fromA() { 1 }`)
	w.AddSource("b.tova", `import "a.tova"
fn fromB() { 2 }`)

	res, err := w.Compile("a.tova", w.sources["a.tova"])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res == nil {
		t.Fatal("expected a non-nil result")
	}

	warnings := w.Warnings()
	if len(warnings) == 0 {
		t.Fatal("expected at least one CircularImportWarning")
	}
	found := false
	for _, w := range warnings {
		s := w.String()
		if strings.Contains(s, "a.tova") && strings.Contains(s, "b.tova") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a warning naming both a.tova and b.tova, got %+v", warnings)
	}
}

func TestWorkspaceCompilesBothFilesInChain(t *testing.T) {
	w := NewWorkspace(CompilerOptions{Tolerant: true})
	w.AddSource("leaf.tova", `fn leafFn() { 1 }`)
	w.AddSource("root.tova", `import "leaf.tova" with leafFn
fn rootFn() { leafFn() }`)

	res, err := w.Compile("root.tova", w.sources["root.tova"])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Program == nil {
		t.Fatal("expected root.tova to produce a Program")
	}
	for _, d := range res.Diagnostics {
		if d.Code == "E200" {
			t.Errorf("did not expect an undefined-identifier error for an imported function, got %+v", d)
		}
	}
}

func TestWorkspaceUnregisteredImportDoesNotError(t *testing.T) {
	w := NewWorkspace(CompilerOptions{})
	_, err := w.Compile("missing.tova", `import "nowhere.tova"
fn f() { 1 }`)
	if err != nil {
		t.Fatalf("compiling the root file itself should succeed even if an import target is unregistered: %v", err)
	}
}
