package tovac

import (
	"fmt"
	"sort"
	"strings"
)

// Severity classifies a Diagnostic. Errors prevent code generation in
// normal mode; warnings never do (§7).
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
)

func (s Severity) String() string {
	if s == SeverityError {
		return "error"
	}
	return "warning"
}

// Fix is a machine-applicable replacement suggested alongside a Diagnostic.
type Fix struct {
	Description string
	Replacement string
}

// Diagnostic is the unit of structured feedback the Analyzer (and, for
// fatal syntax errors, the Parser) produces.
type Diagnostic struct {
	Severity Severity
	Code     string
	Message  string
	Loc      Location
	Hint     string
	Fix      *Fix
}

// CatalogEntry documents one registered diagnostic code for `--explain
// CODE`-style tooling (§7). The spec requires the registry; SPEC_FULL.md §C
// notes it isn't otherwise fully spelled out in spec.md's prose, so this is
// the supplemented piece.
type CatalogEntry struct {
	Code        string
	Title       string
	Category    string
	Explanation string
}

// DiagnosticCatalog maps every code mentioned in spec.md to its
// documentation entry.
var DiagnosticCatalog = map[string]CatalogEntry{
	"E200": {"E200", "Undefined identifier", "scope", "A name was referenced that isn't bound in any enclosing scope, a built-in, or an import."},
	"E201": {"E201", "Duplicate declaration", "scope", "Two declarations in the same frame bind the same name."},
	"E202": {"E202", "Reassignment of immutable binding", "mutability", "A name bound without `var` was reassigned; declare it `var` to allow reassignment."},
	"E300": {"E300", "await outside async fn", "control-flow", "`await` can only appear inside a function declared `async`."},
	"E301": {"E301", "return outside function", "control-flow", "`return` can only appear inside a function body."},
	"E302": {"E302", "client construct outside client block", "blocks", "`state`/`computed`/`component` may only appear inside a `client { }` block."},
	"E303": {"E303", "server construct outside server block", "blocks", "`route` and other server-only declarations may only appear inside a `server { }` block."},
	"E304": {"E304", "break/continue outside loop", "control-flow", "`break` and `continue` can only appear inside a `for` or `while` body."},
	"W001": {"W001", "Unused local variable", "usage", "A local variable is never read after being bound."},
	"W002": {"W002", "Unused private function", "usage", "A non-exported function is never called."},
	"W003": {"W003", "Unused parameter", "usage", "A function parameter is never read in its body."},
	"W101": {"W101", "Shadowed binding across function boundary", "scope", "A nested function rebinds a name already bound in an enclosing scope."},
	"W200": {"W200", "Non-exhaustive match", "exhaustiveness", "A match over a closed variant set doesn't cover every member and has no wildcard arm."},
	"W_UNDEFINED_ROLE":        {"W_UNDEFINED_ROLE", "Protect references undefined role", "security", "A `protect` rule names a role no `role` declaration ever defines."},
	"W_DUPLICATE_ROLE":        {"W_DUPLICATE_ROLE", "Duplicate role declaration", "security", "The same role name is declared more than once."},
	"W_PROTECT_WITHOUT_AUTH":  {"W_PROTECT_WITHOUT_AUTH", "Protect without auth", "security", "A `protect` rule exists but no `auth` is configured anywhere."},
	"W_PROTECT_NO_REQUIRE":    {"W_PROTECT_NO_REQUIRE", "Protect without require", "security", "A `protect` rule has no `require` clause and so enforces nothing."},
	"W_UNKNOWN_AUTH_TYPE":     {"W_UNKNOWN_AUTH_TYPE", "Unknown auth type", "security", "`auth` names a type other than `jwt` or `api_key`."},
	"W_HARDCODED_SECRET":      {"W_HARDCODED_SECRET", "Hardcoded secret literal", "security", "A secret-shaped config value is a literal instead of `env(\"...\")`."},
	"W_CORS_WILDCARD":         {"W_CORS_WILDCARD", "CORS wildcard origin", "security", "`cors.origins` contains \"*\"."},
	"W_LOCALSTORAGE_TOKEN":    {"W_LOCALSTORAGE_TOKEN", "JWT stored outside cookie", "security", "JWT auth defaults to client-side storage rather than an HttpOnly cookie."},
	"W_CSRF_DISABLED":         {"W_CSRF_DISABLED", "CSRF protection disabled", "security", "`csrf.enabled` is explicitly false."},
	"W_INVALID_RATE_LIMIT":    {"W_INVALID_RATE_LIMIT", "Invalid rate limit", "security", "A rate limit's max or window is non-positive."},
	"W_NO_AUTH_RATELIMIT":     {"W_NO_AUTH_RATELIMIT", "Auth without rate limiting", "security", "Auth is configured but no rate limiting exists anywhere."},
	"W_INMEMORY_RATELIMIT":    {"W_INMEMORY_RATELIMIT", "In-memory rate limit store", "security", "Advisory: the generated rate limiter is per-process in-memory state."},
	"W_HASH_NOT_ENFORCED":     {"W_HASH_NOT_ENFORCED", "Sensitive field hash not enforced", "security", "Advisory: a `hash:` config on a sensitive field isn't enforced at write time."},
	"W_UNKNOWN_TRAIT":         {"W_UNKNOWN_TRAIT", "Unknown derive trait", "derive", "`derive` names a trait that isn't Eq, Show, JSON, or a trait declared in the program."},
}

// CatalogEntryFor looks up a code's documentation; ok is false for unknown
// codes.
func CatalogEntryFor(code string) (CatalogEntry, bool) {
	e, ok := DiagnosticCatalog[code]
	return e, ok
}

// Explain renders the `--explain CODE` text for tooling.
func Explain(code string) string {
	e, ok := CatalogEntryFor(code)
	if !ok {
		return fmt.Sprintf("%s: no catalog entry registered", code)
	}
	return fmt.Sprintf("[%s] %s (%s)\n%s", e.Code, e.Title, e.Category, e.Explanation)
}

// ignoreDirective records which codes a `// tova-ignore CODE[, CODE]*`
// comment on or preceding a given line suppresses.
type ignoreDirective struct {
	line  int
	codes map[string]bool
}

// SuppressionTable indexes tova-ignore directives by the line they apply
// to (their own line, or the line immediately following when the comment
// sits alone on a line above a declaration).
type SuppressionTable struct {
	byLine map[int]map[string]bool
}

// NewSuppressionTable scans raw source for `// tova-ignore` comments.
func NewSuppressionTable(source string) *SuppressionTable {
	t := &SuppressionTable{byLine: map[int]map[string]bool{}}
	lines := strings.Split(source, "\n")
	for i, line := range lines {
		idx := strings.Index(line, "// tova-ignore")
		if idx < 0 {
			continue
		}
		rest := strings.TrimSpace(line[idx+len("// tova-ignore"):])
		codes := map[string]bool{}
		if rest == "" {
			// bare `// tova-ignore` suppresses everything on the line(s) it covers
			codes["*"] = true
		} else {
			for _, c := range strings.Split(rest, ",") {
				c = strings.TrimSpace(c)
				if c != "" {
					codes[c] = true
				}
			}
		}
		lineNo := i + 1
		t.add(lineNo, codes)
		// Also cover the next line when the directive sits alone on its own
		// line: it then suppresses the declaration that follows it.
		if strings.TrimSpace(line[:idx]) == "" {
			t.add(lineNo+1, codes)
		}
	}
	return t
}

func (t *SuppressionTable) add(line int, codes map[string]bool) {
	if t.byLine[line] == nil {
		t.byLine[line] = map[string]bool{}
	}
	for c := range codes {
		t.byLine[line][c] = true
	}
}

// Suppresses reports whether code is suppressed at loc.Line.
func (t *SuppressionTable) Suppresses(loc Location, code string) bool {
	set, ok := t.byLine[loc.Line]
	if !ok {
		return false
	}
	return set["*"] || set[code]
}

// Filter removes every diagnostic this table suppresses.
func (t *SuppressionTable) Filter(diags []Diagnostic) []Diagnostic {
	out := diags[:0:0]
	for _, d := range diags {
		if !t.Suppresses(d.Loc, d.Code) {
			out = append(out, d)
		}
	}
	return out
}

// FormatDiagnostic renders the human-readable form described in §6: two
// context lines above, one below, a caret at the column, the code in
// brackets, an optional hint line, and an optional fix line.
func FormatDiagnostic(d Diagnostic, source string) string {
	lines := strings.Split(source, "\n")
	var b strings.Builder
	fmt.Fprintf(&b, "%s: [%s] %s\n", d.Loc, d.Code, d.Message)

	first := d.Loc.Line - 2
	if first < 1 {
		first = 1
	}
	last := d.Loc.Line + 1
	if last > len(lines) {
		last = len(lines)
	}
	for ln := first; ln <= last; ln++ {
		if ln < 1 || ln > len(lines) {
			continue
		}
		fmt.Fprintf(&b, "%4d | %s\n", ln, lines[ln-1])
		if ln == d.Loc.Line {
			col := d.Loc.Column
			if col < 1 {
				col = 1
			}
			b.WriteString(strings.Repeat(" ", col+6))
			b.WriteString("^\n")
		}
	}
	if d.Hint != "" {
		fmt.Fprintf(&b, "hint: %s\n", d.Hint)
	}
	if d.Fix != nil {
		fmt.Fprintf(&b, "fix: %s\n", d.Fix.Description)
	}
	return b.String()
}

// ApplyFix applies a Diagnostic's Fix.Replacement to the Loc.Line-th line
// of source (columns [Loc.Column, Loc.Column+Loc.Length)), returning the
// updated source. It is a no-op (returns source unchanged) if d.Fix is nil
// or the location doesn't address a valid span.
func ApplyFix(source string, d Diagnostic) string {
	if d.Fix == nil {
		return source
	}
	lines := strings.Split(source, "\n")
	idx := d.Loc.Line - 1
	if idx < 0 || idx >= len(lines) {
		return source
	}
	line := lines[idx]
	runes := []rune(line)
	start := d.Loc.Column - 1
	if start < 0 || start > len(runes) {
		return source
	}
	end := start + d.Loc.Length
	if end > len(runes) {
		end = len(runes)
	}
	newLine := string(runes[:start]) + d.Fix.Replacement + string(runes[end:])
	lines[idx] = newLine
	return strings.Join(lines, "\n")
}

// sortDiagnostics orders diagnostics by location for stable, reproducible
// output (errors and warnings interleaved by position).
func sortDiagnostics(diags []Diagnostic) {
	sort.SliceStable(diags, func(i, j int) bool {
		a, b := diags[i].Loc, diags[j].Loc
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})
}
