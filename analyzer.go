package tovac

import (
	"fmt"
	"strings"
)

// Analyzer is the tree walk that turns a parsed Program into a diagnostic
// list (§4.3). Grounded on the teacher's own evaluation pass (Execute/
// ExecuteWrapper in the now-deleted nodes.go) in spirit — a single
// depth-first walk accumulating output — generalized from "render a
// value" to "validate and optionally fold."
type Analyzer struct {
	file     string
	source   string
	strict   bool
	tolerant bool
	builtins *BuiltinSet

	diags []Diagnostic

	funcDepth   int
	asyncDepth  int
	loopDepth   int
	inClient    bool
	inServer    bool

	userFuncs map[string]*FunctionDecl
	userTypes map[string]*TypeDecl
	aliases   map[string]*TypeAliasDecl
	traits    map[string]*TraitDecl

	securityLeaves []*SecurityLeaf
}

// NewAnalyzer creates an Analyzer for one file. strict enables §4.3's
// stricter assignability and promotes a designated warning subset to
// errors (§7); tolerant collects every diagnostic instead of stopping at
// the first error, which is the mode an IDE integration needs.
func NewAnalyzer(file, source string, strict, tolerant bool) *Analyzer {
	return &Analyzer{
		file:      file,
		source:    source,
		strict:    strict,
		tolerant:  tolerant,
		builtins:  NewBuiltinSet(),
		userFuncs: map[string]*FunctionDecl{},
		userTypes: map[string]*TypeDecl{},
		aliases:   map[string]*TypeAliasDecl{},
		traits:    map[string]*TraitDecl{},
	}
}

// Analyze walks prog and returns every diagnostic. In tolerant mode err is
// always nil; otherwise err is the first error-severity diagnostic
// encountered, matching the "prevents code generation" contract of §7.
func (a *Analyzer) Analyze(prog *Program) ([]Diagnostic, error) {
	root := NewScope()
	a.hoist(prog.Decls, root, true)
	for _, d := range prog.Decls {
		a.analyzeDecl(d, root)
	}
	a.sweepUnused(root)
	a.checkSecurity()

	sortDiagnostics(a.diags)
	if !a.tolerant {
		for _, d := range a.diags {
			if a.severity(d) == SeverityError {
				return a.diags, fmt.Errorf("%s: [%s] %s", d.Loc, d.Code, d.Message)
			}
		}
	}
	return a.diags, nil
}

// severity applies strict-mode promotion: W200 and W101 become errors in
// strict mode, matching §4.3's "strict mode elevates some warnings to
// errors."
func (a *Analyzer) severity(d Diagnostic) Severity {
	if a.strict && (d.Code == "W200" || d.Code == "W101") {
		return SeverityError
	}
	return d.Severity
}

func (a *Analyzer) report(sev Severity, code, msg string, loc Location, hint string, fix *Fix) {
	a.diags = append(a.diags, Diagnostic{Severity: sev, Code: code, Message: msg, Loc: loc, Hint: hint, Fix: fix})
}

func (a *Analyzer) errorf(code string, loc Location, format string, args ...any) {
	a.report(SeverityError, code, fmt.Sprintf(format, args...), loc, "", nil)
}

func (a *Analyzer) warnf(code string, loc Location, format string, args ...any) {
	a.report(SeverityWarning, code, fmt.Sprintf(format, args...), loc, "", nil)
}

// --- hoisting (§4.3: functions, types, imports, variants are hoisted) ---

func (a *Analyzer) hoist(decls []Decl, scope *Scope, isRoot bool) {
	for _, d := range decls {
		switch n := d.(type) {
		case *FunctionDecl:
			// Module-level exports are never flagged (§4.3); a module-level
			// function without `pub` is "private" and is tracked for W002
			// like any other local function.
			a.defineFunc(scope, n, isRoot && n.IsPublic)
		case *TypeDecl:
			a.defineOrDup(scope, n.Name, BindType, n.Name, n.Location())
			a.userTypes[n.Name] = n
			for _, v := range n.Variants {
				a.defineOrDup(scope, v.Name, BindVariant, n.Name, n.Location())
			}
		case *TypeAliasDecl:
			a.defineOrDup(scope, n.Name, BindType, n.Target, n.Location())
			a.aliases[n.Name] = n
		case *InterfaceDecl:
			a.defineOrDup(scope, n.Name, BindType, n.Name, n.Location())
		case *TraitDecl:
			a.defineOrDup(scope, n.Name, BindType, n.Name, n.Location())
			a.traits[n.Name] = n
		case *ImportDecl:
			name := n.Alias
			if name == "" {
				name = lastPathSegment(n.Path)
			}
			if len(n.Members) > 0 {
				for _, m := range n.Members {
					a.defineOrDup(scope, m, BindImport, "", n.Location())
				}
			} else {
				a.defineOrDup(scope, name, BindImport, "", n.Location())
			}
		case *Block:
			a.hoist(n.Decls, scope, isRoot)
		case *VarDeclStmt:
			// top-level `let`/`var` also hoists its bound names so later
			// declarations in the same block can reference it regardless
			// of source order, matching function/type hoisting. Module-
			// level variables are never flagged unused (§4.3).
			a.hoistPatternNames(n, scope, isRoot)
		}
	}
}

// defineFunc binds a function's name, tracking it for W002 unless exempt
// (a public module-level declaration, per §4.3's export exemption).
func (a *Analyzer) defineFunc(scope *Scope, n *FunctionDecl, exempt bool) {
	b := &Binding{Name: n.Name, Kind: BindFunction, DeclaredType: n.ReturnType, DeclaredAt: n.Location(), Used: exempt}
	if n.Name != "" && n.Name != "_" && !scope.Define(b) {
		a.errorf("E201", n.Location(), "'%s' is already declared in this scope", n.Name)
	}
	a.userFuncs[n.Name] = n
}

func (a *Analyzer) hoistPatternNames(v *VarDeclStmt, scope *Scope, exempt bool) {
	kind := BindImmutable
	if v.Mutable {
		kind = BindMutable
	}
	if v.Target.Ident != "" {
		a.defineBinding(scope, v.Target.Ident, kind, v.DeclType, v.Location(), exempt)
		return
	}
	if v.Target.Destruct != nil {
		for _, name := range patternNames(v.Target.Destruct) {
			a.defineBinding(scope, name, kind, "", v.Location(), exempt)
		}
	}
}

func (a *Analyzer) defineBinding(scope *Scope, name string, kind BindingKind, typ string, loc Location, used bool) {
	if name == "" || name == "_" {
		return
	}
	b := &Binding{Name: name, Kind: kind, DeclaredType: typ, DeclaredAt: loc, Used: used}
	if !scope.Define(b) {
		a.errorf("E201", loc, "'%s' is already declared in this scope", name)
	}
}

func (a *Analyzer) defineOrDup(scope *Scope, name string, kind BindingKind, typ string, loc Location) {
	if name == "" || name == "_" {
		return
	}
	b := &Binding{Name: name, Kind: kind, DeclaredType: typ, DeclaredAt: loc}
	if kind == BindFunction || kind == BindType || kind == BindImport || kind == BindVariant {
		// Module-level exports are never flagged unused (§4.3) and hoisted
		// names are allowed to be predeclared by an earlier pass; treat
		// re-declaration at the same frame as the only real conflict.
		b.Used = true
	}
	if !scope.Define(b) {
		a.errorf("E201", loc, "'%s' is already declared in this scope", name)
	}
}

func patternNames(p Pattern) []string {
	switch n := p.(type) {
	case *BindingPattern:
		return []string{n.Name}
	case *ArrayPattern:
		var out []string
		for _, e := range n.Elements {
			out = append(out, patternNames(e)...)
		}
		if n.Rest != "" {
			out = append(out, n.Rest)
		}
		return out
	case *ObjectPattern:
		var out []string
		for _, f := range n.Fields {
			if f.Value == nil {
				out = append(out, f.Key)
			} else {
				out = append(out, patternNames(f.Value)...)
			}
		}
		return out
	case *VariantPattern:
		var out []string
		for _, f := range n.Fields {
			out = append(out, patternNames(f)...)
		}
		return out
	case *StringConcatPattern:
		if n.Rest != "" {
			return []string{n.Rest}
		}
	}
	return nil
}

func lastPathSegment(path string) string {
	path = strings.Trim(path, "\"")
	parts := strings.Split(path, "/")
	last := parts[len(parts)-1]
	last = strings.TrimSuffix(last, ".tova")
	return last
}

// --- declarations ---

func (a *Analyzer) analyzeDecl(d Decl, scope *Scope) {
	switch n := d.(type) {
	case *ImportDecl:
		// nothing further to validate; name already bound by hoist.
	case *FunctionDecl:
		a.analyzeFunction(n, scope)
	case *TypeDecl:
		for _, trait := range n.Derive {
			if !isKnownTrait(trait) {
				if _, ok := a.traits[trait]; !ok {
					a.warnf("W_UNKNOWN_TRAIT", n.Location(), "derive names unknown trait '%s'", trait)
				}
			}
		}
	case *TypeAliasDecl, *InterfaceDecl:
		// purely structural, nothing to walk.
	case *TraitDecl:
		for _, m := range n.Methods {
			if m.Body != nil {
				child := scope.Child()
				for _, p := range m.Params {
					a.defineOrDup(child, p.Name, BindParam, p.Type, n.Location())
				}
				a.funcDepth++
				a.analyzeBlock(m.Body, child)
				a.funcDepth--
			}
		}
	case *ImplDecl:
		for _, m := range n.Methods {
			a.analyzeFunction(m, scope)
		}
	case *RouteDecl:
		if !a.inServer {
			a.errorf("E303", n.Location(), "'route' is only valid inside a server block")
		}
		if n.Handler != nil {
			a.analyzeFunction(n.Handler, scope)
		}
		for _, mw := range n.Middleware {
			for _, arg := range mw.Args {
				a.analyzeExpr(arg, scope)
			}
		}
	case *Block:
		a.analyzeBlockDecl(n, scope)
	case *ServerLeaf:
		a.analyzeServerLeaf(n, scope)
	case *SecurityLeaf:
		a.analyzeSecurityLeaf(n, scope)
	case *ClientLeaf:
		a.analyzeClientLeaf(n, scope)
	case *TestLeaf:
		child := scope.Child()
		a.analyzeBlock(n.Body, child)
		a.sweepUnused(child)
	case *VarDeclStmt:
		a.analyzeVarDeclValue(n, scope)
	}
}

func isKnownTrait(name string) bool {
	switch name {
	case "Eq", "Show", "JSON":
		return true
	}
	return false
}

func (a *Analyzer) analyzeBlockDecl(b *Block, scope *Scope) {
	prevClient, prevServer := a.inClient, a.inServer
	switch b.Kind {
	case BlockClient:
		a.inClient, a.inServer = true, false
	case BlockServer:
		a.inClient, a.inServer = false, true
	case BlockShared, BlockSecurity, BlockTest:
		a.inClient, a.inServer = false, false
	}
	child := scope.Child()
	a.hoist(b.Decls, child, true)
	for _, d := range b.Decls {
		a.analyzeDecl(d, child)
	}
	a.sweepUnused(child)
	a.inClient, a.inServer = prevClient, prevServer
}

func (a *Analyzer) analyzeServerLeaf(n *ServerLeaf, scope *Scope) {
	if !a.inServer {
		a.errorf("E303", n.Location(), "'%s' is only valid inside a server block", n.Keyword)
	}
	for _, arg := range n.Args {
		a.analyzeExpr(arg, scope)
	}
	for _, c := range n.Config {
		a.analyzeExpr(c.Value, scope)
	}
	if n.Handler != nil {
		a.analyzeFunction(n.Handler, scope)
	}
}

func (a *Analyzer) analyzeSecurityLeaf(n *SecurityLeaf, scope *Scope) {
	for _, arg := range n.Args {
		a.analyzeExpr(arg, scope)
	}
	for _, c := range n.Config {
		a.analyzeExpr(c.Value, scope)
	}
	a.securityLeaves = append(a.securityLeaves, n)
}

func (a *Analyzer) analyzeClientLeaf(n *ClientLeaf, scope *Scope) {
	if !a.inClient {
		a.errorf("E302", n.Location(), "'%s' is only valid inside a client block", n.Keyword)
	}
	child := scope.Child()
	for _, p := range n.Params {
		a.defineOrDup(child, p.Name, BindParam, p.Type, n.Location())
	}
	if n.InitValue != nil {
		a.analyzeExpr(n.InitValue, scope)
	}
	if n.Computed != nil {
		a.analyzeExpr(n.Computed, child)
	}
	if n.Expr != nil {
		a.analyzeExpr(n.Expr, child)
	}
	if n.Body != nil {
		a.analyzeBlock(n.Body, child)
	}
	if n.Keyword != "component" && n.Keyword != "effect" {
		a.sweepUnused(child)
	}
}

func (a *Analyzer) analyzeVarDeclValue(v *VarDeclStmt, scope *Scope) {
	if v.Value != nil {
		a.analyzeExpr(v.Value, scope)
	}
}

func (a *Analyzer) analyzeFunction(f *FunctionDecl, scope *Scope) {
	child := scope.Child()
	for _, p := range f.Params {
		a.defineOrDup(child, p.Name, BindParam, p.Type, f.Location())
		if p.Default != nil {
			a.analyzeExpr(p.Default, scope)
		}
	}
	a.funcDepth++
	if f.IsAsync {
		a.asyncDepth++
	}
	if f.Body != nil {
		a.analyzeBlock(f.Body, child)
	}
	if f.IsAsync {
		a.asyncDepth--
	}
	a.funcDepth--

	for _, p := range f.Params {
		if strings.HasPrefix(p.Name, "_") {
			continue
		}
		if b, ok := child.LookupLocal(p.Name); ok && !b.Used {
			a.warnf("W003", f.Location(), "parameter '%s' is never used", p.Name)
		}
	}
	a.sweepUnusedLocalsOnly(child)
}

// --- statements ---

func (a *Analyzer) analyzeBlock(b *BlockStmt, scope *Scope) {
	a.hoistStmtFuncs(b.Stmts, scope)
	for _, s := range b.Stmts {
		a.analyzeStmt(s, scope)
	}
}

func (a *Analyzer) hoistStmtFuncs(stmts []Stmt, scope *Scope) {
	for _, s := range stmts {
		if fn, ok := s.(*FunctionDecl); ok {
			a.defineFunc(scope, fn, false)
		}
	}
}

func (a *Analyzer) analyzeStmt(s Stmt, scope *Scope) {
	switch n := s.(type) {
	case *BlockStmt:
		child := scope.Child()
		a.analyzeBlock(n, child)
		a.sweepUnused(child)
	case *VarDeclStmt:
		if n.Value != nil {
			a.analyzeExpr(n.Value, scope)
		}
		kind := BindImmutable
		if n.Mutable {
			kind = BindMutable
		}
		if n.Target.Ident != "" {
			a.defineVar(scope, n.Target.Ident, kind, n.DeclType, n.Location())
		} else if n.Target.Destruct != nil {
			a.analyzeDestructTargets(n.Target.Destruct, scope, kind, n.Location())
		}
	case *AssignStmt:
		for _, v := range n.Values {
			a.analyzeExpr(v, scope)
		}
		for _, t := range n.Targets {
			a.analyzeAssignTarget(t, scope, n.Location())
		}
	case *CompoundAssignStmt:
		a.analyzeExpr(n.Value, scope)
		a.analyzeAssignTarget(n.Target, scope, n.Location())
	case *FunctionDecl:
		a.analyzeFunction(n, scope)
	case *ExprStmt:
		a.analyzeExpr(n.Value, scope)
	case *ReturnStmt:
		if a.funcDepth == 0 {
			a.errorf("E301", n.Location(), "'return' outside function")
		}
		if n.Value != nil {
			a.analyzeExpr(n.Value, scope)
		}
	case *BreakStmt:
		if a.loopDepth == 0 {
			a.errorf("E304", n.Location(), "'break' outside loop")
		}
	case *ContinueStmt:
		if a.loopDepth == 0 {
			a.errorf("E304", n.Location(), "'continue' outside loop")
		}
	case *IfStmt:
		a.analyzeExpr(n.Cond, scope)
		a.analyzeNarrowedBlock(n.Cond, n.Then, scope, true)
		for i, c := range n.ElifConds {
			a.analyzeExpr(c, scope)
			a.analyzeNarrowedBlock(c, n.ElifBodies[i], scope, true)
		}
		if n.Else != nil {
			child := scope.Child()
			a.analyzeBlock(n.Else, child)
			a.sweepUnused(child)
		}
	case *ForStmt:
		a.analyzeExpr(n.Iter, scope)
		child := scope.Child()
		seen := map[string]bool{}
		for _, v := range n.Vars {
			if v == "" || v == "_" {
				continue
			}
			if seen[v] {
				a.errorf("E201", n.Location(), "for loop variable '%s' repeated", v)
				continue
			}
			seen[v] = true
			a.defineOrDup(child, v, BindImmutable, "", n.Location())
		}
		a.loopDepth++
		a.analyzeBlock(n.Body, child)
		a.loopDepth--
		a.sweepUnused(child)
	case *WhileStmt:
		a.analyzeExpr(n.Cond, scope)
		child := scope.Child()
		a.loopDepth++
		a.analyzeBlock(n.Body, child)
		a.loopDepth--
		a.sweepUnused(child)
	case *GuardStmt:
		a.analyzeExpr(n.Cond, scope)
		elseChild := scope.Child()
		a.analyzeBlock(n.Else, elseChild)
		a.sweepUnused(elseChild)
		applyNarrow(scope, n.Cond, true)
	case *MatchStmt:
		a.analyzeExpr(n.Subject, scope)
		for _, arm := range n.Arms {
			child := scope.Child()
			a.bindPattern(arm.Pattern, child, n.Subject.Location())
			if arm.Guard != nil {
				a.analyzeExpr(arm.Guard, child)
			}
			a.analyzeBlock(arm.Body, child)
			a.sweepUnused(child)
		}
		a.checkMatchExhaustiveness(n.Subject, patternsOf(n.Arms), n.Location(), scope)
	case *DeferStmt:
		a.analyzeExpr(n.Call, scope)
	}
}

// analyzeNarrowedBlock applies the narrowing rules of §4.3 (nil-check,
// type_of, Result.isOk) to cond, analyzes body in a scope carrying that
// narrowing, then discards it — narrowing from an `if` only holds inside
// the consequent.
func (a *Analyzer) analyzeNarrowedBlock(cond Expr, body *BlockStmt, scope *Scope, consequent bool) {
	child := scope.Child()
	applyNarrow(child, cond, consequent)
	a.analyzeBlock(body, child)
	a.sweepUnused(child)
}

func (a *Analyzer) analyzeDestructTargets(p Pattern, scope *Scope, kind BindingKind, loc Location) {
	for _, name := range patternNames(p) {
		a.defineVar(scope, name, kind, "", loc)
	}
}

func (a *Analyzer) defineVar(scope *Scope, name string, kind BindingKind, typ string, loc Location) {
	if name == "_" {
		return
	}
	if !scope.Define(&Binding{Name: name, Kind: kind, DeclaredType: typ, DeclaredAt: loc}) {
		a.errorf("E201", loc, "'%s' is already declared in this scope", name)
	}
}

func (a *Analyzer) analyzeAssignTarget(t AssignTarget, scope *Scope, loc Location) {
	if t.Ident != "" {
		b, _, ok := scope.Lookup(t.Ident)
		if !ok {
			// A bare `name = expr` with no prior binding is how Tova
			// declares an immutable name without `var`; only a later
			// assignment to that same binding is a reassignment.
			a.defineVar(scope, t.Ident, BindImmutable, "", loc)
			return
		}
		if b.Kind == BindImmutable {
			a.report(SeverityError, "E202", fmt.Sprintf("cannot reassign immutable binding '%s'", t.Ident), loc, "", &Fix{
				Description: fmt.Sprintf("Declare '%s' as mutable with 'var'", t.Ident),
				Replacement: fmt.Sprintf("var %s = ...", t.Ident),
			})
			return
		}
		scope.MarkUsed(t.Ident, loc)
		return
	}
	if t.Member != nil {
		a.analyzeExpr(t.Member, scope)
		return
	}
	if t.Destruct != nil {
		for _, name := range patternNames(t.Destruct) {
			if name == "_" {
				continue
			}
			if b, _, ok := scope.Lookup(name); ok {
				if b.Kind == BindImmutable {
					a.errorf("E202", loc, "cannot reassign immutable binding '%s'", name)
					continue
				}
				scope.MarkUsed(name, loc)
			} else {
				a.defineVar(scope, name, BindImmutable, "", loc)
			}
		}
	}
}

// --- unused-binding sweep (§4.3: W001/W002/W003, "_"-exempt) ---

func (a *Analyzer) sweepUnused(s *Scope) {
	for name, b := range s.Local() {
		if strings.HasPrefix(name, "_") {
			continue
		}
		if b.Used {
			continue
		}
		switch b.Kind {
		case BindImmutable, BindMutable:
			a.warnf("W001", b.DeclaredAt, "'%s' is never used", name)
		case BindFunction:
			a.warnf("W002", b.DeclaredAt, "'%s' is never used", name)
		}
	}
}

// sweepUnusedLocalsOnly is used at function-body scope, where an inner
// function is local rather than module-level, so it warns exactly like
// sweepUnused (W002 included) — kept distinct only for call-site clarity.
func (a *Analyzer) sweepUnusedLocalsOnly(s *Scope) {
	a.sweepUnused(s)
}

func patternsOf(arms []MatchStmtArm) []Pattern {
	out := make([]Pattern, len(arms))
	for i, arm := range arms {
		out[i] = arm.Pattern
	}
	return out
}
