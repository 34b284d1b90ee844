package tovac

import "strings"

// compatible implements §4.3's type-compatibility function over the
// nominal string representation described in §3. aliases resolves type
// aliases transitively before comparison; strict selects the stricter
// Unknown/Any rule.
func (a *Analyzer) compatible(expected, actual string) bool {
	expected = a.resolveAlias(expected)
	actual = a.resolveAlias(actual)
	if expected == "" || actual == "" {
		return true
	}
	if expected == actual {
		return true
	}
	if !a.strict {
		if expected == "Any" || expected == "Unknown" || actual == "Any" || actual == "Unknown" {
			return true
		}
	} else {
		if expected == "Any" || actual == "Any" {
			return true
		}
		if expected == "Unknown" || actual == "Unknown" {
			return expected == actual
		}
	}
	if expected == "Float" && actual == "Int" {
		return true
	}
	if actual == "Nil" && strings.Contains(expected, "Nil") {
		return true
	}
	if strings.Contains(expected, "|") {
		for _, part := range strings.Split(expected, "|") {
			if a.compatible(strings.TrimSpace(part), actual) {
				return true
			}
		}
		return false
	}
	return false
}

// resolveAlias follows a chain of `type X<T> = Y` declarations to their
// final target, stopping at the first cycle or unknown name.
func (a *Analyzer) resolveAlias(t string) string {
	seen := map[string]bool{}
	for {
		al, ok := a.aliases[t]
		if !ok || seen[t] {
			return t
		}
		seen[t] = true
		t = al.Target
	}
}

// --- narrowing (§4.3) ---

// applyNarrow rewrites the binding cond's comparison targets in scope
// (which must be a freshly created child frame) to a narrowed
// DeclaredType, for the consequent (true) or alternate (false) branch of
// an if/guard. Supported shapes: `x == nil` / `x != nil`, `type_of(x) ==
// "T"`, `result.isOk()`, and `and`/`or`/`not` compositions of those.
func applyNarrow(scope *Scope, cond Expr, consequent bool) {
	if cond == nil {
		return
	}
	switch c := cond.(type) {
	case *BinaryExpr:
		if c.Op != "==" && c.Op != "!=" {
			return
		}
		if target, isNil := nilCompareTarget(c); isNil {
			name, ok := identName(target)
			if !ok {
				return
			}
			nilBranch := (c.Op == "==") == consequent
			if nilBranch {
				narrowBinding(scope, name, "Nil")
			} else {
				narrowBinding(scope, name, "")
			}
			return
		}
		if call, ok := c.Left.(*CallExpr); ok {
			if callee, ok := call.Callee.(*IdentExpr); ok && callee.Name == "type_of" && len(call.Args) == 1 {
				if name, ok := identName(call.Args[0].Value); ok {
					if str, ok := c.Right.(*StringExpr); ok && c.Op == "==" && consequent {
						narrowBinding(scope, name, str.Value)
					}
				}
			}
		}
	case *CallExpr:
		if mem, ok := c.Callee.(*MemberExpr); ok && mem.Name == "isOk" && len(c.Args) == 0 {
			if name, ok := identName(mem.Object); ok && consequent {
				narrowBinding(scope, name, "Ok")
			}
		}
	case *UnaryExpr:
		if c.Op == "!" || c.Op == "not" {
			applyNarrow(scope, c.Operand, !consequent)
		}
	case *LogicalExpr:
		isAnd := c.Op == "and" || c.Op == "&&"
		if isAnd && consequent {
			applyNarrow(scope, c.Left, true)
			applyNarrow(scope, c.Right, true)
		} else if !isAnd && !consequent {
			applyNarrow(scope, c.Left, false)
			applyNarrow(scope, c.Right, false)
		}
	}
}

func nilCompareTarget(c *BinaryExpr) (Expr, bool) {
	if _, ok := c.Right.(*NilExpr); ok {
		return c.Left, true
	}
	if _, ok := c.Left.(*NilExpr); ok {
		return c.Right, true
	}
	return nil, false
}

func identName(e Expr) (string, bool) {
	if id, ok := e.(*IdentExpr); ok {
		return id.Name, true
	}
	return "", false
}

// narrowBinding shadows name in scope with a binding carrying typ as its
// DeclaredType, so later lookups inside the narrowed branch see the
// refined type. typ == "" narrows to "the non-nil union component",
// approximated here by clearing the type (compatible() then treats it as
// Unknown and accepts any use, which is sound since we don't track the
// original union's member list as a structured type).
func narrowBinding(scope *Scope, name, typ string) {
	b, _, ok := scope.Lookup(name)
	if !ok {
		return
	}
	scope.Define(&Binding{Name: name, Kind: b.Kind, DeclaredType: typ, DeclaredAt: b.DeclaredAt, Used: b.Used})
}

// --- exhaustiveness (§4.3: W200) ---

// checkMatchExhaustiveness emits one W200 per uncovered variant when
// subject's static type is a known sum type and the arms contain no
// wildcard. Finite literal domains are not checked.
func (a *Analyzer) checkMatchExhaustiveness(subject Expr, patterns []Pattern, loc Location, scope *Scope) {
	for _, p := range patterns {
		if _, ok := p.(*WildcardPattern); ok {
			return
		}
		if bp, ok := p.(*BindingPattern); ok && bp.Name != "" {
			// a bare-name arm behaves like a wildcard. Guards are not passed
			// in, so a guarded bare-name arm also ends the check.
			return
		}
	}
	typeName := a.subjectTypeName(subject, scope)
	if typeName == "" {
		return
	}
	td, ok := a.userTypes[typeName]
	if !ok || len(td.Variants) == 0 {
		return
	}
	covered := map[string]bool{}
	for _, p := range patterns {
		if vp, ok := p.(*VariantPattern); ok {
			covered[vp.Name] = true
		}
	}
	for _, v := range td.Variants {
		if !covered[v.Name] {
			a.warnf("W200", loc, "non-exhaustive match over '%s': missing variant '%s'", typeName, v.Name)
		}
	}
}

func (a *Analyzer) subjectTypeName(subject Expr, scope *Scope) string {
	id, ok := subject.(*IdentExpr)
	if !ok {
		return ""
	}
	b, _, ok := scope.Lookup(id.Name)
	if !ok {
		return ""
	}
	return b.DeclaredType
}
