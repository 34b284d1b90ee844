package tovac

import "fmt"

// analyzeExpr walks an expression, resolving identifiers against scope,
// marking uses, validating await/E300 placement, checking call arity, and
// recursing into every nested expression (§4.3).
func (a *Analyzer) analyzeExpr(e Expr, scope *Scope) {
	if e == nil {
		return
	}
	switch n := e.(type) {
	case *NumberExpr, *StringExpr, *RawStringExpr, *RegexExpr, *BoolExpr, *NilExpr:
		// literals: nothing to resolve.
	case *TemplateExpr:
		for _, part := range n.Parts {
			if part.IsExpr {
				a.analyzeExpr(part.Expr, scope)
			}
		}
	case *IdentExpr:
		a.resolveIdent(n.Name, n.Location(), scope)
	case *UnaryExpr:
		a.analyzeExpr(n.Operand, scope)
	case *BinaryExpr:
		a.analyzeExpr(n.Left, scope)
		a.analyzeExpr(n.Right, scope)
	case *LogicalExpr:
		a.analyzeExpr(n.Left, scope)
		a.analyzeExpr(n.Right, scope)
	case *ChainedComparisonExpr:
		for _, op := range n.Operands {
			a.analyzeExpr(op, scope)
		}
	case *MemberExpr:
		a.analyzeExpr(n.Object, scope)
	case *SubscriptExpr:
		a.analyzeExpr(n.Object, scope)
		a.analyzeExpr(n.Index, scope)
	case *SliceExpr:
		a.analyzeExpr(n.Object, scope)
		a.analyzeExpr(n.Start, scope)
		a.analyzeExpr(n.End, scope)
		a.analyzeExpr(n.Step, scope)
	case *CallExpr:
		a.analyzeExpr(n.Callee, scope)
		for _, arg := range n.Args {
			a.analyzeExpr(arg.Value, scope)
		}
		a.checkArity(n, scope)
	case *PipeExpr:
		a.analyzeExpr(n.Left, scope)
		a.analyzeExpr(n.Call, scope)
	case *LambdaExpr:
		child := scope.Child()
		for _, p := range n.Params {
			a.defineOrDup(child, p, BindParam, "", n.Location())
		}
		a.funcDepth++
		if n.IsAsync {
			a.asyncDepth++
		}
		if n.Body != nil {
			a.analyzeExpr(n.Body, child)
		}
		if n.Block != nil {
			a.analyzeBlock(n.Block, child)
		}
		if n.IsAsync {
			a.asyncDepth--
		}
		a.funcDepth--
		for _, p := range n.Params {
			if p == "_" || p == "it" {
				continue
			}
			if b, ok := child.LookupLocal(p); ok && !b.Used {
				a.warnf("W003", n.Location(), "parameter '%s' is never used", p)
			}
		}
	case *MatchExpr:
		a.analyzeExpr(n.Subject, scope)
		for _, arm := range n.Arms {
			child := scope.Child()
			a.bindPattern(arm.Pattern, child, n.Subject.Location())
			if arm.Guard != nil {
				a.analyzeExpr(arm.Guard, child)
			}
			a.analyzeExpr(arm.Body, child)
			a.sweepUnused(child)
		}
		a.checkMatchExhaustiveness(n.Subject, matchExprPatterns(n.Arms), n.Location(), scope)
	case *IfExpr:
		a.analyzeExpr(n.Cond, scope)
		thenScope := scope.Child()
		applyNarrow(thenScope, n.Cond, true)
		a.analyzeExpr(n.Then, thenScope)
		elseScope := scope.Child()
		applyNarrow(elseScope, n.Cond, false)
		if n.Else != nil {
			a.analyzeExpr(n.Else, elseScope)
		}
	case *YieldExpr:
		if n.Value != nil {
			a.analyzeExpr(n.Value, scope)
		}
	case *AwaitExpr:
		if a.asyncDepth == 0 {
			a.errorf("E300", n.Location(), "'await' outside async function")
		}
		a.analyzeExpr(n.Value, scope)
	case *PropagateExpr:
		a.analyzeExpr(n.Value, scope)
	case *ArrayExpr:
		for _, el := range n.Elements {
			a.analyzeExpr(el, scope)
		}
	case *ObjectExpr:
		for _, entry := range n.Entries {
			if entry.Computed {
				a.analyzeExpr(entry.Key, scope)
			}
			a.analyzeExpr(entry.Value, scope)
		}
	case *TupleExpr:
		for _, el := range n.Elements {
			a.analyzeExpr(el, scope)
		}
	case *ComprehensionExpr:
		a.analyzeExpr(n.Iter, scope)
		child := scope.Child()
		for _, v := range n.Vars {
			a.defineOrDup(child, v, BindImmutable, "", n.Location())
		}
		if n.Cond != nil {
			a.analyzeExpr(n.Cond, child)
		}
		if n.IsDict {
			a.analyzeExpr(n.KeyExpr, child)
		}
		a.analyzeExpr(n.ValExpr, child)
	case *JSXElement:
		for _, attr := range n.Attrs {
			if attr.Value != nil {
				a.analyzeExpr(attr.Value, scope)
			}
		}
		for _, c := range n.Children {
			a.analyzeExpr(c, scope)
		}
	case *JSXFragment:
		for _, c := range n.Children {
			a.analyzeExpr(c, scope)
		}
	case *JSXText:
		// no identifiers.
	case *JSXExprChild:
		a.analyzeExpr(n.Value, scope)
	case *JSXFor:
		a.analyzeExpr(n.Iter, scope)
		child := scope.Child()
		a.defineOrDup(child, n.Var, BindImmutable, "", n.Location())
		if n.KeyExpr != nil {
			a.analyzeExpr(n.KeyExpr, child)
		}
		for _, c := range n.Body {
			a.analyzeExpr(c, child)
		}
		a.sweepUnused(child)
	case *JSXIf:
		for _, br := range n.Branches {
			if br.Cond != nil {
				a.analyzeExpr(br.Cond, scope)
			}
			for _, c := range br.Body {
				a.analyzeExpr(c, scope)
			}
		}
	case *JSXSpreadAttr:
		a.analyzeExpr(n.Value, scope)
	}
}

func (a *Analyzer) resolveIdent(name string, loc Location, scope *Scope) {
	if name == "it" {
		return
	}
	if _, _, ok := scope.Lookup(name); ok {
		scope.MarkUsed(name, loc)
		return
	}
	a.undefined(name, loc)
}

func (a *Analyzer) undefined(name string, loc Location) {
	hint := ""
	if best, dist := a.closestKnownName(name); dist <= 2 && best != "" {
		hint = fmt.Sprintf("did you mean '%s'?", best)
	}
	a.report(SeverityError, "E200", fmt.Sprintf("undefined name '%s'", name), loc, hint, nil)
}

// closestKnownName finds the built-in with the smallest Levenshtein
// distance to name, for the E200 fix-it suggestion (§4.3).
func (a *Analyzer) closestKnownName(name string) (string, int) {
	best := ""
	bestDist := 1 << 30
	for _, known := range a.builtins.Names() {
		d := levenshtein(name, known)
		if d < bestDist {
			bestDist = d
			best = known
		}
	}
	for fn := range a.userFuncs {
		d := levenshtein(name, fn)
		if d < bestDist {
			bestDist = d
			best = fn
		}
	}
	return best, bestDist
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}
	prev := make([]int, lb+1)
	cur := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}
	for i := 1; i <= la; i++ {
		cur[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := cur[j-1] + 1
			sub := prev[j-1] + cost
			m := del
			if ins < m {
				m = ins
			}
			if sub < m {
				m = sub
			}
			cur[j] = m
		}
		prev, cur = cur, prev
	}
	return prev[lb]
}

// checkArity validates user-function call arity (§4.3). Spread arguments,
// calls whose callee is not a plain identifier (method calls), and calls
// to names that are not user functions (built-ins, variant constructors)
// are not checked.
func (a *Analyzer) checkArity(call *CallExpr, scope *Scope) {
	ident, ok := call.Callee.(*IdentExpr)
	if !ok {
		return
	}
	fn, ok := a.userFuncs[ident.Name]
	if !ok {
		return
	}
	for _, arg := range call.Args {
		if arg.Spread {
			return
		}
	}
	named := 0
	positional := 0
	for _, arg := range call.Args {
		if arg.Name != "" {
			named++
		} else {
			positional++
		}
	}
	required := 0
	for _, p := range fn.Params {
		if p.Default == nil && !p.Variadic {
			required++
		}
	}
	hasVariadic := len(fn.Params) > 0 && fn.Params[len(fn.Params)-1].Variadic
	total := positional + named
	if total < required {
		a.errorf("E200", call.Location(), "'%s' called with %d argument(s), expected at least %d", ident.Name, total, required)
		return
	}
	if !hasVariadic && total > len(fn.Params) {
		a.errorf("E200", call.Location(), "'%s' called with %d argument(s), expected at most %d", ident.Name, total, len(fn.Params))
	}
}

func matchExprPatterns(arms []MatchArm) []Pattern {
	out := make([]Pattern, len(arms))
	for i, arm := range arms {
		out[i] = arm.Pattern
	}
	return out
}

// bindPattern binds every name a pattern introduces into scope, used for
// match-arm bodies. Unlike analyzeAssignTarget this never checks mutability;
// a pattern binding always introduces a fresh immutable name.
func (a *Analyzer) bindPattern(p Pattern, scope *Scope, loc Location) {
	switch n := p.(type) {
	case *LiteralPattern:
		a.analyzeExpr(n.Value, scope)
	case *WildcardPattern:
	case *BindingPattern:
		a.defineOrDup(scope, n.Name, BindImmutable, "", loc)
	case *VariantPattern:
		for i, f := range n.Fields {
			_ = i
			a.bindPattern(f, scope, loc)
		}
	case *StringConcatPattern:
		if n.Rest != "" {
			a.defineOrDup(scope, n.Rest, BindImmutable, "", loc)
		}
	case *ArrayPattern:
		for _, el := range n.Elements {
			a.bindPattern(el, scope, loc)
		}
		if n.Rest != "" {
			a.defineOrDup(scope, n.Rest, BindImmutable, "", loc)
		}
	case *ObjectPattern:
		for _, f := range n.Fields {
			if f.Default != nil {
				a.analyzeExpr(f.Default, scope)
			}
			if f.Value != nil {
				a.bindPattern(f.Value, scope, loc)
			} else {
				a.defineOrDup(scope, f.Key, BindImmutable, "", loc)
			}
		}
	case *RangePattern:
		a.analyzeExpr(n.Low, scope)
		a.analyzeExpr(n.High, scope)
	}
}
