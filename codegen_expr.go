package tovac

import (
	"fmt"
	"strconv"
	"strings"
)

// lowerExpr renders one expression to its JavaScript equivalent (§4.4).
// It is a pure function of the AST: nothing it emits depends on which
// target buffer the caller eventually writes the result into, which is
// what lets both the client and server generators share it.
func lowerExpr(e Expr) string {
	switch n := e.(type) {
	case nil:
		return "undefined"
	case *NumberExpr:
		return n.Raw
	case *StringExpr:
		return strconv.Quote(n.Value)
	case *RawStringExpr:
		return strconv.Quote(n.Value)
	case *RegexExpr:
		return "/" + n.Pattern + "/" + n.Flags
	case *BoolExpr:
		if n.Value {
			return "true"
		}
		return "false"
	case *NilExpr:
		return "null"
	case *TemplateExpr:
		return lowerTemplate(n)
	case *IdentExpr:
		return n.Name
	case *UnaryExpr:
		op := n.Op
		if op == "not" {
			op = "!"
		}
		return op + lowerExpr(n.Operand)
	case *BinaryExpr:
		return lowerBinary(n)
	case *LogicalExpr:
		op := n.Op
		switch op {
		case "and":
			op = "&&"
		case "or":
			op = "||"
		}
		return fmt.Sprintf("(%s %s %s)", lowerExpr(n.Left), op, lowerExpr(n.Right))
	case *ChainedComparisonExpr:
		return lowerChainedComparison(n)
	case *MemberExpr:
		dot := "."
		if n.Optional {
			dot = "?."
		}
		return lowerExpr(n.Object) + dot + n.Name
	case *SubscriptExpr:
		return fmt.Sprintf("%s[%s]", lowerExpr(n.Object), lowerExpr(n.Index))
	case *SliceExpr:
		return lowerSlice(n)
	case *CallExpr:
		return lowerCall(n)
	case *PipeExpr:
		return lowerPipe(n)
	case *LambdaExpr:
		return lowerLambda(n)
	case *MatchExpr:
		return lowerMatchExpr(n)
	case *IfExpr:
		return fmt.Sprintf("(%s ? %s : %s)", lowerExpr(n.Cond), lowerExpr(n.Then), lowerExpr(n.Else))
	case *YieldExpr:
		if n.Value == nil {
			return "yield"
		}
		return "yield " + lowerExpr(n.Value)
	case *AwaitExpr:
		return "await " + lowerExpr(n.Value)
	case *PropagateExpr:
		return fmt.Sprintf("__tovaUnwrap(%s)", lowerExpr(n.Value))
	case *ArrayExpr:
		parts := make([]string, len(n.Elements))
		for i, el := range n.Elements {
			parts[i] = lowerExpr(el)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *ObjectExpr:
		return lowerObject(n)
	case *TupleExpr:
		parts := make([]string, len(n.Elements))
		for i, el := range n.Elements {
			parts[i] = lowerExpr(el)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *ComprehensionExpr:
		return lowerComprehension(n)
	case *JSXElement, *JSXFragment, *JSXText, *JSXExprChild, *JSXFor, *JSXIf, *JSXSpreadAttr:
		return lowerJSX(e)
	default:
		return "undefined"
	}
}

// lowerExprStandalone renders a default-parameter-value expression; it is
// the same lowering, named separately so call sites that never see a
// CodeGenerator (e.g. paramList) read naturally.
func lowerExprStandalone(e Expr) string { return lowerExpr(e) }

func lowerTemplate(n *TemplateExpr) string {
	var b strings.Builder
	b.WriteByte('`')
	for _, part := range n.Parts {
		if part.IsExpr {
			b.WriteString("${")
			b.WriteString(lowerExpr(part.Expr))
			b.WriteString("}")
			continue
		}
		b.WriteString(strings.NewReplacer("`", "\\`", "\\", "\\\\").Replace(part.Text))
	}
	b.WriteByte('`')
	return b.String()
}

// lowerBinary maps Tova's range and string-concat operators onto their
// JS runtime-helper equivalents; everything else is a 1:1 operator copy.
func lowerBinary(n *BinaryExpr) string {
	switch n.Op {
	case "..", "..<":
		inclusive := "true"
		if n.Op == "..<" {
			inclusive = "false"
		}
		return fmt.Sprintf("__tovaRange(%s, %s, %s)", lowerExpr(n.Left), lowerExpr(n.Right), inclusive)
	case "++":
		return fmt.Sprintf("(%s + %s)", lowerExpr(n.Left), lowerExpr(n.Right))
	default:
		return fmt.Sprintf("(%s %s %s)", lowerExpr(n.Left), n.Op, lowerExpr(n.Right))
	}
}

// lowerChainedComparison turns `a < b < c` into `(a < b) && (b < c)`. The
// rewrite re-evaluates each interior operand once per adjacent pair, which
// is only observable for operands with side effects; Tova comparison
// operands are expected to be pure per §4.3's narrowing rules.
func lowerChainedComparison(n *ChainedComparisonExpr) string {
	parts := make([]string, len(n.Ops))
	for i, op := range n.Ops {
		parts[i] = fmt.Sprintf("(%s %s %s)", lowerExpr(n.Operands[i]), op, lowerExpr(n.Operands[i+1]))
	}
	return "(" + strings.Join(parts, " && ") + ")"
}

func lowerSlice(n *SliceExpr) string {
	start, end, step := "undefined", "undefined", "undefined"
	if n.Start != nil {
		start = lowerExpr(n.Start)
	}
	if n.End != nil {
		end = lowerExpr(n.End)
	}
	if n.Step != nil {
		step = lowerExpr(n.Step)
	}
	return fmt.Sprintf("__tovaSlice(%s, %s, %s, %s)", lowerExpr(n.Object), start, end, step)
}

func lowerCall(n *CallExpr) string {
	var positional []string
	var named []string
	var spreadAll bool
	for _, arg := range n.Args {
		switch {
		case arg.Spread:
			positional = append(positional, "..."+lowerExpr(arg.Value))
			spreadAll = true
		case arg.Name != "":
			named = append(named, fmt.Sprintf("%s: %s", arg.Name, lowerExpr(arg.Value)))
		default:
			positional = append(positional, lowerExpr(arg.Value))
		}
	}
	_ = spreadAll
	args := positional
	if len(named) > 0 {
		args = append(args, "{ "+strings.Join(named, ", ")+" }")
	}
	return fmt.Sprintf("%s(%s)", lowerExpr(n.Callee), strings.Join(args, ", "))
}

// lowerPipe implements `x |> f(args)` (prepend), `x |> f(_, a)` (placeholder
// substitution), and `x |> .method(args)` (method-pipe) per §4.4.
func lowerPipe(n *PipeExpr) string {
	left := lowerExpr(n.Left)
	call, ok := n.Call.(*CallExpr)
	if !ok {
		return fmt.Sprintf("%s(%s)", lowerExpr(n.Call), left)
	}
	if n.Method {
		name := "?"
		if id, ok := call.Callee.(*IdentExpr); ok {
			name = id.Name
		} else if mem, ok := call.Callee.(*MemberExpr); ok {
			name = mem.Name
		}
		args := make([]string, len(call.Args))
		for i, a := range call.Args {
			args[i] = lowerExpr(a.Value)
		}
		return fmt.Sprintf("%s.%s(%s)", left, name, strings.Join(args, ", "))
	}
	placeholderIdx := -1
	for i, a := range call.Args {
		if id, ok := a.Value.(*IdentExpr); ok && id.Name == "_" {
			placeholderIdx = i
			break
		}
	}
	args := make([]string, len(call.Args))
	for i, a := range call.Args {
		if i == placeholderIdx {
			args[i] = left
		} else {
			args[i] = lowerExpr(a.Value)
		}
	}
	if placeholderIdx < 0 {
		args = append([]string{left}, args...)
	}
	return fmt.Sprintf("%s(%s)", lowerExpr(call.Callee), strings.Join(args, ", "))
}

func lowerLambda(n *LambdaExpr) string {
	async := ""
	if n.IsAsync {
		async = "async "
	}
	params := strings.Join(n.Params, ", ")
	if n.Block != nil {
		return fmt.Sprintf("%s(%s) => %s", async, params, lowerBlock(n.Block))
	}
	return fmt.Sprintf("%s(%s) => (%s)", async, params, lowerExpr(n.Body))
}

// lowerMatchExpr lowers a match-expression into an immediately-invoked
// arrow function containing one `if` per arm, per §4.4's match-to-if-ladder
// rule. Every matching arm returns, so an arm whose pattern or guard fails
// falls through to the next arm.
func lowerMatchExpr(n *MatchExpr) string {
	var b strings.Builder
	b.WriteString("(() => { const __subj = ")
	b.WriteString(lowerExpr(n.Subject))
	b.WriteString(";\n")
	for _, arm := range n.Arms {
		test, binds := lowerPatternTest("__subj", arm.Pattern)
		b.WriteString("if")
		b.WriteString(" (")
		b.WriteString(test)
		b.WriteString(") { ")
		for _, decl := range binds {
			b.WriteString(decl)
			b.WriteString(" ")
		}
		if arm.Guard != nil {
			b.WriteString("if (")
			b.WriteString(lowerExpr(arm.Guard))
			b.WriteString(") { return ")
			b.WriteString(lowerExpr(arm.Body))
			b.WriteString("; } else { ")
		} else {
			b.WriteString("return ")
			b.WriteString(lowerExpr(arm.Body))
			b.WriteString("; ")
		}
		if arm.Guard != nil {
			b.WriteString("}")
		}
		b.WriteString(" }\n")
	}
	b.WriteString("throw new Error(\"no match arm matched\"); })()")
	return b.String()
}

// lowerPatternTest renders a boolean test expression for subj matching p,
// along with the `let`/`const` declarations the pattern's bindings need
// once the test has passed.
func lowerPatternTest(subj string, p Pattern) (string, []string) {
	switch n := p.(type) {
	case *WildcardPattern:
		return "true", nil
	case *BindingPattern:
		if n.Name == "_" {
			return "true", nil
		}
		return "true", []string{fmt.Sprintf("const %s = %s;", n.Name, subj)}
	case *LiteralPattern:
		return fmt.Sprintf("__tovaEq(%s, %s)", subj, lowerExpr(n.Value)), nil
	case *VariantPattern:
		test := fmt.Sprintf("%s && %s.__tag === %q", subj, subj, n.Name)
		var binds []string
		if len(n.FieldNames) > 0 {
			for _, fn := range n.FieldNames {
				binds = append(binds, fmt.Sprintf("const %s = %s.%s;", fn, subj, fn))
			}
		} else {
			for i := range n.Fields {
				sub := fmt.Sprintf("%s.__f%d", subj, i)
				_, b := lowerPatternTest(sub, n.Fields[i])
				binds = append(binds, b...)
			}
		}
		return test, binds
	case *StringConcatPattern:
		test := fmt.Sprintf("typeof %s === \"string\" && %s.startsWith(%q)", subj, subj, n.Prefix)
		var binds []string
		if n.Rest != "" {
			binds = append(binds, fmt.Sprintf("const %s = %s.slice(%d);", n.Rest, subj, len(n.Prefix)))
		}
		return test, binds
	case *ArrayPattern:
		cmp := "==="
		if n.Rest != "" {
			cmp = ">="
		}
		test := fmt.Sprintf("Array.isArray(%s) && %s.length %s %d", subj, subj, cmp, len(n.Elements))
		var binds []string
		for i, el := range n.Elements {
			sub := fmt.Sprintf("%s[%d]", subj, i)
			t, b := lowerPatternTest(sub, el)
			if t != "true" {
				test += " && " + t
			}
			binds = append(binds, b...)
		}
		if n.Rest != "" {
			binds = append(binds, fmt.Sprintf("const %s = %s.slice(%d);", n.Rest, subj, len(n.Elements)))
		}
		return test, binds
	case *ObjectPattern:
		test := fmt.Sprintf("%s != null", subj)
		var binds []string
		for _, f := range n.Fields {
			key := fmt.Sprintf("%s.%s", subj, f.Key)
			if f.Value != nil {
				t, b := lowerPatternTest(key, f.Value)
				if t != "true" {
					test += " && " + t
				}
				binds = append(binds, b...)
			} else if f.Default != nil {
				binds = append(binds, fmt.Sprintf("const %s = %s ?? %s;", f.Key, key, lowerExpr(f.Default)))
			} else {
				binds = append(binds, fmt.Sprintf("const %s = %s;", f.Key, key))
			}
		}
		return test, binds
	case *RangePattern:
		op := "<"
		if n.Inclusive {
			op = "<="
		}
		return fmt.Sprintf("(%s >= %s && %s %s %s)", subj, lowerExpr(n.Low), subj, op, lowerExpr(n.High)), nil
	default:
		return "true", nil
	}
}

func lowerObject(n *ObjectExpr) string {
	parts := make([]string, len(n.Entries))
	for i, entry := range n.Entries {
		if entry.Computed {
			parts[i] = fmt.Sprintf("[%s]: %s", lowerExpr(entry.Key), lowerExpr(entry.Value))
			continue
		}
		key := ""
		switch k := entry.Key.(type) {
		case *IdentExpr:
			key = k.Name
		case *StringExpr:
			key = strconv.Quote(k.Value)
		default:
			key = lowerExpr(entry.Key)
		}
		parts[i] = fmt.Sprintf("%s: %s", key, lowerExpr(entry.Value))
	}
	return "{ " + strings.Join(parts, ", ") + " }"
}

// lowerComprehension rewrites list/dict comprehensions into an IIFE that
// builds the result with a plain for..of loop, per §4.4.
func lowerComprehension(n *ComprehensionExpr) string {
	var b strings.Builder
	loopVar := strings.Join(n.Vars, ", ")
	destructure := loopVar
	if len(n.Vars) > 1 {
		destructure = "[" + loopVar + "]"
	}
	if n.IsDict {
		b.WriteString("(() => { const __out = {}; for (const ")
		b.WriteString(destructure)
		b.WriteString(" of ")
		b.WriteString(lowerExpr(n.Iter))
		b.WriteString(") { ")
		if n.Cond != nil {
			b.WriteString("if (!(")
			b.WriteString(lowerExpr(n.Cond))
			b.WriteString(")) continue; ")
		}
		b.WriteString("__out[")
		b.WriteString(lowerExpr(n.KeyExpr))
		b.WriteString("] = ")
		b.WriteString(lowerExpr(n.ValExpr))
		b.WriteString("; } return __out; })()")
		return b.String()
	}
	b.WriteString("(() => { const __out = []; for (const ")
	b.WriteString(destructure)
	b.WriteString(" of ")
	b.WriteString(lowerExpr(n.Iter))
	b.WriteString(") { ")
	if n.Cond != nil {
		b.WriteString("if (!(")
		b.WriteString(lowerExpr(n.Cond))
		b.WriteString(")) continue; ")
	}
	b.WriteString("__out.push(")
	b.WriteString(lowerExpr(n.ValExpr))
	b.WriteString("); } return __out; })()")
	return b.String()
}
