package tovac

import (
	"fmt"
	"strings"
)

// sharedRuntimePrelude defines the small set of helpers every expression
// lowering in this file and in codegen_expr.go assumes exist: range
// construction, stepped slicing, structural equality for match literals,
// propagate-unwrapping, and deferred cleanup registration.
const sharedRuntimePrelude = `function __tovaRange(lo, hi, inclusive) {
  const out = [];
  const end = inclusive ? hi : hi - 1;
  for (let i = lo; i <= end; i++) out.push(i);
  return out;
}
function __tovaSlice(arr, start, end, step) {
  step = step === undefined ? 1 : step;
  const len = arr.length;
  let s = start === undefined ? (step < 0 ? len - 1 : 0) : start;
  let e = end === undefined ? (step < 0 ? -1 : len) : end;
  if (s < 0) s += len;
  if (e < 0) e += len;
  const out = [];
  if (step > 0) {
    for (let i = s; i < e; i += step) out.push(arr[i]);
  } else {
    for (let i = s; i > e; i += step) out.push(arr[i]);
  }
  return out;
}
function __tovaEq(a, b) {
  if (a === b) return true;
  if (a && b && typeof a === "object" && typeof b === "object") {
    if (a.__tag !== undefined || b.__tag !== undefined) return a.__tag === b.__tag;
  }
  return false;
}
const __TOVA_NIL = Symbol("tova.nil");
function __tovaUnwrap(value) {
  if (value === null || value === undefined) {
    throw __TOVA_NIL;
  }
  return value;
}
function __tovaDefer(fn) {
  (globalThis.__tovaDeferStack ??= []).push(fn);
}

`

// lowerBlockExpr renders a function/method/lambda body as a `{ ... }` JS
// block, including the try/catch wrapper a body containing a PropagateExpr
// relies on (see lowerExpr's PropagateExpr case and __tovaUnwrap in
// sharedRuntimePrelude above).
// lowerBlockExpr wraps a function-level body in a try/catch that turns a
// PropagateExpr's __TOVA_NIL throw into an early `return null`; nested
// blocks (if/for/while/match bodies) use the unwrapped lowerBlock so the
// throw bubbles up to this, the enclosing function's, boundary.
func (g *CodeGenerator) lowerBlockExpr(b *BlockStmt) string {
	stmts := lowerBlock(b)
	return "{\ntry " + stmts + " catch (e) { if (e === __TOVA_NIL) { return null; } throw e; }\n}"
}

// lowerVarDecl renders a module-level `x = expr` / `var x = expr` as a JS
// const/let declaration.
func (g *CodeGenerator) lowerVarDecl(n *VarDeclStmt) string { return lowerVarDeclStmt(n) }

func lowerBlock(b *BlockStmt) string {
	if b == nil {
		return "{}"
	}
	var sb strings.Builder
	sb.WriteString("{\n")
	for _, s := range b.Stmts {
		sb.WriteString(lowerStmt(s))
		sb.WriteString("\n")
	}
	sb.WriteString("}")
	return sb.String()
}

func lowerVarDeclStmt(n *VarDeclStmt) string {
	kw := "const"
	if n.Mutable {
		kw = "let"
	}
	return fmt.Sprintf("%s %s = %s;", kw, lowerAssignTargetDecl(n.Target), lowerExpr(n.Value))
}

// lowerAssignTargetDecl renders a declaration-position target: a plain
// name or a destructuring pattern.
func lowerAssignTargetDecl(t AssignTarget) string {
	if t.Destruct != nil {
		return lowerDestructPattern(t.Destruct)
	}
	return t.Ident
}

// lowerDestructPattern renders a Pattern as a JS destructuring target
// (array/object binding), used for `{x, y} = ...` / `[a, b] = ...` style
// declarations per §4.4.
func lowerDestructPattern(p Pattern) string {
	switch n := p.(type) {
	case *BindingPattern:
		return n.Name
	case *WildcardPattern:
		return "__ignored"
	case *ArrayPattern:
		parts := make([]string, len(n.Elements))
		for i, el := range n.Elements {
			parts[i] = lowerDestructPattern(el)
		}
		if n.Rest != "" {
			parts = append(parts, "..."+n.Rest)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *ObjectPattern:
		parts := make([]string, len(n.Fields))
		for i, f := range n.Fields {
			switch {
			case f.Value != nil:
				parts[i] = fmt.Sprintf("%s: %s", f.Key, lowerDestructPattern(f.Value))
			case f.Default != nil:
				parts[i] = fmt.Sprintf("%s = %s", f.Key, lowerExpr(f.Default))
			default:
				parts[i] = f.Key
			}
		}
		return "{ " + strings.Join(parts, ", ") + " }"
	default:
		return "_"
	}
}

func lowerAssignTarget(t AssignTarget) string {
	switch {
	case t.Member != nil:
		return lowerExpr(t.Member)
	case t.Destruct != nil:
		return lowerDestructPattern(t.Destruct)
	default:
		return t.Ident
	}
}

func lowerStmt(s Stmt) string {
	switch n := s.(type) {
	case *BlockStmt:
		return lowerBlock(n)
	case *VarDeclStmt:
		return lowerVarDeclStmt(n)
	case *AssignStmt:
		if len(n.Targets) == 1 {
			return fmt.Sprintf("%s = %s;", lowerAssignTarget(n.Targets[0]), lowerExpr(n.Values[0]))
		}
		lhs := make([]string, len(n.Targets))
		for i, t := range n.Targets {
			lhs[i] = lowerAssignTarget(t)
		}
		rhs := make([]string, len(n.Values))
		for i, v := range n.Values {
			rhs[i] = lowerExpr(v)
		}
		return fmt.Sprintf("[%s] = [%s];", strings.Join(lhs, ", "), strings.Join(rhs, ", "))
	case *CompoundAssignStmt:
		return fmt.Sprintf("%s %s %s;", lowerAssignTarget(n.Target), n.Op, lowerExpr(n.Value))
	case *FunctionDecl:
		async := ""
		if n.IsAsync {
			async = "async "
		}
		star := ""
		if n.Generator {
			star = "*"
		}
		return fmt.Sprintf("%sfunction%s %s(%s) %s", async, star, n.Name, paramList(n.Params), lowerBlock(n.Body))
	case *ExprStmt:
		return lowerExpr(n.Value) + ";"
	case *ReturnStmt:
		if n.Value == nil {
			return "return;"
		}
		return "return " + lowerExpr(n.Value) + ";"
	case *BreakStmt:
		return "break;"
	case *ContinueStmt:
		return "continue;"
	case *IfStmt:
		return lowerIfStmt(n)
	case *ForStmt:
		return lowerForStmt(n)
	case *WhileStmt:
		return fmt.Sprintf("while (%s) %s", lowerExpr(n.Cond), lowerBlock(n.Body))
	case *GuardStmt:
		return fmt.Sprintf("if (!(%s)) %s", lowerExpr(n.Cond), lowerBlock(n.Else))
	case *MatchStmt:
		return lowerMatchStmt(n)
	case *DeferStmt:
		return fmt.Sprintf("__tovaDefer(() => %s);", lowerExpr(n.Call))
	default:
		return ""
	}
}

func lowerIfStmt(n *IfStmt) string {
	var b strings.Builder
	b.WriteString("if (")
	b.WriteString(lowerExpr(n.Cond))
	b.WriteString(") ")
	b.WriteString(lowerBlock(n.Then))
	for i, cond := range n.ElifConds {
		b.WriteString(" else if (")
		b.WriteString(lowerExpr(cond))
		b.WriteString(") ")
		b.WriteString(lowerBlock(n.ElifBodies[i]))
	}
	if n.Else != nil {
		b.WriteString(" else ")
		b.WriteString(lowerBlock(n.Else))
	}
	return b.String()
}

func lowerForStmt(n *ForStmt) string {
	target := n.Vars[0]
	if len(n.Vars) == 2 {
		target = fmt.Sprintf("[%s, %s]", n.Vars[0], n.Vars[1])
	}
	return fmt.Sprintf("for (const %s of %s) %s", target, lowerExpr(n.Iter), lowerBlock(n.Body))
}

func lowerMatchStmt(n *MatchStmt) string {
	var b strings.Builder
	b.WriteString("{ const __subj = ")
	b.WriteString(lowerExpr(n.Subject))
	b.WriteString(";\n")
	for i, arm := range n.Arms {
		kw := "if"
		if i > 0 {
			kw = "else if"
		}
		test, binds := lowerPatternTest("__subj", arm.Pattern)
		b.WriteString(kw)
		b.WriteString(" (")
		b.WriteString(test)
		b.WriteString(") {\n")
		for _, decl := range binds {
			b.WriteString(decl)
			b.WriteString("\n")
		}
		if arm.Guard != nil {
			b.WriteString("if (")
			b.WriteString(lowerExpr(arm.Guard))
			b.WriteString(") ")
			b.WriteString(lowerBlock(arm.Body))
			b.WriteString("\n")
		} else {
			for _, s := range arm.Body.Stmts {
				b.WriteString(lowerStmt(s))
				b.WriteString("\n")
			}
		}
		b.WriteString("}\n")
	}
	b.WriteString("}")
	return b.String()
}
