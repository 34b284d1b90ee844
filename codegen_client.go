package tovac

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// emitClientLeaf lowers one component/state/computed/effect/store
// declaration from a client block into the client output buffer (§4.4).
// state/store become a signal pair (a getter function plus a `set`+Name
// setter, matching the stable "setCount"-style name §9 pins down);
// computed becomes a plain recomputing getter; component becomes a
// tova_el-returning function; effect runs once at client bootstrap and
// re-registers itself through __tovaEffect for later reactivity wiring.
func (g *CodeGenerator) emitClientLeaf(n *ClientLeaf) {
	g.mark(n.Location(), g.client)
	switch n.Keyword {
	case "state", "store":
		init := "undefined"
		if n.InitValue != nil {
			init = lowerExpr(n.InitValue)
		}
		backing := "__state_" + n.Name
		g.client.Writef("let %s = %s;\n", backing, init)
		g.client.Writef("function %s() { return %s; }\n", n.Name, backing)
		g.client.Writef("function %s(v) { %s = (typeof v === \"function\") ? v(%s) : v; __tovaRerender(); }\n",
			"set"+capitalize(n.Name), backing, backing)
	case "computed":
		expr := n.Computed
		if expr == nil {
			expr = n.Expr
		}
		g.client.Writef("function %s() { return %s; }\n", n.Name, lowerExpr(expr))
	case "effect":
		g.client.Writef("__tovaEffect(() => %s);\n", g.lowerBlockExpr(n.Body))
	case "component":
		g.emitComponent(n)
	}
}

func (g *CodeGenerator) emitComponent(n *ClientLeaf) {
	g.client.Writef("function %s(%s) ", n.Name, paramList(n.Params))
	if n.Body != nil {
		g.client.WriteString(g.lowerBlockExpr(n.Body))
	} else {
		g.client.Writef("{\nreturn %s;\n}", lowerExpr(n.Expr))
	}
	g.client.WriteString("\n")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// emitClientBootstrap appends the shared client runtime: the rerender
// scheduler every state setter calls, the effect queue, and the
// security-backed auth-token helpers named in the stable-name contract
// (getAuthToken/setAuthToken/clearAuthToken/can).
func (g *CodeGenerator) emitClientBootstrap() {
	g.client.WriteString(clientRuntimePrelude)
}

const clientRuntimePrelude = `
let __tovaEffects = [];
function __tovaEffect(fn) { __tovaEffects.push(fn); fn(); }
let __tovaRerenderQueued = false;
function __tovaRerender() {
  if (__tovaRerenderQueued) return;
  __tovaRerenderQueued = true;
  queueMicrotask(() => {
    __tovaRerenderQueued = false;
    for (const fn of __tovaEffects) fn();
    if (typeof __tovaRoot === "function") __tovaRoot();
  });
}
function getAuthToken() { return localStorage.getItem("tova_auth_token"); }
function setAuthToken(token) { localStorage.setItem("tova_auth_token", token); }
function clearAuthToken() { localStorage.removeItem("tova_auth_token"); }
function can(role) {
  const roles = JSON.parse(localStorage.getItem("tova_auth_roles") || "[]");
  return roles.includes(role);
}
`

// --- JSX lowering ---

func lowerJSX(e Expr) string {
	switch n := e.(type) {
	case *JSXElement:
		return lowerJSXElement(n)
	case *JSXFragment:
		return fmt.Sprintf("tova_fragment(%s)", lowerJSXChildren(n.Children))
	case *JSXText:
		return strconv.Quote(n.Text)
	case *JSXExprChild:
		return lowerExpr(n.Value)
	case *JSXFor:
		return lowerJSXForArray(n)
	case *JSXIf:
		return lowerJSXIf(n)
	case *JSXSpreadAttr:
		return lowerExpr(n.Value)
	default:
		return "null"
	}
}

func lowerJSXElement(n *JSXElement) string {
	props := make([]string, 0, len(n.Attrs))
	for _, a := range n.Attrs {
		switch {
		case a.Spread:
			props = append(props, "..."+lowerExpr(a.Value))
		case a.Value == nil:
			props = append(props, fmt.Sprintf("%s: true", jsxPropKey(a.Name)))
		default:
			props = append(props, fmt.Sprintf("%s: %s", jsxPropKey(a.Name), lowerExpr(a.Value)))
		}
	}
	return fmt.Sprintf("tova_el(%q, { %s }, %s)", n.Tag, strings.Join(props, ", "), lowerJSXChildren(n.Children))
}

func jsxPropKey(name string) string {
	for i, r := range name {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return strconv.Quote(name)
	}
	return name
}

func lowerJSXChildren(children []Expr) string {
	parts := make([]string, 0, len(children))
	for _, c := range children {
		switch n := c.(type) {
		case *JSXFor:
			parts = append(parts, "..."+lowerJSXForArray(n))
		default:
			parts = append(parts, lowerJSX(c))
		}
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func lowerJSXForArray(n *JSXFor) string {
	return fmt.Sprintf("(%s).map((%s) => %s)", lowerExpr(n.Iter), n.Var, wrapFragment(n.Body))
}

func lowerJSXIf(n *JSXIf) string {
	result := "null"
	for i := len(n.Branches) - 1; i >= 0; i-- {
		br := n.Branches[i]
		if br.Cond == nil {
			result = wrapFragment(br.Body)
			continue
		}
		result = fmt.Sprintf("(%s) ? %s : %s", lowerExpr(br.Cond), wrapFragment(br.Body), result)
	}
	return result
}

func wrapFragment(children []Expr) string {
	return fmt.Sprintf("tova_fragment(%s)", lowerJSXChildren(children))
}
