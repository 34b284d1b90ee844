package tovac

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// serverFeatures is the aggregate view over every server/security
// declaration in a Program, gathered once up front so the generator
// never has to care about declaration order across multiple server or
// security blocks (§4.4, mirroring the analyzer's own deferred
// checkSecurity pass in analyzer_security.go).
type serverFeatures struct {
	routes         map[string]bool
	serverLeaves   []*ServerLeaf
	securityLeaves []*SecurityLeaf
}

func discoverServerFeatures(prog *Program) *serverFeatures {
	f := &serverFeatures{routes: map[string]bool{}}
	var walk func(decls []Decl)
	walk = func(decls []Decl) {
		for _, d := range decls {
			switch n := d.(type) {
			case *RouteDecl:
				f.routes[n.Method+" "+n.Path] = true
			case *ServerLeaf:
				f.serverLeaves = append(f.serverLeaves, n)
			case *SecurityLeaf:
				f.securityLeaves = append(f.securityLeaves, n)
			case *Block:
				walk(n.Decls)
			}
		}
	}
	walk(prog.Decls)
	return f
}

func (f *serverFeatures) leaves(keyword string) []*SecurityLeaf {
	var out []*SecurityLeaf
	for _, l := range f.securityLeaves {
		if l.Keyword == keyword {
			out = append(out, l)
		}
	}
	return out
}

// cspKeywordSources are the CSP source values the header quotes with
// single-quotes; everything else (a host, a scheme, a nonce) is emitted
// bare, per §4.4's csp row.
var cspKeywordSources = map[string]bool{
	"self": true, "unsafe-inline": true, "unsafe-eval": true,
	"none": true, "data:": true, "strict-dynamic": true,
}

func cspToken(e Expr) string {
	var raw string
	switch v := e.(type) {
	case *StringExpr:
		raw = v.Value
	case *IdentExpr:
		raw = v.Name
	default:
		raw = strings.Trim(lowerExpr(e), `"`)
	}
	if cspKeywordSources[raw] {
		return "'" + raw + "'"
	}
	return raw
}

// cspDirectiveTokens lowers one directive's configured value, which is
// either a single source or an array of them, into its quoted/bare tokens.
func cspDirectiveTokens(e Expr) []string {
	if arr, ok := e.(*ArrayExpr); ok {
		out := make([]string, len(arr.Elements))
		for i, el := range arr.Elements {
			out[i] = cspToken(el)
		}
		return out
	}
	return []string{cspToken(e)}
}

// buildCspHeaderValue joins every directive declared across the program's
// csp leaves, converting `script_src` style keys to `script-src` and
// quoting the keyword sources (§4.4 csp row). Falls back to the
// conservative default when no csp leaf is declared.
func buildCspHeaderValue(leaves []*SecurityLeaf) string {
	if len(leaves) == 0 {
		return "default-src 'self'"
	}
	var directives []string
	for _, l := range leaves {
		for _, c := range l.Config {
			name := strings.ReplaceAll(c.Key, "_", "-")
			tokens := cspDirectiveTokens(c.Value)
			directives = append(directives, name+" "+strings.Join(tokens, " "))
		}
	}
	if len(directives) == 0 {
		return "default-src 'self'"
	}
	return strings.Join(directives, "; ")
}

// buildProtectRule compiles one `protect` leaf's pattern into the JS
// object literal __checkProtection iterates, reusing the same glob/param
// pattern compiler routes are compiled with.
func buildProtectRule(l *SecurityLeaf) string {
	role := configString(l.Config, "require", "")
	return fmt.Sprintf("{ pattern: __tovaCompileRoutePattern(%q), role: %q }", l.Name, role)
}

// pendingRoute is one route awaiting emission into its server's
// __addRoute calls, buffered so the generator can reorder every server's
// routes by path specificity before writing them (§4.4 server templates:
// "route table ... sorted by specificity").
type pendingRoute struct {
	rank int
	meth int
	src  string
	loc  Location
}

var httpMethodOrder = map[string]int{
	"GET": 0, "POST": 1, "PUT": 2, "PATCH": 3, "DELETE": 4, "HEAD": 5, "OPTIONS": 6,
}

// routeRank classifies a route path as static (most specific), param, or
// wildcard (least specific), per §4.4's "static ≺ param ≺ wildcard"
// ordering.
func routeRank(path string) int {
	if strings.Contains(path, "*") {
		return 2
	}
	if strings.Contains(path, ":") {
		return 1
	}
	return 0
}

// emitRoute buffers a route declaration for sorted emission against the
// correct named server (§4.4); the actual __addRoute call is written by
// flushRoutes once every route in the program has been discovered.
func (g *CodeGenerator) emitRoute(n *RouteDecl, serverName *string) {
	name := ""
	if serverName != nil {
		name = *serverName
	}
	g.serverBuf(name) // ensure the buffer (and its prelude) exists

	mw := make([]string, len(n.Middleware))
	for i, m := range n.Middleware {
		args := make([]string, len(m.Args))
		for j, a := range m.Args {
			args[j] = lowerExpr(a)
		}
		mw[i] = fmt.Sprintf("{ name: %q, args: [%s] }", m.Name, strings.Join(args, ", "))
	}

	var handlerSrc string
	if n.Handler != nil {
		handlerSrc = fmt.Sprintf("async (req, ctx) %s", g.lowerBlockExpr(n.Handler.Body))
	} else {
		handlerSrc = n.HandlerRef
	}

	src := fmt.Sprintf("__addRoute(%q, %q, [%s], %s);\n", n.Method, n.Path, strings.Join(mw, ", "), handlerSrc)
	g.pendingRoutes[name] = append(g.pendingRoutes[name], pendingRoute{
		rank: routeRank(n.Path),
		meth: httpMethodOrder[n.Method],
		src:  src,
		loc:  n.Location(),
	})
}

// flushRoutes writes every server's buffered routes in specificity order
// (ties broken by HTTP method, then declaration order) into that server's
// buffer. emitServerRuntime runs it after the server runtime template has
// been appended, so the `__routes` table these __addRoute calls push into
// is already initialized when they execute.
func (g *CodeGenerator) flushRoutes() {
	for name, routes := range g.pendingRoutes {
		buf := g.serverBuf(name)
		sort.SliceStable(routes, func(i, j int) bool {
			if routes[i].rank != routes[j].rank {
				return routes[i].rank < routes[j].rank
			}
			return routes[i].meth < routes[j].meth
		})
		for _, r := range routes {
			g.mark(r.loc, buf)
			buf.WriteString(r.src)
		}
	}
}

// emitServerLeaf lowers one `db`/`model`/`ws`/`sse`/`background`/
// `schedule`/`discover`/`session`/`middleware`/`on_error`/`health`/
// `static`/`tls`/`compression`/`cache`/`max_body`/`env` declaration.
func (g *CodeGenerator) emitServerLeaf(n *ServerLeaf, serverName string) {
	buf := g.serverBuf(serverName)
	g.mark(n.Location(), buf)
	args := make([]string, len(n.Args))
	for i, a := range n.Args {
		args[i] = lowerExpr(a)
	}
	cfg := lowerConfig(n.Config)

	switch n.Keyword {
	case "db":
		buf.Writef("const __db = __tovaConnectDb(%s, %s);\n", strings.Join(args, ", "), cfg)
	case "model":
		buf.Writef("const %s = __tovaDefineModel(%q, %s);\n", n.Name, n.Name, cfg)
		buf.Writef("%s.where = function(cond) { __assertCols(%s, Object.keys(cond ?? {})); return __db.query(%s.__name, \"where\", cond); };\n", n.Name, n.Name, n.Name)
		buf.Writef("%s.create = function(data) { __assertCols(%s, Object.keys(data ?? {})); return __db.query(%s.__name, \"create\", data); };\n", n.Name, n.Name, n.Name)
		buf.Writef("%s.update = function(id, data) { __assertCols(%s, Object.keys(data ?? {})); return __db.query(%s.__name, \"update\", { id, data }); };\n", n.Name, n.Name, n.Name)
		buf.Writef("%s.count = function(cond) { __assertCols(%s, Object.keys(cond ?? {})); return __db.query(%s.__name, \"count\", cond); };\n", n.Name, n.Name, n.Name)
	case "ws":
		buf.Writef("__tovaWs(%q, async (%s) %s);\n", n.Name, handlerParamNames(n.Handler, "socket", "ctx"), g.lowerBlockExpr(n.Handler.Body))
	case "sse":
		buf.Writef("__tovaSse(%q, async (%s) %s);\n", n.Name, handlerParamNames(n.Handler, "send", "close"), g.lowerBlockExpr(n.Handler.Body))
	case "background":
		buf.Writef("spawn_job(%q, async (%s) %s);\n", n.Name, handlerParamNames(n.Handler), g.lowerBlockExpr(n.Handler.Body))
	case "schedule":
		buf.Writef("__tovaSchedule(%s, async (%s) %s);\n", strings.Join(args, ", "), handlerParamNames(n.Handler), g.lowerBlockExpr(n.Handler.Body))
	case "discover":
		buf.Writef("__tovaDiscover(%q, %s, %s, async (%s) %s);\n", n.Name, firstArgOr(args, `""`), cfg, handlerParamNames(n.Handler, "peer"), g.lowerBlockExpr(n.Handler.Body))
	case "session":
		// handled centrally in buildServerRuntime so every server sees one
		// declaration regardless of which server block the leaf appeared in.
	case "middleware":
		buf.Writef("__tovaUseMiddleware(async (%s) %s);\n", handlerParamNames(n.Handler, "req", "ctx", "next"), g.lowerBlockExpr(n.Handler.Body))
	case "on_error":
		buf.Writef("__tovaOnError(async (%s) %s);\n", handlerParamNames(n.Handler, "err", "ctx"), g.lowerBlockExpr(n.Handler.Body))
	case "health":
		buf.Writef("__addRoute(\"GET\", %q, [], async (req, ctx) => respond(200, { status: \"ok\" }));\n", firstOr(n.Name, "/health"))
	case "static":
		buf.Writef("__tovaServeStatic(%q, %s);\n", n.Name, cfg)
	case "routes":
		buf.Writef("__tovaMountRoutes([%s], %s);\n", strings.Join(args, ", "), cfg)
	case "tls":
		buf.Writef("__tovaTls = %s;\n", cfg)
	case "compression":
		buf.Writef("__tovaCompression = %s;\n", cfg)
	case "cache":
		buf.Writef("const %s = __tovaCache(%q, %s);\n", n.Name, n.Name, cfg)
	case "max_body":
		buf.Writef("__maxBodySize = %s;\n", firstArgOr(args, fmt.Sprintf("%d", g.opts.MaxBodySize)))
	case "env":
		buf.Writef("__tovaRequireEnv(%q);\n", n.Name)
	}
}

// handlerParamNames renders the JS parameter list for a leaf's handler,
// preferring the names the Tova source actually declared and falling back
// to the feature's conventional names so the generated function signature
// always matches what the handler body references.
func handlerParamNames(h *FunctionDecl, defaults ...string) string {
	if h != nil && len(h.Params) > 0 {
		return paramList(h.Params)
	}
	return strings.Join(defaults, ", ")
}

// firstServerLeaf returns the first server leaf of the given keyword
// across the whole program, the same "first wins, applies to every
// server" convention buildServerRuntime already uses for cors/role/
// rate_limit/csrf security leaves.
func firstServerLeaf(leaves []*ServerLeaf, keyword string) *ServerLeaf {
	for _, l := range leaves {
		if l.Keyword == keyword {
			return l
		}
	}
	return nil
}

func (g *CodeGenerator) emitTestLeaf(n *TestLeaf) {
	g.mark(n.Location(), g.test)
	g.test.Writef("test(%q, async () %s);\n", n.Description, g.lowerBlockExpr(n.Body))
}

func lowerConfig(entries []ConfigEntry) string {
	parts := make([]string, len(entries))
	for i, e := range entries {
		parts[i] = fmt.Sprintf("%s: %s", e.Key, lowerExpr(e.Value))
	}
	return "{ " + strings.Join(parts, ", ") + " }"
}

func firstOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func firstArgOr(args []string, fallback string) string {
	if len(args) == 0 {
		return fallback
	}
	return args[0]
}

// emitServerRuntime appends the dispatch/security template shared by
// every named server buffer: route table storage, request-scoped state
// machine (parse -> authenticate -> authorize -> rate-limit -> CSRF ->
// handle -> respond -> audit), and the CORS/CSP/HSTS headers driven by
// the aggregated security leaves (§4.4).
func (g *CodeGenerator) emitServerRuntime() {
	if len(g.servers) == 0 && len(g.pendingRoutes) > 0 {
		// a program with route declarations but no explicit `server { }`
		// block still gets one default server.
		g.serverBuf("")
	}
	for name, buf := range g.servers {
		buf.WriteString(g.buildServerRuntime(name))
	}
	g.flushRoutes()
	if len(g.servers) == 0 {
		// a program with security/server-leaf declarations but no routes
		// and no explicit `server { }` block still gets one default server.
		buf := g.serverBuf("")
		buf.WriteString(g.buildServerRuntime(""))
	}
}

func (g *CodeGenerator) buildServerRuntime(name string) string {
	var b strings.Builder
	b.WriteString(serverDispatchPrelude)

	corsLeaves := g.features.leaves("cors")
	if len(corsLeaves) > 0 {
		origins := make([]string, 0)
		for _, l := range corsLeaves {
			for _, e := range l.Config {
				if e.Key == "origins" {
					origins = append(origins, lowerExpr(e.Value))
				}
			}
		}
		if len(origins) == 0 {
			b.WriteString("const __corsOrigins = [];\n")
		} else {
			fmt.Fprintf(&b, "const __corsOrigins = %s;\n", strings.Join(origins, " ?? "))
		}
	} else {
		b.WriteString("const __corsOrigins = [];\n")
	}

	roles := g.features.leaves("role")
	sort.Slice(roles, func(i, j int) bool { return roles[i].Name < roles[j].Name })
	roleNames := make([]string, len(roles))
	for i, r := range roles {
		roleNames[i] = fmt.Sprintf("%q", r.Name)
	}
	fmt.Fprintf(&b, "const __securityRoles = [%s];\n", strings.Join(roleNames, ", "))

	rl := g.features.leaves("rate_limit")
	if len(rl) > 0 && len(rl[0].Args) >= 2 {
		fmt.Fprintf(&b, "const __rateLimitConfig = { limit: %s, windowSeconds: %s };\n",
			lowerExpr(rl[0].Args[0]), lowerExpr(rl[0].Args[1]))
	} else {
		b.WriteString("const __rateLimitConfig = { limit: 100, windowSeconds: 60 };\n")
	}

	csrf := g.features.leaves("csrf")
	enabled := "true"
	var csrfExempt []string
	for _, l := range csrf {
		for _, e := range l.Config {
			if e.Key == "enabled" {
				enabled = lowerExpr(e.Value)
			}
			if e.Key == "exempt" {
				if arr, ok := e.Value.(*ArrayExpr); ok {
					for _, el := range arr.Elements {
						if s, ok := el.(*StringExpr); ok {
							csrfExempt = append(csrfExempt, fmt.Sprintf("__tovaCompileRoutePattern(%q)", s.Value))
						}
					}
				}
			}
		}
	}
	fmt.Fprintf(&b, "const __csrfEnabled = %s;\n", enabled)
	fmt.Fprintf(&b, "const __csrfExemptPatterns = [%s];\n", strings.Join(csrfExempt, ", "))

	protectLeaves := g.features.leaves("protect")
	protectRules := make([]string, len(protectLeaves))
	for i, l := range protectLeaves {
		protectRules[i] = buildProtectRule(l)
	}
	fmt.Fprintf(&b, "const __protectRules = [%s];\n", strings.Join(protectRules, ", "))

	fmt.Fprintf(&b, "const __cspHeaderValue = %q;\n", buildCspHeaderValue(g.features.leaves("csp")))

	hstsEnabled := "false"
	if hsts := g.features.leaves("hsts"); len(hsts) > 0 {
		hstsEnabled = strconv.FormatBool(configBool(hsts[0].Config, "enabled", true))
	} else if len(g.features.leaves("auth")) > 0 {
		hstsEnabled = "true"
	}
	fmt.Fprintf(&b, "const __hstsEnabled = %s;\n", hstsEnabled)

	fmt.Fprintf(&b, "const __sensitiveFields = %s;\n", buildSensitiveFieldsTable(g.features.leaves("sensitive")))

	if sl := firstServerLeaf(g.features.serverLeaves, "session"); sl != nil {
		fmt.Fprintf(&b, "const __session = __tovaConfigureSession(%s);\n", lowerConfig(sl.Config))
	} else {
		b.WriteString("const __session = null;\n")
	}

	if len(g.publicFuncs) > 0 {
		b.WriteString("import * as __tovaShared from \"./shared.js\";\n")
		entries := make([]string, len(g.publicFuncs))
		for i, fn := range g.publicFuncs {
			entries[i] = fmt.Sprintf("%q: __tovaShared.%s", fn, fn)
		}
		fmt.Fprintf(&b, "const __rpcFunctions = { %s };\n", strings.Join(entries, ", "))
	} else {
		b.WriteString("const __rpcFunctions = {};\n")
	}

	if g.opts.EmitOpenAPI {
		fmt.Fprintf(&b, "const __TOVA_OPENAPI = %s;\n", strconv.Quote(g.buildOpenAPISpec()))
		b.WriteString("const __TOVA_OPENAPI_OBJ = JSON.parse(__TOVA_OPENAPI);\n")
		b.WriteString("__addRoute(\"GET\", \"/openapi.json\", [], async () => respond(200, __TOVA_OPENAPI_OBJ));\n")
		b.WriteString("__addRoute(\"GET\", \"/docs\", [], async () => html(__tovaSwaggerHtml()));\n")
	} else {
		b.WriteString("const __TOVA_OPENAPI = \"{}\";\n")
	}
	b.WriteString("__addRoute(\"GET\", \"/__csrf\", [], async (req, ctx) => respond(200, { token: await __issueCsrfToken(ctx.user?.id ?? \"anon\") }));\n")

	if name != "" {
		fmt.Fprintf(&b, "__tovaServer = serve({ port: __tovaPortFor(%q), fetch: __handleRequest, websocket: __tovaWebSocketHandlers });\n", name)
	} else {
		b.WriteString("__tovaServer = serve({ port: process.env.PORT ? Number(process.env.PORT) : 3000, fetch: __handleRequest, websocket: __tovaWebSocketHandlers });\n")
	}
	return b.String()
}

// buildSensitiveFieldsTable groups `sensitive Type.field` leaves by type so
// the generated sanitizer can drop fields per declared visibility rule
// instead of blanket-escaping every string in a response (§4.4 sensitive
// row).
func buildSensitiveFieldsTable(leaves []*SecurityLeaf) string {
	if len(leaves) == 0 {
		return "{}"
	}
	byType := map[string][]string{}
	var order []string
	for _, l := range leaves {
		typeName, field, ok := strings.Cut(l.Name, ".")
		if !ok {
			typeName, field = l.Name, ""
		}
		if _, seen := byType[typeName]; !seen {
			order = append(order, typeName)
		}
		rule := fmt.Sprintf("{ field: %q, neverExpose: %v, ownerOnly: %v }",
			field, configBool(l.Config, "never_expose", false), configBool(l.Config, "owner_only", false))
		byType[typeName] = append(byType[typeName], rule)
	}
	sort.Strings(order)
	entries := make([]string, len(order))
	for i, t := range order {
		entries[i] = fmt.Sprintf("%q: [%s]", t, strings.Join(byType[t], ", "))
	}
	return "{ " + strings.Join(entries, ", ") + " }"
}

const serverDispatchPrelude = `
import { AsyncLocalStorage } from "node:async_hooks";
import { appendFileSync } from "node:fs";
import { Database } from "bun:sqlite";
const __routes = [];
let __maxBodySize = 1048576;
let __tovaTls = null;
let __tovaCompression = null;
let __tovaServer = null;
function __addRoute(method, path, middleware, handler) {
  __routes.push({ method, path, middleware, handler, pattern: __tovaCompileRoutePattern(path) });
}
function __tovaCompileRoutePattern(path) {
  const escaped = path
    .split("/")
    .map((seg) => {
      if (seg === "**") return ".*";
      if (seg === "*") return "[^/]*";
      if (seg.startsWith(":")) return "(?<" + seg.slice(1) + ">[^/]+)";
      return seg.replace(/[.*+?^${}()|[\]\\]/g, "\\$&");
    })
    .join("/");
  return new RegExp("^" + escaped + "$");
}
function __getClientIp(req) {
  return req.headers.get("x-forwarded-for") ?? "127.0.0.1";
}
async function __parseBody(req) {
  const type = req.headers.get("content-type") ?? "";
  if (type.includes("application/json")) return req.json();
  if (type.includes("multipart/form-data") || type.includes("application/x-www-form-urlencoded")) {
    const fd = await req.formData();
    return Object.fromEntries(fd.entries());
  }
  return req.text();
}
function __parseQuery(req) {
  return Object.fromEntries(new URL(req.url).searchParams.entries());
}
function __parseCookies(req) {
  const raw = req.headers.get("cookie") ?? "";
  return Object.fromEntries(raw.split(";").filter(Boolean).map((p) => {
    const [k, ...v] = p.trim().split("=");
    return [k, decodeURIComponent(v.join("="))];
  }));
}
function respond(status, body, headers) {
  return new Response(typeof body === "string" ? body : JSON.stringify(body), {
    status,
    headers: { "content-type": typeof body === "string" ? "text/plain" : "application/json", ...(headers ?? {}) },
  });
}
function html(body, status) { return new Response(body, { status: status ?? 200, headers: { "content-type": "text/html" } }); }
function text(body, status) { return new Response(body, { status: status ?? 200, headers: { "content-type": "text/plain" } }); }
function redirect(location, status) { return new Response(null, { status: status ?? 302, headers: { location } }); }
function set_cookie(res, name, value, opts) {
  const parts = [name + "=" + encodeURIComponent(value)];
  if (opts?.maxAge) parts.push("Max-Age=" + opts.maxAge);
  if (opts?.httpOnly !== false) parts.push("HttpOnly");
  if (opts?.secure !== false) parts.push("Secure");
  parts.push("Path=" + (opts?.path ?? "/"));
  res.headers.append("set-cookie", parts.join("; "));
  return res;
}
function stream(gen) { return new Response(new ReadableStream({ async start(c) { for await (const chunk of gen) c.enqueue(chunk); c.close(); } })); }
function sse(gen) {
  return new Response(new ReadableStream({
    async start(c) { for await (const evt of gen) c.enqueue("data: " + JSON.stringify(evt) + "\n\n"); c.close(); },
  }), { headers: { "content-type": "text/event-stream" } });
}
function negotiate(req, handlers) {
  const accept = req.headers.get("accept") ?? "*/*";
  for (const [type, fn] of Object.entries(handlers)) if (accept.includes(type)) return fn();
  return handlers["*/*"]?.();
}
function with_headers(res, headers) { for (const [k, v] of Object.entries(headers)) res.headers.set(k, v); return res; }
function __getCorsHeaders(origin) {
  const allowed = __corsOrigins.includes("*") || __corsOrigins.includes(origin);
  return allowed ? { "access-control-allow-origin": origin, "access-control-allow-credentials": "true" } : {};
}
function __getCspHeader() { return __cspHeaderValue; }
const __rateLimitStore = new Map();
function __checkRateLimit(key) {
  const now = Date.now();
  const windowMs = __rateLimitConfig.windowSeconds * 1000;
  const entry = __rateLimitStore.get(key) ?? { count: 0, reset: now + windowMs };
  if (now > entry.reset) { entry.count = 0; entry.reset = now + windowMs; }
  entry.count++;
  __rateLimitStore.set(key, entry);
  return entry.count <= __rateLimitConfig.limit;
}
function __getUserRoles(ctx) { return ctx?.user?.roles ?? []; }
function __hasPermission(ctx, role) { return __getUserRoles(ctx).includes(role); }
// __authenticate reads __tova_auth from the cookie header first, falling
// back to a Bearer header (§4.4 auth-jwt feature table), then verifies the
// token's signature itself: HS256 is the only algorithm this compiler's
// generated server accepts, and that check runs before the HMAC is ever
// computed.
async function __authenticate(req) {
  const cookieToken = __parseCookies(req).__tova_auth;
  const header = req.headers.get("authorization");
  const token = cookieToken || (header?.startsWith("Bearer ") ? header.slice(7) : null);
  if (!token) return null;
  const parts = token.split(".");
  if (parts.length !== 3) return null;
  const __header = JSON.parse(__tovaBase64UrlDecode(parts[0]));
  if (__header.alg !== "HS256") return null;
  const secret = process.env.JWT_SECRET ?? "";
  const expected = await __tovaHmacSign(parts[0] + "." + parts[1], secret);
  if (expected !== parts[2]) return null;
  const payload = JSON.parse(__tovaBase64UrlDecode(parts[1]));
  return { id: payload.sub, roles: payload.roles ?? [] };
}
function __tovaBase64UrlDecode(segment) {
  return atob(segment.replace(/-/g, "+").replace(/_/g, "/"));
}
function __tovaBase64UrlEncode(bytes) {
  return btoa(typeof bytes === "string" ? bytes : String.fromCharCode(...new Uint8Array(bytes)))
    .replace(/\+/g, "-").replace(/\//g, "_").replace(/=+$/, "");
}
async function __tovaHmacSign(data, secret) {
  const key = await crypto.subtle.importKey("raw", new TextEncoder().encode(secret), { name: "HMAC", hash: "SHA-256" }, false, ["sign"]);
  const sig = await crypto.subtle.sign("HMAC", key, new TextEncoder().encode(data));
  return __tovaBase64UrlEncode(sig);
}
async function sign_jwt(payload, secret, opts) {
  const header = __tovaBase64UrlEncode(JSON.stringify({ alg: "HS256", typ: "JWT" }));
  const body = __tovaBase64UrlEncode(JSON.stringify({ ...payload, exp: Math.floor(Date.now() / 1000) + (opts?.expires ?? 3600) }));
  const signed = header + "." + body;
  return signed + "." + (await __tovaHmacSign(signed, secret));
}
async function hash_password(password) {
  const salt = crypto.getRandomValues(new Uint8Array(16));
  const key = await crypto.subtle.importKey("raw", new TextEncoder().encode(password), "PBKDF2", false, ["deriveBits"]);
  const bits = await crypto.subtle.deriveBits({ name: "PBKDF2", salt, iterations: 100000, hash: "SHA-256" }, key, 256);
  return __tovaBase64UrlEncode(salt) + "$" + __tovaBase64UrlEncode(bits);
}
async function verify_password(password, stored) {
  const [saltPart, hashPart] = stored.split("$");
  const salt = Uint8Array.from(__tovaBase64UrlDecode(saltPart), (c) => c.charCodeAt(0));
  const key = await crypto.subtle.importKey("raw", new TextEncoder().encode(password), "PBKDF2", false, ["deriveBits"]);
  const bits = await crypto.subtle.deriveBits({ name: "PBKDF2", salt, iterations: 100000, hash: "SHA-256" }, key, 256);
  return __tovaBase64UrlEncode(bits) === hashPart;
}
function __setAuthCookie(res, token, opts) {
  return set_cookie(res, "__tova_auth", token, { httpOnly: true, secure: true, maxAge: opts?.expires ?? 3600 });
}
function __clearAuthCookie(res) {
  return set_cookie(res, "__tova_auth", "", { httpOnly: true, secure: true, maxAge: 0 });
}
function __apiKeyHeader(req) { return req.headers.get("x-api-key"); }
const __validApiKeys = new Set();
// __checkProtection walks every protect rule whose compiled pattern
// matches the path, denying unless the caller holds the required role;
// __protectRules is populated per-program from the security block's
// protect leaves (see buildServerRuntime), mirroring how __corsOrigins
// and __securityRoles are populated.
function __checkProtection(ctx, path) {
  for (const rule of __protectRules) {
    if (rule.pattern.test(path) && !__hasPermission(ctx, rule.role)) return false;
  }
  return true;
}
function __readBodyBytes(req) { return req.arrayBuffer(); }
const __migrations = [];

// --- sensitive-field sanitizer (§4.4 "sensitive" row) ---
// __isSameIdentity compares two user-shaped records across every identity
// key a Tova model might use, so "is this the record's own owner" doesn't
// depend on a single fixed primary key name.
function __isSameIdentity(a, b) {
  if (!a || !b) return false;
  for (const key of ["id", "_id", "userId", "user_id", "uuid"]) {
    if (a[key] !== undefined && a[key] !== null && a[key] === b[key]) return true;
  }
  return false;
}
function __canSee(ctx, value) {
  return __isSameIdentity(ctx?.user, value) || __getUserRoles(ctx).includes("admin");
}
function __visibleTo(ctx, value, rule) {
  if (rule.neverExpose) return false;
  if (rule.ownerOnly) return __canSee(ctx, value);
  return true;
}
function __sanitizeValue(typeName, value, ctx) {
  const rules = __sensitiveFields[typeName];
  if (!rules || value == null || typeof value !== "object") return value;
  const out = { ...value };
  for (const rule of rules) {
    if (!rule.field) continue;
    if (!__visibleTo(ctx, value, rule)) delete out[rule.field];
  }
  return out;
}
// __autoSanitize recursively drops never_expose/owner-only fields from a
// handler's return value before it is serialized, dispatching on the
// value's declared type tag rather than escaping every string it finds.
function __autoSanitize(value, ctx) {
  if (Array.isArray(value)) return value.map((v) => __autoSanitize(v, ctx));
  if (value && typeof value === "object") {
    const typeName = value.__type ?? value.__tag ?? value.constructor?.name;
    const sanitized = typeName ? __sanitizeValue(typeName, value, ctx) : value;
    return Object.fromEntries(Object.entries(sanitized).map(([k, v]) => [k, __autoSanitize(v, ctx)]));
  }
  return value;
}

const __auditLog = [];
const __auditTableName = /^[a-zA-Z_][a-zA-Z0-9_]*$/;
function audit(event, user, req) {
  if (!__auditTableName.test(event)) {
    console.error("[tova:audit] invalid audit table name: " + event);
    return;
  }
  __auditLog.push({ event, user: user?.id ?? null, path: req ? new URL(req.url).pathname : null, at: new Date().toISOString() });
}
function __validCols(model, cols) { return cols.every((c) => model.__columns.includes(c)); }
function __assertCols(model, cols) { if (!__validCols(model, cols)) throw new Error("Invalid column in " + model.__name); }
function broadcast(channel, msg) { (globalThis.__tovaChannels ??= new Map()).get(channel)?.forEach((s) => s.send(JSON.stringify(msg))); }
function join(channel, socket) { const set = (globalThis.__tovaChannels ??= new Map()); (set.get(channel) ?? set.set(channel, new Set()).get(channel)).add(socket); __wsRooms.get(channel) ?? __wsRooms.set(channel, new Set()); __wsRooms.get(channel).add(socket); }
function leave(channel, socket) { globalThis.__tovaChannels?.get(channel)?.delete(socket); __wsRooms.get(channel)?.delete(socket); }
function broadcast_to(socket, msg) { socket.send(JSON.stringify(msg)); }
const __backgroundQueue = [];
function spawn_job(name, fn) {
  const job = { name, fn, attempts: 0 };
  __backgroundQueue.push(job);
  const run = async () => {
    job.attempts++;
    try {
      await fn();
      const idx = __backgroundQueue.indexOf(job);
      if (idx >= 0) __backgroundQueue.splice(idx, 1);
    } catch (e) {
      if (job.attempts < 2) queueMicrotask(run);
      else { __log("error", "background job failed", { job: name, error: String(e) }); const idx = __backgroundQueue.indexOf(job); if (idx >= 0) __backgroundQueue.splice(idx, 1); }
    }
  };
  queueMicrotask(run);
}
function __tovaPortFor(name) { return Number(process.env["PORT_" + name.toUpperCase()] ?? 3000); }
function __tovaConnectDb(url, cfg) {
  return { url, cfg, query(model, op, payload) { return Promise.resolve({ model, op, payload }); } };
}
function __tovaDefineModel(name, cfg) { return { __name: name, __columns: Object.keys(cfg ?? {}) }; }

// --- websocket rooms/broadcast (§4.4 "ws" row) ---
const __wsRoutes = new Map();
const __wsClients = new Set();
const __wsRooms = new Map();
function __tovaWs(path, handler) { __wsRoutes.set(path, handler); }
const __tovaWebSocketHandlers = {
  open(ws) {
    __wsClients.add(ws);
    __wsRoutes.get(ws.data?.path)?.(ws, ws.data?.ctx);
  },
  message(ws, message) {
    ws.data?.ctx?.onMessage?.(ws, message);
  },
  close(ws) {
    __wsClients.delete(ws);
    for (const set of __wsRooms.values()) set.delete(ws);
  },
};

// --- server-sent-event channel registry (§4.4 "sse" row) ---
const __sseChannels = new Map();
function __tovaSse(path, handler) {
  __addRoute("GET", path, [], async (req, ctx) => {
    let controller;
    const stream = new ReadableStream({
      start(c) { controller = c; (__sseChannels.get(path) ?? __sseChannels.set(path, new Set()).get(path)).add(c); },
      cancel() { __sseChannels.get(path)?.delete(controller); },
    });
    const send = (event) => controller.enqueue("data: " + JSON.stringify(event) + "\n\n");
    const close = () => { controller.close(); __sseChannels.get(path)?.delete(controller); };
    handler(send, close, ctx).catch((e) => { __log("error", "sse handler failed", { path, error: String(e) }); controller.error(e); });
    return new Response(stream, { headers: { "content-type": "text/event-stream", "cache-control": "no-cache" } });
  });
}

// --- cron/interval scheduling (§4.4 "schedule" row) ---
function __tovaParseInterval(pattern) {
  const m = /^(\d+)(s|m|h|d)$/.exec(pattern);
  if (!m) return null;
  return Number(m[1]) * ({ s: 1000, m: 60000, h: 3600000, d: 86400000 }[m[2]]);
}
function __tovaParseCronField(field, min, max) {
  if (field === "*") return null;
  const out = new Set();
  for (const part of field.split(",")) {
    const step = /^(\*|\d+-\d+|\d+)\/(\d+)$/.exec(part);
    if (step) {
      const n = Number(step[2]);
      const [lo, hi] = step[1] === "*" ? [min, max] : step[1].split("-").map(Number);
      for (let i = lo; i <= hi; i += n) out.add(i);
      continue;
    }
    const range = /^(\d+)-(\d+)$/.exec(part);
    if (range) {
      for (let i = Number(range[1]); i <= Number(range[2]); i++) out.add(i);
      continue;
    }
    out.add(Number(part));
  }
  return out;
}
function __tovaParseCron(pattern) {
  const [minute, hour, dom, month, dow] = pattern.trim().split(/\s+/);
  return {
    minute: __tovaParseCronField(minute, 0, 59),
    hour: __tovaParseCronField(hour, 0, 23),
    dom: __tovaParseCronField(dom, 1, 31),
    month: __tovaParseCronField(month, 1, 12),
    dow: __tovaParseCronField(dow, 0, 6),
  };
}
function __tovaCronMatches(spec, now) {
  return (spec.minute === null || spec.minute.has(now.getMinutes()))
    && (spec.hour === null || spec.hour.has(now.getHours()))
    && (spec.dom === null || spec.dom.has(now.getDate()))
    && (spec.month === null || spec.month.has(now.getMonth() + 1))
    && (spec.dow === null || spec.dow.has(now.getDay()));
}
function __tovaSchedule(pattern, handler) {
  const everyMs = __tovaParseInterval(pattern);
  if (everyMs != null) { setInterval(() => handler(), everyMs); return; }
  const spec = __tovaParseCron(pattern);
  let lastRun = -1;
  setInterval(() => {
    const now = new Date();
    const minuteKey = Math.floor(now.getTime() / 60000);
    if (minuteKey === lastRun) return;
    if (__tovaCronMatches(spec, now)) { lastRun = minuteKey; handler(); }
  }, 1000);
}

// --- peer discovery / circuit breaker (§4.4 "discover" row) ---
const __tovaPeers = new Map();
function __tovaDiscover(name, url, cfg, handler) {
  const threshold = cfg?.threshold ?? 5;
  const resetMs = (cfg?.reset_timeout ?? 30) * 1000;
  const timeoutMs = cfg?.timeout ?? 5000;
  const breaker = { state: "CLOSED", failures: 0, openedAt: 0 };
  const call = async (fnName, args, requestId) => {
    if (breaker.state === "OPEN") {
      if (Date.now() - breaker.openedAt > resetMs) breaker.state = "HALF_OPEN";
      else throw new Error("circuit open for peer " + name);
    }
    const attempts = breaker.state === "HALF_OPEN" ? 1 : 3;
    let lastErr;
    for (let i = 0; i < attempts; i++) {
      const controller = new AbortController();
      const timer = setTimeout(() => controller.abort(), timeoutMs);
      try {
        const res = await fetch(url + "/rpc/" + fnName, {
          method: "POST",
          headers: { "content-type": "application/json", "x-request-id": requestId ?? crypto.randomUUID() },
          body: JSON.stringify({ __args: args }),
          signal: controller.signal,
        });
        clearTimeout(timer);
        if (!res.ok) throw new Error("peer " + name + " responded " + res.status);
        breaker.state = "CLOSED";
        breaker.failures = 0;
        return await res.json();
      } catch (e) {
        clearTimeout(timer);
        lastErr = e;
        breaker.failures++;
        if (breaker.failures >= threshold) { breaker.state = "OPEN"; breaker.openedAt = Date.now(); break; }
        await new Promise((r) => setTimeout(r, 2 ** i * 100));
      }
    }
    throw lastErr ?? new Error("peer call failed");
  };
  const peer = { name, url, call, get state() { return breaker.state; } };
  __tovaPeers.set(name, peer);
  handler(peer);
}

// --- HMAC-signed session store (§4.4 "session" row) ---
function __tovaMemorySessionStore() {
  const data = new Map();
  return {
    get(id) { const e = data.get(id); if (!e) return null; if (Date.now() > e.expires) { data.delete(id); return null; } return e.value; },
    set(id, value, expires) { data.set(id, { value, expires }); },
    delete(id) { data.delete(id); },
    cleanup() { const now = Date.now(); for (const [id, e] of data) if (now > e.expires) data.delete(id); },
  };
}
function __tovaSqliteSessionStore(cfg) {
  const db = new Database(cfg?.path ?? "sessions.sqlite");
  db.run("CREATE TABLE IF NOT EXISTS sessions (id TEXT PRIMARY KEY, value TEXT, expires INTEGER)");
  const stmts = {
    get: db.query("SELECT value, expires FROM sessions WHERE id = ?"),
    set: db.query("INSERT OR REPLACE INTO sessions (id, value, expires) VALUES (?, ?, ?)"),
    del: db.query("DELETE FROM sessions WHERE id = ?"),
    sweep: db.query("DELETE FROM sessions WHERE expires < ?"),
  };
  return {
    get(id) { const row = stmts.get.get(id); if (!row || Date.now() > row.expires) return null; return JSON.parse(row.value); },
    set(id, value, expires) { stmts.set.run(id, JSON.stringify(value), expires); },
    delete(id) { stmts.del.run(id); },
    cleanup() { stmts.sweep.run(Date.now()); },
  };
}
function __tovaConfigureSession(cfg) {
  const secret = process.env.SESSION_SECRET ?? "";
  const ttlMs = (cfg?.ttl ?? 86400) * 1000;
  const store = cfg?.driver === "sqlite" ? __tovaSqliteSessionStore(cfg) : __tovaMemorySessionStore();
  setInterval(() => store.cleanup(), (cfg?.cleanup_interval ?? 300) * 1000);
  return { secret, ttlMs, store, cookieName: cfg?.cookie_name ?? "__tova_sid" };
}
async function __tovaSignSessionId(id, secret) { return id + "." + (await __tovaHmacSign(id, secret)); }
async function __tovaVerifySessionId(signed, secret) {
  const idx = signed.lastIndexOf(".");
  if (idx < 0) return null;
  const id = signed.slice(0, idx), sig = signed.slice(idx + 1);
  return (await __tovaHmacSign(id, secret)) === sig ? id : null;
}
// attaches req.__session: get/set/delete/destroy backed by __session's
// configured store, signed with the same HMAC primitive auth tokens use.
async function __tovaAttachSession(req) {
  if (!__session) return null;
  const raw = __parseCookies(req)[__session.cookieName];
  let id = raw ? await __tovaVerifySessionId(raw, __session.secret) : null;
  if (!id) id = crypto.randomUUID();
  return {
    id,
    get signedId() { return __tovaSignSessionId(id, __session.secret); },
    get(key) { return (__session.store.get(id) ?? {})[key]; },
    set(key, value) { const data = __session.store.get(id) ?? {}; data[key] = value; __session.store.set(id, data, Date.now() + __session.ttlMs); },
    delete(key) { const data = __session.store.get(id) ?? {}; delete data[key]; __session.store.set(id, data, Date.now() + __session.ttlMs); },
    destroy() { __session.store.delete(id); },
  };
}
async function __regenerateSession(ctx) {
  if (!__session || !ctx.__session) return null;
  const oldId = ctx.__session.id;
  const data = __session.store.get(oldId) ?? {};
  __session.store.delete(oldId);
  const newId = crypto.randomUUID();
  __session.store.set(newId, data, Date.now() + __session.ttlMs);
  ctx.__session = await __tovaAttachSessionId(newId);
  return newId;
}
async function __tovaAttachSessionId(id) {
  return {
    id,
    get signedId() { return __tovaSignSessionId(id, __session.secret); },
    get(key) { return (__session.store.get(id) ?? {})[key]; },
    set(key, value) { const data = __session.store.get(id) ?? {}; data[key] = value; __session.store.set(id, data, Date.now() + __session.ttlMs); },
    delete(key) { const data = __session.store.get(id) ?? {}; delete data[key]; __session.store.set(id, data, Date.now() + __session.ttlMs); },
    destroy() { __session.store.delete(id); },
  };
}

// --- CSRF double-submit tokens (§4.4 "csrf" row) ---
async function __issueCsrfToken(binding) {
  const ts = Date.now().toString(36);
  const nonce = crypto.randomUUID().replace(/-/g, "");
  const sig = await __tovaHmacSign(ts + ":" + nonce + ":" + binding, process.env.CSRF_SECRET ?? "");
  return ts + ":" + nonce + ":" + binding + ":" + sig;
}
async function __verifyCsrfToken(token, binding) {
  if (!token) return false;
  const parts = token.split(":");
  if (parts.length !== 4) return false;
  const [ts, nonce, tokenBinding, sig] = parts;
  if (tokenBinding !== String(binding ?? "anon")) return false;
  const expected = await __tovaHmacSign(ts + ":" + nonce + ":" + tokenBinding, process.env.CSRF_SECRET ?? "");
  return expected === sig;
}
function __isCsrfExempt(path) { return __csrfExemptPatterns.some((p) => p.test(path)); }
const __csrfUnsafeMethods = new Set(["POST", "PUT", "PATCH", "DELETE"]);

// --- general-purpose middleware/error hooks (§4.4 dispatch-state rows) ---
const __globalMiddleware = [];
function __tovaUseMiddleware(fn) { __globalMiddleware.push(fn); }
async function __runGlobalMiddleware(req, ctx) {
  let called = -1;
  const run = (i) => {
    if (i <= called) throw new Error("next() called multiple times");
    called = i;
    const mw = __globalMiddleware[i];
    if (!mw) return null;
    return mw(req, ctx, () => run(i + 1));
  };
  return run(0);
}
let __tovaErrorHandler = null;
function __tovaOnError(fn) { __tovaErrorHandler = fn; }

// --- static file serving (§4.4 "static" row) ---
let __staticConfig = null;
function __tovaServeStatic(dir, cfg) { __staticConfig = { dir, prefix: cfg?.prefix ?? "/", ...(cfg ?? {}) }; }
async function __tovaTryServeStatic(pathname) {
  if (!__staticConfig || !pathname.startsWith(__staticConfig.prefix)) return null;
  const rel = pathname.slice(__staticConfig.prefix.length) || (__staticConfig.index ?? "index.html");
  const file = Bun.file(__staticConfig.dir + "/" + rel);
  if (!(await file.exists())) return null;
  return new Response(file);
}

// --- sub-router mounting / named caches (§4.4 "routes"/"cache" rows) ---
function __tovaMountRoutes(routers, cfg) {
  const prefix = cfg?.prefix ?? "";
  for (const router of routers ?? []) {
    for (const r of router.__routes ?? router ?? []) __addRoute(r.method, prefix + r.path, r.middleware ?? [], r.handler);
  }
}
function __tovaCache(name, cfg) {
  const ttlMs = (cfg?.ttl ?? 60) * 1000;
  const store = new Map();
  const cache = {
    get(key) {
      const hit = store.get(key);
      if (!hit) return undefined;
      if (Date.now() > hit.expires) { store.delete(key); return undefined; }
      return hit.value;
    },
    set(key, value) { store.set(key, { value, expires: Date.now() + ttlMs }); },
    delete(key) { store.delete(key); },
    async wrap(key, fn) {
      const hit = cache.get(key);
      if (hit !== undefined) return hit;
      const value = await fn();
      cache.set(key, value);
      return value;
    },
  };
  return cache;
}
function __tovaRequireEnv(name) { if (!process.env[name]) throw new Error("missing required env var " + name); }
function __openApiSpec() { return __TOVA_OPENAPI; }
function __tovaSwaggerHtml() {
  return "<!doctype html><html><head><meta charset=\"utf-8\"/><title>API docs</title>" +
    "<link rel=\"stylesheet\" href=\"https://unpkg.com/swagger-ui-dist/swagger-ui.css\"/></head>" +
    "<body><div id=\"swagger-ui\"></div>" +
    "<script src=\"https://unpkg.com/swagger-ui-dist/swagger-ui-bundle.js\"></script>" +
    "<script>window.onload = () => SwaggerUIBundle({ url: \"/openapi.json\", dom_id: \"#swagger-ui\" });</script>" +
    "</body></html>";
}

// --- request-scoped logging, drain, and ALS context (§6 external interface) ---
const __requestContext = new AsyncLocalStorage();
function __currentRequestId() { return __requestContext.getStore()?.requestId ?? "-"; }
const __logLevels = { debug: 10, info: 20, warn: 30, error: 40 };
const __logLevel = __logLevels[(process.env.LOG_LEVEL ?? "info").toLowerCase()] ?? 20;
function __log(level, message, fields) {
  if ((__logLevels[level] ?? 20) < __logLevel) return;
  const line = JSON.stringify({ level, message, requestId: __currentRequestId(), at: new Date().toISOString(), ...fields });
  if (process.env.LOG_FILE) appendFileSync(process.env.LOG_FILE, line + "\n");
  else console.log(line);
}
let __activeRequests = 0;
let __draining = false;
async function __tovaDrain(signal) {
  if (__draining) return;
  __draining = true;
  __log("info", "draining", { signal });
  const deadline = Date.now() + 10000;
  while (__activeRequests > 0 && Date.now() < deadline) await new Promise((r) => setTimeout(r, 50));
  process.exit(0);
}
process.on("SIGINT", () => __tovaDrain("SIGINT"));
process.on("SIGTERM", () => __tovaDrain("SIGTERM"));

function __withSecurityHeaders(res, req) {
  res.headers.set("x-request-id", __currentRequestId());
  if (__hstsEnabled) res.headers.set("strict-transport-security", "max-age=31536000; includeSubDomains");
  res.headers.set("content-security-policy", __getCspHeader());
  const origin = req.headers.get("origin");
  if (origin) for (const [k, v] of Object.entries(__getCorsHeaders(origin))) res.headers.set(k, v);
  return res;
}

async function __handleRequest(req) {
  const requestId = req.headers.get("x-request-id") ?? crypto.randomUUID();
  return __requestContext.run({ requestId }, () => __dispatch(req, requestId));
}

// __dispatch implements the request state machine: drain check, CORS
// preflight, static files, RPC dispatch, then the route table with
// global/per-route rate limiting, protect rules, CSRF, auth/role
// middleware, the handler itself, response sanitization, and security
// headers applied on every exit path (§4.4 request-dispatch state machine).
async function __dispatch(req, requestId) {
  const start = Date.now();
  __activeRequests++;
  try {
    if (__draining) return __withSecurityHeaders(respond(503, { error: "draining" }), req);
    const url = new URL(req.url);

    if (req.method === "OPTIONS" && req.headers.has("origin")) {
      return new Response(null, { status: 204, headers: __getCorsHeaders(req.headers.get("origin")) });
    }

    const staticRes = await __tovaTryServeStatic(url.pathname);
    if (staticRes) return __withSecurityHeaders(staticRes, req);

    if (__wsRoutes.has(url.pathname)) {
      const ctx = { user: await __authenticate(req) };
      if (__tovaServer?.upgrade(req, { data: { path: url.pathname, ctx } })) return undefined;
      return __withSecurityHeaders(respond(400, { error: "websocket upgrade failed" }), req);
    }

    const mwCtx = { requestId };
    const mwResult = await __runGlobalMiddleware(req, mwCtx);
    if (mwResult instanceof Response) return __withSecurityHeaders(mwResult, req);

    if (url.pathname === "/rpc/__logout") {
      const res = respond(200, { ok: true });
      __clearAuthCookie(res);
      return __withSecurityHeaders(res, req);
    }
    if (url.pathname.startsWith("/rpc/")) {
      const fnName = url.pathname.slice(5);
      const fn = __rpcFunctions[fnName];
      if (!fn) return __withSecurityHeaders(respond(404, { error: "unknown rpc function" }), req);
      if (!__checkRateLimit(__getClientIp(req) + ":rpc")) return __withSecurityHeaders(respond(429, { error: "rate limited" }), req);
      const ctx = { user: await __authenticate(req), requestId };
      if (__csrfEnabled && !__isCsrfExempt(url.pathname) && __csrfUnsafeMethods.has(req.method)) {
        if (!(await __verifyCsrfToken(req.headers.get("x-csrf-token"), ctx.user?.id ?? "anon"))) {
          return __withSecurityHeaders(respond(403, { error: "csrf check failed" }), req);
        }
      }
      try {
        const { __args } = await __parseBody(req);
        const result = await fn(...(__args ?? []));
        audit("rpc_" + fnName, ctx.user, req);
        return __withSecurityHeaders(respond(200, __autoSanitize(result, ctx)), req);
      } catch (e) {
        __log("error", "rpc handler failed", { fn: fnName, error: String(e) });
        return __withSecurityHeaders(respond(500, { error: "internal error" }), req);
      }
    }

    if (!__checkRateLimit(__getClientIp(req) + ":global")) return __withSecurityHeaders(respond(429, { error: "rate limited" }), req);

    for (const route of __routes) {
      if (route.method !== req.method) continue;
      const match = route.pattern.exec(url.pathname);
      if (!match) continue;

      const ctx = { user: await __authenticate(req), query: __parseQuery(req), cookies: __parseCookies(req), params: match.groups ?? {}, requestId };
      if (__session) ctx.__session = await __tovaAttachSession(req);

      if (!__checkProtection(ctx, url.pathname)) return __withSecurityHeaders(respond(403, { error: "forbidden" }), req);
      if (!__checkRateLimit(__getClientIp(req) + ":" + url.pathname)) return __withSecurityHeaders(respond(429, { error: "rate limited" }), req);

      if (__csrfEnabled && !__isCsrfExempt(url.pathname) && __csrfUnsafeMethods.has(req.method)) {
        if (!(await __verifyCsrfToken(req.headers.get("x-csrf-token"), ctx.user?.id ?? "anon"))) {
          return __withSecurityHeaders(respond(403, { error: "csrf check failed" }), req);
        }
      }

      for (const mw of route.middleware) {
        if (mw.name === "auth" && !ctx.user) return __withSecurityHeaders(respond(401, { error: "unauthorized" }), req);
        if (mw.name === "role" && !__hasPermission(ctx, mw.args[0])) return __withSecurityHeaders(respond(403, { error: "forbidden" }), req);
      }

      try {
        const result = await route.handler(req, ctx);
        const res = result instanceof Response ? result : respond(200, __autoSanitize(result, ctx));
        if (ctx.__session) set_cookie(res, __session.cookieName, await ctx.__session.signedId, { httpOnly: true });
        __log("info", "request", { method: req.method, path: url.pathname, status: res.status, ms: Date.now() - start });
        return __withSecurityHeaders(res, req);
      } catch (e) {
        if (__tovaErrorHandler) {
          const handled = await __tovaErrorHandler(e, ctx);
          if (handled) return __withSecurityHeaders(handled, req);
        }
        __log("error", "handler failed", { method: req.method, path: url.pathname, error: String(e) });
        return __withSecurityHeaders(respond(500, { error: "internal error" }), req);
      }
    }
    return __withSecurityHeaders(respond(404, { error: "not found" }), req);
  } finally {
    __activeRequests--;
  }
}
`
