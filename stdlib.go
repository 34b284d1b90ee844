package tovac

// BuiltinSet is the undefined-identifier detector's second source of truth
// besides the scope tree (§4.3): JS globals, runtime helpers the code
// generator always emits, and the inline standard library of free
// functions a Tova program can call without importing anything. Grounded
// on the teacher's globals.go builtin-name-to-function map; same
// registration shape, names-only here since nothing at compile time ever
// calls a builtin.
type BuiltinSet struct {
	names map[string]bool
}

// jsGlobals are environment/runtime identifiers the generated JavaScript
// can always see.
var jsGlobals = []string{
	"console", "JSON", "Math", "Date", "Object", "Array", "String", "Number",
	"Boolean", "Promise", "Map", "Set", "Symbol", "Error", "TypeError",
	"RangeError", "RegExp", "Infinity", "NaN", "undefined", "globalThis",
	"setTimeout", "clearTimeout", "setInterval", "clearInterval",
	"fetch", "Request", "Response", "Headers", "URL", "URLSearchParams",
	"crypto", "process", "Bun", "ReadableStream", "WritableStream",
	"TextEncoder", "TextDecoder", "structuredClone", "AbortController",
}

// stdlibFuncs are the inline standard library functions named in §4.3 and
// §9's stable-name contract.
var stdlibFuncs = []string{
	"print", "len", "range", "map", "filter", "find", "reduce", "sort",
	"reverse", "zip", "enumerate", "keys", "values", "entries", "min", "max",
	"sum", "abs", "round", "floor", "ceil", "clamp", "type_of", "to_string",
	"to_int", "to_float", "to_json", "parse_json", "now", "uuid", "sleep",
	"env", "assert", "panic",
}

// runtimeHelpers are names the code generator synthesizes into every
// output (shared helpers, server dispatch, client signals, security
// templates); an undefined-identifier check must never flag a reference
// to one of these even though no user-visible declaration binds them.
var runtimeHelpers = []string{
	"tova_el", "tova_fragment", "it",
	"respond", "html", "text", "redirect", "set_cookie", "stream", "sse",
	"negotiate", "with_headers",
	"__parseBody", "__parseQuery", "__parseCookies", "__readBodyBytes",
	"__authenticate", "sign_jwt", "hash_password", "verify_password",
	"__setAuthCookie", "__clearAuthCookie", "__apiKeyHeader", "__validApiKeys",
	"__securityRoles", "__getUserRoles", "__hasPermission", "__protectRules",
	"__checkProtection", "__isSameIdentity", "__canSee", "__visibleTo",
	"__sanitizeValue", "__autoSanitize", "__sensitiveFields", "__corsOrigins",
	"__getCorsHeaders", "__getCspHeader", "__cspHeaderValue", "__hstsEnabled",
	"__checkRateLimit", "__getClientIp",
	"__rateLimitStore", "__csrfEnabled", "__csrfExemptPatterns", "__isCsrfExempt",
	"__csrfUnsafeMethods", "__issueCsrfToken", "__verifyCsrfToken",
	"__auditLog", "__auditTableName", "audit",
	"__session", "__regenerateSession", "__tovaConfigureSession",
	"__tovaAttachSession", "__tovaAttachSessionId", "__tovaSignSessionId",
	"__tovaVerifySessionId", "__tovaMemorySessionStore", "__tovaSqliteSessionStore",
	"__migrations", "__validCols", "__assertCols",
	"broadcast", "join", "leave", "broadcast_to", "spawn_job", "__backgroundQueue",
	"getAuthToken", "setAuthToken", "clearAuthToken", "can", "setCount",
	"__openApiSpec", "__addRoute", "__handleRequest", "__dispatch",
	"__tovaWs", "__tovaSse", "__tovaSchedule", "__tovaDiscover",
	"__tovaUseMiddleware", "__runGlobalMiddleware", "__globalMiddleware",
	"__tovaOnError", "__tovaErrorHandler", "__tovaServeStatic", "__tovaTryServeStatic",
	"__tovaMountRoutes", "__tovaCache", "__tovaRequireEnv", "__tovaSwaggerHtml",
	"__tovaWebSocketHandlers", "__wsRoutes", "__wsClients", "__wsRooms",
	"__sseChannels", "__tovaPeers",
	"__tovaParseInterval", "__tovaParseCronField", "__tovaParseCron", "__tovaCronMatches",
	"__rpcFunctions", "__tovaServer", "__withSecurityHeaders",
	"__requestContext", "__currentRequestId", "__log", "__logLevel", "__logLevels",
	"__activeRequests", "__draining", "__tovaDrain",
}

// NewBuiltinSet assembles the default built-in-names table.
func NewBuiltinSet() *BuiltinSet {
	b := &BuiltinSet{names: map[string]bool{}}
	for _, group := range [][]string{jsGlobals, stdlibFuncs, runtimeHelpers} {
		for _, n := range group {
			b.names[n] = true
		}
	}
	return b
}

// Has reports whether name is a recognized built-in.
func (b *BuiltinSet) Has(name string) bool {
	return b.names[name]
}

// Names returns every registered built-in name, used by the E200
// suggestion search.
func (b *BuiltinSet) Names() []string {
	out := make([]string, 0, len(b.names))
	for n := range b.names {
		out = append(out, n)
	}
	return out
}
