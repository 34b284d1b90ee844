package tovac

// Decl is the sum type of top-level and block-level declarations: things
// that introduce a name, a route, or a nested block, as opposed to Stmt
// (ast_stmt.go), which only ever appears inside a function/handler body.
type Decl interface {
	declNode()
	Location() Location
}

type baseDecl struct{ Loc Location }

func (baseDecl) declNode()            {}
func (b baseDecl) Location() Location { return b.Loc }

// Program is the parser's top-level output: every successfully parsed
// declaration, in source order.
type Program struct {
	File  string
	Decls []Decl
}

// ImportDecl is `import "path" [as name] [with a, b]`.
type ImportDecl struct {
	baseDecl
	Path    string
	Alias   string
	Members []string // `with a, b` selective import
}

// ConfigEntry is one `key: value` pair inside a declaration's trailing
// `{ ... }` configuration block (e.g. `auth jwt { secret: env("S") }`).
type ConfigEntry struct {
	Key   string
	Value Expr
}

// TypeField is one field of a type/interface declaration.
type TypeField struct {
	Name string
	Type string
}

// TypeDecl declares a product type (struct-like) or a sum type (a list of
// Variants). A type with Variants is a sum type; one with only Fields is a
// product type. `derive` names the trait list to synthesize methods for.
type TypeDecl struct {
	baseDecl
	Name       string
	TypeParams []string
	Fields     []TypeField
	Variants   []TypeVariant
	Derive     []string
	IsPublic   bool
	Docstring  string
}

type TypeVariant struct {
	Name   string
	Fields []TypeField
}

// TypeAliasDecl is `type Name<T> = OtherType`.
type TypeAliasDecl struct {
	baseDecl
	Name       string
	TypeParams []string
	Target     string
}

// InterfaceDecl declares a set of method signatures a type can satisfy
// structurally.
type InterfaceMethod struct {
	Name       string
	Params     []Param
	ReturnType string
}

type InterfaceDecl struct {
	baseDecl
	Name    string
	Methods []InterfaceMethod
}

// TraitDecl is like InterfaceDecl but methods may carry a default body.
// The code generator emits only a marker comment for a trait, and
// `derive(TraitName)` on a type emits no bridging method for it.
type TraitMethod struct {
	Name       string
	Params     []Param
	ReturnType string
	Body       *BlockStmt // nil when the method has no default
}

type TraitDecl struct {
	baseDecl
	Name    string
	Methods []TraitMethod
}

// ImplDecl is `impl Trait for Type { ... }`.
type ImplDecl struct {
	baseDecl
	Trait   string
	Type    string
	Methods []*FunctionDecl
}

// RouteMiddleware is one entry of a `with auth, role("x"), rate_limit(50,30)`
// decorator list on a route declaration.
type RouteMiddleware struct {
	Name string
	Args []Expr
}

// RouteDecl is `route METHOD "path" [with mw...] => handler`.
type RouteDecl struct {
	baseDecl
	Method     string
	Path       string
	Middleware []RouteMiddleware
	Handler    *FunctionDecl // synthesized handler; nil if Handler references a named function
	HandlerRef string        // set when the handler is a reference to an existing function
}

// BlockKind distinguishes the five top-level target blocks.
type BlockKind int

const (
	BlockShared BlockKind = iota
	BlockServer
	BlockClient
	BlockSecurity
	BlockTest
)

func (k BlockKind) String() string {
	switch k {
	case BlockShared:
		return "shared"
	case BlockServer:
		return "server"
	case BlockClient:
		return "client"
	case BlockSecurity:
		return "security"
	case BlockTest:
		return "test"
	default:
		return "unknown"
	}
}

// Block is one `shared|server|client|security|test { ... }` declaration.
// A source unit may contain more than one block of the same kind (security
// blocks in particular are merged across occurrences by the analyzer).
// Name distinguishes multiple named server blocks (`server "api" { ... }`)
// for the multi-server output split.
type Block struct {
	baseDecl
	Kind  BlockKind
	Name  string
	Decls []Decl
}

// ServerLeaf covers the fixed set of declarations accepted directly inside
// a server block. Most varieties (db, model, ws, sse, background, schedule,
// discover, session, cors-adjacent server options) are representable with
// a name + positional args + trailing config block; this mirrors how the
// teacher's own tag parsers (tags.go) take a name and a raw argument token
// stream rather than one bespoke Go type per Django tag.
type ServerLeaf struct {
	baseDecl
	Keyword string // "db", "model", "ws", "sse", "background", "schedule", "discover", "session", "middleware", "on_error", "health", "static", "routes", "tls", "compression", "cache", "max_body", "env"
	Name    string // e.g. model name, peer name, sse path
	Args    []Expr
	Config  []ConfigEntry
	Handler *FunctionDecl // for ws/sse/background/schedule/discover/middleware/on_error handlers
}

// SecurityLeaf covers auth/role/protect/sensitive/cors/csp/rate_limit/
// csrf/audit/trust_proxy/hsts declarations inside a security block, using
// the same name+args+config shape as ServerLeaf for the same reason.
type SecurityLeaf struct {
	baseDecl
	Keyword string // "auth", "role", "protect", "sensitive", "cors", "csp", "rate_limit", "csrf", "audit", "trust_proxy", "hsts"
	Name    string // auth type ("jwt"/"api_key"), role name, protect pattern, sensitive field path
	Args    []Expr
	Config  []ConfigEntry
}

// ClientLeaf covers component/state/computed/effect/store declarations
// inside a client block.
type ClientLeaf struct {
	baseDecl
	Keyword    string // "component", "state", "computed", "effect", "store"
	Name       string
	Params     []Param
	InitValue  Expr       // for state/store
	Body       *BlockStmt // for component/effect
	Expr       Expr       // for computed (expression form) or JSX-returning component body
	Computed   Expr       // computed expression, when not a block
}

// TestLeaf is one `test "description" { ... }` block inside a test block.
type TestLeaf struct {
	baseDecl
	Description string
	Body        *BlockStmt
}
