package tovac

import (
	"fmt"
	"sort"
	"strings"
)

// SourceMapping is one (sourceLine, sourceCol, outputLine, outputCol)
// pair the generator records for every emitted statement (§3, §4.4, §9
// design note: "a dedicated output buffer per target ... concatenating
// strings with + produces poor source maps").
type SourceMapping struct {
	SrcLine, SrcCol, OutLine, OutCol int
}

// GeneratedOutput is the compiler's final product (§3).
type GeneratedOutput struct {
	Shared         string
	Server         string
	Servers        map[string]string // populated instead of Server when multiple named servers exist
	Client         string
	Test           string
	SourceMappings []SourceMapping
	OpenApiSpec    string
	IsModule       bool
	MultiBlock     bool
}

// outBuf is a per-target output buffer that tracks its own line/column so
// the generator can record source mappings without string concatenation.
type outBuf struct {
	b    strings.Builder
	line int
	col  int
}

func newOutBuf() *outBuf { return &outBuf{line: 1, col: 0} }

func (o *outBuf) WriteString(s string) {
	o.b.WriteString(s)
	for _, r := range s {
		if r == '\n' {
			o.line++
			o.col = 0
		} else {
			o.col++
		}
	}
}

func (o *outBuf) Writef(format string, args ...any) {
	o.WriteString(fmt.Sprintf(format, args...))
}

func (o *outBuf) String() string { return o.b.String() }

// CodeGenerator lowers a validated Program into the four JavaScript
// targets. Grounded on the teacher's Execute-to-writer pattern (the
// now-deleted nodes.go), generalized from "write bytes for one template"
// to "write JS source to four named buffers while recording source
// mappings."
type CodeGenerator struct {
	prog *Program
	opts CompilerOptions

	shared  *outBuf
	servers map[string]*outBuf // "" key is the default/unnamed server
	client  *outBuf
	test    *outBuf

	mappings []SourceMapping

	features      *serverFeatures
	hasRoutes     bool
	hasTests      bool
	hasClient     bool
	pendingRoutes map[string][]pendingRoute
	publicFuncs   []string // top-level `pub fn` names, exposed over /rpc/<fn>
}

// Generate runs the full base+client+server code generation pass over
// prog and returns the combined output record (§3, §4.4).
func Generate(prog *Program, opts CompilerOptions) *GeneratedOutput {
	g := &CodeGenerator{
		prog:          prog,
		opts:          opts,
		shared:        newOutBuf(),
		servers:       map[string]*outBuf{},
		client:        newOutBuf(),
		test:          newOutBuf(),
		features:      discoverServerFeatures(prog),
		pendingRoutes: map[string][]pendingRoute{},
	}
	g.run()
	return g.finish()
}

func (g *CodeGenerator) run() {
	g.shared.WriteString("// generated by tovac\n\"use strict\";\n\n")
	g.shared.WriteString(sharedRuntimePrelude)

	for _, d := range g.prog.Decls {
		g.emitDecl(d, nil)
	}

	if g.hasRoutes || len(g.features.serverLeaves) > 0 {
		g.emitServerRuntime()
	}
	if g.hasClient {
		g.emitClientBootstrap()
	}
}

func (g *CodeGenerator) serverBuf(name string) *outBuf {
	b, ok := g.servers[name]
	if !ok {
		b = newOutBuf()
		b.WriteString("// generated server\nimport { serve } from \"bun\";\n\n")
		g.servers[name] = b
	}
	return b
}

func (g *CodeGenerator) finish() *GeneratedOutput {
	out := &GeneratedOutput{
		Shared:         g.shared.String(),
		Client:         g.client.String(),
		Test:           g.test.String(),
		SourceMappings: g.mappings,
		IsModule:       true,
		MultiBlock:     len(g.servers) > 1 || (len(g.servers) == 1 && g.hasClient),
	}
	if len(g.servers) > 1 {
		out.Servers = map[string]string{}
		for name, b := range g.servers {
			out.Servers[name] = b.String()
		}
	} else {
		for _, b := range g.servers {
			out.Server = b.String()
		}
	}
	if g.hasRoutes {
		out.OpenApiSpec = g.buildOpenAPISpec()
	}
	return out
}

func (g *CodeGenerator) mark(loc Location, buf *outBuf) {
	if !g.opts.EmitSourceMaps {
		return
	}
	g.mappings = append(g.mappings, SourceMapping{SrcLine: loc.Line, SrcCol: loc.Column, OutLine: buf.line, OutCol: buf.col})
}

// emitDecl dispatches a top-level or block-level declaration into the
// correct target buffer(s) (§4.4 "Multi-target split").
func (g *CodeGenerator) emitDecl(d Decl, serverName *string) {
	switch n := d.(type) {
	case *ImportDecl:
		// import resolution is the workspace driver's job; the generator
		// only needs to know imported names exist, which the analyzer has
		// already validated.
	case *TypeDecl:
		g.emitTypeDecl(n, g.shared)
	case *TypeAliasDecl:
		// a pure alias carries no runtime representation.
	case *InterfaceDecl:
		// structural-only, no runtime artifact.
	case *TraitDecl:
		g.emitTraitDecl(n)
	case *ImplDecl:
		g.emitImplDecl(n)
	case *FunctionDecl:
		g.mark(n.Location(), g.shared)
		g.emitFunctionDecl(n, g.shared)
		if n.IsPublic {
			g.publicFuncs = append(g.publicFuncs, n.Name)
		}
	case *VarDeclStmt:
		g.mark(n.Location(), g.shared)
		g.shared.WriteString(g.lowerVarDecl(n))
		g.shared.WriteString("\n")
	case *RouteDecl:
		g.hasRoutes = true
		g.emitRoute(n, serverName)
	case *Block:
		g.emitBlock(n)
	case *ServerLeaf:
		name := ""
		if serverName != nil {
			name = *serverName
		}
		g.emitServerLeaf(n, name)
	case *SecurityLeaf:
		// security leaves are consumed in aggregate by discoverServerFeatures
		// and emitted as part of the server runtime, not individually.
	case *ClientLeaf:
		g.hasClient = true
		g.emitClientLeaf(n)
	case *TestLeaf:
		g.hasTests = true
		g.emitTestLeaf(n)
	}
}

func (g *CodeGenerator) emitBlock(b *Block) {
	switch b.Kind {
	case BlockShared:
		for _, d := range b.Decls {
			g.emitDecl(d, nil)
		}
	case BlockServer:
		var name *string
		if b.Name != "" {
			name = &b.Name
		}
		for _, d := range b.Decls {
			g.emitDecl(d, name)
		}
	case BlockClient:
		g.hasClient = true
		for _, d := range b.Decls {
			g.emitDecl(d, nil)
		}
	case BlockSecurity:
		for _, d := range b.Decls {
			g.emitDecl(d, nil)
		}
	case BlockTest:
		g.hasTests = true
		for _, d := range b.Decls {
			g.emitDecl(d, nil)
		}
	}
}

// --- shared type/derive emission ---

func (g *CodeGenerator) emitTypeDecl(n *TypeDecl, buf *outBuf) {
	if len(n.Variants) > 0 {
		buf.Writef("const %s = Object.freeze({\n", n.Name)
		for _, v := range n.Variants {
			names := fieldNames(v.Fields)
			buf.Writef("  %s: (%s) => ({ __tag: %q, %s }),\n", v.Name, strings.Join(names, ", "), v.Name, strings.Join(names, ", "))
		}
		buf.WriteString("});\n")
	} else {
		buf.Writef("function %s(%s) {\n", n.Name, fieldParamList(n.Fields))
		buf.Writef("  return { __type: %q, %s };\n", n.Name, strings.Join(fieldNames(n.Fields), ", "))
		buf.WriteString("}\n")
	}
	for _, trait := range n.Derive {
		g.emitDerive(n, trait, buf)
	}
}

func fieldNames(fields []TypeField) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.Name
	}
	return out
}

func fieldParamList(fields []TypeField) string {
	return strings.Join(fieldNames(fields), ", ")
}

// emitDerive synthesizes Eq/Show/JSON per §4.4. Any other derived name,
// including a user trait with default method bodies, emits nothing.
func (g *CodeGenerator) emitDerive(n *TypeDecl, trait string, buf *outBuf) {
	switch trait {
	case "Eq":
		buf.Writef("%s.__eq = (a, b) => %s;\n", n.Name, eqExpr(n.Fields))
	case "Show":
		buf.Writef("%s.__show = (v) => `%s(%s)`;\n", n.Name, n.Name, showInterp(n.Fields))
	case "JSON":
		buf.Writef("%s.toJSON = (v) => ({ %s });\n", n.Name, strings.Join(fieldNames(n.Fields), ", "))
		buf.Writef("%s.fromJSON = (data) => %s(%s);\n", n.Name, n.Name, jsonFieldArgs(n.Fields))
	}
}

func eqExpr(fields []TypeField) string {
	if len(fields) == 0 {
		return "true"
	}
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = fmt.Sprintf("a.%s === b.%s", f.Name, f.Name)
	}
	return strings.Join(parts, " && ")
}

func showInterp(fields []TypeField) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = fmt.Sprintf("%s: ${v.%s}", f.Name, f.Name)
	}
	return strings.Join(parts, ", ")
}

func jsonFieldArgs(fields []TypeField) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = fmt.Sprintf("data.%s", f.Name)
	}
	return strings.Join(parts, ", ")
}

func (g *CodeGenerator) emitTraitDecl(n *TraitDecl) {
	g.shared.Writef("// trait %s\n", n.Name)
}

func (g *CodeGenerator) emitImplDecl(n *ImplDecl) {
	g.shared.Writef("Object.assign(%s.prototype ?? (%s.prototype = {}), {\n", n.Type, n.Type)
	for _, m := range n.Methods {
		g.shared.Writef("  %s(%s) %s,\n", m.Name, paramList(m.Params), g.lowerBlockExpr(m.Body))
	}
	g.shared.WriteString("});\n")
}

func (g *CodeGenerator) emitFunctionDecl(f *FunctionDecl, buf *outBuf) {
	async := ""
	if f.IsAsync {
		async = "async "
	}
	star := ""
	if f.Generator {
		star = "*"
	}
	buf.Writef("%sfunction%s %s(%s) %s\n", async, star, f.Name, paramList(f.Params), g.lowerBlockExpr(f.Body))
}

func paramList(params []Param) string {
	parts := make([]string, len(params))
	for i, p := range params {
		name := p.Name
		if p.Variadic {
			name = "..." + name
		}
		if p.Default != nil {
			name += " = " + lowerExprStandalone(p.Default)
		}
		parts[i] = name
	}
	return strings.Join(parts, ", ")
}

// buildOpenAPISpec emits the minimal 3.0.3 document named in §4.4's
// feature table; paths are sorted for reproducibility.
func (g *CodeGenerator) buildOpenAPISpec() string {
	byPath := map[string][]string{}
	for key := range g.features.routes {
		method, path, ok := strings.Cut(key, " ")
		if !ok {
			continue
		}
		byPath[path] = append(byPath[path], strings.ToLower(method))
	}
	paths := make([]string, 0, len(byPath))
	for p := range byPath {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var b strings.Builder
	b.WriteString(`{"openapi":"3.0.3","info":{"title":"tova","version":"1.0.0"},"paths":{`)
	for i, p := range paths {
		if i > 0 {
			b.WriteString(",")
		}
		methods := byPath[p]
		sort.Strings(methods)
		fmt.Fprintf(&b, "%q:{", p)
		for j, m := range methods {
			if j > 0 {
				b.WriteString(",")
			}
			fmt.Fprintf(&b, "%q:{\"responses\":{\"200\":{\"description\":\"OK\"}}}", m)
		}
		b.WriteString("}")
	}
	b.WriteString("}}")
	return b.String()
}
