// Package tovac compiles Tova/Lux source into JavaScript.
//
// The pipeline is lex -> parse -> analyze -> generate:
//
//   - Lexer turns source text into a Token stream (lexer.go).
//   - Parser builds a Program AST, recovering from syntax errors up to
//     maxParseErrors before giving up (parser.go and friends).
//   - Analyzer resolves names, checks mutability/control-flow rules, and
//     runs the security cross-checks over security{} blocks
//     (analyzer*.go), producing Diagnostics.
//   - CodeGenerator lowers a validated Program into shared/server/client/
//     test JavaScript output plus source mappings and an OpenAPI spec
//     (codegen*.go).
//
// A tiny example:
//
//	ws := tovac.NewWorkspace(tovac.DefaultOptions())
//	res, err := ws.Compile("main.tova", source)
//	if err != nil {
//	    panic(err)
//	}
//	fmt.Println(len(res.Diagnostics), res.Output.Server)
package tovac
