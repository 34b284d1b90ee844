package tovac

import "fmt"

// maxParseErrors is the cap on recorded syntax errors before the parser
// gives up entirely (§4.2).
const maxParseErrors = 50

// Parser is a top-down recursive-descent Pratt parser over a Lexer's
// token stream. Its navigation primitives (Current/Match/Peek/Consume)
// mirror the teacher's own Parser type (parser.go) token-cursor design.
type Parser struct {
	file   string
	tokens []*Token
	idx    int

	errors []ParseErrorEntry

	// blockDepth is not updated or read by any parsing method; synchronize
	// tracks `{`/`}` nesting with its own local counter.
	blockDepth int
}

// NewParser constructs a Parser over tokens produced for file.
func NewParser(tokens []*Token, file string) *Parser {
	return &Parser{file: file, tokens: tokens}
}

// Parse consumes the full token stream and returns a Program. On any
// recovered syntax error(s), it still returns (nil, *ParseError) carrying
// every recorded error and the partial AST of everything successfully
// parsed (§4.2, §8 invariant on partial-AST declaration counts).
func (p *Parser) Parse() (*Program, error) {
	prog := &Program{File: p.file}

	for !p.atEOF() {
		if len(p.errors) >= maxParseErrors {
			break
		}
		decl, ok := p.parseTopLevel()
		if ok {
			prog.Decls = append(prog.Decls, decl)
		}
	}

	if len(p.errors) > 0 {
		return nil, newParseError(p.errors, prog)
	}
	return prog, nil
}

func (p *Parser) atEOF() bool {
	return p.Current() == nil || p.Current().Kind == KindEOF
}

func (p *Parser) Current() *Token {
	return p.Get(p.idx)
}

func (p *Parser) Get(i int) *Token {
	if i >= 0 && i < len(p.tokens) {
		return p.tokens[i]
	}
	return nil
}

func (p *Parser) PeekN(shift int) *Token {
	return p.Get(p.idx + shift)
}

func (p *Parser) Consume() *Token {
	t := p.Current()
	if t != nil && t.Kind != KindEOF {
		p.idx++
	}
	return t
}

func (p *Parser) ConsumeN(n int) {
	for i := 0; i < n; i++ {
		p.Consume()
	}
}

// Is reports whether the current token matches kind (and, if val != "",
// also matches val exactly).
func (p *Parser) Is(kind TokenKind, val string) bool {
	t := p.Current()
	if t == nil || t.Kind != kind {
		return false
	}
	return val == "" || t.Val == val
}

func (p *Parser) IsN(shift int, kind TokenKind, val string) bool {
	t := p.PeekN(shift)
	if t == nil || t.Kind != kind {
		return false
	}
	return val == "" || t.Val == val
}

// Match consumes and returns the current token if it matches kind/val,
// else returns nil without consuming.
func (p *Parser) Match(kind TokenKind, val string) *Token {
	if p.Is(kind, val) {
		return p.Consume()
	}
	return nil
}

// MatchOne tries each val in turn against kind, consuming the first hit.
func (p *Parser) MatchOne(kind TokenKind, vals ...string) *Token {
	for _, v := range vals {
		if p.Is(kind, v) {
			return p.Consume()
		}
	}
	return nil
}

func (p *Parser) MatchKind(kind TokenKind) *Token {
	if p.Current() != nil && p.Current().Kind == kind {
		return p.Consume()
	}
	return nil
}

func (p *Parser) locHere() Location {
	if t := p.Current(); t != nil {
		return t.Loc
	}
	if len(p.tokens) > 0 {
		return p.tokens[len(p.tokens)-1].Loc
	}
	return Location{File: p.file, Line: 1, Column: 1}
}

// errorf records a recovered syntax error at the current token's location
// and returns a sentinel error for callers that want to unwind a single
// production without immediately synchronizing (the caller decides when
// to call synchronize()).
func (p *Parser) errorf(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	p.errors = append(p.errors, ParseErrorEntry{Message: msg, Loc: p.locHere()})
	return fmt.Errorf("%s", msg)
}

// expect consumes a token of kind/val or records a synchronizing error.
func (p *Parser) expect(kind TokenKind, val, what string) (*Token, bool) {
	if t := p.Match(kind, val); t != nil {
		return t, true
	}
	p.errorf("expected %s, got %s", what, p.describeCurrent())
	return nil, false
}

func (p *Parser) describeCurrent() string {
	t := p.Current()
	if t == nil || t.Kind == KindEOF {
		return "end of file"
	}
	return fmt.Sprintf("%q", t.Val)
}

// topLevelStarters are the tokens the synchronizer treats as the start of
// a new top-level declaration (§4.2 error recovery).
var topLevelStarters = map[string]bool{
	"fn": true, "var": true, "async": true, "type": true, "interface": true,
	"trait": true, "impl": true, "import": true, "route": true,
	"server": true, "client": true, "shared": true, "security": true, "test": true,
}

// synchronize discards tokens until the next declaration-start keyword, a
// `}` that closes back to the original nesting depth, or EOF, capping the
// total number of declarations skipped at one per recorded error (§8
// invariant: partial declarations ≥ total − 2×errorCount).
func (p *Parser) synchronize() {
	depth := 0
	for !p.atEOF() {
		t := p.Current()
		if t.Kind == KindPunct {
			switch t.Val {
			case "{":
				depth++
			case "}":
				if depth == 0 {
					return
				}
				depth--
			}
		}
		if depth == 0 && (t.Kind == KindKeyword && topLevelStarters[t.Val]) {
			return
		}
		p.Consume()
	}
}

// parseTopLevel parses one Program-level declaration, recovering on error.
func (p *Parser) parseTopLevel() (Decl, bool) {
	startIdx := p.idx
	d, err := p.parseDecl()
	if err != nil {
		if p.idx == startIdx {
			// Guarantee forward progress even if a production reported an
			// error without consuming anything.
			p.Consume()
		}
		p.synchronize()
		return nil, false
	}
	return d, true
}
