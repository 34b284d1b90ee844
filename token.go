package tovac

import "fmt"

// TokenKind classifies a single lexical unit produced by the Lexer.
// The language's reserved/contextual keywords (see Keywords) are folded into a
// handful of TokenKind values (KindKeyword carries the keyword text in
// Token.Val) rather than one TokenKind per keyword, so adding a keyword
// never touches this enum.
type TokenKind int

const (
	KindEOF TokenKind = iota
	KindError

	KindIdent
	KindKeyword

	KindInt
	KindFloat
	KindString      // fully-literal string, no interpolation
	KindTemplateStr // string containing {expr} splices; Val holds raw source between quotes
	KindRawString
	KindRegex
	KindBool
	KindNil

	KindPunct // operators & punctuation; Val holds the exact lexeme
)

func (k TokenKind) String() string {
	switch k {
	case KindEOF:
		return "EOF"
	case KindError:
		return "Error"
	case KindIdent:
		return "Ident"
	case KindKeyword:
		return "Keyword"
	case KindInt:
		return "Int"
	case KindFloat:
		return "Float"
	case KindString:
		return "String"
	case KindTemplateStr:
		return "TemplateStr"
	case KindRawString:
		return "RawString"
	case KindRegex:
		return "Regex"
	case KindBool:
		return "Bool"
	case KindNil:
		return "Nil"
	case KindPunct:
		return "Punct"
	default:
		return "Unknown"
	}
}

// Keywords is the full reserved-word set. A word in this set always lexes
// as KindKeyword; the parser accepts the words in degradable as plain
// identifiers in expression position (see IsDegradable).
var Keywords = map[string]struct{}{
	"fn": {}, "var": {}, "let": {}, "if": {}, "elif": {}, "else": {},
	"match": {}, "guard": {}, "async": {}, "await": {}, "yield": {},
	"pub": {}, "interface": {}, "derive": {}, "trait": {}, "impl": {},
	"type": {}, "import": {}, "server": {}, "client": {}, "shared": {},
	"security": {}, "test": {}, "route": {}, "middleware": {},
	"on_error": {}, "ws": {}, "sse": {}, "health": {}, "cors": {},
	"csp": {}, "csrf": {}, "hsts": {}, "audit": {}, "discover": {},
	"subscribe": {}, "schedule": {}, "background": {}, "upload": {},
	"session": {}, "db": {}, "tls": {}, "compression": {}, "cache": {},
	"model": {}, "env": {}, "max_body": {}, "auth": {}, "rate_limit": {},
	"protect": {}, "sensitive": {}, "trust_proxy": {}, "static": {},
	"routes": {}, "break": {}, "continue": {}, "defer": {}, "finally": {},
	"in": {}, "as": {}, "with": {}, "and": {}, "or": {}, "not": {},
	"true": {}, "false": {}, "nil": {}, "return": {}, "for": {},
	"while": {}, "state": {}, "computed": {}, "component": {}, "store": {},
	"effect": {}, "extends": {},
}

// degradable is the subset of Keywords that are only reserved inside a
// specific block context; outside that context they lex (and parse) as
// plain identifiers. The lexer itself is context-free — this set is
// consulted by the parser when it decides whether an identifier-shaped
// keyword token should be treated as a leaf declaration keyword.
var degradable = map[string]struct{}{
	"server": {}, "client": {}, "shared": {}, "security": {}, "test": {},
	"db": {}, "tls": {}, "model": {}, "env": {}, "max_body": {}, "auth": {},
	"rate_limit": {}, "protect": {}, "sensitive": {}, "trust_proxy": {},
	"static": {}, "routes": {}, "cors": {}, "csp": {}, "csrf": {}, "hsts": {},
	"audit": {}, "discover": {}, "subscribe": {}, "schedule": {},
	"background": {}, "upload": {}, "session": {}, "compression": {},
	"cache": {}, "middleware": {}, "on_error": {}, "ws": {}, "sse": {},
	"health": {}, "route": {}, "state": {}, "computed": {}, "component": {},
	"store": {}, "effect": {},
}

// IsDegradable reports whether kw is only reserved in specific block
// contexts (see degradable).
func IsDegradable(kw string) bool {
	_, ok := degradable[kw]
	return ok
}

// Punctuation, longest-match first so e.g. "??" is preferred over "?".
// Mirrors the teacher lexer's TokenSymbols ordering strategy.
var Punctuation = []string{
	"...", "<=>",
	"|>", "??", "?.", "=>", "==", "!=", "<=", ">=", "&&", "||", "++",
	"+=", "-=", "*=", "/=", "::", "..=", "..", "->",
	"(", ")", "{", "}", "[", "]", ",", ".", ":", ";", "=", "+", "-",
	"*", "/", "%", "^", "<", ">", "!", "?", "|", "_", "@", "&",
}

// Location pinpoints a span in a single source file. Every Token and every
// AST node carries one. Length is in runes of the originating lexeme and
// is optional (0 means "unknown/point location").
type Location struct {
	File   string
	Line   int
	Column int
	Length int
}

func (l Location) String() string {
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// Token is an immutable lexical unit. Kind KindString/KindTemplateStr/
// KindRawString/KindRegex/KindInt/KindFloat/KindIdent carry their decoded
// value in Val; KindPunct and KindKeyword carry the literal lexeme.
type Token struct {
	Kind TokenKind
	Val  string
	Loc  Location

	// TemplateParts holds the decoded string/expression segments of a
	// KindTemplateStr token: alternating literal text and raw expression
	// source (always literal-first, possibly empty first/last literal).
	TemplateParts []TemplatePart

	// Docstring is a /// comment block immediately preceding this token,
	// attached for the parser to carry onto the following declaration.
	Docstring string
}

// TemplatePart is one literal-or-expression segment of an interpolated
// string literal.
type TemplatePart struct {
	IsExpr bool
	Text   string // literal text, or raw expression source when IsExpr
}

func (t *Token) String() string {
	return fmt.Sprintf("<%s %q %s>", t.Kind, t.Val, t.Loc)
}
