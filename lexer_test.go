package tovac

import "testing"

func tokenKinds(t *testing.T, source string) []TokenKind {
	t.Helper()
	toks, err := NewLexer(source, "test.tova").Tokenize()
	if err != nil {
		t.Fatalf("Tokenize(%q) failed: %v", source, err)
	}
	kinds := make([]TokenKind, len(toks))
	for i, tok := range toks {
		kinds[i] = tok.Kind
	}
	return kinds
}

func TestLexerPunctuationLongestMatch(t *testing.T) {
	cases := []struct {
		source string
		want   string
	}{
		{"a |> b", "|>"},
		{"a ?? b", "??"},
		{"a?.b", "?."},
		{"a..b", ".."},
		{"a..=b", "..="},
		{"a <=> b", "<=>"},
	}
	for _, c := range cases {
		toks, err := NewLexer(c.source, "t").Tokenize()
		if err != nil {
			t.Fatalf("%q: %v", c.source, err)
		}
		found := false
		for _, tok := range toks {
			if tok.Kind == KindPunct && tok.Val == c.want {
				found = true
			}
		}
		if !found {
			t.Errorf("%q: expected punctuation %q among tokens, got %v", c.source, c.want, toks)
		}
	}
}

func TestLexerKeywordVsIdentifier(t *testing.T) {
	toks, err := NewLexer("fn route", "t").Tokenize()
	if err != nil {
		t.Fatal(err)
	}
	if toks[0].Kind != KindKeyword || toks[0].Val != "fn" {
		t.Errorf("expected 'fn' to lex as KindKeyword, got %v", toks[0])
	}
	// "route" is in Keywords but degradable outside its block context; the
	// lexer itself is context-free and always reports KindKeyword for any
	// reserved word, leaving degradation to the parser.
	if toks[1].Kind != KindKeyword || toks[1].Val != "route" {
		t.Errorf("expected 'route' to lex as KindKeyword, got %v", toks[1])
	}
}

func TestLexerTemplateString(t *testing.T) {
	toks, err := NewLexer(`"hello {name}!"`, "t").Tokenize()
	if err != nil {
		t.Fatal(err)
	}
	if toks[0].Kind != KindTemplateStr {
		t.Fatalf("expected KindTemplateStr, got %v", toks[0].Kind)
	}
	parts := toks[0].TemplateParts
	if len(parts) != 3 {
		t.Fatalf("expected 3 template parts (lit, expr, lit), got %d: %+v", len(parts), parts)
	}
	if parts[0].IsExpr || parts[0].Text != "hello " {
		t.Errorf("part 0 = %+v, want literal \"hello \"", parts[0])
	}
	if !parts[1].IsExpr || parts[1].Text != "name" {
		t.Errorf("part 1 = %+v, want expr \"name\"", parts[1])
	}
	if parts[2].IsExpr || parts[2].Text != "!" {
		t.Errorf("part 2 = %+v, want literal \"!\"", parts[2])
	}
}

func TestLexerUnterminatedString(t *testing.T) {
	_, err := NewLexer(`"unterminated`, "t").Tokenize()
	if err == nil {
		t.Fatal("expected an error for an unterminated string literal")
	}
	if _, ok := err.(*UnterminatedStringError); !ok {
		t.Errorf("expected *UnterminatedStringError, got %T: %v", err, err)
	}
}

func TestLexerUnterminatedBlockComment(t *testing.T) {
	_, err := NewLexer("/* never closed", "t").Tokenize()
	if err == nil {
		t.Fatal("expected an error for an unterminated block comment")
	}
	if _, ok := err.(*UnterminatedCommentError); !ok {
		t.Errorf("expected *UnterminatedCommentError, got %T: %v", err, err)
	}
}

func TestLexerDocComment(t *testing.T) {
	toks, err := NewLexer("/// does a thing\nfn f() {}", "t").Tokenize()
	if err != nil {
		t.Fatal(err)
	}
	if toks[0].Docstring == "" {
		t.Errorf("expected the token following a /// comment to carry a Docstring, got %+v", toks[0])
	}
}

func TestLexerLineColumnTracking(t *testing.T) {
	toks, err := NewLexer("fn\nf() {}", "t").Tokenize()
	if err != nil {
		t.Fatal(err)
	}
	if toks[0].Loc.Line != 1 {
		t.Errorf("'fn' expected on line 1, got %d", toks[0].Loc.Line)
	}
	var fTok *Token
	for _, tok := range toks {
		if tok.Kind == KindIdent && tok.Val == "f" {
			fTok = tok
		}
	}
	if fTok == nil {
		t.Fatal("expected to find identifier 'f'")
	}
	if fTok.Loc.Line != 2 {
		t.Errorf("'f' expected on line 2, got %d", fTok.Loc.Line)
	}
}

func TestLexerEOFSentinel(t *testing.T) {
	toks, err := NewLexer("", "t").Tokenize()
	if err != nil {
		t.Fatal(err)
	}
	if len(toks) == 0 || toks[len(toks)-1].Kind != KindEOF {
		t.Fatalf("expected final token to be KindEOF, got %v", toks)
	}
}

func TestLexerNumbers(t *testing.T) {
	kinds := tokenKinds(t, "1 2.5 0")
	want := []TokenKind{KindInt, KindFloat, KindInt, KindEOF}
	if len(kinds) != len(want) {
		t.Fatalf("got %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("token %d: got %v, want %v", i, kinds[i], want[i])
		}
	}
}
