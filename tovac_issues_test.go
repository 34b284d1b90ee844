package tovac

import (
	"strings"
	"testing"

	. "gopkg.in/check.v1"
)

// Hook up gocheck into the "go test" runner.

func TestIssues(t *testing.T) { TestingT(t) }

type IssueTestSuite struct{}

var _ = Suite(&IssueTestSuite{})

// A bare `name = expr` assignment to a name not yet in scope declares it;
// it must not be reported as an undefined identifier.
func (s *IssueTestSuite) TestBareAssignmentIsNotUndefined(c *C) {
	diags := analyzeSource(c, "fn f() { x = 1\nprint(x) }")
	for _, d := range diags {
		c.Check(d.Code, Not(Equals), "E200")
	}
}

// A wildcard or param route must actually dispatch at runtime, not just
// register — exact-string matching silently dropped every such route.
func (s *IssueTestSuite) TestWildcardRouteCompilesToPattern(c *C) {
	src := generateSource(c, `route GET "/files/*" => { respond(200, {}) }`)
	c.Check(strings.Contains(src, "__tovaCompileRoutePattern"), Equals, true)
}

func analyzeSource(c *C, source string) []Diagnostic {
	toks, err := NewLexer(source, "issue.tova").Tokenize()
	c.Assert(err, IsNil)
	prog, err := NewParser(toks, "issue.tova").Parse()
	c.Assert(err, IsNil)
	diags, _ := NewAnalyzer("issue.tova", source, false, true).Analyze(prog)
	return diags
}

func generateSource(c *C, source string) string {
	toks, err := NewLexer(source, "issue.tova").Tokenize()
	c.Assert(err, IsNil)
	prog, err := NewParser(toks, "issue.tova").Parse()
	c.Assert(err, IsNil)
	out := Generate(prog, CompilerOptions{})
	if out.Server != "" {
		return out.Server
	}
	var all []string
	for _, s := range out.Servers {
		all = append(all, s)
	}
	return strings.Join(all, "\n")
}
