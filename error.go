package tovac

import (
	"fmt"

	"github.com/juju/errors"
)

// Error is used for any lexing/parsing failure that carries a precise
// source location. Mirrors the teacher's own Error type (same field
// shape: filename/line/column/sender/message), extended with a Hint
// matching the Diagnostic hints the analyzer produces later in the
// pipeline so callers get a consistent failure shape end to end.
type Error struct {
	Filename string
	Line     int
	Column   int
	Token    *Token
	Sender   string
	ErrorMsg string
	Hint     string
}

func (e *Error) Error() string {
	s := "[Error"
	if e.Sender != "" {
		s += " (where: " + e.Sender + ")"
	}
	if e.Filename != "" {
		s += " in " + e.Filename
	}
	if e.Line > 0 {
		s += fmt.Sprintf(" | Line %d Col %d", e.Line, e.Column)
		if e.Token != nil {
			s += fmt.Sprintf(" near '%s'", e.Token.Val)
		}
	}
	s += "] " + e.ErrorMsg
	if e.Hint != "" {
		s += " (hint: " + e.Hint + ")"
	}
	return s
}

// ParseErrorEntry is one recorded, recovered-from syntax error.
type ParseErrorEntry struct {
	Message string
	Loc     Location
}

// ParseError is returned by Parse whenever at least one syntax error was
// recorded (parsing stops early only at the 50-error cap). It carries every
// recovered error plus the partial AST built up to that point, so a caller
// driving many files can keep going on the others (§4.2, §7).
type ParseError struct {
	Errors      []ParseErrorEntry
	PartialAST  *Program
	causalChain error
}

func (e *ParseError) Error() string {
	if len(e.Errors) == 0 {
		return "parse failed with no recorded errors"
	}
	first := e.Errors[0]
	msg := fmt.Sprintf("%s: %s (+%d more)", first.Loc, first.Message, len(e.Errors)-1)
	if e.causalChain != nil {
		return errors.Annotate(e.causalChain, msg).Error()
	}
	return msg
}

// Unwrap lets errors.Is/As see through to the annotated causal chain, when
// present (e.g. a driver-level failure feeding into the parse attempt).
func (e *ParseError) Unwrap() error { return e.causalChain }

func newParseError(entries []ParseErrorEntry, partial *Program) *ParseError {
	return &ParseError{Errors: entries, PartialAST: partial}
}
