package tovac

// Pattern is the sum type of match/destructuring patterns, kept distinct
// from Expr per §9: a pattern can contain bindings and wildcards that have
// no meaning as a value-producing expression.
type Pattern interface {
	patternNode()
	Location() Location
}

type basePattern struct{ Loc Location }

func (basePattern) patternNode()         {}
func (b basePattern) Location() Location { return b.Loc }

// LiteralPattern matches a literal number/string/bool/nil value.
type LiteralPattern struct {
	basePattern
	Value Expr
}

// WildcardPattern is `_`, matching anything without binding.
type WildcardPattern struct{ basePattern }

// BindingPattern binds the matched value to Name (also used as the sole
// binding for a bare identifier pattern such as `n` in `n if n > 0 => n`).
type BindingPattern struct {
	basePattern
	Name string
}

// VariantPattern matches a variant constructor, optionally destructuring
// its fields via nested patterns.
type VariantPattern struct {
	basePattern
	Name   string
	Fields []Pattern
	// FieldNames is set for named-field destructuring (`Point{x, y}`);
	// when empty, Fields are matched positionally.
	FieldNames []string
}

// StringConcatPattern matches `"prefix" ++ rest`, binding `rest` to
// whatever follows the literal prefix.
type StringConcatPattern struct {
	basePattern
	Prefix string
	Rest   string // binding name, "" if rest is also `_`
}

type ArrayPattern struct {
	basePattern
	Elements []Pattern
	// Rest, if non-empty, is the binding name for a trailing `...rest`.
	Rest string
}

type ObjectPatternField struct {
	Key     string
	Value   Pattern // nil when Key is bound directly under its own name
	Default Expr    // optional default
}

type ObjectPattern struct {
	basePattern
	Fields []ObjectPatternField
}

// RangePattern matches a value against [Low, High) or [Low, High].
type RangePattern struct {
	basePattern
	Low, High Expr
	Inclusive bool
}
