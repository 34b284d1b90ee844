package tovac

// BindingKind classifies how a name entered a Scope frame.
type BindingKind int

const (
	BindImmutable BindingKind = iota
	BindMutable
	BindParam
	BindFunction
	BindType
	BindImport
	BindVariant
)

// Binding is one name's entry in a Scope frame.
type Binding struct {
	Name         string
	Kind         BindingKind
	DeclaredType string
	DeclaredAt   Location
	Used         bool
	FirstUseAt   Location
}

// Scope is one frame in the lexical scope tree. Frames are created on
// block entry and discarded on exit (the analyzer never mutates a frame
// after its block has been left); lookups walk the Parent chain. This
// mirrors the teacher's ExecutionContext push/pop-child pattern
// (context.go), repurposed here for compile-time name resolution instead
// of runtime variable lookup.
type Scope struct {
	Parent   *Scope
	bindings map[string]*Binding
}

// NewScope creates a root scope (Parent == nil).
func NewScope() *Scope {
	return &Scope{bindings: map[string]*Binding{}}
}

// Child creates a new frame nested under s.
func (s *Scope) Child() *Scope {
	return &Scope{Parent: s, bindings: map[string]*Binding{}}
}

// Define adds a name to this frame. Returns false if the name already
// exists in *this* frame (same-frame duplicate, E201); shadowing a name
// bound in an ancestor frame is allowed and returns true.
func (s *Scope) Define(b *Binding) bool {
	if _, exists := s.bindings[b.Name]; exists {
		return false
	}
	s.bindings[b.Name] = b
	return true
}

// Lookup walks from s up through Parent frames, returning the nearest
// binding for name and the frame distance (0 = this frame) it was found
// at, or (nil, -1, false).
func (s *Scope) Lookup(name string) (*Binding, int, bool) {
	depth := 0
	for f := s; f != nil; f = f.Parent {
		if b, ok := f.bindings[name]; ok {
			return b, depth, true
		}
		depth++
	}
	return nil, -1, false
}

// LookupLocal only checks this frame, used for same-frame duplicate
// detection (E201) and for usage-tracking at scope exit.
func (s *Scope) LookupLocal(name string) (*Binding, bool) {
	b, ok := s.bindings[name]
	return b, ok
}

// Local returns every binding directly owned by this frame, for
// end-of-scope unused-variable sweeps (W001/W002/W003).
func (s *Scope) Local() map[string]*Binding {
	return s.bindings
}

// MarkUsed records that name was read, walking up to the frame that
// actually owns it. No-op if the name isn't bound anywhere.
func (s *Scope) MarkUsed(name string, at Location) {
	if b, _, ok := s.Lookup(name); ok {
		if !b.Used {
			b.Used = true
			b.FirstUseAt = at
		}
	}
}
