package tovac

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// CompileResult is one file's outcome from a Workspace compilation.
type CompileResult struct {
	File        string
	Program     *Program
	ParseErrors []ParseErrorEntry
	Diagnostics []Diagnostic
	Output      *GeneratedOutput
}

// CircularImportWarning is emitted when the driver's in-progress set
// detects a file importing one of its own ancestors (§5, §8 scenario 3).
type CircularImportWarning struct {
	From, To string
}

func (w CircularImportWarning) String() string {
	return fmt.Sprintf("circular import: %s -> %s", w.From, w.To)
}

// Workspace is a minimal in-memory multi-file compile driver. It owns no
// file-system access (module loading stays an external collaborator per
// spec.md §1) — callers register source text directly and Compile walks
// only the import graph those sources actually declare. Grounded on the
// teacher's template_sets.go TemplateSet load/cache pattern: its
// in-progress-set cycle detector maps directly onto import-cycle
// detection, deliberately without reproducing its file-backed loader.
type Workspace struct {
	Options CompilerOptions
	log     *zap.Logger

	sources map[string]string
	results map[string]*CompileResult

	inProgress map[string]bool
	warnings   []CircularImportWarning
}

// NewWorkspace creates a Workspace with the given options and a no-op
// zap logger unless SetLogger is called; compile-session stage logging
// uses a fresh correlation id per Compile call.
func NewWorkspace(opts CompilerOptions) *Workspace {
	return &Workspace{
		Options:    opts,
		log:        zap.NewNop(),
		sources:    map[string]string{},
		results:    map[string]*CompileResult{},
		inProgress: map[string]bool{},
	}
}

// SetLogger replaces the Workspace's zap.Logger, e.g. with a CLI-configured
// production logger.
func (w *Workspace) SetLogger(l *zap.Logger) { w.log = l }

// AddSource registers a file's text for later compilation or import
// resolution; it does not compile it.
func (w *Workspace) AddSource(file, source string) {
	w.sources[file] = source
}

// Warnings returns every CircularImportWarning collected across all
// Compile calls so far.
func (w *Workspace) Warnings() []CircularImportWarning { return w.warnings }

// Compile lexes, parses, and analyzes file (which must have been added
// via AddSource, or is passed directly as source), following its import
// graph. A file already in the in-progress set when reached again via one
// of its own imports is a circular import (§5): the cycle-edge import is
// treated as empty for the dependent and a CircularImportWarning is
// recorded rather than looping forever.
func (w *Workspace) Compile(file, source string) (*CompileResult, error) {
	sessionID := uuid.New().String()
	log := w.log.With(zap.String("session", sessionID), zap.String("file", file))
	log.Info("compile start")

	w.sources[file] = source
	res, err := w.compileFile(file, log)
	if err != nil {
		log.Error("compile failed", zap.Error(err))
		return res, err
	}
	log.Info("compile done", zap.Int("diagnostics", len(res.Diagnostics)))
	return res, nil
}

func (w *Workspace) compileFile(file string, log *zap.Logger) (*CompileResult, error) {
	if cached, ok := w.results[file]; ok {
		return cached, nil
	}
	if w.inProgress[file] {
		// The caller that detects the cycle-edge records the warning;
		// returning an empty result here treats the cycle-edge import as
		// empty for the dependent per §5.
		return &CompileResult{File: file}, nil
	}
	source, ok := w.sources[file]
	if !ok {
		return nil, errors.Errorf("workspace: no source registered for %q", file)
	}
	w.inProgress[file] = true
	defer delete(w.inProgress, file)

	tokens, err := NewLexer(source, file).Tokenize()
	if err != nil {
		return nil, errors.Annotatef(err, "lexing %s", file)
	}
	log.Debug("lexed", zap.Int("tokens", len(tokens)))

	prog, perr := NewParser(tokens, file).Parse()
	res := &CompileResult{File: file}
	if pe, ok := perr.(*ParseError); ok {
		res.ParseErrors = pe.Errors
		res.Program = pe.PartialAST
	} else if perr != nil {
		return nil, errors.Annotatef(perr, "parsing %s", file)
	} else {
		res.Program = prog
	}

	for _, d := range res.Program.Decls {
		imp, ok := d.(*ImportDecl)
		if !ok {
			continue
		}
		target := resolveImportFile(imp.Path)
		if w.inProgress[target] {
			w.warnings = append(w.warnings, CircularImportWarning{From: file, To: target})
			log.Warn("circular import detected", zap.String("to", target))
			continue
		}
		if _, known := w.sources[target]; known {
			if _, err := w.compileFile(target, log); err != nil {
				return nil, err
			}
		}
	}

	analyzer := NewAnalyzer(file, source, w.Options.Strict, w.Options.Tolerant)
	diags, aerr := analyzer.Analyze(res.Program)
	suppress := NewSuppressionTable(source)
	res.Diagnostics = suppress.Filter(diags)
	if aerr != nil && !w.Options.Tolerant {
		w.results[file] = res
		return res, aerr
	}

	out := Generate(res.Program, w.Options)
	res.Output = out

	w.results[file] = res
	return res, nil
}

func resolveImportFile(path string) string {
	p := path
	if len(p) >= 2 && p[0] == '"' {
		p = p[1 : len(p)-1]
	}
	if len(p) < 5 || p[len(p)-5:] != ".tova" {
		p += ".tova"
	}
	return p
}
