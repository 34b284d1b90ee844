package tovac

import (
	"github.com/juju/errors"
	"gopkg.in/yaml.v2"
)

// CompilerOptions configures every stage of the pipeline (§4.3, §7).
// Grounded on the teacher's pongo2_options.go options-struct shape, now
// loadable from a project-level YAML file via gopkg.in/yaml.v2 — a
// direct dependency of the teacher's own go.mod that the teacher's own
// code never imports.
type CompilerOptions struct {
	// Strict elevates a designated subset of warnings to errors and
	// enables stricter type assignability (§4.3).
	Strict bool `yaml:"strict"`
	// Tolerant collects every diagnostic instead of stopping at the first
	// error, for IDE-style incremental use (§4.3, §7).
	Tolerant bool `yaml:"tolerant"`
	// MaxParseErrors is loaded from the YAML file and defaults to 50, but
	// the Parser does not read it: parsing always stops at the fixed
	// maxParseErrors cap (50).
	MaxParseErrors int `yaml:"max_parse_errors"`
	// EmitSourceMaps controls whether the code generator records
	// (sourceLine, sourceCol, outputLine, outputCol) mappings (§4.4).
	EmitSourceMaps bool `yaml:"emit_source_maps"`
	// MaxBodySize, in bytes, is the value a `max_body` server leaf assigns to
	// __maxBodySize when it gives no argument. The generated dispatcher
	// declares __maxBodySize (1 MiB) but does not check request bodies
	// against it.
	MaxBodySize int `yaml:"max_body_size"`
	// EmitOpenAPI controls whether any routes trigger the /openapi.json +
	// /docs generation (§4.4).
	EmitOpenAPI bool `yaml:"emit_openapi"`
}

// DefaultOptions returns the options a bare `tovac` invocation uses.
func DefaultOptions() CompilerOptions {
	return CompilerOptions{
		Strict:          false,
		Tolerant:        true,
		MaxParseErrors:  50,
		EmitSourceMaps:  true,
		MaxBodySize:     1 << 20,
		EmitOpenAPI:     true,
	}
}

// LoadOptionsYAML parses a tovac.yaml-style configuration, starting from
// DefaultOptions so a partial file only overrides what it sets.
func LoadOptionsYAML(data []byte) (CompilerOptions, error) {
	opts := DefaultOptions()
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return opts, errors.Annotate(err, "parsing compiler options")
	}
	return opts, nil
}
