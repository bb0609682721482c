package plan

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/roach88/planverify/internal/blob"
)

// rawPlan is the on-disk shape shared by the YAML and CUE encodings.
// Enumerations stay strings here and are parsed in compile so that every
// format reports them the same way.
type rawPlan struct {
	Name  string    `yaml:"name" json:"name"`
	Steps []rawStep `yaml:"steps" json:"steps"`
}

type rawStep struct {
	Name       string  `yaml:"name" json:"name"`
	Iterations *int    `yaml:"iterations,omitempty" json:"iterations,omitempty"`
	Ops        []rawOp `yaml:"ops" json:"ops"`
}

type rawOp struct {
	Type    string    `yaml:"type" json:"type"`
	Inputs  []string  `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	Outputs []string  `yaml:"outputs,omitempty" json:"outputs,omitempty"`
	Backend string    `yaml:"backend,omitempty" json:"backend,omitempty"`
	DType   string    `yaml:"dtype,omitempty" json:"dtype,omitempty"`
	Shape   []int     `yaml:"shape,omitempty" json:"shape,omitempty"`
	Values  []float64 `yaml:"values,omitempty" json:"values,omitempty"`
	Value   *float64  `yaml:"value,omitempty" json:"value,omitempty"`
	Scale   *float64  `yaml:"scale,omitempty" json:"scale,omitempty"`
}

// hclPlan is the HCL encoding: steps and ops are labelled blocks.
type hclPlan struct {
	Name  string    `hcl:"name,optional"`
	Steps []hclStep `hcl:"step,block"`
}

type hclStep struct {
	Name       string  `hcl:"name,label"`
	Iterations *int    `hcl:"iterations,optional"`
	Ops        []hclOp `hcl:"op,block"`
}

type hclOp struct {
	Type    string    `hcl:"type,label"`
	Inputs  []string  `hcl:"inputs,optional"`
	Outputs []string  `hcl:"outputs,optional"`
	Backend string    `hcl:"backend,optional"`
	DType   string    `hcl:"dtype,optional"`
	Shape   []int     `hcl:"shape,optional"`
	Values  []float64 `hcl:"values,optional"`
	Value   *float64  `hcl:"value,optional"`
	Scale   *float64  `hcl:"scale,optional"`
}

// Load reads and parses the plan file at path.
//
// Parameters:
//   - path: plan file; the extension (.yaml, .yml, .cue, .hcl) selects the
//     format
//
// Returns the fully validated plan, or a *LoadError whose Code says which
// stage failed. There are no partial results. Reading the file is the only
// side effect.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		code := ErrCodeReadFailed
		if errors.Is(err, fs.ErrNotExist) {
			code = ErrCodeNotFound
		}
		return nil, &LoadError{Path: path, Code: code, Err: err}
	}

	return Parse(path, data)
}

// Parse decodes plan bytes. path selects the format by extension and is
// used in error messages; it is not read.
func Parse(path string, data []byte) (*Plan, error) {
	var (
		raw *rawPlan
		err error
	)

	// Decode into the shared raw shape
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		raw, err = parseYAML(data)
	case ".cue":
		raw, err = parseCUE(path, data)
	case ".hcl":
		raw, err = parseHCL(path, data)
	default:
		return nil, &LoadError{
			Path: path,
			Code: ErrCodeUnsupportedFormat,
			Err:  fmt.Errorf("unsupported plan extension %q (want .yaml, .yml, .cue or .hcl)", ext),
		}
	}
	if err != nil {
		return nil, &LoadError{Path: path, Code: ErrCodeParseFailed, Err: err}
	}

	// Convert and validate
	p, err := compile(raw)
	if err != nil {
		return nil, &LoadError{Path: path, Code: ErrCodeInvalid, Err: err}
	}

	if p.Name == "" {
		p.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return p, nil
}

// parseYAML decodes with strict field checking so a typo such as "output:"
// for "outputs:" is a parse error rather than a silently empty field.
func parseYAML(data []byte) (*rawPlan, error) {
	// Parse YAML with strict field validation
	var raw rawPlan
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &raw, nil
}

func parseCUE(path string, data []byte) (*rawPlan, error) {
	ctx := cuecontext.New()
	value := ctx.CompileBytes(data, cue.Filename(path))
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile CUE: %w", err)
	}

	// Every field must have a concrete value
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("CUE plan is not concrete: %w", err)
	}

	var raw rawPlan
	if err := value.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode CUE: %w", err)
	}
	return &raw, nil
}

func parseHCL(path string, data []byte) (*rawPlan, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL: %w", diags)
	}

	var parsed hclPlan
	diags = gohcl.DecodeBody(file.Body, nil, &parsed)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %w", diags)
	}

	// Flatten labelled blocks into the shared shape
	raw := &rawPlan{Name: parsed.Name}
	for _, s := range parsed.Steps {
		step := rawStep{Name: s.Name, Iterations: s.Iterations}
		for _, o := range s.Ops {
			step.Ops = append(step.Ops, rawOp(o))
		}
		raw.Steps = append(raw.Steps, step)
	}
	return raw, nil
}

// compile converts the decoded document into a Plan and validates it.
func compile(raw *rawPlan) (*Plan, error) {
	p := &Plan{Name: raw.Name}

	for i, rs := range raw.Steps {
		step := Step{Name: rs.Name, Iterations: 1}
		if step.Name == "" {
			step.Name = fmt.Sprintf("step_%d", i)
		}
		if rs.Iterations != nil {
			step.Iterations = *rs.Iterations
		}

		for j, ro := range rs.Ops {
			op, err := compileOp(ro)
			if err != nil {
				return nil, fmt.Errorf("steps[%d].ops[%d]: %w", i, j, err)
			}
			step.Ops = append(step.Ops, op)
		}
		p.Steps = append(p.Steps, step)
	}

	if err := Validate(p); err != nil {
		return nil, err
	}
	return p, nil
}

func compileOp(ro rawOp) (Op, error) {
	op := Op{
		Type:    strings.TrimSpace(ro.Type),
		Inputs:  normalizeNames(ro.Inputs),
		Outputs: normalizeNames(ro.Outputs),
		Shape:   ro.Shape,
		Values:  ro.Values,
		Scale:   1,
	}

	backend, err := blob.ParseBackend(ro.Backend)
	if err != nil {
		return Op{}, err
	}
	op.Backend = backend
	op.HasBackend = strings.TrimSpace(ro.Backend) != ""

	if ro.DType != "" {
		dtype, err := blob.ParseDType(ro.DType)
		if err != nil {
			return Op{}, err
		}
		op.DType = dtype
	}

	if ro.Value != nil {
		op.Value = *ro.Value
	}
	if ro.Scale != nil {
		op.Scale = *ro.Scale
	}
	return op, nil
}

// normalizeNames NFC-normalizes blob names so that names which render the
// same also compare equal in the workspace.
func normalizeNames(names []string) []string {
	if names == nil {
		return nil
	}
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = norm.NFC.String(n)
	}
	return out
}
