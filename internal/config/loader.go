package config

import (
	"context"
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/burstmc/internal/ctxlog"
	"github.com/specialistvlad/burstmc/internal/fsutil"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// fileRoot decodes every top-level block of the merged analysis body.
type fileRoot struct {
	Variables []*variableBlock `hcl:"variable,block"`
	Analysis  *analysisBlock   `hcl:"analysis,block"`
	Sampler   *samplerBlock    `hcl:"sampler,block"`
	Moves     []*moveBlock     `hcl:"move,block"`
	Monitors  []*monitorBlock  `hcl:"monitor,block"`
	MC3       *mc3Block        `hcl:"mc3,block"`
}

type variableBlock struct {
	Name    string         `hcl:"name,label"`
	Default hcl.Expression `hcl:"default,optional"`
}

type analysisBlock struct {
	Model string    `hcl:"model"`
	Seed  *uint64   `hcl:"seed,optional"`
	Data  []float64 `hcl:"data,optional"`
}

type samplerBlock struct {
	Schedule        *string  `hcl:"schedule,optional"`
	Heat            *float64 `hcl:"heat,optional"`
	Active          *bool    `hcl:"active,optional"`
	Burnin          *int     `hcl:"burnin,optional"`
	Generations     *int     `hcl:"generations,optional"`
	TuningInterval  *int     `hcl:"tuning_interval,optional"`
	MaxInitAttempts *int     `hcl:"max_init_attempts,optional"`
}

type moveBlock struct {
	Kind     string   `hcl:"kind,label"`
	Target   string   `hcl:"target,label"`
	Weight   *float64 `hcl:"weight,optional"`
	Tuning   *float64 `hcl:"tuning,optional"`
	AutoTune *bool    `hcl:"auto_tune,optional"`
}

type monitorBlock struct {
	Kind               string   `hcl:"kind,label"`
	Every              *int     `hcl:"every,optional"`
	Nodes              []string `hcl:"nodes,optional"`
	Path               string   `hcl:"path,optional"`
	URL                string   `hcl:"url,optional"`
	Namespace          string   `hcl:"namespace,optional"`
	Event              string   `hcl:"event,optional"`
	InsecureSkipVerify bool     `hcl:"insecure_skip_verify,optional"`
}

type mc3Block struct {
	Chains       *int     `hcl:"chains,optional"`
	Processors   *int     `hcl:"processors,optional"`
	SwapInterval *int     `hcl:"swap_interval,optional"`
	DeltaHeat    *float64 `hcl:"delta_heat,optional"`
	Swaps        *int     `hcl:"swaps,optional"`
}

// Functions returns the functions available to analysis expressions.
func Functions() map[string]function.Function {
	return map[string]function.Function{
		"abs":    stdlib.AbsoluteFunc,
		"ceil":   stdlib.CeilFunc,
		"floor":  stdlib.FloorFunc,
		"log":    stdlib.LogFunc,
		"max":    stdlib.MaxFunc,
		"min":    stdlib.MinFunc,
		"pow":    stdlib.PowFunc,
		"concat": stdlib.ConcatFunc,
		"range":  stdlib.RangeFunc,
		"length": stdlib.LengthFunc,
	}
}

// Load reads the analysis at path, which is either one .hcl file or a
// directory whose .hcl files are merged in lexical order.
func Load(ctx context.Context, path string) (*Config, error) {
	logger := ctxlog.FromContext(ctx)

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("error accessing path %s: %w", path, err)
	}
	files := []string{path}
	if info.IsDir() {
		files, err = fsutil.FindFilesByExtension(path, ".hcl")
		if err != nil {
			return nil, fmt.Errorf("error scanning %s: %w", path, err)
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("no .hcl files found in %s", path)
		}
	}
	logger.Debug("Discovered HCL files.", "count", len(files))

	parser := hclparse.NewParser()
	parsed := make([]*hcl.File, 0, len(files))
	for _, file := range files {
		f, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}
		parsed = append(parsed, f)
	}

	cfg, err := decode(hcl.MergeFiles(parsed))
	if err != nil {
		return nil, err
	}
	logger.Debug("Analysis loaded.", "model", cfg.Analysis.Model, "moves", len(cfg.Moves), "monitors", len(cfg.Monitors), "mc3", cfg.MC3 != nil)
	return cfg, nil
}

// decode evaluates the body in two passes: variables first, with functions
// only, then everything else with `var` in scope.
func decode(body hcl.Body) (*Config, error) {
	varsSchema := &hcl.BodySchema{
		Blocks: []hcl.BlockHeaderSchema{{Type: "variable", LabelNames: []string{"name"}}},
	}
	content, _, diags := body.PartialContent(varsSchema)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode variables: %w", diags)
	}

	evalCtx := &hcl.EvalContext{Functions: Functions()}
	vars := make(map[string]cty.Value)
	for _, block := range content.Blocks {
		var v variableBlock
		if diags := gohcl.DecodeBody(block.Body, evalCtx, &v); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode variable %q: %w", block.Labels[0], diags)
		}
		name := block.Labels[0]
		if _, dup := vars[name]; dup {
			return nil, fmt.Errorf("%w: variable %q declared twice", ErrInvalid, name)
		}
		val, diags := v.Default.Value(evalCtx)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to evaluate variable %q: %w", name, diags)
		}
		if val.IsNull() {
			return nil, fmt.Errorf("%w: variable %q has no default", ErrInvalid, name)
		}
		vars[name] = val
	}
	evalCtx.Variables = map[string]cty.Value{"var": cty.ObjectVal(vars)}

	var root fileRoot
	if diags := gohcl.DecodeBody(body, evalCtx, &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode analysis: %w", diags)
	}
	if root.Analysis == nil {
		return nil, fmt.Errorf("%w: an analysis block is required", ErrInvalid)
	}

	cfg := translate(&root)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// translate maps the decoded blocks onto Config, filling in defaults.
func translate(root *fileRoot) *Config {
	cfg := &Config{
		Analysis: Analysis{
			Model: root.Analysis.Model,
			Seed:  deref(root.Analysis.Seed, 0),
			Data:  root.Analysis.Data,
		},
	}

	s := root.Sampler
	if s == nil {
		s = &samplerBlock{}
	}
	cfg.Sampler = Sampler{
		Schedule:        deref(s.Schedule, "random"),
		Heat:            deref(s.Heat, 1.0),
		Active:          deref(s.Active, true),
		Burnin:          deref(s.Burnin, 0),
		Generations:     deref(s.Generations, 1000),
		TuningInterval:  deref(s.TuningInterval, 100),
		MaxInitAttempts: deref(s.MaxInitAttempts, 100),
	}

	for _, m := range root.Moves {
		cfg.Moves = append(cfg.Moves, Move{
			Kind:     m.Kind,
			Target:   m.Target,
			Weight:   deref(m.Weight, 1.0),
			Tuning:   deref(m.Tuning, 1.0),
			AutoTune: deref(m.AutoTune, false),
		})
	}

	for _, m := range root.Monitors {
		cfg.Monitors = append(cfg.Monitors, Monitor{
			Kind:               m.Kind,
			Every:              deref(m.Every, 1),
			Nodes:              m.Nodes,
			Path:               m.Path,
			URL:                m.URL,
			Namespace:          m.Namespace,
			Event:              m.Event,
			InsecureSkipVerify: m.InsecureSkipVerify,
		})
	}

	if mc := root.MC3; mc != nil {
		cfg.MC3 = &MC3{
			Chains:       deref(mc.Chains, 4),
			Processors:   deref(mc.Processors, 1),
			SwapInterval: deref(mc.SwapInterval, 1),
			DeltaHeat:    deref(mc.DeltaHeat, 0.2),
			Swaps:        deref(mc.Swaps, 1),
		}
	}
	return cfg
}

func deref[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}
