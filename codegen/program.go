// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package codegen

import (
	"io"
	"slices"

	"github.com/gx-org/sx/build/fmterr"
	"github.com/gx-org/sx/build/op"
	"github.com/gx-org/sx/build/sparsity"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Program is a set of scheduled functions read from a YAML document.
type Program struct {
	// Patterns declared by the program, including the predefined "scalar" pattern.
	Patterns map[string]*sparsity.Pattern
	// Functions of the program.
	Functions []*Function
}

type (
	patternRecord struct {
		NRow   int   `yaml:"nrow"`
		NCol   int   `yaml:"ncol"`
		ColInd []int `yaml:"colind"`
		Row    []int `yaml:"row"`
	}

	instrRecord struct {
		Kind      string    `yaml:"kind"`
		Op        string    `yaml:"op"`
		Slot      int       `yaml:"slot"`
		Arg       int       `yaml:"arg"`
		NZ        int       `yaml:"nz"`
		Res       int       `yaml:"res"`
		X         int       `yaml:"x"`
		Y         int       `yaml:"y"`
		Z         int       `yaml:"z"`
		N         int       `yaml:"n"`
		Offset    int       `yaml:"offset"`
		Src       int       `yaml:"src"`
		Dst       int       `yaml:"dst"`
		A         int       `yaml:"a"`
		Alpha     int       `yaml:"alpha"`
		W         int       `yaml:"w"`
		IW        int       `yaml:"iw"`
		Index     int       `yaml:"index"`
		Value     float64   `yaml:"value"`
		Values    []float64 `yaml:"values"`
		Sp        string    `yaml:"sp"`
		SpSrc     string    `yaml:"sp_src"`
		SpDst     string    `yaml:"sp_dst"`
		SpX       string    `yaml:"sp_x"`
		SpY       string    `yaml:"sp_y"`
		SpZ       string    `yaml:"sp_z"`
		Transpose bool      `yaml:"transpose"`
		Name      string    `yaml:"name"`
		Args      []int     `yaml:"args"`
	}

	functionRecord struct {
		Name    string        `yaml:"name"`
		In      []string      `yaml:"in"`
		Out     []string      `yaml:"out"`
		Scalars int           `yaml:"scalars"`
		Work    int           `yaml:"work"`
		IWork   int           `yaml:"iwork"`
		Body    []instrRecord `yaml:"body"`
	}

	programRecord struct {
		Patterns  map[string]patternRecord `yaml:"patterns"`
		Functions []functionRecord         `yaml:"functions"`
	}
)

// ScalarPattern is the name of the predefined 1x1 dense pattern.
const ScalarPattern = "scalar"

// LoadProgram reads a program from a YAML document.
// Unknown fields are rejected and every function is validated.
func LoadProgram(r io.Reader) (*Program, error) {
	var rec programRecord
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&rec); err != nil {
		return nil, errors.Wrap(err, "cannot decode program")
	}
	prog := &Program{Patterns: map[string]*sparsity.Pattern{ScalarPattern: sparsity.Scalar()}}
	for name, pr := range rec.Patterns {
		if name == ScalarPattern {
			return nil, errors.Errorf("pattern %q is predefined", name)
		}
		sp, err := pr.build()
		if err != nil {
			return nil, fmterr.PrefixWith("pattern %s: ", name)(err)
		}
		prog.Patterns[name] = sp
	}
	for _, fr := range rec.Functions {
		f, err := prog.build(&fr)
		if err != nil {
			return nil, err
		}
		if err := f.Validate(); err != nil {
			return nil, err
		}
		prog.Functions = append(prog.Functions, f)
	}
	return prog, nil
}

func (pr patternRecord) build() (*sparsity.Pattern, error) {
	if pr.NRow < 0 || pr.NCol < 0 {
		return nil, fmterr.Consistencyf("negative pattern size %dx%d", pr.NRow, pr.NCol)
	}
	if pr.ColInd == nil && pr.Row == nil {
		return sparsity.Dense(pr.NRow, pr.NCol), nil
	}
	return sparsity.New(pr.NRow, pr.NCol, pr.ColInd, pr.Row)
}

// Function returns a function of the program given its name.
func (p *Program) Function(name string) (*Function, error) {
	i := slices.IndexFunc(p.Functions, func(f *Function) bool { return f.Name == name })
	if i < 0 {
		return nil, fmterr.Lookupf("function", "function %s not defined in program", name)
	}
	return p.Functions[i], nil
}

func (p *Program) pattern(name string) (*sparsity.Pattern, error) {
	sp, ok := p.Patterns[name]
	if !ok {
		return nil, fmterr.Lookupf("sparsity pattern", "pattern %q not declared", name)
	}
	return sp, nil
}

func (p *Program) patterns(names []string) ([]*sparsity.Pattern, error) {
	var err error
	sps := make([]*sparsity.Pattern, len(names))
	for i, name := range names {
		var pErr error
		sps[i], pErr = p.pattern(name)
		err = multierr.Append(err, pErr)
	}
	return sps, err
}

func (p *Program) build(fr *functionRecord) (*Function, error) {
	prefix := fmterr.PrefixWith("function %s: ", fr.Name)
	in, inErr := p.patterns(fr.In)
	out, outErr := p.patterns(fr.Out)
	if err := multierr.Append(inErr, outErr); err != nil {
		return nil, prefix(err)
	}
	f := &Function{
		Name:    fr.Name,
		In:      in,
		Out:     out,
		Scalars: fr.Scalars,
		Work:    fr.Work,
		IWork:   fr.IWork,
	}
	for i := range fr.Body {
		instr, err := p.instruction(&fr.Body[i])
		if err != nil {
			return nil, prefix(fmterr.PrefixWith("instruction %d: ", i)(err))
		}
		f.Body = append(f.Body, instr)
	}
	return f, nil
}

func (p *Program) instruction(r *instrRecord) (Instruction, error) {
	switch r.Kind {
	case "input":
		return &Input{Slot: r.Slot, Arg: r.Arg, NZ: r.NZ}, nil
	case "output":
		return &Output{Res: r.Res, NZ: r.NZ, Slot: r.Slot}, nil
	case "const":
		return &Const{Slot: r.Slot, Value: r.Value}, nil
	case "apply":
		code, ok := op.Lookup(r.Op)
		if !ok {
			return nil, fmterr.Lookupf("operation", "unknown operation %q", r.Op)
		}
		return &Apply{Op: code, Slot: r.Slot, X: r.X, Y: r.Y}, nil
	case "gather":
		return &Gather{Slot: r.Slot, Offset: r.Offset}, nil
	case "scatter":
		return &Scatter{Offset: r.Offset, Slot: r.Slot}, nil
	case "const_array":
		return &ConstArray{Offset: r.Offset, Values: r.Values}, nil
	case "const_elem":
		return &ConstElem{Slot: r.Slot, Values: r.Values, Index: r.Index}, nil
	case "fill":
		return &Fill{Offset: r.Offset, N: r.N, Value: r.Value}, nil
	case "copy":
		return &Copy{Src: r.Src, N: r.N, Dst: r.Dst}, nil
	case "swap":
		return &Swap{N: r.N, X: r.X, Y: r.Y}, nil
	case "scal":
		return &Scal{N: r.N, Alpha: r.Alpha, X: r.X}, nil
	case "axpy":
		return &Axpy{N: r.N, Alpha: r.Alpha, X: r.X, Y: r.Y}, nil
	case "dot":
		return &Dot{Slot: r.Slot, N: r.N, X: r.X, Y: r.Y}, nil
	case "asum":
		return &Asum{Slot: r.Slot, N: r.N, X: r.X}, nil
	case "iamax":
		return &Iamax{Slot: r.Slot, N: r.N, X: r.X}, nil
	case "nrm2":
		return &Nrm2{Slot: r.Slot, N: r.N, X: r.X}, nil
	case "bilin":
		sp, err := p.pattern(r.Sp)
		if err != nil {
			return nil, err
		}
		return &Bilin{Slot: r.Slot, A: r.A, Sp: sp, X: r.X, Y: r.Y}, nil
	case "rank1":
		sp, err := p.pattern(r.Sp)
		if err != nil {
			return nil, err
		}
		return &Rank1{A: r.A, Sp: sp, Alpha: r.Alpha, X: r.X, Y: r.Y}, nil
	case "project", "trans":
		sps, err := p.patterns([]string{r.SpSrc, r.SpDst})
		if err != nil {
			return nil, err
		}
		if r.Kind == "trans" {
			return &Trans{Src: r.Src, SpSrc: sps[0], Dst: r.Dst, SpDst: sps[1], IW: r.IW}, nil
		}
		return &Project{Src: r.Src, SpSrc: sps[0], Dst: r.Dst, SpDst: sps[1], W: r.W}, nil
	case "mtimes":
		sps, err := p.patterns([]string{r.SpX, r.SpY, r.SpZ})
		if err != nil {
			return nil, err
		}
		return &Mtimes{
			X: r.X, SpX: sps[0],
			Y: r.Y, SpY: sps[1],
			Z: r.Z, SpZ: sps[2],
			W:         r.W,
			Transpose: r.Transpose,
		}, nil
	case "external":
		return &External{Slot: r.Slot, Name: r.Name, Args: r.Args}, nil
	}
	return nil, errors.Errorf("unknown instruction kind %q", r.Kind)
}
