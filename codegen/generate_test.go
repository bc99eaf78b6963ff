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

package codegen_test

import (
	"math"
	"strings"
	"testing"

	"github.com/gx-org/sx/build/fmterr"
	"github.com/gx-org/sx/build/op"
	"github.com/gx-org/sx/build/sparsity"
	"github.com/gx-org/sx/codegen"
	"github.com/sebdah/goldie/v2"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func scalars(n int) []*sparsity.Pattern {
	sps := make([]*sparsity.Pattern, n)
	for i := range sps {
		sps[i] = sparsity.Scalar()
	}
	return sps
}

// sinTimes computes sin(x)*y.
func sinTimes(name string) *codegen.Function {
	return &codegen.Function{
		Name:    name,
		In:      scalars(2),
		Out:     scalars(1),
		Scalars: 3,
		Body: []codegen.Instruction{
			&codegen.Input{Slot: 0, Arg: 0, NZ: 0},
			&codegen.Input{Slot: 1, Arg: 1, NZ: 0},
			&codegen.Apply{Op: op.Sin, Slot: 2, X: 0},
			&codegen.Apply{Op: op.Mul, Slot: 2, X: 2, Y: 1},
			&codegen.Output{Res: 0, NZ: 0, Slot: 2},
		},
	}
}

func generate(t *testing.T, opts *codegen.Options, funcs ...*codegen.Function) *codegen.Generated {
	t.Helper()
	if opts == nil {
		opts = codegen.DefaultOptions()
	}
	out, err := codegen.Generate(opts, "demo", funcs...)
	require.NoError(t, err)
	return out
}

func TestGolden(t *testing.T) {
	opts := codegen.DefaultOptions()
	opts.WithHeader = true
	out := generate(t, opts, sinTimes("f"))
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "scalar", []byte(out.Source))
	g.Assert(t, "scalar_header", []byte(out.Header))
	require.Equal(t, "demo.c", out.SourceFile())
	require.Equal(t, "demo.h", out.HeaderFile())
}

// constSum returns a function summing the elements of the constant array v
// copied twice into the work vector.
func constSum(name string, v []float64) *codegen.Function {
	n := len(v)
	return &codegen.Function{
		Name:    name,
		Out:     scalars(1),
		Scalars: 3,
		Work:    2 * n,
		Body: []codegen.Instruction{
			&codegen.ConstArray{Offset: 0, Values: v},
			&codegen.ConstArray{Offset: n, Values: append([]float64(nil), v...)},
			&codegen.Const{Slot: 0, Value: 1},
			&codegen.Fill{Offset: n, N: 0, Value: 0},
			&codegen.Dot{Slot: 1, N: n, X: 0, Y: n},
			&codegen.ConstElem{Slot: 2, Values: v, Index: n - 1},
			&codegen.Apply{Op: op.Add, Slot: 1, X: 1, Y: 2},
			&codegen.Output{Res: 0, NZ: 0, Slot: 1},
		},
	}
}

func TestConstantPooling(t *testing.T) {
	v := []float64{1, 2, 3}
	for i := range 2 {
		out := generate(t, nil, constSum("f", v))
		if got := strings.Count(out.Source, "static const real_t"); got != 1 {
			t.Errorf("generation %d: got %d constant declarations but want 1:\n%s", i, got, out.Source)
		}
		if got := strings.Count(out.Source, "{1., 2., 3.}"); got != 1 {
			t.Errorf("generation %d: got %d constant definitions but want 1", i, got)
		}
		if got := strings.Count(out.Source, "copy(c0, 3, "); got != 2 {
			t.Errorf("generation %d: got %d references to the constant but want 2", i, got)
		}
		require.Contains(t, out.Source, "a2 = c0[2];")
	}
	// Two functions of the same module share the pool.
	out := generate(t, nil, constSum("f", v), constSum("g", v))
	require.Equal(t, 1, strings.Count(out.Source, "static const real_t"))
}

func TestConstantBitwiseEquality(t *testing.T) {
	out := generate(t, nil, constSum("f", []float64{0, 1}), constSum("g", []float64{negZero(), 1}))
	require.Equal(t, 2, strings.Count(out.Source, "static const real_t"))
	require.Contains(t, out.Source, "{0., 1.}")
	require.Contains(t, out.Source, "{-0., 1.}")
}

func negZero() float64 {
	return math.Copysign(0, -1)
}

// bilinSym computes x'*A*x twice for a sparse matrix A given as a constant.
func bilinSym(sp *sparsity.Pattern) *codegen.Function {
	return &codegen.Function{
		Name:    "f",
		Out:     scalars(1),
		Scalars: 2,
		Work:    sp.NNZ() + sp.Rows(),
		Body: []codegen.Instruction{
			&codegen.Fill{Offset: 0, N: sp.NNZ() + sp.Rows(), Value: 1},
			&codegen.Bilin{Slot: 0, A: 0, Sp: sp, X: sp.NNZ(), Y: sp.NNZ()},
			&codegen.Bilin{Slot: 1, A: 0, Sp: sp, X: sp.NNZ(), Y: sp.NNZ()},
			&codegen.Apply{Op: op.Add, Slot: 0, X: 0, Y: 1},
			&codegen.Output{Res: 0, NZ: 0, Slot: 0},
		},
	}
}

func TestSparsityInterning(t *testing.T) {
	diag, err := sparsity.New(2, 2, []int{0, 1, 2}, []int{0, 1})
	require.NoError(t, err)
	out := generate(t, nil, bilinSym(diag))
	require.Equal(t, 1, strings.Count(out.Source, "{2, 2, 0, 1, 2, 0, 1}"))
	require.Equal(t, 2, strings.Count(out.Source, "static const int"))
	require.Equal(t, 2, strings.Count(out.Source, "bilin(w, s1, w+2, w+2);"))
	// The routines computing with sparse matrices come after their macros.
	macros := strings.Index(out.Source, "#ifndef SX_NNZ")
	bilin := strings.Index(out.Source, "real_t SX_PREFIX(bilin)(")
	if macros < 0 || bilin < macros {
		t.Errorf("sparsity macros at %d but bilin defined at %d", macros, bilin)
	}
}

func TestAuxiliaryDedup(t *testing.T) {
	f := &codegen.Function{
		Name:    "f",
		In:      []*sparsity.Pattern{sparsity.Dense(3, 1)},
		Out:     scalars(1),
		Scalars: 4,
		Work:    3,
		Body: []codegen.Instruction{
			&codegen.Input{Slot: 0, Arg: 0, NZ: 0},
			&codegen.Input{Slot: 1, Arg: 0, NZ: 1},
			&codegen.Input{Slot: 2, Arg: 0, NZ: 2},
			&codegen.Scatter{Offset: 0, Slot: 0},
			&codegen.Scatter{Offset: 1, Slot: 1},
			&codegen.Scatter{Offset: 2, Slot: 2},
			&codegen.Dot{Slot: 0, N: 3, X: 0, Y: 0},
			&codegen.Dot{Slot: 1, N: 2, X: 0, Y: 1},
			&codegen.Dot{Slot: 2, N: 1, X: 2, Y: 2},
			&codegen.Apply{Op: op.Add, Slot: 3, X: 0, Y: 1},
			&codegen.Apply{Op: op.Add, Slot: 3, X: 3, Y: 2},
			&codegen.Output{Res: 0, NZ: 0, Slot: 3},
		},
	}
	out := generate(t, nil, f)
	require.Equal(t, 1, strings.Count(out.Source, "real_t SX_PREFIX(dot)("))
	require.Equal(t, 1, strings.Count(out.Source, "#define dot("))
	require.Contains(t, out.Source, "a0 = dot(3, w, w);")
	require.Contains(t, out.Source, "a1 = dot(2, w, w+1);")
	require.Contains(t, out.Source, "a2 = dot(1, w+2, w+2);")
	require.Contains(t, out.Source, "w[2] = a2;")
	require.NotContains(t, out.Source, "SX_PREFIX(axpy)")
}

func TestHelpers(t *testing.T) {
	f := &codegen.Function{
		Name:    "f",
		In:      scalars(1),
		Out:     scalars(1),
		Scalars: 2,
		Body: []codegen.Instruction{
			&codegen.Input{Slot: 0, Arg: 0, NZ: 0},
			&codegen.Apply{Op: op.Sq, Slot: 1, X: 0},
			&codegen.Apply{Op: op.Sign, Slot: 1, X: 1},
			&codegen.Apply{Op: op.Erfinv, Slot: 1, X: 1},
			&codegen.Const{Slot: 0, Value: 3},
			&codegen.Apply{Op: op.PrintMe, Slot: 1, X: 1, Y: 0},
			&codegen.Output{Res: 0, NZ: 0, Slot: 1},
		},
	}
	out := generate(t, nil, f)
	for _, want := range []string{
		"a1 = sq(a0);",
		"a1 = sign(a1);",
		"a1 = erfinv(a1);",
		"a0 = 3.;",
		"a1 = printme(a1,a0);",
		"#include <stdio.h>",
		"#define PRINTF printf",
		"real_t SX_PREFIX(sq)(real_t x)",
		"real_t SX_PREFIX(printme)(real_t x, real_t y)",
	} {
		require.Contains(t, out.Source, want)
	}
	require.Less(t, strings.Index(out.Source, "#define PRINTF"), strings.Index(out.Source, "SX_PREFIX(printme)"))
}

func TestSparseRoutines(t *testing.T) {
	dense := sparsity.Dense(2, 2)
	lower, err := sparsity.New(2, 2, []int{0, 2, 3}, []int{0, 1, 1})
	require.NoError(t, err)
	upper, _ := lower.Transpose()
	f := &codegen.Function{
		Name:    "f",
		In:      []*sparsity.Pattern{lower},
		Out:     []*sparsity.Pattern{dense},
		Scalars: 2,
		Work:    22,
		IWork:   2,
		Body: []codegen.Instruction{
			&codegen.Input{Slot: 0, Arg: 0, NZ: 0},
			&codegen.Scatter{Offset: 0, Slot: 0},
			&codegen.Input{Slot: 0, Arg: 0, NZ: 1},
			&codegen.Scatter{Offset: 1, Slot: 0},
			&codegen.Input{Slot: 0, Arg: 0, NZ: 2},
			&codegen.Scatter{Offset: 2, Slot: 0},
			&codegen.Trans{Src: 0, SpSrc: lower, Dst: 3, SpDst: upper, IW: 0},
			&codegen.Project{Src: 0, SpSrc: lower, Dst: 6, SpDst: dense, W: 20},
			&codegen.Project{Src: 6, SpSrc: dense, Dst: 10, SpDst: dense, W: 20},
			&codegen.Fill{Offset: 14, N: 4, Value: 0},
			&codegen.Mtimes{X: 0, SpX: lower, Y: 3, SpY: upper, Z: 14, SpZ: dense, W: 20},
			&codegen.Fill{Offset: 14, N: 4, Value: 0},
			&codegen.Mtimes{X: 0, SpX: lower, Y: 0, SpY: lower, Z: 14, SpZ: dense, W: 20, Transpose: true},
			&codegen.Const{Slot: 1, Value: 0.5},
			&codegen.Rank1{A: 14, Sp: dense, Alpha: 1, X: 18, Y: 18},
			&codegen.Scal{N: 4, Alpha: 1, X: 14},
			&codegen.Axpy{N: 4, Alpha: 1, X: 10, Y: 14},
			&codegen.Swap{N: 4, X: 10, Y: 14},
			&codegen.Copy{Src: 10, N: 4, Dst: 14},
			&codegen.Asum{Slot: 0, N: 4, X: 14},
			&codegen.Nrm2{Slot: 0, N: 4, X: 14},
			&codegen.Iamax{Slot: 0, N: 4, X: 14},
			&codegen.Gather{Slot: 0, Offset: 14},
			&codegen.Output{Res: 0, NZ: 0, Slot: 0},
		},
	}
	out := generate(t, nil, f)
	for _, want := range []string{
		"trans(w, s0, w+3, s2, iw);",
		"project(w, s0, w+6, s1, w+20);",
		"copy(w+6, 4, w+10);",
		"mtimes(w, s0, w+3, s2, w+14, s1, w+20, 0);",
		"mtimes(w, s0, w, s0, w+14, s1, w+20, 1);",
		"rank1(w+14, s1, a1, w+18, w+18);",
		"scal(4, a1, w+14);",
		"axpy(4, a1, w+10, w+14);",
		"swap(4, w+10, w+14);",
		"copy(w+10, 4, w+14);",
		"a0 = asum(4, w+14);",
		"a0 = nrm2(4, w+14);",
		"a0 = iamax(4, w+14);",
		"a0 = w[14];",
		"a1 = 5.0000000000000000e-01;",
		"if (sz_iw) *sz_iw = 2;",
		"if (sz_w) *sz_w = 22;",
	} {
		require.Contains(t, out.Source, want)
	}
	// Sparsity tables: lower, dense then upper.
	require.Contains(t, out.Source, "static const int SX_PREFIX(s0)[] = {2, 2, 0, 2, 3, 0, 1, 1};")
	require.Contains(t, out.Source, "static const int SX_PREFIX(s1)[] = {2, 2, 1};")
	require.Contains(t, out.Source, "static const int SX_PREFIX(s2)[] = {2, 2, 0, 1, 3, 0, 0, 1};")
}

func TestExternal(t *testing.T) {
	f := &codegen.Function{
		Name:    "f",
		In:      scalars(2),
		Out:     scalars(1),
		Scalars: 3,
		Body: []codegen.Instruction{
			&codegen.Input{Slot: 0, Arg: 0, NZ: 0},
			&codegen.Input{Slot: 1, Arg: 1, NZ: 0},
			&codegen.External{Slot: 2, Name: "hypot2", Args: []int{0, 1}},
			&codegen.External{Slot: 2, Name: "hypot2", Args: []int{2, 1}},
			&codegen.External{Slot: 1, Name: "rand0"},
			&codegen.Output{Res: 0, NZ: 0, Slot: 2},
		},
	}
	out := generate(t, nil, f)
	require.Contains(t, out.Source, "/* External functions */\nreal_t hypot2(real_t, real_t);\nreal_t rand0(void);\n")
	require.Contains(t, out.Source, "a2 = hypot2(a2, a1);")
	require.Contains(t, out.Source, "a1 = rand0();")
}

func TestCodegenScalars(t *testing.T) {
	opts := codegen.DefaultOptions()
	opts.CodegenScalars = true
	out := generate(t, opts, sinTimes("f"))
	require.NotContains(t, out.Source, "real_t a0")
	require.Contains(t, out.Source, "w[0] = arg[0] ? arg[0][0] : 0;")
	require.Contains(t, out.Source, "w[2] = (w[2]*w[1]);")
	require.Contains(t, out.Source, "if (sz_w) *sz_w = 3;")
}

func TestCPP(t *testing.T) {
	opts := codegen.DefaultOptions()
	opts.CPP = true
	opts.RealT = "float"
	out := generate(t, opts, sinTimes("f"))
	require.Equal(t, "demo.cpp", out.SourceFile())
	require.NotContains(t, out.Source, "extern \"C\" {")
	require.NotContains(t, out.Source, "Pre-c99")
	require.Contains(t, out.Source, "extern \"C\" int f(const real_t** arg")
	require.Contains(t, out.Source, "#define real_t float")
	require.Contains(t, out.Source, "static_cast<double>(x)")
}

func TestPrefix(t *testing.T) {
	opts := codegen.DefaultOptions()
	opts.Prefix = "mylib"
	out := generate(t, opts, sinTimes("f"))
	require.Contains(t, out.Source, "#define SX_PREFIX(ID) mylib_ ## ID")
}

func TestGateways(t *testing.T) {
	opts := codegen.DefaultOptions()
	opts.Mex = true
	opts.Main = true
	out := generate(t, opts, sinTimes("f"), sinTimes("longer_name"))
	for _, want := range []string{
		"#include <stdio.h>\n#include <string.h>\n#ifdef MATLAB_MEX_FILE\n#include <mex.h>\n#endif\n#include <math.h>\n",
		"#ifdef MATLAB_MEX_FILE\n#define PRINTF mexPrintf\n#else\n#define PRINTF printf\n#endif\n",
		"void mex_f(int resc, mxArray *resv[], int argc, const mxArray *argv[]) {",
		"  real_t w[4];",
		"  if (--argc>=0) arg[1] = from_mex(argv[1], w+1, s0, w+3);",
		"  fill(w+2, 1, 0);",
		"  if (f(arg, res, iw, w+4, 0)) mexErrMsgIdAndTxt(",
		"  if (--resc>=0) resv[0] = to_mex(s0, res[0]);",
		"void mexFunction(int resc, mxArray *resv[], int argc, const mxArray *argv[]) {",
		"  char buf[12];",
		"    mex_f(resc, resv, argc, argv);",
		"  } else if (strcmp(buf, \"longer_name\")==0) {",
		"Possible values: 'f' 'longer_name'",
		"int main_f(int argc, char* argv[]) {",
		"  for (j=0; j<2; ++j) {",
		"  r = w+2;",
		"  for (j=0; j<1; ++j) PRINTF(\"%.16e \", to_double(*r++));",
		"int main(int argc, char* argv[]) {",
		"    return main_longer_name(argc-2, argv+2);",
		"  fprintf(stderr, \"First input should be a command string. Possible values: 'f' 'longer_name'\\n\");\n  return 1;\n}\n",
	} {
		require.Contains(t, out.Source, want)
	}
	require.Equal(t, 1, strings.Count(out.Source, "SX_PREFIX(from_mex)(const mxArray* p"))
	require.Equal(t, 1, strings.Count(out.Source, "void SX_PREFIX(fill)("))
}

func TestFunctionErrors(t *testing.T) {
	tests := []struct {
		f    *codegen.Function
		want string
	}{
		{
			f:    &codegen.Function{Name: "1f"},
			want: "not a valid identifier",
		},
		{
			f:    &codegen.Function{Name: "f", In: []*sparsity.Pattern{nil}},
			want: "input 0 has no sparsity pattern",
		},
		{
			f: &codegen.Function{
				Name: "f", In: scalars(1), Scalars: 1,
				Body: []codegen.Instruction{&codegen.Input{Slot: 1, Arg: 0, NZ: 0}},
			},
			want: "result slot 1 out of range [0,1)",
		},
		{
			f: &codegen.Function{
				Name: "f", In: scalars(1), Scalars: 1,
				Body: []codegen.Instruction{&codegen.Input{Slot: 0, Arg: 1, NZ: 0}},
			},
			want: "input 1 out of range [0,1)",
		},
		{
			f: &codegen.Function{
				Name: "f", Out: scalars(1), Scalars: 1,
				Body: []codegen.Instruction{&codegen.Output{Res: 0, NZ: 1, Slot: 0}},
			},
			want: "nonzero 1 of output 0 out of range [0,1)",
		},
		{
			f: &codegen.Function{
				Name: "f", Scalars: 1,
				Body: []codegen.Instruction{&codegen.Apply{Op: op.Const, Slot: 0}},
			},
			want: "cannot apply operation const",
		},
		{
			f: &codegen.Function{
				Name: "f", Scalars: 1, Work: 2,
				Body: []codegen.Instruction{&codegen.Copy{Src: 0, N: 2, Dst: 1}},
			},
			want: "destination range [1,3) out of the work vector of size 2",
		},
		{
			f: &codegen.Function{
				Name: "f", Scalars: 1, Work: 2,
				Body: []codegen.Instruction{&codegen.Trans{Src: 0, SpSrc: sparsity.Dense(2, 1), Dst: 0, SpDst: sparsity.Dense(2, 1)}},
			},
			want: "is not the transpose of",
		},
		{
			f: &codegen.Function{
				Name: "f", Scalars: 1, Work: 10,
				Body: []codegen.Instruction{&codegen.Mtimes{
					SpX: sparsity.Dense(2, 3), SpY: sparsity.Dense(2, 1), SpZ: sparsity.Dense(2, 1),
				}},
			},
			want: "cannot multiply",
		},
		{
			f: &codegen.Function{
				Name: "f", Scalars: 1,
				Body: []codegen.Instruction{&codegen.External{Slot: 0, Name: "bad name"}},
			},
			want: "external function name",
		},
	}
	for i, test := range tests {
		_, err := codegen.Generate(nil, "demo", test.f)
		if err == nil {
			t.Errorf("test %d: expected an error", i)
			continue
		}
		if !strings.Contains(err.Error(), test.want) {
			t.Errorf("test %d: got error %q but want an error containing %q", i, err.Error(), test.want)
		}
	}
}

func TestValidateCollectsErrors(t *testing.T) {
	f := &codegen.Function{
		Name:    "f",
		Scalars: 1,
		Body: []codegen.Instruction{
			&codegen.Const{Slot: 3},
			&codegen.Gather{Slot: 0, Offset: 4},
		},
	}
	err := f.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "instruction 0: result slot 3")
	require.Contains(t, err.Error(), "instruction 1: source range [4,5)")
}

func TestModuleErrors(t *testing.T) {
	_, err := codegen.NewModule(nil, "not a name")
	require.Error(t, err)

	m, err := codegen.NewModule(nil, "demo")
	require.NoError(t, err)
	_, err = m.Generate()
	require.Error(t, err)
	require.NoError(t, m.Add(sinTimes("f")))
	err = m.Add(sinTimes("f"))
	require.ErrorContains(t, err, "already defined")

	_, err = m.GetSparsity(sparsity.Dense(2, 2))
	require.True(t, fmterr.IsLookup(err), "got %v", err)
	idx, err := m.GetSparsity(sparsity.Scalar())
	require.NoError(t, err)
	require.Equal(t, 0, idx)

	_, err = m.GetConstant([]float64{4, 5})
	require.True(t, fmterr.IsLookup(err), "got %v", err)
	want := m.AddConstant([]float64{4, 5})
	got, err := m.GetConstant([]float64{4, 5})
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestUnregisteredConstant(t *testing.T) {
	f := &codegen.Function{
		Name:    "f",
		Out:     scalars(1),
		Scalars: 1,
		Body: []codegen.Instruction{
			&codegen.ConstElem{Slot: 0, Values: []float64{1, 2}, Index: 1},
			&codegen.Output{Res: 0, NZ: 0, Slot: 0},
		},
	}
	_, err := codegen.Generate(nil, "demo", f)
	require.True(t, fmterr.IsLookup(err), "got %v", err)
}

func TestLiteral(t *testing.T) {
	tests := []struct {
		v    float64
		want string
	}{
		{v: 0, want: "0."},
		{v: negZero(), want: "-0."},
		{v: -3, want: "-3."},
		{v: 0.25, want: "2.5000000000000000e-01"},
		{v: 1e20, want: "1.0000000000000000e+20"},
		{v: math.Inf(1), want: "INFINITY"},
		{v: math.Inf(-1), want: "-INFINITY"},
		{v: math.NaN(), want: "NAN"},
	}
	for i, test := range tests {
		if got := codegen.Literal(test.v); got != test.want {
			t.Errorf("test %d: got %s but want %s", i, got, test.want)
		}
	}
}

func TestWrite(t *testing.T) {
	opts := codegen.DefaultOptions()
	opts.WithHeader = true
	out := generate(t, opts, sinTimes("f"))
	fs := afero.NewMemMapFs()
	paths, err := out.Write(fs, "gen")
	require.NoError(t, err)
	require.Equal(t, []string{"gen/demo.c", "gen/demo.h"}, paths)
	src, err := afero.ReadFile(fs, "gen/demo.c")
	require.NoError(t, err)
	require.Equal(t, out.Source, string(src))
}
