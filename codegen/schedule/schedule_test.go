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

package schedule_test

import (
	"math"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/gx-org/sx/build/sparsity"
	"github.com/gx-org/sx/build/sx"
	"github.com/gx-org/sx/codegen"
	"github.com/gx-org/sx/codegen/schedule"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// run interprets a scheduled function made of scalar instructions.
func run(t *testing.T, f *codegen.Function, args [][]float64) [][]float64 {
	t.Helper()
	a := make([]float64, f.Scalars)
	res := make([][]float64, len(f.Out))
	for i, sp := range f.Out {
		res[i] = make([]float64, sp.NNZ())
	}
	for _, instr := range f.Body {
		switch instr := instr.(type) {
		case *codegen.Input:
			a[instr.Slot] = args[instr.Arg][instr.NZ]
		case *codegen.Const:
			a[instr.Slot] = instr.Value
		case *codegen.Apply:
			a[instr.Slot] = instr.Op.Eval(a[instr.X], a[instr.Y])
		case *codegen.Output:
			res[instr.Res][instr.NZ] = a[instr.Slot]
		default:
			t.Fatalf("unexpected instruction %T", instr)
		}
	}
	return res
}

func demo(t *testing.T) *sx.Function {
	t.Helper()
	b := sx.New()
	x := b.SymMatrix("x", sparsity.Dense(2, 1))
	y := b.Sym("y")
	x0, x1 := x.At(0), x.At(1)
	e := b.Add(b.Mul(b.Sin(x0), y), x1)
	col := sx.Column(b.Exp(x0), b.Mul(x0, x0), b.Const(3), b.Mul(e, e))
	f, err := sx.NewFunction("demo", []*sx.Matrix{x, sx.Scalar(y)}, []*sx.Matrix{sx.Scalar(e), col})
	require.NoError(t, err)
	return f
}

func TestSchedule(t *testing.T) {
	f := demo(t)
	cf, err := schedule.Schedule(f)
	require.NoError(t, err)
	require.Less(t, cf.Scalars, len(f.Nodes()))
	require.Equal(t, 3, cf.NumNonzerosIn())
	require.Equal(t, 5, cf.NumNonzerosOut())

	for _, args := range [][][]float64{
		{{0.3, -1.2}, {2}},
		{{1.5, 0.5}, {-0.25}},
	} {
		want, err := f.Eval(args)
		require.NoError(t, err)
		got := run(t, cf, args)
		for i := range want {
			for k := range want[i] {
				if math.Abs(got[i][k]-want[i][k]) > 1e-12 {
					t.Errorf("output %d nonzero %d: got %g but want %g", i, k, got[i][k], want[i][k])
				}
			}
		}
	}
}

func TestScheduleGenerate(t *testing.T) {
	cf, err := schedule.Schedule(demo(t))
	require.NoError(t, err)
	out, err := codegen.Generate(nil, "demo_module", cf)
	require.NoError(t, err)
	for _, want := range []string{
		"int demo(const real_t** arg, real_t** res, int* iw, real_t* w, int mem) {",
		"= arg[1] ? arg[1][0] : 0;",
		"= sin(a",
		"= sq(a",
		"= 3.;",
		"if (res[1]) res[1][3] = a",
	} {
		require.Contains(t, out.Source, want)
	}
	require.Equal(t, 1, strings.Count(out.Source, "real_t SX_PREFIX(sq)("))
}

func TestScheduleUnusedInput(t *testing.T) {
	b := sx.New()
	x, y := b.Sym("x"), b.Sym("y")
	f, err := sx.NewFunction("f", []*sx.Matrix{sx.Scalar(x), sx.Scalar(y)}, []*sx.Matrix{sx.Scalar(b.Cos(y))})
	require.NoError(t, err)
	cf, err := schedule.Schedule(f)
	require.NoError(t, err)
	require.Equal(t, 1, cf.Scalars)
	require.Len(t, cf.Body, 3)
	in := cf.Body[0].(*codegen.Input)
	require.Equal(t, 1, in.Arg)
}

func TestScheduleCompileAndRun(t *testing.T) {
	cc, err := exec.LookPath("cc")
	if err != nil {
		t.Skip("no C compiler available")
	}
	f := demo(t)
	cf, err := schedule.Schedule(f)
	require.NoError(t, err)
	opts := codegen.DefaultOptions()
	opts.Main = true
	out, err := codegen.Generate(opts, "demo_module", cf)
	require.NoError(t, err)
	dir := t.TempDir()
	_, err = out.Write(afero.NewOsFs(), dir)
	require.NoError(t, err)

	prog := filepath.Join(dir, "demo_module")
	build := exec.Command(cc, "-std=c99", "-Wall", "-o", prog, out.SourceFile(), "-lm")
	build.Dir = dir
	msg, err := build.CombinedOutput()
	require.NoError(t, err, "%s", msg)

	for _, args := range [][][]float64{
		{{0.3, -1.2}, {2}},
		{{1.5, 0.5}, {-0.25}},
	} {
		var input []string
		for _, arg := range args {
			for _, v := range arg {
				input = append(input, strconv.FormatFloat(v, 'g', -1, 64))
			}
		}
		cmd := exec.Command(prog, "demo")
		cmd.Stdin = strings.NewReader(strings.Join(input, " ") + "\n")
		stdout, err := cmd.Output()
		require.NoError(t, err)
		want, err := f.Eval(args)
		require.NoError(t, err)
		var flat []float64
		for _, res := range want {
			flat = append(flat, res...)
		}
		fields := strings.Fields(string(stdout))
		require.Len(t, fields, len(flat))
		for k, field := range fields {
			got, err := strconv.ParseFloat(field, 64)
			require.NoError(t, err)
			if math.Abs(got-flat[k]) > 1e-12*math.Max(1, math.Abs(flat[k])) {
				t.Errorf("input %v nonzero %d: got %g but want %g", input, k, got, flat[k])
			}
		}
	}
}
