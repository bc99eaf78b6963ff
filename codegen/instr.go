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
	"fmt"
	"strings"

	"github.com/gx-org/sx/build/op"
	"github.com/gx-org/sx/build/sparsity"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// Instruction is a statement of a scheduled function.
type Instruction interface {
	check(f *Function) error
	emit(e *emitter) (string, error)
}

type (
	// Input reads the nonzero NZ of the input Arg into a scalar slot.
	Input struct {
		Slot, Arg, NZ int
	}

	// Output writes a scalar slot into the nonzero NZ of the output Res.
	Output struct {
		Res, NZ, Slot int
	}

	// Const sets a scalar slot to a constant.
	Const struct {
		Slot  int
		Value float64
	}

	// Apply stores the result of an atomic operation in a scalar slot.
	// Y is ignored by unary operations.
	Apply struct {
		Op         op.Code
		Slot, X, Y int
	}

	// Gather loads an element of the work vector into a scalar slot.
	Gather struct {
		Slot, Offset int
	}

	// Scatter stores a scalar slot into the work vector.
	Scatter struct {
		Offset, Slot int
	}

	// ConstArray copies a constant array into the work vector.
	ConstArray struct {
		Offset int
		Values []float64
	}

	// ConstElem loads an element of a constant array already copied by ConstArray.
	ConstElem struct {
		Slot   int
		Values []float64
		Index  int
	}

	// Fill sets N elements of the work vector to a constant.
	Fill struct {
		Offset, N int
		Value     float64
	}

	// Copy copies N elements of the work vector.
	Copy struct {
		Src, N, Dst int
	}

	// Swap exchanges N elements of the work vector.
	Swap struct {
		N, X, Y int
	}

	// Scal multiplies N elements of the work vector by a scalar slot.
	Scal struct {
		N, Alpha, X int
	}

	// Axpy adds Alpha times the vector at X to the vector at Y.
	Axpy struct {
		N, Alpha, X, Y int
	}

	// Dot stores the inner product of two vectors in a scalar slot.
	Dot struct {
		Slot, N, X, Y int
	}

	// Asum stores the sum of the absolute values of a vector in a scalar slot.
	Asum struct {
		Slot, N, X int
	}

	// Iamax stores the index of the element of largest magnitude in a scalar slot.
	Iamax struct {
		Slot, N, X int
	}

	// Nrm2 stores the Euclidean norm of a vector in a scalar slot.
	Nrm2 struct {
		Slot, N, X int
	}

	// Bilin stores x'*A*y in a scalar slot where A is a sparse matrix.
	Bilin struct {
		Slot, A int
		Sp      *sparsity.Pattern
		X, Y    int
	}

	// Rank1 adds alpha*x*y' to the sparse matrix A.
	Rank1 struct {
		A           int
		Sp          *sparsity.Pattern
		Alpha, X, Y int
	}

	// Project copies a sparse matrix into another sparsity pattern.
	// W is a dense column of the size of the number of rows.
	Project struct {
		Src   int
		SpSrc *sparsity.Pattern
		Dst   int
		SpDst *sparsity.Pattern
		W     int
	}

	// Trans transposes a sparse matrix. IW indexes the integer work vector.
	Trans struct {
		Src   int
		SpSrc *sparsity.Pattern
		Dst   int
		SpDst *sparsity.Pattern
		IW    int
	}

	// Mtimes adds the sparse product x*y, or x'*y if Transpose is set, to z.
	Mtimes struct {
		X         int
		SpX       *sparsity.Pattern
		Y         int
		SpY       *sparsity.Pattern
		Z         int
		SpZ       *sparsity.Pattern
		W         int
		Transpose bool
	}

	// External calls a function defined outside of the generated code.
	// The function takes and returns real numbers.
	External struct {
		Slot int
		Name string
		Args []int
	}
)

var (
	_ Instruction = (*Input)(nil)
	_ Instruction = (*Output)(nil)
	_ Instruction = (*Const)(nil)
	_ Instruction = (*Apply)(nil)
	_ Instruction = (*Gather)(nil)
	_ Instruction = (*Scatter)(nil)
	_ Instruction = (*ConstArray)(nil)
	_ Instruction = (*ConstElem)(nil)
	_ Instruction = (*Fill)(nil)
	_ Instruction = (*Copy)(nil)
	_ Instruction = (*Swap)(nil)
	_ Instruction = (*Scal)(nil)
	_ Instruction = (*Axpy)(nil)
	_ Instruction = (*Dot)(nil)
	_ Instruction = (*Asum)(nil)
	_ Instruction = (*Iamax)(nil)
	_ Instruction = (*Nrm2)(nil)
	_ Instruction = (*Bilin)(nil)
	_ Instruction = (*Rank1)(nil)
	_ Instruction = (*Project)(nil)
	_ Instruction = (*Trans)(nil)
	_ Instruction = (*Mtimes)(nil)
	_ Instruction = (*External)(nil)
)

func (in *Input) check(f *Function) error {
	if in.Arg < 0 || in.Arg >= len(f.In) {
		return errors.Errorf("input %d out of range [0,%d)", in.Arg, len(f.In))
	}
	if nnz := f.In[in.Arg].NNZ(); in.NZ < 0 || in.NZ >= nnz {
		return errors.Errorf("nonzero %d of input %d out of range [0,%d)", in.NZ, in.Arg, nnz)
	}
	return f.checkSlot("result", in.Slot)
}

func (in *Input) emit(e *emitter) (string, error) {
	return fmt.Sprintf("%s = arg[%d] ? arg[%d][%d] : 0;", e.scalar(in.Slot), in.Arg, in.Arg, in.NZ), nil
}

func (out *Output) check(f *Function) error {
	if out.Res < 0 || out.Res >= len(f.Out) {
		return errors.Errorf("output %d out of range [0,%d)", out.Res, len(f.Out))
	}
	if nnz := f.Out[out.Res].NNZ(); out.NZ < 0 || out.NZ >= nnz {
		return errors.Errorf("nonzero %d of output %d out of range [0,%d)", out.NZ, out.Res, nnz)
	}
	return f.checkSlot("operand", out.Slot)
}

func (out *Output) emit(e *emitter) (string, error) {
	return fmt.Sprintf("if (res[%d]) res[%d][%d] = %s;", out.Res, out.Res, out.NZ, e.scalar(out.Slot)), nil
}

func (c *Const) check(f *Function) error {
	return f.checkSlot("result", c.Slot)
}

func (c *Const) emit(e *emitter) (string, error) {
	return fmt.Sprintf("%s = %s;", e.scalar(c.Slot), Literal(c.Value)), nil
}

func (a *Apply) check(f *Function) error {
	if !a.Op.Valid() || a.Op.IsLeaf() {
		return errors.Errorf("cannot apply operation %s", a.Op)
	}
	err := multierr.Append(f.checkSlot("result", a.Slot), f.checkSlot("operand", a.X))
	if a.Op.Arity() > 1 {
		err = multierr.Append(err, f.checkSlot("operand", a.Y))
	}
	return err
}

var helperAux = map[op.Helper]Aux{
	op.HelperSq:      AuxSq,
	op.HelperSign:    AuxSign,
	op.HelperErfinv:  AuxErfinv,
	op.HelperPrintMe: AuxPrintMe,
}

func (a *Apply) emit(e *emitter) (string, error) {
	if aux, ok := helperAux[a.Op.Rule().Helper]; ok {
		if err := e.m.AddAuxiliary(aux); err != nil {
			return "", err
		}
	}
	y := ""
	if a.Op.Arity() > 1 {
		y = e.scalar(a.Y)
	}
	return fmt.Sprintf("%s = %s;", e.scalar(a.Slot), a.Op.Emit(e.scalar(a.X), y)), nil
}

func (g *Gather) check(f *Function) error {
	return multierr.Append(f.checkSlot("result", g.Slot), f.checkWork("source", g.Offset, 1))
}

func (g *Gather) emit(e *emitter) (string, error) {
	return fmt.Sprintf("%s = w[%d];", e.scalar(g.Slot), g.Offset), nil
}

func (s *Scatter) check(f *Function) error {
	return multierr.Append(f.checkSlot("operand", s.Slot), f.checkWork("destination", s.Offset, 1))
}

func (s *Scatter) emit(e *emitter) (string, error) {
	return fmt.Sprintf("w[%d] = %s;", s.Offset, e.scalar(s.Slot)), nil
}

func (c *ConstArray) check(f *Function) error {
	return f.checkWork("destination", c.Offset, len(c.Values))
}

func (c *ConstArray) emit(e *emitter) (string, error) {
	if err := e.m.AddAuxiliary(AuxCopy); err != nil {
		return "", err
	}
	idx := e.m.AddConstant(c.Values)
	return fmt.Sprintf("copy(c%d, %d, %s);", idx, len(c.Values), e.work(c.Offset)), nil
}

func (c *ConstElem) check(f *Function) error {
	if c.Index < 0 || c.Index >= len(c.Values) {
		return errors.Errorf("index %d out of range [0,%d)", c.Index, len(c.Values))
	}
	return f.checkSlot("result", c.Slot)
}

func (c *ConstElem) emit(e *emitter) (string, error) {
	idx, err := e.m.GetConstant(c.Values)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s = c%d[%d];", e.scalar(c.Slot), idx, c.Index), nil
}

func (fl *Fill) check(f *Function) error {
	return f.checkWork("destination", fl.Offset, fl.N)
}

func (fl *Fill) emit(e *emitter) (string, error) {
	if err := e.m.AddAuxiliary(AuxFill); err != nil {
		return "", err
	}
	return fmt.Sprintf("fill(%s, %d, %s);", e.work(fl.Offset), fl.N, Literal(fl.Value)), nil
}

func (c *Copy) check(f *Function) error {
	return multierr.Append(f.checkWork("source", c.Src, c.N), f.checkWork("destination", c.Dst, c.N))
}

func (c *Copy) emit(e *emitter) (string, error) {
	if err := e.m.AddAuxiliary(AuxCopy); err != nil {
		return "", err
	}
	return fmt.Sprintf("copy(%s, %d, %s);", e.work(c.Src), c.N, e.work(c.Dst)), nil
}

func (s *Swap) check(f *Function) error {
	return multierr.Append(f.checkWork("x", s.X, s.N), f.checkWork("y", s.Y, s.N))
}

func (s *Swap) emit(e *emitter) (string, error) {
	if err := e.m.AddAuxiliary(AuxSwap); err != nil {
		return "", err
	}
	return fmt.Sprintf("swap(%d, %s, %s);", s.N, e.work(s.X), e.work(s.Y)), nil
}

func (s *Scal) check(f *Function) error {
	return multierr.Append(f.checkSlot("alpha", s.Alpha), f.checkWork("x", s.X, s.N))
}

func (s *Scal) emit(e *emitter) (string, error) {
	if err := e.m.AddAuxiliary(AuxScal); err != nil {
		return "", err
	}
	return fmt.Sprintf("scal(%d, %s, %s);", s.N, e.scalar(s.Alpha), e.work(s.X)), nil
}

func (a *Axpy) check(f *Function) error {
	return multierr.Combine(
		f.checkSlot("alpha", a.Alpha),
		f.checkWork("x", a.X, a.N),
		f.checkWork("y", a.Y, a.N),
	)
}

func (a *Axpy) emit(e *emitter) (string, error) {
	if err := e.m.AddAuxiliary(AuxAxpy); err != nil {
		return "", err
	}
	return fmt.Sprintf("axpy(%d, %s, %s, %s);", a.N, e.scalar(a.Alpha), e.work(a.X), e.work(a.Y)), nil
}

func (d *Dot) check(f *Function) error {
	return multierr.Combine(
		f.checkSlot("result", d.Slot),
		f.checkWork("x", d.X, d.N),
		f.checkWork("y", d.Y, d.N),
	)
}

func (d *Dot) emit(e *emitter) (string, error) {
	if err := e.m.AddAuxiliary(AuxDot); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s = dot(%d, %s, %s);", e.scalar(d.Slot), d.N, e.work(d.X), e.work(d.Y)), nil
}

// reduction emits a BLAS level 1 reduction of a vector into a scalar slot.
func reduction(e *emitter, aux Aux, slot, n, x int) (string, error) {
	if err := e.m.AddAuxiliary(aux); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s = %s(%d, %s);", e.scalar(slot), aux, n, e.work(x)), nil
}

func (a *Asum) check(f *Function) error {
	return multierr.Append(f.checkSlot("result", a.Slot), f.checkWork("x", a.X, a.N))
}

func (a *Asum) emit(e *emitter) (string, error) {
	return reduction(e, AuxAsum, a.Slot, a.N, a.X)
}

func (a *Iamax) check(f *Function) error {
	return multierr.Append(f.checkSlot("result", a.Slot), f.checkWork("x", a.X, a.N))
}

func (a *Iamax) emit(e *emitter) (string, error) {
	return reduction(e, AuxIamax, a.Slot, a.N, a.X)
}

func (a *Nrm2) check(f *Function) error {
	return multierr.Append(f.checkSlot("result", a.Slot), f.checkWork("x", a.X, a.N))
}

func (a *Nrm2) emit(e *emitter) (string, error) {
	return reduction(e, AuxNrm2, a.Slot, a.N, a.X)
}

func (b *Bilin) check(f *Function) error {
	if err := checkPattern("A", b.Sp); err != nil {
		return err
	}
	return multierr.Combine(
		f.checkSlot("result", b.Slot),
		f.checkWork("A", b.A, b.Sp.NNZ()),
		f.checkWork("x", b.X, b.Sp.Rows()),
		f.checkWork("y", b.Y, b.Sp.Cols()),
	)
}

func (b *Bilin) emit(e *emitter) (string, error) {
	if err := e.m.AddAuxiliary(AuxBilin); err != nil {
		return "", err
	}
	sp := e.m.spRef(b.Sp)
	return fmt.Sprintf("%s = bilin(%s, %s, %s, %s);", e.scalar(b.Slot), e.work(b.A), sp, e.work(b.X), e.work(b.Y)), nil
}

func (r *Rank1) check(f *Function) error {
	if err := checkPattern("A", r.Sp); err != nil {
		return err
	}
	return multierr.Combine(
		f.checkSlot("alpha", r.Alpha),
		f.checkWork("A", r.A, r.Sp.NNZ()),
		f.checkWork("x", r.X, r.Sp.Rows()),
		f.checkWork("y", r.Y, r.Sp.Cols()),
	)
}

func (r *Rank1) emit(e *emitter) (string, error) {
	if err := e.m.AddAuxiliary(AuxRank1); err != nil {
		return "", err
	}
	sp := e.m.spRef(r.Sp)
	return fmt.Sprintf("rank1(%s, %s, %s, %s, %s);", e.work(r.A), sp, e.scalar(r.Alpha), e.work(r.X), e.work(r.Y)), nil
}

func (p *Project) check(f *Function) error {
	if err := multierr.Append(checkPattern("source", p.SpSrc), checkPattern("destination", p.SpDst)); err != nil {
		return err
	}
	if p.SpSrc.Rows() != p.SpDst.Rows() || p.SpSrc.Cols() != p.SpDst.Cols() {
		return errors.Errorf("cannot project a %s matrix into a %s matrix", p.SpSrc, p.SpDst)
	}
	return multierr.Combine(
		f.checkWork("source", p.Src, p.SpSrc.NNZ()),
		f.checkWork("destination", p.Dst, p.SpDst.NNZ()),
		f.checkWork("temporary", p.W, p.SpSrc.Rows()),
	)
}

func (p *Project) emit(e *emitter) (string, error) {
	if p.SpSrc.Equal(p.SpDst) {
		cp := &Copy{Src: p.Src, N: p.SpSrc.NNZ(), Dst: p.Dst}
		return cp.emit(e)
	}
	if err := e.m.AddAuxiliary(AuxProject); err != nil {
		return "", err
	}
	return fmt.Sprintf("project(%s, %s, %s, %s, %s);",
		e.work(p.Src), e.m.spRef(p.SpSrc),
		e.work(p.Dst), e.m.spRef(p.SpDst),
		e.work(p.W)), nil
}

func (t *Trans) check(f *Function) error {
	if err := multierr.Append(checkPattern("source", t.SpSrc), checkPattern("destination", t.SpDst)); err != nil {
		return err
	}
	if tr, _ := t.SpSrc.Transpose(); !tr.Equal(t.SpDst) {
		return errors.Errorf("pattern %s is not the transpose of %s", t.SpDst, t.SpSrc)
	}
	return multierr.Combine(
		f.checkWork("source", t.Src, t.SpSrc.NNZ()),
		f.checkWork("destination", t.Dst, t.SpDst.NNZ()),
		f.checkIWork("temporary", t.IW, t.SpDst.Cols()),
	)
}

func (t *Trans) emit(e *emitter) (string, error) {
	if err := e.m.AddAuxiliary(AuxTrans); err != nil {
		return "", err
	}
	return fmt.Sprintf("trans(%s, %s, %s, %s, %s);",
		e.work(t.Src), e.m.spRef(t.SpSrc),
		e.work(t.Dst), e.m.spRef(t.SpDst),
		e.iwork(t.IW)), nil
}

func (m *Mtimes) check(f *Function) error {
	if err := multierr.Combine(checkPattern("x", m.SpX), checkPattern("y", m.SpY), checkPattern("z", m.SpZ)); err != nil {
		return err
	}
	xRows, xCols := m.SpX.Rows(), m.SpX.Cols()
	if m.Transpose {
		xRows, xCols = xCols, xRows
	}
	if xCols != m.SpY.Rows() || xRows != m.SpZ.Rows() || m.SpY.Cols() != m.SpZ.Cols() {
		return errors.Errorf("cannot multiply %s by %s into %s (transpose: %t)", m.SpX, m.SpY, m.SpZ, m.Transpose)
	}
	wSize := m.SpZ.Rows()
	if m.Transpose {
		wSize = m.SpY.Rows()
	}
	return multierr.Combine(
		f.checkWork("x", m.X, m.SpX.NNZ()),
		f.checkWork("y", m.Y, m.SpY.NNZ()),
		f.checkWork("z", m.Z, m.SpZ.NNZ()),
		f.checkWork("temporary", m.W, wSize),
	)
}

func (m *Mtimes) emit(e *emitter) (string, error) {
	if err := e.m.AddAuxiliary(AuxMtimes); err != nil {
		return "", err
	}
	tr := 0
	if m.Transpose {
		tr = 1
	}
	return fmt.Sprintf("mtimes(%s, %s, %s, %s, %s, %s, %s, %d);",
		e.work(m.X), e.m.spRef(m.SpX),
		e.work(m.Y), e.m.spRef(m.SpY),
		e.work(m.Z), e.m.spRef(m.SpZ),
		e.work(m.W), tr), nil
}

func (x *External) check(f *Function) error {
	if !identifier.MatchString(x.Name) {
		return errors.Errorf("external function name %q is not a valid identifier", x.Name)
	}
	err := f.checkSlot("result", x.Slot)
	for _, arg := range x.Args {
		err = multierr.Append(err, f.checkSlot("argument", arg))
	}
	return err
}

func (x *External) emit(e *emitter) (string, error) {
	params := make([]string, len(x.Args))
	args := make([]string, len(x.Args))
	for i, arg := range x.Args {
		params[i] = "real_t"
		args[i] = e.scalar(arg)
	}
	if len(params) == 0 {
		params = []string{"void"}
	}
	e.m.addExternal(fmt.Sprintf("real_t %s(%s);", x.Name, strings.Join(params, ", ")))
	return fmt.Sprintf("%s = %s(%s);", e.scalar(x.Slot), x.Name, strings.Join(args, ", ")), nil
}
