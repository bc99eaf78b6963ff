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

	"github.com/gx-org/sx/build/fmterr"
	"github.com/pkg/errors"
)

// declare returns a declaration of an exposed symbol.
// The declaration is also added to the header.
func (m *Module) declare(decl string) string {
	if m.opts.CPP {
		decl = `extern "C" ` + decl
	}
	m.header.WriteString(decl + ";\n")
	return decl
}

// Add generates the code of a function and exposes it.
func (m *Module) Add(f *Function) error {
	if err := f.Validate(); err != nil {
		return err
	}
	for _, g := range m.exposed {
		if g.Name == f.Name {
			return errors.Errorf("function %s already defined in module %s", f.Name, m.name)
		}
	}
	e := &emitter{m: m, f: f}
	var sin, sout []int
	for _, sp := range f.In {
		sin = append(sin, m.AddSparsity(sp))
	}
	for _, sp := range f.Out {
		sout = append(sout, m.AddSparsity(sp))
	}
	stmts := make([]string, len(f.Body))
	for i, instr := range f.Body {
		stmt, err := instr.emit(e)
		if err != nil {
			return fmterr.PrefixWith("function %s: instruction %d: ", f.Name, i)(err)
		}
		stmts[i] = stmt
	}
	m.log.Debug("function", "name", f.Name, "instructions", len(f.Body))

	b := &m.body
	fmt.Fprintf(b, "/* %s */\n", f.Name)
	fmt.Fprintf(b, "%s {\n", m.declare(fmt.Sprintf("int %s(const real_t** arg, real_t** res, int* iw, real_t* w, int mem)", f.Name)))
	if !m.opts.CodegenScalars && f.Scalars > 0 {
		locals := make([]string, f.Scalars)
		for i := range locals {
			locals[i] = e.scalar(i)
		}
		fmt.Fprintf(b, "  real_t %s;\n", strings.Join(locals, ", "))
	}
	for _, stmt := range stmts {
		fmt.Fprintf(b, "  %s\n", stmt)
	}
	b.WriteString("  return 0;\n}\n\n")

	fmt.Fprintf(b, "%s { return %d;}\n\n", m.declare(fmt.Sprintf("int %s_n_in(void)", f.Name)), len(f.In))
	fmt.Fprintf(b, "%s { return %d;}\n\n", m.declare(fmt.Sprintf("int %s_n_out(void)", f.Name)), len(f.Out))
	m.sparsitySwitch(f.Name+"_sparsity_in", sin)
	m.sparsitySwitch(f.Name+"_sparsity_out", sout)

	fmt.Fprintf(b, "%s {\n", m.declare(fmt.Sprintf("int %s_work(int *sz_arg, int* sz_res, int *sz_iw, int *sz_w)", f.Name)))
	fmt.Fprintf(b, "  if (sz_arg) *sz_arg = %d;\n", len(f.In))
	fmt.Fprintf(b, "  if (sz_res) *sz_res = %d;\n", len(f.Out))
	fmt.Fprintf(b, "  if (sz_iw) *sz_iw = %d;\n", f.IWork)
	fmt.Fprintf(b, "  if (sz_w) *sz_w = %d;\n", m.workSize(f))
	b.WriteString("  return 0;\n}\n\n")

	if m.opts.Mex {
		if err := m.mexGateway(f, sin, sout); err != nil {
			return err
		}
	}
	if m.opts.Main {
		m.mainEntry(f)
	}
	m.exposed = append(m.exposed, f)
	return nil
}

// workSize returns the size of the real work vector of a function.
func (m *Module) workSize(f *Function) int {
	if m.opts.CodegenScalars {
		return f.Work + f.Scalars
	}
	return f.Work
}

func (m *Module) sparsitySwitch(name string, indices []int) {
	b := &m.body
	fmt.Fprintf(b, "%s {\n", m.declare(fmt.Sprintf("const int* %s(int i)", name)))
	b.WriteString("  switch (i) {\n")
	for i, idx := range indices {
		fmt.Fprintf(b, "    case %d: return s%d;\n", i, idx)
	}
	b.WriteString("    default: return 0;\n  }\n}\n\n")
}
