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
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/gx-org/sx/base/ordered"
	"github.com/gx-org/sx/build/fmterr"
	"github.com/gx-org/sx/build/sparsity"
	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
	"golang.org/x/mod/module"
)

type include struct {
	file  string
	ifdef string
}

// pool of constant arrays deduplicated by content.
// Arrays are hashed with xxhash and compared bit by bit within a bucket.
type pool[T int | float64] struct {
	bits    func(T) uint64
	arrays  [][]T
	buckets map[uint64][]int
}

func newPool[T int | float64](bits func(T) uint64) *pool[T] {
	return &pool[T]{bits: bits, buckets: make(map[uint64][]int)}
}

func (p *pool[T]) hash(v []T) uint64 {
	d := xxhash.New()
	var buf [8]byte
	for _, x := range v {
		binary.LittleEndian.PutUint64(buf[:], p.bits(x))
		d.Write(buf[:])
	}
	return d.Sum64()
}

func (p *pool[T]) equal(a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if p.bits(a[i]) != p.bits(b[i]) {
			return false
		}
	}
	return true
}

func (p *pool[T]) find(v []T) (int, uint64, bool) {
	h := p.hash(v)
	for _, i := range p.buckets[h] {
		if p.equal(p.arrays[i], v) {
			return i, h, true
		}
	}
	return -1, h, false
}

// add returns the index of an array in the pool and true if it was not in the pool before.
func (p *pool[T]) add(v []T) (int, bool) {
	i, h, ok := p.find(v)
	if ok {
		return i, false
	}
	i = len(p.arrays)
	p.arrays = append(p.arrays, append([]T(nil), v...))
	p.buckets[h] = append(p.buckets[h], i)
	return i, true
}

// Module accumulates the generated code of a set of functions.
// A module is not safe for concurrent use.
type Module struct {
	opts   *Options
	name   string
	prefix string
	log    hclog.Logger

	includes  *ordered.Set[include]
	aux       *ordered.Set[Aux]
	auxSrc    strings.Builder
	ints      *pool[int]
	reals     *pool[float64]
	sps       map[*sparsity.Pattern]int
	externals map[string]bool
	body      strings.Builder
	header    strings.Builder
	exposed   []*Function
}

// NewModule returns an empty module. The name is used for the generated files.
func NewModule(opts *Options, name string) (*Module, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if !identifier.MatchString(name) {
		return nil, errors.Errorf("module name %q is not a valid identifier", name)
	}
	if err := module.CheckFilePath(name + opts.sourceSuffix()); err != nil {
		return nil, errors.Wrapf(err, "invalid module name %q", name)
	}
	m := &Module{
		opts:      opts,
		name:      name,
		prefix:    opts.Prefix,
		log:       opts.logger().Named(name),
		includes:  ordered.NewSet[include](),
		aux:       ordered.NewSet[Aux](),
		ints:      newPool(func(i int) uint64 { return uint64(i) }),
		reals:     newPool(math.Float64bits),
		sps:       make(map[*sparsity.Pattern]int),
		externals: make(map[string]bool),
	}
	if m.prefix == "" {
		m.prefix = name
	}
	if opts.Main {
		m.addInclude("stdio.h", "")
	}
	if opts.Mex || opts.Main {
		m.addInclude("string.h", "")
	}
	if opts.Mex {
		m.addInclude("mex.h", "MATLAB_MEX_FILE")
	}
	m.addInclude("math.h", "")
	return m, nil
}

// Name of the module.
func (m *Module) Name() string {
	return m.name
}

func (m *Module) addInclude(file, ifdef string) {
	if m.includes.Add(include{file: file, ifdef: ifdef}) {
		m.log.Debug("include", "file", file)
	}
}

func (m *Module) addExternal(decl string) {
	m.externals[decl] = true
}

// AddAuxiliary registers an auxiliary routine and its dependencies.
// The routine is defined once, after its dependencies, regardless of
// how many times it is requested.
func (m *Module) AddAuxiliary(a Aux) error {
	if m.aux.Has(a) {
		return nil
	}
	def, ok := auxDefs[a]
	if !ok {
		return fmterr.Internalf("unknown auxiliary routine %s", a)
	}
	for _, dep := range def.deps {
		if err := m.AddAuxiliary(dep); err != nil {
			return err
		}
	}
	for _, incl := range def.incl {
		m.addInclude(incl, "")
	}
	src, err := a.source()
	if err != nil {
		return err
	}
	m.aux.Add(a)
	m.auxSrc.WriteString(src)
	m.auxSrc.WriteString("\n")
	m.log.Debug("auxiliary", "name", a.String())
	return nil
}

// AddSparsity interns a sparsity pattern and returns its index in the integer constant table.
// Patterns are interned by identity: registering the same pattern again returns the same index.
func (m *Module) AddSparsity(sp *sparsity.Pattern) int {
	if i, ok := m.sps[sp]; ok {
		return i
	}
	i, added := m.ints.add(sp.Compress())
	m.sps[sp] = i
	m.log.Debug("sparsity", "index", i, "pattern", sp.String(), "new", added)
	return i
}

// GetSparsity returns the index of a pattern previously registered with AddSparsity.
func (m *Module) GetSparsity(sp *sparsity.Pattern) (int, error) {
	i, ok := m.sps[sp]
	if !ok {
		return -1, fmterr.Lookupf("sparsity pattern", "pattern %s not registered in module %s", sp, m.name)
	}
	return i, nil
}

func (m *Module) spRef(sp *sparsity.Pattern) string {
	return fmt.Sprintf("s%d", m.AddSparsity(sp))
}

// AddConstant interns a real constant array and returns its index.
// Arrays are equal if their elements have the same bit pattern.
func (m *Module) AddConstant(v []float64) int {
	i, added := m.reals.add(v)
	if added {
		m.log.Debug("constant", "index", i, "size", len(v))
	}
	return i
}

// GetConstant returns the index of an array previously registered with AddConstant.
func (m *Module) GetConstant(v []float64) (int, error) {
	i, _, ok := m.reals.find(v)
	if !ok {
		return -1, fmterr.Lookupf("constant", "constant array %v not registered in module %s", v, m.name)
	}
	return i, nil
}

// emitter writes the statements of one function.
type emitter struct {
	m *Module
	f *Function
}

func (e *emitter) scalar(i int) string {
	if e.m.opts.CodegenScalars {
		return fmt.Sprintf("w[%d]", e.f.Work+i)
	}
	return fmt.Sprintf("a%d", i)
}

func offset(base string, off int) string {
	if off == 0 {
		return base
	}
	return fmt.Sprintf("%s+%d", base, off)
}

func (e *emitter) work(off int) string {
	return offset("w", off)
}

func (e *emitter) iwork(off int) string {
	return offset("iw", off)
}

// Literal formats a real number as a C literal.
func Literal(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NAN"
	case math.IsInf(v, 1):
		return "INFINITY"
	case math.IsInf(v, -1):
		return "-INFINITY"
	case v == 0 && math.Signbit(v):
		return "-0."
	case v == math.Trunc(v) && math.Abs(v) <= math.MaxInt32:
		return fmt.Sprintf("%d.", int64(v))
	}
	return fmt.Sprintf("%.16e", v)
}
