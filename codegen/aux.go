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
	"embed"
	"fmt"
	"path"

	"github.com/gx-org/sx/build/fmterr"
	"github.com/pkg/errors"
)

// Aux is an auxiliary routine of the generated code.
type Aux int

// Auxiliary routines.
const (
	AuxCopy Aux = iota
	AuxSwap
	AuxScal
	AuxAxpy
	AuxDot
	AuxBilin
	AuxRank1
	AuxAsum
	AuxIamax
	AuxNrm2
	AuxFill
	AuxMtimes
	AuxSq
	AuxSign
	AuxProject
	AuxTrans
	AuxToMex
	AuxFromMex
	AuxErfinv
	AuxPrintMe
	// auxSparsity defines the macros used to walk compressed sparsity patterns.
	auxSparsity
)

//go:embed runtime/*.c
var runtimeFS embed.FS

type auxDef struct {
	name string
	deps []Aux
	incl []string
}

var auxDefs = map[Aux]auxDef{
	AuxCopy:     {name: "copy"},
	AuxSwap:     {name: "swap"},
	AuxScal:     {name: "scal"},
	AuxAxpy:     {name: "axpy"},
	AuxDot:      {name: "dot"},
	AuxBilin:    {name: "bilin", deps: []Aux{auxSparsity}},
	AuxRank1:    {name: "rank1", deps: []Aux{auxSparsity}},
	AuxAsum:     {name: "asum"},
	AuxIamax:    {name: "iamax"},
	AuxNrm2:     {name: "nrm2"},
	AuxFill:     {name: "fill"},
	AuxMtimes:   {name: "mtimes", deps: []Aux{auxSparsity}},
	AuxSq:       {name: "sq"},
	AuxSign:     {name: "sign"},
	AuxProject:  {name: "project", deps: []Aux{auxSparsity}},
	AuxTrans:    {name: "trans", deps: []Aux{auxSparsity}},
	AuxToMex:    {name: "to_mex", deps: []Aux{auxSparsity}},
	AuxFromMex:  {name: "from_mex", deps: []Aux{auxSparsity, AuxFill}},
	AuxErfinv:   {name: "erfinv"},
	AuxPrintMe:  {name: "printme", incl: []string{"stdio.h"}},
	auxSparsity: {name: "sparsity"},
}

func (a Aux) String() string {
	def, ok := auxDefs[a]
	if !ok {
		return fmt.Sprintf("Aux(%d)", int(a))
	}
	return def.name
}

// source returns the C definition of an auxiliary routine.
func (a Aux) source() (string, error) {
	src, err := runtimeFS.ReadFile(path.Join("runtime", a.String()+".c"))
	if err != nil {
		return "", fmterr.Internal(errors.Wrapf(err, "no source for auxiliary routine %s", a))
	}
	return string(src), nil
}
