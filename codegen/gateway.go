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
)

// frame is the layout of the stack work vector of a gateway:
// input nonzeros, output nonzeros, a dense temporary, then the function work vector.
type frame struct {
	in, out []int
	tmp     int
	work    int
	size    int
	iwork   int
}

func (m *Module) frame(f *Function) frame {
	var fr frame
	off, dense := 0, 0
	for _, sp := range f.In {
		fr.in = append(fr.in, off)
		off += sp.NNZ()
		dense = max(dense, sp.Numel())
	}
	for _, sp := range f.Out {
		fr.out = append(fr.out, off)
		off += sp.NNZ()
	}
	fr.tmp = off
	fr.work = off + dense
	fr.size = max(1, fr.work+m.workSize(f))
	fr.iwork = max(1, f.IWork)
	return fr
}

func (m *Module) mexGateway(f *Function, sin, sout []int) error {
	for _, aux := range []Aux{AuxFill, AuxFromMex, AuxToMex} {
		if err := m.AddAuxiliary(aux); err != nil {
			return err
		}
	}
	fr := m.frame(f)
	nin, nout := len(f.In), len(f.Out)
	b := &m.body
	b.WriteString("#ifdef MATLAB_MEX_FILE\n")
	fmt.Fprintf(b, "void mex_%s(int resc, mxArray *resv[], int argc, const mxArray *argv[]) {\n", f.Name)
	fmt.Fprintf(b, "  int iw[%d];\n", fr.iwork)
	fmt.Fprintf(b, "  real_t w[%d];\n", fr.size)
	fmt.Fprintf(b, "  const real_t* arg[%d];\n", max(1, nin))
	fmt.Fprintf(b, "  real_t* res[%d];\n", max(1, nout))
	fmt.Fprintf(b, "  if (argc>%d) mexErrMsgIdAndTxt(\"SX:RuntimeError\", \"Evaluation of \\\"%s\\\" failed. Too many input arguments (%%d, max %d)\", argc);\n", nin, f.Name, nin)
	fmt.Fprintf(b, "  if (resc>%d) mexErrMsgIdAndTxt(\"SX:RuntimeError\", \"Evaluation of \\\"%s\\\" failed. Too many output arguments (%%d, max %d)\", resc);\n", nout, f.Name, nout)
	for i := range f.In {
		fmt.Fprintf(b, "  if (--argc>=0) arg[%d] = from_mex(argv[%d], %s, s%d, w+%d);\n", i, i, offset("w", fr.in[i]), sin[i], fr.tmp)
		fmt.Fprintf(b, "  else arg[%d] = 0;\n", i)
	}
	if nnz := f.NumNonzerosOut(); nnz > 0 {
		fmt.Fprintf(b, "  fill(%s, %d, 0);\n", offset("w", fr.out[0]), nnz)
	}
	for i := range f.Out {
		fmt.Fprintf(b, "  res[%d] = %s;\n", i, offset("w", fr.out[i]))
	}
	fmt.Fprintf(b, "  if (%s(arg, res, iw, %s, 0)) mexErrMsgIdAndTxt(\"SX:RuntimeError\", \"Evaluation of \\\"%s\\\" failed.\");\n", f.Name, offset("w", fr.work), f.Name)
	if nout > 0 {
		b.WriteString("  if (resc==0) resc = 1;\n")
	}
	for i := range f.Out {
		fmt.Fprintf(b, "  if (--resc>=0) resv[%d] = to_mex(s%d, res[%d]);\n", i, sout[i], i)
	}
	b.WriteString("}\n#endif\n\n")
	return nil
}

func (m *Module) mainEntry(f *Function) {
	fr := m.frame(f)
	b := &m.body
	fmt.Fprintf(b, "int main_%s(int argc, char* argv[]) {\n", f.Name)
	b.WriteString("  int j, flag;\n")
	b.WriteString("  double v;\n")
	b.WriteString("  real_t* a;\n")
	b.WriteString("  const real_t* r;\n")
	fmt.Fprintf(b, "  int iw[%d];\n", fr.iwork)
	fmt.Fprintf(b, "  real_t w[%d];\n", fr.size)
	fmt.Fprintf(b, "  const real_t* arg[%d];\n", max(1, len(f.In)))
	fmt.Fprintf(b, "  real_t* res[%d];\n", max(1, len(f.Out)))
	for i := range f.In {
		fmt.Fprintf(b, "  arg[%d] = %s;\n", i, offset("w", fr.in[i]))
	}
	for i := range f.Out {
		fmt.Fprintf(b, "  res[%d] = %s;\n", i, offset("w", fr.out[i]))
	}
	b.WriteString("  a = w;\n")
	fmt.Fprintf(b, "  for (j=0; j<%d; ++j) {\n", f.NumNonzerosIn())
	b.WriteString("    if (scanf(\"%lg\", &v)<=0) return 2;\n")
	b.WriteString("    *a++ = v;\n  }\n")
	fmt.Fprintf(b, "  flag = %s(arg, res, iw, %s, 0);\n", f.Name, offset("w", fr.work))
	b.WriteString("  if (flag) return flag;\n")
	fmt.Fprintf(b, "  r = %s;\n", offset("w", f.NumNonzerosIn()))
	fmt.Fprintf(b, "  for (j=0; j<%d; ++j) PRINTF(\"%%.16e \", to_double(*r++));\n", f.NumNonzerosOut())
	b.WriteString("  PRINTF(\"\\n\");\n")
	b.WriteString("  return 0;\n}\n\n")
}

func quotedNames(funcs []*Function) string {
	names := make([]string, len(funcs))
	for i, f := range funcs {
		names[i] = "'" + f.Name + "'"
	}
	return strings.Join(names, " ")
}

// mexDispatch calls the gateway named by the first argument.
// Without a string first argument, the first function is called.
func (m *Module) mexDispatch(b *strings.Builder) {
	size := 1
	for _, f := range m.exposed {
		size = max(size, len(f.Name)+1)
	}
	b.WriteString("#ifdef MATLAB_MEX_FILE\n")
	b.WriteString("void mexFunction(int resc, mxArray *resv[], int argc, const mxArray *argv[]) {\n")
	fmt.Fprintf(b, "  char buf[%d];\n", size)
	b.WriteString("  int buf_ok = argc > 0 && !mxGetString(*argv, buf, sizeof(buf));\n")
	b.WriteString("  if (!buf_ok) {\n")
	fmt.Fprintf(b, "    mex_%s(resc, resv, argc, argv);\n", m.exposed[0].Name)
	b.WriteString("    return;\n")
	for _, f := range m.exposed {
		fmt.Fprintf(b, "  } else if (strcmp(buf, \"%s\")==0) {\n", f.Name)
		fmt.Fprintf(b, "    mex_%s(resc, resv, argc-1, argv+1);\n", f.Name)
		b.WriteString("    return;\n")
	}
	b.WriteString("  }\n")
	fmt.Fprintf(b, "  mexErrMsgTxt(\"First input should be a command string. Possible values: %s\");\n", quotedNames(m.exposed))
	b.WriteString("}\n#endif\n\n")
}

// mainDispatch calls the entry point named by the first command line argument.
func (m *Module) mainDispatch(b *strings.Builder) {
	b.WriteString("int main(int argc, char* argv[]) {\n")
	b.WriteString("  if (argc<2) {\n")
	b.WriteString("    /* name error */\n")
	for _, f := range m.exposed {
		fmt.Fprintf(b, "  } else if (strcmp(argv[1], \"%s\")==0) {\n", f.Name)
		fmt.Fprintf(b, "    return main_%s(argc-2, argv+2);\n", f.Name)
	}
	b.WriteString("  }\n")
	fmt.Fprintf(b, "  fprintf(stderr, \"First input should be a command string. Possible values: %s\\n\");\n", quotedNames(m.exposed))
	b.WriteString("  return 1;\n}\n")
}
