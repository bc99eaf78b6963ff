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
	"path/filepath"
	"slices"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"golang.org/x/exp/maps"
)

const banner = "/* This file was automatically generated by sx */\n"

const (
	externCOpen  = "#ifdef __cplusplus\nextern \"C\" {\n#endif\n\n"
	externCClose = "#ifdef __cplusplus\n} /* extern \"C\" */\n#endif\n"
)

// Generated is the generated code of a module.
type Generated struct {
	// Name of the module.
	Name string
	// Source is the generated C (or C++) code.
	Source string
	// Header declares the exposed functions if requested.
	Header string

	suffix string
}

// SourceFile returns the name of the source file.
func (o *Generated) SourceFile() string {
	return o.Name + o.suffix
}

// HeaderFile returns the name of the header file.
func (o *Generated) HeaderFile() string {
	return o.Name + ".h"
}

// Write the source file and the header, if any, in a directory.
// The paths of the written files are returned.
func (o *Generated) Write(fs afero.Fs, dir string) ([]string, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "cannot create directory %s", dir)
	}
	files := []struct{ name, content string }{{o.SourceFile(), o.Source}}
	if o.Header != "" {
		files = append(files, struct{ name, content string }{o.HeaderFile(), o.Header})
	}
	var paths []string
	for _, file := range files {
		path := filepath.Join(dir, file.name)
		if err := afero.WriteFile(fs, path, []byte(file.content), 0o644); err != nil {
			return paths, errors.Wrapf(err, "cannot write %s", path)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// Generate the code of a set of functions in a new module.
func Generate(opts *Options, name string, funcs ...*Function) (*Generated, error) {
	m, err := NewModule(opts, name)
	if err != nil {
		return nil, err
	}
	for _, f := range funcs {
		if err := m.Add(f); err != nil {
			return nil, err
		}
	}
	return m.Generate()
}

func (m *Module) realTypeDef(b *strings.Builder) {
	fmt.Fprintf(b, "#ifndef real_t\n#define real_t %s\n#endif /* real_t */\n\n", m.opts.RealT)
}

// Generate assembles the code of all the functions added to the module.
func (m *Module) Generate() (*Generated, error) {
	if len(m.exposed) == 0 {
		return nil, errors.Errorf("module %s has no function", m.name)
	}
	b := &strings.Builder{}
	b.WriteString(banner)
	if !m.opts.CPP {
		b.WriteString(externCOpen)
	}
	b.WriteString("#ifdef CODEGEN_PREFIX\n")
	b.WriteString("  #define NAMESPACE_CONCAT(NS, ID) NAMESPACE_CONCAT_(NS, ID)\n")
	b.WriteString("  #define NAMESPACE_CONCAT_(NS, ID) NS ## ID\n")
	b.WriteString("  #define SX_PREFIX(ID) NAMESPACE_CONCAT(CODEGEN_PREFIX, ID)\n")
	b.WriteString("#else\n")
	fmt.Fprintf(b, "  #define SX_PREFIX(ID) %s_ ## ID\n", m.prefix)
	b.WriteString("#endif\n\n")

	for incl := range m.includes.All() {
		if incl.ifdef != "" {
			fmt.Fprintf(b, "#ifdef %s\n#include <%s>\n#endif\n", incl.ifdef, incl.file)
			continue
		}
		fmt.Fprintf(b, "#include <%s>\n", incl.file)
	}
	b.WriteString("\n")

	m.realTypeDef(b)
	if m.opts.CPP {
		b.WriteString("#define to_double(x) static_cast<double>(x)\n#define to_int(x) static_cast<int>(x)\n\n")
	} else {
		b.WriteString("#define to_double(x) (double) x\n#define to_int(x) (int) x\n\n")
	}

	if len(m.externals) > 0 {
		b.WriteString("/* External functions */\n")
		decls := maps.Keys(m.externals)
		slices.Sort(decls)
		for _, decl := range decls {
			if m.opts.CPP {
				decl = `extern "C" ` + decl
			}
			b.WriteString(decl + "\n")
		}
		b.WriteString("\n")
	}

	if !m.opts.CPP {
		b.WriteString("/* Pre-c99 compatibility */\n")
		b.WriteString("#if __STDC_VERSION__ < 199901L\n")
		b.WriteString("#define fmin SX_PREFIX(fmin)\n")
		b.WriteString("real_t fmin(real_t x, real_t y) { return x<y ? x : y;}\n")
		b.WriteString("#define fmax SX_PREFIX(fmax)\n")
		b.WriteString("real_t fmax(real_t x, real_t y) { return x>y ? x : y;}\n")
		b.WriteString("#endif\n\n")
	}

	if m.opts.Main || m.aux.Has(AuxPrintMe) {
		if m.opts.Mex {
			b.WriteString("#ifdef MATLAB_MEX_FILE\n#define PRINTF mexPrintf\n#else\n#define PRINTF printf\n#endif\n\n")
		} else {
			b.WriteString("#define PRINTF printf\n\n")
		}
	}

	for i, v := range m.ints.arrays {
		elems := make([]string, len(v))
		for j, x := range v {
			elems[j] = fmt.Sprint(x)
		}
		fmt.Fprintf(b, "static const int SX_PREFIX(s%d)[] = {%s};\n#define s%d SX_PREFIX(s%d)\n\n", i, strings.Join(elems, ", "), i, i)
	}
	for i, v := range m.reals.arrays {
		elems := make([]string, len(v))
		for j, x := range v {
			elems[j] = Literal(x)
		}
		fmt.Fprintf(b, "static const real_t SX_PREFIX(c%d)[] = {%s};\n#define c%d SX_PREFIX(c%d)\n\n", i, strings.Join(elems, ", "), i, i)
	}

	b.WriteString(m.auxSrc.String())
	if m.aux.Size() > 0 {
		b.WriteString("\n")
	}
	b.WriteString(m.body.String())
	if m.opts.Mex {
		m.mexDispatch(b)
	}
	if m.opts.Main {
		m.mainDispatch(b)
		b.WriteString("\n")
	}
	if !m.opts.CPP {
		b.WriteString(externCClose)
	}

	out := &Generated{Name: m.name, Source: b.String(), suffix: m.opts.sourceSuffix()}
	if m.opts.WithHeader {
		h := &strings.Builder{}
		h.WriteString(banner)
		h.WriteString(externCOpen)
		m.realTypeDef(h)
		h.WriteString(m.header.String())
		h.WriteString("\n")
		h.WriteString(externCClose)
		out.Header = h.String()
	}
	return out, nil
}
