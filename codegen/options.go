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
	"regexp"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Options of the code generator.
type Options struct {
	// Prefix of the internal symbols when CODEGEN_PREFIX is not defined.
	// The module name is used if empty.
	Prefix string `yaml:"prefix"`
	// Mex generates a gateway for MATLAB's mex interface.
	Mex bool `yaml:"mex"`
	// Main generates a main function dispatching on the first command line argument.
	Main bool `yaml:"main"`
	// CPP generates C++ instead of C.
	CPP bool `yaml:"cpp"`
	// RealT is the floating point type of the generated code.
	RealT string `yaml:"real_t"`
	// CodegenScalars stores scalar temporaries in the work vector instead of local variables.
	CodegenScalars bool `yaml:"codegen_scalars"`
	// WithHeader generates a header file declaring the exposed functions.
	WithHeader bool `yaml:"with_header"`
	// Dir is the directory where files are written.
	Dir string `yaml:"dir"`

	// Fs is the filesystem where files are written.
	Fs afero.Fs `yaml:"-"`
	// Logger receives debug records of the generation.
	Logger hclog.Logger `yaml:"-"`
}

// DefaultOptions returns the default options of the code generator.
func DefaultOptions() *Options {
	return &Options{
		RealT: "double",
		Dir:   ".",
	}
}

// LoadOptions reads options from a YAML document.
// Fields that are not set keep their default value and unknown fields are rejected.
func LoadOptions(r io.Reader) (*Options, error) {
	opts := DefaultOptions()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(opts); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "cannot decode code generator options")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

var (
	identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	realType   = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*( [A-Za-z_][A-Za-z0-9_]*)*$`)
)

// Validate checks the options.
func (o *Options) Validate() error {
	var err error
	if o.Prefix != "" && !identifier.MatchString(o.Prefix) {
		err = multierr.Append(err, errors.Errorf("prefix %q is not a valid identifier", o.Prefix))
	}
	if !realType.MatchString(o.RealT) {
		err = multierr.Append(err, errors.Errorf("real type %q is not a valid C type", o.RealT))
	}
	if o.Dir == "" {
		err = multierr.Append(err, errors.Errorf("output directory not set"))
	}
	return err
}

func (o *Options) fs() afero.Fs {
	if o.Fs == nil {
		return afero.NewOsFs()
	}
	return o.Fs
}

func (o *Options) logger() hclog.Logger {
	if o.Logger == nil {
		return hclog.NewNullLogger()
	}
	return o.Logger
}

func (o *Options) sourceSuffix() string {
	if o.CPP {
		return ".cpp"
	}
	return ".c"
}
