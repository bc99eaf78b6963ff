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
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/gx-org/sx/codegen"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestLoadOptions(t *testing.T) {
	tests := []struct {
		src  string
		want *codegen.Options
	}{
		{
			src:  "",
			want: codegen.DefaultOptions(),
		},
		{
			src: "prefix: lib\nmex: true\nmain: true\nreal_t: float\ndir: out\n",
			want: &codegen.Options{
				Prefix: "lib",
				Mex:    true,
				Main:   true,
				RealT:  "float",
				Dir:    "out",
			},
		},
		{
			src: "cpp: true\ncodegen_scalars: true\nwith_header: true\nreal_t: long double\n",
			want: &codegen.Options{
				CPP:            true,
				CodegenScalars: true,
				WithHeader:     true,
				RealT:          "long double",
				Dir:            ".",
			},
		},
	}
	for i, test := range tests {
		got, err := codegen.LoadOptions(strings.NewReader(test.src))
		if err != nil {
			t.Errorf("test %d: %v", i, err)
			continue
		}
		if diff := cmp.Diff(test.want, got, cmpopts.IgnoreFields(codegen.Options{}, "Fs", "Logger")); diff != "" {
			t.Errorf("test %d: unexpected options (-want +got):\n%s", i, diff)
		}
	}
}

func TestLoadOptionsErrors(t *testing.T) {
	_, err := codegen.LoadOptions(strings.NewReader("verbose: true\n"))
	require.ErrorContains(t, err, "field verbose not found")

	_, err = codegen.LoadOptions(strings.NewReader("prefix: 2lib\nreal_t: \"double*\"\ndir: \"\"\n"))
	require.Error(t, err)
	require.Len(t, multierr.Errors(err), 3)
}
