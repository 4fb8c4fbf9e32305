package config

import (
	"reflect"
	"testing"

	"github.com/nao1215/autoarchiver/internal/module"
)

// TestMergeTrees tests layering of configuration trees.
func TestMergeTrees(t *testing.T) {
	t.Parallel()

	base := map[string]any{
		"scalar": "base",
		"list":   []any{"a", "b"},
		"nested": map[string]any{"keep": 1, "override": 1},
		"only":   "base",
	}
	over := map[string]any{
		"scalar": "over",
		"list":   []string{"b", "c"},
		"nested": map[string]any{"override": 2, "added": 3},
		"new":    true,
	}

	got := MergeTrees(base, over)
	want := map[string]any{
		"scalar": "over",
		"list":   []any{"a", "b", "c"},
		"nested": map[string]any{"keep": 1, "override": 2, "added": 3},
		"only":   "base",
		"new":    true,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MergeTrees() = %v, want %v", got, want)
	}

	if base["scalar"] != "base" || len(base["nested"].(map[string]any)) != 2 {
		t.Error("base was modified")
	}
}

// TestCoerce tests the option converters.
func TestCoerce(t *testing.T) {
	t.Parallel()

	choices := []string{"SHA-256", "SHA3-512"}
	tests := []struct {
		name    string
		spec    module.OptionSpec
		in      any
		want    any
		wantErr bool
	}{
		{name: "string passthrough", spec: module.OptionSpec{}, in: "x", want: "x"},
		{name: "string from int", spec: module.OptionSpec{}, in: 5, want: "5"},
		{name: "string rejects list", spec: module.OptionSpec{}, in: []any{"a"}, wantErr: true},
		{name: "int from string", spec: module.OptionSpec{Type: module.TypeInt}, in: " 42 ", want: 42},
		{name: "int from float", spec: module.OptionSpec{Type: module.TypeInt}, in: 3.0, want: 3},
		{name: "int rejects fraction", spec: module.OptionSpec{Type: module.TypeInt}, in: 3.5, wantErr: true},
		{name: "int rejects text", spec: module.OptionSpec{Type: module.TypeInt}, in: "ten", wantErr: true},
		{name: "bool yes", spec: module.OptionSpec{Type: module.TypeBool}, in: "yes", want: true},
		{name: "bool false", spec: module.OptionSpec{Type: module.TypeBool}, in: "False", want: false},
		{name: "bool rejects text", spec: module.OptionSpec{Type: module.TypeBool}, in: "maybe", wantErr: true},
		{name: "csv splits and dedupes", spec: module.OptionSpec{Type: module.TypeCSV}, in: "a, b,,a", want: []string{"a", "b"}},
		{name: "csv from list", spec: module.OptionSpec{Type: module.TypeCSV}, in: []any{"x", "y", "x"}, want: []string{"x", "y"}},
		{name: "json from string", spec: module.OptionSpec{Type: module.TypeJSON}, in: `{"a":[1]}`, want: map[string]any{"a": []any{float64(1)}}},
		{name: "json passthrough", spec: module.OptionSpec{Type: module.TypeJSON}, in: map[string]any{"a": 1}, want: map[string]any{"a": 1}},
		{name: "json rejects garbage", spec: module.OptionSpec{Type: module.TypeJSON}, in: "{", wantErr: true},
		{name: "choice accepted", spec: module.OptionSpec{Choices: choices}, in: "SHA3-512", want: "SHA3-512"},
		{name: "choice rejected", spec: module.OptionSpec{Choices: choices}, in: "MD5", wantErr: true},
		{name: "nil stays nil", spec: module.OptionSpec{Type: module.TypeInt}, in: nil, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Coerce(tt.spec, tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Coerce() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Coerce() = %#v, want %#v", got, tt.want)
			}
		})
	}
}
