package config

import (
	"reflect"
	"testing"
)

// TestFlattenUnflatten tests dot notation conversion.
func TestFlattenUnflatten(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		tree map[string]any
		flat map[string]any
	}{
		{
			name: "nested sections",
			tree: map[string]any{
				"steps":         map[string]any{"feeders": []any{"cli_feeder"}},
				"local_storage": map[string]any{"save_to": "./archived", "nested": map[string]any{"x": 1}},
			},
			flat: map[string]any{
				"steps.feeders":          []any{"cli_feeder"},
				"local_storage.save_to":  "./archived",
				"local_storage.nested.x": 1,
			},
		},
		{
			name: "empty map is a leaf",
			tree: map[string]any{"authentication": map[string]any{}, "workers": 2},
			flat: map[string]any{"authentication": map[string]any{}, "workers": 2},
		},
		{
			name: "empty tree",
			tree: map[string]any{},
			flat: map[string]any{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			flat := Flatten(tt.tree)
			if !reflect.DeepEqual(flat, tt.flat) {
				t.Errorf("Flatten() = %v, want %v", flat, tt.flat)
			}
			if back := Unflatten(flat); !reflect.DeepEqual(back, tt.tree) {
				t.Errorf("Unflatten(Flatten(D)) = %v, want %v", back, tt.tree)
			}
		})
	}
}

// TestUnflattenConflicts tests that deeper paths replace scalars.
func TestUnflattenConflicts(t *testing.T) {
	t.Parallel()

	got := Unflatten(map[string]any{"a": 1, "a.b": 2})
	want := map[string]any{"a": map[string]any{"b": 2}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Unflatten() = %v, want %v", got, want)
	}
}
