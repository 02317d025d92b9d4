package domain

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestParseLabels_Array(t *testing.T) {
	l, err := ParseLabels([]byte(`["Apple_scab", "Tomato_healthy", "Corn_rust"]`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.Len() != 3 {
		t.Fatalf("expected 3 labels, got %d", l.Len())
	}
	if l.Name(1) != "Tomato_healthy" {
		t.Errorf("expected Tomato_healthy at 1, got %q", l.Name(1))
	}
}

func TestParseLabels_ClassIndices(t *testing.T) {
	l, err := ParseLabels([]byte(`{"Corn_rust": 2, "Apple_scab": 0, "Tomato_healthy": 1}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"Apple_scab", "Tomato_healthy", "Corn_rust"}
	got := l.Names()
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("label %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestParseLabels_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"whitespace", "   \n"},
		{"empty array", "[]"},
		{"scalar", `"Tomato"`},
		{"malformed", `["a", `},
		{"duplicate name", `["a", "a"]`},
		{"empty name", `["a", ""]`},
		{"index out of range", `{"a": 0, "b": 5}`},
		{"negative index", `{"a": -1}`},
		{"duplicate index", `{"a": 0, "b": 0}`},
		{"wrong value type", `[1, 2]`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseLabels([]byte(tc.data))
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, ErrInvalidLabels) {
				t.Errorf("expected ErrInvalidLabels, got %v", err)
			}
		})
	}
}

func TestLoadLabels_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "class_labels.json")
	if err := os.WriteFile(path, []byte(`["x", "y"]`), 0o600); err != nil {
		t.Fatal(err)
	}

	l, err := LoadLabels(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.Len() != 2 {
		t.Errorf("expected 2 labels, got %d", l.Len())
	}
}

func TestLoadLabels_MissingFile(t *testing.T) {
	_, err := LoadLabels(filepath.Join(t.TempDir(), "nope.json"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got %v", err)
	}
}

func TestLabels_NamesIsCopy(t *testing.T) {
	l, _ := NewLabels([]string{"a", "b"})
	names := l.Names()
	names[0] = "mutated"
	if l.Name(0) != "a" {
		t.Error("Names() must not expose internal slice")
	}
}
