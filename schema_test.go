package inbox

import (
	"errors"
	"testing"
)

func TestCompileSchema(t *testing.T) {
	t.Run("nil schema matches everything", func(t *testing.T) {
		f, err := compileSchema(nil)
		if err != nil {
			t.Fatalf("compile nil: %v", err)
		}
		if !f.matches([]byte(`{"anything":1}`)) {
			t.Error("nil schema must match")
		}
	})

	t.Run("invalid schema", func(t *testing.T) {
		if _, err := compileSchema(map[string]any{"type": 42}); !errors.Is(err, ErrBadSchema) {
			t.Errorf("compile error = %v, want ErrBadSchema", err)
		}
	})

	t.Run("unmarshalable schema value", func(t *testing.T) {
		if _, err := compileSchema(make(chan int)); !errors.Is(err, ErrBadSchema) {
			t.Errorf("compile error = %v, want ErrBadSchema", err)
		}
	})
}

func TestSchemaFilterMatches(t *testing.T) {
	f, err := compileSchema(map[string]any{
		"type":     "object",
		"required": []any{"kind"},
		"properties": map[string]any{
			"kind": map[string]any{"const": "order"},
		},
	})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	tests := []struct {
		payload string
		want    bool
	}{
		{`{"kind":"order","n":1}`, true},
		{`{"kind":"refund"}`, false},
		{`{"n":1}`, false},
		{`"just a string"`, false},
		{`not json at all`, false},
	}
	for _, tt := range tests {
		if got := f.matches([]byte(tt.payload)); got != tt.want {
			t.Errorf("matches(%s) = %v, want %v", tt.payload, got, tt.want)
		}
	}
}

func TestCompileSchemaJSONRoundTrip(t *testing.T) {
	src := []byte(`{"required":["x"]}`)
	f, err := compileSchemaJSON(src)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if string(f.source) != string(src) {
		t.Errorf("source = %s, want %s", f.source, src)
	}
	if !f.matches([]byte(`{"x":1}`)) || f.matches([]byte(`{"y":1}`)) {
		t.Error("compiled schema misbehaves")
	}

	empty, err := compileSchemaJSON(nil)
	if err != nil {
		t.Fatalf("compile empty: %v", err)
	}
	if !empty.matches([]byte(`{}`)) {
		t.Error("empty source must match everything")
	}
}
