package inbox

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// schemaFilter applies a caller-supplied JSON Schema to message
// payloads. The filter runs in-process after a page is assembled: the
// predicate is caller-supplied and not indexable, so a page may return
// fewer than the limit even when more candidates exist.
type schemaFilter struct {
	compiled *jsonschema.Schema
	source   []byte // JSON, embedded into cursors
}

// compileSchema normalizes and compiles a schema document supplied as
// a decoded JSON value. A nil schema means no filtering.
func compileSchema(schema any) (*schemaFilter, error) {
	if schema == nil {
		return &schemaFilter{}, nil
	}
	src, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSchema, err)
	}
	return compileSchemaJSON(src)
}

// compileSchemaJSON compiles a schema from its JSON source, as
// embedded in cursors. Empty source means no filtering.
func compileSchemaJSON(src []byte) (*schemaFilter, error) {
	if len(src) == 0 {
		return &schemaFilter{}, nil
	}

	// jsonschema requires documents decoded with json.Number, so
	// re-decode through its own unmarshaler.
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSchema, err)
	}

	c := jsonschema.NewCompiler()
	c.DefaultDraft(jsonschema.Draft2020)
	if err := c.AddResource("message-schema.json", doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSchema, err)
	}
	compiled, err := c.Compile("message-schema.json")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSchema, err)
	}

	return &schemaFilter{compiled: compiled, source: src}, nil
}

// matches reports whether a stored payload satisfies the schema.
// A payload that fails to decode is filtered out, not an error.
func (f *schemaFilter) matches(payload []byte) bool {
	if f.compiled == nil {
		return true
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(payload))
	if err != nil {
		return false
	}
	return f.compiled.Validate(inst) == nil
}
