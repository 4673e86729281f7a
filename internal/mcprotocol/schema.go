package mcprotocol

import "encoding/json"

// JSONSchema is a JSON Schema fragment describing a tool's input. It round
// trips through (de)serialization without loss for the keywords listed
// below: Type may be a bare string or an array of strings, and AllOf
// composition is preserved. Keywords not listed here are dropped on
// unmarshal.
type JSONSchema struct {
	Schema               string                 `json:"$schema,omitempty"`
	Type                 SchemaType             `json:"type,omitzero"`
	Properties           map[string]*JSONSchema `json:"properties,omitempty"`
	Required             []string               `json:"required,omitempty"`
	AdditionalProperties *bool                  `json:"additionalProperties,omitempty"`
	AllOf                []*JSONSchema          `json:"allOf,omitempty"`
	Items                *JSONSchema            `json:"items,omitempty"`
	Description          string                 `json:"description,omitempty"`
	Enum                 []json.RawMessage      `json:"enum,omitempty"`
	Default              json.RawMessage        `json:"default,omitempty"`
}

// SchemaType holds a JSON Schema "type" keyword, which may be either a
// single string ("object") or an array of strings (["string","null"]).
// It marshals back to whichever shape it was unmarshaled from.
type SchemaType struct {
	single    string
	multiple  []string
	isArray   bool
}

func NewSchemaTypeString(s string) SchemaType   { return SchemaType{single: s} }
func NewSchemaTypeArray(s []string) SchemaType   { return SchemaType{multiple: s, isArray: true} }

func (t SchemaType) IsZero() bool {
	return !t.isArray && t.single == "" && t.multiple == nil
}

func (t SchemaType) Strings() []string {
	if t.isArray {
		return t.multiple
	}
	if t.single == "" {
		return nil
	}
	return []string{t.single}
}

func (t SchemaType) MarshalJSON() ([]byte, error) {
	if t.isArray {
		return json.Marshal(t.multiple)
	}
	return json.Marshal(t.single)
}

func (t *SchemaType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = SchemaType{single: s}
		return nil
	}
	var arr []string
	if err := json.Unmarshal(data, &arr); err != nil {
		return err
	}
	*t = SchemaType{multiple: arr, isArray: true}
	return nil
}
