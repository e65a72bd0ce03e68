package query

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/teranos/atomdb/errors"
)

// querySchema describes the JSON form of a query tree. A top-level array
// is an implicit AND.
const querySchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "definitions": {
    "node": {
      "type": "object",
      "properties": {
        "node": {"type": "string", "minLength": 1},
        "name": {"type": "string", "minLength": 1}
      },
      "required": ["node", "name"],
      "additionalProperties": false
    },
    "variable": {
      "type": "object",
      "properties": {"variable": {"type": "string", "minLength": 1}},
      "required": ["variable"],
      "additionalProperties": false
    },
    "link": {
      "type": "object",
      "properties": {
        "link": {"type": "string", "minLength": 1},
        "targets": {
          "type": "array",
          "minItems": 1,
          "items": {"oneOf": [
            {"$ref": "#/definitions/node"},
            {"$ref": "#/definitions/variable"},
            {"$ref": "#/definitions/link"}
          ]}
        }
      },
      "required": ["link", "targets"],
      "additionalProperties": false
    },
    "and": {
      "type": "object",
      "properties": {"and": {"$ref": "#/definitions/clauses"}},
      "required": ["and"],
      "additionalProperties": false
    },
    "or": {
      "type": "object",
      "properties": {"or": {"$ref": "#/definitions/clauses"}},
      "required": ["or"],
      "additionalProperties": false
    },
    "clause": {"oneOf": [
      {"$ref": "#/definitions/node"},
      {"$ref": "#/definitions/link"},
      {"$ref": "#/definitions/and"},
      {"$ref": "#/definitions/or"}
    ]},
    "clauses": {
      "type": "array",
      "minItems": 1,
      "items": {"$ref": "#/definitions/clause"}
    }
  },
  "oneOf": [
    {"$ref": "#/definitions/clause"},
    {"$ref": "#/definitions/clauses"}
  ]
}`

var compiledSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(querySchema))
})

// ParseJSON validates and decodes a JSON query document.
func ParseJSON(data []byte) (Query, error) {
	schema, err := compiledSchema()
	if err != nil {
		return nil, errors.Wrap(err, "compile query schema")
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, errors.NewQueryFormatError("query is not valid JSON: %v", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return nil, errors.NewQueryFormatError("%s", strings.Join(msgs, "; "))
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.NewQueryFormatError("decode query: %v", err)
	}
	return FromValue(doc)
}

// FromValue lowers a decoded JSON or YAML value into a query tree
// without schema validation; shape errors wrap ErrUnexpectedQueryFormat.
func FromValue(v any) (Query, error) {
	switch v := v.(type) {
	case []any:
		clauses, err := fromList(v)
		if err != nil {
			return nil, err
		}
		return And{Clauses: clauses}, nil
	case map[string]any:
		return fromMap(v)
	default:
		return nil, errors.NewQueryFormatError("unexpected query element %T", v)
	}
}

func fromList(vs []any) ([]Query, error) {
	out := make([]Query, 0, len(vs))
	for _, v := range vs {
		q, err := FromValue(v)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

func fromMap(m map[string]any) (Query, error) {
	switch {
	case m["node"] != nil:
		t, ok1 := m["node"].(string)
		name, ok2 := m["name"].(string)
		if !ok1 || !ok2 || len(m) != 2 {
			return nil, errors.NewQueryFormatError("node needs string \"node\" and \"name\"")
		}
		return Node{Type: t, Name: name}, nil
	case m["link"] != nil:
		t, ok1 := m["link"].(string)
		raw, ok2 := m["targets"].([]any)
		if !ok1 || !ok2 || len(m) != 2 {
			return nil, errors.NewQueryFormatError("link needs string \"link\" and array \"targets\"")
		}
		targets, err := fromList(raw)
		if err != nil {
			return nil, err
		}
		return Link{Type: t, Targets: targets}, nil
	case m["variable"] != nil:
		name, ok := m["variable"].(string)
		if !ok || len(m) != 1 {
			return nil, errors.NewQueryFormatError("variable needs a string name")
		}
		return Variable{Name: name}, nil
	case m["and"] != nil:
		raw, ok := m["and"].([]any)
		if !ok || len(m) != 1 {
			return nil, errors.NewQueryFormatError("and needs an array of clauses")
		}
		clauses, err := fromList(raw)
		if err != nil {
			return nil, err
		}
		return And{Clauses: clauses}, nil
	case m["or"] != nil:
		raw, ok := m["or"].([]any)
		if !ok || len(m) != 1 {
			return nil, errors.NewQueryFormatError("or needs an array of clauses")
		}
		clauses, err := fromList(raw)
		if err != nil {
			return nil, err
		}
		return Or{Clauses: clauses}, nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return nil, errors.NewQueryFormatError("unknown query element with keys %v", keys)
}
