package store

import (
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const buildRecordSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["started", "finished", "spec", "compile", "public", "hidden"],
  "properties": {
    "started": {"type": "string"},
    "finished": {"type": "string"},
    "spec": {
      "type": "object",
      "required": ["kind", "proj", "users"],
      "properties": {
        "kind": {"type": "string", "minLength": 1},
        "proj": {"type": "string", "minLength": 1},
        "users": {"type": "array", "minItems": 1, "items": {"type": "string", "minLength": 1}},
        "rev": {"type": "string"}
      }
    },
    "source": {
      "type": "object",
      "required": ["rev"],
      "properties": {"rev": {"type": "string"}}
    },
    "staffrev": {"type": "string"},
    "compile": {"type": "boolean"},
    "public": {"type": "boolean"},
    "hidden": {"type": "boolean"},
    "grade": {
      "type": "object",
      "required": ["score", "outof"],
      "properties": {
        "score": {"type": "number"},
        "outof": {"type": "number", "minimum": 0}
      }
    },
    "error": {"type": "string"}
  }
}`

// Checked against every result.json before it is decoded
var BuildRecordSchema = jsonschema.MustCompileString("result.schema.json", buildRecordSchema)
