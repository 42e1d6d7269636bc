package events

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const schemaURL = "https://tabtime.local/event.schema.json"

// eventSchema describes every message the extension may send.
const eventSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["type"],
  "properties": {
    "type": {
      "enum": ["activated", "updated", "removed", "focusChanged",
               "startup", "suspend", "snapshot", "clear", "query"]
    },
    "tabId": {"type": "integer", "minimum": 0},
    "windowId": {"type": "integer", "minimum": -1},
    "url": {"type": "string"},
    "changeInfo": {
      "type": "object",
      "properties": {
        "url": {"type": "string"},
        "status": {"type": "string"}
      }
    },
    "tabs": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id"],
        "properties": {
          "id": {"type": "integer", "minimum": 0},
          "windowId": {"type": "integer", "minimum": 0},
          "url": {"type": "string"},
          "active": {"type": "boolean"}
        }
      }
    },
    "period": {"enum": ["today", "week", "all"]},
    "key": {"type": "string", "pattern": "^[0-9]{4}-[0-9]{2}-[0-9]{2}$"},
    "id": {"type": "string"}
  },
  "allOf": [
    {
      "if": {"properties": {"type": {"enum": ["activated", "updated", "removed"]}}},
      "then": {"required": ["tabId"]}
    },
    {
      "if": {"properties": {"type": {"const": "updated"}}},
      "then": {"required": ["changeInfo"]}
    },
    {
      "if": {"properties": {"type": {"const": "focusChanged"}}},
      "then": {"required": ["windowId"]}
    },
    {
      "if": {"properties": {"type": {"const": "snapshot"}}},
      "then": {"required": ["tabs"]}
    },
    {
      "if": {"properties": {"type": {"const": "query"}}},
      "then": {"required": ["period"]}
    }
  ]
}`

// compileSchema compiles the embedded event schema.
func compileSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, strings.NewReader(eventSchema)); err != nil {
		return nil, fmt.Errorf("add event schema: %w", err)
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile event schema: %w", err)
	}
	return schema, nil
}
