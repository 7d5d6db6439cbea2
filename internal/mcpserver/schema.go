package mcpserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// compileSchema compiles one tool's input schema.
func compileSchema(name string, raw json.RawMessage) (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("unmarshal %s schema: %w", name, err)
	}
	c := jsonschema.NewCompiler()
	url := name + ".json"
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add %s schema resource: %w", name, err)
	}
	schema, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile %s schema: %w", name, err)
	}
	return schema, nil
}

// validateArgs checks encoded arguments against schema. The document is
// re-read with jsonschema.UnmarshalJSON so numbers keep their exact form.
func validateArgs(schema *jsonschema.Schema, data []byte) error {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("invalid JSON arguments: %w", err)
	}
	return schema.Validate(doc)
}

// idArg is a task identifier given either as a JSON integer or as a string
// in the N or label:N form.
type idArg string

func (a *idArg) UnmarshalJSON(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		if _, err := strconv.ParseUint(n.String(), 10, 64); err != nil {
			return fmt.Errorf("id %s is not a positive integer", n)
		}
		*a = idArg(n.String())
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("id must be an integer or a string")
	}
	*a = idArg(s)
	return nil
}

const idSchema = `{"type": ["integer", "string"], "description": "Task id: a number for the current store, or label:number for a linked project"}`

const filterProperties = `
	"kind": {"type": "string", "description": "task, todo or idea"},
	"status": {"type": "string", "description": "pending, in-progress, completed or archived"},
	"priority": {"type": "string", "description": "low, medium, high or critical"},
	"tags": {"type": "array", "items": {"type": "string"}, "description": "All tags must match"},
	"aggregate": {"type": "boolean", "description": "Query every linked project instead of the current store"}`

var (
	addTaskSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"kind": {"type": "string", "description": "task, todo or idea"},
		"title": {"type": "string", "minLength": 1, "description": "Task title"},
		"description": {"type": "string"},
		"priority": {"type": "string", "description": "low, medium, high or critical"},
		"due": {"type": "string", "description": "Due date YYYY-MM-DD"},
		"tags": {"type": "array", "items": {"type": "string"}}
	},
	"required": ["kind", "title"],
	"additionalProperties": false
}`)

	listTasksSchema = json.RawMessage(`{
	"type": "object",
	"properties": {` + filterProperties + `,
		"include_archived": {"type": "boolean"}
	},
	"additionalProperties": false
}`)

	getTaskSchema = json.RawMessage(`{
	"type": "object",
	"properties": {"id": ` + idSchema + `},
	"required": ["id"],
	"additionalProperties": false
}`)

	completeTaskSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"ids": {"type": "array", "items": ` + idSchema + `, "minItems": 1}
	},
	"required": ["ids"],
	"additionalProperties": false
}`)

	updateTaskSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"id": ` + idSchema + `,
		"title": {"type": "string", "minLength": 1},
		"description": {"type": "string"},
		"priority": {"type": "string"},
		"due": {"type": "string", "description": "Due date YYYY-MM-DD"},
		"clear_due": {"type": "boolean", "description": "Remove the due date"},
		"tags": {"type": "array", "items": {"type": "string"}, "description": "Replaces all tags"}
	},
	"required": ["id"],
	"additionalProperties": false
}`)

	deleteTaskSchema = getTaskSchema

	setStatusSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"id": ` + idSchema + `,
		"status": {"type": "string", "description": "pending, in-progress, completed or archived"}
	},
	"required": ["id", "status"],
	"additionalProperties": false
}`)

	getStatsSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"aggregate": {"type": "boolean", "description": "Count across every linked project"}
	},
	"additionalProperties": false
}`)

	pathSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"path": {"type": "string", "minLength": 1, "description": "Project root path"}
	},
	"required": ["path"],
	"additionalProperties": false
}`)

	emptySchema = json.RawMessage(`{"type": "object", "properties": {}, "additionalProperties": false}`)
)
