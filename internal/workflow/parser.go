// Package workflow provides node parsing, draft validation and graph analysis.
package workflow

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/langdag/dagbuilder/pkg/types"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// nodeSchema describes the JSON shape of a node payload. Presence and
// uniqueness rules live on the types.Node struct tags.
const nodeSchema = `{
	"type": "object",
	"properties": {
		"id":        {"type": "string"},
		"type":      {"type": "string"},
		"input":     {"type": "object"},
		"dependsOn": {"type": "array", "items": {"type": "string"}}
	},
	"additionalProperties": false
}`

// patchSchema describes the payload accepted by update-node.
const patchSchema = `{
	"type": "object",
	"properties": {
		"type":      {"type": "string", "minLength": 1},
		"input":     {"type": "object"},
		"dependsOn": {"type": "array", "items": {"type": "string", "minLength": 1}, "uniqueItems": true}
	},
	"additionalProperties": false,
	"minProperties": 1
}`

var (
	nodeSchemaLoader  = gojsonschema.NewStringLoader(nodeSchema)
	patchSchemaLoader = gojsonschema.NewStringLoader(patchSchema)

	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the shared struct validator. Field names in its errors
// are the JSON names.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		// RegisterValidation only fails on an empty tag or a nil func.
		_ = validate.RegisterValidation("notblank", validators.NotBlank)
	})
	return validate
}

// Problem is a single reason a payload was rejected.
type Problem struct {
	Field   string `json:"field" yaml:"field"`
	Message string `json:"message" yaml:"message"`
}

// InputError reports a malformed node or patch payload.
type InputError struct {
	Problems []Problem
}

func (e *InputError) Error() string {
	if len(e.Problems) == 0 {
		return "invalid input"
	}
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		if p.Field == "" {
			parts[i] = p.Message
		} else {
			parts[i] = p.Field + ": " + p.Message
		}
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

func inputError(field, format string, args ...any) *InputError {
	return &InputError{Problems: []Problem{{Field: field, Message: fmt.Sprintf(format, args...)}}}
}

// NodePatch holds the fields update-node replaces. Nil fields are left as is.
type NodePatch struct {
	Type      *string         `json:"type,omitempty"`
	Input     *map[string]any `json:"input,omitempty"`
	DependsOn *[]string       `json:"dependsOn,omitempty"`
}

// ParseNodeFile parses a node from a JSON or YAML file.
func ParseNodeFile(path string) (types.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Node{}, fmt.Errorf("failed to read file: %w", err)
	}
	return ParseNode(data)
}

// ParseNode parses a node payload given as JSON or YAML.
func ParseNode(data []byte) (types.Node, error) {
	raw, err := DecodeObject(data)
	if err != nil {
		return types.Node{}, err
	}
	return NodeFromMap(raw)
}

// NodeFromMap builds a node from an already decoded payload.
func NodeFromMap(raw map[string]any) (types.Node, error) {
	normalized, err := checkSchema(nodeSchemaLoader, raw)
	if err != nil {
		return types.Node{}, err
	}

	var node types.Node
	if err := types.DecodeJSON(normalized, &node); err != nil {
		return types.Node{}, inputError("", "failed to decode node: %v", err)
	}

	if err := Validator().Struct(node); err != nil {
		return types.Node{}, structError(err)
	}

	if node.Input == nil {
		node.Input = map[string]any{}
	}
	if node.DependsOn == nil {
		node.DependsOn = []string{}
	}
	return node, nil
}

// ParsePatch parses an update-node payload given as JSON or YAML.
func ParsePatch(data []byte) (NodePatch, error) {
	raw, err := DecodeObject(data)
	if err != nil {
		return NodePatch{}, err
	}
	return PatchFromMap(raw)
}

// PatchFromMap builds a patch from an already decoded payload.
func PatchFromMap(raw map[string]any) (NodePatch, error) {
	normalized, err := checkSchema(patchSchemaLoader, raw)
	if err != nil {
		return NodePatch{}, err
	}

	var patch NodePatch
	if err := types.DecodeJSON(normalized, &patch); err != nil {
		return NodePatch{}, inputError("", "failed to decode patch: %v", err)
	}
	return patch, nil
}

// Apply returns a copy of node with the patch applied.
func (p NodePatch) Apply(node types.Node) types.Node {
	out := node.Clone()
	if p.Type != nil {
		out.Type = *p.Type
	}
	if p.Input != nil {
		out.Input = *p.Input
		if out.Input == nil {
			out.Input = map[string]any{}
		}
	}
	if p.DependsOn != nil {
		out.DependsOn = append([]string{}, (*p.DependsOn)...)
	}
	return out
}

// DecodeObject decodes a JSON or YAML object into a string-keyed map.
func DecodeObject(data []byte) (map[string]any, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, inputError("", "payload is empty")
	}

	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, inputError("", "payload is not valid JSON or YAML: %v", err)
	}

	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, inputError("", "payload must be an object")
	}
	return obj, nil
}

// checkSchema validates raw against the schema and returns it as JSON.
func checkSchema(schema gojsonschema.JSONLoader, raw map[string]any) ([]byte, error) {
	normalized, err := json.Marshal(raw)
	if err != nil {
		return nil, inputError("", "payload cannot be represented as JSON: %v", err)
	}

	result, err := gojsonschema.Validate(schema, gojsonschema.NewBytesLoader(normalized))
	if err != nil {
		return nil, inputError("", "schema validation failed: %v", err)
	}
	if !result.Valid() {
		ie := &InputError{}
		for _, re := range result.Errors() {
			ie.Problems = append(ie.Problems, Problem{
				Field:   re.Field(),
				Message: re.Description(),
			})
		}
		return nil, ie
	}
	return normalized, nil
}

// CheckStruct runs the struct validator over v and reports failures as an
// InputError.
func CheckStruct(v any) error {
	if err := Validator().Struct(v); err != nil {
		return structError(err)
	}
	return nil
}

// structError converts validator errors into an InputError.
func structError(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return inputError("", "%v", err)
	}

	ie := &InputError{}
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		var msg string
		switch fe.Tag() {
		case "required":
			msg = "is required"
		case "notblank":
			msg = "must not be blank"
		case "unique":
			msg = "must not contain duplicates"
		default:
			msg = fmt.Sprintf("failed %q validation", fe.Tag())
		}
		ie.Problems = append(ie.Problems, Problem{Field: field, Message: msg})
	}
	return ie
}
