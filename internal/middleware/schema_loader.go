package middleware

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	contextutils "evolveedu/internal/utils"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v2"
)

//go:embed schemas.yaml
var schemasYAML []byte

// SchemaLoader holds compiled request-body schemas and the endpoint table
// that maps routes to them.
type SchemaLoader struct {
	schemas   map[string]*gojsonschema.Schema
	endpoints []endpointSchema
}

type endpointSchema struct {
	Path   string
	Method string
	Schema string
}

var (
	globalSchemaLoader *SchemaLoader
	schemaLoaderOnce   sync.Once
	schemaLoaderErr    error
)

// LoadSchemas parses and compiles the embedded schema file once per process.
func LoadSchemas() (*SchemaLoader, error) {
	schemaLoaderOnce.Do(func() {
		globalSchemaLoader, schemaLoaderErr = newSchemaLoader(schemasYAML)
	})
	return globalSchemaLoader, schemaLoaderErr
}

func newSchemaLoader(data []byte) (*SchemaLoader, error) {
	var doc map[interface{}]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, contextutils.WrapError(err, "failed to parse schema file as YAML")
	}

	rawSchemas, ok := doc["schemas"].(map[interface{}]interface{})
	if !ok {
		return nil, contextutils.ErrorWithContextf("no schemas section found in schema file")
	}

	// yaml.v2 decodes maps with interface{} keys; gojsonschema needs
	// JSON-compatible string-keyed maps.
	jsonCompatible := make(map[string]interface{}, len(rawSchemas))
	for name, schemaData := range rawSchemas {
		nameStr, ok := name.(string)
		if !ok {
			return nil, contextutils.ErrorWithContextf("schema name is not a string: %v", name)
		}
		converted, err := convertToJSONCompatible(schemaData)
		if err != nil {
			return nil, contextutils.WrapErrorf(err, "failed to convert schema %s", nameStr)
		}
		jsonCompatible[nameStr] = converted
	}

	sl := &SchemaLoader{
		schemas: make(map[string]*gojsonschema.Schema, len(jsonCompatible)),
	}

	for name := range jsonCompatible {
		// Each schema document carries the full definitions section so $ref
		// between schemas resolves.
		schemaDoc := map[string]interface{}{
			"$schema":     "http://json-schema.org/draft-07/schema#",
			"definitions": jsonCompatible,
			"$ref":        "#/definitions/" + name,
		}
		schemaBytes, err := json.Marshal(schemaDoc)
		if err != nil {
			return nil, contextutils.WrapErrorf(err, "failed to marshal schema %s", name)
		}
		schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaBytes))
		if err != nil {
			return nil, contextutils.WrapErrorf(err, "failed to compile schema %s", name)
		}
		sl.schemas[name] = schema
	}

	rawEndpoints, ok := doc["endpoints"].([]interface{})
	if !ok {
		return nil, contextutils.ErrorWithContextf("no endpoints section found in schema file")
	}
	for _, raw := range rawEndpoints {
		entry, ok := raw.(map[interface{}]interface{})
		if !ok {
			return nil, contextutils.ErrorWithContextf("endpoint entry is not a map: %v", raw)
		}
		ep := endpointSchema{
			Path:   fmt.Sprintf("%v", entry["path"]),
			Method: strings.ToUpper(fmt.Sprintf("%v", entry["method"])),
			Schema: fmt.Sprintf("%v", entry["schema"]),
		}
		if _, exists := sl.schemas[ep.Schema]; !exists {
			return nil, contextutils.ErrorWithContextf("endpoint %s %s references unknown schema %s", ep.Method, ep.Path, ep.Schema)
		}
		sl.endpoints = append(sl.endpoints, ep)
	}

	return sl, nil
}

// convertToJSONCompatible recursively converts yaml.v2 interface-keyed maps to
// string-keyed maps
func convertToJSONCompatible(data interface{}) (interface{}, error) {
	switch v := data.(type) {
	case map[interface{}]interface{}:
		result := make(map[string]interface{}, len(v))
		for k, val := range v {
			keyStr, ok := k.(string)
			if !ok {
				return nil, contextutils.ErrorWithContextf("key is not a string: %v", k)
			}
			converted, err := convertToJSONCompatible(val)
			if err != nil {
				return nil, err
			}
			result[keyStr] = converted
		}
		return result, nil
	case []interface{}:
		result := make([]interface{}, len(v))
		for i, val := range v {
			converted, err := convertToJSONCompatible(val)
			if err != nil {
				return nil, err
			}
			result[i] = converted
		}
		return result, nil
	default:
		return data, nil
	}
}

// SchemaForRequest returns the schema name bound to the given path and
// method, or "" when the endpoint has no request schema.
func (sl *SchemaLoader) SchemaForRequest(path, method string) string {
	method = strings.ToUpper(method)
	for _, ep := range sl.endpoints {
		if ep.Method == method && pathMatchesPattern(path, ep.Path) {
			return ep.Schema
		}
	}
	return ""
}

// ValidateData validates data against a named schema
func (sl *SchemaLoader) ValidateData(data interface{}, schemaName string) error {
	schema, exists := sl.schemas[schemaName]
	if !exists {
		return contextutils.ErrorWithContextf("schema %s not found", schemaName)
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return contextutils.WrapError(err, "failed to marshal data")
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(jsonData))
	if err != nil {
		return contextutils.WrapError(err, "validation error")
	}

	if !result.Valid() {
		var validationErrors []string
		for _, validationErr := range result.Errors() {
			validationErrors = append(validationErrors, fmt.Sprintf("%s: %s", validationErr.Field(), validationErr.Description()))
		}
		return contextutils.ErrorWithContextf("schema validation failed: %s", strings.Join(validationErrors, "; "))
	}

	return nil
}

// pathMatchesPattern checks if a request path matches an endpoint pattern.
// Pattern segments wrapped in braces match any value.
func pathMatchesPattern(requestPath, pattern string) bool {
	requestSegments := strings.Split(requestPath, "/")
	patternSegments := strings.Split(pattern, "/")

	if len(requestSegments) != len(patternSegments) {
		return false
	}

	for i, patternSegment := range patternSegments {
		if strings.HasPrefix(patternSegment, "{") && strings.HasSuffix(patternSegment, "}") {
			continue
		}
		if patternSegment != requestSegments[i] {
			return false
		}
	}

	return true
}
