package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/TechTraverse/stac-fastapi-pgstac/api"
)

// Structural schemas for incoming records. Deliberately minimal: the store
// owns deep validation, this layer only rejects bodies that cannot possibly
// be a catalog record.
const itemSchema = `{
	"type": "object",
	"required": ["type", "id"],
	"properties": {
		"type": {"const": "Feature"},
		"id": {"type": "string", "minLength": 1},
		"collection": {"type": "string"},
		"geometry": {"type": ["object", "null"]},
		"bbox": {"type": "array", "items": {"type": "number"}, "minItems": 4},
		"properties": {"type": "object"},
		"assets": {"type": "object"},
		"links": {"type": "array"},
		"stac_version": {"type": "string"},
		"stac_extensions": {"type": "array", "items": {"type": "string"}}
	}
}`

const collectionSchema = `{
	"type": "object",
	"required": ["type", "id"],
	"properties": {
		"type": {"const": "Collection"},
		"id": {"type": "string", "minLength": 1},
		"title": {"type": "string"},
		"description": {"type": "string"},
		"license": {"type": "string"},
		"extent": {"type": "object"},
		"keywords": {"type": "array", "items": {"type": "string"}},
		"links": {"type": "array"},
		"stac_version": {"type": "string"}
	}
}`

var (
	compiledItemSchema       *jsonschema.Schema
	compiledCollectionSchema *jsonschema.Schema
)

func init() {
	compiledItemSchema = mustCompileSchema("stac://item", itemSchema)
	compiledCollectionSchema = mustCompileSchema("stac://collection", collectionSchema)
}

func mustCompileSchema(url string, src string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, strings.NewReader(src)); err != nil {
		panic(err)
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		panic(err)
	}
	return schema
}

// validateAgainst normalizes a record through JSON and checks it against a
// compiled schema.
func validateAgainst(schema *jsonschema.Schema, record interface{}) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("cannot serialize record: %w", err)
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("cannot normalize record: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("validation error: %v", err))
	}
	return nil
}

func validateItemSchema(item *api.Item) error {
	return validateAgainst(compiledItemSchema, item)
}

func validateCollectionSchema(c *api.Collection) error {
	return validateAgainst(compiledCollectionSchema, c)
}
