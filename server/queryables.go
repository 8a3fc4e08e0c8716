package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// queryable type names to json-schema fragments
var queryableSchemas = map[string]map[string]interface{}{
	"string":   {"type": "string"},
	"number":   {"type": "number"},
	"integer":  {"type": "integer"},
	"boolean":  {"type": "boolean"},
	"datetime": {"type": "string", "format": "date-time"},
	"geometry": {"$ref": "https://geojson.org/schema/Geometry.json"},
}

// handleQueryables publishes the filterable-property allowlist as a json
// schema document, per collection or catalog-wide.
func (s *server) handleQueryables(c echo.Context) error {
	collectionId := c.Param("collectionId")
	if collectionId != "" {
		if _, err := s.store.GetCollection(c.Request().Context(), collectionId); err != nil {
			return err
		}
	}

	q, err := s.cachedQueryables(c.Request().Context(), collectionId)
	if err != nil {
		return err
	}

	props := map[string]interface{}{}
	for name, typ := range q {
		if frag, ok := queryableSchemas[typ]; ok {
			props[name] = frag
		} else {
			props[name] = map[string]interface{}{}
		}
	}
	// core fields are always queryable
	props["id"] = queryableSchemas["string"]
	props["collection"] = queryableSchemas["string"]
	props["datetime"] = queryableSchemas["datetime"]
	props["geometry"] = queryableSchemas["geometry"]

	id := "/queryables"
	if collectionId != "" {
		id = "/collections/" + collectionId + "/queryables"
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"$schema":              "https://json-schema.org/draft/2020-12/schema",
		"$id":                  id,
		"type":                 "object",
		"title":                "Queryables",
		"properties":           props,
		"additionalProperties": false,
	})
}
