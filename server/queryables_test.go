package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/TechTraverse/stac-fastapi-pgstac/api"
)

func TestQueryables(t *testing.T) {
	e, s, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/collections/sentinel-2-l2a/queryables", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/collections/:collectionId/queryables")
	c.SetParamNames("collectionId")
	c.SetParamValues("sentinel-2-l2a")

	assert.NoError(t, s.handleQueryables(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var doc map[string]interface{}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "/collections/sentinel-2-l2a/queryables", doc["$id"])
	assert.Equal(t, false, doc["additionalProperties"])

	props, ok := doc["properties"].(map[string]interface{})
	assert.True(t, ok)
	assert.Contains(t, props, "properties.eo:cloud_cover")
	// core fields are present regardless of the configured allowlist
	for _, core := range []string{"id", "collection", "datetime", "geometry"} {
		assert.Contains(t, props, core)
	}
}

func TestQueryables_UnknownCollection(t *testing.T) {
	e, s, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/collections/nope/queryables", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/collections/:collectionId/queryables")
	c.SetParamNames("collectionId")
	c.SetParamValues("nope")

	err := s.handleQueryables(c)
	assert.True(t, api.IsKind(err, api.KindCollectionNotFound))
}
