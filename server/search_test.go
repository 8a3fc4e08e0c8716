package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/TechTraverse/stac-fastapi-pgstac/api"
	"github.com/TechTraverse/stac-fastapi-pgstac/bus"
	"github.com/TechTraverse/stac-fastapi-pgstac/config"
	"github.com/TechTraverse/stac-fastapi-pgstac/cql"
	"github.com/TechTraverse/stac-fastapi-pgstac/pg"
)

func setupTestServer(t *testing.T) (*echo.Echo, *server, *pg.Mem) {
	store := pg.NewMem()

	s := newServer(store, bus.NewSoloBus(), config.Default())

	e := echo.New()
	e.Binder = &Binder{
		defaultBinder: &echo.DefaultBinder{},
	}

	err := store.CreateCollection(context.Background(), &api.Collection{
		Type: "Collection",
		Id:   "sentinel-2-l2a",
	})
	if err != nil {
		t.Fatalf("Failed to create test collection: %v", err)
	}
	store.SetQueryables("sentinel-2-l2a", cql.Queryables{
		"properties.eo:cloud_cover": "number",
	})
	store.MutationCalls = 0

	return e, s, store
}

func seedItems(t *testing.T, store *pg.Mem, n int) {
	for i := 0; i < n; i++ {
		err := store.CreateItem(context.Background(), &api.Item{
			Type:       "Feature",
			Id:         fmt.Sprintf("item-%02d", i),
			Collection: "sentinel-2-l2a",
			Bbox:       []float64{13, 52, 14, 53},
			Properties: map[string]interface{}{
				"datetime":       fmt.Sprintf("2023-08-%02dT10:00:00Z", i+1),
				"eo:cloud_cover": float64(i * 10),
			},
		})
		if err != nil {
			t.Fatalf("Failed to seed item: %v", err)
		}
	}
	store.MutationCalls = 0
}

func postSearch(t *testing.T, e *echo.Echo, s *server, body string) (*httptest.ResponseRecorder, error) {
	req := httptest.NewRequest(http.MethodPost, "/search", bytes.NewReader([]byte(body)))
	req.Header.Set(echo.HeaderContentType, "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/search")
	return rec, s.handlePostSearch(c)
}

func decodeFC(t *testing.T, rec *httptest.ResponseRecorder) api.ItemCollection {
	var fc api.ItemCollection
	if err := json.Unmarshal(rec.Body.Bytes(), &fc); err != nil {
		t.Fatalf("Failed to decode feature collection: %v", err)
	}
	return fc
}

func linkToken(fc api.ItemCollection, rel string) string {
	for _, l := range fc.Links {
		if l.Rel != rel {
			continue
		}
		if l.Body != nil {
			tok, _ := l.Body["token"].(string)
			return tok
		}
	}
	return ""
}

func TestSearch_Paging(t *testing.T) {
	e, s, store := setupTestServer(t)
	seedItems(t, store, 3)

	// page 1: newest item first under the default sort
	rec, err := postSearch(t, e, s, `{"limit":1}`)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	page1 := decodeFC(t, rec)
	assert.Len(t, page1.Features, 1)
	assert.Equal(t, "item-02", page1.Features[0].Id)
	assert.NotNil(t, page1.NumberMatched)
	assert.Equal(t, int64(3), *page1.NumberMatched)

	next := linkToken(page1, "next")
	assert.NotEmpty(t, next)
	assert.Empty(t, linkToken(page1, "prev"), "first page must not link backwards")

	// page 2
	rec, err = postSearch(t, e, s, fmt.Sprintf(`{"limit":1,"token":"%s"}`, next))
	assert.NoError(t, err)
	page2 := decodeFC(t, rec)
	assert.Len(t, page2.Features, 1)
	assert.Equal(t, "item-01", page2.Features[0].Id)

	prev := linkToken(page2, "prev")
	assert.NotEmpty(t, prev)

	// back to page 1 through the prev token
	rec, err = postSearch(t, e, s, fmt.Sprintf(`{"limit":1,"token":"%s"}`, prev))
	assert.NoError(t, err)
	back := decodeFC(t, rec)
	assert.Len(t, back.Features, 1)
	assert.Equal(t, "item-02", back.Features[0].Id, "prev page must reproduce the original page")
}

func TestSearch_FilterRejectedBeforeStore(t *testing.T) {
	e, s, store := setupTestServer(t)
	seedItems(t, store, 1)

	_, err := postSearch(t, e, s,
		`{"filter":{"op":"=","args":[{"property":"properties.nope"},"x"]},"filter-lang":"cql2-json"}`)
	assert.True(t, api.IsKind(err, api.KindUnknownField))
	assert.Equal(t, 0, store.SearchCalls, "rejected filters must never reach the store")

	_, err = postSearch(t, e, s,
		`{"filter":{"op":"=","args":[{"op":"nopefunc","args":[{"property":"id"}]},"x"]},"filter-lang":"cql2-json"}`)
	assert.True(t, api.IsKind(err, api.KindUnsupportedFunction))
	assert.Equal(t, 0, store.SearchCalls)
}

func TestSearch_TextFilter(t *testing.T) {
	e, s, store := setupTestServer(t)
	seedItems(t, store, 3)

	rec, err := postSearch(t, e, s,
		`{"filter":"properties.eo:cloud_cover < 15","filter-lang":"cql2-text","collections":["sentinel-2-l2a"]}`)
	assert.NoError(t, err)

	fc := decodeFC(t, rec)
	assert.Len(t, fc.Features, 2)
	assert.Equal(t, 1, store.SearchCalls)
}

func TestSearch_InvalidLimit(t *testing.T) {
	e, s, store := setupTestServer(t)

	_, err := postSearch(t, e, s, `{"limit":0}`)
	assert.True(t, api.IsKind(err, api.KindInvalidLimit))

	_, err = postSearch(t, e, s, `{"limit":-5}`)
	assert.True(t, api.IsKind(err, api.KindInvalidLimit))

	assert.Equal(t, 0, store.SearchCalls)
}

func TestSearch_LimitClamped(t *testing.T) {
	e, s, store := setupTestServer(t)
	seedItems(t, store, 2)

	rec, err := postSearch(t, e, s, `{"limit":999999}`)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, store.SearchCalls, "an over-limit request is clamped, not rejected")
}

func TestSearch_ConflictingFields(t *testing.T) {
	e, s, store := setupTestServer(t)

	_, err := postSearch(t, e, s, `{"fields":{"include":["geometry"],"exclude":["geometry"]}}`)
	assert.True(t, api.IsKind(err, api.KindConflictingFieldSelection))
	assert.Equal(t, 0, store.SearchCalls)
}

func TestSearch_MalformedToken(t *testing.T) {
	e, s, store := setupTestServer(t)

	for _, tok := range []string{"garbage", "s1.!!!", "s9.AAAA"} {
		_, err := postSearch(t, e, s, fmt.Sprintf(`{"token":"%s"}`, tok))
		assert.True(t, api.IsKind(err, api.KindMalformedToken), "token %q", tok)
	}
	assert.Equal(t, 0, store.SearchCalls)
}

func TestSearch_GetQueryForm(t *testing.T) {
	e, s, store := setupTestServer(t)
	seedItems(t, store, 3)

	req := httptest.NewRequest(http.MethodGet,
		"/search?collections=sentinel-2-l2a&bbox=12.5,51.5,14.5,53.5&limit=2&sortby=-properties.datetime", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/search")

	assert.NoError(t, s.handleGetSearch(c))
	fc := decodeFC(t, rec)
	assert.Len(t, fc.Features, 2)
	assert.Equal(t, "item-02", fc.Features[0].Id)

	// GET continuation tokens ride the query string
	found := false
	for _, l := range fc.Links {
		if l.Rel == "next" {
			assert.Contains(t, l.Href, "token=s1.")
			found = true
		}
	}
	assert.True(t, found, "expected a next link")
}

func TestSearch_GetBadBBox(t *testing.T) {
	e, s, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/search?bbox=1,2,3", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := s.handleGetSearch(c)
	assert.True(t, api.IsKind(err, api.KindInvalidFilterExpression))
}

func TestItemCollection(t *testing.T) {
	e, s, store := setupTestServer(t)
	seedItems(t, store, 2)

	req := httptest.NewRequest(http.MethodGet, "/collections/sentinel-2-l2a/items", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/collections/:collectionId/items")
	c.SetParamNames("collectionId")
	c.SetParamValues("sentinel-2-l2a")

	assert.NoError(t, s.handleItemCollection(c))
	fc := decodeFC(t, rec)
	assert.Len(t, fc.Features, 2)

	// unknown collection is a 404, not an empty page
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/collections/nope/items", nil), httptest.NewRecorder())
	c.SetPath("/collections/:collectionId/items")
	c.SetParamNames("collectionId")
	c.SetParamValues("nope")

	err := s.handleItemCollection(c)
	assert.True(t, api.IsKind(err, api.KindCollectionNotFound))
}

func TestGetItem(t *testing.T) {
	e, s, store := setupTestServer(t)
	seedItems(t, store, 1)

	req := httptest.NewRequest(http.MethodGet, "/collections/sentinel-2-l2a/items/item-00", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/collections/:collectionId/items/:itemId")
	c.SetParamNames("collectionId", "itemId")
	c.SetParamValues("sentinel-2-l2a", "item-00")

	assert.NoError(t, s.handleGetItem(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("ETag"))

	var item api.Item
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &item))
	assert.Equal(t, "item-00", item.Id)
}
