package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/TechTraverse/stac-fastapi-pgstac/api"
)

var conformsTo = []string{
	"https://api.stacspec.org/v1.0.0/core",
	"https://api.stacspec.org/v1.0.0/collections",
	"https://api.stacspec.org/v1.0.0/ogcapi-features",
	"https://api.stacspec.org/v1.0.0/item-search",
	"https://api.stacspec.org/v1.0.0/item-search#fields",
	"https://api.stacspec.org/v1.0.0/item-search#sort",
	"https://api.stacspec.org/v1.0.0/item-search#filter",
	"https://api.stacspec.org/v1.0.0-rc.3/transaction",
	"http://www.opengis.net/spec/cql2/1.0/conf/cql2-text",
	"http://www.opengis.net/spec/cql2/1.0/conf/cql2-json",
	"http://www.opengis.net/spec/cql2/1.0/conf/basic-cql2",
}

func (s *server) handleLandingPage(c echo.Context) error {
	lb := newLinkBuilder(c)

	return c.JSON(http.StatusOK, map[string]interface{}{
		"type":        "Catalog",
		"id":          "stac-catalog",
		"title":       "STAC API",
		"description": "Searchable spatiotemporal asset catalog",
		"stac_version": "1.0.0",
		"conformsTo":  conformsTo,
		"links": []api.Link{
			lb.root(),
			lb.self("/"),
			{Rel: "conformance", Href: lb.base + "/conformance", Type: echo.MIMEApplicationJSON},
			{Rel: "data", Href: lb.base + "/collections", Type: echo.MIMEApplicationJSON},
			{Rel: "search", Href: lb.base + "/search", Type: mimeGeoJSON, Method: "GET"},
			{Rel: "search", Href: lb.base + "/search", Type: mimeGeoJSON, Method: "POST"},
			{Rel: "http://www.opengis.net/def/rel/ogc/1.0/queryables", Href: lb.base + "/queryables", Type: echo.MIMEApplicationJSON},
		},
	})
}

func (s *server) handleConformance(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"conformsTo": conformsTo,
	})
}
