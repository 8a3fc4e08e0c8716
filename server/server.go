// Package server is the HTTP surface of the catalog: search, collection and
// item CRUD, queryables, and the discovery endpoints.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/lmittmann/tint"
	"github.com/maypok86/otter"

	"github.com/TechTraverse/stac-fastapi-pgstac/api"
	"github.com/TechTraverse/stac-fastapi-pgstac/bus"
	"github.com/TechTraverse/stac-fastapi-pgstac/config"
	"github.com/TechTraverse/stac-fastapi-pgstac/cql"
	"github.com/TechTraverse/stac-fastapi-pgstac/pg"
)

type server struct {
	store pg.Store
	bs    bus.Bus
	cfg   *config.Settings

	// queryable allowlists rarely change; cache per collection id,
	// "" keys the catalog-wide union
	qcache otter.Cache[string, cql.Queryables]
}

func newServer(store pg.Store, bs bus.Bus, cfg *config.Settings) *server {
	cache, err := otter.MustBuilder[string, cql.Queryables](10000).
		WithTTL(60 * time.Second).
		Build()
	if err != nil {
		panic(err)
	}

	return &server{
		store:  store,
		bs:     bs,
		cfg:    cfg,
		qcache: cache,
	}
}

func (s *server) routes(e *echo.Echo) {
	e.GET("/", s.handleLandingPage)
	e.GET("/conformance", s.handleConformance)

	e.GET("/search", s.handleGetSearch)
	e.POST("/search", s.handlePostSearch)

	e.GET("/collections", s.handleListCollections)
	e.POST("/collections", s.handleCreateCollection)
	e.GET("/collections/:collectionId", s.handleGetCollection)
	e.PUT("/collections/:collectionId", s.handleUpdateCollection)
	e.DELETE("/collections/:collectionId", s.handleDeleteCollection)

	e.GET("/collections/:collectionId/queryables", s.handleQueryables)
	e.GET("/queryables", s.handleQueryables)

	e.GET("/collections/:collectionId/items", s.handleItemCollection)
	e.POST("/collections/:collectionId/items", s.handleCreateItem)
	e.GET("/collections/:collectionId/items/:itemId", s.handleGetItem)
	e.PUT("/collections/:collectionId/items/:itemId", s.handleReplaceItem)
	e.PATCH("/collections/:collectionId/items/:itemId", s.handlePatchItem)
	e.DELETE("/collections/:collectionId/items/:itemId", s.handleDeleteItem)
}

// errorHandler maps classified errors onto their status contract. Anything
// unclassified is a 500 with the detail kept out of the response body.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	if he, ok := err.(*echo.HTTPError); ok {
		_ = c.JSON(he.Code, map[string]interface{}{
			"code":        http.StatusText(he.Code),
			"description": he.Message,
		})
		return
	}

	kind := api.KindOf(err)
	status := kind.HTTPStatus()
	if status >= 500 {
		slog.Error("request failed", "err", err, "path", c.Path())
		_ = c.JSON(status, map[string]interface{}{
			"code":        kind.String(),
			"description": "internal error",
		})
		return
	}

	_ = c.JSON(status, map[string]interface{}{
		"code":        kind.String(),
		"description": err.Error(),
	})
}

func Main(cfgPath string) {
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, nil)))

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}

	initTelemetry(cfg.OTLPEndpoint)

	store, err := pg.NewPgstac(context.Background(), cfg.Database)
	if err != nil {
		slog.Error("database", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	var bs bus.Bus
	switch {
	case cfg.NatsEmbed:
		bs, err = bus.NewEmbeddedNats()
	case cfg.NatsURL != "":
		bs, err = bus.ConnectNats(cfg.NatsURL)
	default:
		bs = bus.NewSoloBus()
	}
	if err != nil {
		slog.Error("bus", "err", err)
		os.Exit(1)
	}
	defer bs.Close()

	s := newServer(store, bs, cfg)

	e := echo.New()
	e.HideBanner = true
	e.Binder = &Binder{defaultBinder: &echo.DefaultBinder{}}
	e.HTTPErrorHandler = errorHandler
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())
	e.Use(TracingMiddleware)
	e.Use(PrometheusMiddleware)

	s.routes(e)

	go s.statsd()

	e.Logger.Fatal(e.Start(cfg.Listen))
}
