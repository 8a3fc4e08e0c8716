package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/TechTraverse/stac-fastapi-pgstac/api"
	"github.com/TechTraverse/stac-fastapi-pgstac/bus"
)

// storeCall wraps one store mutation with its metrics.
func (s *server) storeCall(procedure string, fn func() error) error {
	start := time.Now()
	err := fn()
	ObserveStoreCall(procedure, start)
	if err != nil {
		CountStoreFailure(procedure, api.KindOf(err).String())
	}
	return err
}

func (s *server) publish(op string, collection string, id string) {
	err := s.bs.Publish(bus.Event{
		Op:         op,
		Collection: collection,
		Id:         id,
		Time:       time.Now().UTC(),
	})
	if err != nil {
		// the mutation is already committed; event loss is logged, not returned
		slog.Warn("event publish failed", "op", op, "collection", collection, "err", err)
	}
}

func (s *server) handleCreateItem(c echo.Context) error {
	collectionId := c.Param("collectionId")
	if err := validateId("collectionId", collectionId); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	var item api.Item
	if err := c.Bind(&item); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if item.Collection == "" {
		item.Collection = collectionId
	}
	if item.Collection != collectionId {
		return echo.NewHTTPError(http.StatusBadRequest, "item collection does not match request path")
	}
	if err := validateId("id", item.Id); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := validateItemSchema(&item); err != nil {
		return err
	}

	err := s.storeCall("create_item", func() error {
		return s.store.CreateItem(c.Request().Context(), &item)
	})
	if err != nil {
		return err
	}

	s.publish("created", collectionId, item.Id)

	c.Response().Header().Set("ETag", etagOf(&item))
	c.Response().Header().Set("Location", "/collections/"+collectionId+"/items/"+item.Id)
	return c.JSON(http.StatusCreated, item)
}

func (s *server) handleReplaceItem(c echo.Context) error {
	collectionId := c.Param("collectionId")
	itemId := c.Param("itemId")

	var item api.Item
	if err := c.Bind(&item); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if item.Id == "" {
		item.Id = itemId
	}
	if item.Collection == "" {
		item.Collection = collectionId
	}
	if item.Id != itemId || item.Collection != collectionId {
		return echo.NewHTTPError(http.StatusBadRequest, "item identity does not match request path")
	}
	if err := validateItemSchema(&item); err != nil {
		return err
	}

	current, err := s.store.GetItem(c.Request().Context(), collectionId, itemId)
	if err != nil {
		return err
	}
	if err := checkPrecondition(c.Request().Header.Get("If-Match"), etagOf(current)); err != nil {
		return err
	}

	err = s.storeCall("update_item", func() error {
		return s.store.UpdateItem(c.Request().Context(), &item)
	})
	if err != nil {
		return err
	}

	s.publish("replaced", collectionId, itemId)

	c.Response().Header().Set("ETag", etagOf(&item))
	return c.JSON(http.StatusOK, item)
}

// patchable lists the item fields a merge patch may touch. Identity fields
// are immutable through this endpoint.
var patchable = map[string]bool{
	"geometry":        true,
	"bbox":            true,
	"properties":      true,
	"assets":          true,
	"links":           true,
	"stac_version":    true,
	"stac_extensions": true,
}

func (s *server) handlePatchItem(c echo.Context) error {
	collectionId := c.Param("collectionId")
	itemId := c.Param("itemId")

	var patch map[string]interface{}
	if err := c.Bind(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	for key := range patch {
		if !patchable[key] {
			return api.NewError(api.KindInvalidPatch, "field %q cannot be patched", key)
		}
	}

	current, err := s.store.GetItem(c.Request().Context(), collectionId, itemId)
	if err != nil {
		return err
	}
	if err := checkPrecondition(c.Request().Header.Get("If-Match"), etagOf(current)); err != nil {
		return err
	}

	raw, err := json.Marshal(current)
	if err != nil {
		return err
	}
	var base map[string]interface{}
	if err := json.Unmarshal(raw, &base); err != nil {
		return err
	}

	merged := mergePatch(base, patch)
	mergedRaw, err := json.Marshal(merged)
	if err != nil {
		return err
	}
	var item api.Item
	if err := json.Unmarshal(mergedRaw, &item); err != nil {
		return api.NewError(api.KindInvalidPatch, "patched record is not an item: %v", err)
	}
	if err := validateItemSchema(&item); err != nil {
		return err
	}

	err = s.storeCall("update_item", func() error {
		return s.store.UpdateItem(c.Request().Context(), &item)
	})
	if err != nil {
		return err
	}

	s.publish("patched", collectionId, itemId)

	c.Response().Header().Set("ETag", etagOf(&item))
	return c.JSON(http.StatusOK, item)
}

// mergePatch applies an RFC 7386 merge patch: null removes a member, nested
// objects merge recursively, everything else replaces.
func mergePatch(target map[string]interface{}, patch map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(target))
	for k, v := range target {
		out[k] = v
	}
	for k, v := range patch {
		if v == nil {
			delete(out, k)
			continue
		}
		if pv, ok := v.(map[string]interface{}); ok {
			if tv, ok := out[k].(map[string]interface{}); ok {
				out[k] = mergePatch(tv, pv)
				continue
			}
		}
		out[k] = v
	}
	return out
}

func (s *server) handleDeleteItem(c echo.Context) error {
	collectionId := c.Param("collectionId")
	itemId := c.Param("itemId")

	if ifMatch := c.Request().Header.Get("If-Match"); ifMatch != "" {
		current, err := s.store.GetItem(c.Request().Context(), collectionId, itemId)
		if err != nil {
			return err
		}
		if err := checkPrecondition(ifMatch, etagOf(current)); err != nil {
			return err
		}
	}

	err := s.storeCall("delete_item", func() error {
		return s.store.DeleteItem(c.Request().Context(), collectionId, itemId)
	})
	if err != nil {
		return err
	}

	s.publish("deleted", collectionId, itemId)

	return c.NoContent(http.StatusNoContent)
}

func (s *server) handleListCollections(c echo.Context) error {
	cols, err := s.store.AllCollections(c.Request().Context())
	if err != nil {
		return err
	}
	if cols == nil {
		cols = []api.Collection{}
	}

	lb := newLinkBuilder(c)
	return c.JSON(http.StatusOK, api.Collections{
		Collections: cols,
		Links:       []api.Link{lb.root(), lb.self("/collections")},
	})
}

func (s *server) handleGetCollection(c echo.Context) error {
	collectionId := c.Param("collectionId")

	col, err := s.store.GetCollection(c.Request().Context(), collectionId)
	if err != nil {
		return err
	}

	c.Response().Header().Set("ETag", etagOf(col))

	lb := newLinkBuilder(c)
	col.Links = append(col.Links, lb.root(), lb.items(collectionId))
	return c.JSON(http.StatusOK, col)
}

func (s *server) handleCreateCollection(c echo.Context) error {
	var col api.Collection
	if err := c.Bind(&col); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validateId("id", col.Id); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := validateCollectionSchema(&col); err != nil {
		return err
	}

	err := s.storeCall("create_collection", func() error {
		return s.store.CreateCollection(c.Request().Context(), &col)
	})
	if err != nil {
		return err
	}

	s.publish("created", col.Id, "")

	c.Response().Header().Set("ETag", etagOf(&col))
	c.Response().Header().Set("Location", "/collections/"+col.Id)
	return c.JSON(http.StatusCreated, col)
}

func (s *server) handleUpdateCollection(c echo.Context) error {
	collectionId := c.Param("collectionId")

	var col api.Collection
	if err := c.Bind(&col); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if col.Id == "" {
		col.Id = collectionId
	}
	if col.Id != collectionId {
		return echo.NewHTTPError(http.StatusBadRequest, "collection id does not match request path")
	}
	if err := validateCollectionSchema(&col); err != nil {
		return err
	}

	current, err := s.store.GetCollection(c.Request().Context(), collectionId)
	if err != nil {
		return err
	}
	if err := checkPrecondition(c.Request().Header.Get("If-Match"), etagOf(current)); err != nil {
		return err
	}

	err = s.storeCall("update_collection", func() error {
		return s.store.UpdateCollection(c.Request().Context(), &col)
	})
	if err != nil {
		return err
	}

	s.publish("replaced", collectionId, "")

	c.Response().Header().Set("ETag", etagOf(&col))
	return c.JSON(http.StatusOK, col)
}

func (s *server) handleDeleteCollection(c echo.Context) error {
	collectionId := c.Param("collectionId")

	err := s.storeCall("delete_collection", func() error {
		return s.store.DeleteCollection(c.Request().Context(), collectionId)
	})
	if err != nil {
		return err
	}

	s.publish("deleted", collectionId, "")

	return c.NoContent(http.StatusNoContent)
}
