package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/TechTraverse/stac-fastapi-pgstac/api"
	"github.com/TechTraverse/stac-fastapi-pgstac/token"
)

// runSearch executes one normalized search and assembles the feature
// collection response. The store's raw continuation markers are wrapped into
// opaque tokens here; clients never see store internals.
func (s *server) runSearch(c echo.Context, body *api.SearchBody) error {
	req, err := s.buildSearch(c.Request().Context(), body)
	if err != nil {
		return err
	}

	start := time.Now()
	page, err := s.store.Search(c.Request().Context(), req)
	ObserveStoreCall("search", start)
	if err != nil {
		CountStoreFailure("search", api.KindOf(err).String())
		return err
	}

	fc := api.ItemCollection{
		Type:           "FeatureCollection",
		Features:       page.Features,
		NumberMatched:  page.Matched,
		NumberReturned: len(page.Features),
	}
	if fc.Features == nil {
		fc.Features = []api.Item{}
	}

	lb := newLinkBuilder(c)
	fc.Links = []api.Link{lb.root(), lb.self(c.Request().URL.RequestURI())}
	if page.Next != "" {
		tok := token.Encode(token.State{Direction: token.DirectionNext, Marker: page.Next})
		fc.Links = append(fc.Links, lb.page("next", c, tok))
	}
	if page.Prev != "" {
		tok := token.Encode(token.State{Direction: token.DirectionPrev, Marker: page.Prev})
		fc.Links = append(fc.Links, lb.page("prev", c, tok))
	}

	return c.JSON(http.StatusOK, fc)
}

func (s *server) handlePostSearch(c echo.Context) error {
	var body api.SearchBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return s.runSearch(c, &body)
}

// handleGetSearch binds the GET query form onto the same shape POST uses.
func (s *server) handleGetSearch(c echo.Context) error {
	body, err := searchBodyFromQuery(c)
	if err != nil {
		return err
	}
	return s.runSearch(c, body)
}

func searchBodyFromQuery(c echo.Context) (*api.SearchBody, error) {
	body := &api.SearchBody{}

	if v := c.QueryParam("collections"); v != "" {
		body.Collections = strings.Split(v, ",")
	}
	if v := c.QueryParam("ids"); v != "" {
		body.Ids = strings.Split(v, ",")
	}
	if v := c.QueryParam("bbox"); v != "" {
		bbox, err := parseBBox(v)
		if err != nil {
			return nil, err
		}
		body.Bbox = bbox
	}
	if v := c.QueryParam("intersects"); v != "" {
		body.Intersects = []byte(v)
	}
	if v := c.QueryParam("datetime"); v != "" {
		body.Datetime = v
	}
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, api.NewError(api.KindInvalidLimit, "limit %q is not an integer", v)
		}
		body.Limit = &n
	}
	if v := c.QueryParam("token"); v != "" {
		body.Token = v
	}
	if v := c.QueryParam("sortby"); v != "" {
		for _, f := range strings.Split(v, ",") {
			body.SortBy = append(body.SortBy, api.SortBy{Field: strings.TrimSpace(f)})
		}
	}
	if v := c.QueryParam("fields"); v != "" {
		body.Fields = &api.FieldSelection{Include: strings.Split(v, ",")}
	}
	if v := c.QueryParam("filter"); v != "" {
		body.Filter = []byte(v)
		body.FilterLang = c.QueryParam("filter-lang")
		if body.FilterLang == "" {
			body.FilterLang = "cql2-text"
		}
	}

	return body, nil
}

// handleItemCollection lists the items of one collection, paged the same way
// search pages.
func (s *server) handleItemCollection(c echo.Context) error {
	collectionId := c.Param("collectionId")
	if err := validateId("collectionId", collectionId); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if _, err := s.store.GetCollection(c.Request().Context(), collectionId); err != nil {
		return err
	}

	body, err := searchBodyFromQuery(c)
	if err != nil {
		return err
	}
	body.Collections = []string{collectionId}

	return s.runSearch(c, body)
}

func (s *server) handleGetItem(c echo.Context) error {
	collectionId := c.Param("collectionId")
	itemId := c.Param("itemId")

	item, err := s.store.GetItem(c.Request().Context(), collectionId, itemId)
	if err != nil {
		return err
	}

	// fingerprint the stored representation, not the response decoration
	c.Response().Header().Set("ETag", etagOf(item))

	lb := newLinkBuilder(c)
	item.Links = append(item.Links, lb.root(), lb.collection(collectionId))

	return c.JSON(http.StatusOK, item)
}
