package server

import (
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/TechTraverse/stac-fastapi-pgstac/api"
)

const mimeGeoJSON = "application/geo+json"

// linkBuilder assembles the hypermedia links each response carries. All
// hrefs are absolute, derived from the incoming request.
type linkBuilder struct {
	base string
}

func newLinkBuilder(c echo.Context) linkBuilder {
	return linkBuilder{base: c.Scheme() + "://" + c.Request().Host}
}

func (lb linkBuilder) root() api.Link {
	return api.Link{Rel: "root", Href: lb.base + "/", Type: echo.MIMEApplicationJSON}
}

func (lb linkBuilder) self(path string) api.Link {
	return api.Link{Rel: "self", Href: lb.base + path, Type: echo.MIMEApplicationJSON}
}

func (lb linkBuilder) collection(id string) api.Link {
	return api.Link{Rel: "collection", Href: lb.base + "/collections/" + url.PathEscape(id), Type: echo.MIMEApplicationJSON}
}

func (lb linkBuilder) items(collectionId string) api.Link {
	return api.Link{Rel: "items", Href: lb.base + "/collections/" + url.PathEscape(collectionId) + "/items", Type: mimeGeoJSON}
}

// page builds a next or prev continuation link. GET continuations carry the
// token as a query parameter; POST continuations carry it in the link body.
func (lb linkBuilder) page(rel string, c echo.Context, tok string) api.Link {
	if c.Request().Method == "POST" {
		return api.Link{
			Rel:    rel,
			Href:   lb.base + c.Path(),
			Type:   mimeGeoJSON,
			Method: "POST",
			Body:   map[string]interface{}{"token": tok},
		}
	}

	u := *c.Request().URL
	q := u.Query()
	q.Set("token", tok)
	u.RawQuery = q.Encode()
	return api.Link{Rel: rel, Href: lb.base + u.String(), Type: mimeGeoJSON}
}
