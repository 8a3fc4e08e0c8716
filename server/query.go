package server

import (
	"context"
	"strings"

	"github.com/TechTraverse/stac-fastapi-pgstac/api"
	"github.com/TechTraverse/stac-fastapi-pgstac/cql"
	"github.com/TechTraverse/stac-fastapi-pgstac/token"
)

// buildSearch normalizes a bound search request into the payload the store
// procedure takes. Every constraint is conjunctive: collections, ids, bbox,
// datetime and filter all narrow the result set together.
func (s *server) buildSearch(ctx context.Context, body *api.SearchBody) (map[string]interface{}, error) {
	req := map[string]interface{}{}

	limit := s.cfg.DefaultLimit
	if body.Limit != nil {
		limit = *body.Limit
		if limit <= 0 {
			return nil, api.NewError(api.KindInvalidLimit, "limit must be positive, got %d", limit)
		}
		if limit > s.cfg.MaxLimit {
			limit = s.cfg.MaxLimit
		}
	}
	req["limit"] = limit

	if len(body.Collections) > 0 {
		for _, c := range body.Collections {
			if err := validateId("collections", c); err != nil {
				return nil, api.NewError(api.KindInvalidFilterExpression, "%s", err)
			}
		}
		req["collections"] = body.Collections
	}
	if len(body.Ids) > 0 {
		req["ids"] = body.Ids
	}

	if len(body.Bbox) > 0 && body.Intersects != nil {
		return nil, api.NewError(api.KindInvalidFilterExpression, "bbox and intersects are mutually exclusive")
	}
	if len(body.Bbox) > 0 {
		if len(body.Bbox) != 4 && len(body.Bbox) != 6 {
			return nil, api.NewError(api.KindInvalidFilterExpression, "bbox must have 4 or 6 values, got %d", len(body.Bbox))
		}
		req["bbox"] = body.Bbox
	}
	if body.Intersects != nil {
		var geom map[string]interface{}
		if err := jsonDecode(body.Intersects, &geom); err != nil {
			return nil, api.NewError(api.KindInvalidFilterExpression, "intersects is not a geometry: %v", err)
		}
		if _, ok := geom["type"].(string); !ok {
			return nil, api.NewError(api.KindInvalidFilterExpression, "intersects geometry is missing its type")
		}
		req["intersects"] = geom
	}

	if body.Datetime != "" {
		if err := validateDatetime(body.Datetime); err != nil {
			return nil, err
		}
		req["datetime"] = body.Datetime
	}

	if sortby, err := normalizeSort(body.SortBy); err != nil {
		return nil, err
	} else if sortby != nil {
		req["sortby"] = sortby
	}

	if body.Fields != nil {
		fields, err := normalizeFields(body.Fields)
		if err != nil {
			return nil, err
		}
		if fields != nil {
			req["fields"] = fields
		}
	}

	if body.Filter != nil {
		lang := body.FilterLang
		if lang == "" {
			lang = "cql2-json"
		}
		q, err := s.queryablesFor(ctx, body.Collections)
		if err != nil {
			return nil, err
		}
		filter := string(body.Filter)
		if lang == "cql2-text" {
			// GET carries the expression as a JSON string after binding
			var text string
			if err := jsonDecode(body.Filter, &text); err == nil {
				filter = text
			}
		}
		lowered, err := cql.Translate(filter, lang, q)
		if err != nil {
			return nil, err
		}
		req["filter"] = lowered
	}

	if body.Token != "" {
		st, err := token.Decode(body.Token)
		if err != nil {
			return nil, err
		}
		req["token"] = st.Direction + ":" + st.Marker
	}

	return req, nil
}

// normalizeSort turns the accepted sort shapes into the store's form and
// appends the id tiebreaker that makes pagination deterministic.
func normalizeSort(sortby []api.SortBy) ([]api.SortBy, error) {
	if len(sortby) == 0 {
		return nil, nil
	}

	out := make([]api.SortBy, 0, len(sortby)+1)
	haveId := false
	for _, sb := range sortby {
		field := sb.Field
		dir := sb.Direction

		// GET sortby entries arrive with +/- prefixes instead of a direction
		switch {
		case strings.HasPrefix(field, "-"):
			field = field[1:]
			dir = "desc"
		case strings.HasPrefix(field, "+"):
			field = field[1:]
			dir = "asc"
		}
		if dir == "" {
			dir = "asc"
		}
		if dir != "asc" && dir != "desc" {
			return nil, api.NewError(api.KindInvalidFilterExpression, "sort direction must be asc or desc, got %q", dir)
		}
		if field == "" {
			return nil, api.NewError(api.KindInvalidFilterExpression, "sort field must not be empty")
		}
		if field == "id" {
			haveId = true
		}
		out = append(out, api.SortBy{Field: field, Direction: dir})
	}

	if !haveId {
		out = append(out, api.SortBy{Field: "id", Direction: "asc"})
	}
	return out, nil
}

// normalizeFields strips the +/- prefixes the GET form uses and rejects a
// field named on both sides of the selection.
func normalizeFields(f *api.FieldSelection) (*api.FieldSelection, error) {
	out := &api.FieldSelection{}

	for _, field := range f.Include {
		if strings.HasPrefix(field, "-") {
			out.Exclude = append(out.Exclude, field[1:])
			continue
		}
		out.Include = append(out.Include, strings.TrimPrefix(field, "+"))
	}
	for _, field := range f.Exclude {
		out.Exclude = append(out.Exclude, strings.TrimPrefix(field, "-"))
	}

	seen := map[string]bool{}
	for _, field := range out.Include {
		seen[field] = true
	}
	for _, field := range out.Exclude {
		if seen[field] {
			return nil, api.NewError(api.KindConflictingFieldSelection, "field %q both included and excluded", field)
		}
	}

	if len(out.Include) == 0 && len(out.Exclude) == 0 {
		return nil, nil
	}
	return out, nil
}

// queryablesFor loads the validation allowlist for a search scope. A search
// over multiple collections validates against the union of their allowlists;
// an unscoped search uses the catalog-wide set.
func (s *server) queryablesFor(ctx context.Context, collections []string) (cql.Queryables, error) {
	if len(collections) == 0 {
		return s.cachedQueryables(ctx, "")
	}

	merged := make(cql.Queryables)
	for _, c := range collections {
		q, err := s.cachedQueryables(ctx, c)
		if err != nil {
			return nil, err
		}
		for k, v := range q {
			merged[k] = v
		}
	}
	return merged, nil
}

func (s *server) cachedQueryables(ctx context.Context, collection string) (cql.Queryables, error) {
	if q, ok := s.qcache.Get(collection); ok {
		return q, nil
	}
	q, err := s.store.Queryables(ctx, collection)
	if err != nil {
		return nil, err
	}
	s.qcache.Set(collection, q)
	return q, nil
}
