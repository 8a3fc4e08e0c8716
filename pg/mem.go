package pg

import (
	"context"
	"encoding/json"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/TechTraverse/stac-fastapi-pgstac/api"
	"github.com/TechTraverse/stac-fastapi-pgstac/cql"
)

// Mem is an in-memory Store with the same procedure semantics as pgstac:
// deterministic sort, continuation markers, classified errors. It backs the
// test suite and counts calls so tests can assert that rejected requests
// never reach the store.
type Mem struct {
	mu          sync.Mutex
	collections map[string]*api.Collection
	items       map[string]map[string]*api.Item
	queryables  map[string]cql.Queryables

	SearchCalls   int
	MutationCalls int
}

func NewMem() *Mem {
	return &Mem{
		collections: make(map[string]*api.Collection),
		items:       make(map[string]map[string]*api.Item),
		queryables:  make(map[string]cql.Queryables),
	}
}

func (m *Mem) Ping(ctx context.Context) error { return nil }
func (m *Mem) Close()                         {}

// SetQueryables configures the allowlist a collection reports.
func (m *Mem) SetQueryables(collection string, q cql.Queryables) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queryables[collection] = q
}

func (m *Mem) Queryables(ctx context.Context, collection string) (cql.Queryables, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := make(cql.Queryables)
	if collection == "" {
		// catalog-wide allowlist: the union over all collections
		for _, cq := range m.queryables {
			for k, v := range cq {
				q[k] = v
			}
		}
		return q, nil
	}
	if _, ok := m.collections[collection]; !ok {
		return nil, api.NewError(api.KindCollectionNotFound, "collection %s does not exist", collection)
	}
	for k, v := range m.queryables[collection] {
		q[k] = v
	}
	return q, nil
}

func (m *Mem) AllCollections(ctx context.Context) ([]api.Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.collections))
	for id := range m.collections {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]api.Collection, 0, len(ids))
	for _, id := range ids {
		out = append(out, *copyCollection(m.collections[id]))
	}
	return out, nil
}

func (m *Mem) GetCollection(ctx context.Context, id string) (*api.Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[id]
	if !ok {
		return nil, api.NewError(api.KindCollectionNotFound, "collection %s does not exist", id)
	}
	return copyCollection(c), nil
}

func (m *Mem) CreateCollection(ctx context.Context, c *api.Collection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MutationCalls++
	if _, ok := m.collections[c.Id]; ok {
		return api.NewError(api.KindAlreadyExists, "collection %s already exists", c.Id)
	}
	m.collections[c.Id] = copyCollection(c)
	m.items[c.Id] = make(map[string]*api.Item)
	return nil
}

func (m *Mem) UpdateCollection(ctx context.Context, c *api.Collection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MutationCalls++
	if _, ok := m.collections[c.Id]; !ok {
		return api.NewError(api.KindNotFound, "collection %s does not exist", c.Id)
	}
	m.collections[c.Id] = copyCollection(c)
	return nil
}

func (m *Mem) DeleteCollection(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MutationCalls++
	if _, ok := m.collections[id]; !ok {
		return api.NewError(api.KindNotFound, "collection %s does not exist", id)
	}
	delete(m.collections, id)
	delete(m.items, id)
	return nil
}

func (m *Mem) GetItem(ctx context.Context, collection string, id string) (*api.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items, ok := m.items[collection]
	if !ok {
		return nil, api.NewError(api.KindCollectionNotFound, "collection %s does not exist", collection)
	}
	item, ok := items[id]
	if !ok {
		return nil, api.NewError(api.KindNotFound, "item %s in collection %s does not exist", id, collection)
	}
	return copyItem(item), nil
}

func (m *Mem) CreateItem(ctx context.Context, item *api.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MutationCalls++
	items, ok := m.items[item.Collection]
	if !ok {
		return api.NewError(api.KindCollectionNotFound, "collection %s does not exist", item.Collection)
	}
	if _, ok := items[item.Id]; ok {
		return api.NewError(api.KindAlreadyExists, "item %s already exists in collection %s", item.Id, item.Collection)
	}
	items[item.Id] = copyItem(item)
	return nil
}

func (m *Mem) UpdateItem(ctx context.Context, item *api.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MutationCalls++
	items, ok := m.items[item.Collection]
	if !ok {
		return api.NewError(api.KindCollectionNotFound, "collection %s does not exist", item.Collection)
	}
	if _, ok := items[item.Id]; !ok {
		return api.NewError(api.KindNotFound, "item %s in collection %s does not exist", item.Id, item.Collection)
	}
	items[item.Id] = copyItem(item)
	return nil
}

func (m *Mem) DeleteItem(ctx context.Context, collection string, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MutationCalls++
	items, ok := m.items[collection]
	if !ok {
		return api.NewError(api.KindCollectionNotFound, "collection %s does not exist", collection)
	}
	if _, ok := items[id]; !ok {
		return api.NewError(api.KindNotFound, "item %s in collection %s does not exist", id, collection)
	}
	delete(items, id)
	return nil
}

type memSearch struct {
	Collections []string               `json:"collections"`
	Ids         []string               `json:"ids"`
	Bbox        []float64              `json:"bbox"`
	Intersects  map[string]interface{} `json:"intersects"`
	Datetime    string                 `json:"datetime"`
	Limit       int                    `json:"limit"`
	Token       string                 `json:"token"`
	SortBy      []api.SortBy           `json:"sortby"`
	Filter      map[string]interface{} `json:"filter"`
	Fields      *api.FieldSelection    `json:"fields"`
}

func (m *Mem) Search(ctx context.Context, req map[string]interface{}) (*SearchPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SearchCalls++

	raw, err := json.Marshal(req)
	if err != nil {
		return nil, api.WrapError(api.KindStoreExecutionFailed, "search", "", err)
	}
	var s memSearch
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, api.WrapError(api.KindStoreExecutionFailed, "search", "", err)
	}
	if s.Limit <= 0 {
		s.Limit = 10
	}

	rows := m.matchingRows(&s)
	sortRows(rows, s.SortBy)

	start, end, prevMarker, nextMarker := pageBounds(rows, s.Token, s.Limit)

	matched := int64(len(rows))
	page := &SearchPage{
		Next:    nextMarker,
		Prev:    prevMarker,
		Matched: &matched,
	}
	for _, item := range rows[start:end] {
		out := copyItem(item)
		if s.Fields != nil {
			out = applyFields(out, s.Fields.Include, s.Fields.Exclude)
		}
		page.Features = append(page.Features, *out)
	}
	return page, nil
}

func rowKey(item *api.Item) string {
	return item.Collection + ":" + item.Id
}

// pageBounds resolves a continuation token ("next:<marker>"/"prev:<marker>")
// against the full sorted row set and produces the slice bounds plus the
// markers for the surrounding pages.
func pageBounds(rows []*api.Item, tok string, limit int) (start, end int, prevMarker, nextMarker string) {
	start = 0
	if tok != "" {
		dir, marker, _ := strings.Cut(tok, ":")
		at := -1
		for i, r := range rows {
			if rowKey(r) == marker {
				at = i
				break
			}
		}
		if at >= 0 {
			if dir == "next" {
				start = at + 1
			} else {
				start = at - limit
				if start < 0 {
					start = 0
				}
			}
		}
	}

	end = start + limit
	if end > len(rows) {
		end = len(rows)
	}
	if start > 0 && start < len(rows) {
		prevMarker = rowKey(rows[start])
	}
	if end < len(rows) && end > 0 {
		nextMarker = rowKey(rows[end-1])
	}
	return start, end, prevMarker, nextMarker
}

func (m *Mem) matchingRows(s *memSearch) []*api.Item {
	colIDs := s.Collections
	if len(colIDs) == 0 {
		for id := range m.collections {
			colIDs = append(colIDs, id)
		}
		sort.Strings(colIDs)
	}

	idSet := map[string]bool{}
	for _, id := range s.Ids {
		idSet[id] = true
	}

	var bbox []float64
	if len(s.Bbox) >= 4 {
		bbox = s.Bbox
	} else if s.Intersects != nil {
		bbox = envelope(s.Intersects)
	}

	var rows []*api.Item
	for _, cid := range colIDs {
		for _, item := range m.items[cid] {
			if len(idSet) > 0 && !idSet[item.Id] {
				continue
			}
			if bbox != nil && !bboxIntersects(bbox, item.Bbox) {
				continue
			}
			if s.Datetime != "" && !datetimeMatches(s.Datetime, item) {
				continue
			}
			if s.Filter != nil && !evalFilter(s.Filter, item) {
				continue
			}
			rows = append(rows, item)
		}
	}
	return rows
}

func sortRows(rows []*api.Item, sortby []api.SortBy) {
	if len(sortby) == 0 {
		sortby = []api.SortBy{{Field: "datetime", Direction: "desc"}, {Field: "id", Direction: "asc"}}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, sb := range sortby {
			a := sortValue(rows[i], sb.Field)
			b := sortValue(rows[j], sb.Field)
			cmp := compareValues(a, b)
			if cmp == 0 {
				continue
			}
			if sb.Direction == "desc" {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

func sortValue(item *api.Item, field string) interface{} {
	switch field {
	case "id":
		return item.Id
	case "collection":
		return item.Collection
	}
	name := strings.TrimPrefix(field, "properties.")
	if v, ok := item.Properties[name]; ok {
		return v
	}
	return nil
}

func compareValues(a, b interface{}) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0
		}
		return strings.Compare(av, bv)
	case float64:
		bv, ok := toFloat(b)
		if !ok {
			return 0
		}
		if av < bv {
			return -1
		} else if av > bv {
			return 1
		}
		return 0
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0
		}
		if av == bv {
			return 0
		}
		if !av {
			return -1
		}
		return 1
	}
	if f, ok := toFloat(a); ok {
		if g, ok := toFloat(b); ok {
			if f < g {
				return -1
			} else if f > g {
				return 1
			}
		}
	}
	return 0
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func bboxIntersects(query []float64, item []float64) bool {
	if len(item) < 4 {
		return false
	}
	return !(item[2] < query[0] || item[0] > query[2] || item[3] < query[1] || item[1] > query[3])
}

// envelope computes the bounding box of a GeoJSON geometry's coordinates.
func envelope(geom map[string]interface{}) []float64 {
	var minx, miny, maxx, maxy float64
	first := true
	var walk func(v interface{})
	walk = func(v interface{}) {
		arr, ok := v.([]interface{})
		if !ok {
			return
		}
		if len(arr) >= 2 {
			if x, ok := toFloat(arr[0]); ok {
				if y, ok := toFloat(arr[1]); ok {
					if first {
						minx, miny, maxx, maxy = x, y, x, y
						first = false
					} else {
						if x < minx {
							minx = x
						}
						if x > maxx {
							maxx = x
						}
						if y < miny {
							miny = y
						}
						if y > maxy {
							maxy = y
						}
					}
					return
				}
			}
		}
		for _, sub := range arr {
			walk(sub)
		}
	}
	walk(geom["coordinates"])
	if first {
		return nil
	}
	return []float64{minx, miny, maxx, maxy}
}

func datetimeMatches(dt string, item *api.Item) bool {
	itemDT, _ := item.Properties["datetime"].(string)
	if itemDT == "" {
		return false
	}
	ts, err := time.Parse(time.RFC3339, itemDT)
	if err != nil {
		return false
	}

	start, end, ok := strings.Cut(dt, "/")
	if !ok {
		instant, err := time.Parse(time.RFC3339, dt)
		if err != nil {
			return false
		}
		return ts.Equal(instant)
	}
	if start != ".." && start != "" {
		s, err := time.Parse(time.RFC3339, start)
		if err != nil || ts.Before(s) {
			return false
		}
	}
	if end != ".." && end != "" {
		e, err := time.Parse(time.RFC3339, end)
		if err != nil || ts.After(e) {
			return false
		}
	}
	return true
}

// evalFilter interprets the lowered cql2-json payload against one item.
func evalFilter(node map[string]interface{}, item *api.Item) bool {
	op, _ := node["op"].(string)
	args, _ := node["args"].([]interface{})

	switch op {
	case "and":
		for _, a := range args {
			sub, ok := a.(map[string]interface{})
			if !ok || !evalFilter(sub, item) {
				return false
			}
		}
		return true
	case "or":
		for _, a := range args {
			if sub, ok := a.(map[string]interface{}); ok && evalFilter(sub, item) {
				return true
			}
		}
		return false
	case "not":
		if len(args) != 1 {
			return false
		}
		sub, ok := args[0].(map[string]interface{})
		return ok && !evalFilter(sub, item)
	case "isNull":
		if len(args) != 1 {
			return false
		}
		return resolveOperand(args[0], item) == nil
	case "=", "<>", "<", "<=", ">", ">=":
		if len(args) != 2 {
			return false
		}
		left := resolveOperand(args[0], item)
		right := resolveOperand(args[1], item)
		if left == nil || right == nil {
			return false
		}
		cmp := compareValues(left, right)
		switch op {
		case "=":
			return cmp == 0
		case "<>":
			return cmp != 0
		case "<":
			return cmp < 0
		case "<=":
			return cmp <= 0
		case ">":
			return cmp > 0
		case ">=":
			return cmp >= 0
		}
	case "like":
		if len(args) != 2 {
			return false
		}
		val, _ := resolveOperand(args[0], item).(string)
		pattern, _ := args[1].(string)
		return likeMatch(pattern, val)
	case "in":
		if len(args) != 2 {
			return false
		}
		val := resolveOperand(args[0], item)
		list, _ := args[1].([]interface{})
		for _, candidate := range list {
			if compareValues(val, resolveOperand(candidate, item)) == 0 {
				return true
			}
		}
		return false
	case "between":
		if len(args) != 3 {
			return false
		}
		val := resolveOperand(args[0], item)
		low := resolveOperand(args[1], item)
		high := resolveOperand(args[2], item)
		return val != nil && compareValues(val, low) >= 0 && compareValues(val, high) <= 0
	case "s_intersects", "s_contains", "s_within", "s_disjoint":
		if len(args) != 2 {
			return false
		}
		geom, _ := args[1].(map[string]interface{})
		box := envelope(geom)
		if box == nil {
			return false
		}
		hit := bboxIntersects(box, item.Bbox)
		if op == "s_disjoint" {
			return !hit
		}
		return hit
	}
	return false
}

func resolveOperand(v interface{}, item *api.Item) interface{} {
	node, ok := v.(map[string]interface{})
	if !ok {
		return v
	}
	if name, ok := node["property"].(string); ok {
		switch name {
		case "id":
			return item.Id
		case "collection":
			return item.Collection
		}
		return item.Properties[strings.TrimPrefix(name, "properties.")]
	}
	if fn, ok := node["op"].(string); ok {
		args, _ := node["args"].([]interface{})
		if len(args) == 1 {
			arg, _ := resolveOperand(args[0], item).(string)
			switch fn {
			case "casei", "lower":
				return strings.ToLower(arg)
			case "upper":
				return strings.ToUpper(arg)
			case "accenti":
				return arg
			}
		}
	}
	return nil
}

func likeMatch(pattern string, val string) bool {
	var b strings.Builder
	b.WriteString("^")
	for _, ch := range pattern {
		switch ch {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(ch)))
		}
	}
	b.WriteString("$")
	re, err := regexp.Compile(b.String())
	if err != nil {
		return false
	}
	return re.MatchString(val)
}

// applyFields trims an item to the requested field selection. The minimal
// identifying fields survive any selection.
func applyFields(item *api.Item, include []string, exclude []string) *api.Item {
	if len(include) > 0 {
		out := &api.Item{Type: item.Type, Id: item.Id, Collection: item.Collection}
		for _, f := range include {
			switch {
			case f == "geometry":
				out.Geometry = item.Geometry
			case f == "bbox":
				out.Bbox = item.Bbox
			case f == "assets":
				out.Assets = item.Assets
			case f == "links":
				out.Links = item.Links
			case f == "properties":
				out.Properties = item.Properties
			case strings.HasPrefix(f, "properties."):
				name := strings.TrimPrefix(f, "properties.")
				if v, ok := item.Properties[name]; ok {
					if out.Properties == nil {
						out.Properties = map[string]interface{}{}
					}
					out.Properties[name] = v
				}
			}
		}
		return out
	}

	for _, f := range exclude {
		switch {
		case f == "geometry":
			item.Geometry = nil
		case f == "bbox":
			item.Bbox = nil
		case f == "assets":
			item.Assets = nil
		case f == "links":
			item.Links = nil
		case f == "properties":
			item.Properties = nil
		case strings.HasPrefix(f, "properties."):
			delete(item.Properties, strings.TrimPrefix(f, "properties."))
		}
	}
	return item
}

func copyItem(item *api.Item) *api.Item {
	raw, _ := json.Marshal(item)
	out := new(api.Item)
	_ = json.Unmarshal(raw, out)
	return out
}

func copyCollection(c *api.Collection) *api.Collection {
	raw, _ := json.Marshal(c)
	out := new(api.Collection)
	_ = json.Unmarshal(raw, out)
	return out
}
