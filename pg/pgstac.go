package pg

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/TechTraverse/stac-fastapi-pgstac/api"
	"github.com/TechTraverse/stac-fastapi-pgstac/cql"
)

// Pgstac talks to a pgstac database through its stored procedures. Each call
// borrows one pooled connection for exactly the duration of the statement;
// cancellation of the caller's context cancels the statement.
type Pgstac struct {
	pool *pgxpool.Pool
}

func NewPgstac(ctx context.Context, dsn string) (*Pgstac, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.ConnConfig.RuntimeParams["search_path"] = "pgstac,public"
	cfg.ConnConfig.RuntimeParams["application_name"] = "pgstac"

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &Pgstac{pool: pool}, nil
}

func (p *Pgstac) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *Pgstac) Close() {
	p.pool.Close()
}

// callJSON wraps SELECT fn($1::text::jsonb), the pgstac procedure calling
// convention for json arguments.
func (p *Pgstac) callJSON(ctx context.Context, fn string, arg interface{}) ([]byte, error) {
	payload, err := json.Marshal(arg)
	if err != nil {
		return nil, err
	}
	var out []byte
	err = p.pool.QueryRow(ctx, "SELECT "+fn+"($1::text::jsonb)", string(payload)).Scan(&out)
	return out, err
}

// callText wraps SELECT fn($1::text, ...) for procedures taking text ids.
func (p *Pgstac) callText(ctx context.Context, fn string, args ...string) ([]byte, error) {
	placeholders := make([]string, len(args))
	params := make([]interface{}, len(args))
	for i, a := range args {
		placeholders[i] = fmt.Sprintf("$%d::text", i+1)
		params[i] = a
	}
	var out []byte
	err := p.pool.QueryRow(ctx, "SELECT "+fn+"("+strings.Join(placeholders, ", ")+")", params...).Scan(&out)
	return out, err
}

// searchResult is the shape pgstac's search() returns. Newer versions emit
// spec-style links instead of bare next/prev markers, so both are read.
type searchResult struct {
	Type          string     `json:"type"`
	Features      []api.Item `json:"features"`
	Next          string     `json:"next"`
	Prev          string     `json:"prev"`
	NumberMatched *int64     `json:"numberMatched"`
	Links         []api.Link `json:"links"`
	Context       *struct {
		Matched *int64 `json:"matched"`
	} `json:"context"`
}

func (p *Pgstac) Search(ctx context.Context, req map[string]interface{}) (*SearchPage, error) {
	raw, err := p.callJSON(ctx, "search", req)
	if err != nil {
		return nil, classify("search", "", err)
	}

	var res searchResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, api.WrapError(api.KindStoreExecutionFailed, "search", "", err)
	}

	page := &SearchPage{
		Features: res.Features,
		Next:     res.Next,
		Prev:     res.Prev,
		Matched:  res.NumberMatched,
	}
	if page.Matched == nil && res.Context != nil {
		page.Matched = res.Context.Matched
	}
	for _, link := range res.Links {
		if marker, ok := markerFromHref(link.Href, "next"); ok && page.Next == "" {
			page.Next = marker
		}
		if marker, ok := markerFromHref(link.Href, "prev"); ok && page.Prev == "" {
			page.Prev = marker
		}
	}

	return page, nil
}

// markerFromHref extracts the continuation marker from a pgstac-built link
// href of the form ...token=next:<collection>:<id>.
func markerFromHref(href string, dir string) (string, bool) {
	needle := "token=" + dir + ":"
	idx := strings.Index(href, needle)
	if idx < 0 {
		return "", false
	}
	marker := href[idx+len(needle):]
	if amp := strings.IndexByte(marker, '&'); amp >= 0 {
		marker = marker[:amp]
	}
	return marker, marker != ""
}

func (p *Pgstac) AllCollections(ctx context.Context) ([]api.Collection, error) {
	raw, err := p.callText(ctx, "all_collections")
	if err != nil {
		return nil, classify("all_collections", "", err)
	}
	var cols []api.Collection
	if err := json.Unmarshal(raw, &cols); err != nil {
		return nil, api.WrapError(api.KindStoreExecutionFailed, "all_collections", "", err)
	}
	return cols, nil
}

func (p *Pgstac) GetCollection(ctx context.Context, id string) (*api.Collection, error) {
	raw, err := p.callText(ctx, "get_collection", id)
	if err != nil {
		return nil, classify("get_collection", id, err)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, api.NewError(api.KindCollectionNotFound, "collection %s does not exist", id)
	}
	var col api.Collection
	if err := json.Unmarshal(raw, &col); err != nil {
		return nil, api.WrapError(api.KindStoreExecutionFailed, "get_collection", id, err)
	}
	return &col, nil
}

func (p *Pgstac) CreateCollection(ctx context.Context, c *api.Collection) error {
	_, err := p.callJSON(ctx, "create_collection", c)
	return classify("create_collection", c.Id, err)
}

func (p *Pgstac) UpdateCollection(ctx context.Context, c *api.Collection) error {
	_, err := p.callJSON(ctx, "update_collection", c)
	return classify("update_collection", c.Id, err)
}

func (p *Pgstac) DeleteCollection(ctx context.Context, id string) error {
	_, err := p.callText(ctx, "delete_collection", id)
	return classify("delete_collection", id, err)
}

// GetItem is a one-record search, the same path the original service uses.
func (p *Pgstac) GetItem(ctx context.Context, collection string, id string) (*api.Item, error) {
	page, err := p.Search(ctx, map[string]interface{}{
		"ids":         []string{id},
		"collections": []string{collection},
		"limit":       1,
	})
	if err != nil {
		return nil, err
	}
	if len(page.Features) == 0 {
		return nil, api.NewError(api.KindNotFound, "item %s in collection %s does not exist", id, collection)
	}
	return &page.Features[0], nil
}

func (p *Pgstac) CreateItem(ctx context.Context, item *api.Item) error {
	_, err := p.callJSON(ctx, "create_item", item)
	return classify("create_item", item.Collection+"/"+item.Id, err)
}

func (p *Pgstac) UpdateItem(ctx context.Context, item *api.Item) error {
	_, err := p.callJSON(ctx, "update_item", item)
	return classify("update_item", item.Collection+"/"+item.Id, err)
}

func (p *Pgstac) DeleteItem(ctx context.Context, collection string, id string) error {
	_, err := p.callText(ctx, "delete_item", id, collection)
	return classify("delete_item", collection+"/"+id, err)
}

// Queryables reads the collection's queryable json-schema and flattens it
// into the allowlist the filter translator validates against.
func (p *Pgstac) Queryables(ctx context.Context, collection string) (cql.Queryables, error) {
	// no argument means the catalog-wide set
	args := []string{}
	if collection != "" {
		args = append(args, collection)
	}
	raw, err := p.callText(ctx, "get_queryables", args...)
	if err != nil {
		return nil, classify("get_queryables", collection, err)
	}

	var schema struct {
		Properties map[string]struct {
			Type   string `json:"type"`
			Format string `json:"format"`
			Ref    string `json:"$ref"`
		} `json:"properties"`
	}
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, api.WrapError(api.KindStoreExecutionFailed, "get_queryables", collection, err)
	}

	q := make(cql.Queryables, len(schema.Properties))
	for name, def := range schema.Properties {
		switch {
		case strings.Contains(def.Ref, "geometry") || def.Type == "geometry":
			q[name] = "geometry"
		case def.Format == "date-time" || strings.Contains(def.Ref, "datetime"):
			q[name] = "datetime"
		case def.Type != "":
			q[name] = def.Type
		default:
			q[name] = "string"
		}
	}
	return q, nil
}
