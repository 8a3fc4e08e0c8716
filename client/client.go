// Package client is a typed HTTP client for the catalog api, used by the
// command line tool.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/TechTraverse/stac-fastapi-pgstac/api"
)

type Client struct {
	base string
	hc   *http.Client
}

func New(base string) *Client {
	return &Client{
		base: base,
		hc:   http.DefaultClient,
	}
}

func (c *Client) do(ctx context.Context, method string, path string, body interface{}, ifMatch string, out interface{}) error {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if ifMatch != "" {
		req.Header.Set("If-Match", ifMatch)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var remote struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		}
		if json.Unmarshal(raw, &remote) == nil && remote.Description != "" {
			return fmt.Errorf("%s: %s", remote.Code, remote.Description)
		}
		return fmt.Errorf("unexpected response: %s", resp.Status)
	}

	if out != nil {
		return json.Unmarshal(raw, out)
	}
	return nil
}

func itemPath(collection string, id string) string {
	return "/collections/" + url.PathEscape(collection) + "/items/" + url.PathEscape(id)
}

func (c *Client) GetItem(ctx context.Context, collection string, id string) (*api.Item, error) {
	var item api.Item
	if err := c.do(ctx, http.MethodGet, itemPath(collection, id), nil, "", &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *Client) CreateItem(ctx context.Context, item *api.Item) error {
	return c.do(ctx, http.MethodPost, "/collections/"+url.PathEscape(item.Collection)+"/items", item, "", nil)
}

// ReplaceItem overwrites an item. A non-empty ifMatch makes the write
// conditional on the current entity tag.
func (c *Client) ReplaceItem(ctx context.Context, item *api.Item, ifMatch string) error {
	return c.do(ctx, http.MethodPut, itemPath(item.Collection, item.Id), item, ifMatch, nil)
}

func (c *Client) DeleteItem(ctx context.Context, collection string, id string) error {
	return c.do(ctx, http.MethodDelete, itemPath(collection, id), nil, "", nil)
}

func (c *Client) GetCollection(ctx context.Context, id string) (*api.Collection, error) {
	var col api.Collection
	if err := c.do(ctx, http.MethodGet, "/collections/"+url.PathEscape(id), nil, "", &col); err != nil {
		return nil, err
	}
	return &col, nil
}

func (c *Client) CreateCollection(ctx context.Context, col *api.Collection) error {
	return c.do(ctx, http.MethodPost, "/collections", col, "", nil)
}

func (c *Client) Search(ctx context.Context, body *api.SearchBody) (*api.ItemCollection, error) {
	var fc api.ItemCollection
	if err := c.do(ctx, http.MethodPost, "/search", body, "", &fc); err != nil {
		return nil, err
	}
	return &fc, nil
}
