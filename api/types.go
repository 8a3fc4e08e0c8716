package api

import (
	"encoding/json"
)

// Link is a STAC link object. Method and Body carry pagination state for
// POST search continuations.
type Link struct {
	Rel    string                 `json:"rel"`
	Href   string                 `json:"href"`
	Type   string                 `json:"type,omitempty"`
	Title  string                 `json:"title,omitempty"`
	Method string                 `json:"method,omitempty"`
	Body   map[string]interface{} `json:"body,omitempty"`
}

// Item is a STAC item. Geometry is carried verbatim, the service never
// reinterprets coordinate data.
type Item struct {
	Type           string                 `json:"type"`
	StacVersion    string                 `json:"stac_version,omitempty"`
	StacExtensions []string               `json:"stac_extensions,omitempty"`
	Id             string                 `json:"id"`
	Collection     string                 `json:"collection,omitempty"`
	Geometry       json.RawMessage        `json:"geometry,omitempty"`
	Bbox           []float64              `json:"bbox,omitempty"`
	Properties     map[string]interface{} `json:"properties,omitempty"`
	Assets         map[string]interface{} `json:"assets,omitempty"`
	Links          []Link                 `json:"links,omitempty"`
}

// Collection is a STAC collection.
type Collection struct {
	Type           string                 `json:"type"`
	StacVersion    string                 `json:"stac_version,omitempty"`
	StacExtensions []string               `json:"stac_extensions,omitempty"`
	Id             string                 `json:"id"`
	Title          string                 `json:"title,omitempty"`
	Description    string                 `json:"description,omitempty"`
	Keywords       []string               `json:"keywords,omitempty"`
	License        string                 `json:"license,omitempty"`
	Extent         json.RawMessage        `json:"extent,omitempty"`
	Summaries      map[string]interface{} `json:"summaries,omitempty"`
	Providers      []interface{}          `json:"providers,omitempty"`
	Links          []Link                 `json:"links,omitempty"`
}

// ItemCollection is the search response body.
type ItemCollection struct {
	Type           string `json:"type"`
	Features       []Item `json:"features"`
	Links          []Link `json:"links,omitempty"`
	NumberMatched  *int64 `json:"numberMatched,omitempty"`
	NumberReturned int    `json:"numberReturned"`
}

// Collections is the collection list response body.
type Collections struct {
	Collections []Collection `json:"collections"`
	Links       []Link       `json:"links,omitempty"`
}

// SortBy is one element of a sort clause.
type SortBy struct {
	Field     string `json:"field"`
	Direction string `json:"direction"`
}

// FieldSelection selects fields to include or exclude from search results.
// Include and Exclude are mutually exclusive per request.
type FieldSelection struct {
	Include []string `json:"include,omitempty"`
	Exclude []string `json:"exclude,omitempty"`
}

// SearchBody is the POST /search request body. GET /search query parameters
// bind to the same shape before normalization.
type SearchBody struct {
	Collections []string        `json:"collections,omitempty"`
	Ids         []string        `json:"ids,omitempty"`
	Bbox        []float64       `json:"bbox,omitempty"`
	Intersects  json.RawMessage `json:"intersects,omitempty"`
	Datetime    string          `json:"datetime,omitempty"`
	Limit       *int            `json:"limit,omitempty"`
	Token       string          `json:"token,omitempty"`
	Fields      *FieldSelection `json:"fields,omitempty"`
	SortBy      []SortBy        `json:"sortby,omitempty"`
	Filter      json.RawMessage `json:"filter,omitempty"`
	FilterLang  string          `json:"filter-lang,omitempty"`
}
