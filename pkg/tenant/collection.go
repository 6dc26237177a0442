package tenant

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// listResponse is the envelope of every list endpoint.
type listResponse struct {
	Data  []Object `json:"data"`
	Links struct {
		Next *struct {
			Href string `json:"href"`
		} `json:"next"`
	} `json:"links"`
}

func (l *listResponse) next() string {
	if l.Links.Next == nil {
		return ""
	}
	return l.Links.Next.Href
}

// Collection gives CRUD access to one collection path, e.g. /spaces.
type Collection struct {
	client *Client
	path   string
}

// Collection returns a collection rooted at path (relative to /api/v1).
func (c *Client) Collection(path string) *Collection {
	return &Collection{client: c, path: "/" + strings.Trim(path, "/")}
}

// Path returns the collection path joined with the escaped elements.
func (col *Collection) Path(elem ...string) string {
	p := col.path
	for _, e := range elem {
		p += "/" + url.PathEscape(e)
	}
	return p
}

// List returns every object, following pagination links.
func (col *Collection) List(ctx context.Context, query url.Values) ([]Object, error) {
	var out []Object
	next := col.path
	q := query
	for next != "" {
		var page listResponse
		if err := col.client.JSON(ctx, http.MethodGet, next, q, nil, &page); err != nil {
			return nil, err
		}
		out = append(out, page.Data...)
		next = page.next()
		q = nil
	}
	return out, nil
}

// Page returns the first page only.
func (col *Collection) Page(ctx context.Context, query url.Values) ([]Object, error) {
	var page listResponse
	if err := col.client.JSON(ctx, http.MethodGet, col.path, query, nil, &page); err != nil {
		return nil, err
	}
	return page.Data, nil
}

// Filter posts a SCIM-style filter expression to the collection's
// actions/filter endpoint.
func (col *Collection) Filter(ctx context.Context, filter string) ([]Object, error) {
	var page listResponse
	body := map[string]string{"filter": filter}
	if err := col.client.JSON(ctx, http.MethodPost, col.Path("actions", "filter"), nil, body, &page); err != nil {
		return nil, err
	}
	return page.Data, nil
}

// Get fetches one object by id.
func (col *Collection) Get(ctx context.Context, id string) (Object, error) {
	return col.client.GetObject(ctx, col.Path(id), nil)
}

// Create posts a new object and returns the created one.
func (col *Collection) Create(ctx context.Context, body any) (Object, error) {
	var obj Object
	if err := col.client.JSON(ctx, http.MethodPost, col.path, nil, body, &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// Patch sends a JSON-Patch list to an object.
func (col *Collection) Patch(ctx context.Context, id string, ops any) error {
	return col.client.JSON(ctx, http.MethodPatch, col.Path(id), nil, ops, nil)
}

// Update replaces an object with PUT and returns the stored one.
func (col *Collection) Update(ctx context.Context, id string, body any) (Object, error) {
	var obj Object
	if err := col.client.JSON(ctx, http.MethodPut, col.Path(id), nil, body, &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// Delete removes an object.
func (col *Collection) Delete(ctx context.Context, id string) error {
	return col.client.JSON(ctx, http.MethodDelete, col.Path(id), nil, nil, nil)
}
