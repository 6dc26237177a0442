package lookup

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/openfroyo/qlikcloud/pkg/engine"
	"github.com/openfroyo/qlikcloud/pkg/tenant"
)

// Default filters; %s is replaced with each term.
const (
	DefaultUserFilter  = `(email eq "%s")`
	DefaultGroupFilter = `(name eq "%s")`
	DefaultSpaceFilter = `(name eq "%s")`
)

// Users returns the users matching each term. Without terms it returns the
// current user. A term without results is an error.
func Users(ctx context.Context, c *tenant.Client, terms []string, filter string) ([]tenant.Object, error) {
	if len(terms) == 0 {
		me, err := c.Me(ctx)
		if err != nil {
			return nil, fmt.Errorf("error looking up current user, %w", err)
		}
		return []tenant.Object{me}, nil
	}
	return filterEach(ctx, c.Users(), "user", terms, orDefault(filter, DefaultUserFilter))
}

// Groups returns the groups matching each term by name.
func Groups(ctx context.Context, c *tenant.Client, terms []string) ([]tenant.Object, error) {
	return filterEach(ctx, c.Groups(), "group", terms, DefaultGroupFilter)
}

// Spaces returns the spaces matching each term. Without terms it returns
// every space.
func Spaces(ctx context.Context, c *tenant.Client, terms []string, filter string) ([]tenant.Object, error) {
	if len(terms) == 0 {
		spaces, err := c.Spaces().List(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("error in space lookup, %w", err)
		}
		if len(spaces) == 0 {
			return nil, engine.NewNotFoundError("no results from space lookup")
		}
		return spaces, nil
	}
	return filterEach(ctx, c.Spaces(), "space", terms, orDefault(filter, DefaultSpaceFilter))
}

// ItemQuery narrows an item lookup. Empty fields are not sent.
type ItemQuery struct {
	ResourceType string
	ResourceID   string
	Space        string
	OwnerID      string
}

// Items returns the items matching the query. The space is given by name.
func Items(ctx context.Context, c *tenant.Client, q ItemQuery) ([]tenant.Object, error) {
	values := url.Values{}
	set := func(k, v string) {
		if v != "" {
			values.Set(k, v)
		}
	}
	set("resourceType", q.ResourceType)
	set("resourceId", q.ResourceID)
	set("ownerId", q.OwnerID)

	if q.Space != "" {
		space, err := c.FindSpace(ctx, q.Space)
		if err != nil {
			return nil, fmt.Errorf("error in item lookup, %w", err)
		}
		if space == nil {
			return nil, engine.NewNotFoundError(fmt.Sprintf("space %q not found", q.Space))
		}
		set("spaceId", engine.State(space).GetString("id"))
	}

	items, err := c.Items().List(ctx, values)
	if err != nil {
		return nil, fmt.Errorf("error in item lookup, %w", err)
	}
	return items, nil
}

// License returns the license overview.
func License(ctx context.Context, c *tenant.Client) (tenant.Object, error) {
	overview, err := c.LicenseOverview(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting license, %w", err)
	}
	return overview, nil
}

// Flatten reduces objects to the string values of one attribute, for the
// "flat" output of lookups (ids, license keys).
func Flatten(objects []tenant.Object, attr string) []string {
	out := make([]string, 0, len(objects))
	for _, o := range objects {
		if v, ok := o[attr].(string); ok {
			out = append(out, v)
		}
	}
	return out
}

func filterEach(ctx context.Context, col *tenant.Collection, kind string, terms []string, filter string) ([]tenant.Object, error) {
	var out []tenant.Object
	for _, term := range terms {
		found, err := col.Filter(ctx, strings.ReplaceAll(filter, "%s", term))
		if err != nil {
			return nil, fmt.Errorf("error in %s lookup, %w", kind, err)
		}
		if len(found) == 0 {
			return nil, engine.NewNotFoundError(fmt.Sprintf("no results from %s lookup: %s", kind, term))
		}
		out = append(out, found...)
	}
	return out, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
