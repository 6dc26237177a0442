package tenant

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// Collections of the tenant API.
func (c *Client) Spaces() *Collection            { return c.Collection("spaces") }
func (c *Client) Users() *Collection             { return c.Collection("users") }
func (c *Client) Roles() *Collection             { return c.Collection("roles") }
func (c *Client) Groups() *Collection            { return c.Collection("groups") }
func (c *Client) IdentityProviders() *Collection { return c.Collection("identity-providers") }
func (c *Client) Themes() *Collection            { return c.Collection("themes") }
func (c *Client) Extensions() *Collection        { return c.Collection("extensions") }
func (c *Client) Automations() *Collection       { return c.Collection("automations") }
func (c *Client) Apps() *Collection              { return c.Collection("apps") }
func (c *Client) Reloads() *Collection           { return c.Collection("reloads") }
func (c *Client) ReloadTasks() *Collection       { return c.Collection("reload-tasks") }
func (c *Client) WebIntegrations() *Collection   { return c.Collection("web-integrations") }
func (c *Client) CSPOrigins() *Collection        { return c.Collection("csp-origins") }
func (c *Client) DataConnections() *Collection   { return c.Collection("data-connections") }
func (c *Client) GenericLinks() *Collection      { return c.Collection("generic-links") }
func (c *Client) DataFiles() *Collection         { return c.Collection("data-files") }
func (c *Client) Items() *Collection             { return c.Collection("items") }

// SpaceAssignments returns the assignments collection of one space.
func (c *Client) SpaceAssignments(spaceID string) *Collection {
	return c.Collection("spaces/" + url.PathEscape(spaceID) + "/assignments")
}

// Me returns the user the credentials belong to.
func (c *Client) Me(ctx context.Context) (Object, error) {
	return c.GetObject(ctx, "/users/me", nil)
}

// FindSpace returns the space with exactly the given name, or nil.
func (c *Client) FindSpace(ctx context.Context, name string) (Object, error) {
	spaces, err := c.Spaces().Page(ctx, url.Values{
		"name":  {name},
		"limit": {"100"},
	})
	if err != nil {
		return nil, err
	}
	for _, s := range spaces {
		if s["name"] == name {
			return s, nil
		}
	}
	return nil, nil
}

// FindRole returns the role with the given name, or nil.
func (c *Client) FindRole(ctx context.Context, name string) (Object, error) {
	roles, err := c.Roles().Page(ctx, url.Values{
		"filter": {fmt.Sprintf("name eq %q", name)},
	})
	if err != nil {
		return nil, err
	}
	if len(roles) == 0 {
		return nil, nil
	}
	return roles[0], nil
}

// GroupSettings returns the tenant group settings.
func (c *Client) GroupSettings(ctx context.Context) (Object, error) {
	return c.GetObject(ctx, "/groups/settings", nil)
}

// PatchGroupSettings applies a JSON-Patch list to the group settings.
func (c *Client) PatchGroupSettings(ctx context.Context, ops any) error {
	return c.JSON(ctx, http.MethodPatch, "/groups/settings", nil, ops, nil)
}

// LicenseSettings returns the license assignment settings.
func (c *Client) LicenseSettings(ctx context.Context) (Object, error) {
	return c.GetObject(ctx, "/licenses/settings", nil)
}

// SetLicenseSettings replaces the license assignment settings.
func (c *Client) SetLicenseSettings(ctx context.Context, settings any) (Object, error) {
	var obj Object
	if err := c.JSON(ctx, http.MethodPut, "/licenses/settings", nil, settings, &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// LicenseOverview returns the tenant license overview.
func (c *Client) LicenseOverview(ctx context.Context) (Object, error) {
	return c.GetObject(ctx, "/licenses/overview", nil)
}

// CreateAutomationRun starts a run of an automation.
func (c *Client) CreateAutomationRun(ctx context.Context, automationID string) (Object, error) {
	var obj Object
	body := map[string]string{"context": "api"}
	if err := c.JSON(ctx, http.MethodPost, c.Automations().Path(automationID, "runs"), nil, body, &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// CreateReload starts a reload of an app.
func (c *Client) CreateReload(ctx context.Context, appID string) (Object, error) {
	return c.Reloads().Create(ctx, map[string]string{"appId": appID})
}

// SetAppAttributes updates app attributes such as the description.
func (c *Client) SetAppAttributes(ctx context.Context, appID string, attributes map[string]any) (Object, error) {
	return c.Apps().Update(ctx, appID, map[string]any{"attributes": attributes})
}

// SetAppOwner changes the owner of an app.
func (c *Client) SetAppOwner(ctx context.Context, appID, ownerID string) (Object, error) {
	var obj Object
	body := map[string]string{"ownerId": ownerID}
	if err := c.JSON(ctx, http.MethodPut, c.Apps().Path(appID, "owner"), nil, body, &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// SetAppSpace moves an app into a space.
func (c *Client) SetAppSpace(ctx context.Context, appID, spaceID string) (Object, error) {
	var obj Object
	body := map[string]string{"spaceId": spaceID}
	if err := c.JSON(ctx, http.MethodPut, c.Apps().Path(appID, "space"), nil, body, &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// ImportApp imports an app from temporary content.
func (c *Client) ImportApp(ctx context.Context, fileID, name, spaceID string) (Object, error) {
	q := url.Values{"fileId": {fileID}}
	if name != "" {
		q.Set("name", name)
	}
	if spaceID != "" {
		q.Set("spaceId", spaceID)
	}
	var obj Object
	if err := c.JSON(ctx, http.MethodPost, c.Apps().Path("import"), q, nil, &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// PublishApp publishes an app into a managed space.
func (c *Client) PublishApp(ctx context.Context, originAppID, spaceID string) (Object, error) {
	var obj Object
	body := map[string]string{"spaceId": spaceID}
	if err := c.JSON(ctx, http.MethodPost, c.Apps().Path(originAppID, "publish"), nil, body, &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// CreateDataConnection creates a data connection through the connection
// service.
func (c *Client) CreateDataConnection(ctx context.Context, body any) (Object, error) {
	var obj Object
	if err := c.JSON(ctx, http.MethodPost, "/dcaas/data-connections", nil, body, &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// DataFileConnections returns the DataFiles connection of a space, or the
// personal one when spaceID is empty.
func (c *Client) DataFileConnections(ctx context.Context, spaceID string) ([]Object, error) {
	q := url.Values{"name": {"DataFiles"}}
	if spaceID != "" {
		q.Set("spaceId", spaceID)
	} else {
		q.Set("personal", strconv.FormatBool(true))
	}
	return c.Collection("data-files/connections").Page(ctx, q)
}

// ChangeDataFileOwner changes the owner of a data file.
func (c *Client) ChangeDataFileOwner(ctx context.Context, fileID, ownerID string) error {
	body := map[string]string{"ownerId": ownerID}
	return c.JSON(ctx, http.MethodPost, c.DataFiles().Path(fileID, "actions", "change-owner"), nil, body, nil)
}

// ChangeDataFileSpace moves a data file into a space.
func (c *Client) ChangeDataFileSpace(ctx context.Context, fileID, spaceID string) error {
	body := map[string]string{"spaceId": spaceID}
	return c.JSON(ctx, http.MethodPost, c.DataFiles().Path(fileID, "actions", "change-space"), nil, body, nil)
}
