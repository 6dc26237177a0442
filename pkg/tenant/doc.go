// Package tenant is a REST client for the analytics cloud tenant API.
//
// The client speaks JSON over HTTPS with bearer authentication (an API key
// or an OAuth2 client-credentials token) against the /api/v1 surface.
// Collection gives generic list/get/create/patch/update/delete access to a
// collection path; the named accessors and helpers in api.go cover the
// endpoints that do not fit that shape (settings singletons, app actions,
// uploads).
//
// Non-2xx responses are returned as *HTTPError carrying the status code and
// the response body verbatim. Nothing is retried.
package tenant
