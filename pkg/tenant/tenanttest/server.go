// Package tenanttest provides an in-process fake tenant API for tests.
package tenanttest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/openfroyo/qlikcloud/pkg/tenant"
)

// Call is one request received by the server.
type Call struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   []byte
}

// JSONBody decodes the recorded request body.
func (c Call) JSONBody(t testing.TB) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(c.Body, &out); err != nil {
		t.Fatalf("request body of %s %s is not a JSON object: %v", c.Method, c.Path, err)
	}
	return out
}

// Server is a fake tenant. Routes use http.ServeMux patterns such as
// "GET /api/v1/spaces/{id}"; unmatched requests get a 404.
type Server struct {
	*httptest.Server

	mux   *http.ServeMux
	mu    sync.Mutex
	calls []Call
}

// New starts a server that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{mux: http.NewServeMux()}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	r.Body = io.NopCloser(bytes.NewReader(body))

	s.mu.Lock()
	s.calls = append(s.calls, Call{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Header: r.Header.Clone(),
		Body:   body,
	})
	s.mu.Unlock()

	s.mux.ServeHTTP(w, r)
}

// Handle registers a handler for a route pattern.
func (s *Server) Handle(pattern string, h http.HandlerFunc) {
	s.mux.HandleFunc(pattern, h)
}

// Reply registers a fixed JSON response for a route pattern.
func (s *Server) Reply(pattern string, status int, body any) {
	s.Handle(pattern, func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, status, body)
	})
}

// Calls returns the recorded requests.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallsTo returns the recorded requests with the given method and path.
func (s *Server) CallsTo(method, path string) []Call {
	var out []Call
	for _, c := range s.Calls() {
		if c.Method == method && c.Path == path {
			out = append(out, c)
		}
	}
	return out
}

// Mutations returns the recorded requests that are not GETs.
func (s *Server) Mutations() []Call {
	var out []Call
	for _, c := range s.Calls() {
		if c.Method != http.MethodGet && !isReadAction(c) {
			out = append(out, c)
		}
	}
	return out
}

// isReadAction reports filter queries, which are POSTs that do not mutate.
func isReadAction(c Call) bool {
	return c.Method == http.MethodPost && strings.HasSuffix(c.Path, "/actions/filter")
}

// Client returns an API-key client for the server.
func (s *Server) Client(t testing.TB) *tenant.Client {
	t.Helper()
	c, err := tenant.New(tenant.Config{
		BaseURL:    s.URL,
		APIKey:     "test-key",
		HTTPClient: s.Server.Client(),
		Logger:     zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("failed to create tenant client: %v", err)
	}
	return c
}

// List wraps items in the list envelope.
func List(items ...any) map[string]any {
	if items == nil {
		items = []any{}
	}
	return map[string]any{"data": items}
}

// WriteJSON writes v as a JSON response.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}
