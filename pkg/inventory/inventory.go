// Package inventory reads tenant contexts (the contexts.yml file written by
// qlik-cli) and exposes them as hosts with connection variables.
package inventory

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// PluginName marks a file that only redirects to the user's contexts file.
const PluginName = "qlik.cloud.contexts"

// Host variables set for every context.
const (
	VarHost         = "ansible_host"
	VarConnection   = "ansible_connection"
	VarClientID     = "client_id"
	VarClientSecret = "client_secret"
	VarAccessToken  = "access_token"
)

// Host is one tenant context.
type Host struct {
	Name  string         `json:"name"`
	Group string         `json:"group,omitempty"`
	Vars  map[string]any `json:"vars"`
}

// Address returns the tenant hostname.
func (h Host) Address() string {
	s, _ := h.Vars[VarHost].(string)
	return s
}

// TenantURI returns the https URL of the tenant.
func (h Host) TenantURI() string {
	return "https://" + h.Address()
}

// Inventory is the set of hosts from one contexts file.
type Inventory struct {
	Path  string
	hosts map[string]Host
}

type contextsFile struct {
	Plugin   string                  `yaml:"plugin"`
	Current  string                  `yaml:"current-context"`
	Contexts map[string]*contextData `yaml:"contexts"`
}

type contextData struct {
	Server            string            `yaml:"server"`
	ServerType        string            `yaml:"server-type"`
	Headers           map[string]string `yaml:"headers"`
	OAuthClientID     string            `yaml:"oauth-client-id"`
	OAuthClientSecret string            `yaml:"oauth-client-secret"`
}

// DefaultPath returns ~/.qlik/contexts.yml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate home directory: %w", err)
	}
	return filepath.Join(home, ".qlik", "contexts.yml"), nil
}

// Load reads a contexts file. A file that only names the plugin is
// redirected to the default contexts file.
func Load(path string) (*Inventory, error) {
	f, err := read(path)
	if err != nil {
		return nil, err
	}
	if f.Contexts == nil && f.Plugin == PluginName {
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
		if f, err = read(path); err != nil {
			return nil, err
		}
	}
	if f.Contexts == nil {
		return nil, fmt.Errorf("%s: no contexts defined", path)
	}

	inv := &Inventory{Path: path, hosts: make(map[string]Host, len(f.Contexts))}
	for name, ctx := range f.Contexts {
		if ctx == nil {
			ctx = &contextData{}
		}
		host, err := hostFromContext(name, ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: context %s: %w", path, name, err)
		}
		inv.hosts[name] = host
	}
	return inv, nil
}

func read(path string) (*contextsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read inventory: %w", err)
	}
	var f contextsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse inventory %s: %w", path, err)
	}
	return &f, nil
}

func hostFromContext(name string, ctx *contextData) (Host, error) {
	u, err := url.Parse(ctx.Server)
	if err != nil {
		return Host{}, fmt.Errorf("invalid server %q: %w", ctx.Server, err)
	}

	var token any
	if auth := ctx.Headers["Authorization"]; auth != "" {
		token = strings.TrimPrefix(auth, "Bearer ")
	}
	return Host{
		Name:  name,
		Group: ctx.ServerType,
		Vars: map[string]any{
			VarHost:         u.Hostname(),
			VarConnection:   "local",
			VarClientID:     nullable(ctx.OAuthClientID),
			VarClientSecret: nullable(ctx.OAuthClientSecret),
			VarAccessToken:  token,
		},
	}, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Hosts returns every host, sorted by name.
func (inv *Inventory) Hosts() []Host {
	out := make([]Host, 0, len(inv.hosts))
	for _, h := range inv.hosts {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Host returns a host by name.
func (inv *Inventory) Host(name string) (Host, bool) {
	h, ok := inv.hosts[name]
	return h, ok
}

// Groups returns the group names, sorted.
func (inv *Inventory) Groups() []string {
	seen := map[string]bool{}
	for _, h := range inv.hosts {
		if h.Group != "" {
			seen[h.Group] = true
		}
	}
	out := make([]string, 0, len(seen))
	for g := range seen {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

// Select resolves a comma separated host pattern of host names, group names
// or "all". An empty pattern selects every host.
func (inv *Inventory) Select(pattern string) ([]Host, error) {
	if pattern == "" || pattern == "all" {
		return inv.Hosts(), nil
	}

	picked := map[string]bool{}
	for _, term := range strings.Split(pattern, ",") {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		if term == "all" {
			return inv.Hosts(), nil
		}
		matched := false
		if _, ok := inv.hosts[term]; ok {
			picked[term] = true
			matched = true
		}
		for _, h := range inv.hosts {
			if h.Group == term {
				picked[h.Name] = true
				matched = true
			}
		}
		if !matched {
			return nil, fmt.Errorf("no hosts match %q", term)
		}
	}

	var out []Host
	for _, h := range inv.Hosts() {
		if picked[h.Name] {
			out = append(out, h)
		}
	}
	return out, nil
}
