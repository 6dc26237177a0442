package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/openfroyo/qlikcloud/pkg/inventory"
	"github.com/openfroyo/qlikcloud/pkg/lookup"
	"github.com/openfroyo/qlikcloud/pkg/policy"
	"github.com/openfroyo/qlikcloud/pkg/telemetry"
	"github.com/openfroyo/qlikcloud/pkg/tenant"
)

// app is the state shared by the commands of one invocation.
type app struct {
	v        *viper.Viper
	settings *Settings
	tel      *telemetry.Telemetry

	version   string
	commit    string
	buildDate string
}

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	a := &app{v: viper.New(), version: version, commit: commit, buildDate: buildDate}
	err := a.rootCommand().ExecuteContext(ctx)
	return errors.Join(err, a.shutdown(ctx))
}

func (a *app) rootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "qlikcloud",
		Short: "Declarative automation for Qlik Cloud tenants",
		Long: `qlikcloud converges Qlik Cloud tenant resources to a declared state.

Resources such as spaces, users, apps, themes and identity providers are
described in YAML playbooks and applied against the tenants of an inventory.
Every task reads the live resource, compares it with the desired state and
performs only the create, patch, update or delete needed to converge.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", a.version, a.commit, a.buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	bindGlobalFlags(a.v, rootCmd.PersistentFlags())

	rootCmd.AddCommand(a.newApplyCommand())
	rootCmd.AddCommand(a.newValidateCommand())
	rootCmd.AddCommand(a.newModuleCommand())
	rootCmd.AddCommand(a.newLookupCommand())
	rootCmd.AddCommand(a.newInventoryCommand())
	rootCmd.AddCommand(a.newConnstringCommand())
	rootCmd.AddCommand(a.newHistoryCommand())
	rootCmd.AddCommand(a.newVersionCommand())

	return rootCmd
}

func (a *app) init(cmd *cobra.Command) error {
	s, err := loadSettings(a.v)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(telemetry.ParseLevel(s.LogLevel))

	tel, err := telemetry.New(s.telemetryConfig(a.version))
	if err != nil {
		return err
	}
	a.settings = s
	a.tel = tel
	cmd.SetContext(tel.WithContext(cmd.Context()))
	return nil
}

func (a *app) shutdown(ctx context.Context) error {
	if a.tel == nil {
		return nil
	}
	return a.tel.Shutdown(context.WithoutCancel(ctx))
}

func (a *app) logger(component string) zerolog.Logger {
	return a.tel.Logger.NewComponentLogger(component).Zerolog()
}

func (a *app) httpClient() *http.Client {
	hc := cleanhttp.DefaultPooledClient()
	hc.Timeout = a.settings.Timeout
	return hc
}

// connect creates a tenant client. It is the ConnectFunc handed to modules
// and the playbook runner.
func (a *app) connect(tenantURI, apiKey string) (*tenant.Client, error) {
	return tenant.New(tenant.Config{
		BaseURL:    tenantURI,
		APIKey:     apiKey,
		UserAgent:  "qlikcloud/" + a.version,
		HTTPClient: a.httpClient(),
		Logger:     a.logger("tenant"),
		Observer:   a.tel.Metrics,
	})
}

// token fetches an OAuth access token with client credentials.
func (a *app) token(ctx context.Context, tenantURI, clientID, clientSecret string) (string, error) {
	return lookup.OAuthToken(ctx, a.httpClient(), tenantURI, clientID, clientSecret)
}

// target resolves the tenant URI and API key of ad hoc commands from
// --tenant and its credentials, or from the --context inventory host.
func (a *app) target(ctx context.Context) (string, string, error) {
	s := a.settings
	if s.Tenant != "" {
		key, err := a.credentials(ctx, s.Tenant, s.APIKey, s.ClientID, s.ClientSecret)
		return s.Tenant, key, err
	}
	if s.Context == "" {
		return "", "", fmt.Errorf("no tenant selected: set --tenant or --context")
	}

	inv, err := a.inventory(true)
	if err != nil {
		return "", "", err
	}
	host, ok := inv.Host(s.Context)
	if !ok {
		return "", "", fmt.Errorf("context %q not found in %s", s.Context, inv.Path)
	}
	uri := host.TenantURI()
	telemetry.FromContext(ctx).Debugf("using tenant %s of context %s", uri, s.Context)
	key, err := a.credentials(ctx, uri,
		hostVar(host, inventory.VarAccessToken),
		hostVar(host, inventory.VarClientID),
		hostVar(host, inventory.VarClientSecret))
	return uri, key, err
}

func (a *app) credentials(ctx context.Context, uri, apiKey, clientID, clientSecret string) (string, error) {
	if apiKey != "" {
		return apiKey, nil
	}
	if clientID != "" && clientSecret != "" {
		return a.token(ctx, uri, clientID, clientSecret)
	}
	return "", fmt.Errorf("an API key or client credentials are required for %s", uri)
}

// client connects to the resolved target.
func (a *app) client(ctx context.Context) (*tenant.Client, error) {
	uri, key, err := a.target(ctx)
	if err != nil {
		return nil, err
	}
	return a.connect(uri, key)
}

// inventory loads --inventory. With fallback set, the qlik-cli contexts
// file in the home directory is used when no path is given; otherwise a
// missing path yields a nil inventory.
func (a *app) inventory(fallback bool) (*inventory.Inventory, error) {
	path := a.settings.Inventory
	if path == "" {
		if !fallback {
			return nil, nil
		}
		p, err := inventory.DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return inventory.Load(path)
}

// guard builds the policy engine with the built-in policies and any
// configured policy paths.
func (a *app) guard(ctx context.Context) (*policy.Engine, error) {
	eng, err := policy.NewEngine(a.logger("policy"))
	if err != nil {
		return nil, err
	}
	if len(a.settings.Policies) > 0 {
		if err := eng.LoadPolicies(ctx, a.settings.Policies); err != nil {
			return nil, err
		}
	}
	return eng, nil
}

func hostVar(h inventory.Host, key string) string {
	if s, ok := h.Vars[key].(string); ok {
		return s
	}
	return ""
}
