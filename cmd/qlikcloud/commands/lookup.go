package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/openfroyo/qlikcloud/pkg/inventory"
	"github.com/openfroyo/qlikcloud/pkg/lookup"
	"github.com/openfroyo/qlikcloud/pkg/tenant"
)

func (a *app) newLookupCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lookup",
		Short: "Query tenant objects and credentials",
		Long: `Query users, groups, spaces, items and the license of a tenant, or produce
credentials: an OAuth access token or a signed JWT for the JWT identity
provider.`,
	}

	cmd.AddCommand(a.objectLookup("user [TERM...]", "Look up users; without terms the current user", true,
		func(ctx context.Context, c *tenant.Client, terms []string, filter string) ([]tenant.Object, error) {
			return lookup.Users(ctx, c, terms, filter)
		}, "id", "name", "email", "status"))
	cmd.AddCommand(a.objectLookup("group NAME...", "Look up groups by name", false,
		func(ctx context.Context, c *tenant.Client, terms []string, _ string) ([]tenant.Object, error) {
			return lookup.Groups(ctx, c, terms)
		}, "id", "name", "status"))
	cmd.AddCommand(a.objectLookup("space [TERM...]", "Look up spaces; without terms every space", true,
		func(ctx context.Context, c *tenant.Client, terms []string, filter string) ([]tenant.Object, error) {
			return lookup.Spaces(ctx, c, terms, filter)
		}, "id", "name", "type", "ownerId"))
	cmd.AddCommand(a.newItemLookup())
	cmd.AddCommand(a.newLicenseLookup())
	cmd.AddCommand(a.newOAuthTokenLookup())
	cmd.AddCommand(a.newJWTLookup())

	return cmd
}

type objectLookupFunc func(ctx context.Context, c *tenant.Client, terms []string, filter string) ([]tenant.Object, error)

func (a *app) objectLookup(use, short string, filterable bool, fn objectLookupFunc, columns ...string) *cobra.Command {
	var (
		filter string
		flat   bool
	)

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := a.client(ctx)
			if err != nil {
				return err
			}
			objects, err := fn(ctx, c, args, filter)
			if err != nil {
				return err
			}
			return a.printObjects(cmd, objects, flat, columns...)
		},
	}
	if filterable {
		cmd.Flags().StringVar(&filter, "filter", "", `filter expression; %s is replaced with each term`)
	}
	cmd.Flags().BoolVar(&flat, "flat", false, "print only the ids, one per line")
	return cmd
}

func (a *app) newItemLookup() *cobra.Command {
	var (
		q    lookup.ItemQuery
		flat bool
	)

	cmd := &cobra.Command{
		Use:   "item",
		Short: "Look up items by type, resource id, space or owner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := a.client(ctx)
			if err != nil {
				return err
			}
			items, err := lookup.Items(ctx, c, q)
			if err != nil {
				return err
			}
			return a.printObjects(cmd, items, flat, "id", "name", "resourceType", "resourceId", "spaceId")
		},
	}
	cmd.Flags().StringVar(&q.ResourceType, "resource-type", "", "resource type, e.g. app or genericlink")
	cmd.Flags().StringVar(&q.ResourceID, "resource-id", "", "resource id")
	cmd.Flags().StringVar(&q.Space, "space", "", "space name")
	cmd.Flags().StringVar(&q.OwnerID, "owner-id", "", "owner user id")
	cmd.Flags().BoolVar(&flat, "flat", false, "print only the item ids, one per line")
	return cmd
}

func (a *app) newLicenseLookup() *cobra.Command {
	var flat bool

	cmd := &cobra.Command{
		Use:   "license",
		Short: "Show the license overview",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := a.client(ctx)
			if err != nil {
				return err
			}
			overview, err := lookup.License(ctx, c)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if flat {
				_, err := fmt.Fprintln(out, overview["licenseKey"])
				return err
			}
			return printJSON(out, overview)
		},
	}
	cmd.Flags().BoolVar(&flat, "flat", false, "print only the license key")
	return cmd
}

func (a *app) newOAuthTokenLookup() *cobra.Command {
	return &cobra.Command{
		Use:   "oauth-token",
		Short: "Request an access token with OAuth client credentials",
		Long: `Request an access token with the client-credentials grant. The tenant and
credentials come from --tenant, --client-id and --client-secret, or from the
--context inventory host.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			uri, id, secret, err := a.clientCredentials()
			if err != nil {
				return err
			}
			tok, err := a.token(cmd.Context(), uri, id, secret)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return err
		},
	}
}

func (a *app) clientCredentials() (string, string, string, error) {
	s := a.settings
	if s.Tenant != "" {
		return s.Tenant, s.ClientID, s.ClientSecret, nil
	}
	if s.Context == "" {
		return "", "", "", fmt.Errorf("no tenant selected: set --tenant or --context")
	}
	inv, err := a.inventory(true)
	if err != nil {
		return "", "", "", err
	}
	host, ok := inv.Host(s.Context)
	if !ok {
		return "", "", "", fmt.Errorf("context %q not found in %s", s.Context, inv.Path)
	}
	return host.TenantURI(), hostVar(host, inventory.VarClientID), hostVar(host, inventory.VarClientSecret), nil
}

func (a *app) newJWTLookup() *cobra.Command {
	var (
		req       lookup.JWTRequest
		keyFile   string
		expiresIn time.Duration
	)

	cmd := &cobra.Command{
		Use:   "jwt",
		Short: "Sign a JWT for the JWT identity provider",
		Example: `  qlikcloud lookup jwt --private-key idp.pem --kid my-key --issuer my-issuer \
    --sub alice --name Alice --email alice@example.com --groups Finance,Sales`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := os.ReadFile(keyFile)
			if err != nil {
				return fmt.Errorf("failed to read private key: %w", err)
			}
			req.PrivateKey = key

			now := time.Now()
			if expiresIn > 0 {
				req.ExpiresAt = now.Add(expiresIn)
			}
			tok, err := lookup.SignJWT(req, now)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&keyFile, "private-key", "", "PEM encoded RSA private key")
	f.StringVar(&req.KeyID, "kid", "", "key id configured on the identity provider")
	f.StringVar(&req.Issuer, "issuer", "", "issuer configured on the identity provider")
	f.StringVar(&req.Subject, "sub", "", "subject of the user")
	f.StringVar(&req.SubjectType, "sub-type", "user", "subject type")
	f.StringVar(&req.Name, "name", "", "display name")
	f.StringVar(&req.Email, "email", "", "email address")
	f.BoolVar(&req.EmailVerified, "email-verified", true, "mark the email as verified")
	f.StringSliceVar(&req.Groups, "groups", nil, "group names")
	f.DurationVar(&expiresIn, "expires-in", 0, "token lifetime (default 5m)")
	_ = cmd.MarkFlagRequired("private-key")

	return cmd
}

// printObjects prints lookup results as JSON, as flat ids, or as a table of
// the given columns.
func (a *app) printObjects(cmd *cobra.Command, objects []tenant.Object, flat bool, columns ...string) error {
	out := cmd.OutOrStdout()
	switch {
	case flat:
		for _, id := range lookup.Flatten(objects, "id") {
			fmt.Fprintln(out, id)
		}
		return nil
	case a.settings.JSON:
		return printJSON(out, objects)
	}

	headers := make([]any, len(columns))
	for i, c := range columns {
		headers[i] = c
	}
	t := newTable(out, headers...)
	for _, o := range objects {
		row := make(table.Row, len(columns))
		for i, c := range columns {
			if v, ok := o[c]; ok && v != nil {
				row[i] = v
			}
		}
		t.AppendRow(row)
	}
	t.Render()
	return nil
}
